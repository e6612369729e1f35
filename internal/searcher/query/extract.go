package query

// Projection is the flat, UI-oriented view of a syntax tree.
type Projection struct {
	FieldSearches     map[string][]string
	Phrases           []string
	Terms             []string
	HasAdvancedSyntax bool
}

// Extract walks the tree once and collects field-scoped values, phrases and
// bare terms in left-to-right order. Duplicates are preserved.
//
// HasAdvancedSyntax ignores implicit conjunctions, so plain words stay
// simple. It is derived from the tree alone; callers that know the
// source contained parentheses must OR that in themselves (Parse does).
func Extract(tree Node) Projection {
	proj := Projection{
		FieldSearches: make(map[string][]string),
		Phrases:       make([]string, 0),
		Terms:         make([]string, 0),
	}
	Walk(tree, func(n Node) {
		switch v := n.(type) {
		case *TermNode:
			if v.Field != "" {
				proj.FieldSearches[v.Field] = append(proj.FieldSearches[v.Field], v.Text)
				proj.HasAdvancedSyntax = true
			} else {
				proj.Terms = append(proj.Terms, v.Text)
			}
			if v.Wildcard {
				proj.HasAdvancedSyntax = true
			}
		case *PhraseNode:
			proj.Phrases = append(proj.Phrases, v.Text)
			if v.Field != "" {
				proj.FieldSearches[v.Field] = append(proj.FieldSearches[v.Field], v.Text)
			}
			proj.HasAdvancedSyntax = true
		case *AndNode:
			if !v.Implicit {
				proj.HasAdvancedSyntax = true
			}
		case *NotNode, *OrNode:
			proj.HasAdvancedSyntax = true
		}
	})
	return proj
}
