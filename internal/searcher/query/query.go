// Package query implements the advanced search query language: a tokenizer,
// a recursive-descent parser producing an immutable syntax tree, a validator
// and a projection of the tree into field searches, phrases and terms.
//
// Syntax:
//
//	title:election AND (flood OR drought) NOT "armed conflict" terror*
//
// AND, OR and NOT are case-insensitive. NOT binds tighter than AND, which
// binds tighter than OR; juxtaposed operands are joined with AND. A '*'
// anywhere in a bare word makes it a wildcard term. Phrase text is trimmed
// of surrounding whitespace, so `" armed conflict "` matches and reports as
// "armed conflict"; a phrase that is blank after trimming is an error. All
// functions are pure and safe for concurrent use.
package query

// ParsedQuery is the result of a successful Parse. Tree is nil for an empty
// query.
type ParsedQuery struct {
	Raw               string
	Tree              Node
	FieldSearches     map[string][]string
	Phrases           []string
	Terms             []string
	HasAdvancedSyntax bool
}

// IsEmpty reports whether the query contained no operands at all.
func (q *ParsedQuery) IsEmpty() bool {
	return q.Tree == nil
}

// ErrorDetail is the user-facing part of a SyntaxError.
type ErrorDetail struct {
	Code     Code   `json:"code"`
	Message  string `json:"message"`
	Position int    `json:"position"`
}

// ValidationResult reports whether a query is well-formed.
type ValidationResult struct {
	IsValid bool         `json:"isValid"`
	Error   *ErrorDetail `json:"error,omitempty"`
}

// Parse tokenizes and parses input with DefaultLimits.
func Parse(input string) (*ParsedQuery, error) {
	return DefaultLimits.Parse(input)
}

// Validate checks input with DefaultLimits.
func Validate(input string) ValidationResult {
	return DefaultLimits.Validate(input)
}

// Parse tokenizes and parses input. Any returned error is a *SyntaxError.
func (l Limits) Parse(input string) (*ParsedQuery, error) {
	tree, grouped, err := l.parse(input)
	if err != nil {
		return nil, err
	}
	proj := Extract(tree)
	return &ParsedQuery{
		Raw:               input,
		Tree:              tree,
		FieldSearches:     proj.FieldSearches,
		Phrases:           proj.Phrases,
		Terms:             proj.Terms,
		HasAdvancedSyntax: proj.HasAdvancedSyntax || grouped,
	}, nil
}

// Validate runs the tokenizer and parser and discards the tree. It never
// returns an error value; failures are reported in the result.
func (l Limits) Validate(input string) ValidationResult {
	if _, _, err := l.parse(input); err != nil {
		return Invalid(err)
	}
	return ValidationResult{IsValid: true}
}

// ParseTokens parses a token stream with these limits.
func (l Limits) ParseTokens(tokens []Token) (Node, error) {
	tree, _, err := l.parseTokens(tokens)
	return tree, err
}

func (l Limits) parse(input string) (Node, bool, error) {
	tokens, err := l.Tokenize(input)
	if err != nil {
		return nil, false, err
	}
	return l.parseTokens(tokens)
}

// Invalid converts a Parse error into a failed ValidationResult.
func Invalid(err error) ValidationResult {
	detail := &ErrorDetail{Message: err.Error()}
	if se, ok := AsSyntaxError(err); ok {
		detail = &ErrorDetail{Code: se.Code, Message: se.Message, Position: se.Position}
	}
	return ValidationResult{IsValid: false, Error: detail}
}
