package dsl

import (
	"encoding/json"
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/Intel-Monitoring-Platform/internal/searcher/query"
)

// Compile translates a syntax tree into a bool query. Unscoped terms and
// phrases target defaultFields; an empty list targets AllFields. A nil tree
// compiles to MatchAll.
//
// Runs of AND (and of OR) are flattened into a single clause list, and
// negated conjuncts move into the enclosing must_not list. Every other
// subtree becomes its own nested Bool, so the nesting of the output mirrors
// the precedence encoded in the tree.
func Compile(tree query.Node, defaultFields []string) Clause {
	if tree == nil {
		return &MatchAll{}
	}
	fields := defaultFields
	if len(fields) == 0 {
		fields = []string{AllFields}
	}
	c := compiler{defaultFields: fields}
	return c.compile(tree)
}

// CompileJSON compiles tree and renders it as a JSON document.
func CompileJSON(tree query.Node, defaultFields []string) (string, error) {
	data, err := json.Marshal(Compile(tree, defaultFields))
	if err != nil {
		return "", fmt.Errorf("encoding compiled query: %w", err)
	}
	return string(data), nil
}

type compiler struct {
	defaultFields []string
}

func (c compiler) compile(n query.Node) Clause {
	switch v := n.(type) {
	case *query.TermNode:
		fields := c.fieldsFor(v.Field)
		if v.Wildcard {
			return &Wildcard{Fields: fields, Pattern: v.Text}
		}
		return &Match{Fields: fields, Text: v.Text}
	case *query.PhraseNode:
		return &MatchPhrase{Fields: c.fieldsFor(v.Field), Text: v.Text}
	case *query.NotNode:
		return &Bool{MustNot: []Clause{c.compile(v.Operand)}}
	case *query.AndNode:
		b := &Bool{}
		for _, conjunct := range flattenAnd(v, nil) {
			if not, ok := conjunct.(*query.NotNode); ok {
				b.MustNot = append(b.MustNot, c.compile(not.Operand))
				continue
			}
			b.Must = append(b.Must, c.compile(conjunct))
		}
		return b
	case *query.OrNode:
		disjuncts := flattenOr(v, nil)
		b := &Bool{Should: make([]Clause, 0, len(disjuncts)), MinimumShouldMatch: 1}
		for _, d := range disjuncts {
			b.Should = append(b.Should, c.compile(d))
		}
		return b
	default:
		panic(fmt.Sprintf("dsl: unexpected node type %T", n))
	}
}

func (c compiler) fieldsFor(field string) []string {
	if field != "" {
		return []string{field}
	}
	return c.defaultFields
}

func flattenAnd(n query.Node, out []query.Node) []query.Node {
	if and, ok := n.(*query.AndNode); ok {
		out = flattenAnd(and.Left, out)
		return flattenAnd(and.Right, out)
	}
	return append(out, n)
}

func flattenOr(n query.Node, out []query.Node) []query.Node {
	if or, ok := n.(*query.OrNode); ok {
		out = flattenOr(or.Left, out)
		return flattenOr(or.Right, out)
	}
	return append(out, n)
}
