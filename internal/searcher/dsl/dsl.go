// Package dsl compiles query syntax trees into OpenSearch/Elasticsearch
// bool queries. The Clause types are the engine-neutral shape; MarshalJSON
// renders each one in the engine's query DSL.
package dsl

import (
	"encoding/json"
	"strings"
)

// Clause is one node of a compiled query: Bool, Match, MatchPhrase, Wildcard
// or MatchAll.
type Clause interface {
	json.Marshaler
	clause()
}

// Bool combines clauses. MinimumShouldMatch is emitted only alongside a
// non-empty Should list.
type Bool struct {
	Must               []Clause
	Should             []Clause
	MustNot            []Clause
	MinimumShouldMatch int
}

// Match is a full-text match of Text against any of Fields.
type Match struct {
	Fields []string
	Text   string
}

// MatchPhrase matches Text as an exact phrase in any of Fields.
type MatchPhrase struct {
	Fields []string
	Text   string
}

// Wildcard matches Pattern, in which '*' stands for any run of characters,
// against any of Fields.
type Wildcard struct {
	Fields  []string
	Pattern string
}

// MatchAll matches every document. It is the compiled form of an empty query.
type MatchAll struct{}

func (*Bool) clause()        {}
func (*Match) clause()       {}
func (*MatchPhrase) clause() {}
func (*Wildcard) clause()    {}
func (*MatchAll) clause()    {}

type object = map[string]any

func (b *Bool) MarshalJSON() ([]byte, error) {
	body := object{}
	if len(b.Must) > 0 {
		body["must"] = b.Must
	}
	if len(b.Should) > 0 {
		body["should"] = b.Should
		if b.MinimumShouldMatch > 0 {
			body["minimum_should_match"] = b.MinimumShouldMatch
		}
	}
	if len(b.MustNot) > 0 {
		body["must_not"] = b.MustNot
	}
	return json.Marshal(object{"bool": body})
}

func (m *Match) MarshalJSON() ([]byte, error) {
	if f, ok := singleField(m.Fields); ok {
		return json.Marshal(object{"match": object{f: object{"query": m.Text}}})
	}
	return json.Marshal(object{"multi_match": object{
		"query":  m.Text,
		"fields": m.Fields,
		"type":   "best_fields",
	}})
}

func (m *MatchPhrase) MarshalJSON() ([]byte, error) {
	if f, ok := singleField(m.Fields); ok {
		return json.Marshal(object{"match_phrase": object{f: object{"query": m.Text}}})
	}
	return json.Marshal(object{"multi_match": object{
		"query":  m.Text,
		"fields": m.Fields,
		"type":   "phrase",
	}})
}

func (w *Wildcard) MarshalJSON() ([]byte, error) {
	if f, ok := singleField(w.Fields); ok {
		return json.Marshal(object{"wildcard": object{f: object{
			"value":            escapeWildcard(w.Pattern),
			"case_insensitive": true,
		}}})
	}
	return json.Marshal(object{"query_string": object{
		"query":            escapeQueryString(w.Pattern),
		"fields":           w.Fields,
		"analyze_wildcard": true,
	}})
}

func (*MatchAll) MarshalJSON() ([]byte, error) {
	return []byte(`{"match_all":{}}`), nil
}

// AllFields targets every indexed field. It is used when no default fields
// are configured.
const AllFields = "*"

// singleField returns the only concrete field in fields. Multi-field and
// all-field targets need the multi-field query forms.
func singleField(fields []string) (string, bool) {
	if len(fields) == 1 && fields[0] != AllFields {
		return fields[0], true
	}
	return "", false
}

// escapeWildcard escapes the wildcard query's '?' and '\', so '*' is the
// only pattern character, as it is in query_string.
func escapeWildcard(s string) string {
	if !strings.ContainsAny(s, `?\`) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s) + 2)
	for _, r := range s {
		if r == '?' || r == '\\' {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// escapeQueryString backslash-escapes query_string operators in s, leaving
// '*' intact.
func escapeQueryString(s string) string {
	const reserved = `+-=&|><!(){}[]^"~?:\/`
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if strings.ContainsRune(reserved, r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
