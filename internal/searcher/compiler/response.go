package compiler

import (
	"maps"
	"slices"

	"github.com/Adithya-Monish-Kumar-K/Intel-Monitoring-Platform/internal/searcher/query"
)

// Response is the result of analyzing one advanced query. Syntax errors are
// reported in the payload, not as Go errors.
type Response struct {
	Query             string              `json:"query"`
	IsValid           bool                `json:"isValid"`
	ValidationError   *string             `json:"validationError"`
	ErrorCode         query.Code          `json:"errorCode,omitempty"`
	ErrorPosition     *int                `json:"errorPosition,omitempty"`
	HasAdvancedSyntax bool                `json:"hasAdvancedSyntax"`
	CompiledQuery     string              `json:"compiledQuery"`
	FieldSearches     map[string][]string `json:"fieldSearches"`
	Phrases           []string            `json:"phrases"`
	Terms             []string            `json:"terms"`
}

// FieldNames returns the distinct scoped field names, sorted.
func (r *Response) FieldNames() []string {
	return slices.Sorted(maps.Keys(r.FieldSearches))
}

func validResponse(parsed *query.ParsedQuery, compiled string) *Response {
	return &Response{
		Query:             parsed.Raw,
		IsValid:           true,
		HasAdvancedSyntax: parsed.HasAdvancedSyntax,
		CompiledQuery:     compiled,
		FieldSearches:     parsed.FieldSearches,
		Phrases:           parsed.Phrases,
		Terms:             parsed.Terms,
	}
}

// invalidResponse carries the error and empty collections, never nil ones.
func invalidResponse(raw string, err error) *Response {
	detail := query.Invalid(err).Error
	msg := detail.Message
	pos := detail.Position
	return &Response{
		Query:           raw,
		IsValid:         false,
		ValidationError: &msg,
		ErrorCode:       detail.Code,
		ErrorPosition:   &pos,
		FieldSearches:   map[string][]string{},
		Phrases:         []string{},
		Terms:           []string{},
	}
}
