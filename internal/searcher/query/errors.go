package query

import (
	"errors"
	"fmt"
)

// Phase names the compiler stage that rejected a query.
type Phase string

const (
	PhaseLex   Phase = "lex"
	PhaseParse Phase = "parse"
)

// Code is a stable machine-readable identifier for a syntax error. Clients
// may localise messages by code; the codes never change meaning.
type Code string

const (
	CodeUnterminatedPhrase  Code = "unterminated_phrase"
	CodeUnexpectedQuote     Code = "unexpected_quote"
	CodeBareWildcard        Code = "bare_wildcard"
	CodeQueryTooLong        Code = "query_too_long"
	CodeUnmatchedOpenParen  Code = "unmatched_open_paren"
	CodeUnmatchedCloseParen Code = "unmatched_close_paren"
	CodeDanglingOperator    Code = "dangling_operator"
	CodeEmptyGroup          Code = "empty_group"
	CodeEmptyPhrase         Code = "empty_phrase"
	CodeIncompleteField     Code = "incomplete_field"
	CodeNestingTooDeep      Code = "nesting_too_deep"
)

// SyntaxError describes why a query string was rejected. Position is the
// byte offset of the token or character that triggered the error.
type SyntaxError struct {
	Phase    Phase
	Code     Code
	Message  string
	Position int
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("%s at position %d", e.Message, e.Position)
}

func lexError(code Code, pos int, format string, args ...any) *SyntaxError {
	return &SyntaxError{Phase: PhaseLex, Code: code, Message: fmt.Sprintf(format, args...), Position: pos}
}

func parseError(code Code, pos int, format string, args ...any) *SyntaxError {
	return &SyntaxError{Phase: PhaseParse, Code: code, Message: fmt.Sprintf(format, args...), Position: pos}
}

// AsSyntaxError unwraps err into a *SyntaxError if it is one.
func AsSyntaxError(err error) (*SyntaxError, bool) {
	var se *SyntaxError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}
