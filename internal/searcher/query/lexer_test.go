package query

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func kinds(tokens []Token) []TokenKind {
	out := make([]TokenKind, len(tokens))
	for i, t := range tokens {
		out[i] = t.Kind
	}
	return out
}

func TestTokenize_Offsets(t *testing.T) {
	tokens, err := Tokenize("title:election AND (flood OR drought)")
	require.NoError(t, err)

	want := []Token{
		{Kind: TokenFieldPrefix, Text: "title", Start: 0, End: 6},
		{Kind: TokenTerm, Text: "election", Start: 6, End: 14},
		{Kind: TokenAnd, Text: "AND", Start: 15, End: 18},
		{Kind: TokenLParen, Text: "(", Start: 19, End: 20},
		{Kind: TokenTerm, Text: "flood", Start: 20, End: 25},
		{Kind: TokenOr, Text: "OR", Start: 26, End: 28},
		{Kind: TokenTerm, Text: "drought", Start: 29, End: 36},
		{Kind: TokenRParen, Text: ")", Start: 36, End: 37},
		{Kind: TokenEOF, Start: 37, End: 37},
	}
	assert.Equal(t, want, tokens)
}

func TestTokenize_Kinds(t *testing.T) {
	tests := map[string]struct {
		input string
		want  []TokenKind
	}{
		"empty":              {"", []TokenKind{TokenEOF}},
		"whitespace only":    {" \t\n ", []TokenKind{TokenEOF}},
		"operator prefix":    {"android", []TokenKind{TokenTerm, TokenEOF}},
		"lowercase and":      {"a and b", []TokenKind{TokenTerm, TokenAnd, TokenTerm, TokenEOF}},
		"mixed case or":      {"a oR b", []TokenKind{TokenTerm, TokenOr, TokenTerm, TokenEOF}},
		"not":                {"NOT a", []TokenKind{TokenNot, TokenTerm, TokenEOF}},
		"parens tight":       {"(a)", []TokenKind{TokenLParen, TokenTerm, TokenRParen, TokenEOF}},
		"operator in parens": {"(AND)", []TokenKind{TokenLParen, TokenAnd, TokenRParen, TokenEOF}},
		"field phrase":       {`title:"armed conflict"`, []TokenKind{TokenFieldPrefix, TokenPhrase, TokenEOF}},
		"field keyword":      {"title:and", []TokenKind{TokenFieldPrefix, TokenTerm, TokenEOF}},
		"dangling field":     {"title:", []TokenKind{TokenFieldPrefix, TokenEOF}},
		"digit field":        {"10:30", []TokenKind{TokenTerm, TokenEOF}},
		"leading colon":      {":x", []TokenKind{TokenTerm, TokenEOF}},
		"wildcard":           {"terror*", []TokenKind{TokenTerm, TokenEOF}},
		"unicode term":       {"café OR 中国", []TokenKind{TokenTerm, TokenOr, TokenTerm, TokenEOF}},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			tokens, err := Tokenize(tc.input)
			require.NoError(t, err)
			assert.Equal(t, tc.want, kinds(tokens))
		})
	}
}

func TestTokenize_Phrase(t *testing.T) {
	tokens, err := Tokenize(`"say \"hi\"" next`)
	require.NoError(t, err)
	require.Len(t, tokens, 3)
	assert.Equal(t, TokenPhrase, tokens[0].Kind)
	assert.Equal(t, `say "hi"`, tokens[0].Text)
	assert.Equal(t, 0, tokens[0].Start)
	assert.Equal(t, 12, tokens[0].End)
	assert.Equal(t, "next", tokens[1].Text)
}

func TestTokenize_FieldValue(t *testing.T) {
	tokens, err := Tokenize("source_2:reuters")
	require.NoError(t, err)
	require.Len(t, tokens, 3)
	assert.Equal(t, Token{Kind: TokenFieldPrefix, Text: "source_2", Start: 0, End: 9}, tokens[0])
	assert.Equal(t, Token{Kind: TokenTerm, Text: "reuters", Start: 9, End: 16}, tokens[1])
}

func TestTokenize_Errors(t *testing.T) {
	tests := map[string]struct {
		input string
		code  Code
		pos   int
	}{
		"unterminated phrase":     {`foo "bar`, CodeUnterminatedPhrase, 4},
		"unterminated field":      {`title:"bar`, CodeUnterminatedPhrase, 6},
		"quote inside term":       {`foo"bar"`, CodeUnexpectedQuote, 3},
		"text after phrase":       {`"a"b`, CodeUnexpectedQuote, 2},
		"adjacent phrases":        {`"a""b"`, CodeUnexpectedQuote, 2},
		"bare wildcard":           {"*", CodeBareWildcard, 0},
		"bare wildcard later":     {"foo **", CodeBareWildcard, 4},
		"bare wildcard for field": {"title:*", CodeBareWildcard, 6},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Tokenize(tc.input)
			require.Error(t, err)
			se, ok := AsSyntaxError(err)
			require.True(t, ok)
			assert.Equal(t, PhaseLex, se.Phase)
			assert.Equal(t, tc.code, se.Code)
			assert.Equal(t, tc.pos, se.Position)
		})
	}
}

func TestTokenize_MaxLength(t *testing.T) {
	limits := Limits{MaxLength: 5}

	_, err := limits.Tokenize("abcde")
	require.NoError(t, err)

	_, err = limits.Tokenize("abcdefg")
	se, ok := AsSyntaxError(err)
	require.True(t, ok)
	assert.Equal(t, CodeQueryTooLong, se.Code)
	assert.Equal(t, 5, se.Position)

	_, err = limits.Tokenize(strings.Repeat("é", 5))
	require.NoError(t, err, "length is counted in characters, not bytes")

	_, err = limits.Tokenize(strings.Repeat("é", 7))
	se, ok = AsSyntaxError(err)
	require.True(t, ok)
	assert.Equal(t, 10, se.Position)

	// "a" plus four "é" is 9 bytes, so the sixth character starts at byte 9.
	_, err = limits.Tokenize("aééééz")
	se, ok = AsSyntaxError(err)
	require.True(t, ok)
	assert.Equal(t, 9, se.Position)
	assert.Equal(t, "z", "aééééz"[se.Position:])
}

func TestTokenKind_String(t *testing.T) {
	assert.Equal(t, "FIELD", TokenFieldPrefix.String())
	assert.Equal(t, "UNKNOWN", TokenKind(99).String())
	assert.Equal(t, "TERM(a)@3", Token{Kind: TokenTerm, Text: "a", Start: 3}.String())
	assert.Equal(t, "EOF@7", Token{Kind: TokenEOF, Start: 7}.String())
}
