package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Projections(t *testing.T) {
	parsed, err := Parse(`title:election AND (flood OR drought) NOT "armed conflict" AND terror*`)
	require.NoError(t, err)

	assert.Equal(t, map[string][]string{"title": {"election"}}, parsed.FieldSearches)
	assert.Equal(t, []string{"armed conflict"}, parsed.Phrases)
	assert.Equal(t, []string{"flood", "drought", "terror*"}, parsed.Terms)
	assert.True(t, parsed.HasAdvancedSyntax)
}

func TestParse_PhraseExactness(t *testing.T) {
	parsed, err := Parse(`"armed conflict"`)
	require.NoError(t, err)
	assert.Equal(t, []string{"armed conflict"}, parsed.Phrases)
	assert.Empty(t, parsed.Terms)
	assert.Empty(t, parsed.FieldSearches)
}

func TestParse_PhraseWhitespaceTrimmed(t *testing.T) {
	parsed, err := Parse(`" armed conflict " title:"  dam burst"`)
	require.NoError(t, err)
	assert.Equal(t, []string{"armed conflict", "dam burst"}, parsed.Phrases)
	assert.Equal(t, map[string][]string{"title": {"dam burst"}}, parsed.FieldSearches)
}

func TestParse_FieldScoping(t *testing.T) {
	parsed, err := Parse("title:election")
	require.NoError(t, err)
	assert.Equal(t, map[string][]string{"title": {"election"}}, parsed.FieldSearches)
	assert.Empty(t, parsed.Terms)
	assert.Empty(t, parsed.Phrases)
}

func TestExtract_FieldPhraseCountsTwice(t *testing.T) {
	proj := Extract(mustParseTree(t, `title:"dam burst" title:flood body:flood`))
	assert.Equal(t, map[string][]string{
		"title": {"dam burst", "flood"},
		"body":  {"flood"},
	}, proj.FieldSearches)
	assert.Equal(t, []string{"dam burst"}, proj.Phrases)
	assert.Empty(t, proj.Terms)
}

func TestExtract_KeepsDuplicatesInOrder(t *testing.T) {
	proj := Extract(mustParseTree(t, "b a b"))
	assert.Equal(t, []string{"b", "a", "b"}, proj.Terms)
}

func TestExtract_NilTree(t *testing.T) {
	proj := Extract(nil)
	assert.NotNil(t, proj.FieldSearches)
	assert.NotNil(t, proj.Phrases)
	assert.NotNil(t, proj.Terms)
	assert.False(t, proj.HasAdvancedSyntax)
}

func TestParse_HasAdvancedSyntax(t *testing.T) {
	tests := map[string]bool{
		"simple words only": false,
		"flood":             false,
		"":                  false,
		"a AND b":           true,
		"a OR b":            true,
		"NOT a":             true,
		`"armed conflict"`:  true,
		"title:election":    true,
		"terror*":           true,
		"t*ror":             true,
		"(flood)":           true,
		"flood (drought)":   true,
	}
	for input, want := range tests {
		t.Run(input, func(t *testing.T) {
			parsed, err := Parse(input)
			require.NoError(t, err)
			assert.Equal(t, want, parsed.HasAdvancedSyntax)
		})
	}
}

func TestParse_GroupedTreeMatchesUngrouped(t *testing.T) {
	grouped, err := Parse("(flood)")
	require.NoError(t, err)
	plain, err := Parse("flood")
	require.NoError(t, err)

	assert.Equal(t, plain.Tree, grouped.Tree)
	assert.NotEqual(t, plain.HasAdvancedSyntax, grouped.HasAdvancedSyntax)
}
