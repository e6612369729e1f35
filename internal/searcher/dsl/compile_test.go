package dsl

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/Intel-Monitoring-Platform/internal/searcher/query"
)

var testFields = []string{"title", "content"}

func compileQuery(t *testing.T, input string, fields []string) Clause {
	t.Helper()
	parsed, err := query.Parse(input)
	require.NoError(t, err, "parsing %q", input)
	return Compile(parsed.Tree, fields)
}

func compileJSON(t *testing.T, input string, fields []string) string {
	t.Helper()
	data, err := json.Marshal(compileQuery(t, input, fields))
	require.NoError(t, err)
	return string(data)
}

func match(text string) *Match {
	return &Match{Fields: testFields, Text: text}
}

func TestCompile_AndBeforeOr(t *testing.T) {
	got := compileQuery(t, "A OR B AND C", testFields)

	want := &Bool{
		Should: []Clause{
			match("A"),
			&Bool{Must: []Clause{match("B"), match("C")}},
		},
		MinimumShouldMatch: 1,
	}
	assert.Equal(t, want, got)
}

func TestCompile_GroupingOverridesPrecedence(t *testing.T) {
	grouped := compileQuery(t, "(A OR B) AND C", testFields)

	want := &Bool{
		Must: []Clause{
			&Bool{Should: []Clause{match("A"), match("B")}, MinimumShouldMatch: 1},
			match("C"),
		},
	}
	assert.Equal(t, want, grouped)
	assert.NotEqual(t, compileQuery(t, "A OR B AND C", testFields), grouped)
}

func TestCompile_NotScope(t *testing.T) {
	got := compileQuery(t, "NOT A AND B", testFields)
	assert.Equal(t, &Bool{Must: []Clause{match("B")}, MustNot: []Clause{match("A")}}, got)
}

func TestCompile_StandaloneNot(t *testing.T) {
	assert.Equal(t, &Bool{MustNot: []Clause{match("A")}}, compileQuery(t, "NOT A", testFields))

	got := compileQuery(t, "NOT A OR B", testFields)
	want := &Bool{
		Should:             []Clause{&Bool{MustNot: []Clause{match("A")}}, match("B")},
		MinimumShouldMatch: 1,
	}
	assert.Equal(t, want, got)
}

func TestCompile_NegatedGroup(t *testing.T) {
	got := compileQuery(t, "flood NOT (war OR riot)", testFields)
	want := &Bool{
		Must: []Clause{match("flood")},
		MustNot: []Clause{
			&Bool{Should: []Clause{match("war"), match("riot")}, MinimumShouldMatch: 1},
		},
	}
	assert.Equal(t, want, got)
}

func TestCompile_Flattening(t *testing.T) {
	and := compileQuery(t, "a AND b AND c", testFields).(*Bool)
	assert.Len(t, and.Must, 3)

	regrouped := compileQuery(t, "a AND (b AND c)", testFields).(*Bool)
	assert.Equal(t, and, regrouped)

	or := compileQuery(t, "a OR b OR c", testFields).(*Bool)
	assert.Len(t, or.Should, 3)
	assert.Equal(t, 1, or.MinimumShouldMatch)
}

func TestCompile_PhraseExactness(t *testing.T) {
	got := compileQuery(t, `"armed conflict"`, testFields)
	assert.Equal(t, &MatchPhrase{Fields: testFields, Text: "armed conflict"}, got)
}

func TestCompile_FieldScoping(t *testing.T) {
	got := compileQuery(t, "title:election", testFields)
	assert.Equal(t, &Match{Fields: []string{"title"}, Text: "election"}, got)
	assert.JSONEq(t, `{"match":{"title":{"query":"election"}}}`, compileJSON(t, "title:election", testFields))

	phrase := compileQuery(t, `summary:"dam burst"`, testFields)
	assert.Equal(t, &MatchPhrase{Fields: []string{"summary"}, Text: "dam burst"}, phrase)
}

func TestCompile_WildcardDetection(t *testing.T) {
	assert.Equal(t, &Wildcard{Fields: testFields, Pattern: "terror*"}, compileQuery(t, "terror*", testFields))
	assert.Equal(t, &Wildcard{Fields: testFields, Pattern: "t*ror"}, compileQuery(t, "t*ror", testFields))
	assert.Equal(t, match("terror"), compileQuery(t, "terror", testFields))
}

func TestCompile_EmptyTree(t *testing.T) {
	assert.Equal(t, &MatchAll{}, Compile(nil, testFields))
	assert.JSONEq(t, `{"match_all":{}}`, compileJSON(t, "   ", testFields))
}

func TestCompile_NoDefaultFields(t *testing.T) {
	got := compileQuery(t, "flood", nil)
	assert.Equal(t, &Match{Fields: []string{AllFields}, Text: "flood"}, got)
	assert.JSONEq(t, `{"multi_match":{"query":"flood","fields":["*"],"type":"best_fields"}}`, compileJSON(t, "flood", nil))
}

func TestCompile_JSON(t *testing.T) {
	tests := map[string]struct {
		input  string
		fields []string
		want   string
	}{
		"multi field term": {
			input:  "flood",
			fields: testFields,
			want:   `{"multi_match":{"query":"flood","fields":["title","content"],"type":"best_fields"}}`,
		},
		"multi field phrase": {
			input:  `"armed conflict"`,
			fields: testFields,
			want:   `{"multi_match":{"query":"armed conflict","fields":["title","content"],"type":"phrase"}}`,
		},
		"single field phrase": {
			input:  `"armed conflict"`,
			fields: []string{"content"},
			want:   `{"match_phrase":{"content":{"query":"armed conflict"}}}`,
		},
		"scoped wildcard": {
			input:  "title:terror*",
			fields: testFields,
			want:   `{"wildcard":{"title":{"value":"terror*","case_insensitive":true}}}`,
		},
		"multi field wildcard": {
			input:  "cyber-terror*",
			fields: testFields,
			want:   `{"query_string":{"query":"cyber\\-terror*","fields":["title","content"],"analyze_wildcard":true}}`,
		},
		"or": {
			input:  "a OR b",
			fields: []string{"title"},
			want: `{"bool":{"should":[{"match":{"title":{"query":"a"}}},{"match":{"title":{"query":"b"}}}],
				"minimum_should_match":1}}`,
		},
		"and with not": {
			input:  "a NOT b",
			fields: []string{"title"},
			want:   `{"bool":{"must":[{"match":{"title":{"query":"a"}}}],"must_not":[{"match":{"title":{"query":"b"}}}]}}`,
		},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			assert.JSONEq(t, tc.want, compileJSON(t, tc.input, tc.fields))
		})
	}
}

func TestCompileJSON(t *testing.T) {
	parsed, err := query.Parse("title:election")
	require.NoError(t, err)
	out, err := CompileJSON(parsed.Tree, testFields)
	require.NoError(t, err)
	assert.Equal(t, `{"match":{"title":{"query":"election"}}}`, out)
}

func TestBool_OmitsEmptyLists(t *testing.T) {
	data, err := json.Marshal(&Bool{Must: []Clause{&MatchAll{}}, MinimumShouldMatch: 1})
	require.NoError(t, err)
	assert.JSONEq(t, `{"bool":{"must":[{"match_all":{}}]}}`, string(data))
}

func TestEscapeQueryString(t *testing.T) {
	assert.Equal(t, `a\:b*`, escapeQueryString("a:b*"))
	assert.Equal(t, `\(x\)\?*`, escapeQueryString("(x)?*"))
	assert.Equal(t, "plain*", escapeQueryString("plain*"))
}

func TestWildcard_OnlyStarIsPattern(t *testing.T) {
	single := compileJSON(t, "title:what?*", testFields)
	assert.JSONEq(t, `{"wildcard":{"title":{"value":"what\\?*","case_insensitive":true}}}`, single)

	multi := compileJSON(t, "what?*", testFields)
	assert.Contains(t, multi, `"query":"what\\?*"`)

	assert.Equal(t, `a\\b\?*`, escapeWildcard(`a\b?*`))
	assert.Equal(t, "plain*", escapeWildcard("plain*"))
}
