package compiler

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/Intel-Monitoring-Platform/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/Intel-Monitoring-Platform/internal/searcher/query"
	"github.com/Adithya-Monish-Kumar-K/Intel-Monitoring-Platform/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Intel-Monitoring-Platform/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Intel-Monitoring-Platform/pkg/metrics"
)

var testConfig = config.SearchConfig{
	DefaultFields:   []string{"title", "content"},
	MaxQueryLength:  256,
	MaxNestingDepth: 4,
}

type memCache struct {
	mu      sync.Mutex
	entries map[string]*Response
	calls   int
}

func (c *memCache) GetOrCompute(_ context.Context, scope, raw string, compute func() (*Response, error)) (*Response, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.entries == nil {
		c.entries = make(map[string]*Response)
	}
	key := scope + "|" + raw
	if r, ok := c.entries[key]; ok {
		return r, true, nil
	}
	c.calls++
	r, err := compute()
	if err != nil {
		return nil, false, err
	}
	c.entries[key] = r
	return r, false, nil
}

type recordingTracker struct {
	mu     sync.Mutex
	events []analytics.QueryEvent
}

func (t *recordingTracker) Track(e analytics.QueryEvent) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.events = append(t.events, e)
}

func TestAnalyze_FullExample(t *testing.T) {
	svc := New(testConfig)
	resp, err := svc.Analyze(context.Background(), `title:election AND (flood OR drought) NOT "armed conflict" AND terror*`)
	require.NoError(t, err)

	assert.True(t, resp.IsValid)
	assert.Nil(t, resp.ValidationError)
	assert.Nil(t, resp.ErrorPosition)
	assert.True(t, resp.HasAdvancedSyntax)
	assert.Equal(t, map[string][]string{"title": {"election"}}, resp.FieldSearches)
	assert.Equal(t, []string{"armed conflict"}, resp.Phrases)
	assert.Equal(t, []string{"flood", "drought", "terror*"}, resp.Terms)

	var compiled map[string]any
	require.NoError(t, json.Unmarshal([]byte(resp.CompiledQuery), &compiled))
	boolQ := compiled["bool"].(map[string]any)
	assert.Len(t, boolQ["must"], 3)
	assert.Len(t, boolQ["must_not"], 1)
}

func TestAnalyze_SimpleWords(t *testing.T) {
	resp, err := New(testConfig).Analyze(context.Background(), "flood warning")
	require.NoError(t, err)
	assert.True(t, resp.IsValid)
	assert.False(t, resp.HasAdvancedSyntax)
	assert.Equal(t, []string{"flood", "warning"}, resp.Terms)
}

func TestAnalyze_Empty(t *testing.T) {
	resp, err := New(testConfig).Analyze(context.Background(), "   ")
	require.NoError(t, err)
	assert.True(t, resp.IsValid)
	assert.JSONEq(t, `{"match_all":{}}`, resp.CompiledQuery)
	assert.NotNil(t, resp.Terms)
	assert.NotNil(t, resp.FieldSearches)
}

func TestAnalyze_Invalid(t *testing.T) {
	tests := map[string]struct {
		code query.Code
		pos  int
	}{
		"(A AND B":                {query.CodeUnmatchedOpenParen, 0},
		"A AND":                   {query.CodeDanglingOperator, 2},
		`"open`:                   {query.CodeUnterminatedPhrase, 0},
		"((((((a))))))":           {query.CodeNestingTooDeep, 4},
		strings.Repeat("a", 1000): {query.CodeQueryTooLong, 256},
	}
	svc := New(testConfig)
	for input, want := range tests {
		t.Run(input[:min(len(input), 20)], func(t *testing.T) {
			resp, err := svc.Analyze(context.Background(), input)
			require.NoError(t, err)

			assert.False(t, resp.IsValid)
			require.NotNil(t, resp.ValidationError)
			assert.NotEmpty(t, *resp.ValidationError)
			assert.Equal(t, want.code, resp.ErrorCode)
			require.NotNil(t, resp.ErrorPosition)
			assert.Equal(t, want.pos, *resp.ErrorPosition)
			assert.Empty(t, resp.CompiledQuery)
			assert.Empty(t, resp.FieldSearches)
			assert.Empty(t, resp.Phrases)
			assert.Empty(t, resp.Terms)
			assert.False(t, resp.HasAdvancedSyntax)
		})
	}
}

func TestResponse_JSONShape(t *testing.T) {
	resp, err := New(testConfig).Analyze(context.Background(), "(A AND B")
	require.NoError(t, err)
	data, err := json.Marshal(resp)
	require.NoError(t, err)

	assert.JSONEq(t, `{
		"query": "(A AND B",
		"isValid": false,
		"validationError": "Unmatched opening parenthesis",
		"errorCode": "unmatched_open_paren",
		"errorPosition": 0,
		"hasAdvancedSyntax": false,
		"compiledQuery": "",
		"fieldSearches": {},
		"phrases": [],
		"terms": []
	}`, string(data))

	resp, err = New(testConfig).Analyze(context.Background(), "flood")
	require.NoError(t, err)
	data, err = json.Marshal(resp)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"validationError":null`)
	assert.NotContains(t, string(data), "errorCode")
}

func TestAnalyze_UsesCache(t *testing.T) {
	cache := &memCache{}
	tracker := &recordingTracker{}
	svc := New(testConfig, WithCache(cache), WithTracker(tracker))

	for i := 0; i < 3; i++ {
		_, err := svc.Analyze(context.Background(), "flood OR drought")
		require.NoError(t, err)
	}
	assert.Equal(t, 1, cache.calls)
	require.Len(t, tracker.events, 3)
	assert.False(t, tracker.events[0].CacheHit)
	assert.True(t, tracker.events[2].CacheHit)
}

func TestAnalyze_ScopeSeparatesConfigs(t *testing.T) {
	cache := &memCache{}
	other := testConfig
	other.DefaultFields = []string{"summary"}

	a, err := New(testConfig, WithCache(cache)).Analyze(context.Background(), "flood")
	require.NoError(t, err)
	b, err := New(other, WithCache(cache)).Analyze(context.Background(), "flood")
	require.NoError(t, err)

	assert.Equal(t, 2, cache.calls)
	assert.NotEqual(t, a.CompiledQuery, b.CompiledQuery)
	assert.JSONEq(t, `{"match":{"summary":{"query":"flood"}}}`, b.CompiledQuery)
}

func TestAnalyze_Events(t *testing.T) {
	tracker := &recordingTracker{}
	svc := New(testConfig, WithTracker(tracker))
	ctx := logger.WithRequestID(context.Background(), "req-7")

	_, err := svc.Analyze(ctx, "title:a summary:b c")
	require.NoError(t, err)
	_, err = svc.Analyze(ctx, "()")
	require.NoError(t, err)

	require.Len(t, tracker.events, 2)
	ok := tracker.events[0]
	assert.Equal(t, analytics.EventQueryParsed, ok.Type)
	assert.Equal(t, []string{"summary", "title"}, ok.Fields)
	assert.Equal(t, 2, ok.FieldCount)
	assert.True(t, ok.HasAdvancedSyntax)
	assert.Equal(t, "req-7", ok.RequestID)

	bad := tracker.events[1]
	assert.Equal(t, analytics.EventQueryRejected, bad.Type)
	assert.Equal(t, string(query.CodeEmptyGroup), bad.ErrorCode)
	assert.Empty(t, bad.Fields)
}

func TestAnalyze_Metrics(t *testing.T) {
	m := metrics.NewWithRegisterer(prometheus.NewRegistry())
	svc := New(testConfig, WithMetrics(m))

	_, _ = svc.Analyze(context.Background(), "flood")
	_, _ = svc.Analyze(context.Background(), "a OR")
	_ = svc.Validate(context.Background(), "a OR")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.QueriesTotal.WithLabelValues("valid", "")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.QueriesTotal.WithLabelValues("invalid", string(query.CodeDanglingOperator))))
}

func TestValidate(t *testing.T) {
	svc := New(testConfig)
	assert.True(t, svc.Validate(context.Background(), "a AND b").IsValid)

	result := svc.Validate(context.Background(), "title:")
	assert.False(t, result.IsValid)
	assert.Equal(t, query.CodeIncompleteField, result.Error.Code)
}

func TestAnalyze_AgreesWithValidate(t *testing.T) {
	svc := New(testConfig)
	for _, input := range []string{"", "a", "a b", "(a", "a)", "NOT", `""`, `x:"y"`, "((((a))))", "(((((a)))))"} {
		resp, err := svc.Analyze(context.Background(), input)
		require.NoError(t, err)
		assert.Equal(t, svc.Validate(context.Background(), input).IsValid, resp.IsValid, input)
	}
}

func TestAnalyze_Concurrent(t *testing.T) {
	svc := New(testConfig, WithCache(&memCache{}), WithTracker(&recordingTracker{}))
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				resp, err := svc.Analyze(context.Background(), "title:x AND (y OR z)")
				if assert.NoError(t, err) {
					assert.True(t, resp.IsValid)
				}
			}
		}()
	}
	wg.Wait()
}

func TestDefaultFields_Copy(t *testing.T) {
	svc := New(testConfig)
	fields := svc.DefaultFields()
	fields[0] = "mutated"
	assert.Equal(t, []string{"title", "content"}, svc.DefaultFields())
}
