package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/Intel-Monitoring-Platform/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/Intel-Monitoring-Platform/internal/searcher/compiler"
	"github.com/Adithya-Monish-Kumar-K/Intel-Monitoring-Platform/internal/searcher/query"
	"github.com/Adithya-Monish-Kumar-K/Intel-Monitoring-Platform/pkg/config"
)

type fakeCache struct {
	invalidated bool
	err         error
}

func (f *fakeCache) Stats(context.Context) cache.Stats {
	return cache.Stats{Hits: 3, Misses: 1, Total: 4, HitRate: 0.75, Keys: 2, CircuitState: "closed"}
}

func (f *fakeCache) Invalidate(context.Context) (int64, error) {
	f.invalidated = true
	return 2, f.err
}

type failingAnalyzer struct{}

func (failingAnalyzer) Analyze(context.Context, string) (*compiler.Response, error) {
	return nil, errors.New("encoder exploded")
}

func (failingAnalyzer) Validate(context.Context, string) query.ValidationResult {
	return query.ValidationResult{IsValid: true}
}

func newMux(a Analyzer, c CacheAdmin) *http.ServeMux {
	mux := http.NewServeMux()
	New(a, c).Register(mux)
	return mux
}

func defaultMux() *http.ServeMux {
	svc := compiler.New(config.SearchConfig{DefaultFields: []string{"title", "content"}, MaxQueryLength: 2048, MaxNestingDepth: 32})
	return newMux(svc, nil)
}

func post(t *testing.T, mux http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestParse_Valid(t *testing.T) {
	rec := post(t, defaultMux(), "/api/v1/search/advanced/parse", `{"query":"title:election AND (flood OR drought)"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var resp compiler.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.IsValid)
	assert.True(t, resp.HasAdvancedSyntax)
	assert.Equal(t, map[string][]string{"title": {"election"}}, resp.FieldSearches)
	assert.Equal(t, []string{"flood", "drought"}, resp.Terms)
	assert.True(t, json.Valid([]byte(resp.CompiledQuery)))
}

func TestParse_InvalidIsStill200(t *testing.T) {
	rec := post(t, defaultMux(), "/api/v1/search/advanced/parse", `{"query":"(A AND B"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp compiler.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.IsValid)
	require.NotNil(t, resp.ValidationError)
	assert.Equal(t, "Unmatched opening parenthesis", *resp.ValidationError)
	assert.Empty(t, resp.CompiledQuery)
}

func TestParse_EmptyQuery(t *testing.T) {
	rec := post(t, defaultMux(), "/api/v1/search/advanced/parse", `{"query":""}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `match_all`)
}

func TestParse_BadRequests(t *testing.T) {
	tests := map[string]struct {
		body string
		want string
	}{
		"missing field": {`{"q":"flood"}`, "field 'query' is required"},
		"empty body":    {``, "request body is required"},
		"bad json":      {`{"query":`, "invalid JSON body"},
		"wrong type":    {`{"query":42}`, "invalid JSON body"},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			rec := post(t, defaultMux(), "/api/v1/search/advanced/parse", tc.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			var body map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Contains(t, body["error"], tc.want)
		})
	}
}

func TestParse_WrongContentType(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/search/advanced/parse", strings.NewReader(`query=flood`))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	defaultMux().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
}

func TestParse_MethodNotAllowed(t *testing.T) {
	rec := httptest.NewRecorder()
	defaultMux().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/search/advanced/parse", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestParse_InternalError(t *testing.T) {
	rec := post(t, newMux(failingAnalyzer{}, nil), "/api/v1/search/advanced/parse", `{"query":"a"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "exploded")
}

func TestValidate(t *testing.T) {
	rec := post(t, defaultMux(), "/api/v1/search/advanced/validate", `{"query":"A AND"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"isValid":false,"error":{"code":"dangling_operator","message":"Expected a term after 'AND'","position":2}}`, rec.Body.String())

	rec = post(t, defaultMux(), "/api/v1/search/advanced/validate", `{"query":"A AND B"}`)
	assert.JSONEq(t, `{"isValid":true}`, rec.Body.String())
}

func TestCacheEndpoints_Disabled(t *testing.T) {
	mux := defaultMux()
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/search/advanced/cache/stats", nil))
	assert.JSONEq(t, `{"status":"disabled"}`, rec.Body.String())

	rec = post(t, mux, "/api/v1/search/advanced/cache/invalidate", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestCacheEndpoints(t *testing.T) {
	fc := &fakeCache{}
	mux := newMux(failingAnalyzer{}, fc)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/search/advanced/cache/stats", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var stats cache.Stats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.EqualValues(t, 3, stats.Hits)
	assert.Equal(t, "closed", stats.CircuitState)

	rec = post(t, mux, "/api/v1/search/advanced/cache/invalidate", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, fc.invalidated)
	assert.JSONEq(t, `{"status":"invalidated","keysDeleted":2}`, rec.Body.String())

	fc.err = errors.New("redis down")
	rec = post(t, mux, "/api/v1/search/advanced/cache/invalidate", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
