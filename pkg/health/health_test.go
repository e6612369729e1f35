package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ok(context.Context) error   { return nil }
func fail(context.Context) error { return errors.New("connection refused") }

func TestRun_WorstStatusWins(t *testing.T) {
	tests := map[string]struct {
		checks map[string]Check
		want   Status
	}{
		"all up":           {map[string]Check{"postgres": Required(ok), "redis": Optional(ok)}, StatusUp},
		"optional failing": {map[string]Check{"postgres": Required(ok), "redis": Optional(fail)}, StatusDegraded},
		"required failing": {map[string]Check{"postgres": Required(fail), "redis": Optional(fail)}, StatusDown},
		"no checks":        {map[string]Check{}, StatusUp},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			c := NewChecker()
			for n, ch := range tc.checks {
				c.Register(n, ch)
			}
			report := c.Run(context.Background())
			assert.Equal(t, tc.want, report.Status)
			assert.Len(t, report.Components, len(tc.checks))
		})
	}
}

func TestRun_ReportsMessage(t *testing.T) {
	c := NewChecker()
	c.Register("redis", Optional(fail))
	report := c.Run(context.Background())
	assert.Equal(t, "connection refused", report.Components["redis"].Message)
	assert.NotEmpty(t, report.Components["redis"].Latency)
}

func TestReadyHandler(t *testing.T) {
	c := NewChecker()
	c.Register("redis", Optional(fail))
	rec := httptest.NewRecorder()
	c.ReadyHandler()(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	c.Register("postgres", Required(fail))
	rec = httptest.NewRecorder()
	c.ReadyHandler()(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var report Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, StatusDown, report.Status)
}

func TestLiveHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	NewChecker().LiveHandler()(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"alive"}`, rec.Body.String())
}
