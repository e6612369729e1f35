package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPercentile(t *testing.T) {
	sorted := []time.Duration{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	assert.Equal(t, time.Duration(5), percentile(sorted, 50))
	assert.Equal(t, time.Duration(10), percentile(sorted, 99))
	assert.Equal(t, time.Duration(1), percentile(sorted, 0))
	assert.Zero(t, percentile(nil, 50))
}

func TestRecordRequest(t *testing.T) {
	s := NewStats()
	s.RecordRequest(time.Millisecond, http.StatusOK, true, nil)
	s.RecordRequest(time.Millisecond, http.StatusOK, false, nil)
	s.RecordRequest(time.Millisecond, http.StatusTooManyRequests, false, nil)
	s.RecordRequest(time.Millisecond, 0, false, assert.AnError)

	assert.EqualValues(t, 4, s.totalRequests.Load())
	assert.EqualValues(t, 2, s.successCount.Load())
	assert.EqualValues(t, 1, s.invalidCount.Load())
	assert.EqualValues(t, 2, s.errorCount.Load())
	assert.Len(t, s.latencies, 3)
}

func TestRunLoadTest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]string
		_ = json.NewDecoder(r.Body).Decode(&req)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]bool{"isValid": req["query"] == "ok"})
	}))
	defer srv.Close()

	stats := runLoadTest(Config{
		BaseURL:     srv.URL,
		Concurrency: 2,
		Duration:    100 * time.Millisecond,
		Queries:     []string{"ok", "bad"},
	})
	require.Positive(t, stats.totalRequests.Load())
	assert.Positive(t, stats.invalidCount.Load())
	assert.Zero(t, stats.errorCount.Load())
}
