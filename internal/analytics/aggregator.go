package analytics

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Intel-Monitoring-Platform/pkg/kafka"
)

// latencyWindow bounds the latency sample kept for percentiles.
const latencyWindow = 10000

type AggregatedStats struct {
	TotalQueries     int64            `json:"totalQueries"`
	ValidQueries     int64            `json:"validQueries"`
	RejectedQueries  int64            `json:"rejectedQueries"`
	AdvancedQueries  int64            `json:"advancedQueries"`
	CacheHits        int64            `json:"cacheHits"`
	CacheMisses      int64            `json:"cacheMisses"`
	ErrorCodes       map[string]int64 `json:"errorCodes"`
	AvgLatencyUs     float64          `json:"avgLatencyUs"`
	P50LatencyUs     int64            `json:"p50LatencyUs"`
	P95LatencyUs     int64            `json:"p95LatencyUs"`
	P99LatencyUs     int64            `json:"p99LatencyUs"`
	TopFields        []Count          `json:"topFields"`
	TopQueries       []Count          `json:"topQueries"`
	TopRejected      []Count          `json:"topRejectedQueries"`
	QueriesPerMinute float64          `json:"queriesPerMinute"`
}

type Count struct {
	Value string `json:"value"`
	Count int64  `json:"count"`
}

// Aggregator folds query events into in-memory statistics. It is safe for
// concurrent use and implements Tracker, so it can be fed directly when
// Kafka is disabled.
type Aggregator struct {
	mu              sync.RWMutex
	total           int64
	valid           int64
	rejected        int64
	advanced        int64
	cacheHits       int64
	cacheMisses     int64
	errorCodes      map[string]int64
	latencies       []int64
	next            int
	queryCounts     map[string]int64
	rejectedQueries map[string]int64
	fieldCounts     map[string]int64
	startTime       time.Time
	now             func() time.Time

	logger *slog.Logger
}

func NewAggregator() *Aggregator {
	return &Aggregator{
		errorCodes:      make(map[string]int64),
		latencies:       make([]int64, 0, 1024),
		queryCounts:     make(map[string]int64),
		rejectedQueries: make(map[string]int64),
		fieldCounts:     make(map[string]int64),
		startTime:       time.Now(),
		now:             time.Now,
		logger:          slog.Default().With("component", "analytics-aggregator"),
	}
}

// HandleEvent decodes Kafka messages into the aggregator.
func HandleEvent(agg *Aggregator) kafka.MessageHandler {
	return func(ctx context.Context, key []byte, value []byte) error {
		event, err := kafka.DecodeJSON[QueryEvent](value)
		if err != nil {
			agg.logger.Warn("failed to decode query event", "error", err)
			return err
		}
		agg.Track(event)
		return nil
	}
}

// Track records a single event.
func (a *Aggregator) Track(event QueryEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.total++
	if event.CacheHit {
		a.cacheHits++
	} else {
		a.cacheMisses++
	}

	switch event.Type {
	case EventQueryRejected:
		a.rejected++
		code := event.ErrorCode
		if code == "" {
			code = "unknown"
		}
		a.errorCodes[code]++
		a.rejectedQueries[event.Query]++
	default:
		a.valid++
		if event.HasAdvancedSyntax {
			a.advanced++
		}
		for _, f := range event.Fields {
			a.fieldCounts[f]++
		}
	}
	a.queryCounts[event.Query]++

	if len(a.latencies) < latencyWindow {
		a.latencies = append(a.latencies, event.LatencyUs)
	} else {
		a.latencies[a.next] = event.LatencyUs
		a.next = (a.next + 1) % latencyWindow
	}
}

// Stats returns a snapshot of the aggregated statistics.
func (a *Aggregator) Stats() AggregatedStats {
	a.mu.RLock()
	defer a.mu.RUnlock()

	stats := AggregatedStats{
		TotalQueries:    a.total,
		ValidQueries:    a.valid,
		RejectedQueries: a.rejected,
		AdvancedQueries: a.advanced,
		CacheHits:       a.cacheHits,
		CacheMisses:     a.cacheMisses,
		ErrorCodes:      make(map[string]int64, len(a.errorCodes)),
	}
	for code, n := range a.errorCodes {
		stats.ErrorCodes[code] = n
	}
	if len(a.latencies) > 0 {
		sorted := make([]int64, len(a.latencies))
		copy(sorted, a.latencies)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

		var sum int64
		for _, l := range sorted {
			sum += l
		}
		stats.AvgLatencyUs = float64(sum) / float64(len(sorted))
		stats.P50LatencyUs = percentile(sorted, 50)
		stats.P95LatencyUs = percentile(sorted, 95)
		stats.P99LatencyUs = percentile(sorted, 99)
	}
	stats.TopFields = topN(a.fieldCounts, 10)
	stats.TopQueries = topN(a.queryCounts, 10)
	stats.TopRejected = topN(a.rejectedQueries, 10)
	elapsed := a.now().Sub(a.startTime).Minutes()
	if elapsed > 0 {
		stats.QueriesPerMinute = float64(stats.TotalQueries) / elapsed
	}

	return stats
}

func percentile(sorted []int64, pct int) int64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := (pct * len(sorted)) / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// topN orders by count, then value, so ties are stable across calls.
func topN(counts map[string]int64, n int) []Count {
	result := make([]Count, 0, len(counts))
	for value, count := range counts {
		result = append(result, Count{Value: value, Count: count})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Count != result[j].Count {
			return result[i].Count > result[j].Count
		}
		return result[i].Value < result[j].Value
	})
	if len(result) > n {
		result = result[:n]
	}
	return result
}
