// Package cache stores compiled query responses in Redis. Concurrent misses
// for the same key are collapsed with singleflight, and a circuit breaker
// takes Redis out of the path while it is failing.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/Intel-Monitoring-Platform/internal/searcher/compiler"
	"github.com/Adithya-Monish-Kumar-K/Intel-Monitoring-Platform/pkg/metrics"
	pkgredis "github.com/Adithya-Monish-Kumar-K/Intel-Monitoring-Platform/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/Intel-Monitoring-Platform/pkg/resilience"
)

const (
	keyPrefix = "advq:"
	opTimeout = 250 * time.Millisecond
)

// Backend is the subset of the Redis client the cache uses.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	FlushByPattern(ctx context.Context, pattern string) (int64, error)
	CountByPattern(ctx context.Context, pattern string) (int64, error)
}

// Stats summarises cache effectiveness since start-up.
type Stats struct {
	Hits         int64   `json:"hits"`
	Misses       int64   `json:"misses"`
	Errors       int64   `json:"errors"`
	Total        int64   `json:"total"`
	HitRate      float64 `json:"hitRate"`
	Keys         int64   `json:"keys"`
	CircuitState string  `json:"circuitState"`
}

type QueryCache struct {
	backend Backend
	ttl     time.Duration
	breaker *resilience.CircuitBreaker
	group   singleflight.Group
	metrics *metrics.Metrics
	logger  *slog.Logger
	hits    atomic.Int64
	misses  atomic.Int64
	errors  atomic.Int64
}

// New creates a cache over backend. breaker and m may be nil.
func New(backend Backend, ttl time.Duration, breaker *resilience.CircuitBreaker, m *metrics.Metrics) *QueryCache {
	if breaker == nil {
		breaker = resilience.NewCircuitBreaker("query-cache", resilience.CircuitBreakerConfig{})
	}
	return &QueryCache{
		backend: backend,
		ttl:     ttl,
		breaker: breaker,
		metrics: m,
		logger:  slog.Default().With("component", "query-cache"),
	}
}

// Get returns the cached response for (scope, raw), if any. Backend failures
// count as misses.
func (c *QueryCache) Get(ctx context.Context, scope, raw string) (*compiler.Response, bool) {
	key := buildKey(scope, raw)
	var data []byte
	err := c.breaker.Execute(func() error {
		return resilience.WithTimeout(ctx, opTimeout, "cache-get", func(ctx context.Context) error {
			var err error
			data, err = c.backend.Get(ctx, key)
			if pkgredis.IsNilError(err) {
				return nil
			}
			return err
		})
	})
	if err != nil {
		c.fail("cache get failed", key, err)
		c.miss()
		return nil, false
	}
	if data == nil {
		c.miss()
		return nil, false
	}

	var resp compiler.Response
	if err := json.Unmarshal(data, &resp); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		c.miss()
		return nil, false
	}
	c.hits.Add(1)
	if c.metrics != nil {
		c.metrics.CacheHitsTotal.Inc()
	}
	return &resp, true
}

// Set stores resp for (scope, raw). Failures are logged and swallowed.
func (c *QueryCache) Set(ctx context.Context, scope, raw string, resp *compiler.Response) {
	key := buildKey(scope, raw)
	data, err := json.Marshal(resp)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	err = c.breaker.Execute(func() error {
		return resilience.WithTimeout(ctx, opTimeout, "cache-set", func(ctx context.Context) error {
			return c.backend.Set(ctx, key, data, c.ttl)
		})
	})
	if err != nil {
		c.fail("cache set failed", key, err)
	}
}

// GetOrCompute implements compiler.ResponseCache.
func (c *QueryCache) GetOrCompute(
	ctx context.Context,
	scope, raw string,
	compute func() (*compiler.Response, error),
) (*compiler.Response, bool, error) {
	if resp, ok := c.Get(ctx, scope, raw); ok {
		return resp, true, nil
	}
	key := buildKey(scope, raw)
	val, err, _ := c.group.Do(key, func() (any, error) {
		resp, err := compute()
		if err != nil {
			return nil, err
		}
		c.Set(ctx, scope, raw, resp)
		return resp, nil
	})
	if err != nil {
		return nil, false, err
	}
	return val.(*compiler.Response), false, nil
}

// Invalidate removes every cached response and returns how many were removed.
func (c *QueryCache) Invalidate(ctx context.Context) (int64, error) {
	deleted, err := c.backend.FlushByPattern(ctx, keyPrefix+"*")
	if err != nil {
		return deleted, fmt.Errorf("invalidating cache: %w", err)
	}
	c.logger.Info("cache invalidated", "keys_deleted", deleted)
	return deleted, nil
}

// Stats reports counters and, when Redis is reachable, the key count.
func (c *QueryCache) Stats(ctx context.Context) Stats {
	s := Stats{
		Hits:         c.hits.Load(),
		Misses:       c.misses.Load(),
		Errors:       c.errors.Load(),
		Keys:         -1,
		CircuitState: c.breaker.GetState().String(),
	}
	s.Total = s.Hits + s.Misses
	if s.Total > 0 {
		s.HitRate = float64(s.Hits) / float64(s.Total)
	}
	if n, err := c.backend.CountByPattern(ctx, keyPrefix+"*"); err == nil {
		s.Keys = n
	}
	return s
}

func (c *QueryCache) miss() {
	c.misses.Add(1)
	if c.metrics != nil {
		c.metrics.CacheMissesTotal.Inc()
	}
}

// fail logs backend errors. An open circuit is expected while Redis is down
// and is logged at debug to avoid flooding.
func (c *QueryCache) fail(msg, key string, err error) {
	c.errors.Add(1)
	if errors.Is(err, resilience.ErrCircuitOpen) {
		c.logger.Debug(msg, "key", key, "error", err)
		return
	}
	c.logger.Warn(msg, "key", key, "timed_out", resilience.IsTimeout(err), "error", err)
}

// buildKey hashes the raw query verbatim. Whitespace and case are
// significant to error positions, so no normalisation is applied.
func buildKey(scope, raw string) string {
	hash := sha256.Sum256([]byte(scope + "\x00" + raw))
	return fmt.Sprintf("%s%s:%x", keyPrefix, scope, hash[:16])
}
