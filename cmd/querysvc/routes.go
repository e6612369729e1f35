package main

import (
	"net/http"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Intel-Monitoring-Platform/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/Intel-Monitoring-Platform/internal/analytics/snapshot"
	"github.com/Adithya-Monish-Kumar-K/Intel-Monitoring-Platform/internal/auth/apikey"
	"github.com/Adithya-Monish-Kumar-K/Intel-Monitoring-Platform/internal/savedsearch"
	"github.com/Adithya-Monish-Kumar-K/Intel-Monitoring-Platform/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/Intel-Monitoring-Platform/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/Intel-Monitoring-Platform/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/Intel-Monitoring-Platform/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Intel-Monitoring-Platform/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/Intel-Monitoring-Platform/pkg/ratelimit"
)

// routes holds what the HTTP surface is built from. cache, savedSearches,
// history, keys and limiter are optional.
type routes struct {
	analyzer      handler.Analyzer
	cache         handler.CacheAdmin
	stats         analytics.StatsSource
	savedSearches savedsearch.Manager
	history       snapshot.Lister
	keys          apikey.KeyValidator
	checker       *health.Checker
	limiter       *ratelimit.Limiter
	metrics       *metrics.Metrics
	logSpans      bool
	writeTimeout  time.Duration
}

// handler builds the mux and wraps it, outermost first, in request ID, CORS,
// rate limiting, metrics, API key and timeout middleware.
func (rt routes) handler() http.Handler {
	mux := http.NewServeMux()
	handler.New(rt.analyzer, rt.cache, handler.WithSpanLogging(rt.logSpans)).Register(mux)
	mux.HandleFunc("GET /api/v1/search/advanced/stats", analytics.NewHandler(rt.stats).Stats)
	if rt.history != nil {
		mux.HandleFunc("GET /api/v1/search/advanced/stats/history", snapshot.NewHandler(rt.history).History)
	}
	if rt.savedSearches != nil {
		savedsearch.NewHandler(rt.savedSearches).Register(mux)
	}
	mux.HandleFunc("GET /health/live", rt.checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", rt.checker.ReadyHandler())

	var chain http.Handler = mux
	if rt.writeTimeout > 0 {
		chain = middleware.Timeout(rt.writeTimeout)(chain)
	}
	if rt.keys != nil {
		chain = apikey.Middleware(rt.keys, requiresKey)(chain)
	}
	if rt.metrics != nil {
		chain = middleware.Metrics(rt.metrics)(chain)
	}
	if rt.limiter != nil {
		chain = middleware.RateLimit(rt.limiter, rt.metrics)(chain)
	}
	chain = middleware.CORS(middleware.DefaultCORSConfig())(chain)
	chain = middleware.RequestID(chain)
	return chain
}

// requiresKey reports whether r changes state: writes to saved searches and
// cache invalidation.
func requiresKey(r *http.Request) bool {
	switch {
	case r.Method == http.MethodOptions:
		return false
	case r.URL.Path == "/api/v1/search/advanced/cache/invalidate":
		return true
	case strings.HasPrefix(r.URL.Path, "/api/v1/saved-searches"):
		return r.Method != http.MethodGet && r.Method != http.MethodHead
	}
	return false
}

// cacheAdmin keeps a nil *QueryCache from becoming a non-nil interface.
func cacheAdmin(c *cache.QueryCache) handler.CacheAdmin {
	if c == nil {
		return nil
	}
	return c
}
