// Package compiler turns raw advanced-query strings into API responses: it
// parses with the configured limits, compiles valid trees into a bool query
// over the default fields, and records metrics and analytics for each call.
package compiler

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Intel-Monitoring-Platform/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/Intel-Monitoring-Platform/internal/searcher/dsl"
	"github.com/Adithya-Monish-Kumar-K/Intel-Monitoring-Platform/internal/searcher/query"
	"github.com/Adithya-Monish-Kumar-K/Intel-Monitoring-Platform/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Intel-Monitoring-Platform/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Intel-Monitoring-Platform/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Intel-Monitoring-Platform/pkg/tracing"
)

// ResponseCache stores responses per (scope, raw query). scope identifies
// the default fields and limits the response was computed with.
type ResponseCache interface {
	GetOrCompute(ctx context.Context, scope, raw string, compute func() (*Response, error)) (*Response, bool, error)
}

// Service is safe for concurrent use.
type Service struct {
	fields  []string
	limits  query.Limits
	scope   string
	cache   ResponseCache
	tracker analytics.Tracker
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// Option customises a Service.
type Option func(*Service)

// WithCache serves repeated queries from c.
func WithCache(c ResponseCache) Option {
	return func(s *Service) { s.cache = c }
}

// WithTracker reports one analytics event per Analyze call.
func WithTracker(t analytics.Tracker) Option {
	return func(s *Service) { s.tracker = t }
}

// WithMetrics records Prometheus metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// New builds a Service from the search configuration.
func New(cfg config.SearchConfig, opts ...Option) *Service {
	s := &Service{
		fields: append([]string(nil), cfg.DefaultFields...),
		limits: query.Limits{MaxLength: cfg.MaxQueryLength, MaxDepth: cfg.MaxNestingDepth},
		logger: slog.Default().With("component", "query-compiler"),
	}
	s.scope = scopeOf(s.fields, s.limits)
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DefaultFields returns the fields unscoped terms are matched against.
func (s *Service) DefaultFields() []string {
	return append([]string(nil), s.fields...)
}

// Analyze parses and compiles raw. The error is non-nil only for internal
// failures; syntax errors produce an invalid Response.
func (s *Service) Analyze(ctx context.Context, raw string) (*Response, error) {
	start := time.Now()
	ctx, span := tracing.StartChildSpan(ctx, "compiler.analyze")
	defer span.End()

	var (
		resp     *Response
		cacheHit bool
		err      error
	)
	if s.cache != nil {
		resp, cacheHit, err = s.cache.GetOrCompute(ctx, s.scope, raw, func() (*Response, error) {
			return s.compile(ctx, raw)
		})
	} else {
		resp, err = s.compile(ctx, raw)
	}
	if err != nil {
		logger.FromContext(ctx).Error("query compilation failed", "component", "query-compiler", "error", err)
		return nil, err
	}

	latency := time.Since(start)
	span.SetAttr("valid", resp.IsValid)
	span.SetAttr("cache_hit", cacheHit)
	s.record(ctx, resp, cacheHit, latency)
	return resp, nil
}

// Validate checks raw without compiling it.
func (s *Service) Validate(ctx context.Context, raw string) query.ValidationResult {
	_, span := tracing.StartChildSpan(ctx, "compiler.validate")
	defer span.End()

	result := s.limits.Validate(raw)
	if s.metrics != nil {
		outcome, code := "valid", ""
		if !result.IsValid {
			outcome, code = "invalid", string(result.Error.Code)
		}
		s.metrics.QueriesTotal.WithLabelValues(outcome, code).Inc()
	}
	return result
}

// Parse exposes the parsed query under the service's limits.
func (s *Service) Parse(raw string) (*query.ParsedQuery, error) {
	return s.limits.Parse(raw)
}

func (s *Service) compile(ctx context.Context, raw string) (*Response, error) {
	_, span := tracing.StartChildSpan(ctx, "compiler.compile")
	defer span.End()

	parsed, err := s.limits.Parse(raw)
	if err != nil {
		if se, ok := query.AsSyntaxError(err); ok {
			s.logger.Debug("query rejected",
				"code", se.Code,
				"position", se.Position,
				"phase", se.Phase,
			)
			return invalidResponse(raw, err), nil
		}
		return nil, fmt.Errorf("parsing query: %w", err)
	}

	compiled, err := dsl.CompileJSON(parsed.Tree, s.fields)
	if err != nil {
		return nil, err
	}
	return validResponse(parsed, compiled), nil
}

func (s *Service) record(ctx context.Context, resp *Response, cacheHit bool, latency time.Duration) {
	event := analytics.QueryEvent{
		Type:              analytics.EventQueryParsed,
		Query:             resp.Query,
		HasAdvancedSyntax: resp.HasAdvancedSyntax,
		LatencyUs:         latency.Microseconds(),
		CacheHit:          cacheHit,
		Timestamp:         time.Now().UTC(),
		RequestID:         logger.RequestID(ctx),
	}
	if resp.IsValid {
		event.Fields = resp.FieldNames()
		event.FieldCount = len(event.Fields)
	} else {
		event.Type = analytics.EventQueryRejected
		event.ErrorCode = string(resp.ErrorCode)
	}

	if s.metrics != nil {
		outcome := "valid"
		if !resp.IsValid {
			outcome = "invalid"
		}
		cacheStatus := "disabled"
		switch {
		case s.cache != nil && cacheHit:
			cacheStatus = "hit"
		case s.cache != nil:
			cacheStatus = "miss"
		}
		s.metrics.QueriesTotal.WithLabelValues(outcome, event.ErrorCode).Inc()
		s.metrics.QueryLatency.WithLabelValues(cacheStatus).Observe(latency.Seconds())
		if resp.IsValid {
			s.metrics.QueryFieldSearches.Observe(float64(event.FieldCount))
		}
	}
	if s.tracker != nil {
		s.tracker.Track(event)
	}
}

// scopeOf fingerprints everything other than the raw query that determines
// a response.
func scopeOf(fields []string, limits query.Limits) string {
	h := sha256.New()
	fmt.Fprintf(h, "fields=%s;len=%d;depth=%d", strings.Join(fields, "\x00"), limits.MaxLength, limits.MaxDepth)
	return hex.EncodeToString(h.Sum(nil))[:16]
}
