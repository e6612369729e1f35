package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/Intel-Monitoring-Platform/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/Intel-Monitoring-Platform/internal/searcher/compiler"
	"github.com/Adithya-Monish-Kumar-K/Intel-Monitoring-Platform/internal/searcher/query"
	apperrors "github.com/Adithya-Monish-Kumar-K/Intel-Monitoring-Platform/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Intel-Monitoring-Platform/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Intel-Monitoring-Platform/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/Intel-Monitoring-Platform/pkg/tracing"
)

// maxBodyBytes caps request bodies well above any query the limits accept.
const maxBodyBytes = 64 << 10

type Analyzer interface {
	Analyze(ctx context.Context, raw string) (*compiler.Response, error)
	Validate(ctx context.Context, raw string) query.ValidationResult
}

type CacheAdmin interface {
	Stats(ctx context.Context) cache.Stats
	Invalidate(ctx context.Context) (int64, error)
}

type Handler struct {
	analyzer Analyzer
	cache    CacheAdmin
	logSpans bool
	logger   *slog.Logger
}

type Option func(*Handler)

// WithSpanLogging logs the span tree of every parse request at debug level.
func WithSpanLogging(enabled bool) Option {
	return func(h *Handler) { h.logSpans = enabled }
}

// New creates the advanced search handler. queryCache may be nil when
// caching is disabled.
func New(analyzer Analyzer, queryCache CacheAdmin, opts ...Option) *Handler {
	h := &Handler{
		analyzer: analyzer,
		cache:    queryCache,
		logger:   slog.Default().With("component", "advanced-search-handler"),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register mounts the advanced search routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/search/advanced/parse", h.Parse)
	mux.HandleFunc("POST /api/v1/search/advanced/validate", h.Validate)
	mux.HandleFunc("GET /api/v1/search/advanced/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/search/advanced/cache/invalidate", h.CacheInvalidate)
}

// Request is the body accepted by Parse and Validate.
type Request struct {
	Query *string `json:"query"`
}

// Parse answers 200 for both valid and invalid queries; the payload says
// which.
func (h *Handler) Parse(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.StartSpan(r.Context(), "advanced.parse", middleware.GetRequestID(r.Context()))
	defer func() {
		span.End()
		if h.logSpans {
			span.Log(logger.FromContext(ctx))
		}
	}()

	raw, err := decodeQuery(r)
	if err != nil {
		h.writeAppError(w, err)
		return
	}

	resp, err := h.analyzer.Analyze(ctx, raw)
	if err != nil {
		logger.FromContext(ctx).Error("advanced query analysis failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "query analysis failed")
		return
	}
	logger.FromContext(ctx).Debug("advanced query analyzed",
		"valid", resp.IsValid,
		"advanced", resp.HasAdvancedSyntax,
		"error_code", resp.ErrorCode,
	)
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) Validate(w http.ResponseWriter, r *http.Request) {
	raw, err := decodeQuery(r)
	if err != nil {
		h.writeAppError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, h.analyzer.Validate(r.Context(), raw))
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}
	h.writeJSON(w, http.StatusOK, h.cache.Stats(r.Context()))
}

func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeError(w, http.StatusServiceUnavailable, "caching is disabled")
		return
	}

	deleted, err := h.cache.Invalidate(r.Context())
	if err != nil {
		h.logger.Error("cache invalidation failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "cache invalidation failed")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{"status": "invalidated", "keysDeleted": deleted})
}

// decodeQuery reads {"query": "..."}; a missing query field is an error but
// an empty string is a valid (empty) query.
func decodeQuery(r *http.Request) (string, error) {
	if ct := r.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "application/json") {
		return "", apperrors.New(apperrors.ErrInvalidInput, http.StatusUnsupportedMediaType, "content type must be application/json")
	}
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	var req Request
	if err := dec.Decode(&req); err != nil {
		if errors.Is(err, io.EOF) {
			return "", apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "request body is required")
		}
		return "", apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest, "invalid JSON body: %v", err)
	}
	if req.Query == nil {
		return "", apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "field 'query' is required")
	}
	return *req.Query, nil
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}

func (h *Handler) writeAppError(w http.ResponseWriter, err error) {
	h.writeError(w, apperrors.HTTPStatusCode(err), apperrors.Message(err))
}
