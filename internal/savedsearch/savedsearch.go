// Package savedsearch keeps named monitoring queries in PostgreSQL. Queries
// are validated by the compiler before they are stored, and the compiled
// query is rebuilt on every read so it always reflects the current field
// configuration.
package savedsearch

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/Adithya-Monish-Kumar-K/Intel-Monitoring-Platform/internal/searcher/compiler"
	apperrors "github.com/Adithya-Monish-Kumar-K/Intel-Monitoring-Platform/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Intel-Monitoring-Platform/pkg/metrics"
)

const maxNameLength = 200

type SavedSearch struct {
	ID                string    `json:"id"`
	Name              string    `json:"name"`
	Query             string    `json:"query"`
	HasAdvancedSyntax bool      `json:"hasAdvancedSyntax"`
	CreatedAt         time.Time `json:"createdAt"`
}

// Detail is a saved search together with its freshly compiled form.
type Detail struct {
	SavedSearch
	CompiledQuery string              `json:"compiledQuery"`
	FieldSearches map[string][]string `json:"fieldSearches"`
	Phrases       []string            `json:"phrases"`
	Terms         []string            `json:"terms"`
}

// Repository persists saved searches. Get and Delete return an error
// wrapping apperrors.ErrNotFound for unknown IDs.
type Repository interface {
	Insert(ctx context.Context, s *SavedSearch) error
	List(ctx context.Context, limit int) ([]SavedSearch, error)
	Get(ctx context.Context, id string) (*SavedSearch, error)
	Delete(ctx context.Context, id string) error
}

type Analyzer interface {
	Analyze(ctx context.Context, raw string) (*compiler.Response, error)
}

type Service struct {
	repo     Repository
	analyzer Analyzer
	metrics  *metrics.Metrics
	now      func() time.Time
	logger   *slog.Logger
}

// NewService creates the saved search service. m may be nil.
func NewService(repo Repository, analyzer Analyzer, m *metrics.Metrics) *Service {
	return &Service{
		repo:     repo,
		analyzer: analyzer,
		metrics:  m,
		now:      time.Now,
		logger:   slog.Default().With("component", "saved-searches"),
	}
}

// Create validates raw and stores it under name. An invalid query is
// rejected with ErrInvalidQuery carrying the validator's message.
func (s *Service) Create(ctx context.Context, name, raw string) (saved *SavedSearch, err error) {
	defer func() { s.observe("create", err) }()

	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "field 'name' is required")
	}
	if utf8.RuneCountInString(name) > maxNameLength {
		return nil, apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest, "name must be at most %d characters", maxNameLength)
	}
	if strings.TrimSpace(raw) == "" {
		return nil, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "field 'query' must not be empty")
	}

	resp, err := s.analyzer.Analyze(ctx, raw)
	if err != nil {
		return nil, fmt.Errorf("analyzing saved search query: %w", err)
	}
	if !resp.IsValid {
		msg := "invalid query"
		if resp.ValidationError != nil {
			msg = *resp.ValidationError
		}
		return nil, apperrors.New(apperrors.ErrInvalidQuery, http.StatusBadRequest, msg)
	}

	saved = &SavedSearch{
		ID:                uuid.NewString(),
		Name:              name,
		Query:             raw,
		HasAdvancedSyntax: resp.HasAdvancedSyntax,
		CreatedAt:         s.now().UTC(),
	}
	if err := s.repo.Insert(ctx, saved); err != nil {
		return nil, err
	}
	s.logger.Info("saved search created", "id", saved.ID, "name", saved.Name)
	return saved, nil
}

func (s *Service) List(ctx context.Context, limit int) (list []SavedSearch, err error) {
	defer func() { s.observe("list", err) }()
	return s.repo.List(ctx, limit)
}

// Get loads a saved search and recompiles its query.
func (s *Service) Get(ctx context.Context, id string) (detail *Detail, err error) {
	defer func() { s.observe("get", err) }()

	if err := checkID(id); err != nil {
		return nil, err
	}
	saved, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	resp, err := s.analyzer.Analyze(ctx, saved.Query)
	if err != nil {
		return nil, fmt.Errorf("recompiling saved search %s: %w", id, err)
	}
	if !resp.IsValid {
		// Stored before a limit was tightened.
		s.logger.Warn("saved search no longer valid", "id", id, "error_code", resp.ErrorCode)
	}
	return &Detail{
		SavedSearch:   *saved,
		CompiledQuery: resp.CompiledQuery,
		FieldSearches: resp.FieldSearches,
		Phrases:       resp.Phrases,
		Terms:         resp.Terms,
	}, nil
}

func (s *Service) Delete(ctx context.Context, id string) (err error) {
	defer func() { s.observe("delete", err) }()

	if err := checkID(id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("saved search deleted", "id", id)
	return nil
}

func (s *Service) observe(op string, err error) {
	if s.metrics == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	s.metrics.SavedSearchesTotal.WithLabelValues(op, status).Inc()
}

// checkID rejects IDs that are not UUIDs; the column type would reject them
// with a less useful error.
func checkID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return apperrors.New(apperrors.ErrNotFound, http.StatusNotFound, "saved search not found")
	}
	return nil
}
