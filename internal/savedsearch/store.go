package savedsearch

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"

	apperrors "github.com/Adithya-Monish-Kumar-K/Intel-Monitoring-Platform/pkg/errors"
)

const schema = `
CREATE TABLE IF NOT EXISTS saved_searches (
    id                  UUID PRIMARY KEY,
    name                TEXT NOT NULL,
    query               TEXT NOT NULL,
    has_advanced_syntax BOOLEAN NOT NULL DEFAULT false,
    created_at          TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

const (
	defaultListLimit = 100
	maxListLimit     = 1000
)

var errNotFound = apperrors.New(apperrors.ErrNotFound, http.StatusNotFound, "saved search not found")

// Store is the PostgreSQL Repository.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// EnsureSchema creates the saved_searches table if it does not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("creating saved_searches table: %w", err)
	}
	return nil
}

func (s *Store) Insert(ctx context.Context, saved *SavedSearch) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO saved_searches (id, name, query, has_advanced_syntax, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		saved.ID, saved.Name, saved.Query, saved.HasAdvancedSyntax, saved.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting saved search: %w", err)
	}
	return nil
}

// List returns saved searches newest first. limit <= 0 selects the default.
func (s *Store) List(ctx context.Context, limit int) ([]SavedSearch, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	limit = min(limit, maxListLimit)

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, query, has_advanced_syntax, created_at
		 FROM saved_searches ORDER BY created_at DESC, id LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing saved searches: %w", err)
	}
	defer rows.Close()

	list := make([]SavedSearch, 0)
	for rows.Next() {
		var saved SavedSearch
		if err := rows.Scan(&saved.ID, &saved.Name, &saved.Query, &saved.HasAdvancedSyntax, &saved.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning saved search row: %w", err)
		}
		list = append(list, saved)
	}
	return list, rows.Err()
}

func (s *Store) Get(ctx context.Context, id string) (*SavedSearch, error) {
	var saved SavedSearch
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, query, has_advanced_syntax, created_at FROM saved_searches WHERE id = $1`,
		id,
	).Scan(&saved.ID, &saved.Name, &saved.Query, &saved.HasAdvancedSyntax, &saved.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying saved search: %w", err)
	}
	return &saved, nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM saved_searches WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting saved search: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return errNotFound
	}
	return nil
}
