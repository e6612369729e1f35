// Package snapshot persists periodic copies of the query analytics to
// PostgreSQL so the stats survive restarts of the in-memory aggregator.
package snapshot

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Intel-Monitoring-Platform/internal/analytics"
)

const schema = `
CREATE TABLE IF NOT EXISTS query_analytics_snapshots (
    id          BIGSERIAL PRIMARY KEY,
    data        JSONB NOT NULL,
    captured_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

// Snapshot is one persisted copy of the aggregated stats.
type Snapshot struct {
	Stats      analytics.AggregatedStats `json:"stats"`
	CapturedAt time.Time                 `json:"capturedAt"`
}

// StatsSource is satisfied by *analytics.Aggregator.
type StatsSource interface {
	Stats() analytics.AggregatedStats
}

// Store persists aggregated analytics snapshots in PostgreSQL.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewStore creates a snapshot store over db.
func NewStore(db *sql.DB) *Store {
	return &Store{
		db:     db,
		logger: slog.Default().With("component", "analytics-snapshots"),
	}
}

// EnsureSchema creates the snapshot table if it does not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("creating snapshot table: %w", err)
	}
	return nil
}

// Save persists a stats snapshot.
func (s *Store) Save(ctx context.Context, stats analytics.AggregatedStats) error {
	data, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("marshaling stats: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO query_analytics_snapshots (data, captured_at) VALUES ($1, $2)`,
		data, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("saving analytics snapshot: %w", err)
	}

	s.logger.Debug("analytics snapshot saved",
		"total_queries", stats.TotalQueries,
		"rejected_queries", stats.RejectedQueries,
	)
	return nil
}

// Latest loads the most recent snapshot. It returns nil, nil if none exist.
func (s *Store) Latest(ctx context.Context) (*Snapshot, error) {
	var (
		data []byte
		snap Snapshot
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT data, captured_at FROM query_analytics_snapshots ORDER BY captured_at DESC LIMIT 1`,
	).Scan(&data, &snap.CapturedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying latest snapshot: %w", err)
	}

	if err := json.Unmarshal(data, &snap.Stats); err != nil {
		return nil, fmt.Errorf("unmarshaling snapshot: %w", err)
	}
	return &snap, nil
}

// List returns the last limit snapshots, newest first.
func (s *Store) List(ctx context.Context, limit int) ([]Snapshot, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT data, captured_at FROM query_analytics_snapshots ORDER BY captured_at DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing snapshots: %w", err)
	}
	defer rows.Close()

	snapshots := make([]Snapshot, 0, limit)
	for rows.Next() {
		var (
			data []byte
			snap Snapshot
		)
		if err := rows.Scan(&data, &snap.CapturedAt); err != nil {
			return nil, fmt.Errorf("scanning snapshot row: %w", err)
		}
		if err := json.Unmarshal(data, &snap.Stats); err != nil {
			s.logger.Warn("skipping corrupt snapshot", "error", err)
			continue
		}
		snapshots = append(snapshots, snap)
	}

	return snapshots, rows.Err()
}

// StartPeriodicSave snapshots src every interval until ctx is cancelled,
// then writes one final snapshot. The returned func blocks until that final
// snapshot is written; call it before closing the database.
func (s *Store) StartPeriodicSave(ctx context.Context, src StatsSource, interval time.Duration) (wait func()) {
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if err := s.Save(ctx, src.Stats()); err != nil {
					s.logger.Error("periodic snapshot failed", "error", err)
				}
			case <-ctx.Done():
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := s.Save(shutdownCtx, src.Stats()); err != nil {
					s.logger.Error("final snapshot failed", "error", err)
				}
				return
			}
		}
	}()
	s.logger.Info("periodic snapshot started", "interval", interval)
	return func() { <-done }
}
