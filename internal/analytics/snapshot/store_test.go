package snapshot

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/Intel-Monitoring-Platform/internal/analytics"
)

// openTestDB connects to IM_TEST_POSTGRES_DSN or skips the test.
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	dsn := os.Getenv("IM_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("IM_TEST_POSTGRES_DSN not set, skipping postgres test")
	}
	db, err := sql.Open("postgres", dsn)
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		t.Skipf("postgres not reachable: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestStore_SaveAndLatest(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	store := NewStore(db)
	require.NoError(t, store.EnsureSchema(ctx))
	_, err := db.ExecContext(ctx, `TRUNCATE query_analytics_snapshots`)
	require.NoError(t, err)

	latest, err := store.Latest(ctx)
	require.NoError(t, err)
	assert.Nil(t, latest)

	stats := analytics.AggregatedStats{TotalQueries: 3, RejectedQueries: 1, ErrorCodes: map[string]int64{"empty_group": 1}}
	require.NoError(t, store.Save(ctx, stats))
	require.NoError(t, store.Save(ctx, analytics.AggregatedStats{TotalQueries: 5}))

	latest, err = store.Latest(ctx)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.EqualValues(t, 5, latest.Stats.TotalQueries)

	list, err := store.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.EqualValues(t, 1, list[1].Stats.ErrorCodes["empty_group"])
}

type fixedStats analytics.AggregatedStats

func (f fixedStats) Stats() analytics.AggregatedStats { return analytics.AggregatedStats(f) }

func TestStore_PeriodicSaveWritesFinalSnapshot(t *testing.T) {
	db := openTestDB(t)
	store := NewStore(db)
	require.NoError(t, store.EnsureSchema(context.Background()))
	_, err := db.ExecContext(context.Background(), `TRUNCATE query_analytics_snapshots`)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	wait := store.StartPeriodicSave(ctx, fixedStats{TotalQueries: 11}, time.Hour)
	cancel()
	wait()

	latest, err := store.Latest(context.Background())
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.EqualValues(t, 11, latest.Stats.TotalQueries)
}
