package apikey

import (
	"context"
	"database/sql"
	"os"
	"strings"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashKey(t *testing.T) {
	assert.Equal(t, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855", HashKey(""))
	assert.NotEqual(t, HashKey("a"), HashKey("b"))
}

func TestGenerateRawKey(t *testing.T) {
	a, err := generateRawKey()
	require.NoError(t, err)
	b, err := generateRawKey()
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(a, "imk_"))
	assert.Len(t, a, len("imk_")+64)
	assert.NotEqual(t, a, b)
}

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

func TestValidator_Lifecycle(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	v := NewValidator(db)
	require.NoError(t, v.EnsureSchema(ctx))

	raw, err := v.CreateKey(ctx, "lifecycle-test", nil)
	require.NoError(t, err)

	info, err := v.Validate(ctx, raw)
	require.NoError(t, err)
	assert.Equal(t, "lifecycle-test", info.Name)
	assert.Nil(t, info.ExpiresAt)

	_, err = v.Validate(ctx, raw+"x")
	assert.ErrorIs(t, err, ErrInvalidKey)

	require.NoError(t, v.RevokeKey(ctx, raw))
	_, err = v.Validate(ctx, raw)
	assert.ErrorIs(t, err, ErrInvalidKey)
	assert.ErrorIs(t, v.RevokeKey(ctx, raw), ErrInvalidKey)
}

func TestValidator_Expired(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	v := NewValidator(db)
	require.NoError(t, v.EnsureSchema(ctx))

	past := time.Now().Add(-time.Hour)
	raw, err := v.CreateKey(ctx, "expired-test", &past)
	require.NoError(t, err)
	t.Cleanup(func() { _ = v.RevokeKey(ctx, raw) })

	_, err = v.Validate(ctx, raw)
	assert.ErrorIs(t, err, ErrExpiredKey)
}
