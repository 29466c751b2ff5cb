package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c0deZ3R0/go-conflict-kit/conflictkit"
	conflictErrors "github.com/c0deZ3R0/go-conflict-kit/errors"
)

// setupTestStore connects to the database named by POSTGRES_TEST_DSN. Tests
// are skipped when no test database is available.
func setupTestStore(t *testing.T) *PostgresConflictStore {
	t.Helper()

	dsn := os.Getenv("POSTGRES_TEST_DSN")
	if dsn == "" {
		t.Skip("POSTGRES_TEST_DSN not set, skipping postgres integration tests")
	}

	store, err := New(&Config{DataSourceName: dsn, MaxOpenConns: 5, MaxIdleConns: 2})
	require.NoError(t, err)

	t.Cleanup(func() {
		_, err := store.db.Exec(`DELETE FROM conflicts WHERE domain LIKE 'test-%'`)
		if err != nil {
			t.Logf("failed to clean up test data: %v", err)
		}
		store.Close()
	})
	return store
}

func testConflict(id, domain string) *conflictkit.Conflict {
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	return &conflictkit.Conflict{
		ID:           id,
		Domain:       domain,
		ResourceType: conflictkit.ResourceProduct,
		ResourceIDA:  "1001",
		ResourceIDB:  "sku-1001",
		ConflictType: conflictkit.ConflictDataMismatch,
		Severity:     conflictkit.SeverityMedium,
		Status:       conflictkit.StatusPending,
		Fields: []conflictkit.FieldConflict{
			{Name: "title", ValueA: "Aviator Classic", ValueB: "Aviator Pro"},
		},
		SideAData: []byte(`{"id":1001,"title":"Aviator Classic"}`),
		SideBData: []byte(`{"external_id":"sku-1001","name":"Aviator Pro"}`),
		VersionHistory: []conflictkit.HistoryEntry{
			{Timestamp: now, Action: conflictkit.ActionCreated, ActorID: "sync-pipeline"},
		},
		CreatedAt: now,
	}
}

func TestPostgresStore_FindOrCreateRoundTrip(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	created, wasNew, err := store.FindOrCreate(ctx, testConflict("pg-c-1", "test-shop-1"))
	require.NoError(t, err)
	require.True(t, wasNew)

	got, err := store.Get(ctx, "test-shop-1", created.ID)
	require.NoError(t, err)
	assert.Equal(t, conflictkit.StatusPending, got.Status)
	require.Len(t, got.Fields, 1)
	assert.Equal(t, "title", got.Fields[0].Name)
	assert.JSONEq(t, `{"id":1001,"title":"Aviator Classic"}`, string(got.SideAData))

	// Duplicate pending tuple returns the existing record.
	existing, wasNew, err := store.FindOrCreate(ctx, testConflict("pg-c-2", "test-shop-1"))
	require.NoError(t, err)
	assert.False(t, wasNew)
	assert.Equal(t, "pg-c-1", existing.ID)
}

func TestPostgresStore_UpdateLifecycle(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	c, _, err := store.FindOrCreate(ctx, testConflict("pg-c-3", "test-shop-2"))
	require.NoError(t, err)

	resolvedAt := time.Now().UTC().Truncate(time.Microsecond)
	c.Status = conflictkit.StatusResolved
	c.Resolution = "use_A"
	c.ResolvedBy = "merchant-42"
	c.ResolvedAt = &resolvedAt
	require.NoError(t, store.Update(ctx, c))

	pending, err := store.ListPending(ctx, "test-shop-2")
	require.NoError(t, err)
	assert.Empty(t, pending)

	// Terminal records are read-only.
	c.Status = conflictkit.StatusIgnored
	err = store.Update(ctx, c)
	assert.True(t, conflictErrors.IsAlreadyFinalized(err), "got %v", err)

	// The resolved record no longer blocks a new pending conflict.
	_, wasNew, err := store.FindOrCreate(ctx, testConflict("pg-c-4", "test-shop-2"))
	require.NoError(t, err)
	assert.True(t, wasNew)
}
