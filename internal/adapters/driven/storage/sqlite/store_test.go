package sqlite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sentinel/internal/adapters/driven/storage/storetest"
	"github.com/custodia-labs/sentinel/internal/core/domain"
	"github.com/custodia-labs/sentinel/internal/core/ports/driven"
)

// setupTestStore creates a SQLite store in a temporary directory.
func setupTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

// TestStore_ChunkStore runs the shared chunk store behaviour tests.
func TestStore_ChunkStore(t *testing.T) {
	storetest.RunChunkStore(t, func(t *testing.T) driven.ChunkStore {
		return setupTestStore(t)
	})
}

// TestStore_FailureLog runs the shared failure log behaviour tests.
func TestStore_FailureLog(t *testing.T) {
	storetest.RunFailureLog(t, setupTestStore(t))
}

// TestStore_Persistence tests that data survives reopening.
func TestStore_Persistence(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s1, err := NewStore(dir)
	require.NoError(t, err)
	_, err = s1.StoreChunks(ctx, "Meta", "Llama 3", storetest.MakeChunks("Meta", "Llama 3", "m", 5, "openness"))
	require.NoError(t, err)
	require.NoError(t, s1.Close())

	s2, err := NewStore(dir)
	require.NoError(t, err)
	defer s2.Close()

	got, err := s2.GetChunks(ctx, "Meta", "Llama 3", domain.ChunkFilter{Categories: []string{"OPENNESS"}})
	require.NoError(t, err)
	assert.Len(t, got, 5)
	assert.Equal(t, []string{"openness"}, got[0].Metadata.PolicyCategories)
}

// TestStore_MigrationIdempotency tests that reopening does not re-run migrations.
func TestStore_MigrationIdempotency(t *testing.T) {
	dir := t.TempDir()

	s1, err := NewStore(dir)
	require.NoError(t, err)
	var version1, count1 int
	require.NoError(t, s1.db.QueryRow("SELECT MAX(version), COUNT(*) FROM schema_migrations").Scan(&version1, &count1))
	require.NoError(t, s1.Close())

	s2, err := NewStore(dir)
	require.NoError(t, err)
	defer s2.Close()
	var version2, count2 int
	require.NoError(t, s2.db.QueryRow("SELECT MAX(version), COUNT(*) FROM schema_migrations").Scan(&version2, &count2))

	assert.Equal(t, 1, version1)
	assert.Equal(t, version1, version2)
	assert.Equal(t, count1, count2)
}

// TestStore_AppendFailureRequiresID tests input validation.
func TestStore_AppendFailureRequiresID(t *testing.T) {
	s := setupTestStore(t)
	err := s.AppendFailure(context.Background(), domain.FailureRecord{URL: "u"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

// TestStore_Path tests the database location.
func TestStore_Path(t *testing.T) {
	dir := t.TempDir()
	s, err := NewStore(dir)
	require.NoError(t, err)
	defer s.Close()
	assert.Contains(t, s.Path(), DatabaseFile)
}
