package postgres

import (
	"context"
	"os"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jakechorley/skillconnect/pkg/db"
)

func TestPendingMigrations_SortedAndFiltered(t *testing.T) {
	fsys := fstest.MapFS{
		"migrations/002_b.sql": {Data: []byte("SELECT 2")},
		"migrations/001_a.sql": {Data: []byte("SELECT 1")},
		"migrations/README.md": {Data: []byte("docs")},
		"migrations/003_c.sql": {Data: []byte("SELECT 3")},
		"migrations/sub/x.sql": {Data: []byte("SELECT 4")},
	}

	pending, err := pendingMigrations(fsys, map[string]bool{"002_b.sql": true})
	require.NoError(t, err)
	assert.Equal(t, []string{"001_a.sql", "003_c.sql"}, pending)
}

func TestPendingMigrations_EmbeddedSchema(t *testing.T) {
	pending, err := pendingMigrations(migrationsFS, nil)
	require.NoError(t, err)
	assert.Contains(t, pending, "001_client_state.sql")
}

// TestStateStore_Integration runs against a real database when SKILLCONNECT_TEST_POSTGRES_DSN is set
func TestStateStore_Integration(t *testing.T) {
	dsn := os.Getenv("SKILLCONNECT_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("SKILLCONNECT_TEST_POSTGRES_DSN not set")
	}

	ctx := context.Background()
	store, err := NewDB(ctx, dsn, "integration")
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.RunMigrations(ctx))
	require.NoError(t, store.Delete(ctx, db.KeyToken))

	_, err = store.Get(ctx, db.KeyToken)
	assert.ErrorIs(t, err, db.ErrNotFound)

	require.NoError(t, store.Set(ctx, db.KeyToken, "first"))
	require.NoError(t, store.Set(ctx, db.KeyToken, "second"))

	v, err := store.Get(ctx, db.KeyToken)
	require.NoError(t, err)
	assert.Equal(t, "second", v)

	require.NoError(t, store.Delete(ctx, db.KeyToken))
}
