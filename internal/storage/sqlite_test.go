package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestSQLite(t *testing.T, path string) *SQLite {
	store, err := NewSQLite(path)
	require.NoError(t, err)

	require.NoError(t, store.RunMigrations("./migrations"))
	return store
}

func TestSQLite_GetSetDelete(t *testing.T) {
	store := setupTestSQLite(t, ":memory:")
	defer store.Close()
	ctx := context.Background()

	_, err := store.Get(ctx, "cart-storage")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.Set(ctx, "cart-storage", []byte(`{"a":1}`)))
	require.NoError(t, store.Set(ctx, "cart-storage", []byte(`{"a":2}`)))

	data, err := store.Get(ctx, "cart-storage")
	require.NoError(t, err)
	assert.Equal(t, `{"a":2}`, string(data))

	require.NoError(t, store.Delete(ctx, "cart-storage"))
	_, err = store.Get(ctx, "cart-storage")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLite_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "device.db")
	ctx := context.Background()

	first := setupTestSQLite(t, path)
	require.NoError(t, first.Set(ctx, "auth-storage", []byte("session")))
	require.NoError(t, first.Close())

	second := setupTestSQLite(t, path)
	defer second.Close()

	data, err := second.Get(ctx, "auth-storage")
	require.NoError(t, err)
	assert.Equal(t, "session", string(data))
}
