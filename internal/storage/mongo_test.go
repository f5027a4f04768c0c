package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/mongodb"
)

func setupTestMongo(t *testing.T) (*Mongo, func()) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	ctx := context.Background()

	mongoContainer, err := mongodb.Run(ctx, "mongo:7")
	require.NoError(t, err)

	uri, err := mongoContainer.ConnectionString(ctx)
	require.NoError(t, err)

	db, err := ConnectMongoDB(ctx, uri, "testdb")
	require.NoError(t, err)

	store := NewMongo(db)

	cleanup := func() {
		_ = store.Close(ctx)
		if err := mongoContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	}

	return store, cleanup
}

func TestMongo_GetMissing(t *testing.T) {
	store, cleanup := setupTestMongo(t)
	defer cleanup()

	data, err := store.Get(context.Background(), "cart-storage")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Nil(t, data)
}

func TestMongo_UpsertAndDelete(t *testing.T) {
	store, cleanup := setupTestMongo(t)
	defer cleanup()
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "cart-storage", []byte("v1")))
	require.NoError(t, store.Set(ctx, "cart-storage", []byte("v2")))

	data, err := store.Get(ctx, "cart-storage")
	require.NoError(t, err)
	assert.Equal(t, "v2", string(data))

	count, err := store.collection.CountDocuments(ctx, map[string]string{"_id": "cart-storage"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	require.NoError(t, store.Delete(ctx, "cart-storage"))
	_, err = store.Get(ctx, "cart-storage")
	assert.ErrorIs(t, err, ErrNotFound)
}
