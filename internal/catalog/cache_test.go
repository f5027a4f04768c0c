package catalog

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/internal/repository"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingSource struct {
	m     sync.RWMutex
	inner Source
	calls map[string]int
	err   error
}

func (s *countingSource) count(op string) {
	s.m.Lock()
	defer s.m.Unlock()
	if s.calls == nil {
		s.calls = map[string]int{}
	}
	s.calls[op]++
}

func (s *countingSource) Calls(op string) int {
	s.m.RLock()
	defer s.m.RUnlock()
	return s.calls[op]
}

func (s *countingSource) ListProducts(ctx context.Context) ([]domain.Product, error) {
	s.count("list")
	if s.err != nil {
		return nil, s.err
	}
	return s.inner.ListProducts(ctx)
}

func (s *countingSource) ListFeaturedProducts(ctx context.Context) ([]domain.Product, error) {
	s.count("featured")
	return s.inner.ListFeaturedProducts(ctx)
}

func (s *countingSource) ListProductsByCategory(ctx context.Context, category string) ([]domain.Product, error) {
	s.count("category")
	return s.inner.ListProductsByCategory(ctx, category)
}

func (s *countingSource) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	s.count("get")
	return s.inner.GetProduct(ctx, id)
}

func setupCache(t *testing.T) (*Cached, *countingSource, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), DialTimeout: 200 * time.Millisecond, MaxRetries: -1})
	t.Cleanup(func() { client.Close() })

	src := &countingSource{inner: repository.NewMemoryRepository(repository.SeedProducts(time.Now())...)}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewCached(src, client, time.Minute, logger), src, mr
}

func TestCached_ListServedFromCache(t *testing.T) {
	c, src, mr := setupCache(t)
	ctx := context.Background()

	first, err := c.ListProducts(ctx)
	require.NoError(t, err)
	second, err := c.ListProducts(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, src.Calls("list"))
	require.Len(t, second, len(first))
	assert.Equal(t, first[0].ID, second[0].ID)
	assert.True(t, mr.Exists("catalog:products"))

	ttl := mr.TTL("catalog:products")
	assert.GreaterOrEqual(t, ttl, time.Minute)
	assert.LessOrEqual(t, ttl, time.Minute+12*time.Second)
}

func TestCached_KeysPerQuery(t *testing.T) {
	c, src, mr := setupCache(t)
	ctx := context.Background()

	home, err := c.ListProductsByCategory(ctx, "home")
	require.NoError(t, err)
	assert.Len(t, home, 2)
	_, err = c.ListProductsByCategory(ctx, "clothing")
	require.NoError(t, err)
	_, err = c.ListFeaturedProducts(ctx)
	require.NoError(t, err)

	assert.Equal(t, 2, src.Calls("category"))
	assert.True(t, mr.Exists("catalog:category:home"))
	assert.True(t, mr.Exists("catalog:category:clothing"))
	assert.True(t, mr.Exists("catalog:featured"))
}

func TestCached_NotFoundIsNotCached(t *testing.T) {
	c, src, mr := setupCache(t)
	ctx := context.Background()

	_, err := c.GetProduct(ctx, "ghost")
	assert.ErrorIs(t, err, repository.ErrProductNotFound)
	_, err = c.GetProduct(ctx, "ghost")
	assert.ErrorIs(t, err, repository.ErrProductNotFound)

	assert.Equal(t, 2, src.Calls("get"))
	assert.False(t, mr.Exists("catalog:product:ghost"))
}

func TestCached_SourceErrorPropagates(t *testing.T) {
	c, src, _ := setupCache(t)
	src.err = errors.New("connection refused")

	_, err := c.ListProducts(context.Background())
	assert.ErrorContains(t, err, "connection refused")
}

func TestCached_RedisDownFallsThrough(t *testing.T) {
	c, src, mr := setupCache(t)
	mr.Close()

	products, err := c.ListProducts(context.Background())
	require.NoError(t, err)
	assert.Len(t, products, 5)
	assert.Equal(t, 1, src.Calls("list"))
}

func TestCached_CorruptEntryReloads(t *testing.T) {
	c, src, mr := setupCache(t)
	require.NoError(t, mr.Set("catalog:featured", "{broken"))

	products, err := c.ListFeaturedProducts(context.Background())
	require.NoError(t, err)
	assert.Len(t, products, 3)
	assert.Equal(t, 1, src.Calls("featured"))
}

func TestCached_Invalidate(t *testing.T) {
	c, src, mr := setupCache(t)
	ctx := context.Background()
	require.NoError(t, mr.Set("device:cart-storage", "{}"))

	_, err := c.ListProducts(ctx)
	require.NoError(t, err)
	_, err = c.GetProduct(ctx, "8c5c7d4e-2f1a-4b8e-9a63-1f0d2b7c9e01")
	require.NoError(t, err)

	require.NoError(t, c.Invalidate(ctx))
	assert.False(t, mr.Exists("catalog:products"))
	assert.True(t, mr.Exists("device:cart-storage"), "only catalog keys are dropped")

	_, err = c.ListProducts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, src.Calls("list"))
}
