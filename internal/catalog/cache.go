// Package catalog provides a Redis read-through cache in front of catalog reads.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/fjod/storefront/internal/domain"
	"github.com/redis/go-redis/v9"
)

var ErrCacheMiss = errors.New("cache miss")

type Source interface {
	ListProducts(ctx context.Context) ([]domain.Product, error)
	ListFeaturedProducts(ctx context.Context) ([]domain.Product, error)
	ListProductsByCategory(ctx context.Context, category string) ([]domain.Product, error)
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
}

// Cached serves catalog reads from Redis and falls through to the source on a
// miss. Redis failures are logged and never fail a read. Errors from the
// source, including not-found, are not cached.
type Cached struct {
	source  Source
	client  *redis.Client
	baseTTL time.Duration
	logger  *slog.Logger
}

func NewCached(source Source, client *redis.Client, baseTTL time.Duration, logger *slog.Logger) *Cached {
	if baseTTL <= 0 {
		baseTTL = 5 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Cached{
		source:  source,
		client:  client,
		baseTTL: baseTTL,
		logger:  logger.With("component", "catalog_cache"),
	}
}

func (c *Cached) ListProducts(ctx context.Context) ([]domain.Product, error) {
	return readThrough(ctx, c, "catalog:products", func() ([]domain.Product, error) {
		return c.source.ListProducts(ctx)
	})
}

func (c *Cached) ListFeaturedProducts(ctx context.Context) ([]domain.Product, error) {
	return readThrough(ctx, c, "catalog:featured", func() ([]domain.Product, error) {
		return c.source.ListFeaturedProducts(ctx)
	})
}

func (c *Cached) ListProductsByCategory(ctx context.Context, category string) ([]domain.Product, error) {
	return readThrough(ctx, c, "catalog:category:"+category, func() ([]domain.Product, error) {
		return c.source.ListProductsByCategory(ctx, category)
	})
}

func (c *Cached) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	return readThrough(ctx, c, "catalog:product:"+id, func() (*domain.Product, error) {
		return c.source.GetProduct(ctx, id)
	})
}

// Invalidate drops every cached catalog key.
func (c *Cached) Invalidate(ctx context.Context) error {
	iter := c.client.Scan(ctx, 0, "catalog:*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("redis scan failed: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

func readThrough[T any](ctx context.Context, c *Cached, key string, load func() (T, error)) (T, error) {
	cached, err := get[T](ctx, c.client, key)
	if err == nil {
		return cached, nil
	}
	if !errors.Is(err, ErrCacheMiss) {
		c.logger.WarnContext(ctx, "catalog cache read failed", "key", key, "error", err)
	}

	v, err := load()
	if err != nil {
		return v, err
	}

	if err := set(ctx, c.client, key, v, c.ttl()); err != nil {
		c.logger.WarnContext(ctx, "catalog cache write failed", "key", key, "error", err)
	}
	return v, nil
}

// ttl spreads expiry so keys written together do not all expire together.
func (c *Cached) ttl() time.Duration {
	jitter := time.Duration(rand.Int63n(int64(c.baseTTL/5) + 1))
	return c.baseTTL + jitter
}

func get[T any](ctx context.Context, client *redis.Client, key string) (T, error) {
	var v T
	data, err := client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return v, ErrCacheMiss
	}
	if err != nil {
		return v, fmt.Errorf("redis get failed: %w", err)
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return v, fmt.Errorf("unmarshal %s failed: %w", key, err)
	}
	return v, nil
}

func set(ctx context.Context, client *redis.Client, key string, v any, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s failed: %w", key, err)
	}
	if err := client.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}
