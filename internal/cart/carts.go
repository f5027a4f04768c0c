package cart

import (
	"context"
	"log/slog"
	"sync"

	"github.com/fjod/storefront/internal/storage"
)

// Carts hands out one Store per signed-in owner, each persisted under its own
// key prefix. Callers without an owner share the device cart.
type Carts struct {
	mu      sync.Mutex
	device  *Store
	owners  map[string]*Store
	storage storage.Storage
	logger  *slog.Logger
}

func NewCarts(device *Store, st storage.Storage, logger *slog.Logger) *Carts {
	if logger == nil {
		logger = slog.Default()
	}
	return &Carts{
		device:  device,
		owners:  make(map[string]*Store),
		storage: st,
		logger:  logger,
	}
}

// For returns the owner's cart, restoring it from storage on first use.
func (c *Carts) For(ctx context.Context, ownerID string) *Store {
	if ownerID == "" {
		return c.device
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if s, ok := c.owners[ownerID]; ok {
		return s
	}
	s := NewStore(ctx, storage.NewPrefixed(c.storage, OwnerPrefix(ownerID)), c.logger.With("owner_id", ownerID))
	c.owners[ownerID] = s
	return s
}

func OwnerPrefix(ownerID string) string {
	return "users/" + ownerID + "/"
}
