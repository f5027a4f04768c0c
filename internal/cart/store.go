package cart

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/internal/metrics"
	"github.com/fjod/storefront/internal/storage"
)

// StorageKey is where the cart snapshot lives in device storage.
const StorageKey = "cart-storage"

type snapshot struct {
	Items []domain.CartItem `json:"items"`
}

// Store is the shopper's working selection. Mutations apply to the in-memory
// slice first and are then written to device storage; a failed write is logged
// and the in-memory state stays authoritative.
type Store struct {
	mu    sync.RWMutex
	items []domain.CartItem

	// held across a write so snapshots land in mutation order
	persistMu sync.Mutex

	storage storage.Storage
	logger  *slog.Logger
}

func NewStore(ctx context.Context, s storage.Storage, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	store := &Store{
		storage: s,
		logger:  logger.With("component", "cart"),
	}
	store.restore(ctx)
	return store
}

func (s *Store) restore(ctx context.Context) {
	state, err := storage.LoadState[snapshot](ctx, s.storage, StorageKey)
	if errors.Is(err, storage.ErrNotFound) {
		return
	}
	if err != nil {
		s.logger.ErrorContext(ctx, "cart restore failed, starting empty", "error", err)
		return
	}
	s.items = state.Items
}

func (s *Store) AddToCart(ctx context.Context, item domain.CartItem) {
	s.mutate(ctx, "add", func(items []domain.CartItem) []domain.CartItem {
		for i := range items {
			if items[i].ID == item.ID {
				items[i].Quantity += item.Quantity
				return items
			}
		}
		return append(items, item)
	})
}

func (s *Store) RemoveFromCart(ctx context.Context, productID string) {
	s.mutate(ctx, "remove", func(items []domain.CartItem) []domain.CartItem {
		kept := items[:0]
		for _, item := range items {
			if item.ID != productID {
				kept = append(kept, item)
			}
		}
		return kept
	})
}

// UpdateQuantity replaces the quantity of the matching entry. The value is not
// validated; callers remove entries explicitly.
func (s *Store) UpdateQuantity(ctx context.Context, productID string, quantity int) {
	s.mutate(ctx, "update_quantity", func(items []domain.CartItem) []domain.CartItem {
		for i := range items {
			if items[i].ID == productID {
				items[i].Quantity = quantity
			}
		}
		return items
	})
}

func (s *Store) ClearCart(ctx context.Context) {
	s.mutate(ctx, "clear", func([]domain.CartItem) []domain.CartItem {
		return nil
	})
}

func (s *Store) Items() []domain.CartItem {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.CartItem, len(s.items))
	copy(out, s.items)
	return out
}

func (s *Store) Total() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return domain.CartTotal(s.items)
}

func (s *Store) ItemCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return domain.CartItemCount(s.items)
}

func (s *Store) mutate(ctx context.Context, op string, fn func([]domain.CartItem) []domain.CartItem) {
	s.mu.Lock()
	s.items = fn(s.items)
	snap := snapshot{Items: make([]domain.CartItem, len(s.items))}
	copy(snap.Items, s.items)
	s.persistMu.Lock()
	s.mu.Unlock()
	defer s.persistMu.Unlock()

	metrics.CartMutations.WithLabelValues(op).Inc()

	if err := storage.SaveState(ctx, s.storage, StorageKey, snap); err != nil {
		s.logger.WarnContext(ctx, "cart persist failed", "op", op, "error", err)
	}
}
