package order

import (
	"context"

	"github.com/fjod/storefront/internal/domain"
)

// PerRequest runs every call on a fresh Store, so nothing a caller creates or
// lists stays cached once the call returns. The HTTP API serves all users
// from one process and uses it in place of a long-lived Store.
type PerRequest struct {
	newStore func() *Store
}

func NewPerRequest(auth Authenticator, backend Backend, opts ...Option) *PerRequest {
	return &PerRequest{
		newStore: func() *Store { return NewStore(auth, backend, opts...) },
	}
}

func (p *PerRequest) CreateOrder(ctx context.Context, in domain.NewOrder) (string, error) {
	return p.newStore().CreateOrder(ctx, in)
}

func (p *PerRequest) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	return p.newStore().GetOrder(ctx, orderID)
}

func (p *PerRequest) GetOrders(ctx context.Context) ([]domain.Order, error) {
	return p.newStore().GetOrders(ctx)
}

func (p *PerRequest) GetAdminOrders(ctx context.Context) ([]domain.Order, error) {
	return p.newStore().GetAdminOrders(ctx)
}

func (p *PerRequest) UpdateOrderStatus(ctx context.Context, orderID string, status domain.OrderStatus) error {
	return p.newStore().UpdateOrderStatus(ctx, orderID, status)
}
