package order

import (
	"context"
	"errors"
	"time"

	"github.com/fjod/storefront/internal/domain"
)

var (
	ErrAuthRequired  = errors.New("user must be authenticated")
	ErrInvalidStatus = errors.New("invalid order status")
	ErrCreateOrder   = errors.New("failed to create order")
	ErrFetchOrder    = errors.New("failed to fetch order")
	ErrFetchOrders   = errors.New("failed to fetch orders")
	ErrUpdateStatus  = errors.New("failed to update order status")
)

// Authenticator resolves the signed-in identity. A nil identity with a nil
// error means nobody is signed in.
type Authenticator interface {
	CurrentUser(ctx context.Context) (*domain.Identity, error)
}

// Backend is the remote collaborator holding users, orders, shipping details
// and order items. Each call is an independent request; nothing spans calls.
type Backend interface {
	// GetUserProfile returns nil, nil when no profile exists.
	GetUserProfile(ctx context.Context, userID string) (*domain.UserRecord, error)
	InsertUserProfile(ctx context.Context, user domain.UserRecord) (*domain.UserRecord, error)
	InsertOrder(ctx context.Context, order domain.OrderRecord) (*domain.OrderRecord, error)
	InsertShippingDetails(ctx context.Context, details domain.ShippingRecord) error
	InsertOrderItems(ctx context.Context, items []domain.OrderItemRecord) error
	// GetOrder expands items (with products) and shipping details.
	GetOrder(ctx context.Context, orderID string) (*domain.OrderRecord, error)
	// ListOrders returns newest first, expanded like GetOrder.
	ListOrders(ctx context.Context, filter domain.OrderFilter) ([]domain.OrderRecord, error)
	UpdateOrderStatus(ctx context.Context, orderID string, status domain.OrderStatus, updatedAt time.Time) error
}

type Publisher interface {
	OrderCreated(ctx context.Context, order domain.Order) error
	OrderStatusChanged(ctx context.Context, orderID string, status domain.OrderStatus, at time.Time) error
}
