package repository

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/pkg/circuitbreaker"
)

// Guarded routes every OrderRepository call through a circuit breaker so a
// failing database is not hammered by checkout retries.
type Guarded struct {
	next OrderRepository
	cb   *circuitbreaker.Breaker
}

func NewGuarded(next OrderRepository, settings circuitbreaker.Settings, logger *slog.Logger) *Guarded {
	if settings.IsSuccessful == nil {
		settings.IsSuccessful = expectedMiss
	}
	return &Guarded{next: next, cb: circuitbreaker.New(settings, logger)}
}

// expectedMiss keeps lookups of absent rows from counting as failures.
func expectedMiss(err error) bool {
	return err == nil ||
		errors.Is(err, ErrOrderNotFound) ||
		errors.Is(err, ErrDuplicateProfile) ||
		errors.Is(err, context.Canceled)
}

func (g *Guarded) State() string {
	return g.cb.State()
}

func (g *Guarded) GetUserProfile(ctx context.Context, userID string) (*domain.UserRecord, error) {
	return circuitbreaker.Execute(g.cb, func() (*domain.UserRecord, error) {
		return g.next.GetUserProfile(ctx, userID)
	})
}

func (g *Guarded) InsertUserProfile(ctx context.Context, user domain.UserRecord) (*domain.UserRecord, error) {
	return circuitbreaker.Execute(g.cb, func() (*domain.UserRecord, error) {
		return g.next.InsertUserProfile(ctx, user)
	})
}

func (g *Guarded) InsertOrder(ctx context.Context, order domain.OrderRecord) (*domain.OrderRecord, error) {
	return circuitbreaker.Execute(g.cb, func() (*domain.OrderRecord, error) {
		return g.next.InsertOrder(ctx, order)
	})
}

func (g *Guarded) InsertShippingDetails(ctx context.Context, details domain.ShippingRecord) error {
	return circuitbreaker.Run(g.cb, func() error {
		return g.next.InsertShippingDetails(ctx, details)
	})
}

func (g *Guarded) InsertOrderItems(ctx context.Context, items []domain.OrderItemRecord) error {
	return circuitbreaker.Run(g.cb, func() error {
		return g.next.InsertOrderItems(ctx, items)
	})
}

func (g *Guarded) GetOrder(ctx context.Context, orderID string) (*domain.OrderRecord, error) {
	return circuitbreaker.Execute(g.cb, func() (*domain.OrderRecord, error) {
		return g.next.GetOrder(ctx, orderID)
	})
}

func (g *Guarded) ListOrders(ctx context.Context, filter domain.OrderFilter) ([]domain.OrderRecord, error) {
	return circuitbreaker.Execute(g.cb, func() ([]domain.OrderRecord, error) {
		return g.next.ListOrders(ctx, filter)
	})
}

func (g *Guarded) UpdateOrderStatus(ctx context.Context, orderID string, status domain.OrderStatus, updatedAt time.Time) error {
	return circuitbreaker.Run(g.cb, func() error {
		return g.next.UpdateOrderStatus(ctx, orderID, status, updatedAt)
	})
}
