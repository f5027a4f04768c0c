package repository

import (
	"context"
	"errors"
	"time"

	"github.com/fjod/storefront/internal/domain"
)

var (
	ErrOrderNotFound      = errors.New("order not found")
	ErrProductNotFound    = errors.New("product not found")
	ErrUserNotFound       = errors.New("user not found")
	ErrDuplicateProfile   = errors.New("user profile already exists")
	ErrEmailTaken         = errors.New("email already registered")
	ErrWeakPassword       = errors.New("password should be at least 6 characters")
	ErrInvalidCredentials = errors.New("invalid login credentials")
	ErrSessionNotFound    = errors.New("session not found or expired")
)

const (
	defaultSessionTTL = 24 * time.Hour
	resetTokenTTL     = time.Hour
	minPasswordLength = 6
)

type Credentials struct {
	Host              string
	Port              int
	User              string
	Password          string
	DBName            string
	SSLMode           string
	MigrationsDirPath string
}

// OrderRepository is the order-facing half of the remote collaborator.
type OrderRepository interface {
	GetUserProfile(ctx context.Context, userID string) (*domain.UserRecord, error)
	InsertUserProfile(ctx context.Context, user domain.UserRecord) (*domain.UserRecord, error)
	InsertOrder(ctx context.Context, order domain.OrderRecord) (*domain.OrderRecord, error)
	InsertShippingDetails(ctx context.Context, details domain.ShippingRecord) error
	InsertOrderItems(ctx context.Context, items []domain.OrderItemRecord) error
	GetOrder(ctx context.Context, orderID string) (*domain.OrderRecord, error)
	ListOrders(ctx context.Context, filter domain.OrderFilter) ([]domain.OrderRecord, error)
	UpdateOrderStatus(ctx context.Context, orderID string, status domain.OrderStatus, updatedAt time.Time) error
}
