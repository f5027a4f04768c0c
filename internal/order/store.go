package order

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/internal/metrics"
	"github.com/fjod/storefront/internal/repository"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/fjod/storefront/internal/order"

// Store creates and reads orders on the remote backend and keeps a local copy
// of the last fetched list. Remote calls are not serialized: concurrent calls
// run independently and the last one to finish owns the cached list, the
// loading flag and the error.
type Store struct {
	auth      Authenticator
	backend   Backend
	publisher Publisher
	logger    *slog.Logger
	tracer    trace.Tracer
	now       func() time.Time

	mu      sync.RWMutex
	orders  []domain.Order
	loading bool
	err     error
}

type Option func(*Store)

func WithPublisher(p Publisher) Option {
	return func(s *Store) { s.publisher = p }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func NewStore(auth Authenticator, backend Backend, opts ...Option) *Store {
	s := &Store{
		auth:    auth,
		backend: backend,
		logger:  slog.Default(),
		tracer:  otel.Tracer(tracerName),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	s.logger = s.logger.With("component", "orders")
	return s
}

func (s *Store) Orders() []domain.Order {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Order, len(s.orders))
	copy(out, s.orders)
	return out
}

func (s *Store) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

// Err is the failure recorded by the most recent operation, nil if it succeeded.
func (s *Store) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}

// CreateOrder writes the order header, its shipping details and its items as
// separate remote inserts. A failure after the header insert leaves the earlier
// rows in place. The returned id is empty whenever err is non-nil.
func (s *Store) CreateOrder(ctx context.Context, in domain.NewOrder) (id string, err error) {
	ctx, span := s.begin(ctx, "create_order")
	defer func() { s.end(ctx, span, "create_order", err) }()

	user, err := s.currentUser(ctx)
	if err != nil {
		return "", err
	}

	userID := s.ensureProfile(ctx, user, in.ShippingDetails)

	header, err := s.backend.InsertOrder(ctx, domain.OrderRecord{
		UserID: userID,
		Total:  in.Total,
		Status: domain.OrderStatusPending,
	})
	if err != nil {
		return "", fmt.Errorf("%w: insert order: %w", ErrCreateOrder, err)
	}
	if header == nil || header.ID == "" {
		return "", fmt.Errorf("%w: no order returned", ErrCreateOrder)
	}
	span.SetAttributes(attribute.String("order.id", header.ID))

	if err := s.backend.InsertShippingDetails(ctx, domain.ShippingRecordFor(header.ID, in.ShippingDetails)); err != nil {
		return "", fmt.Errorf("%w: insert shipping details for order %s: %w", ErrCreateOrder, header.ID, err)
	}

	items := make([]domain.OrderItemRecord, 0, len(in.Items))
	for _, item := range in.Items {
		items = append(items, domain.OrderItemRecord{
			OrderID:   header.ID,
			ProductID: item.ID,
			Quantity:  item.Quantity,
			Price:     item.Price,
		})
	}
	if err := s.backend.InsertOrderItems(ctx, items); err != nil {
		return "", fmt.Errorf("%w: insert items for order %s: %w", ErrCreateOrder, header.ID, err)
	}

	created := domain.Order{
		ID:              header.ID,
		UserID:          header.UserID,
		Items:           domain.OrderItemsFromCart(in.Items),
		ShippingDetails: in.ShippingDetails,
		Total:           in.Total,
		Status:          header.Status,
		CreatedAt:       header.CreatedAt,
		UpdatedAt:       header.UpdatedAt,
	}
	if created.Status == "" {
		created.Status = domain.OrderStatusPending
	}

	s.mu.Lock()
	s.orders = append(s.orders, created)
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "order created", "order_id", header.ID, "user_id", userID, "items", len(items))
	s.publishCreated(ctx, created)
	return header.ID, nil
}

// GetOrder returns nil, nil when the order does not exist.
func (s *Store) GetOrder(ctx context.Context, orderID string) (order *domain.Order, err error) {
	ctx, span := s.begin(ctx, "get_order")
	defer func() { s.end(ctx, span, "get_order", err) }()
	span.SetAttributes(attribute.String("order.id", orderID))

	rec, err := s.backend.GetOrder(ctx, orderID)
	if errors.Is(err, repository.ErrOrderNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w %s: %w", ErrFetchOrder, orderID, err)
	}
	if rec == nil {
		return nil, nil
	}

	o := toOrder(*rec)
	return &o, nil
}

// GetOrders replaces the cached list with the signed-in user's orders, newest
// first. Any failure empties the cached list.
func (s *Store) GetOrders(ctx context.Context) (orders []domain.Order, err error) {
	ctx, span := s.begin(ctx, "get_orders")
	defer func() { s.end(ctx, span, "get_orders", err) }()
	defer func() {
		if err != nil {
			s.mu.Lock()
			s.orders = []domain.Order{}
			s.mu.Unlock()
		}
	}()

	user, err := s.currentUser(ctx)
	if err != nil {
		return nil, err
	}

	recs, err := s.backend.ListOrders(ctx, domain.OrderFilter{UserID: user.ID})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetchOrders, err)
	}

	orders = toOrders(recs)
	s.replace(orders)
	s.logger.DebugContext(ctx, "fetched orders", "user_id", user.ID, "count", len(orders))
	return orders, nil
}

// GetAdminOrders replaces the cached list with every order, each carrying its
// owner's name and email. On failure the cached list is left as it was.
func (s *Store) GetAdminOrders(ctx context.Context) (orders []domain.Order, err error) {
	ctx, span := s.begin(ctx, "get_admin_orders")
	defer func() { s.end(ctx, span, "get_admin_orders", err) }()

	recs, err := s.backend.ListOrders(ctx, domain.OrderFilter{WithCustomer: true})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetchOrders, err)
	}

	orders = toOrders(recs)
	s.replace(orders)
	return orders, nil
}

// UpdateOrderStatus sets any known status regardless of the current one.
// The error is recorded and also returned.
func (s *Store) UpdateOrderStatus(ctx context.Context, orderID string, status domain.OrderStatus) (err error) {
	ctx, span := s.begin(ctx, "update_order_status")
	defer func() { s.end(ctx, span, "update_order_status", err) }()
	span.SetAttributes(
		attribute.String("order.id", orderID),
		attribute.String("order.status", status.String()),
	)

	if !status.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	s.logger.InfoContext(ctx, "updating order status", "order_id", orderID, "status", status)

	now := s.now().UTC()
	if err := s.backend.UpdateOrderStatus(ctx, orderID, status, now); err != nil {
		return fmt.Errorf("%w %s: %w", ErrUpdateStatus, orderID, err)
	}

	s.mu.Lock()
	for i := range s.orders {
		if s.orders[i].ID == orderID {
			s.orders[i].Status = status
			s.orders[i].UpdatedAt = now
		}
	}
	s.mu.Unlock()

	s.publishStatusChanged(ctx, orderID, status, now)
	return nil
}

func (s *Store) currentUser(ctx context.Context) (*domain.Identity, error) {
	user, err := s.auth.CurrentUser(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAuthRequired, err)
	}
	if user == nil {
		return nil, ErrAuthRequired
	}
	return user, nil
}

// ensureProfile makes sure a user profile row exists for the identity. Its
// failures are logged and dropped; the orders.user_id constraint is what
// ultimately rejects an order without a profile.
func (s *Store) ensureProfile(ctx context.Context, user *domain.Identity, d domain.ShippingDetails) string {
	userID := user.ID

	existing, err := s.backend.GetUserProfile(ctx, user.ID)
	if err != nil {
		s.logger.WarnContext(ctx, "user profile lookup failed", "user_id", user.ID, "error", err)
	}
	if existing != nil {
		return userID
	}

	s.logger.InfoContext(ctx, "user profile not found, creating", "user_id", user.ID)
	created, err := s.backend.InsertUserProfile(ctx, domain.UserRecord{
		ID:        user.ID,
		Email:     user.Email,
		FirstName: d.FirstName,
		LastName:  d.LastName,
		Phone:     d.Phone,
		Address:   d.Address,
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "user profile creation failed, continuing with order", "user_id", user.ID, "error", err)
		return userID
	}
	if created != nil && created.ID != "" {
		userID = created.ID
	}
	return userID
}

func (s *Store) replace(orders []domain.Order) {
	cached := make([]domain.Order, len(orders))
	copy(cached, orders)

	s.mu.Lock()
	s.orders = cached
	s.mu.Unlock()
}

func (s *Store) begin(ctx context.Context, op string) (context.Context, trace.Span) {
	ctx, span := s.tracer.Start(ctx, "order."+op)

	s.mu.Lock()
	s.loading = true
	s.err = nil
	s.mu.Unlock()

	return ctx, span
}

func (s *Store) end(ctx context.Context, span trace.Span, op string, err error) {
	s.mu.Lock()
	s.loading = false
	if err != nil {
		s.err = err
	}
	s.mu.Unlock()

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.logger.ErrorContext(ctx, "order operation failed", "op", op, "error", err)
	}
	metrics.ObserveOrderOperation(op, err)
	span.End()
}

func (s *Store) publishCreated(ctx context.Context, o domain.Order) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.OrderCreated(ctx, o); err != nil {
		s.logger.WarnContext(ctx, "publish order created failed", "order_id", o.ID, "error", err)
	}
}

func (s *Store) publishStatusChanged(ctx context.Context, orderID string, status domain.OrderStatus, at time.Time) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.OrderStatusChanged(ctx, orderID, status, at); err != nil {
		s.logger.WarnContext(ctx, "publish status change failed", "order_id", orderID, "error", err)
	}
}
