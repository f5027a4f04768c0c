package order

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockAuth struct {
	m    sync.RWMutex
	user *domain.Identity
	err  error
}

func (a *mockAuth) CurrentUser(_ context.Context) (*domain.Identity, error) {
	a.m.RLock()
	defer a.m.RUnlock()
	return a.user, a.err
}

type mockBackend struct {
	m sync.RWMutex

	profiles map[string]domain.UserRecord
	orders   map[string]domain.OrderRecord
	listed   []domain.OrderRecord
	nextID   int

	getProfileErr    error
	insertProfileErr error
	insertOrderErr   error
	shippingErr      error
	itemsErr         error
	getOrderErr      error
	listErr          error
	updateErr        error

	calls       []string
	shipping    []domain.ShippingRecord
	items       []domain.OrderItemRecord
	lastFilter  domain.OrderFilter
	statusCalls int
}

func newMockBackend() *mockBackend {
	return &mockBackend{
		profiles: make(map[string]domain.UserRecord),
		orders:   make(map[string]domain.OrderRecord),
	}
}

func (b *mockBackend) record(call string) {
	b.calls = append(b.calls, call)
}

func (b *mockBackend) GetUserProfile(_ context.Context, userID string) (*domain.UserRecord, error) {
	b.m.Lock()
	defer b.m.Unlock()
	b.record("get_profile")
	if b.getProfileErr != nil {
		return nil, b.getProfileErr
	}
	u, ok := b.profiles[userID]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (b *mockBackend) InsertUserProfile(_ context.Context, user domain.UserRecord) (*domain.UserRecord, error) {
	b.m.Lock()
	defer b.m.Unlock()
	b.record("insert_profile")
	if b.insertProfileErr != nil {
		return nil, b.insertProfileErr
	}
	b.profiles[user.ID] = user
	return &user, nil
}

func (b *mockBackend) InsertOrder(_ context.Context, order domain.OrderRecord) (*domain.OrderRecord, error) {
	b.m.Lock()
	defer b.m.Unlock()
	b.record("insert_order")
	if b.insertOrderErr != nil {
		return nil, b.insertOrderErr
	}
	b.nextID++
	order.ID = fmt.Sprintf("order-%d", b.nextID)
	order.CreatedAt = time.Date(2024, 1, 1, 0, 0, b.nextID, 0, time.UTC)
	order.UpdatedAt = order.CreatedAt
	b.orders[order.ID] = order
	return &order, nil
}

func (b *mockBackend) InsertShippingDetails(_ context.Context, d domain.ShippingRecord) error {
	b.m.Lock()
	defer b.m.Unlock()
	b.record("insert_shipping")
	if b.shippingErr != nil {
		return b.shippingErr
	}
	b.shipping = append(b.shipping, d)
	return nil
}

func (b *mockBackend) InsertOrderItems(_ context.Context, items []domain.OrderItemRecord) error {
	b.m.Lock()
	defer b.m.Unlock()
	b.record("insert_items")
	if b.itemsErr != nil {
		return b.itemsErr
	}
	b.items = append(b.items, items...)
	return nil
}

func (b *mockBackend) GetOrder(_ context.Context, orderID string) (*domain.OrderRecord, error) {
	b.m.Lock()
	defer b.m.Unlock()
	b.record("get_order")
	if b.getOrderErr != nil {
		return nil, b.getOrderErr
	}
	o, ok := b.orders[orderID]
	if !ok {
		return nil, repository.ErrOrderNotFound
	}
	return &o, nil
}

func (b *mockBackend) ListOrders(_ context.Context, filter domain.OrderFilter) ([]domain.OrderRecord, error) {
	b.m.Lock()
	defer b.m.Unlock()
	b.record("list_orders")
	b.lastFilter = filter
	if b.listErr != nil {
		return nil, b.listErr
	}
	return b.listed, nil
}

func (b *mockBackend) UpdateOrderStatus(_ context.Context, orderID string, status domain.OrderStatus, updatedAt time.Time) error {
	b.m.Lock()
	defer b.m.Unlock()
	b.record("update_status")
	b.statusCalls++
	if b.updateErr != nil {
		return b.updateErr
	}
	o, ok := b.orders[orderID]
	if !ok {
		return repository.ErrOrderNotFound
	}
	o.Status = status
	o.UpdatedAt = updatedAt
	b.orders[orderID] = o
	return nil
}

func (b *mockBackend) callLog() []string {
	b.m.RLock()
	defer b.m.RUnlock()
	out := make([]string, len(b.calls))
	copy(out, b.calls)
	return out
}

type mockPublisher struct {
	m       sync.Mutex
	created []domain.Order
	changed []domain.OrderStatus
	err     error
}

func (p *mockPublisher) OrderCreated(_ context.Context, o domain.Order) error {
	p.m.Lock()
	defer p.m.Unlock()
	p.created = append(p.created, o)
	return p.err
}

func (p *mockPublisher) OrderStatusChanged(_ context.Context, _ string, status domain.OrderStatus, _ time.Time) error {
	p.m.Lock()
	defer p.m.Unlock()
	p.changed = append(p.changed, status)
	return p.err
}

var testUser = &domain.Identity{ID: "user-1", Email: "ada@example.com"}

func testShipping() domain.ShippingDetails {
	return domain.ShippingDetails{
		FirstName: "Ada",
		LastName:  "Lovelace",
		Email:     "ada@example.com",
		Phone:     "555-0100",
		Address:   "1 Main St",
		City:      "London",
		State:     "LDN",
		ZipCode:   "N1",
		Country:   "UK",
	}
}

func testOrderInput() domain.NewOrder {
	return domain.NewOrderFromCart([]domain.CartItem{
		{ID: "p1", Title: "Mug", Price: 10, Quantity: 2, ImageURL: "/mug.jpg"},
		{ID: "p2", Title: "Lamp", Price: 5, Quantity: 1},
	}, testShipping())
}

func newTestStore(user *domain.Identity) (*Store, *mockBackend, *mockPublisher) {
	backend := newMockBackend()
	pub := &mockPublisher{}
	store := NewStore(&mockAuth{user: user}, backend, WithPublisher(pub))
	return store, backend, pub
}

func TestCreateOrder_Success(t *testing.T) {
	store, backend, pub := newTestStore(testUser)
	ctx := context.Background()

	in := testOrderInput()
	in.Status = domain.OrderStatusDelivered

	id, err := store.CreateOrder(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, "order-1", id)
	assert.NoError(t, store.Err())
	assert.False(t, store.Loading())

	assert.Equal(t,
		[]string{"get_profile", "insert_profile", "insert_order", "insert_shipping", "insert_items"},
		backend.callLog())

	header := backend.orders[id]
	assert.Equal(t, domain.OrderStatusPending, header.Status)
	assert.Equal(t, "user-1", header.UserID)
	assert.Equal(t, 25.0, header.Total)

	profile := backend.profiles["user-1"]
	assert.Equal(t, "ada@example.com", profile.Email)
	assert.Equal(t, "Ada", profile.FirstName)

	require.Len(t, backend.shipping, 1)
	assert.Equal(t, id, backend.shipping[0].OrderID)
	assert.Equal(t, "N1", backend.shipping[0].ZipCode)

	require.Len(t, backend.items, 2)
	assert.Equal(t, domain.OrderItemRecord{OrderID: id, ProductID: "p1", Quantity: 2, Price: 10}, backend.items[0])

	cached := store.Orders()
	require.Len(t, cached, 1)
	assert.Equal(t, id, cached[0].ID)
	assert.Equal(t, domain.OrderStatusPending, cached[0].Status)
	assert.Equal(t, "Mug", cached[0].Items[0].Title)

	require.Len(t, pub.created, 1)
	assert.Equal(t, id, pub.created[0].ID)
}

func TestCreateOrder_ExistingProfileIsReused(t *testing.T) {
	store, backend, _ := newTestStore(testUser)
	backend.profiles["user-1"] = domain.UserRecord{ID: "user-1"}

	_, err := store.CreateOrder(context.Background(), testOrderInput())
	require.NoError(t, err)
	assert.NotContains(t, backend.callLog(), "insert_profile")
}

func TestCreateOrder_Unauthenticated(t *testing.T) {
	tests := []struct {
		name string
		auth *mockAuth
	}{
		{name: "no user", auth: &mockAuth{}},
		{name: "auth lookup failed", auth: &mockAuth{err: errors.New("token expired")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := newMockBackend()
			pub := &mockPublisher{}
			store := NewStore(tt.auth, backend, WithPublisher(pub))

			id, err := store.CreateOrder(context.Background(), testOrderInput())
			assert.ErrorIs(t, err, ErrAuthRequired)
			assert.Empty(t, id)
			assert.ErrorIs(t, store.Err(), ErrAuthRequired)
			assert.False(t, store.Loading())

			assert.Empty(t, backend.callLog())
			assert.Empty(t, backend.orders)
			assert.Empty(t, store.Orders())
			assert.Empty(t, pub.created)
		})
	}
}

func TestCreateOrder_ProfileFailuresAreSwallowed(t *testing.T) {
	store, backend, _ := newTestStore(testUser)
	backend.getProfileErr = errors.New("select failed")
	backend.insertProfileErr = errors.New("insert failed")

	id, err := store.CreateOrder(context.Background(), testOrderInput())
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.NoError(t, store.Err())
	assert.Contains(t, backend.callLog(), "insert_order")
}

func TestCreateOrder_HeaderFailureAborts(t *testing.T) {
	store, backend, pub := newTestStore(testUser)
	backend.insertOrderErr = errors.New("violates foreign key constraint")

	id, err := store.CreateOrder(context.Background(), testOrderInput())
	assert.ErrorIs(t, err, ErrCreateOrder)
	assert.ErrorContains(t, err, "violates foreign key constraint")
	assert.Empty(t, id)
	assert.Equal(t, err, store.Err())

	assert.NotContains(t, backend.callLog(), "insert_shipping")
	assert.NotContains(t, backend.callLog(), "insert_items")
	assert.Empty(t, backend.orders)
	assert.Empty(t, store.Orders())
	assert.Empty(t, pub.created)
}

func TestCreateOrder_ShippingFailureOrphansHeader(t *testing.T) {
	store, backend, pub := newTestStore(testUser)
	backend.shippingErr = errors.New("shipping insert failed")

	id, err := store.CreateOrder(context.Background(), testOrderInput())
	assert.ErrorIs(t, err, ErrCreateOrder)
	assert.Empty(t, id)

	assert.Len(t, backend.orders, 1)
	assert.NotContains(t, backend.callLog(), "insert_items")
	assert.Empty(t, store.Orders())
	assert.Empty(t, pub.created)
}

func TestCreateOrder_ItemsFailureOrphansHeaderAndShipping(t *testing.T) {
	store, backend, _ := newTestStore(testUser)
	backend.itemsErr = errors.New("items insert failed")

	id, err := store.CreateOrder(context.Background(), testOrderInput())
	assert.ErrorIs(t, err, ErrCreateOrder)
	assert.Empty(t, id)

	assert.Len(t, backend.orders, 1)
	assert.Len(t, backend.shipping, 1)
	assert.Empty(t, backend.items)
	assert.Empty(t, store.Orders())
}

func TestCreateOrder_PublishFailureDoesNotFail(t *testing.T) {
	store, _, pub := newTestStore(testUser)
	pub.err = errors.New("broker unavailable")

	id, err := store.CreateOrder(context.Background(), testOrderInput())
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.NoError(t, store.Err())
}

func TestCreateOrder_ClearsPreviousError(t *testing.T) {
	store, backend, _ := newTestStore(testUser)
	backend.insertOrderErr = errors.New("boom")

	_, err := store.CreateOrder(context.Background(), testOrderInput())
	require.Error(t, err)
	require.Error(t, store.Err())

	backend.insertOrderErr = nil
	_, err = store.CreateOrder(context.Background(), testOrderInput())
	require.NoError(t, err)
	assert.NoError(t, store.Err())
}

func TestGetOrder_MapsRecord(t *testing.T) {
	store, backend, _ := newTestStore(testUser)
	created := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	backend.orders["o1"] = domain.OrderRecord{
		ID:        "o1",
		UserID:    "user-1",
		Total:     25,
		Status:    domain.OrderStatusShipped,
		CreatedAt: created,
		UpdatedAt: created,
		Items: []domain.OrderItemRecord{
			{ProductID: "p1", Quantity: 2, Price: 10, Product: &domain.Product{ID: "p1", Title: "Mug", Price: 12, ImageURL: "/mug.jpg"}},
			{ProductID: "p-gone", Quantity: 1, Price: 5},
		},
		Shipping: &domain.ShippingRecord{OrderID: "o1", FirstName: "Ada", ZipCode: "N1", Notes: "leave at door"},
	}

	got, err := store.GetOrder(context.Background(), "o1")
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Equal(t, domain.OrderStatusShipped, got.Status)
	require.Len(t, got.Items, 2)
	// price is the one recorded on the order, not the current catalog price
	assert.Equal(t, domain.OrderItem{ProductID: "p1", Title: "Mug", Price: 10, Quantity: 2, ImageURL: "/mug.jpg"}, got.Items[0])
	assert.Equal(t, domain.OrderItem{ProductID: "p-gone", Price: 5, Quantity: 1}, got.Items[1])
	assert.Equal(t, "Ada", got.ShippingDetails.FirstName)
	assert.Equal(t, "N1", got.ShippingDetails.ZipCode)
	assert.Equal(t, "leave at door", got.ShippingDetails.Notes)
}

func TestGetOrder_MissingShippingIsEmpty(t *testing.T) {
	store, backend, _ := newTestStore(testUser)
	backend.orders["o1"] = domain.OrderRecord{ID: "o1", Status: domain.OrderStatusPending}

	got, err := store.GetOrder(context.Background(), "o1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, domain.ShippingDetails{}, got.ShippingDetails)
	assert.NotNil(t, got.Items)
	assert.Empty(t, got.Items)
}

func TestGetOrder_NotFound(t *testing.T) {
	store, _, _ := newTestStore(testUser)

	got, err := store.GetOrder(context.Background(), "missing")
	assert.NoError(t, err)
	assert.Nil(t, got)
	assert.NoError(t, store.Err())
}

func TestGetOrder_FetchError(t *testing.T) {
	store, backend, _ := newTestStore(testUser)
	backend.getOrderErr = errors.New("connection refused")

	got, err := store.GetOrder(context.Background(), "o1")
	assert.Nil(t, got)
	assert.ErrorIs(t, err, ErrFetchOrder)
	assert.ErrorIs(t, store.Err(), ErrFetchOrder)
	assert.False(t, store.Loading())
}

func TestGetOrders_ReplacesCache(t *testing.T) {
	store, backend, _ := newTestStore(testUser)
	newer := time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)
	older := newer.Add(-24 * time.Hour)
	backend.listed = []domain.OrderRecord{
		{ID: "o2", UserID: "user-1", CreatedAt: newer, Status: domain.OrderStatusPending},
		{ID: "o1", UserID: "user-1", CreatedAt: older, Status: domain.OrderStatusDelivered},
	}

	_, err := store.CreateOrder(context.Background(), testOrderInput())
	require.NoError(t, err)
	require.Len(t, store.Orders(), 1)

	first, err := store.GetOrders(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.OrderFilter{UserID: "user-1"}, backend.lastFilter)

	second, err := store.GetOrders(context.Background())
	require.NoError(t, err)
	assert.Equal(t, first, second)

	cached := store.Orders()
	require.Len(t, cached, 2)
	assert.Equal(t, "o2", cached[0].ID)
	assert.Equal(t, "o1", cached[1].ID)
}

func TestGetOrders_FailureResetsCache(t *testing.T) {
	store, backend, _ := newTestStore(testUser)
	backend.listed = []domain.OrderRecord{{ID: "o1"}}

	_, err := store.GetOrders(context.Background())
	require.NoError(t, err)
	require.Len(t, store.Orders(), 1)

	backend.listErr = errors.New("timeout")
	orders, err := store.GetOrders(context.Background())
	assert.Nil(t, orders)
	assert.ErrorIs(t, err, ErrFetchOrders)
	assert.ErrorIs(t, store.Err(), ErrFetchOrders)
	assert.NotNil(t, store.Orders())
	assert.Empty(t, store.Orders())
}

func TestGetOrders_RequiresAuth(t *testing.T) {
	backend := newMockBackend()
	store := NewStore(&mockAuth{}, backend)

	_, err := store.GetOrders(context.Background())
	assert.ErrorIs(t, err, ErrAuthRequired)
	assert.Empty(t, backend.callLog())
	assert.Empty(t, store.Orders())
}

func TestGetAdminOrders(t *testing.T) {
	store, backend, _ := newTestStore(nil)
	backend.listed = []domain.OrderRecord{
		{ID: "o1", UserID: "user-2", Customer: &domain.Customer{FirstName: "Grace", Email: "grace@example.com"}},
	}

	orders, err := store.GetAdminOrders(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.OrderFilter{WithCustomer: true}, backend.lastFilter)
	require.Len(t, orders, 1)
	require.NotNil(t, orders[0].Customer)
	assert.Equal(t, "grace@example.com", orders[0].Customer.Email)
	assert.Equal(t, orders, store.Orders())
}

func TestGetAdminOrders_FailureKeepsCache(t *testing.T) {
	store, backend, _ := newTestStore(nil)
	backend.listed = []domain.OrderRecord{{ID: "o1"}}

	_, err := store.GetAdminOrders(context.Background())
	require.NoError(t, err)

	backend.listErr = errors.New("timeout")
	_, err = store.GetAdminOrders(context.Background())
	assert.ErrorIs(t, err, ErrFetchOrders)
	assert.Len(t, store.Orders(), 1)
}

func TestUpdateOrderStatus_AnyTransition(t *testing.T) {
	at := time.Date(2024, 4, 1, 10, 0, 0, 0, time.UTC)
	backend := newMockBackend()
	pub := &mockPublisher{}
	store := NewStore(&mockAuth{user: testUser}, backend, WithPublisher(pub), WithClock(func() time.Time { return at }))

	id, err := store.CreateOrder(context.Background(), testOrderInput())
	require.NoError(t, err)

	require.NoError(t, store.UpdateOrderStatus(context.Background(), id, domain.OrderStatusDelivered))
	require.NoError(t, store.UpdateOrderStatus(context.Background(), id, domain.OrderStatusPending))

	assert.Equal(t, domain.OrderStatusPending, backend.orders[id].Status)
	cached := store.Orders()
	require.Len(t, cached, 1)
	assert.Equal(t, domain.OrderStatusPending, cached[0].Status)
	assert.Equal(t, at, cached[0].UpdatedAt)
	assert.Equal(t, []domain.OrderStatus{domain.OrderStatusDelivered, domain.OrderStatusPending}, pub.changed)
}

func TestUpdateOrderStatus_ReRaisesAndRecords(t *testing.T) {
	store, backend, pub := newTestStore(testUser)
	backend.updateErr = errors.New("permission denied")

	err := store.UpdateOrderStatus(context.Background(), "o1", domain.OrderStatusShipped)
	assert.ErrorIs(t, err, ErrUpdateStatus)
	assert.ErrorContains(t, err, "permission denied")
	assert.Equal(t, err, store.Err())
	assert.False(t, store.Loading())
	assert.Empty(t, pub.changed)
}

func TestUpdateOrderStatus_InvalidStatus(t *testing.T) {
	store, backend, _ := newTestStore(testUser)

	err := store.UpdateOrderStatus(context.Background(), "o1", domain.OrderStatus("lost"))
	assert.ErrorIs(t, err, ErrInvalidStatus)
	assert.Equal(t, 0, backend.statusCalls)
}

type blockingBackend struct {
	*mockBackend
	started chan struct{}
	release chan struct{}
}

func (b *blockingBackend) GetOrder(ctx context.Context, orderID string) (*domain.OrderRecord, error) {
	close(b.started)
	<-b.release
	return b.mockBackend.GetOrder(ctx, orderID)
}

func TestLoadingFlag(t *testing.T) {
	backend := &blockingBackend{
		mockBackend: newMockBackend(),
		started:     make(chan struct{}),
		release:     make(chan struct{}),
	}
	store := NewStore(&mockAuth{user: testUser}, backend)
	assert.False(t, store.Loading())

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = store.GetOrder(context.Background(), "o1")
	}()

	<-backend.started
	assert.True(t, store.Loading())
	close(backend.release)
	<-done
	assert.False(t, store.Loading())
}

func TestConcurrentCreatesAreIndependent(t *testing.T) {
	store, backend, _ := newTestStore(testUser)
	backend.profiles["user-1"] = domain.UserRecord{ID: "user-1"}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.CreateOrder(context.Background(), testOrderInput())
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Len(t, store.Orders(), 10)
	backend.m.RLock()
	defer backend.m.RUnlock()
	assert.Len(t, backend.orders, 10)
}

func TestEndToEnd_MemoryRepository(t *testing.T) {
	repo := repository.NewMemoryRepository(
		domain.Product{ID: "p1", Title: "Mug", Price: 10, ImageURL: "/mug.jpg"},
		domain.Product{ID: "p2", Title: "Lamp", Price: 5},
	)
	store := NewStore(&mockAuth{user: testUser}, repo)
	ctx := context.Background()

	in := testOrderInput()
	id, err := store.CreateOrder(ctx, in)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	got, err := store.GetOrder(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, domain.OrderStatusPending, got.Status)
	require.Len(t, got.Items, len(in.Items))
	for i, item := range in.Items {
		assert.Equal(t, item.ID, got.Items[i].ProductID)
		assert.Equal(t, item.Quantity, got.Items[i].Quantity)
		assert.Equal(t, item.Price, got.Items[i].Price)
	}
	assert.Equal(t, in.ShippingDetails, got.ShippingDetails)

	second, err := store.CreateOrder(ctx, in)
	require.NoError(t, err)

	orders, err := store.GetOrders(ctx)
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, second, orders[0].ID)
	assert.Equal(t, id, orders[1].ID)

	missing, err := store.GetOrder(ctx, "does-not-exist")
	assert.NoError(t, err)
	assert.Nil(t, missing)
}
