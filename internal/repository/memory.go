package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/fjod/storefront/internal/domain"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// MemoryRepository keeps every table in process memory. It enforces the same
// foreign keys as the Postgres schema so partial-failure paths behave alike.
type MemoryRepository struct {
	mu  sync.RWMutex
	now func() time.Time
	seq int64

	products []domain.Product
	users    map[string]domain.UserRecord
	orders   map[string]memoryOrder
	shipping map[string]domain.ShippingRecord
	items    []domain.OrderItemRecord

	accounts map[string]memoryAccount // by id
	emails   map[string]string        // email -> account id
	sessions map[string]memorySession
	resets   map[string]string // token -> account id

	persist *memoryPersistence
}

type memoryOrder struct {
	record domain.OrderRecord
	seq    int64
}

type memoryAccount struct {
	identity domain.Identity
	hash     []byte
}

type memorySession struct {
	accountID string
	expiresAt time.Time
}

func NewMemoryRepository(products ...domain.Product) *MemoryRepository {
	r := &MemoryRepository{
		now:      time.Now,
		users:    make(map[string]domain.UserRecord),
		orders:   make(map[string]memoryOrder),
		shipping: make(map[string]domain.ShippingRecord),
		accounts: make(map[string]memoryAccount),
		emails:   make(map[string]string),
		sessions: make(map[string]memorySession),
		resets:   make(map[string]string),
	}
	for _, p := range products {
		if p.ID == "" {
			p.ID = uuid.NewString()
		}
		if p.CreatedAt.IsZero() {
			p.CreatedAt = r.now().UTC()
		}
		r.products = append(r.products, p)
	}
	return r
}

func (r *MemoryRepository) ListProducts(_ context.Context) ([]domain.Product, error) {
	return r.filterProducts(func(domain.Product) bool { return true }), nil
}

func (r *MemoryRepository) ListFeaturedProducts(_ context.Context) ([]domain.Product, error) {
	return r.filterProducts(func(p domain.Product) bool { return p.Featured }), nil
}

func (r *MemoryRepository) ListProductsByCategory(_ context.Context, category string) ([]domain.Product, error) {
	return r.filterProducts(func(p domain.Product) bool { return p.Category == category }), nil
}

func (r *MemoryRepository) GetProduct(_ context.Context, id string) (*domain.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if p, ok := r.productLocked(id); ok {
		return &p, nil
	}
	return nil, ErrProductNotFound
}

func (r *MemoryRepository) filterProducts(keep func(domain.Product) bool) []domain.Product {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.Product, 0, len(r.products))
	for _, p := range r.products {
		if keep(p) {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

func (r *MemoryRepository) productLocked(id string) (domain.Product, bool) {
	for _, p := range r.products {
		if p.ID == id {
			return p, true
		}
	}
	return domain.Product{}, false
}

func (r *MemoryRepository) GetUserProfile(_ context.Context, userID string) (*domain.UserRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.users[userID]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (r *MemoryRepository) InsertUserProfile(ctx context.Context, user domain.UserRecord) (*domain.UserRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.users[user.ID]; ok {
		return nil, ErrDuplicateProfile
	}
	now := r.now().UTC()
	user.CreatedAt, user.UpdatedAt = now, now
	r.users[user.ID] = user
	r.saveLocked(ctx)
	return &user, nil
}

func (r *MemoryRepository) UpdateUserProfile(ctx context.Context, user domain.UserRecord) (*domain.UserRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.users[user.ID]
	if !ok {
		return nil, ErrUserNotFound
	}
	existing.FirstName = user.FirstName
	existing.LastName = user.LastName
	existing.Phone = user.Phone
	existing.Address = user.Address
	existing.UpdatedAt = r.now().UTC()
	r.users[user.ID] = existing
	r.saveLocked(ctx)
	return &existing, nil
}

func (r *MemoryRepository) InsertOrder(ctx context.Context, order domain.OrderRecord) (*domain.OrderRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.users[order.UserID]; !ok {
		return nil, fmt.Errorf("insert order: user %q does not exist", order.UserID)
	}
	if !order.Status.Valid() {
		return nil, fmt.Errorf("insert order: invalid status %q", order.Status)
	}

	r.seq++
	now := r.now().UTC()
	created := domain.OrderRecord{
		ID:        uuid.NewString(),
		UserID:    order.UserID,
		Total:     order.Total,
		Status:    order.Status,
		CreatedAt: now,
		UpdatedAt: now,
	}
	r.orders[created.ID] = memoryOrder{record: created, seq: r.seq}
	r.saveLocked(ctx)
	return &created, nil
}

func (r *MemoryRepository) InsertShippingDetails(ctx context.Context, d domain.ShippingRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.orders[d.OrderID]; !ok {
		return fmt.Errorf("insert shipping details: order %q does not exist", d.OrderID)
	}
	if _, ok := r.shipping[d.OrderID]; ok {
		return fmt.Errorf("insert shipping details: order %q already has shipping details", d.OrderID)
	}
	r.shipping[d.OrderID] = d
	r.saveLocked(ctx)
	return nil
}

// InsertOrderItems is all-or-nothing, like a single multi-row INSERT.
func (r *MemoryRepository) InsertOrderItems(ctx context.Context, items []domain.OrderItemRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, item := range items {
		if _, ok := r.orders[item.OrderID]; !ok {
			return fmt.Errorf("insert order items: order %q does not exist", item.OrderID)
		}
		if _, ok := r.productLocked(item.ProductID); !ok {
			return fmt.Errorf("insert order items: product %q does not exist", item.ProductID)
		}
	}
	for _, item := range items {
		item.ID = int64(len(r.items) + 1)
		item.Product = nil
		r.items = append(r.items, item)
	}
	r.saveLocked(ctx)
	return nil
}

func (r *MemoryRepository) GetOrder(_ context.Context, orderID string) (*domain.OrderRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	o, ok := r.orders[orderID]
	if !ok {
		return nil, ErrOrderNotFound
	}
	rec := r.expandLocked(o.record)
	return &rec, nil
}

func (r *MemoryRepository) ListOrders(_ context.Context, filter domain.OrderFilter) ([]domain.OrderRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	matched := make([]memoryOrder, 0, len(r.orders))
	for _, o := range r.orders {
		if filter.UserID != "" && o.record.UserID != filter.UserID {
			continue
		}
		matched = append(matched, o)
	}
	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if !a.record.CreatedAt.Equal(b.record.CreatedAt) {
			return a.record.CreatedAt.After(b.record.CreatedAt)
		}
		return a.seq > b.seq
	})

	out := make([]domain.OrderRecord, 0, len(matched))
	for _, o := range matched {
		rec := r.expandLocked(o.record)
		if filter.WithCustomer {
			u := r.users[rec.UserID]
			rec.Customer = &domain.Customer{
				FirstName: u.FirstName,
				LastName:  u.LastName,
				Email:     u.Email,
			}
		}
		out = append(out, rec)
	}
	return out, nil
}

func (r *MemoryRepository) UpdateOrderStatus(ctx context.Context, orderID string, status domain.OrderStatus, updatedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	o, ok := r.orders[orderID]
	if !ok {
		return ErrOrderNotFound
	}
	if !status.Valid() {
		return fmt.Errorf("update order status: invalid status %q", status)
	}
	o.record.Status = status
	o.record.UpdatedAt = updatedAt
	r.orders[orderID] = o
	r.saveLocked(ctx)
	return nil
}

func (r *MemoryRepository) expandLocked(rec domain.OrderRecord) domain.OrderRecord {
	rec.Items = make([]domain.OrderItemRecord, 0)
	for _, item := range r.items {
		if item.OrderID != rec.ID {
			continue
		}
		if p, ok := r.productLocked(item.ProductID); ok {
			item.Product = &p
		}
		rec.Items = append(rec.Items, item)
	}
	if d, ok := r.shipping[rec.ID]; ok {
		rec.Shipping = &d
	}
	return rec
}

func (r *MemoryRepository) SignUp(ctx context.Context, email, password string) (*domain.Identity, *domain.Session, error) {
	email = normalizeEmail(email)
	if len(password) < minPasswordLength {
		return nil, nil, ErrWeakPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		return nil, nil, fmt.Errorf("hash password: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.emails[email]; ok {
		return nil, nil, ErrEmailTaken
	}
	identity := domain.Identity{
		ID:        uuid.NewString(),
		Email:     email,
		CreatedAt: r.now().UTC(),
	}
	r.accounts[identity.ID] = memoryAccount{identity: identity, hash: hash}
	r.emails[email] = identity.ID

	session := r.createSessionLocked(identity.ID)
	r.saveLocked(ctx)
	return &identity, &session, nil
}

func (r *MemoryRepository) SignIn(ctx context.Context, email, password string) (*domain.Identity, *domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, ok := r.emails[normalizeEmail(email)]
	if !ok {
		return nil, nil, ErrInvalidCredentials
	}
	acc := r.accounts[id]
	if bcrypt.CompareHashAndPassword(acc.hash, []byte(password)) != nil {
		return nil, nil, ErrInvalidCredentials
	}

	identity := copyIdentity(acc.identity)
	session := r.createSessionLocked(id)
	r.saveLocked(ctx)
	return &identity, &session, nil
}

func (r *MemoryRepository) SignOut(ctx context.Context, accessToken string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.sessions, accessToken)
	r.saveLocked(ctx)
	return nil
}

func (r *MemoryRepository) GetUser(_ context.Context, accessToken string) (*domain.Identity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	acc, ok := r.liveAccountLocked(accessToken)
	if !ok {
		return nil, ErrSessionNotFound
	}
	identity := copyIdentity(acc.identity)
	return &identity, nil
}

func (r *MemoryRepository) UpdateUser(ctx context.Context, accessToken string, metadata map[string]string) (*domain.Identity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	acc, ok := r.liveAccountLocked(accessToken)
	if !ok {
		return nil, ErrSessionNotFound
	}
	if len(metadata) > 0 && acc.identity.Metadata == nil {
		acc.identity.Metadata = make(map[string]string, len(metadata))
	}
	for k, v := range metadata {
		acc.identity.Metadata[k] = v
	}
	r.accounts[acc.identity.ID] = acc
	r.saveLocked(ctx)

	identity := copyIdentity(acc.identity)
	return &identity, nil
}

func (r *MemoryRepository) RequestPasswordReset(ctx context.Context, email string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if id, ok := r.emails[normalizeEmail(email)]; ok {
		r.resets[uuid.NewString()] = id
		r.saveLocked(ctx)
	}
	return nil
}

func (r *MemoryRepository) liveAccountLocked(accessToken string) (memoryAccount, bool) {
	s, ok := r.sessions[accessToken]
	if !ok || !r.now().Before(s.expiresAt) {
		return memoryAccount{}, false
	}
	acc, ok := r.accounts[s.accountID]
	return acc, ok
}

func (r *MemoryRepository) createSessionLocked(accountID string) domain.Session {
	session := domain.Session{
		AccessToken: uuid.NewString(),
		ExpiresAt:   r.now().UTC().Add(defaultSessionTTL),
	}
	r.sessions[session.AccessToken] = memorySession{accountID: accountID, expiresAt: session.ExpiresAt}
	return session
}

func copyIdentity(in domain.Identity) domain.Identity {
	if in.Metadata != nil {
		m := make(map[string]string, len(in.Metadata))
		for k, v := range in.Metadata {
			m[k] = v
		}
		in.Metadata = m
	}
	return in
}
