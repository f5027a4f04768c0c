package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/internal/storage"
)

// RemoteStorageKey holds the memory remote's tables when they are persisted on the device.
const RemoteStorageKey = "remote-storage"

type memoryState struct {
	Seq      int64                    `json:"seq"`
	Users    []domain.UserRecord      `json:"users"`
	Orders   []persistedOrder         `json:"orders"`
	Shipping []domain.ShippingRecord  `json:"shipping_details"`
	Items    []domain.OrderItemRecord `json:"order_items"`
	Accounts []persistedAccount       `json:"accounts"`
	Sessions []persistedSession       `json:"sessions"`
	Resets   map[string]string        `json:"password_resets,omitempty"`
}

type persistedOrder struct {
	Record domain.OrderRecord `json:"record"`
	Seq    int64              `json:"seq"`
}

type persistedAccount struct {
	Identity domain.Identity `json:"identity"`
	Hash     []byte          `json:"password_hash"`
}

type persistedSession struct {
	Token     string    `json:"access_token"`
	AccountID string    `json:"account_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

type memoryPersistence struct {
	storage storage.Storage
	key     string
	logger  *slog.Logger
}

// Persist restores the tables saved under key and saves them again after
// every successful write. Products are not persisted; they come from the
// constructor. A failed save is logged and the write still succeeds.
func (r *MemoryRepository) Persist(ctx context.Context, st storage.Storage, key string, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	state, err := storage.LoadState[memoryState](ctx, st, key)
	switch {
	case errors.Is(err, storage.ErrNotFound):
	case err != nil:
		return fmt.Errorf("restore memory remote: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err == nil {
		r.restoreLocked(state)
	}
	r.persist = &memoryPersistence{
		storage: st,
		key:     key,
		logger:  logger.With("component", "memory_remote"),
	}
	return nil
}

func (r *MemoryRepository) restoreLocked(state memoryState) {
	r.seq = state.Seq
	for _, u := range state.Users {
		r.users[u.ID] = u
	}
	for _, o := range state.Orders {
		r.orders[o.Record.ID] = memoryOrder{record: o.Record, seq: o.Seq}
	}
	for _, d := range state.Shipping {
		r.shipping[d.OrderID] = d
	}
	r.items = append(r.items[:0], state.Items...)
	for _, a := range state.Accounts {
		r.accounts[a.Identity.ID] = memoryAccount{identity: a.Identity, hash: a.Hash}
		r.emails[a.Identity.Email] = a.Identity.ID
	}
	for _, s := range state.Sessions {
		r.sessions[s.Token] = memorySession{accountID: s.AccountID, expiresAt: s.ExpiresAt}
	}
	for token, id := range state.Resets {
		r.resets[token] = id
	}
}

func (r *MemoryRepository) snapshotLocked() memoryState {
	state := memoryState{
		Seq:      r.seq,
		Users:    make([]domain.UserRecord, 0, len(r.users)),
		Orders:   make([]persistedOrder, 0, len(r.orders)),
		Shipping: make([]domain.ShippingRecord, 0, len(r.shipping)),
		Items:    append([]domain.OrderItemRecord(nil), r.items...),
		Accounts: make([]persistedAccount, 0, len(r.accounts)),
		Sessions: make([]persistedSession, 0, len(r.sessions)),
		Resets:   r.resets,
	}
	for _, u := range r.users {
		state.Users = append(state.Users, u)
	}
	for _, o := range r.orders {
		state.Orders = append(state.Orders, persistedOrder{Record: o.record, Seq: o.seq})
	}
	for _, d := range r.shipping {
		state.Shipping = append(state.Shipping, d)
	}
	for _, a := range r.accounts {
		state.Accounts = append(state.Accounts, persistedAccount{Identity: a.identity, Hash: a.hash})
	}
	now := r.now()
	for token, s := range r.sessions {
		if !now.Before(s.expiresAt) {
			continue
		}
		state.Sessions = append(state.Sessions, persistedSession{Token: token, AccountID: s.accountID, ExpiresAt: s.expiresAt})
	}
	return state
}

// saveLocked runs with r.mu held so snapshots land in write order.
func (r *MemoryRepository) saveLocked(ctx context.Context) {
	if r.persist == nil {
		return
	}
	if err := storage.SaveState(ctx, r.persist.storage, r.persist.key, r.snapshotLocked()); err != nil {
		r.persist.logger.WarnContext(ctx, "failed to persist memory remote", "error", err)
	}
}
