package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/internal/storage"
)

const StorageKey = "auth-storage"

var (
	ErrNoUser      = errors.New("no user data returned")
	ErrNotSignedIn = errors.New("not signed in")
)

// Provider is the remote identity service.
type Provider interface {
	SignUp(ctx context.Context, email, password string) (*domain.Identity, *domain.Session, error)
	SignIn(ctx context.Context, email, password string) (*domain.Identity, *domain.Session, error)
	SignOut(ctx context.Context, accessToken string) error
	GetUser(ctx context.Context, accessToken string) (*domain.Identity, error)
	UpdateUser(ctx context.Context, accessToken string, metadata map[string]string) (*domain.Identity, error)
	RequestPasswordReset(ctx context.Context, email string) error
}

type ProfileUpdate struct {
	Username  string `json:"username,omitempty"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

func (p ProfileUpdate) Metadata() map[string]string {
	m := make(map[string]string, 2)
	if p.Username != "" {
		m["username"] = p.Username
	}
	if p.AvatarURL != "" {
		m["avatar_url"] = p.AvatarURL
	}
	return m
}

type persisted struct {
	User    *domain.Identity `json:"user"`
	Session *domain.Session  `json:"session"`
}

// Store is the signed-in identity of this device. User and session survive
// restarts through device storage; loading and the last error do not.
type Store struct {
	provider Provider
	storage  storage.Storage
	logger   *slog.Logger
	now      func() time.Time

	mu      sync.RWMutex
	user    *domain.Identity
	session *domain.Session
	loading bool
	err     error
}

func NewStore(ctx context.Context, provider Provider, st storage.Storage, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{
		provider: provider,
		storage:  st,
		logger:   logger.With("component", "auth"),
		now:      time.Now,
	}

	state, err := storage.LoadState[persisted](ctx, st, StorageKey)
	switch {
	case errors.Is(err, storage.ErrNotFound):
	case err != nil:
		s.logger.WarnContext(ctx, "could not restore auth state, starting signed out", "error", err)
	default:
		s.user, s.session = state.User, state.Session
	}
	return s
}

func (s *Store) User() *domain.Identity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}

func (s *Store) Session() *domain.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.session == nil {
		return nil
	}
	sess := *s.session
	return &sess
}

func (s *Store) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

func (s *Store) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}

// SignUp registers the account. User and session are only set when the
// provider opened a session straight away.
func (s *Store) SignUp(ctx context.Context, email, password string) (err error) {
	s.begin()
	defer func() { s.end(err) }()

	user, session, err := s.provider.SignUp(ctx, email, password)
	if err != nil {
		return err
	}
	if user == nil {
		return ErrNoUser
	}
	if session != nil {
		s.set(ctx, user, session)
	}
	s.logger.InfoContext(ctx, "signed up", "user_id", user.ID)
	return nil
}

func (s *Store) SignIn(ctx context.Context, email, password string) (err error) {
	s.begin()
	defer func() { s.end(err) }()

	user, session, err := s.provider.SignIn(ctx, email, password)
	if err != nil {
		return err
	}
	if user == nil {
		return ErrNoUser
	}
	s.set(ctx, user, session)
	s.logger.InfoContext(ctx, "signed in", "user_id", user.ID)
	return nil
}

// SignOut ends the remote session and forgets the local one. A provider
// failure is recorded and the local session is kept.
func (s *Store) SignOut(ctx context.Context) {
	var err error
	s.begin()
	defer func() { s.end(err) }()

	if token := s.token(); token != "" {
		if err = s.provider.SignOut(ctx, token); err != nil {
			return
		}
	}
	s.set(ctx, nil, nil)
}

// ResetPassword asks the provider to send a reset link. Failures are recorded only.
func (s *Store) ResetPassword(ctx context.Context, email string) {
	var err error
	s.begin()
	defer func() { s.end(err) }()

	err = s.provider.RequestPasswordReset(ctx, email)
}

// UpdateProfile writes the metadata and then reloads the user. Failures are
// recorded only.
func (s *Store) UpdateProfile(ctx context.Context, update ProfileUpdate) {
	var err error
	s.begin()
	defer func() { s.end(err) }()

	token := s.token()
	if token == "" {
		err = ErrNotSignedIn
		return
	}
	if _, err = s.provider.UpdateUser(ctx, token, update.Metadata()); err != nil {
		return
	}

	var user *domain.Identity
	user, err = s.provider.GetUser(ctx, token)
	if err != nil {
		return
	}
	s.set(ctx, user, s.Session())
}

// CurrentUser validates the stored session with the provider. Nobody signed
// in, an expired session and a session the provider rejects all give nil, nil.
func (s *Store) CurrentUser(ctx context.Context) (*domain.Identity, error) {
	s.mu.RLock()
	session := s.session
	s.mu.RUnlock()

	if session == nil || session.AccessToken == "" || session.Expired(s.now()) {
		return nil, nil
	}

	user, err := s.provider.GetUser(ctx, session.AccessToken)
	if err != nil {
		s.logger.DebugContext(ctx, "stored session rejected", "error", err)
		return nil, nil
	}
	return user, nil
}

func (s *Store) token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.session == nil {
		return ""
	}
	return s.session.AccessToken
}

func (s *Store) set(ctx context.Context, user *domain.Identity, session *domain.Session) {
	s.mu.Lock()
	s.user, s.session = user, session
	snapshot := persisted{User: user, Session: session}
	s.mu.Unlock()

	if err := storage.SaveState(ctx, s.storage, StorageKey, snapshot); err != nil {
		s.logger.WarnContext(ctx, "persist auth state failed", "error", fmt.Errorf("save %s: %w", StorageKey, err))
	}
}

func (s *Store) begin() {
	s.mu.Lock()
	s.loading = true
	s.err = nil
	s.mu.Unlock()
}

func (s *Store) end(err error) {
	s.mu.Lock()
	s.loading = false
	if err != nil {
		s.err = err
	}
	s.mu.Unlock()
}
