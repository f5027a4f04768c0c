package auth

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/internal/repository"
	"github.com/fjod/storefront/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingProvider struct {
	*repository.MemoryRepository
	signOutErr error
	resetErr   error
	updateErr  error
	noUser     bool
}

func (p *failingProvider) SignOut(ctx context.Context, token string) error {
	if p.signOutErr != nil {
		return p.signOutErr
	}
	return p.MemoryRepository.SignOut(ctx, token)
}

func (p *failingProvider) RequestPasswordReset(ctx context.Context, email string) error {
	if p.resetErr != nil {
		return p.resetErr
	}
	return p.MemoryRepository.RequestPasswordReset(ctx, email)
}

func (p *failingProvider) UpdateUser(ctx context.Context, token string, metadata map[string]string) (*domain.Identity, error) {
	if p.updateErr != nil {
		return nil, p.updateErr
	}
	return p.MemoryRepository.UpdateUser(ctx, token, metadata)
}

func (p *failingProvider) SignIn(ctx context.Context, email, password string) (*domain.Identity, *domain.Session, error) {
	if p.noUser {
		return nil, nil, nil
	}
	return p.MemoryRepository.SignIn(ctx, email, password)
}

func newTestStore(t *testing.T) (*Store, *failingProvider, storage.Storage) {
	t.Helper()
	provider := &failingProvider{MemoryRepository: repository.NewMemoryRepository()}
	st := storage.NewMemory()
	return NewStore(context.Background(), provider, st, nil), provider, st
}

func TestSignUp_SetsSessionAndPersists(t *testing.T) {
	store, _, st := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SignUp(ctx, "ada@example.com", "password1"))
	require.NotNil(t, store.User())
	assert.Equal(t, "ada@example.com", store.User().Email)
	require.NotNil(t, store.Session())
	assert.NoError(t, store.Err())
	assert.False(t, store.Loading())

	raw, err := st.Get(ctx, StorageKey)
	require.NoError(t, err)
	var env struct {
		State struct {
			User    *domain.Identity `json:"user"`
			Session *domain.Session  `json:"session"`
		} `json:"state"`
		Version int `json:"version"`
	}
	require.NoError(t, json.Unmarshal(raw, &env))
	assert.Equal(t, 0, env.Version)
	assert.Equal(t, store.Session().AccessToken, env.State.Session.AccessToken)
}

func TestSignUp_ErrorIsRecordedAndReturned(t *testing.T) {
	store, _, _ := newTestStore(t)

	err := store.SignUp(context.Background(), "ada@example.com", "123")
	assert.ErrorIs(t, err, repository.ErrWeakPassword)
	assert.ErrorIs(t, store.Err(), repository.ErrWeakPassword)
	assert.Nil(t, store.User())
}

func TestSignIn(t *testing.T) {
	store, _, _ := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.SignUp(ctx, "ada@example.com", "password1"))
	store.SignOut(ctx)
	require.Nil(t, store.Session())

	err := store.SignIn(ctx, "ada@example.com", "wrong")
	assert.ErrorIs(t, err, repository.ErrInvalidCredentials)
	assert.Nil(t, store.User())

	require.NoError(t, store.SignIn(ctx, "ada@example.com", "password1"))
	assert.NoError(t, store.Err())
	assert.NotNil(t, store.User())
}

func TestSignIn_NoUserReturned(t *testing.T) {
	store, provider, _ := newTestStore(t)
	provider.noUser = true

	err := store.SignIn(context.Background(), "ada@example.com", "password1")
	assert.ErrorIs(t, err, ErrNoUser)
	assert.ErrorIs(t, store.Err(), ErrNoUser)
}

func TestSignOut_FailureKeepsSession(t *testing.T) {
	store, provider, _ := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.SignUp(ctx, "ada@example.com", "password1"))

	provider.signOutErr = errors.New("network down")
	store.SignOut(ctx)
	assert.EqualError(t, store.Err(), "network down")
	assert.NotNil(t, store.Session())

	provider.signOutErr = nil
	store.SignOut(ctx)
	assert.NoError(t, store.Err())
	assert.Nil(t, store.Session())
	assert.Nil(t, store.User())
}

func TestResetPassword_RecordsOnly(t *testing.T) {
	store, provider, _ := newTestStore(t)

	store.ResetPassword(context.Background(), "ada@example.com")
	assert.NoError(t, store.Err())

	provider.resetErr = errors.New("rate limited")
	store.ResetPassword(context.Background(), "ada@example.com")
	assert.EqualError(t, store.Err(), "rate limited")
}

func TestUpdateProfile(t *testing.T) {
	store, provider, _ := newTestStore(t)
	ctx := context.Background()

	store.UpdateProfile(ctx, ProfileUpdate{Username: "ada"})
	assert.ErrorIs(t, store.Err(), ErrNotSignedIn)

	require.NoError(t, store.SignUp(ctx, "ada@example.com", "password1"))
	store.UpdateProfile(ctx, ProfileUpdate{Username: "ada", AvatarURL: "/ada.png"})
	require.NoError(t, store.Err())
	assert.Equal(t, "ada", store.User().Metadata["username"])
	assert.Equal(t, "/ada.png", store.User().Metadata["avatar_url"])

	provider.updateErr = errors.New("forbidden")
	store.UpdateProfile(ctx, ProfileUpdate{Username: "grace"})
	assert.EqualError(t, store.Err(), "forbidden")
	assert.Equal(t, "ada", store.User().Metadata["username"])
}

func TestCurrentUser(t *testing.T) {
	store, provider, _ := newTestStore(t)
	ctx := context.Background()

	user, err := store.CurrentUser(ctx)
	require.NoError(t, err)
	assert.Nil(t, user)

	require.NoError(t, store.SignUp(ctx, "ada@example.com", "password1"))
	user, err = store.CurrentUser(ctx)
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, store.User().ID, user.ID)

	// the provider forgets the session behind our back
	require.NoError(t, provider.MemoryRepository.SignOut(ctx, store.Session().AccessToken))
	user, err = store.CurrentUser(ctx)
	require.NoError(t, err)
	assert.Nil(t, user)
}

func TestCurrentUser_ExpiredLocally(t *testing.T) {
	store, _, _ := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.SignUp(ctx, "ada@example.com", "password1"))

	store.now = func() time.Time { return time.Now().Add(48 * time.Hour) }
	user, err := store.CurrentUser(ctx)
	require.NoError(t, err)
	assert.Nil(t, user)
}

func TestRestoreFromStorage(t *testing.T) {
	provider := repository.NewMemoryRepository()
	st := storage.NewMemory()
	ctx := context.Background()

	first := NewStore(ctx, provider, st, nil)
	require.NoError(t, first.SignUp(ctx, "ada@example.com", "password1"))

	second := NewStore(ctx, provider, st, nil)
	require.NotNil(t, second.Session())
	assert.Equal(t, first.Session().AccessToken, second.Session().AccessToken)

	user, err := second.CurrentUser(ctx)
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, "ada@example.com", user.Email)
}

func TestRestore_CorruptedState(t *testing.T) {
	st := storage.NewMemory()
	ctx := context.Background()
	require.NoError(t, st.Set(ctx, StorageKey, []byte("{not json")))

	store := NewStore(ctx, repository.NewMemoryRepository(), st, nil)
	assert.Nil(t, store.User())
	assert.Nil(t, store.Session())
}

func TestRequestAuthenticator(t *testing.T) {
	ctx := context.Background()

	user, err := RequestAuthenticator{}.CurrentUser(ctx)
	require.NoError(t, err)
	assert.Nil(t, user)

	identity := &domain.Identity{ID: "u1"}
	ctx = WithIdentity(ctx, identity, "token-1")
	user, err = RequestAuthenticator{}.CurrentUser(ctx)
	require.NoError(t, err)
	assert.Equal(t, identity, user)
	assert.Equal(t, "token-1", TokenFromContext(ctx))
}
