package auth

import (
	"context"

	"github.com/fjod/storefront/internal/domain"
)

type contextKey string

const (
	identityKey contextKey = "auth_identity"
	tokenKey    contextKey = "auth_token"
)

// WithIdentity attaches a verified identity and its access token to ctx.
func WithIdentity(ctx context.Context, identity *domain.Identity, accessToken string) context.Context {
	ctx = context.WithValue(ctx, identityKey, identity)
	return context.WithValue(ctx, tokenKey, accessToken)
}

func IdentityFromContext(ctx context.Context) (*domain.Identity, bool) {
	identity, ok := ctx.Value(identityKey).(*domain.Identity)
	return identity, ok && identity != nil
}

func TokenFromContext(ctx context.Context) string {
	token, _ := ctx.Value(tokenKey).(string)
	return token
}

// RequestAuthenticator reads the identity placed on the request context by
// the HTTP session middleware.
type RequestAuthenticator struct{}

func (RequestAuthenticator) CurrentUser(ctx context.Context) (*domain.Identity, error) {
	identity, ok := IdentityFromContext(ctx)
	if !ok {
		return nil, nil
	}
	return identity, nil
}
