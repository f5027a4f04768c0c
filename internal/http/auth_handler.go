package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/fjod/storefront/internal/auth"
	"github.com/fjod/storefront/internal/domain"
)

// AuthHandler exposes the identity provider. Clients keep the returned access
// token and send it back as a bearer token.
type AuthHandler struct {
	provider auth.Provider
	timeout  time.Duration
}

func NewAuthHandler(provider auth.Provider, timeout time.Duration) *AuthHandler {
	return &AuthHandler{
		provider: provider,
		timeout:  timeout,
	}
}

type CredentialsDTO struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type ResetPasswordDTO struct {
	Email string `json:"email"`
}

type SessionResponseDTO struct {
	User    *domain.Identity `json:"user"`
	Session *domain.Session  `json:"session"`
}

// POST /api/v1/auth/signup
func (h *AuthHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	h.authenticate(w, r, http.StatusCreated, h.provider.SignUp)
}

// POST /api/v1/auth/signin
func (h *AuthHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	h.authenticate(w, r, http.StatusOK, h.provider.SignIn)
}

func (h *AuthHandler) authenticate(
	w http.ResponseWriter,
	r *http.Request,
	status int,
	call func(ctx context.Context, email, password string) (*domain.Identity, *domain.Session, error),
) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req CredentialsDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.Email == "" || req.Password == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "email and password are required")
		return
	}

	user, session, err := call(ctx, req.Email, req.Password)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	if user == nil {
		respondError(w, http.StatusBadGateway, "upstream_error", auth.ErrNoUser.Error())
		return
	}
	respondJSON(w, status, SessionResponseDTO{User: user, Session: session})
}

// POST /api/v1/auth/signout
func (h *AuthHandler) SignOut(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if err := h.provider.SignOut(ctx, auth.TokenFromContext(r.Context())); err != nil {
		respondStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// POST /api/v1/auth/reset-password
func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req ResetPasswordDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "email is required")
		return
	}

	if err := h.provider.RequestPasswordReset(ctx, req.Email); err != nil {
		respondStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// PATCH /api/v1/auth/profile
func (h *AuthHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req auth.ProfileUpdate
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	user, err := h.provider.UpdateUser(ctx, auth.TokenFromContext(r.Context()), req.Metadata())
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, user)
}

// GET /api/v1/auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	identity, _ := auth.IdentityFromContext(r.Context())
	respondJSON(w, http.StatusOK, identity)
}
