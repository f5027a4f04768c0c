package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/fjod/storefront/internal/domain"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// SignUp creates the account and its first session in one transaction.
func (r *Repository) SignUp(ctx context.Context, email, password string) (*domain.Identity, *domain.Session, error) {
	email = normalizeEmail(email)
	if len(password) < minPasswordLength {
		return nil, nil, ErrWeakPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, nil, fmt.Errorf("hash password: %w", err)
	}

	var (
		identity *domain.Identity
		session  *domain.Session
	)
	err = r.execTX(ctx, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx,
			`INSERT INTO accounts (email, password_hash) VALUES ($1, $2)
			 RETURNING id, email, metadata, created_at`,
			email, string(hash))
		id, err := scanIdentity(row)
		if err != nil {
			return err
		}
		identity = id

		session, err = r.createSession(ctx, tx, identity.ID)
		return err
	})
	if pqCode(err) == pqUniqueViolation {
		return nil, nil, ErrEmailTaken
	}
	if err != nil {
		return nil, nil, fmt.Errorf("sign up: %w", err)
	}
	return identity, session, nil
}

func (r *Repository) SignIn(ctx context.Context, email, password string) (*domain.Identity, *domain.Session, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, email, metadata, created_at, password_hash FROM accounts WHERE email = $1`,
		normalizeEmail(email))

	var (
		identity domain.Identity
		metadata []byte
		hash     string
	)
	err := row.Scan(&identity.ID, &identity.Email, &metadata, &identity.CreatedAt, &hash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, nil, fmt.Errorf("sign in: %w", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		return nil, nil, ErrInvalidCredentials
	}
	if err := decodeMetadata(metadata, &identity); err != nil {
		return nil, nil, err
	}

	session, err := r.createSession(ctx, r.db, identity.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("sign in: %w", err)
	}
	return &identity, session, nil
}

func (r *Repository) SignOut(ctx context.Context, accessToken string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE token = $1`, accessToken); err != nil {
		return fmt.Errorf("sign out: %w", err)
	}
	return nil
}

// GetUser resolves a live session token to its account.
func (r *Repository) GetUser(ctx context.Context, accessToken string) (*domain.Identity, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT a.id, a.email, a.metadata, a.created_at
		 FROM sessions s JOIN accounts a ON a.id = s.account_id
		 WHERE s.token = $1 AND s.expires_at > $2`,
		accessToken, r.now().UTC())

	identity, err := scanIdentity(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return identity, nil
}

// UpdateUser merges metadata into the account behind a live session.
func (r *Repository) UpdateUser(ctx context.Context, accessToken string, metadata map[string]string) (*domain.Identity, error) {
	patch, err := json.Marshal(metadata)
	if err != nil {
		return nil, fmt.Errorf("marshal metadata: %w", err)
	}

	row := r.db.QueryRowContext(ctx,
		`UPDATE accounts a SET metadata = a.metadata || $2::jsonb
		 FROM sessions s
		 WHERE s.token = $1 AND s.account_id = a.id AND s.expires_at > $3
		 RETURNING a.id, a.email, a.metadata, a.created_at`,
		accessToken, string(patch), r.now().UTC())

	identity, err := scanIdentity(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}
	return identity, nil
}

// RequestPasswordReset records a reset token when the email is registered and
// succeeds silently otherwise.
func (r *Repository) RequestPasswordReset(ctx context.Context, email string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO password_resets (token, account_id, expires_at)
		 SELECT $2, id, $3 FROM accounts WHERE email = $1`,
		normalizeEmail(email), uuid.NewString(), r.now().UTC().Add(resetTokenTTL))
	if err != nil {
		return fmt.Errorf("request password reset: %w", err)
	}
	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (r *Repository) createSession(ctx context.Context, db execer, accountID string) (*domain.Session, error) {
	session := &domain.Session{
		AccessToken: uuid.NewString(),
		ExpiresAt:   r.now().UTC().Add(r.sessionTTL),
	}
	_, err := db.ExecContext(ctx,
		`INSERT INTO sessions (token, account_id, expires_at) VALUES ($1, $2, $3)`,
		session.AccessToken, accountID, session.ExpiresAt)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return session, nil
}

func scanIdentity(row interface{ Scan(...any) error }) (*domain.Identity, error) {
	var (
		identity domain.Identity
		metadata []byte
	)
	if err := row.Scan(&identity.ID, &identity.Email, &metadata, &identity.CreatedAt); err != nil {
		return nil, err
	}
	if err := decodeMetadata(metadata, &identity); err != nil {
		return nil, err
	}
	return &identity, nil
}

func decodeMetadata(raw []byte, identity *domain.Identity) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, &identity.Metadata); err != nil {
		return fmt.Errorf("decode user metadata: %w", err)
	}
	if len(identity.Metadata) == 0 {
		identity.Metadata = nil
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
