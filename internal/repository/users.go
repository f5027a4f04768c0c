package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fjod/storefront/internal/domain"
)

const userColumns = `id, email, first_name, last_name, phone, address, created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (*domain.UserRecord, error) {
	var u domain.UserRecord
	err := row.Scan(
		&u.ID,
		&u.Email,
		&u.FirstName,
		&u.LastName,
		&u.Phone,
		&u.Address,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// GetUserProfile returns nil, nil when the profile does not exist.
func (r *Repository) GetUserProfile(ctx context.Context, userID string) (*domain.UserRecord, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	u, err := scanUser(r.db.QueryRowContext(ctx, query, userID))
	if errors.Is(err, sql.ErrNoRows) || pqCode(err) == pqInvalidTextValue {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query user profile: %w", err)
	}
	return u, nil
}

func (r *Repository) InsertUserProfile(ctx context.Context, user domain.UserRecord) (*domain.UserRecord, error) {
	query := `INSERT INTO users (id, email, first_name, last_name, phone, address)
	          VALUES ($1, $2, $3, $4, $5, $6)
	          RETURNING ` + userColumns

	u, err := scanUser(r.db.QueryRowContext(ctx, query,
		user.ID,
		user.Email,
		user.FirstName,
		user.LastName,
		user.Phone,
		user.Address))
	if pqCode(err) == pqUniqueViolation {
		return nil, ErrDuplicateProfile
	}
	if err != nil {
		return nil, fmt.Errorf("insert user profile: %w", err)
	}
	return u, nil
}

func (r *Repository) UpdateUserProfile(ctx context.Context, user domain.UserRecord) (*domain.UserRecord, error) {
	query := `UPDATE users
	          SET first_name = $2, last_name = $3, phone = $4, address = $5, updated_at = NOW()
	          WHERE id = $1
	          RETURNING ` + userColumns

	u, err := scanUser(r.db.QueryRowContext(ctx, query,
		user.ID,
		user.FirstName,
		user.LastName,
		user.Phone,
		user.Address))
	if errors.Is(err, sql.ErrNoRows) || pqCode(err) == pqInvalidTextValue {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update user profile: %w", err)
	}
	return u, nil
}
