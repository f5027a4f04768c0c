package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fjod/storefront/internal/domain"
)

const productColumns = `id, title, description, price, image_url, category, featured, created_at`

func (r *Repository) ListProducts(ctx context.Context) ([]domain.Product, error) {
	return r.queryProducts(ctx, `SELECT `+productColumns+` FROM products ORDER BY created_at DESC`)
}

func (r *Repository) ListFeaturedProducts(ctx context.Context) ([]domain.Product, error) {
	return r.queryProducts(ctx, `SELECT `+productColumns+` FROM products WHERE featured = TRUE ORDER BY created_at DESC`)
}

func (r *Repository) ListProductsByCategory(ctx context.Context, category string) ([]domain.Product, error) {
	return r.queryProducts(ctx, `SELECT `+productColumns+` FROM products WHERE category = $1 ORDER BY created_at DESC`, category)
}

func (r *Repository) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1`

	var p domain.Product
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&p.ID,
		&p.Title,
		&p.Description,
		&p.Price,
		&p.ImageURL,
		&p.Category,
		&p.Featured,
		&p.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) || pqCode(err) == pqInvalidTextValue {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query product: %w", err)
	}
	return &p, nil
}

func (r *Repository) queryProducts(ctx context.Context, query string, args ...any) ([]domain.Product, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	products := make([]domain.Product, 0)
	for rows.Next() {
		var p domain.Product
		err := rows.Scan(
			&p.ID,
			&p.Title,
			&p.Description,
			&p.Price,
			&p.ImageURL,
			&p.Category,
			&p.Featured,
			&p.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return products, nil
}
