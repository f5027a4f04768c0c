package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fjod/storefront/internal/domain"
	"github.com/lib/pq"
)

const orderColumns = `o.id, o.user_id, o.total, o.status, o.created_at, o.updated_at`

// Order writes below are independent statements. Callers see each insert
// commit on its own, matching the remote contract the order store relies on.

func (r *Repository) InsertOrder(ctx context.Context, order domain.OrderRecord) (*domain.OrderRecord, error) {
	query := `INSERT INTO orders AS o (user_id, total, status)
	          VALUES ($1, $2, $3)
	          RETURNING ` + orderColumns

	var created domain.OrderRecord
	err := r.db.QueryRowContext(ctx, query, order.UserID, order.Total, order.Status).Scan(
		&created.ID,
		&created.UserID,
		&created.Total,
		&created.Status,
		&created.CreatedAt,
		&created.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert order: %w", err)
	}
	return &created, nil
}

func (r *Repository) InsertShippingDetails(ctx context.Context, d domain.ShippingRecord) error {
	query := `INSERT INTO shipping_details
	          (order_id, first_name, last_name, email, phone, address, city, state, zip_code, country, notes)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := r.db.ExecContext(ctx, query,
		d.OrderID,
		d.FirstName,
		d.LastName,
		d.Email,
		d.Phone,
		d.Address,
		d.City,
		d.State,
		d.ZipCode,
		d.Country,
		d.Notes)
	if err != nil {
		return fmt.Errorf("insert shipping details: %w", err)
	}
	return nil
}

// InsertOrderItems writes all items in one statement.
func (r *Repository) InsertOrderItems(ctx context.Context, items []domain.OrderItemRecord) error {
	if len(items) == 0 {
		return nil
	}

	var b strings.Builder
	b.WriteString(`INSERT INTO order_items (order_id, product_id, quantity, price) VALUES `)
	args := make([]any, 0, len(items)*4)
	for i, item := range items {
		if i > 0 {
			b.WriteString(", ")
		}
		n := i * 4
		fmt.Fprintf(&b, "($%d, $%d, $%d, $%d)", n+1, n+2, n+3, n+4)
		args = append(args, item.OrderID, item.ProductID, item.Quantity, item.Price)
	}

	if _, err := r.db.ExecContext(ctx, b.String(), args...); err != nil {
		return fmt.Errorf("insert order items: %w", err)
	}
	return nil
}

func (r *Repository) GetOrder(ctx context.Context, orderID string) (*domain.OrderRecord, error) {
	query := `SELECT ` + orderColumns + ` FROM orders o WHERE o.id = $1`

	var order domain.OrderRecord
	err := r.db.QueryRowContext(ctx, query, orderID).Scan(
		&order.ID,
		&order.UserID,
		&order.Total,
		&order.Status,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) || pqCode(err) == pqInvalidTextValue {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query order by id: %w", err)
	}

	orders := []domain.OrderRecord{order}
	if err := r.expand(ctx, orders); err != nil {
		return nil, err
	}
	return &orders[0], nil
}

func (r *Repository) ListOrders(ctx context.Context, filter domain.OrderFilter) ([]domain.OrderRecord, error) {
	var (
		b    strings.Builder
		args []any
	)
	b.WriteString(`SELECT ` + orderColumns)
	if filter.WithCustomer {
		b.WriteString(`, u.first_name, u.last_name, u.email FROM orders o LEFT JOIN users u ON u.id = o.user_id`)
	} else {
		b.WriteString(` FROM orders o`)
	}
	if filter.UserID != "" {
		b.WriteString(` WHERE o.user_id = $1`)
		args = append(args, filter.UserID)
	}
	b.WriteString(` ORDER BY o.created_at DESC`)

	rows, err := r.db.QueryContext(ctx, b.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()

	orders := make([]domain.OrderRecord, 0)
	for rows.Next() {
		var (
			order                      domain.OrderRecord
			firstName, lastName, email sql.NullString
		)
		dest := []any{
			&order.ID,
			&order.UserID,
			&order.Total,
			&order.Status,
			&order.CreatedAt,
			&order.UpdatedAt,
		}
		if filter.WithCustomer {
			dest = append(dest, &firstName, &lastName, &email)
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan order row: %w", err)
		}
		if filter.WithCustomer {
			order.Customer = &domain.Customer{
				FirstName: firstName.String,
				LastName:  lastName.String,
				Email:     email.String,
			}
		}
		orders = append(orders, order)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	if err := r.expand(ctx, orders); err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *Repository) UpdateOrderStatus(ctx context.Context, orderID string, status domain.OrderStatus, updatedAt time.Time) error {
	query := `UPDATE orders SET status = $2, updated_at = $3 WHERE id = $1`

	res, err := r.db.ExecContext(ctx, query, orderID, status, updatedAt)
	if pqCode(err) == pqInvalidTextValue {
		return ErrOrderNotFound
	}
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	if affected == 0 {
		return ErrOrderNotFound
	}
	return nil
}

// expand fills items (joined with their product) and shipping details for the
// given orders in place.
func (r *Repository) expand(ctx context.Context, orders []domain.OrderRecord) error {
	if len(orders) == 0 {
		return nil
	}

	ids := make([]string, len(orders))
	index := make(map[string]int, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
		index[o.ID] = i
		orders[i].Items = make([]domain.OrderItemRecord, 0)
	}

	if err := r.expandItems(ctx, ids, func(item domain.OrderItemRecord) {
		i := index[item.OrderID]
		orders[i].Items = append(orders[i].Items, item)
	}); err != nil {
		return err
	}

	return r.expandShipping(ctx, ids, func(d domain.ShippingRecord) {
		i := index[d.OrderID]
		orders[i].Shipping = &d
	})
}

func (r *Repository) expandItems(ctx context.Context, orderIDs []string, add func(domain.OrderItemRecord)) error {
	query := `SELECT oi.id, oi.order_id, oi.product_id, oi.quantity, oi.price,
	                 p.id, p.title, p.description, p.price, p.image_url, p.category, p.featured, p.created_at
	          FROM order_items oi
	          LEFT JOIN products p ON p.id = oi.product_id
	          WHERE oi.order_id = ANY($1::uuid[])
	          ORDER BY oi.id`

	rows, err := r.db.QueryContext(ctx, query, pq.Array(orderIDs))
	if err != nil {
		return fmt.Errorf("query order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			item                                  domain.OrderItemRecord
			pID, pTitle, pDesc, pImage, pCategory sql.NullString
			pPrice                                sql.NullFloat64
			pFeatured                             sql.NullBool
			pCreated                              sql.NullTime
		)
		if err := rows.Scan(
			&item.ID,
			&item.OrderID,
			&item.ProductID,
			&item.Quantity,
			&item.Price,
			&pID,
			&pTitle,
			&pDesc,
			&pPrice,
			&pImage,
			&pCategory,
			&pFeatured,
			&pCreated,
		); err != nil {
			return fmt.Errorf("scan order item: %w", err)
		}
		if pID.Valid {
			item.Product = &domain.Product{
				ID:          pID.String,
				Title:       pTitle.String,
				Description: pDesc.String,
				Price:       pPrice.Float64,
				ImageURL:    pImage.String,
				Category:    pCategory.String,
				Featured:    pFeatured.Bool,
				CreatedAt:   pCreated.Time,
			}
		}
		add(item)
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("row iteration error: %w", err)
	}
	return nil
}

func (r *Repository) expandShipping(ctx context.Context, orderIDs []string, add func(domain.ShippingRecord)) error {
	query := `SELECT order_id, first_name, last_name, email, phone, address, city, state, zip_code, country, notes
	          FROM shipping_details
	          WHERE order_id = ANY($1::uuid[])`

	rows, err := r.db.QueryContext(ctx, query, pq.Array(orderIDs))
	if err != nil {
		return fmt.Errorf("query shipping details: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var d domain.ShippingRecord
		if err := rows.Scan(
			&d.OrderID,
			&d.FirstName,
			&d.LastName,
			&d.Email,
			&d.Phone,
			&d.Address,
			&d.City,
			&d.State,
			&d.ZipCode,
			&d.Country,
			&d.Notes,
		); err != nil {
			return fmt.Errorf("scan shipping details: %w", err)
		}
		add(d)
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("row iteration error: %w", err)
	}
	return nil
}
