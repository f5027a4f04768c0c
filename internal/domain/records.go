package domain

import "time"

// Records below mirror rows held by the remote collaborator. Expansion fields
// are filled only by queries that join the related rows.

type UserRecord struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Phone     string    `json:"phone"`
	Address   string    `json:"address"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type OrderRecord struct {
	ID        string      `json:"id"`
	UserID    string      `json:"user_id"`
	Total     float64     `json:"total"`
	Status    OrderStatus `json:"status"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`

	Items    []OrderItemRecord `json:"order_items,omitempty"`
	Shipping *ShippingRecord   `json:"shipping_details,omitempty"`
	Customer *Customer         `json:"users,omitempty"`
}

type OrderItemRecord struct {
	ID        int64    `json:"id"`
	OrderID   string   `json:"order_id"`
	ProductID string   `json:"product_id"`
	Quantity  int      `json:"quantity"`
	Price     float64  `json:"price"`
	Product   *Product `json:"products,omitempty"`
}

type ShippingRecord struct {
	OrderID   string `json:"order_id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	Address   string `json:"address"`
	City      string `json:"city"`
	State     string `json:"state"`
	ZipCode   string `json:"zip_code"`
	Country   string `json:"country"`
	Notes     string `json:"notes"`
}

// OrderFilter narrows ListOrders. An empty UserID lists every owner.
type OrderFilter struct {
	UserID       string
	WithCustomer bool
}

func ShippingRecordFor(orderID string, d ShippingDetails) ShippingRecord {
	return ShippingRecord{
		OrderID:   orderID,
		FirstName: d.FirstName,
		LastName:  d.LastName,
		Email:     d.Email,
		Phone:     d.Phone,
		Address:   d.Address,
		City:      d.City,
		State:     d.State,
		ZipCode:   d.ZipCode,
		Country:   d.Country,
		Notes:     d.Notes,
	}
}
