package domain

import "time"

type ShippingDetails struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	Address   string `json:"address"`
	City      string `json:"city"`
	State     string `json:"state"`
	ZipCode   string `json:"zipCode"`
	Country   string `json:"country"`
	Notes     string `json:"notes,omitempty"`
}

type OrderItem struct {
	ProductID string  `json:"id"`
	Title     string  `json:"title"`
	Price     float64 `json:"price"`
	Quantity  int     `json:"quantity"`
	ImageURL  string  `json:"image_url"`
}

// Customer is the minimal owner identity joined into administrative order views.
type Customer struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
}

type Order struct {
	ID              string          `json:"id"`
	UserID          string          `json:"user_id,omitempty"`
	Items           []OrderItem     `json:"items"`
	ShippingDetails ShippingDetails `json:"shipping_details"`
	Total           float64         `json:"total"`
	Status          OrderStatus     `json:"status"`
	Customer        *Customer       `json:"customer,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// NewOrder is the checkout input: a cart snapshot plus where to ship it.
// Status is accepted for symmetry with Order but creation always starts at pending.
type NewOrder struct {
	Items           []CartItem      `json:"items"`
	ShippingDetails ShippingDetails `json:"shipping_details"`
	Total           float64         `json:"total"`
	Status          OrderStatus     `json:"status,omitempty"`
}

func NewOrderFromCart(items []CartItem, shipping ShippingDetails) NewOrder {
	snapshot := make([]CartItem, len(items))
	copy(snapshot, items)
	return NewOrder{
		Items:           snapshot,
		ShippingDetails: shipping,
		Total:           CartTotal(snapshot),
		Status:          OrderStatusPending,
	}
}

func OrderItemsFromCart(items []CartItem) []OrderItem {
	out := make([]OrderItem, 0, len(items))
	for _, item := range items {
		out = append(out, OrderItem{
			ProductID: item.ID,
			Title:     item.Title,
			Price:     item.Price,
			Quantity:  item.Quantity,
			ImageURL:  item.ImageURL,
		})
	}
	return out
}
