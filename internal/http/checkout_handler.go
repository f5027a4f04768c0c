package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/fjod/storefront/internal/domain"
)

type Orders interface {
	CreateOrder(ctx context.Context, in domain.NewOrder) (string, error)
	GetOrder(ctx context.Context, orderID string) (*domain.Order, error)
	GetOrders(ctx context.Context) ([]domain.Order, error)
	GetAdminOrders(ctx context.Context) ([]domain.Order, error)
	UpdateOrderStatus(ctx context.Context, orderID string, status domain.OrderStatus) error
}

type CheckoutHandler struct {
	carts   CartSource
	orders  Orders
	logger  *slog.Logger
	timeout time.Duration
}

func NewCheckoutHandler(carts CartSource, orders Orders, logger *slog.Logger, timeout time.Duration) *CheckoutHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &CheckoutHandler{
		carts:   carts,
		orders:  orders,
		logger:  logger,
		timeout: timeout,
	}
}

type CheckoutRequestDTO struct {
	ShippingDetails domain.ShippingDetails `json:"shipping_details"`
}

type CheckoutResponseDTO struct {
	OrderID string `json:"order_id"`
}

// POST /api/v1/checkout
func (h *CheckoutHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req CheckoutRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if missing := missingShippingFields(req.ShippingDetails); len(missing) > 0 {
		respondJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "shipping details are incomplete",
			Code:    "invalid_shipping_details",
			Details: "missing: " + strings.Join(missing, ", "),
		})
		return
	}

	cart := requestCart(r, h.carts)
	items := cart.Items()
	if len(items) == 0 {
		respondError(w, http.StatusBadRequest, "empty_cart", "cart is empty")
		return
	}

	orderID, err := h.orders.CreateOrder(ctx, domain.NewOrderFromCart(items, req.ShippingDetails))
	if err != nil {
		h.logger.ErrorContext(ctx, "checkout failed", "request_id", getRequestID(r.Context()), "error", err)
		respondStoreError(w, err)
		return
	}

	cart.ClearCart(ctx)
	respondJSON(w, http.StatusCreated, CheckoutResponseDTO{OrderID: orderID})
}

func missingShippingFields(d domain.ShippingDetails) []string {
	var missing []string
	for _, f := range []struct {
		name, value string
	}{
		{"firstName", d.FirstName},
		{"lastName", d.LastName},
		{"email", d.Email},
		{"address", d.Address},
		{"city", d.City},
		{"zipCode", d.ZipCode},
		{"country", d.Country},
	} {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, f.name)
		}
	}
	return missing
}
