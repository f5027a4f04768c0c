package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/fjod/storefront/internal/auth"
	"github.com/fjod/storefront/internal/domain"
	"github.com/go-chi/chi/v5"
)

type OrdersHandler struct {
	orders  Orders
	admins  Admins
	timeout time.Duration
}

func NewOrdersHandler(orders Orders, admins Admins, timeout time.Duration) *OrdersHandler {
	return &OrdersHandler{
		orders:  orders,
		admins:  admins,
		timeout: timeout,
	}
}

type OrdersResponse struct {
	Orders []domain.Order `json:"orders"`
}

type UpdateStatusRequestDTO struct {
	Status domain.OrderStatus `json:"status"`
}

// GET /api/v1/orders
func (h *OrdersHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	orders, err := h.orders.GetOrders(ctx)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, OrdersResponse{Orders: nonNil(orders)})
}

// GET /api/v1/orders/{order_id}
func (h *OrdersHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	orderID := chi.URLParam(r, "order_id")
	if orderID == "" {
		respondError(w, http.StatusBadRequest, "invalid_order_id", "order_id is required")
		return
	}

	order, err := h.orders.GetOrder(ctx, orderID)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	if order == nil {
		respondError(w, http.StatusNotFound, "not_found", "order not found")
		return
	}

	// Shoppers only see their own orders; admins see any.
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing or expired session")
		return
	}
	if order.UserID != identity.ID && !h.admins.Contains(identity) {
		respondError(w, http.StatusForbidden, "forbidden", "order belongs to another account")
		return
	}
	respondJSON(w, http.StatusOK, order)
}

// PATCH /api/v1/orders/{order_id}/status
func (h *OrdersHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	orderID := chi.URLParam(r, "order_id")
	if orderID == "" {
		respondError(w, http.StatusBadRequest, "invalid_order_id", "order_id is required")
		return
	}

	var req UpdateStatusRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	if err := h.orders.UpdateOrderStatus(ctx, orderID, req.Status); err != nil {
		respondStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GET /api/v1/admin/orders
func (h *OrdersHandler) ListAdminOrders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	orders, err := h.orders.GetAdminOrders(ctx)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, OrdersResponse{Orders: nonNil(orders)})
}

func nonNil(orders []domain.Order) []domain.Order {
	if orders == nil {
		return []domain.Order{}
	}
	return orders
}
