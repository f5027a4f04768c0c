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

const maxItemQuantity = 99

// Cart is one shopper's cart. Mutations persist on their own and never fail.
type Cart interface {
	Items() []domain.CartItem
	Total() float64
	ItemCount() int
	AddToCart(ctx context.Context, item domain.CartItem)
	RemoveFromCart(ctx context.Context, productID string)
	UpdateQuantity(ctx context.Context, productID string, quantity int)
	ClearCart(ctx context.Context)
}

// CartSource resolves the cart of an owner. Anonymous requests pass an empty
// owner id and get the device cart.
type CartSource func(ctx context.Context, ownerID string) Cart

// SingleCart serves every request from the same cart.
func SingleCart(c Cart) CartSource {
	return func(context.Context, string) Cart { return c }
}

func requestCart(r *http.Request, carts CartSource) Cart {
	var ownerID string
	if identity, ok := auth.IdentityFromContext(r.Context()); ok {
		ownerID = identity.ID
	}
	return carts(r.Context(), ownerID)
}

type CartHandler struct {
	carts   CartSource
	catalog Catalog
	timeout time.Duration
}

func NewCartHandler(carts CartSource, catalog Catalog, timeout time.Duration) *CartHandler {
	return &CartHandler{
		carts:   carts,
		catalog: catalog,
		timeout: timeout,
	}
}

type AddItemRequestDTO struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type UpdateQuantityRequestDTO struct {
	Quantity int `json:"quantity"`
}

type CartResponseDTO struct {
	Items     []domain.CartItem `json:"items"`
	Total     float64           `json:"total"`
	ItemCount int               `json:"item_count"`
}

// GET /api/v1/cart
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, cartSnapshot(requestCart(r, h.carts)))
}

// POST /api/v1/cart/items
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req AddItemRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.ProductID == "" {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id is required")
		return
	}
	if !validQuantity(req.Quantity) {
		respondError(w, http.StatusBadRequest, "invalid_quantity", "quantity must be between 1 and 99")
		return
	}

	product, err := h.catalog.GetProduct(ctx, req.ProductID)
	if err != nil {
		respondStoreError(w, err)
		return
	}

	cart := requestCart(r, h.carts)
	cart.AddToCart(ctx, product.CartItem(req.Quantity))
	respondJSON(w, http.StatusCreated, cartSnapshot(cart))
}

// PUT /api/v1/cart/items/{product_id}
func (h *CartHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	productID := chi.URLParam(r, "product_id")
	if productID == "" {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id is required")
		return
	}

	var req UpdateQuantityRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if !validQuantity(req.Quantity) {
		respondError(w, http.StatusBadRequest, "invalid_quantity", "quantity must be between 1 and 99")
		return
	}
	cart := requestCart(r, h.carts)
	if !cartContains(cart, productID) {
		respondError(w, http.StatusNotFound, "not_found", "product is not in the cart")
		return
	}

	cart.UpdateQuantity(ctx, productID, req.Quantity)
	respondJSON(w, http.StatusOK, cartSnapshot(cart))
}

// DELETE /api/v1/cart/items/{product_id}
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	productID := chi.URLParam(r, "product_id")
	if productID == "" {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id is required")
		return
	}

	cart := requestCart(r, h.carts)
	cart.RemoveFromCart(ctx, productID)
	respondJSON(w, http.StatusOK, cartSnapshot(cart))
}

// DELETE /api/v1/cart
func (h *CartHandler) Clear(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	requestCart(r, h.carts).ClearCart(ctx)
	w.WriteHeader(http.StatusNoContent)
}

func cartSnapshot(cart Cart) CartResponseDTO {
	items := cart.Items()
	if items == nil {
		items = []domain.CartItem{}
	}
	return CartResponseDTO{
		Items:     items,
		Total:     cart.Total(),
		ItemCount: cart.ItemCount(),
	}
}

func cartContains(cart Cart, productID string) bool {
	for _, item := range cart.Items() {
		if item.ID == productID {
			return true
		}
	}
	return false
}

func validQuantity(q int) bool {
	return q >= 1 && q <= maxItemQuantity
}
