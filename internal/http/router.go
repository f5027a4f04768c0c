package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/fjod/storefront/internal/auth"
	"github.com/fjod/storefront/internal/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type RouterConfig struct {
	Catalog  Catalog
	Carts    CartSource
	Orders   Orders
	Accounts auth.Provider
	Logger   *slog.Logger
	// AdminEmails may list every order and change order status.
	AdminEmails []string

	RequestTimeout     time.Duration
	MaxRequestBodySize int64
	// Status reports extra health fields, such as the remote breaker state.
	Status func() map[string]string
}

func NewRouter(cfg RouterConfig) http.Handler {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}

	productHandler := NewProductHandler(cfg.Catalog, cfg.RequestTimeout)
	admins := NewAdmins(cfg.AdminEmails)
	cartHandler := NewCartHandler(cfg.Carts, cfg.Catalog, cfg.RequestTimeout)
	checkoutHandler := NewCheckoutHandler(cfg.Carts, cfg.Orders, cfg.Logger, cfg.RequestTimeout)
	ordersHandler := NewOrdersHandler(cfg.Orders, admins, cfg.RequestTimeout)
	authHandler := NewAuthHandler(cfg.Accounts, cfg.RequestTimeout)

	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestIDMiddleware)
	r.Use(middleware.Timeout(cfg.RequestTimeout))
	r.Use(middleware.Compress(5))
	r.Use(MetricsMiddleware)
	if cfg.MaxRequestBodySize > 0 {
		r.Use(middleware.RequestSize(cfg.MaxRequestBodySize))
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		body := map[string]string{"status": "ok"}
		if cfg.Status != nil {
			for k, v := range cfg.Status() {
				body[k] = v
			}
		}
		respondJSON(w, http.StatusOK, body)
	})
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(SessionMiddleware(cfg.Accounts, cfg.Logger))

		r.Get("/products", productHandler.List)
		r.Get("/products/{product_id}", productHandler.Get)

		// Signed-in shoppers get their own cart; anonymous requests share the device cart.
		r.Get("/cart", cartHandler.GetCart)
		r.Delete("/cart", cartHandler.Clear)
		r.Post("/cart/items", cartHandler.AddItem)
		r.Put("/cart/items/{product_id}", cartHandler.UpdateItem)
		r.Delete("/cart/items/{product_id}", cartHandler.RemoveItem)

		// The order store answers unauthenticated checkout and listing itself.
		r.Post("/checkout", checkoutHandler.Checkout)
		r.Get("/orders", ordersHandler.ListOrders)

		r.Post("/auth/signup", authHandler.SignUp)
		r.Post("/auth/signin", authHandler.SignIn)
		r.Post("/auth/reset-password", authHandler.ResetPassword)

		r.Group(func(r chi.Router) {
			r.Use(RequireSession)

			r.Get("/orders/{order_id}", ordersHandler.GetOrder)

			r.Post("/auth/signout", authHandler.SignOut)
			r.Patch("/auth/profile", authHandler.UpdateProfile)
			r.Get("/auth/me", authHandler.Me)
		})

		r.Group(func(r chi.Router) {
			r.Use(RequireAdmin(admins))

			r.Patch("/orders/{order_id}/status", ordersHandler.UpdateStatus)
			r.Get("/admin/orders", ordersHandler.ListAdminOrders)
		})
	})

	return r
}
