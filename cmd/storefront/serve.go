package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/fjod/storefront/internal/auth"
	"github.com/fjod/storefront/internal/cart"
	httpapi "github.com/fjod/storefront/internal/http"
	"github.com/fjod/storefront/internal/order"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"
)

func serveCmd(flags *globalFlags) *cobra.Command {
	var migrate bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, flags, func(ctx context.Context, a *app) error {
				if migrate {
					if err := a.migrate(); err != nil {
						return err
					}
				}
				return serve(ctx, a)
			})
		},
	}
	cmd.Flags().BoolVar(&migrate, "migrate", true, "Apply remote migrations before serving")
	return cmd
}

func serve(ctx context.Context, a *app) error {
	cfg := a.cfg.HTTP

	// Requests carry their own identity, so the API reads it from the request
	// context instead of the device session, on a fresh order store per call.
	orders := order.NewPerRequest(auth.RequestAuthenticator{}, a.backend, a.orderOpts...)
	carts := cart.NewCarts(a.cart, a.storage, a.logger)

	router := httpapi.NewRouter(httpapi.RouterConfig{
		Catalog: a.catalog,
		Carts: func(ctx context.Context, ownerID string) httpapi.Cart {
			return carts.For(ctx, ownerID)
		},
		Orders:             orders,
		Accounts:           a.remote,
		Logger:             a.logger,
		AdminEmails:        cfg.AdminEmails,
		RequestTimeout:     cfg.RequestTimeout,
		MaxRequestBodySize: cfg.MaxRequestBodySize,
		Status:             a.status,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      otelhttp.NewHandler(router, "storefront"),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.logger.Info("storefront API starting", "port", cfg.Port,
			"storage", a.cfg.Storage.Driver, "remote", a.cfg.Remote.Driver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		a.logger.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	a.logger.Info("server exited")
	return nil
}
