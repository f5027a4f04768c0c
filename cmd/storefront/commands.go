package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/fjod/storefront/internal/auth"
	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/internal/events"
	"github.com/spf13/cobra"
)

func migrateCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply remote database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, flags, func(ctx context.Context, a *app) error {
				return a.migrate()
			})
		},
	}
}

func productsCmd(flags *globalFlags) *cobra.Command {
	var (
		featured bool
		category string
		refresh  bool
	)
	cmd := &cobra.Command{
		Use:   "products",
		Short: "List catalog products, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, flags, func(ctx context.Context, a *app) error {
				if refresh && a.cache != nil {
					if err := a.cache.Invalidate(ctx); err != nil {
						return err
					}
				}

				var (
					products []domain.Product
					err      error
				)
				switch {
				case featured:
					products, err = a.catalog.ListFeaturedProducts(ctx)
				case category != "":
					products, err = a.catalog.ListProductsByCategory(ctx, category)
				default:
					products, err = a.catalog.ListProducts(ctx)
				}
				if err != nil {
					return err
				}
				return printProducts(cmd.OutOrStdout(), products)
			})
		},
	}
	cmd.Flags().BoolVar(&featured, "featured", false, "Only featured products")
	cmd.Flags().StringVar(&category, "category", "", "Only products in this category")
	cmd.Flags().BoolVar(&refresh, "refresh", false, "Drop cached catalog entries first")
	return cmd
}

func cartCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cart",
		Short: "Inspect and change the device cart",
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "Show cart contents and total",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, flags, func(ctx context.Context, a *app) error {
				return printCart(cmd.OutOrStdout(), a.cart.Items())
			})
		},
	}

	var quantity int
	add := &cobra.Command{
		Use:   "add <product-id>",
		Short: "Add a catalog product to the cart",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if quantity < 1 {
				return fmt.Errorf("quantity must be at least 1")
			}
			return withApp(cmd, flags, func(ctx context.Context, a *app) error {
				product, err := a.catalog.GetProduct(ctx, args[0])
				if err != nil {
					return err
				}
				a.cart.AddToCart(ctx, product.CartItem(quantity))
				return printCart(cmd.OutOrStdout(), a.cart.Items())
			})
		},
	}
	add.Flags().IntVarP(&quantity, "quantity", "q", 1, "Quantity to add")

	remove := &cobra.Command{
		Use:   "remove <product-id>",
		Short: "Remove a product from the cart",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, flags, func(ctx context.Context, a *app) error {
				a.cart.RemoveFromCart(ctx, args[0])
				return printCart(cmd.OutOrStdout(), a.cart.Items())
			})
		},
	}

	update := &cobra.Command{
		Use:   "update <product-id> <quantity>",
		Short: "Set the quantity of a cart line",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid quantity %q: %w", args[1], err)
			}
			if q < 1 {
				return fmt.Errorf("quantity must be at least 1; use cart remove instead")
			}
			return withApp(cmd, flags, func(ctx context.Context, a *app) error {
				a.cart.UpdateQuantity(ctx, args[0], q)
				return printCart(cmd.OutOrStdout(), a.cart.Items())
			})
		},
	}

	clearCart := &cobra.Command{
		Use:   "clear",
		Short: "Empty the cart",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, flags, func(ctx context.Context, a *app) error {
				a.cart.ClearCart(ctx)
				return nil
			})
		},
	}

	cmd.AddCommand(show, add, remove, update, clearCart)
	return cmd
}

func checkoutCmd(flags *globalFlags) *cobra.Command {
	var d domain.ShippingDetails

	cmd := &cobra.Command{
		Use:   "checkout",
		Short: "Place an order for the cart contents and clear the cart",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, flags, func(ctx context.Context, a *app) error {
				items := a.cart.Items()
				if len(items) == 0 {
					return errors.New("cart is empty")
				}

				id, err := a.orders.CreateOrder(ctx, domain.NewOrderFromCart(items, d))
				if err != nil {
					return err
				}
				a.cart.ClearCart(ctx)
				fmt.Fprintln(cmd.OutOrStdout(), id)
				return nil
			})
		},
	}

	f := cmd.Flags()
	f.StringVar(&d.FirstName, "first-name", "", "Recipient first name")
	f.StringVar(&d.LastName, "last-name", "", "Recipient last name")
	f.StringVar(&d.Email, "email", "", "Contact email")
	f.StringVar(&d.Phone, "phone", "", "Contact phone")
	f.StringVar(&d.Address, "address", "", "Street address")
	f.StringVar(&d.City, "city", "", "City")
	f.StringVar(&d.State, "state", "", "State or region")
	f.StringVar(&d.ZipCode, "zip", "", "Postal code")
	f.StringVar(&d.Country, "country", "", "Country")
	f.StringVar(&d.Notes, "notes", "", "Delivery notes")
	for _, name := range []string{"first-name", "last-name", "email", "address", "city", "zip", "country"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

func ordersCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "orders",
		Short: "Orders of the signed-in user",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List your orders, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, flags, func(ctx context.Context, a *app) error {
				orders, err := a.orders.GetOrders(ctx)
				if err != nil {
					return err
				}
				return printOrders(cmd.OutOrStdout(), orders)
			})
		},
	}

	show := &cobra.Command{
		Use:   "show <order-id>",
		Short: "Show one order with items and shipping details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, flags, func(ctx context.Context, a *app) error {
				o, err := a.orders.GetOrder(ctx, args[0])
				if err != nil {
					return err
				}
				if o == nil {
					return fmt.Errorf("order %s not found", args[0])
				}
				return printJSON(cmd.OutOrStdout(), o)
			})
		},
	}

	setStatus := &cobra.Command{
		Use:   "set-status <order-id> <status>",
		Short: "Set an order's status (pending, processing, shipped, delivered, cancelled)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, flags, func(ctx context.Context, a *app) error {
				return a.orders.UpdateOrderStatus(ctx, args[0], domain.OrderStatus(args[1]))
			})
		},
	}

	cmd.AddCommand(list, show, setStatus)
	return cmd
}

func adminCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Administrative views",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "orders",
		Short: "List every order with its customer",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, flags, func(ctx context.Context, a *app) error {
				orders, err := a.orders.GetAdminOrders(ctx)
				if err != nil {
					return err
				}
				return printOrders(cmd.OutOrStdout(), orders)
			})
		},
	})
	return cmd
}

func authCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage the device session",
	}

	var password string
	passwordFlag := func(c *cobra.Command) {
		c.Flags().StringVarP(&password, "password", "p", "", "Password (defaults to $STOREFRONT_PASSWORD)")
	}
	resolvePassword := func() (string, error) {
		if password != "" {
			return password, nil
		}
		if p := os.Getenv("STOREFRONT_PASSWORD"); p != "" {
			return p, nil
		}
		return "", errors.New("password is required")
	}

	signUp := &cobra.Command{
		Use:   "signup <email>",
		Short: "Create an account and sign in",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pw, err := resolvePassword()
			if err != nil {
				return err
			}
			return withApp(cmd, flags, func(ctx context.Context, a *app) error {
				if err := a.auth.SignUp(ctx, args[0], pw); err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), a.auth.User())
			})
		},
	}
	passwordFlag(signUp)

	signIn := &cobra.Command{
		Use:   "signin <email>",
		Short: "Sign in with email and password",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pw, err := resolvePassword()
			if err != nil {
				return err
			}
			return withApp(cmd, flags, func(ctx context.Context, a *app) error {
				if err := a.auth.SignIn(ctx, args[0], pw); err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), a.auth.User())
			})
		},
	}
	passwordFlag(signIn)

	signOut := &cobra.Command{
		Use:   "signout",
		Short: "End the device session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, flags, func(ctx context.Context, a *app) error {
				a.auth.SignOut(ctx)
				return a.auth.Err()
			})
		},
	}

	whoami := &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, flags, func(ctx context.Context, a *app) error {
				user, err := a.auth.CurrentUser(ctx)
				if err != nil {
					return err
				}
				if user == nil {
					return auth.ErrNotSignedIn
				}
				return printJSON(cmd.OutOrStdout(), user)
			})
		},
	}

	resetPassword := &cobra.Command{
		Use:   "reset-password <email>",
		Short: "Request a password reset email",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, flags, func(ctx context.Context, a *app) error {
				a.auth.ResetPassword(ctx, args[0])
				return a.auth.Err()
			})
		},
	}

	var profile auth.ProfileUpdate
	updateProfile := &cobra.Command{
		Use:   "update-profile",
		Short: "Change username or avatar",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if profile.Username == "" && profile.AvatarURL == "" {
				return errors.New("nothing to update: set --username or --avatar-url")
			}
			return withApp(cmd, flags, func(ctx context.Context, a *app) error {
				a.auth.UpdateProfile(ctx, profile)
				if err := a.auth.Err(); err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), a.auth.User())
			})
		},
	}
	updateProfile.Flags().StringVar(&profile.Username, "username", "", "New username")
	updateProfile.Flags().StringVar(&profile.AvatarURL, "avatar-url", "", "New avatar URL")

	cmd.AddCommand(signUp, signIn, signOut, whoami, resetPassword, updateProfile)
	return cmd
}

func eventsCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Order event stream",
	}

	var group string
	tail := &cobra.Command{
		Use:   "tail",
		Short: "Print order events as they arrive",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, flags, func(ctx context.Context, a *app) error {
				if len(a.cfg.Events.Brokers) == 0 {
					return errors.New("no brokers configured: set events.brokers or KAFKA_BROKERS")
				}
				consumer := events.NewConsumer(a.cfg.Events.Topic, group, a.logger, a.cfg.Events.Brokers...)
				defer consumer.Close()

				return consumer.Run(ctx, func(ev events.Event) error {
					return printJSON(cmd.OutOrStdout(), ev)
				})
			})
		},
	}
	tail.Flags().StringVar(&group, "group", "storefront-tail", "Consumer group id")

	cmd.AddCommand(tail)
	return cmd
}
