// Command storefront runs the storefront state layer: an HTTP companion API
// and one-shot commands against the device cart, the session and orders.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fjod/storefront/internal/config"
	"github.com/fjod/storefront/pkg/logger"
	"github.com/spf13/cobra"
)

const (
	Version = "0.1.0"
	appName = "storefront"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type globalFlags struct {
	configPath string
	logLevel   string
}

func rootCmd() *cobra.Command {
	flags := &globalFlags{}

	cmd := &cobra.Command{
		Use:           appName,
		Short:         "Storefront cart, session and order state",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "Config file path (YAML)")
	cmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "Log level (debug, info, warn, error)")

	cmd.AddCommand(
		serveCmd(flags),
		migrateCmd(flags),
		productsCmd(flags),
		cartCmd(flags),
		checkoutCmd(flags),
		ordersCmd(flags),
		adminCmd(flags),
		authCmd(flags),
		eventsCmd(flags),
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "%s version %s\n", appName, Version)
			},
		},
	)
	return cmd
}

// withApp loads configuration, wires the components for one invocation and
// releases them when fn returns.
func withApp(cmd *cobra.Command, flags *globalFlags, fn func(ctx context.Context, a *app) error) error {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if flags.logLevel != "" {
		cfg.Log.Level = flags.logLevel
	}

	log := logger.New(logger.Options{
		Service:   cfg.Tracing.ServiceName,
		Env:       cfg.Log.Env,
		Level:     cfg.Log.Level,
		AddSource: cfg.Log.AddSource,
		Output:    cmd.ErrOrStderr(),
	})

	ctx := cmd.Context()
	a, err := newApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(context.Background()); err != nil {
			log.Warn("failed to release resources", "error", err)
		}
	}()

	return fn(ctx, a)
}
