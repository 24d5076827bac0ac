// Command budget is an interactive terminal client for the budget tracker.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/Kale254/final/internal/budget"
	"github.com/Kale254/final/internal/config"
	"github.com/Kale254/final/pkg/logging"
)

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cfg := config.LoadClient()
	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "warn"
	}

	cmd := &cobra.Command{
		Use:          "budget",
		Short:        "Track allocated budget items against the record store",
		Long:         "Starts an interactive shell. Type 'help' once it is running.",
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := cfg.Validate(); err != nil {
				return err
			}
			resync, err := budget.ParseResync(cfg.Resync)
			if err != nil {
				return err
			}

			logger := logging.New(logging.Options{
				Level:  logging.ParseLevel(logLevel),
				Format: os.Getenv("LOG_FORMAT"),
				Writer: cmd.ErrOrStderr(),
			})

			a := newApp(cfg, resync, logger, cmd.OutOrStdout())
			return a.run(cmd.Context(), cmd.InOrStdin())
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&cfg.StoreURL, "store-url", cfg.StoreURL, "record store base URL (BUDGET_STORE_URL)")
	flags.StringVar(&cfg.AuthURL, "auth-url", cfg.AuthURL, "identity provider base URL (BUDGET_AUTH_URL)")
	flags.StringVar(&cfg.Resync, "resync", cfg.Resync, "what to re-read after adding an item: all or user (BUDGET_RESYNC)")
	flags.StringVar(&logLevel, "log-level", logLevel, "debug, info, warn or error (LOG_LEVEL)")

	return cmd
}
