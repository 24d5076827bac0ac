package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
	"golang.org/x/sync/errgroup"

	"github.com/Kale254/final/internal/auth"
	"github.com/Kale254/final/internal/config"
	"github.com/Kale254/final/internal/events"
	"github.com/Kale254/final/internal/metrics"
	"github.com/Kale254/final/internal/service"
	"github.com/Kale254/final/internal/storage"
	"github.com/Kale254/final/internal/storage/postgres"
	"github.com/Kale254/final/internal/storage/sqlite"
	"github.com/Kale254/final/pkg/logging"
)

func main() {
	// A missing .env is fine; the environment may already be set.
	_ = godotenv.Load()

	logger := logging.Setup()

	cfg := config.LoadServer()
	if err := cfg.Validate(); err != nil {
		logger.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("Server failed", "error", err)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}

func run(ctx context.Context, cfg *config.Server, logger *slog.Logger) error {
	store, err := openStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer store.Close()
	logger.Info("Storage initialized", "backend", cfg.DataBackend)

	var publisher events.Publisher = events.Nop{}
	if cfg.AMQPURL != "" {
		amqpPublisher, err := events.NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPExchange, logger)
		if err != nil {
			return fmt.Errorf("failed to connect to AMQP: %w", err)
		}
		publisher = amqpPublisher
		logger.Info("Publishing change events", "exchange", cfg.AMQPExchange)
	}
	defer publisher.Close()

	router := service.NewRouter(service.Deps{
		Store:          store,
		Authenticator:  auth.NewPasswordAuthenticator(store),
		JWTManager:     auth.NewJWTManager(cfg.JWTSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL),
		Publisher:      publisher,
		Metrics:        metrics.NewCollector("budget"),
		Logger:         logger,
		AllowedOrigins: cfg.AllowedOrigins,
	})

	srv := &http.Server{
		Addr:           ":" + cfg.Port,
		Handler:        h2c.NewHandler(router, &http2.Server{}),
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 16,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Budget server starting", "address", srv.Addr, "url", "http://localhost"+srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func openStore(ctx context.Context, cfg *config.Server) (storage.Store, error) {
	switch cfg.DataBackend {
	case "postgres":
		return postgres.New(ctx, cfg.DatabaseURL)
	default:
		return sqlite.New(cfg.DBPath)
	}
}
