// Package main is the entry point for the payment proxy API server.
//
// It loads configuration (environment, dotenv, and SSM-backed secrets for
// deployed environments), builds the HTTP server with the core chassis
// (middleware, routing, health), wires the Stripe client into the payment
// handlers, and starts listening for requests.
//
// Graceful shutdown is handled via OS signal interception (SIGINT, SIGTERM).
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

	"payproxy/internal/api/handlers"
	"payproxy/internal/config"
	"payproxy/internal/core"
	"payproxy/internal/external"
	"payproxy/internal/types"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// run encapsulates the startup lifecycle so that main() can cleanly exit on error.
func run() error {
	// _SSM_PARAM pointers resolve from AWS SSM in deployed environments and
	// from plain environment variables locally.
	var provider config.SecretProvider = config.NewEnvVarProvider()
	if env := os.Getenv("APP_ENV"); env != "" && env != "local" {
		provider = config.NewSSMProvider(os.Getenv("AWS_REGION"))
	}

	cfg, err := config.LoadConfig(provider)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := newLogger(cfg.LogLevel)
	logger.Info("payment API starting",
		"environment", cfg.Environment,
		"service", cfg.Service,
		"port", cfg.Server.Port,
		"test_mode", types.IsTestKey(cfg.Stripe.APIKey().Unmask()),
	)

	srv, err := core.NewServer(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	// Stripe client shared by all payment handlers.
	stripeClient := external.NewStripeClient(
		cfg.Stripe.APIKey(),
		cfg.Stripe.RequestTimeout,
		logger,
	)

	paymentsHandler := handlers.NewPaymentsHandler(stripeClient, cfg, srv.Validator, logger)
	subscriptionsHandler := handlers.NewSubscriptionsHandler(stripeClient, srv.Validator, logger)
	promoHandler := handlers.NewPromoHandler(stripeClient, srv.Validator, logger)
	webhookHandler := handlers.NewWebhookHandler(
		external.StripeVerifier{},
		cfg.Stripe.WebhookSecret,
		logger,
	)

	srv.RouteRegistrars = append(srv.RouteRegistrars,
		paymentsHandler.RegisterRoutes,
		subscriptionsHandler.RegisterRoutes,
		promoHandler.RegisterRoutes,
		webhookHandler.RegisterRoutes,
	)

	srv.MountRoutes()

	return runHTTPServer(srv, cfg, logger)
}

// runHTTPServer starts the server in standard HTTP mode with graceful shutdown.
func runHTTPServer(srv *core.Server, cfg *config.Config, logger *slog.Logger) error {
	addr := ":" + cfg.Server.Port

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serverErr := make(chan error, 1)

	go func() {
		logger.Info("HTTP server listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-shutdown:
		logger.Info("shutdown signal received", "signal", sig.String())
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	// Graceful shutdown with a 10-second deadline. In-flight Stripe calls
	// are allowed to finish; their side effects are safe to complete even if
	// the original caller is gone.
	logger.Info("initiating graceful shutdown")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server resource shutdown error", "error", err)
		return fmt.Errorf("server shutdown: %w", err)
	}

	logger.Info("server stopped cleanly")
	return nil
}

// newLogger creates a structured slog.Logger configured for the given log level.
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "info":
		lvl = slog.LevelInfo
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level:     lvl,
		AddSource: false,
	})
	return slog.New(handler)
}
