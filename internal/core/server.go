// Package core provides the API chassis for the payment proxy. It creates a
// chi router and enforces cross-cutting concerns -- panic recovery, request
// correlation, logging, and error handling -- before requests reach the
// payment handlers.
package core

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"payproxy/internal/config"
)

// MetricsCollector defines the interface for recording API telemetry.
// No collector ships with this service; the hook exists so a deployment can
// attach one without touching the middleware chain.
type MetricsCollector interface {
	// RecordRequest records API request metrics including latency and count.
	RecordRequest(method, endpoint, status string, duration time.Duration)
}

// Server encapsulates the dependencies shared by all handlers, allowing for
// easy injection during testing and distinct configuration for different
// environments.
type Server struct {
	Config    *config.Config
	Logger    *slog.Logger
	Validator *Validator
	Metrics   MetricsCollector

	// RouteRegistrars are invoked by MountRoutes to register handler routes.
	// Populated by the application entry point; this indirection avoids an
	// import cycle between core and the handler package.
	RouteRegistrars []func(chi.Router)

	// HealthProbes are optional dependency checks run by the health endpoint.
	HealthProbes []HealthProbe

	router *chi.Mux
}

// NewServer initializes dependencies, sets up the router, and prepares the
// server for route mounting. It performs a fail-fast check on critical
// dependencies.
//
// The caller is responsible for mounting routes (via MountRoutes) after
// construction. This separation allows tests to customize route
// registration.
func NewServer(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger must not be nil")
	}

	return &Server{
		Config:    cfg,
		Logger:    logger,
		Validator: NewValidator(logger),
		router:    chi.NewRouter(),
	}, nil
}

// Handler returns the http.Handler interface for the router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Router returns the underlying chi.Mux for route registration in tests.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Shutdown performs a graceful termination of server resources. The service
// holds no connection pools, so this only flushes state and logs the event;
// it exists so the entry point's shutdown path stays uniform if resources
// are added later.
func (s *Server) Shutdown(_ context.Context) error {
	s.Logger.Info("server shutdown complete")
	return nil
}
