package core

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"payproxy/internal/types"
)

// defaultRedactedHeaders lists header names whose values are masked in
// request logs to prevent accidental leakage of credentials or signatures.
var defaultRedactedHeaders = []string{
	"Authorization",
	"Cookie",
	"Stripe-Signature",
}

// serviceEndpoints enumerates the routes advertised by the index endpoint.
var serviceEndpoints = []string{
	"POST /create-payment-intent",
	"POST /create-subscription",
	"POST /cancel-subscription",
	"POST /validate-promo",
	"POST /webhook",
	"GET /health",
}

// MountRoutes defines the top-level routing hierarchy: the global middleware
// chain, the handler routes supplied via RouteRegistrars, and the service
// index and health endpoints.
func (s *Server) MountRoutes() {
	s.registerGlobalMiddleware()

	for _, registrar := range s.RouteRegistrars {
		registrar(s.router)
	}

	s.router.Get("/health", s.HandleHealth)
	s.router.Get("/", s.HandleIndex)
}

// registerGlobalMiddleware applies middleware in strict order.
//
// Ordering rationale:
//  1. Recoverer       - catches panics; outermost to catch all failures.
//  2. ContextTimeout  - soft deadline covering all downstream Stripe calls.
//  3. RequestID       - correlation ID for tracing.
//  4. SecurityHeaders - present on every response, including errors.
//  5. RequestLogger   - structured logging (redacted headers).
//  6. CORS            - browser preflight handling.
//  7. Metrics         - request latency/count recording (nil-safe).
func (s *Server) registerGlobalMiddleware() {
	s.router.Use(s.Recoverer)
	s.router.Use(ContextTimeoutMiddleware(s.Config.Server.RequestTimeout))
	s.router.Use(RequestIDMiddleware)
	s.router.Use(s.SecurityHeadersMiddleware)
	s.router.Use(RequestLogger(s.Logger, defaultRedactedHeaders))
	s.router.Use(NewCORSMiddleware(s.Config.Security.CorsAllowedOrigins))
	s.router.Use(s.MetricsMiddleware)
}

// indexResponse is the body served by the index endpoint.
type indexResponse struct {
	Service   string   `json:"service"`
	Status    string   `json:"status"`
	Endpoints []string `json:"endpoints"`
}

// HandleIndex serves a service descriptor listing the available endpoints.
// Mounted at GET /.
func (s *Server) HandleIndex(w http.ResponseWriter, r *http.Request) {
	JSON(w, r, http.StatusOK, indexResponse{
		Service:   s.Config.Service,
		Status:    "ok",
		Endpoints: serviceEndpoints,
	})
}

// ContextTimeoutMiddleware sets a deadline on the request context. Every
// outbound Stripe call inherits this deadline, so a stuck upstream cannot
// hold a request open indefinitely.
func ContextTimeoutMiddleware(duration time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), duration)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequestIDMiddleware generates or propagates a unique request ID for
// correlation across logs. If the incoming request contains an X-Request-Id
// header, that value is reused; otherwise, a new UUID is generated.
//
// The request ID is stored in the context via types.WithRequestID and set as
// the X-Request-Id response header for client correlation.
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-Id")
		if requestID == "" {
			requestID = uuid.NewString()
		}

		ctx := types.WithRequestID(r.Context(), requestID)
		w.Header().Set("X-Request-Id", requestID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
