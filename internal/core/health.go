package core

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// healthCheckTimeout is the maximum time allowed for all health probes to
// complete. If any probe exceeds this deadline, the health check returns
// 503 Service Unavailable.
const healthCheckTimeout = 2 * time.Second

// HealthProbe defines the interface for a dependency health check. The
// service itself is stateless, so probes are optional; a deployment can
// register one for anything it considers critical.
type HealthProbe interface {
	// Name returns a human-readable identifier for the probe.
	Name() string

	// Check performs the health check against the subsystem. It should
	// respect the context deadline and return an error if the subsystem is
	// unhealthy or unreachable.
	Check(ctx context.Context) error
}

// componentStatus represents the health state of a single subsystem.
type componentStatus struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// healthResponse is the JSON response body for the health check endpoint.
type healthResponse struct {
	Status     string                     `json:"status"`
	Components map[string]componentStatus `json:"components,omitempty"`
}

// HandleHealth executes all registered health probes concurrently with a
// short timeout. Returns 200 OK with {"status":"ok"} if all probes report
// healthy (or none are registered), 503 Service Unavailable if any probe
// fails or the global timeout is exceeded.
//
// This endpoint is public and is mounted at GET /health.
func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	probes := s.HealthProbes
	if len(probes) == 0 {
		JSON(w, r, http.StatusOK, healthResponse{Status: "ok"})
		return
	}

	var (
		mu         sync.Mutex
		components = make(map[string]componentStatus, len(probes))
		allHealthy = true
	)

	g, gctx := errgroup.WithContext(ctx)
	for _, probe := range probes {
		g.Go(func() error {
			var err error
			func() {
				defer func() {
					if rec := recover(); rec != nil {
						err = fmt.Errorf("probe panicked: %v", rec)
					}
				}()
				err = probe.Check(gctx)
			}()

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				allHealthy = false
				components[probe.Name()] = componentStatus{
					Status:  "unhealthy",
					Message: err.Error(),
				}
			} else {
				components[probe.Name()] = componentStatus{Status: "healthy"}
			}
			// Probe failures are reported in the body, not as a group error:
			// every probe should run even when one fails.
			return nil
		})
	}
	// Wait for all probes to complete or the deadline to expire. A hung
	// probe must not hang the health endpoint with it.
	done := make(chan struct{})
	go func() {
		_ = g.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}

	// Any probe that did not record a result before the deadline counts as
	// timed out.
	mu.Lock()
	for _, probe := range probes {
		if _, ok := components[probe.Name()]; !ok {
			allHealthy = false
			components[probe.Name()] = componentStatus{
				Status:  "unhealthy",
				Message: "health check timed out",
			}
		}
	}
	mu.Unlock()

	resp := healthResponse{Components: components}
	if allHealthy {
		resp.Status = "ok"
		JSON(w, r, http.StatusOK, resp)
		return
	}
	resp.Status = "unhealthy"
	JSON(w, r, http.StatusServiceUnavailable, resp)
}
