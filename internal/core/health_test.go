package core

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

// fakeProbe implements HealthProbe with an injectable check function.
type fakeProbe struct {
	name    string
	checkFn func(ctx context.Context) error
}

func (p *fakeProbe) Name() string                    { return p.name }
func (p *fakeProbe) Check(ctx context.Context) error { return p.checkFn(ctx) }

func runHealth(t *testing.T, srv *Server) (*httptest.ResponseRecorder, healthResponse) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.HandleHealth(rec, req)

	var body healthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode health body: %v", err)
	}
	return rec, body
}

func TestHandleHealth_NoProbes(t *testing.T) {
	srv := newTestServer(t)

	rec, body := runHealth(t, srv)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	if body.Status != "ok" {
		t.Errorf("expected ok, got %q", body.Status)
	}
}

func TestHandleHealth_AllHealthy(t *testing.T) {
	srv := newTestServer(t)
	srv.HealthProbes = []HealthProbe{
		&fakeProbe{name: "stripe", checkFn: func(ctx context.Context) error { return nil }},
	}

	rec, body := runHealth(t, srv)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	if body.Components["stripe"].Status != "healthy" {
		t.Errorf("expected stripe healthy, got %+v", body.Components["stripe"])
	}
}

func TestHandleHealth_UnhealthyProbe(t *testing.T) {
	srv := newTestServer(t)
	srv.HealthProbes = []HealthProbe{
		&fakeProbe{name: "good", checkFn: func(ctx context.Context) error { return nil }},
		&fakeProbe{name: "bad", checkFn: func(ctx context.Context) error { return errors.New("unreachable") }},
	}

	rec, body := runHealth(t, srv)

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", rec.Code)
	}
	if body.Status != "unhealthy" {
		t.Errorf("expected unhealthy, got %q", body.Status)
	}
	if body.Components["good"].Status != "healthy" {
		t.Error("healthy probe must still be reported healthy")
	}
	if body.Components["bad"].Message != "unreachable" {
		t.Errorf("expected probe error surfaced, got %q", body.Components["bad"].Message)
	}
}

func TestHandleHealth_HungProbeTimesOut(t *testing.T) {
	srv := newTestServer(t)
	srv.HealthProbes = []HealthProbe{
		&fakeProbe{name: "hung", checkFn: func(ctx context.Context) error {
			<-ctx.Done()
			// Keep blocking past cancellation to simulate a truly stuck probe.
			select {}
		}},
	}

	rec, body := runHealth(t, srv)

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503 for hung probe, got %d", rec.Code)
	}
	if body.Components["hung"].Message != "health check timed out" {
		t.Errorf("expected timeout message, got %q", body.Components["hung"].Message)
	}
}

func TestHandleHealth_PanickingProbe(t *testing.T) {
	srv := newTestServer(t)
	srv.HealthProbes = []HealthProbe{
		&fakeProbe{name: "panicky", checkFn: func(ctx context.Context) error { panic("probe exploded") }},
	}

	rec, body := runHealth(t, srv)

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", rec.Code)
	}
	if body.Components["panicky"].Status != "unhealthy" {
		t.Errorf("expected panicking probe marked unhealthy, got %+v", body.Components["panicky"])
	}
}
