package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"payproxy/internal/external"
	"payproxy/internal/types"
)

// mockWebhookVerifier implements external.WebhookVerifier for testing.
type mockWebhookVerifier struct {
	err error

	// captured inputs for inspection
	payload []byte
	header  string
	secret  string
}

func (m *mockWebhookVerifier) Verify(payload []byte, header string, secret string) error {
	m.payload = payload
	m.header = header
	m.secret = secret
	return m.err
}

func newTestWebhookHandler(verifier external.WebhookVerifier) *WebhookHandler {
	return NewWebhookHandler(verifier, "whsec_test", slog.Default())
}

// buildEvent creates a JSON-encoded Stripe event payload.
func buildEvent(eventType, eventID string) []byte {
	event := map[string]any{
		"id":   eventID,
		"type": eventType,
		"data": map[string]any{
			"object": map[string]any{"id": "obj_1"},
		},
	}
	b, _ := json.Marshal(event)
	return b
}

func postWebhook(handler *WebhookHandler, payload []byte, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewReader(payload))
	if signature != "" {
		req.Header.Set("Stripe-Signature", signature)
	}
	rec := httptest.NewRecorder()
	handler.Receive(rec, req)
	return rec
}

func TestWebhook_ValidSignatureAcknowledged(t *testing.T) {
	verifier := &mockWebhookVerifier{}
	handler := newTestWebhookHandler(verifier)

	payload := buildEvent(external.EventPaymentIntentSucceeded, "evt_1")
	rec := postWebhook(handler, payload, "t=123,v1=abc")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var ack struct {
		Received bool `json:"received"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &ack); err != nil {
		t.Fatalf("failed to decode ack: %v", err)
	}
	if !ack.Received {
		t.Error("expected received:true")
	}

	// The verifier must see the exact raw bytes and the signature header.
	if !bytes.Equal(verifier.payload, payload) {
		t.Error("verifier did not receive the exact raw payload bytes")
	}
	if verifier.header != "t=123,v1=abc" {
		t.Errorf("verifier received wrong signature header: %q", verifier.header)
	}
	if verifier.secret != "whsec_test" {
		t.Errorf("verifier received wrong secret: %q", verifier.secret)
	}
}

func TestWebhook_InvalidSignatureRejected(t *testing.T) {
	verifier := &mockWebhookVerifier{
		err: types.NewAppError(
			types.ErrCodeWebhookSignature,
			"webhook signature verification failed",
			errors.New("no valid signature found"),
		),
	}
	handler := newTestWebhookHandler(verifier)

	rec := postWebhook(handler, buildEvent(external.EventPaymentIntentSucceeded, "evt_1"), "t=123,v1=tampered")

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if code := errorCode(t, rec); code != string(types.ErrCodeWebhookSignature) {
		t.Errorf("expected code %s, got %s", types.ErrCodeWebhookSignature, code)
	}
	if bytes.Contains(rec.Body.Bytes(), []byte(`"received"`)) {
		t.Error("acknowledgment must never be sent for a rejected payload")
	}
}

func TestWebhook_MalformedEventAfterValidSignature(t *testing.T) {
	// Signature verification happens over raw bytes, so a verified payload
	// can still fail event parsing.
	handler := newTestWebhookHandler(&mockWebhookVerifier{})

	rec := postWebhook(handler, []byte(`not json at all`), "t=123,v1=abc")

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if code := errorCode(t, rec); code != string(types.ErrCodeWebhookMalformed) {
		t.Errorf("expected code %s, got %s", types.ErrCodeWebhookMalformed, code)
	}
}

func TestWebhook_KnownEventTypesAcknowledged(t *testing.T) {
	handler := newTestWebhookHandler(&mockWebhookVerifier{})

	eventTypes := []string{
		external.EventPaymentIntentSucceeded,
		external.EventSubscriptionCreated,
		external.EventSubscriptionUpdated,
		external.EventSubscriptionDeleted,
		"charge.refunded", // unrecognized types are acknowledged too
	}

	for _, eventType := range eventTypes {
		t.Run(eventType, func(t *testing.T) {
			rec := postWebhook(handler, buildEvent(eventType, "evt_x"), "t=1,v1=s")
			if rec.Code != http.StatusOK {
				t.Errorf("expected 200 for %s, got %d", eventType, rec.Code)
			}
		})
	}
}

func TestWebhook_MissingSignatureHeaderRejected(t *testing.T) {
	// Uses the real verifier: an empty signature header must fail closed.
	handler := newTestWebhookHandler(external.StripeVerifier{})

	rec := postWebhook(handler, buildEvent(external.EventPaymentIntentSucceeded, "evt_1"), "")

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 with real verifier and no signature, got %d", rec.Code)
	}
}
