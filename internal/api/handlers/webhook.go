package handlers

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"payproxy/internal/core"
	"payproxy/internal/external"
	"payproxy/internal/types"
)

// maxWebhookBodySize caps webhook payloads at 64 KB. Stripe events are far
// smaller; anything larger is hostile.
const maxWebhookBodySize = 64 * 1024

// webhookEvent is the minimal shape parsed from a verified payload. Parsing
// happens only AFTER signature verification; the signature is computed over
// the exact raw bytes, so the body is never reparsed or re-serialized before
// the check.
type webhookEvent struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

// WebhookHandler receives signed processor events.
type WebhookHandler struct {
	verifier      external.WebhookVerifier
	webhookSecret types.SecretString
	logger        *slog.Logger
}

// NewWebhookHandler creates a new WebhookHandler with the provided
// dependencies.
func NewWebhookHandler(verifier external.WebhookVerifier, secret types.SecretString, l *slog.Logger) *WebhookHandler {
	if l == nil {
		l = slog.Default()
	}

	return &WebhookHandler{
		verifier:      verifier,
		webhookSecret: secret,
		logger:        l,
	}
}

// RegisterRoutes mounts the webhook endpoint.
func (h *WebhookHandler) RegisterRoutes(r chi.Router) {
	r.Post("/webhook", h.Receive)
}

// webhookAck is the fixed acknowledgment body. Stripe stops retrying
// delivery once it sees a 2xx, so this must never be written before the
// signature check passes, and is written exactly once per delivery.
type webhookAck struct {
	Received bool `json:"received"`
}

// Receive handles POST /webhook.
//
// Flow: read the exact raw bytes, verify the Stripe-Signature header against
// them, then parse the event and dispatch on its type. Every dispatch branch
// is log-only; this service keeps no state to update. Unrecognized event
// types are acknowledged too, otherwise Stripe would retry them forever.
func (h *WebhookHandler) Receive(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBodySize))
	if err != nil {
		core.Error(w, r, types.NewAppError(
			types.ErrCodeWebhookUnreadable,
			"failed to read webhook payload",
			err,
		))
		return
	}

	signature := r.Header.Get("Stripe-Signature")
	if err := h.verifier.Verify(payload, signature, h.webhookSecret.Unmask()); err != nil {
		h.logger.WarnContext(r.Context(), "webhook signature verification failed", "error", err)
		core.Error(w, r, err)
		return
	}

	var event webhookEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		core.Error(w, r, types.NewAppError(
			types.ErrCodeWebhookMalformed,
			"webhook payload is not a valid event",
			err,
		))
		return
	}

	h.routeEvent(r, event)

	core.JSON(w, r, http.StatusOK, webhookAck{Received: true})
}

// routeEvent dispatches a verified event by type. All branches log only.
// A deployment that needs to update entitlements would attach its store here.
func (h *WebhookHandler) routeEvent(r *http.Request, event webhookEvent) {
	ctx := r.Context()

	switch event.Type {
	case external.EventPaymentIntentSucceeded:
		h.logger.InfoContext(ctx, "payment succeeded",
			"event_id", event.ID,
			"event_type", event.Type,
		)
	case external.EventSubscriptionCreated, external.EventSubscriptionUpdated:
		h.logger.InfoContext(ctx, "subscription changed",
			"event_id", event.ID,
			"event_type", event.Type,
		)
	case external.EventSubscriptionDeleted:
		h.logger.InfoContext(ctx, "subscription deleted",
			"event_id", event.ID,
			"event_type", event.Type,
		)
	default:
		h.logger.DebugContext(ctx, "unhandled webhook event type",
			"event_id", event.ID,
			"event_type", event.Type,
		)
	}
}
