package external

import (
	"fmt"

	"github.com/stripe/stripe-go/v82/webhook"

	"payproxy/internal/types"
)

// Webhook event types this service reacts to. Anything else is acknowledged
// and logged at debug level.
const (
	EventPaymentIntentSucceeded = "payment_intent.succeeded"
	EventSubscriptionCreated    = "customer.subscription.created"
	EventSubscriptionUpdated    = "customer.subscription.updated"
	EventSubscriptionDeleted    = "customer.subscription.deleted"
)

// WebhookVerifier validates that a webhook payload was signed by the
// processor. Defined as an interface so handler tests can substitute a fake.
type WebhookVerifier interface {
	Verify(payload []byte, signatureHeader string, secret string) error
}

// StripeVerifier verifies Stripe webhook signatures using the official SDK's
// HMAC-SHA256 scheme, including its timestamp tolerance check.
type StripeVerifier struct{}

// Verify checks the Stripe-Signature header against the raw payload. The
// failure reason is carried in the message so a caller can tell a tampered
// payload from a stale timestamp or a missing header.
func (StripeVerifier) Verify(payload []byte, signatureHeader string, secret string) error {
	if err := webhook.ValidatePayload(payload, signatureHeader, secret); err != nil {
		return types.NewAppError(
			types.ErrCodeWebhookSignature,
			fmt.Sprintf("webhook signature verification failed: %v", err),
			err,
		)
	}
	return nil
}
