package external

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"payproxy/internal/types"
)

const testWebhookSecret = "whsec_test_secret"

// signPayload computes a Stripe-Signature header value for the payload:
// HMAC-SHA256 over "<timestamp>.<payload>" keyed by the signing secret.
func signPayload(payload []byte, secret string, ts time.Time) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.%s", ts.Unix(), payload)
	return fmt.Sprintf("t=%d,v1=%s", ts.Unix(), hex.EncodeToString(mac.Sum(nil)))
}

func TestStripeVerifier_ValidSignature(t *testing.T) {
	payload := []byte(`{"id":"evt_1","type":"payment_intent.succeeded"}`)
	header := signPayload(payload, testWebhookSecret, time.Now())

	if err := (StripeVerifier{}).Verify(payload, header, testWebhookSecret); err != nil {
		t.Errorf("expected valid signature to verify, got: %v", err)
	}
}

func TestStripeVerifier_TamperedPayload(t *testing.T) {
	payload := []byte(`{"id":"evt_1","type":"payment_intent.succeeded"}`)
	header := signPayload(payload, testWebhookSecret, time.Now())

	// Flip one byte after signing.
	tampered := append([]byte{}, payload...)
	tampered[10] ^= 0x01

	err := (StripeVerifier{}).Verify(tampered, header, testWebhookSecret)
	if err == nil {
		t.Fatal("expected tampered payload to fail verification")
	}

	var appErr *types.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("expected AppError, got %T", err)
	}
	if appErr.Code != types.ErrCodeWebhookSignature {
		t.Errorf("expected %s, got %s", types.ErrCodeWebhookSignature, appErr.Code)
	}
}

func TestStripeVerifier_MessageCarriesFailureReason(t *testing.T) {
	payload := []byte(`{"id":"evt_1","type":"payment_intent.succeeded"}`)

	// Two distinct failures must be distinguishable from the message alone.
	stale := (StripeVerifier{}).Verify(payload,
		signPayload(payload, testWebhookSecret, time.Now().Add(-time.Hour)), testWebhookSecret)
	missing := (StripeVerifier{}).Verify(payload, "", testWebhookSecret)

	for _, err := range []error{stale, missing} {
		if err == nil {
			t.Fatal("expected verification to fail")
		}
		var appErr *types.AppError
		if !errors.As(err, &appErr) {
			t.Fatalf("expected AppError, got %T", err)
		}
		if appErr.Err == nil {
			t.Fatal("expected the underlying verification error to be wrapped")
		}
		if !strings.Contains(appErr.Message, appErr.Err.Error()) {
			t.Errorf("expected message to carry the failure reason %q, got %q",
				appErr.Err.Error(), appErr.Message)
		}
	}

	var staleErr, missingErr *types.AppError
	errors.As(stale, &staleErr)
	errors.As(missing, &missingErr)
	if staleErr.Message == missingErr.Message {
		t.Errorf("distinct failures must produce distinct messages, both got %q", staleErr.Message)
	}
}

func TestStripeVerifier_WrongSecret(t *testing.T) {
	payload := []byte(`{"id":"evt_1","type":"payment_intent.succeeded"}`)
	header := signPayload(payload, "whsec_other", time.Now())

	if err := (StripeVerifier{}).Verify(payload, header, testWebhookSecret); err == nil {
		t.Error("expected signature from a different secret to fail")
	}
}

func TestStripeVerifier_StaleTimestamp(t *testing.T) {
	// Stripe's default tolerance is 5 minutes; an hour-old signature must
	// be rejected even though it is otherwise valid.
	payload := []byte(`{"id":"evt_1","type":"payment_intent.succeeded"}`)
	header := signPayload(payload, testWebhookSecret, time.Now().Add(-time.Hour))

	if err := (StripeVerifier{}).Verify(payload, header, testWebhookSecret); err == nil {
		t.Error("expected stale signature to fail verification")
	}
}

func TestStripeVerifier_MissingHeader(t *testing.T) {
	payload := []byte(`{"id":"evt_1"}`)

	if err := (StripeVerifier{}).Verify(payload, "", testWebhookSecret); err == nil {
		t.Error("expected empty signature header to fail verification")
	}
}
