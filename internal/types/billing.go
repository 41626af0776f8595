package types

// Domain objects surfaced by the payment proxy. All durable state lives in
// Stripe; these types carry only the fields echoed back to callers, keyed by
// processor-assigned identifiers.

// Customer is the subset of a Stripe customer this service surfaces.
type Customer struct {
	ID    string
	Email string
}

// EphemeralKey is a short-lived, customer-scoped client credential.
type EphemeralKey struct {
	ID     string
	Secret string
}

// PaymentIntentParams are the inputs for creating a payment intent.
// PriceID is opaque and recorded only as metadata for later correlation.
type PaymentIntentParams struct {
	Amount     int64
	Currency   string
	CustomerID string
	PriceID    string
}

// PaymentIntent is the subset of a Stripe payment intent this service surfaces.
type PaymentIntent struct {
	ID           string
	ClientSecret string
	Amount       int64
	Currency     string
}

// SubscriptionParams are the inputs for creating a subscription.
// PromotionCodeID, when non-empty, applies the resolved promotion code.
type SubscriptionParams struct {
	CustomerID      string
	PriceID         string
	PromotionCodeID string
}

// Subscription is the subset of a Stripe subscription this service surfaces.
// PaymentIntentClientSecret is empty when the latest invoice carries no
// payment intent (e.g., a fully discounted subscription).
type Subscription struct {
	ID                        string
	Status                    string
	PaymentIntentClientSecret string
}

// Coupon holds the discount terms behind a promotion code. PercentOff and
// AmountOff are mutually exclusive on Stripe's side; whichever is unset stays
// nil.
type Coupon struct {
	PercentOff       *float64
	AmountOff        *int64
	Duration         string
	DurationInMonths *int64
}

// PromotionCode is an active, caller-facing promo code with its coupon terms.
type PromotionCode struct {
	ID     string
	Code   string
	Coupon Coupon
}
