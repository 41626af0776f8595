// Package handlers contains the HTTP handler implementations for the payment
// proxy API. Each handler translates an inbound JSON body into one or more
// payment-processor calls and maps the result into the fixed response shape
// for its route.
package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"payproxy/internal/config"
	"payproxy/internal/core"
	"payproxy/internal/types"
)

// PaymentProcessor abstracts the payment provider (Stripe). The interface is
// defined here, on the consumer side, so handler tests can inject a mock
// instead of a live client.
type PaymentProcessor interface {
	// ResolveCustomer returns the customer for the given email, creating one
	// if none exists. The externalID is attached as metadata on creation only.
	ResolveCustomer(ctx context.Context, email, externalID string) (types.Customer, error)

	// CreateEphemeralKey issues a short-lived client credential scoped to the
	// customer.
	CreateEphemeralKey(ctx context.Context, customerID string) (types.EphemeralKey, error)

	// CreatePaymentIntent creates a payment intent with automatic payment
	// methods enabled.
	CreatePaymentIntent(ctx context.Context, params types.PaymentIntentParams) (types.PaymentIntent, error)

	// CreateSubscription creates an incomplete subscription, optionally with a
	// promotion code applied.
	CreateSubscription(ctx context.Context, params types.SubscriptionParams) (types.Subscription, error)

	// FindActivePromotionCode resolves an active promo code case-insensitively.
	// Returns (nil, nil) when no active code matches.
	FindActivePromotionCode(ctx context.Context, code string) (*types.PromotionCode, error)

	// ListActiveSubscriptions returns the customer's active subscriptions, up
	// to the provider page size.
	ListActiveSubscriptions(ctx context.Context, customerID string) ([]types.Subscription, error)

	// CancelSubscription cancels the subscription immediately.
	CancelSubscription(ctx context.Context, subscriptionID string) (types.Subscription, error)
}

// CreatePaymentIntentRequest is the request body for POST /create-payment-intent.
// CustomerID is an optional caller-supplied identifier recorded as metadata;
// it never drives customer matching.
type CreatePaymentIntentRequest struct {
	PriceID       string `json:"priceId" validate:"required"`
	Amount        int64  `json:"amount" validate:"required,gt=0"`
	Currency      string `json:"currency" validate:"omitempty,len=3"`
	CustomerID    string `json:"customerId"`
	CustomerEmail string `json:"customerEmail" validate:"required,email"`
}

// CreatePaymentIntentResponse is the response for POST /create-payment-intent.
// PaymentIntent and EphemeralKey carry client secrets intended for the
// caller's payment UI; Customer is the processor-assigned customer id.
type CreatePaymentIntentResponse struct {
	PaymentIntent  string `json:"paymentIntent"`
	EphemeralKey   string `json:"ephemeralKey"`
	Customer       string `json:"customer"`
	PublishableKey string `json:"publishableKey"`
}

// PaymentsHandler handles one-off payment intent creation.
type PaymentsHandler struct {
	processor       PaymentProcessor
	validator       *core.Validator
	publishableKey  string
	defaultCurrency string
	logger          *slog.Logger
}

// NewPaymentsHandler creates a new PaymentsHandler with the provided
// dependencies.
func NewPaymentsHandler(
	processor PaymentProcessor,
	cfg *config.Config,
	v *core.Validator,
	l *slog.Logger,
) *PaymentsHandler {
	if l == nil {
		l = slog.Default()
	}

	return &PaymentsHandler{
		processor:       processor,
		validator:       v,
		publishableKey:  cfg.Stripe.PublishableKey,
		defaultCurrency: cfg.Stripe.DefaultCurrency,
		logger:          l,
	}
}

// RegisterRoutes mounts the payment intent endpoint.
func (h *PaymentsHandler) RegisterRoutes(r chi.Router) {
	r.Post("/create-payment-intent", h.CreatePaymentIntent)
}

// CreatePaymentIntent handles POST /create-payment-intent.
//
// Flow:
//  1. Decode and validate the request body.
//  2. Resolve the customer by email (create if absent).
//  3. Issue an ephemeral key scoped to that customer.
//  4. Create the payment intent for the requested amount and currency.
//  5. Return the client secrets plus the publishable key from configuration.
//
// The three processor calls are strictly sequential; each depends on the
// previous result. Any processor failure aborts the request with a 500
// carrying the processor's message.
func (h *PaymentsHandler) CreatePaymentIntent(w http.ResponseWriter, r *http.Request) {
	var req CreatePaymentIntentRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}

	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	currency := req.Currency
	if currency == "" {
		currency = h.defaultCurrency
	}

	customer, err := h.processor.ResolveCustomer(r.Context(), req.CustomerEmail, req.CustomerID)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to resolve customer",
			"email", req.CustomerEmail,
			"error", err,
		)
		core.Error(w, r, err)
		return
	}

	ephemeralKey, err := h.processor.CreateEphemeralKey(r.Context(), customer.ID)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to create ephemeral key",
			"customer_id", customer.ID,
			"error", err,
		)
		core.Error(w, r, err)
		return
	}

	intent, err := h.processor.CreatePaymentIntent(r.Context(), types.PaymentIntentParams{
		Amount:     req.Amount,
		Currency:   currency,
		CustomerID: customer.ID,
		PriceID:    req.PriceID,
	})
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to create payment intent",
			"customer_id", customer.ID,
			"amount", req.Amount,
			"currency", currency,
			"error", err,
		)
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, CreatePaymentIntentResponse{
		PaymentIntent:  intent.ClientSecret,
		EphemeralKey:   ephemeralKey.Secret,
		Customer:       customer.ID,
		PublishableKey: h.publishableKey,
	})
}
