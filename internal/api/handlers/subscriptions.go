package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"payproxy/internal/core"
	"payproxy/internal/types"
)

// CreateSubscriptionRequest is the request body for POST /create-subscription.
type CreateSubscriptionRequest struct {
	PriceID       string `json:"priceId" validate:"required"`
	CustomerEmail string `json:"customerEmail" validate:"required,email"`
	CustomerID    string `json:"customerId"`
	PromoCode     string `json:"promoCode"`
}

// CreateSubscriptionResponse is the response for POST /create-subscription.
// PaymentIntent is null when the subscription's first invoice carries no
// payment intent, which happens when a promo code fully discounts it.
type CreateSubscriptionResponse struct {
	SubscriptionID string  `json:"subscriptionId"`
	PaymentIntent  *string `json:"paymentIntent"`
	EphemeralKey   string  `json:"ephemeralKey"`
	Customer       string  `json:"customer"`
}

// CancelSubscriptionRequest is the request body for POST /cancel-subscription.
// CustomerID here is the processor-assigned customer id, not an email.
type CancelSubscriptionRequest struct {
	CustomerID string `json:"customerId" validate:"required"`
}

// CancelSubscriptionResponse is the response for POST /cancel-subscription.
type CancelSubscriptionResponse struct {
	Success               bool     `json:"success"`
	CanceledSubscriptions []string `json:"canceledSubscriptions"`
}

// SubscriptionsHandler handles subscription creation and cancellation.
type SubscriptionsHandler struct {
	processor PaymentProcessor
	validator *core.Validator
	logger    *slog.Logger
}

// NewSubscriptionsHandler creates a new SubscriptionsHandler with the
// provided dependencies.
func NewSubscriptionsHandler(
	processor PaymentProcessor,
	v *core.Validator,
	l *slog.Logger,
) *SubscriptionsHandler {
	if l == nil {
		l = slog.Default()
	}

	return &SubscriptionsHandler{
		processor: processor,
		validator: v,
		logger:    l,
	}
}

// RegisterRoutes mounts the subscription endpoints.
func (h *SubscriptionsHandler) RegisterRoutes(r chi.Router) {
	r.Post("/create-subscription", h.CreateSubscription)
	r.Post("/cancel-subscription", h.CancelSubscription)
}

// CreateSubscription handles POST /create-subscription.
//
// Flow:
//  1. Decode and validate the request body.
//  2. Resolve the customer by email (create if absent).
//  3. Issue an ephemeral key scoped to that customer.
//  4. If a promo code was supplied, resolve it to an active promotion code.
//     A code with no active match is silently ignored and the subscription
//     proceeds without a discount.
//  5. Create the subscription with payment collection deferred to client
//     confirmation, applying the promotion code when one resolved.
//
// When the promotion fully discounts the first invoice, the processor
// creates no payment intent and the response carries paymentIntent: null.
func (h *SubscriptionsHandler) CreateSubscription(w http.ResponseWriter, r *http.Request) {
	var req CreateSubscriptionRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}

	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
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

	var promotionCodeID string
	if req.PromoCode != "" {
		promo, promoErr := h.processor.FindActivePromotionCode(r.Context(), req.PromoCode)
		if promoErr != nil {
			h.logger.ErrorContext(r.Context(), "failed to look up promo code",
				"customer_id", customer.ID,
				"error", promoErr,
			)
			core.Error(w, r, promoErr)
			return
		}
		if promo != nil {
			promotionCodeID = promo.ID
		} else {
			h.logger.InfoContext(r.Context(), "promo code has no active match, proceeding without discount",
				"customer_id", customer.ID,
			)
		}
	}

	sub, err := h.processor.CreateSubscription(r.Context(), types.SubscriptionParams{
		CustomerID:      customer.ID,
		PriceID:         req.PriceID,
		PromotionCodeID: promotionCodeID,
	})
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to create subscription",
			"customer_id", customer.ID,
			"price_id", req.PriceID,
			"error", err,
		)
		core.Error(w, r, err)
		return
	}

	resp := CreateSubscriptionResponse{
		SubscriptionID: sub.ID,
		EphemeralKey:   ephemeralKey.Secret,
		Customer:       customer.ID,
	}
	if sub.PaymentIntentClientSecret != "" {
		resp.PaymentIntent = &sub.PaymentIntentClientSecret
	}

	core.JSON(w, r, http.StatusOK, resp)
}

// CancelSubscription handles POST /cancel-subscription.
//
// Lists the customer's active subscriptions (one page of at most 10) and
// cancels each sequentially. A customer with zero active subscriptions is a
// 404. Cancellation is at-least-once and non-atomic: if cancelling the third
// of five subscriptions fails, the first two stay canceled and the request
// fails; the caller must re-invoke to finish.
func (h *SubscriptionsHandler) CancelSubscription(w http.ResponseWriter, r *http.Request) {
	var req CancelSubscriptionRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}

	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	subs, err := h.processor.ListActiveSubscriptions(r.Context(), req.CustomerID)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to list active subscriptions",
			"customer_id", req.CustomerID,
			"error", err,
		)
		core.Error(w, r, err)
		return
	}

	if len(subs) == 0 {
		core.Error(w, r, types.NewAppError(
			types.ErrCodeNotFoundActiveSubscription,
			"no active subscriptions found for this customer",
			nil,
		))
		return
	}

	canceled := make([]string, 0, len(subs))
	for _, sub := range subs {
		result, cancelErr := h.processor.CancelSubscription(r.Context(), sub.ID)
		if cancelErr != nil {
			h.logger.ErrorContext(r.Context(), "failed to cancel subscription",
				"customer_id", req.CustomerID,
				"subscription_id", sub.ID,
				"canceled_so_far", len(canceled),
				"error", cancelErr,
			)
			core.Error(w, r, cancelErr)
			return
		}
		canceled = append(canceled, result.ID)
	}

	h.logger.InfoContext(r.Context(), "canceled subscriptions",
		"customer_id", req.CustomerID,
		"count", len(canceled),
	)

	core.JSON(w, r, http.StatusOK, CancelSubscriptionResponse{
		Success:               true,
		CanceledSubscriptions: canceled,
	})
}
