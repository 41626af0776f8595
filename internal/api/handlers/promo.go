package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"payproxy/internal/core"
	"payproxy/internal/types"
)

// ValidatePromoRequest is the request body for POST /validate-promo.
type ValidatePromoRequest struct {
	PromoCode string `json:"promoCode" validate:"required"`
}

// ValidatePromoResponse is the response for POST /validate-promo.
// On a miss only Valid is set (false). On a hit, PromoCodeID and whichever
// discount terms the underlying coupon defines are populated. On a processor
// failure the route still answers with this shape, carrying Valid false and
// the processor's message in ErrorMessage alongside a 500 status.
type ValidatePromoResponse struct {
	Valid            bool     `json:"valid"`
	PromoCodeID      string   `json:"promoCodeId,omitempty"`
	PercentOff       *float64 `json:"percentOff,omitempty"`
	AmountOff        *int64   `json:"amountOff,omitempty"`
	Duration         string   `json:"duration,omitempty"`
	DurationInMonths *int64   `json:"durationInMonths,omitempty"`
	ErrorMessage     string   `json:"error,omitempty"`
}

// PromoHandler handles promo code validation.
type PromoHandler struct {
	processor PaymentProcessor
	validator *core.Validator
	logger    *slog.Logger
}

// NewPromoHandler creates a new PromoHandler with the provided dependencies.
func NewPromoHandler(processor PaymentProcessor, v *core.Validator, l *slog.Logger) *PromoHandler {
	if l == nil {
		l = slog.Default()
	}

	return &PromoHandler{
		processor: processor,
		validator: v,
		logger:    l,
	}
}

// RegisterRoutes mounts the promo validation endpoint.
func (h *PromoHandler) RegisterRoutes(r chi.Router) {
	r.Post("/validate-promo", h.ValidatePromo)
}

// ValidatePromo handles POST /validate-promo.
//
// A missing promoCode is a 400 client error. A code with no active match is
// NOT an error: the route answers 200 with {"valid": false}. Only a
// processor-side failure produces a 500, and that body still carries
// valid:false plus the processor's message so promo UIs need a single
// response shape.
func (h *PromoHandler) ValidatePromo(w http.ResponseWriter, r *http.Request) {
	var req ValidatePromoRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}

	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	promo, err := h.processor.FindActivePromotionCode(r.Context(), req.PromoCode)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to look up promo code", "error", err)

		message := "promo code lookup failed"
		var appErr *types.AppError
		if errors.As(err, &appErr) {
			message = appErr.Message
		}
		core.JSON(w, r, http.StatusInternalServerError, ValidatePromoResponse{
			Valid:        false,
			ErrorMessage: message,
		})
		return
	}

	if promo == nil {
		core.JSON(w, r, http.StatusOK, ValidatePromoResponse{Valid: false})
		return
	}

	core.JSON(w, r, http.StatusOK, ValidatePromoResponse{
		Valid:            true,
		PromoCodeID:      promo.ID,
		PercentOff:       promo.Coupon.PercentOff,
		AmountOff:        promo.Coupon.AmountOff,
		Duration:         promo.Coupon.Duration,
		DurationInMonths: promo.Coupon.DurationInMonths,
	})
}
