package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"testing"

	"payproxy/internal/types"
)

func newTestPromoHandler(processor *mockProcessor) *PromoHandler {
	return NewPromoHandler(processor, testValidator(), slog.Default())
}

func TestValidatePromo_MissingCodeIs400(t *testing.T) {
	handler := newTestPromoHandler(&mockProcessor{})

	rec := postJSON(t, handler.ValidatePromo, "/validate-promo", ValidatePromoRequest{})

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
	if code := errorCode(t, rec); code != string(types.ErrCodeValidationMissingField) {
		t.Errorf("expected error code %s, got %s", types.ErrCodeValidationMissingField, code)
	}
}

func TestValidatePromo_NoMatchIsValidFalse200(t *testing.T) {
	processor := &mockProcessor{
		findPromotionCodeFn: func(_ context.Context, _ string) (*types.PromotionCode, error) {
			return nil, nil
		},
	}
	handler := newTestPromoHandler(processor)

	rec := postJSON(t, handler.ValidatePromo, "/validate-promo", ValidatePromoRequest{PromoCode: "NOPE"})

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp ValidatePromoResponse
	decodeBody(t, rec, &resp)
	if resp.Valid {
		t.Error("expected valid:false for unmatched code")
	}
	if resp.PromoCodeID != "" {
		t.Errorf("expected no promoCodeId, got %q", resp.PromoCodeID)
	}
}

func TestValidatePromo_MatchReturnsDiscountTerms(t *testing.T) {
	percentOff := 10.0
	months := int64(3)
	processor := &mockProcessor{
		findPromotionCodeFn: func(_ context.Context, _ string) (*types.PromotionCode, error) {
			return &types.PromotionCode{
				ID:   "promo_save10",
				Code: "SAVE10",
				Coupon: types.Coupon{
					PercentOff:       &percentOff,
					Duration:         "repeating",
					DurationInMonths: &months,
				},
			}, nil
		},
	}
	handler := newTestPromoHandler(processor)

	rec := postJSON(t, handler.ValidatePromo, "/validate-promo", ValidatePromoRequest{PromoCode: "SAVE10"})

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp ValidatePromoResponse
	decodeBody(t, rec, &resp)
	if !resp.Valid {
		t.Error("expected valid:true")
	}
	if resp.PromoCodeID != "promo_save10" {
		t.Errorf("expected promoCodeId promo_save10, got %q", resp.PromoCodeID)
	}
	if resp.PercentOff == nil || *resp.PercentOff != 10.0 {
		t.Errorf("expected percentOff 10.0, got %v", resp.PercentOff)
	}
	if resp.AmountOff != nil {
		t.Errorf("expected no amountOff, got %v", *resp.AmountOff)
	}
	if resp.Duration != "repeating" {
		t.Errorf("expected duration repeating, got %q", resp.Duration)
	}
	if resp.DurationInMonths == nil || *resp.DurationInMonths != 3 {
		t.Errorf("expected durationInMonths 3, got %v", resp.DurationInMonths)
	}
}

func TestValidatePromo_CaseInsensitiveLookup(t *testing.T) {
	// Both spellings must reach the processor and resolve to the same id;
	// uppercasing happens inside the processor client.
	var lookups []string
	processor := &mockProcessor{
		findPromotionCodeFn: func(_ context.Context, code string) (*types.PromotionCode, error) {
			lookups = append(lookups, code)
			return &types.PromotionCode{ID: "promo_save10", Code: "SAVE10"}, nil
		},
	}
	handler := newTestPromoHandler(processor)

	var ids []string
	for _, spelling := range []string{"SAVE10", "save10"} {
		rec := postJSON(t, handler.ValidatePromo, "/validate-promo", ValidatePromoRequest{PromoCode: spelling})
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200 for %q, got %d", spelling, rec.Code)
		}
		var resp ValidatePromoResponse
		decodeBody(t, rec, &resp)
		ids = append(ids, resp.PromoCodeID)
	}

	if ids[0] != ids[1] {
		t.Errorf("expected both spellings to resolve to the same id, got %q and %q", ids[0], ids[1])
	}
	if len(lookups) != 2 {
		t.Errorf("expected 2 lookups, got %d", len(lookups))
	}
}

func TestValidatePromo_ProcessorFailureIs500WithValidFalse(t *testing.T) {
	processor := &mockProcessor{
		findPromotionCodeFn: func(_ context.Context, _ string) (*types.PromotionCode, error) {
			return nil, types.NewAppError(
				types.ErrCodeUpstreamStripe,
				"Invalid API Key provided",
				nil,
			)
		},
	}
	handler := newTestPromoHandler(processor)

	rec := postJSON(t, handler.ValidatePromo, "/validate-promo", ValidatePromoRequest{PromoCode: "SAVE10"})

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}

	var resp ValidatePromoResponse
	decodeBody(t, rec, &resp)
	if resp.Valid {
		t.Error("expected valid:false in error body")
	}
	if resp.ErrorMessage != "Invalid API Key provided" {
		t.Errorf("expected processor message passed through, got %q", resp.ErrorMessage)
	}
}
