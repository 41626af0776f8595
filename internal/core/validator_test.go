package core

import (
	"errors"
	"log/slog"
	"strings"
	"testing"

	"payproxy/internal/types"
)

type promoRequest struct {
	PromoCode string `json:"promoCode" validate:"required"`
}

type intentRequest struct {
	PriceID       string `json:"priceId" validate:"required"`
	Amount        int64  `json:"amount" validate:"required,gt=0"`
	CustomerEmail string `json:"customerEmail" validate:"required,email"`
}

func TestValidateStruct_Valid(t *testing.T) {
	v := NewValidator(slog.Default())

	err := v.ValidateStruct(intentRequest{
		PriceID:       "price_1",
		Amount:        100,
		CustomerEmail: "a@b.com",
	})
	if err != nil {
		t.Errorf("expected no error, got: %v", err)
	}
}

func TestValidateStruct_MissingRequiredUsesJSONName(t *testing.T) {
	v := NewValidator(slog.Default())

	err := v.ValidateStruct(promoRequest{})
	if err == nil {
		t.Fatal("expected a validation error")
	}

	var appErr *types.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("expected AppError, got %T", err)
	}
	if appErr.Code != types.ErrCodeValidationMissingField {
		t.Errorf("expected %s, got %s", types.ErrCodeValidationMissingField, appErr.Code)
	}
	// Clients see the wire name, not the Go field name.
	if !strings.Contains(appErr.Message, "promoCode") {
		t.Errorf("expected message to reference json tag name, got %q", appErr.Message)
	}
	if strings.Contains(appErr.Message, "PromoCode") {
		t.Errorf("message must not leak the Go field name, got %q", appErr.Message)
	}
}

func TestValidateStruct_InvalidValue(t *testing.T) {
	v := NewValidator(slog.Default())

	err := v.ValidateStruct(intentRequest{
		PriceID:       "price_1",
		Amount:        -5,
		CustomerEmail: "a@b.com",
	})
	if err == nil {
		t.Fatal("expected a validation error")
	}

	var appErr *types.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("expected AppError, got %T", err)
	}
	if appErr.Code != types.ErrCodeValidationInvalidValue {
		t.Errorf("expected %s, got %s", types.ErrCodeValidationInvalidValue, appErr.Code)
	}
}

func TestValidateStruct_InvalidEmail(t *testing.T) {
	v := NewValidator(slog.Default())

	err := v.ValidateStruct(intentRequest{
		PriceID:       "price_1",
		Amount:        100,
		CustomerEmail: "not-an-email",
	})
	if err == nil {
		t.Fatal("expected a validation error")
	}

	var appErr *types.AppError
	errors.As(err, &appErr)
	if appErr.Code != types.ErrCodeValidationInvalidValue {
		t.Errorf("expected %s, got %s", types.ErrCodeValidationInvalidValue, appErr.Code)
	}
}
