package core

import (
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"payproxy/internal/types"
)

// Validator wraps go-playground/validator for request-body validation.
// Field names in error messages use the struct's json tag so clients see
// the wire name ("promoCode"), not the Go field name.
type Validator struct {
	logger   *slog.Logger
	validate *validator.Validate
}

// NewValidator creates a new Validator.
func NewValidator(logger *slog.Logger) *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return &Validator{
		logger:   logger,
		validate: v,
	}
}

// ValidateStruct validates s against its validate tags and maps the first
// violation to a client-facing AppError: "required" failures become
// validation_missing_required_field, everything else
// validation_invalid_value.
func (v *Validator) ValidateStruct(s interface{}) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	var invalid *validator.InvalidValidationError
	if errors.As(err, &invalid) {
		return types.NewAppError(
			types.ErrCodeInternalUnexpected,
			"request validation could not be performed",
			err,
		)
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		if fe.Tag() == "required" {
			return types.NewAppError(
				types.ErrCodeValidationMissingField,
				fmt.Sprintf("%s is required", fe.Field()),
				err,
			)
		}
		return types.NewAppError(
			types.ErrCodeValidationInvalidValue,
			fmt.Sprintf("%s failed validation rule %q", fe.Field(), fe.Tag()),
			err,
		)
	}

	return types.NewAppError(
		types.ErrCodeInternalUnexpected,
		"request validation failed unexpectedly",
		err,
	)
}
