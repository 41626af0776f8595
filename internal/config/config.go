// Package config defines the global configuration structure for the payment
// proxy. Configuration is loaded once at process initialization and is
// immutable thereafter; handlers receive the struct by reference rather than
// reading ambient environment state.
//
// Values are resolved via a priority chain:
//
//	OS Environment (Highest) -> Dotenv File -> AWS SSM Parameter Store (Lowest)
//
// Any missing required value or invalid format aborts startup (fail fast).
package config

import (
	"time"

	"payproxy/internal/types"
)

// SecretString is an alias for types.SecretString, the redacted secret type
// used throughout configuration to prevent accidental logging of sensitive
// values.
type SecretString = types.SecretString

// Config is the top-level configuration struct for the payment proxy.
// It is populated once during process initialization and never modified.
type Config struct {
	// System Metadata
	Environment string `envconfig:"APP_ENV" default:"local" validate:"required,oneof=local dev staging prod"`
	Service     string `envconfig:"SERVICE_NAME" default:"payment-api"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	// Domain Configurations
	Server   ServerConfig
	Stripe   StripeConfig
	Security SecurityConfig
}

// ServerConfig holds HTTP server configuration. The process binds to all
// interfaces on the configured port.
type ServerConfig struct {
	Port           string        `envconfig:"PORT" default:"3000"`
	RequestTimeout time.Duration `envconfig:"REQUEST_TIMEOUT" default:"30s"`
}

// StripeConfig holds Stripe credentials and client tuning.
//
// SecretKey is the live-mode key; TestSecretKey is the fallback used when no
// live key is configured. At least one of the two must be set; the loader
// enforces this after struct validation. PublishableKey is not a secret: it
// is echoed to API callers so their clients can talk to Stripe directly.
type StripeConfig struct {
	SecretKey      SecretString `envconfig:"STRIPE_SECRET_KEY"`
	TestSecretKey  SecretString `envconfig:"STRIPE_TEST_SECRET_KEY"`
	PublishableKey string       `envconfig:"STRIPE_PUBLISHABLE_KEY" validate:"required"`
	WebhookSecret  SecretString `envconfig:"STRIPE_WEBHOOK_SECRET" validate:"required"`

	// DefaultCurrency is applied when a payment-intent request omits currency.
	DefaultCurrency string `envconfig:"STRIPE_DEFAULT_CURRENCY" default:"usd"`

	// RequestTimeout bounds each outbound call to the Stripe API.
	RequestTimeout time.Duration `envconfig:"STRIPE_REQUEST_TIMEOUT" default:"20s"`
}

// APIKey returns the secret key to authenticate against Stripe with: the
// live key when present, otherwise the test key.
func (c StripeConfig) APIKey() SecretString {
	if c.SecretKey != "" {
		return c.SecretKey
	}
	return c.TestSecretKey
}

// SecurityConfig holds cross-origin settings for the inbound API.
type SecurityConfig struct {
	CorsAllowedOrigins []string `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`
}

// ConfigErrorType categorizes configuration loading failures to aid debugging.
type ConfigErrorType string

const (
	// ErrMissingEnv indicates a required environment variable was not found.
	ErrMissingEnv ConfigErrorType = "MISSING_ENV"
	// ErrSSMResolution indicates a failure when fetching secrets from AWS SSM.
	ErrSSMResolution ConfigErrorType = "SSM_FAILURE"
	// ErrValidation indicates the configuration failed struct validation rules.
	ErrValidation ConfigErrorType = "VALIDATION_FAILED"
	// ErrParsing indicates a failure when parsing environment variable values
	// into their target types.
	ErrParsing ConfigErrorType = "PARSING_FAILED"
)
