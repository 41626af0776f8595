package external

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v82"

	"payproxy/internal/types"
)

const (
	defaultStripeBaseURL = "https://api.stripe.com"
	stripeUserAgent      = "payproxy/1.0"

	// activeSubscriptionPageSize bounds how many active subscriptions a
	// single cancel request will fetch and cancel.
	activeSubscriptionPageSize = 10
)

// StripeClient talks to the Stripe REST API directly with form-encoded
// requests. All calls go through the shared BaseClient, which provides
// retries and circuit breaking. The API key is held as a SecretString so it
// can never leak through logs.
type StripeClient struct {
	base    *BaseClient
	apiKey  types.SecretString
	baseURL string
	logger  *slog.Logger
}

// StripeClientOption is a functional option for configuring a StripeClient.
type StripeClientOption func(*StripeClient)

// WithBaseURL overrides the Stripe API base URL. Used in tests to point the
// client at a local httptest server.
func WithBaseURL(baseURL string) StripeClientOption {
	return func(c *StripeClient) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithHTTPClient replaces the underlying BaseClient, primarily so tests can
// inject a non-sleeping retry policy.
func WithHTTPClient(base *BaseClient) StripeClientOption {
	return func(c *StripeClient) {
		c.base = base
	}
}

// NewStripeClient creates a StripeClient authenticated with the given secret
// key.
func NewStripeClient(apiKey types.SecretString, timeout time.Duration, logger *slog.Logger, opts ...StripeClientOption) *StripeClient {
	c := &StripeClient{
		base: NewBaseClient(
			&http.Client{Timeout: timeout},
			"stripe",
			DefaultRetryPolicy(),
			stripeUserAgent,
		),
		apiKey:  apiKey,
		baseURL: defaultStripeBaseURL,
		logger:  logger,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// stripeErrorResponse is the error envelope Stripe returns on non-2xx
// responses.
type stripeErrorResponse struct {
	Error struct {
		Type    string `json:"type"`
		Code    string `json:"code"`
		Message string `json:"message"`
		Param   string `json:"param"`
	} `json:"error"`
}

// Wire representations of the Stripe objects this service reads. Only the
// fields the proxy surfaces are decoded.
type stripeCustomer struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

type stripeEphemeralKey struct {
	ID     string `json:"id"`
	Secret string `json:"secret"`
}

type stripePaymentIntent struct {
	ID           string `json:"id"`
	ClientSecret string `json:"client_secret"`
	Amount       int64  `json:"amount"`
	Currency     string `json:"currency"`
}

type stripeInvoice struct {
	PaymentIntent *stripePaymentIntent `json:"payment_intent"`
}

type stripeSubscription struct {
	ID            string         `json:"id"`
	Status        string         `json:"status"`
	LatestInvoice *stripeInvoice `json:"latest_invoice"`
}

type stripeCoupon struct {
	PercentOff       *float64 `json:"percent_off"`
	AmountOff        *int64   `json:"amount_off"`
	Duration         string   `json:"duration"`
	DurationInMonths *int64   `json:"duration_in_months"`
}

type stripePromotionCode struct {
	ID     string       `json:"id"`
	Code   string       `json:"code"`
	Active bool         `json:"active"`
	Coupon stripeCoupon `json:"coupon"`
}

type stripeList[T any] struct {
	Data    []T  `json:"data"`
	HasMore bool `json:"has_more"`
}

// ResolveCustomer finds the Stripe customer with the given email, creating
// one if none exists. Matching is always by email, first match wins; any
// caller-supplied externalID is ignored for matching and only recorded as
// metadata on newly created customers for later correlation. Lookup then
// create is not atomic, so concurrent callers with the same email can create
// duplicates upstream; this is accepted as best effort.
func (c *StripeClient) ResolveCustomer(ctx context.Context, email, externalID string) (types.Customer, error) {
	query := url.Values{}
	query.Set("email", email)
	query.Set("limit", "1")

	var list stripeList[stripeCustomer]
	if err := c.doGet(ctx, "/v1/customers", query, &list); err != nil {
		return types.Customer{}, err
	}

	if len(list.Data) > 0 {
		found := list.Data[0]
		return types.Customer{ID: found.ID, Email: found.Email}, nil
	}

	form := url.Values{}
	form.Set("email", email)
	if externalID != "" {
		form.Set("metadata[external_id]", externalID)
	}

	var created stripeCustomer
	if err := c.doPost(ctx, "/v1/customers", form, &created); err != nil {
		return types.Customer{}, err
	}

	c.logger.InfoContext(ctx, "created stripe customer", slog.String("customer_id", created.ID))
	return types.Customer{ID: created.ID, Email: created.Email}, nil
}

// CreateEphemeralKey issues a short-lived key scoped to the given customer,
// pinned to the API version this client speaks.
func (c *StripeClient) CreateEphemeralKey(ctx context.Context, customerID string) (types.EphemeralKey, error) {
	form := url.Values{}
	form.Set("customer", customerID)

	var key stripeEphemeralKey
	if err := c.doPost(ctx, "/v1/ephemeral_keys", form, &key); err != nil {
		return types.EphemeralKey{}, err
	}

	return types.EphemeralKey{ID: key.ID, Secret: key.Secret}, nil
}

// CreatePaymentIntent creates a payment intent for the given amount and
// customer. Automatic payment methods are always enabled; the price ID is
// recorded as metadata only.
func (c *StripeClient) CreatePaymentIntent(ctx context.Context, params types.PaymentIntentParams) (types.PaymentIntent, error) {
	form := url.Values{}
	form.Set("amount", strconv.FormatInt(params.Amount, 10))
	form.Set("currency", params.Currency)
	form.Set("customer", params.CustomerID)
	form.Set("automatic_payment_methods[enabled]", "true")
	if params.PriceID != "" {
		form.Set("metadata[price_id]", params.PriceID)
	}

	var pi stripePaymentIntent
	if err := c.doPost(ctx, "/v1/payment_intents", form, &pi); err != nil {
		return types.PaymentIntent{}, err
	}

	return types.PaymentIntent{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		Amount:       pi.Amount,
		Currency:     pi.Currency,
	}, nil
}

// CreateSubscription creates an incomplete subscription for the customer and
// price, expanding the latest invoice's payment intent so its client secret
// can be returned in one round trip. When the subscription is fully
// discounted Stripe creates no payment intent and the returned
// PaymentIntentClientSecret is empty.
func (c *StripeClient) CreateSubscription(ctx context.Context, params types.SubscriptionParams) (types.Subscription, error) {
	form := url.Values{}
	form.Set("customer", params.CustomerID)
	form.Set("items[0][price]", params.PriceID)
	form.Set("payment_behavior", "default_incomplete")
	form.Set("payment_settings[save_default_payment_method]", "on_subscription")
	form.Add("expand[]", "latest_invoice.payment_intent")
	if params.PromotionCodeID != "" {
		form.Set("discounts[0][promotion_code]", params.PromotionCodeID)
	}

	var sub stripeSubscription
	if err := c.doPost(ctx, "/v1/subscriptions", form, &sub); err != nil {
		return types.Subscription{}, err
	}

	return toSubscription(sub), nil
}

// FindActivePromotionCode looks up an active promotion code by its
// customer-facing code. The code is normalized to uppercase before lookup so
// "save10" and "SAVE10" resolve to the same promotion. Returns (nil, nil)
// when no active code exists.
func (c *StripeClient) FindActivePromotionCode(ctx context.Context, code string) (*types.PromotionCode, error) {
	query := url.Values{}
	query.Set("code", strings.ToUpper(code))
	query.Set("active", "true")
	query.Set("limit", "1")

	var list stripeList[stripePromotionCode]
	if err := c.doGet(ctx, "/v1/promotion_codes", query, &list); err != nil {
		return nil, err
	}

	if len(list.Data) == 0 {
		return nil, nil
	}

	pc := list.Data[0]
	if !pc.Active {
		return nil, nil
	}

	return &types.PromotionCode{
		ID:   pc.ID,
		Code: pc.Code,
		Coupon: types.Coupon{
			PercentOff:       pc.Coupon.PercentOff,
			AmountOff:        pc.Coupon.AmountOff,
			Duration:         pc.Coupon.Duration,
			DurationInMonths: pc.Coupon.DurationInMonths,
		},
	}, nil
}

// ListActiveSubscriptions returns the customer's active subscriptions, up to
// activeSubscriptionPageSize of them.
func (c *StripeClient) ListActiveSubscriptions(ctx context.Context, customerID string) ([]types.Subscription, error) {
	query := url.Values{}
	query.Set("customer", customerID)
	query.Set("status", "active")
	query.Set("limit", strconv.Itoa(activeSubscriptionPageSize))

	var list stripeList[stripeSubscription]
	if err := c.doGet(ctx, "/v1/subscriptions", query, &list); err != nil {
		return nil, err
	}

	subs := make([]types.Subscription, 0, len(list.Data))
	for _, s := range list.Data {
		subs = append(subs, toSubscription(s))
	}
	return subs, nil
}

// CancelSubscription cancels the subscription immediately.
func (c *StripeClient) CancelSubscription(ctx context.Context, subscriptionID string) (types.Subscription, error) {
	var sub stripeSubscription
	if err := c.doDelete(ctx, "/v1/subscriptions/"+url.PathEscape(subscriptionID), &sub); err != nil {
		return types.Subscription{}, err
	}
	return toSubscription(sub), nil
}

func toSubscription(s stripeSubscription) types.Subscription {
	out := types.Subscription{ID: s.ID, Status: s.Status}
	if s.LatestInvoice != nil && s.LatestInvoice.PaymentIntent != nil {
		out.PaymentIntentClientSecret = s.LatestInvoice.PaymentIntent.ClientSecret
	}
	return out
}

func (c *StripeClient) doGet(ctx context.Context, path string, query url.Values, out any) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalUnexpected, "failed to build stripe request", err)
	}
	c.setAuthHeaders(req)

	return c.execute(req, out)
}

func (c *StripeClient) doPost(ctx context.Context, path string, form url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalUnexpected, "failed to build stripe request", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	c.setAuthHeaders(req)

	return c.execute(req, out)
}

func (c *StripeClient) doDelete(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+path, nil)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalUnexpected, "failed to build stripe request", err)
	}
	c.setAuthHeaders(req)

	return c.execute(req, out)
}

func (c *StripeClient) setAuthHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.apiKey.Unmask())
	req.Header.Set("Stripe-Version", stripe.APIVersion)
}

func (c *StripeClient) execute(req *http.Request, out any) error {
	resp, err := c.base.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return c.handleErrorResponse(resp)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return types.NewAppError(types.ErrCodeUpstreamStripe, "failed to decode stripe response", err)
	}
	return nil
}

// handleErrorResponse decodes Stripe's error envelope and surfaces the
// message verbatim so callers see exactly what the processor said.
func (c *StripeClient) handleErrorResponse(resp *http.Response) error {
	var stripeErr stripeErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&stripeErr); err != nil || stripeErr.Error.Message == "" {
		return types.NewAppError(
			types.ErrCodeUpstreamStripe,
			fmt.Sprintf("stripe returned status %d", resp.StatusCode),
			err,
		)
	}

	c.logger.WarnContext(resp.Request.Context(), "stripe api error",
		slog.Int("status", resp.StatusCode),
		slog.String("type", stripeErr.Error.Type),
		slog.String("code", stripeErr.Error.Code),
		slog.String("param", stripeErr.Error.Param),
	)

	return types.NewAppErrorWithDetails(
		types.ErrCodeUpstreamStripe,
		stripeErr.Error.Message,
		nil,
		map[string]any{
			"stripe_error_type": stripeErr.Error.Type,
			"stripe_error_code": stripeErr.Error.Code,
		},
	)
}
