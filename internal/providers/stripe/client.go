// Package stripe integrates the Stripe hosted checkout flow: session
// creation for initiation and signed webhook events for reconciliation.
package stripe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"server/internal/domain"
	"server/internal/payments"
)

// ErrMissingCredentials indicates the client was configured without secrets.
var ErrMissingCredentials = errors.New("stripe: secret key is required")

// Options configures the Stripe client.
type Options struct {
	SecretKey     string
	WebhookSecret string
	// PublicBaseURL is the externally reachable base of this service, used
	// to build success/cancel return URLs.
	PublicBaseURL  string
	BaseURL        string
	HTTPClient     *http.Client
	Logger         zerolog.Logger
	RequestTimeout time.Duration
}

// Client performs HTTP calls against the Stripe API.
type Client struct {
	secretKey     string
	webhookSecret string
	publicBase    string
	baseURL       string
	httpClient    *http.Client
	logger        zerolog.Logger
}

// New constructs a client with sane defaults and injected dependencies.
func New(opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.RequestTimeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.stripe.com"
	}
	return &Client{
		secretKey:     strings.TrimSpace(opts.SecretKey),
		webhookSecret: strings.TrimSpace(opts.WebhookSecret),
		publicBase:    strings.TrimRight(opts.PublicBaseURL, "/"),
		baseURL:       baseURL,
		httpClient:    httpClient,
		logger:        opts.Logger,
	}
}

// Name implements payments.Provider.
func (c *Client) Name() string { return "stripe" }

// Currency implements payments.Provider. Stripe transacts in the configured
// default currency.
func (c *Client) Currency(defaultCurrency string) string {
	if defaultCurrency == "" {
		return "USD"
	}
	return defaultCurrency
}

// Configured implements payments.Provider.
func (c *Client) Configured() bool {
	return c.secretKey != "" && c.webhookSecret != ""
}

type checkoutSessionResponse struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

type apiError struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// Initiate creates a hosted checkout session. The donation ID rides along as
// client_reference_id and payment-intent metadata so the webhook can locate
// the donation without a secondary lookup table.
func (c *Client) Initiate(ctx context.Context, donation *domain.Donation, mode payments.Mode) (*payments.InitiateResult, error) {
	if mode == payments.ModeMock {
		return &payments.InitiateResult{
			RedirectURL: c.publicBase + "/donate/success?donation=" + donation.ID,
			Reference:   "stripe:mock_" + donation.ID,
		}, nil
	}
	if c.secretKey == "" {
		return nil, ErrMissingCredentials
	}

	unitAmount := donation.Amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()

	form := url.Values{}
	form.Set("client_reference_id", donation.ID)
	form.Set("customer_email", donation.DonorEmail)
	form.Set("success_url", c.publicBase+"/donate/success?session_id={CHECKOUT_SESSION_ID}")
	form.Set("cancel_url", c.publicBase+"/donate/cancel")
	form.Set("line_items[0][quantity]", "1")
	form.Set("line_items[0][price_data][currency]", strings.ToLower(donation.Currency))
	form.Set("line_items[0][price_data][unit_amount]", fmt.Sprintf("%d", unitAmount))
	form.Set("line_items[0][price_data][product_data][name]", "Donation")
	form.Set("metadata[donation_id]", donation.ID)
	form.Set("payment_intent_data[metadata][donation_id]", donation.ID)
	if donation.Monthly {
		form.Set("mode", "subscription")
		form.Set("line_items[0][price_data][recurring][interval]", "month")
		form.Del("payment_intent_data[metadata][donation_id]")
	} else {
		form.Set("mode", "payment")
	}

	endpoint := c.baseURL + "/v1/checkout/sessions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("stripe: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Bearer "+c.secretKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("stripe: http request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("stripe: read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		var detail apiError
		if err := json.Unmarshal(raw, &detail); err == nil && detail.Error.Message != "" {
			return nil, fmt.Errorf("stripe: %s (%s)", detail.Error.Message, detail.Error.Type)
		}
		return nil, fmt.Errorf("stripe: status %d", resp.StatusCode)
	}

	var session checkoutSessionResponse
	if err := json.Unmarshal(raw, &session); err != nil {
		return nil, fmt.Errorf("stripe: decode response: %w", err)
	}
	if session.ID == "" || session.URL == "" {
		return nil, errors.New("stripe: empty checkout session")
	}

	c.logger.Debug().
		Str("donation_id", donation.ID).
		Msg("stripe: checkout session created")

	return &payments.InitiateResult{
		RedirectURL: session.URL,
		Reference:   "stripe:" + session.ID,
	}, nil
}
