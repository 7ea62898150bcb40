// Package khalti integrates the Khalti e-payment flow: session initiation
// and the server-to-server lookup call used for verification.
package khalti

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"server/internal/domain"
	"server/internal/payments"
)

// ErrMissingCredentials indicates the client was configured without a secret key.
var ErrMissingCredentials = errors.New("khalti: secret key is required")

// StatusCompleted is the lookup status that maps to a completed donation.
// Every other status maps to failed.
const StatusCompleted = "Completed"

// Options configures the Khalti client.
type Options struct {
	SecretKey      string
	BaseURL        string
	PublicBaseURL  string
	HTTPClient     *http.Client
	Logger         zerolog.Logger
	RequestTimeout time.Duration
}

// Client performs HTTP calls against the Khalti e-payment API.
type Client struct {
	secretKey  string
	baseURL    string
	publicBase string
	httpClient *http.Client
	logger     zerolog.Logger
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
		baseURL = "https://a.khalti.com/api/v2"
	}
	return &Client{
		secretKey:  strings.TrimSpace(opts.SecretKey),
		baseURL:    baseURL,
		publicBase: strings.TrimRight(opts.PublicBaseURL, "/"),
		httpClient: httpClient,
		logger:     opts.Logger,
	}
}

// Name implements payments.Provider.
func (c *Client) Name() string { return "khalti" }

// Currency implements payments.Provider. Khalti operates only in NPR.
func (c *Client) Currency(string) string { return "NPR" }

// Configured implements payments.Provider.
func (c *Client) Configured() bool { return c.secretKey != "" }

type initiateRequest struct {
	ReturnURL         string       `json:"return_url"`
	WebsiteURL        string       `json:"website_url"`
	Amount            int64        `json:"amount"`
	PurchaseOrderID   string       `json:"purchase_order_id"`
	PurchaseOrderName string       `json:"purchase_order_name"`
	CustomerInfo      customerInfo `json:"customer_info"`
}

type customerInfo struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone,omitempty"`
}

type initiateResponse struct {
	Pidx       string `json:"pidx"`
	PaymentURL string `json:"payment_url"`
	Detail     string `json:"detail"`
}

// Initiate starts an e-payment session. The reference persisted on the
// donation is "khalti:<pidx>" so the verify endpoint can locate it by exact
// reference equality.
func (c *Client) Initiate(ctx context.Context, donation *domain.Donation, mode payments.Mode) (*payments.InitiateResult, error) {
	if mode == payments.ModeMock {
		pidx := "mock-" + donation.ID
		return &payments.InitiateResult{
			RedirectURL: c.publicBase + "/donate/success?provider=khalti&pidx=" + pidx,
			Reference:   "khalti:" + pidx,
		}, nil
	}
	if c.secretKey == "" {
		return nil, ErrMissingCredentials
	}

	// Khalti amounts are paisa.
	paisa := donation.Amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()

	payload := initiateRequest{
		ReturnURL:         c.publicBase + "/donate/success?provider=khalti",
		WebsiteURL:        c.publicBase,
		Amount:            paisa,
		PurchaseOrderID:   donation.ID,
		PurchaseOrderName: "Donation",
		CustomerInfo: customerInfo{
			Name:  donation.DonorName,
			Email: donation.DonorEmail,
			Phone: donation.DonorPhone,
		},
	}

	var decoded initiateResponse
	if err := c.post(ctx, "/epayment/initiate/", payload, &decoded); err != nil {
		return nil, err
	}
	if decoded.Pidx == "" || decoded.PaymentURL == "" {
		return nil, errors.New("khalti: empty initiate response")
	}

	c.logger.Debug().
		Str("donation_id", donation.ID).
		Msg("khalti: e-payment session initiated")

	return &payments.InitiateResult{
		RedirectURL: decoded.PaymentURL,
		Reference:   "khalti:" + decoded.Pidx,
	}, nil
}

// LookupResult is the verified state of a Khalti payment.
type LookupResult struct {
	Pidx          string `json:"pidx"`
	TotalAmount   int64  `json:"total_amount"`
	Status        string `json:"status"`
	TransactionID string `json:"transaction_id"`
	Refunded      bool   `json:"refunded"`
}

// Lookup re-verifies a payment with Khalti's own API. Client-reported status
// is never trusted; this call is the source of truth.
func (c *Client) Lookup(ctx context.Context, pidx string) (*LookupResult, error) {
	if c.secretKey == "" {
		return nil, ErrMissingCredentials
	}
	var result LookupResult
	if err := c.post(ctx, "/epayment/lookup/", map[string]string{"pidx": pidx}, &result); err != nil {
		return nil, err
	}
	if result.Status == "" {
		return nil, errors.New("khalti: lookup returned no status")
	}
	return &result, nil
}

// AmountFromPaisa converts a paisa amount to rupees.
func AmountFromPaisa(paisa int64) decimal.Decimal {
	return decimal.NewFromInt(paisa).Div(decimal.NewFromInt(100))
}

func (c *Client) post(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("khalti: encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("khalti: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Key "+c.secretKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("khalti: http request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("khalti: read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		var detail initiateResponse
		if err := json.Unmarshal(raw, &detail); err == nil && detail.Detail != "" {
			return fmt.Errorf("khalti: %s", detail.Detail)
		}
		return fmt.Errorf("khalti: status %d", resp.StatusCode)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("khalti: decode response: %w", err)
	}
	return nil
}
