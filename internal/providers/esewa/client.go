// Package esewa integrates the eSewa gateway: a signed form post for
// initiation, a plain-text transrec call for verification, and a base64
// payload for the failure redirect.
package esewa

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"server/internal/domain"
	"server/internal/payments"
)

// ErrMissingCredentials indicates the client was configured without merchant credentials.
var ErrMissingCredentials = errors.New("esewa: merchant credentials are required")

// referencePrefix is prepended to the donation ID to form the gateway-facing
// product identifier. The success callback strips it to recover the donation.
const referencePrefix = "esewa_"

// Options configures the eSewa client.
type Options struct {
	MerchantID     string
	SecretKey      string
	BaseURL        string
	PublicBaseURL  string
	HTTPClient     *http.Client
	Logger         zerolog.Logger
	RequestTimeout time.Duration
}

// Client performs HTTP calls against the eSewa gateway.
type Client struct {
	merchantID string
	secretKey  string
	baseURL    string
	publicBase string
	httpClient *http.Client
	logger     zerolog.Logger
	now        func() time.Time
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
		baseURL = "https://epay.esewa.com.np"
	}
	return &Client{
		merchantID: strings.TrimSpace(opts.MerchantID),
		secretKey:  strings.TrimSpace(opts.SecretKey),
		baseURL:    baseURL,
		publicBase: strings.TrimRight(opts.PublicBaseURL, "/"),
		httpClient: httpClient,
		logger:     opts.Logger,
		now:        time.Now,
	}
}

// Name implements payments.Provider.
func (c *Client) Name() string { return "esewa" }

// Currency implements payments.Provider. eSewa operates only in NPR.
func (c *Client) Currency(string) string { return "NPR" }

// Configured implements payments.Provider.
func (c *Client) Configured() bool { return c.merchantID != "" && c.secretKey != "" }

// ReferenceID builds the composite gateway-facing identifier for a donation.
func ReferenceID(donationID string) string { return referencePrefix + donationID }

// DonationIDFromReference recovers a donation ID from a gateway identifier.
func DonationIDFromReference(ref string) (string, bool) {
	if !strings.HasPrefix(ref, referencePrefix) {
		return "", false
	}
	id := strings.TrimPrefix(ref, referencePrefix)
	return id, id != ""
}

// TransactionUUID builds the gateway transaction identifier. eSewa echoes
// this value back on the failure path, so it embeds a creation timestamp and
// an 8-character donation-ID prefix for recovery.
func TransactionUUID(donationID string, now time.Time) string {
	return fmt.Sprintf("%d-%s", now.Unix(), idPrefix(donationID))
}

func idPrefix(donationID string) string {
	prefix := strings.ReplaceAll(donationID, "-", "")
	if len(prefix) > 8 {
		prefix = prefix[:8]
	}
	return prefix
}

// PrefixFromTransactionUUID extracts the donation-ID prefix from an echoed
// transaction identifier (second dash-separated segment).
func PrefixFromTransactionUUID(transactionUUID string) string {
	parts := strings.Split(transactionUUID, "-")
	if len(parts) < 2 {
		return ""
	}
	return parts[1]
}

// Signature computes the HMAC-SHA256 signature over the ordered,
// comma-joined field list the gateway mandates.
func (c *Client) Signature(totalAmount, transactionUUID string) string {
	message := fmt.Sprintf("total_amount=%s,transaction_uuid=%s,product_code=%s",
		totalAmount, transactionUUID, c.merchantID)
	mac := hmac.New(sha256.New, []byte(c.secretKey))
	mac.Write([]byte(message))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// FormPayload is the signed form a donor's browser auto-submits to eSewa.
type FormPayload struct {
	Action string
	Fields map[string]string
}

// BuildForm assembles the signed form-post payload for a donation.
func (c *Client) BuildForm(donation *domain.Donation) (*FormPayload, error) {
	if !c.Configured() {
		return nil, ErrMissingCredentials
	}
	amount := donation.Amount.String()
	txUUID := TransactionUUID(donation.ID, c.now())
	return &FormPayload{
		Action: c.baseURL + "/api/epay/main/v2/form",
		Fields: map[string]string{
			"amount":                  amount,
			"tax_amount":              "0",
			"total_amount":            amount,
			"transaction_uuid":        txUUID,
			"product_code":            c.merchantID,
			"product_service_charge":  "0",
			"product_delivery_charge": "0",
			"success_url":             c.publicBase + "/v1/payments/esewa/success?pid=" + url.QueryEscape(ReferenceID(donation.ID)),
			"failure_url":             c.publicBase + "/v1/payments/esewa/failure",
			"signed_field_names":      "total_amount,transaction_uuid,product_code",
			"signature":               c.Signature(amount, txUUID),
		},
	}, nil
}

// Initiate implements payments.Provider. Live initiation redirects the donor
// to this service's form endpoint, which renders the signed auto-submitting
// form; mock mode jumps straight to the success callback with synthetic
// parameters.
func (c *Client) Initiate(ctx context.Context, donation *domain.Donation, mode payments.Mode) (*payments.InitiateResult, error) {
	reference := ReferenceID(donation.ID)
	if mode == payments.ModeMock {
		q := url.Values{}
		q.Set("refId", "MOCK-"+strings.ToUpper(idPrefix(donation.ID)))
		q.Set("oid", reference)
		q.Set("amt", donation.Amount.String())
		return &payments.InitiateResult{
			RedirectURL: c.publicBase + "/v1/payments/esewa/success?" + q.Encode(),
			Reference:   reference,
		}, nil
	}
	if !c.Configured() {
		return nil, ErrMissingCredentials
	}
	return &payments.InitiateResult{
		RedirectURL: c.publicBase + "/v1/payments/esewa/form?donation=" + donation.ID,
		Reference:   reference,
	}, nil
}

// VerifyTransaction re-verifies a payment via the transrec endpoint. The
// gateway contract is a plain-text body containing "success" on a verified
// payment; nothing stricter is available without a gateway change.
func (c *Client) VerifyTransaction(ctx context.Context, refID, productID, amount string) (bool, error) {
	if !c.Configured() {
		return false, ErrMissingCredentials
	}
	q := url.Values{}
	q.Set("amt", amount)
	q.Set("scd", c.merchantID)
	q.Set("rid", refID)
	q.Set("pid", productID)

	endpoint := c.baseURL + "/epay/transrec?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return false, fmt.Errorf("esewa: build request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("esewa: http request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return false, fmt.Errorf("esewa: read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return false, fmt.Errorf("esewa: status %d", resp.StatusCode)
	}
	return strings.Contains(strings.ToLower(string(raw)), "success"), nil
}

// FailurePayload is the decoded failure-redirect blob.
type FailurePayload struct {
	TransactionUUID string `json:"transaction_uuid"`
	Status          string `json:"status"`
	TotalAmount     string `json:"total_amount"`
	ProductCode     string `json:"product_code"`
}

// DecodeFailure parses the base64-encoded JSON blob eSewa appends to the
// failure redirect as the "data" query parameter.
func DecodeFailure(data string) (*FailurePayload, error) {
	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		raw, err = base64.RawURLEncoding.DecodeString(data)
		if err != nil {
			return nil, fmt.Errorf("esewa: decode failure data: %w", err)
		}
	}
	var payload FailurePayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("esewa: parse failure data: %w", err)
	}
	if payload.TransactionUUID == "" {
		return nil, errors.New("esewa: failure data without transaction_uuid")
	}
	return &payload, nil
}
