package stripe

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Webhook event types driving reconciliation.
const (
	EventCheckoutCompleted = "checkout.session.completed"
	EventCheckoutExpired   = "checkout.session.expired"
	EventPaymentFailed     = "payment_intent.payment_failed"
)

var (
	// ErrUnknownEvent marks event types this service does not handle.
	ErrUnknownEvent = errors.New("stripe: unrecognized event type")
	// ErrBadSignature marks webhook payloads that fail signature verification.
	ErrBadSignature = errors.New("stripe: invalid webhook signature")
	// ErrBadPayload marks events missing fields required for dispatch.
	ErrBadPayload = errors.New("stripe: malformed event payload")
)

// signatureTolerance bounds how stale a webhook timestamp may be.
const signatureTolerance = 5 * time.Minute

// CheckoutSession is the subset of a checkout session carried by webhooks.
type CheckoutSession struct {
	ID                string `json:"id"`
	ClientReferenceID string `json:"client_reference_id"`
	AmountTotal       int64  `json:"amount_total"`
	Currency          string `json:"currency"`
	PaymentStatus     string `json:"payment_status"`
}

// PaymentIntent is the subset of a payment intent carried by failure events.
type PaymentIntent struct {
	ID       string            `json:"id"`
	Metadata map[string]string `json:"metadata"`
}

// Event is the tagged union of webhook payloads this service understands.
// Exactly one of Session or PaymentIntent is populated, keyed by Type.
type Event struct {
	Type          string
	Session       *CheckoutSession
	PaymentIntent *PaymentIntent
}

type rawEvent struct {
	Type string `json:"type"`
	Data struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

// ParseEvent validates and decodes a webhook body into the tagged union.
// Event types outside the handled set return ErrUnknownEvent so callers can
// acknowledge them without acting on undefined fields.
func ParseEvent(payload []byte) (*Event, error) {
	var raw rawEvent
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadPayload, err)
	}
	switch raw.Type {
	case EventCheckoutCompleted, EventCheckoutExpired:
		var session CheckoutSession
		if err := json.Unmarshal(raw.Data.Object, &session); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBadPayload, err)
		}
		if session.ID == "" {
			return nil, fmt.Errorf("%w: checkout session without id", ErrBadPayload)
		}
		return &Event{Type: raw.Type, Session: &session}, nil
	case EventPaymentFailed:
		var intent PaymentIntent
		if err := json.Unmarshal(raw.Data.Object, &intent); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBadPayload, err)
		}
		if intent.ID == "" {
			return nil, fmt.Errorf("%w: payment intent without id", ErrBadPayload)
		}
		return &Event{Type: raw.Type, PaymentIntent: &intent}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, raw.Type)
	}
}

// VerifySignature checks the Stripe-Signature header against the raw body.
// The signed channel is the source of truth for webhook events, so this is
// the verification step for Stripe reconciliation.
func (c *Client) VerifySignature(payload []byte, header string, now time.Time) error {
	if c.webhookSecret == "" {
		return ErrMissingCredentials
	}
	var timestamp string
	var candidates []string
	for _, part := range strings.Split(header, ",") {
		kv := strings.SplitN(strings.TrimSpace(part), "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch kv[0] {
		case "t":
			timestamp = kv[1]
		case "v1":
			candidates = append(candidates, kv[1])
		}
	}
	if timestamp == "" || len(candidates) == 0 {
		return ErrBadSignature
	}
	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return ErrBadSignature
	}
	age := now.Sub(time.Unix(ts, 0))
	if age > signatureTolerance || age < -signatureTolerance {
		return fmt.Errorf("%w: timestamp outside tolerance", ErrBadSignature)
	}

	mac := hmac.New(sha256.New, []byte(c.webhookSecret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))

	for _, candidate := range candidates {
		if hmac.Equal([]byte(expected), []byte(candidate)) {
			return nil
		}
	}
	return ErrBadSignature
}
