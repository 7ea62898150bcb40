package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// PaymentStatus is the lifecycle state of a donation. Transitions are
// monotonic: pending may become completed or failed; terminal states never
// change again.
type PaymentStatus string

const (
	StatusPending   PaymentStatus = "pending"
	StatusCompleted PaymentStatus = "completed"
	StatusFailed    PaymentStatus = "failed"
)

// Terminal reports whether the status permits no further transition.
func (s PaymentStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Donation represents one supporter payment attempt and its outcome.
type Donation struct {
	ID           string
	Amount       decimal.Decimal
	Currency     string
	DonorName    string
	DonorEmail   string
	DonorPhone   string
	DonorCountry string
	Monthly      bool
	Status       PaymentStatus
	// Reference correlates the donation with the provider-side transaction.
	// Empty until the adapter responds; formatted "<provider>:<id>" once the
	// payment reaches a terminal state.
	Reference string
	CreatedAt time.Time

	Receipt Receipt
}

// Receipt holds the metadata stamped onto a donation after completion. The
// rendered PDF lives behind URL and is produced outside this service.
type Receipt struct {
	Number      string
	URL         string
	GeneratedAt *time.Time
	SentAt      *time.Time
	Downloads   int
}

// ReferenceProvider returns the provider segment of a "<provider>:<id>"
// reference, or "" when the reference is unset or unprefixed.
func (d *Donation) ReferenceProvider() string {
	if i := strings.IndexByte(d.Reference, ':'); i > 0 {
		return d.Reference[:i]
	}
	return ""
}
