package domain

import "context"

// DonationRepository handles donation persistence.
//
// MarkCompleted and MarkFailed are conditional writes: they transition the
// row only while its status is still pending and report whether that write
// won. A false return with nil error means the donation was already terminal
// (or raced another reconciler), which callers treat as a no-op.
type DonationRepository interface {
	Create(ctx context.Context, donation *Donation) error
	GetByID(ctx context.Context, id string) (*Donation, error)
	GetByReference(ctx context.Context, reference string) (*Donation, error)
	// FindByIDPrefix returns the most recently created donation whose ID
	// starts with the given prefix.
	FindByIDPrefix(ctx context.Context, prefix string) (*Donation, error)
	SetReference(ctx context.Context, id, reference string) error
	MarkCompleted(ctx context.Context, id, reference string, receipt Receipt) (bool, error)
	MarkFailed(ctx context.Context, id string) (bool, error)
	ListRecent(ctx context.Context, limit int) ([]Donation, error)
	// FailStalePending marks donations failed that have been pending longer
	// than the cutoff, returning how many rows were transitioned.
	FailStalePending(ctx context.Context, olderThanHours int) (int64, error)
}

// SettingsRepository persists the administrative payment settings record.
type SettingsRepository interface {
	Get(ctx context.Context) (*PaymentSettings, error)
	Update(ctx context.Context, settings *PaymentSettings) error
}

// StatsRepository updates and reads daily donation counters.
type StatsRepository interface {
	IncrementCounters(ctx context.Context, day string, counters map[string]int64) error
	GetSummary(ctx context.Context, days int) ([]DailyStats, error)
}
