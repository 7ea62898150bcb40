// Package stats maintains daily donation counters for the admin dashboard.
package stats

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"server/internal/domain"
)

// Recorder increments daily counters. Counter writes are best-effort: a
// failed increment is logged and never fails the donation flow that
// triggered it.
type Recorder struct {
	repo   domain.StatsRepository
	logger zerolog.Logger
	now    func() time.Time
}

// NewRecorder creates a recorder. A nil repo disables recording.
func NewRecorder(repo domain.StatsRepository, logger zerolog.Logger) *Recorder {
	return &Recorder{repo: repo, logger: logger, now: time.Now}
}

// DonationCreated counts one new pending donation.
func (r *Recorder) DonationCreated(ctx context.Context) {
	r.increment(ctx, map[string]int64{"created": 1})
}

// DonationCompleted counts one completed donation and its amount in minor units.
func (r *Recorder) DonationCompleted(ctx context.Context, currency string, amount decimal.Decimal) {
	counters := map[string]int64{"completed": 1}
	cents := amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
	switch currency {
	case "NPR":
		counters["completed_npr_cent"] = cents
	case "USD":
		counters["completed_usd_cent"] = cents
	}
	r.increment(ctx, counters)
}

// DonationFailed counts one failed donation.
func (r *Recorder) DonationFailed(ctx context.Context) {
	r.increment(ctx, map[string]int64{"failed": 1})
}

// Summary returns per-day counters for the most recent N days.
func (r *Recorder) Summary(ctx context.Context, days int) ([]domain.DailyStats, error) {
	if r == nil || r.repo == nil {
		return nil, nil
	}
	return r.repo.GetSummary(ctx, days)
}

func (r *Recorder) increment(ctx context.Context, counters map[string]int64) {
	if r == nil || r.repo == nil {
		return
	}
	day := r.now().UTC().Format("2006-01-02")
	if err := r.repo.IncrementCounters(ctx, day, counters); err != nil {
		r.logger.Warn().Err(err).Str("day", day).Msg("stats: counter increment failed")
	}
}
