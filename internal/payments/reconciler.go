package payments

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"server/internal/domain"
	"server/internal/stats"
	"server/pkg/mask"
)

// Reconciler applies verified payment outcomes to the donation ledger. It is
// the single place that performs terminal transitions, so the conditional
// update backing the idempotency guard lives behind exactly one code path.
type Reconciler struct {
	donations   domain.DonationRepository
	recorder    *stats.Recorder
	receiptBase string
	logger      zerolog.Logger
	now         func() time.Time
}

// NewReconciler wires the reconciler dependencies. receiptBase is the URL
// prefix under which receipt documents are served.
func NewReconciler(donations domain.DonationRepository, recorder *stats.Recorder, receiptBase string, logger zerolog.Logger) *Reconciler {
	return &Reconciler{
		donations:   donations,
		recorder:    recorder,
		receiptBase: receiptBase,
		logger:      logger,
		now:         time.Now,
	}
}

// Complete transitions a donation to completed with the verified reference.
// Already-terminal donations are a no-op: a completion can never be
// revisited, and a completion racing a failure is settled by whichever
// conditional update lands first.
func (r *Reconciler) Complete(ctx context.Context, donation *domain.Donation, reference string) error {
	if donation.Status.Terminal() {
		r.logger.Debug().
			Str("donation_id", donation.ID).
			Str("status", string(donation.Status)).
			Msg("reconcile: donation already terminal, skipping")
		return nil
	}

	receipt := NewReceipt(donation.ID, r.receiptBase, r.now())
	won, err := r.donations.MarkCompleted(ctx, donation.ID, reference, receipt)
	if err != nil {
		return fmt.Errorf("mark donation completed: %w", err)
	}
	if !won {
		// Lost the conditional update. Identical to "already terminal".
		r.logger.Info().
			Str("donation_id", donation.ID).
			Msg("reconcile: completion lost conditional update, no-op")
		return nil
	}

	r.recorder.DonationCompleted(ctx, donation.Currency, donation.Amount)
	r.logger.Info().
		Str("donation_id", donation.ID).
		Str("reference", mask.Reference(reference)).
		Str("receipt_number", receipt.Number).
		Msg("donation completed")
	return nil
}

// Fail transitions a donation to failed under the same guard as Complete.
func (r *Reconciler) Fail(ctx context.Context, donation *domain.Donation) error {
	if donation.Status.Terminal() {
		r.logger.Debug().
			Str("donation_id", donation.ID).
			Str("status", string(donation.Status)).
			Msg("reconcile: donation already terminal, skipping")
		return nil
	}

	won, err := r.donations.MarkFailed(ctx, donation.ID)
	if err != nil {
		return fmt.Errorf("mark donation failed: %w", err)
	}
	if !won {
		r.logger.Info().
			Str("donation_id", donation.ID).
			Msg("reconcile: failure lost conditional update, no-op")
		return nil
	}

	r.recorder.DonationFailed(ctx)
	r.logger.Info().
		Str("donation_id", donation.ID).
		Msg("donation failed")
	return nil
}

// CheckAmount compares the provider-reported amount with the stored one.
// Mismatches are flagged for manual audit, never treated as fatal: rounding
// and currency edge cases must not produce donor-facing failures.
func (r *Reconciler) CheckAmount(donation *domain.Donation, reported decimal.Decimal) {
	if reported.IsZero() || donation.Amount.Equal(reported) {
		return
	}
	r.logger.Warn().
		Str("donation_id", donation.ID).
		Str("stored", donation.Amount.String()).
		Str("reported", reported.String()).
		Msg("reconcile: amount mismatch, honoring provider status")
}
