package payments

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"server/internal/domain"
	"server/internal/stats"
)

func newTestReconciler(repo *memDonations) *Reconciler {
	recorder := stats.NewRecorder(nil, zerolog.Nop())
	return NewReconciler(repo, recorder, "http://localhost:8080/receipts", zerolog.Nop())
}

func seedPending(t *testing.T, repo *memDonations, id string) *domain.Donation {
	t.Helper()
	donation := &domain.Donation{
		ID:         id,
		Amount:     mustDecimal("100"),
		Currency:   "NPR",
		DonorName:  "Asha Rai",
		DonorEmail: "asha@example.org",
		Status:     domain.StatusPending,
		CreatedAt:  time.Now(),
	}
	require.NoError(t, repo.Create(context.Background(), donation))
	return donation
}

func TestReconciler_CompleteStampsReceipt(t *testing.T) {
	repo := newMemDonations()
	rec := newTestReconciler(repo)
	donation := seedPending(t, repo, "11112222-3333-4444-5555-666677778888")

	require.NoError(t, rec.Complete(context.Background(), donation, "esewa:ABC123"))

	stored, err := repo.GetByID(context.Background(), donation.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, stored.Status)
	assert.Equal(t, "esewa:ABC123", stored.Reference)
	assert.Equal(t, "NPO-"+time.Now().UTC().Format("2006")+"-11112222", stored.Receipt.Number)
	assert.Equal(t, "http://localhost:8080/receipts/"+donation.ID+".pdf", stored.Receipt.URL)
	require.NotNil(t, stored.Receipt.GeneratedAt)
}

func TestReconciler_TerminalStateIsImmutable(t *testing.T) {
	repo := newMemDonations()
	rec := newTestReconciler(repo)
	donation := seedPending(t, repo, "aaaa1111-0000-0000-0000-000000000000")

	require.NoError(t, rec.Complete(context.Background(), donation, "stripe:cs_1"))

	// Replays and contradictory notifications are all no-ops.
	completed, err := repo.GetByID(context.Background(), donation.ID)
	require.NoError(t, err)
	require.NoError(t, rec.Complete(context.Background(), completed, "stripe:cs_other"))
	require.NoError(t, rec.Fail(context.Background(), completed))

	stored, err := repo.GetByID(context.Background(), donation.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, stored.Status)
	assert.Equal(t, "stripe:cs_1", stored.Reference)
}

func TestReconciler_StaleSnapshotLosesConditionalUpdate(t *testing.T) {
	repo := newMemDonations()
	rec := newTestReconciler(repo)
	donation := seedPending(t, repo, "bbbb1111-0000-0000-0000-000000000000")

	// Two handlers read the same pending snapshot.
	snapshotA, err := repo.GetByID(context.Background(), donation.ID)
	require.NoError(t, err)
	snapshotB, err := repo.GetByID(context.Background(), donation.ID)
	require.NoError(t, err)

	require.NoError(t, rec.Fail(context.Background(), snapshotA))
	// The second write loses the conditional update and must not error.
	require.NoError(t, rec.Complete(context.Background(), snapshotB, "khalti:px_1"))

	stored, err := repo.GetByID(context.Background(), donation.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, stored.Status)
	assert.Empty(t, stored.Reference)
}

func TestReconciler_ConcurrentOutcomesSettleToOneState(t *testing.T) {
	repo := newMemDonations()
	rec := newTestReconciler(repo)

	for i := 0; i < 50; i++ {
		donation := seedPending(t, repo, "cccc1111-0000-0000-0000-0000000000"+string(rune('a'+i%26))+string(rune('a'+i/26)))

		snapshotA, err := repo.GetByID(context.Background(), donation.ID)
		require.NoError(t, err)
		snapshotB, err := repo.GetByID(context.Background(), donation.ID)
		require.NoError(t, err)

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = rec.Complete(context.Background(), snapshotA, "stripe:cs_win")
		}()
		go func() {
			defer wg.Done()
			_ = rec.Fail(context.Background(), snapshotB)
		}()
		wg.Wait()

		stored, err := repo.GetByID(context.Background(), donation.ID)
		require.NoError(t, err)
		require.True(t, stored.Status.Terminal(), "donation must settle")
		if stored.Status == domain.StatusCompleted {
			assert.Equal(t, "stripe:cs_win", stored.Reference)
		} else {
			assert.Empty(t, stored.Reference)
		}
	}
}

func TestReconciler_AmountMismatchIsNotFatal(t *testing.T) {
	repo := newMemDonations()
	rec := newTestReconciler(repo)
	donation := seedPending(t, repo, "dddd1111-0000-0000-0000-000000000000")

	// Mismatch only logs; the verified outcome is still honored.
	rec.CheckAmount(donation, mustDecimal("99.99"))
	require.NoError(t, rec.Complete(context.Background(), donation, "khalti:px_9"))

	stored, err := repo.GetByID(context.Background(), donation.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, stored.Status)
}

func TestNewReceipt_StableForDonation(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	a := NewReceipt("11112222-3333-4444-5555-666677778888", "http://host/receipts", now)
	b := NewReceipt("11112222-3333-4444-5555-666677778888", "http://host/receipts", now)
	assert.Equal(t, a.Number, b.Number)
	assert.Equal(t, "NPO-2026-11112222", a.Number)
}
