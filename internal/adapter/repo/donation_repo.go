package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"server/internal/domain"
)

// DonationRepositoryPG implements DonationRepository using PostgreSQL.
type DonationRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewDonationRepository creates a new donation repo.
func NewDonationRepository(pool *pgxpool.Pool) *DonationRepositoryPG {
	return &DonationRepositoryPG{pool: pool}
}

const donationColumns = `
id, amount::text, currency, donor_name, donor_email, donor_phone, donor_country,
is_monthly, payment_status, payment_reference, created_at,
receipt_number, receipt_url, receipt_generated_at, receipt_sent_at, receipt_downloads`

// Create inserts a new donation record in pending state.
func (r *DonationRepositoryPG) Create(ctx context.Context, donation *domain.Donation) error {
	_, err := r.pool.Exec(ctx, `
INSERT INTO donations (id, amount, currency, donor_name, donor_email, donor_phone, donor_country, is_monthly, payment_status)
VALUES ($1, $2::numeric, $3, $4, $5, $6, $7, $8, $9);
`, donation.ID, donation.Amount.String(), donation.Currency, donation.DonorName, donation.DonorEmail,
		donation.DonorPhone, donation.DonorCountry, donation.Monthly, string(donation.Status))
	return err
}

// GetByID fetches a donation by primary key.
func (r *DonationRepositoryPG) GetByID(ctx context.Context, id string) (*domain.Donation, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+donationColumns+` FROM donations WHERE id = $1;`, id)
	return scanDonation(row)
}

// GetByReference fetches a donation by exact payment reference.
func (r *DonationRepositoryPG) GetByReference(ctx context.Context, reference string) (*domain.Donation, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+donationColumns+` FROM donations WHERE payment_reference = $1;`, reference)
	return scanDonation(row)
}

// FindByIDPrefix returns the most recently created donation whose ID starts
// with the given prefix. Multiple matches are possible since the prefix is an
// 8-character slice of a UUID; the newest row wins.
func (r *DonationRepositoryPG) FindByIDPrefix(ctx context.Context, prefix string) (*domain.Donation, error) {
	if prefix == "" {
		return nil, domain.ErrDonationNotFound
	}
	row := r.pool.QueryRow(ctx, `
SELECT `+donationColumns+`
FROM donations
WHERE id::text LIKE $1 || '%'
ORDER BY created_at DESC
LIMIT 1;
`, prefix)
	return scanDonation(row)
}

// SetReference attaches the provider transaction reference after initiation.
func (r *DonationRepositoryPG) SetReference(ctx context.Context, id, reference string) error {
	tag, err := r.pool.Exec(ctx, `
UPDATE donations SET payment_reference = $2 WHERE id = $1;
`, id, reference)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrDonationNotFound
	}
	return nil
}

// MarkCompleted transitions a pending donation to completed, stamping the
// verified reference and receipt metadata. The WHERE clause on payment_status
// is the idempotency guard: a row already terminal is left untouched and the
// method reports false.
func (r *DonationRepositoryPG) MarkCompleted(ctx context.Context, id, reference string, receipt domain.Receipt) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
UPDATE donations
SET payment_status = 'completed',
    payment_reference = $2,
    receipt_number = $3,
    receipt_url = $4,
    receipt_generated_at = now()
WHERE id = $1 AND payment_status = 'pending';
`, id, reference, receipt.Number, receipt.URL)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// MarkFailed transitions a pending donation to failed under the same
// conditional-update guard as MarkCompleted.
func (r *DonationRepositoryPG) MarkFailed(ctx context.Context, id string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
UPDATE donations
SET payment_status = 'failed'
WHERE id = $1 AND payment_status = 'pending';
`, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// ListRecent returns recent donations limited by the input value.
func (r *DonationRepositoryPG) ListRecent(ctx context.Context, limit int) ([]domain.Donation, error) {
	rows, err := r.pool.Query(ctx, `
SELECT `+donationColumns+`
FROM donations
ORDER BY created_at DESC
LIMIT $1;
`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []domain.Donation
	for rows.Next() {
		donation, err := scanDonation(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *donation)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

// FailStalePending fails donations stuck in pending longer than the cutoff.
func (r *DonationRepositoryPG) FailStalePending(ctx context.Context, olderThanHours int) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
UPDATE donations
SET payment_status = 'failed'
WHERE payment_status = 'pending'
  AND created_at < now() - make_interval(hours => $1);
`, olderThanHours)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func scanDonation(row pgx.Row) (*domain.Donation, error) {
	var (
		d           domain.Donation
		amountText  string
		phone       *string
		country     *string
		reference   *string
		status      string
		receiptNum  *string
		receiptURL  *string
		generatedAt *time.Time
		sentAt      *time.Time
	)
	err := row.Scan(&d.ID, &amountText, &d.Currency, &d.DonorName, &d.DonorEmail, &phone, &country,
		&d.Monthly, &status, &reference, &d.CreatedAt,
		&receiptNum, &receiptURL, &generatedAt, &sentAt, &d.Receipt.Downloads)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrDonationNotFound
		}
		return nil, err
	}
	d.Amount, err = decimal.NewFromString(amountText)
	if err != nil {
		return nil, fmt.Errorf("parse donation amount %q: %w", amountText, err)
	}
	d.Status = domain.PaymentStatus(status)
	if phone != nil {
		d.DonorPhone = *phone
	}
	if country != nil {
		d.DonorCountry = *country
	}
	if reference != nil {
		d.Reference = *reference
	}
	if receiptNum != nil {
		d.Receipt.Number = *receiptNum
	}
	if receiptURL != nil {
		d.Receipt.URL = *receiptURL
	}
	d.Receipt.GeneratedAt = generatedAt
	d.Receipt.SentAt = sentAt
	return &d, nil
}
