package repo

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"server/internal/domain"
)

// SettingsRepositoryPG persists the single payment settings row.
type SettingsRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewSettingsRepository creates a new settings repo.
func NewSettingsRepository(pool *pgxpool.Pool) *SettingsRepositoryPG {
	return &SettingsRepositoryPG{pool: pool}
}

// Get returns the settings row, falling back to defaults when none exists yet.
func (r *SettingsRepositoryPG) Get(ctx context.Context) (*domain.PaymentSettings, error) {
	row := r.pool.QueryRow(ctx, `
SELECT stripe_enabled, khalti_enabled, esewa_enabled, primary_provider, default_currency, allow_recurring, updated_at, updated_by
FROM payment_settings
WHERE id = 1;
`)
	var s domain.PaymentSettings
	err := row.Scan(&s.StripeEnabled, &s.KhaltiEnabled, &s.EsewaEnabled,
		&s.PrimaryProvider, &s.DefaultCurrency, &s.AllowRecurring, &s.UpdatedAt, &s.UpdatedBy)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.DefaultPaymentSettings(), nil
		}
		return nil, err
	}
	return &s, nil
}

// Update upserts the settings row.
func (r *SettingsRepositoryPG) Update(ctx context.Context, settings *domain.PaymentSettings) error {
	_, err := r.pool.Exec(ctx, `
INSERT INTO payment_settings (id, stripe_enabled, khalti_enabled, esewa_enabled, primary_provider, default_currency, allow_recurring, updated_at, updated_by)
VALUES (1, $1, $2, $3, $4, $5, $6, now(), $7)
ON CONFLICT (id) DO UPDATE SET
  stripe_enabled = EXCLUDED.stripe_enabled,
  khalti_enabled = EXCLUDED.khalti_enabled,
  esewa_enabled = EXCLUDED.esewa_enabled,
  primary_provider = EXCLUDED.primary_provider,
  default_currency = EXCLUDED.default_currency,
  allow_recurring = EXCLUDED.allow_recurring,
  updated_at = now(),
  updated_by = EXCLUDED.updated_by;
`, settings.StripeEnabled, settings.KhaltiEnabled, settings.EsewaEnabled,
		settings.PrimaryProvider, settings.DefaultCurrency, settings.AllowRecurring, settings.UpdatedBy)
	return err
}
