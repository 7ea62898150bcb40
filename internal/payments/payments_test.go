package payments

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"server/internal/domain"
)

// memDonations is an in-memory DonationRepository with the same conditional
// terminal-update semantics as the Postgres implementation.
type memDonations struct {
	mu    sync.Mutex
	items map[string]*domain.Donation
}

func newMemDonations() *memDonations {
	return &memDonations{items: make(map[string]*domain.Donation)}
}

func (m *memDonations) Create(_ context.Context, d *domain.Donation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *d
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now()
	}
	m.items[cp.ID] = &cp
	return nil
}

func (m *memDonations) GetByID(_ context.Context, id string) (*domain.Donation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.items[id]
	if !ok {
		return nil, domain.ErrDonationNotFound
	}
	cp := *d
	return &cp, nil
}

func (m *memDonations) GetByReference(_ context.Context, reference string) (*domain.Donation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range m.items {
		if d.Reference == reference {
			cp := *d
			return &cp, nil
		}
	}
	return nil, domain.ErrDonationNotFound
}

func (m *memDonations) FindByIDPrefix(_ context.Context, prefix string) (*domain.Donation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if prefix == "" {
		return nil, domain.ErrDonationNotFound
	}
	var matches []*domain.Donation
	for _, d := range m.items {
		if strings.HasPrefix(d.ID, prefix) {
			matches = append(matches, d)
		}
	}
	if len(matches) == 0 {
		return nil, domain.ErrDonationNotFound
	}
	sort.Slice(matches, func(i, j int) bool {
		return matches[i].CreatedAt.After(matches[j].CreatedAt)
	})
	cp := *matches[0]
	return &cp, nil
}

func (m *memDonations) SetReference(_ context.Context, id, reference string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.items[id]
	if !ok {
		return domain.ErrDonationNotFound
	}
	d.Reference = reference
	return nil
}

func (m *memDonations) MarkCompleted(_ context.Context, id, reference string, receipt domain.Receipt) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.items[id]
	if !ok || d.Status != domain.StatusPending {
		return false, nil
	}
	d.Status = domain.StatusCompleted
	d.Reference = reference
	d.Receipt = receipt
	return true, nil
}

func (m *memDonations) MarkFailed(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.items[id]
	if !ok || d.Status != domain.StatusPending {
		return false, nil
	}
	d.Status = domain.StatusFailed
	return true, nil
}

func (m *memDonations) ListRecent(_ context.Context, limit int) ([]domain.Donation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var all []domain.Donation
	for _, d := range m.items {
		all = append(all, *d)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (m *memDonations) FailStalePending(_ context.Context, olderThanHours int) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cutoff := time.Now().Add(-time.Duration(olderThanHours) * time.Hour)
	var n int64
	for _, d := range m.items {
		if d.Status == domain.StatusPending && d.CreatedAt.Before(cutoff) {
			d.Status = domain.StatusFailed
			n++
		}
	}
	return n, nil
}

func (m *memDonations) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}

// memSettings serves a fixed settings record.
type memSettings struct {
	settings *domain.PaymentSettings
	err      error
}

func (m *memSettings) Get(context.Context) (*domain.PaymentSettings, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.settings == nil {
		return domain.DefaultPaymentSettings(), nil
	}
	cp := *m.settings
	return &cp, nil
}

func (m *memSettings) Update(_ context.Context, s *domain.PaymentSettings) error {
	cp := *s
	m.settings = &cp
	return nil
}

// fakeProvider is a scriptable payments.Provider.
type fakeProvider struct {
	name       string
	currency   string
	configured bool
	initiate   func(ctx context.Context, d *domain.Donation, mode Mode) (*InitiateResult, error)
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Currency(defaultCurrency string) string {
	if f.currency != "" {
		return f.currency
	}
	return defaultCurrency
}

func (f *fakeProvider) Configured() bool { return f.configured }

func (f *fakeProvider) Initiate(ctx context.Context, d *domain.Donation, mode Mode) (*InitiateResult, error) {
	if f.initiate != nil {
		return f.initiate(ctx, d, mode)
	}
	return &InitiateResult{
		RedirectURL: "https://gateway.example/" + f.name + "/" + d.ID,
		Reference:   f.name + ":tx_" + d.ID,
	}, nil
}

var errGatewayDown = errors.New("gateway down")

func mustDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}
