package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"server/internal/domain"
	"server/internal/payments"
	"server/internal/providers/esewa"
	"server/internal/providers/khalti"
	"server/internal/providers/stripe"
	"server/internal/stats"
)

// fakeDonations is an in-memory DonationRepository with the same conditional
// terminal-update semantics as the Postgres implementation.
type fakeDonations struct {
	mu    sync.Mutex
	items map[string]*domain.Donation
}

func newFakeDonations() *fakeDonations {
	return &fakeDonations{items: make(map[string]*domain.Donation)}
}

func (f *fakeDonations) Create(_ context.Context, d *domain.Donation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *d
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now()
	}
	f.items[cp.ID] = &cp
	return nil
}

func (f *fakeDonations) GetByID(_ context.Context, id string) (*domain.Donation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.items[id]
	if !ok {
		return nil, domain.ErrDonationNotFound
	}
	cp := *d
	return &cp, nil
}

func (f *fakeDonations) GetByReference(_ context.Context, reference string) (*domain.Donation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, d := range f.items {
		if d.Reference == reference {
			cp := *d
			return &cp, nil
		}
	}
	return nil, domain.ErrDonationNotFound
}

func (f *fakeDonations) FindByIDPrefix(_ context.Context, prefix string) (*domain.Donation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if prefix == "" {
		return nil, domain.ErrDonationNotFound
	}
	var matches []*domain.Donation
	for _, d := range f.items {
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

func (f *fakeDonations) SetReference(_ context.Context, id, reference string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.items[id]
	if !ok {
		return domain.ErrDonationNotFound
	}
	d.Reference = reference
	return nil
}

func (f *fakeDonations) MarkCompleted(_ context.Context, id, reference string, receipt domain.Receipt) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.items[id]
	if !ok || d.Status != domain.StatusPending {
		return false, nil
	}
	d.Status = domain.StatusCompleted
	d.Reference = reference
	d.Receipt = receipt
	return true, nil
}

func (f *fakeDonations) MarkFailed(_ context.Context, id string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.items[id]
	if !ok || d.Status != domain.StatusPending {
		return false, nil
	}
	d.Status = domain.StatusFailed
	return true, nil
}

func (f *fakeDonations) ListRecent(_ context.Context, limit int) ([]domain.Donation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var all []domain.Donation
	for _, d := range f.items {
		all = append(all, *d)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (f *fakeDonations) FailStalePending(_ context.Context, olderThanHours int) (int64, error) {
	return 0, nil
}

// fakeSettings serves a fixed settings record.
type fakeSettings struct {
	settings *domain.PaymentSettings
}

func (f *fakeSettings) Get(context.Context) (*domain.PaymentSettings, error) {
	if f.settings == nil {
		return domain.DefaultPaymentSettings(), nil
	}
	cp := *f.settings
	return &cp, nil
}

func (f *fakeSettings) Update(_ context.Context, s *domain.PaymentSettings) error {
	cp := *s
	f.settings = &cp
	return nil
}

type appOption func(*App)

func withMode(mock bool) appOption {
	return func(a *App) { a.Mock = mock }
}

// newTestApp wires a full handler container against in-memory storage. The
// provider clients are real; only their HTTP base URLs differ per test.
func newTestApp(t *testing.T, repo *fakeDonations, opts ...appOption) *App {
	t.Helper()
	logger := zerolog.Nop()
	settings := &fakeSettings{}

	stripeClient := stripe.New(stripe.Options{
		SecretKey:     "sk_test",
		WebhookSecret: "whsec_test",
		PublicBaseURL: "http://npo.test",
		Logger:        logger,
	})
	khaltiClient := khalti.New(khalti.Options{
		SecretKey:     "khalti_test",
		PublicBaseURL: "http://npo.test",
		Logger:        logger,
	})
	esewaClient := esewa.New(esewa.Options{
		MerchantID:    "EPAYTEST",
		SecretKey:     "esewa_test",
		PublicBaseURL: "http://npo.test",
		Logger:        logger,
	})

	registry := payments.NewRegistry(stripeClient, khaltiClient, esewaClient)
	recorder := stats.NewRecorder(nil, logger)

	app := &App{
		Logger:     logger,
		Donations:  repo,
		Settings:   settings,
		Registry:   registry,
		Stats:      recorder,
		Stripe:     stripeClient,
		Khalti:     khaltiClient,
		Esewa:      esewaClient,
		Mock:       true,
		PublicBase: "http://npo.test",
	}
	for _, opt := range opts {
		opt(app)
	}
	app.Resolver = payments.NewResolver(app.Settings, registry, app.Mock)
	app.Orchestrator = payments.NewOrchestrator(repo, app.Resolver, registry, recorder, logger)
	app.Reconciler = payments.NewReconciler(repo, recorder, "http://npo.test/receipts", logger)
	return app
}

func seedPendingDonation(t *testing.T, repo *fakeDonations, id, reference string) *domain.Donation {
	t.Helper()
	amount, err := decimal.NewFromString("500")
	if err != nil {
		t.Fatal(err)
	}
	d := &domain.Donation{
		ID:         id,
		Amount:     amount,
		Currency:   "NPR",
		DonorName:  "Asha Rai",
		DonorEmail: "asha@example.org",
		Status:     domain.StatusPending,
		Reference:  reference,
		CreatedAt:  time.Now(),
	}
	if err := repo.Create(context.Background(), d); err != nil {
		t.Fatal(err)
	}
	return d
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return body
}

func mustStatus(t *testing.T, repo *fakeDonations, id string, want domain.PaymentStatus) *domain.Donation {
	t.Helper()
	d, err := repo.GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("load donation: %v", err)
	}
	if d.Status != want {
		t.Fatalf("donation status = %q, want %q", d.Status, want)
	}
	return d
}

func postJSON(path, body string) *http.Request {
	return httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
}
