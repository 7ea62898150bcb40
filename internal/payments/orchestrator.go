package payments

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"server/internal/domain"
	"server/internal/stats"
	"server/pkg/mask"
)

// StartRequest carries the donor's input for a new donation.
type StartRequest struct {
	Amount       decimal.Decimal
	DonorName    string
	DonorEmail   string
	DonorPhone   string
	DonorCountry string
	Monthly      bool
	Provider     string
}

// StartResult is returned to the caller so it can forward the donor's
// browser. Raw gateway responses never leave the orchestrator.
type StartResult struct {
	DonationID  string
	RedirectURL string
}

// Orchestrator creates donations and delegates initiation to the selected
// provider adapter.
type Orchestrator struct {
	donations domain.DonationRepository
	resolver  *Resolver
	registry  *Registry
	recorder  *stats.Recorder
	logger    zerolog.Logger
	titleCase cases.Caser
}

// NewOrchestrator wires the orchestrator dependencies.
func NewOrchestrator(donations domain.DonationRepository, resolver *Resolver, registry *Registry, recorder *stats.Recorder, logger zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		donations: donations,
		resolver:  resolver,
		registry:  registry,
		recorder:  recorder,
		logger:    logger,
		titleCase: cases.Title(language.English),
	}
}

// StartDonation validates the request, inserts a pending donation, invokes
// the adapter and persists the returned reference.
//
// If initiation fails after the insert, the pending row stays behind on
// purpose: it is an observable artifact and a later sweep handles expiry.
func (o *Orchestrator) StartDonation(ctx context.Context, req StartRequest) (*StartResult, error) {
	if !req.Amount.IsPositive() {
		return nil, fmt.Errorf("amount must be positive: %w", domain.ErrValidation)
	}
	name := strings.TrimSpace(req.DonorName)
	email := strings.TrimSpace(req.DonorEmail)
	if name == "" {
		return nil, fmt.Errorf("donor name is required: %w", domain.ErrValidation)
	}
	if email == "" || !strings.Contains(email, "@") {
		return nil, fmt.Errorf("donor email is required: %w", domain.ErrValidation)
	}

	resolved, err := o.resolver.Resolve(ctx)
	if err != nil {
		return nil, err
	}
	if req.Monthly && !resolved.AllowRecurring {
		return nil, fmt.Errorf("recurring donations are disabled: %w", domain.ErrValidation)
	}
	if !resolved.ProviderEnabled(req.Provider) {
		return nil, fmt.Errorf("provider %q: %w", req.Provider, domain.ErrProviderUnavailable)
	}
	provider, ok := o.registry.Get(req.Provider)
	if !ok {
		return nil, fmt.Errorf("provider %q: %w", req.Provider, domain.ErrProviderUnavailable)
	}

	donation := &domain.Donation{
		ID:           uuid.NewString(),
		Amount:       req.Amount,
		Currency:     provider.Currency(resolved.DefaultCurrency),
		DonorName:    o.titleCase.String(name),
		DonorEmail:   email,
		DonorPhone:   strings.TrimSpace(req.DonorPhone),
		DonorCountry: req.DonorCountry,
		Monthly:      req.Monthly,
		Status:       domain.StatusPending,
	}
	if err := o.donations.Create(ctx, donation); err != nil {
		return nil, fmt.Errorf("create donation: %w", err)
	}
	o.recorder.DonationCreated(ctx)

	result, err := provider.Initiate(ctx, donation, resolved.Mode)
	if err != nil {
		o.logger.Error().Err(err).
			Str("donation_id", donation.ID).
			Str("provider", provider.Name()).
			Msg("payment initiation failed")
		return nil, fmt.Errorf("%s: %w", provider.Name(), domain.ErrPaymentInitiationFailed)
	}
	if result.RedirectURL == "" {
		return nil, fmt.Errorf("%s returned no redirect url: %w", provider.Name(), domain.ErrPaymentInitiationFailed)
	}

	if err := o.donations.SetReference(ctx, donation.ID, result.Reference); err != nil {
		return nil, fmt.Errorf("persist payment reference: %w", err)
	}

	o.logger.Info().
		Str("donation_id", donation.ID).
		Str("provider", provider.Name()).
		Str("currency", donation.Currency).
		Str("reference", mask.Reference(result.Reference)).
		Msg("donation initiated")

	return &StartResult{DonationID: donation.ID, RedirectURL: result.RedirectURL}, nil
}
