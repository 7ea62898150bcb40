package payments

import (
	"context"
	"fmt"

	"server/internal/domain"
)

// Resolved is the effective payment configuration for one request. It is
// computed fresh per invocation and passed down explicitly; nothing here is
// process-global.
type Resolved struct {
	Mode            Mode
	Enabled         []string
	Primary         string
	DefaultCurrency string
	AllowRecurring  bool
}

// ProviderEnabled reports membership in the enabled set.
func (r *Resolved) ProviderEnabled(name string) bool {
	for _, n := range r.Enabled {
		if n == name {
			return true
		}
	}
	return false
}

// Resolver merges the administrative settings record with credential
// availability to decide which providers donors may actually use.
type Resolver struct {
	settings domain.SettingsRepository
	registry *Registry
	mock     bool
}

// NewResolver creates a resolver. mock selects the global operating mode.
func NewResolver(settings domain.SettingsRepository, registry *Registry, mock bool) *Resolver {
	return &Resolver{settings: settings, registry: registry, mock: mock}
}

// Resolve computes the effective configuration.
//
// A provider is exposed only when it is administratively enabled AND its
// credentials are configured. Mock mode relaxes the credential requirement
// since adapters bypass external calls entirely.
func (r *Resolver) Resolve(ctx context.Context) (*Resolved, error) {
	settings, err := r.settings.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve payment settings: %w", err)
	}

	mode := ModeLive
	if r.mock {
		mode = ModeMock
	}

	res := &Resolved{
		Mode:            mode,
		Primary:         settings.PrimaryProvider,
		DefaultCurrency: settings.DefaultCurrency,
		AllowRecurring:  settings.AllowRecurring,
	}
	for _, name := range r.registry.Names() {
		if !settings.Enabled(name) {
			continue
		}
		provider, _ := r.registry.Get(name)
		if mode != ModeMock && !provider.Configured() {
			continue
		}
		res.Enabled = append(res.Enabled, name)
	}
	if !res.ProviderEnabled(res.Primary) && len(res.Enabled) > 0 {
		res.Primary = res.Enabled[0]
	}
	return res, nil
}
