// Package payments contains the donation orchestration core: the provider
// registry, the configuration resolver, the donation orchestrator and the
// callback reconciler.
package payments

import (
	"context"

	"server/internal/domain"
)

// Mode is the global operating switch shared by every adapter.
type Mode string

const (
	ModeLive Mode = "live"
	ModeMock Mode = "mock"
)

// InitiateResult is what an adapter hands back after starting a payment.
type InitiateResult struct {
	// RedirectURL is where the donor's browser is forwarded.
	RedirectURL string
	// Reference is the provider-side transaction correlation string persisted
	// onto the donation row. Each adapter owns its own format.
	Reference string
}

// Provider is the contract every payment gateway adapter implements. Adapters
// never touch the donation ledger; the orchestrator persists whatever
// Initiate returns.
type Provider interface {
	// Name is the stable identifier used in settings, references and routes.
	Name() string
	// Currency returns the currency the provider transacts in. Local
	// gateways ignore the configured default and always return NPR.
	Currency(defaultCurrency string) string
	// Configured reports whether the adapter's credentials are present.
	Configured() bool
	// Initiate starts a payment for the donation. In mock mode it must
	// return a deterministic synthetic result without external calls.
	Initiate(ctx context.Context, donation *domain.Donation, mode Mode) (*InitiateResult, error)
}

// Registry maps provider names to adapters so that neither the orchestrator
// nor the handlers branch on provider identity.
type Registry struct {
	providers map[string]Provider
	order     []string
}

// NewRegistry builds a registry from the given adapters, preserving order.
func NewRegistry(providers ...Provider) *Registry {
	r := &Registry{providers: make(map[string]Provider, len(providers))}
	for _, p := range providers {
		if _, ok := r.providers[p.Name()]; ok {
			continue
		}
		r.providers[p.Name()] = p
		r.order = append(r.order, p.Name())
	}
	return r
}

// Get returns the adapter registered under name.
func (r *Registry) Get(name string) (Provider, bool) {
	p, ok := r.providers[name]
	return p, ok
}

// Names lists registered provider names in registration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}
