package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"server/internal/domain"
	"server/internal/payments"
	"server/internal/providers/esewa"
	"server/internal/providers/khalti"
	"server/internal/providers/stripe"
	"server/internal/stats"
)

// App bundles the dependencies handlers need. Everything is injected; there
// is no process-global payment state.
type App struct {
	Logger       zerolog.Logger
	Donations    domain.DonationRepository
	Settings     domain.SettingsRepository
	Orchestrator *payments.Orchestrator
	Reconciler   *payments.Reconciler
	Resolver     *payments.Resolver
	Registry     *payments.Registry
	Stats        *stats.Recorder

	Stripe *stripe.Client
	Khalti *khalti.Client
	Esewa  *esewa.Client

	// Mock mirrors the resolver's global mode for paths that must skip
	// signature or verification work entirely.
	Mock       bool
	PublicBase string

	// PingDB is optional; when set the health endpoint verifies connectivity.
	PingDB func(ctx context.Context) error
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, errCode, message string) {
	a.json(w, code, map[string]string{"error": errCode, "message": message})
}
