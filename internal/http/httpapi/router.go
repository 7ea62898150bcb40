package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"server/internal/http/handlers"
	"server/internal/infra"
	mw "server/internal/middleware"
)

// NewRouter wires middleware and routes. countryLookup may be nil when no
// GeoIP database is configured.
func NewRouter(app *handlers.App, cfg *infra.Config, logger zerolog.Logger, countryLookup mw.CountryLookup) http.Handler {
	r := chi.NewRouter()

	r.Use(
		mw.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		mw.Logger(logger),
		mw.CORS(cfg.AllowedOrigins),
	)

	r.Get("/v1/healthz", app.Health)

	r.Get("/v1/payments/methods", app.PaymentMethods)
	r.With(
		mw.RateLimit(cfg.RateLimitPerMin, time.Minute),
		mw.Country(countryLookup),
	).Post("/v1/donations", app.DonationsCreate)
	r.Get("/v1/donations/{id}", app.DonationGet)

	r.Post("/v1/payments/stripe/webhook", app.StripeWebhook)
	r.Post("/v1/payments/khalti/verify", app.KhaltiVerify)
	r.Get("/v1/payments/esewa/success", app.EsewaSuccess)
	r.Get("/v1/payments/esewa/failure", app.EsewaFailure)
	r.Get("/v1/payments/esewa/form", app.EsewaForm)

	r.Route("/v1/admin", func(r chi.Router) {
		r.Use(mw.AuthJWT(cfg.JWTSecret), mw.RequireRole("admin"))
		r.Get("/donations", app.DonationsList)
		r.Get("/payment-settings", app.SettingsGet)
		r.Put("/payment-settings", app.SettingsUpdate)
		r.Get("/stats", app.StatsSummary)
	})

	return r
}
