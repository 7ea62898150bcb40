package handlers

import (
	"encoding/json"
	"net/http"

	"server/internal/domain"
	"server/internal/middleware"
)

type settingsPayload struct {
	StripeEnabled   bool   `json:"stripe_enabled"`
	KhaltiEnabled   bool   `json:"khalti_enabled"`
	EsewaEnabled    bool   `json:"esewa_enabled"`
	PrimaryProvider string `json:"primary_provider"`
	DefaultCurrency string `json:"default_currency"`
	AllowRecurring  bool   `json:"allow_recurring"`
}

// SettingsGet returns the administrative payment settings record.
func (a *App) SettingsGet(w http.ResponseWriter, r *http.Request) {
	settings, err := a.Settings.Get(r.Context())
	if err != nil {
		a.Logger.Error().Err(err).Msg("load payment settings failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to load settings")
		return
	}
	a.json(w, http.StatusOK, map[string]any{
		"stripe_enabled":   settings.StripeEnabled,
		"khalti_enabled":   settings.KhaltiEnabled,
		"esewa_enabled":    settings.EsewaEnabled,
		"primary_provider": settings.PrimaryProvider,
		"default_currency": settings.DefaultCurrency,
		"allow_recurring":  settings.AllowRecurring,
		"updated_at":       settings.UpdatedAt,
		"updated_by":       settings.UpdatedBy,
	})
}

// SettingsUpdate writes the payment settings record. Routing already gates
// this behind the admin role.
func (a *App) SettingsUpdate(w http.ResponseWriter, r *http.Request) {
	var req settingsPayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	switch req.PrimaryProvider {
	case "stripe", "khalti", "esewa":
	default:
		a.error(w, http.StatusBadRequest, "validation_error", "primary_provider must be one of stripe, khalti, esewa")
		return
	}
	switch req.DefaultCurrency {
	case "USD", "NPR":
	default:
		a.error(w, http.StatusBadRequest, "validation_error", "default_currency must be USD or NPR")
		return
	}

	settings := &domain.PaymentSettings{
		StripeEnabled:   req.StripeEnabled,
		KhaltiEnabled:   req.KhaltiEnabled,
		EsewaEnabled:    req.EsewaEnabled,
		PrimaryProvider: req.PrimaryProvider,
		DefaultCurrency: req.DefaultCurrency,
		AllowRecurring:  req.AllowRecurring,
		UpdatedBy:       middleware.IdentityFromContext(r.Context()),
	}
	if err := a.Settings.Update(r.Context(), settings); err != nil {
		a.Logger.Error().Err(err).Msg("update payment settings failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to update settings")
		return
	}
	a.json(w, http.StatusOK, map[string]bool{"ok": true})
}
