package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"server/internal/domain"
	"server/internal/middleware"
	"server/internal/payments"
	"server/pkg/mask"
)

type donationRequest struct {
	Amount   json.Number `json:"amount"`
	Name     string      `json:"name"`
	Email    string      `json:"email"`
	Phone    string      `json:"phone"`
	Monthly  bool        `json:"monthly"`
	Provider string      `json:"provider"`
}

// DonationsCreate starts a donation and returns the gateway redirect URL.
func (a *App) DonationsCreate(w http.ResponseWriter, r *http.Request) {
	var req donationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	amount, err := decimal.NewFromString(req.Amount.String())
	if err != nil {
		a.error(w, http.StatusBadRequest, "validation_error", "amount must be a number")
		return
	}

	result, err := a.Orchestrator.StartDonation(r.Context(), payments.StartRequest{
		Amount:       amount,
		DonorName:    req.Name,
		DonorEmail:   req.Email,
		DonorPhone:   req.Phone,
		DonorCountry: middleware.CountryFromContext(r.Context()),
		Monthly:      req.Monthly,
		Provider:     req.Provider,
	})
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrValidation):
			a.error(w, http.StatusBadRequest, "validation_error", userMessage(err))
		case errors.Is(err, domain.ErrProviderUnavailable):
			a.error(w, http.StatusBadRequest, "provider_unavailable", "this payment method is currently unavailable")
		case errors.Is(err, domain.ErrPaymentInitiationFailed):
			a.error(w, http.StatusBadGateway, "payment_initiation_failed", "could not start the payment, please try another method")
		default:
			a.Logger.Error().Err(err).Msg("start donation failed")
			a.error(w, http.StatusInternalServerError, "internal", "failed to create donation")
		}
		return
	}

	a.json(w, http.StatusCreated, map[string]any{
		"ok":           true,
		"donation_id":  result.DonationID,
		"redirect_url": result.RedirectURL,
	})
}

// DonationGet returns the status a donor's success page polls for. Only the
// donor's first name and masked reference leave the service.
func (a *App) DonationGet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	donation, err := a.Donations.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrDonationNotFound) {
			a.error(w, http.StatusNotFound, "not_found", "donation not found")
			return
		}
		a.Logger.Error().Err(err).Msg("load donation failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to load donation")
		return
	}

	firstName := donation.DonorName
	if i := strings.IndexByte(firstName, ' '); i > 0 {
		firstName = firstName[:i]
	}
	resp := map[string]any{
		"id":         donation.ID,
		"status":     string(donation.Status),
		"amount":     donation.Amount.String(),
		"currency":   donation.Currency,
		"monthly":    donation.Monthly,
		"donor_name": firstName,
		"reference":  mask.Reference(donation.Reference),
	}
	if donation.Receipt.Number != "" {
		resp["receipt_number"] = donation.Receipt.Number
		resp["receipt_url"] = donation.Receipt.URL
	}
	a.json(w, http.StatusOK, resp)
}

// DonationsList is the admin listing of recent donations.
func (a *App) DonationsList(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}
	donations, err := a.Donations.ListRecent(r.Context(), limit)
	if err != nil {
		a.Logger.Error().Err(err).Msg("list donations failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to load donations")
		return
	}
	items := make([]map[string]any, 0, len(donations))
	for _, d := range donations {
		items = append(items, map[string]any{
			"id":            d.ID,
			"amount":        d.Amount.String(),
			"currency":      d.Currency,
			"donor_name":    d.DonorName,
			"donor_email":   d.DonorEmail,
			"donor_country": d.DonorCountry,
			"monthly":       d.Monthly,
			"status":        string(d.Status),
			"reference":     d.Reference,
			"created_at":    d.CreatedAt,
			"receipt":       d.Receipt.Number,
		})
	}
	a.json(w, http.StatusOK, map[string]any{"items": items})
}

// PaymentMethods exposes the resolved provider set to the donate form.
func (a *App) PaymentMethods(w http.ResponseWriter, r *http.Request) {
	resolved, err := a.Resolver.Resolve(r.Context())
	if err != nil {
		a.Logger.Error().Err(err).Msg("resolve payment config failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to load payment methods")
		return
	}
	a.json(w, http.StatusOK, map[string]any{
		"providers":        resolved.Enabled,
		"primary":          resolved.Primary,
		"default_currency": resolved.DefaultCurrency,
		"allow_recurring":  resolved.AllowRecurring,
		"mode":             string(resolved.Mode),
	})
}

// userMessage strips the wrapped sentinel so donors see only the reason.
func userMessage(err error) string {
	msg := err.Error()
	if i := strings.LastIndex(msg, ":"); i > 0 {
		return msg[:i]
	}
	return msg
}
