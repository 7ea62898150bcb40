package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"server/internal/domain"
	"server/internal/providers/khalti"
	"server/pkg/mask"
)

type khaltiVerifyRequest struct {
	Pidx string `json:"pidx"`
}

// KhaltiVerify is the client-invoked verification endpoint for the Khalti
// redirect flow. The pidx from the browser only locates the donation; the
// verified status comes from the lookup API.
func (a *App) KhaltiVerify(w http.ResponseWriter, r *http.Request) {
	var req khaltiVerifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Pidx == "" {
		a.error(w, http.StatusBadRequest, "validation_error", "pidx is required")
		return
	}
	ctx := r.Context()

	donation, err := a.Donations.GetByReference(ctx, "khalti:"+req.Pidx)
	if err != nil {
		if errors.Is(err, domain.ErrDonationNotFound) {
			a.Logger.Warn().Str("pidx", mask.String(req.Pidx)).Msg("khalti verify: donation not found")
			a.json(w, http.StatusOK, map[string]string{"status": "not_found"})
			return
		}
		a.Logger.Error().Err(err).Msg("khalti verify: donation lookup failed")
		a.error(w, http.StatusInternalServerError, "internal", "lookup failed")
		return
	}

	// Replays against a settled donation acknowledge without re-processing.
	if donation.Status.Terminal() {
		a.json(w, http.StatusOK, map[string]string{"status": string(donation.Status)})
		return
	}

	if a.Mock {
		if err := a.Reconciler.Complete(ctx, donation, donation.Reference); err != nil {
			a.error(w, http.StatusInternalServerError, "internal", "reconcile failed")
			return
		}
		a.json(w, http.StatusOK, map[string]string{"status": string(domain.StatusCompleted)})
		return
	}

	lookup, err := a.Khalti.Lookup(ctx, req.Pidx)
	if err != nil {
		a.Logger.Error().Err(err).
			Str("donation_id", donation.ID).
			Str("pidx", mask.String(req.Pidx)).
			Msg("khalti verify: lookup call failed")
		a.error(w, http.StatusBadGateway, "verification_failed", "payment verification failed")
		return
	}
	a.Reconciler.CheckAmount(donation, khalti.AmountFromPaisa(lookup.TotalAmount))

	status := domain.StatusFailed
	if lookup.Status == khalti.StatusCompleted {
		status = domain.StatusCompleted
		err = a.Reconciler.Complete(ctx, donation, "khalti:"+req.Pidx)
	} else {
		err = a.Reconciler.Fail(ctx, donation)
	}
	if err != nil {
		a.Logger.Error().Err(err).Str("donation_id", donation.ID).Msg("khalti verify: reconcile failed")
		a.error(w, http.StatusInternalServerError, "internal", "reconcile failed")
		return
	}
	a.json(w, http.StatusOK, map[string]string{"status": string(status)})
}
