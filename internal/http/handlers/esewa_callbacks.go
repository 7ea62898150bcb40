package handlers

import (
	"errors"
	"html/template"
	"net/http"

	"github.com/shopspring/decimal"

	"server/internal/domain"
	"server/internal/providers/esewa"
	"server/pkg/mask"
)

// firstParam returns the first non-empty value among aliases of the same
// query parameter; eSewa has shipped both spellings.
func firstParam(r *http.Request, names ...string) string {
	for _, name := range names {
		if v := r.URL.Query().Get(name); v != "" {
			return v
		}
	}
	return ""
}

// EsewaSuccess handles the browser redirect after an eSewa payment. The
// echoed parameters only locate the donation; in live mode the transrec call
// decides the outcome.
func (a *App) EsewaSuccess(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	refID := firstParam(r, "refId", "rid")
	productID := firstParam(r, "oid", "pid")
	amount := r.URL.Query().Get("amt")
	if refID == "" || productID == "" || amount == "" {
		a.Logger.Warn().Msg("esewa success: missing callback parameters")
		http.Redirect(w, r, a.PublicBase+"/donate/failed", http.StatusSeeOther)
		return
	}

	donationID, ok := esewa.DonationIDFromReference(productID)
	if !ok {
		a.Logger.Warn().Str("pid", mask.String(productID)).Msg("esewa success: unrecognized product id")
		http.Redirect(w, r, a.PublicBase+"/donate/failed", http.StatusSeeOther)
		return
	}
	donation, err := a.Donations.GetByID(ctx, donationID)
	if err != nil {
		if errors.Is(err, domain.ErrDonationNotFound) {
			a.Logger.Warn().Str("donation_id", donationID).Msg("esewa success: donation not found")
			http.Redirect(w, r, a.PublicBase+"/donate/failed", http.StatusSeeOther)
			return
		}
		a.Logger.Error().Err(err).Msg("esewa success: donation lookup failed")
		a.error(w, http.StatusInternalServerError, "internal", "lookup failed")
		return
	}

	if donation.Status.Terminal() {
		a.redirectByStatus(w, r, donation)
		return
	}

	if !a.Mock {
		verified, err := a.Esewa.VerifyTransaction(ctx, refID, productID, amount)
		if err != nil {
			a.Logger.Error().Err(err).
				Str("donation_id", donation.ID).
				Str("ref_id", mask.String(refID)).
				Msg("esewa success: verification call failed")
			a.error(w, http.StatusBadGateway, "verification_failed", "payment verification failed")
			return
		}
		if !verified {
			if err := a.Reconciler.Fail(ctx, donation); err != nil {
				a.error(w, http.StatusInternalServerError, "internal", "reconcile failed")
				return
			}
			http.Redirect(w, r, a.PublicBase+"/donate/failed", http.StatusSeeOther)
			return
		}
		if reported, err := decimal.NewFromString(amount); err == nil {
			a.Reconciler.CheckAmount(donation, reported)
		}
	}

	if err := a.Reconciler.Complete(ctx, donation, "esewa:"+refID); err != nil {
		a.Logger.Error().Err(err).Str("donation_id", donation.ID).Msg("esewa success: reconcile failed")
		a.error(w, http.StatusInternalServerError, "internal", "reconcile failed")
		return
	}
	http.Redirect(w, r, a.PublicBase+"/donate/success?donation="+donation.ID, http.StatusSeeOther)
}

// EsewaFailure handles the failure redirect. eSewa does not echo the full
// donation identity here, only the transaction UUID, so the donation is
// recovered by ID-prefix with the most recent match winning.
func (a *App) EsewaFailure(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	data := r.URL.Query().Get("data")
	if data == "" {
		http.Redirect(w, r, a.PublicBase+"/donate/failed", http.StatusSeeOther)
		return
	}
	payload, err := esewa.DecodeFailure(data)
	if err != nil {
		a.Logger.Warn().Err(err).Msg("esewa failure: undecodable payload")
		http.Redirect(w, r, a.PublicBase+"/donate/failed", http.StatusSeeOther)
		return
	}

	prefix := esewa.PrefixFromTransactionUUID(payload.TransactionUUID)
	donation, err := a.Donations.FindByIDPrefix(ctx, prefix)
	if err != nil {
		if errors.Is(err, domain.ErrDonationNotFound) {
			a.Logger.Warn().Str("prefix", prefix).Msg("esewa failure: no donation for prefix")
			http.Redirect(w, r, a.PublicBase+"/donate/failed", http.StatusSeeOther)
			return
		}
		a.Logger.Error().Err(err).Msg("esewa failure: donation lookup failed")
		a.error(w, http.StatusInternalServerError, "internal", "lookup failed")
		return
	}

	if err := a.Reconciler.Fail(ctx, donation); err != nil {
		a.Logger.Error().Err(err).Str("donation_id", donation.ID).Msg("esewa failure: reconcile failed")
		a.error(w, http.StatusInternalServerError, "internal", "reconcile failed")
		return
	}
	http.Redirect(w, r, a.PublicBase+"/donate/failed", http.StatusSeeOther)
}

var esewaFormTemplate = template.Must(template.New("esewa-form").Parse(`<!DOCTYPE html>
<html>
<head><title>Redirecting to eSewa…</title></head>
<body onload="document.forms[0].submit()">
<form action="{{.Action}}" method="POST">
{{- range $name, $value := .Fields }}
<input type="hidden" name="{{$name}}" value="{{$value}}">
{{- end }}
<noscript><button type="submit">Continue to eSewa</button></noscript>
</form>
</body>
</html>
`))

// EsewaForm renders the signed auto-submitting form that carries the donor
// to the eSewa gateway.
func (a *App) EsewaForm(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	donationID := r.URL.Query().Get("donation")
	if donationID == "" {
		a.error(w, http.StatusBadRequest, "validation_error", "donation is required")
		return
	}
	donation, err := a.Donations.GetByID(ctx, donationID)
	if err != nil {
		if errors.Is(err, domain.ErrDonationNotFound) {
			a.error(w, http.StatusNotFound, "not_found", "donation not found")
			return
		}
		a.Logger.Error().Err(err).Msg("esewa form: donation lookup failed")
		a.error(w, http.StatusInternalServerError, "internal", "lookup failed")
		return
	}
	if donation.Status.Terminal() {
		a.redirectByStatus(w, r, donation)
		return
	}

	form, err := a.Esewa.BuildForm(donation)
	if err != nil {
		a.Logger.Error().Err(err).Str("donation_id", donation.ID).Msg("esewa form: build failed")
		a.error(w, http.StatusBadGateway, "payment_initiation_failed", "could not prepare the payment form")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := esewaFormTemplate.Execute(w, form); err != nil {
		a.Logger.Error().Err(err).Msg("esewa form: render failed")
	}
}

func (a *App) redirectByStatus(w http.ResponseWriter, r *http.Request, donation *domain.Donation) {
	if donation.Status == domain.StatusCompleted {
		http.Redirect(w, r, a.PublicBase+"/donate/success?donation="+donation.ID, http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, a.PublicBase+"/donate/failed", http.StatusSeeOther)
}
