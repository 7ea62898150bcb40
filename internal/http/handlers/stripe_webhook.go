package handlers

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"server/internal/domain"
	"server/internal/providers/stripe"
)

const maxWebhookBody = 1 << 20

// StripeWebhook reconciles Stripe checkout outcomes. The signed webhook
// channel is itself the verification step, so a signature failure rejects
// the delivery outright. In mock mode signature checking is skipped and the
// body is parsed as trusted JSON; mock mode never runs in production.
func (a *App) StripeWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "unreadable body")
		return
	}

	if !a.Mock {
		if err := a.Stripe.VerifySignature(body, r.Header.Get("Stripe-Signature"), time.Now()); err != nil {
			a.Logger.Warn().Err(err).Msg("stripe webhook: signature rejected")
			a.error(w, http.StatusBadRequest, "invalid_signature", "signature verification failed")
			return
		}
	}

	event, err := stripe.ParseEvent(body)
	if err != nil {
		if errors.Is(err, stripe.ErrUnknownEvent) {
			// Unhandled event types are acknowledged so Stripe stops retrying.
			a.json(w, http.StatusOK, map[string]bool{"received": true})
			return
		}
		a.Logger.Warn().Err(err).Msg("stripe webhook: malformed event")
		a.error(w, http.StatusBadRequest, "bad_request", "malformed event payload")
		return
	}

	switch event.Type {
	case stripe.EventCheckoutCompleted:
		a.stripeCheckoutOutcome(w, r, event.Session, true)
	case stripe.EventCheckoutExpired:
		a.stripeCheckoutOutcome(w, r, event.Session, false)
	case stripe.EventPaymentFailed:
		a.stripePaymentFailed(w, r, event.PaymentIntent)
	}
}

func (a *App) stripeCheckoutOutcome(w http.ResponseWriter, r *http.Request, session *stripe.CheckoutSession, completed bool) {
	ctx := r.Context()
	if session.ClientReferenceID == "" {
		a.Logger.Warn().Str("session", session.ID).Msg("stripe webhook: session without client_reference_id")
		a.json(w, http.StatusOK, map[string]bool{"received": true})
		return
	}
	donation, err := a.Donations.GetByID(ctx, session.ClientReferenceID)
	if err != nil {
		if errors.Is(err, domain.ErrDonationNotFound) {
			a.Logger.Warn().Str("donation_id", session.ClientReferenceID).Msg("stripe webhook: donation not found")
			a.json(w, http.StatusOK, map[string]bool{"received": true})
			return
		}
		a.Logger.Error().Err(err).Msg("stripe webhook: donation lookup failed")
		a.error(w, http.StatusInternalServerError, "internal", "lookup failed")
		return
	}

	if completed {
		if session.AmountTotal > 0 {
			a.Reconciler.CheckAmount(donation, decimal.NewFromInt(session.AmountTotal).Div(decimal.NewFromInt(100)))
		}
		err = a.Reconciler.Complete(ctx, donation, "stripe:"+session.ID)
	} else {
		err = a.Reconciler.Fail(ctx, donation)
	}
	if err != nil {
		a.Logger.Error().Err(err).Str("donation_id", donation.ID).Msg("stripe webhook: reconcile failed")
		a.error(w, http.StatusInternalServerError, "internal", "reconcile failed")
		return
	}
	a.json(w, http.StatusOK, map[string]bool{"received": true})
}

func (a *App) stripePaymentFailed(w http.ResponseWriter, r *http.Request, intent *stripe.PaymentIntent) {
	ctx := r.Context()
	donationID := intent.Metadata["donation_id"]
	if donationID == "" {
		a.Logger.Warn().Str("payment_intent", intent.ID).Msg("stripe webhook: failure without donation metadata")
		a.json(w, http.StatusOK, map[string]bool{"received": true})
		return
	}
	donation, err := a.Donations.GetByID(ctx, donationID)
	if err != nil {
		if errors.Is(err, domain.ErrDonationNotFound) {
			a.Logger.Warn().Str("donation_id", donationID).Msg("stripe webhook: donation not found")
			a.json(w, http.StatusOK, map[string]bool{"received": true})
			return
		}
		a.Logger.Error().Err(err).Msg("stripe webhook: donation lookup failed")
		a.error(w, http.StatusInternalServerError, "internal", "lookup failed")
		return
	}
	if err := a.Reconciler.Fail(ctx, donation); err != nil {
		a.Logger.Error().Err(err).Str("donation_id", donation.ID).Msg("stripe webhook: reconcile failed")
		a.error(w, http.StatusInternalServerError, "internal", "reconcile failed")
		return
	}
	a.json(w, http.StatusOK, map[string]bool{"received": true})
}
