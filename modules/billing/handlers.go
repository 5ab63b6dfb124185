package billing

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/HassanRashid15/CarWashApp-sub001/pkg/binder"
	"github.com/HassanRashid15/CarWashApp-sub001/pkg/payment"
	"github.com/HassanRashid15/CarWashApp-sub001/pkg/plan"
	"github.com/HassanRashid15/CarWashApp-sub001/pkg/subscription"
	billingsvc "github.com/HassanRashid15/CarWashApp-sub001/svc/billing"
)

// signatureHeader carries the processor's webhook signature.
const signatureHeader = "Paddle-Signature"

// maxWebhookBody caps webhook payloads well above anything the processor
// actually sends.
const maxWebhookBody = 1 << 20

type handlers struct {
	svc     *billingsvc.Service
	catalog *plan.Catalog
}

type subscriptionResponse struct {
	ID                    *uuid.UUID `json:"id,omitempty"`
	PlanType              plan.Type  `json:"planType"`
	Status                string     `json:"status"`
	Implicit              bool       `json:"implicit,omitempty"`
	TrialEndsAt           *time.Time `json:"trialEndsAt,omitempty"`
	CurrentPeriodStart    *time.Time `json:"currentPeriodStart,omitempty"`
	CurrentPeriodEnd      *time.Time `json:"currentPeriodEnd,omitempty"`
	CancellationRequested bool       `json:"cancellationRequested,omitempty"`
	CanceledAt            *time.Time `json:"canceledAt,omitempty"`
}

func toSubscriptionResponse(sub *subscription.Subscription) subscriptionResponse {
	return subscriptionResponse{
		ID:                    &sub.ID,
		PlanType:              sub.PlanType,
		Status:                string(sub.Status),
		TrialEndsAt:           sub.TrialEndsAt,
		CurrentPeriodStart:    sub.CurrentPeriodStart,
		CurrentPeriodEnd:      sub.CurrentPeriodEnd,
		CancellationRequested: sub.CancellationRequested,
		CanceledAt:            sub.CanceledAt,
	}
}

// webhook ingests processor events. Permanent rejections (bad signature,
// unattributable event) get a 400 so the processor stops retrying; anything
// transient gets a 500 so it retries.
func (h *handlers) webhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		respondError(w, http.StatusBadRequest, "bad_request", "failed to read payload")
		return
	}

	err = h.svc.HandleWebhook(r.Context(), payload, r.Header.Get(signatureHeader))
	switch {
	case err == nil:
		respondJSON(w, http.StatusOK, map[string]bool{"received": true})
	case errors.Is(err, payment.ErrInvalidSignature):
		respondError(w, http.StatusBadRequest, "invalid_signature", "webhook signature verification failed")
	case errors.Is(err, billingsvc.ErrMissingAttribution):
		respondError(w, http.StatusBadRequest, "missing_attribution", "event carries no usable tenant attribution")
	default:
		respondError(w, http.StatusInternalServerError, "internal_error", "event processing failed, retry")
	}
}

type startCheckoutRequest struct {
	PlanType plan.Type `json:"planType"`
}

type startCheckoutResponse struct {
	URL       string    `json:"url"`
	SessionID string    `json:"sessionId"`
	ExpiresAt time.Time `json:"expiresAt,omitempty"`
}

func (h *handlers) startCheckout(w http.ResponseWriter, r *http.Request) {
	caller, _ := CallerFromContext(r.Context())

	var req startCheckoutRequest
	if err := binder.JSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	link, err := h.svc.StartCheckout(r.Context(), caller.TenantID, req.PlanType)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, startCheckoutResponse{
		URL:       link.URL,
		SessionID: link.SessionID,
		ExpiresAt: link.ExpiresAt,
	})
}

type verifyCheckoutRequest struct {
	SessionRef string `json:"sessionRef"`
}

// verifyCheckout is the post-redirect fallback for a delayed webhook. The
// body is optional: without a session ref the service walks the tenant's
// billing account instead.
func (h *handlers) verifyCheckout(w http.ResponseWriter, r *http.Request) {
	caller, _ := CallerFromContext(r.Context())

	// The bind is attempted regardless of Content-Length, which is -1 for
	// chunked bodies. A missing or empty payload just means no session ref.
	var req verifyCheckoutRequest
	if err := binder.JSON(r, &req); err != nil &&
		!errors.Is(err, binder.ErrEmptyBody) && !errors.Is(err, binder.ErrMissingContentType) {
		respondError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	sub, err := h.svc.VerifyCheckout(r.Context(), caller.TenantID, req.SessionRef)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, toSubscriptionResponse(sub))
}

type reviewRequest struct {
	SubscriptionID uuid.UUID `json:"subscriptionId"`
	Approve        bool      `json:"approve"`
}

func (h *handlers) approveSubscription(w http.ResponseWriter, r *http.Request) {
	caller, _ := CallerFromContext(r.Context())

	var req reviewRequest
	if err := binder.JSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	sub, err := h.svc.ApproveSubscription(r.Context(), caller.UserID, req.SubscriptionID, req.Approve)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, toSubscriptionResponse(sub))
}

func (h *handlers) approveCancellation(w http.ResponseWriter, r *http.Request) {
	caller, _ := CallerFromContext(r.Context())

	var req reviewRequest
	if err := binder.JSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	sub, err := h.svc.ApproveCancellation(r.Context(), caller.UserID, req.SubscriptionID, req.Approve)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, toSubscriptionResponse(sub))
}

func (h *handlers) requestCancellation(w http.ResponseWriter, r *http.Request) {
	caller, _ := CallerFromContext(r.Context())

	sub, err := h.svc.RequestCancellation(r.Context(), caller.TenantID)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, toSubscriptionResponse(sub))
}

// getSubscription returns the caller's subscription. A tenant without a
// row is on the implicit trial, reported as such rather than as an error.
func (h *handlers) getSubscription(w http.ResponseWriter, r *http.Request) {
	caller, _ := CallerFromContext(r.Context())

	sub, err := h.svc.GetSubscription(r.Context(), caller.TenantID)
	if err != nil {
		if errors.Is(err, subscription.ErrNotFound) {
			respondJSON(w, http.StatusOK, subscriptionResponse{
				PlanType: h.catalog.Trial().Type,
				Status:   string(subscription.StatusTrial),
				Implicit: true,
			})
			return
		}
		h.respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, toSubscriptionResponse(sub))
}

type planResponse struct {
	Type      plan.Type               `json:"type"`
	Name      string                  `json:"name"`
	TrialDays int                     `json:"trialDays,omitempty"`
	Limits    map[plan.Resource]int64 `json:"limits"`
	Features  []plan.Feature          `json:"features,omitempty"`
}

func (h *handlers) listPlans(w http.ResponseWriter, r *http.Request) {
	var out []planResponse
	for _, t := range h.catalog.Types() {
		pl, err := h.catalog.Get(t)
		if err != nil {
			continue
		}
		out = append(out, planResponse{
			Type:      pl.Type,
			Name:      pl.Name,
			TrialDays: pl.TrialDays,
			Limits:    pl.Limits,
			Features:  pl.Features,
		})
	}
	respondJSON(w, http.StatusOK, out)
}

func (h *handlers) respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, subscription.ErrNotFound):
		respondError(w, http.StatusNotFound, "not_found", "subscription not found")
	case errors.Is(err, subscription.ErrInvalidState):
		respondError(w, http.StatusConflict, "invalid_state", err.Error())
	case errors.Is(err, billingsvc.ErrCheckoutIncomplete):
		respondError(w, http.StatusConflict, "checkout_incomplete", err.Error())
	case errors.Is(err, billingsvc.ErrNoBillingAccount):
		respondError(w, http.StatusNotFound, "no_billing_account", err.Error())
	case errors.Is(err, billingsvc.ErrMissingAttribution):
		respondError(w, http.StatusBadRequest, "missing_attribution", err.Error())
	case errors.Is(err, billingsvc.ErrPlanNotPurchasable), errors.Is(err, plan.ErrPlanNotFound):
		respondError(w, http.StatusBadRequest, "invalid_plan", err.Error())
	default:
		respondError(w, http.StatusInternalServerError, "internal_error", "request failed")
	}
}
