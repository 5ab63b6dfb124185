package billing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/HassanRashid15/CarWashApp-sub001/pkg/logger"
	"github.com/HassanRashid15/CarWashApp-sub001/pkg/payment"
	"github.com/HassanRashid15/CarWashApp-sub001/pkg/plan"
	"github.com/HassanRashid15/CarWashApp-sub001/pkg/subscription"
)

// checkoutFacts is what both ingestion producers learned about a finished
// checkout, regardless of whether it came from a push event or a pulled
// session.
type checkoutFacts struct {
	attribution     payment.Attribution
	subscriptionRef string
	customerRef     string
	priceRef        string
	source          string // "webhook" or "verifier", for logs
}

// applyCheckout is the single guarded-upsert path both producers share.
// The row lands in pending with the trial window and any previous cycle's
// period bounds cleared; bounds only become real once a human approves. The
// pending guard keeps a re-delivered or racing checkout from rewriting a
// row that is already awaiting approval, and the same-ref guard makes the
// webhook/verifier race converge on one applied write.
func (s *Service) applyCheckout(ctx context.Context, facts checkoutFacts) (*subscription.Subscription, error) {
	attr := facts.attribution
	if !attr.Valid() {
		s.log.ErrorContext(ctx, "checkout cannot be attributed to a tenant",
			slog.String("source", facts.source), logger.TenantID(attr.TenantID), logger.PlanType(attr.PlanType))
		s.alertOperator(ctx, "Unattributable checkout",
			fmt.Sprintf("A completed checkout (session/subscription ref %q) carried no valid tenant attribution. Reconcile it manually.", facts.subscriptionRef))
		return nil, ErrMissingAttribution
	}
	if _, err := s.catalog.Get(attr.PlanType); err != nil {
		s.log.ErrorContext(ctx, "checkout references an unknown plan tier",
			logger.TenantID(attr.TenantID), logger.PlanType(attr.PlanType))
		return nil, errors.Join(ErrMissingAttribution, err)
	}

	patch := subscription.Patch{
		PlanType:              &attr.PlanType,
		Status:                ptr(subscription.StatusPending),
		ClearTrialEndsAt:      true,
		ClearPeriod:           true,
		CancellationRequested: ptr(false),
		CancellationApproved:  ptr(false),
	}
	if facts.subscriptionRef != "" {
		patch.ExternalSubscriptionRef = &facts.subscriptionRef
	}
	if facts.customerRef != "" {
		patch.ExternalCustomerRef = &facts.customerRef
	}
	if facts.priceRef != "" {
		patch.ExternalPriceRef = &facts.priceRef
	}

	opts := []subscription.UpsertOption{subscription.SkipIfStatus(subscription.StatusPending)}
	if facts.subscriptionRef != "" {
		opts = append(opts, subscription.SkipIfSameRef(facts.subscriptionRef))
	}

	from := s.priorStatus(ctx, attr.TenantID)
	sub, applied, err := s.store.Upsert(ctx, attr.TenantID, patch, opts...)
	if err != nil {
		return nil, err
	}
	if !applied {
		s.log.InfoContext(ctx, "checkout already applied",
			slog.String("source", facts.source), logger.TenantID(attr.TenantID), logger.SubscriptionID(sub.ID))
		return sub, nil
	}

	s.afterWrite(ctx, from, sub, applied)
	s.log.InfoContext(ctx, "checkout recorded, awaiting approval",
		slog.String("source", facts.source), logger.TenantID(attr.TenantID),
		logger.SubscriptionID(sub.ID), logger.PlanType(sub.PlanType))
	return sub, nil
}

// StartCheckout creates a hosted checkout session for a paid tier. The
// tenant attribution rides inside the session metadata, so the webhook can
// land the purchase no matter whose browser session it completes in.
func (s *Service) StartCheckout(ctx context.Context, tenantID uuid.UUID, planType plan.Type) (*payment.CheckoutLink, error) {
	pl, err := s.catalog.Get(planType)
	if err != nil {
		return nil, err
	}
	if pl.PriceRef == "" {
		return nil, ErrPlanNotPurchasable
	}

	req := payment.CheckoutRequest{
		PriceRef:   pl.PriceRef,
		TenantID:   tenantID,
		PlanType:   pl.Type,
		SuccessURL: s.cfg.BillingPageURL,
	}
	if s.tenants != nil {
		if contact, err := s.tenants.Contact(ctx, tenantID); err == nil {
			req.Email = contact.Email
		}
	}

	link, err := s.provider.CreateCheckoutLink(ctx, req)
	if err != nil {
		return nil, err
	}

	s.log.InfoContext(ctx, "checkout session created",
		logger.TenantID(tenantID), logger.PlanType(pl.Type))
	return link, nil
}

// VerifyCheckout is the pull-based fallback invoked after the checkout
// redirect, for when the webhook is delayed or lost. With a session ref it
// pulls that session; without one it walks the tenant's known customer ref
// (or an email search) to the customer's newest subscription object.
// Metadata attribution is always trusted over the live caller.
func (s *Service) VerifyCheckout(ctx context.Context, caller uuid.UUID, sessionRef string) (*subscription.Subscription, error) {
	if sessionRef != "" {
		session, err := s.provider.GetCheckoutSession(ctx, sessionRef)
		if err != nil {
			return nil, err
		}
		if !session.Completed {
			return nil, ErrCheckoutIncomplete
		}
		s.warnOnCallerMismatch(ctx, caller, session.Attribution)
		return s.applyCheckout(ctx, checkoutFacts{
			attribution:     session.Attribution,
			subscriptionRef: session.SubscriptionRef,
			customerRef:     session.CustomerRef,
			priceRef:        session.PriceRef,
			source:          "verifier",
		})
	}

	existing, err := s.store.Get(ctx, caller)
	if err != nil && !errors.Is(err, subscription.ErrNotFound) {
		return nil, err
	}

	customerRef := ""
	if existing != nil {
		customerRef = existing.ExternalCustomerRef
	}
	if customerRef == "" {
		if s.tenants == nil {
			return nil, ErrNoBillingAccount
		}
		contact, err := s.tenants.Contact(ctx, caller)
		if err != nil {
			return nil, errors.Join(ErrNoBillingAccount, err)
		}
		customerRef, err = s.provider.FindCustomerByEmail(ctx, contact.Email)
		if err != nil {
			return nil, errors.Join(ErrNoBillingAccount, err)
		}
	}

	provSub, err := s.provider.LatestSubscription(ctx, customerRef)
	if err != nil {
		return nil, err
	}

	// Already applied by the webhook (or an earlier verify call).
	if existing != nil && provSub.Ref != "" && existing.ExternalSubscriptionRef == provSub.Ref {
		return existing, nil
	}

	s.warnOnCallerMismatch(ctx, caller, provSub.Attribution)
	return s.applyCheckout(ctx, checkoutFacts{
		attribution:     provSub.Attribution,
		subscriptionRef: provSub.Ref,
		customerRef:     provSub.CustomerRef,
		priceRef:        provSub.PriceRef,
		source:          "verifier",
	})
}

// warnOnCallerMismatch logs when the purchase metadata names a different
// tenant than the live session. The purchase may legitimately have started
// in one session and completed in another; metadata wins.
func (s *Service) warnOnCallerMismatch(ctx context.Context, caller uuid.UUID, attr payment.Attribution) {
	if attr.Valid() && attr.TenantID != caller {
		s.log.WarnContext(ctx, "checkout attribution differs from authenticated caller, trusting metadata",
			logger.TenantID(attr.TenantID), slog.Any("caller_tenant_id", caller))
	}
}
