package billing

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/HassanRashid15/CarWashApp-sub001/pkg/email"
	"github.com/HassanRashid15/CarWashApp-sub001/pkg/logger"
	"github.com/HassanRashid15/CarWashApp-sub001/pkg/payment"
	"github.com/HassanRashid15/CarWashApp-sub001/pkg/subscription"
)

// HandleWebhook verifies and applies one inbound processor event. It runs
// synchronously within the request; a returned error becomes a non-2xx
// response and the processor retries. Signature and attribution failures
// are permanent rejections, everything else is worth a retry.
func (s *Service) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	event, err := s.provider.ParseWebhook(ctx, payload, signature)
	if err != nil {
		return err
	}

	log := s.log.With(slog.String("event_id", event.ID), logger.EventType(event.ProviderEvent))

	switch event.Kind {
	case payment.KindCheckoutCompleted:
		_, err = s.applyCheckout(ctx, checkoutFacts{
			attribution:     event.Attribution,
			subscriptionRef: event.SubscriptionRef,
			customerRef:     event.CustomerRef,
			priceRef:        event.PriceRef,
			source:          "webhook",
		})
		return err
	case payment.KindSubscriptionUpdated:
		return s.handleSubscriptionUpdated(ctx, log, event)
	case payment.KindSubscriptionDeleted:
		return s.handleSubscriptionDeleted(ctx, log, event)
	case payment.KindPaymentSucceeded:
		return s.handlePaymentSucceeded(ctx, log, event)
	case payment.KindPaymentFailed:
		return s.handlePaymentFailed(ctx, log, event)
	default:
		// Accept and drop unhandled kinds to stay forward-compatible with
		// processor additions.
		log.InfoContext(ctx, "ignoring unhandled billing event kind")
		return nil
	}
}

// requireAttribution enforces the metadata contract on every handled event
// kind. A violation is alerted to the operator because the processor side
// may have real money attached to it.
func (s *Service) requireAttribution(ctx context.Context, log *slog.Logger, event *payment.Event) error {
	if event.Attribution.Valid() {
		if _, err := s.catalog.Get(event.Attribution.PlanType); err == nil {
			return nil
		}
	}
	log.ErrorContext(ctx, "billing event cannot be attributed to a tenant",
		logger.TenantID(event.Attribution.TenantID),
		logger.PlanType(event.Attribution.PlanType))
	s.alertOperator(ctx, "Unattributable billing event",
		fmt.Sprintf("Event %s (%s) arrived without valid tenant attribution and was rejected. Reconcile it manually in the processor dashboard.", event.ID, event.ProviderEvent))
	return ErrMissingAttribution
}

func (s *Service) handleSubscriptionUpdated(ctx context.Context, log *slog.Logger, event *payment.Event) error {
	if err := s.requireAttribution(ctx, log, event); err != nil {
		return err
	}

	now := time.Now().UTC()
	newStatus := subscription.ParseProviderStatus(event.Status)

	patch := subscription.Patch{
		Status:             &newStatus,
		CurrentPeriodStart: event.PeriodStart,
		CurrentPeriodEnd:   event.PeriodEnd,
	}
	if newStatus == subscription.StatusCanceled {
		patch.CanceledAt = &now
	}
	if event.SubscriptionRef != "" {
		patch.ExternalSubscriptionRef = &event.SubscriptionRef
	}
	if event.PriceRef != "" {
		patch.ExternalPriceRef = &event.PriceRef
	}

	from := s.priorStatus(ctx, event.Attribution.TenantID)
	sub, applied, err := s.store.Upsert(ctx, event.Attribution.TenantID, patch,
		subscription.SkipIfStatus(subscription.StatusPending))
	if err != nil {
		return err
	}
	if !applied {
		log.InfoContext(ctx, "skipping subscription update, row is awaiting approval",
			logger.TenantID(event.Attribution.TenantID))
		return nil
	}

	s.afterWrite(ctx, from, sub, applied)
	return nil
}

func (s *Service) handleSubscriptionDeleted(ctx context.Context, log *slog.Logger, event *payment.Event) error {
	if err := s.requireAttribution(ctx, log, event); err != nil {
		return err
	}

	now := time.Now().UTC()
	from := s.priorStatus(ctx, event.Attribution.TenantID)
	sub, applied, err := s.store.Upsert(ctx, event.Attribution.TenantID, subscription.Patch{
		Status:     ptr(subscription.StatusExpired),
		CanceledAt: &now,
	})
	if err != nil {
		return err
	}

	s.afterWrite(ctx, from, sub, applied)
	return nil
}

func (s *Service) handlePaymentSucceeded(ctx context.Context, log *slog.Logger, event *payment.Event) error {
	if err := s.requireAttribution(ctx, log, event); err != nil {
		return err
	}

	now := time.Now().UTC()
	start, end := event.PeriodStart, event.PeriodEnd
	if start == nil || end == nil {
		// The event did not carry period bounds; derive them from the plan
		// billing interval.
		pl, err := s.catalog.Get(event.Attribution.PlanType)
		if err != nil {
			return err
		}
		periodStart := now
		periodEnd := pl.PeriodEnd(now)
		start, end = &periodStart, &periodEnd
	}

	patch := subscription.Patch{
		Status:             ptr(subscription.StatusActive),
		CurrentPeriodStart: start,
		CurrentPeriodEnd:   end,
		ClearTrialEndsAt:   true,
	}
	if event.SubscriptionRef != "" {
		patch.ExternalSubscriptionRef = &event.SubscriptionRef
	}

	from := s.priorStatus(ctx, event.Attribution.TenantID)
	sub, applied, err := s.store.Upsert(ctx, event.Attribution.TenantID, patch,
		subscription.SkipIfStatus(subscription.StatusPending))
	if err != nil {
		return err
	}
	if !applied {
		log.InfoContext(ctx, "skipping payment-succeeded signal, row is awaiting approval",
			logger.TenantID(event.Attribution.TenantID))
		return nil
	}

	s.afterWrite(ctx, from, sub, applied)

	// Re-delivered events land here with from == to and stay silent, which
	// keeps the notification per-transition rather than per-delivery.
	if from != sub.Status {
		planName := string(sub.PlanType)
		if pl, err := s.catalog.Get(sub.PlanType); err == nil {
			planName = pl.Name
		}
		s.notifyTenant(ctx, sub.TenantID, func(c TenantContact) email.Message {
			return email.PlanActivatedMessage(c.Email, c.BusinessName, planName)
		})
	}
	return nil
}

func (s *Service) handlePaymentFailed(ctx context.Context, log *slog.Logger, event *payment.Event) error {
	if err := s.requireAttribution(ctx, log, event); err != nil {
		return err
	}

	// A failed payment is always actionable information. It does not
	// advance anyone into paid access, so the pending guard does not apply.
	from := s.priorStatus(ctx, event.Attribution.TenantID)
	sub, applied, err := s.store.Upsert(ctx, event.Attribution.TenantID, subscription.Patch{
		Status: ptr(subscription.StatusPastDue),
	})
	if err != nil {
		return err
	}

	s.afterWrite(ctx, from, sub, applied)

	if applied && from != sub.Status {
		s.notifyTenant(ctx, sub.TenantID, func(c TenantContact) email.Message {
			return email.PaymentFailedMessage(c.Email, c.BusinessName, s.cfg.BillingPageURL)
		})
	}
	return nil
}
