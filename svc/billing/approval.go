package billing

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/HassanRashid15/CarWashApp-sub001/pkg/email"
	"github.com/HassanRashid15/CarWashApp-sub001/pkg/logger"
	"github.com/HassanRashid15/CarWashApp-sub001/pkg/subscription"
)

// ApproveSubscription is the human gate that moves a purchase out of
// pending. Approval activates the subscription with real period bounds
// derived from the plan billing interval; rejection cancels it. Any call
// against a non-pending row fails with ErrInvalidState and mutates
// nothing.
func (s *Service) ApproveSubscription(ctx context.Context, reviewerID, subID uuid.UUID, approve bool) (*subscription.Subscription, error) {
	current, err := s.store.GetByID(ctx, subID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	pre := subscription.Precondition{Status: ptr(subscription.StatusPending)}

	var patch subscription.Patch
	if approve {
		pl, err := s.catalog.Get(current.PlanType)
		if err != nil {
			return nil, err
		}
		start := now
		end := pl.PeriodEnd(now)
		patch = subscription.Patch{
			Status:             ptr(subscription.StatusActive),
			CurrentPeriodStart: &start,
			CurrentPeriodEnd:   &end,
			ClearTrialEndsAt:   true,
		}
	} else {
		patch = subscription.Patch{
			Status:     ptr(subscription.StatusCanceled),
			CanceledAt: &now,
		}
	}

	updated, err := s.store.Transition(ctx, subID, pre, patch)
	if err != nil {
		return nil, err
	}

	s.afterWrite(ctx, current.Status, updated, true)
	s.log.InfoContext(ctx, "subscription reviewed",
		logger.SubscriptionID(subID), logger.TenantID(updated.TenantID),
		slog.Any("reviewer_id", reviewerID), slog.Bool("approved", approve),
		logger.Status(updated.Status))

	if approve {
		planName := string(updated.PlanType)
		if pl, err := s.catalog.Get(updated.PlanType); err == nil {
			planName = pl.Name
		}
		s.notifyTenant(ctx, updated.TenantID, func(c TenantContact) email.Message {
			return email.PlanActivatedMessage(c.Email, c.BusinessName, planName)
		})
	} else {
		s.notifyTenant(ctx, updated.TenantID, func(c TenantContact) email.Message {
			return email.PlanRejectedMessage(c.Email, c.BusinessName, s.cfg.OperatorEmail)
		})
	}

	return updated, nil
}

// ApproveCancellation decides a tenant's cancellation request. Approval
// reverts the subscription to a fresh trial window; rejection clears the
// request flag and leaves the plan active. Only valid while a request is
// open and undecided.
func (s *Service) ApproveCancellation(ctx context.Context, reviewerID, subID uuid.UUID, approve bool) (*subscription.Subscription, error) {
	current, err := s.store.GetByID(ctx, subID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	pre := subscription.Precondition{
		CancellationRequested: ptr(true),
		CancellationApproved:  ptr(false),
	}

	trialPlan := s.catalog.Trial()

	var patch subscription.Patch
	if approve {
		trialEnd := trialPlan.TrialEndsAt(now)
		patch = subscription.Patch{
			CancellationApproved:   ptr(true),
			CancellationApprovedAt: &now,
			CancellationApprovedBy: &reviewerID,
			Status:                 ptr(subscription.StatusTrial),
			PlanType:               &trialPlan.Type,
			TrialEndsAt:            &trialEnd,
			ClearPeriod:            true,
		}
	} else {
		patch = subscription.Patch{
			CancellationRequested: ptr(false),
		}
	}

	updated, err := s.store.Transition(ctx, subID, pre, patch)
	if err != nil {
		return nil, err
	}

	s.afterWrite(ctx, current.Status, updated, true)
	s.log.InfoContext(ctx, "cancellation request reviewed",
		logger.SubscriptionID(subID), logger.TenantID(updated.TenantID),
		slog.Any("reviewer_id", reviewerID), slog.Bool("approved", approve))

	if approve {
		s.notifyTenant(ctx, updated.TenantID, func(c TenantContact) email.Message {
			return email.RevertedToTrialMessage(c.Email, c.BusinessName, trialPlan.TrialDays)
		})
	} else {
		s.notifyTenant(ctx, updated.TenantID, func(c TenantContact) email.Message {
			return email.CancellationDeclinedMessage(c.Email, c.BusinessName)
		})
	}

	return updated, nil
}
