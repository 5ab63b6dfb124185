package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/HassanRashid15/CarWashApp-sub001/pkg/email"
	"github.com/HassanRashid15/CarWashApp-sub001/pkg/logger"
	"github.com/HassanRashid15/CarWashApp-sub001/pkg/subscription"
)

// RequestCancellation flags an active subscription for cancellation. The
// status is untouched; the tenant keeps full access until the operator
// decides. Repeat calls while a request is open are no-op successes.
func (s *Service) RequestCancellation(ctx context.Context, tenantID uuid.UUID) (*subscription.Subscription, error) {
	sub, err := s.store.Get(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if sub.CancellationRequested {
		return sub, nil
	}

	now := time.Now().UTC()
	updated, err := s.store.Transition(ctx, sub.ID,
		subscription.Precondition{
			Status:                ptr(subscription.StatusActive),
			CancellationRequested: ptr(false),
		},
		subscription.Patch{
			CancellationRequested:   ptr(true),
			CancellationRequestedAt: &now,
		})
	if err != nil {
		// A concurrent request may have won the CAS; that is still a
		// success for this caller.
		if errors.Is(err, subscription.ErrInvalidState) {
			if latest, getErr := s.store.Get(ctx, tenantID); getErr == nil && latest.CancellationRequested {
				return latest, nil
			}
		}
		return nil, err
	}

	// Flag change only, so no status broadcast; the cached copy is stale
	// either way.
	s.cache.Delete(ctx, tenantID)

	s.log.InfoContext(ctx, "cancellation requested",
		logger.TenantID(tenantID), logger.SubscriptionID(updated.ID))

	s.notifyTenant(ctx, tenantID, func(c TenantContact) email.Message {
		return email.CancellationRequestedMessage(c.Email, c.BusinessName)
	})
	s.alertOperator(ctx, "Cancellation request pending review",
		fmt.Sprintf("Tenant %s asked to cancel subscription %s. Review it in the admin panel.", tenantID, updated.ID))

	return updated, nil
}
