package billing

import (
	"context"
	"time"

	"github.com/HassanRashid15/CarWashApp-sub001/pkg/email"
	"github.com/HassanRashid15/CarWashApp-sub001/pkg/logger"
)

// SendTrialReminders emails tenants whose trial ends within the given
// window. The store's reminder mark is the idempotency guard: concurrent
// sweeps and repeated runs inside minGap agree on a single sender per
// subscription. Returns how many reminders were sent.
func (s *Service) SendTrialReminders(ctx context.Context, within, minGap time.Duration) (int, error) {
	now := time.Now().UTC()

	subs, err := s.store.ListExpiringTrials(ctx, now.Add(within))
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, sub := range subs {
		taken, err := s.store.MarkReminderSent(ctx, sub.ID, now, minGap)
		if err != nil {
			s.log.ErrorContext(ctx, "failed to mark trial reminder",
				logger.SubscriptionID(sub.ID), logger.Error(err))
			continue
		}
		if !taken {
			continue
		}

		daysLeft := sub.TrialDaysRemainingAt(now)
		s.notifyTenant(ctx, sub.TenantID, func(c TenantContact) email.Message {
			return email.TrialReminderMessage(c.Email, c.BusinessName, daysLeft, s.cfg.BillingPageURL)
		})
		sent++
	}

	return sent, nil
}
