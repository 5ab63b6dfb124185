package billing

import (
	"context"

	"github.com/google/uuid"

	"github.com/HassanRashid15/CarWashApp-sub001/pkg/subscription"
)

// GetSubscription returns the tenant's subscription, reading through the
// TTL cache. Absence is reported as subscription.ErrNotFound; callers
// treat that as the implicit trial state.
func (s *Service) GetSubscription(ctx context.Context, tenantID uuid.UUID) (*subscription.Subscription, error) {
	if cached, ok := s.cache.Get(ctx, tenantID); ok {
		return cached, nil
	}

	sub, err := s.store.Get(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	s.cache.Set(ctx, tenantID, sub, s.cfg.CacheTTL)
	return sub, nil
}

// Watch streams status changes for one tenant. The channel closes after a
// settled (active or terminal) state is delivered, so a consumer waiting
// out a pending purchase naturally stops when the decision lands. Stopping
// early is the caller's move: call stop (or cancel ctx) and the channel
// closes. There is no server-side timeout.
func (s *Service) Watch(ctx context.Context, tenantID uuid.UUID) (<-chan StatusChange, func()) {
	wctx, cancel := context.WithCancel(ctx)
	sub := s.bus.Subscribe(wctx)
	out := make(chan StatusChange, s.cfg.WatchBuffer)

	go func() {
		defer close(out)
		defer sub.Close()
		for {
			select {
			case <-wctx.Done():
				return
			case msg, ok := <-sub.Receive(wctx):
				if !ok {
					return
				}
				change := msg.Data
				if change.TenantID != tenantID {
					continue
				}
				select {
				case out <- change:
				case <-wctx.Done():
					return
				}
				if change.To.Settled() {
					return
				}
			}
		}
	}()

	return out, cancel
}
