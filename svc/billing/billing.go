// Package billing orchestrates the subscription lifecycle: webhook and
// checkout-verifier ingestion, the human approval gate, the cancellation
// request flow, cached reads, and the status-change push channel.
package billing

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/HassanRashid15/CarWashApp-sub001/pkg/broadcast"
	"github.com/HassanRashid15/CarWashApp-sub001/pkg/email"
	"github.com/HassanRashid15/CarWashApp-sub001/pkg/payment"
	"github.com/HassanRashid15/CarWashApp-sub001/pkg/plan"
	"github.com/HassanRashid15/CarWashApp-sub001/pkg/subscription"
)

// Config holds tunables for the billing service.
type Config struct {
	OperatorEmail  string        `env:"BILLING_OPERATOR_EMAIL"`
	BillingPageURL string        `env:"BILLING_PAGE_URL"`
	CacheTTL       time.Duration `env:"SUBSCRIPTION_CACHE_TTL" envDefault:"30s"`
	WatchBuffer    int           `env:"SUBSCRIPTION_WATCH_BUFFER" envDefault:"8"`
}

// StatusChange is pushed to watchers whenever a subscription's status
// moves. From is the implicit trial state when no row existed before.
type StatusChange struct {
	TenantID       uuid.UUID           `json:"tenant_id"`
	SubscriptionID uuid.UUID           `json:"subscription_id"`
	From           subscription.Status `json:"from"`
	To             subscription.Status `json:"to"`
}

// TenantContact is what notifications need to know about a tenant.
type TenantContact struct {
	Email        string
	BusinessName string
}

// TenantDirectory resolves tenant contact details. The account system owns
// this data; billing only consumes it for notifications and the
// find-customer-by-email fallback.
type TenantDirectory interface {
	Contact(ctx context.Context, tenantID uuid.UUID) (TenantContact, error)
}

// Service is the billing orchestrator. All successful write paths
// invalidate the per-tenant cache and broadcast a StatusChange when the
// status actually moved.
type Service struct {
	cfg      Config
	store    subscription.Store
	catalog  *plan.Catalog
	provider payment.Provider
	cache    subscription.Cache
	bus      broadcast.Broadcaster[StatusChange]
	sender   email.Sender
	tenants  TenantDirectory
	log      *slog.Logger
}

// Option configures optional Service dependencies.
type Option func(*Service)

// WithCache replaces the default in-process cache, e.g. with the Redis
// cache for multi-replica deployments.
func WithCache(c subscription.Cache) Option {
	return func(s *Service) {
		if c != nil {
			s.cache = c
		}
	}
}

// WithBroadcaster replaces the default in-process broadcaster, e.g. with
// the Redis broadcaster so watchers on any replica see every change.
func WithBroadcaster(b broadcast.Broadcaster[StatusChange]) Option {
	return func(s *Service) {
		if b != nil {
			s.bus = b
		}
	}
}

// WithEmailSender enables tenant and operator notifications. Without a
// sender all notification paths are silent no-ops.
func WithEmailSender(sender email.Sender) Option {
	return func(s *Service) { s.sender = sender }
}

// WithTenantDirectory enables contact resolution for notifications and the
// checkout-verifier email fallback.
func WithTenantDirectory(d TenantDirectory) Option {
	return func(s *Service) { s.tenants = d }
}

func WithLogger(log *slog.Logger) Option {
	return func(s *Service) {
		if log != nil {
			s.log = log
		}
	}
}

// NewService creates the billing service. Store, catalog, and provider are
// required; nil values panic so misconfiguration fails at startup.
func NewService(cfg Config, store subscription.Store, catalog *plan.Catalog, provider payment.Provider, opts ...Option) *Service {
	if store == nil {
		panic("billing: subscription store is required")
	}
	if catalog == nil {
		panic("billing: plan catalog is required")
	}
	if provider == nil {
		panic("billing: payment provider is required")
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 30 * time.Second
	}
	if cfg.WatchBuffer < 1 {
		cfg.WatchBuffer = 8
	}

	s := &Service{
		cfg:      cfg,
		store:    store,
		catalog:  catalog,
		provider: provider,
		cache:    subscription.NewMemoryCache(),
		bus:      broadcast.NewMemoryBroadcaster[StatusChange](cfg.WatchBuffer),
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Close releases the cache and broadcaster.
func (s *Service) Close() error {
	err := s.bus.Close()
	if cerr := s.cache.Close(); err == nil {
		err = cerr
	}
	return err
}

// afterWrite runs the shared post-mutation tail: cache invalidation and,
// when the status moved, a broadcast to watchers.
func (s *Service) afterWrite(ctx context.Context, from subscription.Status, sub *subscription.Subscription, applied bool) {
	if !applied || sub == nil {
		return
	}
	s.cache.Delete(ctx, sub.TenantID)
	if from != sub.Status {
		_ = s.bus.Broadcast(ctx, broadcast.Message[StatusChange]{Data: StatusChange{
			TenantID:       sub.TenantID,
			SubscriptionID: sub.ID,
			From:           from,
			To:             sub.Status,
		}})
	}
}

// priorStatus reads the tenant's current status for the StatusChange.From
// field. An absent row is the implicit trial state.
func (s *Service) priorStatus(ctx context.Context, tenantID uuid.UUID) subscription.Status {
	existing, err := s.store.Get(ctx, tenantID)
	if err != nil {
		return subscription.StatusTrial
	}
	return existing.Status
}

func ptr[T any](v T) *T { return &v }
