package entitlement

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/HassanRashid15/CarWashApp-sub001/pkg/plan"
	"github.com/HassanRashid15/CarWashApp-sub001/pkg/subscription"
)

// SubscriptionResolver fetches the tenant's current subscription. A nil
// result with nil error means the tenant has no row, which the evaluator
// treats as the implicit trial plan — absence fails closed, never open.
type SubscriptionResolver func(ctx context.Context, tenantID uuid.UUID) (*subscription.Subscription, error)

// CounterFunc returns the current usage for a tenant resource.
// Must be fast as it runs on every resource creation attempt; back it with a
// database aggregate or a cached value.
type CounterFunc func(ctx context.Context, tenantID uuid.UUID) (int64, error)

// UsageInfo contains the current usage and limit for a resource.
type UsageInfo struct {
	Current int64 `json:"current"`
	Limit   int64 `json:"limit"`
}

// Service evaluates plan entitlements against live usage. It is a pure
// function of (subscription, catalog, counters) and holds no mutable state.
type Service struct {
	catalog  *plan.Catalog
	resolve  SubscriptionResolver
	counters map[plan.Resource]CounterFunc
}

// Option configures a Service.
type Option func(*Service)

// WithCounter registers a counter for a resource. Panics on duplicate
// registration to force explicit wiring.
func WithCounter(res plan.Resource, fn CounterFunc) Option {
	return func(s *Service) {
		if fn == nil {
			return
		}
		if _, exists := s.counters[res]; exists {
			panic("entitlement: counter for resource " + string(res) + " already registered")
		}
		s.counters[res] = fn
	}
}

// NewService creates the entitlement evaluator. Panics on nil dependencies
// to fail fast during initialization.
func NewService(catalog *plan.Catalog, resolve SubscriptionResolver, opts ...Option) *Service {
	if catalog == nil {
		panic("entitlement: plan catalog is required")
	}
	if resolve == nil {
		panic("entitlement: subscription resolver is required")
	}

	s := &Service{
		catalog:  catalog,
		resolve:  resolve,
		counters: make(map[plan.Resource]CounterFunc),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// planFor resolves the plan whose limits apply to the tenant right now.
// Only active and past_due subscriptions grant their paid tier; pending
// rows have not been approved yet and terminal rows have lost paid access,
// so both fall back to the trial tier.
func (s *Service) planFor(ctx context.Context, tenantID uuid.UUID) (plan.Plan, error) {
	sub, err := s.resolve(ctx, tenantID)
	if err != nil {
		if errors.Is(err, subscription.ErrNotFound) {
			return s.catalog.Trial(), nil
		}
		return plan.Plan{}, errors.Join(ErrFailedToResolve, err)
	}
	if sub == nil {
		return s.catalog.Trial(), nil
	}

	switch sub.Status {
	case subscription.StatusActive, subscription.StatusPastDue:
		p, err := s.catalog.Get(sub.PlanType)
		if err != nil {
			// Unknown tier in the row; fail closed rather than unlimited.
			return s.catalog.Trial(), nil
		}
		return p, nil
	default:
		return s.catalog.Trial(), nil
	}
}

// CanCreate checks whether the tenant may create one more unit of the
// resource. A denial is a *LimitError carrying current count, limit and plan
// type; any other non-nil error is an infrastructure failure.
func (s *Service) CanCreate(ctx context.Context, tenantID uuid.UUID, res plan.Resource) error {
	p, err := s.planFor(ctx, tenantID)
	if err != nil {
		return err
	}

	limit := p.Limit(res)
	if limit == plan.Unlimited {
		return nil
	}

	counter, ok := s.counters[res]
	if !ok {
		return ErrNoCounterRegistered
	}

	current, err := counter(ctx, tenantID)
	if err != nil {
		return errors.Join(ErrFailedToCountUsage, err)
	}

	if current >= limit {
		return &LimitError{Resource: res, Current: current, Limit: limit, PlanType: p.Type}
	}
	return nil
}

// HasFeature reports whether the tenant's plan enables a feature.
// Returns false on any error to fail closed for gated surfaces.
func (s *Service) HasFeature(ctx context.Context, tenantID uuid.UUID, f plan.Feature) bool {
	p, err := s.planFor(ctx, tenantID)
	if err != nil {
		return false
	}
	return p.HasFeature(f)
}

// Usage returns the current usage and limit for one resource.
func (s *Service) Usage(ctx context.Context, tenantID uuid.UUID, res plan.Resource) (UsageInfo, error) {
	p, err := s.planFor(ctx, tenantID)
	if err != nil {
		return UsageInfo{}, err
	}

	info := UsageInfo{Limit: p.Limit(res)}

	counter, ok := s.counters[res]
	if !ok {
		return UsageInfo{}, ErrNoCounterRegistered
	}
	current, err := counter(ctx, tenantID)
	if err != nil {
		return UsageInfo{}, errors.Join(ErrFailedToCountUsage, err)
	}
	info.Current = current
	return info, nil
}

// AllUsage returns usage for every resource the tenant's plan mentions.
// Counter failures leave that resource's current at zero; dashboards prefer
// partial data over an error page.
func (s *Service) AllUsage(ctx context.Context, tenantID uuid.UUID) (map[plan.Resource]UsageInfo, error) {
	p, err := s.planFor(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	out := make(map[plan.Resource]UsageInfo, len(p.Limits))
	for res, limit := range p.Limits {
		info := UsageInfo{Limit: limit}
		if counter, ok := s.counters[res]; ok {
			if current, err := counter(ctx, tenantID); err == nil {
				info.Current = current
			}
		}
		out[res] = info
	}
	return out, nil
}
