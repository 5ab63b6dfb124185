package subscription

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/HassanRashid15/CarWashApp-sub001/pkg/plan"
)

// MemoryStore is an in-memory Store for tests and development. It applies
// the same guard semantics as the Postgres store under a single mutex, so
// every mutation is atomic.
type MemoryStore struct {
	mu       sync.RWMutex
	byTenant map[uuid.UUID]*Subscription
	byID     map[uuid.UUID]uuid.UUID
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byTenant: make(map[uuid.UUID]*Subscription),
		byID:     make(map[uuid.UUID]uuid.UUID),
	}
}

func (m *MemoryStore) Get(ctx context.Context, tenantID uuid.UUID) (*Subscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sub, ok := m.byTenant[tenantID]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(sub), nil
}

func (m *MemoryStore) GetByID(ctx context.Context, id uuid.UUID) (*Subscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	tenantID, ok := m.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(m.byTenant[tenantID]), nil
}

func (m *MemoryStore) Upsert(ctx context.Context, tenantID uuid.UUID, patch Patch, opts ...UpsertOption) (*Subscription, bool, error) {
	var guards upsertGuards
	for _, opt := range opts {
		opt(&guards)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now().UTC()

	existing, ok := m.byTenant[tenantID]
	if !ok {
		sub := &Subscription{
			ID:        uuid.New(),
			TenantID:  tenantID,
			PlanType:  plan.TypeTrial,
			Status:    StatusTrial,
			CreatedAt: now,
		}
		patch.apply(sub, now)
		m.byTenant[tenantID] = sub
		m.byID[sub.ID] = tenantID
		return clone(sub), true, nil
	}

	if guards.blocks(existing) {
		return clone(existing), false, nil
	}

	patch.apply(existing, now)
	return clone(existing), true, nil
}

func (m *MemoryStore) Transition(ctx context.Context, id uuid.UUID, pre Precondition, patch Patch) (*Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	tenantID, ok := m.byID[id]
	if !ok {
		return nil, ErrNotFound
	}

	sub := m.byTenant[tenantID]
	if !pre.check(sub) {
		return nil, ErrInvalidState
	}

	patch.apply(sub, time.Now().UTC())
	return clone(sub), nil
}

func (m *MemoryStore) MarkReminderSent(ctx context.Context, id uuid.UUID, at time.Time, minGap time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	// A vanished row reads the same as a guarded one: not taken, no error.
	// The conditional UPDATE in the Postgres store cannot tell them apart
	// either.
	tenantID, ok := m.byID[id]
	if !ok {
		return false, nil
	}

	sub := m.byTenant[tenantID]
	if sub.LastReminderSentAt != nil && at.Sub(*sub.LastReminderSentAt) < minGap {
		return false, nil
	}

	sent := at
	sub.LastReminderSentAt = &sent
	sub.UpdatedAt = at
	return true, nil
}

func (m *MemoryStore) ListExpiringTrials(ctx context.Context, before time.Time) ([]*Subscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	now := time.Now().UTC()
	var out []*Subscription
	for _, sub := range m.byTenant {
		if sub.Status != StatusTrial || sub.TrialEndsAt == nil {
			continue
		}
		if sub.TrialEndsAt.After(now) && sub.TrialEndsAt.Before(before) {
			out = append(out, clone(sub))
		}
	}
	return out, nil
}

// clone returns a deep copy so callers never alias store-internal state.
func clone(s *Subscription) *Subscription {
	cp := *s
	cp.CurrentPeriodStart = cloneTime(s.CurrentPeriodStart)
	cp.CurrentPeriodEnd = cloneTime(s.CurrentPeriodEnd)
	cp.TrialEndsAt = cloneTime(s.TrialEndsAt)
	cp.CanceledAt = cloneTime(s.CanceledAt)
	cp.CancellationRequestedAt = cloneTime(s.CancellationRequestedAt)
	cp.CancellationApprovedAt = cloneTime(s.CancellationApprovedAt)
	cp.LastReminderSentAt = cloneTime(s.LastReminderSentAt)
	if s.CancellationApprovedBy != nil {
		by := *s.CancellationApprovedBy
		cp.CancellationApprovedBy = &by
	}
	return &cp
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	cp := *t
	return &cp
}
