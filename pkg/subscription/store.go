package subscription

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/HassanRashid15/CarWashApp-sub001/pkg/plan"
)

// Patch is a partial subscription update. Only non-nil fields are written;
// the Clear* flags distinguish "set to null" from "leave alone" for nullable
// columns. UpdatedAt is always bumped by the store.
type Patch struct {
	PlanType *plan.Type
	Status   *Status

	ExternalSubscriptionRef *string
	ExternalCustomerRef     *string
	ExternalPriceRef        *string

	CurrentPeriodStart *time.Time
	CurrentPeriodEnd   *time.Time
	ClearPeriod        bool

	TrialEndsAt      *time.Time
	ClearTrialEndsAt bool

	CanceledAt *time.Time

	CancellationRequested   *bool
	CancellationRequestedAt *time.Time
	CancellationApproved    *bool
	CancellationApprovedAt  *time.Time
	CancellationApprovedBy  *uuid.UUID
}

// apply merges the patch into s. Shared by the in-memory store and by the
// Postgres store's insert path so both produce identical rows.
func (p Patch) apply(s *Subscription, now time.Time) {
	if p.PlanType != nil {
		s.PlanType = *p.PlanType
	}
	if p.Status != nil {
		s.Status = *p.Status
	}
	if p.ExternalSubscriptionRef != nil {
		s.ExternalSubscriptionRef = *p.ExternalSubscriptionRef
	}
	if p.ExternalCustomerRef != nil {
		s.ExternalCustomerRef = *p.ExternalCustomerRef
	}
	if p.ExternalPriceRef != nil {
		s.ExternalPriceRef = *p.ExternalPriceRef
	}
	if p.ClearPeriod {
		s.CurrentPeriodStart = nil
		s.CurrentPeriodEnd = nil
	}
	if p.CurrentPeriodStart != nil {
		s.CurrentPeriodStart = p.CurrentPeriodStart
	}
	if p.CurrentPeriodEnd != nil {
		s.CurrentPeriodEnd = p.CurrentPeriodEnd
	}
	if p.ClearTrialEndsAt {
		s.TrialEndsAt = nil
	}
	if p.TrialEndsAt != nil {
		s.TrialEndsAt = p.TrialEndsAt
	}
	if p.CanceledAt != nil {
		s.CanceledAt = p.CanceledAt
	}
	if p.CancellationRequested != nil {
		s.CancellationRequested = *p.CancellationRequested
	}
	if p.CancellationRequestedAt != nil {
		s.CancellationRequestedAt = p.CancellationRequestedAt
	}
	if p.CancellationApproved != nil {
		s.CancellationApproved = *p.CancellationApproved
	}
	if p.CancellationApprovedAt != nil {
		s.CancellationApprovedAt = p.CancellationApprovedAt
	}
	if p.CancellationApprovedBy != nil {
		s.CancellationApprovedBy = p.CancellationApprovedBy
	}
	s.UpdatedAt = now
}

// upsertGuards hold the conditions under which an Upsert leaves an existing
// row untouched. Guards never apply to the insert path.
type upsertGuards struct {
	skipStatuses []Status
	skipSameRef  string
	hasSameRef   bool
}

// UpsertOption configures guard conditions for Store.Upsert.
type UpsertOption func(*upsertGuards)

// SkipIfStatus leaves the row untouched when its current status is one of
// the given statuses. This is the pending-protection guard: automatic
// payment signals must never move a pending subscription.
func SkipIfStatus(statuses ...Status) UpsertOption {
	return func(g *upsertGuards) {
		g.skipStatuses = append(g.skipStatuses, statuses...)
	}
}

// SkipIfSameRef leaves the row untouched when its stored external
// subscription ref already equals ref. This makes re-deliveries and the
// webhook/verifier race converge on a single applied write.
func SkipIfSameRef(ref string) UpsertOption {
	return func(g *upsertGuards) {
		g.skipSameRef = ref
		g.hasSameRef = true
	}
}

func (g *upsertGuards) blocks(existing *Subscription) bool {
	for _, st := range g.skipStatuses {
		if existing.Status == st {
			return true
		}
	}
	if g.hasSameRef && existing.ExternalSubscriptionRef == g.skipSameRef {
		return true
	}
	return false
}

// Precondition gates a Transition. Nil fields are not checked.
type Precondition struct {
	Status                *Status
	CancellationRequested *bool
	CancellationApproved  *bool
}

func (p Precondition) check(s *Subscription) bool {
	if p.Status != nil && s.Status != *p.Status {
		return false
	}
	if p.CancellationRequested != nil && s.CancellationRequested != *p.CancellationRequested {
		return false
	}
	if p.CancellationApproved != nil && s.CancellationApproved != *p.CancellationApproved {
		return false
	}
	return true
}

// Store is the single source of truth for subscription rows. The raw Upsert
// does not enforce the state machine; producers express their guard rules
// through UpsertOptions, and human transitions go through the Transition CAS.
// Implementations must make each mutation a single atomic statement so
// concurrent producers (webhook vs. checkout verifier) cannot interleave a
// read-then-write.
type Store interface {
	// Get retrieves the subscription for a tenant.
	// Returns ErrNotFound if no row exists.
	Get(ctx context.Context, tenantID uuid.UUID) (*Subscription, error)

	// GetByID retrieves a subscription by its own id.
	GetByID(ctx context.Context, id uuid.UUID) (*Subscription, error)

	// Upsert inserts a row with defaults plus patch, or merges the patch
	// into the existing row unless a guard blocks it. The returned bool
	// reports whether a write happened; on a blocked upsert the current row
	// is returned unchanged.
	Upsert(ctx context.Context, tenantID uuid.UUID, patch Patch, opts ...UpsertOption) (*Subscription, bool, error)

	// Transition applies the patch only if the row currently satisfies the
	// precondition. Returns ErrInvalidState when the row exists but fails
	// the precondition, ErrNotFound when it does not exist.
	Transition(ctx context.Context, id uuid.UUID, pre Precondition, patch Patch) (*Subscription, error)

	// MarkReminderSent records a lifecycle reminder, but only when no
	// reminder was sent within minGap. Returns whether the mark was taken;
	// concurrent sweeps agree on a single winner.
	MarkReminderSent(ctx context.Context, id uuid.UUID, at time.Time, minGap time.Duration) (bool, error)

	// ListExpiringTrials returns subscriptions in trial status whose trial
	// window ends before the given time and has not already ended.
	ListExpiringTrials(ctx context.Context, before time.Time) ([]*Subscription, error)
}
