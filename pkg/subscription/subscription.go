package subscription

import (
	"time"

	"github.com/google/uuid"

	"github.com/HassanRashid15/CarWashApp-sub001/pkg/plan"
)

// Status represents the current state of a subscription.
type Status string

const (
	StatusTrial    Status = "trial"
	StatusPending  Status = "pending"
	StatusActive   Status = "active"
	StatusPastDue  Status = "past_due"
	StatusCanceled Status = "canceled"
	StatusExpired  Status = "expired"
)

// Terminal reports whether no further automatic transition leaves the status.
func (s Status) Terminal() bool {
	return s == StatusCanceled || s == StatusExpired
}

// Settled reports whether a consumer waiting on a state change can stop
// watching: the subscription is either active or in a terminal state.
func (s Status) Settled() bool {
	return s == StatusActive || s.Terminal()
}

// ParseProviderStatus maps the payment processor's reported sub-status to a
// local status. Anything unrecognized is treated as active because the
// processor only reports on subscriptions it is still charging for.
func ParseProviderStatus(providerStatus string) Status {
	switch providerStatus {
	case "canceled", "cancelled":
		return StatusCanceled
	case "past_due":
		return StatusPastDue
	case "unpaid", "incomplete_expired":
		return StatusExpired
	default:
		return StatusActive
	}
}

// Subscription is a tenant's single subscription row. TenantID is unique:
// there is never more than one row per tenant, and a tenant without a row is
// implicitly on the trial plan.
type Subscription struct {
	ID       uuid.UUID `json:"id"`
	TenantID uuid.UUID `json:"tenant_id"`
	PlanType plan.Type `json:"plan_type"`
	Status   Status    `json:"status"`

	// Opaque identifiers correlating to the payment processor's objects.
	// ExternalSubscriptionRef doubles as the idempotency key for ingestion:
	// a new value signals a new billing cycle, never a correction.
	ExternalSubscriptionRef string `json:"external_subscription_ref,omitempty"`
	ExternalCustomerRef     string `json:"external_customer_ref,omitempty"`
	ExternalPriceRef        string `json:"external_price_ref,omitempty"`

	// Period bounds are only populated once the subscription becomes
	// effective; they stay null while pending.
	CurrentPeriodStart *time.Time `json:"current_period_start,omitempty"`
	CurrentPeriodEnd   *time.Time `json:"current_period_end,omitempty"`

	TrialEndsAt *time.Time `json:"trial_ends_at,omitempty"`
	CanceledAt  *time.Time `json:"canceled_at,omitempty"`

	// Tenant-initiated cancellation request, independent of Status.
	CancellationRequested   bool       `json:"cancellation_requested"`
	CancellationRequestedAt *time.Time `json:"cancellation_requested_at,omitempty"`

	// Human decision on the request.
	CancellationApproved   bool       `json:"cancellation_approved"`
	CancellationApprovedAt *time.Time `json:"cancellation_approved_at,omitempty"`
	CancellationApprovedBy *uuid.UUID `json:"cancellation_approved_by,omitempty"`

	// Idempotency guard for time-based lifecycle notifications.
	LastReminderSentAt *time.Time `json:"last_reminder_sent_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (s *Subscription) IsPending() bool {
	return s.Status == StatusPending
}

func (s *Subscription) IsActive() bool {
	return s.Status == StatusActive
}

func (s *Subscription) IsTerminal() bool {
	return s.Status.Terminal()
}

// IsTrialExpired reports whether the trial window has ended.
func (s *Subscription) IsTrialExpired() bool {
	if s.TrialEndsAt == nil {
		return false
	}
	return time.Now().UTC().After(*s.TrialEndsAt)
}

// TrialDaysRemainingAt returns whole days left in the trial at a given time.
// Returns 0 when there is no trial window or it has expired.
func (s *Subscription) TrialDaysRemainingAt(now time.Time) int {
	if s.TrialEndsAt == nil {
		return 0
	}

	remaining := s.TrialEndsAt.Sub(now)
	if remaining <= 0 {
		return 0
	}

	// Round up partial days to be user-friendly
	days := remaining.Hours() / 24
	return int(days + 0.5)
}

func (s *Subscription) TrialDaysRemaining() int {
	return s.TrialDaysRemainingAt(time.Now().UTC())
}
