package payment

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/HassanRashid15/CarWashApp-sub001/pkg/plan"
)

// Kind is the normalized billing event type. Provider implementations map
// their vendor-specific event names onto these.
type Kind string

const (
	KindCheckoutCompleted   Kind = "checkout_completed"
	KindSubscriptionUpdated Kind = "subscription_updated"
	KindSubscriptionDeleted Kind = "subscription_deleted"
	KindPaymentSucceeded    Kind = "payment_succeeded"
	KindPaymentFailed       Kind = "payment_failed"
	KindUnknown             Kind = "unknown"
)

// Attribution carries which tenant a payment belongs to and what they
// bought. It must be attached to the checkout object at creation time as
// custom metadata; a checkout event without it cannot be safely attributed
// to anyone, no matter who happens to be logged in when it lands.
type Attribution struct {
	TenantID uuid.UUID
	PlanType plan.Type
}

// Valid reports whether the attribution identifies a tenant and a known
// plan tier.
func (a Attribution) Valid() bool {
	return a.TenantID != uuid.Nil && a.PlanType.Valid()
}

// Event is a normalized webhook event.
type Event struct {
	ID              string    // provider's event id, the idempotency key
	Kind            Kind      // normalized kind
	ProviderEvent   string    // original provider event name
	OccurredAt      time.Time //
	SubscriptionRef string    // provider's subscription id
	CustomerRef     string    // provider's customer id
	PriceRef        string    // provider's price id for the purchased plan
	Status          string    // provider's reported sub-status, verbatim
	PeriodStart     *time.Time
	PeriodEnd       *time.Time
	Attribution     Attribution
	Raw             map[string]any // full provider payload for reconciliation logs
}

// CheckoutSession is the provider's view of a finished (or not) checkout,
// fetched by the pull-based fallback verifier.
type CheckoutSession struct {
	Ref             string
	Completed       bool
	SubscriptionRef string
	CustomerRef     string
	PriceRef        string
	Attribution     Attribution
}

// ProviderSubscription is the provider's own subscription object, used when
// the fallback has no session ref and inspects the customer directly.
type ProviderSubscription struct {
	Ref         string
	CustomerRef string
	PriceRef    string
	Status      string
	Attribution Attribution
}

// CheckoutRequest contains data needed to create a hosted checkout session.
type CheckoutRequest struct {
	PriceRef   string
	TenantID   uuid.UUID
	PlanType   plan.Type
	Email      string // optional billing email
	SuccessURL string
}

// CheckoutLink represents a hosted checkout session.
type CheckoutLink struct {
	URL       string
	SessionID string
	ExpiresAt time.Time
}

// Provider abstracts the payment processor. Implementations use the
// official vendor SDK and must verify webhook signatures before parsing —
// an unverified payload is never processed.
type Provider interface {
	// ParseWebhook validates the signature and returns the normalized event.
	// Returns ErrInvalidSignature when verification fails.
	ParseWebhook(ctx context.Context, payload []byte, signature string) (*Event, error)

	// CreateCheckoutLink creates a hosted checkout session carrying the
	// tenant attribution in its metadata.
	CreateCheckoutLink(ctx context.Context, req CheckoutRequest) (*CheckoutLink, error)

	// GetCheckoutSession fetches a checkout session by the opaque reference
	// the client received on redirect.
	GetCheckoutSession(ctx context.Context, ref string) (*CheckoutSession, error)

	// FindCustomerByEmail looks up the provider customer ref by account
	// email. Returns ErrCustomerNotFound when no customer matches.
	FindCustomerByEmail(ctx context.Context, email string) (string, error)

	// LatestSubscription returns the customer's most recent subscription
	// object. Returns ErrNoSubscription when the customer has none.
	LatestSubscription(ctx context.Context, customerRef string) (*ProviderSubscription, error)
}
