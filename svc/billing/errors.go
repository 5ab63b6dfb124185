package billing

import "errors"

var (
	// ErrMissingAttribution means a checkout or subscription event carried
	// no usable tenant/plan metadata. Money may have moved with no
	// attributable tenant, so these are logged for manual reconciliation
	// and rejected permanently, never retried into a guess.
	ErrMissingAttribution = errors.New("event is missing tenant attribution")

	// ErrCheckoutIncomplete means the referenced checkout session exists
	// but has not completed payment.
	ErrCheckoutIncomplete = errors.New("checkout session is not completed")

	// ErrNoBillingAccount means the fallback verifier could not locate a
	// provider customer for the tenant.
	ErrNoBillingAccount = errors.New("no billing account found for tenant")

	// ErrPlanNotPurchasable means the requested tier has no provider price
	// attached, e.g. the trial tier.
	ErrPlanNotPurchasable = errors.New("plan cannot be purchased")
)
