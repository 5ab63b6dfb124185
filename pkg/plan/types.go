package plan

// Type identifies a plan tier.
type Type string

const (
	TypeTrial        Type = "trial"
	TypeStarter      Type = "starter"
	TypeProfessional Type = "professional"
	TypeEnterprise   Type = "enterprise"
)

// Valid reports whether t is a known plan tier.
func (t Type) Valid() bool {
	switch t {
	case TypeTrial, TypeStarter, TypeProfessional, TypeEnterprise:
		return true
	}
	return false
}

// Resource represents a countable tenant resource type.
type Resource string

const (
	ResourceCustomers Resource = "customers"
	ResourceWorkers   Resource = "workers"
	ResourceProducts  Resource = "products"
)

// PrimaryResource is the resource the hardcoded trial cap applies to for
// tenants without a subscription row.
const PrimaryResource = ResourceCustomers

const (
	// Unlimited indicates no limit for a resource (-1 chosen for SQL compatibility)
	Unlimited int64 = -1
)

// Feature represents a plan-specific capability that can be enabled/disabled.
type Feature string

const (
	FeatureQueue           Feature = "queue"
	FeatureFeedback        Feature = "feedback"
	FeatureReports         Feature = "reports"
	FeatureExport          Feature = "export"
	FeatureAnalytics       Feature = "analytics"
	FeaturePrioritySupport Feature = "priority_support"
)

// Money represents a monetary amount in the smallest currency unit.
// For example, $10.99 USD would be Amount: 1099, Currency: "USD".
type Money struct {
	Amount   int64  `yaml:"amount"`
	Currency string `yaml:"currency"`
}

// BillingInterval represents the billing frequency for a subscription plan.
type BillingInterval string

const (
	BillingIntervalNone    BillingInterval = "none" // trial tier, no billing
	BillingIntervalMonthly BillingInterval = "monthly"
	BillingIntervalAnnual  BillingInterval = "annual"
)
