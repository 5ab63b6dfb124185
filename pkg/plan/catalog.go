package plan

import (
	"errors"
	"fmt"
	"maps"
	"slices"
)

// Catalog is the static table of plan tiers. It is built once at startup and
// never mutated at runtime, so lookups need no locking.
type Catalog struct {
	plans      map[Type]Plan
	byPriceRef map[string]Type
}

// NewCatalog builds a catalog from the given plans after validating them.
// A trial tier is mandatory: it is the implicit plan for tenants without a
// subscription row and the tier subscriptions revert to after an approved
// cancellation.
func NewCatalog(plans ...Plan) (*Catalog, error) {
	if len(plans) == 0 {
		return nil, errors.Join(ErrInvalidConfiguration, errors.New("at least one plan is required"))
	}

	c := &Catalog{
		plans:      make(map[Type]Plan, len(plans)),
		byPriceRef: make(map[string]Type, len(plans)),
	}

	for _, p := range plans {
		if !p.Type.Valid() {
			return nil, errors.Join(ErrInvalidConfiguration, fmt.Errorf("unknown plan type %q", p.Type))
		}
		if _, exists := c.plans[p.Type]; exists {
			return nil, errors.Join(ErrInvalidConfiguration, fmt.Errorf("duplicate plan type %q", p.Type))
		}
		if p.TrialDays < 0 {
			return nil, errors.Join(ErrInvalidConfiguration, fmt.Errorf("plan %s has negative trial days: %d", p.Type, p.TrialDays))
		}
		if p.Type != TypeTrial && p.PriceRef == "" {
			return nil, errors.Join(ErrInvalidConfiguration, fmt.Errorf("paid plan %s has no provider price ref", p.Type))
		}
		if p.PriceRef != "" {
			if prev, exists := c.byPriceRef[p.PriceRef]; exists {
				return nil, errors.Join(ErrInvalidConfiguration, fmt.Errorf("price ref %q shared by %s and %s", p.PriceRef, prev, p.Type))
			}
			c.byPriceRef[p.PriceRef] = p.Type
		}

		// Defensive copies keep the catalog immutable even if the caller
		// mutates the slices it passed in.
		p.Limits = maps.Clone(p.Limits)
		p.Features = slices.Clone(p.Features)
		c.plans[p.Type] = p
	}

	if _, ok := c.plans[TypeTrial]; !ok {
		return nil, errors.Join(ErrInvalidConfiguration, errors.New("catalog must include the trial plan"))
	}

	return c, nil
}

// MustNewCatalog panics on invalid configuration. Catalog errors are
// deployment mistakes, so failing at startup beats limping along.
func MustNewCatalog(plans ...Plan) *Catalog {
	c, err := NewCatalog(plans...)
	if err != nil {
		panic(err)
	}
	return c
}

// Get returns the plan for a tier.
func (c *Catalog) Get(t Type) (Plan, error) {
	p, ok := c.plans[t]
	if !ok {
		return Plan{}, ErrPlanNotFound
	}
	return p, nil
}

// Trial returns the trial tier, which NewCatalog guarantees to exist.
func (c *Catalog) Trial() Plan {
	return c.plans[TypeTrial]
}

// ByPriceRef resolves a provider price ID to a plan tier.
func (c *Catalog) ByPriceRef(ref string) (Plan, error) {
	t, ok := c.byPriceRef[ref]
	if !ok {
		return Plan{}, ErrPriceRefNotFound
	}
	return c.plans[t], nil
}

// Types returns all tiers in the catalog in no particular order.
func (c *Catalog) Types() []Type {
	return slices.Collect(maps.Keys(c.plans))
}

// Default returns the builtin car wash plan catalog. The trial tier caps the
// primary resource at 5, which is also the fail-closed default applied to
// tenants with no subscription row at all.
func Default() *Catalog {
	return MustNewCatalog(
		Plan{
			Type:      TypeTrial,
			Name:      "Trial",
			Interval:  BillingIntervalNone,
			TrialDays: 14,
			Limits: map[Resource]int64{
				ResourceCustomers: 5,
				ResourceWorkers:   2,
				ResourceProducts:  10,
			},
			Features: []Feature{FeatureQueue},
		},
		Plan{
			Type:      TypeStarter,
			Name:      "Starter",
			PriceRef:  "pri_starter_monthly",
			Price:     Money{Amount: 2900, Currency: "USD"},
			Interval:  BillingIntervalMonthly,
			TrialDays: 14,
			Limits: map[Resource]int64{
				ResourceCustomers: 100,
				ResourceWorkers:   5,
				ResourceProducts:  50,
			},
			Features: []Feature{FeatureQueue, FeatureFeedback},
		},
		Plan{
			Type:      TypeProfessional,
			Name:      "Professional",
			PriceRef:  "pri_professional_monthly",
			Price:     Money{Amount: 7900, Currency: "USD"},
			Interval:  BillingIntervalMonthly,
			TrialDays: 14,
			Limits: map[Resource]int64{
				ResourceCustomers: 1000,
				ResourceWorkers:   25,
				ResourceProducts:  500,
			},
			Features: []Feature{FeatureQueue, FeatureFeedback, FeatureReports, FeatureExport, FeatureAnalytics},
		},
		Plan{
			Type:     TypeEnterprise,
			Name:     "Enterprise",
			PriceRef: "pri_enterprise_annual",
			Price:    Money{Amount: 99900, Currency: "USD"},
			Interval: BillingIntervalAnnual,
			Limits: map[Resource]int64{
				ResourceCustomers: Unlimited,
				ResourceWorkers:   Unlimited,
				ResourceProducts:  Unlimited,
			},
			Features: []Feature{FeatureQueue, FeatureFeedback, FeatureReports, FeatureExport, FeatureAnalytics, FeaturePrioritySupport},
		},
	)
}
