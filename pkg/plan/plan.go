package plan

import (
	"slices"
	"time"
)

// Plan describes a subscription tier and its resource/feature constraints.
// PriceRef must be set to the payment provider's price ID for paid tiers to
// enable direct mapping during checkout and webhook processing.
type Plan struct {
	Type        Type               `yaml:"type"`
	Name        string             `yaml:"name"`
	Description string             `yaml:"description"`
	PriceRef    string             `yaml:"price_ref"` // provider price ID (empty for trial)
	Price       Money              `yaml:"price"`
	Interval    BillingInterval    `yaml:"interval"`
	TrialDays   int                `yaml:"trial_days"`
	Limits      map[Resource]int64 `yaml:"limits"` // -1 represents unlimited
	Features    []Feature          `yaml:"features"`
}

// Limit returns the limit for a resource. Resources the plan does not
// mention are capped at zero so unknown resources fail closed.
func (p Plan) Limit(res Resource) int64 {
	limit, ok := p.Limits[res]
	if !ok {
		return 0
	}
	return limit
}

// HasFeature reports whether the plan enables a feature.
func (p Plan) HasFeature(f Feature) bool {
	return slices.Contains(p.Features, f)
}

// TrialEndsAt calculates when a trial started at the given time ends.
// Returns startedAt unchanged if the plan carries no trial window.
func (p Plan) TrialEndsAt(startedAt time.Time) time.Time {
	if p.TrialDays <= 0 {
		return startedAt
	}
	return startedAt.AddDate(0, 0, p.TrialDays).UTC()
}

// PeriodEnd returns the end of a billing period that starts at the given
// time, derived from the plan's billing interval.
func (p Plan) PeriodEnd(start time.Time) time.Time {
	switch p.Interval {
	case BillingIntervalAnnual:
		return start.AddDate(1, 0, 0).UTC()
	default:
		return start.AddDate(0, 1, 0).UTC()
	}
}
