package entitlement

import (
	"errors"
	"fmt"

	"github.com/HassanRashid15/CarWashApp-sub001/pkg/plan"
)

var (
	ErrNoCounterRegistered = errors.New("no usage counter registered for resource")
	ErrFailedToCountUsage  = errors.New("failed to count resource usage")
	ErrFailedToResolve     = errors.New("failed to resolve tenant subscription")
)

// LimitError is an entitlement denial. It is a normal decision, not an
// exceptional failure: it carries the numbers the caller needs to render an
// upgrade prompt instead of a generic error page.
type LimitError struct {
	Resource plan.Resource
	Current  int64
	Limit    int64
	PlanType plan.Type
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("plan %s limit reached for %s: %d of %d", e.PlanType, e.Resource, e.Current, e.Limit)
}

// IsLimitError extracts a LimitError from an error chain.
func IsLimitError(err error) (*LimitError, bool) {
	var le *LimitError
	if errors.As(err, &le) {
		return le, true
	}
	return nil, false
}
