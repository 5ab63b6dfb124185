package subscription

import "errors"

var (
	// ErrNotFound means no subscription row exists. Callers generally treat
	// this as "tenant is on the implicit trial plan", not as a failure.
	ErrNotFound = errors.New("subscription not found")

	// ErrInvalidState means a guarded transition found the row in a state
	// that fails its precondition. The row is left untouched.
	ErrInvalidState = errors.New("subscription is not in the required state")

	// ErrStoreUnavailable wraps persistence failures so callers can map them
	// to a 500-equivalent without inspecting driver errors.
	ErrStoreUnavailable = errors.New("subscription store unavailable")
)
