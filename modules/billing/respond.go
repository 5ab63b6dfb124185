package billing

import (
	"encoding/json"
	"net/http"

	"github.com/HassanRashid15/CarWashApp-sub001/pkg/entitlement"
)

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorBody{Error: code, Message: message})
}

// limitDeniedBody is the upgrade-prompt payload resource handlers return
// when a plan limit blocks a create.
type limitDeniedBody struct {
	Error        string `json:"error"`
	LimitReached bool   `json:"limitReached"`
	CurrentCount int64  `json:"currentCount"`
	MaxLimit     int64  `json:"maxLimit"`
	PlanType     string `json:"planType"`
}

// LimitDenied renders an entitlement denial as the 403 upgrade-prompt
// payload. Returns false when err is not a limit denial, so callers can
// fall through to their normal error handling.
func LimitDenied(w http.ResponseWriter, err error) bool {
	le, ok := entitlement.IsLimitError(err)
	if !ok {
		return false
	}

	respondJSON(w, http.StatusForbidden, limitDeniedBody{
		Error:        le.Error(),
		LimitReached: true,
		CurrentCount: le.Current,
		MaxLimit:     le.Limit,
		PlanType:     string(le.PlanType),
	})
	return true
}
