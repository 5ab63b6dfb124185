package billing

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

// Caller is the authenticated identity the host app's auth middleware
// resolved for the request. Billing never issues sessions itself.
type Caller struct {
	UserID   uuid.UUID
	TenantID uuid.UUID
	Role     string
}

// RoleSuperAdmin may review pending purchases and cancellation requests.
const RoleSuperAdmin = "super_admin"

type contextKey struct{}

var callerKey contextKey

// WithCaller attaches the authenticated caller to the request context.
func WithCaller(ctx context.Context, c Caller) context.Context {
	return context.WithValue(ctx, callerKey, c)
}

// CallerFromContext extracts the authenticated caller, if any.
func CallerFromContext(ctx context.Context) (Caller, bool) {
	c, ok := ctx.Value(callerKey).(Caller)
	return c, ok
}

// requireCaller rejects requests that carry no authenticated identity.
func requireCaller(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := CallerFromContext(r.Context()); !ok {
			respondError(w, http.StatusUnauthorized, "unauthorized", "authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireSuperAdmin guards the operator review endpoints.
func RequireSuperAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		caller, ok := CallerFromContext(r.Context())
		if !ok {
			respondError(w, http.StatusUnauthorized, "unauthorized", "authentication required")
			return
		}
		if caller.Role != RoleSuperAdmin {
			respondError(w, http.StatusForbidden, "forbidden", "super admin role required")
			return
		}
		next.ServeHTTP(w, r)
	})
}
