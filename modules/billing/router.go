// Package billing exposes the subscription lifecycle over HTTP: the
// processor webhook, the checkout verifier, operator review endpoints, and
// the tenant-facing subscription reads.
package billing

import (
	"github.com/go-chi/chi/v5"

	"github.com/HassanRashid15/CarWashApp-sub001/pkg/plan"
	billingsvc "github.com/HassanRashid15/CarWashApp-sub001/svc/billing"
)

// RouterOptions configures the billing module router.
type RouterOptions struct {
	Service *billingsvc.Service
	Catalog *plan.Catalog
}

// Router assembles the billing HTTP surface. Mount it under /billing:
//
//	r := chi.NewRouter()
//	r.Mount("/billing", billing.Router(billing.RouterOptions{
//	    Service: billingSvc,
//	    Catalog: catalog,
//	}))
//
// The webhook endpoint is public (signature-verified); everything else
// expects the host app's auth middleware to have attached a Caller to the
// request context.
func Router(opts RouterOptions) chi.Router {
	if opts.Service == nil {
		panic("billing: RouterOptions.Service is required")
	}
	if opts.Catalog == nil {
		panic("billing: RouterOptions.Catalog is required")
	}

	h := &handlers{svc: opts.Service, catalog: opts.Catalog}

	r := chi.NewRouter()
	r.Post("/webhook", h.webhook)
	r.Get("/plans", h.listPlans)

	r.Group(func(tenant chi.Router) {
		tenant.Use(requireCaller)
		tenant.Post("/checkout", h.startCheckout)
		tenant.Post("/checkout/verify", h.verifyCheckout)
		tenant.Post("/cancellation/request", h.requestCancellation)
		tenant.Get("/subscription", h.getSubscription)
	})

	r.Group(func(admin chi.Router) {
		admin.Use(RequireSuperAdmin)
		admin.Post("/subscriptions/approve", h.approveSubscription)
		admin.Post("/subscriptions/cancellation/approve", h.approveCancellation)
	})

	return r
}
