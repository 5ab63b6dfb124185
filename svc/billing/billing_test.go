package billing_test

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/HassanRashid15/CarWashApp-sub001/pkg/email"
	"github.com/HassanRashid15/CarWashApp-sub001/pkg/payment"
	"github.com/HassanRashid15/CarWashApp-sub001/svc/billing"
)

// fakeProvider scripts the payment processor's answers.
type fakeProvider struct {
	event    *payment.Event
	parseErr error

	session    *payment.CheckoutSession
	sessionErr error

	customerRef string
	customerErr error

	latest    *payment.ProviderSubscription
	latestErr error
}

func (f *fakeProvider) ParseWebhook(ctx context.Context, payload []byte, signature string) (*payment.Event, error) {
	if f.parseErr != nil {
		return nil, f.parseErr
	}
	return f.event, nil
}

func (f *fakeProvider) CreateCheckoutLink(ctx context.Context, req payment.CheckoutRequest) (*payment.CheckoutLink, error) {
	return &payment.CheckoutLink{URL: "https://checkout.example.com/txn_1", SessionID: "txn_1"}, nil
}

func (f *fakeProvider) GetCheckoutSession(ctx context.Context, ref string) (*payment.CheckoutSession, error) {
	if f.sessionErr != nil {
		return nil, f.sessionErr
	}
	return f.session, nil
}

func (f *fakeProvider) FindCustomerByEmail(ctx context.Context, addr string) (string, error) {
	if f.customerErr != nil {
		return "", f.customerErr
	}
	return f.customerRef, nil
}

func (f *fakeProvider) LatestSubscription(ctx context.Context, customerRef string) (*payment.ProviderSubscription, error) {
	if f.latestErr != nil {
		return nil, f.latestErr
	}
	return f.latest, nil
}

// recordSender captures notifications for assertions.
type recordSender struct {
	mu   sync.Mutex
	sent []email.Message
}

func (r *recordSender) SendEmail(ctx context.Context, msg email.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, msg)
	return nil
}

func (r *recordSender) byTag(tag string) []email.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []email.Message
	for _, m := range r.sent {
		if m.Tag == tag {
			out = append(out, m)
		}
	}
	return out
}

// staticDirectory returns the same contact for every tenant.
type staticDirectory struct {
	contact billing.TenantContact
}

func (d staticDirectory) Contact(ctx context.Context, tenantID uuid.UUID) (billing.TenantContact, error) {
	return d.contact, nil
}
