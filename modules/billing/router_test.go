package billing_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HassanRashid15/CarWashApp-sub001/modules/billing"
	"github.com/HassanRashid15/CarWashApp-sub001/pkg/entitlement"
	"github.com/HassanRashid15/CarWashApp-sub001/pkg/payment"
	"github.com/HassanRashid15/CarWashApp-sub001/pkg/plan"
	"github.com/HassanRashid15/CarWashApp-sub001/pkg/subscription"
	billingsvc "github.com/HassanRashid15/CarWashApp-sub001/svc/billing"
)

// scriptedProvider answers with pre-set values, like a recorded processor.
type scriptedProvider struct {
	event    *payment.Event
	parseErr error
	session  *payment.CheckoutSession
}

func (p *scriptedProvider) ParseWebhook(ctx context.Context, payload []byte, signature string) (*payment.Event, error) {
	if p.parseErr != nil {
		return nil, p.parseErr
	}
	return p.event, nil
}

func (p *scriptedProvider) CreateCheckoutLink(ctx context.Context, req payment.CheckoutRequest) (*payment.CheckoutLink, error) {
	return &payment.CheckoutLink{URL: "https://pay.example.com/txn_1", SessionID: "txn_1"}, nil
}

func (p *scriptedProvider) GetCheckoutSession(ctx context.Context, ref string) (*payment.CheckoutSession, error) {
	if p.session == nil {
		return nil, payment.ErrSessionNotFound
	}
	return p.session, nil
}

func (p *scriptedProvider) FindCustomerByEmail(ctx context.Context, email string) (string, error) {
	return "", payment.ErrCustomerNotFound
}

func (p *scriptedProvider) LatestSubscription(ctx context.Context, customerRef string) (*payment.ProviderSubscription, error) {
	return nil, payment.ErrNoSubscription
}

type testEnv struct {
	router chi.Router
	store  *subscription.MemoryStore
}

func newEnv(t *testing.T, provider *scriptedProvider) testEnv {
	t.Helper()

	store := subscription.NewMemoryStore()
	catalog := plan.Default()
	svc := billingsvc.NewService(billingsvc.Config{}, store, catalog, provider)
	t.Cleanup(func() { _ = svc.Close() })

	return testEnv{
		router: billing.Router(billing.RouterOptions{Service: svc, Catalog: catalog}),
		store:  store,
	}
}

// do issues a request, optionally authenticated as the given caller.
func (e testEnv) do(method, path string, body any, caller *billing.Caller) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}

	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if caller != nil {
		req = req.WithContext(billing.WithCaller(req.Context(), *caller))
	}

	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func tenantCaller(tenantID uuid.UUID) *billing.Caller {
	return &billing.Caller{UserID: uuid.New(), TenantID: tenantID, Role: "owner"}
}

func adminCaller() *billing.Caller {
	return &billing.Caller{UserID: uuid.New(), TenantID: uuid.New(), Role: billing.RoleSuperAdmin}
}

func TestWebhookEndpoint(t *testing.T) {
	t.Parallel()

	t.Run("accepts valid event", func(t *testing.T) {
		t.Parallel()

		tenantID := uuid.New()
		env := newEnv(t, &scriptedProvider{event: &payment.Event{
			Kind:            payment.KindCheckoutCompleted,
			SubscriptionRef: "sub_1",
			Attribution:     payment.Attribution{TenantID: tenantID, PlanType: plan.TypeStarter},
		}})

		rec := env.do(http.MethodPost, "/webhook", map[string]string{"raw": "payload"}, nil)
		assert.Equal(t, http.StatusOK, rec.Code)

		sub, err := env.store.Get(context.Background(), tenantID)
		require.NoError(t, err)
		assert.Equal(t, subscription.StatusPending, sub.Status)
	})

	t.Run("rejects bad signature permanently", func(t *testing.T) {
		t.Parallel()

		env := newEnv(t, &scriptedProvider{parseErr: payment.ErrInvalidSignature})

		rec := env.do(http.MethodPost, "/webhook", map[string]string{"raw": "payload"}, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "invalid_signature")
	})

	t.Run("rejects unattributable event permanently", func(t *testing.T) {
		t.Parallel()

		env := newEnv(t, &scriptedProvider{event: &payment.Event{
			Kind: payment.KindCheckoutCompleted,
		}})

		rec := env.do(http.MethodPost, "/webhook", map[string]string{"raw": "payload"}, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "missing_attribution")
	})
}

func TestAuthBoundaries(t *testing.T) {
	t.Parallel()

	env := newEnv(t, &scriptedProvider{})

	t.Run("tenant endpoints require a caller", func(t *testing.T) {
		t.Parallel()

		rec := env.do(http.MethodGet, "/subscription", nil, nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("review endpoints require super admin", func(t *testing.T) {
		t.Parallel()

		body := map[string]any{"subscriptionId": uuid.New(), "approve": true}

		rec := env.do(http.MethodPost, "/subscriptions/approve", body, tenantCaller(uuid.New()))
		assert.Equal(t, http.StatusForbidden, rec.Code)

		rec = env.do(http.MethodPost, "/subscriptions/approve", body, nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestGetSubscription_ImplicitTrial(t *testing.T) {
	t.Parallel()

	env := newEnv(t, &scriptedProvider{})

	rec := env.do(http.MethodGet, "/subscription", nil, tenantCaller(uuid.New()))
	require.Equal(t, http.StatusOK, rec.Code)

	var got struct {
		PlanType string `json:"planType"`
		Status   string `json:"status"`
		Implicit bool   `json:"implicit"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "trial", got.PlanType)
	assert.Equal(t, "trial", got.Status)
	assert.True(t, got.Implicit)
}

func TestListPlans(t *testing.T) {
	t.Parallel()

	env := newEnv(t, &scriptedProvider{})

	rec := env.do(http.MethodGet, "/plans", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var got []struct {
		Type string `json:"type"`
		Name string `json:"name"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Len(t, got, 4)
}

func TestStartCheckoutEndpoint(t *testing.T) {
	t.Parallel()

	env := newEnv(t, &scriptedProvider{})
	caller := tenantCaller(uuid.New())

	rec := env.do(http.MethodPost, "/checkout", map[string]string{"planType": "professional"}, caller)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "https://pay.example.com/txn_1")

	rec = env.do(http.MethodPost, "/checkout", map[string]string{"planType": "trial"}, caller)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(http.MethodPost, "/checkout", map[string]string{"planType": "platinum"}, caller)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestVerifyCheckoutEndpoint(t *testing.T) {
	t.Parallel()

	t.Run("applies completed session", func(t *testing.T) {
		t.Parallel()

		tenantID := uuid.New()
		env := newEnv(t, &scriptedProvider{session: &payment.CheckoutSession{
			Ref:             "txn_1",
			Completed:       true,
			SubscriptionRef: "sub_1",
			Attribution:     payment.Attribution{TenantID: tenantID, PlanType: plan.TypeProfessional},
		}})

		rec := env.do(http.MethodPost, "/checkout/verify", map[string]string{"sessionRef": "txn_1"}, tenantCaller(tenantID))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"status":"pending"`)
	})

	t.Run("conflict on incomplete session", func(t *testing.T) {
		t.Parallel()

		env := newEnv(t, &scriptedProvider{session: &payment.CheckoutSession{Ref: "txn_1"}})

		rec := env.do(http.MethodPost, "/checkout/verify", map[string]string{"sessionRef": "txn_1"}, tenantCaller(uuid.New()))
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("not found without a billing account", func(t *testing.T) {
		t.Parallel()

		env := newEnv(t, &scriptedProvider{})

		rec := env.do(http.MethodPost, "/checkout/verify", nil, tenantCaller(uuid.New()))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("binds chunked request body", func(t *testing.T) {
		t.Parallel()

		tenantID := uuid.New()
		env := newEnv(t, &scriptedProvider{session: &payment.CheckoutSession{
			Ref:             "txn_1",
			Completed:       true,
			SubscriptionRef: "sub_1",
			Attribution:     payment.Attribution{TenantID: tenantID, PlanType: plan.TypeStarter},
		}})

		// Wrapping the reader hides its length, so like a chunked transfer
		// the request carries ContentLength -1.
		req := httptest.NewRequest(http.MethodPost, "/checkout/verify",
			io.NopCloser(strings.NewReader(`{"sessionRef":"txn_1"}`)))
		req.Header.Set("Content-Type", "application/json")
		req = req.WithContext(billing.WithCaller(req.Context(), *tenantCaller(tenantID)))

		rec := httptest.NewRecorder()
		env.router.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"status":"pending"`)
	})

	t.Run("rejects malformed body", func(t *testing.T) {
		t.Parallel()

		env := newEnv(t, &scriptedProvider{})

		req := httptest.NewRequest(http.MethodPost, "/checkout/verify", strings.NewReader(`{"sessionRef":`))
		req.Header.Set("Content-Type", "application/json")
		req = req.WithContext(billing.WithCaller(req.Context(), *tenantCaller(uuid.New())))

		rec := httptest.NewRecorder()
		env.router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

// TestReviewFlow drives the whole lifecycle over HTTP.
func TestReviewFlow(t *testing.T) {
	t.Parallel()

	tenantID := uuid.New()
	env := newEnv(t, &scriptedProvider{event: &payment.Event{
		Kind:            payment.KindCheckoutCompleted,
		SubscriptionRef: "sub_1",
		Attribution:     payment.Attribution{TenantID: tenantID, PlanType: plan.TypeProfessional},
	}})
	tenant := tenantCaller(tenantID)
	admin := adminCaller()

	rec := env.do(http.MethodPost, "/webhook", map[string]string{"raw": "payload"}, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	pending, err := env.store.Get(context.Background(), tenantID)
	require.NoError(t, err)

	// Approve the purchase.
	rec = env.do(http.MethodPost, "/subscriptions/approve",
		map[string]any{"subscriptionId": pending.ID, "approve": true}, admin)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"active"`)

	// A second decision conflicts.
	rec = env.do(http.MethodPost, "/subscriptions/approve",
		map[string]any{"subscriptionId": pending.ID, "approve": false}, admin)
	assert.Equal(t, http.StatusConflict, rec.Code)

	// An unknown id is a 404.
	rec = env.do(http.MethodPost, "/subscriptions/approve",
		map[string]any{"subscriptionId": uuid.New(), "approve": true}, admin)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// The tenant asks to cancel.
	rec = env.do(http.MethodPost, "/cancellation/request", nil, tenant)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"cancellationRequested":true`)

	// The operator approves; the tenant lands back on trial.
	rec = env.do(http.MethodPost, "/subscriptions/cancellation/approve",
		map[string]any{"subscriptionId": pending.ID, "approve": true}, admin)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"trial"`)

	rec = env.do(http.MethodGet, "/subscription", nil, tenant)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"trial"`)
}

func TestRequestCancellation_NotActive(t *testing.T) {
	t.Parallel()

	env := newEnv(t, &scriptedProvider{})
	tenantID := uuid.New()

	// No subscription at all.
	rec := env.do(http.MethodPost, "/cancellation/request", nil, tenantCaller(tenantID))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// A pending subscription cannot request cancellation.
	_, _, err := env.store.Upsert(context.Background(), tenantID, subscription.Patch{
		Status: func() *subscription.Status { s := subscription.StatusPending; return &s }(),
	})
	require.NoError(t, err)

	rec = env.do(http.MethodPost, "/cancellation/request", nil, tenantCaller(tenantID))
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestLimitDenied(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	handled := billing.LimitDenied(rec, &entitlement.LimitError{
		Resource: plan.ResourceCustomers,
		Current:  5,
		Limit:    5,
		PlanType: plan.TypeTrial,
	})
	require.True(t, handled)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	var got struct {
		Error        string `json:"error"`
		LimitReached bool   `json:"limitReached"`
		CurrentCount int64  `json:"currentCount"`
		MaxLimit     int64  `json:"maxLimit"`
		PlanType     string `json:"planType"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.True(t, got.LimitReached)
	assert.EqualValues(t, 5, got.CurrentCount)
	assert.EqualValues(t, 5, got.MaxLimit)
	assert.Equal(t, "trial", got.PlanType)

	// Non-limit errors fall through to the caller.
	rec = httptest.NewRecorder()
	assert.False(t, billing.LimitDenied(rec, fmt.Errorf("boom: %w", errors.New("db down"))))
}
