package billing_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HassanRashid15/CarWashApp-sub001/pkg/email"
	"github.com/HassanRashid15/CarWashApp-sub001/pkg/payment"
	"github.com/HassanRashid15/CarWashApp-sub001/pkg/plan"
	"github.com/HassanRashid15/CarWashApp-sub001/pkg/subscription"
	"github.com/HassanRashid15/CarWashApp-sub001/svc/billing"
)

// TestSubscriptionLifecycle walks one tenant through the full journey:
// checkout → pending → approved active → cancellation request → approved
// revert to a fresh trial.
func TestSubscriptionLifecycle(t *testing.T) {
	t.Parallel()

	tenantID := uuid.New()
	operator := uuid.New()

	store := subscription.NewMemoryStore()
	sender := &recordSender{}
	provider := &fakeProvider{event: &payment.Event{
		ID:              "evt_1",
		Kind:            payment.KindCheckoutCompleted,
		ProviderEvent:   "transaction.completed",
		SubscriptionRef: "sub_1",
		CustomerRef:     "ctm_1",
		PriceRef:        "pri_professional_monthly",
		Attribution:     payment.Attribution{TenantID: tenantID, PlanType: plan.TypeProfessional},
	}}
	svc := billing.NewService(billing.Config{OperatorEmail: "ops@example.com"},
		store, plan.Default(), provider,
		billing.WithEmailSender(sender),
		billing.WithTenantDirectory(staticDirectory{contact: billing.TenantContact{
			Email:        "owner@example.com",
			BusinessName: "Sparkle Wash",
		}}))
	t.Cleanup(func() { _ = svc.Close() })

	ctx := context.Background()

	// The tenant buys the professional plan; the webhook lands it pending.
	require.NoError(t, svc.HandleWebhook(ctx, []byte("{}"), "sig"))

	sub, err := svc.GetSubscription(ctx, tenantID)
	require.NoError(t, err)
	assert.Equal(t, subscription.StatusPending, sub.Status)
	assert.Equal(t, plan.TypeProfessional, sub.PlanType)
	assert.Nil(t, sub.TrialEndsAt)

	// The operator approves the purchase.
	sub, err = svc.ApproveSubscription(ctx, operator, sub.ID, true)
	require.NoError(t, err)
	assert.Equal(t, subscription.StatusActive, sub.Status)
	require.NotNil(t, sub.CurrentPeriodEnd)
	assert.WithinDuration(t, time.Now().AddDate(0, 1, 0), *sub.CurrentPeriodEnd, 2*time.Minute)
	require.Len(t, sender.byTag(email.TagPlanActivated), 1)

	// Months later the tenant asks to cancel; access continues meanwhile.
	sub, err = svc.RequestCancellation(ctx, tenantID)
	require.NoError(t, err)
	assert.Equal(t, subscription.StatusActive, sub.Status)
	assert.True(t, sub.CancellationRequested)
	require.Len(t, sender.byTag(email.TagCancellationAsked), 1)
	require.Len(t, sender.byTag("operator-alert"), 1)

	// The operator approves the cancellation; the tenant lands on a fresh trial.
	sub, err = svc.ApproveCancellation(ctx, operator, sub.ID, true)
	require.NoError(t, err)
	assert.Equal(t, subscription.StatusTrial, sub.Status)
	assert.Equal(t, plan.TypeTrial, sub.PlanType)
	require.NotNil(t, sub.TrialEndsAt)
	assert.True(t, sub.TrialEndsAt.After(time.Now()))
	assert.Nil(t, sub.CurrentPeriodEnd)
	require.Len(t, sender.byTag(email.TagRevertedToTrial), 1)

	// The read path agrees with the final state.
	fresh, err := svc.GetSubscription(ctx, tenantID)
	require.NoError(t, err)
	assert.Equal(t, subscription.StatusTrial, fresh.Status)

	// And the freed tenant can buy again: a second checkout reopens pending.
	provider.event = &payment.Event{
		ID:              "evt_2",
		Kind:            payment.KindCheckoutCompleted,
		ProviderEvent:   "transaction.completed",
		SubscriptionRef: "sub_2",
		CustomerRef:     "ctm_1",
		PriceRef:        "pri_starter_monthly",
		Attribution:     payment.Attribution{TenantID: tenantID, PlanType: plan.TypeStarter},
	}
	require.NoError(t, svc.HandleWebhook(ctx, []byte("{}"), "sig"))

	again, err := svc.GetSubscription(ctx, tenantID)
	require.NoError(t, err)
	assert.Equal(t, subscription.StatusPending, again.Status)
	assert.Equal(t, plan.TypeStarter, again.PlanType)
	assert.Equal(t, "sub_2", again.ExternalSubscriptionRef)
	assert.False(t, again.CancellationRequested, "a new cycle starts with a clean cancellation slate")
}

// TestPaymentLifecycle covers the dunning loop on an active subscription:
// a failed renewal demotes to past_due, the recovered payment restores
// active with fresh period bounds.
func TestPaymentLifecycle(t *testing.T) {
	t.Parallel()

	tenantID := uuid.New()
	store := subscription.NewMemoryStore()
	sender := &recordSender{}
	provider := &fakeProvider{}
	svc := billing.NewService(billing.Config{}, store, plan.Default(), provider,
		billing.WithEmailSender(sender),
		billing.WithTenantDirectory(staticDirectory{contact: billing.TenantContact{
			Email:        "owner@example.com",
			BusinessName: "Sparkle Wash",
		}}))
	t.Cleanup(func() { _ = svc.Close() })

	ctx := context.Background()

	pending := seedPending(t, store, tenantID, plan.TypeProfessional)
	_, err := svc.ApproveSubscription(ctx, uuid.New(), pending.ID, true)
	require.NoError(t, err)

	provider.event = &payment.Event{
		ID:            "evt_fail",
		Kind:          payment.KindPaymentFailed,
		ProviderEvent: "subscription.payment_failed",
		Attribution:   payment.Attribution{TenantID: tenantID, PlanType: plan.TypeProfessional},
	}
	require.NoError(t, svc.HandleWebhook(ctx, []byte("{}"), "sig"))

	sub, err := store.Get(ctx, tenantID)
	require.NoError(t, err)
	assert.Equal(t, subscription.StatusPastDue, sub.Status)
	require.Len(t, sender.byTag(email.TagPaymentFailed), 1)

	// Redelivery of the same failure does not mail the tenant twice.
	require.NoError(t, svc.HandleWebhook(ctx, []byte("{}"), "sig"))
	require.Len(t, sender.byTag(email.TagPaymentFailed), 1)

	start := time.Now().UTC()
	end := start.AddDate(0, 1, 0)
	provider.event = &payment.Event{
		ID:            "evt_recover",
		Kind:          payment.KindPaymentSucceeded,
		ProviderEvent: "subscription.payment_succeeded",
		Attribution:   payment.Attribution{TenantID: tenantID, PlanType: plan.TypeProfessional},
		PeriodStart:   &start,
		PeriodEnd:     &end,
	}
	require.NoError(t, svc.HandleWebhook(ctx, []byte("{}"), "sig"))

	sub, err = store.Get(ctx, tenantID)
	require.NoError(t, err)
	assert.Equal(t, subscription.StatusActive, sub.Status)
	require.NotNil(t, sub.CurrentPeriodEnd)
	assert.True(t, sub.CurrentPeriodEnd.Equal(end))
	require.Len(t, sender.byTag(email.TagPlanActivated), 2, "approval and recovery each announce activation")
}
