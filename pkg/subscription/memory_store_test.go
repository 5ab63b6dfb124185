package subscription_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HassanRashid15/CarWashApp-sub001/pkg/plan"
	"github.com/HassanRashid15/CarWashApp-sub001/pkg/subscription"
)

func ptr[T any](v T) *T { return &v }

func TestMemoryStore_Upsert(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("insert with defaults plus patch", func(t *testing.T) {
		t.Parallel()

		store := subscription.NewMemoryStore()
		tenantID := uuid.New()

		sub, applied, err := store.Upsert(ctx, tenantID, subscription.Patch{
			Status:                  ptr(subscription.StatusPending),
			PlanType:                ptr(plan.TypeProfessional),
			ExternalSubscriptionRef: ptr("sub_123"),
		})
		require.NoError(t, err)
		assert.True(t, applied)
		assert.Equal(t, tenantID, sub.TenantID)
		assert.Equal(t, subscription.StatusPending, sub.Status)
		assert.Equal(t, plan.TypeProfessional, sub.PlanType)
		assert.Equal(t, "sub_123", sub.ExternalSubscriptionRef)
		assert.Nil(t, sub.CurrentPeriodStart)
		assert.Nil(t, sub.CurrentPeriodEnd)
		assert.NotEqual(t, uuid.Nil, sub.ID)
	})

	t.Run("never duplicates a tenant row", func(t *testing.T) {
		t.Parallel()

		store := subscription.NewMemoryStore()
		tenantID := uuid.New()

		first, _, err := store.Upsert(ctx, tenantID, subscription.Patch{Status: ptr(subscription.StatusPending)})
		require.NoError(t, err)
		second, _, err := store.Upsert(ctx, tenantID, subscription.Patch{Status: ptr(subscription.StatusPending)})
		require.NoError(t, err)
		assert.Equal(t, first.ID, second.ID)
	})

	t.Run("merge applies only present fields", func(t *testing.T) {
		t.Parallel()

		store := subscription.NewMemoryStore()
		tenantID := uuid.New()

		_, _, err := store.Upsert(ctx, tenantID, subscription.Patch{
			Status:                  ptr(subscription.StatusPending),
			PlanType:                ptr(plan.TypeStarter),
			ExternalSubscriptionRef: ptr("sub_a"),
		})
		require.NoError(t, err)

		sub, applied, err := store.Upsert(ctx, tenantID, subscription.Patch{
			Status: ptr(subscription.StatusActive),
		})
		require.NoError(t, err)
		assert.True(t, applied)
		assert.Equal(t, subscription.StatusActive, sub.Status)
		assert.Equal(t, plan.TypeStarter, sub.PlanType)
		assert.Equal(t, "sub_a", sub.ExternalSubscriptionRef)
	})

	t.Run("skip if status guard", func(t *testing.T) {
		t.Parallel()

		store := subscription.NewMemoryStore()
		tenantID := uuid.New()

		_, _, err := store.Upsert(ctx, tenantID, subscription.Patch{Status: ptr(subscription.StatusPending)})
		require.NoError(t, err)

		sub, applied, err := store.Upsert(ctx, tenantID,
			subscription.Patch{Status: ptr(subscription.StatusActive)},
			subscription.SkipIfStatus(subscription.StatusPending),
		)
		require.NoError(t, err)
		assert.False(t, applied)
		assert.Equal(t, subscription.StatusPending, sub.Status)
	})

	t.Run("guard does not block insert", func(t *testing.T) {
		t.Parallel()

		store := subscription.NewMemoryStore()
		tenantID := uuid.New()

		sub, applied, err := store.Upsert(ctx, tenantID,
			subscription.Patch{Status: ptr(subscription.StatusPending)},
			subscription.SkipIfStatus(subscription.StatusPending),
		)
		require.NoError(t, err)
		assert.True(t, applied)
		assert.Equal(t, subscription.StatusPending, sub.Status)
	})

	t.Run("skip if same external ref", func(t *testing.T) {
		t.Parallel()

		store := subscription.NewMemoryStore()
		tenantID := uuid.New()

		_, _, err := store.Upsert(ctx, tenantID, subscription.Patch{
			Status:                  ptr(subscription.StatusActive),
			ExternalSubscriptionRef: ptr("sub_same"),
		})
		require.NoError(t, err)

		sub, applied, err := store.Upsert(ctx, tenantID,
			subscription.Patch{Status: ptr(subscription.StatusPending)},
			subscription.SkipIfSameRef("sub_same"),
		)
		require.NoError(t, err)
		assert.False(t, applied)
		assert.Equal(t, subscription.StatusActive, sub.Status)

		// A different ref is a new billing cycle and goes through.
		sub, applied, err = store.Upsert(ctx, tenantID,
			subscription.Patch{
				Status:                  ptr(subscription.StatusPending),
				ExternalSubscriptionRef: ptr("sub_next"),
			},
			subscription.SkipIfSameRef("sub_next"),
		)
		require.NoError(t, err)
		assert.True(t, applied)
		assert.Equal(t, subscription.StatusPending, sub.Status)
		assert.Equal(t, "sub_next", sub.ExternalSubscriptionRef)
	})

	t.Run("clear flags null out fields", func(t *testing.T) {
		t.Parallel()

		store := subscription.NewMemoryStore()
		tenantID := uuid.New()
		now := time.Now().UTC()

		_, _, err := store.Upsert(ctx, tenantID, subscription.Patch{
			Status:             ptr(subscription.StatusActive),
			CurrentPeriodStart: ptr(now),
			CurrentPeriodEnd:   ptr(now.AddDate(0, 1, 0)),
			TrialEndsAt:        ptr(now.AddDate(0, 0, 14)),
		})
		require.NoError(t, err)

		sub, _, err := store.Upsert(ctx, tenantID, subscription.Patch{
			ClearPeriod:      true,
			ClearTrialEndsAt: true,
		})
		require.NoError(t, err)
		assert.Nil(t, sub.CurrentPeriodStart)
		assert.Nil(t, sub.CurrentPeriodEnd)
		assert.Nil(t, sub.TrialEndsAt)
	})
}

func TestMemoryStore_Transition(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	seed := func(t *testing.T, store *subscription.MemoryStore, patch subscription.Patch) *subscription.Subscription {
		t.Helper()
		sub, _, err := store.Upsert(ctx, uuid.New(), patch)
		require.NoError(t, err)
		return sub
	}

	t.Run("applies when precondition holds", func(t *testing.T) {
		t.Parallel()

		store := subscription.NewMemoryStore()
		sub := seed(t, store, subscription.Patch{Status: ptr(subscription.StatusPending)})

		got, err := store.Transition(ctx, sub.ID,
			subscription.Precondition{Status: ptr(subscription.StatusPending)},
			subscription.Patch{Status: ptr(subscription.StatusActive)},
		)
		require.NoError(t, err)
		assert.Equal(t, subscription.StatusActive, got.Status)
	})

	t.Run("invalid state when precondition fails", func(t *testing.T) {
		t.Parallel()

		store := subscription.NewMemoryStore()
		sub := seed(t, store, subscription.Patch{Status: ptr(subscription.StatusActive)})

		_, err := store.Transition(ctx, sub.ID,
			subscription.Precondition{Status: ptr(subscription.StatusPending)},
			subscription.Patch{Status: ptr(subscription.StatusCanceled)},
		)
		assert.ErrorIs(t, err, subscription.ErrInvalidState)

		// Row untouched.
		got, err := store.GetByID(ctx, sub.ID)
		require.NoError(t, err)
		assert.Equal(t, subscription.StatusActive, got.Status)
	})

	t.Run("flag preconditions", func(t *testing.T) {
		t.Parallel()

		store := subscription.NewMemoryStore()
		sub := seed(t, store, subscription.Patch{
			Status:                ptr(subscription.StatusActive),
			CancellationRequested: ptr(true),
		})

		_, err := store.Transition(ctx, sub.ID,
			subscription.Precondition{
				CancellationRequested: ptr(true),
				CancellationApproved:  ptr(false),
			},
			subscription.Patch{CancellationApproved: ptr(true)},
		)
		require.NoError(t, err)

		// Second approval attempt fails the approved=false precondition.
		_, err = store.Transition(ctx, sub.ID,
			subscription.Precondition{
				CancellationRequested: ptr(true),
				CancellationApproved:  ptr(false),
			},
			subscription.Patch{CancellationApproved: ptr(true)},
		)
		assert.ErrorIs(t, err, subscription.ErrInvalidState)
	})

	t.Run("not found", func(t *testing.T) {
		t.Parallel()

		store := subscription.NewMemoryStore()
		_, err := store.Transition(ctx, uuid.New(), subscription.Precondition{}, subscription.Patch{})
		assert.ErrorIs(t, err, subscription.ErrNotFound)
	})
}

func TestMemoryStore_MarkReminderSent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	store := subscription.NewMemoryStore()
	sub, _, err := store.Upsert(ctx, uuid.New(), subscription.Patch{Status: ptr(subscription.StatusTrial)})
	require.NoError(t, err)

	now := time.Now().UTC()

	ok, err := store.MarkReminderSent(ctx, sub.ID, now, 24*time.Hour)
	require.NoError(t, err)
	assert.True(t, ok)

	// Within the gap the mark is refused.
	ok, err = store.MarkReminderSent(ctx, sub.ID, now.Add(time.Hour), 24*time.Hour)
	require.NoError(t, err)
	assert.False(t, ok)

	// After the gap it is taken again.
	ok, err = store.MarkReminderSent(ctx, sub.ID, now.Add(25*time.Hour), 24*time.Hour)
	require.NoError(t, err)
	assert.True(t, ok)

	// An unknown id is not taken but not an error, matching the Postgres
	// store's zero-rows-affected outcome.
	ok, err = store.MarkReminderSent(ctx, uuid.New(), now, 24*time.Hour)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryStore_ListExpiringTrials(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	store := subscription.NewMemoryStore()
	soon := time.Now().UTC().Add(48 * time.Hour)
	far := time.Now().UTC().Add(30 * 24 * time.Hour)
	past := time.Now().UTC().Add(-time.Hour)

	_, _, err := store.Upsert(ctx, uuid.New(), subscription.Patch{
		Status:      ptr(subscription.StatusTrial),
		TrialEndsAt: &soon,
	})
	require.NoError(t, err)
	_, _, err = store.Upsert(ctx, uuid.New(), subscription.Patch{
		Status:      ptr(subscription.StatusTrial),
		TrialEndsAt: &far,
	})
	require.NoError(t, err)
	_, _, err = store.Upsert(ctx, uuid.New(), subscription.Patch{
		Status:      ptr(subscription.StatusTrial),
		TrialEndsAt: &past,
	})
	require.NoError(t, err)
	_, _, err = store.Upsert(ctx, uuid.New(), subscription.Patch{
		Status:      ptr(subscription.StatusActive),
		TrialEndsAt: &soon,
	})
	require.NoError(t, err)

	got, err := store.ListExpiringTrials(ctx, time.Now().UTC().Add(72*time.Hour))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, subscription.StatusTrial, got[0].Status)
	assert.WithinDuration(t, soon, *got[0].TrialEndsAt, time.Second)
}
