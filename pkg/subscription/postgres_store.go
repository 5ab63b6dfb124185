package subscription

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/HassanRashid15/CarWashApp-sub001/pkg/pg"
	"github.com/HassanRashid15/CarWashApp-sub001/pkg/plan"
)

// PostgresStore persists subscriptions in a single table with a unique
// tenant_id. Every mutation is one conditional statement: the guard
// conditions live in the SQL itself, so two producers racing on the same
// tenant resolve inside the database rather than in application code.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const subscriptionColumns = `
	id, tenant_id, plan_type, status,
	external_subscription_ref, external_customer_ref, external_price_ref,
	current_period_start, current_period_end,
	trial_ends_at, canceled_at,
	cancellation_requested, cancellation_requested_at,
	cancellation_approved, cancellation_approved_at, cancellation_approved_by,
	last_reminder_sent_at, created_at, updated_at`

func (s *PostgresStore) Get(ctx context.Context, tenantID uuid.UUID) (*Subscription, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT`+subscriptionColumns+` FROM subscriptions WHERE tenant_id = $1`, tenantID)
	return scanSubscription(row)
}

func (s *PostgresStore) GetByID(ctx context.Context, id uuid.UUID) (*Subscription, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT`+subscriptionColumns+` FROM subscriptions WHERE id = $1`, id)
	return scanSubscription(row)
}

// upsertSQL inserts a fully-materialized row or merges the patch into the
// existing one. The DO UPDATE WHERE clause carries the guards: when it
// evaluates false the statement returns no row and the upsert was skipped.
const upsertSQL = `
INSERT INTO subscriptions (` + subscriptionColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
ON CONFLICT (tenant_id) DO UPDATE SET
	plan_type                 = COALESCE($20::text, subscriptions.plan_type),
	status                    = COALESCE($21::text, subscriptions.status),
	external_subscription_ref = COALESCE($22::text, subscriptions.external_subscription_ref),
	external_customer_ref     = COALESCE($23::text, subscriptions.external_customer_ref),
	external_price_ref        = COALESCE($24::text, subscriptions.external_price_ref),
	current_period_start      = CASE WHEN $25::bool THEN NULL ELSE COALESCE($26::timestamptz, subscriptions.current_period_start) END,
	current_period_end        = CASE WHEN $25::bool THEN NULL ELSE COALESCE($27::timestamptz, subscriptions.current_period_end) END,
	trial_ends_at             = CASE WHEN $28::bool THEN NULL ELSE COALESCE($29::timestamptz, subscriptions.trial_ends_at) END,
	canceled_at               = COALESCE($30::timestamptz, subscriptions.canceled_at),
	cancellation_requested    = COALESCE($31::bool, subscriptions.cancellation_requested),
	cancellation_requested_at = COALESCE($32::timestamptz, subscriptions.cancellation_requested_at),
	cancellation_approved     = COALESCE($33::bool, subscriptions.cancellation_approved),
	cancellation_approved_at  = COALESCE($34::timestamptz, subscriptions.cancellation_approved_at),
	cancellation_approved_by  = COALESCE($35::uuid, subscriptions.cancellation_approved_by),
	updated_at                = now()
WHERE NOT (subscriptions.status = ANY($36::text[]))
  AND NOT ($37::bool AND subscriptions.external_subscription_ref = $38::text)
RETURNING` + subscriptionColumns

func (s *PostgresStore) Upsert(ctx context.Context, tenantID uuid.UUID, patch Patch, opts ...UpsertOption) (*Subscription, bool, error) {
	var guards upsertGuards
	for _, opt := range opts {
		opt(&guards)
	}

	now := time.Now().UTC()

	// Materialize the would-be insert row in Go so insert defaults stay in
	// one place, shared with the memory store.
	ins := &Subscription{
		ID:        uuid.New(),
		TenantID:  tenantID,
		PlanType:  plan.TypeTrial,
		Status:    StatusTrial,
		CreatedAt: now,
	}
	patch.apply(ins, now)

	skip := make([]string, len(guards.skipStatuses))
	for i, st := range guards.skipStatuses {
		skip[i] = string(st)
	}

	row := s.pool.QueryRow(ctx, upsertSQL,
		ins.ID, ins.TenantID, string(ins.PlanType), string(ins.Status),
		ins.ExternalSubscriptionRef, ins.ExternalCustomerRef, ins.ExternalPriceRef,
		ins.CurrentPeriodStart, ins.CurrentPeriodEnd,
		ins.TrialEndsAt, ins.CanceledAt,
		ins.CancellationRequested, ins.CancellationRequestedAt,
		ins.CancellationApproved, ins.CancellationApprovedAt, ins.CancellationApprovedBy,
		ins.LastReminderSentAt, ins.CreatedAt, ins.UpdatedAt,
		planTypeText(patch.PlanType), statusText(patch.Status),
		patch.ExternalSubscriptionRef, patch.ExternalCustomerRef, patch.ExternalPriceRef,
		patch.ClearPeriod, patch.CurrentPeriodStart, patch.CurrentPeriodEnd,
		patch.ClearTrialEndsAt, patch.TrialEndsAt,
		patch.CanceledAt,
		patch.CancellationRequested, patch.CancellationRequestedAt,
		patch.CancellationApproved, patch.CancellationApprovedAt, patch.CancellationApprovedBy,
		skip, guards.hasSameRef, guards.skipSameRef,
	)

	sub, err := scanSubscription(row)
	if err == nil {
		return sub, true, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, false, err
	}

	// A guard blocked the update; report the untouched current row.
	current, err := s.Get(ctx, tenantID)
	if err != nil {
		return nil, false, err
	}
	return current, false, nil
}

const transitionSQL = `
UPDATE subscriptions SET
	plan_type                 = COALESCE($2::text, plan_type),
	status                    = COALESCE($3::text, status),
	external_subscription_ref = COALESCE($4::text, external_subscription_ref),
	external_customer_ref     = COALESCE($5::text, external_customer_ref),
	external_price_ref        = COALESCE($6::text, external_price_ref),
	current_period_start      = CASE WHEN $7::bool THEN NULL ELSE COALESCE($8::timestamptz, current_period_start) END,
	current_period_end        = CASE WHEN $7::bool THEN NULL ELSE COALESCE($9::timestamptz, current_period_end) END,
	trial_ends_at             = CASE WHEN $10::bool THEN NULL ELSE COALESCE($11::timestamptz, trial_ends_at) END,
	canceled_at               = COALESCE($12::timestamptz, canceled_at),
	cancellation_requested    = COALESCE($13::bool, cancellation_requested),
	cancellation_requested_at = COALESCE($14::timestamptz, cancellation_requested_at),
	cancellation_approved     = COALESCE($15::bool, cancellation_approved),
	cancellation_approved_at  = COALESCE($16::timestamptz, cancellation_approved_at),
	cancellation_approved_by  = COALESCE($17::uuid, cancellation_approved_by),
	updated_at                = now()
WHERE id = $1
  AND ($18::text IS NULL OR status = $18)
  AND ($19::bool IS NULL OR cancellation_requested = $19)
  AND ($20::bool IS NULL OR cancellation_approved = $20)
RETURNING` + subscriptionColumns

func (s *PostgresStore) Transition(ctx context.Context, id uuid.UUID, pre Precondition, patch Patch) (*Subscription, error) {
	row := s.pool.QueryRow(ctx, transitionSQL,
		id,
		planTypeText(patch.PlanType), statusText(patch.Status),
		patch.ExternalSubscriptionRef, patch.ExternalCustomerRef, patch.ExternalPriceRef,
		patch.ClearPeriod, patch.CurrentPeriodStart, patch.CurrentPeriodEnd,
		patch.ClearTrialEndsAt, patch.TrialEndsAt,
		patch.CanceledAt,
		patch.CancellationRequested, patch.CancellationRequestedAt,
		patch.CancellationApproved, patch.CancellationApprovedAt, patch.CancellationApprovedBy,
		statusText(pre.Status), pre.CancellationRequested, pre.CancellationApproved,
	)

	sub, err := scanSubscription(row)
	if err == nil {
		return sub, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	// Distinguish "no such row" from "row fails the precondition".
	if _, getErr := s.GetByID(ctx, id); getErr != nil {
		return nil, getErr
	}
	return nil, ErrInvalidState
}

func (s *PostgresStore) MarkReminderSent(ctx context.Context, id uuid.UUID, at time.Time, minGap time.Duration) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE subscriptions
		SET last_reminder_sent_at = $2, updated_at = now()
		WHERE id = $1
		  AND (last_reminder_sent_at IS NULL OR last_reminder_sent_at <= $3)`,
		id, at, at.Add(-minGap))
	if err != nil {
		return false, errors.Join(ErrStoreUnavailable, err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PostgresStore) ListExpiringTrials(ctx context.Context, before time.Time) ([]*Subscription, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT`+subscriptionColumns+`
		FROM subscriptions
		WHERE status = 'trial'
		  AND trial_ends_at > now()
		  AND trial_ends_at < $1
		ORDER BY trial_ends_at`, before)
	if err != nil {
		return nil, errors.Join(ErrStoreUnavailable, err)
	}
	defer rows.Close()

	var out []*Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Join(ErrStoreUnavailable, err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSubscription(row rowScanner) (*Subscription, error) {
	var (
		sub      Subscription
		planType string
		status   string
	)
	err := row.Scan(
		&sub.ID, &sub.TenantID, &planType, &status,
		&sub.ExternalSubscriptionRef, &sub.ExternalCustomerRef, &sub.ExternalPriceRef,
		&sub.CurrentPeriodStart, &sub.CurrentPeriodEnd,
		&sub.TrialEndsAt, &sub.CanceledAt,
		&sub.CancellationRequested, &sub.CancellationRequestedAt,
		&sub.CancellationApproved, &sub.CancellationApprovedAt, &sub.CancellationApprovedBy,
		&sub.LastReminderSentAt, &sub.CreatedAt, &sub.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || pg.IsNotFoundError(err) {
			return nil, ErrNotFound
		}
		return nil, errors.Join(ErrStoreUnavailable, err)
	}
	sub.PlanType = plan.Type(planType)
	sub.Status = Status(status)
	return &sub, nil
}

func planTypeText(t *plan.Type) *string {
	if t == nil {
		return nil
	}
	s := string(*t)
	return &s
}

func statusText(st *Status) *string {
	if st == nil {
		return nil
	}
	s := string(*st)
	return &s
}
