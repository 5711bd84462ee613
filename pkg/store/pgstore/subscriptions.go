package pgstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/salonkit/billingcore/pkg/apperr"
	"github.com/salonkit/billingcore/pkg/pg"
	"github.com/salonkit/billingcore/pkg/subscription"
)

const subscriptionColumns = `id, tenant_id, plan_id, status, billing_interval, trial_ends_at,
	current_period_start, current_period_end, past_due_since, price, cancel_at_period_end,
	cancelled_at, suspended_at, version, created_at, updated_at`

const liveConstraint = "subscriptions_one_live_per_tenant"

func scanSubscription(row pgx.Row) (*subscription.Subscription, error) {
	var (
		sub   subscription.Subscription
		price pgtype.Numeric
	)
	err := row.Scan(
		&sub.ID, &sub.TenantID, &sub.PlanID, &sub.Status, &sub.Interval, &sub.TrialEndsAt,
		&sub.CurrentPeriodStart, &sub.CurrentPeriodEnd, &sub.PastDueSince, &price, &sub.CancelAtPeriodEnd,
		&sub.CancelledAt, &sub.SuspendedAt, &sub.Version, &sub.CreatedAt, &sub.UpdatedAt,
	)
	if pg.IsNotFoundError(err) {
		return nil, apperr.NotFound("tenant has no subscription")
	}
	if err != nil {
		return nil, err
	}
	sub.Price = fromNumeric(price)
	sub.TrialEndsAt = sub.TrialEndsAt.UTC()
	sub.CreatedAt = sub.CreatedAt.UTC()
	sub.UpdatedAt = sub.UpdatedAt.UTC()
	sub.CurrentPeriodStart = utc(sub.CurrentPeriodStart)
	sub.CurrentPeriodEnd = utc(sub.CurrentPeriodEnd)
	sub.PastDueSince = utc(sub.PastDueSince)
	sub.CancelledAt = utc(sub.CancelledAt)
	sub.SuspendedAt = utc(sub.SuspendedAt)
	return &sub, nil
}

func (s *Store) Current(ctx context.Context, tenantID uuid.UUID) (*subscription.Subscription, error) {
	return scanSubscription(s.pool.QueryRow(ctx,
		`SELECT `+subscriptionColumns+` FROM subscriptions
		WHERE tenant_id = $1 ORDER BY created_at DESC, id DESC LIMIT 1`, tenantID))
}

func (s *Store) Create(ctx context.Context, sub *subscription.Subscription) error {
	if sub.Version == 0 {
		sub.Version = 1
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO subscriptions (`+subscriptionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		sub.ID, sub.TenantID, sub.PlanID, sub.Status, sub.Interval, sub.TrialEndsAt,
		sub.CurrentPeriodStart, sub.CurrentPeriodEnd, sub.PastDueSince, numeric(sub.Price), sub.CancelAtPeriodEnd,
		sub.CancelledAt, sub.SuspendedAt, sub.Version, sub.CreatedAt, sub.UpdatedAt,
	)
	if pg.IsDuplicateKeyError(err) && pg.ConstraintName(err) == liveConstraint {
		return subscription.ErrLiveSubscriptionExists
	}
	return tenantMissing(err)
}

// Transact runs fn in a read-committed transaction. The row lock taken by
// LockCurrent serializes writers of one tenant; serialization failures and
// deadlocks surface as subscription.ErrConflict so the machine retries them.
func (s *Store) Transact(ctx context.Context, tenantID uuid.UUID, fn func(ctx context.Context, tx subscription.Tx) error) error {
	err := pg.WithTx(ctx, s.pool, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(tx pgx.Tx) error {
		return fn(ctx, &subTx{q: tx, tenantID: tenantID})
	})
	if pg.IsRetryable(err) {
		return fmt.Errorf("%w: %w", subscription.ErrConflict, err)
	}
	return err
}

func (s *Store) DueForSweep(ctx context.Context, now time.Time, grace time.Duration) ([]uuid.UUID, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT tenant_id FROM subscriptions
		WHERE status NOT IN ('cancelled', 'expired') AND (
			(status = 'trial' AND trial_ends_at < $1)
			OR (status = 'past_due' AND past_due_since + ($2::bigint * interval '1 microsecond') < $1)
			OR (cancel_at_period_end AND
				CASE WHEN status = 'trial' OR current_period_end IS NULL
					THEN trial_ends_at ELSE current_period_end END <= $1)
		)
		ORDER BY tenant_id`,
		now, grace.Microseconds())
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
}

type subTx struct {
	q        querier
	tenantID uuid.UUID
}

func (tx *subTx) LockCurrent(ctx context.Context) (*subscription.Subscription, error) {
	return scanSubscription(tx.q.QueryRow(ctx,
		`SELECT `+subscriptionColumns+` FROM subscriptions
		WHERE tenant_id = $1 ORDER BY created_at DESC, id DESC LIMIT 1
		FOR UPDATE`, tx.tenantID))
}

func (tx *subTx) Update(ctx context.Context, sub *subscription.Subscription) error {
	tag, err := tx.q.Exec(ctx, `
		UPDATE subscriptions SET
			plan_id = $4, status = $5, billing_interval = $6, trial_ends_at = $7,
			current_period_start = $8, current_period_end = $9, past_due_since = $10,
			price = $11, cancel_at_period_end = $12, cancelled_at = $13, suspended_at = $14,
			updated_at = $15, version = version + 1
		WHERE id = $1 AND tenant_id = $2 AND version = $3`,
		sub.ID, tx.tenantID, sub.Version,
		sub.PlanID, sub.Status, sub.Interval, sub.TrialEndsAt,
		sub.CurrentPeriodStart, sub.CurrentPeriodEnd, sub.PastDueSince,
		numeric(sub.Price), sub.CancelAtPeriodEnd, sub.CancelledAt, sub.SuspendedAt,
		sub.UpdatedAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return subscription.ErrConflict
	}
	sub.Version++
	return nil
}

func (tx *subTx) EventProcessed(ctx context.Context, eventID string) (bool, error) {
	var done bool
	err := tx.q.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM subscription_events WHERE tenant_id = $1 AND event_id = $2)`,
		tx.tenantID, eventID).Scan(&done)
	return done, err
}

func (tx *subTx) RecordEvent(ctx context.Context, rec subscription.EventRecord) error {
	_, err := tx.q.Exec(ctx, `
		INSERT INTO subscription_events
			(tenant_id, event_id, subscription_id, type, from_status, to_status, reason, applied_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		tx.tenantID, rec.EventID, rec.SubscriptionID, rec.Type, rec.From, rec.To, rec.Reason, rec.AppliedAt)
	if pg.IsDuplicateKeyError(err) {
		return fmt.Errorf("pgstore: event %q already recorded: %w", rec.EventID, err)
	}
	return err
}

const invoiceColumns = `id, tenant_id, subscription_id, event_id, amount, due_date, paid_at,
	status, attempts, created_at, updated_at`

func scanInvoice(row pgx.Row) (*subscription.Invoice, error) {
	var (
		inv    subscription.Invoice
		amount pgtype.Numeric
	)
	err := row.Scan(&inv.ID, &inv.TenantID, &inv.SubscriptionID, &inv.EventID, &amount, &inv.DueDate,
		&inv.PaidAt, &inv.Status, &inv.Attempts, &inv.CreatedAt, &inv.UpdatedAt)
	if err != nil {
		return nil, err
	}
	inv.Amount = fromNumeric(amount)
	inv.DueDate = inv.DueDate.UTC()
	inv.PaidAt = utc(inv.PaidAt)
	inv.CreatedAt = inv.CreatedAt.UTC()
	inv.UpdatedAt = inv.UpdatedAt.UTC()
	return &inv, nil
}

func (tx *subTx) OpenInvoice(ctx context.Context, subscriptionID uuid.UUID) (*subscription.Invoice, error) {
	inv, err := scanInvoice(tx.q.QueryRow(ctx,
		`SELECT `+invoiceColumns+` FROM invoices
		WHERE tenant_id = $1 AND subscription_id = $2 AND status IN ('pending', 'overdue')
		ORDER BY created_at DESC, id DESC LIMIT 1`,
		tx.tenantID, subscriptionID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return inv, err
}

// SaveInvoice upserts inv. A paid invoice never leaves the paid status.
func (tx *subTx) SaveInvoice(ctx context.Context, inv *subscription.Invoice) error {
	if inv.TenantID != tx.tenantID {
		return apperr.NotFound("invoice not found")
	}
	tag, err := tx.q.Exec(ctx, `
		INSERT INTO invoices (`+invoiceColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			amount = EXCLUDED.amount, due_date = EXCLUDED.due_date, paid_at = EXCLUDED.paid_at,
			status = EXCLUDED.status, attempts = EXCLUDED.attempts, updated_at = EXCLUDED.updated_at
		WHERE invoices.tenant_id = EXCLUDED.tenant_id
			AND (invoices.status <> 'paid' OR EXCLUDED.status = 'paid')`,
		inv.ID, inv.TenantID, inv.SubscriptionID, inv.EventID, numeric(inv.Amount), inv.DueDate, inv.PaidAt,
		inv.Status, inv.Attempts, inv.CreatedAt, inv.UpdatedAt)
	if err != nil {
		return tenantMissing(err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.Validation("paid invoice %s cannot change status", inv.ID)
	}
	return nil
}

// Invoices lists a tenant's invoices, oldest first.
func (s *Store) Invoices(ctx context.Context, tenantID uuid.UUID) ([]subscription.Invoice, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+invoiceColumns+` FROM invoices WHERE tenant_id = $1 ORDER BY created_at, id`, tenantID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (subscription.Invoice, error) {
		inv, err := scanInvoice(row)
		if err != nil {
			return subscription.Invoice{}, err
		}
		return *inv, nil
	})
}

// Events lists a tenant's applied event records.
func (s *Store) Events(ctx context.Context, tenantID uuid.UUID) ([]subscription.EventRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT tenant_id, subscription_id, event_id, type, from_status, to_status, reason, applied_at
		FROM subscription_events WHERE tenant_id = $1 ORDER BY applied_at, event_id`, tenantID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (subscription.EventRecord, error) {
		var rec subscription.EventRecord
		err := row.Scan(&rec.TenantID, &rec.SubscriptionID, &rec.EventID, &rec.Type,
			&rec.From, &rec.To, &rec.Reason, &rec.AppliedAt)
		rec.AppliedAt = rec.AppliedAt.UTC()
		return rec, err
	})
}
