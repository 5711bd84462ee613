package pgstore

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/salonkit/billingcore/pkg/ledger"
	"github.com/salonkit/billingcore/pkg/pg"
	"github.com/salonkit/billingcore/pkg/platform"
	"github.com/salonkit/billingcore/pkg/subscription"
)

// These queries are the only ones not scoped to a tenant. platform.Reporter
// gates them behind the operator role.

func (s *Store) ActiveSubscriptions(ctx context.Context) ([]subscription.Subscription, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+subscriptionColumns+` FROM subscriptions WHERE status = 'active'`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (subscription.Subscription, error) {
		sub, err := scanSubscription(row)
		if err != nil {
			return subscription.Subscription{}, err
		}
		return *sub, nil
	})
}

func (s *Store) CountByStatus(ctx context.Context) (map[subscription.Status]int64, error) {
	rows, err := s.pool.Query(ctx, `SELECT status, COUNT(*) FROM subscriptions GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[subscription.Status]int64)
	for rows.Next() {
		var (
			status subscription.Status
			n      int64
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		out[status] = n
	}
	return out, rows.Err()
}

func (s *Store) PaidInvoiceRevenue(ctx context.Context, w ledger.Window) (decimal.Decimal, error) {
	var sum pgtype.Numeric
	err := s.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(amount), 0) FROM invoices
		WHERE status = 'paid' AND paid_at IS NOT NULL
			AND ($1::date IS NULL OR (paid_at AT TIME ZONE 'UTC')::date >= $1::date)
			AND ($2::date IS NULL OR (paid_at AT TIME ZONE 'UTC')::date <= $2::date)`,
		dateArg(w.From), dateArg(w.To)).Scan(&sum)
	return fromNumeric(sum), err
}

func (s *Store) SnapshotAtOrBefore(ctx context.Context, day time.Time) (*platform.MRRSnapshot, error) {
	var (
		snap platform.MRRSnapshot
		mrr  pgtype.Numeric
	)
	err := s.pool.QueryRow(ctx, `
		SELECT day, mrr, active_subscriptions FROM mrr_snapshots
		WHERE day <= $1 ORDER BY day DESC LIMIT 1`,
		ledger.Day(day)).Scan(&snap.Day, &mrr, &snap.ActiveSubscriptions)
	if pg.IsNotFoundError(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	snap.Day = ledger.Day(snap.Day)
	snap.MRR = fromNumeric(mrr)
	return &snap, nil
}

func (s *Store) SaveSnapshot(ctx context.Context, snap platform.MRRSnapshot) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO mrr_snapshots (day, mrr, active_subscriptions) VALUES ($1, $2, $3)
		ON CONFLICT (day) DO UPDATE SET mrr = EXCLUDED.mrr, active_subscriptions = EXCLUDED.active_subscriptions`,
		ledger.Day(snap.Day), numeric(snap.MRR), snap.ActiveSubscriptions)
	return err
}
