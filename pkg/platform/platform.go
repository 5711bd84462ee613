// Package platform computes cross-tenant revenue rollups for platform
// operators. These are the only reads in the system that are not scoped to a
// single tenant, so every report requires a principal with the operator role.
package platform

import (
	"context"
	"log/slog"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/salonkit/billingcore/pkg/apperr"
	"github.com/salonkit/billingcore/pkg/ledger"
	"github.com/salonkit/billingcore/pkg/logger"
	"github.com/salonkit/billingcore/pkg/plan"
	"github.com/salonkit/billingcore/pkg/subscription"
	"github.com/salonkit/billingcore/pkg/tenant"
)

// Store holds the platform-wide queries.
type Store interface {
	// ActiveSubscriptions returns every subscription stored as active.
	ActiveSubscriptions(ctx context.Context) ([]subscription.Subscription, error)
	CountByStatus(ctx context.Context) (map[subscription.Status]int64, error)
	// PaidInvoiceRevenue sums invoices paid within w, by payment date.
	PaidInvoiceRevenue(ctx context.Context, w ledger.Window) (decimal.Decimal, error)
	// SnapshotAtOrBefore returns the newest MRR snapshot taken on or before
	// day, or nil.
	SnapshotAtOrBefore(ctx context.Context, day time.Time) (*MRRSnapshot, error)
	// SaveSnapshot writes the snapshot of s.Day, replacing an existing one.
	SaveSnapshot(ctx context.Context, s MRRSnapshot) error
}

// MRRSnapshot records the platform MRR of one calendar day.
type MRRSnapshot struct {
	Day                 time.Time       `json:"day"`
	MRR                 decimal.Decimal `json:"mrr"`
	ActiveSubscriptions int64           `json:"active_subscriptions"`
}

// MRRReport compares current MRR with the value one month earlier.
type MRRReport struct {
	Current             decimal.Decimal `json:"current"`
	Previous            decimal.Decimal `json:"previous"`
	GrowthPercent       decimal.Decimal `json:"growth_percent"`
	ActiveSubscriptions int64           `json:"active_subscriptions"`
}

// RevenueSummary is the operator dashboard rollup.
type RevenueSummary struct {
	ThisMonth     decimal.Decimal               `json:"this_month"`
	PreviousMonth decimal.Decimal               `json:"previous_month"`
	AllTime       decimal.Decimal               `json:"all_time"`
	MRR           decimal.Decimal               `json:"mrr"`
	ARR           decimal.Decimal               `json:"arr"`
	Subscriptions map[subscription.Status]int64 `json:"subscriptions"`
	GeneratedAt   time.Time                     `json:"generated_at"`
}

// Reporter computes platform reports.
type Reporter struct {
	store Store
	now   func() time.Time
	log   *slog.Logger
}

// Option configures a Reporter.
type Option func(*Reporter)

func WithClock(now func() time.Time) Option {
	return func(r *Reporter) {
		if now != nil {
			r.now = now
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(r *Reporter) {
		if l != nil {
			r.log = l
		}
	}
}

// NewReporter creates a Reporter over store.
func NewReporter(store Store, opts ...Option) *Reporter {
	r := &Reporter{store: store, now: time.Now, log: slog.Default()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

var hundred = decimal.NewFromInt(100)

// MRR sums the normalized monthly price snapshot of active subscriptions and
// compares it with the snapshot taken one month earlier. Growth is 0 when
// there is no earlier value.
func (r *Reporter) MRR(ctx context.Context, operator tenant.Principal) (*MRRReport, error) {
	if err := tenant.RequireOperator(operator); err != nil {
		return nil, err
	}
	current, active, err := r.currentMRR(ctx)
	if err != nil {
		return nil, err
	}

	previous := decimal.Zero
	snap, err := r.store.SnapshotAtOrBefore(ctx, ledger.Day(r.now()).AddDate(0, -1, 0))
	if err != nil {
		return nil, r.fail(ctx, err, "load mrr snapshot")
	}
	if snap != nil {
		previous = snap.MRR
	}

	return &MRRReport{
		Current:             current,
		Previous:            previous,
		GrowthPercent:       growth(current, previous),
		ActiveSubscriptions: active,
	}, nil
}

// RevenueSummary reports paid invoice revenue for this month, the previous
// month and all time, subscription counts per status, MRR and ARR.
func (r *Reporter) RevenueSummary(ctx context.Context, operator tenant.Principal) (*RevenueSummary, error) {
	if err := tenant.RequireOperator(operator); err != nil {
		return nil, err
	}

	now := r.now().UTC()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	prevStart := monthStart.AddDate(0, -1, 0)

	thisMonth, err := r.store.PaidInvoiceRevenue(ctx, ledger.Window{From: monthStart, To: now})
	if err != nil {
		return nil, r.fail(ctx, err, "revenue this month")
	}
	prevMonth, err := r.store.PaidInvoiceRevenue(ctx, ledger.Window{From: prevStart, To: monthStart.AddDate(0, 0, -1)})
	if err != nil {
		return nil, r.fail(ctx, err, "revenue previous month")
	}
	allTime, err := r.store.PaidInvoiceRevenue(ctx, ledger.Window{})
	if err != nil {
		return nil, r.fail(ctx, err, "revenue all time")
	}
	counts, err := r.store.CountByStatus(ctx)
	if err != nil {
		return nil, r.fail(ctx, err, "count subscriptions")
	}
	mrr, _, err := r.currentMRR(ctx)
	if err != nil {
		return nil, err
	}

	return &RevenueSummary{
		ThisMonth:     thisMonth,
		PreviousMonth: prevMonth,
		AllTime:       allTime,
		MRR:           mrr,
		ARR:           mrr.Mul(decimal.NewFromInt(12)),
		Subscriptions: counts,
		GeneratedAt:   now,
	}, nil
}

// RecordSnapshot stores the current MRR as the snapshot of day. Called by the
// sweep job; not operator-gated because it exposes nothing.
func (r *Reporter) RecordSnapshot(ctx context.Context, day time.Time) (MRRSnapshot, error) {
	mrr, active, err := r.currentMRR(ctx)
	if err != nil {
		return MRRSnapshot{}, err
	}
	snap := MRRSnapshot{Day: ledger.Day(day), MRR: mrr, ActiveSubscriptions: active}
	if err := r.store.SaveSnapshot(ctx, snap); err != nil {
		return MRRSnapshot{}, r.fail(ctx, err, "save mrr snapshot")
	}
	r.log.InfoContext(ctx, "mrr snapshot recorded",
		slog.Time("day", snap.Day),
		slog.String("mrr", mrr.StringFixed(2)),
		logger.Count(int(active)),
	)
	return snap, nil
}

func (r *Reporter) currentMRR(ctx context.Context) (decimal.Decimal, int64, error) {
	subs, err := r.store.ActiveSubscriptions(ctx)
	if err != nil {
		return decimal.Zero, 0, r.fail(ctx, err, "list active subscriptions")
	}
	total := lo.Reduce(subs, func(acc decimal.Decimal, s subscription.Subscription, _ int) decimal.Decimal {
		return acc.Add(plan.MonthlyAmount(s.Price, s.Interval))
	}, decimal.Zero)
	return total.Round(2), int64(len(subs)), nil
}

func growth(current, previous decimal.Decimal) decimal.Decimal {
	if previous.IsZero() {
		return decimal.Zero
	}
	return current.Sub(previous).Div(previous).Mul(hundred).Round(2)
}

func (r *Reporter) fail(ctx context.Context, err error, op string) error {
	r.log.ErrorContext(ctx, "platform report failed", slog.String("op", op), logger.Error(err))
	return apperr.Storage(err, op)
}
