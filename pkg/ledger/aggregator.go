package ledger

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/salonkit/billingcore/pkg/apperr"
	"github.com/salonkit/billingcore/pkg/logger"
)

// MaxSeriesRows bounds the length of a RevenueByPeriod series.
const MaxSeriesRows = 3700

var hundred = decimal.NewFromInt(100)

// Aggregator computes read-only tenant reports. Failures of the underlying
// reader fail the whole report; partial results are never returned.
type Aggregator struct {
	repo Reader
	log  *slog.Logger
}

// NewAggregator creates an Aggregator reading through repo.
func NewAggregator(repo Reader, log *slog.Logger) *Aggregator {
	if log == nil {
		log = slog.Default()
	}
	return &Aggregator{repo: repo, log: log}
}

// Summarize groups entries and exits by status within w, breaks paid entries
// down by payment method and computes profit as paid entries minus paid exits.
func (a *Aggregator) Summarize(ctx context.Context, tenantID uuid.UUID, w Window) (*Summary, error) {
	if err := checkWindow(w); err != nil {
		return nil, err
	}

	entries, err := a.repo.EntryTotals(ctx, tenantID, w)
	if err != nil {
		return nil, a.fail(ctx, err, "summarize entries")
	}
	exits, err := a.repo.ExitTotals(ctx, tenantID, w)
	if err != nil {
		return nil, a.fail(ctx, err, "summarize exits")
	}
	methods, err := a.repo.PaidEntriesByMethod(ctx, tenantID, w)
	if err != nil {
		return nil, a.fail(ctx, err, "summarize payment methods")
	}

	s := &Summary{
		Window:  w,
		Entries: group(entries),
		Exits:   group(exits),
		ByPaymentMethod: lo.Filter(methods, func(m MethodTotal, _ int) bool {
			return m.Count > 0
		}),
	}
	s.Profit = s.Entries.Paid.Total.Sub(s.Exits.Paid.Total)
	return s, nil
}

func group(t StatusTotals) StatusGroup {
	return StatusGroup{
		Paid:    zeroTotal(t[StatusPaid]),
		Pending: zeroTotal(t[StatusPending]),
	}
}

// zeroTotal normalizes the zero value so JSON renders "0".
func zeroTotal(t Total) Total {
	if t.Count == 0 {
		return Total{Total: decimal.Zero}
	}
	return t
}

// RevenueByPeriod returns paid entry revenue per calendar unit between start
// and end inclusive, ascending, with a zero row for every empty unit. Weeks
// start on Monday.
func (a *Aggregator) RevenueByPeriod(ctx context.Context, tenantID uuid.UUID, start, end time.Time, g Granularity) ([]PeriodRevenue, error) {
	start, end = Day(start), Day(end)
	if start.IsZero() || end.IsZero() {
		return nil, apperr.Validation("start and end dates are required")
	}
	if end.Before(start) {
		return nil, apperr.Validation("end date %s is before start date %s", end.Format(time.DateOnly), start.Format(time.DateOnly))
	}
	if !g.valid() {
		return nil, apperr.Validation("unknown granularity %q", g)
	}

	first, last := g.bucket(start), g.bucket(end)
	n := 0
	for p := first; !p.After(last); p = g.next(p) {
		n++
		if n > MaxSeriesRows {
			return nil, apperr.Validation("range produces more than %d rows", MaxSeriesRows)
		}
	}

	days, err := a.repo.PaidEntriesByDay(ctx, tenantID, Window{From: start, To: end})
	if err != nil {
		return nil, a.fail(ctx, err, "revenue by period")
	}
	byBucket := lo.GroupBy(days, func(d DayTotal) time.Time { return g.bucket(d.Day) })

	series := make([]PeriodRevenue, 0, n)
	for p := first; !p.After(last); p = g.next(p) {
		rows := byBucket[p]
		series = append(series, PeriodRevenue{
			Period:           p,
			TotalRevenue:     lo.Reduce(rows, func(acc decimal.Decimal, d DayTotal, _ int) decimal.Decimal { return acc.Add(d.Total) }, decimal.Zero),
			TransactionCount: lo.SumBy(rows, func(d DayTotal) int64 { return d.Count }),
		})
	}
	return series, nil
}

// CommissionByProfessional reports every active professional's completed
// appointment revenue between start and end inclusive and the commission
// owed on it: revenue * rate / 100, rounded to cents.
func (a *Aggregator) CommissionByProfessional(ctx context.Context, tenantID uuid.UUID, start, end time.Time) ([]Commission, error) {
	w := Window{From: start, To: end}
	if err := checkWindow(w); err != nil {
		return nil, err
	}
	base, err := a.repo.CommissionBase(ctx, tenantID, w)
	if err != nil {
		return nil, a.fail(ctx, err, "commission by professional")
	}
	return lo.Map(base, func(r ProfessionalRevenue, _ int) Commission {
		return Commission{
			ProfessionalID:  r.ProfessionalID,
			Name:            r.Name,
			CommissionRate:  r.CommissionRate,
			Appointments:    r.Appointments,
			TotalRevenue:    r.Revenue,
			TotalCommission: r.Revenue.Mul(r.CommissionRate).Div(hundred).Round(2),
		}
	}), nil
}

func (a *Aggregator) fail(ctx context.Context, err error, op string) error {
	a.log.ErrorContext(ctx, "ledger report failed", slog.String("op", op), logger.Error(err))
	return apperr.Storage(err, op)
}

func checkWindow(w Window) error {
	if !w.From.IsZero() && !w.To.IsZero() && Day(w.To).Before(Day(w.From)) {
		return apperr.Validation("window end is before its start")
	}
	return nil
}

func (g Granularity) valid() bool {
	return g == GranularityDay || g == GranularityWeek || g == GranularityMonth
}

// bucket returns the first day of the unit containing day.
func (g Granularity) bucket(day time.Time) time.Time {
	day = Day(day)
	switch g {
	case GranularityWeek:
		offset := (int(day.Weekday()) + 6) % 7
		return day.AddDate(0, 0, -offset)
	case GranularityMonth:
		return time.Date(day.Year(), day.Month(), 1, 0, 0, 0, 0, time.UTC)
	default:
		return day
	}
}

func (g Granularity) next(p time.Time) time.Time {
	switch g {
	case GranularityWeek:
		return p.AddDate(0, 0, 7)
	case GranularityMonth:
		return p.AddDate(0, 1, 0)
	default:
		return p.AddDate(0, 0, 1)
	}
}
