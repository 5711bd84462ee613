package memstore

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/salonkit/billingcore/pkg/ledger"
	"github.com/salonkit/billingcore/pkg/platform"
	"github.com/salonkit/billingcore/pkg/subscription"
)

func (s *Store) ActiveSubscriptions(_ context.Context) ([]subscription.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []subscription.Subscription
	for _, row := range s.subs {
		if row.sub.Status == subscription.StatusActive {
			out = append(out, *row.sub.Clone())
		}
	}
	return out, nil
}

func (s *Store) CountByStatus(_ context.Context) (map[subscription.Status]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[subscription.Status]int64)
	for _, row := range s.subs {
		out[row.sub.Status]++
	}
	return out, nil
}

func (s *Store) PaidInvoiceRevenue(_ context.Context, w ledger.Window) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	total := decimal.Zero
	for _, row := range s.invoices {
		if row.inv.Status == subscription.InvoicePaid && row.inv.PaidAt != nil && w.Contains(*row.inv.PaidAt) {
			total = total.Add(row.inv.Amount)
		}
	}
	return total, nil
}

func (s *Store) SnapshotAtOrBefore(_ context.Context, day time.Time) (*platform.MRRSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	day = ledger.Day(day)
	var best *platform.MRRSnapshot
	for _, snap := range s.snapshots {
		if snap.Day.After(day) {
			continue
		}
		if best == nil || snap.Day.After(best.Day) {
			cp := snap
			best = &cp
		}
	}
	return best, nil
}

func (s *Store) SaveSnapshot(_ context.Context, snap platform.MRRSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap.Day = ledger.Day(snap.Day)
	s.snapshots[snap.Day.Format(time.DateOnly)] = snap
	return nil
}
