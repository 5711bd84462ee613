// Package storetest is a behavioral suite shared by the store
// implementations. Every test creates its own tenants, so the suite can run
// against a database that already holds data.
package storetest

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/salonkit/billingcore/pkg/apperr"
	"github.com/salonkit/billingcore/pkg/ledger"
	"github.com/salonkit/billingcore/pkg/plan"
	"github.com/salonkit/billingcore/pkg/platform"
	"github.com/salonkit/billingcore/pkg/subscription"
	"github.com/salonkit/billingcore/pkg/tenant"
)

// Store is everything a complete implementation provides.
type Store interface {
	subscription.Store
	ledger.Repository
	platform.Store
	CreateTenant(ctx context.Context, t *tenant.Tenant) error
	GetTenant(ctx context.Context, id uuid.UUID) (*tenant.Tenant, error)
}

// Run executes the suite against the store returned by open.
func Run(t *testing.T, open func(t *testing.T) Store) {
	t.Run("Tenants", func(t *testing.T) { testTenants(t, open(t)) })
	t.Run("Subscriptions", func(t *testing.T) { testSubscriptions(t, open(t)) })
	t.Run("Transact", func(t *testing.T) { testTransact(t, open(t)) })
	t.Run("DueForSweep", func(t *testing.T) { testDueForSweep(t, open(t)) })
	t.Run("LedgerRows", func(t *testing.T) { testLedgerRows(t, open(t)) })
	t.Run("LedgerAggregates", func(t *testing.T) { testLedgerAggregates(t, open(t)) })
	t.Run("Counts", func(t *testing.T) { testCounts(t, open(t)) })
	t.Run("Platform", func(t *testing.T) { testPlatform(t, open(t)) })
}

var base = time.Date(2031, time.March, 10, 12, 0, 0, 0, time.UTC)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func newTenant(t *testing.T, s Store) uuid.UUID {
	t.Helper()
	tn := &tenant.Tenant{ID: uuid.New(), CreatedAt: base}
	tn.Slug = "salon-" + tn.ID.String()
	require.NoError(t, s.CreateTenant(context.Background(), tn))
	return tn.ID
}

func newSubscription(tenantID uuid.UUID, status subscription.Status) *subscription.Subscription {
	return &subscription.Subscription{
		ID:          uuid.New(),
		TenantID:    tenantID,
		PlanID:      "starter",
		Status:      status,
		Interval:    plan.IntervalMonthly,
		TrialEndsAt: base.AddDate(0, 0, 14),
		Price:       decimal.RequireFromString("49.90"),
		CreatedAt:   base,
		UpdatedAt:   base,
	}
}

func testTenants(t *testing.T, s Store) {
	ctx := context.Background()
	id := newTenant(t, s)

	got, err := s.GetTenant(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "salon-"+id.String(), got.Slug)
	assert.True(t, base.Equal(got.CreatedAt))

	err = s.CreateTenant(ctx, &tenant.Tenant{ID: uuid.New(), Slug: got.Slug, CreatedAt: base})
	assert.Equal(t, apperr.CodeValidation, apperr.CodeOf(err))

	_, err = s.GetTenant(ctx, uuid.New())
	assert.Equal(t, apperr.CodeNotFound, apperr.CodeOf(err))
}

func testSubscriptions(t *testing.T, s Store) {
	ctx := context.Background()
	tid := newTenant(t, s)

	_, err := s.Current(ctx, tid)
	assert.Equal(t, apperr.CodeNotFound, apperr.CodeOf(err))

	sub := newSubscription(tid, subscription.StatusTrial)
	require.NoError(t, s.Create(ctx, sub))
	assert.EqualValues(t, 1, sub.Version)

	cur, err := s.Current(ctx, tid)
	require.NoError(t, err)
	assert.Equal(t, sub.ID, cur.ID)
	assert.Equal(t, subscription.StatusTrial, cur.Status)
	assert.True(t, sub.Price.Equal(cur.Price))
	assert.True(t, sub.TrialEndsAt.Equal(cur.TrialEndsAt))
	assert.Nil(t, cur.CurrentPeriodEnd)

	err = s.Create(ctx, newSubscription(tid, subscription.StatusActive))
	assert.ErrorIs(t, err, subscription.ErrLiveSubscriptionExists)

	err = s.Create(ctx, newSubscription(uuid.New(), subscription.StatusTrial))
	assert.Equal(t, apperr.CodeNotFound, apperr.CodeOf(err))

	// A terminal subscription frees the tenant for a new one.
	require.NoError(t, s.Transact(ctx, tid, func(ctx context.Context, tx subscription.Tx) error {
		cur, err := tx.LockCurrent(ctx)
		if err != nil {
			return err
		}
		cur.Status = subscription.StatusExpired
		return tx.Update(ctx, cur)
	}))
	next := newSubscription(tid, subscription.StatusTrial)
	next.CreatedAt = base.Add(time.Hour)
	next.UpdatedAt = next.CreatedAt
	require.NoError(t, s.Create(ctx, next))

	cur, err = s.Current(ctx, tid)
	require.NoError(t, err)
	assert.Equal(t, next.ID, cur.ID)
}

func testTransact(t *testing.T, s Store) {
	ctx := context.Background()
	tid := newTenant(t, s)
	sub := newSubscription(tid, subscription.StatusActive)
	end := base.AddDate(0, 1, 0)
	sub.CurrentPeriodStart, sub.CurrentPeriodEnd = &base, &end
	require.NoError(t, s.Create(ctx, sub))

	inv := &subscription.Invoice{
		ID:             uuid.New(),
		TenantID:       tid,
		SubscriptionID: sub.ID,
		EventID:        "evt-charge-1",
		Amount:         sub.Price,
		DueDate:        end,
		Status:         subscription.InvoicePending,
		CreatedAt:      base,
		UpdatedAt:      base,
	}

	t.Run("commits", func(t *testing.T) {
		err := s.Transact(ctx, tid, func(ctx context.Context, tx subscription.Tx) error {
			cur, err := tx.LockCurrent(ctx)
			if err != nil {
				return err
			}
			cur.Status = subscription.StatusPastDue
			cur.PastDueSince = &end
			if err := tx.Update(ctx, cur); err != nil {
				return err
			}
			if err := tx.SaveInvoice(ctx, inv); err != nil {
				return err
			}
			return tx.RecordEvent(ctx, subscription.EventRecord{
				TenantID:       tid,
				SubscriptionID: sub.ID,
				EventID:        "evt-fail-1",
				Type:           subscription.EventPaymentFailed,
				From:           subscription.StatusActive,
				To:             subscription.StatusPastDue,
				AppliedAt:      end,
			})
		})
		require.NoError(t, err)

		cur, err := s.Current(ctx, tid)
		require.NoError(t, err)
		assert.Equal(t, subscription.StatusPastDue, cur.Status)
		assert.EqualValues(t, 2, cur.Version)
		require.NotNil(t, cur.PastDueSince)
		assert.True(t, end.Equal(*cur.PastDueSince))
	})

	t.Run("rolls back on error", func(t *testing.T) {
		boom := fmt.Errorf("boom")
		err := s.Transact(ctx, tid, func(ctx context.Context, tx subscription.Tx) error {
			cur, err := tx.LockCurrent(ctx)
			if err != nil {
				return err
			}
			cur.Status = subscription.StatusSuspended
			if err := tx.Update(ctx, cur); err != nil {
				return err
			}
			if err := tx.RecordEvent(ctx, subscription.EventRecord{
				TenantID: tid, SubscriptionID: sub.ID, EventID: "evt-rolled-back",
				Type: subscription.EventAdminSuspend, From: subscription.StatusPastDue,
				To: subscription.StatusSuspended, AppliedAt: end,
			}); err != nil {
				return err
			}
			return boom
		})
		require.ErrorIs(t, err, boom)

		cur, err := s.Current(ctx, tid)
		require.NoError(t, err)
		assert.Equal(t, subscription.StatusPastDue, cur.Status)
		assert.EqualValues(t, 2, cur.Version)

		require.NoError(t, s.Transact(ctx, tid, func(ctx context.Context, tx subscription.Tx) error {
			seen, err := tx.EventProcessed(ctx, "evt-rolled-back")
			assert.False(t, seen)
			return err
		}))
	})

	t.Run("stale version conflicts", func(t *testing.T) {
		stale, err := s.Current(ctx, tid)
		require.NoError(t, err)
		stale.Version--
		err = s.Transact(ctx, tid, func(ctx context.Context, tx subscription.Tx) error {
			return tx.Update(ctx, stale)
		})
		assert.ErrorIs(t, err, subscription.ErrConflict)
	})

	t.Run("events and invoices", func(t *testing.T) {
		err := s.Transact(ctx, tid, func(ctx context.Context, tx subscription.Tx) error {
			seen, err := tx.EventProcessed(ctx, "evt-fail-1")
			require.NoError(t, err)
			assert.True(t, seen)

			open, err := tx.OpenInvoice(ctx, sub.ID)
			require.NoError(t, err)
			require.NotNil(t, open)
			assert.Equal(t, inv.ID, open.ID)
			assert.True(t, inv.Amount.Equal(open.Amount))

			paidAt := end.Add(time.Hour)
			open.Status = subscription.InvoicePaid
			open.PaidAt = &paidAt
			open.Attempts = 2
			require.NoError(t, tx.SaveInvoice(ctx, open))

			open, err = tx.OpenInvoice(ctx, sub.ID)
			require.NoError(t, err)
			assert.Nil(t, open)
			return nil
		})
		require.NoError(t, err)

		err = s.Transact(ctx, tid, func(ctx context.Context, tx subscription.Tx) error {
			reopened := *inv
			reopened.Status = subscription.InvoiceOverdue
			return tx.SaveInvoice(ctx, &reopened)
		})
		assert.Equal(t, apperr.CodeValidation, apperr.CodeOf(err))
	})
}

func testDueForSweep(t *testing.T, s Store) {
	ctx := context.Background()
	grace := 7 * 24 * time.Hour
	now := base.AddDate(0, 0, 20)

	expiredTrial := newTenant(t, s)
	require.NoError(t, s.Create(ctx, newSubscription(expiredTrial, subscription.StatusTrial)))

	runningTrial := newTenant(t, s)
	sub := newSubscription(runningTrial, subscription.StatusTrial)
	sub.TrialEndsAt = now.AddDate(0, 0, 1)
	require.NoError(t, s.Create(ctx, sub))

	graceOver := newTenant(t, s)
	sub = newSubscription(graceOver, subscription.StatusPastDue)
	since := now.Add(-grace - time.Minute)
	sub.PastDueSince = &since
	require.NoError(t, s.Create(ctx, sub))

	inGrace := newTenant(t, s)
	sub = newSubscription(inGrace, subscription.StatusPastDue)
	since = now.Add(-time.Hour)
	sub.PastDueSince = &since
	require.NoError(t, s.Create(ctx, sub))

	cancelDue := newTenant(t, s)
	sub = newSubscription(cancelDue, subscription.StatusActive)
	end := now
	sub.CurrentPeriodEnd = &end
	sub.CancelAtPeriodEnd = true
	require.NoError(t, s.Create(ctx, sub))

	active := newTenant(t, s)
	sub = newSubscription(active, subscription.StatusActive)
	end = now.AddDate(0, 1, 0)
	sub.CurrentPeriodEnd = &end
	require.NoError(t, s.Create(ctx, sub))

	due, err := s.DueForSweep(ctx, now, grace)
	require.NoError(t, err)
	assert.Contains(t, due, expiredTrial)
	assert.Contains(t, due, graceOver)
	assert.Contains(t, due, cancelDue)
	assert.NotContains(t, due, runningTrial)
	assert.NotContains(t, due, inGrace)
	assert.NotContains(t, due, active)
}

func testLedgerRows(t *testing.T, s Store) {
	ctx := context.Background()
	tid := newTenant(t, s)
	other := newTenant(t, s)

	pix := &ledger.PaymentMethod{ID: uuid.New(), Name: "Pix", Kind: ledger.KindPix, Active: true, CreatedAt: base}
	require.NoError(t, s.InsertPaymentMethod(ctx, tid, pix))

	entry := &ledger.Entry{
		ID:              uuid.New(),
		Description:     "Haircut",
		Amount:          decimal.RequireFromString("80.00"),
		Date:            day(2031, time.March, 10),
		Status:          ledger.StatusPending,
		PaymentMethodID: &pix.ID,
		CreatedAt:       base,
		UpdatedAt:       base,
	}
	require.NoError(t, s.InsertEntry(ctx, tid, entry))
	assert.Equal(t, tid, entry.TenantID)

	got, err := s.GetEntry(ctx, tid, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, "Haircut", got.Description)
	assert.True(t, entry.Amount.Equal(got.Amount))
	assert.True(t, entry.Date.Equal(got.Date))
	require.NotNil(t, got.PaymentMethodID)
	assert.Equal(t, pix.ID, *got.PaymentMethodID)

	// Rows of one tenant are invisible to another.
	_, err = s.GetEntry(ctx, other, entry.ID)
	assert.Equal(t, apperr.CodeNotFound, apperr.CodeOf(err))
	assert.Equal(t, apperr.CodeNotFound, apperr.CodeOf(s.SetEntryStatus(ctx, other, entry.ID, ledger.StatusPaid, base)))
	assert.Equal(t, apperr.CodeNotFound, apperr.CodeOf(s.SoftDeleteEntry(ctx, other, entry.ID, base)))
	list, err := s.ListEntries(ctx, other, ledger.ListFilter{})
	require.NoError(t, err)
	assert.Empty(t, list)

	require.NoError(t, s.UpdateEntryDescription(ctx, tid, entry.ID, "Haircut and wash", base))
	require.NoError(t, s.SetEntryStatus(ctx, tid, entry.ID, ledger.StatusPaid, base))
	assert.ErrorIs(t, s.SetEntryStatus(ctx, tid, entry.ID, ledger.StatusCancelled, base), ledger.ErrStatusFinal)

	got, err = s.GetEntry(ctx, tid, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusPaid, got.Status)
	assert.Equal(t, "Haircut and wash", got.Description)

	list, err = s.ListEntries(ctx, tid, ledger.ListFilter{Status: ledger.StatusPending})
	require.NoError(t, err)
	assert.Empty(t, list)

	require.NoError(t, s.SoftDeleteEntry(ctx, tid, entry.ID, base))
	_, err = s.GetEntry(ctx, tid, entry.ID)
	assert.Equal(t, apperr.CodeNotFound, apperr.CodeOf(err))
	list, err = s.ListEntries(ctx, tid, ledger.ListFilter{IncludeDeleted: true})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.NotNil(t, list[0].DeletedAt)

	exit := &ledger.Exit{
		ID:          uuid.New(),
		Description: "Shampoo stock",
		Category:    "supplies",
		Amount:      decimal.RequireFromString("35.50"),
		Date:        day(2031, time.March, 11),
		Status:      ledger.StatusPending,
		CreatedAt:   base,
		UpdatedAt:   base,
	}
	require.NoError(t, s.InsertExit(ctx, tid, exit))
	require.NoError(t, s.UpdateExitDetails(ctx, tid, exit.ID, "Conditioner stock", "inventory", base))
	require.NoError(t, s.SetExitStatus(ctx, tid, exit.ID, ledger.StatusCancelled, base))
	assert.ErrorIs(t, s.SetExitStatus(ctx, tid, exit.ID, ledger.StatusPaid, base), ledger.ErrStatusFinal)

	gotExit, err := s.GetExit(ctx, tid, exit.ID)
	require.NoError(t, err)
	assert.Equal(t, "inventory", gotExit.Category)
	assert.Equal(t, ledger.StatusCancelled, gotExit.Status)

	require.NoError(t, s.SoftDeleteExit(ctx, tid, exit.ID, base))
	exits, err := s.ListExits(ctx, tid, ledger.ListFilter{})
	require.NoError(t, err)
	assert.Empty(t, exits)

	require.NoError(t, s.SoftDeletePaymentMethod(ctx, tid, pix.ID, base))
	methods, err := s.ListPaymentMethods(ctx, tid, true)
	require.NoError(t, err)
	require.Len(t, methods, 1)
	assert.False(t, methods[0].Active)
	methods, err = s.ListPaymentMethods(ctx, tid, false)
	require.NoError(t, err)
	assert.Empty(t, methods)
}

func testLedgerAggregates(t *testing.T, s Store) {
	ctx := context.Background()
	tid := newTenant(t, s)

	cash := &ledger.PaymentMethod{ID: uuid.New(), Name: "Cash", Kind: ledger.KindCash, Active: true, CreatedAt: base}
	card := &ledger.PaymentMethod{ID: uuid.New(), Name: "Card", Kind: ledger.KindCredit, Active: true, CreatedAt: base}
	require.NoError(t, s.InsertPaymentMethod(ctx, tid, cash))
	require.NoError(t, s.InsertPaymentMethod(ctx, tid, card))

	addEntry := func(amount string, d time.Time, status ledger.Status, method *uuid.UUID) {
		require.NoError(t, s.InsertEntry(ctx, tid, &ledger.Entry{
			ID: uuid.New(), Description: "service", Amount: decimal.RequireFromString(amount),
			Date: d, Status: status, PaymentMethodID: method, CreatedAt: base, UpdatedAt: base,
		}))
	}
	addEntry("100.00", day(2031, time.March, 1), ledger.StatusPaid, &cash.ID)
	addEntry("50.25", day(2031, time.March, 1), ledger.StatusPaid, &card.ID)
	addEntry("20.00", day(2031, time.March, 5), ledger.StatusPaid, &cash.ID)
	addEntry("30.00", day(2031, time.March, 5), ledger.StatusPending, nil)
	addEntry("999.00", day(2031, time.April, 1), ledger.StatusPaid, &cash.ID)
	require.NoError(t, s.InsertExit(ctx, tid, &ledger.Exit{
		ID: uuid.New(), Description: "rent", Amount: decimal.RequireFromString("60.00"),
		Date: day(2031, time.March, 3), Status: ledger.StatusPaid, CreatedAt: base, UpdatedAt: base,
	}))

	march := ledger.Window{From: day(2031, time.March, 1), To: day(2031, time.March, 31)}

	entries, err := s.EntryTotals(ctx, tid, march)
	require.NoError(t, err)
	assert.Equal(t, "170.25", entries[ledger.StatusPaid].Total.StringFixed(2))
	assert.EqualValues(t, 3, entries[ledger.StatusPaid].Count)
	assert.Equal(t, "30.00", entries[ledger.StatusPending].Total.StringFixed(2))

	exits, err := s.ExitTotals(ctx, tid, march)
	require.NoError(t, err)
	assert.Equal(t, "60.00", exits[ledger.StatusPaid].Total.StringFixed(2))
	_, ok := exits[ledger.StatusPending]
	assert.False(t, ok)

	byMethod, err := s.PaidEntriesByMethod(ctx, tid, march)
	require.NoError(t, err)
	require.Len(t, byMethod, 2)
	assert.Equal(t, "Card", byMethod[0].Name)
	assert.Equal(t, "50.25", byMethod[0].Total.StringFixed(2))
	assert.Equal(t, "Cash", byMethod[1].Name)
	assert.Equal(t, "120.00", byMethod[1].Total.StringFixed(2))
	assert.EqualValues(t, 2, byMethod[1].Count)

	byDay, err := s.PaidEntriesByDay(ctx, tid, march)
	require.NoError(t, err)
	require.Len(t, byDay, 2)
	assert.True(t, day(2031, time.March, 1).Equal(byDay[0].Day))
	assert.Equal(t, "150.25", byDay[0].Total.StringFixed(2))
	assert.True(t, day(2031, time.March, 5).Equal(byDay[1].Day))

	all, err := s.EntryTotals(ctx, tid, ledger.Window{})
	require.NoError(t, err)
	assert.Equal(t, "1169.25", all[ledger.StatusPaid].Total.StringFixed(2))

	ana := &ledger.Professional{ID: uuid.New(), Name: "Ana", CommissionRate: decimal.NewFromInt(40), Active: true, CreatedAt: base}
	bia := &ledger.Professional{ID: uuid.New(), Name: "Bia", CommissionRate: decimal.NewFromInt(30), Active: true, CreatedAt: base}
	require.NoError(t, s.InsertProfessional(ctx, tid, ana))
	require.NoError(t, s.InsertProfessional(ctx, tid, bia))
	addAppt := func(p uuid.UUID, price string, at time.Time, status ledger.AppointmentStatus) {
		require.NoError(t, s.InsertAppointment(ctx, tid, &ledger.Appointment{
			ID: uuid.New(), ProfessionalID: p, StartsAt: at, Status: status,
			PriceCharged: decimal.RequireFromString(price), CreatedAt: base,
		}))
	}
	addAppt(ana.ID, "80.00", base, ledger.AppointmentCompleted)
	addAppt(ana.ID, "45.50", base.Add(time.Hour), ledger.AppointmentCompleted)
	addAppt(ana.ID, "70.00", base.Add(2*time.Hour), ledger.AppointmentCancelled)
	addAppt(bia.ID, "60.00", base.AddDate(0, 1, 0), ledger.AppointmentCompleted)

	commission, err := s.CommissionBase(ctx, tid, march)
	require.NoError(t, err)
	require.Len(t, commission, 2)
	assert.Equal(t, "Ana", commission[0].Name)
	assert.Equal(t, "125.50", commission[0].Revenue.StringFixed(2))
	assert.EqualValues(t, 2, commission[0].Appointments)
	assert.Equal(t, "Bia", commission[1].Name)
	assert.True(t, commission[1].Revenue.IsZero())
	assert.EqualValues(t, 0, commission[1].Appointments)
}

func testCounts(t *testing.T, s Store) {
	ctx := context.Background()
	tid := newTenant(t, s)
	other := newTenant(t, s)

	p := &ledger.Professional{ID: uuid.New(), Name: "Caio", Active: true, CreatedAt: base}
	require.NoError(t, s.InsertProfessional(ctx, tid, p))

	n, err := s.CountProfessionals(ctx, tid)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
	n, err = s.CountProfessionals(ctx, other)
	require.NoError(t, err)
	assert.Zero(t, n)

	for i, status := range []ledger.AppointmentStatus{
		ledger.AppointmentScheduled, ledger.AppointmentCompleted, ledger.AppointmentCancelled, ledger.AppointmentNoShow,
	} {
		require.NoError(t, s.InsertAppointment(ctx, tid, &ledger.Appointment{
			ID: uuid.New(), ProfessionalID: p.ID, StartsAt: base.Add(time.Duration(i) * time.Hour),
			Status: status, CreatedAt: base,
		}))
	}
	require.NoError(t, s.InsertAppointment(ctx, tid, &ledger.Appointment{
		ID: uuid.New(), ProfessionalID: p.ID, StartsAt: base.AddDate(0, 1, 0),
		Status: ledger.AppointmentScheduled, CreatedAt: base,
	}))

	n, err = s.CountAppointmentsInMonth(ctx, tid, base)
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)

	// A professional of another tenant cannot be booked.
	err = s.InsertAppointment(ctx, other, &ledger.Appointment{
		ID: uuid.New(), ProfessionalID: p.ID, StartsAt: base, Status: ledger.AppointmentScheduled, CreatedAt: base,
	})
	assert.Equal(t, apperr.CodeNotFound, apperr.CodeOf(err))
}

func testPlatform(t *testing.T, s Store) {
	ctx := context.Background()

	before, err := s.CountByStatus(ctx)
	require.NoError(t, err)

	tid := newTenant(t, s)
	sub := newSubscription(tid, subscription.StatusActive)
	require.NoError(t, s.Create(ctx, sub))

	after, err := s.CountByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, before[subscription.StatusActive]+1, after[subscription.StatusActive])

	active, err := s.ActiveSubscriptions(ctx)
	require.NoError(t, err)
	assert.True(t, containsSubscription(active, sub.ID))

	paidDay := day(2031, time.June, 15)
	w := ledger.Window{From: paidDay, To: paidDay}
	revenueBefore, err := s.PaidInvoiceRevenue(ctx, w)
	require.NoError(t, err)

	paidAt := paidDay.Add(10 * time.Hour)
	require.NoError(t, s.Transact(ctx, tid, func(ctx context.Context, tx subscription.Tx) error {
		return tx.SaveInvoice(ctx, &subscription.Invoice{
			ID: uuid.New(), TenantID: tid, SubscriptionID: sub.ID, EventID: "evt-paid",
			Amount: decimal.RequireFromString("49.90"), DueDate: paidDay, PaidAt: &paidAt,
			Status: subscription.InvoicePaid, CreatedAt: paidDay, UpdatedAt: paidAt,
		})
	}))
	revenueAfter, err := s.PaidInvoiceRevenue(ctx, w)
	require.NoError(t, err)
	assert.Equal(t, "49.90", revenueAfter.Sub(revenueBefore).StringFixed(2))

	snapDay := day(2031, time.July, 1)
	require.NoError(t, s.SaveSnapshot(ctx, platform.MRRSnapshot{Day: snapDay, MRR: decimal.NewFromInt(10), ActiveSubscriptions: 1}))
	require.NoError(t, s.SaveSnapshot(ctx, platform.MRRSnapshot{Day: snapDay, MRR: decimal.RequireFromString("12.50"), ActiveSubscriptions: 2}))

	snap, err := s.SnapshotAtOrBefore(ctx, snapDay.AddDate(0, 0, 3))
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.True(t, snapDay.Equal(snap.Day))
	assert.Equal(t, "12.50", snap.MRR.StringFixed(2))
	assert.EqualValues(t, 2, snap.ActiveSubscriptions)

	snap, err = s.SnapshotAtOrBefore(ctx, day(1999, time.January, 1))
	require.NoError(t, err)
	assert.Nil(t, snap)
}

func containsSubscription(subs []subscription.Subscription, id uuid.UUID) bool {
	for _, s := range subs {
		if s.ID == id {
			return true
		}
	}
	return false
}
