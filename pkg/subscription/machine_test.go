package subscription_test

import (
	"context"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/salonkit/billingcore/pkg/apperr"
	"github.com/salonkit/billingcore/pkg/logger"
	"github.com/salonkit/billingcore/pkg/plan"
	"github.com/salonkit/billingcore/pkg/store/memstore"
	"github.com/salonkit/billingcore/pkg/subscription"
	"github.com/salonkit/billingcore/pkg/tenant"
)

var t0 = time.Date(2025, time.January, 10, 12, 0, 0, 0, time.UTC)

const grace = 7 * 24 * time.Hour

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func starterPlan() plan.Plan {
	return plan.Plan{
		ID:        "starter",
		Name:      "Starter",
		Price:     decimal.RequireFromString("49.90"),
		Interval:  plan.IntervalMonthly,
		TrialDays: 14,
		Limits: map[plan.Resource]int64{
			plan.ResourceUsers:                2,
			plan.ResourceProfessionals:        3,
			plan.ResourceClients:              500,
			plan.ResourceAppointmentsPerMonth: 300,
			plan.ResourceStorageMB:            512,
		},
		Active:  true,
		Public:  true,
		Version: 1,
	}
}

type fixture struct {
	store    *memstore.Store
	clock    *clock
	machine  *subscription.Machine
	tenantID uuid.UUID
}

func newFixture(t *testing.T, store subscription.Store, mem *memstore.Store) *fixture {
	t.Helper()
	reg, err := plan.NewRegistry(context.Background(), plan.NewInMemSource(starterPlan()))
	require.NoError(t, err)

	tn := &tenant.Tenant{ID: uuid.New(), Slug: "salon-" + uuid.NewString()[:8]}
	require.NoError(t, mem.CreateTenant(context.Background(), tn))

	clk := &clock{now: t0}
	m := subscription.NewMachine(store, reg,
		subscription.WithClock(clk.Now),
		subscription.WithGracePeriod(grace),
		subscription.WithLogger(logger.New(logger.WithOutput(io.Discard))),
	)
	return &fixture{store: mem, clock: clk, machine: m, tenantID: tn.ID}
}

func setup(t *testing.T) *fixture {
	t.Helper()
	mem := memstore.New()
	return newFixture(t, mem, mem)
}

func (f *fixture) start(t *testing.T) *subscription.Subscription {
	t.Helper()
	sub, err := f.machine.Start(context.Background(), f.tenantID, "starter")
	require.NoError(t, err)
	return sub
}

func (f *fixture) apply(t *testing.T, at time.Time, ev subscription.Event) *subscription.Subscription {
	t.Helper()
	f.clock.Set(at)
	sub, err := f.machine.ApplyBillingEvent(context.Background(), f.tenantID, ev)
	require.NoError(t, err)
	return sub
}

func paid(id string) subscription.Event {
	return subscription.Event{ID: id, Type: subscription.EventPaymentSucceeded}
}

func failed(id string) subscription.Event {
	return subscription.Event{ID: id, Type: subscription.EventPaymentFailed}
}

func TestStart(t *testing.T) {
	t.Parallel()

	t.Run("opens a trial", func(t *testing.T) {
		t.Parallel()
		f := setup(t)
		sub := f.start(t)

		assert.Equal(t, subscription.StatusTrial, sub.Status)
		assert.Equal(t, t0.AddDate(0, 0, 14), sub.TrialEndsAt)
		assert.True(t, decimal.RequireFromString("49.90").Equal(sub.Price))
		assert.Equal(t, plan.IntervalMonthly, sub.Interval)
		assert.Nil(t, sub.CurrentPeriodEnd)
	})

	t.Run("rejects a second live subscription", func(t *testing.T) {
		t.Parallel()
		f := setup(t)
		f.start(t)

		_, err := f.machine.Start(context.Background(), f.tenantID, "starter")
		require.Error(t, err)
		assert.Equal(t, apperr.CodeInvalidTransition, apperr.CodeOf(err))
	})

	t.Run("unknown plan", func(t *testing.T) {
		t.Parallel()
		f := setup(t)

		_, err := f.machine.Start(context.Background(), f.tenantID, "gold")
		assert.Equal(t, apperr.CodeNotFound, apperr.CodeOf(err))
	})

	t.Run("nil tenant", func(t *testing.T) {
		t.Parallel()
		f := setup(t)

		_, err := f.machine.Start(context.Background(), uuid.Nil, "starter")
		assert.Equal(t, apperr.CodeValidation, apperr.CodeOf(err))
	})
}

func TestTrialExpiry(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := setup(t)
	sub := f.start(t)

	status, err := f.machine.Evaluate(ctx, f.tenantID, sub.TrialEndsAt)
	require.NoError(t, err)
	assert.Equal(t, subscription.StatusTrial, status, "trial is still open at its last instant")

	after := sub.TrialEndsAt.Add(time.Second)
	status, err = f.machine.Evaluate(ctx, f.tenantID, after)
	require.NoError(t, err)
	assert.Equal(t, subscription.StatusExpired, status)

	stored, err := f.store.Current(ctx, f.tenantID)
	require.NoError(t, err)
	assert.Equal(t, subscription.StatusTrial, stored.Status, "evaluate must not write")

	due, err := f.machine.DueTenants(ctx, after)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{f.tenantID}, due)

	advanced, changed, err := f.machine.Advance(ctx, f.tenantID, after)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, subscription.StatusExpired, advanced.Status)

	_, changed, err = f.machine.Advance(ctx, f.tenantID, after)
	require.NoError(t, err)
	assert.False(t, changed, "advance is idempotent")

	events, err := f.store.Events(ctx, f.tenantID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, subscription.EventTrialEnded, events[0].Type)

	// A payment arriving after expiry cannot revive the trial.
	f.clock.Set(after.Add(time.Hour))
	_, err = f.machine.ApplyBillingEvent(ctx, f.tenantID, paid("late-payment"))
	require.Error(t, err)
	var invalid *apperr.InvalidTransitionError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, "expired", invalid.From)
	assert.Equal(t, "payment_succeeded", invalid.Event)
	assert.Equal(t, apperr.CodeInvalidTransition, apperr.CodeOf(err))
}

func TestPaymentFailureGrace(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := setup(t)
	f.start(t)

	active := f.apply(t, t0.Add(24*time.Hour), paid("evt-1"))
	require.Equal(t, subscription.StatusActive, active.Status)
	require.NotNil(t, active.CurrentPeriodEnd)
	periodEnd := *active.CurrentPeriodEnd
	assert.Equal(t, t0.Add(24*time.Hour).AddDate(0, 1, 0), periodEnd)

	failedAt := periodEnd.Add(time.Hour)
	pastDue := f.apply(t, failedAt, failed("evt-2"))
	assert.Equal(t, subscription.StatusPastDue, pastDue.Status)
	require.NotNil(t, pastDue.PastDueSince)
	assert.Equal(t, failedAt, *pastDue.PastDueSince)

	again := f.apply(t, failedAt.Add(24*time.Hour), failed("evt-3"))
	assert.Equal(t, subscription.StatusPastDue, again.Status)
	assert.Equal(t, failedAt, *again.PastDueSince, "a repeated failure keeps the grace start")

	invoices, err := f.store.Invoices(ctx, f.tenantID)
	require.NoError(t, err)
	require.Len(t, invoices, 2)
	assert.Equal(t, subscription.InvoicePaid, invoices[0].Status)
	assert.Equal(t, subscription.InvoiceOverdue, invoices[1].Status)
	assert.Equal(t, 2, invoices[1].Attempts)

	deadline := failedAt.Add(grace)
	status, err := f.machine.Evaluate(ctx, f.tenantID, deadline)
	require.NoError(t, err)
	assert.Equal(t, subscription.StatusPastDue, status)

	suspended, changed, err := f.machine.Advance(ctx, f.tenantID, deadline.Add(time.Second))
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, subscription.StatusSuspended, suspended.Status)
	require.NotNil(t, suspended.SuspendedAt)
	assert.Equal(t, deadline, *suspended.SuspendedAt)

	// A suspended subscription only comes back through reactivation.
	f.clock.Set(deadline.Add(time.Hour))
	_, err = f.machine.ApplyBillingEvent(ctx, f.tenantID, paid("evt-4"))
	assert.ErrorIs(t, err, apperr.ErrInvalidTransition)

	back := f.apply(t, deadline.Add(2*time.Hour), subscription.Event{
		ID:   "evt-5",
		Type: subscription.EventReactivateRequested,
	})
	assert.Equal(t, subscription.StatusActive, back.Status)
	assert.Nil(t, back.SuspendedAt)
	assert.Nil(t, back.PastDueSince)

	invoices, err = f.store.Invoices(ctx, f.tenantID)
	require.NoError(t, err)
	require.Len(t, invoices, 2)
	assert.Equal(t, subscription.InvoicePaid, invoices[1].Status, "reactivation settles the overdue invoice")
}

func TestPaymentRecovery(t *testing.T) {
	t.Parallel()
	f := setup(t)
	f.start(t)

	active := f.apply(t, t0, paid("evt-1"))
	periodEnd := *active.CurrentPeriodEnd

	f.apply(t, periodEnd.Add(time.Hour), failed("evt-2"))
	recovered := f.apply(t, periodEnd.Add(48*time.Hour), subscription.Event{
		ID:     "evt-3",
		Type:   subscription.EventPaymentSucceeded,
		Amount: decimal.NewNullDecimal(decimal.RequireFromString("59.90")),
	})

	assert.Equal(t, subscription.StatusActive, recovered.Status)
	assert.Nil(t, recovered.PastDueSince)
	assert.Equal(t, periodEnd, *recovered.CurrentPeriodStart, "the billing cycle continues")
	assert.Equal(t, periodEnd.AddDate(0, 1, 0), *recovered.CurrentPeriodEnd)
	assert.True(t, decimal.RequireFromString("59.90").Equal(recovered.Price), "price snapshot follows the last charge")
}

func TestDeferredCancel(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := setup(t)
	f.start(t)

	active := f.apply(t, t0, paid("evt-1"))
	periodEnd := *active.CurrentPeriodEnd

	pending := f.apply(t, t0.AddDate(0, 0, 10), subscription.Event{
		ID:   "evt-2",
		Type: subscription.EventCancelRequested,
	})
	assert.Equal(t, subscription.StatusActive, pending.Status)
	assert.True(t, pending.CancelAtPeriodEnd)

	status, err := f.machine.Evaluate(ctx, f.tenantID, periodEnd.Add(-time.Second))
	require.NoError(t, err)
	assert.Equal(t, subscription.StatusActive, status)

	status, err = f.machine.Evaluate(ctx, f.tenantID, periodEnd)
	require.NoError(t, err)
	assert.Equal(t, subscription.StatusCancelled, status)

	cancelled, changed, err := f.machine.Advance(ctx, f.tenantID, periodEnd.Add(time.Minute))
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, subscription.StatusCancelled, cancelled.Status)
	assert.Equal(t, periodEnd, *cancelled.CancelledAt)

	// A cancelled tenant may subscribe again.
	f.clock.Set(periodEnd.Add(time.Hour))
	again, err := f.machine.Start(ctx, f.tenantID, "starter")
	require.NoError(t, err)
	assert.Equal(t, subscription.StatusTrial, again.Status)
	assert.NotEqual(t, cancelled.ID, again.ID)
}

func TestReactivateClearsPendingCancel(t *testing.T) {
	t.Parallel()
	f := setup(t)
	f.start(t)

	f.apply(t, t0, paid("evt-1"))
	f.apply(t, t0.Add(time.Hour), subscription.Event{ID: "evt-2", Type: subscription.EventCancelRequested})
	kept := f.apply(t, t0.Add(2*time.Hour), subscription.Event{ID: "evt-3", Type: subscription.EventReactivateRequested})

	assert.Equal(t, subscription.StatusActive, kept.Status)
	assert.False(t, kept.CancelAtPeriodEnd)
}

func TestImmediateCancel(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := setup(t)
	f.start(t)

	sub := f.apply(t, t0.Add(time.Hour), subscription.Event{
		ID:          "evt-1",
		Type:        subscription.EventCancelRequested,
		Immediately: true,
		Reason:      "closing the salon",
	})
	assert.Equal(t, subscription.StatusCancelled, sub.Status)
	require.NotNil(t, sub.CancelledAt)

	for _, ev := range []subscription.Event{
		paid("evt-2"),
		failed("evt-3"),
		{ID: "evt-4", Type: subscription.EventReactivateRequested},
		{ID: "evt-5", Type: subscription.EventAdminSuspend},
	} {
		_, err := f.machine.ApplyBillingEvent(ctx, f.tenantID, ev)
		assert.ErrorIs(t, err, apperr.ErrInvalidTransition, ev.Type)
	}
}

func TestAdminSuspend(t *testing.T) {
	t.Parallel()
	f := setup(t)
	f.start(t)
	f.apply(t, t0, paid("evt-1"))

	first := f.apply(t, t0.Add(time.Hour), subscription.Event{ID: "evt-2", Type: subscription.EventAdminSuspend})
	assert.Equal(t, subscription.StatusSuspended, first.Status)

	second := f.apply(t, t0.Add(2*time.Hour), subscription.Event{ID: "evt-3", Type: subscription.EventAdminSuspend})
	assert.Equal(t, subscription.StatusSuspended, second.Status)
	assert.Equal(t, *first.SuspendedAt, *second.SuspendedAt)
}

func TestInvalidTransitions(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("payment failure during trial", func(t *testing.T) {
		t.Parallel()
		f := setup(t)
		f.start(t)

		_, err := f.machine.ApplyBillingEvent(ctx, f.tenantID, failed("evt-1"))
		var invalid *apperr.InvalidTransitionError
		require.ErrorAs(t, err, &invalid)
		assert.Equal(t, "trial", invalid.From)

		invoices, err := f.store.Invoices(ctx, f.tenantID)
		require.NoError(t, err)
		require.Len(t, invoices, 1, "the failed charge is kept on an invoice")
		assert.Equal(t, subscription.InvoiceOverdue, invoices[0].Status)
		assert.Equal(t, 1, invoices[0].Attempts)

		stored, err := f.store.Current(ctx, f.tenantID)
		require.NoError(t, err)
		assert.Equal(t, subscription.StatusTrial, stored.Status)

		// A replayed webhook is not counted again.
		replay, err := f.machine.ApplyBillingEvent(ctx, f.tenantID, failed("evt-1"))
		require.NoError(t, err)
		assert.Equal(t, subscription.StatusTrial, replay.Status)
		invoices, err = f.store.Invoices(ctx, f.tenantID)
		require.NoError(t, err)
		require.Len(t, invoices, 1)
		assert.Equal(t, 1, invoices[0].Attempts)

		// The first successful charge settles that invoice.
		active := f.apply(t, t0.Add(time.Hour), paid("evt-2"))
		assert.Equal(t, subscription.StatusActive, active.Status)
		invoices, err = f.store.Invoices(ctx, f.tenantID)
		require.NoError(t, err)
		require.Len(t, invoices, 1)
		assert.Equal(t, subscription.InvoicePaid, invoices[0].Status)
		assert.Equal(t, 2, invoices[0].Attempts)
	})

	t.Run("payment failure after suspension", func(t *testing.T) {
		t.Parallel()
		f := setup(t)
		f.start(t)

		active := f.apply(t, t0.Add(time.Hour), paid("evt-1"))
		failedAt := active.CurrentPeriodEnd.Add(time.Hour)
		f.apply(t, failedAt, failed("evt-2"))

		f.clock.Set(failedAt.Add(grace + time.Hour))
		_, err := f.machine.ApplyBillingEvent(ctx, f.tenantID, failed("evt-3"))
		var invalid *apperr.InvalidTransitionError
		require.ErrorAs(t, err, &invalid)
		assert.Equal(t, "suspended", invalid.From)

		stored, err := f.store.Current(ctx, f.tenantID)
		require.NoError(t, err)
		assert.Equal(t, subscription.StatusSuspended, stored.Status, "the grace transition is committed")

		invoices, err := f.store.Invoices(ctx, f.tenantID)
		require.NoError(t, err)
		require.Len(t, invoices, 2)
		assert.Equal(t, subscription.InvoiceOverdue, invoices[1].Status)
		assert.Equal(t, 2, invoices[1].Attempts)

		events, err := f.store.Events(ctx, f.tenantID)
		require.NoError(t, err)
		last := lo.Filter(events, func(e subscription.EventRecord, _ int) bool { return e.EventID == "evt-3" })
		require.Len(t, last, 1)
		assert.Equal(t, subscription.StatusSuspended, last[0].From)
		assert.Equal(t, subscription.StatusSuspended, last[0].To)
	})

	t.Run("other rejected events record nothing", func(t *testing.T) {
		t.Parallel()
		f := setup(t)
		f.start(t)
		f.apply(t, t0.Add(time.Hour), subscription.Event{ID: "evt-1", Type: subscription.EventAdminSuspend})

		f.clock.Set(t0.Add(2 * time.Hour))
		_, err := f.machine.ApplyBillingEvent(ctx, f.tenantID, paid("evt-2"))
		require.ErrorIs(t, err, apperr.ErrInvalidTransition)

		invoices, err := f.store.Invoices(ctx, f.tenantID)
		require.NoError(t, err)
		assert.Empty(t, invoices)
		events, err := f.store.Events(ctx, f.tenantID)
		require.NoError(t, err)
		assert.Len(t, events, 1)
	})

	t.Run("rejected event still commits due transitions", func(t *testing.T) {
		t.Parallel()
		f := setup(t)
		sub := f.start(t)

		f.clock.Set(sub.TrialEndsAt.Add(time.Minute))
		_, err := f.machine.ApplyBillingEvent(ctx, f.tenantID, failed("evt-1"))
		require.ErrorIs(t, err, apperr.ErrInvalidTransition)

		stored, err := f.store.Current(ctx, f.tenantID)
		require.NoError(t, err)
		assert.Equal(t, subscription.StatusExpired, stored.Status)
	})
}

func TestApplyBillingEventIdempotent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := setup(t)
	f.start(t)

	first := f.apply(t, t0.Add(time.Hour), paid("evt-1"))
	replay := f.apply(t, t0.Add(2*time.Hour), paid("evt-1"))

	assert.Equal(t, first.Status, replay.Status)
	assert.Equal(t, first.Version, replay.Version)
	assert.Equal(t, *first.CurrentPeriodEnd, *replay.CurrentPeriodEnd)

	invoices, err := f.store.Invoices(ctx, f.tenantID)
	require.NoError(t, err)
	assert.Len(t, invoices, 1)

	events, err := f.store.Events(ctx, f.tenantID)
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestApplyBillingEventValidation(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := setup(t)
	f.start(t)

	tests := []struct {
		name string
		ev   subscription.Event
	}{
		{"missing id", subscription.Event{Type: subscription.EventPaymentSucceeded}},
		{"unknown type", subscription.Event{ID: "evt-1", Type: "refund"}},
		{"time trigger", subscription.Event{ID: "evt-2", Type: subscription.EventTrialEnded}},
		{"negative amount", subscription.Event{
			ID:     "evt-3",
			Type:   subscription.EventPaymentSucceeded,
			Amount: decimal.NewNullDecimal(decimal.NewFromInt(-1)),
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := f.machine.ApplyBillingEvent(ctx, f.tenantID, tt.ev)
			assert.Equal(t, apperr.CodeValidation, apperr.CodeOf(err))
		})
	}
}

func TestNoSubscription(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := setup(t)

	_, err := f.machine.Evaluate(ctx, f.tenantID, t0)
	assert.Equal(t, apperr.CodeNotFound, apperr.CodeOf(err))

	_, err = f.machine.ApplyBillingEvent(ctx, f.tenantID, paid("evt-1"))
	assert.Equal(t, apperr.CodeNotFound, apperr.CodeOf(err))

	_, _, err = f.machine.Advance(ctx, f.tenantID, t0)
	assert.Equal(t, apperr.CodeNotFound, apperr.CodeOf(err))
}

// conflictOnce loses the first version check it sees.
type conflictOnce struct {
	*memstore.Store
	tripped atomic.Bool
}

func (s *conflictOnce) Transact(ctx context.Context, tenantID uuid.UUID, fn func(context.Context, subscription.Tx) error) error {
	return s.Store.Transact(ctx, tenantID, func(ctx context.Context, tx subscription.Tx) error {
		return fn(ctx, &conflictTx{Tx: tx, s: s})
	})
}

type conflictTx struct {
	subscription.Tx
	s *conflictOnce
}

func (tx *conflictTx) Update(ctx context.Context, sub *subscription.Subscription) error {
	if tx.s.tripped.CompareAndSwap(false, true) {
		return subscription.ErrConflict
	}
	return tx.Tx.Update(ctx, sub)
}

func TestApplyBillingEventRetriesConflicts(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	mem := memstore.New()
	store := &conflictOnce{Store: mem}
	f := newFixture(t, store, mem)
	f.start(t)

	sub := f.apply(t, t0.Add(time.Hour), paid("evt-1"))
	assert.Equal(t, subscription.StatusActive, sub.Status)
	assert.True(t, store.tripped.Load())

	invoices, err := mem.Invoices(ctx, f.tenantID)
	require.NoError(t, err)
	assert.Len(t, invoices, 1, "the failed attempt is rolled back")
}

func TestConcurrentEvents(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := setup(t)
	f.start(t)
	f.clock.Set(t0.Add(time.Hour))

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = f.machine.ApplyBillingEvent(ctx, f.tenantID, paid("evt-dup"))
		}()
	}
	wg.Wait()

	invoices, err := f.store.Invoices(ctx, f.tenantID)
	require.NoError(t, err)
	assert.Len(t, invoices, 1)
}
