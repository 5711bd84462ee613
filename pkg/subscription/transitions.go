package subscription

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/salonkit/billingcore/pkg/logger"
	"github.com/salonkit/billingcore/pkg/plan"
)

// change is the working state of one event application.
type change struct {
	tx  Tx
	sub *Subscription
	ev  Event
	now time.Time
}

// amount returns the charged amount, defaulting to fallback.
func (c *change) amount(fallback decimal.Decimal) decimal.Decimal {
	if c.ev.Amount.Valid {
		return c.ev.Amount.Decimal
	}
	return fallback
}

type transitionFunc func(m *Machine, ctx context.Context, c *change) error

// transitions lists every legal (status, event) pair. Anything else is an
// invalid transition. Terminal statuses have no entries.
var transitions = map[Status]map[EventType]transitionFunc{
	StatusTrial: {
		EventPaymentSucceeded:    (*Machine).activate,
		EventCancelRequested:     (*Machine).cancel,
		EventReactivateRequested: (*Machine).keep,
		EventAdminSuspend:        (*Machine).suspend,
	},
	StatusActive: {
		EventPaymentSucceeded:    (*Machine).renew,
		EventPaymentFailed:       (*Machine).markPastDue,
		EventCancelRequested:     (*Machine).cancel,
		EventReactivateRequested: (*Machine).keep,
		EventAdminSuspend:        (*Machine).suspend,
	},
	StatusPastDue: {
		EventPaymentSucceeded:    (*Machine).recoverPayment,
		EventPaymentFailed:       (*Machine).recordFailure,
		EventCancelRequested:     (*Machine).cancel,
		EventReactivateRequested: (*Machine).keep,
		EventAdminSuspend:        (*Machine).suspend,
	},
	StatusSuspended: {
		EventReactivateRequested: (*Machine).reactivate,
		EventAdminSuspend:        (*Machine).suspend,
	},
}

// activate converts a trial on its first successful charge.
func (m *Machine) activate(ctx context.Context, c *change) error {
	start := c.now
	if err := m.settle(ctx, c, start); err != nil {
		return err
	}
	c.sub.Status = StatusActive
	c.sub.PastDueSince = nil
	c.sub.CurrentPeriodStart = timePtr(start)
	c.sub.CurrentPeriodEnd = timePtr(plan.PeriodEnd(start, c.sub.Interval))
	return nil
}

// renew extends an active subscription by one period.
func (m *Machine) renew(ctx context.Context, c *change) error {
	start := nextPeriodStart(c.sub, c.now)
	if err := m.settle(ctx, c, start); err != nil {
		return err
	}
	c.sub.CurrentPeriodStart = timePtr(start)
	c.sub.CurrentPeriodEnd = timePtr(plan.PeriodEnd(start, c.sub.Interval))
	return nil
}

// recoverPayment settles the overdue invoice within the grace window.
func (m *Machine) recoverPayment(ctx context.Context, c *change) error {
	if err := m.renew(ctx, c); err != nil {
		return err
	}
	c.sub.Status = StatusActive
	c.sub.PastDueSince = nil
	return nil
}

// markPastDue records a failed renewal charge.
func (m *Machine) markPastDue(ctx context.Context, c *change) error {
	if err := m.recordFailure(ctx, c); err != nil {
		return err
	}
	c.sub.Status = StatusPastDue
	c.sub.PastDueSince = timePtr(c.now)
	return nil
}

// recordFailure counts a failed charge attempt on the open invoice without
// changing status.
func (m *Machine) recordFailure(ctx context.Context, c *change) error {
	inv, err := c.tx.OpenInvoice(ctx, c.sub.ID)
	if err != nil {
		return err
	}
	if inv == nil {
		due := c.now
		if c.sub.CurrentPeriodEnd != nil {
			due = *c.sub.CurrentPeriodEnd
		}
		inv = m.newInvoice(c, c.amount(c.sub.Price), due)
	} else if c.ev.Amount.Valid {
		inv.Amount = c.ev.Amount.Decimal
	}
	inv.Status = InvoiceOverdue
	inv.Attempts++
	inv.UpdatedAt = c.now
	return c.tx.SaveInvoice(ctx, inv)
}

// keepFailedAttempt records a charge failure that cannot move the status,
// such as one arriving during a trial or after suspension. The event is
// recorded with an unchanged status so a replay does not count it twice.
func (m *Machine) keepFailedAttempt(ctx context.Context, c *change) error {
	if err := m.recordFailure(ctx, c); err != nil {
		return err
	}
	return c.tx.RecordEvent(ctx, EventRecord{
		TenantID:       c.sub.TenantID,
		SubscriptionID: c.sub.ID,
		EventID:        c.ev.ID,
		Type:           c.ev.Type,
		From:           c.sub.Status,
		To:             c.sub.Status,
		Reason:         c.ev.Reason,
		AppliedAt:      c.now,
	})
}

func (m *Machine) cancel(ctx context.Context, c *change) error {
	if !c.ev.Immediately {
		c.sub.CancelAtPeriodEnd = true
		return nil
	}
	c.sub.Status = StatusCancelled
	c.sub.CancelledAt = timePtr(c.now)
	return m.closeOpenInvoice(ctx, c.tx, c.sub, c.now)
}

// keep clears a pending deferred cancellation. Without one it changes nothing.
func (m *Machine) keep(_ context.Context, c *change) error {
	c.sub.CancelAtPeriodEnd = false
	return nil
}

// reactivate restores a suspended subscription after manual payment
// resolution. An open invoice, or an explicit amount, is settled as paid.
func (m *Machine) reactivate(ctx context.Context, c *change) error {
	inv, err := c.tx.OpenInvoice(ctx, c.sub.ID)
	if err != nil {
		return err
	}
	if inv != nil || c.ev.Amount.Valid {
		if err := m.settle(ctx, c, c.now); err != nil {
			return err
		}
	}
	c.sub.Status = StatusActive
	c.sub.SuspendedAt = nil
	c.sub.PastDueSince = nil
	c.sub.CancelAtPeriodEnd = false
	c.sub.CurrentPeriodStart = timePtr(c.now)
	c.sub.CurrentPeriodEnd = timePtr(plan.PeriodEnd(c.now, c.sub.Interval))
	return nil
}

// suspend is the administrative suspension. Suspending a suspended
// subscription keeps the original timestamp.
func (m *Machine) suspend(_ context.Context, c *change) error {
	if c.sub.Status == StatusSuspended {
		return nil
	}
	c.sub.Status = StatusSuspended
	c.sub.SuspendedAt = timePtr(c.now)
	return nil
}

// settle marks the open invoice paid, or creates a paid one, and freezes the
// charged amount as the new price snapshot.
func (m *Machine) settle(ctx context.Context, c *change, due time.Time) error {
	inv, err := c.tx.OpenInvoice(ctx, c.sub.ID)
	if err != nil {
		return err
	}
	if inv == nil {
		inv = m.newInvoice(c, c.amount(c.sub.Price), due)
	} else if c.ev.Amount.Valid {
		inv.Amount = c.ev.Amount.Decimal
	}
	inv.Status = InvoicePaid
	inv.PaidAt = timePtr(c.now)
	inv.Attempts++
	inv.UpdatedAt = c.now
	if err := c.tx.SaveInvoice(ctx, inv); err != nil {
		return err
	}
	c.sub.Price = inv.Amount
	return nil
}

func (m *Machine) newInvoice(c *change, amount decimal.Decimal, due time.Time) *Invoice {
	return &Invoice{
		ID:             uuid.New(),
		TenantID:       c.sub.TenantID,
		SubscriptionID: c.sub.ID,
		EventID:        c.ev.ID,
		Amount:         amount,
		DueDate:        due,
		Status:         InvoicePending,
		CreatedAt:      c.now,
		UpdatedAt:      c.now,
	}
}

func (m *Machine) closeOpenInvoice(ctx context.Context, tx Tx, sub *Subscription, now time.Time) error {
	inv, err := tx.OpenInvoice(ctx, sub.ID)
	if err != nil || inv == nil {
		return err
	}
	inv.Status = InvoiceCancelled
	inv.UpdatedAt = now
	return tx.SaveInvoice(ctx, inv)
}

// nextPeriodStart continues the billing cycle from the current period end,
// or restarts it at now when the subscription has fallen a whole period behind.
func nextPeriodStart(sub *Subscription, now time.Time) time.Time {
	if sub.CurrentPeriodEnd == nil {
		return now
	}
	start := *sub.CurrentPeriodEnd
	if !plan.PeriodEnd(start, sub.Interval).After(now) {
		return now
	}
	return start
}

// step is one time-driven transition.
type step struct {
	from, to Status
	trigger  EventType
	at       time.Time
}

// nextDue returns the earliest time-driven transition due at now. A pending
// cancellation wins ties.
func (m *Machine) nextDue(sub *Subscription, now time.Time) (step, bool) {
	if sub.Status.Terminal() {
		return step{}, false
	}

	var (
		best  step
		found bool
	)
	consider := func(s step) {
		if !found || s.at.Before(best.at) {
			best, found = s, true
		}
	}

	if at, ok := sub.CancelAt(); ok && !now.Before(at) {
		consider(step{from: sub.Status, to: StatusCancelled, trigger: EventPeriodEnded, at: at})
	}
	switch sub.Status {
	case StatusTrial:
		if now.After(sub.TrialEndsAt) {
			consider(step{from: sub.Status, to: StatusExpired, trigger: EventTrialEnded, at: sub.TrialEndsAt})
		}
	case StatusPastDue:
		if sub.PastDueSince != nil {
			deadline := sub.PastDueSince.Add(m.grace)
			if now.After(deadline) {
				consider(step{from: sub.Status, to: StatusSuspended, trigger: EventGraceEnded, at: deadline})
			}
		}
	}
	return best, found
}

// project applies due time-driven transitions to sub in memory.
func (m *Machine) project(sub *Subscription, now time.Time) []step {
	var steps []step
	// Each step either ends in a terminal status or in suspended, from which
	// only a pending cancellation can follow.
	for range 3 {
		st, ok := m.nextDue(sub, now)
		if !ok {
			break
		}
		sub.Status = st.to
		switch st.to {
		case StatusSuspended:
			sub.SuspendedAt = timePtr(st.at)
		case StatusCancelled:
			sub.CancelledAt = timePtr(st.at)
		}
		steps = append(steps, st)
	}
	return steps
}

// materialize applies due time-driven transitions inside tx and records
// them. The caller persists sub.
func (m *Machine) materialize(ctx context.Context, tx Tx, sub *Subscription, now time.Time) (bool, error) {
	version := sub.Version
	steps := m.project(sub, now)
	for _, st := range steps {
		if st.to.Terminal() {
			if err := m.closeOpenInvoice(ctx, tx, sub, now); err != nil {
				return false, err
			}
		}
		if err := tx.RecordEvent(ctx, EventRecord{
			TenantID:       sub.TenantID,
			SubscriptionID: sub.ID,
			EventID:        fmt.Sprintf("%s:%s:%d:%s", st.trigger, sub.ID, version, st.to),
			Type:           st.trigger,
			From:           st.from,
			To:             st.to,
			AppliedAt:      now,
		}); err != nil {
			return false, err
		}
		m.log.InfoContext(ctx, "subscription transitioned",
			logger.TenantID(sub.TenantID),
			logger.BillingEvent(string(st.trigger)),
			logger.Transition(string(st.from), string(st.to)),
		)
	}
	return len(steps) > 0, nil
}
