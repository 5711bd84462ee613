package subscription

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/salonkit/billingcore/pkg/plan"
)

// Status is the lifecycle state of a subscription.
type Status string

const (
	StatusTrial     Status = "trial"
	StatusActive    Status = "active"
	StatusPastDue   Status = "past_due"
	StatusSuspended Status = "suspended"
	StatusCancelled Status = "cancelled"
	StatusExpired   Status = "expired"
)

// Terminal statuses are never left.
func (s Status) Terminal() bool {
	return s == StatusCancelled || s == StatusExpired
}

// Blocking statuses deny writes to tenant-scoped business records.
func (s Status) Blocking() bool {
	switch s {
	case StatusPastDue, StatusSuspended, StatusCancelled, StatusExpired:
		return true
	default:
		return false
	}
}

func (s Status) Valid() bool {
	switch s {
	case StatusTrial, StatusActive, StatusPastDue, StatusSuspended, StatusCancelled, StatusExpired:
		return true
	default:
		return false
	}
}

// Subscription is one tenant's subscription row.
type Subscription struct {
	ID                 uuid.UUID     `json:"id"`
	TenantID           uuid.UUID     `json:"tenant_id"`
	PlanID             string        `json:"plan_id"`
	Status             Status        `json:"status"`
	Interval           plan.Interval `json:"interval"`
	TrialEndsAt        time.Time     `json:"trial_ends_at"`
	CurrentPeriodStart *time.Time    `json:"current_period_start,omitempty"`
	CurrentPeriodEnd   *time.Time    `json:"current_period_end,omitempty"`
	PastDueSince       *time.Time    `json:"past_due_since,omitempty"`
	// Price is frozen at the last successful charge and is not recomputed
	// when the plan changes.
	Price             decimal.Decimal `json:"price"`
	CancelAtPeriodEnd bool            `json:"cancel_at_period_end"`
	CancelledAt       *time.Time      `json:"cancelled_at,omitempty"`
	SuspendedAt       *time.Time      `json:"suspended_at,omitempty"`
	Version           int64           `json:"version"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// CancelAt is when a pending deferred cancellation takes effect: the end of
// the current period, or the end of the trial for trials.
func (s *Subscription) CancelAt() (time.Time, bool) {
	if !s.CancelAtPeriodEnd {
		return time.Time{}, false
	}
	if s.Status == StatusTrial || s.CurrentPeriodEnd == nil {
		return s.TrialEndsAt, true
	}
	return *s.CurrentPeriodEnd, true
}

// MonthlyPrice is the price snapshot normalized to one month.
func (s *Subscription) MonthlyPrice() decimal.Decimal {
	return plan.MonthlyAmount(s.Price, s.Interval)
}

func (s *Subscription) clone() *Subscription {
	if s == nil {
		return nil
	}
	cp := *s
	cp.CurrentPeriodStart = cloneTime(s.CurrentPeriodStart)
	cp.CurrentPeriodEnd = cloneTime(s.CurrentPeriodEnd)
	cp.PastDueSince = cloneTime(s.PastDueSince)
	cp.CancelledAt = cloneTime(s.CancelledAt)
	cp.SuspendedAt = cloneTime(s.SuspendedAt)
	return &cp
}

// Clone returns a deep copy. Stores use it to hand out detached rows.
func (s *Subscription) Clone() *Subscription { return s.clone() }

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func timePtr(t time.Time) *time.Time { return &t }

// InvoiceStatus is the payment state of an invoice. Paid is final.
type InvoiceStatus string

const (
	InvoicePending   InvoiceStatus = "pending"
	InvoicePaid      InvoiceStatus = "paid"
	InvoiceOverdue   InvoiceStatus = "overdue"
	InvoiceCancelled InvoiceStatus = "cancelled"
)

// Open invoices still await payment.
func (s InvoiceStatus) Open() bool {
	return s == InvoicePending || s == InvoiceOverdue
}

// Invoice is one billing-cycle charge.
type Invoice struct {
	ID             uuid.UUID       `json:"id"`
	TenantID       uuid.UUID       `json:"tenant_id"`
	SubscriptionID uuid.UUID       `json:"subscription_id"`
	EventID        string          `json:"event_id"`
	Amount         decimal.Decimal `json:"amount"`
	DueDate        time.Time       `json:"due_date"`
	PaidAt         *time.Time      `json:"paid_at,omitempty"`
	Status         InvoiceStatus   `json:"status"`
	Attempts       int             `json:"attempts"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// EventRecord is the audit and idempotency log entry of one applied event.
type EventRecord struct {
	TenantID       uuid.UUID `json:"tenant_id"`
	SubscriptionID uuid.UUID `json:"subscription_id"`
	EventID        string    `json:"event_id"`
	Type           EventType `json:"type"`
	From           Status    `json:"from"`
	To             Status    `json:"to"`
	Reason         string    `json:"reason,omitempty"`
	AppliedAt      time.Time `json:"applied_at"`
}
