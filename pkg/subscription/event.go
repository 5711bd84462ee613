package subscription

import (
	"time"

	"github.com/shopspring/decimal"
)

// EventType names a billing event or a time-driven trigger.
type EventType string

const (
	EventPaymentSucceeded    EventType = "payment_succeeded"
	EventPaymentFailed       EventType = "payment_failed"
	EventCancelRequested     EventType = "cancel_requested"
	EventReactivateRequested EventType = "reactivate_requested"
	EventAdminSuspend        EventType = "admin_suspend"

	// Time-driven triggers, recorded when a due transition is materialized.
	EventTrialEnded  EventType = "trial_ended"
	EventGraceEnded  EventType = "grace_ended"
	EventPeriodEnded EventType = "period_ended"
)

// Event is a canonical billing event, already translated from the payment
// provider's payload.
type Event struct {
	// ID is the idempotency key. Replays with the same ID are no-ops.
	ID   string    `json:"id" validate:"required,max=255"`
	Type EventType `json:"type" validate:"oneof=payment_succeeded payment_failed cancel_requested reactivate_requested admin_suspend"`
	// Immediately applies to cancel_requested only.
	Immediately bool `json:"immediately"`
	// Amount charged. Defaults to the subscription's price snapshot.
	Amount decimal.NullDecimal `json:"amount"`
	Reason string              `json:"reason,omitempty" validate:"max=500"`
	// OccurredAt is informational; transitions are evaluated at the machine's clock.
	OccurredAt time.Time `json:"occurred_at"`
}
