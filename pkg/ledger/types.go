package ledger

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Status of a ledger row. Moves only pending -> paid or pending -> cancelled.
type Status string

const (
	StatusPending   Status = "pending"
	StatusPaid      Status = "paid"
	StatusCancelled Status = "cancelled"
)

// CanMoveTo reports whether s may change to next.
func (s Status) CanMoveTo(next Status) bool {
	return s == StatusPending && (next == StatusPaid || next == StatusCancelled)
}

// Entry is money received by the salon.
type Entry struct {
	ID              uuid.UUID       `json:"id"`
	TenantID        uuid.UUID       `json:"tenant_id"`
	Description     string          `json:"description"`
	Amount          decimal.Decimal `json:"amount"`
	Date            time.Time       `json:"date"`
	Status          Status          `json:"status"`
	PaymentMethodID *uuid.UUID      `json:"payment_method_id,omitempty"`
	ClientID        *uuid.UUID      `json:"client_id,omitempty"`
	AppointmentID   *uuid.UUID      `json:"appointment_id,omitempty"`
	DeletedAt       *time.Time      `json:"deleted_at,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// Exit is money spent by the salon.
type Exit struct {
	ID              uuid.UUID       `json:"id"`
	TenantID        uuid.UUID       `json:"tenant_id"`
	Description     string          `json:"description"`
	Category        string          `json:"category,omitempty"`
	Amount          decimal.Decimal `json:"amount"`
	Date            time.Time       `json:"date"`
	Status          Status          `json:"status"`
	PaymentMethodID *uuid.UUID      `json:"payment_method_id,omitempty"`
	DeletedAt       *time.Time      `json:"deleted_at,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// PaymentMethodKind classifies a payment channel.
type PaymentMethodKind string

const (
	KindCash     PaymentMethodKind = "cash"
	KindCredit   PaymentMethodKind = "credit"
	KindDebit    PaymentMethodKind = "debit"
	KindPix      PaymentMethodKind = "pix"
	KindTransfer PaymentMethodKind = "transfer"
	KindOther    PaymentMethodKind = "other"
)

type PaymentMethod struct {
	ID        uuid.UUID         `json:"id"`
	TenantID  uuid.UUID         `json:"tenant_id"`
	Name      string            `json:"name"`
	Kind      PaymentMethodKind `json:"kind"`
	Active    bool              `json:"active"`
	DeletedAt *time.Time        `json:"deleted_at,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// Professional is a staff member paid by commission.
type Professional struct {
	ID             uuid.UUID       `json:"id"`
	TenantID       uuid.UUID       `json:"tenant_id"`
	Name           string          `json:"name"`
	CommissionRate decimal.Decimal `json:"commission_rate"` // percent
	Active         bool            `json:"active"`
	DeletedAt      *time.Time      `json:"deleted_at,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

type AppointmentStatus string

const (
	AppointmentScheduled AppointmentStatus = "scheduled"
	AppointmentCompleted AppointmentStatus = "completed"
	AppointmentCancelled AppointmentStatus = "cancelled"
	AppointmentNoShow    AppointmentStatus = "no_show"
)

type Appointment struct {
	ID             uuid.UUID         `json:"id"`
	TenantID       uuid.UUID         `json:"tenant_id"`
	ProfessionalID uuid.UUID         `json:"professional_id"`
	ClientID       *uuid.UUID        `json:"client_id,omitempty"`
	StartsAt       time.Time         `json:"starts_at"`
	Status         AppointmentStatus `json:"status"`
	PriceCharged   decimal.Decimal   `json:"price_charged"`
	DeletedAt      *time.Time        `json:"deleted_at,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
}

// Window is an inclusive calendar-date range. A zero bound is open.
type Window struct {
	From time.Time
	To   time.Time
}

// Contains reports whether day falls inside w.
func (w Window) Contains(day time.Time) bool {
	day = Day(day)
	if !w.From.IsZero() && day.Before(Day(w.From)) {
		return false
	}
	if !w.To.IsZero() && day.After(Day(w.To)) {
		return false
	}
	return true
}

// Day truncates t to its UTC calendar date.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ListFilter narrows entry and exit listings.
type ListFilter struct {
	Window         Window
	Status         Status // empty matches all
	IncludeDeleted bool
}
