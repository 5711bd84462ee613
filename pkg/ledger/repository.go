package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Reader holds the aggregate queries behind the reports. Results are sparse:
// groups without rows are not returned.
type Reader interface {
	EntryTotals(ctx context.Context, tenantID uuid.UUID, w Window) (StatusTotals, error)
	ExitTotals(ctx context.Context, tenantID uuid.UUID, w Window) (StatusTotals, error)
	// PaidEntriesByMethod covers paid entries with a payment method only.
	PaidEntriesByMethod(ctx context.Context, tenantID uuid.UUID, w Window) ([]MethodTotal, error)
	PaidEntriesByDay(ctx context.Context, tenantID uuid.UUID, w Window) ([]DayTotal, error)
	// CommissionBase returns every active professional with the revenue of
	// their completed appointments in w, including professionals with none.
	CommissionBase(ctx context.Context, tenantID uuid.UUID, w Window) ([]ProfessionalRevenue, error)
}

// Writer holds the tenant-scoped row operations.
type Writer interface {
	InsertEntry(ctx context.Context, tenantID uuid.UUID, e *Entry) error
	GetEntry(ctx context.Context, tenantID, id uuid.UUID) (*Entry, error)
	ListEntries(ctx context.Context, tenantID uuid.UUID, f ListFilter) ([]Entry, error)
	// SetEntryStatus moves a pending entry to next. Fails with
	// ErrStatusFinal when the entry is no longer pending.
	SetEntryStatus(ctx context.Context, tenantID, id uuid.UUID, next Status, at time.Time) error
	UpdateEntryDescription(ctx context.Context, tenantID, id uuid.UUID, description string, at time.Time) error
	SoftDeleteEntry(ctx context.Context, tenantID, id uuid.UUID, at time.Time) error

	InsertExit(ctx context.Context, tenantID uuid.UUID, e *Exit) error
	GetExit(ctx context.Context, tenantID, id uuid.UUID) (*Exit, error)
	ListExits(ctx context.Context, tenantID uuid.UUID, f ListFilter) ([]Exit, error)
	SetExitStatus(ctx context.Context, tenantID, id uuid.UUID, next Status, at time.Time) error
	UpdateExitDetails(ctx context.Context, tenantID, id uuid.UUID, description, category string, at time.Time) error
	SoftDeleteExit(ctx context.Context, tenantID, id uuid.UUID, at time.Time) error

	InsertPaymentMethod(ctx context.Context, tenantID uuid.UUID, pm *PaymentMethod) error
	GetPaymentMethod(ctx context.Context, tenantID, id uuid.UUID) (*PaymentMethod, error)
	ListPaymentMethods(ctx context.Context, tenantID uuid.UUID, includeDeleted bool) ([]PaymentMethod, error)
	SoftDeletePaymentMethod(ctx context.Context, tenantID, id uuid.UUID, at time.Time) error

	InsertProfessional(ctx context.Context, tenantID uuid.UUID, p *Professional) error
	CountProfessionals(ctx context.Context, tenantID uuid.UUID) (int64, error)
	InsertAppointment(ctx context.Context, tenantID uuid.UUID, a *Appointment) error
	CountAppointmentsInMonth(ctx context.Context, tenantID uuid.UUID, month time.Time) (int64, error)
}

// Repository is the full tenant-scoped ledger store.
type Repository interface {
	Reader
	Writer
}
