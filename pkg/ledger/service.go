package ledger

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/salonkit/billingcore/pkg/apperr"
	"github.com/salonkit/billingcore/pkg/logger"
	"github.com/salonkit/billingcore/pkg/validate"
	"github.com/salonkit/billingcore/pkg/writegate"
)

// WriteAuthorizer admits mutations. *writegate.Gate implements it.
type WriteAuthorizer interface {
	AuthorizeCreate(ctx context.Context, tenantID uuid.UUID, kind writegate.ResourceKind) error
	AuthorizeWrite(ctx context.Context, tenantID uuid.UUID, kind writegate.ResourceKind) error
}

// EntryInput is a new financial entry.
type EntryInput struct {
	Description     string          `json:"description" validate:"required,max=255"`
	Amount          decimal.Decimal `json:"amount" validate:"gte=0"`
	Date            time.Time       `json:"date" validate:"required"`
	Status          Status          `json:"status" validate:"omitempty,oneof=pending paid"`
	PaymentMethodID *uuid.UUID      `json:"payment_method_id"`
	ClientID        *uuid.UUID      `json:"client_id"`
	AppointmentID   *uuid.UUID      `json:"appointment_id"`
}

// ExitInput is a new financial exit.
type ExitInput struct {
	Description     string          `json:"description" validate:"required,max=255"`
	Category        string          `json:"category" validate:"max=100"`
	Amount          decimal.Decimal `json:"amount" validate:"gte=0"`
	Date            time.Time       `json:"date" validate:"required"`
	Status          Status          `json:"status" validate:"omitempty,oneof=pending paid"`
	PaymentMethodID *uuid.UUID      `json:"payment_method_id"`
}

// PaymentMethodInput is a new payment channel.
type PaymentMethodInput struct {
	Name string            `json:"name" validate:"required,max=100"`
	Kind PaymentMethodKind `json:"kind" validate:"oneof=cash credit debit pix transfer other"`
}

// Service performs tenant ledger writes. Every call passes the write gate
// before validation and storage.
type Service struct {
	repo     Repository
	gate     WriteAuthorizer
	validate *validate.Validator
	now      func() time.Time
	log      *slog.Logger
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

func WithServiceClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

func WithServiceLogger(l *slog.Logger) ServiceOption {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

// NewService creates a Service.
func NewService(repo Repository, gate WriteAuthorizer, opts ...ServiceOption) *Service {
	s := &Service{
		repo:     repo,
		gate:     gate,
		validate: validate.New(),
		now:      time.Now,
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// admitCreate gates a new record, plan limits included.
func (s *Service) admitCreate(ctx context.Context, tenantID uuid.UUID, kind writegate.ResourceKind, input any) error {
	if err := s.gate.AuthorizeCreate(ctx, tenantID, kind); err != nil {
		return err
	}
	return s.validate.Struct(input)
}

func (s *Service) admit(ctx context.Context, tenantID uuid.UUID, kind writegate.ResourceKind, input any) error {
	if err := s.gate.AuthorizeWrite(ctx, tenantID, kind); err != nil {
		return err
	}
	if input == nil {
		return nil
	}
	return s.validate.Struct(input)
}

// RecordEntry stores a new entry. A payment method, when given, must belong
// to the tenant.
func (s *Service) RecordEntry(ctx context.Context, tenantID uuid.UUID, in EntryInput) (*Entry, error) {
	if err := s.admitCreate(ctx, tenantID, writegate.KindFinancialEntries, in); err != nil {
		return nil, err
	}
	if err := s.checkPaymentMethod(ctx, tenantID, in.PaymentMethodID); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	e := &Entry{
		ID:              uuid.New(),
		TenantID:        tenantID,
		Description:     strings.TrimSpace(in.Description),
		Amount:          in.Amount,
		Date:            Day(in.Date),
		Status:          defaultStatus(in.Status),
		PaymentMethodID: in.PaymentMethodID,
		ClientID:        in.ClientID,
		AppointmentID:   in.AppointmentID,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.repo.InsertEntry(ctx, tenantID, e); err != nil {
		return nil, apperr.Storage(err, "insert entry")
	}
	s.log.DebugContext(ctx, "entry recorded", logger.TenantID(tenantID), slog.String("entry_id", e.ID.String()))
	return e, nil
}

// RecordExit stores a new exit.
func (s *Service) RecordExit(ctx context.Context, tenantID uuid.UUID, in ExitInput) (*Exit, error) {
	if err := s.admitCreate(ctx, tenantID, writegate.KindFinancialExits, in); err != nil {
		return nil, err
	}
	if err := s.checkPaymentMethod(ctx, tenantID, in.PaymentMethodID); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	e := &Exit{
		ID:              uuid.New(),
		TenantID:        tenantID,
		Description:     strings.TrimSpace(in.Description),
		Category:        strings.TrimSpace(in.Category),
		Amount:          in.Amount,
		Date:            Day(in.Date),
		Status:          defaultStatus(in.Status),
		PaymentMethodID: in.PaymentMethodID,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.repo.InsertExit(ctx, tenantID, e); err != nil {
		return nil, apperr.Storage(err, "insert exit")
	}
	return e, nil
}

func (s *Service) SettleEntry(ctx context.Context, tenantID, id uuid.UUID) error {
	return s.moveEntry(ctx, tenantID, id, StatusPaid)
}

func (s *Service) CancelEntry(ctx context.Context, tenantID, id uuid.UUID) error {
	return s.moveEntry(ctx, tenantID, id, StatusCancelled)
}

func (s *Service) SettleExit(ctx context.Context, tenantID, id uuid.UUID) error {
	return s.moveExit(ctx, tenantID, id, StatusPaid)
}

func (s *Service) CancelExit(ctx context.Context, tenantID, id uuid.UUID) error {
	return s.moveExit(ctx, tenantID, id, StatusCancelled)
}

func (s *Service) moveEntry(ctx context.Context, tenantID, id uuid.UUID, next Status) error {
	if err := s.admit(ctx, tenantID, writegate.KindFinancialEntries, nil); err != nil {
		return err
	}
	return apperr.Storage(s.repo.SetEntryStatus(ctx, tenantID, id, next, s.now().UTC()), "set entry status")
}

func (s *Service) moveExit(ctx context.Context, tenantID, id uuid.UUID, next Status) error {
	if err := s.admit(ctx, tenantID, writegate.KindFinancialExits, nil); err != nil {
		return err
	}
	return apperr.Storage(s.repo.SetExitStatus(ctx, tenantID, id, next, s.now().UTC()), "set exit status")
}

// EditEntry changes the description, the only editable field of an entry.
func (s *Service) EditEntry(ctx context.Context, tenantID, id uuid.UUID, description string) error {
	in := struct {
		Description string `json:"description" validate:"required,max=255"`
	}{strings.TrimSpace(description)}
	if err := s.admit(ctx, tenantID, writegate.KindFinancialEntries, in); err != nil {
		return err
	}
	return apperr.Storage(s.repo.UpdateEntryDescription(ctx, tenantID, id, in.Description, s.now().UTC()), "edit entry")
}

// EditExit changes the description and category of an exit.
func (s *Service) EditExit(ctx context.Context, tenantID, id uuid.UUID, description, category string) error {
	in := struct {
		Description string `json:"description" validate:"required,max=255"`
		Category    string `json:"category" validate:"max=100"`
	}{strings.TrimSpace(description), strings.TrimSpace(category)}
	if err := s.admit(ctx, tenantID, writegate.KindFinancialExits, in); err != nil {
		return err
	}
	return apperr.Storage(s.repo.UpdateExitDetails(ctx, tenantID, id, in.Description, in.Category, s.now().UTC()), "edit exit")
}

// DeleteEntry soft-deletes an entry.
func (s *Service) DeleteEntry(ctx context.Context, tenantID, id uuid.UUID) error {
	if err := s.admit(ctx, tenantID, writegate.KindFinancialEntries, nil); err != nil {
		return err
	}
	return apperr.Storage(s.repo.SoftDeleteEntry(ctx, tenantID, id, s.now().UTC()), "delete entry")
}

// DeleteExit soft-deletes an exit.
func (s *Service) DeleteExit(ctx context.Context, tenantID, id uuid.UUID) error {
	if err := s.admit(ctx, tenantID, writegate.KindFinancialExits, nil); err != nil {
		return err
	}
	return apperr.Storage(s.repo.SoftDeleteExit(ctx, tenantID, id, s.now().UTC()), "delete exit")
}

// AddPaymentMethod registers an active payment channel.
func (s *Service) AddPaymentMethod(ctx context.Context, tenantID uuid.UUID, in PaymentMethodInput) (*PaymentMethod, error) {
	if err := s.admitCreate(ctx, tenantID, writegate.KindPaymentMethods, in); err != nil {
		return nil, err
	}
	pm := &PaymentMethod{
		ID:        uuid.New(),
		TenantID:  tenantID,
		Name:      strings.TrimSpace(in.Name),
		Kind:      in.Kind,
		Active:    true,
		CreatedAt: s.now().UTC(),
	}
	if err := s.repo.InsertPaymentMethod(ctx, tenantID, pm); err != nil {
		return nil, apperr.Storage(err, "insert payment method")
	}
	return pm, nil
}

// RemovePaymentMethod soft-deletes a payment channel. Entries keep their reference.
func (s *Service) RemovePaymentMethod(ctx context.Context, tenantID, id uuid.UUID) error {
	if err := s.admit(ctx, tenantID, writegate.KindPaymentMethods, nil); err != nil {
		return err
	}
	return apperr.Storage(s.repo.SoftDeletePaymentMethod(ctx, tenantID, id, s.now().UTC()), "delete payment method")
}

func (s *Service) checkPaymentMethod(ctx context.Context, tenantID uuid.UUID, id *uuid.UUID) error {
	if id == nil {
		return nil
	}
	pm, err := s.repo.GetPaymentMethod(ctx, tenantID, *id)
	if err != nil {
		if apperr.CodeOf(err) == apperr.CodeNotFound {
			return apperr.ValidationFields(err, map[string]string{"payment_method_id": "exists"})
		}
		return apperr.Storage(err, "get payment method")
	}
	if !pm.Active {
		return apperr.ValidationFields(nil, map[string]string{"payment_method_id": "active"})
	}
	return nil
}

func defaultStatus(s Status) Status {
	if s == "" {
		return StatusPending
	}
	return s
}
