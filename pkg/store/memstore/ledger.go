package memstore

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/salonkit/billingcore/pkg/apperr"
	"github.com/salonkit/billingcore/pkg/ledger"
)

func liveEntries(s *Store, tenantID uuid.UUID, w ledger.Window) []ledger.Entry {
	return lo.Filter(lo.Values(s.entries), func(e ledger.Entry, _ int) bool {
		return e.TenantID == tenantID && e.DeletedAt == nil && w.Contains(e.Date)
	})
}

func liveExits(s *Store, tenantID uuid.UUID, w ledger.Window) []ledger.Exit {
	return lo.Filter(lo.Values(s.exits), func(e ledger.Exit, _ int) bool {
		return e.TenantID == tenantID && e.DeletedAt == nil && w.Contains(e.Date)
	})
}

func totals[T any](rows []T, status func(T) ledger.Status, amount func(T) decimal.Decimal) ledger.StatusTotals {
	out := make(ledger.StatusTotals)
	for _, r := range rows {
		t := out[status(r)]
		t.Total = t.Total.Add(amount(r))
		t.Count++
		out[status(r)] = t
	}
	return out
}

func (s *Store) EntryTotals(_ context.Context, tenantID uuid.UUID, w ledger.Window) (ledger.StatusTotals, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return totals(liveEntries(s, tenantID, w),
		func(e ledger.Entry) ledger.Status { return e.Status },
		func(e ledger.Entry) decimal.Decimal { return e.Amount },
	), nil
}

func (s *Store) ExitTotals(_ context.Context, tenantID uuid.UUID, w ledger.Window) (ledger.StatusTotals, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return totals(liveExits(s, tenantID, w),
		func(e ledger.Exit) ledger.Status { return e.Status },
		func(e ledger.Exit) decimal.Decimal { return e.Amount },
	), nil
}

func (s *Store) PaidEntriesByMethod(_ context.Context, tenantID uuid.UUID, w ledger.Window) ([]ledger.MethodTotal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	paid := lo.Filter(liveEntries(s, tenantID, w), func(e ledger.Entry, _ int) bool {
		return e.Status == ledger.StatusPaid && e.PaymentMethodID != nil
	})
	byMethod := lo.GroupBy(paid, func(e ledger.Entry) uuid.UUID { return *e.PaymentMethodID })

	out := make([]ledger.MethodTotal, 0, len(byMethod))
	for id, rows := range byMethod {
		out = append(out, ledger.MethodTotal{
			PaymentMethodID: id,
			Name:            s.methods[id].Name,
			Total:           lo.Reduce(rows, func(acc decimal.Decimal, e ledger.Entry, _ int) decimal.Decimal { return acc.Add(e.Amount) }, decimal.Zero),
			Count:           int64(len(rows)),
		})
	}
	slices.SortFunc(out, func(a, b ledger.MethodTotal) int {
		if c := strings.Compare(a.Name, b.Name); c != 0 {
			return c
		}
		return strings.Compare(a.PaymentMethodID.String(), b.PaymentMethodID.String())
	})
	return out, nil
}

func (s *Store) PaidEntriesByDay(_ context.Context, tenantID uuid.UUID, w ledger.Window) ([]ledger.DayTotal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	paid := lo.Filter(liveEntries(s, tenantID, w), func(e ledger.Entry, _ int) bool {
		return e.Status == ledger.StatusPaid
	})
	byDay := lo.GroupBy(paid, func(e ledger.Entry) time.Time { return ledger.Day(e.Date) })

	out := make([]ledger.DayTotal, 0, len(byDay))
	for day, rows := range byDay {
		out = append(out, ledger.DayTotal{
			Day:   day,
			Total: lo.Reduce(rows, func(acc decimal.Decimal, e ledger.Entry, _ int) decimal.Decimal { return acc.Add(e.Amount) }, decimal.Zero),
			Count: int64(len(rows)),
		})
	}
	slices.SortFunc(out, func(a, b ledger.DayTotal) int { return a.Day.Compare(b.Day) })
	return out, nil
}

func (s *Store) CommissionBase(_ context.Context, tenantID uuid.UUID, w ledger.Window) ([]ledger.ProfessionalRevenue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pros := lo.Filter(lo.Values(s.professionals), func(p ledger.Professional, _ int) bool {
		return p.TenantID == tenantID && p.Active && p.DeletedAt == nil
	})
	done := lo.Filter(lo.Values(s.appointments), func(a ledger.Appointment, _ int) bool {
		return a.TenantID == tenantID && a.DeletedAt == nil &&
			a.Status == ledger.AppointmentCompleted && w.Contains(a.StartsAt)
	})
	byPro := lo.GroupBy(done, func(a ledger.Appointment) uuid.UUID { return a.ProfessionalID })

	out := lo.Map(pros, func(p ledger.Professional, _ int) ledger.ProfessionalRevenue {
		rows := byPro[p.ID]
		return ledger.ProfessionalRevenue{
			ProfessionalID: p.ID,
			Name:           p.Name,
			CommissionRate: p.CommissionRate,
			Revenue:        lo.Reduce(rows, func(acc decimal.Decimal, a ledger.Appointment, _ int) decimal.Decimal { return acc.Add(a.PriceCharged) }, decimal.Zero),
			Appointments:   int64(len(rows)),
		}
	})
	slices.SortFunc(out, func(a, b ledger.ProfessionalRevenue) int {
		if c := strings.Compare(a.Name, b.Name); c != 0 {
			return c
		}
		return strings.Compare(a.ProfessionalID.String(), b.ProfessionalID.String())
	})
	return out, nil
}

func (s *Store) InsertEntry(_ context.Context, tenantID uuid.UUID, e *ledger.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireTenant(tenantID); err != nil {
		return err
	}
	e.TenantID = tenantID
	s.entries[e.ID] = *e
	return nil
}

func (s *Store) GetEntry(_ context.Context, tenantID, id uuid.UUID) (*ledger.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok || e.TenantID != tenantID || e.DeletedAt != nil {
		return nil, apperr.NotFound("entry not found")
	}
	return &e, nil
}

func (s *Store) ListEntries(_ context.Context, tenantID uuid.UUID, f ledger.ListFilter) ([]ledger.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := lo.Filter(lo.Values(s.entries), func(e ledger.Entry, _ int) bool {
		return e.TenantID == tenantID && f.Window.Contains(e.Date) &&
			(f.IncludeDeleted || e.DeletedAt == nil) &&
			(f.Status == "" || e.Status == f.Status)
	})
	slices.SortFunc(out, func(a, b ledger.Entry) int {
		if c := b.Date.Compare(a.Date); c != 0 {
			return c
		}
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return out, nil
}

func (s *Store) SetEntryStatus(_ context.Context, tenantID, id uuid.UUID, next ledger.Status, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok || e.TenantID != tenantID || e.DeletedAt != nil {
		return apperr.NotFound("entry not found")
	}
	if !e.Status.CanMoveTo(next) {
		return ledger.ErrStatusFinal
	}
	e.Status, e.UpdatedAt = next, at
	s.entries[id] = e
	return nil
}

func (s *Store) UpdateEntryDescription(_ context.Context, tenantID, id uuid.UUID, description string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok || e.TenantID != tenantID || e.DeletedAt != nil {
		return apperr.NotFound("entry not found")
	}
	e.Description, e.UpdatedAt = description, at
	s.entries[id] = e
	return nil
}

func (s *Store) SoftDeleteEntry(_ context.Context, tenantID, id uuid.UUID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok || e.TenantID != tenantID || e.DeletedAt != nil {
		return apperr.NotFound("entry not found")
	}
	e.DeletedAt, e.UpdatedAt = &at, at
	s.entries[id] = e
	return nil
}

func (s *Store) InsertExit(_ context.Context, tenantID uuid.UUID, e *ledger.Exit) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireTenant(tenantID); err != nil {
		return err
	}
	e.TenantID = tenantID
	s.exits[e.ID] = *e
	return nil
}

func (s *Store) GetExit(_ context.Context, tenantID, id uuid.UUID) (*ledger.Exit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.exits[id]
	if !ok || e.TenantID != tenantID || e.DeletedAt != nil {
		return nil, apperr.NotFound("exit not found")
	}
	return &e, nil
}

func (s *Store) ListExits(_ context.Context, tenantID uuid.UUID, f ledger.ListFilter) ([]ledger.Exit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := lo.Filter(lo.Values(s.exits), func(e ledger.Exit, _ int) bool {
		return e.TenantID == tenantID && f.Window.Contains(e.Date) &&
			(f.IncludeDeleted || e.DeletedAt == nil) &&
			(f.Status == "" || e.Status == f.Status)
	})
	slices.SortFunc(out, func(a, b ledger.Exit) int {
		if c := b.Date.Compare(a.Date); c != 0 {
			return c
		}
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return out, nil
}

func (s *Store) SetExitStatus(_ context.Context, tenantID, id uuid.UUID, next ledger.Status, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.exits[id]
	if !ok || e.TenantID != tenantID || e.DeletedAt != nil {
		return apperr.NotFound("exit not found")
	}
	if !e.Status.CanMoveTo(next) {
		return ledger.ErrStatusFinal
	}
	e.Status, e.UpdatedAt = next, at
	s.exits[id] = e
	return nil
}

func (s *Store) UpdateExitDetails(_ context.Context, tenantID, id uuid.UUID, description, category string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.exits[id]
	if !ok || e.TenantID != tenantID || e.DeletedAt != nil {
		return apperr.NotFound("exit not found")
	}
	e.Description, e.Category, e.UpdatedAt = description, category, at
	s.exits[id] = e
	return nil
}

func (s *Store) SoftDeleteExit(_ context.Context, tenantID, id uuid.UUID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.exits[id]
	if !ok || e.TenantID != tenantID || e.DeletedAt != nil {
		return apperr.NotFound("exit not found")
	}
	e.DeletedAt, e.UpdatedAt = &at, at
	s.exits[id] = e
	return nil
}

func (s *Store) InsertPaymentMethod(_ context.Context, tenantID uuid.UUID, pm *ledger.PaymentMethod) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireTenant(tenantID); err != nil {
		return err
	}
	pm.TenantID = tenantID
	s.methods[pm.ID] = *pm
	return nil
}

func (s *Store) GetPaymentMethod(_ context.Context, tenantID, id uuid.UUID) (*ledger.PaymentMethod, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pm, ok := s.methods[id]
	if !ok || pm.TenantID != tenantID || pm.DeletedAt != nil {
		return nil, apperr.NotFound("payment method not found")
	}
	return &pm, nil
}

func (s *Store) ListPaymentMethods(_ context.Context, tenantID uuid.UUID, includeDeleted bool) ([]ledger.PaymentMethod, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := lo.Filter(lo.Values(s.methods), func(pm ledger.PaymentMethod, _ int) bool {
		return pm.TenantID == tenantID && (includeDeleted || pm.DeletedAt == nil)
	})
	slices.SortFunc(out, func(a, b ledger.PaymentMethod) int { return strings.Compare(a.Name, b.Name) })
	return out, nil
}

func (s *Store) SoftDeletePaymentMethod(_ context.Context, tenantID, id uuid.UUID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	pm, ok := s.methods[id]
	if !ok || pm.TenantID != tenantID || pm.DeletedAt != nil {
		return apperr.NotFound("payment method not found")
	}
	pm.DeletedAt, pm.Active = &at, false
	s.methods[id] = pm
	return nil
}

func (s *Store) InsertProfessional(_ context.Context, tenantID uuid.UUID, p *ledger.Professional) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireTenant(tenantID); err != nil {
		return err
	}
	p.TenantID = tenantID
	s.professionals[p.ID] = *p
	return nil
}

func (s *Store) CountProfessionals(_ context.Context, tenantID uuid.UUID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return int64(lo.CountBy(lo.Values(s.professionals), func(p ledger.Professional) bool {
		return p.TenantID == tenantID && p.DeletedAt == nil
	})), nil
}

func (s *Store) InsertAppointment(_ context.Context, tenantID uuid.UUID, a *ledger.Appointment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireTenant(tenantID); err != nil {
		return err
	}
	p, ok := s.professionals[a.ProfessionalID]
	if !ok || p.TenantID != tenantID {
		return apperr.NotFound("professional not found")
	}
	a.TenantID = tenantID
	s.appointments[a.ID] = *a
	return nil
}

func (s *Store) CountAppointmentsInMonth(_ context.Context, tenantID uuid.UUID, month time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m := month.UTC()
	from := time.Date(m.Year(), m.Month(), 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, 0)
	return int64(lo.CountBy(lo.Values(s.appointments), func(a ledger.Appointment) bool {
		return a.TenantID == tenantID && a.DeletedAt == nil &&
			a.Status != ledger.AppointmentCancelled &&
			!a.StartsAt.Before(from) && a.StartsAt.Before(to)
	})), nil
}
