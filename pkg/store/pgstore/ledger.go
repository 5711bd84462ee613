package pgstore

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/salonkit/billingcore/pkg/apperr"
	"github.com/salonkit/billingcore/pkg/ledger"
	"github.com/salonkit/billingcore/pkg/pg"
)

// windowSQL filters column on an inclusive date window; $2 and $3 are the bounds.
func windowSQL(column string) string {
	return `($2::date IS NULL OR ` + column + ` >= $2::date) AND ($3::date IS NULL OR ` + column + ` <= $3::date)`
}

func (s *Store) statusTotals(ctx context.Context, table string, tenantID uuid.UUID, w ledger.Window) (ledger.StatusTotals, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT status, COALESCE(SUM(amount), 0), COUNT(*)
		FROM `+table+`
		WHERE tenant_id = $1 AND deleted_at IS NULL AND `+windowSQL("date")+`
		GROUP BY status`,
		tenantID, dateArg(w.From), dateArg(w.To))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(ledger.StatusTotals)
	for rows.Next() {
		var (
			status ledger.Status
			sum    pgtype.Numeric
			count  int64
		)
		if err := rows.Scan(&status, &sum, &count); err != nil {
			return nil, err
		}
		out[status] = ledger.Total{Total: fromNumeric(sum), Count: count}
	}
	return out, rows.Err()
}

func (s *Store) EntryTotals(ctx context.Context, tenantID uuid.UUID, w ledger.Window) (ledger.StatusTotals, error) {
	return s.statusTotals(ctx, "financial_entries", tenantID, w)
}

func (s *Store) ExitTotals(ctx context.Context, tenantID uuid.UUID, w ledger.Window) (ledger.StatusTotals, error) {
	return s.statusTotals(ctx, "financial_exits", tenantID, w)
}

func (s *Store) PaidEntriesByMethod(ctx context.Context, tenantID uuid.UUID, w ledger.Window) ([]ledger.MethodTotal, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT pm.id, pm.name, SUM(e.amount), COUNT(*)
		FROM financial_entries e
		JOIN payment_methods pm ON pm.id = e.payment_method_id AND pm.tenant_id = e.tenant_id
		WHERE e.tenant_id = $1 AND e.deleted_at IS NULL AND e.status = 'paid' AND `+windowSQL("e.date")+`
		GROUP BY pm.id, pm.name
		ORDER BY pm.name, pm.id::text`,
		tenantID, dateArg(w.From), dateArg(w.To))
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (ledger.MethodTotal, error) {
		var (
			m   ledger.MethodTotal
			sum pgtype.Numeric
		)
		err := row.Scan(&m.PaymentMethodID, &m.Name, &sum, &m.Count)
		m.Total = fromNumeric(sum)
		return m, err
	})
}

func (s *Store) PaidEntriesByDay(ctx context.Context, tenantID uuid.UUID, w ledger.Window) ([]ledger.DayTotal, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT date, SUM(amount), COUNT(*)
		FROM financial_entries
		WHERE tenant_id = $1 AND deleted_at IS NULL AND status = 'paid' AND `+windowSQL("date")+`
		GROUP BY date
		ORDER BY date`,
		tenantID, dateArg(w.From), dateArg(w.To))
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (ledger.DayTotal, error) {
		var (
			d   ledger.DayTotal
			sum pgtype.Numeric
		)
		err := row.Scan(&d.Day, &sum, &d.Count)
		d.Day = ledger.Day(d.Day)
		d.Total = fromNumeric(sum)
		return d, err
	})
}

func (s *Store) CommissionBase(ctx context.Context, tenantID uuid.UUID, w ledger.Window) ([]ledger.ProfessionalRevenue, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT p.id, p.name, p.commission_rate, COALESCE(SUM(a.price_charged), 0), COUNT(a.id)
		FROM professionals p
		LEFT JOIN appointments a
			ON a.professional_id = p.id AND a.tenant_id = p.tenant_id
			AND a.status = 'completed' AND a.deleted_at IS NULL
			AND `+windowSQL("(a.starts_at AT TIME ZONE 'UTC')::date")+`
		WHERE p.tenant_id = $1 AND p.active AND p.deleted_at IS NULL
		GROUP BY p.id, p.name, p.commission_rate
		ORDER BY p.name, p.id::text`,
		tenantID, dateArg(w.From), dateArg(w.To))
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (ledger.ProfessionalRevenue, error) {
		var (
			r             ledger.ProfessionalRevenue
			rate, revenue pgtype.Numeric
		)
		err := row.Scan(&r.ProfessionalID, &r.Name, &rate, &revenue, &r.Appointments)
		r.CommissionRate = fromNumeric(rate)
		r.Revenue = fromNumeric(revenue)
		return r, err
	})
}

const entryColumns = `id, tenant_id, description, amount, date, status, payment_method_id,
	client_id, appointment_id, deleted_at, created_at, updated_at`

func scanEntry(row pgx.Row) (ledger.Entry, error) {
	var (
		e      ledger.Entry
		amount pgtype.Numeric
	)
	err := row.Scan(&e.ID, &e.TenantID, &e.Description, &amount, &e.Date, &e.Status, &e.PaymentMethodID,
		&e.ClientID, &e.AppointmentID, &e.DeletedAt, &e.CreatedAt, &e.UpdatedAt)
	e.Amount = fromNumeric(amount)
	e.Date = ledger.Day(e.Date)
	e.DeletedAt = utc(e.DeletedAt)
	e.CreatedAt, e.UpdatedAt = e.CreatedAt.UTC(), e.UpdatedAt.UTC()
	return e, err
}

func (s *Store) InsertEntry(ctx context.Context, tenantID uuid.UUID, e *ledger.Entry) error {
	e.TenantID = tenantID
	_, err := s.pool.Exec(ctx,
		`INSERT INTO financial_entries (`+entryColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		e.ID, tenantID, e.Description, numeric(e.Amount), ledger.Day(e.Date), e.Status, e.PaymentMethodID,
		e.ClientID, e.AppointmentID, e.DeletedAt, e.CreatedAt, e.UpdatedAt)
	return tenantMissing(err)
}

func (s *Store) GetEntry(ctx context.Context, tenantID, id uuid.UUID) (*ledger.Entry, error) {
	e, err := scanEntry(s.pool.QueryRow(ctx,
		`SELECT `+entryColumns+` FROM financial_entries
		WHERE tenant_id = $1 AND id = $2 AND deleted_at IS NULL`, tenantID, id))
	if pg.IsNotFoundError(err) {
		return nil, apperr.NotFound("entry not found")
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func listArgs(tenantID uuid.UUID, f ledger.ListFilter) []any {
	var status any
	if f.Status != "" {
		status = string(f.Status)
	}
	return []any{tenantID, dateArg(f.Window.From), dateArg(f.Window.To), status, f.IncludeDeleted}
}

func (s *Store) ListEntries(ctx context.Context, tenantID uuid.UUID, f ledger.ListFilter) ([]ledger.Entry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+entryColumns+` FROM financial_entries
		WHERE tenant_id = $1 AND `+windowSQL("date")+`
			AND ($4::text IS NULL OR status = $4::text)
			AND ($5::boolean OR deleted_at IS NULL)
		ORDER BY date DESC, created_at DESC`,
		listArgs(tenantID, f)...)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (ledger.Entry, error) { return scanEntry(row) })
}

// setStatus moves a pending row. Zero affected rows means the row is missing
// or already final; the follow-up lookup tells which.
func (s *Store) setStatus(ctx context.Context, table string, tenantID, id uuid.UUID, next ledger.Status, at time.Time) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE `+table+` SET status = $3, updated_at = $4
		WHERE tenant_id = $1 AND id = $2 AND deleted_at IS NULL AND status = 'pending'`,
		tenantID, id, next, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() > 0 {
		return nil
	}
	var exists bool
	if err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM `+table+` WHERE tenant_id = $1 AND id = $2 AND deleted_at IS NULL)`,
		tenantID, id).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return apperr.NotFound("ledger row not found")
	}
	return ledger.ErrStatusFinal
}

// touch runs an update of one live row and reports NotFound when none matched.
func (s *Store) touch(ctx context.Context, sql string, args ...any) error {
	tag, err := s.pool.Exec(ctx, sql, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("ledger row not found")
	}
	return nil
}

func (s *Store) SetEntryStatus(ctx context.Context, tenantID, id uuid.UUID, next ledger.Status, at time.Time) error {
	if !ledger.StatusPending.CanMoveTo(next) {
		return ledger.ErrStatusFinal
	}
	return s.setStatus(ctx, "financial_entries", tenantID, id, next, at)
}

func (s *Store) UpdateEntryDescription(ctx context.Context, tenantID, id uuid.UUID, description string, at time.Time) error {
	return s.touch(ctx,
		`UPDATE financial_entries SET description = $3, updated_at = $4
		WHERE tenant_id = $1 AND id = $2 AND deleted_at IS NULL`,
		tenantID, id, description, at)
}

func (s *Store) SoftDeleteEntry(ctx context.Context, tenantID, id uuid.UUID, at time.Time) error {
	return s.touch(ctx,
		`UPDATE financial_entries SET deleted_at = $3, updated_at = $3
		WHERE tenant_id = $1 AND id = $2 AND deleted_at IS NULL`,
		tenantID, id, at)
}

const exitColumns = `id, tenant_id, description, category, amount, date, status, payment_method_id,
	deleted_at, created_at, updated_at`

func scanExit(row pgx.Row) (ledger.Exit, error) {
	var (
		e      ledger.Exit
		amount pgtype.Numeric
	)
	err := row.Scan(&e.ID, &e.TenantID, &e.Description, &e.Category, &amount, &e.Date, &e.Status,
		&e.PaymentMethodID, &e.DeletedAt, &e.CreatedAt, &e.UpdatedAt)
	e.Amount = fromNumeric(amount)
	e.Date = ledger.Day(e.Date)
	e.DeletedAt = utc(e.DeletedAt)
	e.CreatedAt, e.UpdatedAt = e.CreatedAt.UTC(), e.UpdatedAt.UTC()
	return e, err
}

func (s *Store) InsertExit(ctx context.Context, tenantID uuid.UUID, e *ledger.Exit) error {
	e.TenantID = tenantID
	_, err := s.pool.Exec(ctx,
		`INSERT INTO financial_exits (`+exitColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		e.ID, tenantID, e.Description, e.Category, numeric(e.Amount), ledger.Day(e.Date), e.Status,
		e.PaymentMethodID, e.DeletedAt, e.CreatedAt, e.UpdatedAt)
	return tenantMissing(err)
}

func (s *Store) GetExit(ctx context.Context, tenantID, id uuid.UUID) (*ledger.Exit, error) {
	e, err := scanExit(s.pool.QueryRow(ctx,
		`SELECT `+exitColumns+` FROM financial_exits
		WHERE tenant_id = $1 AND id = $2 AND deleted_at IS NULL`, tenantID, id))
	if pg.IsNotFoundError(err) {
		return nil, apperr.NotFound("exit not found")
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (s *Store) ListExits(ctx context.Context, tenantID uuid.UUID, f ledger.ListFilter) ([]ledger.Exit, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+exitColumns+` FROM financial_exits
		WHERE tenant_id = $1 AND `+windowSQL("date")+`
			AND ($4::text IS NULL OR status = $4::text)
			AND ($5::boolean OR deleted_at IS NULL)
		ORDER BY date DESC, created_at DESC`,
		listArgs(tenantID, f)...)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (ledger.Exit, error) { return scanExit(row) })
}

func (s *Store) SetExitStatus(ctx context.Context, tenantID, id uuid.UUID, next ledger.Status, at time.Time) error {
	if !ledger.StatusPending.CanMoveTo(next) {
		return ledger.ErrStatusFinal
	}
	return s.setStatus(ctx, "financial_exits", tenantID, id, next, at)
}

func (s *Store) UpdateExitDetails(ctx context.Context, tenantID, id uuid.UUID, description, category string, at time.Time) error {
	return s.touch(ctx,
		`UPDATE financial_exits SET description = $3, category = $4, updated_at = $5
		WHERE tenant_id = $1 AND id = $2 AND deleted_at IS NULL`,
		tenantID, id, description, category, at)
}

func (s *Store) SoftDeleteExit(ctx context.Context, tenantID, id uuid.UUID, at time.Time) error {
	return s.touch(ctx,
		`UPDATE financial_exits SET deleted_at = $3, updated_at = $3
		WHERE tenant_id = $1 AND id = $2 AND deleted_at IS NULL`,
		tenantID, id, at)
}

const methodColumns = `id, tenant_id, name, kind, active, deleted_at, created_at`

func scanMethod(row pgx.Row) (ledger.PaymentMethod, error) {
	var pm ledger.PaymentMethod
	err := row.Scan(&pm.ID, &pm.TenantID, &pm.Name, &pm.Kind, &pm.Active, &pm.DeletedAt, &pm.CreatedAt)
	pm.DeletedAt = utc(pm.DeletedAt)
	pm.CreatedAt = pm.CreatedAt.UTC()
	return pm, err
}

func (s *Store) InsertPaymentMethod(ctx context.Context, tenantID uuid.UUID, pm *ledger.PaymentMethod) error {
	pm.TenantID = tenantID
	_, err := s.pool.Exec(ctx,
		`INSERT INTO payment_methods (`+methodColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		pm.ID, tenantID, pm.Name, pm.Kind, pm.Active, pm.DeletedAt, pm.CreatedAt)
	return tenantMissing(err)
}

func (s *Store) GetPaymentMethod(ctx context.Context, tenantID, id uuid.UUID) (*ledger.PaymentMethod, error) {
	pm, err := scanMethod(s.pool.QueryRow(ctx,
		`SELECT `+methodColumns+` FROM payment_methods
		WHERE tenant_id = $1 AND id = $2 AND deleted_at IS NULL`, tenantID, id))
	if pg.IsNotFoundError(err) {
		return nil, apperr.NotFound("payment method not found")
	}
	if err != nil {
		return nil, err
	}
	return &pm, nil
}

func (s *Store) ListPaymentMethods(ctx context.Context, tenantID uuid.UUID, includeDeleted bool) ([]ledger.PaymentMethod, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+methodColumns+` FROM payment_methods
		WHERE tenant_id = $1 AND ($2::boolean OR deleted_at IS NULL)
		ORDER BY name`, tenantID, includeDeleted)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (ledger.PaymentMethod, error) { return scanMethod(row) })
}

func (s *Store) SoftDeletePaymentMethod(ctx context.Context, tenantID, id uuid.UUID, at time.Time) error {
	return s.touch(ctx,
		`UPDATE payment_methods SET deleted_at = $3, active = false
		WHERE tenant_id = $1 AND id = $2 AND deleted_at IS NULL`,
		tenantID, id, at)
}

func (s *Store) InsertProfessional(ctx context.Context, tenantID uuid.UUID, p *ledger.Professional) error {
	p.TenantID = tenantID
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO professionals (id, tenant_id, name, commission_rate, active, deleted_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		p.ID, tenantID, p.Name, numeric(p.CommissionRate), p.Active, p.DeletedAt, p.CreatedAt)
	return tenantMissing(err)
}

func (s *Store) CountProfessionals(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	var n int64
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM professionals WHERE tenant_id = $1 AND deleted_at IS NULL`,
		tenantID).Scan(&n)
	return n, err
}

func (s *Store) InsertAppointment(ctx context.Context, tenantID uuid.UUID, a *ledger.Appointment) error {
	a.TenantID = tenantID
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	// The professional must belong to the same tenant.
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO appointments
			(id, tenant_id, professional_id, client_id, starts_at, status, price_charged, deleted_at, created_at)
		SELECT $1, $2, $3, $4, $5, $6, $7, $8, $9
		WHERE EXISTS (SELECT 1 FROM professionals WHERE id = $3 AND tenant_id = $2)`,
		a.ID, tenantID, a.ProfessionalID, a.ClientID, a.StartsAt, a.Status, numeric(a.PriceCharged),
		a.DeletedAt, a.CreatedAt)
	if err != nil {
		return tenantMissing(err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("professional not found")
	}
	return nil
}

func (s *Store) CountAppointmentsInMonth(ctx context.Context, tenantID uuid.UUID, month time.Time) (int64, error) {
	m := month.UTC()
	from := time.Date(m.Year(), m.Month(), 1, 0, 0, 0, 0, time.UTC)
	var n int64
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM appointments
		WHERE tenant_id = $1 AND deleted_at IS NULL AND status <> 'cancelled'
			AND starts_at >= $2 AND starts_at < $3`,
		tenantID, from, from.AddDate(0, 1, 0)).Scan(&n)
	return n, err
}
