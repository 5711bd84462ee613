// Package pgstore is the PostgreSQL implementation of the billing core
// repositories. Every tenant-scoped statement filters on tenant_id, which
// leads every index.
package pgstore

import (
	"context"
	"embed"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/salonkit/billingcore/pkg/apperr"
	"github.com/salonkit/billingcore/pkg/ledger"
	"github.com/salonkit/billingcore/pkg/pg"
	"github.com/salonkit/billingcore/pkg/platform"
	"github.com/salonkit/billingcore/pkg/subscription"
	"github.com/salonkit/billingcore/pkg/tenant"
)

// Migrations holds the schema, applied with pg.Migrate.
//
//go:embed migrations/*.sql
var Migrations embed.FS

// MigrationsDir is the directory of Migrations that holds the SQL files.
const MigrationsDir = "migrations"

// Migrate applies the embedded schema.
func Migrate(ctx context.Context, pool *pgxpool.Pool, cfg pg.Config, log pg.Logger) error {
	return pg.Migrate(ctx, pool, Migrations, MigrationsDir, cfg, log)
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store implements subscription.Store, ledger.Repository and platform.Store.
type Store struct {
	pool *pgxpool.Pool
}

var (
	_ subscription.Store = (*Store)(nil)
	_ ledger.Repository  = (*Store)(nil)
	_ platform.Store     = (*Store)(nil)
)

func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) CreateTenant(ctx context.Context, t *tenant.Tenant) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO tenants (id, slug, created_at) VALUES ($1, $2, $3)`,
		t.ID, t.Slug, t.CreatedAt)
	if pg.IsDuplicateKeyError(err) {
		return apperr.Validation("tenant %q already exists", t.Slug)
	}
	return err
}

func (s *Store) GetTenant(ctx context.Context, id uuid.UUID) (*tenant.Tenant, error) {
	var t tenant.Tenant
	err := s.pool.QueryRow(ctx,
		`SELECT id, slug, created_at FROM tenants WHERE id = $1`, id,
	).Scan(&t.ID, &t.Slug, &t.CreatedAt)
	if pg.IsNotFoundError(err) {
		return nil, apperr.NotFound("tenant not found")
	}
	if err != nil {
		return nil, err
	}
	t.CreatedAt = t.CreatedAt.UTC()
	return &t, nil
}

func numeric(d decimal.Decimal) pgtype.Numeric {
	return pgtype.Numeric{Int: d.Coefficient(), Exp: d.Exponent(), Valid: true}
}

func fromNumeric(n pgtype.Numeric) decimal.Decimal {
	if !n.Valid || n.Int == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(n.Int, n.Exp)
}

// dateArg maps an open window bound to NULL.
func dateArg(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return ledger.Day(t)
}

func utc(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}

// tenantMissing maps a foreign-key failure on tenant_id to NotFound.
func tenantMissing(err error) error {
	if pg.IsForeignKeyViolationError(err) {
		return apperr.NotFound("referenced record not found")
	}
	return err
}
