package pgstore

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/lo"

	"github.com/salonkit/billingcore/pkg/pg"
	"github.com/salonkit/billingcore/pkg/plan"
)

// PlanSource loads the catalog from the subscription_plans table.
type PlanSource struct {
	pool *pgxpool.Pool
}

var _ plan.Source = (*PlanSource)(nil)

func NewPlanSource(pool *pgxpool.Pool) *PlanSource {
	return &PlanSource{pool: pool}
}

func (s *PlanSource) Load(ctx context.Context) ([]plan.Plan, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, description, price, billing_interval, trial_days,
			limits, features, active, public, version
		FROM subscription_plans
		ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", plan.ErrFailedToLoadPlans, err)
	}
	plans, err := pgx.CollectRows(rows, scanPlan)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", plan.ErrFailedToLoadPlans, err)
	}
	return plans, nil
}

func scanPlan(row pgx.CollectableRow) (plan.Plan, error) {
	var (
		p        plan.Plan
		price    pgtype.Numeric
		limits   []byte
		features []string
	)
	if err := row.Scan(&p.ID, &p.Name, &p.Description, &price, &p.Interval, &p.TrialDays,
		&limits, &features, &p.Active, &p.Public, &p.Version); err != nil {
		return plan.Plan{}, err
	}
	if err := json.Unmarshal(limits, &p.Limits); err != nil {
		return plan.Plan{}, fmt.Errorf("plan %q limits: %w", p.ID, err)
	}
	p.Price = fromNumeric(price)
	p.Features = lo.Map(features, func(f string, _ int) plan.Feature { return plan.Feature(f) })
	return p, nil
}

// SavePlans upserts the catalog in one transaction. Plans missing from the
// list are left untouched; retire them by saving with Active false.
func SavePlans(ctx context.Context, pool *pgxpool.Pool, plans []plan.Plan) error {
	return pg.WithTx(ctx, pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		for _, p := range plans {
			limits, err := json.Marshal(p.Limits)
			if err != nil {
				return fmt.Errorf("plan %q limits: %w", p.ID, err)
			}
			features := lo.Map(p.Features, func(f plan.Feature, _ int) string { return string(f) })
			if _, err := tx.Exec(ctx, `
				INSERT INTO subscription_plans
					(id, name, description, price, billing_interval, trial_days, limits, features, active, public, version, updated_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7::jsonb, $8, $9, $10, $11, now())
				ON CONFLICT (id) DO UPDATE SET
					name = EXCLUDED.name,
					description = EXCLUDED.description,
					price = EXCLUDED.price,
					billing_interval = EXCLUDED.billing_interval,
					trial_days = EXCLUDED.trial_days,
					limits = EXCLUDED.limits,
					features = EXCLUDED.features,
					active = EXCLUDED.active,
					public = EXCLUDED.public,
					version = EXCLUDED.version,
					updated_at = now()`,
				p.ID, p.Name, p.Description, numeric(p.Price), p.Interval, p.TrialDays,
				string(limits), features, p.Active, p.Public, p.Version); err != nil {
				return fmt.Errorf("save plan %q: %w", p.ID, err)
			}
		}
		return nil
	})
}
