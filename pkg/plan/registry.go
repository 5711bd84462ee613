package plan

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/salonkit/billingcore/pkg/apperr"
	"github.com/salonkit/billingcore/pkg/validate"
)

// Source loads plan definitions. Called once by NewRegistry.
type Source interface {
	Load(ctx context.Context) ([]Plan, error)
}

// Registry is the read-only plan catalog.
type Registry struct {
	// Immutable after NewRegistry returns.
	plans  map[string]Plan
	public []Plan
}

// NewRegistry loads and validates every plan from src.
func NewRegistry(ctx context.Context, src Source) (*Registry, error) {
	if src == nil {
		return nil, ErrNilSource
	}
	plans, err := src.Load(ctx)
	if err != nil {
		return nil, errors.Join(ErrFailedToLoadPlans, err)
	}

	v := validate.New()
	r := &Registry{plans: make(map[string]Plan, len(plans))}
	for _, p := range plans {
		if err := validatePlan(v, p); err != nil {
			return nil, err
		}
		if _, dup := r.plans[p.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate plan id %q", ErrInvalidPlanConfiguration, p.ID)
		}
		r.plans[p.ID] = p.clone()
		if p.Active && p.Public {
			r.public = append(r.public, p.clone())
		}
	}

	slices.SortFunc(r.public, func(a, b Plan) int {
		if c := a.MonthlyPrice().Cmp(b.MonthlyPrice()); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})

	return r, nil
}

func validatePlan(v *validate.Validator, p Plan) error {
	if err := v.Struct(p); err != nil {
		return fmt.Errorf("%w: plan %q: %w", ErrInvalidPlanConfiguration, p.ID, err)
	}
	for _, res := range Resources {
		limit, ok := p.Limits[res]
		if !ok {
			return fmt.Errorf("%w: plan %q: missing limit for %s", ErrInvalidPlanConfiguration, p.ID, res)
		}
		if limit < Unlimited {
			return fmt.Errorf("%w: plan %q: limit for %s must be >= -1, got %d", ErrInvalidPlanConfiguration, p.ID, res, limit)
		}
	}
	return nil
}

// GetPlan returns an active plan. Retired or unknown IDs are NotFound.
func (r *Registry) GetPlan(planID string) (Plan, error) {
	p, ok := r.plans[planID]
	if !ok || !p.Active {
		return Plan{}, apperr.NotFound("plan %q not found", planID)
	}
	return p.clone(), nil
}

// Lookup returns a plan by ID including retired versions, for resolving the
// limits of subscriptions that still reference them.
func (r *Registry) Lookup(planID string) (Plan, error) {
	p, ok := r.plans[planID]
	if !ok {
		return Plan{}, apperr.NotFound("plan %q not found", planID)
	}
	return p.clone(), nil
}

// ListPublicPlans returns active public plans ordered by monthly price.
func (r *Registry) ListPublicPlans() []Plan {
	out := make([]Plan, len(r.public))
	for i, p := range r.public {
		out[i] = p.clone()
	}
	return out
}
