package plan

import (
	"maps"
	"slices"
	"time"

	"github.com/shopspring/decimal"
)

// Plan is one version of a catalog entry. Values are copies; mutating a
// returned Plan does not affect the registry.
type Plan struct {
	ID          string             `json:"id" yaml:"id" validate:"required,max=64"`
	Name        string             `json:"name" yaml:"name" validate:"required"`
	Description string             `json:"description,omitempty" yaml:"description"`
	Price       decimal.Decimal    `json:"price" yaml:"-" validate:"gte=0"`
	Interval    Interval           `json:"interval" yaml:"interval" validate:"oneof=monthly quarterly yearly"`
	TrialDays   int                `json:"trial_days" yaml:"trial_days" validate:"gte=0,lte=365"`
	Limits      map[Resource]int64 `json:"limits" yaml:"limits" validate:"required"`
	Features    []Feature          `json:"features,omitempty" yaml:"features"`
	Active      bool               `json:"active" yaml:"active"`
	Public      bool               `json:"public" yaml:"public"`
	Version     int                `json:"version" yaml:"version" validate:"gte=1"`
}

// Limit returns the ceiling for res and whether the plan declares it.
func (p Plan) Limit(res Resource) (int64, bool) {
	limit, ok := p.Limits[res]
	return limit, ok
}

// Allows reports whether one more unit of res fits when current units are
// already used. Undeclared resources are never allowed.
func (p Plan) Allows(res Resource, current int64) bool {
	limit, ok := p.Limits[res]
	if !ok {
		return false
	}
	if limit == Unlimited {
		return true
	}
	return current < limit
}

// HasFeature reports whether f is enabled.
func (p Plan) HasFeature(f Feature) bool {
	return slices.Contains(p.Features, f)
}

// MonthlyPrice normalizes Price to one month. Not rounded; callers round
// aggregated sums.
func (p Plan) MonthlyPrice() decimal.Decimal {
	return MonthlyAmount(p.Price, p.Interval)
}

// MonthlyAmount normalizes an amount billed every interval to one month.
func MonthlyAmount(amount decimal.Decimal, interval Interval) decimal.Decimal {
	months := interval.Months()
	if months <= 1 {
		return amount
	}
	return amount.Div(decimal.NewFromInt(int64(months)))
}

// TrialEndsAt returns when a trial started at from ends.
// Returns from unchanged for plans without a trial.
func (p Plan) TrialEndsAt(from time.Time) time.Time {
	if p.TrialDays <= 0 {
		return from.UTC()
	}
	return from.AddDate(0, 0, p.TrialDays).UTC()
}

// PeriodEnd returns the end of a billing period starting at from.
func (p Plan) PeriodEnd(from time.Time) time.Time {
	return PeriodEnd(from, p.Interval)
}

// PeriodEnd adds one billing interval to from.
func PeriodEnd(from time.Time, interval Interval) time.Time {
	months := interval.Months()
	if months == 0 {
		months = 1
	}
	return from.AddDate(0, months, 0).UTC()
}

func (p Plan) clone() Plan {
	p.Limits = maps.Clone(p.Limits)
	p.Features = slices.Clone(p.Features)
	return p
}
