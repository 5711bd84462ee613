package plan_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/salonkit/billingcore/pkg/apperr"
	"github.com/salonkit/billingcore/pkg/plan"
)

func limits(clients int64) map[plan.Resource]int64 {
	return map[plan.Resource]int64{
		plan.ResourceUsers:                2,
		plan.ResourceProfessionals:        3,
		plan.ResourceClients:              clients,
		plan.ResourceAppointmentsPerMonth: 300,
		plan.ResourceStorageMB:            512,
	}
}

func testPlans() []plan.Plan {
	return []plan.Plan{
		{
			ID: "pro_yearly", Name: "Pro", Price: decimal.RequireFromString("1200.00"),
			Interval: plan.IntervalYearly, Limits: limits(plan.Unlimited),
			Features: []plan.Feature{plan.FeatureCommissionReports}, Active: true, Public: true, Version: 1,
		},
		{
			ID: "starter", Name: "Starter", Price: decimal.RequireFromString("49.90"),
			Interval: plan.IntervalMonthly, TrialDays: 14, Limits: limits(500),
			Active: true, Public: true, Version: 2,
		},
		{
			ID: "starter_v1", Name: "Starter", Price: decimal.RequireFromString("39.90"),
			Interval: plan.IntervalMonthly, TrialDays: 14, Limits: limits(300),
			Active: false, Public: true, Version: 1,
		},
		{
			ID: "enterprise", Name: "Enterprise", Price: decimal.RequireFromString("999.00"),
			Interval: plan.IntervalMonthly, Limits: limits(plan.Unlimited),
			Active: true, Public: false, Version: 1,
		},
	}
}

func newRegistry(t *testing.T) *plan.Registry {
	t.Helper()
	r, err := plan.NewRegistry(context.Background(), plan.NewInMemSource(testPlans()...))
	require.NoError(t, err)
	return r
}

func TestRegistry(t *testing.T) {
	t.Parallel()

	r := newRegistry(t)

	t.Run("get active plan", func(t *testing.T) {
		t.Parallel()
		p, err := r.GetPlan("starter")
		require.NoError(t, err)
		assert.Equal(t, 14, p.TrialDays)
	})

	t.Run("retired plan is not found by GetPlan", func(t *testing.T) {
		t.Parallel()
		_, err := r.GetPlan("starter_v1")
		assert.ErrorIs(t, err, apperr.ErrNotFound)

		p, err := r.Lookup("starter_v1")
		require.NoError(t, err)
		assert.Equal(t, int64(300), p.Limits[plan.ResourceClients])
	})

	t.Run("unknown plan", func(t *testing.T) {
		t.Parallel()
		_, err := r.GetPlan("gold")
		assert.ErrorIs(t, err, apperr.ErrNotFound)
		_, err = r.Lookup("gold")
		assert.ErrorIs(t, err, apperr.ErrNotFound)
	})

	t.Run("public plans ordered by monthly price", func(t *testing.T) {
		t.Parallel()
		plans := r.ListPublicPlans()
		require.Len(t, plans, 2)
		assert.Equal(t, "starter", plans[0].ID)
		assert.Equal(t, "pro_yearly", plans[1].ID)
	})

	t.Run("returned plans are copies", func(t *testing.T) {
		t.Parallel()
		p, err := r.GetPlan("enterprise")
		require.NoError(t, err)
		p.Limits[plan.ResourceClients] = 1

		again, err := r.GetPlan("enterprise")
		require.NoError(t, err)
		assert.Equal(t, plan.Unlimited, again.Limits[plan.ResourceClients])
	})
}

func TestNewRegistryValidation(t *testing.T) {
	t.Parallel()

	base := testPlans()[1]

	tests := []struct {
		name   string
		mutate func(p *plan.Plan)
	}{
		{"missing id", func(p *plan.Plan) { p.ID = "" }},
		{"negative price", func(p *plan.Plan) { p.Price = decimal.RequireFromString("-1") }},
		{"bad interval", func(p *plan.Plan) { p.Interval = "weekly" }},
		{"missing resource limit", func(p *plan.Plan) { delete(p.Limits, plan.ResourceStorageMB) }},
		{"limit below unlimited", func(p *plan.Plan) { p.Limits[plan.ResourceUsers] = -2 }},
		{"zero version", func(p *plan.Plan) { p.Version = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			p := base
			p.Limits = limits(500)
			tt.mutate(&p)
			_, err := plan.NewRegistry(context.Background(), plan.NewInMemSource(p))
			assert.ErrorIs(t, err, plan.ErrInvalidPlanConfiguration)
		})
	}

	t.Run("duplicate id", func(t *testing.T) {
		t.Parallel()
		_, err := plan.NewRegistry(context.Background(), plan.NewInMemSource(base, base))
		assert.ErrorIs(t, err, plan.ErrInvalidPlanConfiguration)
	})
}

func TestPlan(t *testing.T) {
	t.Parallel()

	plans := testPlans()
	pro, starter := plans[0], plans[1]

	t.Run("allows", func(t *testing.T) {
		t.Parallel()
		assert.True(t, starter.Allows(plan.ResourceClients, 499))
		assert.False(t, starter.Allows(plan.ResourceClients, 500))
		assert.True(t, pro.Allows(plan.ResourceClients, 1_000_000))
		assert.False(t, starter.Allows("chairs", 0))
	})

	t.Run("monthly price", func(t *testing.T) {
		t.Parallel()
		assert.True(t, decimal.RequireFromString("100").Equal(pro.MonthlyPrice()))
		assert.True(t, decimal.RequireFromString("49.90").Equal(starter.MonthlyPrice()))
		quarterly := plan.MonthlyAmount(decimal.RequireFromString("90"), plan.IntervalQuarterly)
		assert.True(t, decimal.RequireFromString("30").Equal(quarterly))
	})

	t.Run("periods", func(t *testing.T) {
		t.Parallel()
		start := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
		assert.Equal(t, time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC), starter.TrialEndsAt(start))
		assert.Equal(t, time.Date(2024, 2, 1, 12, 0, 0, 0, time.UTC), starter.PeriodEnd(start))
		assert.Equal(t, time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC), pro.PeriodEnd(start))
		assert.Equal(t, start, pro.TrialEndsAt(start))
	})

	t.Run("features", func(t *testing.T) {
		t.Parallel()
		assert.True(t, pro.HasFeature(plan.FeatureCommissionReports))
		assert.False(t, starter.HasFeature(plan.FeatureCommissionReports))
	})
}

const catalog = `
plans:
  - id: starter
    name: Starter
    price: "49.90"
    interval: monthly
    trial_days: 14
    active: true
    public: true
    version: 1
    limits: {users: 2, professionals: 3, clients: 500, appointments_per_month: 300, storage_mb: 512}
    features: [online_booking, reminders]
  - id: salon_plus
    name: Salon Plus
    price: "299.70"
    interval: quarterly
    active: true
    public: true
    version: 1
    limits: {users: 10, professionals: -1, clients: -1, appointments_per_month: -1, storage_mb: 4096}
`

func TestYAMLSource(t *testing.T) {
	t.Parallel()

	src, err := plan.NewYAMLSource(strings.NewReader(catalog))
	require.NoError(t, err)

	r, err := plan.NewRegistry(context.Background(), src)
	require.NoError(t, err)

	starter, err := r.GetPlan("starter")
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("49.90").Equal(starter.Price))
	assert.True(t, starter.HasFeature(plan.FeatureReminders))

	plus, err := r.GetPlan("salon_plus")
	require.NoError(t, err)
	assert.Equal(t, plan.IntervalQuarterly, plus.Interval)
	assert.True(t, decimal.RequireFromString("99.90").Equal(plus.MonthlyPrice()))

	t.Run("rejects malformed price", func(t *testing.T) {
		t.Parallel()
		_, err := plan.NewYAMLSource(strings.NewReader("plans:\n  - id: x\n    price: abc\n"))
		assert.ErrorIs(t, err, plan.ErrInvalidPlanConfiguration)
	})

	t.Run("rejects unknown fields", func(t *testing.T) {
		t.Parallel()
		_, err := plan.NewYAMLSource(strings.NewReader("plans:\n  - id: x\n    colour: red\n"))
		assert.ErrorIs(t, err, plan.ErrFailedToLoadPlans)
	})
}
