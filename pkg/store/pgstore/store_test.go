package pgstore_test

import (
	"context"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/salonkit/billingcore/pkg/config"
	"github.com/salonkit/billingcore/pkg/pg"
	"github.com/salonkit/billingcore/pkg/plan"
	"github.com/salonkit/billingcore/pkg/store/pgstore"
	"github.com/salonkit/billingcore/pkg/store/storetest"
)

// openPool connects to PG_CONN_URL and applies the schema. Tests are skipped
// when the variable is unset.
func openPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	if os.Getenv("PG_CONN_URL") == "" {
		t.Skip("PG_CONN_URL is not set")
	}

	var cfg pg.Config
	require.NoError(t, config.Load(&cfg))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := pg.Connect(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	require.NoError(t, pgstore.Migrate(ctx, pool, cfg, log))
	return pool
}

func TestStore(t *testing.T) {
	pool := openPool(t)
	storetest.Run(t, func(*testing.T) storetest.Store { return pgstore.New(pool) })
}

func TestPlanSource(t *testing.T) {
	pool := openPool(t)
	ctx := context.Background()

	id := "test-" + uuid.NewString()[:8]
	p := plan.Plan{
		ID:        id,
		Name:      "Test",
		Price:     decimal.RequireFromString("99.90"),
		Interval:  plan.IntervalQuarterly,
		TrialDays: 7,
		Limits: map[plan.Resource]int64{
			plan.ResourceUsers:                5,
			plan.ResourceProfessionals:        plan.Unlimited,
			plan.ResourceClients:              1000,
			plan.ResourceAppointmentsPerMonth: 600,
			plan.ResourceStorageMB:            2048,
		},
		Features: []plan.Feature{plan.FeatureOnlineBooking, plan.FeatureFinancialReports},
		Active:   true,
		Public:   true,
		Version:  1,
	}
	require.NoError(t, pgstore.SavePlans(ctx, pool, []plan.Plan{p}))

	p.Version = 2
	p.Price = decimal.RequireFromString("109.90")
	require.NoError(t, pgstore.SavePlans(ctx, pool, []plan.Plan{p}))

	plans, err := pgstore.NewPlanSource(pool).Load(ctx)
	require.NoError(t, err)

	got, ok := lo.Find(plans, func(x plan.Plan) bool { return x.ID == id })
	require.True(t, ok)
	assert.Equal(t, 2, got.Version)
	assert.Equal(t, "109.90", got.Price.StringFixed(2))
	assert.Equal(t, plan.IntervalQuarterly, got.Interval)
	assert.Equal(t, p.Limits, got.Limits)
	assert.Equal(t, p.Features, got.Features)
}
