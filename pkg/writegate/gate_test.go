package writegate_test

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/salonkit/billingcore/pkg/apperr"
	"github.com/salonkit/billingcore/pkg/logger"
	"github.com/salonkit/billingcore/pkg/plan"
	"github.com/salonkit/billingcore/pkg/subscription"
	"github.com/salonkit/billingcore/pkg/writegate"
)

type subscriptionReaderMock struct {
	mock.Mock
}

func (m *subscriptionReaderMock) Snapshot(ctx context.Context, tenantID uuid.UUID, now time.Time) (*subscription.Subscription, error) {
	args := m.Called(ctx, tenantID, now)
	sub, _ := args.Get(0).(*subscription.Subscription)
	return sub, args.Error(1)
}

func limits(professionals int64) map[plan.Resource]int64 {
	return map[plan.Resource]int64{
		plan.ResourceUsers:                2,
		plan.ResourceProfessionals:        professionals,
		plan.ResourceClients:              plan.Unlimited,
		plan.ResourceAppointmentsPerMonth: 100,
		plan.ResourceStorageMB:            512,
	}
}

func registry(t *testing.T) *plan.Registry {
	t.Helper()
	reg, err := plan.NewRegistry(context.Background(), plan.NewInMemSource(
		plan.Plan{
			ID: "basic", Name: "Basic", Price: decimal.NewFromInt(50),
			Interval: plan.IntervalMonthly, Limits: limits(3), Active: true, Public: true, Version: 1,
		},
		plan.Plan{
			ID: "unlimited", Name: "Unlimited", Price: decimal.NewFromInt(500),
			Interval: plan.IntervalMonthly, Limits: limits(plan.Unlimited), Active: true, Public: true, Version: 1,
		},
	))
	require.NoError(t, err)
	return reg
}

func subWith(status subscription.Status, planID string) *subscription.Subscription {
	return &subscription.Subscription{ID: uuid.New(), PlanID: planID, Status: status}
}

// newGate registers zero counters for every bounded resource; opts may
// override them.
func newGate(t *testing.T, sub *subscription.Subscription, err error, opts ...writegate.Option) *writegate.Gate {
	t.Helper()
	reader := &subscriptionReaderMock{}
	reader.On("Snapshot", mock.Anything, mock.Anything, mock.Anything).Return(sub, err)
	base := []writegate.Option{
		writegate.WithLogger(logger.New(logger.WithOutput(io.Discard))),
		writegate.WithCounter(plan.ResourceUsers, fixedCount(0)),
		writegate.WithCounter(plan.ResourceProfessionals, fixedCount(0)),
		writegate.WithCounter(plan.ResourceClients, fixedCount(0)),
		writegate.WithCounter(plan.ResourceAppointmentsPerMonth, fixedCount(0)),
	}
	g, gerr := writegate.New(reader, registry(t), append(base, opts...)...)
	require.NoError(t, gerr)
	return g
}

func fixedCount(n int64) writegate.Counter {
	return func(context.Context, uuid.UUID) (int64, error) { return n, nil }
}

func TestAuthorizeWriteStatuses(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	tests := []struct {
		status  subscription.Status
		allowed bool
		hint    string
	}{
		{subscription.StatusTrial, true, ""},
		{subscription.StatusActive, true, ""},
		{subscription.StatusPastDue, false, "Regularize your payment to continue creating and editing records"},
		{subscription.StatusSuspended, false, "Your account is suspended. Regularize your payment to reactivate it"},
		{subscription.StatusCancelled, false, "Your subscription was cancelled. Choose a plan to reactivate your account"},
		{subscription.StatusExpired, false, "Your trial has ended. Choose a plan to keep using the system"},
	}
	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			t.Parallel()
			g := newGate(t, subWith(tt.status, "basic"), nil)

			for _, kind := range writegate.Kinds {
				for _, err := range []error{
					g.AuthorizeCreate(ctx, uuid.New(), kind),
					g.AuthorizeWrite(ctx, uuid.New(), kind),
				} {
					if tt.allowed {
						assert.NoError(t, err, kind)
						continue
					}
					var inactive *apperr.SubscriptionInactiveError
					require.ErrorAs(t, err, &inactive, kind)
					assert.Equal(t, string(tt.status), inactive.Status)
					assert.Equal(t, apperr.CodeSubscriptionInactive, apperr.CodeOf(err))
					assert.Equal(t, tt.hint, apperr.Hint(err))
				}
			}
		})
	}
}

func TestAuthorizeCreateLimits(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("below limit", func(t *testing.T) {
		t.Parallel()
		g := newGate(t, subWith(subscription.StatusActive, "basic"), nil,
			writegate.WithCounter(plan.ResourceProfessionals, fixedCount(2)))
		assert.NoError(t, g.AuthorizeCreate(ctx, uuid.New(), writegate.KindProfessionals))
	})

	t.Run("at limit", func(t *testing.T) {
		t.Parallel()
		g := newGate(t, subWith(subscription.StatusTrial, "basic"), nil,
			writegate.WithCounter(plan.ResourceProfessionals, fixedCount(3)))

		err := g.AuthorizeCreate(ctx, uuid.New(), writegate.KindProfessionals)
		var exceeded *apperr.PlanLimitExceededError
		require.ErrorAs(t, err, &exceeded)
		assert.Equal(t, "professionals", exceeded.Resource)
		assert.Equal(t, int64(3), exceeded.Limit)
		assert.Equal(t, int64(3), exceeded.Current)
		assert.Equal(t, "Upgrade your plan to add more", apperr.Hint(err))
	})

	t.Run("unlimited never denies", func(t *testing.T) {
		t.Parallel()
		g := newGate(t, subWith(subscription.StatusActive, "unlimited"), nil,
			writegate.WithCounter(plan.ResourceProfessionals, fixedCount(1_000_000)))
		assert.NoError(t, g.AuthorizeCreate(ctx, uuid.New(), writegate.KindProfessionals))
	})

	t.Run("unbounded kinds skip counting", func(t *testing.T) {
		t.Parallel()
		g := newGate(t, subWith(subscription.StatusActive, "basic"), nil,
			writegate.WithCounter(plan.ResourceProfessionals, fixedCount(99)))
		assert.NoError(t, g.AuthorizeCreate(ctx, uuid.New(), writegate.KindFinancialEntries))
		assert.NoError(t, g.AuthorizeCreate(ctx, uuid.New(), writegate.KindProducts))
	})

	t.Run("users at zero usage", func(t *testing.T) {
		t.Parallel()
		g := newGate(t, subWith(subscription.StatusActive, "basic"), nil)
		assert.NoError(t, g.AuthorizeCreate(ctx, uuid.New(), writegate.KindUsers))
		assert.NoError(t, g.AuthorizeCreate(ctx, uuid.New(), writegate.KindClients))
	})
}

func TestAuthorizeWriteIgnoresLimits(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	// A downgraded tenant sits above its new ceiling.
	g := newGate(t, subWith(subscription.StatusActive, "basic"), nil,
		writegate.WithCounter(plan.ResourceProfessionals, fixedCount(5)),
		writegate.WithCounter(plan.ResourceUsers, fixedCount(2)),
	)
	tenantID := uuid.New()

	assert.ErrorIs(t, g.AuthorizeCreate(ctx, tenantID, writegate.KindProfessionals), apperr.ErrPlanLimitExceeded)
	assert.ErrorIs(t, g.AuthorizeCreate(ctx, tenantID, writegate.KindUsers), apperr.ErrPlanLimitExceeded)
	assert.NoError(t, g.AuthorizeWrite(ctx, tenantID, writegate.KindProfessionals))
	assert.NoError(t, g.AuthorizeWrite(ctx, tenantID, writegate.KindUsers))
}

func TestAuthorizeWriteSkipsCounters(t *testing.T) {
	t.Parallel()
	g := newGate(t, subWith(subscription.StatusActive, "basic"), nil,
		writegate.WithCounter(plan.ResourceProfessionals, func(context.Context, uuid.UUID) (int64, error) {
			t.Error("counter called on update")
			return 0, nil
		}))
	assert.NoError(t, g.AuthorizeWrite(context.Background(), uuid.New(), writegate.KindProfessionals))
}

func TestNewRequiresCounters(t *testing.T) {
	t.Parallel()
	reader := &subscriptionReaderMock{}

	t.Run("missing", func(t *testing.T) {
		t.Parallel()
		g, err := writegate.New(reader, registry(t),
			writegate.WithCounter(plan.ResourceProfessionals, fixedCount(0)),
			writegate.WithCounter(plan.ResourceAppointmentsPerMonth, fixedCount(0)),
		)
		require.ErrorIs(t, err, writegate.ErrMissingCounter)
		assert.Nil(t, g)
		assert.Contains(t, err.Error(), "users")
		assert.Contains(t, err.Error(), "clients")
		assert.NotContains(t, err.Error(), "professionals")
	})

	t.Run("complete", func(t *testing.T) {
		t.Parallel()
		g, err := writegate.New(reader, registry(t),
			writegate.WithCounter(plan.ResourceUsers, fixedCount(0)),
			writegate.WithCounter(plan.ResourceProfessionals, fixedCount(0)),
			writegate.WithCounter(plan.ResourceClients, fixedCount(0)),
			writegate.WithCounter(plan.ResourceAppointmentsPerMonth, fixedCount(0)),
		)
		require.NoError(t, err)
		assert.NotNil(t, g)
	})
}

func TestAuthorizeWriteFailsClosed(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("subscription read error", func(t *testing.T) {
		t.Parallel()
		g := newGate(t, nil, errors.New("connection refused"))
		err := g.AuthorizeWrite(ctx, uuid.New(), writegate.KindFinancialEntries)
		assert.Equal(t, apperr.CodeStorage, apperr.CodeOf(err))
	})

	t.Run("no subscription", func(t *testing.T) {
		t.Parallel()
		g := newGate(t, nil, apperr.NotFound("tenant has no subscription"))
		err := g.AuthorizeWrite(ctx, uuid.New(), writegate.KindFinancialEntries)
		assert.Equal(t, apperr.CodeNotFound, apperr.CodeOf(err))
	})

	t.Run("counter error", func(t *testing.T) {
		t.Parallel()
		g := newGate(t, subWith(subscription.StatusActive, "basic"), nil,
			writegate.WithCounter(plan.ResourceProfessionals, func(context.Context, uuid.UUID) (int64, error) {
				return 0, errors.New("boom")
			}))
		err := g.AuthorizeCreate(ctx, uuid.New(), writegate.KindProfessionals)
		assert.Equal(t, apperr.CodeStorage, apperr.CodeOf(err))
	})

	t.Run("unknown plan", func(t *testing.T) {
		t.Parallel()
		g := newGate(t, subWith(subscription.StatusActive, "gone"), nil,
			writegate.WithCounter(plan.ResourceProfessionals, fixedCount(0)))
		err := g.AuthorizeCreate(ctx, uuid.New(), writegate.KindProfessionals)
		assert.Equal(t, apperr.CodeStorage, apperr.CodeOf(err))
	})

	t.Run("timeout", func(t *testing.T) {
		t.Parallel()
		g := newGate(t, subWith(subscription.StatusActive, "basic"), nil,
			writegate.WithTimeout(10*time.Millisecond),
			writegate.WithCounter(plan.ResourceProfessionals, func(ctx context.Context, _ uuid.UUID) (int64, error) {
				<-ctx.Done()
				return 0, ctx.Err()
			}))
		err := g.AuthorizeCreate(ctx, uuid.New(), writegate.KindProfessionals)
		assert.Equal(t, apperr.CodeStorage, apperr.CodeOf(err))
	})
}

func TestAuthorizeWriteInput(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	g := newGate(t, subWith(subscription.StatusActive, "basic"), nil)

	assert.Equal(t, apperr.CodeUnauthorized, apperr.CodeOf(g.AuthorizeWrite(ctx, uuid.Nil, writegate.KindClients)))
	assert.Equal(t, apperr.CodeValidation, apperr.CodeOf(g.AuthorizeWrite(ctx, uuid.New(), "invoices")))
	assert.Equal(t, apperr.CodeValidation, apperr.CodeOf(g.AuthorizeCreate(ctx, uuid.New(), "invoices")))
}

func TestUsage(t *testing.T) {
	t.Parallel()
	g := newGate(t, subWith(subscription.StatusPastDue, "basic"), nil,
		writegate.WithCounter(plan.ResourceProfessionals, fixedCount(2)),
		writegate.WithCounter(plan.ResourceAppointmentsPerMonth, fixedCount(40)),
	)

	usage, err := g.Usage(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Equal(t, map[plan.Resource]writegate.Usage{
		plan.ResourceUsers:                {Current: 0, Limit: 2},
		plan.ResourceProfessionals:        {Current: 2, Limit: 3},
		plan.ResourceClients:              {Current: 0, Limit: plan.Unlimited},
		plan.ResourceAppointmentsPerMonth: {Current: 40, Limit: 100},
	}, usage)
}
