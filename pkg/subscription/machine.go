package subscription

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"github.com/salonkit/billingcore/pkg/apperr"
	"github.com/salonkit/billingcore/pkg/logger"
	"github.com/salonkit/billingcore/pkg/validate"
)

// Machine applies lifecycle transitions. Safe for concurrent use; all state
// lives in the Store.
type Machine struct {
	store      Store
	plans      PlanCatalog
	grace      time.Duration
	maxRetries uint64
	now        func() time.Time
	log        *slog.Logger
	validate   *validate.Validator
}

// NewMachine creates a Machine over store. plans resolves plan IDs at signup.
func NewMachine(store Store, plans PlanCatalog, opts ...Option) *Machine {
	def := DefaultConfig()
	m := &Machine{
		store:      store,
		plans:      plans,
		grace:      def.GracePeriod,
		maxRetries: def.MaxRetries,
		now:        time.Now,
		log:        slog.Default(),
		validate:   validate.New(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// GracePeriod returns the configured past_due grace window.
func (m *Machine) GracePeriod() time.Duration { return m.grace }

// Start opens a trial subscription for a new tenant on planID.
func (m *Machine) Start(ctx context.Context, tenantID uuid.UUID, planID string) (*Subscription, error) {
	if tenantID == uuid.Nil {
		return nil, apperr.Validation("tenant id is required")
	}
	p, err := m.plans.GetPlan(planID)
	if err != nil {
		return nil, err
	}

	now := m.now().UTC()
	sub := &Subscription{
		ID:          uuid.New(),
		TenantID:    tenantID,
		PlanID:      p.ID,
		Status:      StatusTrial,
		Interval:    p.Interval,
		TrialEndsAt: p.TrialEndsAt(now),
		Price:       p.Price,
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := m.store.Create(ctx, sub); err != nil {
		return nil, apperr.Storage(err, "create subscription")
	}

	m.log.InfoContext(ctx, "subscription started",
		logger.TenantID(tenantID),
		logger.SubscriptionID(sub.ID),
		slog.String("plan_id", p.ID),
		slog.Time("trial_ends_at", sub.TrialEndsAt),
	)
	return sub.clone(), nil
}

// Evaluate returns the tenant's effective status at now, including
// time-driven transitions that are due but not yet persisted. It never writes.
func (m *Machine) Evaluate(ctx context.Context, tenantID uuid.UUID, now time.Time) (Status, error) {
	sub, err := m.Snapshot(ctx, tenantID, now)
	if err != nil {
		return "", err
	}
	return sub.Status, nil
}

// Snapshot returns the tenant's subscription as it would look at now once
// due time-driven transitions are applied. It never writes.
func (m *Machine) Snapshot(ctx context.Context, tenantID uuid.UUID, now time.Time) (*Subscription, error) {
	sub, err := m.store.Current(ctx, tenantID)
	if err != nil {
		return nil, apperr.Storage(err, "load subscription")
	}
	m.project(sub, now.UTC())
	return sub, nil
}

// DueTenants lists tenants with a time-driven transition due at now.
func (m *Machine) DueTenants(ctx context.Context, now time.Time) ([]uuid.UUID, error) {
	ids, err := m.store.DueForSweep(ctx, now.UTC(), m.grace)
	if err != nil {
		return nil, apperr.Storage(err, "list due subscriptions")
	}
	return ids, nil
}

// Advance persists the time-driven transitions due at now for one tenant.
// It reports whether anything changed. Running it twice is harmless.
func (m *Machine) Advance(ctx context.Context, tenantID uuid.UUID, now time.Time) (*Subscription, bool, error) {
	now = now.UTC()
	var (
		result  *Subscription
		changed bool
	)
	err := m.retry(ctx, func() error {
		return m.store.Transact(ctx, tenantID, func(ctx context.Context, tx Tx) error {
			sub, err := tx.LockCurrent(ctx)
			if err != nil {
				return err
			}
			changed, err = m.materialize(ctx, tx, sub, now)
			if err != nil {
				return err
			}
			if changed {
				sub.UpdatedAt = now
				if err := tx.Update(ctx, sub); err != nil {
					return err
				}
			}
			result = sub
			return nil
		})
	})
	if err != nil {
		return nil, false, apperr.Storage(err, "advance subscription")
	}
	return result.clone(), changed, nil
}

// ApplyBillingEvent applies ev to the tenant's subscription and returns the
// new snapshot. A replayed event ID returns the current snapshot unchanged.
//
// Due time-driven transitions are applied first, so a payment arriving after
// the trial ended finds an expired subscription. When the event itself is
// inapplicable those transitions are still committed and an
// InvalidTransitionError is returned. A rejected payment_failed on a trial or
// suspended subscription is still counted on the open invoice.
func (m *Machine) ApplyBillingEvent(ctx context.Context, tenantID uuid.UUID, ev Event) (*Subscription, error) {
	if err := m.validate.Struct(ev); err != nil {
		return nil, err
	}
	if ev.Amount.Valid && ev.Amount.Decimal.IsNegative() {
		return nil, apperr.Validation("amount must not be negative")
	}
	ctx = logger.WithEventID(ctx, ev.ID)

	var (
		result   *Subscription
		rejected error
		replayed bool
	)
	err := m.retry(ctx, func() error {
		rejected, replayed = nil, false
		return m.store.Transact(ctx, tenantID, func(ctx context.Context, tx Tx) error {
			sub, err := tx.LockCurrent(ctx)
			if err != nil {
				return err
			}

			done, err := tx.EventProcessed(ctx, ev.ID)
			if err != nil {
				return err
			}
			now := m.now().UTC()
			if done {
				m.project(sub, now)
				result, replayed = sub, true
				return nil
			}

			changed, err := m.materialize(ctx, tx, sub, now)
			if err != nil {
				return err
			}

			from := sub.Status
			handle, ok := transitions[from][ev.Type]
			if !ok {
				rejected = &apperr.InvalidTransitionError{From: string(from), Event: string(ev.Type)}
				if ev.Type == EventPaymentFailed && !from.Terminal() {
					if err := m.keepFailedAttempt(ctx, &change{tx: tx, sub: sub, ev: ev, now: now}); err != nil {
						return err
					}
				}
				if changed {
					sub.UpdatedAt = now
					return tx.Update(ctx, sub)
				}
				return nil
			}

			c := &change{tx: tx, sub: sub, ev: ev, now: now}
			if err := handle(m, ctx, c); err != nil {
				return err
			}
			// A deferred cancel may already be due.
			if _, err := m.materialize(ctx, tx, sub, now); err != nil {
				return err
			}

			sub.UpdatedAt = now
			if err := tx.Update(ctx, sub); err != nil {
				return err
			}
			if err := tx.RecordEvent(ctx, EventRecord{
				TenantID:       tenantID,
				SubscriptionID: sub.ID,
				EventID:        ev.ID,
				Type:           ev.Type,
				From:           from,
				To:             sub.Status,
				Reason:         ev.Reason,
				AppliedAt:      now,
			}); err != nil {
				return err
			}

			m.log.InfoContext(ctx, "billing event applied",
				logger.TenantID(tenantID),
				logger.BillingEvent(string(ev.Type)),
				logger.Transition(string(from), string(sub.Status)),
			)
			result = sub
			return nil
		})
	})
	if err != nil {
		return nil, apperr.Storage(err, "apply billing event")
	}
	if rejected != nil {
		m.log.WarnContext(ctx, "billing event rejected",
			logger.TenantID(tenantID),
			logger.BillingEvent(string(ev.Type)),
			logger.Error(rejected),
		)
		return nil, rejected
	}
	if replayed {
		m.log.DebugContext(ctx, "billing event replayed", logger.TenantID(tenantID))
	}
	return result.clone(), nil
}

func (m *Machine) retry(ctx context.Context, op func() error) error {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = 20 * time.Millisecond
	eb.MaxInterval = time.Second
	b := backoff.WithContext(backoff.WithMaxRetries(eb, m.maxRetries), ctx)

	return backoff.Retry(func() error {
		err := op()
		if err != nil && !errors.Is(err, ErrConflict) {
			return backoff.Permanent(err)
		}
		return err
	}, b)
}
