package writegate

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/salonkit/billingcore/pkg/apperr"
	"github.com/salonkit/billingcore/pkg/logger"
	"github.com/salonkit/billingcore/pkg/plan"
	"github.com/salonkit/billingcore/pkg/subscription"
)

// SubscriptionReader returns the effective subscription at now.
// *subscription.Machine implements it.
type SubscriptionReader interface {
	Snapshot(ctx context.Context, tenantID uuid.UUID, now time.Time) (*subscription.Subscription, error)
}

// PlanLookup resolves a subscription's plan, retired versions included.
// *plan.Registry implements it.
type PlanLookup interface {
	Lookup(planID string) (plan.Plan, error)
}

var hints = map[subscription.Status]string{
	subscription.StatusPastDue:   "Regularize your payment to continue creating and editing records",
	subscription.StatusSuspended: "Your account is suspended. Regularize your payment to reactivate it",
	subscription.StatusCancelled: "Your subscription was cancelled. Choose a plan to reactivate your account",
	subscription.StatusExpired:   "Your trial has ended. Choose a plan to keep using the system",
}

const limitHint = "Upgrade your plan to add more"

// Gate guards mutating operations. Safe for concurrent use.
type Gate struct {
	subs     SubscriptionReader
	plans    PlanLookup
	counters map[plan.Resource]Counter
	timeout  time.Duration
	now      func() time.Time
	log      *slog.Logger
}

// New creates a Gate. Every plan resource that bounds a kind needs a Counter;
// a missing one fails construction with ErrMissingCounter.
func New(subs SubscriptionReader, plans PlanLookup, opts ...Option) (*Gate, error) {
	g := &Gate{
		subs:     subs,
		plans:    plans,
		counters: make(map[plan.Resource]Counter),
		timeout:  defaultTimeout,
		now:      time.Now,
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}

	var missing []string
	for _, kind := range Kinds {
		res, bounded := kind.Resource()
		if !bounded {
			continue
		}
		if _, ok := g.counters[res]; !ok {
			missing = append(missing, string(res))
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingCounter, strings.Join(missing, ", "))
	}
	return g, nil
}

// AuthorizeCreate returns nil when the tenant may add a record of kind. On top
// of the status check of AuthorizeWrite, count-bounded kinds must be below
// their plan limit.
func (g *Gate) AuthorizeCreate(ctx context.Context, tenantID uuid.UUID, kind ResourceKind) error {
	return g.authorize(ctx, tenantID, kind, true)
}

// AuthorizeWrite returns nil when the tenant may modify or delete an existing
// record of kind. Only the subscription status is checked, so a tenant over
// its limit can still edit and remove records.
func (g *Gate) AuthorizeWrite(ctx context.Context, tenantID uuid.UUID, kind ResourceKind) error {
	return g.authorize(ctx, tenantID, kind, false)
}

func (g *Gate) authorize(ctx context.Context, tenantID uuid.UUID, kind ResourceKind, create bool) error {
	if tenantID == uuid.Nil {
		return apperr.Unauthorized("no tenant context")
	}
	if !kind.valid() {
		return apperr.Validation("unknown resource kind %q", kind)
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	sub, err := g.subs.Snapshot(ctx, tenantID, g.now())
	if err != nil {
		return g.deny(ctx, tenantID, kind, failClosed(ctx, err, "read subscription"))
	}
	if sub.Status.Blocking() {
		denial := apperr.WithHint(&apperr.SubscriptionInactiveError{Status: string(sub.Status)}, hints[sub.Status])
		return g.deny(ctx, tenantID, kind, denial)
	}

	res, bounded := kind.Resource()
	if !create || !bounded {
		return nil
	}

	p, err := g.plans.Lookup(sub.PlanID)
	if err != nil {
		return g.deny(ctx, tenantID, kind, &apperr.Error{Code: apperr.CodeStorage, Message: "resolve plan", Err: err})
	}
	limit, declared := p.Limit(res)
	if declared && limit == plan.Unlimited {
		return nil
	}

	current, err := g.counters[res](ctx, tenantID)
	if err != nil {
		return g.deny(ctx, tenantID, kind, failClosed(ctx, err, "count "+string(res)))
	}
	if !p.Allows(res, current) {
		denial := apperr.WithHint(&apperr.PlanLimitExceededError{
			Resource: string(res),
			Limit:    limit,
			Current:  current,
		}, limitHint)
		return g.deny(ctx, tenantID, kind, denial)
	}
	return nil
}

// failClosed turns a lookup failure into a denial. Coded errors such as
// NotFound pass through; everything else, timeouts included, is STORAGE_ERROR.
func failClosed(ctx context.Context, err error, op string) error {
	if ctx.Err() != nil {
		return apperr.Storage(ctx.Err(), op+": write gate timed out")
	}
	return apperr.Storage(err, op)
}

func (g *Gate) deny(ctx context.Context, tenantID uuid.UUID, kind ResourceKind, err error) error {
	g.log.InfoContext(ctx, "write denied",
		logger.TenantID(tenantID),
		logger.Resource(string(kind)),
		slog.String("code", string(apperr.CodeOf(err))),
		logger.Error(err),
	)
	return err
}

// Usage is one resource's consumption against its plan limit.
type Usage struct {
	Current int64 `json:"current"`
	Limit   int64 `json:"limit"`
}

// Usage reports consumption of every plan resource that has a registered
// counter, for upgrade prompts. Unlike AuthorizeCreate it does not deny on
// blocking statuses.
func (g *Gate) Usage(ctx context.Context, tenantID uuid.UUID) (map[plan.Resource]Usage, error) {
	sub, err := g.subs.Snapshot(ctx, tenantID, g.now())
	if err != nil {
		return nil, apperr.Storage(err, "read subscription")
	}
	p, err := g.plans.Lookup(sub.PlanID)
	if err != nil {
		return nil, err
	}

	out := make(map[plan.Resource]Usage, len(g.counters))
	for res, counter := range g.counters {
		limit, ok := p.Limit(res)
		if !ok {
			continue
		}
		n, err := counter(ctx, tenantID)
		if err != nil {
			return nil, apperr.Storage(err, "count "+string(res))
		}
		out[res] = Usage{Current: n, Limit: limit}
	}
	return out, nil
}
