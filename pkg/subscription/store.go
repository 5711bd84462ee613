package subscription

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/salonkit/billingcore/pkg/plan"
)

// Store persists subscriptions. Every method is scoped to one tenant except
// DueForSweep, which scans the whole platform for the sweep job.
type Store interface {
	// Current returns the tenant's most recent subscription, or a NotFound error.
	Current(ctx context.Context, tenantID uuid.UUID) (*Subscription, error)
	// Create inserts a new subscription. Fails with ErrLiveSubscriptionExists
	// when the tenant already has a non-terminal one.
	Create(ctx context.Context, sub *Subscription) error
	// Transact runs fn in one transaction bound to tenantID. Any error from
	// fn rolls everything back.
	Transact(ctx context.Context, tenantID uuid.UUID, fn func(ctx context.Context, tx Tx) error) error
	// DueForSweep lists tenants whose subscription has a time-driven
	// transition due at now.
	DueForSweep(ctx context.Context, now time.Time, grace time.Duration) ([]uuid.UUID, error)
}

// Tx is a tenant-bound store transaction.
type Tx interface {
	// LockCurrent returns the tenant's current subscription and holds a row
	// lock on it until the transaction ends.
	LockCurrent(ctx context.Context) (*Subscription, error)
	// Update writes sub if its Version still matches the stored one and
	// increments sub.Version. ErrConflict otherwise.
	Update(ctx context.Context, sub *Subscription) error
	EventProcessed(ctx context.Context, eventID string) (bool, error)
	RecordEvent(ctx context.Context, rec EventRecord) error
	// OpenInvoice returns the newest pending or overdue invoice of the
	// subscription, or nil.
	OpenInvoice(ctx context.Context, subscriptionID uuid.UUID) (*Invoice, error)
	// SaveInvoice inserts or updates inv by ID.
	SaveInvoice(ctx context.Context, inv *Invoice) error
}

// PlanCatalog resolves plans offered at signup. *plan.Registry implements it.
type PlanCatalog interface {
	GetPlan(planID string) (plan.Plan, error)
}
