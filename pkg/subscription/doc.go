// Package subscription owns the tenant subscription lifecycle.
//
// A Machine is the only writer of subscription rows. It moves a subscription
// between six statuses:
//
//	trial ──payment_succeeded──▶ active ──payment_failed──▶ past_due
//	  │                          ▲    ▲                       │
//	  └─time: trial over──▶ expired    └──payment_succeeded───┘
//	                                        (within grace)    │
//	suspended ◀──time: grace over─────────────────────────────┘
//	suspended ──reactivate_requested──▶ active
//	any live status ──cancel_requested──▶ cancelled (now or at period end)
//	any live status ──admin_suspend──▶ suspended
//
// cancelled and expired are terminal. Time-driven transitions are never
// stored eagerly: Evaluate and Snapshot compute them on read, ApplyBillingEvent
// materializes them before applying an event, and the sweep job persists them
// through Advance.
//
// Billing events carry an idempotency key. A replayed key returns the current
// snapshot without writing anything. Each applied event runs in one store
// transaction that locks the subscription row and writes the subscription, its
// invoice and an event record together. Version conflicts are retried with
// exponential backoff.
//
// An event that does not apply to the current status is rejected with
// INVALID_TRANSITION. A payment_failed arriving during a trial or after
// suspension is rejected too, but the failed attempt is still counted on the
// open invoice.
//
// # Usage
//
//	registry, err := plan.NewRegistry(ctx, plan.NewInMemSource(plans...))
//	if err != nil {
//		return err
//	}
//	machine := subscription.NewMachine(pgstore.New(pool), registry,
//		subscription.WithConfig(cfg),
//		subscription.WithLogger(log),
//	)
//
//	// Signup opens a trial.
//	sub, err := machine.Start(ctx, tenantID, "starter")
//
//	// Billing webhook.
//	sub, err = machine.ApplyBillingEvent(ctx, tenantID, subscription.Event{
//		ID:   webhook.ID,
//		Type: subscription.EventPaymentSucceeded,
//	})
//	if errors.Is(err, apperr.ErrInvalidTransition) {
//		// acknowledge the webhook; nothing else to do
//	}
//
//	// Read path, never writes.
//	status, err := machine.Evaluate(ctx, tenantID, time.Now())
//
// # Configuration
//
// Config holds the grace period between a failed renewal and suspension,
// BILLING_GRACE_PERIOD, seven days by default.
package subscription
