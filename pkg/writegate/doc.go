// Package writegate admits or denies mutations of tenant-scoped business
// records based on the tenant's subscription and plan.
//
// Two entry points split the checks by intent:
//
//   - AuthorizeWrite, for updates and deletes of existing records, checks the
//     effective subscription status only. past_due, suspended, cancelled and
//     expired deny every kind with SUBSCRIPTION_INACTIVE and a hint telling
//     the user how to regain access.
//   - AuthorizeCreate, for new records, runs the same status check and then,
//     for count-bounded kinds (clients, professionals, users, appointments),
//     compares current usage with the plan ceiling. Reaching it denies with
//     PLAN_LIMIT_EXCEEDED. A limit of -1 is never checked.
//
// Limits bound creation only. A tenant that downgraded below its current usage
// keeps editing and deleting records until it is back under the ceiling.
//
// # Counters
//
// Usage comes from one Counter per plan resource. New refuses to build a gate
// while any bounded resource lacks one and returns ErrMissingCounter, so a
// wiring mistake fails at startup instead of denying requests at runtime:
//
//	opts := append(ledger.Counters(store, nil),
//		writegate.WithCounter(plan.ResourceUsers, users.Count),
//		writegate.WithCounter(plan.ResourceClients, clients.Count),
//		writegate.WithLogger(log),
//	)
//	gate, err := writegate.New(machine, registry, opts...)
//	if err != nil {
//		return err
//	}
//
//	if err := gate.AuthorizeCreate(ctx, tenantID, writegate.KindClients); err != nil {
//		return err // SUBSCRIPTION_INACTIVE or PLAN_LIMIT_EXCEEDED
//	}
//
// # Failure handling
//
// Every check runs under a short timeout (GATE_TIMEOUT, 300ms by default).
// A store failure, an unknown plan or a timeout denies the write with
// STORAGE_ERROR; the gate never lets a write through because it could not
// decide.
//
// # HTTP
//
// Middleware applies the gate to chi or net/http routes. POST runs
// AuthorizeCreate, PUT, PATCH and DELETE run AuthorizeWrite, and reads pass
// untouched. It expects tenant.Middleware earlier in the chain:
//
//	r.With(writegate.Middleware(gate, writegate.StaticKind(writegate.KindClients))).
//		Route("/clients", clientRoutes)
//
// Denials are rendered by apperr.Write as {code, message, status, hint,
// details}.
//
// Usage reports consumption of every counted resource for upgrade prompts and
// is not affected by the subscription status.
package writegate
