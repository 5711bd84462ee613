// Package plan holds the immutable catalog of subscription plans.
//
// A Registry is loaded once from a Source at startup and never changes
// afterwards, so it can be shared between goroutines without locking. Plans are
// versioned by replacement: a retired version keeps its ID, has Active=false,
// and stays resolvable through Lookup so live subscriptions that reference it
// keep their limits. GetPlan only returns active plans.
//
// Limits use -1 (Unlimited) for resources without a ceiling. Use Plan.Allows
// rather than comparing against the number directly.
package plan
