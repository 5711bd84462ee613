// Package apperr defines the error taxonomy shared by the billing core.
//
// Every component boundary (tenant resolution, the subscription state machine,
// the write gate, the ledger aggregator) returns errors from this package so
// callers never see driver-specific error types. Each error carries a
// machine-readable Code that the HTTP layer maps to a status and a response
// body, plus an optional user-facing hint attached with
// github.com/cockroachdb/errors.
//
// Matching works with the standard library:
//
//	if errors.Is(err, apperr.ErrSubscriptionInactive) {
//		var inactive *apperr.SubscriptionInactiveError
//		if errors.As(err, &inactive) {
//			// inactive.Status is "past_due", "suspended", ...
//		}
//	}
package apperr
