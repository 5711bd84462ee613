package apperr

import (
	"github.com/cockroachdb/errors"
)

// WithHint attaches a user-facing hint to err.
func WithHint(err error, hint string) error {
	if err == nil {
		return nil
	}
	return errors.WithHint(err, hint)
}

// Hint returns the hints attached to err, joined by newlines.
func Hint(err error) string {
	return errors.FlattenHints(err)
}

// Details returns the structured fields a client needs to render an
// actionable message for err, or nil.
func Details(err error) map[string]any {
	var inactive *SubscriptionInactiveError
	if errors.As(err, &inactive) {
		return map[string]any{"status": inactive.Status}
	}
	var limit *PlanLimitExceededError
	if errors.As(err, &limit) {
		return map[string]any{
			"resource": limit.Resource,
			"limit":    limit.Limit,
			"current":  limit.Current,
		}
	}
	var transition *InvalidTransitionError
	if errors.As(err, &transition) {
		return map[string]any{"from": transition.From, "event": transition.Event}
	}
	var e *Error
	if errors.As(err, &e) && len(e.Fields) > 0 {
		return map[string]any{"fields": e.Fields}
	}
	return nil
}
