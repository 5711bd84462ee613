package apperr

import "fmt"

// InvalidTransitionError is returned when an event cannot be applied to the
// subscription's current status.
type InvalidTransitionError struct {
	From  string
	Event string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("event %q is not applicable to a %q subscription", e.Event, e.From)
}

func (e *InvalidTransitionError) Is(target error) bool { return target == ErrInvalidTransition }

// SubscriptionInactiveError denies a write because the subscription is in a
// blocking status. Status names the concrete status.
type SubscriptionInactiveError struct {
	Status string
}

func (e *SubscriptionInactiveError) Error() string {
	return fmt.Sprintf("subscription is %s: writes are blocked", e.Status)
}

func (e *SubscriptionInactiveError) Is(target error) bool { return target == ErrSubscriptionInactive }

// PlanLimitExceededError denies a write because a plan resource ceiling was reached.
type PlanLimitExceededError struct {
	Resource string
	Limit    int64
	Current  int64
}

func (e *PlanLimitExceededError) Error() string {
	return fmt.Sprintf("plan limit reached for %s: %d of %d used", e.Resource, e.Current, e.Limit)
}

func (e *PlanLimitExceededError) Is(target error) bool { return target == ErrPlanLimitExceeded }
