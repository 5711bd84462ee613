package subscription

import (
	"errors"

	"github.com/salonkit/billingcore/pkg/apperr"
)

var (
	// ErrLiveSubscriptionExists is returned by Store.Create when the tenant
	// already has a non-terminal subscription.
	ErrLiveSubscriptionExists = &apperr.Error{
		Code:    apperr.CodeInvalidTransition,
		Message: "tenant already has a live subscription",
	}

	// ErrConflict reports a lost optimistic version check or a serialization
	// failure. ApplyBillingEvent and Advance retry it.
	ErrConflict = errors.New("subscription: concurrent modification")
)
