package ledger

import "github.com/salonkit/billingcore/pkg/apperr"

// ErrStatusFinal is returned when a paid or cancelled row would change status.
var ErrStatusFinal = &apperr.Error{
	Code:    apperr.CodeValidation,
	Message: "ledger row is already settled or cancelled",
}
