package plan

import "errors"

var (
	ErrNilSource                = errors.New("plan: nil source")
	ErrFailedToLoadPlans        = errors.New("plan: failed to load plans")
	ErrInvalidPlanConfiguration = errors.New("plan: invalid plan configuration")
)
