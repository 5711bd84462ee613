package apperr

import (
	"fmt"
	"net/http"

	"github.com/cockroachdb/errors"
)

// Code is a machine-readable error reason.
type Code string

const (
	CodeUnauthorized         Code = "UNAUTHORIZED"
	CodeNotFound             Code = "NOT_FOUND"
	CodeInvalidTransition    Code = "INVALID_TRANSITION"
	CodeSubscriptionInactive Code = "SUBSCRIPTION_INACTIVE"
	CodePlanLimitExceeded    Code = "PLAN_LIMIT_EXCEEDED"
	CodeValidation           Code = "VALIDATION_ERROR"
	CodeStorage              Code = "STORAGE_ERROR"
	CodeInternal             Code = "INTERNAL_ERROR"
)

// Sentinels for errors.Is matching. They compare by Code, so any *Error or
// typed error with the same code matches.
var (
	ErrUnauthorized         = &Error{Code: CodeUnauthorized, Message: "no tenant context"}
	ErrNotFound             = &Error{Code: CodeNotFound, Message: "resource not found"}
	ErrInvalidTransition    = &Error{Code: CodeInvalidTransition, Message: "invalid subscription transition"}
	ErrSubscriptionInactive = &Error{Code: CodeSubscriptionInactive, Message: "subscription is not active"}
	ErrPlanLimitExceeded    = &Error{Code: CodePlanLimitExceeded, Message: "plan limit exceeded"}
	ErrValidation           = &Error{Code: CodeValidation, Message: "validation failed"}
	ErrStorage              = &Error{Code: CodeStorage, Message: "storage failure"}

	statusByCode = map[Code]int{
		CodeUnauthorized:         http.StatusUnauthorized,
		CodeNotFound:             http.StatusNotFound,
		CodeInvalidTransition:    http.StatusConflict,
		CodeSubscriptionInactive: http.StatusPaymentRequired,
		CodePlanLimitExceeded:    http.StatusForbidden,
		CodeValidation:           http.StatusUnprocessableEntity,
		CodeStorage:              http.StatusServiceUnavailable,
	}
)

// Error is the generic boundary error.
type Error struct {
	Code    Code
	Message string
	Err     error
	// Fields maps invalid input fields to the rule they broke.
	Fields map[string]string
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any error of the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

func newf(code Code, format string, args ...any) error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Unauthorized reports a missing or unusable tenant credential.
func Unauthorized(format string, args ...any) error {
	return newf(CodeUnauthorized, format, args...)
}

// NotFound reports an absent resource or one not owned by the acting tenant.
func NotFound(format string, args ...any) error {
	return newf(CodeNotFound, format, args...)
}

// Validation reports malformed input.
func Validation(format string, args ...any) error {
	return newf(CodeValidation, format, args...)
}

// ValidationWrap reports malformed input detected by a validator.
func ValidationWrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: CodeValidation, Message: msg, Err: err}
}

// ValidationFields reports malformed input with per-field reasons.
func ValidationFields(err error, fields map[string]string) error {
	return &Error{Code: CodeValidation, Message: "invalid input", Err: err, Fields: fields}
}

// Storage wraps a store-level failure so no driver error type crosses a
// component boundary. Errors that already carry a code pass through.
func Storage(err error, op string) error {
	if err == nil {
		return nil
	}
	if CodeOf(err) != CodeInternal {
		return err
	}
	return &Error{Code: CodeStorage, Message: op, Err: err}
}

// CodeOf returns the code of the first known error in the chain,
// or CodeInternal.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	var inactive *SubscriptionInactiveError
	if errors.As(err, &inactive) {
		return CodeSubscriptionInactive
	}
	var limit *PlanLimitExceededError
	if errors.As(err, &limit) {
		return CodePlanLimitExceeded
	}
	var transition *InvalidTransitionError
	if errors.As(err, &transition) {
		return CodeInvalidTransition
	}
	return CodeInternal
}

// HTTPStatus maps err to an HTTP status code.
func HTTPStatus(err error) int {
	if status, ok := statusByCode[CodeOf(err)]; ok {
		return status
	}
	return http.StatusInternalServerError
}
