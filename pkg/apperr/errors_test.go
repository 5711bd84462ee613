package apperr_test

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/salonkit/billingcore/pkg/apperr"
)

func TestCodeOf(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		code apperr.Code
	}{
		{"unauthorized", apperr.Unauthorized("missing claim"), apperr.CodeUnauthorized},
		{"not found", apperr.NotFound("plan %s", "pro"), apperr.CodeNotFound},
		{"validation", apperr.Validation("amount"), apperr.CodeValidation},
		{"inactive", &apperr.SubscriptionInactiveError{Status: "suspended"}, apperr.CodeSubscriptionInactive},
		{"limit", &apperr.PlanLimitExceededError{Resource: "clients", Limit: 5, Current: 5}, apperr.CodePlanLimitExceeded},
		{"transition", &apperr.InvalidTransitionError{From: "expired", Event: "payment_succeeded"}, apperr.CodeInvalidTransition},
		{"storage", apperr.Storage(errors.New("conn refused"), "load subscription"), apperr.CodeStorage},
		{"wrapped", fmt.Errorf("outer: %w", apperr.NotFound("x")), apperr.CodeNotFound},
		{"plain", errors.New("boom"), apperr.CodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.code, apperr.CodeOf(tt.err))
		})
	}
}

func TestSentinelMatching(t *testing.T) {
	t.Parallel()

	err := fmt.Errorf("gate: %w", &apperr.SubscriptionInactiveError{Status: "past_due"})
	assert.ErrorIs(t, err, apperr.ErrSubscriptionInactive)
	assert.NotErrorIs(t, err, apperr.ErrPlanLimitExceeded)

	var inactive *apperr.SubscriptionInactiveError
	require.ErrorAs(t, err, &inactive)
	assert.Equal(t, "past_due", inactive.Status)

	assert.ErrorIs(t, apperr.NotFound("subscription for tenant"), apperr.ErrNotFound)
	assert.NotErrorIs(t, apperr.NotFound("x"), apperr.ErrValidation)
}

func TestStoragePassesThroughCodedErrors(t *testing.T) {
	t.Parallel()

	notFound := apperr.NotFound("entry")
	assert.Same(t, notFound, apperr.Storage(notFound, "get entry"))
	assert.Nil(t, apperr.Storage(nil, "noop"))
}

func TestHintSurvivesWrapping(t *testing.T) {
	t.Parallel()

	err := apperr.WithHint(&apperr.SubscriptionInactiveError{Status: "suspended"}, "Regularize your payment to continue")
	assert.ErrorIs(t, err, apperr.ErrSubscriptionInactive)
	assert.Equal(t, "Regularize your payment to continue", apperr.Hint(err))
}

func TestWrite(t *testing.T) {
	t.Parallel()

	t.Run("limit exceeded carries details", func(t *testing.T) {
		t.Parallel()

		rec := httptest.NewRecorder()
		apperr.Write(rec, &apperr.PlanLimitExceededError{Resource: "clients", Limit: 100, Current: 100})

		assert.Equal(t, http.StatusForbidden, rec.Code)
		var body apperr.Response
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, apperr.CodePlanLimitExceeded, body.Code)
		assert.Equal(t, "clients", body.Details["resource"])
		assert.EqualValues(t, 100, body.Details["limit"])
	})

	t.Run("storage errors do not leak the cause", func(t *testing.T) {
		t.Parallel()

		rec := httptest.NewRecorder()
		apperr.Write(rec, apperr.Storage(errors.New("dial tcp 10.0.0.1:5432"), "evaluate"))

		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.NotContains(t, rec.Body.String(), "10.0.0.1")
	})
}
