package writegate_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/salonkit/billingcore/pkg/apperr"
	"github.com/salonkit/billingcore/pkg/plan"
	"github.com/salonkit/billingcore/pkg/subscription"
	"github.com/salonkit/billingcore/pkg/tenant"
	"github.com/salonkit/billingcore/pkg/writegate"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
}

func withTenant(r *http.Request) *http.Request {
	return r.WithContext(tenant.WithContext(r.Context(), tenant.Context{TenantID: uuid.New()}))
}

func TestMiddleware(t *testing.T) {
	t.Parallel()

	t.Run("reads pass a blocked tenant", func(t *testing.T) {
		t.Parallel()
		g := newGate(t, subWith(subscription.StatusSuspended, "basic"), nil)
		h := writegate.Middleware(g, writegate.StaticKind(writegate.KindFinancialEntries))(okHandler())

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, withTenant(httptest.NewRequest(http.MethodGet, "/entries", nil)))
		assert.Equal(t, http.StatusNoContent, rec.Code)
	})

	t.Run("writes of a blocked tenant are denied", func(t *testing.T) {
		t.Parallel()
		g := newGate(t, subWith(subscription.StatusPastDue, "basic"), nil)
		h := writegate.Middleware(g, writegate.StaticKind(writegate.KindFinancialEntries))(okHandler())

		for _, method := range []string{http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete} {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, withTenant(httptest.NewRequest(method, "/entries", nil)))
			require.Equal(t, http.StatusPaymentRequired, rec.Code, method)

			var body apperr.Response
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
			assert.Equal(t, apperr.CodeSubscriptionInactive, body.Code)
			assert.Equal(t, "past_due", body.Details["status"])
			assert.NotEmpty(t, body.Hint)
		}
	})

	t.Run("allowed writes reach the handler", func(t *testing.T) {
		t.Parallel()
		g := newGate(t, subWith(subscription.StatusActive, "basic"), nil)
		h := writegate.Middleware(g, writegate.StaticKind(writegate.KindFinancialExits))(okHandler())

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, withTenant(httptest.NewRequest(http.MethodPost, "/exits", nil)))
		assert.Equal(t, http.StatusNoContent, rec.Code)
	})

	t.Run("plan limits apply to creates only", func(t *testing.T) {
		t.Parallel()
		g := newGate(t, subWith(subscription.StatusActive, "basic"), nil,
			writegate.WithCounter(plan.ResourceProfessionals, fixedCount(3)))
		h := writegate.Middleware(g, writegate.StaticKind(writegate.KindProfessionals))(okHandler())

		for _, method := range []string{http.MethodPut, http.MethodPatch, http.MethodDelete} {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, withTenant(httptest.NewRequest(method, "/professionals/1", nil)))
			assert.Equal(t, http.StatusNoContent, rec.Code, method)
		}

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, withTenant(httptest.NewRequest(http.MethodPost, "/professionals", nil)))
		require.Equal(t, http.StatusForbidden, rec.Code)

		var body apperr.Response
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
		assert.Equal(t, apperr.CodePlanLimitExceeded, body.Code)
	})

	t.Run("missing tenant context", func(t *testing.T) {
		t.Parallel()
		g := newGate(t, subWith(subscription.StatusActive, "basic"), nil)
		h := writegate.Middleware(g, writegate.StaticKind(writegate.KindFinancialExits))(okHandler())

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/exits", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("ungated routes", func(t *testing.T) {
		t.Parallel()
		g := newGate(t, subWith(subscription.StatusExpired, "basic"), nil)
		kindOf := func(*http.Request) (writegate.ResourceKind, bool) { return "", false }
		h := writegate.Middleware(g, kindOf)(okHandler())

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, withTenant(httptest.NewRequest(http.MethodPost, "/billing/checkout", nil)))
		assert.Equal(t, http.StatusNoContent, rec.Code)
	})
}
