package writegate

import (
	"net/http"

	"github.com/salonkit/billingcore/pkg/apperr"
	"github.com/salonkit/billingcore/pkg/tenant"
)

// KindFunc maps a request to the resource kind it mutates. Returning false
// leaves the request ungated.
type KindFunc func(r *http.Request) (ResourceKind, bool)

// StaticKind gates every mutating request with the same kind.
func StaticKind(kind ResourceKind) KindFunc {
	return func(*http.Request) (ResourceKind, bool) { return kind, true }
}

// Middleware gates mutating requests: POST runs AuthorizeCreate, while PUT,
// PATCH and DELETE run AuthorizeWrite and so ignore plan limits. It expects
// tenant.Middleware to have run first. Denials are rendered as structured
// JSON with the reason code.
func Middleware(g *Gate, kindOf KindFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !mutating(r.Method) {
				next.ServeHTTP(w, r)
				return
			}
			kind, ok := kindOf(r)
			if !ok {
				next.ServeHTTP(w, r)
				return
			}
			tenantID, ok := tenant.IDFromContext(r.Context())
			if !ok {
				apperr.Write(w, apperr.Unauthorized("no tenant context"))
				return
			}
			authorize := g.AuthorizeWrite
			if r.Method == http.MethodPost {
				authorize = g.AuthorizeCreate
			}
			if err := authorize(r.Context(), tenantID, kind); err != nil {
				apperr.Write(w, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func mutating(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	default:
		return false
	}
}
