package tenant

import (
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/salonkit/billingcore/pkg/apperr"
)

// RoleOperator is the platform-operator role admitted to cross-tenant reports.
const RoleOperator = "platform_operator"

// Tenant is one salon account. Tenants are never deleted.
type Tenant struct {
	ID        uuid.UUID `json:"id"`
	Slug      string    `json:"slug"`
	CreatedAt time.Time `json:"created_at"`
}

// Principal is an authenticated caller as supplied by the auth layer.
type Principal interface {
	// TenantClaim returns the raw tenant identifier claim, if present.
	TenantClaim() (string, bool)
	Roles() []string
}

// Context is the resolved tenant scope of one request or operation.
type Context struct {
	TenantID uuid.UUID
}

// Resolve produces the tenant context for p. Missing, empty or malformed
// tenant claims are UNAUTHORIZED.
func Resolve(p Principal) (Context, error) {
	if p == nil {
		return Context{}, apperr.Unauthorized("no principal")
	}
	claim, ok := p.TenantClaim()
	claim = strings.TrimSpace(claim)
	if !ok || claim == "" {
		return Context{}, apperr.Unauthorized("principal carries no tenant claim")
	}
	id, err := uuid.Parse(claim)
	if err != nil || id == uuid.Nil {
		return Context{}, apperr.Unauthorized("tenant claim is not a valid identifier")
	}
	return Context{TenantID: id}, nil
}

// RequireOperator admits only platform operators.
func RequireOperator(p Principal) error {
	if p == nil || !slices.Contains(p.Roles(), RoleOperator) {
		return apperr.Unauthorized("platform operator role required")
	}
	return nil
}

// StaticPrincipal is a fixed Principal for jobs and tests.
type StaticPrincipal struct {
	Tenant    string
	RoleNames []string
}

func (p StaticPrincipal) TenantClaim() (string, bool) { return p.Tenant, p.Tenant != "" }

func (p StaticPrincipal) Roles() []string { return p.RoleNames }

// Operator returns a principal for internal platform jobs.
func Operator() Principal {
	return StaticPrincipal{RoleNames: []string{RoleOperator}}
}
