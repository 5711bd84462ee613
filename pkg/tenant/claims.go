package tenant

import (
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/salonkit/billingcore/pkg/apperr"
)

const (
	DefaultTenantClaim = "tenant_id"
	DefaultRolesClaim  = "roles"
)

// ClaimsPrincipal adapts verified JWT claims. The token must already be
// verified; ClaimsPrincipal only reads claims.
type ClaimsPrincipal struct {
	Claims    jwt.MapClaims
	TenantKey string
	RolesKey  string
}

// NewClaimsPrincipal uses the default claim names.
func NewClaimsPrincipal(claims jwt.MapClaims) ClaimsPrincipal {
	return ClaimsPrincipal{Claims: claims, TenantKey: DefaultTenantClaim, RolesKey: DefaultRolesClaim}
}

func (p ClaimsPrincipal) TenantClaim() (string, bool) {
	key := p.TenantKey
	if key == "" {
		key = DefaultTenantClaim
	}
	v, ok := p.Claims[key].(string)
	return v, ok && v != ""
}

// Roles accepts either a JSON array of strings or a single space separated string.
func (p ClaimsPrincipal) Roles() []string {
	key := p.RolesKey
	if key == "" {
		key = DefaultRolesClaim
	}
	switch v := p.Claims[key].(type) {
	case string:
		return strings.Fields(v)
	case []string:
		return v
	case []any:
		roles := make([]string, 0, len(v))
		for _, r := range v {
			if s, ok := r.(string); ok {
				roles = append(roles, s)
			}
		}
		return roles
	default:
		return nil
	}
}

// PrincipalExtractor obtains the authenticated principal of a request.
type PrincipalExtractor func(r *http.Request) (Principal, error)

// BearerExtractor verifies an HS256 bearer token with secret and exposes its
// claims as a ClaimsPrincipal.
func BearerExtractor(secret []byte) PrincipalExtractor {
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	return func(r *http.Request) (Principal, error) {
		header := r.Header.Get("Authorization")
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || raw == "" {
			return nil, apperr.Unauthorized("missing bearer token")
		}
		token, err := parser.Parse(raw, func(*jwt.Token) (any, error) {
			return secret, nil
		})
		if err != nil {
			return nil, apperr.WithHint(
				apperr.Unauthorized("invalid or expired token: %v", err),
				"Sign in again to continue",
			)
		}
		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok || !token.Valid {
			return nil, apperr.Unauthorized("invalid token claims")
		}
		return NewClaimsPrincipal(claims), nil
	}
}
