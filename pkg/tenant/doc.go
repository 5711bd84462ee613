// Package tenant resolves the acting tenant from an authenticated principal
// and carries it through the call chain.
//
// Resolve is the only place a tenant identifier is read off a credential.
// Everything downstream receives the tenant ID as an explicit argument, taken
// once from the Context that Resolve produced. A missing, empty or malformed
// tenant claim is UNAUTHORIZED; there is no fallback tenant.
//
//	tc, err := tenant.Resolve(principal)
//	if err != nil {
//		return err // UNAUTHORIZED
//	}
//	ctx = tenant.WithContext(ctx, tc)
//	err = gate.AuthorizeCreate(ctx, tc.TenantID, writegate.KindClients)
//
// # HTTP
//
// Middleware does the same for net/http handlers, taking the principal from a
// PrincipalExtractor. BearerExtractor verifies an HS256 JWT with
// github.com/golang-jwt/jwt/v5 and reads the tenant and role claims:
//
//	r := chi.NewRouter()
//	r.Use(tenant.Middleware(tenant.BearerExtractor(secret),
//		tenant.WithSkipPaths("/healthz", "/readyz"),
//		tenant.WithLogger(log),
//	))
//	r.Get("/summary", func(w http.ResponseWriter, r *http.Request) {
//		tenantID, _ := tenant.IDFromContext(r.Context())
//		// ...
//	})
//
// LoggerExtractor plugs the resolved tenant into the logger package so every
// record carries tenant_id.
//
// # Operators
//
// Platform-wide reports are gated by RequireOperator instead, which admits
// principals carrying the operator role regardless of their tenant claim.
// RequireOperatorMiddleware is its HTTP form.
package tenant
