package tenant_test

import (
	"context"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/salonkit/billingcore/pkg/apperr"
	"github.com/salonkit/billingcore/pkg/tenant"
)

func TestResolve(t *testing.T) {
	t.Parallel()

	id := uuid.New()

	tests := []struct {
		name    string
		p       tenant.Principal
		wantErr bool
	}{
		{"valid claim", tenant.StaticPrincipal{Tenant: id.String()}, false},
		{"nil principal", nil, true},
		{"no claim", tenant.StaticPrincipal{}, true},
		{"blank claim", tenant.StaticPrincipal{Tenant: "   "}, true},
		{"not a uuid", tenant.StaticPrincipal{Tenant: "salon-1"}, true},
		{"nil uuid", tenant.StaticPrincipal{Tenant: uuid.Nil.String()}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			tc, err := tenant.Resolve(tt.p)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, apperr.ErrUnauthorized)
				assert.Equal(t, apperr.CodeUnauthorized, apperr.CodeOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, id, tc.TenantID)
		})
	}
}

func TestRequireOperator(t *testing.T) {
	t.Parallel()

	assert.NoError(t, tenant.RequireOperator(tenant.Operator()))
	assert.ErrorIs(t, tenant.RequireOperator(tenant.StaticPrincipal{
		Tenant:    uuid.NewString(),
		RoleNames: []string{"owner"},
	}), apperr.ErrUnauthorized)
	assert.ErrorIs(t, tenant.RequireOperator(nil), apperr.ErrUnauthorized)
}

func TestContext(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	_, ok := tenant.IDFromContext(ctx)
	assert.False(t, ok)

	id := uuid.New()
	ctx = tenant.WithContext(ctx, tenant.Context{TenantID: id})
	got, ok := tenant.IDFromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, id, got)

	attr, ok := tenant.LoggerExtractor()(ctx)
	require.True(t, ok)
	assert.Equal(t, id.String(), attr.Value.String())
}

func TestClaimsPrincipal(t *testing.T) {
	t.Parallel()

	id := uuid.NewString()

	t.Run("default claim names", func(t *testing.T) {
		t.Parallel()
		p := tenant.NewClaimsPrincipal(jwt.MapClaims{
			"tenant_id": id,
			"roles":     []any{"owner", tenant.RoleOperator, 42},
		})
		claim, ok := p.TenantClaim()
		require.True(t, ok)
		assert.Equal(t, id, claim)
		assert.Equal(t, []string{"owner", tenant.RoleOperator}, p.Roles())
	})

	t.Run("custom claim names and space separated roles", func(t *testing.T) {
		t.Parallel()
		p := tenant.ClaimsPrincipal{
			Claims:    jwt.MapClaims{"org": id, "scope": "owner staff"},
			TenantKey: "org",
			RolesKey:  "scope",
		}
		tc, err := tenant.Resolve(p)
		require.NoError(t, err)
		assert.Equal(t, id, tc.TenantID.String())
		assert.Equal(t, []string{"owner", "staff"}, p.Roles())
	})

	t.Run("non-string tenant claim", func(t *testing.T) {
		t.Parallel()
		_, err := tenant.Resolve(tenant.NewClaimsPrincipal(jwt.MapClaims{"tenant_id": 7}))
		assert.ErrorIs(t, err, apperr.ErrUnauthorized)
	})
}
