package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/evidentry/evidentry/internal/api"
	"github.com/evidentry/evidentry/internal/domain"
)

type contextKey string

const PrincipalKey contextKey = "principal"

// AuthValidator resolves a bearer token to the principal it authenticates.
type AuthValidator interface {
	ResolvePrincipal(ctx context.Context, token string) (*domain.Principal, error)
}

// APIKeyAuth authenticates requests with a bearer API key and puts the
// resolved principal into the request context. The tenant claim comes from
// the key, never from the request body.
func APIKeyAuth(validator AuthValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				api.Error(w, http.StatusUnauthorized, "missing authorization header")
				return
			}

			if !strings.HasPrefix(authHeader, "Bearer ") {
				api.Error(w, http.StatusUnauthorized, "invalid authorization format")
				return
			}

			token := strings.TrimPrefix(authHeader, "Bearer ")

			principal, err := validator.ResolvePrincipal(r.Context(), token)
			if err != nil {
				api.Error(w, http.StatusUnauthorized, "invalid api key")
				return
			}

			ctx := context.WithValue(r.Context(), PrincipalKey, principal)
			if holder, ok := ctx.Value(principalHolderKey).(*principalHolder); ok {
				holder.principal = principal
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetPrincipal returns the authenticated principal from context, or nil.
func GetPrincipal(ctx context.Context) *domain.Principal {
	principal, _ := ctx.Value(PrincipalKey).(*domain.Principal)
	return principal
}

// GetTenant returns the authenticated principal's tenant, or "".
func GetTenant(ctx context.Context) string {
	if p := GetPrincipal(ctx); p != nil {
		return p.Tenant
	}
	return ""
}
