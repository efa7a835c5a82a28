package middleware

import (
	"context"
	"crypto/subtle"
	"net/http"

	"github.com/evidentry/evidentry/internal/api"
)

// OperatorKeyHeader carries the operator credential on elevated requests.
const OperatorKeyHeader = "x-operator-key"

// RequireOperator guards elevated operations behind the shared operator
// credential. An empty configured key disables every operator route. The
// comparison is constant time. On success the principal in context (if any)
// is marked as an operator.
func RequireOperator(operatorKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if operatorKey == "" {
				api.Error(w, http.StatusForbidden, "operator operations are disabled")
				return
			}

			presented := r.Header.Get(OperatorKeyHeader)
			if subtle.ConstantTimeCompare([]byte(presented), []byte(operatorKey)) != 1 {
				api.Error(w, http.StatusForbidden, "operator credential required")
				return
			}

			ctx := r.Context()
			if principal := GetPrincipal(ctx); principal != nil {
				elevated := *principal
				elevated.Operator = true
				ctx = context.WithValue(ctx, PrincipalKey, &elevated)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
