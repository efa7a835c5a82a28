package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/evidentry/evidentry/internal/domain"
)

func TestRequireOperator(t *testing.T) {
	t.Run("matching key elevates the principal", func(t *testing.T) {
		var seen *domain.Principal
		handler := RequireOperator("super-secret")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen = GetPrincipal(r.Context())
			w.WriteHeader(http.StatusOK)
		}))

		req := httptest.NewRequest("POST", "/retention/enforce", nil)
		req.Header.Set(OperatorKeyHeader, "super-secret")
		ctx := context.WithValue(req.Context(), PrincipalKey, &domain.Principal{Tenant: "acme", Subject: "ops@acme"})
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req.WithContext(ctx))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.NotNil(t, seen)
		assert.True(t, seen.Operator)
		assert.Equal(t, "acme", seen.Tenant)
	})

	t.Run("wrong key is forbidden", func(t *testing.T) {
		handler := RequireOperator("super-secret")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("handler must not run")
		}))

		req := httptest.NewRequest("POST", "/retention/enforce", nil)
		req.Header.Set(OperatorKeyHeader, "guess")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("missing header is forbidden", func(t *testing.T) {
		handler := RequireOperator("super-secret")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("handler must not run")
		}))

		req := httptest.NewRequest("POST", "/retention/enforce", nil)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("unconfigured key disables operator routes entirely", func(t *testing.T) {
		handler := RequireOperator("")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("handler must not run")
		}))

		req := httptest.NewRequest("POST", "/retention/enforce", nil)
		req.Header.Set(OperatorKeyHeader, "")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusForbidden, w.Code)
	})
}
