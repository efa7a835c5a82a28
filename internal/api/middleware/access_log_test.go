package middleware

import (
	"bytes"
	"encoding/json"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evidentry/evidentry/internal/domain"
)

func captureLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prevOut := log.Writer()
	prevFlags := log.Flags()
	log.SetOutput(&buf)
	log.SetFlags(0)
	t.Cleanup(func() {
		log.SetOutput(prevOut)
		log.SetFlags(prevFlags)
	})
	return &buf
}

func TestAccessLog(t *testing.T) {
	t.Run("logs principal resolved by inner auth", func(t *testing.T) {
		buf := captureLog(t)
		validator := &stubValidator{principal: &domain.Principal{Tenant: "acme", Subject: "ci@acme"}}

		handler := AccessLog(APIKeyAuth(validator)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusCreated)
		})))

		req := httptest.NewRequest("POST", "/decisions", nil)
		req.Header.Set("Authorization", "Bearer evd_token")
		req.Header.Set(OperatorKeyHeader, "op-secret")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		var entry accessLogEntry
		require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
		assert.Equal(t, "POST", entry.Method)
		assert.Equal(t, "/decisions", entry.Path)
		assert.Equal(t, http.StatusCreated, entry.Status)
		assert.Equal(t, "acme", entry.Tenant)
		assert.Equal(t, "ci@acme", entry.Subject)
		assert.True(t, entry.Operator)
	})

	t.Run("unauthenticated request logs without principal", func(t *testing.T) {
		buf := captureLog(t)

		handler := AccessLog(APIKeyAuth(&stubValidator{err: domain.ErrInvalidAPIKey})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("handler must not run")
		})))

		req := httptest.NewRequest("GET", "/artifacts", nil)
		req.Header.Set("Authorization", "Bearer evd_bogus")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		var entry accessLogEntry
		require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
		assert.Equal(t, http.StatusUnauthorized, entry.Status)
		assert.Empty(t, entry.Tenant)
		assert.Empty(t, entry.Subject)
		assert.False(t, entry.Operator)
	})
}
