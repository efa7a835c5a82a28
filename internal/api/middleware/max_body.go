package middleware

import (
	"fmt"
	"net/http"

	"github.com/evidentry/evidentry/internal/api"
)

// MaxBodyBytes limits request body size. Decision payloads and document
// text land in the ledger verbatim, so the cap is also a bound on row and
// report size.
func MaxBodyBytes(limit int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if limit <= 0 || r.Body == nil {
				next.ServeHTTP(w, r)
				return
			}

			if r.ContentLength > limit && r.ContentLength != -1 {
				api.Error(w, http.StatusRequestEntityTooLarge,
					fmt.Sprintf("request body exceeds %d byte limit", limit))
				return
			}

			r.Body = http.MaxBytesReader(w, r.Body, limit)
			next.ServeHTTP(w, r)
		})
	}
}
