package middleware

import (
	"context"
	"encoding/json"
	"log"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/evidentry/evidentry/internal/domain"
)

type accessLogEntry struct {
	Timestamp  string `json:"ts"`
	Method     string `json:"method"`
	Path       string `json:"path"`
	Status     int    `json:"status"`
	Bytes      int    `json:"bytes"`
	DurationMS int64  `json:"duration_ms"`
	RequestID  string `json:"request_id,omitempty"`
	Tenant     string `json:"tenant,omitempty"`
	Subject    string `json:"subject,omitempty"`
	Operator   bool   `json:"operator,omitempty"`
	RemoteAddr string `json:"remote_addr,omitempty"`
	UserAgent  string `json:"user_agent,omitempty"`
}

type responseRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (r *responseRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *responseRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	n, err := r.ResponseWriter.Write(b)
	r.bytes += n
	return n, err
}

// principalHolder is seeded into the context by the outer observability
// middleware and filled in by APIKeyAuth once the bearer key resolves.
// AccessLog and SentryMiddleware run outside the auth group, so without
// the holder the principal set further down the chain would never reach
// the log line or the trace tags.
type principalHolder struct {
	principal *domain.Principal
}

const principalHolderKey contextKey = "principal_holder"

// ensurePrincipalHolder returns the holder already in ctx, or seeds a
// fresh one. Both observability middlewares call this; whichever runs
// first creates the holder and the other reuses it.
func ensurePrincipalHolder(ctx context.Context) (context.Context, *principalHolder) {
	if holder, ok := ctx.Value(principalHolderKey).(*principalHolder); ok {
		return ctx, holder
	}
	holder := &principalHolder{}
	return context.WithValue(ctx, principalHolderKey, holder), holder
}

// AccessLog emits one structured JSON line per HTTP request. Each line
// records the acting principal (tenant and key subject) and whether the
// operator credential was presented, so server logs can be correlated
// with ledger writes during an audit.
func AccessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &responseRecorder{ResponseWriter: w}

		ctx, holder := ensurePrincipalHolder(r.Context())

		next.ServeHTTP(rec, r.WithContext(ctx))

		status := rec.status
		if status == 0 {
			status = http.StatusOK
		}

		var tenant, subject string
		if holder.principal != nil {
			tenant = holder.principal.Tenant
			subject = holder.principal.Subject
		}

		entry := accessLogEntry{
			Timestamp:  start.UTC().Format(time.RFC3339Nano),
			Method:     r.Method,
			Path:       r.URL.Path,
			Status:     status,
			Bytes:      rec.bytes,
			DurationMS: time.Since(start).Milliseconds(),
			RequestID:  GetRequestID(ctx),
			Tenant:     tenant,
			Subject:    subject,
			Operator:   r.Header.Get(OperatorKeyHeader) != "",
			RemoteAddr: clientIP(r),
			UserAgent:  r.UserAgent(),
		}

		payload, err := json.Marshal(entry)
		if err != nil {
			log.Printf("access_log_marshal_error: %v", err)
			return
		}
		log.Println(string(payload))
	})
}

func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		if len(parts) > 0 {
			return strings.TrimSpace(parts[0])
		}
	}

	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
