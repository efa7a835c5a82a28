package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/evidentry/evidentry/internal/api"
	"github.com/evidentry/evidentry/internal/api/handlers"
	"github.com/evidentry/evidentry/internal/api/middleware"
)

type RouterConfig struct {
	AuthValidator    middleware.AuthValidator
	OperatorKey      string
	DecisionHandler  *handlers.DecisionHandler
	ReportHandler    *handlers.ReportHandler
	DocumentHandler  *handlers.DocumentHandler
	PolicyHandler    *handlers.PolicyHandler
	HoldHandler      *handlers.HoldHandler
	RetentionHandler *handlers.RetentionHandler
	AuthHandler      *handlers.AuthHandler
}

// NewRouter wires the HTTP surface. Every route except /health requires an
// API key; write routes that change the ledger or its governance state are
// additionally gated behind the operator credential.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	const maxBodyBytes int64 = 5 * 1024 * 1024

	r.Use(middleware.RequestID)
	r.Use(middleware.SentryMiddleware)
	r.Use(middleware.AccessLog)
	r.Use(middleware.MaxBodyBytes(maxBodyBytes))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		api.Success(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	operator := middleware.RequireOperator(cfg.OperatorKey)

	r.Group(func(r chi.Router) {
		r.Use(middleware.APIKeyAuth(cfg.AuthValidator))

		r.Route("/decisions", func(r chi.Router) {
			r.With(operator).Post("/", cfg.DecisionHandler.Upsert)
			r.Post("/query", cfg.DecisionHandler.Query)
			r.Get("/{decisionID}", cfg.DecisionHandler.Get)
			r.Get("/{decisionID}/report", cfg.ReportHandler.Report)
			r.With(operator).Post("/export", cfg.ReportHandler.Export)
			r.With(operator).Post("/bundle", cfg.ReportHandler.Bundle)
			r.With(operator).Post("/package", cfg.ReportHandler.Package)
		})

		r.With(operator).Post("/admin/decisions/query", cfg.DecisionHandler.AdminQuery)

		r.Route("/documents", func(r chi.Router) {
			r.With(operator).Post("/", cfg.DocumentHandler.Register)
			r.Get("/", cfg.DocumentHandler.List)
			r.Get("/{docID}", cfg.DocumentHandler.Get)
		})

		r.Route("/artifacts", func(r chi.Router) {
			r.Get("/", cfg.ReportHandler.ListArtifacts)
			r.Post("/verify", cfg.ReportHandler.Verify)
			r.Get("/{artifactID}", cfg.ReportHandler.GetArtifact)
			r.Get("/{artifactID}/download", cfg.ReportHandler.DownloadArtifact)
		})

		r.Route("/policies", func(r chi.Router) {
			r.With(operator).Put("/", cfg.PolicyHandler.Upsert)
			r.Get("/", cfg.PolicyHandler.List)
			r.With(operator).Post("/snapshot", cfg.ReportHandler.SnapshotPolicies)
			r.Get("/{artifactType}", cfg.PolicyHandler.Get)
			r.With(operator).Delete("/{artifactType}", cfg.PolicyHandler.Delete)
		})

		r.Route("/holds", func(r chi.Router) {
			r.With(operator).Post("/", cfg.HoldHandler.Create)
			r.Get("/", cfg.HoldHandler.List)
			r.Get("/{holdID}", cfg.HoldHandler.Get)
			r.With(operator).Post("/{holdID}/release", cfg.HoldHandler.Release)
		})

		r.With(operator).Post("/retention/enforce", cfg.RetentionHandler.Enforce)

		// Tenant and key bootstrap. Operator-only; there is no self-service
		// signup surface.
		r.Route("/tenants", func(r chi.Router) {
			r.Use(operator)
			r.Post("/", cfg.AuthHandler.CreateTenant)
			r.Get("/", cfg.AuthHandler.ListTenants)
			r.Get("/{tenantID}", cfg.AuthHandler.GetTenant)
		})
		r.Route("/apikeys", func(r chi.Router) {
			r.Use(operator)
			r.Post("/", cfg.AuthHandler.CreateAPIKey)
			r.Get("/", cfg.AuthHandler.ListAPIKeys)
			r.Post("/{keyID}/revoke", cfg.AuthHandler.RevokeAPIKey)
		})
	})

	return r
}
