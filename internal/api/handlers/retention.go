package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/evidentry/evidentry/internal/api"
	"github.com/evidentry/evidentry/internal/api/middleware"
	"github.com/evidentry/evidentry/internal/service"
)

type RetentionService interface {
	Enforce(ctx context.Context, input service.EnforceInput) (*service.EnforcementReport, error)
}

type RetentionHandler struct {
	svc RetentionService
}

func NewRetentionHandler(svc RetentionService) *RetentionHandler {
	return &RetentionHandler{svc: svc}
}

type EnforceRequest struct {
	ArtifactType string `json:"artifact_type"`
	DryRun       bool   `json:"dry_run"`
	Limit        int    `json:"limit"`
	Reason       string `json:"reason"`
}

// Enforce runs one retention pass over the caller's tenant. The tenant scope
// always comes from the API key, so one tenant can never enforce against
// another.
func (h *RetentionHandler) Enforce(w http.ResponseWriter, r *http.Request) {
	var req EnforceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	principal := middleware.GetPrincipal(r.Context())
	report, err := h.svc.Enforce(r.Context(), service.EnforceInput{
		Tenant:       middleware.GetTenant(r.Context()),
		ArtifactType: req.ArtifactType,
		DryRun:       req.DryRun,
		Limit:        req.Limit,
		Reason:       req.Reason,
		RequestedBy:  subjectOf(principal),
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}
	api.Success(w, http.StatusOK, report)
}
