package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/evidentry/evidentry/internal/api"
	"github.com/evidentry/evidentry/internal/api/middleware"
	"github.com/evidentry/evidentry/internal/domain"
	"github.com/evidentry/evidentry/internal/service"
)

type PolicyService interface {
	Upsert(ctx context.Context, input service.UpsertPolicyInput) (*domain.RetentionPolicy, bool, error)
	Get(ctx context.Context, tenant, artifactType string) (*domain.RetentionPolicy, error)
	List(ctx context.Context, tenant string) ([]*domain.RetentionPolicy, error)
	Delete(ctx context.Context, tenant, artifactType string) error
}

type PolicyHandler struct {
	svc PolicyService
}

func NewPolicyHandler(svc PolicyService) *PolicyHandler {
	return &PolicyHandler{svc: svc}
}

type UpsertPolicyRequest struct {
	ArtifactType      string `json:"artifact_type"`
	RetainDays        int    `json:"retain_days"`
	LegalHoldEnabled  *bool  `json:"legal_hold_enabled"`
	ImmutableRequired *bool  `json:"immutable_required"`
}

type PolicyResponse struct {
	Tenant            string `json:"tenant"`
	ArtifactType      string `json:"artifact_type"`
	RetainDays        int    `json:"retain_days"`
	LegalHoldEnabled  bool   `json:"legal_hold_enabled"`
	ImmutableRequired bool   `json:"immutable_required"`
	CreatedBy         string `json:"created_by,omitempty"`
	CreatedAt         string `json:"created_at,omitempty"`
	UpdatedAt         string `json:"updated_at,omitempty"`
}

func newPolicyResponse(p *domain.RetentionPolicy) PolicyResponse {
	resp := PolicyResponse{
		Tenant:            p.Tenant,
		ArtifactType:      p.ArtifactType,
		RetainDays:        p.RetainDays,
		LegalHoldEnabled:  p.LegalHoldEnabled,
		ImmutableRequired: p.ImmutableRequired,
		CreatedBy:         p.CreatedBy,
	}
	if !p.CreatedAt.IsZero() {
		resp.CreatedAt = p.CreatedAt.UTC().Format(time.RFC3339)
	}
	if !p.UpdatedAt.IsZero() {
		resp.UpdatedAt = p.UpdatedAt.UTC().Format(time.RFC3339)
	}
	return resp
}

// Upsert creates or replaces the policy for (tenant, artifact type).
func (h *PolicyHandler) Upsert(w http.ResponseWriter, r *http.Request) {
	var req UpsertPolicyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	principal := middleware.GetPrincipal(r.Context())
	policy, created, err := h.svc.Upsert(r.Context(), service.UpsertPolicyInput{
		Tenant:            middleware.GetTenant(r.Context()),
		ArtifactType:      req.ArtifactType,
		RetainDays:        req.RetainDays,
		LegalHoldEnabled:  req.LegalHoldEnabled,
		ImmutableRequired: req.ImmutableRequired,
		CreatedBy:         subjectOf(principal),
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	api.Success(w, status, newPolicyResponse(policy))
}

// Get loads one policy by artifact type.
func (h *PolicyHandler) Get(w http.ResponseWriter, r *http.Request) {
	artifactType := chi.URLParam(r, "artifactType")
	policy, err := h.svc.Get(r.Context(), middleware.GetTenant(r.Context()), artifactType)
	if err != nil {
		api.HandleError(w, err)
		return
	}
	api.Success(w, http.StatusOK, newPolicyResponse(policy))
}

// List returns every policy of the caller's tenant.
func (h *PolicyHandler) List(w http.ResponseWriter, r *http.Request) {
	policies, err := h.svc.List(r.Context(), middleware.GetTenant(r.Context()))
	if err != nil {
		api.HandleError(w, err)
		return
	}
	views := make([]PolicyResponse, 0, len(policies))
	for _, p := range policies {
		views = append(views, newPolicyResponse(p))
	}
	api.Success(w, http.StatusOK, views)
}

// Delete removes one policy, making its artifact type exempt from
// enforcement again.
func (h *PolicyHandler) Delete(w http.ResponseWriter, r *http.Request) {
	artifactType := chi.URLParam(r, "artifactType")
	if err := h.svc.Delete(r.Context(), middleware.GetTenant(r.Context()), artifactType); err != nil {
		api.HandleError(w, err)
		return
	}
	api.JSON(w, http.StatusNoContent, nil)
}
