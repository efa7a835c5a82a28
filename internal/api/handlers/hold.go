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

type HoldService interface {
	Create(ctx context.Context, input service.CreateHoldInput) (*domain.LegalHold, error)
	Get(ctx context.Context, tenant, holdID string) (*domain.LegalHold, error)
	List(ctx context.Context, tenant string, activeOnly bool) ([]*domain.LegalHold, error)
	Release(ctx context.Context, tenant, holdID string) (*domain.LegalHold, error)
}

type HoldHandler struct {
	svc HoldService
}

func NewHoldHandler(svc HoldService) *HoldHandler {
	return &HoldHandler{svc: svc}
}

type CreateHoldRequest struct {
	HoldID       string `json:"hold_id"`
	ScopeType    string `json:"scope_type"`
	ScopeID      string `json:"scope_id"`
	Reason       string `json:"reason"`
	CaseID       string `json:"case_id"`
	RegulatorRef string `json:"regulator_ref"`
}

type HoldResponse struct {
	HoldID       string  `json:"hold_id"`
	Tenant       string  `json:"tenant"`
	ScopeType    string  `json:"scope_type"`
	ScopeID      string  `json:"scope_id"`
	Reason       string  `json:"reason"`
	CaseID       string  `json:"case_id,omitempty"`
	RegulatorRef string  `json:"regulator_ref,omitempty"`
	CreatedBy    string  `json:"created_by,omitempty"`
	CreatedAt    string  `json:"created_at"`
	ReleasedAt   *string `json:"released_at"`
	Active       bool    `json:"active"`
}

func newHoldResponse(h *domain.LegalHold) HoldResponse {
	resp := HoldResponse{
		HoldID:       h.HoldID,
		Tenant:       h.Tenant,
		ScopeType:    string(h.ScopeType),
		ScopeID:      h.ScopeID,
		Reason:       h.Reason,
		CaseID:       h.CaseID,
		RegulatorRef: h.RegulatorRef,
		CreatedBy:    h.CreatedBy,
		CreatedAt:    h.CreatedAt.UTC().Format(time.RFC3339),
		Active:       h.Active(),
	}
	if h.ReleasedAt != nil {
		released := h.ReleasedAt.UTC().Format(time.RFC3339)
		resp.ReleasedAt = &released
	}
	return resp
}

// Create places a legal hold for the caller's tenant.
func (h *HoldHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateHoldRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	principal := middleware.GetPrincipal(r.Context())
	hold, err := h.svc.Create(r.Context(), service.CreateHoldInput{
		Tenant:       middleware.GetTenant(r.Context()),
		HoldID:       req.HoldID,
		ScopeType:    domain.HoldScope(req.ScopeType),
		ScopeID:      req.ScopeID,
		Reason:       req.Reason,
		CaseID:       req.CaseID,
		RegulatorRef: req.RegulatorRef,
		CreatedBy:    subjectOf(principal),
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}
	api.Success(w, http.StatusCreated, newHoldResponse(hold))
}

// Get loads one hold.
func (h *HoldHandler) Get(w http.ResponseWriter, r *http.Request) {
	holdID := chi.URLParam(r, "holdID")
	hold, err := h.svc.Get(r.Context(), middleware.GetTenant(r.Context()), holdID)
	if err != nil {
		api.HandleError(w, err)
		return
	}
	api.Success(w, http.StatusOK, newHoldResponse(hold))
}

// List returns the tenant's holds, optionally only unreleased ones.
func (h *HoldHandler) List(w http.ResponseWriter, r *http.Request) {
	activeOnly := r.URL.Query().Get("active_only") == "true"
	holds, err := h.svc.List(r.Context(), middleware.GetTenant(r.Context()), activeOnly)
	if err != nil {
		api.HandleError(w, err)
		return
	}
	views := make([]HoldResponse, 0, len(holds))
	for _, hold := range holds {
		views = append(views, newHoldResponse(hold))
	}
	api.Success(w, http.StatusOK, views)
}

// Release releases a hold. Releasing twice returns the hold unchanged.
func (h *HoldHandler) Release(w http.ResponseWriter, r *http.Request) {
	holdID := chi.URLParam(r, "holdID")
	hold, err := h.svc.Release(r.Context(), middleware.GetTenant(r.Context()), holdID)
	if err != nil {
		api.HandleError(w, err)
		return
	}
	api.Success(w, http.StatusOK, newHoldResponse(hold))
}
