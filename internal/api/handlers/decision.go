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
	"github.com/evidentry/evidentry/internal/pagination"
	"github.com/evidentry/evidentry/internal/report"
	"github.com/evidentry/evidentry/internal/service"
)

type DecisionService interface {
	Upsert(ctx context.Context, input service.UpsertDecisionInput) (*service.UpsertResult, error)
	Get(ctx context.Context, tenant, decisionID string) (*domain.Decision, error)
	Query(ctx context.Context, tenant string, filter domain.DecisionFilter) ([]*domain.Decision, int64, error)
	AdminQuery(ctx context.Context, filter domain.DecisionFilter) ([]*domain.Decision, int64, error)
}

type DecisionHandler struct {
	svc DecisionService
}

func NewDecisionHandler(svc DecisionService) *DecisionHandler {
	return &DecisionHandler{svc: svc}
}

type UpsertDecisionRequest struct {
	DecisionID    string         `json:"decision_id"`
	Model         string         `json:"model"`
	ModelVersion  string         `json:"model_version"`
	Input         string         `json:"input"`
	Output        string         `json:"output"`
	Confidence    *float64       `json:"confidence"`
	TraceID       string         `json:"trace_id"`
	Metadata      map[string]any `json:"metadata"`
	ContextDocs   []string       `json:"context_docs"`
	ContextChunks []string       `json:"context_chunks"`
}

// QueryDecisionsRequest is the full ledger filter surface. Tenants is only
// honored on the admin route; the tenant-scoped route always uses the
// caller's tenant claim.
type QueryDecisionsRequest struct {
	Tenants          []string   `json:"tenants,omitempty"`
	DecisionIDPrefix string     `json:"decision_id_prefix"`
	DecisionIDs      []string   `json:"decision_ids"`
	Model            string     `json:"model"`
	ModelVersion     string     `json:"model_version"`
	Outputs          []string   `json:"outputs"`
	Query            string     `json:"query"`
	MinConfidence    *float64   `json:"min_confidence"`
	MaxConfidence    *float64   `json:"max_confidence"`
	ConfidenceBand   string     `json:"confidence_band"`
	CreatedFrom      *time.Time `json:"created_from"`
	CreatedTo        *time.Time `json:"created_to"`
	ContextDocs      []string   `json:"context_docs"`
	ContextChunks    []string   `json:"context_chunks"`
	TraceID          string     `json:"trace_id"`
	Order            string     `json:"order"`
	Offset           int        `json:"offset"`
	Limit            int        `json:"limit"`
}

func (r *QueryDecisionsRequest) toFilter() domain.DecisionFilter {
	return domain.DecisionFilter{
		Tenants:          r.Tenants,
		DecisionIDPrefix: r.DecisionIDPrefix,
		DecisionIDs:      r.DecisionIDs,
		Model:            r.Model,
		ModelVersion:     r.ModelVersion,
		Outputs:          r.Outputs,
		Query:            r.Query,
		MinConfidence:    r.MinConfidence,
		MaxConfidence:    r.MaxConfidence,
		ConfidenceBand:   domain.ConfidenceBand(r.ConfidenceBand),
		CreatedFrom:      r.CreatedFrom,
		CreatedTo:        r.CreatedTo,
		ContextDocs:      r.ContextDocs,
		ContextChunks:    r.ContextChunks,
		TraceID:          r.TraceID,
		Order:            domain.SortOrder(r.Order),
		Offset:           r.Offset,
		Limit:            r.Limit,
	}
}

type UpsertDecisionResponse struct {
	Decision report.DecisionView `json:"decision"`
	Created  bool                `json:"created"`
}

// Upsert records or updates one decision for the caller's tenant.
func (h *DecisionHandler) Upsert(w http.ResponseWriter, r *http.Request) {
	var req UpsertDecisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.svc.Upsert(r.Context(), service.UpsertDecisionInput{
		Tenant:        middleware.GetTenant(r.Context()),
		DecisionID:    req.DecisionID,
		Model:         req.Model,
		ModelVersion:  req.ModelVersion,
		InputText:     req.Input,
		OutputText:    req.Output,
		Confidence:    req.Confidence,
		TraceID:       req.TraceID,
		Metadata:      req.Metadata,
		ContextDocs:   req.ContextDocs,
		ContextChunks: req.ContextChunks,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	status := http.StatusOK
	if result.Created {
		status = http.StatusCreated
	}
	api.Success(w, status, UpsertDecisionResponse{
		Decision: report.NewDecisionView(result.Decision),
		Created:  result.Created,
	})
}

// Get loads one decision within the caller's tenant.
func (h *DecisionHandler) Get(w http.ResponseWriter, r *http.Request) {
	decisionID := chi.URLParam(r, "decisionID")
	decision, err := h.svc.Get(r.Context(), middleware.GetTenant(r.Context()), decisionID)
	if err != nil {
		api.HandleError(w, err)
		return
	}
	api.Success(w, http.StatusOK, report.NewDecisionView(decision))
}

// Query runs a tenant-scoped ledger query.
func (h *DecisionHandler) Query(w http.ResponseWriter, r *http.Request) {
	var req QueryDecisionsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	filter := req.toFilter()
	decisions, total, err := h.svc.Query(r.Context(), middleware.GetTenant(r.Context()), filter)
	if err != nil {
		api.HandleError(w, err)
		return
	}
	api.Success(w, http.StatusOK, decisionPage(decisions, total, filter))
}

// AdminQuery runs a ledger query across tenants. The route is operator-only.
func (h *DecisionHandler) AdminQuery(w http.ResponseWriter, r *http.Request) {
	var req QueryDecisionsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Tenants) == 0 {
		api.Error(w, http.StatusBadRequest, "tenants is required")
		return
	}

	filter := req.toFilter()
	decisions, total, err := h.svc.AdminQuery(r.Context(), filter)
	if err != nil {
		api.HandleError(w, err)
		return
	}
	api.Success(w, http.StatusOK, decisionPage(decisions, total, filter))
}

func decisionPage(decisions []*domain.Decision, total int64, filter domain.DecisionFilter) pagination.Page[report.DecisionView] {
	views := make([]report.DecisionView, 0, len(decisions))
	for _, d := range decisions {
		views = append(views, report.NewDecisionView(d))
	}
	// Mirror the defaults filter normalization applies inside the service.
	if filter.Limit <= 0 {
		filter.Limit = 50
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	return pagination.NewPage(views, total, filter.Offset, filter.Limit)
}
