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

type ReportService interface {
	BuildReport(ctx context.Context, tenant, decisionID string) (*report.DecisionReport, error)
	StoreReport(ctx context.Context, tenant, decisionID, createdBy string) (*service.ArtifactResult, error)
	Export(ctx context.Context, input service.ExportInput) (*service.ArtifactResult, error)
	Bundle(ctx context.Context, input service.BundleInput) (*service.ArtifactResult, error)
	Package(ctx context.Context, input service.BundleInput) (*service.PackageResult, error)
	SnapshotPolicies(ctx context.Context, tenant, createdBy string) (*service.ArtifactResult, error)
	Verify(ctx context.Context, tenant, location string) (*service.VerificationResult, error)
	GetArtifact(ctx context.Context, tenant, artifactID string) (*domain.AuditArtifact, error)
	ListArtifacts(ctx context.Context, f domain.ArtifactFilter) ([]*domain.AuditArtifact, int64, error)
	ArtifactDownloadURL(ctx context.Context, tenant, artifactID string) (*service.DownloadLink, error)
}

type ReportHandler struct {
	svc ReportService
}

func NewReportHandler(svc ReportService) *ReportHandler {
	return &ReportHandler{svc: svc}
}

// ArtifactResponse is the index-row projection returned whenever an
// artifact is created or listed.
type ArtifactResponse struct {
	ArtifactID         string         `json:"artifact_id"`
	Tenant             string         `json:"tenant"`
	ArtifactType       string         `json:"artifact_type"`
	ObjectLocation     string         `json:"object_location"`
	ObjectGeneration   *string        `json:"object_generation"`
	ReportHash         string         `json:"report_hash_sha256"`
	SignatureAlgorithm string         `json:"signature_alg"`
	SignatureKeyID     *string        `json:"signature_key_id"`
	ImmutableWrite     bool           `json:"immutable_write"`
	CreatedBy          string         `json:"created_by,omitempty"`
	TraceID            string         `json:"trace_id,omitempty"`
	Metadata           map[string]any `json:"metadata,omitempty"`
	CreatedAt          string         `json:"created_at"`
	DeletedAt          *string        `json:"deleted_at,omitempty"`
	DeletedBy          string         `json:"deleted_by,omitempty"`
	DeletionReason     string         `json:"deletion_reason,omitempty"`
	DeleteJobID        string         `json:"delete_job_id,omitempty"`
}

func NewArtifactResponse(a *domain.AuditArtifact) ArtifactResponse {
	resp := ArtifactResponse{
		ArtifactID:         a.ArtifactID,
		Tenant:             a.Tenant,
		ArtifactType:       string(a.ArtifactType),
		ObjectLocation:     a.ObjectLocation,
		ObjectGeneration:   a.ObjectGeneration,
		ReportHash:         a.ReportHash,
		SignatureAlgorithm: a.SignatureAlgorithm,
		SignatureKeyID:     a.SignatureKeyID,
		ImmutableWrite:     a.ImmutableWrite,
		CreatedBy:          a.CreatedBy,
		TraceID:            a.TraceID,
		Metadata:           a.Metadata,
		CreatedAt:          a.CreatedAt.UTC().Format(time.RFC3339),
		DeletedBy:          a.DeletedBy,
		DeletionReason:     a.DeletionReason,
		DeleteJobID:        a.DeleteJobID,
	}
	if a.DeletedAt != nil {
		deleted := a.DeletedAt.UTC().Format(time.RFC3339)
		resp.DeletedAt = &deleted
	}
	return resp
}

type ArtifactResultResponse struct {
	Artifact ArtifactResponse `json:"artifact"`
	Document map[string]any   `json:"document"`
}

func newArtifactResultResponse(res *service.ArtifactResult) ArtifactResultResponse {
	return ArtifactResultResponse{
		Artifact: NewArtifactResponse(res.Artifact),
		Document: res.Document,
	}
}

// Report renders the canonical report for one decision. With ?store=true the
// rendered document is also persisted as a write-once artifact.
func (h *ReportHandler) Report(w http.ResponseWriter, r *http.Request) {
	tenant := middleware.GetTenant(r.Context())
	decisionID := chi.URLParam(r, "decisionID")

	if r.URL.Query().Get("store") == "true" {
		principal := middleware.GetPrincipal(r.Context())
		result, err := h.svc.StoreReport(r.Context(), tenant, decisionID, subjectOf(principal))
		if err != nil {
			api.HandleError(w, err)
			return
		}
		api.Success(w, http.StatusCreated, newArtifactResultResponse(result))
		return
	}

	doc, err := h.svc.BuildReport(r.Context(), tenant, decisionID)
	if err != nil {
		api.HandleError(w, err)
		return
	}
	if r.URL.Query().Get("include_context") == "false" {
		doc.ContextDocuments = []report.ContextDocument{}
		doc.ContextChunks = []report.ContextChunk{}
	}
	api.Success(w, http.StatusOK, doc)
}

type ExportRequest struct {
	QueryDecisionsRequest
	IncludeContext bool `json:"include_context"`
}

// Export renders a filtered ledger export and persists it as a signed
// write-once artifact.
func (h *ReportHandler) Export(w http.ResponseWriter, r *http.Request) {
	var req ExportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	principal := middleware.GetPrincipal(r.Context())
	result, err := h.svc.Export(r.Context(), service.ExportInput{
		Tenant:         middleware.GetTenant(r.Context()),
		Filter:         req.toFilter(),
		IncludeContext: req.IncludeContext,
		CreatedBy:      subjectOf(principal),
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}
	api.Success(w, http.StatusCreated, newArtifactResultResponse(result))
}

type BundleRequest struct {
	DecisionIDs  []string              `json:"decision_ids"`
	Filter       QueryDecisionsRequest `json:"filter"`
	CaseID       string                `json:"case_id"`
	RegulatorRef string                `json:"regulator_ref"`
}

func (req *BundleRequest) toInput(tenant, createdBy string) service.BundleInput {
	return service.BundleInput{
		Tenant:       tenant,
		DecisionIDs:  req.DecisionIDs,
		Filter:       req.Filter.toFilter(),
		CaseID:       req.CaseID,
		RegulatorRef: req.RegulatorRef,
		CreatedBy:    createdBy,
	}
}

// Bundle renders a multi-decision evidence bundle artifact.
func (h *ReportHandler) Bundle(w http.ResponseWriter, r *http.Request) {
	var req BundleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	principal := middleware.GetPrincipal(r.Context())
	result, err := h.svc.Bundle(r.Context(), req.toInput(middleware.GetTenant(r.Context()), subjectOf(principal)))
	if err != nil {
		api.HandleError(w, err)
		return
	}
	api.Success(w, http.StatusCreated, newArtifactResultResponse(result))
}

type PackageResponse struct {
	Manifest ArtifactResultResponse `json:"manifest"`
	Files    []ArtifactResponse     `json:"files"`
}

// Package writes per-decision report artifacts plus a signed manifest.
func (h *ReportHandler) Package(w http.ResponseWriter, r *http.Request) {
	var req BundleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	principal := middleware.GetPrincipal(r.Context())
	result, err := h.svc.Package(r.Context(), req.toInput(middleware.GetTenant(r.Context()), subjectOf(principal)))
	if err != nil {
		api.HandleError(w, err)
		return
	}

	files := make([]ArtifactResponse, 0, len(result.Files))
	for _, f := range result.Files {
		files = append(files, NewArtifactResponse(f))
	}
	api.Success(w, http.StatusCreated, PackageResponse{
		Manifest: newArtifactResultResponse(result.Manifest),
		Files:    files,
	})
}

// SnapshotPolicies persists the tenant's policy set as an artifact.
func (h *ReportHandler) SnapshotPolicies(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipal(r.Context())
	result, err := h.svc.SnapshotPolicies(r.Context(), middleware.GetTenant(r.Context()), subjectOf(principal))
	if err != nil {
		api.HandleError(w, err)
		return
	}
	api.Success(w, http.StatusCreated, newArtifactResultResponse(result))
}

type VerifyRequest struct {
	ObjectLocation string `json:"object_location"`
}

// Verify re-checks one stored artifact's hash and signature.
func (h *ReportHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var req VerifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ObjectLocation == "" {
		api.Error(w, http.StatusBadRequest, "object_location is required")
		return
	}

	result, err := h.svc.Verify(r.Context(), middleware.GetTenant(r.Context()), req.ObjectLocation)
	if err != nil {
		api.HandleError(w, err)
		return
	}
	api.Success(w, http.StatusOK, result)
}

// GetArtifact loads one index row.
func (h *ReportHandler) GetArtifact(w http.ResponseWriter, r *http.Request) {
	artifactID := chi.URLParam(r, "artifactID")
	artifact, err := h.svc.GetArtifact(r.Context(), middleware.GetTenant(r.Context()), artifactID)
	if err != nil {
		api.HandleError(w, err)
		return
	}
	api.Success(w, http.StatusOK, NewArtifactResponse(artifact))
}

type downloadLinkResponse struct {
	ArtifactID     string `json:"artifact_id"`
	ObjectLocation string `json:"object_location"`
	DownloadURL    string `json:"download_url"`
}

// DownloadArtifact returns a short-lived presigned URL for the artifact's
// stored bytes.
func (h *ReportHandler) DownloadArtifact(w http.ResponseWriter, r *http.Request) {
	artifactID := chi.URLParam(r, "artifactID")
	link, err := h.svc.ArtifactDownloadURL(r.Context(), middleware.GetTenant(r.Context()), artifactID)
	if err != nil {
		api.HandleError(w, err)
		return
	}
	api.Success(w, http.StatusOK, downloadLinkResponse{
		ArtifactID:     link.ArtifactID,
		ObjectLocation: link.ObjectLocation,
		DownloadURL:    link.URL,
	})
}

// ListArtifacts pages through the tenant's artifact index.
func (h *ReportHandler) ListArtifacts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := domain.ArtifactFilter{
		Tenant:         middleware.GetTenant(r.Context()),
		ArtifactType:   q.Get("artifact_type"),
		TraceID:        q.Get("trace_id"),
		IncludeDeleted: q.Get("include_deleted") == "true",
		Offset:         queryInt(q.Get("offset"), 0),
		Limit:          queryInt(q.Get("limit"), 50),
	}

	artifacts, total, err := h.svc.ListArtifacts(r.Context(), filter)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	views := make([]ArtifactResponse, 0, len(artifacts))
	for _, a := range artifacts {
		views = append(views, NewArtifactResponse(a))
	}
	api.Success(w, http.StatusOK, pagination.NewPage(views, total, filter.Offset, filter.Limit))
}

func subjectOf(p *domain.Principal) string {
	if p == nil {
		return ""
	}
	return p.Subject
}
