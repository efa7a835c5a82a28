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
	"github.com/evidentry/evidentry/internal/service"
)

type DocumentService interface {
	Register(ctx context.Context, input service.RegisterDocumentInput) (*domain.Document, []domain.Chunk, error)
	Get(ctx context.Context, tenant, docID string) (*domain.Document, error)
	List(ctx context.Context, tenant string, offset, limit int) ([]*domain.Document, int64, error)
}

type DocumentHandler struct {
	svc DocumentService
}

func NewDocumentHandler(svc DocumentService) *DocumentHandler {
	return &DocumentHandler{svc: svc}
}

type RegisterChunkRequest struct {
	ChunkID    string         `json:"chunk_id"`
	ChunkIndex int            `json:"chunk_index"`
	TokenCount int            `json:"token_count"`
	Text       string         `json:"text"`
	Embedding  []float32      `json:"embedding,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

type RegisterDocumentRequest struct {
	DocID       string                 `json:"doc_id"`
	SourceURI   string                 `json:"source_uri"`
	MimeType    string                 `json:"mime_type"`
	SizeBytes   int64                  `json:"size_bytes"`
	ContentHash string                 `json:"content_hash"`
	Text        string                 `json:"text,omitempty"`
	Chunks      []RegisterChunkRequest `json:"chunks,omitempty"`
}

type DocumentResponse struct {
	DocID       string `json:"doc_id"`
	Tenant      string `json:"tenant"`
	SourceURI   string `json:"source_uri"`
	MimeType    string `json:"mime_type,omitempty"`
	SizeBytes   int64  `json:"size_bytes,omitempty"`
	ContentHash string `json:"content_hash,omitempty"`
	CreatedAt   string `json:"created_at,omitempty"`
	UpdatedAt   string `json:"updated_at,omitempty"`
}

type RegisterDocumentResponse struct {
	Document   DocumentResponse `json:"document"`
	ChunkCount int              `json:"chunk_count"`
}

func newDocumentResponse(d *domain.Document) DocumentResponse {
	resp := DocumentResponse{
		DocID:       d.DocID,
		Tenant:      d.Tenant,
		SourceURI:   d.SourceURI,
		MimeType:    d.MimeType,
		SizeBytes:   d.SizeBytes,
		ContentHash: d.ContentHash,
	}
	if !d.CreatedAt.IsZero() {
		resp.CreatedAt = d.CreatedAt.UTC().Format(time.RFC3339)
	}
	if !d.UpdatedAt.IsZero() {
		resp.UpdatedAt = d.UpdatedAt.UTC().Format(time.RFC3339)
	}
	return resp
}

// Register adds a document and its chunks to the catalog so decisions can
// link to them.
func (h *DocumentHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	chunks := make([]service.ChunkInput, 0, len(req.Chunks))
	for _, c := range req.Chunks {
		chunks = append(chunks, service.ChunkInput{
			ChunkID:    c.ChunkID,
			ChunkIndex: c.ChunkIndex,
			TokenCount: c.TokenCount,
			Text:       c.Text,
			Embedding:  c.Embedding,
			Metadata:   c.Metadata,
		})
	}

	doc, docChunks, err := h.svc.Register(r.Context(), service.RegisterDocumentInput{
		Tenant:      middleware.GetTenant(r.Context()),
		DocID:       req.DocID,
		SourceURI:   req.SourceURI,
		MimeType:    req.MimeType,
		SizeBytes:   req.SizeBytes,
		ContentHash: req.ContentHash,
		Text:        req.Text,
		Chunks:      chunks,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusCreated, RegisterDocumentResponse{
		Document:   newDocumentResponse(doc),
		ChunkCount: len(docChunks),
	})
}

func (h *DocumentHandler) Get(w http.ResponseWriter, r *http.Request) {
	doc, err := h.svc.Get(r.Context(), middleware.GetTenant(r.Context()), chi.URLParam(r, "docID"))
	if err != nil {
		api.HandleError(w, err)
		return
	}
	api.Success(w, http.StatusOK, newDocumentResponse(doc))
}

func (h *DocumentHandler) List(w http.ResponseWriter, r *http.Request) {
	offset := queryInt(r.URL.Query().Get("offset"), 0)
	limit := queryInt(r.URL.Query().Get("limit"), 50)

	docs, total, err := h.svc.List(r.Context(), middleware.GetTenant(r.Context()), offset, limit)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	items := make([]DocumentResponse, 0, len(docs))
	for _, d := range docs {
		items = append(items, newDocumentResponse(d))
	}
	api.Success(w, http.StatusOK, pagination.NewPage(items, total, offset, limit))
}
