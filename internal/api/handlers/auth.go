package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/evidentry/evidentry/internal/api"
	"github.com/evidentry/evidentry/internal/domain"
)

type AuthService interface {
	CreateTenant(ctx context.Context, id, name string) (*domain.Tenant, error)
	GetTenant(ctx context.Context, id string) (*domain.Tenant, error)
	ListTenants(ctx context.Context) ([]*domain.Tenant, error)
	CreateAPIKey(ctx context.Context, tenantID, name, subject string) (string, *domain.APIKey, error)
	ListAPIKeys(ctx context.Context, tenantID string) ([]*domain.APIKey, error)
	RevokeAPIKey(ctx context.Context, keyID string) error
}

// AuthHandler exposes the operator-only tenant and API key bootstrap routes.
type AuthHandler struct {
	svc AuthService
}

func NewAuthHandler(svc AuthService) *AuthHandler {
	return &AuthHandler{svc: svc}
}

type CreateTenantRequest struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type TenantResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	CreatedAt string `json:"created_at,omitempty"`
}

func newTenantResponse(t *domain.Tenant) TenantResponse {
	resp := TenantResponse{ID: t.ID, Name: t.Name}
	if !t.CreatedAt.IsZero() {
		resp.CreatedAt = t.CreatedAt.UTC().Format(time.RFC3339)
	}
	return resp
}

func (h *AuthHandler) CreateTenant(w http.ResponseWriter, r *http.Request) {
	var req CreateTenantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	tenant, err := h.svc.CreateTenant(r.Context(), req.ID, req.Name)
	if err != nil {
		api.HandleError(w, err)
		return
	}
	api.Success(w, http.StatusCreated, newTenantResponse(tenant))
}

func (h *AuthHandler) GetTenant(w http.ResponseWriter, r *http.Request) {
	tenant, err := h.svc.GetTenant(r.Context(), chi.URLParam(r, "tenantID"))
	if err != nil {
		api.HandleError(w, err)
		return
	}
	api.Success(w, http.StatusOK, newTenantResponse(tenant))
}

func (h *AuthHandler) ListTenants(w http.ResponseWriter, r *http.Request) {
	tenants, err := h.svc.ListTenants(r.Context())
	if err != nil {
		api.HandleError(w, err)
		return
	}
	items := make([]TenantResponse, 0, len(tenants))
	for _, t := range tenants {
		items = append(items, newTenantResponse(t))
	}
	api.Success(w, http.StatusOK, items)
}

type CreateAPIKeyRequest struct {
	TenantID string `json:"tenant_id"`
	Name     string `json:"name"`
	Subject  string `json:"subject"`
}

type APIKeyResponse struct {
	ID        string `json:"id"`
	TenantID  string `json:"tenant_id"`
	Name      string `json:"name"`
	Subject   string `json:"subject"`
	CreatedAt string `json:"created_at,omitempty"`
	RevokedAt string `json:"revoked_at,omitempty"`
}

// CreateAPIKeyResponse carries the minted token. It appears here and nowhere
// else; only the hash is stored.
type CreateAPIKeyResponse struct {
	Token  string         `json:"token"`
	APIKey APIKeyResponse `json:"api_key"`
}

func newAPIKeyResponse(k *domain.APIKey) APIKeyResponse {
	resp := APIKeyResponse{
		ID:       k.ID,
		TenantID: k.TenantID,
		Name:     k.Name,
		Subject:  k.Subject,
	}
	if !k.CreatedAt.IsZero() {
		resp.CreatedAt = k.CreatedAt.UTC().Format(time.RFC3339)
	}
	if k.RevokedAt != nil {
		resp.RevokedAt = k.RevokedAt.UTC().Format(time.RFC3339)
	}
	return resp
}

func (h *AuthHandler) CreateAPIKey(w http.ResponseWriter, r *http.Request) {
	var req CreateAPIKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	token, key, err := h.svc.CreateAPIKey(r.Context(), req.TenantID, req.Name, req.Subject)
	if err != nil {
		api.HandleError(w, err)
		return
	}
	api.Success(w, http.StatusCreated, CreateAPIKeyResponse{
		Token:  token,
		APIKey: newAPIKeyResponse(key),
	})
}

func (h *AuthHandler) ListAPIKeys(w http.ResponseWriter, r *http.Request) {
	tenantID := r.URL.Query().Get("tenant_id")
	keys, err := h.svc.ListAPIKeys(r.Context(), tenantID)
	if err != nil {
		api.HandleError(w, err)
		return
	}
	items := make([]APIKeyResponse, 0, len(keys))
	for _, k := range keys {
		items = append(items, newAPIKeyResponse(k))
	}
	api.Success(w, http.StatusOK, items)
}

func (h *AuthHandler) RevokeAPIKey(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.RevokeAPIKey(r.Context(), chi.URLParam(r, "keyID")); err != nil {
		api.HandleError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
