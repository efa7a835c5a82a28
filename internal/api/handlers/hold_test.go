package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/evidentry/evidentry/internal/domain"
	"github.com/evidentry/evidentry/internal/service"
)

type MockHoldService struct {
	mock.Mock
}

func (m *MockHoldService) Create(ctx context.Context, input service.CreateHoldInput) (*domain.LegalHold, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.LegalHold), args.Error(1)
}

func (m *MockHoldService) Get(ctx context.Context, tenant, holdID string) (*domain.LegalHold, error) {
	args := m.Called(ctx, tenant, holdID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.LegalHold), args.Error(1)
}

func (m *MockHoldService) List(ctx context.Context, tenant string, activeOnly bool) ([]*domain.LegalHold, error) {
	args := m.Called(ctx, tenant, activeOnly)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.LegalHold), args.Error(1)
}

func (m *MockHoldService) Release(ctx context.Context, tenant, holdID string) (*domain.LegalHold, error) {
	args := m.Called(ctx, tenant, holdID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.LegalHold), args.Error(1)
}

func newTestHold() *domain.LegalHold {
	return &domain.LegalHold{
		HoldID:    "hold-1",
		Tenant:    "acme",
		ScopeType: domain.HoldScopeDecision,
		ScopeID:   "dec-001",
		Reason:    "regulator inquiry",
		CaseID:    "case-77",
		CreatedBy: "reviewer@acme",
		CreatedAt: time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC),
	}
}

func TestHoldHandler_Create_Success(t *testing.T) {
	mockSvc := new(MockHoldService)
	handler := NewHoldHandler(mockSvc)

	mockSvc.On("Create", mock.Anything, mock.MatchedBy(func(input service.CreateHoldInput) bool {
		return input.Tenant == "acme" &&
			input.ScopeType == domain.HoldScopeDecision &&
			input.ScopeID == "dec-001" &&
			input.Reason == "regulator inquiry"
	})).Return(newTestHold(), nil)

	body := `{"scope_type":"decision","scope_id":"dec-001","reason":"regulator inquiry","case_id":"case-77"}`
	req := requestWithPrincipal(http.MethodPost, "/holds", []byte(body))
	w := httptest.NewRecorder()

	handler.Create(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data := resp["data"].(map[string]interface{})
	assert.Equal(t, "hold-1", data["hold_id"])
	assert.Equal(t, true, data["active"])
	assert.Nil(t, data["released_at"])
	mockSvc.AssertExpectations(t)
}

func TestHoldHandler_Create_InvalidScope(t *testing.T) {
	mockSvc := new(MockHoldService)
	handler := NewHoldHandler(mockSvc)

	mockSvc.On("Create", mock.Anything, mock.Anything).
		Return(nil, domain.ErrInvalidHoldScope)

	body := `{"scope_type":"galaxy","scope_id":"x","reason":"r"}`
	req := requestWithPrincipal(http.MethodPost, "/holds", []byte(body))
	w := httptest.NewRecorder()

	handler.Create(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHoldHandler_List_ActiveOnly(t *testing.T) {
	mockSvc := new(MockHoldService)
	handler := NewHoldHandler(mockSvc)

	mockSvc.On("List", mock.Anything, "acme", true).
		Return([]*domain.LegalHold{newTestHold()}, nil)

	req := requestWithPrincipal(http.MethodGet, "/holds?active_only=true", nil)
	w := httptest.NewRecorder()

	handler.List(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	items := resp["data"].([]interface{})
	require.Len(t, items, 1)
	mockSvc.AssertExpectations(t)
}

func TestHoldHandler_Release_Success(t *testing.T) {
	mockSvc := new(MockHoldService)
	handler := NewHoldHandler(mockSvc)

	released := newTestHold()
	at := time.Date(2026, 7, 1, 10, 0, 0, 0, time.UTC)
	released.ReleasedAt = &at

	mockSvc.On("Release", mock.Anything, "acme", "hold-1").Return(released, nil)

	req := requestWithPrincipal(http.MethodPost, "/holds/hold-1/release", nil)
	req = withURLParam(req, "holdID", "hold-1")
	w := httptest.NewRecorder()

	handler.Release(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data := resp["data"].(map[string]interface{})
	assert.Equal(t, false, data["active"])
	assert.Equal(t, "2026-07-01T10:00:00Z", data["released_at"])
}

func TestHoldHandler_Release_NotFound(t *testing.T) {
	mockSvc := new(MockHoldService)
	handler := NewHoldHandler(mockSvc)

	mockSvc.On("Release", mock.Anything, "acme", "hold-missing").
		Return(nil, domain.ErrHoldNotFound)

	req := requestWithPrincipal(http.MethodPost, "/holds/hold-missing/release", nil)
	req = withURLParam(req, "holdID", "hold-missing")
	w := httptest.NewRecorder()

	handler.Release(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}
