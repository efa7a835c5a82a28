package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/evidentry/evidentry/internal/domain"
	"github.com/evidentry/evidentry/internal/service"
)

type MockPolicyService struct {
	mock.Mock
}

func (m *MockPolicyService) Upsert(ctx context.Context, input service.UpsertPolicyInput) (*domain.RetentionPolicy, bool, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, false, args.Error(2)
	}
	return args.Get(0).(*domain.RetentionPolicy), args.Bool(1), args.Error(2)
}

func (m *MockPolicyService) Get(ctx context.Context, tenant, artifactType string) (*domain.RetentionPolicy, error) {
	args := m.Called(ctx, tenant, artifactType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.RetentionPolicy), args.Error(1)
}

func (m *MockPolicyService) List(ctx context.Context, tenant string) ([]*domain.RetentionPolicy, error) {
	args := m.Called(ctx, tenant)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.RetentionPolicy), args.Error(1)
}

func (m *MockPolicyService) Delete(ctx context.Context, tenant, artifactType string) error {
	args := m.Called(ctx, tenant, artifactType)
	return args.Error(0)
}

func newTestPolicy() *domain.RetentionPolicy {
	return &domain.RetentionPolicy{
		Tenant:            "acme",
		ArtifactType:      "decision_report",
		RetainDays:        365,
		LegalHoldEnabled:  true,
		ImmutableRequired: true,
		CreatedBy:         "reviewer@acme",
	}
}

func TestPolicyHandler_Upsert_Created(t *testing.T) {
	mockSvc := new(MockPolicyService)
	handler := NewPolicyHandler(mockSvc)

	mockSvc.On("Upsert", mock.Anything, mock.MatchedBy(func(input service.UpsertPolicyInput) bool {
		return input.Tenant == "acme" &&
			input.ArtifactType == "decision_report" &&
			input.RetainDays == 365 &&
			input.CreatedBy == "reviewer@acme"
	})).Return(newTestPolicy(), true, nil)

	body := `{"artifact_type":"decision_report","retain_days":365}`
	req := requestWithPrincipal(http.MethodPut, "/policies", []byte(body))
	w := httptest.NewRecorder()

	handler.Upsert(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data := resp["data"].(map[string]interface{})
	assert.Equal(t, "decision_report", data["artifact_type"])
	assert.Equal(t, float64(365), data["retain_days"])
	mockSvc.AssertExpectations(t)
}

func TestPolicyHandler_Upsert_ReplaceReturns200(t *testing.T) {
	mockSvc := new(MockPolicyService)
	handler := NewPolicyHandler(mockSvc)

	mockSvc.On("Upsert", mock.Anything, mock.Anything).Return(newTestPolicy(), false, nil)

	body := `{"artifact_type":"decision_report","retain_days":365}`
	req := requestWithPrincipal(http.MethodPut, "/policies", []byte(body))
	w := httptest.NewRecorder()

	handler.Upsert(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestPolicyHandler_Upsert_ExplicitFalseFlagsSurvive(t *testing.T) {
	mockSvc := new(MockPolicyService)
	handler := NewPolicyHandler(mockSvc)

	mockSvc.On("Upsert", mock.Anything, mock.MatchedBy(func(input service.UpsertPolicyInput) bool {
		return input.LegalHoldEnabled != nil && !*input.LegalHoldEnabled &&
			input.ImmutableRequired != nil && !*input.ImmutableRequired
	})).Return(newTestPolicy(), true, nil)

	body := `{"artifact_type":"decision_report","retain_days":30,"legal_hold_enabled":false,"immutable_required":false}`
	req := requestWithPrincipal(http.MethodPut, "/policies", []byte(body))
	w := httptest.NewRecorder()

	handler.Upsert(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)
	mockSvc.AssertExpectations(t)
}

func TestPolicyHandler_Upsert_InvalidRetainDays(t *testing.T) {
	mockSvc := new(MockPolicyService)
	handler := NewPolicyHandler(mockSvc)

	mockSvc.On("Upsert", mock.Anything, mock.Anything).
		Return(nil, false, domain.ErrInvalidRetainDays)

	body := `{"artifact_type":"decision_report","retain_days":0}`
	req := requestWithPrincipal(http.MethodPut, "/policies", []byte(body))
	w := httptest.NewRecorder()

	handler.Upsert(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "retain_days")
}

func TestPolicyHandler_List_Success(t *testing.T) {
	mockSvc := new(MockPolicyService)
	handler := NewPolicyHandler(mockSvc)

	mockSvc.On("List", mock.Anything, "acme").
		Return([]*domain.RetentionPolicy{newTestPolicy()}, nil)

	req := requestWithPrincipal(http.MethodGet, "/policies", nil)
	w := httptest.NewRecorder()

	handler.List(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	items := resp["data"].([]interface{})
	require.Len(t, items, 1)
}

func TestPolicyHandler_Get_NotFound(t *testing.T) {
	mockSvc := new(MockPolicyService)
	handler := NewPolicyHandler(mockSvc)

	mockSvc.On("Get", mock.Anything, "acme", "decision_export").
		Return(nil, domain.ErrPolicyNotFound)

	req := requestWithPrincipal(http.MethodGet, "/policies/decision_export", nil)
	req = withURLParam(req, "artifactType", "decision_export")
	w := httptest.NewRecorder()

	handler.Get(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPolicyHandler_Delete_Success(t *testing.T) {
	mockSvc := new(MockPolicyService)
	handler := NewPolicyHandler(mockSvc)

	mockSvc.On("Delete", mock.Anything, "acme", "decision_report").Return(nil)

	req := requestWithPrincipal(http.MethodDelete, "/policies/decision_report", nil)
	req = withURLParam(req, "artifactType", "decision_report")
	w := httptest.NewRecorder()

	handler.Delete(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	mockSvc.AssertExpectations(t)
}
