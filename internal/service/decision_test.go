package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/evidentry/evidentry/internal/domain"
)

func floatPtr(f float64) *float64 { return &f }

func newDecisionServiceForTest(decisionRepo *MockDecisionRepository, docRepo *MockDocumentRepository) *DecisionService {
	runner := &fakeTxRunner{decisions: decisionRepo, documents: docRepo}
	return NewDecisionService(runner, decisionRepo, docRepo)
}

func TestDecisionService_Upsert(t *testing.T) {
	ctx := context.Background()

	t.Run("creates decision with validated context linkage", func(t *testing.T) {
		decisionRepo := new(MockDecisionRepository)
		docRepo := new(MockDocumentRepository)
		svc := newDecisionServiceForTest(decisionRepo, docRepo)

		docRepo.On("GetByIDs", mock.Anything, "acme", []string{"doc-1"}).Return([]*domain.Document{
			{Tenant: "acme", DocID: "doc-1"},
		}, nil)
		docRepo.On("GetChunksByIDs", mock.Anything, "acme", []string{"doc-1-c0"}).Return([]*domain.Chunk{
			{Tenant: "acme", DocID: "doc-1", ChunkID: "doc-1-c0"},
		}, nil)

		decisionRepo.On("Upsert", mock.Anything, mock.MatchedBy(func(d *domain.Decision) bool {
			return d.Tenant == "acme" &&
				d.DecisionID == "dec-1" &&
				d.Model == "gpt-4o" &&
				d.TraceID != ""
		})).Run(func(args mock.Arguments) {
			args.Get(1).(*domain.Decision).RefID = 42
		}).Return(true, nil)
		decisionRepo.On("ReplaceContext", mock.Anything, int64(42), "acme", []string{"doc-1"}, []string{"doc-1-c0"}).Return(nil)

		result, err := svc.Upsert(ctx, UpsertDecisionInput{
			Tenant:        "acme",
			DecisionID:    "dec-1",
			Model:         "gpt-4o",
			ModelVersion:  "2024-08-06",
			InputText:     "should we approve the claim?",
			OutputText:    "approve",
			Confidence:    floatPtr(0.92),
			ContextDocs:   []string{"doc-1"},
			ContextChunks: []string{"doc-1-c0"},
		})

		require.NoError(t, err)
		assert.True(t, result.Created)
		assert.Equal(t, "dec-1", result.Decision.DecisionID)
		assert.NotEmpty(t, result.Decision.TraceID)
		decisionRepo.AssertExpectations(t)
		docRepo.AssertExpectations(t)
	})

	t.Run("deduplicates repeated context ids before writing", func(t *testing.T) {
		decisionRepo := new(MockDecisionRepository)
		docRepo := new(MockDocumentRepository)
		svc := newDecisionServiceForTest(decisionRepo, docRepo)

		docRepo.On("GetByIDs", mock.Anything, "acme", []string{"doc-1"}).Return([]*domain.Document{
			{Tenant: "acme", DocID: "doc-1"},
		}, nil)
		decisionRepo.On("Upsert", mock.Anything, mock.Anything).Return(false, nil)
		decisionRepo.On("ReplaceContext", mock.Anything, mock.Anything, "acme", []string{"doc-1"}, []string(nil)).Return(nil)

		result, err := svc.Upsert(ctx, UpsertDecisionInput{
			Tenant:      "acme",
			DecisionID:  "dec-1",
			Model:       "gpt-4o",
			InputText:   "in",
			OutputText:  "out",
			ContextDocs: []string{"doc-1", "doc-1", "doc-1"},
		})

		require.NoError(t, err)
		assert.False(t, result.Created)
		assert.Equal(t, []string{"doc-1"}, result.Decision.ContextDocs)
	})

	t.Run("rejects context document the tenant does not have", func(t *testing.T) {
		decisionRepo := new(MockDecisionRepository)
		docRepo := new(MockDocumentRepository)
		svc := newDecisionServiceForTest(decisionRepo, docRepo)

		docRepo.On("GetByIDs", mock.Anything, "acme", []string{"doc-missing"}).Return([]*domain.Document{}, nil)

		result, err := svc.Upsert(ctx, UpsertDecisionInput{
			Tenant:      "acme",
			DecisionID:  "dec-1",
			Model:       "gpt-4o",
			InputText:   "in",
			OutputText:  "out",
			ContextDocs: []string{"doc-missing"},
		})

		require.Error(t, err)
		assert.Nil(t, result)
		var domainErr *domain.DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, domain.ErrCodeContextNotFound, domainErr.Code)
		assert.Contains(t, err.Error(), "doc-missing")
		decisionRepo.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything)
	})

	t.Run("rejects chunk that belongs to an unlinked document", func(t *testing.T) {
		decisionRepo := new(MockDecisionRepository)
		docRepo := new(MockDocumentRepository)
		svc := newDecisionServiceForTest(decisionRepo, docRepo)

		docRepo.On("GetByIDs", mock.Anything, "acme", []string{"doc-1"}).Return([]*domain.Document{
			{Tenant: "acme", DocID: "doc-1"},
		}, nil)
		docRepo.On("GetChunksByIDs", mock.Anything, "acme", []string{"doc-2-c0"}).Return([]*domain.Chunk{
			{Tenant: "acme", DocID: "doc-2", ChunkID: "doc-2-c0"},
		}, nil)

		_, err := svc.Upsert(ctx, UpsertDecisionInput{
			Tenant:        "acme",
			DecisionID:    "dec-1",
			Model:         "gpt-4o",
			InputText:     "in",
			OutputText:    "out",
			ContextDocs:   []string{"doc-1"},
			ContextChunks: []string{"doc-2-c0"},
		})

		require.Error(t, err)
		var domainErr *domain.DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, domain.ErrCodeContextMismatch, domainErr.Code)
	})

	t.Run("rejects confidence outside the unit interval", func(t *testing.T) {
		decisionRepo := new(MockDecisionRepository)
		docRepo := new(MockDocumentRepository)
		svc := newDecisionServiceForTest(decisionRepo, docRepo)

		_, err := svc.Upsert(ctx, UpsertDecisionInput{
			Tenant:     "acme",
			DecisionID: "dec-1",
			Model:      "gpt-4o",
			InputText:  "in",
			OutputText: "out",
			Confidence: floatPtr(1.5),
		})

		require.Error(t, err)
		var domainErr *domain.DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, domain.ErrCodeValidation, domainErr.Code)
	})

	t.Run("rejects missing required fields", func(t *testing.T) {
		decisionRepo := new(MockDecisionRepository)
		docRepo := new(MockDocumentRepository)
		svc := newDecisionServiceForTest(decisionRepo, docRepo)

		_, err := svc.Upsert(ctx, UpsertDecisionInput{
			Tenant:     "acme",
			DecisionID: "",
			Model:      "gpt-4o",
			InputText:  "in",
			OutputText: "out",
		})

		require.Error(t, err)
		decisionRepo.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything)
	})
}

func TestDecisionService_Query(t *testing.T) {
	ctx := context.Background()

	t.Run("pins the filter to the caller's tenant", func(t *testing.T) {
		decisionRepo := new(MockDecisionRepository)
		docRepo := new(MockDocumentRepository)
		svc := newDecisionServiceForTest(decisionRepo, docRepo)

		decisionRepo.On("Query", mock.Anything, mock.MatchedBy(func(f *domain.DecisionFilter) bool {
			return len(f.Tenants) == 1 && f.Tenants[0] == "acme" && f.Limit > 0
		})).Return([]*domain.Decision{{Tenant: "acme", DecisionID: "dec-1"}}, int64(1), nil)

		decisions, total, err := svc.Query(ctx, "acme", domain.DecisionFilter{
			Tenants: []string{"other-tenant"},
			Model:   "gpt-4o",
		})

		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
		require.Len(t, decisions, 1)
		decisionRepo.AssertExpectations(t)
	})

	t.Run("rejects invalid confidence band", func(t *testing.T) {
		decisionRepo := new(MockDecisionRepository)
		docRepo := new(MockDocumentRepository)
		svc := newDecisionServiceForTest(decisionRepo, docRepo)

		_, _, err := svc.Query(ctx, "acme", domain.DecisionFilter{
			ConfidenceBand: domain.ConfidenceBand("extreme"),
		})

		require.Error(t, err)
		decisionRepo.AssertNotCalled(t, "Query", mock.Anything, mock.Anything)
	})

	t.Run("admin query spans tenants", func(t *testing.T) {
		decisionRepo := new(MockDecisionRepository)
		docRepo := new(MockDocumentRepository)
		svc := newDecisionServiceForTest(decisionRepo, docRepo)

		decisionRepo.On("Query", mock.Anything, mock.MatchedBy(func(f *domain.DecisionFilter) bool {
			return len(f.Tenants) == 2
		})).Return([]*domain.Decision{}, int64(0), nil)

		_, _, err := svc.AdminQuery(ctx, domain.DecisionFilter{
			Tenants: []string{"acme", "globex"},
		})

		require.NoError(t, err)
		decisionRepo.AssertExpectations(t)
	})
}
