package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/evidentry/evidentry/internal/domain"
)

var retentionNow = time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

func newRetentionServiceForTest(
	artifactRepo *MockArtifactRepository,
	policyRepo *MockPolicyRepository,
	holdRepo *MockHoldRepository,
	tenantRepo *MockTenantRepository,
	store *memObjectStore,
) *RetentionService {
	svc := NewRetentionService(artifactRepo, policyRepo, holdRepo, tenantRepo, store)
	svc.now = func() time.Time { return retentionNow }
	svc.uuidGen = NewMockUUIDGenerator("job-1")
	return svc
}

func storedArtifact(t *testing.T, store *memObjectStore, tenant, artifactID string, artifactType domain.ArtifactType, age time.Duration, metadata map[string]any) *domain.AuditArtifact {
	t.Helper()
	ctx := context.Background()
	key := tenant + "/" + string(artifactType) + "/" + artifactID + ".json"
	obj, err := store.PutIfAbsent(ctx, key, []byte(`{"artifact":"`+artifactID+`"}`), "application/json")
	require.NoError(t, err)
	return &domain.AuditArtifact{
		ArtifactID:       artifactID,
		Tenant:           tenant,
		ArtifactType:     artifactType,
		ObjectLocation:   obj.Location,
		ObjectGeneration: obj.Generation,
		ReportHash:       "abc123",
		ImmutableWrite:   true,
		Metadata:         metadata,
		CreatedAt:        retentionNow.Add(-age),
	}
}

func TestRetentionService_Enforce(t *testing.T) {
	ctx := context.Background()
	day := 24 * time.Hour

	t.Run("deletes expired artifacts and skips the rest", func(t *testing.T) {
		artifactRepo := new(MockArtifactRepository)
		policyRepo := new(MockPolicyRepository)
		holdRepo := new(MockHoldRepository)
		store := newMemObjectStore()
		svc := newRetentionServiceForTest(artifactRepo, policyRepo, holdRepo, new(MockTenantRepository), store)

		expired := storedArtifact(t, store, "acme", "art-old", domain.ArtifactTypeDecisionReport, 45*day, nil)
		fresh := storedArtifact(t, store, "acme", "art-new", domain.ArtifactTypeDecisionReport, 5*day, nil)
		unmanaged := storedArtifact(t, store, "acme", "art-bundle", domain.ArtifactTypeDecisionBundle, 400*day, nil)

		policyRepo.On("ListByTenant", mock.Anything, "acme").Return([]*domain.RetentionPolicy{
			{Tenant: "acme", ArtifactType: "decision_report", RetainDays: 30, LegalHoldEnabled: true},
		}, nil)
		holdRepo.On("ListActive", mock.Anything).Return([]*domain.LegalHold{}, nil)
		artifactRepo.On("ListActive", mock.Anything, "acme", "").Return(
			[]*domain.AuditArtifact{expired, fresh, unmanaged}, nil)
		artifactRepo.On("MarkDeleted", mock.Anything, "acme", "art-old", "ops@acme", "quarterly cleanup", "job-1", retentionNow).Return(nil)

		report, err := svc.Enforce(ctx, EnforceInput{
			Tenant:      "acme",
			Reason:      "quarterly cleanup",
			RequestedBy: "ops@acme",
		})
		require.NoError(t, err)

		assert.Equal(t, "job-1", report.JobID)
		assert.Equal(t, 3, report.Scanned)
		assert.Equal(t, 1, report.Eligible)
		assert.Equal(t, 1, report.Deleted)
		assert.Equal(t, 1, report.SkippedNotExpired)
		assert.Equal(t, 1, report.SkippedPolicyMissing)
		assert.Equal(t, 0, report.Failed)

		_, err = store.Get(ctx, "acme/decision_report/art-old.json")
		assert.ErrorIs(t, err, domain.ErrObjectNotFound)
		_, err = store.Get(ctx, "acme/decision_report/art-new.json")
		assert.NoError(t, err)
		_, err = store.Get(ctx, "acme/decision_bundle/art-bundle.json")
		assert.NoError(t, err)
		artifactRepo.AssertExpectations(t)
	})

	t.Run("dry run reports eligibility without touching anything", func(t *testing.T) {
		artifactRepo := new(MockArtifactRepository)
		policyRepo := new(MockPolicyRepository)
		holdRepo := new(MockHoldRepository)
		store := newMemObjectStore()
		svc := newRetentionServiceForTest(artifactRepo, policyRepo, holdRepo, new(MockTenantRepository), store)

		expired := storedArtifact(t, store, "acme", "art-old", domain.ArtifactTypeDecisionReport, 45*day, nil)

		policyRepo.On("ListByTenant", mock.Anything, "acme").Return([]*domain.RetentionPolicy{
			{Tenant: "acme", ArtifactType: "decision_report", RetainDays: 30, LegalHoldEnabled: true},
		}, nil)
		holdRepo.On("ListActive", mock.Anything).Return([]*domain.LegalHold{}, nil)
		artifactRepo.On("ListActive", mock.Anything, "acme", "").Return([]*domain.AuditArtifact{expired}, nil)

		report, err := svc.Enforce(ctx, EnforceInput{Tenant: "acme", DryRun: true})
		require.NoError(t, err)

		assert.True(t, report.DryRun)
		assert.Equal(t, 1, report.Eligible)
		assert.Equal(t, 0, report.Deleted)
		require.Len(t, report.Items, 1)
		assert.Equal(t, OutcomeEligible, report.Items[0].Outcome)

		_, err = store.Get(ctx, "acme/decision_report/art-old.json")
		assert.NoError(t, err)
		artifactRepo.AssertNotCalled(t, "MarkDeleted", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("legal hold blocks deletion of an expired artifact", func(t *testing.T) {
		artifactRepo := new(MockArtifactRepository)
		policyRepo := new(MockPolicyRepository)
		holdRepo := new(MockHoldRepository)
		store := newMemObjectStore()
		svc := newRetentionServiceForTest(artifactRepo, policyRepo, holdRepo, new(MockTenantRepository), store)

		held := storedArtifact(t, store, "acme", "art-held", domain.ArtifactTypeDecisionReport, 400*day, map[string]any{
			"decision_id": "dec-1",
		})

		policyRepo.On("ListByTenant", mock.Anything, "acme").Return([]*domain.RetentionPolicy{
			{Tenant: "acme", ArtifactType: "decision_report", RetainDays: 30, LegalHoldEnabled: true},
		}, nil)
		holdRepo.On("ListActive", mock.Anything).Return([]*domain.LegalHold{
			{HoldID: "hold-1", Tenant: "acme", ScopeType: domain.HoldScopeDecision, ScopeID: "dec-1", Reason: "litigation"},
		}, nil)
		artifactRepo.On("ListActive", mock.Anything, "acme", "").Return([]*domain.AuditArtifact{held}, nil)

		report, err := svc.Enforce(ctx, EnforceInput{Tenant: "acme"})
		require.NoError(t, err)

		assert.Equal(t, 1, report.SkippedOnHold)
		assert.Equal(t, 0, report.Deleted)
		require.Len(t, report.Items, 1)
		assert.Equal(t, OutcomeOnHold, report.Items[0].Outcome)
		assert.Equal(t, []string{"hold-1"}, report.Items[0].HoldIDs)

		_, err = store.Get(ctx, "acme/decision_report/art-held.json")
		assert.NoError(t, err)
	})

	t.Run("hold in another tenant never protects this tenant's artifacts", func(t *testing.T) {
		artifactRepo := new(MockArtifactRepository)
		policyRepo := new(MockPolicyRepository)
		holdRepo := new(MockHoldRepository)
		store := newMemObjectStore()
		svc := newRetentionServiceForTest(artifactRepo, policyRepo, holdRepo, new(MockTenantRepository), store)

		expired := storedArtifact(t, store, "acme", "art-old", domain.ArtifactTypeDecisionReport, 45*day, map[string]any{
			"decision_id": "dec-1",
		})

		policyRepo.On("ListByTenant", mock.Anything, "acme").Return([]*domain.RetentionPolicy{
			{Tenant: "acme", ArtifactType: "decision_report", RetainDays: 30, LegalHoldEnabled: true},
		}, nil)
		holdRepo.On("ListActive", mock.Anything).Return([]*domain.LegalHold{
			{HoldID: "hold-x", Tenant: "globex", ScopeType: domain.HoldScopeTenant, ScopeID: domain.HoldScopeWildcard, Reason: "audit"},
		}, nil)
		artifactRepo.On("ListActive", mock.Anything, "acme", "").Return([]*domain.AuditArtifact{expired}, nil)
		artifactRepo.On("MarkDeleted", mock.Anything, "acme", "art-old", "", "retention_expired", "job-1", retentionNow).Return(nil)

		report, err := svc.Enforce(ctx, EnforceInput{Tenant: "acme"})
		require.NoError(t, err)
		assert.Equal(t, 1, report.Deleted)
		assert.Equal(t, 0, report.SkippedOnHold)
	})

	t.Run("one failing artifact never aborts the run", func(t *testing.T) {
		artifactRepo := new(MockArtifactRepository)
		policyRepo := new(MockPolicyRepository)
		holdRepo := new(MockHoldRepository)
		store := newMemObjectStore()
		svc := newRetentionServiceForTest(artifactRepo, policyRepo, holdRepo, new(MockTenantRepository), store)

		failing := storedArtifact(t, store, "acme", "art-fail", domain.ArtifactTypeDecisionReport, 45*day, nil)
		ok := storedArtifact(t, store, "acme", "art-ok", domain.ArtifactTypeDecisionReport, 45*day, nil)

		policyRepo.On("ListByTenant", mock.Anything, "acme").Return([]*domain.RetentionPolicy{
			{Tenant: "acme", ArtifactType: "decision_report", RetainDays: 30, LegalHoldEnabled: true},
		}, nil)
		holdRepo.On("ListActive", mock.Anything).Return([]*domain.LegalHold{}, nil)
		artifactRepo.On("ListActive", mock.Anything, "acme", "").Return([]*domain.AuditArtifact{failing, ok}, nil)
		artifactRepo.On("MarkDeleted", mock.Anything, "acme", "art-fail", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(errors.New("index write failed"))
		artifactRepo.On("MarkDeleted", mock.Anything, "acme", "art-ok", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)

		report, err := svc.Enforce(ctx, EnforceInput{Tenant: "acme"})
		require.NoError(t, err)

		assert.Equal(t, 2, report.Eligible)
		assert.Equal(t, 1, report.Deleted)
		assert.Equal(t, 1, report.Failed)
		require.Len(t, report.Items, 2)
		assert.Equal(t, OutcomeFailed, report.Items[0].Outcome)
		assert.Contains(t, report.Items[0].Error, "index write failed")
		assert.Equal(t, OutcomeDeleted, report.Items[1].Outcome)
	})

	t.Run("generation conflict is reported distinctly", func(t *testing.T) {
		artifactRepo := new(MockArtifactRepository)
		policyRepo := new(MockPolicyRepository)
		holdRepo := new(MockHoldRepository)
		store := newMemObjectStore()
		svc := newRetentionServiceForTest(artifactRepo, policyRepo, holdRepo, new(MockTenantRepository), store)

		expired := storedArtifact(t, store, "acme", "art-old", domain.ArtifactTypeDecisionReport, 45*day, nil)
		wrongGen := "gen-stale"
		expired.ObjectGeneration = &wrongGen

		policyRepo.On("ListByTenant", mock.Anything, "acme").Return([]*domain.RetentionPolicy{
			{Tenant: "acme", ArtifactType: "decision_report", RetainDays: 30, LegalHoldEnabled: true},
		}, nil)
		holdRepo.On("ListActive", mock.Anything).Return([]*domain.LegalHold{}, nil)
		artifactRepo.On("ListActive", mock.Anything, "acme", "").Return([]*domain.AuditArtifact{expired}, nil)

		report, err := svc.Enforce(ctx, EnforceInput{Tenant: "acme"})
		require.NoError(t, err)

		assert.Equal(t, 1, report.Failed)
		require.Len(t, report.Items, 1)
		assert.Equal(t, OutcomeGenerationConflict, report.Items[0].Outcome)
		_, err = store.Get(ctx, "acme/decision_report/art-old.json")
		assert.NoError(t, err)
	})

	t.Run("empty tenant scope enforces every tenant", func(t *testing.T) {
		artifactRepo := new(MockArtifactRepository)
		policyRepo := new(MockPolicyRepository)
		holdRepo := new(MockHoldRepository)
		tenantRepo := new(MockTenantRepository)
		store := newMemObjectStore()
		svc := newRetentionServiceForTest(artifactRepo, policyRepo, holdRepo, tenantRepo, store)

		tenantRepo.On("List", mock.Anything).Return([]*domain.Tenant{
			{ID: "acme"}, {ID: "globex"},
		}, nil)
		holdRepo.On("ListActive", mock.Anything).Return([]*domain.LegalHold{}, nil)
		policyRepo.On("ListByTenant", mock.Anything, "acme").Return([]*domain.RetentionPolicy{}, nil)
		policyRepo.On("ListByTenant", mock.Anything, "globex").Return([]*domain.RetentionPolicy{}, nil)
		artifactRepo.On("ListActive", mock.Anything, "acme", "").Return([]*domain.AuditArtifact{}, nil)
		artifactRepo.On("ListActive", mock.Anything, "globex", "").Return([]*domain.AuditArtifact{}, nil)

		report, err := svc.Enforce(ctx, EnforceInput{})
		require.NoError(t, err)
		assert.Equal(t, 0, report.Scanned)
		tenantRepo.AssertExpectations(t)
		artifactRepo.AssertExpectations(t)
	})

	t.Run("artifact type scope narrows the scan", func(t *testing.T) {
		artifactRepo := new(MockArtifactRepository)
		policyRepo := new(MockPolicyRepository)
		holdRepo := new(MockHoldRepository)
		store := newMemObjectStore()
		svc := newRetentionServiceForTest(artifactRepo, policyRepo, holdRepo, new(MockTenantRepository), store)

		policyRepo.On("ListByTenant", mock.Anything, "acme").Return([]*domain.RetentionPolicy{}, nil)
		holdRepo.On("ListActive", mock.Anything).Return([]*domain.LegalHold{}, nil)
		artifactRepo.On("ListActive", mock.Anything, "acme", "decision_export").Return([]*domain.AuditArtifact{}, nil)

		_, err := svc.Enforce(ctx, EnforceInput{Tenant: "acme", ArtifactType: "decision_export"})
		require.NoError(t, err)
		artifactRepo.AssertExpectations(t)
	})
}
