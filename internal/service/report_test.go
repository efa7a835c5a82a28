package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/evidentry/evidentry/internal/domain"
	"github.com/evidentry/evidentry/internal/report"
	"github.com/evidentry/evidentry/internal/signing"
)

func newSigningRing(t *testing.T) *signing.Ring {
	t.Helper()
	ring, err := signing.ParseRing("k1=topsecret", "k1")
	require.NoError(t, err)
	return ring
}

func unsignedRing(t *testing.T) *signing.Ring {
	t.Helper()
	ring, err := signing.ParseRing("", "")
	require.NoError(t, err)
	return ring
}

func testDecision(tenant, decisionID string) *domain.Decision {
	conf := 0.91
	return &domain.Decision{
		RefID:        7,
		DecisionID:   decisionID,
		Tenant:       tenant,
		Model:        "gpt-4o",
		ModelVersion: "2024-08-06",
		InputText:    "should we approve the claim?",
		OutputText:   "approve",
		Confidence:   &conf,
		TraceID:      "trace-1",
		ContextDocs:  []string{"doc-1"},
		CreatedAt:    time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC),
		UpdatedAt:    time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC),
	}
}

func expectContextLoad(docRepo *MockDocumentRepository, tenant string) {
	docRepo.On("GetByIDs", mock.Anything, tenant, []string{"doc-1"}).Return([]*domain.Document{
		{Tenant: tenant, DocID: "doc-1", SourceURI: "s3://docs/doc-1.txt"},
	}, nil)
	docRepo.On("GetChunksByIDs", mock.Anything, tenant, []string(nil)).Return([]*domain.Chunk{}, nil)
}

func TestReportService_BuildReport(t *testing.T) {
	ctx := context.Background()

	t.Run("builds identical reports over unchanged data", func(t *testing.T) {
		decisionRepo := new(MockDecisionRepository)
		docRepo := new(MockDocumentRepository)
		svc := NewReportService(decisionRepo, docRepo, new(MockPolicyRepository), new(MockArtifactRepository), newMemObjectStore(), newSigningRing(t))

		decisionRepo.On("GetByDecisionID", mock.Anything, "acme", "dec-1").Return(testDecision("acme", "dec-1"), nil)
		expectContextLoad(docRepo, "acme")

		first, err := svc.BuildReport(ctx, "acme", "dec-1")
		require.NoError(t, err)
		second, err := svc.BuildReport(ctx, "acme", "dec-1")
		require.NoError(t, err)

		firstHash, err := report.Hash(first)
		require.NoError(t, err)
		secondHash, err := report.Hash(second)
		require.NoError(t, err)
		assert.Equal(t, firstHash, secondHash)
		assert.Equal(t, "dec-1", first.Decision.DecisionID)
		require.Len(t, first.ContextDocuments, 1)
	})

	t.Run("propagates decision not found", func(t *testing.T) {
		decisionRepo := new(MockDecisionRepository)
		docRepo := new(MockDocumentRepository)
		svc := NewReportService(decisionRepo, docRepo, new(MockPolicyRepository), new(MockArtifactRepository), newMemObjectStore(), newSigningRing(t))

		decisionRepo.On("GetByDecisionID", mock.Anything, "acme", "dec-nope").Return(nil, domain.ErrDecisionNotFound)

		_, err := svc.BuildReport(ctx, "acme", "dec-nope")
		require.ErrorIs(t, err, domain.ErrDecisionNotFound)
	})
}

func TestReportService_StoreReport(t *testing.T) {
	ctx := context.Background()

	t.Run("stores signed sealed report and indexes it", func(t *testing.T) {
		decisionRepo := new(MockDecisionRepository)
		docRepo := new(MockDocumentRepository)
		artifactRepo := new(MockArtifactRepository)
		store := newMemObjectStore()
		svc := NewReportService(decisionRepo, docRepo, new(MockPolicyRepository), artifactRepo, store, newSigningRing(t))

		decisionRepo.On("GetByDecisionID", mock.Anything, "acme", "dec-1").Return(testDecision("acme", "dec-1"), nil)
		expectContextLoad(docRepo, "acme")

		var indexed *domain.AuditArtifact
		artifactRepo.On("Create", mock.Anything, mock.MatchedBy(func(a *domain.AuditArtifact) bool {
			indexed = a
			return a.Tenant == "acme" &&
				a.ArtifactType == domain.ArtifactTypeDecisionReport &&
				a.ImmutableWrite &&
				a.SignatureAlgorithm == domain.SignatureAlgHMACSHA256 &&
				a.SignatureKeyID != nil && *a.SignatureKeyID == "k1"
		})).Return(nil)

		result, err := svc.StoreReport(ctx, "acme", "dec-1", "auditor@acme")
		require.NoError(t, err)
		require.NotNil(t, indexed)
		assert.NotNil(t, indexed.ObjectGeneration)
		assert.Equal(t, "dec-1", indexed.Metadata["decision_id"])

		raw, err := store.Get(ctx, "acme/decision_report/dec-1.json")
		require.NoError(t, err)
		var doc map[string]any
		require.NoError(t, json.Unmarshal(raw, &doc))
		assert.Equal(t, result.Artifact.ReportHash, doc["report_hash_sha256"])
		assert.Equal(t, "hmac-sha256", doc["signature_alg"])
		assert.NotEmpty(t, doc["signature"])
		artifactRepo.AssertExpectations(t)
	})

	t.Run("second store for the same decision hits write-once", func(t *testing.T) {
		decisionRepo := new(MockDecisionRepository)
		docRepo := new(MockDocumentRepository)
		artifactRepo := new(MockArtifactRepository)
		store := newMemObjectStore()
		svc := NewReportService(decisionRepo, docRepo, new(MockPolicyRepository), artifactRepo, store, newSigningRing(t))

		decisionRepo.On("GetByDecisionID", mock.Anything, "acme", "dec-1").Return(testDecision("acme", "dec-1"), nil)
		expectContextLoad(docRepo, "acme")
		artifactRepo.On("Create", mock.Anything, mock.Anything).Return(nil).Once()

		_, err := svc.StoreReport(ctx, "acme", "dec-1", "auditor@acme")
		require.NoError(t, err)

		_, err = svc.StoreReport(ctx, "acme", "dec-1", "auditor@acme")
		require.ErrorIs(t, err, domain.ErrArtifactAlreadyExists)
	})

	t.Run("rolls the object back when indexing fails", func(t *testing.T) {
		decisionRepo := new(MockDecisionRepository)
		docRepo := new(MockDocumentRepository)
		artifactRepo := new(MockArtifactRepository)
		store := newMemObjectStore()
		svc := NewReportService(decisionRepo, docRepo, new(MockPolicyRepository), artifactRepo, store, newSigningRing(t))

		decisionRepo.On("GetByDecisionID", mock.Anything, "acme", "dec-1").Return(testDecision("acme", "dec-1"), nil)
		expectContextLoad(docRepo, "acme")
		artifactRepo.On("Create", mock.Anything, mock.Anything).Return(errors.New("index down"))

		_, err := svc.StoreReport(ctx, "acme", "dec-1", "auditor@acme")
		require.Error(t, err)

		_, err = store.Get(ctx, "acme/decision_report/dec-1.json")
		require.ErrorIs(t, err, domain.ErrObjectNotFound)
	})

	t.Run("unsigned when no signing keys are configured", func(t *testing.T) {
		decisionRepo := new(MockDecisionRepository)
		docRepo := new(MockDocumentRepository)
		artifactRepo := new(MockArtifactRepository)
		store := newMemObjectStore()
		svc := NewReportService(decisionRepo, docRepo, new(MockPolicyRepository), artifactRepo, store, unsignedRing(t))

		decisionRepo.On("GetByDecisionID", mock.Anything, "acme", "dec-1").Return(testDecision("acme", "dec-1"), nil)
		expectContextLoad(docRepo, "acme")
		artifactRepo.On("Create", mock.Anything, mock.MatchedBy(func(a *domain.AuditArtifact) bool {
			return a.SignatureAlgorithm == domain.SignatureAlgNone && a.SignatureKeyID == nil
		})).Return(nil)

		result, err := svc.StoreReport(ctx, "acme", "dec-1", "auditor@acme")
		require.NoError(t, err)
		assert.Nil(t, result.Document["signature"])
	})
}

func TestReportService_Export(t *testing.T) {
	ctx := context.Background()

	t.Run("exports filtered decisions with metadata union", func(t *testing.T) {
		decisionRepo := new(MockDecisionRepository)
		docRepo := new(MockDocumentRepository)
		artifactRepo := new(MockArtifactRepository)
		store := newMemObjectStore()
		svc := NewReportService(decisionRepo, docRepo, new(MockPolicyRepository), artifactRepo, store, newSigningRing(t))

		decisionRepo.On("Query", mock.Anything, mock.MatchedBy(func(f *domain.DecisionFilter) bool {
			return len(f.Tenants) == 1 && f.Tenants[0] == "acme" && f.Model == "gpt-4o"
		})).Return([]*domain.Decision{testDecision("acme", "dec-1"), testDecision("acme", "dec-2")}, int64(2), nil)

		artifactRepo.On("Create", mock.Anything, mock.MatchedBy(func(a *domain.AuditArtifact) bool {
			ids, _ := a.Metadata["decision_ids"].([]string)
			return a.ArtifactType == domain.ArtifactTypeDecisionExport && len(ids) == 2
		})).Return(nil)

		result, err := svc.Export(ctx, ExportInput{
			Tenant:    "acme",
			Filter:    domain.DecisionFilter{Model: "gpt-4o"},
			CreatedBy: "auditor@acme",
		})
		require.NoError(t, err)
		// Canonical normalization keeps numbers as json.Number.
		assert.Equal(t, json.Number("2"), result.Document["total"])
		assert.Equal(t, "acme", result.Document["tenant"])
	})
}

func TestReportService_Verify(t *testing.T) {
	ctx := context.Background()

	setupStored := func(t *testing.T, ring *signing.Ring) (*ReportService, *memObjectStore, *MockArtifactRepository, *ArtifactResult) {
		decisionRepo := new(MockDecisionRepository)
		docRepo := new(MockDocumentRepository)
		artifactRepo := new(MockArtifactRepository)
		store := newMemObjectStore()
		svc := NewReportService(decisionRepo, docRepo, new(MockPolicyRepository), artifactRepo, store, ring)

		decisionRepo.On("GetByDecisionID", mock.Anything, "acme", "dec-1").Return(testDecision("acme", "dec-1"), nil)
		expectContextLoad(docRepo, "acme")
		artifactRepo.On("Create", mock.Anything, mock.Anything).Return(nil)

		result, err := svc.StoreReport(ctx, "acme", "dec-1", "auditor@acme")
		require.NoError(t, err)
		return svc, store, artifactRepo, result
	}

	t.Run("verifies an untouched signed artifact", func(t *testing.T) {
		svc, _, artifactRepo, stored := setupStored(t, newSigningRing(t))
		artifactRepo.On("GetByLocation", mock.Anything, "acme", stored.Artifact.ObjectLocation).Return(stored.Artifact, nil)

		verdict, err := svc.Verify(ctx, "acme", stored.Artifact.ObjectLocation)
		require.NoError(t, err)
		assert.True(t, verdict.ObjectPresent)
		assert.True(t, verdict.HashValid)
		assert.Equal(t, SignatureStatusValid, verdict.SignatureStatus)
		assert.Equal(t, domain.ArtifactTypeDecisionReport, verdict.ArtifactType)
		require.NotNil(t, verdict.IndexHashMatch)
		assert.True(t, *verdict.IndexHashMatch)
	})

	t.Run("altered content is a hash mismatch, not a signature mismatch", func(t *testing.T) {
		svc, store, artifactRepo, stored := setupStored(t, newSigningRing(t))
		artifactRepo.On("GetByLocation", mock.Anything, "acme", stored.Artifact.ObjectLocation).Return(stored.Artifact, nil)

		raw, err := store.Get(ctx, "acme/decision_report/dec-1.json")
		require.NoError(t, err)
		var doc map[string]any
		require.NoError(t, json.Unmarshal(raw, &doc))
		decision := doc["decision"].(map[string]any)
		decision["output"] = "deny"
		tampered, err := json.Marshal(doc)
		require.NoError(t, err)
		store.tamper("acme/decision_report/dec-1.json", tampered)

		verdict, err := svc.Verify(ctx, "acme", stored.Artifact.ObjectLocation)
		require.NoError(t, err)
		assert.True(t, verdict.ObjectPresent)
		assert.False(t, verdict.HashValid)
		// The signature still covers the recorded digest; only the hash
		// check flags the altered bytes.
		assert.Equal(t, SignatureStatusValid, verdict.SignatureStatus)
		require.NotNil(t, verdict.IndexHashMatch)
		assert.False(t, *verdict.IndexHashMatch)
	})

	t.Run("forged digest is a signature mismatch", func(t *testing.T) {
		svc, store, artifactRepo, stored := setupStored(t, newSigningRing(t))
		artifactRepo.On("GetByLocation", mock.Anything, "acme", stored.Artifact.ObjectLocation).Return(stored.Artifact, nil)

		// An attacker rewrites the payload and recomputes the embedded hash
		// to match, but cannot re-sign without the key.
		raw, err := store.Get(ctx, "acme/decision_report/dec-1.json")
		require.NoError(t, err)
		payload, env, err := report.Open(raw)
		require.NoError(t, err)
		decision := payload["decision"].(map[string]any)
		decision["output"] = "deny"
		forgedHash, err := report.Hash(payload)
		require.NoError(t, err)
		env.ReportHash = forgedHash
		forgedDoc, err := report.Seal(payload, env)
		require.NoError(t, err)
		forged, err := json.Marshal(forgedDoc)
		require.NoError(t, err)
		store.tamper("acme/decision_report/dec-1.json", forged)

		verdict, err := svc.Verify(ctx, "acme", stored.Artifact.ObjectLocation)
		require.NoError(t, err)
		assert.True(t, verdict.HashValid)
		assert.Equal(t, SignatureStatusMismatch, verdict.SignatureStatus)
		require.NotNil(t, verdict.IndexHashMatch)
		assert.False(t, *verdict.IndexHashMatch)
	})

	t.Run("reports absent object", func(t *testing.T) {
		svc, store, artifactRepo, stored := setupStored(t, newSigningRing(t))
		artifactRepo.On("GetByLocation", mock.Anything, "acme", stored.Artifact.ObjectLocation).Return(stored.Artifact, nil)
		require.NoError(t, store.DeleteIfGeneration(ctx, "acme/decision_report/dec-1.json", nil))

		verdict, err := svc.Verify(ctx, "acme", stored.Artifact.ObjectLocation)
		require.NoError(t, err)
		assert.False(t, verdict.ObjectPresent)
		assert.False(t, verdict.HashValid)
	})

	t.Run("unsigned artifact verifies by hash only", func(t *testing.T) {
		svc, _, artifactRepo, stored := setupStored(t, unsignedRing(t))
		artifactRepo.On("GetByLocation", mock.Anything, "acme", stored.Artifact.ObjectLocation).Return(stored.Artifact, nil)

		verdict, err := svc.Verify(ctx, "acme", stored.Artifact.ObjectLocation)
		require.NoError(t, err)
		assert.True(t, verdict.HashValid)
		assert.Equal(t, SignatureStatusUnsigned, verdict.SignatureStatus)
	})

	t.Run("unknown key id reported when ring rotated it away", func(t *testing.T) {
		svc, store, artifactRepo, stored := setupStored(t, newSigningRing(t))
		artifactRepo.On("GetByLocation", mock.Anything, "acme", stored.Artifact.ObjectLocation).Return(stored.Artifact, nil)

		rotated, err := signing.ParseRing("k2=othersecret", "k2")
		require.NoError(t, err)
		svc.keys = rotated
		_ = store

		verdict, err := svc.Verify(ctx, "acme", stored.Artifact.ObjectLocation)
		require.NoError(t, err)
		assert.True(t, verdict.HashValid)
		assert.Equal(t, SignatureStatusKeyUnknown, verdict.SignatureStatus)
	})

	t.Run("verifies unindexed object from bytes alone", func(t *testing.T) {
		svc, _, artifactRepo, stored := setupStored(t, newSigningRing(t))
		artifactRepo.On("GetByLocation", mock.Anything, "acme", stored.Artifact.ObjectLocation).Return(nil, domain.ErrArtifactNotFound)

		verdict, err := svc.Verify(ctx, "acme", stored.Artifact.ObjectLocation)
		require.NoError(t, err)
		assert.False(t, verdict.Indexed)
		assert.True(t, verdict.HashValid)
		assert.Equal(t, SignatureStatusValid, verdict.SignatureStatus)
		assert.Nil(t, verdict.IndexHashMatch)
	})
}

func TestReportService_Bundle(t *testing.T) {
	ctx := context.Background()

	t.Run("bundles selected decisions with per-report hashes and policy snapshot", func(t *testing.T) {
		decisionRepo := new(MockDecisionRepository)
		docRepo := new(MockDocumentRepository)
		policyRepo := new(MockPolicyRepository)
		artifactRepo := new(MockArtifactRepository)
		store := newMemObjectStore()
		svc := NewReportService(decisionRepo, docRepo, policyRepo, artifactRepo, store, newSigningRing(t))

		decisionRepo.On("Query", mock.Anything, mock.MatchedBy(func(f *domain.DecisionFilter) bool {
			return len(f.DecisionIDs) == 1 && f.DecisionIDs[0] == "dec-1"
		})).Return([]*domain.Decision{testDecision("acme", "dec-1")}, int64(1), nil)
		expectContextLoad(docRepo, "acme")
		policyRepo.On("ListByTenant", mock.Anything, "acme").Return([]*domain.RetentionPolicy{
			{Tenant: "acme", ArtifactType: "decision_report", RetainDays: 30, LegalHoldEnabled: true},
		}, nil)
		artifactRepo.On("Create", mock.Anything, mock.MatchedBy(func(a *domain.AuditArtifact) bool {
			return a.ArtifactType == domain.ArtifactTypeDecisionBundle && a.Metadata["case_id"] == "case-77"
		})).Return(nil)

		result, err := svc.Bundle(ctx, BundleInput{
			Tenant:      "acme",
			DecisionIDs: []string{"dec-1"},
			CaseID:      "case-77",
			CreatedBy:   "auditor@acme",
		})
		require.NoError(t, err)

		reports := result.Document["decision_reports"].([]any)
		require.Len(t, reports, 1)
		sealed := reports[0].(map[string]any)
		assert.NotEmpty(t, sealed["report_hash_sha256"])
		snapshot := result.Document["policy_snapshot"].(map[string]any)
		assert.Equal(t, "acme", snapshot["tenant"])
		signingView := snapshot["signing"].(map[string]any)
		assert.Equal(t, true, signingView["enabled"])
	})

	t.Run("fails when a requested decision is missing", func(t *testing.T) {
		decisionRepo := new(MockDecisionRepository)
		docRepo := new(MockDocumentRepository)
		svc := NewReportService(decisionRepo, docRepo, new(MockPolicyRepository), new(MockArtifactRepository), newMemObjectStore(), newSigningRing(t))

		decisionRepo.On("Query", mock.Anything, mock.Anything).Return([]*domain.Decision{}, int64(0), nil)

		_, err := svc.Bundle(ctx, BundleInput{
			Tenant:      "acme",
			DecisionIDs: []string{"dec-ghost"},
		})
		require.Error(t, err)
		var domainErr *domain.DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, domain.ErrCodeNotFound, domainErr.Code)
	})
}

func TestReportService_Package(t *testing.T) {
	ctx := context.Background()

	t.Run("writes one artifact per decision plus a signed manifest", func(t *testing.T) {
		decisionRepo := new(MockDecisionRepository)
		docRepo := new(MockDocumentRepository)
		artifactRepo := new(MockArtifactRepository)
		store := newMemObjectStore()
		svc := NewReportService(decisionRepo, docRepo, new(MockPolicyRepository), artifactRepo, store, newSigningRing(t))

		decisionRepo.On("Query", mock.Anything, mock.Anything).Return(
			[]*domain.Decision{testDecision("acme", "dec-1"), testDecision("acme", "dec-2")}, int64(2), nil)
		expectContextLoad(docRepo, "acme")
		artifactRepo.On("Create", mock.Anything, mock.Anything).Return(nil)

		result, err := svc.Package(ctx, BundleInput{
			Tenant:      "acme",
			DecisionIDs: []string{"dec-1", "dec-2"},
			CreatedBy:   "auditor@acme",
		})
		require.NoError(t, err)
		require.Len(t, result.Files, 2)
		files := result.Manifest.Document["files"].([]any)
		require.Len(t, files, 2)
		first := files[0].(map[string]any)
		assert.Equal(t, result.Files[0].ObjectLocation, first["object_location"])
		assert.Equal(t, result.Files[0].ReportHash, first["report_hash_sha256"])
		assert.NotEmpty(t, first["signature"])
	})
}

func TestReportService_ArtifactDownloadURL(t *testing.T) {
	ctx := context.Background()

	t.Run("presigns a stored artifact", func(t *testing.T) {
		artifactRepo := new(MockArtifactRepository)
		store := newMemObjectStore()
		svc := NewReportService(new(MockDecisionRepository), new(MockDocumentRepository), new(MockPolicyRepository), artifactRepo, store, newSigningRing(t))

		key := "acme/decision_report/dec-1.json"
		_, err := store.PutIfAbsent(ctx, key, []byte(`{"decision":{}}`), "application/json")
		require.NoError(t, err)

		artifactRepo.On("GetByArtifactID", mock.Anything, "acme", "art-1").Return(&domain.AuditArtifact{
			ArtifactID:     "art-1",
			Tenant:         "acme",
			ArtifactType:   domain.ArtifactTypeDecisionReport,
			ObjectLocation: store.Location(key),
		}, nil)

		link, err := svc.ArtifactDownloadURL(ctx, "acme", "art-1")
		require.NoError(t, err)
		assert.Equal(t, "art-1", link.ArtifactID)
		assert.Equal(t, store.Location(key), link.ObjectLocation)
		assert.Contains(t, link.URL, key)
	})

	t.Run("refuses a deleted artifact", func(t *testing.T) {
		artifactRepo := new(MockArtifactRepository)
		store := newMemObjectStore()
		svc := NewReportService(new(MockDecisionRepository), new(MockDocumentRepository), new(MockPolicyRepository), artifactRepo, store, newSigningRing(t))

		deletedAt := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
		artifactRepo.On("GetByArtifactID", mock.Anything, "acme", "art-gone").Return(&domain.AuditArtifact{
			ArtifactID:     "art-gone",
			Tenant:         "acme",
			ObjectLocation: store.Location("acme/decision_report/dec-gone.json"),
			DeletedAt:      &deletedAt,
		}, nil)

		_, err := svc.ArtifactDownloadURL(ctx, "acme", "art-gone")
		require.ErrorIs(t, err, domain.ErrArtifactNotFound)
	})
}
