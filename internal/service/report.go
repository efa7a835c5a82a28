package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/evidentry/evidentry/internal/domain"
	"github.com/evidentry/evidentry/internal/report"
	"github.com/evidentry/evidentry/internal/signing"
	"github.com/evidentry/evidentry/internal/storage"
	"github.com/evidentry/evidentry/internal/telemetry"
)

type ArtifactRepositoryInterface interface {
	Create(ctx context.Context, a *domain.AuditArtifact) error
	GetByArtifactID(ctx context.Context, tenant, artifactID string) (*domain.AuditArtifact, error)
	GetByLocation(ctx context.Context, tenant, location string) (*domain.AuditArtifact, error)
	List(ctx context.Context, f domain.ArtifactFilter) ([]*domain.AuditArtifact, int64, error)
	ListActive(ctx context.Context, tenant, artifactType string) ([]*domain.AuditArtifact, error)
	MarkDeleted(ctx context.Context, tenant, artifactID, deletedBy, reason, jobID string, deletedAt time.Time) error
}

// ObjectStore is the write-once artifact storage surface.
type ObjectStore interface {
	PutIfAbsent(ctx context.Context, key string, body []byte, contentType string) (*storage.StoredObject, error)
	Get(ctx context.Context, key string) ([]byte, error)
	DeleteIfGeneration(ctx context.Context, key string, generation *string) error
	GenerateDownloadURL(ctx context.Context, key string) (string, error)
	Location(key string) string
	Key(location string) (string, error)
}

// ReportService renders audit documents, seals and signs them, and persists
// them as write-once artifacts.
type ReportService struct {
	decisionRepo DecisionRepositoryInterface
	docRepo      DocumentRepositoryInterface
	policyRepo   PolicyRepositoryInterface
	artifactRepo ArtifactRepositoryInterface
	store        ObjectStore
	keys         signing.KeyResolver
	uuidGen      UUIDGenerator
}

func NewReportService(
	decisionRepo DecisionRepositoryInterface,
	docRepo DocumentRepositoryInterface,
	policyRepo PolicyRepositoryInterface,
	artifactRepo ArtifactRepositoryInterface,
	store ObjectStore,
	keys signing.KeyResolver,
) *ReportService {
	return &ReportService{
		decisionRepo: decisionRepo,
		docRepo:      docRepo,
		policyRepo:   policyRepo,
		artifactRepo: artifactRepo,
		store:        store,
		keys:         keys,
		uuidGen:      &DefaultUUIDGenerator{},
	}
}

// ArtifactResult is the outcome of persisting one rendered document.
type ArtifactResult struct {
	Artifact *domain.AuditArtifact
	// Document is the exact sealed document written to storage.
	Document map[string]any
}

// BuildReport renders the canonical report for one decision without storing
// anything. Building twice over unchanged data yields an identical document.
func (s *ReportService) BuildReport(ctx context.Context, tenant, decisionID string) (_ *report.DecisionReport, err error) {
	ctx, span := telemetry.StartSpan(ctx, "ReportService.BuildReport", telemetry.SpanAttributes{
		Tenant:     tenant,
		DecisionID: decisionID,
		Operation:  "build_report",
	})
	defer span.Finish(&err)

	decision, err := s.decisionRepo.GetByDecisionID(ctx, tenant, decisionID)
	if err != nil {
		return nil, err
	}
	return s.renderReport(ctx, decision)
}

func (s *ReportService) renderReport(ctx context.Context, decision *domain.Decision) (*report.DecisionReport, error) {
	docs, err := s.docRepo.GetByIDs(ctx, decision.Tenant, decision.ContextDocs)
	if err != nil {
		return nil, err
	}
	chunks, err := s.docRepo.GetChunksByIDs(ctx, decision.Tenant, decision.ContextChunks)
	if err != nil {
		return nil, err
	}
	return &report.DecisionReport{
		Decision:         report.NewDecisionView(decision),
		ContextDocuments: report.NewContextDocuments(docs),
		ContextChunks:    report.NewContextChunks(chunks),
	}, nil
}

// StoreReport renders one decision's report and persists it as a write-once
// artifact at a location derived from the decision id. Storing the report
// for the same decision twice fails with ErrArtifactAlreadyExists.
func (s *ReportService) StoreReport(ctx context.Context, tenant, decisionID, createdBy string) (_ *ArtifactResult, err error) {
	ctx, span := telemetry.StartSpan(ctx, "ReportService.StoreReport", telemetry.SpanAttributes{
		Tenant:     tenant,
		DecisionID: decisionID,
		Operation:  "store_report",
	})
	defer span.Finish(&err)

	decision, err := s.decisionRepo.GetByDecisionID(ctx, tenant, decisionID)
	if err != nil {
		return nil, err
	}
	doc, err := s.renderReport(ctx, decision)
	if err != nil {
		return nil, err
	}

	return s.persist(ctx, persistInput{
		Tenant:       tenant,
		ArtifactType: domain.ArtifactTypeDecisionReport,
		ObjectKey:    fmt.Sprintf("%s/%s/%s.json", tenant, domain.ArtifactTypeDecisionReport, decisionID),
		Payload:      doc,
		CreatedBy:    createdBy,
		TraceID:      decision.TraceID,
		Metadata: map[string]any{
			"decision_id":  decision.DecisionID,
			"context_docs": decision.ContextDocs,
		},
	})
}

// ExportInput drives a filtered ledger export.
type ExportInput struct {
	Tenant         string
	Filter         domain.DecisionFilter
	IncludeContext bool
	CreatedBy      string
}

// Export renders a filtered decision export and persists it as a write-once
// artifact.
func (s *ReportService) Export(ctx context.Context, input ExportInput) (_ *ArtifactResult, err error) {
	ctx, span := telemetry.StartSpan(ctx, "ReportService.Export", telemetry.SpanAttributes{
		Tenant:    input.Tenant,
		Operation: "export",
	})
	defer span.Finish(&err)

	input.Filter.Tenants = []string{input.Tenant}
	if err := input.Filter.Normalize(); err != nil {
		return nil, err
	}
	decisions, total, err := s.decisionRepo.Query(ctx, &input.Filter)
	if err != nil {
		return nil, err
	}

	exportID := s.uuidGen.NewString()
	traceID := s.uuidGen.NewString()
	doc := &report.ExportDocument{
		TraceID:     traceID,
		GeneratedAt: report.Timestamp(time.Now()),
		Tenant:      input.Tenant,
		Filters:     filterView(&input.Filter),
		Total:       int(total),
		Returned:    len(decisions),
		Decisions:   make([]report.DecisionView, 0, len(decisions)),
	}
	if input.IncludeContext {
		doc.DecisionContext = make(map[string]report.DecisionContext, len(decisions))
	}
	for _, d := range decisions {
		doc.Decisions = append(doc.Decisions, report.NewDecisionView(d))
		if input.IncludeContext {
			rendered, err := s.renderReport(ctx, d)
			if err != nil {
				return nil, err
			}
			doc.DecisionContext[d.DecisionID] = report.DecisionContext{
				ContextDocuments: rendered.ContextDocuments,
				ContextChunks:    rendered.ContextChunks,
			}
		}
	}

	return s.persist(ctx, persistInput{
		Tenant:       input.Tenant,
		ArtifactType: domain.ArtifactTypeDecisionExport,
		ObjectKey:    fmt.Sprintf("%s/%s/%s.json", input.Tenant, domain.ArtifactTypeDecisionExport, exportID),
		Payload:      doc,
		CreatedBy:    input.CreatedBy,
		TraceID:      traceID,
		Metadata: map[string]any{
			"decision_ids": decisionIDs(decisions),
			"context_docs": contextDocUnion(decisions),
		},
	})
}

// BundleInput drives a multi-decision evidence bundle.
type BundleInput struct {
	Tenant       string
	DecisionIDs  []string
	Filter       domain.DecisionFilter
	CaseID       string
	RegulatorRef string
	CreatedBy    string
}

// Bundle renders an evidence bundle: per-decision reports each sealed with
// their own hash, plus a snapshot of the retention policies in force, and
// persists the whole document as one write-once artifact.
func (s *ReportService) Bundle(ctx context.Context, input BundleInput) (_ *ArtifactResult, err error) {
	ctx, span := telemetry.StartSpan(ctx, "ReportService.Bundle", telemetry.SpanAttributes{
		Tenant:    input.Tenant,
		Operation: "bundle",
	})
	defer span.Finish(&err)

	decisions, total, err := s.resolveSelection(ctx, input.Tenant, input.DecisionIDs, input.Filter)
	if err != nil {
		return nil, err
	}

	bundleID := s.uuidGen.NewString()
	traceID := s.uuidGen.NewString()
	doc := &report.BundleDocument{
		BundleID:        bundleID,
		TraceID:         traceID,
		GeneratedAt:     report.Timestamp(time.Now()),
		Tenant:          input.Tenant,
		ExportedBy:      input.CreatedBy,
		CaseID:          input.CaseID,
		RegulatorRef:    input.RegulatorRef,
		Filters:         selectionView(input.DecisionIDs, &input.Filter),
		Total:           total,
		Returned:        len(decisions),
		DecisionReports: make([]report.SealedDecisionReport, 0, len(decisions)),
	}
	for _, d := range decisions {
		rendered, err := s.renderReport(ctx, d)
		if err != nil {
			return nil, err
		}
		hash, err := report.Hash(rendered)
		if err != nil {
			return nil, err
		}
		doc.DecisionReports = append(doc.DecisionReports, report.SealedDecisionReport{
			DecisionReport: *rendered,
			ReportHash:     hash,
		})
	}

	snapshot, err := s.policySnapshot(ctx, input.Tenant)
	if err != nil {
		return nil, err
	}
	doc.PolicySnapshot = snapshot

	return s.persist(ctx, persistInput{
		Tenant:       input.Tenant,
		ArtifactType: domain.ArtifactTypeDecisionBundle,
		ObjectKey:    fmt.Sprintf("%s/%s/%s.json", input.Tenant, domain.ArtifactTypeDecisionBundle, bundleID),
		Payload:      doc,
		CreatedBy:    input.CreatedBy,
		TraceID:      traceID,
		Metadata: map[string]any{
			"decision_ids": decisionIDs(decisions),
			"context_docs": contextDocUnion(decisions),
			"case_id":      input.CaseID,
		},
	})
}

// PackageResult is the outcome of a package build: one artifact per decision
// report plus the signed manifest tying them together.
type PackageResult struct {
	Manifest *ArtifactResult
	Files    []*domain.AuditArtifact
}

// Package writes each selected decision's report as its own write-once
// artifact and then persists a signed manifest listing every file with its
// hash and signature.
func (s *ReportService) Package(ctx context.Context, input BundleInput) (_ *PackageResult, err error) {
	ctx, span := telemetry.StartSpan(ctx, "ReportService.Package", telemetry.SpanAttributes{
		Tenant:    input.Tenant,
		Operation: "package",
	})
	defer span.Finish(&err)

	decisions, total, err := s.resolveSelection(ctx, input.Tenant, input.DecisionIDs, input.Filter)
	if err != nil {
		return nil, err
	}

	packageID := s.uuidGen.NewString()
	traceID := s.uuidGen.NewString()
	result := &PackageResult{}
	files := make([]report.PackageFile, 0, len(decisions))

	for _, d := range decisions {
		rendered, err := s.renderReport(ctx, d)
		if err != nil {
			return nil, err
		}
		res, err := s.persist(ctx, persistInput{
			Tenant:       input.Tenant,
			ArtifactType: domain.ArtifactTypeDecisionReport,
			ObjectKey:    fmt.Sprintf("%s/%s/%s/%s.json", input.Tenant, domain.ArtifactTypePackageManifest, packageID, d.DecisionID),
			Payload:      rendered,
			CreatedBy:    input.CreatedBy,
			TraceID:      traceID,
			Metadata: map[string]any{
				"decision_id":  d.DecisionID,
				"context_docs": d.ContextDocs,
				"case_id":      input.CaseID,
				"package_id":   packageID,
			},
		})
		if err != nil {
			return nil, err
		}
		result.Files = append(result.Files, res.Artifact)
		files = append(files, report.PackageFile{
			Kind:           string(domain.ArtifactTypeDecisionReport),
			DecisionID:     d.DecisionID,
			ObjectLocation: res.Artifact.ObjectLocation,
			ReportHash:     res.Artifact.ReportHash,
			SignatureAlg:   res.Artifact.SignatureAlgorithm,
			SignatureKeyID: res.Artifact.SignatureKeyID,
			Signature:      signatureField(res.Document),
		})
	}

	manifest := &report.PackageManifest{
		PackageID:    packageID,
		TraceID:      traceID,
		GeneratedAt:  report.Timestamp(time.Now()),
		Tenant:       input.Tenant,
		ExportedBy:   input.CreatedBy,
		CaseID:       input.CaseID,
		RegulatorRef: input.RegulatorRef,
		Filters:      selectionView(input.DecisionIDs, &input.Filter),
		Total:        total,
		Returned:     len(decisions),
		Files:        files,
	}
	manifestRes, err := s.persist(ctx, persistInput{
		Tenant:       input.Tenant,
		ArtifactType: domain.ArtifactTypePackageManifest,
		ObjectKey:    fmt.Sprintf("%s/%s/%s/manifest.json", input.Tenant, domain.ArtifactTypePackageManifest, packageID),
		Payload:      manifest,
		CreatedBy:    input.CreatedBy,
		TraceID:      traceID,
		Metadata: map[string]any{
			"decision_ids": decisionIDs(decisions),
			"context_docs": contextDocUnion(decisions),
			"case_id":      input.CaseID,
			"package_id":   packageID,
		},
	})
	if err != nil {
		return nil, err
	}
	result.Manifest = manifestRes
	return result, nil
}

// SnapshotPolicies persists the tenant's current retention policy set as a
// policy snapshot artifact.
func (s *ReportService) SnapshotPolicies(ctx context.Context, tenant, createdBy string) (_ *ArtifactResult, err error) {
	ctx, span := telemetry.StartSpan(ctx, "ReportService.SnapshotPolicies", telemetry.SpanAttributes{
		Tenant:    tenant,
		Operation: "policy_snapshot",
	})
	defer span.Finish(&err)

	snapshot, err := s.policySnapshot(ctx, tenant)
	if err != nil {
		return nil, err
	}
	snapshotID := s.uuidGen.NewString()
	return s.persist(ctx, persistInput{
		Tenant:       tenant,
		ArtifactType: domain.ArtifactTypePolicySnapshot,
		ObjectKey:    fmt.Sprintf("%s/%s/%s.json", tenant, domain.ArtifactTypePolicySnapshot, snapshotID),
		Payload:      snapshot,
		CreatedBy:    createdBy,
		TraceID:      s.uuidGen.NewString(),
		Metadata:     map[string]any{},
	})
}

func (s *ReportService) policySnapshot(ctx context.Context, tenant string) (*report.PolicySnapshot, error) {
	policies, err := s.policyRepo.ListByTenant(ctx, tenant)
	if err != nil {
		return nil, err
	}
	snap := &report.PolicySnapshot{
		SnapshotAt: report.Timestamp(time.Now()),
		Tenant:     tenant,
		Policies:   report.NewPolicyViews(policies),
	}
	if key, ok := s.keys.Active(); ok {
		snap.Signing = report.SigningSnapshot{Enabled: true, ActiveKeyID: key.ID}
	}
	return snap, nil
}

func (s *ReportService) resolveSelection(ctx context.Context, tenant string, decisionIDs []string, filter domain.DecisionFilter) ([]*domain.Decision, int, error) {
	filter.Tenants = []string{tenant}
	if len(decisionIDs) > 0 {
		filter.DecisionIDs = decisionIDs
	}
	if err := filter.Normalize(); err != nil {
		return nil, 0, err
	}
	decisions, total, err := s.decisionRepo.Query(ctx, &filter)
	if err != nil {
		return nil, 0, err
	}
	if len(decisionIDs) > 0 && len(decisions) < len(dedupe(decisionIDs)) {
		return nil, 0, domain.NewDomainError(domain.ErrCodeNotFound, "one or more requested decisions do not exist for tenant")
	}
	return decisions, int(total), nil
}

type persistInput struct {
	Tenant       string
	ArtifactType domain.ArtifactType
	ObjectKey    string
	Payload      any
	CreatedBy    string
	TraceID      string
	Metadata     map[string]any
}

// persist seals, signs, and writes the document object-first: the bytes land
// in storage under a write-once precondition, then the index row is created.
// If indexing fails the freshly written object is rolled back so the store
// and index cannot diverge silently.
func (s *ReportService) persist(ctx context.Context, input persistInput) (*ArtifactResult, error) {
	hash, err := report.Hash(input.Payload)
	if err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeInternalError, "failed to hash document", err)
	}

	env := report.Envelope{ReportHash: hash, SignatureAlg: domain.SignatureAlgNone}
	if key, ok := s.keys.Active(); ok {
		sig := signing.Sign(key, hash)
		env.SignatureAlg = domain.SignatureAlgHMACSHA256
		env.SignatureKeyID = &key.ID
		env.Signature = &sig
	}

	doc, err := report.Seal(input.Payload, env)
	if err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeInternalError, "failed to seal document", err)
	}
	body, err := report.CanonicalBytes(doc)
	if err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeInternalError, "failed to serialize document", err)
	}

	obj, err := s.store.PutIfAbsent(ctx, input.ObjectKey, body, "application/json")
	if err != nil {
		return nil, err
	}

	artifact := &domain.AuditArtifact{
		ArtifactID:         s.uuidGen.NewString(),
		Tenant:             input.Tenant,
		ArtifactType:       input.ArtifactType,
		ObjectLocation:     obj.Location,
		ObjectGeneration:   obj.Generation,
		ReportHash:         hash,
		SignatureAlgorithm: env.SignatureAlg,
		SignatureKeyID:     env.SignatureKeyID,
		ImmutableWrite:     true,
		CreatedBy:          input.CreatedBy,
		TraceID:            input.TraceID,
		Metadata:           pruneMetadata(input.Metadata),
	}
	if err := domain.ValidateAuditArtifact(artifact); err != nil {
		return nil, err
	}
	if err := s.artifactRepo.Create(ctx, artifact); err != nil {
		_ = s.store.DeleteIfGeneration(ctx, input.ObjectKey, obj.Generation)
		return nil, err
	}

	return &ArtifactResult{Artifact: artifact, Document: doc}, nil
}

// VerificationResult reports the integrity of one stored artifact.
type VerificationResult struct {
	ObjectLocation string              `json:"object_location"`
	ArtifactType   domain.ArtifactType `json:"artifact_type"`
	ObjectPresent  bool                `json:"object_present"`
	HashValid      bool                `json:"hash_valid"`
	// SignatureStatus is one of valid, mismatch, unsigned, key_unknown.
	SignatureStatus string `json:"signature_status"`
	ComputedHash    string `json:"computed_hash,omitempty"`
	StoredHash      string `json:"stored_hash,omitempty"`
	// IndexHashMatch is set when an index row exists for the location.
	IndexHashMatch *bool `json:"index_hash_match,omitempty"`
	Indexed        bool  `json:"indexed"`
	Deleted        bool  `json:"deleted"`
}

const (
	SignatureStatusValid      = "valid"
	SignatureStatusMismatch   = "mismatch"
	SignatureStatusUnsigned   = "unsigned"
	SignatureStatusKeyUnknown = "key_unknown"
)

// Verify re-reads the artifact at the location, recomputes its content hash
// over the document with the envelope fields stripped, and checks the
// embedded signature against the key ring. The index row, when present, is
// cross-checked too but is not required: verification works from the bytes
// alone.
func (s *ReportService) Verify(ctx context.Context, tenant, location string) (_ *VerificationResult, err error) {
	ctx, span := telemetry.StartSpan(ctx, "ReportService.Verify", telemetry.SpanAttributes{
		Tenant:    tenant,
		Operation: "verify",
	})
	defer span.Finish(&err)

	result := &VerificationResult{ObjectLocation: location, ArtifactType: domain.ArtifactTypeUnknown}

	indexed, err := s.artifactRepo.GetByLocation(ctx, tenant, location)
	if err != nil && !errors.Is(err, domain.ErrArtifactNotFound) {
		return nil, err
	}
	if indexed != nil {
		result.Indexed = true
		result.Deleted = indexed.Deleted()
		result.ArtifactType = indexed.ArtifactType
	}

	key, err := s.store.Key(location)
	if err != nil {
		return nil, err
	}
	raw, err := s.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, domain.ErrObjectNotFound) {
			result.SignatureStatus = SignatureStatusUnsigned
			return result, nil
		}
		return nil, err
	}
	result.ObjectPresent = true

	payload, env, err := report.Open(raw)
	if err != nil {
		return nil, err
	}
	if result.ArtifactType == domain.ArtifactTypeUnknown {
		result.ArtifactType = report.InferArtifactType(payload)
	}

	computed, err := report.Hash(payload)
	if err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeInternalError, "failed to hash document", err)
	}
	result.ComputedHash = computed
	result.StoredHash = env.ReportHash
	result.HashValid = env.ReportHash != "" && env.ReportHash == computed

	if indexed != nil {
		match := indexed.ReportHash == computed
		result.IndexHashMatch = &match
	}

	// The signature binds the recorded digest, and the hash check binds the
	// bytes to that digest. Verifying against the stored digest keeps the
	// two outcomes distinct: altered content is a hash mismatch while the
	// signature stays valid, and a forged digest is a signature mismatch.
	signedDigest := env.ReportHash
	if signedDigest == "" {
		signedDigest = computed
	}

	switch {
	case env.Signature == nil || env.SignatureAlg == domain.SignatureAlgNone:
		result.SignatureStatus = SignatureStatusUnsigned
	case env.SignatureKeyID == nil:
		result.SignatureStatus = SignatureStatusKeyUnknown
	default:
		valid, err := signing.Verify(s.keys, *env.SignatureKeyID, signedDigest, *env.Signature)
		if err != nil {
			if errors.Is(err, domain.ErrSigningKeyNotFound) {
				result.SignatureStatus = SignatureStatusKeyUnknown
				break
			}
			return nil, err
		}
		if valid {
			result.SignatureStatus = SignatureStatusValid
		} else {
			result.SignatureStatus = SignatureStatusMismatch
		}
	}

	return result, nil
}

// GetArtifact loads one index row within the caller's tenant.
func (s *ReportService) GetArtifact(ctx context.Context, tenant, artifactID string) (*domain.AuditArtifact, error) {
	return s.artifactRepo.GetByArtifactID(ctx, tenant, artifactID)
}

// ListArtifacts pages through the tenant's artifact index.
func (s *ReportService) ListArtifacts(ctx context.Context, f domain.ArtifactFilter) ([]*domain.AuditArtifact, int64, error) {
	return s.artifactRepo.List(ctx, f)
}

// DownloadLink is a short-lived URL for fetching artifact bytes directly
// from object storage.
type DownloadLink struct {
	ArtifactID     string
	ObjectLocation string
	URL            string
}

// ArtifactDownloadURL presigns a download for one stored artifact. Deleted
// artifacts are refused because their bytes are gone from storage.
func (s *ReportService) ArtifactDownloadURL(ctx context.Context, tenant, artifactID string) (_ *DownloadLink, err error) {
	ctx, span := telemetry.StartSpan(ctx, "ReportService.ArtifactDownloadURL", telemetry.SpanAttributes{
		Tenant:    tenant,
		Operation: "download_url",
	})
	defer span.Finish(&err)

	artifact, err := s.artifactRepo.GetByArtifactID(ctx, tenant, artifactID)
	if err != nil {
		return nil, err
	}
	if artifact.Deleted() {
		return nil, domain.ErrArtifactNotFound
	}

	key, err := s.store.Key(artifact.ObjectLocation)
	if err != nil {
		return nil, err
	}
	url, err := s.store.GenerateDownloadURL(ctx, key)
	if err != nil {
		return nil, err
	}

	return &DownloadLink{
		ArtifactID:     artifact.ArtifactID,
		ObjectLocation: artifact.ObjectLocation,
		URL:            url,
	}, nil
}

func filterView(f *domain.DecisionFilter) map[string]any {
	view := map[string]any{}
	if f.DecisionIDPrefix != "" {
		view["decision_id_prefix"] = f.DecisionIDPrefix
	}
	if len(f.DecisionIDs) > 0 {
		view["decision_ids"] = f.DecisionIDs
	}
	if f.Model != "" {
		view["model"] = f.Model
	}
	if f.ModelVersion != "" {
		view["model_version"] = f.ModelVersion
	}
	if len(f.Outputs) > 0 {
		view["outputs"] = f.Outputs
	}
	if f.Query != "" {
		view["query"] = f.Query
	}
	if f.ConfidenceBand != "" {
		view["confidence_band"] = string(f.ConfidenceBand)
	}
	if f.MinConfidence != nil {
		view["min_confidence"] = *f.MinConfidence
	}
	if f.MaxConfidence != nil {
		view["max_confidence"] = *f.MaxConfidence
	}
	if f.CreatedFrom != nil {
		view["created_from"] = report.Timestamp(*f.CreatedFrom)
	}
	if f.CreatedTo != nil {
		view["created_to"] = report.Timestamp(*f.CreatedTo)
	}
	if len(f.ContextDocs) > 0 {
		view["context_docs"] = f.ContextDocs
	}
	if len(f.ContextChunks) > 0 {
		view["context_chunks"] = f.ContextChunks
	}
	if f.TraceID != "" {
		view["trace_id"] = f.TraceID
	}
	return view
}

func selectionView(decisionIDs []string, f *domain.DecisionFilter) map[string]any {
	view := filterView(f)
	if len(decisionIDs) > 0 {
		view["decision_ids"] = decisionIDs
	}
	return view
}

func decisionIDs(decisions []*domain.Decision) []string {
	ids := make([]string, 0, len(decisions))
	for _, d := range decisions {
		ids = append(ids, d.DecisionID)
	}
	return ids
}

func contextDocUnion(decisions []*domain.Decision) []string {
	var all []string
	for _, d := range decisions {
		all = append(all, d.ContextDocs...)
	}
	return dedupe(all)
}

func signatureField(doc map[string]any) *string {
	if v, ok := doc[report.FieldSignature].(string); ok && v != "" {
		return &v
	}
	return nil
}

func pruneMetadata(m map[string]any) map[string]any {
	out := map[string]any{}
	for k, v := range m {
		switch val := v.(type) {
		case string:
			if val == "" {
				continue
			}
		case []string:
			if len(val) == 0 {
				continue
			}
		case nil:
			continue
		}
		out[k] = v
	}
	return out
}
