package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/evidentry/evidentry/internal/domain"
	"github.com/evidentry/evidentry/internal/telemetry"
)

// maxEnforcementItems bounds the per-artifact detail carried in an
// enforcement report. Counters always cover the full scan.
const maxEnforcementItems = 500

// Enforcement outcomes for one scanned artifact.
const (
	OutcomeDeleted            = "deleted"
	OutcomeEligible           = "eligible"
	OutcomeNotExpired         = "skipped_not_expired"
	OutcomeOnHold             = "skipped_on_hold"
	OutcomePolicyMissing      = "skipped_policy_missing"
	OutcomeFailed             = "failed"
	OutcomeGenerationConflict = "failed_generation_conflict"
)

// EnforceInput scopes one enforcement run. An empty Tenant runs against
// every tenant; an empty ArtifactType covers all artifact types.
type EnforceInput struct {
	Tenant       string
	ArtifactType string
	DryRun       bool
	// Limit caps how many artifacts one run judges. Zero means no cap.
	Limit       int
	Reason      string
	RequestedBy string
}

// EnforcementItem records the outcome for one scanned artifact.
type EnforcementItem struct {
	Tenant         string    `json:"tenant"`
	ArtifactID     string    `json:"artifact_id"`
	ArtifactType   string    `json:"artifact_type"`
	ObjectLocation string    `json:"object_location"`
	CreatedAt      time.Time `json:"created_at"`
	Outcome        string    `json:"outcome"`
	ExpiresAt      *string   `json:"expires_at,omitempty"`
	HoldIDs        []string  `json:"hold_ids,omitempty"`
	Error          string    `json:"error,omitempty"`
}

// EnforcementReport summarizes one enforcement run. Dry runs produce the
// same report as real runs except nothing is deleted and eligible artifacts
// are counted instead.
type EnforcementReport struct {
	JobID                string            `json:"job_id"`
	DryRun               bool              `json:"dry_run"`
	Tenant               string            `json:"tenant,omitempty"`
	ArtifactType         string            `json:"artifact_type,omitempty"`
	Reason               string            `json:"reason,omitempty"`
	StartedAt            time.Time         `json:"started_at"`
	FinishedAt           time.Time         `json:"finished_at"`
	Scanned              int               `json:"scanned"`
	Eligible             int               `json:"eligible"`
	Deleted              int               `json:"deleted"`
	SkippedNotExpired    int               `json:"skipped_not_expired"`
	SkippedOnHold        int               `json:"skipped_on_hold"`
	SkippedPolicyMissing int               `json:"skipped_policy_missing"`
	Failed               int               `json:"failed"`
	Items                []EnforcementItem `json:"items"`
	ItemsTruncated       bool              `json:"items_truncated"`
}

// RetentionService walks the artifact index and deletes what retention
// policies allow. Deletion removes the object bytes and soft-deletes the
// index row; the row itself is never removed.
type RetentionService struct {
	artifactRepo ArtifactRepositoryInterface
	policyRepo   PolicyRepositoryInterface
	holdRepo     HoldRepositoryInterface
	tenantRepo   TenantRepositoryInterface
	store        ObjectStore
	uuidGen      UUIDGenerator
	now          func() time.Time
}

func NewRetentionService(
	artifactRepo ArtifactRepositoryInterface,
	policyRepo PolicyRepositoryInterface,
	holdRepo HoldRepositoryInterface,
	tenantRepo TenantRepositoryInterface,
	store ObjectStore,
) *RetentionService {
	return &RetentionService{
		artifactRepo: artifactRepo,
		policyRepo:   policyRepo,
		holdRepo:     holdRepo,
		tenantRepo:   tenantRepo,
		store:        store,
		uuidGen:      &DefaultUUIDGenerator{},
		now:          time.Now,
	}
}

// Enforce runs one retention pass over the scoped artifacts. Every artifact
// is judged independently: a failure deleting one never aborts the run, it
// is counted and the scan continues. The same inputs with DryRun set report
// what would happen without touching storage or the index.
func (s *RetentionService) Enforce(ctx context.Context, input EnforceInput) (_ *EnforcementReport, err error) {
	ctx, span := telemetry.StartSpan(ctx, "RetentionService.Enforce", telemetry.SpanAttributes{
		Tenant:    input.Tenant,
		Operation: "retention_enforce",
	})
	defer span.Finish(&err)

	now := s.now().UTC()
	report := &EnforcementReport{
		JobID:        s.uuidGen.NewString(),
		DryRun:       input.DryRun,
		Tenant:       input.Tenant,
		ArtifactType: input.ArtifactType,
		Reason:       input.Reason,
		StartedAt:    now,
		Items:        []EnforcementItem{},
	}

	tenants, err := s.resolveTenants(ctx, input.Tenant)
	if err != nil {
		return nil, err
	}
	holds, err := s.holdRepo.ListActive(ctx)
	if err != nil {
		return nil, err
	}

	for _, tenant := range tenants {
		policies, err := s.policyRepo.ListByTenant(ctx, tenant)
		if err != nil {
			return nil, err
		}
		byType := make(map[string]*domain.RetentionPolicy, len(policies))
		for _, p := range policies {
			byType[p.ArtifactType] = p
		}

		artifacts, err := s.artifactRepo.ListActive(ctx, tenant, input.ArtifactType)
		if err != nil {
			return nil, err
		}
		for _, a := range artifacts {
			if input.Limit > 0 && report.Scanned >= input.Limit {
				report.FinishedAt = s.now().UTC()
				return report, nil
			}
			s.judge(ctx, report, byType, holds, a, input, now)
		}
	}

	report.FinishedAt = s.now().UTC()
	return report, nil
}

func (s *RetentionService) judge(
	ctx context.Context,
	report *EnforcementReport,
	policies map[string]*domain.RetentionPolicy,
	holds []*domain.LegalHold,
	a *domain.AuditArtifact,
	input EnforceInput,
	now time.Time,
) {
	report.Scanned++
	item := EnforcementItem{
		Tenant:         a.Tenant,
		ArtifactID:     a.ArtifactID,
		ArtifactType:   string(a.ArtifactType),
		ObjectLocation: a.ObjectLocation,
		CreatedAt:      a.CreatedAt,
	}

	policy, ok := policies[string(a.ArtifactType)]
	if !ok {
		report.SkippedPolicyMissing++
		item.Outcome = OutcomePolicyMissing
		s.record(report, item)
		return
	}

	expiresAt := policy.ExpiresAt(a.CreatedAt).UTC().Format(time.RFC3339)
	item.ExpiresAt = &expiresAt
	if !policy.Expired(a.CreatedAt, now) {
		report.SkippedNotExpired++
		item.Outcome = OutcomeNotExpired
		s.record(report, item)
		return
	}

	if policy.LegalHoldEnabled {
		if ids := domain.MatchingHoldIDs(holds, a.HoldTarget()); len(ids) > 0 {
			report.SkippedOnHold++
			item.Outcome = OutcomeOnHold
			item.HoldIDs = ids
			s.record(report, item)
			return
		}
	}

	report.Eligible++
	if input.DryRun {
		item.Outcome = OutcomeEligible
		s.record(report, item)
		return
	}

	if err := s.delete(ctx, a, input, report.JobID, now); err != nil {
		report.Failed++
		item.Outcome = OutcomeFailed
		if errors.Is(err, domain.ErrGenerationConflict) {
			item.Outcome = OutcomeGenerationConflict
		}
		item.Error = err.Error()
		s.record(report, item)
		return
	}
	report.Deleted++
	item.Outcome = OutcomeDeleted
	s.record(report, item)
}

// delete removes the object bytes first, then soft-deletes the index row.
// An object that is already gone is not an error: the index row still needs
// its soft-delete columns set.
func (s *RetentionService) delete(ctx context.Context, a *domain.AuditArtifact, input EnforceInput, jobID string, now time.Time) error {
	key, err := s.store.Key(a.ObjectLocation)
	if err != nil {
		return fmt.Errorf("resolve object key: %w", err)
	}
	if err := s.store.DeleteIfGeneration(ctx, key, a.ObjectGeneration); err != nil {
		return fmt.Errorf("delete object: %w", err)
	}
	reason := input.Reason
	if reason == "" {
		reason = "retention_expired"
	}
	if err := s.artifactRepo.MarkDeleted(ctx, a.Tenant, a.ArtifactID, input.RequestedBy, reason, jobID, now); err != nil {
		return fmt.Errorf("mark index row deleted: %w", err)
	}
	return nil
}

func (s *RetentionService) record(report *EnforcementReport, item EnforcementItem) {
	if len(report.Items) >= maxEnforcementItems {
		report.ItemsTruncated = true
		return
	}
	report.Items = append(report.Items, item)
}

func (s *RetentionService) resolveTenants(ctx context.Context, tenant string) ([]string, error) {
	if tenant != "" {
		return []string{tenant}, nil
	}
	all, err := s.tenantRepo.List(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(all))
	for _, t := range all {
		ids = append(ids, t.ID)
	}
	return ids, nil
}
