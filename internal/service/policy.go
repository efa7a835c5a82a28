package service

import (
	"context"

	"github.com/evidentry/evidentry/internal/domain"
	"github.com/evidentry/evidentry/internal/telemetry"
)

type PolicyRepositoryInterface interface {
	Upsert(ctx context.Context, p *domain.RetentionPolicy) (bool, error)
	Get(ctx context.Context, tenant, artifactType string) (*domain.RetentionPolicy, error)
	ListByTenant(ctx context.Context, tenant string) ([]*domain.RetentionPolicy, error)
	Delete(ctx context.Context, tenant, artifactType string) error
}

// PolicyService manages tenant retention policies.
type PolicyService struct {
	policyRepo PolicyRepositoryInterface
}

func NewPolicyService(policyRepo PolicyRepositoryInterface) *PolicyService {
	return &PolicyService{policyRepo: policyRepo}
}

// UpsertPolicyInput carries one policy write. CreatedBy is the authenticated
// subject of the caller.
type UpsertPolicyInput struct {
	Tenant       string
	ArtifactType string
	RetainDays   int
	// Policy flags default to true when the caller leaves them unset.
	LegalHoldEnabled  *bool
	ImmutableRequired *bool
	CreatedBy         string
}

// Upsert creates or replaces the policy for (tenant, artifact type).
func (s *PolicyService) Upsert(ctx context.Context, input UpsertPolicyInput) (_ *domain.RetentionPolicy, _ bool, err error) {
	ctx, span := telemetry.StartSpan(ctx, "PolicyService.Upsert", telemetry.SpanAttributes{
		Tenant:    input.Tenant,
		Operation: "upsert_policy",
	})
	defer span.Finish(&err)

	policy := &domain.RetentionPolicy{
		Tenant:            input.Tenant,
		ArtifactType:      input.ArtifactType,
		RetainDays:        input.RetainDays,
		LegalHoldEnabled:  boolOrDefault(input.LegalHoldEnabled, true),
		ImmutableRequired: boolOrDefault(input.ImmutableRequired, true),
		CreatedBy:         input.CreatedBy,
	}
	if err := domain.ValidateRetentionPolicy(policy); err != nil {
		return nil, false, err
	}

	created, err := s.policyRepo.Upsert(ctx, policy)
	if err != nil {
		return nil, false, err
	}
	return policy, created, nil
}

func (s *PolicyService) Get(ctx context.Context, tenant, artifactType string) (*domain.RetentionPolicy, error) {
	return s.policyRepo.Get(ctx, tenant, artifactType)
}

func (s *PolicyService) List(ctx context.Context, tenant string) ([]*domain.RetentionPolicy, error) {
	return s.policyRepo.ListByTenant(ctx, tenant)
}

func (s *PolicyService) Delete(ctx context.Context, tenant, artifactType string) (err error) {
	ctx, span := telemetry.StartSpan(ctx, "PolicyService.Delete", telemetry.SpanAttributes{
		Tenant:    tenant,
		Operation: "delete_policy",
	})
	defer span.Finish(&err)

	return s.policyRepo.Delete(ctx, tenant, artifactType)
}

func boolOrDefault(b *bool, def bool) bool {
	if b == nil {
		return def
	}
	return *b
}
