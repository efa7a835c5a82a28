package service

import (
	"context"
	"time"

	"github.com/evidentry/evidentry/internal/domain"
	"github.com/evidentry/evidentry/internal/telemetry"
)

type HoldRepositoryInterface interface {
	Create(ctx context.Context, h *domain.LegalHold) error
	GetByHoldID(ctx context.Context, tenant, holdID string) (*domain.LegalHold, error)
	ListByTenant(ctx context.Context, tenant string, activeOnly bool) ([]*domain.LegalHold, error)
	ListActive(ctx context.Context) ([]*domain.LegalHold, error)
	Release(ctx context.Context, tenant, holdID string, releasedAt time.Time) (*domain.LegalHold, error)
}

// HoldService manages legal holds.
type HoldService struct {
	holdRepo HoldRepositoryInterface
	uuidGen  UUIDGenerator
}

func NewHoldService(holdRepo HoldRepositoryInterface, uuidGen UUIDGenerator) *HoldService {
	return &HoldService{holdRepo: holdRepo, uuidGen: uuidGen}
}

// CreateHoldInput carries one hold creation. CreatedBy is the authenticated
// subject of the caller.
type CreateHoldInput struct {
	Tenant       string
	HoldID       string
	ScopeType    domain.HoldScope
	ScopeID      string
	Reason       string
	CaseID       string
	RegulatorRef string
	CreatedBy    string
}

func (s *HoldService) Create(ctx context.Context, input CreateHoldInput) (_ *domain.LegalHold, err error) {
	ctx, span := telemetry.StartSpan(ctx, "HoldService.Create", telemetry.SpanAttributes{
		Tenant:    input.Tenant,
		Operation: "create_hold",
	})
	defer span.Finish(&err)

	if input.HoldID == "" {
		input.HoldID = "hold-" + s.uuidGen.NewString()
	}

	hold := &domain.LegalHold{
		HoldID:       input.HoldID,
		Tenant:       input.Tenant,
		ScopeType:    input.ScopeType,
		ScopeID:      input.ScopeID,
		Reason:       input.Reason,
		CaseID:       input.CaseID,
		RegulatorRef: input.RegulatorRef,
		CreatedBy:    input.CreatedBy,
		CreatedAt:    time.Now().UTC(),
	}
	if err := domain.ValidateLegalHold(hold); err != nil {
		return nil, err
	}
	if err := s.holdRepo.Create(ctx, hold); err != nil {
		return nil, err
	}
	return hold, nil
}

func (s *HoldService) Get(ctx context.Context, tenant, holdID string) (*domain.LegalHold, error) {
	return s.holdRepo.GetByHoldID(ctx, tenant, holdID)
}

func (s *HoldService) List(ctx context.Context, tenant string, activeOnly bool) ([]*domain.LegalHold, error) {
	return s.holdRepo.ListByTenant(ctx, tenant, activeOnly)
}

// Release releases a hold. Releasing an already released hold returns the
// hold unchanged, so retries are safe.
func (s *HoldService) Release(ctx context.Context, tenant, holdID string) (_ *domain.LegalHold, err error) {
	ctx, span := telemetry.StartSpan(ctx, "HoldService.Release", telemetry.SpanAttributes{
		Tenant:    tenant,
		Operation: "release_hold",
	})
	defer span.Finish(&err)

	return s.holdRepo.Release(ctx, tenant, holdID, time.Now().UTC())
}
