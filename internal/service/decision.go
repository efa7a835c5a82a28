package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/evidentry/evidentry/internal/domain"
	"github.com/evidentry/evidentry/internal/telemetry"
)

// DecisionRepositoryInterface defines the repository interface for the
// decision ledger.
type DecisionRepositoryInterface interface {
	Upsert(ctx context.Context, d *domain.Decision) (bool, error)
	ReplaceContext(ctx context.Context, refID int64, tenant string, docIDs, chunkIDs []string) error
	GetByDecisionID(ctx context.Context, tenant, decisionID string) (*domain.Decision, error)
	Query(ctx context.Context, f *domain.DecisionFilter) ([]*domain.Decision, int64, error)
}

// DocumentRepositoryInterface defines the repository interface for the
// document catalog.
type DocumentRepositoryInterface interface {
	Create(ctx context.Context, d *domain.Document) error
	GetByID(ctx context.Context, tenant, docID string) (*domain.Document, error)
	GetByIDs(ctx context.Context, tenant string, docIDs []string) ([]*domain.Document, error)
	ListByTenant(ctx context.Context, tenant string, offset, limit int) ([]*domain.Document, int64, error)
	ReplaceChunks(ctx context.Context, tenant, docID string, chunks []domain.Chunk) error
	GetChunksByIDs(ctx context.Context, tenant string, chunkIDs []string) ([]*domain.Chunk, error)
}

// UUIDGenerator defines interface for UUID generation (for testing)
type UUIDGenerator interface {
	NewString() string
}

// DefaultUUIDGenerator is the default UUID generator using google/uuid
type DefaultUUIDGenerator struct{}

// NewString generates a new UUID string
func (g *DefaultUUIDGenerator) NewString() string {
	return uuid.NewString()
}

// DecisionService handles ledger writes and queries.
type DecisionService struct {
	txRunner     TxRunner
	decisionRepo DecisionRepositoryInterface
	docRepo      DocumentRepositoryInterface
}

func NewDecisionService(txRunner TxRunner, decisionRepo DecisionRepositoryInterface, docRepo DocumentRepositoryInterface) *DecisionService {
	return &DecisionService{
		txRunner:     txRunner,
		decisionRepo: decisionRepo,
		docRepo:      docRepo,
	}
}

// UpsertDecisionInput is the write surface of the ledger. Tenant comes from
// the authenticated principal, never the request body.
type UpsertDecisionInput struct {
	Tenant        string
	DecisionID    string
	Model         string
	ModelVersion  string
	InputText     string
	OutputText    string
	Confidence    *float64
	TraceID       string
	Metadata      map[string]any
	ContextDocs   []string
	ContextChunks []string
}

// UpsertResult reports the stored decision and whether the write created a
// new ledger row.
type UpsertResult struct {
	Decision *domain.Decision
	Created  bool
}

// Upsert stores a decision keyed by (tenant, decision id). Context linkage
// is validated and replaced in the same transaction as the row write, so a
// decision never ends up linked to documents its tenant does not have.
func (s *DecisionService) Upsert(ctx context.Context, input UpsertDecisionInput) (_ *UpsertResult, err error) {
	ctx, span := telemetry.StartSpan(ctx, "DecisionService.Upsert", telemetry.SpanAttributes{
		Tenant:     input.Tenant,
		DecisionID: input.DecisionID,
		Operation:  "upsert",
	})
	defer span.Finish(&err)

	if input.TraceID == "" {
		input.TraceID = uuid.NewString()
	}

	decision := &domain.Decision{
		DecisionID:    input.DecisionID,
		Tenant:        input.Tenant,
		Model:         input.Model,
		ModelVersion:  input.ModelVersion,
		InputText:     input.InputText,
		OutputText:    input.OutputText,
		Confidence:    input.Confidence,
		TraceID:       input.TraceID,
		Metadata:      input.Metadata,
		ContextDocs:   dedupe(input.ContextDocs),
		ContextChunks: dedupe(input.ContextChunks),
	}
	if err := domain.ValidateDecision(decision); err != nil {
		return nil, err
	}

	var created bool
	err = s.txRunner.WithTx(ctx, func(repos TxRepositories) error {
		if err := validateContextLinkage(ctx, repos.Documents(), decision); err != nil {
			return err
		}

		var err error
		created, err = repos.Decisions().Upsert(ctx, decision)
		if err != nil {
			return err
		}
		return repos.Decisions().ReplaceContext(ctx, decision.RefID, decision.Tenant, decision.ContextDocs, decision.ContextChunks)
	})
	if err != nil {
		return nil, err
	}

	return &UpsertResult{Decision: decision, Created: created}, nil
}

// validateContextLinkage checks that every referenced document exists for
// the tenant and that every referenced chunk belongs to one of the linked
// documents.
func validateContextLinkage(ctx context.Context, docRepo DocumentRepositoryInterface, d *domain.Decision) error {
	docs, err := docRepo.GetByIDs(ctx, d.Tenant, d.ContextDocs)
	if err != nil {
		return err
	}
	known := make(map[string]bool, len(docs))
	for _, doc := range docs {
		known[doc.DocID] = true
	}
	for _, docID := range d.ContextDocs {
		if !known[docID] {
			return domain.NewDomainError(domain.ErrCodeContextNotFound, "context document not found for tenant: "+docID)
		}
	}

	if len(d.ContextChunks) == 0 {
		return nil
	}
	chunks, err := docRepo.GetChunksByIDs(ctx, d.Tenant, d.ContextChunks)
	if err != nil {
		return err
	}
	byID := make(map[string]*domain.Chunk, len(chunks))
	for _, c := range chunks {
		byID[c.ChunkID] = c
	}
	for _, chunkID := range d.ContextChunks {
		chunk, ok := byID[chunkID]
		if !ok {
			return domain.NewDomainError(domain.ErrCodeContextNotFound, "context chunk not found for tenant: "+chunkID)
		}
		if !known[chunk.DocID] {
			return domain.NewDomainError(domain.ErrCodeContextMismatch, "context chunk does not belong to a linked context document: "+chunkID)
		}
	}
	return nil
}

// Get loads one decision within the caller's tenant.
func (s *DecisionService) Get(ctx context.Context, tenant, decisionID string) (_ *domain.Decision, err error) {
	ctx, span := telemetry.StartSpan(ctx, "DecisionService.Get", telemetry.SpanAttributes{
		Tenant:     tenant,
		DecisionID: decisionID,
		Operation:  "get",
	})
	defer span.Finish(&err)

	return s.decisionRepo.GetByDecisionID(ctx, tenant, decisionID)
}

// Query runs a tenant-scoped ledger query. The filter's tenant list is
// overwritten with the caller's tenant.
func (s *DecisionService) Query(ctx context.Context, tenant string, filter domain.DecisionFilter) (_ []*domain.Decision, _ int64, err error) {
	ctx, span := telemetry.StartSpan(ctx, "DecisionService.Query", telemetry.SpanAttributes{
		Tenant:    tenant,
		Operation: "query",
	})
	defer span.Finish(&err)

	filter.Tenants = []string{tenant}
	if err := filter.Normalize(); err != nil {
		return nil, 0, err
	}
	return s.decisionRepo.Query(ctx, &filter)
}

// AdminQuery runs a ledger query across the given tenants. Callers must hold
// the operator credential; the handler enforces that before delegating here.
func (s *DecisionService) AdminQuery(ctx context.Context, filter domain.DecisionFilter) (_ []*domain.Decision, _ int64, err error) {
	ctx, span := telemetry.StartSpan(ctx, "DecisionService.AdminQuery", telemetry.SpanAttributes{
		Operation: "admin_query",
	})
	defer span.Finish(&err)

	if err := filter.Normalize(); err != nil {
		return nil, 0, err
	}
	return s.decisionRepo.Query(ctx, &filter)
}

func dedupe(ids []string) []string {
	if len(ids) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
