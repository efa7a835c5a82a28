//go:build integration

package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evidentry/evidentry/internal/domain"
	"github.com/evidentry/evidentry/internal/testutil"
)

func seedDocument(ctx context.Context, t *testing.T, repo *DocumentRepository, tenant, docID string) *domain.Document {
	doc := &domain.Document{
		DocID:     docID,
		Tenant:    tenant,
		SourceURI: "s3://raw/" + docID + ".pdf",
		MimeType:  "application/pdf",
		SizeBytes: 2048,
	}
	require.NoError(t, repo.Create(ctx, doc))
	return doc
}

func floatPtr(f float64) *float64 { return &f }

func TestDecisionRepository_UpsertAndGet(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	docRepo := NewDocumentRepository(pool)
	decisionRepo := NewDecisionRepository(pool)

	seedDocument(ctx, t, docRepo, "acme", "doc-1")

	d := &domain.Decision{
		DecisionID: "dec-1",
		Tenant:     "acme",
		Model:      "fraud-screen-v2",
		InputText:  "transaction 9912",
		OutputText: "approve",
		Confidence: floatPtr(0.91),
		TraceID:    uuid.NewString(),
		Metadata:   map[string]any{"channel": "card"},
	}
	created, err := decisionRepo.Upsert(ctx, d)
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotZero(t, d.RefID)

	require.NoError(t, decisionRepo.ReplaceContext(ctx, d.RefID, d.Tenant, []string{"doc-1"}, nil))

	got, err := decisionRepo.GetByDecisionID(ctx, "acme", "dec-1")
	require.NoError(t, err)
	assert.Equal(t, d.RefID, got.RefID)
	assert.Equal(t, "approve", got.OutputText)
	assert.Equal(t, []string{"doc-1"}, got.ContextDocs)
	assert.Empty(t, got.ContextChunks)
}

func TestDecisionRepository_UpsertReplacesInPlace(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	docRepo := NewDocumentRepository(pool)
	decisionRepo := NewDecisionRepository(pool)

	seedDocument(ctx, t, docRepo, "acme", "doc-1")
	seedDocument(ctx, t, docRepo, "acme", "doc-2")

	d := &domain.Decision{
		DecisionID: "dec-1",
		Tenant:     "acme",
		Model:      "fraud-screen-v2",
		InputText:  "transaction 9912",
		OutputText: "approve",
		TraceID:    uuid.NewString(),
	}
	created, err := decisionRepo.Upsert(ctx, d)
	require.NoError(t, err)
	assert.True(t, created)
	require.NoError(t, decisionRepo.ReplaceContext(ctx, d.RefID, d.Tenant, []string{"doc-1"}, nil))
	firstRefID := d.RefID

	d.OutputText = "deny"
	created, err = decisionRepo.Upsert(ctx, d)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, firstRefID, d.RefID)
	require.NoError(t, decisionRepo.ReplaceContext(ctx, d.RefID, d.Tenant, []string{"doc-2"}, nil))

	got, err := decisionRepo.GetByDecisionID(ctx, "acme", "dec-1")
	require.NoError(t, err)
	assert.Equal(t, "deny", got.OutputText)
	assert.Equal(t, []string{"doc-2"}, got.ContextDocs)

	// Same decision id under another tenant is a separate row.
	other := &domain.Decision{
		DecisionID: "dec-1",
		Tenant:     "globex",
		Model:      "fraud-screen-v2",
		InputText:  "transaction 17",
		OutputText: "approve",
		TraceID:    uuid.NewString(),
	}
	created, err = decisionRepo.Upsert(ctx, other)
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEqual(t, firstRefID, other.RefID)
}

func TestDecisionRepository_QueryFilters(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	docRepo := NewDocumentRepository(pool)
	decisionRepo := NewDecisionRepository(pool)

	seedDocument(ctx, t, docRepo, "acme", "doc-1")
	seedDocument(ctx, t, docRepo, "acme", "doc-2")

	seed := []struct {
		id         string
		model      string
		output     string
		confidence float64
		doc        string
	}{
		{"dec-1", "fraud-screen-v2", "approve", 0.95, "doc-1"},
		{"dec-2", "fraud-screen-v2", "deny", 0.62, "doc-1"},
		{"dec-3", "kyc-check-v1", "escalate", 0.31, "doc-2"},
	}
	for _, s := range seed {
		d := &domain.Decision{
			DecisionID: s.id,
			Tenant:     "acme",
			Model:      s.model,
			InputText:  "input for " + s.id,
			OutputText: s.output,
			Confidence: floatPtr(s.confidence),
			TraceID:    uuid.NewString(),
		}
		_, err := decisionRepo.Upsert(ctx, d)
		require.NoError(t, err)
		require.NoError(t, decisionRepo.ReplaceContext(ctx, d.RefID, d.Tenant, []string{s.doc}, nil))
	}

	filter := &domain.DecisionFilter{Tenants: []string{"acme"}, Model: "fraud-screen-v2"}
	require.NoError(t, filter.Normalize())
	got, total, err := decisionRepo.Query(ctx, filter)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, got, 2)

	filter = &domain.DecisionFilter{Tenants: []string{"acme"}, ConfidenceBand: domain.ConfidenceBandHigh}
	require.NoError(t, filter.Normalize())
	got, total, err = decisionRepo.Query(ctx, filter)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, got, 1)
	assert.Equal(t, "dec-1", got[0].DecisionID)

	filter = &domain.DecisionFilter{Tenants: []string{"acme"}, ContextDocs: []string{"doc-2"}}
	require.NoError(t, filter.Normalize())
	got, total, err = decisionRepo.Query(ctx, filter)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, got, 1)
	assert.Equal(t, "dec-3", got[0].DecisionID)

	// Other tenants never leak into the result.
	filter = &domain.DecisionFilter{Tenants: []string{"globex"}}
	require.NoError(t, filter.Normalize())
	_, total, err = decisionRepo.Query(ctx, filter)
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestDecisionRepository_QueryPagination(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	decisionRepo := NewDecisionRepository(pool)
	for i := 0; i < 5; i++ {
		d := &domain.Decision{
			DecisionID: "dec-" + string(rune('a'+i)),
			Tenant:     "acme",
			Model:      "fraud-screen-v2",
			InputText:  "input",
			OutputText: "approve",
			TraceID:    uuid.NewString(),
		}
		_, err := decisionRepo.Upsert(ctx, d)
		require.NoError(t, err)
		time.Sleep(5 * time.Millisecond)
	}

	filter := &domain.DecisionFilter{Tenants: []string{"acme"}, Offset: 2, Limit: 2, Order: domain.SortAsc}
	require.NoError(t, filter.Normalize())
	got, total, err := decisionRepo.Query(ctx, filter)
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
	require.Len(t, got, 2)
	assert.Equal(t, "dec-c", got[0].DecisionID)
	assert.Equal(t, "dec-d", got[1].DecisionID)
}

func TestDecisionRepository_GetByDecisionID_NotFound(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	_, err := NewDecisionRepository(pool).GetByDecisionID(ctx, "acme", "missing")
	assert.ErrorIs(t, err, domain.ErrDecisionNotFound)
}
