package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/evidentry/evidentry/internal/domain"
)

type DecisionRepository struct {
	db dbtx
}

func NewDecisionRepository(pool *pgxpool.Pool) *DecisionRepository {
	return &DecisionRepository{db: pool}
}

func NewDecisionRepositoryWithTx(tx pgx.Tx) *DecisionRepository {
	return &DecisionRepository{db: tx}
}

// Upsert inserts the decision or, when (tenant, decision_id) already exists,
// updates it in place. The row's ref id and timestamps are written back onto
// d. Returns true when a new row was created.
func (r *DecisionRepository) Upsert(ctx context.Context, d *domain.Decision) (bool, error) {
	now := time.Now().UTC()
	var inserted bool
	err := r.db.QueryRow(ctx,
		`INSERT INTO ai_decisions
			(decision_id, tenant, model, model_version, input_text, output_text, confidence, trace_id, metadata, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)
		 ON CONFLICT (tenant, decision_id) DO UPDATE SET
			model = EXCLUDED.model,
			model_version = EXCLUDED.model_version,
			input_text = EXCLUDED.input_text,
			output_text = EXCLUDED.output_text,
			confidence = EXCLUDED.confidence,
			trace_id = EXCLUDED.trace_id,
			metadata = EXCLUDED.metadata,
			updated_at = EXCLUDED.updated_at
		 RETURNING id, created_at, updated_at, (xmax = 0)`,
		d.DecisionID, d.Tenant, d.Model, nullableString(d.ModelVersion), d.InputText, d.OutputText,
		d.Confidence, d.TraceID, metadataOrEmpty(d.Metadata), now,
	).Scan(&d.RefID, &d.CreatedAt, &d.UpdatedAt, &inserted)
	if err != nil {
		return false, err
	}
	return inserted, nil
}

// ReplaceContext replaces the decision's context linkage rows with the given
// doc and chunk ids. Call inside the same transaction as Upsert so a failed
// linkage never leaves a half-updated decision.
func (r *DecisionRepository) ReplaceContext(ctx context.Context, refID int64, tenant string, docIDs, chunkIDs []string) error {
	if _, err := r.db.Exec(ctx,
		`DELETE FROM ai_decision_context_docs WHERE decision_ref_id = $1`, refID); err != nil {
		return err
	}
	if _, err := r.db.Exec(ctx,
		`DELETE FROM ai_decision_context_chunks WHERE decision_ref_id = $1`, refID); err != nil {
		return err
	}
	for _, docID := range docIDs {
		if _, err := r.db.Exec(ctx,
			`INSERT INTO ai_decision_context_docs (decision_ref_id, tenant, doc_id) VALUES ($1, $2, $3)
			 ON CONFLICT (decision_ref_id, doc_id) DO NOTHING`,
			refID, tenant, docID); err != nil {
			return err
		}
	}
	for _, chunkID := range chunkIDs {
		if _, err := r.db.Exec(ctx,
			`INSERT INTO ai_decision_context_chunks (decision_ref_id, tenant, chunk_id) VALUES ($1, $2, $3)
			 ON CONFLICT (decision_ref_id, chunk_id) DO NOTHING`,
			refID, tenant, chunkID); err != nil {
			return err
		}
	}
	return nil
}

// GetByDecisionID loads one decision with its context linkage.
func (r *DecisionRepository) GetByDecisionID(ctx context.Context, tenant, decisionID string) (*domain.Decision, error) {
	var d domain.Decision
	var modelVersion *string
	err := r.db.QueryRow(ctx,
		`SELECT id, decision_id, tenant, model, model_version, input_text, output_text, confidence, trace_id, metadata, created_at, updated_at
		 FROM ai_decisions WHERE tenant = $1 AND decision_id = $2`,
		tenant, decisionID,
	).Scan(&d.RefID, &d.DecisionID, &d.Tenant, &d.Model, &modelVersion, &d.InputText, &d.OutputText,
		&d.Confidence, &d.TraceID, &d.Metadata, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrDecisionNotFound
		}
		return nil, err
	}
	d.ModelVersion = stringOrEmpty(modelVersion)

	if err := r.loadContext(ctx, []*domain.Decision{&d}); err != nil {
		return nil, err
	}
	return &d, nil
}

// Query returns one page of decisions matching the filter, with context
// linkage attached, plus the total match count.
func (r *DecisionRepository) Query(ctx context.Context, f *domain.DecisionFilter) ([]*domain.Decision, int64, error) {
	where, args := buildDecisionWhere(f)

	var total int64
	if err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM ai_decisions d `+where, args...,
	).Scan(&total); err != nil {
		return nil, 0, err
	}

	order := "DESC"
	if f.Order == domain.SortAsc {
		order = "ASC"
	}
	query := fmt.Sprintf(
		`SELECT d.id, d.decision_id, d.tenant, d.model, d.model_version, d.input_text, d.output_text, d.confidence, d.trace_id, d.metadata, d.created_at, d.updated_at
		 FROM ai_decisions d %s
		 ORDER BY d.created_at %s, d.id %s
		 OFFSET $%d LIMIT $%d`,
		where, order, order, len(args)+1, len(args)+2,
	)
	args = append(args, f.Offset, f.Limit)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	decisions, err := scanDecisionRows(rows)
	if err != nil {
		return nil, 0, err
	}
	if err := r.loadContext(ctx, decisions); err != nil {
		return nil, 0, err
	}
	return decisions, total, nil
}

func buildDecisionWhere(f *domain.DecisionFilter) (string, []any) {
	var conds []string
	var args []any

	// add appends one condition; %s placeholders in format are filled with
	// the positional parameters for vals, in order.
	add := func(format string, vals ...any) {
		placeholders := make([]any, len(vals))
		for i, v := range vals {
			args = append(args, v)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		conds = append(conds, fmt.Sprintf(format, placeholders...))
	}

	add("d.tenant = ANY(%s)", f.Tenants)
	if f.DecisionIDPrefix != "" {
		add("d.decision_id LIKE %s || '%%'", f.DecisionIDPrefix)
	}
	if len(f.DecisionIDs) > 0 {
		add("d.decision_id = ANY(%s)", f.DecisionIDs)
	}
	if f.Model != "" {
		add("d.model = %s", f.Model)
	}
	if f.ModelVersion != "" {
		add("d.model_version = %s", f.ModelVersion)
	}
	if len(f.Outputs) > 0 {
		add("d.output_text = ANY(%s)", f.Outputs)
	}
	if f.Query != "" {
		add("(d.input_text ILIKE '%%' || %s || '%%' OR d.output_text ILIKE '%%' || %s || '%%')", f.Query, f.Query)
	}
	if f.TraceID != "" {
		add("d.trace_id = %s", f.TraceID)
	}
	if f.CreatedFrom != nil {
		add("d.created_at >= %s", *f.CreatedFrom)
	}
	if f.CreatedTo != nil {
		add("d.created_at < %s", *f.CreatedTo)
	}

	minConf, maxConf := f.MinConfidence, f.MaxConfidence
	if f.ConfidenceBand != "" {
		bandMin, bandMax, err := f.ConfidenceBand.Range()
		if err == nil {
			if bandMin != nil && (minConf == nil || *bandMin > *minConf) {
				minConf = bandMin
			}
			if bandMax != nil && (maxConf == nil || *bandMax < *maxConf) {
				maxConf = bandMax
			}
		}
	}
	if minConf != nil {
		add("d.confidence >= %s", *minConf)
	}
	if maxConf != nil {
		// Band upper bounds are exclusive so adjacent bands never overlap.
		if f.ConfidenceBand != "" {
			add("d.confidence < %s", *maxConf)
		} else {
			add("d.confidence <= %s", *maxConf)
		}
	}

	if len(f.ContextDocs) > 0 {
		add(`EXISTS (SELECT 1 FROM ai_decision_context_docs cd
			 WHERE cd.decision_ref_id = d.id AND cd.doc_id = ANY(%s))`, f.ContextDocs)
	}
	if len(f.ContextChunks) > 0 {
		add(`EXISTS (SELECT 1 FROM ai_decision_context_chunks cc
			 WHERE cc.decision_ref_id = d.id AND cc.chunk_id = ANY(%s))`, f.ContextChunks)
	}

	return "WHERE " + strings.Join(conds, " AND "), args
}

// loadContext attaches context doc and chunk ids to the given decisions.
func (r *DecisionRepository) loadContext(ctx context.Context, decisions []*domain.Decision) error {
	if len(decisions) == 0 {
		return nil
	}
	byRef := make(map[int64]*domain.Decision, len(decisions))
	refIDs := make([]int64, 0, len(decisions))
	for _, d := range decisions {
		byRef[d.RefID] = d
		refIDs = append(refIDs, d.RefID)
		d.ContextDocs = nil
		d.ContextChunks = nil
	}

	rows, err := r.db.Query(ctx,
		`SELECT decision_ref_id, doc_id FROM ai_decision_context_docs
		 WHERE decision_ref_id = ANY($1) ORDER BY id`,
		refIDs,
	)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var refID int64
		var docID string
		if err := rows.Scan(&refID, &docID); err != nil {
			return err
		}
		if d, ok := byRef[refID]; ok {
			d.ContextDocs = append(d.ContextDocs, docID)
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}

	chunkRows, err := r.db.Query(ctx,
		`SELECT decision_ref_id, chunk_id FROM ai_decision_context_chunks
		 WHERE decision_ref_id = ANY($1) ORDER BY id`,
		refIDs,
	)
	if err != nil {
		return err
	}
	defer chunkRows.Close()
	for chunkRows.Next() {
		var refID int64
		var chunkID string
		if err := chunkRows.Scan(&refID, &chunkID); err != nil {
			return err
		}
		if d, ok := byRef[refID]; ok {
			d.ContextChunks = append(d.ContextChunks, chunkID)
		}
	}
	return chunkRows.Err()
}

func scanDecisionRows(rows pgx.Rows) ([]*domain.Decision, error) {
	var results []*domain.Decision
	for rows.Next() {
		var d domain.Decision
		var modelVersion *string
		if err := rows.Scan(&d.RefID, &d.DecisionID, &d.Tenant, &d.Model, &modelVersion, &d.InputText, &d.OutputText,
			&d.Confidence, &d.TraceID, &d.Metadata, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, err
		}
		d.ModelVersion = stringOrEmpty(modelVersion)
		results = append(results, &d)
	}
	return results, rows.Err()
}

func metadataOrEmpty(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}
