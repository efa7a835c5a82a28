package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/evidentry/evidentry/internal/domain"
)

type HoldRepository struct {
	db dbtx
}

func NewHoldRepository(pool *pgxpool.Pool) *HoldRepository {
	return &HoldRepository{db: pool}
}

func NewHoldRepositoryWithTx(tx pgx.Tx) *HoldRepository {
	return &HoldRepository{db: tx}
}

func (r *HoldRepository) Create(ctx context.Context, h *domain.LegalHold) error {
	if h.CreatedAt.IsZero() {
		h.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.Exec(ctx,
		`INSERT INTO legal_holds (hold_id, tenant, scope_type, scope_id, reason, case_id, regulator_ref, created_by, created_at, released_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		h.HoldID, h.Tenant, h.ScopeType, h.ScopeID, h.Reason, nullableString(h.CaseID), nullableString(h.RegulatorRef), h.CreatedBy, h.CreatedAt, h.ReleasedAt,
	)
	return err
}

func (r *HoldRepository) GetByHoldID(ctx context.Context, tenant, holdID string) (*domain.LegalHold, error) {
	rows, err := r.db.Query(ctx,
		holdSelect+` WHERE tenant = $1 AND hold_id = $2`,
		tenant, holdID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	holds, err := scanHoldRows(rows)
	if err != nil {
		return nil, err
	}
	if len(holds) == 0 {
		return nil, domain.ErrHoldNotFound
	}
	return holds[0], nil
}

// ListByTenant returns the tenant's holds, newest first. With activeOnly set
// only unreleased holds are returned.
func (r *HoldRepository) ListByTenant(ctx context.Context, tenant string, activeOnly bool) ([]*domain.LegalHold, error) {
	query := holdSelect + ` WHERE tenant = $1`
	if activeOnly {
		query += ` AND released_at IS NULL`
	}
	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := r.db.Query(ctx, query, tenant)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanHoldRows(rows)
}

// ListActive returns every unreleased hold across all tenants, for the
// enforcement sweep.
func (r *HoldRepository) ListActive(ctx context.Context) ([]*domain.LegalHold, error) {
	rows, err := r.db.Query(ctx,
		holdSelect+` WHERE released_at IS NULL ORDER BY tenant, created_at`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanHoldRows(rows)
}

// Release marks the hold released. Releasing an already released hold is a
// no-op that reports the existing release time, so the operation is
// idempotent.
func (r *HoldRepository) Release(ctx context.Context, tenant, holdID string, releasedAt time.Time) (*domain.LegalHold, error) {
	_, err := r.db.Exec(ctx,
		`UPDATE legal_holds SET released_at = $1
		 WHERE tenant = $2 AND hold_id = $3 AND released_at IS NULL`,
		releasedAt.UTC(), tenant, holdID,
	)
	if err != nil {
		return nil, err
	}
	return r.GetByHoldID(ctx, tenant, holdID)
}

const holdSelect = `SELECT hold_id, tenant, scope_type, scope_id, reason, case_id, regulator_ref, created_by, created_at, released_at
	 FROM legal_holds`

func scanHoldRows(rows pgx.Rows) ([]*domain.LegalHold, error) {
	var results []*domain.LegalHold
	for rows.Next() {
		var h domain.LegalHold
		var caseID, regulatorRef *string
		if err := rows.Scan(&h.HoldID, &h.Tenant, &h.ScopeType, &h.ScopeID, &h.Reason, &caseID, &regulatorRef, &h.CreatedBy, &h.CreatedAt, &h.ReleasedAt); err != nil {
			return nil, err
		}
		h.CaseID = stringOrEmpty(caseID)
		h.RegulatorRef = stringOrEmpty(regulatorRef)
		results = append(results, &h)
	}
	return results, rows.Err()
}
