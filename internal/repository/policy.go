package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/evidentry/evidentry/internal/domain"
)

type PolicyRepository struct {
	db dbtx
}

func NewPolicyRepository(pool *pgxpool.Pool) *PolicyRepository {
	return &PolicyRepository{db: pool}
}

func NewPolicyRepositoryWithTx(tx pgx.Tx) *PolicyRepository {
	return &PolicyRepository{db: tx}
}

// Upsert creates or replaces the policy for (tenant, artifact_type).
// Returns true when a new row was created.
func (r *PolicyRepository) Upsert(ctx context.Context, p *domain.RetentionPolicy) (bool, error) {
	now := time.Now().UTC()
	var inserted bool
	err := r.db.QueryRow(ctx,
		`INSERT INTO retention_policies
			(tenant, artifact_type, retain_days, legal_hold_enabled, immutable_required, created_by, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
		 ON CONFLICT (tenant, artifact_type) DO UPDATE SET
			retain_days = EXCLUDED.retain_days,
			legal_hold_enabled = EXCLUDED.legal_hold_enabled,
			immutable_required = EXCLUDED.immutable_required,
			created_by = EXCLUDED.created_by,
			updated_at = EXCLUDED.updated_at
		 RETURNING created_at, updated_at, (xmax = 0)`,
		p.Tenant, p.ArtifactType, p.RetainDays, p.LegalHoldEnabled, p.ImmutableRequired, p.CreatedBy, now,
	).Scan(&p.CreatedAt, &p.UpdatedAt, &inserted)
	if err != nil {
		return false, err
	}
	return inserted, nil
}

func (r *PolicyRepository) Get(ctx context.Context, tenant, artifactType string) (*domain.RetentionPolicy, error) {
	var p domain.RetentionPolicy
	err := r.db.QueryRow(ctx,
		`SELECT tenant, artifact_type, retain_days, legal_hold_enabled, immutable_required, created_by, created_at, updated_at
		 FROM retention_policies WHERE tenant = $1 AND artifact_type = $2`,
		tenant, artifactType,
	).Scan(&p.Tenant, &p.ArtifactType, &p.RetainDays, &p.LegalHoldEnabled, &p.ImmutableRequired, &p.CreatedBy, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrPolicyNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (r *PolicyRepository) ListByTenant(ctx context.Context, tenant string) ([]*domain.RetentionPolicy, error) {
	rows, err := r.db.Query(ctx,
		`SELECT tenant, artifact_type, retain_days, legal_hold_enabled, immutable_required, created_by, created_at, updated_at
		 FROM retention_policies WHERE tenant = $1 ORDER BY artifact_type`,
		tenant,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var policies []*domain.RetentionPolicy
	for rows.Next() {
		var p domain.RetentionPolicy
		if err := rows.Scan(&p.Tenant, &p.ArtifactType, &p.RetainDays, &p.LegalHoldEnabled, &p.ImmutableRequired, &p.CreatedBy, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		policies = append(policies, &p)
	}
	return policies, rows.Err()
}

func (r *PolicyRepository) Delete(ctx context.Context, tenant, artifactType string) error {
	cmdTag, err := r.db.Exec(ctx,
		`DELETE FROM retention_policies WHERE tenant = $1 AND artifact_type = $2`,
		tenant, artifactType,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrPolicyNotFound
	}
	return nil
}
