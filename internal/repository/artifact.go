package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/evidentry/evidentry/internal/domain"
)

type ArtifactRepository struct {
	db dbtx
}

func NewArtifactRepository(pool *pgxpool.Pool) *ArtifactRepository {
	return &ArtifactRepository{db: pool}
}

func NewArtifactRepositoryWithTx(tx pgx.Tx) *ArtifactRepository {
	return &ArtifactRepository{db: tx}
}

// Create inserts an index row. A row already indexing the same (tenant,
// artifact_type, object_location) fails with ErrArtifactAlreadyExists.
func (r *ArtifactRepository) Create(ctx context.Context, a *domain.AuditArtifact) error {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.Exec(ctx,
		`INSERT INTO audit_artifacts
			(artifact_id, tenant, artifact_type, object_location, object_generation, report_hash,
			 signature_algorithm, signature_key_id, immutable_write, created_by, trace_id, metadata, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		a.ArtifactID, a.Tenant, a.ArtifactType, a.ObjectLocation, a.ObjectGeneration, a.ReportHash,
		a.SignatureAlgorithm, a.SignatureKeyID, a.ImmutableWrite, a.CreatedBy, a.TraceID, metadataOrEmpty(a.Metadata), a.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domain.ErrArtifactAlreadyExists
		}
		return err
	}
	return nil
}

func (r *ArtifactRepository) GetByArtifactID(ctx context.Context, tenant, artifactID string) (*domain.AuditArtifact, error) {
	return r.getOne(ctx, artifactSelect+` WHERE tenant = $1 AND artifact_id = $2`, tenant, artifactID)
}

func (r *ArtifactRepository) GetByLocation(ctx context.Context, tenant, location string) (*domain.AuditArtifact, error) {
	return r.getOne(ctx, artifactSelect+` WHERE tenant = $1 AND object_location = $2`, tenant, location)
}

func (r *ArtifactRepository) getOne(ctx context.Context, query string, args ...any) (*domain.AuditArtifact, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	artifacts, err := scanArtifactRows(rows)
	if err != nil {
		return nil, err
	}
	if len(artifacts) == 0 {
		return nil, domain.ErrArtifactNotFound
	}
	return artifacts[0], nil
}

// List returns one page of index rows matching the filter, newest first,
// plus the total match count. Soft-deleted rows are excluded unless
// IncludeDeleted is set.
func (r *ArtifactRepository) List(ctx context.Context, f domain.ArtifactFilter) ([]*domain.AuditArtifact, int64, error) {
	if f.Limit <= 0 {
		f.Limit = 50
	}

	where := ` WHERE tenant = $1`
	args := []any{f.Tenant}
	if f.ArtifactType != "" {
		args = append(args, f.ArtifactType)
		where += ` AND artifact_type = $2`
	}
	if f.TraceID != "" {
		args = append(args, f.TraceID)
		where += ` AND trace_id = $` + itoa(len(args))
	}
	if !f.IncludeDeleted {
		where += ` AND deleted_at IS NULL`
	}

	var total int64
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM audit_artifacts`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, f.Offset, f.Limit)
	rows, err := r.db.Query(ctx,
		artifactSelect+where+
			` ORDER BY created_at DESC, id DESC OFFSET $`+itoa(len(args)-1)+` LIMIT $`+itoa(len(args)),
		args...,
	)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	artifacts, err := scanArtifactRows(rows)
	if err != nil {
		return nil, 0, err
	}
	return artifacts, total, nil
}

// ListActive returns every artifact whose bytes are still in storage,
// oldest first, optionally narrowed to one tenant or artifact type. This is
// the enforcement scan set.
func (r *ArtifactRepository) ListActive(ctx context.Context, tenant, artifactType string) ([]*domain.AuditArtifact, error) {
	query := artifactSelect + ` WHERE deleted_at IS NULL`
	var args []any
	if tenant != "" {
		args = append(args, tenant)
		query += ` AND tenant = $` + itoa(len(args))
	}
	if artifactType != "" {
		args = append(args, artifactType)
		query += ` AND artifact_type = $` + itoa(len(args))
	}
	query += ` ORDER BY created_at, id`

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanArtifactRows(rows)
}

// MarkDeleted sets the soft-delete columns after the object-store bytes are
// gone. Rows already marked are left untouched.
func (r *ArtifactRepository) MarkDeleted(ctx context.Context, tenant, artifactID, deletedBy, reason, jobID string, deletedAt time.Time) error {
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE audit_artifacts
		 SET deleted_at = $1, deleted_by = $2, deletion_reason = $3, delete_job_id = $4
		 WHERE tenant = $5 AND artifact_id = $6 AND deleted_at IS NULL`,
		deletedAt.UTC(), deletedBy, reason, jobID, tenant, artifactID,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrArtifactNotFound
	}
	return nil
}

const artifactSelect = `SELECT artifact_id, tenant, artifact_type, object_location, object_generation, report_hash,
	 signature_algorithm, signature_key_id, immutable_write, created_by, trace_id, metadata,
	 deleted_at, deleted_by, deletion_reason, delete_job_id, created_at
	 FROM audit_artifacts`

func scanArtifactRows(rows pgx.Rows) ([]*domain.AuditArtifact, error) {
	var results []*domain.AuditArtifact
	for rows.Next() {
		var a domain.AuditArtifact
		var deletedBy, deletionReason, deleteJobID *string
		if err := rows.Scan(&a.ArtifactID, &a.Tenant, &a.ArtifactType, &a.ObjectLocation, &a.ObjectGeneration, &a.ReportHash,
			&a.SignatureAlgorithm, &a.SignatureKeyID, &a.ImmutableWrite, &a.CreatedBy, &a.TraceID, &a.Metadata,
			&a.DeletedAt, &deletedBy, &deletionReason, &deleteJobID, &a.CreatedAt); err != nil {
			return nil, err
		}
		a.DeletedBy = stringOrEmpty(deletedBy)
		a.DeletionReason = stringOrEmpty(deletionReason)
		a.DeleteJobID = stringOrEmpty(deleteJobID)
		results = append(results, &a)
	}
	return results, rows.Err()
}
