package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/evidentry/evidentry/internal/domain"
)

type DocumentRepository struct {
	db dbtx
}

func NewDocumentRepository(pool *pgxpool.Pool) *DocumentRepository {
	return &DocumentRepository{db: pool}
}

func NewDocumentRepositoryWithTx(tx pgx.Tx) *DocumentRepository {
	return &DocumentRepository{db: tx}
}

func (r *DocumentRepository) Create(ctx context.Context, d *domain.Document) error {
	now := time.Now().UTC()
	if d.CreatedAt.IsZero() {
		d.CreatedAt = now
	}
	d.UpdatedAt = now
	_, err := r.db.Exec(ctx,
		`INSERT INTO documents (doc_id, tenant, source_uri, mime_type, size_bytes, content_hash, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		d.DocID, d.Tenant, d.SourceURI, nullableString(d.MimeType), d.SizeBytes, nullableString(d.ContentHash), d.CreatedAt, d.UpdatedAt,
	)
	return err
}

func (r *DocumentRepository) GetByID(ctx context.Context, tenant, docID string) (*domain.Document, error) {
	var d domain.Document
	var mimeType, contentHash *string
	var sizeBytes *int64
	err := r.db.QueryRow(ctx,
		`SELECT doc_id, tenant, source_uri, mime_type, size_bytes, content_hash, created_at, updated_at
		 FROM documents WHERE tenant = $1 AND doc_id = $2`,
		tenant, docID,
	).Scan(&d.DocID, &d.Tenant, &d.SourceURI, &mimeType, &sizeBytes, &contentHash, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrDocumentNotFound
		}
		return nil, err
	}
	d.MimeType = stringOrEmpty(mimeType)
	d.ContentHash = stringOrEmpty(contentHash)
	if sizeBytes != nil {
		d.SizeBytes = *sizeBytes
	}
	return &d, nil
}

// GetByIDs loads documents for the tenant in doc-id order. Missing ids are
// simply absent from the result; callers diff against the request.
func (r *DocumentRepository) GetByIDs(ctx context.Context, tenant string, docIDs []string) ([]*domain.Document, error) {
	if len(docIDs) == 0 {
		return []*domain.Document{}, nil
	}
	rows, err := r.db.Query(ctx,
		`SELECT doc_id, tenant, source_uri, mime_type, size_bytes, content_hash, created_at, updated_at
		 FROM documents WHERE tenant = $1 AND doc_id = ANY($2) ORDER BY doc_id`,
		tenant, docIDs,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanDocumentRows(rows)
}

func (r *DocumentRepository) ListByTenant(ctx context.Context, tenant string, offset, limit int) ([]*domain.Document, int64, error) {
	if limit <= 0 {
		limit = 50
	}

	var total int64
	if err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM documents WHERE tenant = $1`, tenant,
	).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.db.Query(ctx,
		`SELECT doc_id, tenant, source_uri, mime_type, size_bytes, content_hash, created_at, updated_at
		 FROM documents WHERE tenant = $1
		 ORDER BY updated_at DESC, doc_id DESC
		 OFFSET $2 LIMIT $3`,
		tenant, offset, limit,
	)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	docs, err := scanDocumentRows(rows)
	if err != nil {
		return nil, 0, err
	}
	return docs, total, nil
}

// ReplaceChunks deletes existing chunks for a document and inserts new ones.
func (r *DocumentRepository) ReplaceChunks(ctx context.Context, tenant, docID string, chunks []domain.Chunk) error {
	if _, err := r.db.Exec(ctx,
		`DELETE FROM chunks WHERE tenant = $1 AND doc_id = $2`, tenant, docID); err != nil {
		return err
	}

	for _, c := range chunks {
		createdAt := c.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now().UTC()
		}
		var embedding any
		if len(c.Embedding) > 0 {
			embedding = pgvector.NewVector(c.Embedding)
		}
		if _, err := r.db.Exec(ctx,
			`INSERT INTO chunks (chunk_id, doc_id, tenant, chunk_index, token_count, chunk_text, embedding, metadata, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			c.ChunkID, docID, tenant, c.ChunkIndex, c.TokenCount, c.Text, embedding, metadataOrEmpty(c.Metadata), createdAt,
		); err != nil {
			return err
		}
	}
	return nil
}

// GetChunksByIDs loads chunks for the tenant in chunk-id order, without
// embeddings. Report rendering never needs the vectors.
func (r *DocumentRepository) GetChunksByIDs(ctx context.Context, tenant string, chunkIDs []string) ([]*domain.Chunk, error) {
	if len(chunkIDs) == 0 {
		return []*domain.Chunk{}, nil
	}
	rows, err := r.db.Query(ctx,
		`SELECT chunk_id, doc_id, tenant, chunk_index, token_count, chunk_text, metadata, created_at
		 FROM chunks WHERE tenant = $1 AND chunk_id = ANY($2) ORDER BY chunk_id`,
		tenant, chunkIDs,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chunks []*domain.Chunk
	for rows.Next() {
		var c domain.Chunk
		if err := rows.Scan(&c.ChunkID, &c.DocID, &c.Tenant, &c.ChunkIndex, &c.TokenCount, &c.Text, &c.Metadata, &c.CreatedAt); err != nil {
			return nil, err
		}
		chunks = append(chunks, &c)
	}
	return chunks, rows.Err()
}

func scanDocumentRows(rows pgx.Rows) ([]*domain.Document, error) {
	var results []*domain.Document
	for rows.Next() {
		var d domain.Document
		var mimeType, contentHash *string
		var sizeBytes *int64
		if err := rows.Scan(&d.DocID, &d.Tenant, &d.SourceURI, &mimeType, &sizeBytes, &contentHash, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, err
		}
		d.MimeType = stringOrEmpty(mimeType)
		d.ContentHash = stringOrEmpty(contentHash)
		if sizeBytes != nil {
			d.SizeBytes = *sizeBytes
		}
		results = append(results, &d)
	}
	return results, rows.Err()
}
