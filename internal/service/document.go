package service

import (
	"context"
	"strconv"
	"time"

	"github.com/evidentry/evidentry/internal/domain"
	"github.com/evidentry/evidentry/internal/telemetry"
)

// DocumentService registers catalog documents and their chunks so decisions
// can link to them.
type DocumentService struct {
	docRepo  DocumentRepositoryInterface
	uuidGen  UUIDGenerator
	chunkCfg ChunkConfig
}

func NewDocumentService(docRepo DocumentRepositoryInterface) *DocumentService {
	return &DocumentService{
		docRepo:  docRepo,
		uuidGen:  &DefaultUUIDGenerator{},
		chunkCfg: DefaultChunkConfig(),
	}
}

// ChunkInput is one explicit chunk supplied at registration time.
type ChunkInput struct {
	ChunkID    string
	ChunkIndex int
	TokenCount int
	Text       string
	Embedding  []float32
	Metadata   map[string]any
}

// RegisterDocumentInput registers a document. Chunks may be supplied
// explicitly; when only Text is given the document is chunked server-side.
type RegisterDocumentInput struct {
	Tenant      string
	DocID       string
	SourceURI   string
	MimeType    string
	SizeBytes   int64
	ContentHash string
	Text        string
	Chunks      []ChunkInput
}

func (s *DocumentService) Register(ctx context.Context, input RegisterDocumentInput) (_ *domain.Document, _ []domain.Chunk, err error) {
	ctx, span := telemetry.StartSpan(ctx, "DocumentService.Register", telemetry.SpanAttributes{
		Tenant:    input.Tenant,
		Operation: "register_document",
	})
	defer span.Finish(&err)

	if input.DocID == "" {
		input.DocID = "doc-" + s.uuidGen.NewString()
	}

	doc := &domain.Document{
		DocID:       input.DocID,
		Tenant:      input.Tenant,
		SourceURI:   input.SourceURI,
		MimeType:    input.MimeType,
		SizeBytes:   input.SizeBytes,
		ContentHash: input.ContentHash,
	}
	if err := domain.ValidateDocument(doc); err != nil {
		return nil, nil, err
	}

	chunks := make([]domain.Chunk, 0, len(input.Chunks))
	for i, c := range input.Chunks {
		chunkID := c.ChunkID
		if chunkID == "" {
			chunkID = doc.DocID + "-c" + strconv.Itoa(i)
		}
		index := c.ChunkIndex
		if index == 0 && i > 0 {
			index = i
		}
		chunks = append(chunks, domain.Chunk{
			ChunkID:    chunkID,
			DocID:      doc.DocID,
			Tenant:     doc.Tenant,
			ChunkIndex: index,
			TokenCount: c.TokenCount,
			Text:       c.Text,
			Embedding:  c.Embedding,
			Metadata:   c.Metadata,
			CreatedAt:  time.Now().UTC(),
		})
	}
	if len(chunks) == 0 && input.Text != "" {
		for i, text := range chunkText(input.Text, s.chunkCfg) {
			chunks = append(chunks, domain.Chunk{
				ChunkID:    doc.DocID + "-c" + strconv.Itoa(i),
				DocID:      doc.DocID,
				Tenant:     doc.Tenant,
				ChunkIndex: i,
				Text:       text,
				CreatedAt:  time.Now().UTC(),
			})
		}
	}

	if err := s.docRepo.Create(ctx, doc); err != nil {
		return nil, nil, err
	}
	if len(chunks) > 0 {
		if err := s.docRepo.ReplaceChunks(ctx, doc.Tenant, doc.DocID, chunks); err != nil {
			return nil, nil, err
		}
	}
	return doc, chunks, nil
}

func (s *DocumentService) Get(ctx context.Context, tenant, docID string) (*domain.Document, error) {
	return s.docRepo.GetByID(ctx, tenant, docID)
}

func (s *DocumentService) List(ctx context.Context, tenant string, offset, limit int) ([]*domain.Document, int64, error) {
	return s.docRepo.ListByTenant(ctx, tenant, offset, limit)
}
