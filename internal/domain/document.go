package domain

import "time"

// Document is a catalog entry for an ingested source document. The ingestion
// pipeline owns these rows; this subsystem reads them to validate decision
// context linkage and render report context.
type Document struct {
	DocID       string
	Tenant      string
	SourceURI   string
	MimeType    string
	SizeBytes   int64
	ContentHash string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Chunk is one indexed slice of a document.
type Chunk struct {
	ChunkID    string
	DocID      string
	Tenant     string
	ChunkIndex int
	TokenCount int
	Text       string
	Embedding  []float32
	Metadata   map[string]any
	CreatedAt  time.Time
}

// ChunkPreviewLength bounds preview text embedded in reports. Full chunk text
// never leaves the catalog through a report.
const ChunkPreviewLength = 280

// Preview returns the bounded preview of the chunk text.
func (c *Chunk) Preview() string {
	if len(c.Text) <= ChunkPreviewLength {
		return c.Text
	}
	return c.Text[:ChunkPreviewLength]
}

// ValidateDocument checks required catalog fields.
func ValidateDocument(d *Document) error {
	if d == nil {
		return NewDomainError(ErrCodeValidation, "document cannot be nil")
	}
	if d.DocID == "" || d.Tenant == "" || d.SourceURI == "" {
		return ErrMissingRequiredField
	}
	if d.SizeBytes < 0 {
		return NewDomainError(ErrCodeValidation, "size_bytes cannot be negative")
	}
	return nil
}
