package report

import (
	"time"

	"github.com/evidentry/evidentry/internal/domain"
)

// DecisionView is the JSON projection of a ledger decision embedded in
// rendered documents.
type DecisionView struct {
	DecisionID    string         `json:"decision_id"`
	Tenant        string         `json:"tenant"`
	Model         string         `json:"model"`
	ModelVersion  string         `json:"model_version,omitempty"`
	Input         string         `json:"input"`
	Output        string         `json:"output"`
	Confidence    *float64       `json:"confidence"`
	TraceID       string         `json:"trace_id"`
	Metadata      map[string]any `json:"metadata"`
	ContextDocs   []string       `json:"context_docs"`
	ContextChunks []string       `json:"context_chunks"`
	CreatedAt     string         `json:"created_at"`
	UpdatedAt     string         `json:"updated_at"`
}

// ContextDocument is the document metadata embedded when context is included.
type ContextDocument struct {
	DocID     string `json:"doc_id"`
	SourceURI string `json:"source_uri"`
	MimeType  string `json:"mime_type,omitempty"`
	SizeBytes int64  `json:"size_bytes"`
}

// ContextChunk is a bounded chunk preview. Full chunk text is never embedded.
type ContextChunk struct {
	ChunkID    string `json:"chunk_id"`
	DocID      string `json:"doc_id"`
	ChunkIndex int    `json:"chunk_index"`
	TokenCount int    `json:"token_count"`
	Preview    string `json:"preview"`
}

// DecisionReport is the payload of a single-decision report artifact.
type DecisionReport struct {
	Decision         DecisionView      `json:"decision"`
	ContextDocuments []ContextDocument `json:"context_documents"`
	ContextChunks    []ContextChunk    `json:"context_chunks"`
}

// DecisionContext groups a decision's rendered context in export documents.
type DecisionContext struct {
	ContextDocuments []ContextDocument `json:"context_documents"`
	ContextChunks    []ContextChunk    `json:"context_chunks"`
}

// ExportDocument is the payload of a filtered decision export artifact.
type ExportDocument struct {
	TraceID         string                     `json:"trace_id"`
	GeneratedAt     string                     `json:"generated_at"`
	Tenant          string                     `json:"tenant"`
	Filters         map[string]any             `json:"filters"`
	Total           int                        `json:"total"`
	Returned        int                        `json:"returned"`
	Decisions       []DecisionView             `json:"decisions"`
	DecisionContext map[string]DecisionContext `json:"decision_context,omitempty"`
}

// SealedDecisionReport is a per-decision report carrying its own hash inside
// a bundle document.
type SealedDecisionReport struct {
	DecisionReport
	ReportHash string `json:"report_hash_sha256"`
}

// BundleDocument is the payload of a multi-decision bundle artifact.
type BundleDocument struct {
	BundleID        string                 `json:"bundle_id"`
	TraceID         string                 `json:"trace_id"`
	GeneratedAt     string                 `json:"generated_at"`
	Tenant          string                 `json:"tenant"`
	ExportedBy      string                 `json:"exported_by"`
	CaseID          string                 `json:"case_id,omitempty"`
	RegulatorRef    string                 `json:"regulator_ref,omitempty"`
	Filters         map[string]any         `json:"filters"`
	Total           int                    `json:"total"`
	Returned        int                    `json:"returned"`
	DecisionReports []SealedDecisionReport `json:"decision_reports"`
	PolicySnapshot  *PolicySnapshot        `json:"policy_snapshot,omitempty"`
}

// PolicySnapshot records the retention policies in force when an artifact
// was produced.
type PolicySnapshot struct {
	SnapshotAt string          `json:"snapshot_at"`
	Tenant     string          `json:"tenant"`
	Policies   []PolicyView    `json:"policies"`
	Signing    SigningSnapshot `json:"signing"`
}

// PolicyView is the JSON projection of one retention policy.
type PolicyView struct {
	Tenant            string `json:"tenant"`
	ArtifactType      string `json:"artifact_type"`
	RetainDays        int    `json:"retain_days"`
	LegalHoldEnabled  bool   `json:"legal_hold_enabled"`
	ImmutableRequired bool   `json:"immutable_required"`
	CreatedBy         string `json:"created_by"`
}

// SigningSnapshot records whether artifact signing was active and under
// which key id.
type SigningSnapshot struct {
	Enabled     bool   `json:"enabled"`
	ActiveKeyID string `json:"active_key_id,omitempty"`
}

// PackageFile is one manifest entry for a file within a package.
type PackageFile struct {
	Kind           string  `json:"kind"`
	DecisionID     string  `json:"decision_id,omitempty"`
	ObjectLocation string  `json:"object_location"`
	ReportHash     string  `json:"report_hash_sha256"`
	SignatureAlg   string  `json:"signature_alg"`
	SignatureKeyID *string `json:"signature_key_id"`
	Signature      *string `json:"signature"`
}

// PackageManifest is the payload of a package's signed manifest artifact.
type PackageManifest struct {
	PackageID    string         `json:"package_id"`
	TraceID      string         `json:"trace_id"`
	GeneratedAt  string         `json:"generated_at"`
	Tenant       string         `json:"tenant"`
	ExportedBy   string         `json:"exported_by"`
	CaseID       string         `json:"case_id,omitempty"`
	RegulatorRef string         `json:"regulator_ref,omitempty"`
	Filters      map[string]any `json:"filters"`
	Total        int            `json:"total"`
	Returned     int            `json:"returned"`
	Files        []PackageFile  `json:"files"`
}

// Timestamp renders a time the way every rendered document does: UTC,
// RFC3339 with nanoseconds dropped at second precision.
func Timestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// NewDecisionView projects a domain decision into its document form.
func NewDecisionView(d *domain.Decision) DecisionView {
	meta := d.Metadata
	if meta == nil {
		meta = map[string]any{}
	}
	docs := d.ContextDocs
	if docs == nil {
		docs = []string{}
	}
	chunks := d.ContextChunks
	if chunks == nil {
		chunks = []string{}
	}
	return DecisionView{
		DecisionID:    d.DecisionID,
		Tenant:        d.Tenant,
		Model:         d.Model,
		ModelVersion:  d.ModelVersion,
		Input:         d.InputText,
		Output:        d.OutputText,
		Confidence:    d.Confidence,
		TraceID:       d.TraceID,
		Metadata:      meta,
		ContextDocs:   docs,
		ContextChunks: chunks,
		CreatedAt:     Timestamp(d.CreatedAt),
		UpdatedAt:     Timestamp(d.UpdatedAt),
	}
}

// NewContextDocuments projects catalog documents for embedding.
func NewContextDocuments(docs []*domain.Document) []ContextDocument {
	out := make([]ContextDocument, 0, len(docs))
	for _, d := range docs {
		out = append(out, ContextDocument{
			DocID:     d.DocID,
			SourceURI: d.SourceURI,
			MimeType:  d.MimeType,
			SizeBytes: d.SizeBytes,
		})
	}
	return out
}

// NewContextChunks projects catalog chunks into bounded previews.
func NewContextChunks(chunks []*domain.Chunk) []ContextChunk {
	out := make([]ContextChunk, 0, len(chunks))
	for _, c := range chunks {
		out = append(out, ContextChunk{
			ChunkID:    c.ChunkID,
			DocID:      c.DocID,
			ChunkIndex: c.ChunkIndex,
			TokenCount: c.TokenCount,
			Preview:    c.Preview(),
		})
	}
	return out
}

// NewPolicyViews projects retention policies for snapshots.
func NewPolicyViews(policies []*domain.RetentionPolicy) []PolicyView {
	out := make([]PolicyView, 0, len(policies))
	for _, p := range policies {
		out = append(out, PolicyView{
			Tenant:            p.Tenant,
			ArtifactType:      p.ArtifactType,
			RetainDays:        p.RetainDays,
			LegalHoldEnabled:  p.LegalHoldEnabled,
			ImmutableRequired: p.ImmutableRequired,
			CreatedBy:         p.CreatedBy,
		})
	}
	return out
}
