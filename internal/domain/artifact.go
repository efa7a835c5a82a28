package domain

import "time"

// ArtifactType identifies what kind of rendered document an artifact holds.
type ArtifactType string

const (
	ArtifactTypeDecisionReport  ArtifactType = "decision_report"
	ArtifactTypeDecisionExport  ArtifactType = "decision_export"
	ArtifactTypeDecisionBundle  ArtifactType = "decision_bundle"
	ArtifactTypePackageManifest ArtifactType = "package_manifest"
	ArtifactTypePolicySnapshot  ArtifactType = "policy_snapshot"
	ArtifactTypeUnknown         ArtifactType = "unknown"
)

// Signature algorithms recorded on artifacts.
const (
	SignatureAlgNone       = "none"
	SignatureAlgHMACSHA256 = "hmac-sha256"
)

// AuditArtifact is an index row for a write-once object in storage. The row
// outlives the object: enforcement removes the bytes and sets the soft-delete
// columns, never the row.
type AuditArtifact struct {
	ArtifactID         string
	Tenant             string
	ArtifactType       ArtifactType
	ObjectLocation     string
	ObjectGeneration   *string
	ReportHash         string
	SignatureAlgorithm string
	SignatureKeyID     *string
	ImmutableWrite     bool
	CreatedBy          string
	TraceID            string
	Metadata           map[string]any
	DeletedAt          *time.Time
	DeletedBy          string
	DeletionReason     string
	DeleteJobID        string
	CreatedAt          time.Time
}

// ArtifactFilter narrows artifact index listings.
type ArtifactFilter struct {
	Tenant         string
	ArtifactType   string
	TraceID        string
	IncludeDeleted bool
	Offset         int
	Limit          int
}

// Deleted reports whether enforcement has removed the artifact's bytes.
func (a *AuditArtifact) Deleted() bool {
	return a.DeletedAt != nil
}

// HoldTarget projects the artifact into the view legal holds match against.
// Hold-relevant identifiers live in the metadata bag: decision_id,
// decision_ids, context_docs, case_id.
func (a *AuditArtifact) HoldTarget() HoldTarget {
	return HoldTarget{
		Tenant:         a.Tenant,
		ArtifactID:     a.ArtifactID,
		ObjectLocation: a.ObjectLocation,
		DecisionID:     metadataString(a.Metadata, "decision_id"),
		DecisionIDs:    metadataStrings(a.Metadata, "decision_ids"),
		ContextDocs:    metadataStrings(a.Metadata, "context_docs"),
		CaseID:         metadataString(a.Metadata, "case_id"),
	}
}

// ValidateAuditArtifact checks index-row invariants at write time.
func ValidateAuditArtifact(a *AuditArtifact) error {
	if a == nil {
		return NewDomainError(ErrCodeValidation, "audit artifact cannot be nil")
	}
	if a.ArtifactID == "" || a.Tenant == "" || a.ArtifactType == "" {
		return ErrMissingRequiredField
	}
	if a.ObjectLocation == "" {
		return ErrInvalidObjectLocation
	}
	if a.ReportHash == "" || a.SignatureAlgorithm == "" {
		return ErrMissingRequiredField
	}
	return nil
}

func metadataString(m map[string]any, key string) string {
	if m == nil {
		return ""
	}
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

func metadataStrings(m map[string]any, key string) []string {
	if m == nil {
		return nil
	}
	raw, ok := m[key]
	if !ok {
		return nil
	}
	switch vals := raw.(type) {
	case []string:
		return vals
	case []any:
		out := make([]string, 0, len(vals))
		for _, v := range vals {
			if s, ok := v.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
