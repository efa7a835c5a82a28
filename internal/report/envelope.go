package report

import (
	"encoding/json"
	"fmt"

	"github.com/evidentry/evidentry/internal/domain"
)

// Envelope field names appended to every stored artifact document. The hash
// and signature cover the document with these fields removed.
const (
	FieldReportHash     = "report_hash_sha256"
	FieldSignatureAlg   = "signature_alg"
	FieldSignatureKeyID = "signature_key_id"
	FieldSignature      = "signature"
)

// Envelope is the integrity header attached to a rendered document.
type Envelope struct {
	ReportHash     string
	SignatureAlg   string
	SignatureKeyID *string
	Signature      *string
}

// Seal normalizes payload to its canonical map form and attaches the
// envelope fields, yielding the exact document written to object storage.
func Seal(payload any, env Envelope) (map[string]any, error) {
	norm, err := normalize(payload)
	if err != nil {
		return nil, err
	}
	doc, ok := norm.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("seal: payload must serialize to a JSON object, got %T", norm)
	}
	doc[FieldReportHash] = env.ReportHash
	doc[FieldSignatureAlg] = env.SignatureAlg
	if env.SignatureKeyID != nil {
		doc[FieldSignatureKeyID] = *env.SignatureKeyID
	} else {
		doc[FieldSignatureKeyID] = nil
	}
	if env.Signature != nil {
		doc[FieldSignature] = *env.Signature
	} else {
		doc[FieldSignature] = nil
	}
	return doc, nil
}

// Open parses a stored artifact document and splits it into the unsigned
// payload and the envelope that was attached at write time.
func Open(raw []byte) (map[string]any, Envelope, error) {
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, Envelope{}, domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "artifact is not valid JSON", err)
	}
	env := Envelope{
		ReportHash:   stringField(doc, FieldReportHash),
		SignatureAlg: stringField(doc, FieldSignatureAlg),
	}
	if env.SignatureAlg == "" {
		env.SignatureAlg = domain.SignatureAlgNone
	}
	if v := stringField(doc, FieldSignatureKeyID); v != "" {
		env.SignatureKeyID = &v
	}
	if v := stringField(doc, FieldSignature); v != "" {
		env.Signature = &v
	}
	payload := make(map[string]any, len(doc))
	for k, v := range doc {
		switch k {
		case FieldReportHash, FieldSignatureAlg, FieldSignatureKeyID, FieldSignature:
			continue
		}
		payload[k] = v
	}
	return payload, env, nil
}

// InferArtifactType guesses what kind of document an unsigned payload is,
// from its shape. Used during verification when the index row is unavailable.
func InferArtifactType(payload map[string]any) domain.ArtifactType {
	has := func(key string) bool {
		_, ok := payload[key]
		return ok
	}
	switch {
	case has("package_id") && has("files"):
		return domain.ArtifactTypePackageManifest
	case has("bundle_id") && has("decision_reports"):
		return domain.ArtifactTypeDecisionBundle
	case has("decisions") && has("filters"):
		return domain.ArtifactTypeDecisionExport
	case has("decision") && has("context_documents"):
		return domain.ArtifactTypeDecisionReport
	case has("policies") && has("snapshot_at"):
		return domain.ArtifactTypePolicySnapshot
	}
	return domain.ArtifactTypeUnknown
}

func stringField(m map[string]any, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}
