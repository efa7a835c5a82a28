package domain

import "time"

// ConfidenceBand is a named confidence range usable as a query filter.
type ConfidenceBand string

const (
	ConfidenceBandLow    ConfidenceBand = "low"
	ConfidenceBandMedium ConfidenceBand = "medium"
	ConfidenceBandHigh   ConfidenceBand = "high"
)

// Band cut points. These are contract values relied on by callers.
const (
	ConfidenceMediumFloor = 0.5
	ConfidenceHighFloor   = 0.8
)

// Range returns the [min, max) bounds of the band. The high band has no
// upper bound and the low band no lower bound.
func (b ConfidenceBand) Range() (min, max *float64, err error) {
	medium := ConfidenceMediumFloor
	high := ConfidenceHighFloor
	switch b {
	case ConfidenceBandLow:
		return nil, &medium, nil
	case ConfidenceBandMedium:
		return &medium, &high, nil
	case ConfidenceBandHigh:
		return &high, nil, nil
	default:
		return nil, nil, ErrInvalidConfidenceBand
	}
}

// SortOrder is the creation-time sort direction for decision queries.
type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// Decision is an AI decision record in the ledger. Decisions are evidentiary:
// they are upserted in place by (Tenant, DecisionID) and never hard-deleted.
type Decision struct {
	RefID         int64
	DecisionID    string
	Tenant        string
	Model         string
	ModelVersion  string
	InputText     string
	OutputText    string
	Confidence    *float64
	TraceID       string
	Metadata      map[string]any
	ContextDocs   []string
	ContextChunks []string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// ValidateDecision checks the fields the database cannot.
func ValidateDecision(d *Decision) error {
	if d == nil {
		return NewDomainError(ErrCodeValidation, "decision cannot be nil")
	}
	if d.DecisionID == "" || d.Tenant == "" || d.Model == "" {
		return ErrMissingRequiredField
	}
	if d.InputText == "" || d.OutputText == "" {
		return ErrMissingRequiredField
	}
	if d.Confidence != nil && (*d.Confidence < 0 || *d.Confidence > 1) {
		return ErrConfidenceOutOfRange
	}
	if len(d.ContextDocs) == 0 {
		return ErrNoContextDocs
	}
	return nil
}

// DecisionFilter is the full filter set for ledger queries. Tenants carries
// one tenant for scoped queries and may carry several in admin mode.
type DecisionFilter struct {
	Tenants          []string
	DecisionIDPrefix string
	DecisionIDs      []string
	Model            string
	ModelVersion     string
	Outputs          []string
	Query            string
	MinConfidence    *float64
	MaxConfidence    *float64
	ConfidenceBand   ConfidenceBand
	CreatedFrom      *time.Time
	CreatedTo        *time.Time
	ContextDocs      []string
	ContextChunks    []string
	TraceID          string
	Order            SortOrder
	Offset           int
	Limit            int
}

// Normalize applies defaults and validates the filter.
func (f *DecisionFilter) Normalize() error {
	if len(f.Tenants) == 0 {
		return NewDomainError(ErrCodeValidation, "query requires at least one tenant")
	}
	if f.Order == "" {
		f.Order = SortDesc
	}
	if f.Order != SortAsc && f.Order != SortDesc {
		return ErrInvalidSortOrder
	}
	if f.Limit <= 0 {
		f.Limit = 50
	}
	if f.Limit > 500 {
		f.Limit = 500
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	if f.ConfidenceBand != "" {
		if _, _, err := f.ConfidenceBand.Range(); err != nil {
			return err
		}
	}
	if f.MinConfidence != nil && (*f.MinConfidence < 0 || *f.MinConfidence > 1) {
		return ErrConfidenceOutOfRange
	}
	if f.MaxConfidence != nil && (*f.MaxConfidence < 0 || *f.MaxConfidence > 1) {
		return ErrConfidenceOutOfRange
	}
	return nil
}
