package domain

import "time"

// HoldScope is the closed set of legal hold scope types. Matching is a
// compliance control: every variant has one exact match rule and unknown
// variants never match.
type HoldScope string

const (
	HoldScopeTenant   HoldScope = "tenant"
	HoldScopeArtifact HoldScope = "artifact"
	HoldScopeDecision HoldScope = "decision"
	HoldScopeDocument HoldScope = "document"
	HoldScopeCase     HoldScope = "case"
)

// HoldScopeWildcard matches every artifact of the hold's own tenant when used
// as the scope id of a tenant-scoped hold. Wildcards never cross tenants.
const HoldScopeWildcard = "*"

// ValidHoldScope reports whether s is a known scope type.
func ValidHoldScope(s HoldScope) bool {
	switch s {
	case HoldScopeTenant, HoldScopeArtifact, HoldScopeDecision, HoldScopeDocument, HoldScopeCase:
		return true
	}
	return false
}

// LegalHold blocks deletion of in-scope artifacts regardless of retention
// expiry. Holds are never deleted, only released.
type LegalHold struct {
	HoldID       string
	Tenant       string
	ScopeType    HoldScope
	ScopeID      string
	Reason       string
	CaseID       string
	RegulatorRef string
	CreatedBy    string
	CreatedAt    time.Time
	ReleasedAt   *time.Time
}

// Active reports whether the hold still blocks deletion.
func (h *LegalHold) Active() bool {
	return h.ReleasedAt == nil
}

// ValidateLegalHold checks hold invariants at creation time.
func ValidateLegalHold(h *LegalHold) error {
	if h == nil {
		return NewDomainError(ErrCodeValidation, "legal hold cannot be nil")
	}
	if h.HoldID == "" || h.Tenant == "" || h.ScopeID == "" || h.Reason == "" {
		return ErrMissingRequiredField
	}
	if !ValidHoldScope(h.ScopeType) {
		return ErrInvalidHoldScope
	}
	return nil
}

// HoldTarget is the view of an audit artifact a hold is matched against.
// The metadata-derived fields come from the artifact index row.
type HoldTarget struct {
	Tenant         string
	ArtifactID     string
	ObjectLocation string
	DecisionID     string
	DecisionIDs    []string
	ContextDocs    []string
	CaseID         string
}

// Matches reports whether this hold protects the target. A hold matches only
// when it is active and belongs to the same tenant as the artifact; the
// tenant wildcard is confined to the hold's own tenant.
func (h *LegalHold) Matches(t HoldTarget) bool {
	if !h.Active() || h.Tenant != t.Tenant {
		return false
	}
	switch h.ScopeType {
	case HoldScopeTenant:
		return h.ScopeID == t.Tenant || h.ScopeID == HoldScopeWildcard
	case HoldScopeArtifact:
		return h.ScopeID == t.ArtifactID || h.ScopeID == t.ObjectLocation
	case HoldScopeDecision:
		if h.ScopeID == t.DecisionID && t.DecisionID != "" {
			return true
		}
		for _, id := range t.DecisionIDs {
			if h.ScopeID == id {
				return true
			}
		}
		return false
	case HoldScopeDocument:
		for _, id := range t.ContextDocs {
			if h.ScopeID == id {
				return true
			}
		}
		return false
	case HoldScopeCase:
		return h.ScopeID == t.CaseID && t.CaseID != ""
	}
	return false
}

// MatchingHoldIDs returns the ids of every hold in holds that protects the
// target, in input order.
func MatchingHoldIDs(holds []*LegalHold, t HoldTarget) []string {
	var ids []string
	for _, h := range holds {
		if h.Matches(t) {
			ids = append(ids, h.HoldID)
		}
	}
	return ids
}
