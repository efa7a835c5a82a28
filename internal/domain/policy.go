package domain

import "time"

// RetentionPolicy controls how long artifacts of one type are retained for a
// tenant. No policy for a (tenant, artifact_type) pair means artifacts of
// that type are never deleted by enforcement.
type RetentionPolicy struct {
	Tenant            string
	ArtifactType      string
	RetainDays        int
	LegalHoldEnabled  bool
	ImmutableRequired bool
	CreatedBy         string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// ExpiresAt returns the moment an artifact created at createdAt leaves its
// retention window under this policy.
func (p *RetentionPolicy) ExpiresAt(createdAt time.Time) time.Time {
	return createdAt.Add(time.Duration(p.RetainDays) * 24 * time.Hour)
}

// Expired reports whether an artifact created at createdAt is past its
// retention window at the given instant.
func (p *RetentionPolicy) Expired(createdAt, now time.Time) bool {
	return now.After(p.ExpiresAt(createdAt))
}

// ValidateRetentionPolicy checks policy invariants.
func ValidateRetentionPolicy(p *RetentionPolicy) error {
	if p == nil {
		return NewDomainError(ErrCodeValidation, "retention policy cannot be nil")
	}
	if p.Tenant == "" || p.ArtifactType == "" {
		return ErrMissingRequiredField
	}
	if p.RetainDays <= 0 {
		return ErrInvalidRetainDays
	}
	return nil
}
