package domain

import "time"

// Tenant is an isolation boundary. All data and policy lookups are scoped by
// tenant id.
type Tenant struct {
	ID        string
	Name      string
	CreatedAt time.Time
}

// APIKey authenticates a caller and binds it to a tenant and subject.
type APIKey struct {
	ID        string
	TenantID  string
	Name      string
	Subject   string
	KeyHash   string
	CreatedAt time.Time
	RevokedAt *time.Time
}

// Revoked reports whether the key can still authenticate.
func (k *APIKey) Revoked() bool {
	return k.RevokedAt != nil
}

// Principal is the resolved identity for a request. Tenant comes from the
// verified claim, never from a caller-supplied string; Operator is set when
// the request also carried a valid operator credential.
type Principal struct {
	Tenant   string
	Subject  string
	Operator bool
}

// ValidateTenant checks tenant invariants.
func ValidateTenant(t *Tenant) error {
	if t == nil {
		return NewDomainError(ErrCodeValidation, "tenant cannot be nil")
	}
	if t.ID == "" || t.Name == "" {
		return ErrMissingRequiredField
	}
	return nil
}
