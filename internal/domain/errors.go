package domain

import "fmt"

// DomainError represents a domain-specific error
type DomainError struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError creates a new DomainError
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     nil,
	}
}

// NewDomainErrorWithCause creates a new DomainError with an underlying cause
func NewDomainErrorWithCause(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Common domain error codes
const (
	ErrCodeValidation      = "VALIDATION_ERROR"
	ErrCodeContextNotFound = "CONTEXT_NOT_FOUND"
	ErrCodeContextMismatch = "CONTEXT_MISMATCH"
	ErrCodeNotFound        = "NOT_FOUND"
	ErrCodeAlreadyExists   = "ALREADY_EXISTS"
	ErrCodeConflict        = "CONFLICT"
	ErrCodeUnauthorized    = "UNAUTHORIZED"
	ErrCodeForbidden       = "FORBIDDEN"
	ErrCodeInternalError   = "INTERNAL_ERROR"
)

// Validation errors
var (
	ErrMissingRequiredField   = NewDomainError(ErrCodeValidation, "missing required field")
	ErrConfidenceOutOfRange   = NewDomainError(ErrCodeValidation, "confidence must be between 0 and 1")
	ErrInvalidHoldScope       = NewDomainError(ErrCodeValidation, "invalid legal hold scope type")
	ErrInvalidConfidenceBand  = NewDomainError(ErrCodeValidation, "invalid confidence band")
	ErrInvalidRetainDays      = NewDomainError(ErrCodeValidation, "retain_days must be greater than zero")
	ErrNoContextDocs          = NewDomainError(ErrCodeValidation, "decision requires at least one context document")
	ErrInvalidObjectLocation  = NewDomainError(ErrCodeValidation, "invalid object location")
	ErrInvalidSortOrder       = NewDomainError(ErrCodeValidation, "sort order must be asc or desc")
	ErrInvalidArtifactPayload = NewDomainError(ErrCodeValidation, "artifact must be a JSON object")
)

// Context linkage errors
var (
	ErrContextDocNotFound   = NewDomainError(ErrCodeContextNotFound, "context document not found for tenant")
	ErrContextChunkNotFound = NewDomainError(ErrCodeContextNotFound, "context chunk not found for tenant")
	ErrContextChunkMismatch = NewDomainError(ErrCodeContextMismatch, "context chunk does not belong to a linked context document")
)

// Not found errors
var (
	ErrDecisionNotFound = NewDomainError(ErrCodeNotFound, "decision not found")
	ErrPolicyNotFound   = NewDomainError(ErrCodeNotFound, "retention policy not found")
	ErrHoldNotFound     = NewDomainError(ErrCodeNotFound, "legal hold not found")
	ErrArtifactNotFound = NewDomainError(ErrCodeNotFound, "audit artifact not found")
	ErrDocumentNotFound = NewDomainError(ErrCodeNotFound, "document not found")
	ErrTenantNotFound   = NewDomainError(ErrCodeNotFound, "tenant not found")
	ErrAPIKeyNotFound   = NewDomainError(ErrCodeNotFound, "api key not found")
	ErrObjectNotFound   = NewDomainError(ErrCodeNotFound, "object not found in storage")
)

// Already exists / conflict errors
var (
	ErrArtifactAlreadyExists = NewDomainError(ErrCodeAlreadyExists, "artifact already exists at object location")
	ErrTenantAlreadyExists   = NewDomainError(ErrCodeAlreadyExists, "tenant already exists")
	ErrGenerationConflict    = NewDomainError(ErrCodeConflict, "object generation does not match index record")
)

// Authorization errors
var (
	ErrAPIKeyRevoked     = NewDomainError(ErrCodeUnauthorized, "api key has been revoked")
	ErrInvalidAPIKey     = NewDomainError(ErrCodeUnauthorized, "invalid api key")
	ErrOperatorKeyNeeded = NewDomainError(ErrCodeForbidden, "operator credential required")
)

// Signing errors
var (
	ErrSigningKeyNotFound   = NewDomainError(ErrCodeNotFound, "signing key id not resolvable")
	ErrSigningNotConfigured = NewDomainError(ErrCodeInternalError, "artifact signing is not configured")
)
