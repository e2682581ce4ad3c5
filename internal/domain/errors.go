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

// Domain error codes. UNAVAILABLE covers transient dependency failures that
// have a degrade path; CONFIG_ERROR covers startup-fatal misconfiguration.
const (
	ErrCodeValidation    = "VALIDATION_ERROR"
	ErrCodeNotFound      = "NOT_FOUND"
	ErrCodeUnavailable   = "UNAVAILABLE"
	ErrCodeConfig        = "CONFIG_ERROR"
	ErrCodeInternalError = "INTERNAL_ERROR"
)

// Validation errors
var (
	ErrEmptyQuery       = NewDomainError(ErrCodeValidation, "query text is empty")
	ErrNoOptions        = NewDomainError(ErrCodeValidation, "question has no options")
	ErrInvalidChunkType = NewDomainError(ErrCodeValidation, "invalid chunk type")
)

// Not found errors
var (
	ErrChunkNotFound = NewDomainError(ErrCodeNotFound, "chunk not found")
)

// Configuration errors. These abort startup rather than degrade.
var (
	ErrIndexMisaligned   = NewDomainError(ErrCodeConfig, "lexical and vector indices are misaligned")
	ErrDimensionMismatch = NewDomainError(ErrCodeConfig, "embedding dimensionality does not match the index")
)
