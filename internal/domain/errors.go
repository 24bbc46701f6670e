package domain

import (
	"errors"
	"fmt"
)

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

// Is matches another DomainError with the same code and message, so sentinel
// errors keep working after being wrapped with a cause.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code && e.Message == t.Message
}

// NewDomainError creates a new DomainError
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
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
	ErrCodeValidation    = "VALIDATION_ERROR"
	ErrCodeCollaborator  = "COLLABORATOR_FAILURE"
	ErrCodeInternalError = "INTERNAL_ERROR"
)

// Collaborator names used in COLLABORATOR_FAILURE messages and metrics labels.
const (
	CollaboratorEmbedding  = "embedding"
	CollaboratorGeneration = "generation"
	CollaboratorStorage    = "storage"
)

// Validation errors
var (
	ErrEmptyMessage    = NewDomainError(ErrCodeValidation, "message is required")
	ErrMissingTenantID = NewDomainError(ErrCodeValidation, "tenant_id is required")
	ErrNoDocuments     = NewDomainError(ErrCodeValidation, "at least one document is required")
	ErrEmptyContent    = NewDomainError(ErrCodeValidation, "document content is required")
)

// NewCollaboratorError wraps a failure of an external collaborator (embedding
// provider, generation model, storage) so callers can tell it apart from bad input.
func NewCollaboratorError(collaborator string, err error) *DomainError {
	return NewDomainErrorWithCause(ErrCodeCollaborator, collaborator+" failed", err)
}

// IsValidation reports whether err is a validation DomainError.
func IsValidation(err error) bool {
	var de *DomainError
	return errors.As(err, &de) && de.Code == ErrCodeValidation
}

// IsCollaboratorFailure reports whether err is a COLLABORATOR_FAILURE DomainError.
func IsCollaboratorFailure(err error) bool {
	var de *DomainError
	return errors.As(err, &de) && de.Code == ErrCodeCollaborator
}
