package domain

import (
	"errors"
	"fmt"
)

// DiagnosticError represents a standardized error response
type DiagnosticError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// Error implements the error interface
func (e *DiagnosticError) Error() string {
	return e.Message
}

// Error codes for different failure scenarios
const (
	ErrNotFound          = "NOT_FOUND"
	ErrInvalidInput      = "INVALID_INPUT"
	ErrMalformedDocument = "MALFORMED_DOCUMENT"
	ErrStorage           = "STORAGE_ERROR"
	ErrInternal          = "INTERNAL_ERROR"
)

// Kinds of entity a NotFound error can refer to.
const (
	KindTree     = "tree"
	KindFamily   = "family"
	KindRule     = "rule"
	KindFeedback = "feedback"
)

// ValidationError represents input validation errors
type ValidationError struct {
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Value   interface{} `json:"value"`
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

// NewDiagnosticError creates a new DiagnosticError
func NewDiagnosticError(code, message, details string) *DiagnosticError {
	return &DiagnosticError{
		Code:    code,
		Message: message,
		Details: details,
	}
}

// NewNotFoundError reports an unknown tree, family, rule or feedback id.
// The message reads e.g. "tree 'chest-pain' not found".
func NewNotFoundError(kind, id string) *DiagnosticError {
	return &DiagnosticError{
		Code:    ErrNotFound,
		Message: fmt.Sprintf("%s '%s' not found", kind, id),
		Details: kind,
	}
}

// NewInvalidInputError reports a request that cannot be evaluated.
func NewInvalidInputError(message string) *DiagnosticError {
	return NewDiagnosticError(ErrInvalidInput, message, "")
}

// NewMalformedDocumentError reports a document that was skipped while loading.
func NewMalformedDocumentError(path string, cause error) *DiagnosticError {
	return NewDiagnosticError(ErrMalformedDocument, fmt.Sprintf("malformed document %s", path), cause.Error())
}

// NewValidationError creates a new ValidationError
func NewValidationError(field, message string, value interface{}) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
		Value:   value,
	}
}

// IsNotFound reports whether err carries a NOT_FOUND DiagnosticError.
func IsNotFound(err error) bool {
	return hasCode(err, ErrNotFound)
}

// IsInvalidInput reports whether err is an INVALID_INPUT DiagnosticError or a ValidationError.
func IsInvalidInput(err error) bool {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return true
	}
	return hasCode(err, ErrInvalidInput)
}

func hasCode(err error, code string) bool {
	var de *DiagnosticError
	return errors.As(err, &de) && de.Code == code
}
