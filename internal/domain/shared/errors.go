// Package shared contains the error kinds and storage boundary used across
// the roster, ledger and report domains. It has no external dependencies.
package shared

import (
	"errors"
	"fmt"
	"strings"
)

// Base domain errors that can be used for error checking with errors.Is().
var (
	// ErrNotFound is returned when a referenced student does not exist.
	ErrNotFound = errors.New("entity not found")

	// ErrValidation is returned when input fails one or more field predicates.
	ErrValidation = errors.New("validation error")

	// ErrPersistence is returned when the key-value store rejects a read or write.
	// The in-memory change that triggered the write is kept.
	ErrPersistence = errors.New("persistence error")

	// ErrInvalidInput is returned for malformed arguments such as a bad month key.
	ErrInvalidInput = errors.New("invalid input")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g., "roster", "ledger"
	Op      string // Operation that failed, e.g., "Add", "ToggleDay"
	Kind    error  // Base error type for errors.Is() checking
	Message string // Human-readable message
	Err     error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s.%s: %s: %v", e.Domain, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s.%s: %s", e.Domain, e.Op, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap().
func (e *DomainError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// Is implements errors.Is() matching.
func (e *DomainError) Is(target error) bool {
	if e.Kind != nil && errors.Is(e.Kind, target) {
		return true
	}
	if e.Err != nil && errors.Is(e.Err, target) {
		return true
	}
	return false
}

// NewDomainError creates a new domain error.
func NewDomainError(domain, op string, kind error, message string) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
	}
}

// WrapError wraps an existing error with domain context.
func WrapError(domain, op string, kind error, message string, err error) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// NotFound builds an ErrNotFound domain error for the given id.
func NotFound(domain, op, id string) *DomainError {
	return NewDomainError(domain, op, ErrNotFound, fmt.Sprintf("student %q not found", id))
}

// Persistence wraps a store failure.
func Persistence(domain, op string, err error) *DomainError {
	return WrapError(domain, op, ErrPersistence, "store operation failed", err)
}

// FieldError is a single failed field predicate.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError collects every failed predicate for one input.
type ValidationError struct {
	Domain string
	Op     string
	Fields []FieldError
}

// NewValidationError creates a validation error for the given fields.
func NewValidationError(domain, op string, fields ...FieldError) *ValidationError {
	return &ValidationError{Domain: domain, Op: op, Fields: fields}
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return fmt.Sprintf("%s.%s: validation failed: %s", e.Domain, e.Op, strings.Join(parts, "; "))
}

// Is reports ValidationError as ErrValidation.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// Field returns the error recorded for name, if any.
func (e *ValidationError) Field(name string) (FieldError, bool) {
	for _, f := range e.Fields {
		if f.Field == name {
			return f, true
		}
	}
	return FieldError{}, false
}

// IsNotFound checks if the error is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsValidation checks if the error is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation) || errors.Is(err, ErrInvalidInput)
}

// IsPersistence checks if the error came from the store.
func IsPersistence(err error) bool {
	return errors.Is(err, ErrPersistence)
}

// AsValidation extracts the field list from a validation error.
func AsValidation(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}
