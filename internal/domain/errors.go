package domain

import (
	"errors"
	"fmt"
)

// Common domain errors that can occur during outlier rejection.
var (
	// ErrInvalidConfiguration indicates that configuration is invalid or incomplete.
	// Every configuration failure surfaced by the driver unwraps to this error.
	ErrInvalidConfiguration = errors.New("invalid configuration")

	// ErrUnknownMethod indicates that a rejection method name is not recognised.
	ErrUnknownMethod = errors.New("unknown rejection method")

	// ErrMissingTarget indicates that targeted rejection was requested without
	// a reference dataset.
	ErrMissingTarget = errors.New("target dataset required for targeted rejection")

	// ErrInvalidZMax indicates that the rejection threshold is not a positive number.
	ErrInvalidZMax = errors.New("zmax must be a positive finite number")

	// ErrNonPositiveVariance indicates that an observation entering estimation
	// has a variance of zero or less.
	ErrNonPositiveVariance = errors.New("variance must be positive")

	// ErrColumnNotFound indicates that a requested column does not exist.
	ErrColumnNotFound = errors.New("column not found")

	// ErrLengthMismatch indicates that a column or mask does not match the table size.
	ErrLengthMismatch = errors.New("length mismatch")

	// ErrIndexOutOfRange indicates that a row index is outside the table.
	ErrIndexOutOfRange = errors.New("index out of range")

	// ErrNilObservations indicates that no observation set was supplied.
	ErrNilObservations = errors.New("observation set is nil")

	// ErrNilGrouper indicates that no grouping function was supplied.
	ErrNilGrouper = errors.New("grouper is nil")
)

// ConfigError describes a rejected configuration value.
// It unwraps to both the specific cause and ErrInvalidConfiguration so callers
// can match on either.
type ConfigError struct {
	// Field names the configuration field that was rejected.
	Field string

	// Value is the offending value as supplied by the caller.
	Value string

	// Suggestion optionally holds the closest valid value.
	Suggestion string

	// Err is the specific cause.
	Err error
}

// Error implements the error interface for ConfigError.
func (e *ConfigError) Error() string {
	msg := fmt.Sprintf("invalid configuration: field=%s, value=%q, err=%v", e.Field, e.Value, e.Err)
	if e.Suggestion != "" {
		msg += fmt.Sprintf(" (did you mean %q?)", e.Suggestion)
	}
	return msg
}

// Unwrap returns the specific cause and ErrInvalidConfiguration.
func (e *ConfigError) Unwrap() []error {
	return []error{e.Err, ErrInvalidConfiguration}
}

// NewConfigError creates a new ConfigError with the given details.
func NewConfigError(field, value string, err error) *ConfigError {
	return &ConfigError{
		Field: field,
		Value: value,
		Err:   err,
	}
}

// RejectionError represents a failure inside a rejection policy.
// It records which method and round were running when the failure occurred.
type RejectionError struct {
	// Method is the rejection method that failed.
	Method Method

	// Round is the 1-based estimation round, or 0 when the failure happened
	// before the first round started.
	Round int

	// Err is the underlying error that caused the failure.
	Err error
}

// Error implements the error interface for RejectionError.
func (e *RejectionError) Error() string {
	return fmt.Sprintf("rejection error: method=%s, round=%d, err=%v", e.Method, e.Round, e.Err)
}

// Unwrap returns the underlying error, supporting Go 1.13+ error unwrapping.
func (e *RejectionError) Unwrap() error { return e.Err }

// NewRejectionError creates a new RejectionError with the given details.
func NewRejectionError(method Method, round int, err error) *RejectionError {
	return &RejectionError{
		Method: method,
		Round:  round,
		Err:    err,
	}
}

// ValidationError represents an error that occurred during validation.
// It can contain multiple validation failures.
type ValidationError struct {
	// Entity is the name of the entity that failed validation.
	Entity string

	// Errors contains the list of validation error messages.
	Errors []string
}

// Error implements the error interface for ValidationError.
func (e *ValidationError) Error() string {
	if len(e.Errors) == 1 {
		return fmt.Sprintf("validation error for %s: %s", e.Entity, e.Errors[0])
	}
	return fmt.Sprintf("validation errors for %s: %v", e.Entity, e.Errors)
}

// AddError adds a new error message to the validation error.
func (e *ValidationError) AddError(msg string) { e.Errors = append(e.Errors, msg) }

// HasErrors returns true if there are any validation errors.
func (e *ValidationError) HasErrors() bool { return len(e.Errors) > 0 }

// Unwrap lets a ValidationError match ErrInvalidConfiguration.
func (e *ValidationError) Unwrap() error { return ErrInvalidConfiguration }

// NewValidationError creates a new ValidationError for the given entity.
func NewValidationError(entity string) *ValidationError {
	return &ValidationError{
		Entity: entity,
		Errors: make([]string, 0),
	}
}
