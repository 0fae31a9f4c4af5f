package pocket

import (
	"errors"
	"fmt"
)

// Standard sentinel errors for common conditions.
var (
	// ErrNotFound is matched by every lookup failure: an entity name the
	// catalog does not hold, or a key with no stored row.
	ErrNotFound = errors.New("pocket: not found")

	// ErrNoRows is returned when no stored row has the requested key. It
	// matches ErrNotFound.
	ErrNoRows = fmt.Errorf("%w: no row with that key", ErrNotFound)

	// ErrMissingKey is wrapped by validation errors raised when a statement
	// needs a primary-key value that the input does not carry.
	ErrMissingKey = errors.New("missing key")

	// ErrRequired is wrapped by validation errors raised when a non-nullable
	// field is absent or null.
	ErrRequired = errors.New("required field is missing")

	// ErrEmptyUpdate is wrapped by validation errors raised when an update
	// carries no assignable field.
	ErrEmptyUpdate = errors.New("no fields provided to update")
)

// NotFoundError represents a lookup of an entity name the catalog does not hold.
type NotFoundError struct {
	entity string
}

// Error returns the error string.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("pocket: unknown entity %q", e.entity)
}

// Is reports whether the target error matches NotFoundError.
// This allows errors.Is(notFoundErr, ErrNotFound) to return true.
func (e *NotFoundError) Is(err error) bool {
	return err == ErrNotFound
}

// Entity returns the entity name that was looked up.
func (e *NotFoundError) Entity() string {
	return e.entity
}

// NewNotFoundError returns a new NotFoundError for the given entity name.
func NewNotFoundError(entity string) *NotFoundError {
	return &NotFoundError{entity: entity}
}

// IsNotFound returns true if the error is a NotFoundError.
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	var e *NotFoundError
	return errors.As(err, &e) || errors.Is(err, ErrNotFound)
}

// ValidationError represents input that cannot be turned into a statement.
// It is always raised before any SQL reaches the backend.
type ValidationError struct {
	Entity string // Entity being built
	Field  string // Offending field, empty when the error concerns the whole record
	Err    error  // Underlying validation error
}

// Error returns the error string.
func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("pocket: invalid %s.%s: %s", e.Entity, e.Field, e.Err)
	}
	return fmt.Sprintf("pocket: invalid %s: %s", e.Entity, e.Err)
}

// Unwrap returns the underlying error.
func (e *ValidationError) Unwrap() error {
	return e.Err
}

// NewValidationError returns a new ValidationError for the given entity field.
func NewValidationError(entity, field string, err error) *ValidationError {
	return &ValidationError{Entity: entity, Field: field, Err: err}
}

// IsValidationError returns true if the error is a ValidationError.
func IsValidationError(err error) bool {
	if err == nil {
		return false
	}
	var e *ValidationError
	return errors.As(err, &e)
}

// ConfigurationError represents an entity descriptor that violates the
// metadata invariants, e.g. one that declares no primary key.
type ConfigurationError struct {
	Entity string
	Msg    string
}

// Error returns the error string.
func (e *ConfigurationError) Error() string {
	if e.Entity == "" {
		return "pocket: bad configuration: " + e.Msg
	}
	return fmt.Sprintf("pocket: bad configuration for %s: %s", e.Entity, e.Msg)
}

// NewConfigurationError returns a new ConfigurationError.
func NewConfigurationError(entity, msg string) *ConfigurationError {
	return &ConfigurationError{Entity: entity, Msg: msg}
}

// IsConfigurationError returns true if the error is a ConfigurationError.
func IsConfigurationError(err error) bool {
	if err == nil {
		return false
	}
	var e *ConfigurationError
	return errors.As(err, &e)
}

// ExecutionError wraps a failure reported by the storage backend while a
// statement was prepared, executed, committed or rolled back.
type ExecutionError struct {
	Op    string // "prepare", "exec", "query", "begin", "commit"
	Index int    // Position of the statement within its batch, -1 when not applicable
	Query string // Statement text, empty for begin/commit
	Err   error  // Underlying driver error
}

// Error returns the error string.
func (e *ExecutionError) Error() string {
	if e.Index >= 0 {
		return fmt.Sprintf("pocket: %s statement %d: %v", e.Op, e.Index, e.Err)
	}
	return fmt.Sprintf("pocket: %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *ExecutionError) Unwrap() error {
	return e.Err
}

// NewExecutionError returns a new ExecutionError.
func NewExecutionError(op string, index int, query string, err error) *ExecutionError {
	return &ExecutionError{Op: op, Index: index, Query: query, Err: err}
}

// IsExecutionError returns true if the error is an ExecutionError.
func IsExecutionError(err error) bool {
	if err == nil {
		return false
	}
	var e *ExecutionError
	return errors.As(err, &e)
}

// ConstraintError represents a database constraint violation error.
type ConstraintError struct {
	msg  string
	wrap error
}

// Error returns the error string.
func (e ConstraintError) Error() string {
	return fmt.Sprintf("pocket: constraint failed: %s", e.msg)
}

// Unwrap returns the underlying error.
func (e ConstraintError) Unwrap() error {
	return e.wrap
}

// NewConstraintError returns a new ConstraintError with the given message.
func NewConstraintError(msg string, wrap error) error {
	return ConstraintError{msg: msg, wrap: wrap}
}

// IsConstraintError returns true if the error is a ConstraintError.
func IsConstraintError(err error) bool {
	if err == nil {
		return false
	}
	var e ConstraintError
	return errors.As(err, &e)
}

// RollbackError wraps an error that occurred during a transaction rollback.
type RollbackError struct {
	Err error // Error returned by the rollback itself
}

// Error returns the error string.
func (e *RollbackError) Error() string {
	return fmt.Sprintf("pocket: rollback failed: %v", e.Err)
}

// Unwrap returns the underlying error.
func (e *RollbackError) Unwrap() error {
	return e.Err
}
