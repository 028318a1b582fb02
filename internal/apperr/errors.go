// Package apperr defines the error taxonomy shared by the store, the
// transaction manager, the cache and the services. Every typed error
// unwraps to one of the sentinel values below so that callers can branch
// with errors.Is regardless of how deeply the error was wrapped.
package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrValidation             = errors.New("validation failed")
	ErrNotFound               = errors.New("not found")
	ErrConcurrentModification = errors.New("concurrent modification detected")
	ErrInvalidStateTransition = errors.New("invalid state transition")
	ErrDuplicateResource      = errors.New("duplicate resource")
	ErrDatabaseTransaction    = errors.New("database transaction failed")
	ErrCache                  = errors.New("cache failure")

	// ErrForbidden is returned when the actor does not own the resource it
	// is trying to change.
	ErrForbidden = errors.New("forbidden")

	ErrInvalidCredentials = errors.New("invalid credentials")
)

// ValidationError reports bad input for a single field. It is raised before
// any transaction opens and is never retried.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for field '%s': %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// Validation is shorthand for &ValidationError{...}.
func Validation(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// NotFoundError reports a missing entity.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s with identifier '%s' not found", e.Resource, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// NotFound is shorthand for &NotFoundError{...}.
func NotFound(resource string, id any) error {
	return &NotFoundError{Resource: resource, ID: fmt.Sprint(id)}
}

// ConcurrentModificationError reports a stale version. The caller should
// re-read and retry the whole operation, not just the write.
type ConcurrentModificationError struct {
	Resource string
	ID       string
	Expected int64
	Actual   int64
}

func (e *ConcurrentModificationError) Error() string {
	return fmt.Sprintf("concurrent modification of %s %s: expected version %d but found %d",
		e.Resource, e.ID, e.Expected, e.Actual)
}

func (e *ConcurrentModificationError) Unwrap() error { return ErrConcurrentModification }

// InvalidStateTransitionError names the rejected source and target states.
type InvalidStateTransitionError struct {
	Resource string
	From     string
	To       string
}

func (e *InvalidStateTransitionError) Error() string {
	return fmt.Sprintf("%s cannot transition from %s to %s", e.Resource, e.From, e.To)
}

func (e *InvalidStateTransitionError) Unwrap() error { return ErrInvalidStateTransition }

// DuplicateResourceError reports a uniqueness violation at the store boundary.
type DuplicateResourceError struct {
	Resource   string
	Identifier string
}

func (e *DuplicateResourceError) Error() string {
	return fmt.Sprintf("%s with identifier '%s' already exists", e.Resource, e.Identifier)
}

func (e *DuplicateResourceError) Unwrap() error { return ErrDuplicateResource }

// DatabaseTransactionError wraps any failure observed inside a transaction
// scope, after rollback and after retries are exhausted. The cause stays
// reachable through errors.Is / errors.As.
type DatabaseTransactionError struct {
	Op       string
	Attempts int
	Err      error
}

func (e *DatabaseTransactionError) Error() string {
	if e.Attempts > 1 {
		return fmt.Sprintf("failed to execute %s after %d attempts: %v", e.Op, e.Attempts, e.Err)
	}
	return fmt.Sprintf("failed to execute %s: %v", e.Op, e.Err)
}

func (e *DatabaseTransactionError) Unwrap() []error {
	return []error{ErrDatabaseTransaction, e.Err}
}

// CacheError wraps cache-internal failures. It must never replace a
// successful business result; services log it and move on.
type CacheError struct {
	Op  string
	Key string
	Err error
}

func (e *CacheError) Error() string {
	return fmt.Sprintf("cache %s failed for key %q: %v", e.Op, e.Key, e.Err)
}

func (e *CacheError) Unwrap() []error {
	return []error{ErrCache, e.Err}
}

// IsRetryable reports whether re-running the whole unit of work might
// succeed. Client errors and state machine violations are final.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	switch {
	case errors.Is(err, ErrValidation),
		errors.Is(err, ErrNotFound),
		errors.Is(err, ErrForbidden),
		errors.Is(err, ErrInvalidCredentials),
		errors.Is(err, ErrInvalidStateTransition),
		errors.Is(err, ErrDuplicateResource):
		return false
	}
	return true
}

// Code returns the stable machine-readable code of err.
func Code(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation):
		return "VALIDATION_ERROR"
	case errors.Is(err, ErrNotFound):
		return "NOT_FOUND"
	case errors.Is(err, ErrForbidden):
		return "FORBIDDEN"
	case errors.Is(err, ErrInvalidCredentials):
		return "INVALID_CREDENTIALS"
	case errors.Is(err, ErrConcurrentModification):
		return "CONCURRENT_MODIFICATION"
	case errors.Is(err, ErrInvalidStateTransition):
		return "INVALID_STATE_TRANSITION"
	case errors.Is(err, ErrDuplicateResource):
		return "DUPLICATE_RESOURCE"
	case errors.Is(err, ErrDatabaseTransaction):
		return "DATABASE_TRANSACTION_ERROR"
	case errors.Is(err, ErrCache):
		return "CACHE_ERROR"
	}
	return "INTERNAL_ERROR"
}
