// Package apperrors holds the error taxonomy shared by every service:
// validation failures, missing records, authorization failures, conflicts
// and failures of the backing platform (database, cache, broker).
package apperrors

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrUnauthenticated = errors.New("authentication required")
	ErrForbidden       = errors.New("forbidden")
)

// ValidationError reports a request that was rejected before any write
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Invalid is shorthand for building a ValidationError
func Invalid(field, message string) error {
	return ValidationError{Field: field, Message: message}
}

// ConflictError reports a write that is incompatible with the current state
type ConflictError struct {
	Message string
}

func (e ConflictError) Error() string {
	return e.Message
}

// PlatformError wraps a failure of the database, cache or broker
type PlatformError struct {
	Op  string
	Err error
}

func (e *PlatformError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PlatformError) Unwrap() error {
	return e.Err
}

// Platform wraps err as a PlatformError. Errors that already belong to the
// taxonomy are returned unchanged.
func Platform(op string, err error) error {
	if err == nil {
		return nil
	}
	if IsValidation(err) || IsConflict(err) || errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrForbidden) || errors.Is(err, ErrUnauthenticated) {
		return err
	}
	var pe *PlatformError
	if errors.As(err, &pe) {
		return err
	}
	return &PlatformError{Op: op, Err: err}
}

func IsValidation(err error) bool {
	var ve ValidationError
	return errors.As(err, &ve)
}

func IsConflict(err error) bool {
	var ce ConflictError
	return errors.As(err, &ce)
}

func IsPlatform(err error) bool {
	var pe *PlatformError
	return errors.As(err, &pe)
}
