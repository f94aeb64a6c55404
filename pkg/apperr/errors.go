// Package apperr holds the error taxonomy shared by the order store, the catalog
// and the submission client. Callers compare with errors.Is against the sentinels
// and use errors.As to get at the typed details.
package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrValidation = errors.New("validation failed")
	ErrNotFound   = errors.New("not found")
	ErrConstraint = errors.New("constraint violation")
	ErrTransient  = errors.New("transient infrastructure failure")
)

// ValidationError reports malformed input. Never retried.
type ValidationError struct {
	Field   string
	Message string
}

func NewValidation(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// ConstraintError reports a violated storage constraint such as a duplicate
// product name.
type ConstraintError struct {
	Constraint string
	Message    string
}

func (e *ConstraintError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("constraint %s violated", e.Constraint)
}

func (e *ConstraintError) Unwrap() error { return ErrConstraint }

// TransientInfrastructureError wraps failures that may succeed on retry: lost
// connections, timeouts, 5xx responses.
type TransientInfrastructureError struct {
	Op  string
	Err error
}

func Transient(op string, err error) *TransientInfrastructureError {
	return &TransientInfrastructureError{Op: op, Err: err}
}

func (e *TransientInfrastructureError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Op, ErrTransient)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransientInfrastructureError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrTransient}
	}
	return []error{ErrTransient, e.Err}
}

func IsValidation(err error) bool { return errors.Is(err, ErrValidation) }
func IsNotFound(err error) bool   { return errors.Is(err, ErrNotFound) }
func IsConstraint(err error) bool { return errors.Is(err, ErrConstraint) }
func IsTransient(err error) bool  { return errors.Is(err, ErrTransient) }
