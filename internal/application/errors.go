package application

import (
	"errors"
	"sort"
	"strings"

	"github.com/example/milestone-calendar/internal/recurrence"
)

var (
	// ErrNotFound is returned when the requested event does not exist or is not addressable.
	ErrNotFound = errors.New("application: event not found")
	// ErrCalculationLimit accompanies partial occurrence results cut short by the iteration ceiling.
	ErrCalculationLimit = recurrence.ErrCalculationLimit
)

// ValidationError captures field level validation issues that callers can surface to users.
type ValidationError struct {
	FieldErrors map[string]string
}

// Error implements the error interface.
func (v *ValidationError) Error() string {
	if v == nil {
		return ""
	}
	if len(v.FieldErrors) == 0 {
		return "validation failed"
	}
	fields := make([]string, 0, len(v.FieldErrors))
	for field := range v.FieldErrors {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	return "validation failed: " + strings.Join(fields, ", ")
}

// HasErrors reports whether any field level issues were recorded.
func (v *ValidationError) HasErrors() bool {
	return v != nil && len(v.FieldErrors) > 0
}

// add records a field level validation error. The first message per field wins.
func (v *ValidationError) add(field, message string) {
	if v.FieldErrors == nil {
		v.FieldErrors = make(map[string]string)
	}
	if _, exists := v.FieldErrors[field]; exists {
		return
	}
	v.FieldErrors[field] = message
}

// merge copies entries from another validation error into the receiver.
func (v *ValidationError) merge(other *ValidationError) {
	if other == nil || len(other.FieldErrors) == 0 {
		return
	}
	for field, msg := range other.FieldErrors {
		v.add(field, msg)
	}
}

// StorageError wraps a persistence failure. Its message never exposes driver
// detail; callers may retry the operation.
type StorageError struct {
	Op  string
	Err error
}

// Error implements the error interface.
func (e *StorageError) Error() string {
	if e == nil {
		return ""
	}
	if e.Op == "" {
		return "storage unavailable, please retry"
	}
	return "storage unavailable during " + e.Op + ", please retry"
}

// Unwrap exposes the underlying persistence error.
func (e *StorageError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Retryable reports that the failed operation can be attempted again.
func (e *StorageError) Retryable() bool {
	return e != nil
}
