package application

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/example/event-scheduler/internal/persistence"
	"github.com/example/event-scheduler/internal/scheduler"
)

var (
	// ErrNotFound is returned when a referenced record does not exist.
	ErrNotFound = errors.New("application: not found")
	// ErrInvalidInput is returned when stored data cannot be used by the engine.
	ErrInvalidInput = errors.New("application: invalid input")
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
	parts := make([]string, len(fields))
	for i, field := range fields {
		parts[i] = field + ": " + v.FieldErrors[field]
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// HasErrors reports whether any field level issues were recorded.
func (v *ValidationError) HasErrors() bool {
	return v != nil && len(v.FieldErrors) > 0
}

func (v *ValidationError) add(field, message string) {
	if v.FieldErrors == nil {
		v.FieldErrors = make(map[string]string)
	}
	v.FieldErrors[field] = message
}

// AssignmentError reports every person an assignment request rejected.
// Nothing is written when it is returned.
type AssignmentError struct {
	BookingID  string
	Violations []*scheduler.Violation
}

// Error implements the error interface.
func (e *AssignmentError) Error() string {
	if e == nil {
		return ""
	}
	msgs := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		msgs[i] = v.Error()
	}
	return fmt.Sprintf("assignment to booking %s rejected: %s", e.BookingID, strings.Join(msgs, "; "))
}

// Unwrap exposes the individual violations to errors.Is and errors.As.
func (e *AssignmentError) Unwrap() []error {
	if e == nil {
		return nil
	}
	errs := make([]error, len(e.Violations))
	for i, v := range e.Violations {
		errs[i] = v
	}
	return errs
}

func assignmentError(result scheduler.ValidationResult) error {
	if result.Accepted() {
		return nil
	}
	return &AssignmentError{BookingID: result.BookingID, Violations: result.Violations()}
}

func mapRepoError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, persistence.ErrNotFound):
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	case errors.Is(err, persistence.ErrForeignKeyViolation):
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	case errors.Is(err, persistence.ErrConstraintViolation), errors.Is(err, persistence.ErrDuplicate):
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return err
}
