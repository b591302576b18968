package fhir

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrNotFound is returned by repositories when no row matches.
var ErrNotFound = errors.New("resource not found")

// FieldIssue describes a single rejected input value.
type FieldIssue struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError is returned before any write when one or more inputs are
// rejected. It lists every offending field, not only the first.
type ValidationError struct {
	Issues []FieldIssue
}

func (e *ValidationError) Error() string {
	if len(e.Issues) == 0 {
		return "validation failed"
	}
	parts := make([]string, len(e.Issues))
	for i, fi := range e.Issues {
		if fi.Field == "" {
			parts[i] = fi.Message
			continue
		}
		parts[i] = fi.Field + ": " + fi.Message
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Add appends an issue.
func (e *ValidationError) Add(field, format string, args ...interface{}) {
	e.Issues = append(e.Issues, FieldIssue{Field: field, Message: fmt.Sprintf(format, args...)})
}

// ErrOrNil returns e when it carries issues and nil otherwise.
func (e *ValidationError) ErrOrNil() error {
	if e == nil || len(e.Issues) == 0 {
		return nil
	}
	return e
}

// NewValidationError builds a ValidationError with a single issue.
func NewValidationError(field, format string, args ...interface{}) *ValidationError {
	ve := &ValidationError{}
	ve.Add(field, format, args...)
	return ve
}

// StoreError wraps a failure from the record store. The wrapped error is
// passed through unchanged.
type StoreError struct {
	Op       string
	Resource string
	Err      error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Resource, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// WrapStore returns nil for a nil err and a *StoreError otherwise. Errors
// that already carry a StoreError are not wrapped twice.
func WrapStore(op, resource string, err error) error {
	if err == nil {
		return nil
	}
	var se *StoreError
	if errors.As(err, &se) {
		return err
	}
	return &StoreError{Op: op, Resource: resource, Err: err}
}

// OutcomeForError maps an error to an HTTP status and OperationOutcome body.
func OutcomeForError(err error) (int, *OperationOutcome) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return http.StatusUnprocessableEntity, ValidationOutcome(ve.Issues)
	}
	if errors.Is(err, ErrNotFound) {
		return http.StatusNotFound, NewOperationOutcome(IssueSeverityError, IssueTypeNotFound, err.Error())
	}
	var se *StoreError
	if errors.As(err, &se) {
		return http.StatusBadGateway, NewOperationOutcome(IssueSeverityError, IssueTypeException, se.Error())
	}
	return http.StatusInternalServerError, ErrorOutcome(err.Error())
}
