package fhir

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
)

func TestValidationError_ListsAllFields(t *testing.T) {
	ve := &ValidationError{}
	ve.Add("wbc", "must be a number, got %q", "abc")
	ve.Add("color", "not an allowed option")

	msg := ve.Error()
	if !strings.Contains(msg, `wbc: must be a number, got "abc"`) {
		t.Errorf("missing wbc issue in %q", msg)
	}
	if !strings.Contains(msg, "color: not an allowed option") {
		t.Errorf("missing color issue in %q", msg)
	}
}

func TestValidationError_ErrOrNil(t *testing.T) {
	ve := &ValidationError{}
	if ve.ErrOrNil() != nil {
		t.Error("expected nil for empty ValidationError")
	}
	ve.Add("x", "bad")
	if ve.ErrOrNil() == nil {
		t.Error("expected error once an issue is added")
	}
}

func TestStoreError_Unwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := WrapStore("create", "Observation", cause)

	if !errors.Is(err, cause) {
		t.Error("expected StoreError to unwrap to the original error")
	}
	var se *StoreError
	if !errors.As(err, &se) {
		t.Fatal("expected *StoreError")
	}
	if se.Op != "create" || se.Resource != "Observation" {
		t.Errorf("unexpected op/resource: %s %s", se.Op, se.Resource)
	}
}

func TestWrapStore_NilAndNoDoubleWrap(t *testing.T) {
	if WrapStore("get", "X", nil) != nil {
		t.Error("expected nil for nil error")
	}
	inner := WrapStore("get", "X", errors.New("boom"))
	outer := WrapStore("list", "Y", fmt.Errorf("ctx: %w", inner))
	var se *StoreError
	if !errors.As(outer, &se) || se.Op != "get" {
		t.Errorf("expected original StoreError to be preserved, got %v", outer)
	}
}

func TestOutcomeForError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"validation", NewValidationError("wbc", "bad"), http.StatusUnprocessableEntity, IssueTypeValue},
		{"not found", fmt.Errorf("order x: %w", ErrNotFound), http.StatusNotFound, IssueTypeNotFound},
		{"store not found", WrapStore("get", "ServiceRequest", ErrNotFound), http.StatusNotFound, IssueTypeNotFound},
		{"store", WrapStore("update", "Observation", errors.New("timeout")), http.StatusBadGateway, IssueTypeException},
		{"other", errors.New("unexpected"), http.StatusInternalServerError, IssueTypeProcessing},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, oo := OutcomeForError(tt.err)
			if status != tt.status {
				t.Errorf("expected status %d, got %d", tt.status, status)
			}
			if oo.Issue[0].Code != tt.code {
				t.Errorf("expected code %s, got %s", tt.code, oo.Issue[0].Code)
			}
		})
	}
}
