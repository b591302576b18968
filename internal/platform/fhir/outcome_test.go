package fhir

import (
	"encoding/json"
	"testing"
)

func TestNotFoundOutcome(t *testing.T) {
	oo := NotFoundOutcome("ServiceRequest", "abc")

	if oo.ResourceType != "OperationOutcome" {
		t.Errorf("expected resourceType OperationOutcome, got %s", oo.ResourceType)
	}
	if len(oo.Issue) != 1 {
		t.Fatalf("expected 1 issue, got %d", len(oo.Issue))
	}
	if oo.Issue[0].Code != IssueTypeNotFound {
		t.Errorf("expected code %s, got %s", IssueTypeNotFound, oo.Issue[0].Code)
	}
	if oo.Issue[0].Diagnostics != "ServiceRequest/abc not found" {
		t.Errorf("unexpected diagnostics %q", oo.Issue[0].Diagnostics)
	}
}

func TestValidationOutcome_OneIssuePerField(t *testing.T) {
	oo := ValidationOutcome([]FieldIssue{
		{Field: "wbc", Message: "must be a number"},
		{Field: "flag", Message: "must be true or false"},
	})

	if len(oo.Issue) != 2 {
		t.Fatalf("expected 2 issues, got %d", len(oo.Issue))
	}
	if oo.Issue[0].Expression[0] != "wbc" {
		t.Errorf("expected expression wbc, got %v", oo.Issue[0].Expression)
	}
	if oo.Issue[1].Diagnostics != "flag: must be true or false" {
		t.Errorf("unexpected diagnostics %q", oo.Issue[1].Diagnostics)
	}
	if oo.Issue[0].Severity != IssueSeverityError {
		t.Errorf("expected severity error, got %s", oo.Issue[0].Severity)
	}
}

func TestValidationOutcome_Empty(t *testing.T) {
	oo := ValidationOutcome(nil)
	if len(oo.Issue) != 1 {
		t.Fatalf("expected a placeholder issue, got %d", len(oo.Issue))
	}
	if oo.Issue[0].Code != IssueTypeInvalid {
		t.Errorf("expected code invalid, got %s", oo.Issue[0].Code)
	}
}

func TestErrorOutcome_JSON(t *testing.T) {
	data, err := json.Marshal(ErrorOutcome("boom"))
	if err != nil {
		t.Fatalf("failed to marshal: %v", err)
	}
	var parsed map[string]interface{}
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("failed to unmarshal: %v", err)
	}
	issue := parsed["issue"].([]interface{})[0].(map[string]interface{})
	if issue["code"] != "processing" {
		t.Errorf("expected code processing, got %v", issue["code"])
	}
	if _, ok := issue["expression"]; ok {
		t.Error("expression should be omitted when empty")
	}
}
