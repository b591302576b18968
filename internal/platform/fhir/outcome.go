package fhir

import "fmt"

// OperationOutcome severity levels per FHIR R4.
const (
	IssueSeverityFatal       = "fatal"
	IssueSeverityError       = "error"
	IssueSeverityWarning     = "warning"
	IssueSeverityInformation = "information"
)

// OperationOutcome issue type codes used by this service.
const (
	IssueTypeInvalid    = "invalid"
	IssueTypeRequired   = "required"
	IssueTypeValue      = "value"
	IssueTypeNotFound   = "not-found"
	IssueTypeProcessing = "processing"
	IssueTypeSecurity   = "security"
	IssueTypeThrottled  = "throttled"
	IssueTypeException  = "exception"
	IssueTypeTooLong    = "too-long"
	IssueTypeTimeout    = "timeout"
)

// OperationOutcome represents a FHIR OperationOutcome for errors.
type OperationOutcome struct {
	ResourceType string                  `json:"resourceType"`
	Issue        []OperationOutcomeIssue `json:"issue"`
}

type OperationOutcomeIssue struct {
	Severity    string           `json:"severity"`
	Code        string           `json:"code"`
	Details     *CodeableConcept `json:"details,omitempty"`
	Diagnostics string           `json:"diagnostics,omitempty"`
	Expression  []string         `json:"expression,omitempty"`
}

func NewOperationOutcome(severity, code, diagnostics string) *OperationOutcome {
	return &OperationOutcome{
		ResourceType: "OperationOutcome",
		Issue: []OperationOutcomeIssue{{
			Severity:    severity,
			Code:        code,
			Diagnostics: diagnostics,
		}},
	}
}

func ErrorOutcome(diagnostics string) *OperationOutcome {
	return NewOperationOutcome(IssueSeverityError, IssueTypeProcessing, diagnostics)
}

func NotFoundOutcome(resourceType, id string) *OperationOutcome {
	return NewOperationOutcome(IssueSeverityError, IssueTypeNotFound, resourceType+"/"+id+" not found")
}

// ThrottleOutcome is returned with 429 responses.
func ThrottleOutcome() *OperationOutcome {
	return NewOperationOutcome(IssueSeverityError, IssueTypeThrottled,
		"Rate limit exceeded. Please retry after a delay.")
}

// ValidationOutcome builds one issue per offending field. The field name is
// reported as the issue expression.
func ValidationOutcome(issues []FieldIssue) *OperationOutcome {
	out := &OperationOutcome{ResourceType: "OperationOutcome"}
	for _, fi := range issues {
		issue := OperationOutcomeIssue{
			Severity:    IssueSeverityError,
			Code:        IssueTypeValue,
			Diagnostics: fi.Message,
		}
		if fi.Field != "" {
			issue.Expression = []string{fi.Field}
			issue.Diagnostics = fmt.Sprintf("%s: %s", fi.Field, fi.Message)
		}
		out.Issue = append(out.Issue, issue)
	}
	if len(out.Issue) == 0 {
		out.Issue = append(out.Issue, OperationOutcomeIssue{
			Severity: IssueSeverityError,
			Code:     IssueTypeInvalid,
		})
	}
	return out
}
