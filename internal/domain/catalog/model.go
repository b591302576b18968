package catalog

import (
	"time"

	"github.com/google/uuid"

	"github.com/ehr/ordercapture/internal/platform/fhir"
)

const (
	StatusDraft   = "draft"
	StatusActive  = "active"
	StatusRetired = "retired"
	StatusUnknown = "unknown"
)

var validStatuses = map[string]bool{
	StatusDraft: true, StatusActive: true, StatusRetired: true, StatusUnknown: true,
}

// Definition maps to the activity_definition table (FHIR ActivityDefinition).
// FieldSchema holds the JSON-encoded []ResultField exactly as stored; it is
// decoded lazily so a malformed value never blocks reads.
type Definition struct {
	ID             uuid.UUID `db:"id" json:"id"`
	FHIRID         string    `db:"fhir_id" json:"fhir_id"`
	Status         string    `db:"status" json:"status"`
	IdentifierCode *string   `db:"identifier_code" json:"identifier_code,omitempty"`
	Title          string    `db:"title" json:"title"`
	Description    *string   `db:"description" json:"description,omitempty"`
	Kind           *string   `db:"kind" json:"kind,omitempty"`
	FieldSchema    *string   `db:"field_schema" json:"field_schema,omitempty"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

func (d *Definition) Code() string {
	return strVal(d.IdentifierCode)
}

func (d *Definition) ToFHIR() map[string]interface{} {
	result := map[string]interface{}{
		"resourceType": "ActivityDefinition",
		"id":           d.FHIRID,
		"status":       d.Status,
		"title":        d.Title,
		"meta":         fhir.Meta{LastUpdated: d.UpdatedAt},
	}
	if d.IdentifierCode != nil {
		result["code"] = fhir.CodeableConcept{
			Coding: []fhir.Coding{{Code: *d.IdentifierCode}},
			Text:   d.Title,
		}
	}
	if d.Description != nil {
		result["description"] = *d.Description
	}
	if d.Kind != nil {
		result["kind"] = *d.Kind
	}
	if fields, err := DecodeFieldSchema(d.FieldSchema); err == nil {
		result["observationResultRequirement"] = fieldRequirements(fields)
	}
	return result
}

func fieldRequirements(fields []ResultField) []map[string]interface{} {
	out := make([]map[string]interface{}, len(fields))
	for i, f := range fields {
		out[i] = map[string]interface{}{
			"reference": "#" + f.Name,
			"display":   f.Label,
			"type":      string(f.Type),
		}
	}
	return out
}

// Orderable is what the resolver needs to know about an order.
type Orderable interface {
	OrderCode() string
	OrderDisplayText() string
}

func strVal(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
