package diagnostics

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ehr/ordercapture/internal/platform/fhir"
)

const (
	CategoryLab     = "lab"
	CategoryImaging = "imaging"
)

var categoryByCode = map[string]string{
	"108252007":  CategoryLab,
	"lab":        CategoryLab,
	"laboratory": CategoryLab,
	"363679005":  CategoryImaging,
	"imaging":    CategoryImaging,
	"radiology":  CategoryImaging,
}

// Order maps to the service_request table (FHIR ServiceRequest resource).
// Empty code fields mean absent.
type Order struct {
	ID              uuid.UUID  `db:"id" json:"id"`
	FHIRID          string     `db:"fhir_id" json:"fhir_id"`
	PatientID       uuid.UUID  `db:"patient_id" json:"patient_id"`
	EncounterID     *uuid.UUID `db:"encounter_id" json:"encounter_id,omitempty"`
	RequesterID     *uuid.UUID `db:"requester_id" json:"requester_id,omitempty"`
	Status          string     `db:"status" json:"status"`
	Intent          string     `db:"intent" json:"intent"`
	Priority        *string    `db:"priority" json:"priority,omitempty"`
	CategoryCode    *string    `db:"category_code" json:"category_code,omitempty"`
	CategoryDisplay *string    `db:"category_display" json:"category_display,omitempty"`
	CodeSystem      *string    `db:"code_system" json:"code_system,omitempty"`
	CodeValue       string     `db:"code_value" json:"code_value,omitempty"`
	CodeDisplay     string     `db:"code_display" json:"code_display,omitempty"`
	CodeText        string     `db:"code_text" json:"code_text,omitempty"`
	AuthoredOn      *time.Time `db:"authored_on" json:"authored_on,omitempty"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at" json:"updated_at"`
}

func (o *Order) OrderCode() string        { return o.CodeValue }
func (o *Order) OrderDisplayText() string { return o.CodeText }

// Reference is the stable link written on records created for this order.
func (o *Order) Reference() string {
	return fhir.FormatReference("ServiceRequest", o.FHIRID)
}

// Category derives lab or imaging from the coded category; "" when unknown.
func (o *Order) Category() string {
	if o.CategoryCode == nil {
		return ""
	}
	return categoryByCode[strings.ToLower(strings.TrimSpace(*o.CategoryCode))]
}

// Identified reports whether the order carries a code or a display text.
func (o *Order) Identified() bool {
	return o.CodeValue != "" || o.CodeText != ""
}

// refersTo accepts the exact reference as well as absolute or differently
// formatted references that resolve to this order.
func (o *Order) refersTo(ref string) bool {
	if ref == "" {
		return false
	}
	if ref == o.Reference() {
		return true
	}
	rt, id, err := fhir.ParseReference(ref)
	return err == nil && rt == "ServiceRequest" && id == o.FHIRID
}

func (o *Order) ToFHIR() map[string]interface{} {
	code := fhir.CodeableConcept{Text: o.CodeText}
	if o.CodeValue != "" || o.CodeDisplay != "" {
		code.Coding = []fhir.Coding{{
			System:  strVal(o.CodeSystem),
			Code:    o.CodeValue,
			Display: o.CodeDisplay,
		}}
	}
	result := map[string]interface{}{
		"resourceType": "ServiceRequest",
		"id":           o.FHIRID,
		"status":       o.Status,
		"intent":       o.Intent,
		"code":         code,
		"subject":      fhir.Reference{Reference: fhir.FormatReference("Patient", o.PatientID.String())},
		"meta":         fhir.Meta{LastUpdated: o.UpdatedAt},
	}
	if o.Priority != nil {
		result["priority"] = *o.Priority
	}
	if o.CategoryCode != nil {
		result["category"] = []fhir.CodeableConcept{{
			Coding: []fhir.Coding{{Code: *o.CategoryCode, Display: strVal(o.CategoryDisplay)}},
		}}
	}
	if o.EncounterID != nil {
		result["encounter"] = fhir.Reference{Reference: fhir.FormatReference("Encounter", o.EncounterID.String())}
	}
	if o.RequesterID != nil {
		result["requester"] = fhir.Reference{Reference: fhir.FormatReference("Practitioner", o.RequesterID.String())}
	}
	if o.AuthoredOn != nil {
		result["authoredOn"] = o.AuthoredOn.Format(time.RFC3339)
	}
	return result
}

const (
	ResultStatusFinal   = "final"
	ResultStatusAmended = "amended"
)

// ResultRecord maps to the observation table (FHIR Observation resource).
// CodeText holds the field label (or legacy code) used for matching.
type ResultRecord struct {
	ID                uuid.UUID   `db:"id" json:"id"`
	FHIRID            string      `db:"fhir_id" json:"fhir_id"`
	Status            string      `db:"status" json:"status"`
	PatientID         uuid.UUID   `db:"patient_id" json:"patient_id"`
	EncounterID       *uuid.UUID  `db:"encounter_id" json:"encounter_id,omitempty"`
	BasedOnRef        *string     `db:"based_on_ref" json:"based_on_ref,omitempty"`
	CodeValue         *string     `db:"code_value" json:"code_value,omitempty"`
	CodeText          string      `db:"code_text" json:"code_text"`
	Value             ResultValue `db:"-" json:"-"`
	PerformerID       *string     `db:"performer_id" json:"performer_id,omitempty"`
	EffectiveDatetime *time.Time  `db:"effective_datetime" json:"effective_datetime,omitempty"`
	CreatedAt         time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time   `db:"updated_at" json:"updated_at"`
}

func (r *ResultRecord) ToFHIR() map[string]interface{} {
	code := fhir.CodeableConcept{Text: r.CodeText}
	if r.CodeValue != nil {
		code.Coding = []fhir.Coding{{Code: *r.CodeValue, Display: r.CodeText}}
	}
	result := map[string]interface{}{
		"resourceType": "Observation",
		"id":           r.FHIRID,
		"status":       r.Status,
		"code":         code,
		"subject":      fhir.Reference{Reference: fhir.FormatReference("Patient", r.PatientID.String())},
		"meta":         fhir.Meta{LastUpdated: r.UpdatedAt},
	}
	if r.EncounterID != nil {
		result["encounter"] = fhir.Reference{Reference: fhir.FormatReference("Encounter", r.EncounterID.String())}
	}
	if r.BasedOnRef != nil {
		result["basedOn"] = []fhir.Reference{{Reference: *r.BasedOnRef}}
	}
	if r.PerformerID != nil {
		result["performer"] = []fhir.Reference{{Reference: fhir.FormatReference("Practitioner", *r.PerformerID)}}
	}
	if r.EffectiveDatetime != nil {
		result["effectiveDateTime"] = r.EffectiveDatetime.Format(time.RFC3339)
	}
	if r.Value != nil {
		key, v := r.Value.fhirValue()
		result[key] = v
	}
	return result
}

func strVal(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
