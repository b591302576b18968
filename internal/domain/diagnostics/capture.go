package diagnostics

import (
	"fmt"
	"sort"
	"time"

	"github.com/ehr/ordercapture/internal/domain/catalog"
	"github.com/ehr/ordercapture/internal/platform/fhir"
)

// CaptureStep is one planned write: Record is either an existing record to
// update in place or a new record to create.
type CaptureStep struct {
	Field  catalog.ResultField
	Record *ResultRecord
	Create bool
}

// PlanCapture validates values against schema and decides, per field, which
// record receives the value. It never mutates existing; every step carries
// its own copy. Nothing is planned when any value is rejected.
func PlanCapture(order *Order, values map[string]interface{}, schema []catalog.ResultField,
	existing []*ResultRecord, performer string, now time.Time) ([]CaptureStep, error) {

	if order == nil {
		return nil, fhir.NewValidationError("order", "is required")
	}

	typed, err := validateValues(values, schema)
	if err != nil {
		return nil, err
	}

	claimed := make(map[*ResultRecord]bool)
	var steps []CaptureStep
	for _, field := range schema {
		v, ok := typed[field.Name]
		if !ok {
			continue
		}

		if match := findReusable(order, field, existing, claimed); match != nil {
			claimed[match] = true
			rec := *match
			rec.Value = v
			rec.EffectiveDatetime = &now
			rec.Status = amendedStatus(match.Status)
			if rec.CodeValue == nil {
				name := field.Name
				rec.CodeValue = &name
			}
			setPerformer(&rec, performer)
			steps = append(steps, CaptureStep{Field: field, Record: &rec})
			continue
		}

		ref := order.Reference()
		name := field.Name
		rec := &ResultRecord{
			Status:            ResultStatusFinal,
			PatientID:         order.PatientID,
			EncounterID:       order.EncounterID,
			BasedOnRef:        &ref,
			CodeValue:         &name,
			CodeText:          field.Label,
			Value:             v,
			EffectiveDatetime: &now,
		}
		setPerformer(rec, performer)
		steps = append(steps, CaptureStep{Field: field, Record: rec, Create: true})
	}
	return steps, nil
}

// validateValues coerces every submitted value. Keys outside the schema are
// rejected; nil and blank values are dropped.
func validateValues(values map[string]interface{}, schema []catalog.ResultField) (map[string]ResultValue, error) {
	byName := make(map[string]catalog.ResultField, len(schema))
	for _, f := range schema {
		byName[f.Name] = f
	}

	ve := &fhir.ValidationError{}
	typed := make(map[string]ResultValue, len(values))
	for _, name := range sortedKeys(values) {
		field, ok := byName[name]
		if !ok {
			ve.Add(name, "is not a field of this order")
			continue
		}
		v, skip, err := CoerceValue(field, values[name])
		if err != nil {
			ve.Add(name, "%v", err)
			continue
		}
		if !skip {
			typed[name] = v
		}
	}
	if err := ve.ErrOrNil(); err != nil {
		return nil, err
	}
	return typed, nil
}

// findReusable picks the record a field's value overwrites. Candidates share
// the order's subject and encounter, are not linked to another order and are
// not yet claimed by another field. A label match beats an order-code match;
// within a tier a record linked to this order wins, then input order.
func findReusable(order *Order, field catalog.ResultField, existing []*ResultRecord, claimed map[*ResultRecord]bool) *ResultRecord {
	var best *ResultRecord
	bestScore := 0
	for _, r := range existing {
		if r == nil || claimed[r] || !sameContext(order, r) {
			continue
		}
		linked := r.BasedOnRef != nil && order.refersTo(*r.BasedOnRef)
		if r.BasedOnRef != nil && !linked {
			continue
		}

		score := 0
		switch {
		case r.CodeText == field.Label:
			score = 4
		case order.CodeValue != "" && r.CodeText == order.CodeValue:
			score = 2
		default:
			continue
		}
		if linked {
			score++
		}
		if score > bestScore {
			best, bestScore = r, score
		}
	}
	return best
}

func sameContext(order *Order, r *ResultRecord) bool {
	if r.PatientID != order.PatientID {
		return false
	}
	switch {
	case order.EncounterID == nil && r.EncounterID == nil:
		return true
	case order.EncounterID == nil || r.EncounterID == nil:
		return false
	}
	return *order.EncounterID == *r.EncounterID
}

func amendedStatus(prev string) string {
	switch prev {
	case ResultStatusFinal, ResultStatusAmended, "corrected":
		return ResultStatusAmended
	}
	return ResultStatusFinal
}

func setPerformer(r *ResultRecord, performer string) {
	if performer == "" {
		return
	}
	p := performer
	r.PerformerID = &p
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// FieldError names the field whose write failed.
type FieldError struct {
	Field string
	Err   error
}

func (e *FieldError) Error() string { return fmt.Sprintf("field %s: %v", e.Field, e.Err) }
func (e *FieldError) Unwrap() error { return e.Err }
