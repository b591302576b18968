package diagnostics

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/ehr/ordercapture/internal/domain/catalog"
	"github.com/ehr/ordercapture/internal/platform/fhir"
)

type ValueKind string

const (
	KindQuantity ValueKind = "quantity"
	KindString   ValueKind = "string"
	KindBoolean  ValueKind = "boolean"
	KindCoded    ValueKind = "coded"
)

// ResultValue is exactly one of QuantityValue, StringValue, BooleanValue or
// CodedValue.
type ResultValue interface {
	Kind() ValueKind
	fhirValue() (key string, value interface{})
	columns() valueColumns
}

type QuantityValue struct {
	Value float64
	Unit  string
}

type StringValue struct {
	Value string
}

type BooleanValue struct {
	Value bool
}

// CodedValue carries a selected option as display text.
type CodedValue struct {
	Text string
}

func (QuantityValue) Kind() ValueKind { return KindQuantity }
func (StringValue) Kind() ValueKind   { return KindString }
func (BooleanValue) Kind() ValueKind  { return KindBoolean }
func (CodedValue) Kind() ValueKind    { return KindCoded }

func (v QuantityValue) fhirValue() (string, interface{}) {
	return "valueQuantity", fhir.Quantity{Value: v.Value, Unit: v.Unit}
}

func (v StringValue) fhirValue() (string, interface{}) { return "valueString", v.Value }

func (v BooleanValue) fhirValue() (string, interface{}) { return "valueBoolean", v.Value }

func (v CodedValue) fhirValue() (string, interface{}) {
	return "valueCodeableConcept", fhir.CodeableConcept{
		Coding: []fhir.Coding{{Display: v.Text}},
		Text:   v.Text,
	}
}

// valueColumns mirrors the nullable value columns of the observation table.
// At most one group is non-nil.
type valueColumns struct {
	Quantity  *float64 `json:"quantity,omitempty"`
	Unit      *string  `json:"unit,omitempty"`
	String    *string  `json:"string,omitempty"`
	Boolean   *bool    `json:"boolean,omitempty"`
	CodedText *string  `json:"coded_text,omitempty"`
}

func (v QuantityValue) columns() valueColumns {
	q := v.Value
	vc := valueColumns{Quantity: &q}
	if v.Unit != "" {
		u := v.Unit
		vc.Unit = &u
	}
	return vc
}

func (v StringValue) columns() valueColumns {
	s := v.Value
	return valueColumns{String: &s}
}

func (v BooleanValue) columns() valueColumns {
	b := v.Value
	return valueColumns{Boolean: &b}
}

func (v CodedValue) columns() valueColumns {
	s := v.Text
	return valueColumns{CodedText: &s}
}

func columnsOf(v ResultValue) valueColumns {
	if v == nil {
		return valueColumns{}
	}
	return v.columns()
}

// value rebuilds the typed value from stored columns. Rows written outside
// this service may populate several columns; the first populated one wins.
func (vc valueColumns) value() ResultValue {
	switch {
	case vc.Quantity != nil:
		return QuantityValue{Value: *vc.Quantity, Unit: strVal(vc.Unit)}
	case vc.CodedText != nil:
		return CodedValue{Text: *vc.CodedText}
	case vc.Boolean != nil:
		return BooleanValue{Value: *vc.Boolean}
	case vc.String != nil:
		return StringValue{Value: *vc.String}
	}
	return nil
}

type valueJSON struct {
	Kind ValueKind `json:"kind"`
	valueColumns
}

func (r *ResultRecord) MarshalJSON() ([]byte, error) {
	type plain ResultRecord
	out := struct {
		*plain
		Value *valueJSON `json:"value,omitempty"`
	}{plain: (*plain)(r)}
	if r.Value != nil {
		out.Value = &valueJSON{Kind: r.Value.Kind(), valueColumns: r.Value.columns()}
	}
	return json.Marshal(out)
}

// CoerceValue converts a submitted raw value to the field's typed value.
// skip is true for nil and blank input, which is never written.
func CoerceValue(field catalog.ResultField, raw interface{}) (v ResultValue, skip bool, err error) {
	if raw == nil {
		return nil, true, nil
	}
	if s, ok := raw.(string); ok && strings.TrimSpace(s) == "" {
		return nil, true, nil
	}

	switch field.Type {
	case catalog.FieldNumber:
		f, err := toFloat(raw)
		if err != nil {
			return nil, false, err
		}
		return QuantityValue{Value: f, Unit: field.Unit}, false, nil
	case catalog.FieldString:
		s, err := toText(raw)
		if err != nil {
			return nil, false, err
		}
		return StringValue{Value: s}, false, nil
	case catalog.FieldBoolean:
		b, err := toBool(raw)
		if err != nil {
			return nil, false, err
		}
		return BooleanValue{Value: b}, false, nil
	case catalog.FieldSelect:
		s, err := toText(raw)
		if err != nil {
			return nil, false, err
		}
		s = strings.TrimSpace(s)
		if !field.HasOption(s) {
			return nil, false, fmt.Errorf("%q is not one of %s", s, strings.Join(field.Options, ", "))
		}
		return CodedValue{Text: s}, false, nil
	}
	return nil, false, fmt.Errorf("unsupported field type %q", field.Type)
}

func toFloat(raw interface{}) (float64, error) {
	var f float64
	switch v := raw.(type) {
	case float64:
		f = v
	case float32:
		f = float64(v)
	case int:
		f = float64(v)
	case int64:
		f = float64(v)
	case json.Number:
		parsed, err := v.Float64()
		if err != nil {
			return 0, fmt.Errorf("must be a number, got %q", v.String())
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, fmt.Errorf("must be a number, got %q", v)
		}
		f = parsed
	default:
		return 0, fmt.Errorf("must be a number, got %T", raw)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("must be a finite number")
	}
	return f, nil
}

func toText(raw interface{}) (string, error) {
	switch v := raw.(type) {
	case string:
		return v, nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	case json.Number:
		return v.String(), nil
	case bool:
		return strconv.FormatBool(v), nil
	}
	return "", fmt.Errorf("must be text, got %T", raw)
}

func toBool(raw interface{}) (bool, error) {
	switch v := raw.(type) {
	case bool:
		return v, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true", "yes", "y", "1", "on":
			return true, nil
		case "false", "no", "n", "0", "off":
			return false, nil
		}
		return false, fmt.Errorf("must be true or false, got %q", v)
	}
	return false, fmt.Errorf("must be true or false, got %T", raw)
}
