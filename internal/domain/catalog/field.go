package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// FieldType is the declared type of a ResultField.
type FieldType string

const (
	FieldString  FieldType = "string"
	FieldNumber  FieldType = "number"
	FieldBoolean FieldType = "boolean"
	FieldSelect  FieldType = "select"
)

// ResultField is one capturable field of a per-order schema.
type ResultField struct {
	Name    string    `json:"name" yaml:"name"`
	Label   string    `json:"label" yaml:"label"`
	Type    FieldType `json:"type" yaml:"type"`
	Unit    string    `json:"unit,omitempty" yaml:"unit,omitempty"`
	Options []string  `json:"options,omitempty" yaml:"options,omitempty"`
}

func (f ResultField) HasOption(v string) bool {
	for _, o := range f.Options {
		if o == v {
			return true
		}
	}
	return false
}

func (f ResultField) validate() error {
	switch f.Type {
	case FieldString, FieldNumber, FieldBoolean:
	case FieldSelect:
		if len(f.Options) == 0 {
			return fmt.Errorf("select field %q has no options", f.Name)
		}
	default:
		return fmt.Errorf("field %q has unknown type %q", f.Name, f.Type)
	}
	if f.Unit != "" && f.Type != FieldNumber {
		return fmt.Errorf("field %q: unit is only allowed on number fields", f.Name)
	}
	return nil
}

// SchemaDecodeError reports a missing, malformed or invalid embedded schema.
type SchemaDecodeError struct {
	DefinitionID string
	Err          error
}

func (e *SchemaDecodeError) Error() string {
	if e.DefinitionID == "" {
		return "decode field schema: " + e.Err.Error()
	}
	return fmt.Sprintf("decode field schema of ActivityDefinition/%s: %v", e.DefinitionID, e.Err)
}

func (e *SchemaDecodeError) Unwrap() error { return e.Err }

// ErrNoSchema is wrapped by SchemaDecodeError when a definition has no schema.
var ErrNoSchema = errors.New("no field schema")

// DecodeFieldSchema parses and validates an embedded schema. Names must be
// unique and non-empty; an empty label defaults to the name.
func DecodeFieldSchema(raw *string) ([]ResultField, error) {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return nil, ErrNoSchema
	}
	var fields []ResultField
	if err := json.Unmarshal([]byte(*raw), &fields); err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("field schema is empty")
	}
	return normalizeFields(fields)
}

func normalizeFields(fields []ResultField) ([]ResultField, error) {
	seen := make(map[string]bool, len(fields))
	for i := range fields {
		f := &fields[i]
		f.Name = strings.TrimSpace(f.Name)
		if f.Name == "" {
			return nil, fmt.Errorf("field %d has no name", i)
		}
		if seen[f.Name] {
			return nil, fmt.Errorf("duplicate field name %q", f.Name)
		}
		seen[f.Name] = true
		if strings.TrimSpace(f.Label) == "" {
			f.Label = f.Name
		}
		if err := f.validate(); err != nil {
			return nil, err
		}
	}
	return fields, nil
}

// EncodeFieldSchema is the inverse of DecodeFieldSchema.
func EncodeFieldSchema(fields []ResultField) (*string, error) {
	if len(fields) == 0 {
		return nil, nil
	}
	normalized, err := normalizeFields(append([]ResultField(nil), fields...))
	if err != nil {
		return nil, err
	}
	b, err := json.Marshal(normalized)
	if err != nil {
		return nil, err
	}
	s := string(b)
	return &s, nil
}
