package catalog

import (
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"
)

// definitionsFile is the seed file layout:
//
//	definitions:
//	  - code: cbc
//	    title: Complete Blood Count
//	    fields:
//	      - {name: wbc, label: White Blood Cells, type: number, unit: 10^3/uL}
type definitionsFile struct {
	Definitions []yamlDefinition `yaml:"definitions"`
}

type yamlDefinition struct {
	Code        string        `yaml:"code"`
	Title       string        `yaml:"title"`
	Status      string        `yaml:"status"`
	Kind        string        `yaml:"kind"`
	Description string        `yaml:"description"`
	Fields      []ResultField `yaml:"fields"`
}

// LoadDefinitionsYAML parses a seed file. Unknown keys are rejected.
func LoadDefinitionsYAML(r io.Reader) ([]*Definition, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var file definitionsFile
	if err := dec.Decode(&file); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("parse catalog yaml: %w", err)
	}

	defs := make([]*Definition, 0, len(file.Definitions))
	for i, yd := range file.Definitions {
		schema, err := EncodeFieldSchema(yd.Fields)
		if err != nil {
			return nil, fmt.Errorf("definition %d (%s): %w", i, yd.Code, err)
		}
		d := &Definition{
			Status:      strings.TrimSpace(yd.Status),
			Title:       strings.TrimSpace(yd.Title),
			FieldSchema: schema,
		}
		if code := strings.TrimSpace(yd.Code); code != "" {
			d.IdentifierCode = &code
		}
		if yd.Kind != "" {
			kind := yd.Kind
			d.Kind = &kind
		}
		if yd.Description != "" {
			desc := yd.Description
			d.Description = &desc
		}
		if d.Status == "" {
			d.Status = StatusActive
		}
		defs = append(defs, d)
	}
	return defs, nil
}
