package diagnostics

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ehr/ordercapture/internal/domain/catalog"
)

func TestCoerceValue(t *testing.T) {
	number := catalog.ResultField{Name: "wbc", Type: catalog.FieldNumber, Unit: "10^3/uL"}
	text := catalog.ResultField{Name: "note", Type: catalog.FieldString}
	flag := catalog.ResultField{Name: "fasting", Type: catalog.FieldBoolean}
	choice := catalog.ResultField{Name: "color", Type: catalog.FieldSelect, Options: []string{"yellow", "amber"}}

	tests := []struct {
		name    string
		field   catalog.ResultField
		raw     interface{}
		want    ResultValue
		skip    bool
		wantErr bool
	}{
		{"number from string", number, " 7.2 ", QuantityValue{Value: 7.2, Unit: "10^3/uL"}, false, false},
		{"number from float", number, 8.0, QuantityValue{Value: 8, Unit: "10^3/uL"}, false, false},
		{"number from json.Number", number, json.Number("3"), QuantityValue{Value: 3, Unit: "10^3/uL"}, false, false},
		{"number invalid", number, "abc", nil, false, true},
		{"number bool", number, true, nil, false, true},
		{"number NaN", number, "NaN", nil, false, true},
		{"string", text, "clear", StringValue{Value: "clear"}, false, false},
		{"string from number", text, 12.5, StringValue{Value: "12.5"}, false, false},
		{"string from object", text, map[string]interface{}{}, nil, false, true},
		{"boolean", flag, true, BooleanValue{Value: true}, false, false},
		{"boolean word", flag, "No", BooleanValue{Value: false}, false, false},
		{"boolean invalid", flag, "sometimes", nil, false, true},
		{"select option", choice, "amber", CodedValue{Text: "amber"}, false, false},
		{"select outside options", choice, "red", nil, false, true},
		{"nil skipped", number, nil, nil, true, false},
		{"blank skipped", choice, "   ", nil, true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, skip, err := CoerceValue(tt.field, tt.raw)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.skip, skip)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValueColumns_RoundTrip(t *testing.T) {
	values := []ResultValue{
		QuantityValue{Value: 1.5, Unit: "mg"},
		QuantityValue{Value: 0},
		StringValue{Value: "x"},
		BooleanValue{Value: false},
		CodedValue{Text: "amber"},
	}
	for _, v := range values {
		assert.Equal(t, v, columnsOf(v).value())
	}
	assert.Nil(t, columnsOf(nil).value())
}

func TestResultRecord_MarshalJSON(t *testing.T) {
	rec := &ResultRecord{FHIRID: "r1", CodeText: "WBC", Value: QuantityValue{Value: 7.2, Unit: "10^3/uL"}}
	data, err := json.Marshal(rec)
	require.NoError(t, err)

	var parsed map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &parsed))
	assert.Equal(t, "r1", parsed["fhir_id"])
	value, ok := parsed["value"].(map[string]interface{})
	require.True(t, ok, "value object expected in %s", data)
	assert.Equal(t, "quantity", value["kind"])
	assert.Equal(t, 7.2, value["quantity"])
	assert.Equal(t, "10^3/uL", value["unit"])
	assert.NotContains(t, value, "string")
}

func TestResultRecord_MarshalJSON_NoValue(t *testing.T) {
	data, err := json.Marshal(&ResultRecord{FHIRID: "r1"})
	require.NoError(t, err)
	assert.NotContains(t, string(data), `"value"`)
}
