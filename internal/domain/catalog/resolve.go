package catalog

// FallbackFieldName is the name of the single free-text field used when no
// usable schema exists for an order.
const FallbackFieldName = "result"

// Resolution is the outcome of schema resolution for one order.
type Resolution struct {
	Fields     []ResultField
	Definition *Definition
	Fallback   bool
	// DecodeErr is set when a definition matched but its schema was missing
	// or unusable.
	DecodeErr *SchemaDecodeError
}

// ResolveSchema returns the capturable fields for order. It never fails:
// without a usable definition it returns FallbackField(order).
func ResolveSchema(order Orderable, definitions []*Definition) []ResultField {
	return Resolve(order, definitions).Fields
}

// Resolve matches a definition by identifier code, or by title only when no
// definition carries the order's code.
func Resolve(order Orderable, definitions []*Definition) Resolution {
	def := matchDefinition(order, definitions)
	if def == nil {
		return Resolution{Fields: []ResultField{FallbackField(order)}, Fallback: true}
	}
	fields, err := DecodeFieldSchema(def.FieldSchema)
	if err != nil {
		return Resolution{
			Fields:     []ResultField{FallbackField(order)},
			Definition: def,
			Fallback:   true,
			DecodeErr:  &SchemaDecodeError{DefinitionID: def.FHIRID, Err: err},
		}
	}
	return Resolution{Fields: fields, Definition: def}
}

func matchDefinition(order Orderable, definitions []*Definition) *Definition {
	if code := order.OrderCode(); code != "" {
		for _, d := range definitions {
			if d != nil && d.Code() == code {
				return d
			}
		}
	}
	if text := order.OrderDisplayText(); text != "" {
		for _, d := range definitions {
			if d != nil && d.Title == text {
				return d
			}
		}
	}
	return nil
}

// FallbackField labels the generic field with the order's display text, else
// its code, else "Result".
func FallbackField(order Orderable) ResultField {
	label := order.OrderDisplayText()
	if label == "" {
		label = order.OrderCode()
	}
	if label == "" {
		label = "Result"
	}
	return ResultField{Name: FallbackFieldName, Label: label, Type: FieldString}
}
