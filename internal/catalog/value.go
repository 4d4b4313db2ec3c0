package catalog

import "strconv"

// Value is a typed sink value
type Value struct {
	Kind   ValueKind
	Bool   bool
	Number float64
	Text   string
}

// BoolValue creates a boolean value
func BoolValue(b bool) Value {
	return Value{Kind: ValueBool, Bool: b}
}

// NumberValue creates a numeric value
func NumberValue(n float64) Value {
	return Value{Kind: ValueNumber, Number: n}
}

// TextValue creates a text value
func TextValue(s string) Value {
	return Value{Kind: ValueText, Text: s}
}

// Any returns the value as a plain Go value for JSON encoding
func (v Value) Any() any {
	switch v.Kind {
	case ValueBool:
		return v.Bool
	case ValueNumber:
		return v.Number
	case ValueText:
		return v.Text
	default:
		return nil
	}
}

// String formats the value for display
func (v Value) String() string {
	switch v.Kind {
	case ValueBool:
		return strconv.FormatBool(v.Bool)
	case ValueNumber:
		return strconv.FormatFloat(v.Number, 'f', -1, 64)
	default:
		return v.Text
	}
}
