package ir

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"unicode/utf16"
)

// Value is a sealed interface over the attribute value types a concept can carry.
// Only String, Long and Bool implement it. Floats are not supported because
// they break content hashing across platforms.
type Value interface {
	value() // Sealed - only these types implement it

	// ValueType names the value type as declared in the schema.
	ValueType() ValueType
}

// ValueType is the declared value type of an attribute type.
type ValueType string

const (
	ValueTypeString ValueType = "string"
	ValueTypeLong   ValueType = "long"
	ValueTypeBool   ValueType = "boolean"
)

// ValidValueTypes lists the value types accepted in schema definitions.
var ValidValueTypes = map[ValueType]bool{
	ValueTypeString: true,
	ValueTypeLong:   true,
	ValueTypeBool:   true,
}

// String is a string attribute value.
type String string

func (String) value() {}

// ValueType implements Value.
func (String) ValueType() ValueType { return ValueTypeString }

// Long is an integer attribute value.
type Long int64

func (Long) value() {}

// ValueType implements Value.
func (Long) ValueType() ValueType { return ValueTypeLong }

// Bool is a boolean attribute value.
type Bool bool

func (Bool) value() {}

// ValueType implements Value.
func (Bool) ValueType() ValueType { return ValueTypeBool }

// ValueEqual reports whether two values have the same type and content.
// Two nil values are equal.
func ValueEqual(a, b Value) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a == b
}

// FormatValue renders a value the way it appears in a query literal.
func FormatValue(v Value) string {
	switch val := v.(type) {
	case String:
		return strconv.Quote(string(val))
	case Long:
		return strconv.FormatInt(int64(val), 10)
	case Bool:
		return strconv.FormatBool(bool(val))
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", val)
	}
}

// MarshalValue encodes a value as JSON. The encoding doubles as the storage
// representation of attribute values, so it must stay stable.
func MarshalValue(v Value) ([]byte, error) {
	switch val := v.(type) {
	case String:
		return marshalCanonicalString(string(val))
	case Long:
		return []byte(strconv.FormatInt(int64(val), 10)), nil
	case Bool:
		return []byte(strconv.FormatBool(bool(val))), nil
	default:
		return nil, fmt.Errorf("unknown value type: %T", v)
	}
}

// UnmarshalValue decodes JSON produced by MarshalValue.
// Floats and null are rejected.
func UnmarshalValue(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	return ToValue(raw)
}

// ToValue converts a decoded Go value (from JSON, YAML or CUE) into a Value.
func ToValue(v any) (Value, error) {
	switch val := v.(type) {
	case nil:
		return nil, fmt.Errorf("null is not a valid attribute value")
	case Value:
		return val, nil
	case string:
		return String(val), nil
	case bool:
		return Bool(val), nil
	case int:
		return Long(val), nil
	case int64:
		return Long(val), nil
	case json.Number:
		n, err := val.Int64()
		if err != nil {
			return nil, fmt.Errorf("floats are not valid attribute values: %s", val)
		}
		return Long(n), nil
	case float32, float64:
		return nil, fmt.Errorf("floats are not valid attribute values: %v", val)
	default:
		return nil, fmt.Errorf("unsupported value type: %T", v)
	}
}

// sortedKeys returns keys in RFC 8785 order (UTF-16 code units).
// Go's string comparison orders by UTF-8 bytes, which differs for
// characters outside the BMP.
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareUTF16)
	return keys
}

func compareUTF16(a, b string) int {
	a16 := utf16.Encode([]rune(a))
	b16 := utf16.Encode([]rune(b))

	for i := 0; i < len(a16) && i < len(b16); i++ {
		if a16[i] != b16[i] {
			if a16[i] < b16[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(a16) < len(b16):
		return -1
	case len(a16) > len(b16):
		return 1
	default:
		return 0
	}
}
