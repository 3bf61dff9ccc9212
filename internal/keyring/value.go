package keyring

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
)

// Value is a sealed interface representing a single column value.
// Only Null, String, Int, Bool and Bytes implement it.
// There is no float Value: nothing in the schema is fractional.
type Value interface {
	value() // Sealed - only these types implement it
}

// Null represents SQL NULL.
type Null struct{}

func (Null) value() {}

// String represents a TEXT value.
type String string

func (String) value() {}

// Int represents an INTEGER value. Key ids are 64-bit and stored signed.
type Int int64

func (Int) value() {}

// Bool represents a boolean flag, persisted as INTEGER 0/1.
type Bool bool

func (Bool) value() {}

// Bytes represents an opaque BLOB, such as serialized key material.
type Bytes []byte

func (Bytes) value() {}

// Values is a mutation payload: column name to typed value.
type Values map[string]Value

// Record is a single result row keyed by projected column name.
type Record map[string]Value

// SortedKeys returns the payload columns in byte order for deterministic
// statement construction.
func (v Values) SortedKeys() []string {
	keys := make([]string, 0, len(v))
	for k := range v {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Clone returns a shallow copy so callers' payloads are never mutated.
func (v Values) Clone() Values {
	out := make(Values, len(v))
	for k, val := range v {
		out[k] = val
	}
	return out
}

// Int returns the column as an int64. Bool columns are reported as 0/1.
func (r Record) Int(col string) (int64, bool) {
	switch val := r[col].(type) {
	case Int:
		return int64(val), true
	case Bool:
		if val {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}

// String returns the column as a string.
func (r Record) String(col string) (string, bool) {
	s, ok := r[col].(String)
	return string(s), ok
}

// IsNull reports whether the column is absent or NULL.
func (r Record) IsNull(col string) bool {
	v, ok := r[col]
	if !ok {
		return true
	}
	_, isNull := v.(Null)
	return isNull
}

// FromDriver converts a value scanned by database/sql into a Value.
// SQLite drivers report INTEGER as int64, TEXT as string or []byte
// depending on declared type, BLOB as []byte and NULL as nil.
func FromDriver(src any) (Value, error) {
	switch val := src.(type) {
	case nil:
		return Null{}, nil
	case int64:
		return Int(val), nil
	case int:
		return Int(val), nil
	case bool:
		return Bool(val), nil
	case string:
		return String(val), nil
	case []byte:
		return Bytes(bytes.Clone(val)), nil
	case float64:
		return nil, fmt.Errorf("unexpected REAL column value %v", val)
	default:
		return nil, fmt.Errorf("unsupported driver value type %T", src)
	}
}

// ToDriver converts a Value into a database/sql parameter.
func ToDriver(v Value) (any, error) {
	switch val := v.(type) {
	case nil, Null:
		return nil, nil
	case String:
		return string(val), nil
	case Int:
		return int64(val), nil
	case Bool:
		if val {
			return int64(1), nil
		}
		return int64(0), nil
	case Bytes:
		return []byte(val), nil
	default:
		return nil, fmt.Errorf("unsupported Value type for SQL parameter: %T", v)
	}
}

// bytesEnvelope is the JSON shape for Bytes so blobs survive JSON
// transport unambiguously next to plain strings.
type bytesEnvelope struct {
	Base64 string `json:"base64"`
}

// MarshalValue marshals a Value to JSON bytes.
func MarshalValue(v Value) ([]byte, error) {
	switch val := v.(type) {
	case nil, Null:
		return []byte("null"), nil
	case String:
		return json.Marshal(string(val))
	case Int:
		return json.Marshal(int64(val))
	case Bool:
		return json.Marshal(bool(val))
	case Bytes:
		return json.Marshal(bytesEnvelope{Base64: base64.StdEncoding.EncodeToString(val)})
	default:
		return nil, fmt.Errorf("unknown Value type: %T", v)
	}
}

// MarshalJSON implements json.Marshaler with sorted keys.
func (r Record) MarshalJSON() ([]byte, error) {
	return marshalObject(map[string]Value(r))
}

// MarshalJSON implements json.Marshaler with sorted keys.
func (v Values) MarshalJSON() ([]byte, error) {
	return marshalObject(map[string]Value(v))
}

func marshalObject(obj map[string]Value) ([]byte, error) {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		keyBytes, err := json.Marshal(k)
		if err != nil {
			return nil, fmt.Errorf("marshal key %q: %w", k, err)
		}
		buf.Write(keyBytes)
		buf.WriteByte(':')

		valBytes, err := MarshalValue(obj[k])
		if err != nil {
			return nil, fmt.Errorf("marshal value for key %q: %w", k, err)
		}
		buf.Write(valBytes)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON implements json.Unmarshaler for Values.
// Numbers must be integral; {"base64": "..."} objects decode to Bytes.
func (v *Values) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return err
	}

	out := make(Values, len(raw))
	for k, elem := range raw {
		val, err := convertJSON(elem)
		if err != nil {
			return fmt.Errorf("column %q: %w", k, err)
		}
		out[k] = val
	}
	*v = out
	return nil
}

// ValueFromAny converts a decoded YAML/JSON scalar into a Value.
func ValueFromAny(v any) (Value, error) {
	return convertJSON(v)
}

func convertJSON(v any) (Value, error) {
	switch val := v.(type) {
	case nil:
		return Null{}, nil
	case bool:
		return Bool(val), nil
	case string:
		return String(val), nil
	case int:
		return Int(val), nil
	case int64:
		return Int(val), nil
	case uint64:
		return Int(int64(val)), nil
	case json.Number:
		s := string(val)
		if strings.ContainsAny(s, ".eE") {
			return nil, fmt.Errorf("fractional numbers are not column values: %s", val)
		}
		n, err := val.Int64()
		if err != nil {
			return nil, fmt.Errorf("number out of int64 range: %s", val)
		}
		return Int(n), nil
	case float64:
		if val != float64(int64(val)) {
			return nil, fmt.Errorf("fractional numbers are not column values: %v", val)
		}
		return Int(int64(val)), nil
	case map[string]any:
		enc, ok := val["base64"].(string)
		if !ok || len(val) != 1 {
			return nil, fmt.Errorf(`objects must be {"base64": "..."}`)
		}
		b, err := base64.StdEncoding.DecodeString(enc)
		if err != nil {
			return nil, fmt.Errorf("decode base64: %w", err)
		}
		return Bytes(b), nil
	case []byte:
		return Bytes(val), nil
	default:
		return nil, fmt.Errorf("unsupported type: %T", v)
	}
}
