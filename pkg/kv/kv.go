// Package kv provides a typed key-value container for the schema-less
// JSONB columns (context metrics, event payloads, agent config). Values
// are a tagged union of int64, float64, string, and bool, which keeps
// type safety at read sites while marshalling to plain JSON values.
package kv

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sort"
)

// Kind tags the concrete type held by a Value.
type Kind int

const (
	KindNull Kind = iota
	KindInt
	KindFloat
	KindString
	KindBool
)

// Value is a tagged union of the JSON scalar types.
type Value struct {
	kind Kind
	i    int64
	f    float64
	s    string
	b    bool
}

// Int creates an integer value.
func Int(v int64) Value { return Value{kind: KindInt, i: v} }

// Float creates a float value.
func Float(v float64) Value { return Value{kind: KindFloat, f: v} }

// String creates a string value.
func String(v string) Value { return Value{kind: KindString, s: v} }

// Bool creates a boolean value.
func Bool(v bool) Value { return Value{kind: KindBool, b: v} }

// Kind returns the tag of the value.
func (v Value) Kind() Kind { return v.kind }

// IsZero reports whether the value is the null value.
func (v Value) IsZero() bool { return v.kind == KindNull }

// Int returns the value as int64. Float values are truncated.
func (v Value) Int() int64 {
	switch v.kind {
	case KindInt:
		return v.i
	case KindFloat:
		return int64(v.f)
	default:
		return 0
	}
}

// Float returns the value as float64.
func (v Value) Float() float64 {
	switch v.kind {
	case KindFloat:
		return v.f
	case KindInt:
		return float64(v.i)
	default:
		return 0
	}
}

// String returns the string value, or "" for non-strings.
func (v Value) String() string {
	if v.kind == KindString {
		return v.s
	}
	return ""
}

// Bool returns the boolean value, or false for non-booleans.
func (v Value) Bool() bool {
	if v.kind == KindBool {
		return v.b
	}
	return false
}

// Equal reports value equality. Numeric values compare across int/float.
func (v Value) Equal(o Value) bool {
	if (v.kind == KindInt || v.kind == KindFloat) && (o.kind == KindInt || o.kind == KindFloat) {
		return v.Float() == o.Float()
	}
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindString:
		return v.s == o.s
	case KindBool:
		return v.b == o.b
	default:
		return true
	}
}

// MarshalJSON encodes the value as a plain JSON scalar.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindInt:
		return json.Marshal(v.i)
	case KindFloat:
		return json.Marshal(v.f)
	case KindString:
		return json.Marshal(v.s)
	case KindBool:
		return json.Marshal(v.b)
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON decodes a JSON scalar, sniffing the type. Whole numbers
// decode as int64 so counters survive a round trip.
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	switch t := raw.(type) {
	case nil:
		*v = Value{}
	case json.Number:
		if i, err := t.Int64(); err == nil {
			*v = Int(i)
			return nil
		}
		f, err := t.Float64()
		if err != nil {
			return fmt.Errorf("invalid number %q: %w", t.String(), err)
		}
		*v = Float(f)
	case string:
		*v = String(t)
	case bool:
		*v = Bool(t)
	default:
		return fmt.Errorf("unsupported value type %T", raw)
	}
	return nil
}

// Map is a string-keyed collection of typed values. The zero value is
// not usable; call New or let UnmarshalJSON allocate.
type Map map[string]Value

// New creates an empty Map.
func New() Map { return make(Map) }

// Get returns the value for key and whether it was present.
func (m Map) Get(key string) (Value, bool) {
	v, ok := m[key]
	return v, ok
}

// GetInt returns the integer value for key, or 0 when absent.
func (m Map) GetInt(key string) int64 { return m[key].Int() }

// GetString returns the string value for key, or "" when absent.
func (m Map) GetString(key string) string { return m[key].String() }

// Set stores a value.
func (m Map) Set(key string, v Value) { m[key] = v }

// SetIfAbsent stores v only when key has no value yet. Returns whether
// the value was stored.
func (m Map) SetIfAbsent(key string, v Value) bool {
	if existing, ok := m[key]; ok && !existing.IsZero() {
		return false
	}
	m[key] = v
	return true
}

// Incr adds delta to the integer counter at key, creating it at delta.
func (m Map) Incr(key string, delta int64) int64 {
	next := m[key].Int() + delta
	m[key] = Int(next)
	return next
}

// Keys returns the sorted keys, for deterministic iteration.
func (m Map) Keys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Clone returns a shallow copy. Values are immutable so a shallow copy
// is a full copy.
func (m Map) Clone() Map {
	out := make(Map, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// ToAny converts the map to map[string]any for JSON-shaped consumers
// (the external HTTP runtime body, LLM prompt state).
func (m Map) ToAny() map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		switch v.kind {
		case KindInt:
			out[k] = v.i
		case KindFloat:
			out[k] = v.f
		case KindString:
			out[k] = v.s
		case KindBool:
			out[k] = v.b
		default:
			out[k] = nil
		}
	}
	return out
}

// FromAny converts a decoded JSON object into a Map. Unsupported value
// types (nested objects, arrays) are dropped.
func FromAny(in map[string]any) Map {
	out := make(Map, len(in))
	for k, raw := range in {
		switch t := raw.(type) {
		case int:
			out[k] = Int(int64(t))
		case int64:
			out[k] = Int(t)
		case float64:
			if t == math.Trunc(t) && math.Abs(t) < 1<<53 {
				out[k] = Int(int64(t))
			} else {
				out[k] = Float(t)
			}
		case json.Number:
			if i, err := t.Int64(); err == nil {
				out[k] = Int(i)
			} else if f, err := t.Float64(); err == nil {
				out[k] = Float(f)
			}
		case string:
			out[k] = String(t)
		case bool:
			out[k] = Bool(t)
		}
	}
	return out
}
