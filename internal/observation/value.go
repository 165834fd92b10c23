package observation

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// Kind tags the variant held by a Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindFloat
	KindInt
	KindString
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindFloat:
		return "float"
	case KindInt:
		return "int"
	case KindString:
		return "string"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// Value is a single normalized reading. The zero Value is null.
type Value struct {
	kind Kind
	f    float64
	i    int64
	s    string
}

func Null() Value            { return Value{} }
func Float(f float64) Value  { return Value{kind: KindFloat, f: f} }
func Int(i int64) Value      { return Value{kind: KindInt, i: i} }
func String(s string) Value  { return Value{kind: KindString, s: s} }
func (v Value) Kind() Kind   { return v.kind }
func (v Value) IsNull() bool { return v.kind == KindNull }

// Float64 returns the value as a float for either numeric kind.
func (v Value) Float64() (float64, bool) {
	switch v.kind {
	case KindFloat:
		return v.f, true
	case KindInt:
		return float64(v.i), true
	}
	return 0, false
}

// Int64 returns the value as an integer. Floats convert only when integral.
func (v Value) Int64() (int64, bool) {
	switch v.kind {
	case KindInt:
		return v.i, true
	case KindFloat:
		if v.f == math.Trunc(v.f) && !math.IsInf(v.f, 0) {
			return int64(v.f), true
		}
	}
	return 0, false
}

// Str returns the string variant.
func (v Value) Str() (string, bool) {
	if v.kind == KindString {
		return v.s, true
	}
	return "", false
}

// Interface unwraps v into nil, float64, int64 or string.
func (v Value) Interface() any {
	switch v.kind {
	case KindFloat:
		return v.f
	case KindInt:
		return v.i
	case KindString:
		return v.s
	}
	return nil
}

func (v Value) String() string {
	switch v.kind {
	case KindFloat:
		return strconv.FormatFloat(v.f, 'f', -1, 64)
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindString:
		return v.s
	}
	return "null"
}

func (v Value) MarshalJSON() ([]byte, error) {
	if v.kind == KindFloat && (math.IsNaN(v.f) || math.IsInf(v.f, 0)) {
		return []byte("null"), nil
	}
	return json.Marshal(v.Interface())
}

func (v *Value) UnmarshalJSON(data []byte) error {
	var raw any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	if n, ok := raw.(json.Number); ok {
		if i, err := n.Int64(); err == nil {
			*v = Int(i)
			return nil
		}
	}
	parsed, ok := coerce(raw, ShapeAny)
	if !ok {
		return fmt.Errorf("unsupported value %s", string(data))
	}
	*v = parsed
	return nil
}

// coerce converts a decoded JSON value into the given shape. It reports false
// when the value cannot represent the shape, which callers treat as absent.
func coerce(raw any, shape Shape) (Value, bool) {
	if raw == nil {
		return Null(), true
	}

	switch shape {
	case ShapeFloat:
		f, ok := toFloat(raw)
		if !ok {
			return Value{}, false
		}
		return Float(f), true
	case ShapeInt:
		i, ok := toInt(raw)
		if !ok {
			return Value{}, false
		}
		return Int(i), true
	case ShapeString:
		switch t := raw.(type) {
		case string:
			return String(t), true
		case json.Number:
			return String(t.String()), true
		}
		return Value{}, false
	default:
		if s, ok := raw.(string); ok {
			return String(s), true
		}
		f, ok := toFloat(raw)
		if !ok {
			return Value{}, false
		}
		return Float(f), true
	}
}

func toFloat(raw any) (float64, bool) {
	switch t := raw.(type) {
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	case float64:
		return t, true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case bool:
		if t {
			return 1, true
		}
		return 0, true
	case string:
		f, err := strconv.ParseFloat(t, 64)
		return f, err == nil
	}
	return 0, false
}

func toInt(raw any) (int64, bool) {
	switch t := raw.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i, true
		}
		f, err := t.Float64()
		if err != nil || f != math.Trunc(f) {
			return 0, false
		}
		return int64(f), true
	case float64:
		if t != math.Trunc(t) {
			return 0, false
		}
		return int64(t), true
	case int:
		return int64(t), true
	case int64:
		return t, true
	case bool:
		if t {
			return 1, true
		}
		return 0, true
	case string:
		i, err := strconv.ParseInt(t, 10, 64)
		return i, err == nil
	}
	return 0, false
}
