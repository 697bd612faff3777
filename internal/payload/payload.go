// Package payload gives typed, tolerant access to a loosely-typed JSON
// command document.
//
// Accessors come in two flavors. Required accessors (String, Int64, Float,
// Bool) return a *FieldError when the key is absent or holds a value that
// cannot be coerced. Optional accessors (Opt*) never fail: anything absent or
// malformed reads as "not provided".
package payload

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/bytedance/sonic"
)

var (
	// ErrMissing reports a required key that is absent or null.
	ErrMissing = errors.New("missing")
	// ErrWrongType reports a value that cannot be coerced to the requested type.
	ErrWrongType = errors.New("wrong type")
	// ErrNotObject is returned by Decode when the document is not a JSON object.
	ErrNotObject = errors.New("payload is not a JSON object")
)

// FieldError ties an extraction failure to the key that caused it.
type FieldError struct {
	Key string
	Err error
}

func (e *FieldError) Error() string { return fmt.Sprintf("field %q: %v", e.Key, e.Err) }

func (e *FieldError) Unwrap() error { return e.Err }

// Object is a decoded JSON object. Numbers are held as json.Number.
type Object map[string]any

var decoder = sonic.Config{UseNumber: true}.Froze()

// Decode parses a request document.
func Decode(data []byte) (Object, error) {
	var v any
	if err := decoder.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, ErrNotObject
	}
	return Object(m), nil
}

// Has reports whether key is present, even with a null value.
func (o Object) Has(key string) bool {
	_, ok := o[key]
	return ok
}

func (o Object) lookup(key string) (any, bool) {
	v, ok := o[key]
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

// String returns a required value as a string. Numbers and booleans are
// formatted; objects and arrays are rejected.
func (o Object) String(key string) (string, error) {
	v, ok := o.lookup(key)
	if !ok {
		return "", &FieldError{Key: key, Err: ErrMissing}
	}
	s, ok := scalarString(v)
	if !ok {
		return "", &FieldError{Key: key, Err: ErrWrongType}
	}
	return s, nil
}

// OptString returns nil when the key is absent, not a scalar, or blank.
func (o Object) OptString(key string) *string {
	s, err := o.String(key)
	if err != nil || strings.TrimSpace(s) == "" {
		return nil
	}
	return &s
}

// Int64 returns a required integer. Fractions are truncated and numeric
// strings are accepted.
func (o Object) Int64(key string) (int64, error) {
	v, ok := o.lookup(key)
	if !ok {
		return 0, &FieldError{Key: key, Err: ErrMissing}
	}
	n, ok := toInt64(v)
	if !ok {
		return 0, &FieldError{Key: key, Err: ErrWrongType}
	}
	return n, nil
}

// OptInt64 returns def when the key is absent or not numeric.
func (o Object) OptInt64(key string, def int64) int64 {
	n, err := o.Int64(key)
	if err != nil {
		return def
	}
	return n
}

// OptInt is OptInt64 narrowed to int.
func (o Object) OptInt(key string, def int) int {
	return int(o.OptInt64(key, int64(def)))
}

// Float returns a required floating point number.
func (o Object) Float(key string) (float64, error) {
	v, ok := o.lookup(key)
	if !ok {
		return 0, &FieldError{Key: key, Err: ErrMissing}
	}
	f, ok := toFloat64(v)
	if !ok {
		return 0, &FieldError{Key: key, Err: ErrWrongType}
	}
	return f, nil
}

// absentFloat marks "not provided" for amounts that cannot be negative.
const absentFloat = -1.0

func (o Object) optFloat(key string, fallback float64) float64 {
	f, err := o.Float(key)
	if err != nil {
		return fallback
	}
	return f
}

// OptFloat returns nil when the amount is absent, malformed, or equal to the
// internal absence marker. An explicit zero is returned as zero.
func (o Object) OptFloat(key string) *float64 {
	f := o.optFloat(key, absentFloat)
	if f == absentFloat {
		return nil
	}
	return &f
}

// Bool returns a required boolean. The strings "true" and "false" are
// accepted in any case.
func (o Object) Bool(key string) (bool, error) {
	v, ok := o.lookup(key)
	if !ok {
		return false, &FieldError{Key: key, Err: ErrMissing}
	}
	switch b := v.(type) {
	case bool:
		return b, nil
	case string:
		switch strings.ToLower(b) {
		case "true":
			return true, nil
		case "false":
			return false, nil
		}
	}
	return false, &FieldError{Key: key, Err: ErrWrongType}
}

// OptBool returns nil when the key is absent or not a boolean.
func (o Object) OptBool(key string) *bool {
	b, err := o.Bool(key)
	if err != nil {
		return nil
	}
	return &b
}

// BoolOr returns def when the key is absent or not a boolean.
func (o Object) BoolOr(key string, def bool) bool {
	if b := o.OptBool(key); b != nil {
		return *b
	}
	return def
}

// Object returns a nested object, or nil.
func (o Object) Object(key string) Object {
	switch v := o[key].(type) {
	case map[string]any:
		return Object(v)
	case Object:
		return v
	}
	return nil
}

// Array returns a nested array, or nil.
func (o Object) Array(key string) []any {
	if v, ok := o[key].([]any); ok {
		return v
	}
	return nil
}

// StringMap reads a nested object as string pairs. Scalar values are
// stringified; nulls, objects and arrays are dropped. Returns nil when the
// key does not hold an object.
func (o Object) StringMap(key string) map[string]string {
	obj := o.Object(key)
	if obj == nil {
		return nil
	}
	out := make(map[string]string, len(obj))
	for k, v := range obj {
		if s, ok := scalarString(v); ok {
			out[k] = s
		}
	}
	return out
}

// StringList reads a nested array as strings, dropping non-scalar items.
// Returns nil when the key does not hold an array.
func (o Object) StringList(key string) []string {
	arr := o.Array(key)
	if arr == nil {
		return nil
	}
	out := make([]string, 0, len(arr))
	for _, v := range arr {
		if s, ok := scalarString(v); ok {
			out = append(out, s)
		}
	}
	return out
}

// NestedStringMap reads a two-level object (outer name -> option -> value).
// Outer entries that are not objects are skipped. Inner scalars are
// stringified and inner objects or arrays are kept as their JSON text.
// Returns nil when the key does not hold an object.
func (o Object) NestedStringMap(key string) map[string]map[string]string {
	obj := o.Object(key)
	if obj == nil {
		return nil
	}
	out := make(map[string]map[string]string, len(obj))
	for name := range obj {
		inner := obj.Object(name)
		if inner == nil {
			continue
		}
		opts := make(map[string]string, len(inner))
		for k, v := range inner {
			if v == nil {
				continue
			}
			if s, ok := scalarString(v); ok {
				opts[k] = s
				continue
			}
			if s, err := sonic.MarshalString(v); err == nil {
				opts[k] = s
			}
		}
		out[name] = opts
	}
	return out
}

func scalarString(v any) (string, bool) {
	switch x := v.(type) {
	case string:
		return x, true
	case json.Number:
		return x.String(), true
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), true
	case int:
		return strconv.Itoa(x), true
	case int64:
		return strconv.FormatInt(x, 10), true
	case bool:
		return strconv.FormatBool(x), true
	}
	return "", false
}

func toInt64(v any) (int64, bool) {
	switch x := v.(type) {
	case json.Number:
		if n, err := x.Int64(); err == nil {
			return n, true
		}
		if f, err := x.Float64(); err == nil {
			return int64(f), true
		}
	case float64:
		return int64(x), true
	case int:
		return int64(x), true
	case int64:
		return x, true
	case string:
		s := strings.TrimSpace(x)
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n, true
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return int64(f), true
		}
	}
	return 0, false
}

func toFloat64(v any) (float64, bool) {
	switch x := v.(type) {
	case json.Number:
		if f, err := x.Float64(); err == nil {
			return f, true
		}
	case float64:
		return x, true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(x), 64); err == nil {
			return f, true
		}
	}
	return 0, false
}
