package algorithm

import (
	"math"
	"reflect"
)

// Values maps field keys to their current values. Values decoded from YAML or
// JSON hold bool, string, int or float64 scalars and []any for multi-selects.
type Values map[string]any

// Clone returns a shallow copy of v with multi-select slices copied.
func (v Values) Clone() Values {
	if v == nil {
		return nil
	}
	out := make(Values, len(v))
	for k, val := range v {
		if s, ok := val.([]any); ok {
			val = append([]any(nil), s...)
		}
		out[k] = val
	}
	return out
}

// Merge returns a copy of v with every entry of patch applied on top.
func (v Values) Merge(patch Values) Values {
	out := v.Clone()
	if out == nil {
		out = make(Values, len(patch))
	}
	for k, val := range patch {
		out[k] = val
	}
	return out
}

// Number converts any Go numeric value to float64.
func Number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	}
	return 0, false
}

// Equal is strict equality between two field values. Numbers compare by value
// regardless of their Go type, so 3 and 3.0 are equal; anything else must
// match in type and content.
func Equal(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if x, ok := Number(a); ok {
		y, ok := Number(b)
		return ok && x == y
	}
	switch x := a.(type) {
	case string:
		y, ok := b.(string)
		return ok && x == y
	case bool:
		y, ok := b.(bool)
		return ok && x == y
	}
	return reflect.DeepEqual(a, b)
}

// Truthy mirrors loose boolean coercion: nil, false, zero, NaN and the empty
// string are falsy, everything else (including empty lists) is truthy.
func Truthy(v any) bool {
	if v == nil {
		return false
	}
	if n, ok := Number(v); ok {
		return n != 0 && !math.IsNaN(n)
	}
	switch x := v.(type) {
	case bool:
		return x
	case string:
		return x != ""
	}
	return true
}

// isEmpty reports whether v counts as "not provided" for a required rule.
func isEmpty(v any) bool {
	if v == nil {
		return true
	}
	switch x := v.(type) {
	case string:
		return x == ""
	case []any:
		return len(x) == 0
	case []string:
		return len(x) == 0
	}
	return false
}

// magnitude is the number a min/max rule compares: the value itself for
// numbers, the length for strings and lists.
func magnitude(v any) (float64, bool) {
	if n, ok := Number(v); ok {
		return n, true
	}
	switch x := v.(type) {
	case string:
		return float64(len(x)), true
	case []any:
		return float64(len(x)), true
	case []string:
		return float64(len(x)), true
	}
	return 0, false
}

// members flattens a list value for membership operators.
func members(v any) []any {
	switch x := v.(type) {
	case []any:
		return x
	case []string:
		out := make([]any, len(x))
		for i, s := range x {
			out[i] = s
		}
		return out
	}
	return nil
}

func contains(list []any, v any) bool {
	for _, item := range list {
		if Equal(item, v) {
			return true
		}
	}
	return false
}
