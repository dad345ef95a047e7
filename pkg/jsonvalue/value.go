// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package jsonvalue classifies, copies, and coerces JSON-like values.
//
// A JSON-like value is nil, a bool, a Go number or json.Number, a string,
// a slice of JSON-like values, or a map with string keys. Values decoded by
// encoding/json, gopkg.in/yaml.v3, or built directly in Go all qualify.
//
// Coercion is strict: a string is never parsed as a number and a
// non-integral number is never truncated to an integer.
package jsonvalue

import (
	"encoding/json"
	"math"
	"reflect"
)

// =============================================================================
// KIND
// =============================================================================

// Kind is the structural type of a JSON-like value.
type Kind int

const (
	// KindInvalid is any value that is not JSON-like (funcs, channels, ...).
	KindInvalid Kind = iota

	// KindNull is nil.
	KindNull

	// KindBool is a boolean.
	KindBool

	// KindInt is an integral number held in an integer type or an
	// integral json.Number.
	KindInt

	// KindFloat is a number held in a floating point type or a
	// non-integral json.Number.
	KindFloat

	// KindString is a string.
	KindString

	// KindArray is a slice or array.
	KindArray

	// KindObject is a map with string keys.
	KindObject
)

// String returns the lower-case kind name.
func (k Kind) String() string {
	names := []string{"invalid", "null", "bool", "int", "float", "string", "array", "object"}
	if int(k) >= 0 && int(k) < len(names) {
		return names[k]
	}
	return "unknown"
}

// IsNumber reports whether the kind is KindInt or KindFloat.
func (k Kind) IsNumber() bool {
	return k == KindInt || k == KindFloat
}

// KindOf classifies v.
func KindOf(v any) Kind {
	switch t := v.(type) {
	case nil:
		return KindNull
	case bool:
		return KindBool
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return KindInt
	case float32, float64:
		return KindFloat
	case json.Number:
		if _, err := t.Int64(); err == nil {
			return KindInt
		}
		if _, err := t.Float64(); err == nil {
			return KindFloat
		}
		return KindInvalid
	case string:
		return KindString
	case []any:
		return KindArray
	case map[string]any:
		return KindObject
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.IsNil() {
			return KindNull
		}
		return KindArray
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return KindInvalid
		}
		if rv.IsNil() {
			return KindNull
		}
		return KindObject
	case reflect.Pointer:
		if rv.IsNil() {
			return KindNull
		}
		return KindOf(rv.Elem().Interface())
	}
	return KindInvalid
}

// KindsOf classifies every element of vs.
func KindsOf(vs []any) []Kind {
	kinds := make([]Kind, len(vs))
	for i, v := range vs {
		kinds[i] = KindOf(v)
	}
	return kinds
}

// =============================================================================
// COERCION
// =============================================================================

// AsString returns v as a string when it is one.
func AsString(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

// AsBool returns v as a bool when it is one.
func AsBool(v any) (bool, bool) {
	b, ok := v.(bool)
	return b, ok
}

// AsInt returns v as an int64 when it holds an integral number.
//
// Floating point values are accepted only when integral, since
// encoding/json decodes every number into float64.
func AsInt(v any) (int64, bool) {
	switch t := v.(type) {
	case int:
		return int64(t), true
	case int8:
		return int64(t), true
	case int16:
		return int64(t), true
	case int32:
		return int64(t), true
	case int64:
		return t, true
	case uint:
		return int64(t), true
	case uint8:
		return int64(t), true
	case uint16:
		return int64(t), true
	case uint32:
		return int64(t), true
	case uint64:
		if t > math.MaxInt64 {
			return 0, false
		}
		return int64(t), true
	case float32:
		return floatToInt(float64(t))
	case float64:
		return floatToInt(t)
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i, true
		}
		if f, err := t.Float64(); err == nil {
			return floatToInt(f)
		}
	}
	return 0, false
}

func floatToInt(f float64) (int64, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, false
	}
	if f < math.MinInt64 || f > math.MaxInt64 {
		return 0, false
	}
	return int64(f), true
}

// AsFloat returns v as a float64 when it holds any number.
func AsFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	}
	if i, ok := AsInt(v); ok {
		return float64(i), true
	}
	return 0, false
}

// AsArray returns v as a []any when it is a slice or array.
//
// Typed slices such as []string are converted element by element.
func AsArray(v any) ([]any, bool) {
	if a, ok := v.([]any); ok {
		return a, true
	}
	rv := indirect(reflect.ValueOf(v))
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

// AsStrings returns v as a []string when every element is a string.
func AsStrings(v any) ([]string, bool) {
	if s, ok := v.([]string); ok {
		return s, true
	}
	arr, ok := AsArray(v)
	if !ok {
		return nil, false
	}
	out := make([]string, len(arr))
	for i, item := range arr {
		s, ok := item.(string)
		if !ok {
			return nil, false
		}
		out[i] = s
	}
	return out, true
}

// AsObject returns v as a map[string]any when it is a string-keyed map.
func AsObject(v any) (map[string]any, bool) {
	if m, ok := v.(map[string]any); ok {
		return m, true
	}
	rv := indirect(reflect.ValueOf(v))
	if rv.Kind() != reflect.Map || rv.Type().Key().Kind() != reflect.String {
		return nil, false
	}
	out := make(map[string]any, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		out[iter.Key().String()] = iter.Value().Interface()
	}
	return out, true
}

// indirect follows non-nil pointers, matching KindOf.
func indirect(rv reflect.Value) reflect.Value {
	for rv.Kind() == reflect.Pointer && !rv.IsNil() {
		rv = rv.Elem()
	}
	return rv
}

// =============================================================================
// COPYING
// =============================================================================

// DeepCopy returns a copy of v sharing no mutable state with it.
//
// Objects and arrays are copied recursively into map[string]any and []any.
// Scalars are returned as-is.
func DeepCopy(v any) any {
	switch KindOf(v) {
	case KindObject:
		m, _ := AsObject(v)
		return CopyObject(m)
	case KindArray:
		arr, _ := AsArray(v)
		out := make([]any, len(arr))
		for i, item := range arr {
			out[i] = DeepCopy(item)
		}
		return out
	default:
		return v
	}
}

// CopyObject deep copies a string-keyed map. A nil map yields an empty map.
func CopyObject(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = DeepCopy(v)
	}
	return out
}
