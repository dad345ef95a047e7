// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"math"
	"reflect"

	"github.com/AleutianAI/workspaced/pkg/jsonvalue"
)

// =============================================================================
// TYPED ACCESS
// =============================================================================

// Lookup returns component/key coerced to T.
//
// Description:
//
//	Returns def when the key is absent or holds null. Coercion is strict:
//	numbers are never parsed from strings and non-integral numbers never
//	satisfy an integer type. Supported targets are string, bool, int,
//	int64, float64, []string, []any, map[string]any and any; other types
//	must match the stored value's dynamic type exactly.
//
// Inputs:
//
//	c - Configuration to read.
//	component, key - Entry to read.
//	def - Value returned when the entry is absent.
//
// Outputs:
//
//	T - The coerced value or def.
//	error - Wraps ErrTypeMismatch when the stored value has the wrong shape.
//
// Example:
//
//	timeout, err := config.Lookup(cfg, "lint", "timeoutSeconds", 30)
func Lookup[T any](c *Configuration, component, key string, def T) (T, error) {
	v, ok := c.Get(component, key)
	if !ok || v == nil {
		return def, nil
	}
	out, ok := coerce[T](v)
	if !ok {
		var zero T
		return zero, mismatch(component, key, reflect.TypeFor[T]().String(), v)
	}
	return out, nil
}

func coerce[T any](v any) (T, bool) {
	var out T
	switch p := any(&out).(type) {
	case *string:
		s, ok := jsonvalue.AsString(v)
		*p = s
		return out, ok
	case *bool:
		b, ok := jsonvalue.AsBool(v)
		*p = b
		return out, ok
	case *int:
		i, ok := jsonvalue.AsInt(v)
		if !ok || i < math.MinInt || i > math.MaxInt {
			return out, false
		}
		*p = int(i)
		return out, true
	case *int64:
		i, ok := jsonvalue.AsInt(v)
		*p = i
		return out, ok
	case *float64:
		f, ok := jsonvalue.AsFloat(v)
		*p = f
		return out, ok
	case *[]string:
		s, ok := jsonvalue.AsStrings(v)
		*p = s
		return out, ok
	case *[]any:
		a, ok := jsonvalue.AsArray(v)
		*p = a
		return out, ok
	case *map[string]any:
		m, ok := jsonvalue.AsObject(v)
		*p = m
		return out, ok
	case *any:
		*p = v
		return out, true
	}
	t, ok := v.(T)
	return t, ok
}

// GetString returns component/key as a string, or def when absent.
func (c *Configuration) GetString(component, key, def string) (string, error) {
	return Lookup(c, component, key, def)
}

// GetInt returns component/key as an int, or def when absent.
func (c *Configuration) GetInt(component, key string, def int) (int, error) {
	return Lookup(c, component, key, def)
}

// GetFloat returns component/key as a float64, or def when absent.
func (c *Configuration) GetFloat(component, key string, def float64) (float64, error) {
	return Lookup(c, component, key, def)
}

// GetBool returns component/key as a bool, or def when absent.
func (c *Configuration) GetBool(component, key string, def bool) (bool, error) {
	return Lookup(c, component, key, def)
}

// GetStrings returns component/key as a []string, or def when absent.
func (c *Configuration) GetStrings(component, key string, def []string) ([]string, error) {
	return Lookup(c, component, key, def)
}

// GetObject returns component/key as a map[string]any, or def when absent.
func (c *Configuration) GetObject(component, key string, def map[string]any) (map[string]any, error) {
	return Lookup(c, component, key, def)
}
