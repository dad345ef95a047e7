// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package dispatch

import (
	"github.com/AleutianAI/workspaced/pkg/jsonvalue"
)

// Args are the positional arguments passed to a Func, one per declared
// parameter with defaults already applied.
//
// Accessors return the zero value when the index is out of range or the
// value does not have the requested shape. Resolution has already checked
// shapes against the declared types, so a Func normally reads its
// arguments without further checks.
type Args struct {
	values []any
	params []Param
}

// NewArgs builds Args from values, for calling a Func directly in tests.
func NewArgs(values ...any) Args {
	return Args{values: values}
}

// Len returns the number of arguments.
func (a Args) Len() int {
	return len(a.values)
}

// Value returns argument i unconverted.
func (a Args) Value(i int) any {
	if i < 0 || i >= len(a.values) {
		return nil
	}
	return a.values[i]
}

// Name returns the declared name of parameter i, or "" when unknown.
func (a Args) Name(i int) string {
	if i < 0 || i >= len(a.params) {
		return ""
	}
	return a.params[i].Name
}

// IsNull reports whether argument i is null or missing.
func (a Args) IsNull(i int) bool {
	return jsonvalue.KindOf(a.Value(i)) == jsonvalue.KindNull
}

// String returns argument i as a string.
func (a Args) String(i int) string {
	s, _ := jsonvalue.AsString(a.Value(i))
	return s
}

// Int returns argument i as an int.
func (a Args) Int(i int) int {
	n, _ := jsonvalue.AsInt(a.Value(i))
	return int(n)
}

// Float returns argument i as a float64.
func (a Args) Float(i int) float64 {
	f, _ := jsonvalue.AsFloat(a.Value(i))
	return f
}

// Bool returns argument i as a bool.
func (a Args) Bool(i int) bool {
	b, _ := jsonvalue.AsBool(a.Value(i))
	return b
}

// Array returns argument i as a []any.
func (a Args) Array(i int) []any {
	arr, _ := jsonvalue.AsArray(a.Value(i))
	return arr
}

// Strings returns argument i as a []string.
func (a Args) Strings(i int) []string {
	s, _ := jsonvalue.AsStrings(a.Value(i))
	return s
}

// Object returns argument i as a map[string]any.
func (a Args) Object(i int) map[string]any {
	m, _ := jsonvalue.AsObject(a.Value(i))
	return m
}
