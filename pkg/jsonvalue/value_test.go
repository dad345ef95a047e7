// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package jsonvalue

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want Kind
	}{
		{"nil", nil, KindNull},
		{"bool", true, KindBool},
		{"int", 3, KindInt},
		{"int64", int64(3), KindInt},
		{"float64", 3.0, KindFloat},
		{"json int", json.Number("12"), KindInt},
		{"json float", json.Number("1.5"), KindFloat},
		{"string", "x", KindString},
		{"any slice", []any{1}, KindArray},
		{"string slice", []string{"a"}, KindArray},
		{"nil slice", []string(nil), KindNull},
		{"object", map[string]any{"a": 1}, KindObject},
		{"typed object", map[string]int{"a": 1}, KindObject},
		{"int keyed map", map[int]string{1: "a"}, KindInvalid},
		{"func", func() {}, KindInvalid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.in))
		})
	}
}

func TestAsInt_RejectsFractions(t *testing.T) {
	i, ok := AsInt(float64(4))
	require.True(t, ok)
	assert.Equal(t, int64(4), i)

	_, ok = AsInt(4.5)
	assert.False(t, ok)

	_, ok = AsInt("4")
	assert.False(t, ok, "strings are never parsed")

	i, ok = AsInt(json.Number("7"))
	require.True(t, ok)
	assert.Equal(t, int64(7), i)
}

func TestAsStrings(t *testing.T) {
	s, ok := AsStrings([]any{"a", "b"})
	require.True(t, ok)
	assert.Equal(t, []string{"a", "b"}, s)

	_, ok = AsStrings([]any{"a", 1})
	assert.False(t, ok)
}

func TestDeepCopy_IsDecoupled(t *testing.T) {
	orig := map[string]any{
		"list": []any{"a", map[string]any{"k": 1}},
		"obj":  map[string]any{"x": 2},
	}
	cp := DeepCopy(orig).(map[string]any)

	orig["obj"].(map[string]any)["x"] = 99
	orig["list"].([]any)[1].(map[string]any)["k"] = 99

	assert.Equal(t, 2, cp["obj"].(map[string]any)["x"])
	assert.Equal(t, 1, cp["list"].([]any)[1].(map[string]any)["k"])
}
