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
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadBase_FirstWriteWins(t *testing.T) {
	inst := FromDocument(Document{"a": {"x": 1}})
	global := FromDocument(Document{
		"a": {"x": 2, "y": 3},
		"b": {"z": 4},
	})

	inst.LoadBase(global)

	assert.Equal(t, Document{
		"a": {"x": 1, "y": 3},
		"b": {"z": 4},
	}, inst.Document())
	assert.False(t, inst.Inherited("a", "x"))
	assert.True(t, inst.Inherited("a", "y"))
	assert.True(t, inst.Inherited("b", "z"))
}

func TestLoadBase_IsolatedFromLaterGlobalMutation(t *testing.T) {
	global := FromDocument(Document{
		"a": {"x": 2, "y": 3, "list": []any{"p"}, "nested": map[string]any{"k": "v"}},
		"b": {"z": 4},
	})
	inst := FromDocument(Document{"a": {"x": 1}})
	inst.LoadBase(global)
	before := inst.Document()

	global.Set("a", "y", 99)
	global.Set("b", "z", 99)
	global.Set("c", "new", true)

	list, _ := global.values["a"]["list"].([]any)
	list[0] = "mutated"
	nested, _ := global.values["a"]["nested"].(map[string]any)
	nested["k"] = "mutated"

	assert.Equal(t, before, inst.Document())
}

func TestLoadBase_DocumentCopyIsolated(t *testing.T) {
	raw := Document{"a": {"x": map[string]any{"deep": 1}}}
	c := FromDocument(raw)
	raw["a"]["x"].(map[string]any)["deep"] = 2

	v, ok := c.Get("a", "x")
	require.True(t, ok)
	assert.Equal(t, map[string]any{"deep": 1}, v)
}

func TestLoadBase_NilAndSelf(t *testing.T) {
	c := FromDocument(Document{"a": {"x": 1}})
	c.LoadBase(nil)
	c.LoadBase(c)
	assert.Equal(t, Document{"a": {"x": 1}}, c.Document())
}

func TestRefreshInherited_KeepsOverrides(t *testing.T) {
	global := FromDocument(Document{"a": {"x": 2, "y": 3, "gone": true}})
	inst := FromDocument(Document{"a": {"x": 1}})
	inst.LoadBase(global)
	inst.Set("a", "y", 30)

	next := FromDocument(Document{
		"a": {"x": 5, "y": 6, "w": 7},
		"b": {"z": 8},
	})
	changed := inst.RefreshInherited(next)

	assert.Equal(t, Document{
		"a": {"x": 1, "y": 30, "w": 7},
		"b": {"z": 8},
	}, inst.Document())
	assert.Equal(t, 3, changed, "removed gone, added w and z")
}

func TestRefreshInherited_UpdatesInheritedValue(t *testing.T) {
	inst := New()
	inst.LoadBase(FromDocument(Document{"lint": {"command": "dscanner"}}))

	inst.RefreshInherited(FromDocument(Document{"lint": {"command": "dscanner2"}}))

	cmd, err := inst.GetString("lint", "command", "")
	require.NoError(t, err)
	assert.Equal(t, "dscanner2", cmd)
	assert.True(t, inst.Inherited("lint", "command"))
}

func TestSet_CreatesComponentAndClearsInheritance(t *testing.T) {
	c := New()
	c.LoadBase(FromDocument(Document{"a": {"x": 1}}))
	require.True(t, c.Inherited("a", "x"))

	c.Set("a", "x", 2)
	c.Set("fresh", "k", "v")

	assert.False(t, c.Inherited("a", "x"))
	assert.Equal(t, []string{"a", "fresh"}, c.Components())
	v, ok := c.Get("fresh", "k")
	require.True(t, ok)
	assert.Equal(t, "v", v)
}

func TestDelete(t *testing.T) {
	c := FromDocument(Document{"a": {"x": 1}})
	assert.True(t, c.Delete("a", "x"))
	assert.False(t, c.Delete("a", "x"))
	assert.False(t, c.Delete("missing", "x"))
	assert.False(t, c.Has("a", "x"))
}

func TestGet_Absent(t *testing.T) {
	c := New()
	_, ok := c.Get("a", "x")
	assert.False(t, ok)
}

func TestTypedGet(t *testing.T) {
	c := FromDocument(Document{"lint": {
		"command":  "dscanner",
		"workers":  4,
		"ratio":    0.5,
		"wholeNum": 3.0,
		"enabled":  true,
		"args":     []any{"--report", "--styleCheck"},
		"mixed":    []any{"a", 1},
		"opts":     map[string]any{"k": "v"},
		"jsonInt":  json.Number("12"),
		"nothing":  nil,
	}})

	s, err := c.GetString("lint", "command", "")
	require.NoError(t, err)
	assert.Equal(t, "dscanner", s)

	n, err := c.GetInt("lint", "workers", 1)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	n, err = c.GetInt("lint", "wholeNum", 0)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	n, err = c.GetInt("lint", "jsonInt", 0)
	require.NoError(t, err)
	assert.Equal(t, 12, n)

	f, err := c.GetFloat("lint", "workers", 0)
	require.NoError(t, err)
	assert.Equal(t, 4.0, f)

	b, err := c.GetBool("lint", "enabled", false)
	require.NoError(t, err)
	assert.True(t, b)

	args, err := c.GetStrings("lint", "args", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"--report", "--styleCheck"}, args)

	obj, err := c.GetObject("lint", "opts", nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"k": "v"}, obj)

	def, err := c.GetInt("lint", "missing", 42)
	require.NoError(t, err)
	assert.Equal(t, 42, def)

	def, err = c.GetInt("lint", "nothing", 7)
	require.NoError(t, err)
	assert.Equal(t, 7, def, "null falls back to the default")
}

func TestTypedGet_Mismatch(t *testing.T) {
	c := FromDocument(Document{"lint": {
		"command": "dscanner",
		"ratio":   0.5,
		"mixed":   []any{"a", 1},
		"numStr":  "4",
	}})

	_, err := c.GetInt("lint", "ratio", 0)
	assert.ErrorIs(t, err, ErrTypeMismatch)

	_, err = c.GetInt("lint", "numStr", 0)
	assert.ErrorIs(t, err, ErrTypeMismatch, "strings are never parsed as numbers")

	_, err = c.GetBool("lint", "command", false)
	assert.ErrorIs(t, err, ErrTypeMismatch)

	_, err = c.GetStrings("lint", "mixed", nil)
	assert.ErrorIs(t, err, ErrTypeMismatch)
	assert.Contains(t, err.Error(), "lint.mixed")
}

func TestLookup_Generic(t *testing.T) {
	c := FromDocument(Document{"x": {"n": int64(9), "any": []any{1}}})

	n, err := Lookup[int64](c, "x", "n", 0)
	require.NoError(t, err)
	assert.Equal(t, int64(9), n)

	v, err := Lookup[any](c, "x", "any", nil)
	require.NoError(t, err)
	assert.Equal(t, []any{1}, v)
}

func TestClone_Independent(t *testing.T) {
	c := New()
	c.LoadBase(FromDocument(Document{"a": {"x": 1}}))
	clone := c.Clone()
	clone.Set("a", "x", 2)

	v, _ := c.Get("a", "x")
	assert.Equal(t, 1, v)
	assert.True(t, c.Inherited("a", "x"))
	assert.False(t, clone.Inherited("a", "x"))
}

func TestParseDocument(t *testing.T) {
	yamlDoc := []byte(`
lint:
  command: dscanner
  args: ["--report"]
  cacheTTL: 60
ccdb:
`)
	doc, err := ParseDocument(yamlDoc, "yaml")
	require.NoError(t, err)
	assert.Equal(t, "dscanner", doc["lint"]["command"])
	assert.Equal(t, 60, doc["lint"]["cacheTTL"])
	assert.Equal(t, map[string]any{}, doc["ccdb"])

	jsonDoc := []byte(`{"lint": {"cacheTTL": 60, "ratio": 0.5}}`)
	doc, err = ParseDocument(jsonDoc, "json")
	require.NoError(t, err)
	c := FromDocument(doc)
	ttl, err := c.GetInt("lint", "cacheTTL", 0)
	require.NoError(t, err)
	assert.Equal(t, 60, ttl)
	_, err = c.GetInt("lint", "ratio", 0)
	assert.ErrorIs(t, err, ErrTypeMismatch)

	_, err = ParseDocument([]byte(`[1, 2]`), "json")
	assert.ErrorIs(t, err, ErrInvalidDocument)

	_, err = ParseDocument([]byte(`{"lint": 3}`), "json")
	assert.ErrorIs(t, err, ErrInvalidDocument)

	doc, err = ParseDocument([]byte("  \n"), "yaml")
	require.NoError(t, err)
	assert.Empty(t, doc)
}

func TestLoadDocument(t *testing.T) {
	dir := t.TempDir()

	path := filepath.Join(dir, "workspaced.yaml")
	require.NoError(t, os.WriteFile(path, []byte("lint:\n  command: dmd\n"), 0o600))
	doc, err := LoadDocument(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "dmd", doc["lint"]["command"])

	_, err = LoadDocument(context.Background(), filepath.Join(dir, "config.toml"))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	big := filepath.Join(dir, "big.json")
	require.NoError(t, os.WriteFile(big, make([]byte, MaxDocumentSize+1), 0o600))
	_, err = LoadDocument(context.Background(), big)
	assert.ErrorIs(t, err, ErrDocumentTooLarge)

	_, err = LoadDocument(context.Background(), filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}
