// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config holds per-component configuration for the workspace host.
//
// A Configuration is a two-level mapping from component name to key to a
// JSON-like value. Every workspace instance owns one, produced at creation
// by merging the instance's overrides over the host's global base with
// LoadBase. Values set on the instance always win over inherited ones.
//
// # Inheritance
//
// LoadBase is first-write-wins: it copies components and keys that are
// missing and never overwrites a key that is already present. Keys copied
// this way are remembered as inherited until they are Set. RefreshInherited
// re-copies only those keys, so a reloaded global base reaches instances
// without disturbing their overrides.
//
// # Thread Safety
//
// All methods are safe for concurrent use.
package config

import (
	"reflect"
	"sort"
	"sync"

	"github.com/AleutianAI/workspaced/pkg/jsonvalue"
)

// Document is the exchange form of a configuration:
// {componentName: {key: value, ...}, ...}.
type Document map[string]map[string]any

// Clone deep copies the document.
func (d Document) Clone() Document {
	out := make(Document, len(d))
	for comp, keys := range d {
		out[comp] = jsonvalue.CopyObject(keys)
	}
	return out
}

// Configuration is a mutable, concurrency-safe configuration store.
type Configuration struct {
	mu        sync.RWMutex
	values    map[string]map[string]any
	inherited map[string]map[string]struct{}
}

// New creates an empty configuration.
func New() *Configuration {
	return &Configuration{
		values:    make(map[string]map[string]any),
		inherited: make(map[string]map[string]struct{}),
	}
}

// FromDocument creates a configuration holding a deep copy of doc. None of
// its keys count as inherited.
func FromDocument(doc Document) *Configuration {
	c := New()
	for comp, keys := range doc {
		c.values[comp] = jsonvalue.CopyObject(keys)
	}
	return c
}

// =============================================================================
// READ
// =============================================================================

// Get returns the value stored for component/key.
//
// The returned value is a deep copy; mutating it does not affect the
// configuration.
func (c *Configuration) Get(component, key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	keys, ok := c.values[component]
	if !ok {
		return nil, false
	}
	v, ok := keys[key]
	if !ok {
		return nil, false
	}
	return jsonvalue.DeepCopy(v), true
}

// Has reports whether component/key is present.
func (c *Configuration) Has(component, key string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.values[component][key]
	return ok
}

// Inherited reports whether component/key was copied from a global base and
// has not been Set since.
func (c *Configuration) Inherited(component, key string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.inherited[component][key]
	return ok
}

// Component returns a deep copy of one component's key/value map.
func (c *Configuration) Component(name string) (map[string]any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	keys, ok := c.values[name]
	if !ok {
		return nil, false
	}
	return jsonvalue.CopyObject(keys), true
}

// Components returns the component names present, sorted.
func (c *Configuration) Components() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, 0, len(c.values))
	for name := range c.values {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Document returns a deep copy of the whole configuration.
func (c *Configuration) Document() Document {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(Document, len(c.values))
	for comp, keys := range c.values {
		out[comp] = jsonvalue.CopyObject(keys)
	}
	return out
}

// Clone returns an independent copy, inherited marks included.
func (c *Configuration) Clone() *Configuration {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := New()
	for comp, keys := range c.values {
		out.values[comp] = jsonvalue.CopyObject(keys)
	}
	for comp, keys := range c.inherited {
		marks := make(map[string]struct{}, len(keys))
		for k := range keys {
			marks[k] = struct{}{}
		}
		out.inherited[comp] = marks
	}
	return out
}

// =============================================================================
// WRITE
// =============================================================================

// Set inserts or overwrites component/key, creating the component map on
// demand. The value is deep copied. A Set key is no longer inherited.
func (c *Configuration) Set(component, key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys, ok := c.values[component]
	if !ok {
		keys = make(map[string]any)
		c.values[component] = keys
	}
	keys[key] = jsonvalue.DeepCopy(value)
	c.unmarkLocked(component, key)
}

// Delete removes component/key. It reports whether the key was present.
func (c *Configuration) Delete(component, key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys, ok := c.values[component]
	if !ok {
		return false
	}
	if _, ok := keys[key]; !ok {
		return false
	}
	delete(keys, key)
	c.unmarkLocked(component, key)
	return true
}

// LoadBase merges global underneath this configuration.
//
// Description:
//
//	Components present in global but absent here are deep copied whole.
//	For components present in both, only keys absent here are copied.
//	Keys already present are never overwritten. Copied keys are marked
//	inherited. Later mutation of global does not affect this
//	configuration.
//
// Inputs:
//
//	global - The base configuration. May be nil. May not be c itself.
func (c *Configuration) LoadBase(global *Configuration) {
	if global == nil || global == c {
		return
	}
	doc := global.Document()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.mergeLocked(doc)
}

// RefreshInherited updates inherited keys from a new global base.
//
// Description:
//
//	Every key still marked inherited takes its value from global, or is
//	removed when global no longer has it. Then keys missing here are
//	merged in as by LoadBase. Keys that were overridden or Set are never
//	touched.
//
// Outputs:
//
//	int - Number of keys added, changed or removed.
func (c *Configuration) RefreshInherited(global *Configuration) int {
	if global == nil || global == c {
		return 0
	}
	doc := global.Document()

	c.mu.Lock()
	defer c.mu.Unlock()

	changed := 0
	for comp, marks := range c.inherited {
		for key := range marks {
			nv, ok := doc[comp][key]
			if !ok {
				delete(c.values[comp], key)
				delete(marks, key)
				changed++
				continue
			}
			if !reflect.DeepEqual(c.values[comp][key], nv) {
				c.values[comp][key] = nv
				changed++
			}
			delete(doc[comp], key)
		}
		if len(marks) == 0 {
			delete(c.inherited, comp)
		}
		if len(c.values[comp]) == 0 {
			delete(c.values, comp)
		}
	}
	changed += c.mergeLocked(doc)
	return changed
}

// mergeLocked copies missing components and keys from doc, which must
// already be a private copy. Returns the number of keys copied.
func (c *Configuration) mergeLocked(doc Document) int {
	copied := 0
	for comp, keys := range doc {
		dst, ok := c.values[comp]
		if !ok {
			dst = make(map[string]any, len(keys))
			c.values[comp] = dst
		}
		for key, v := range keys {
			if _, exists := dst[key]; exists {
				continue
			}
			dst[key] = v
			c.markLocked(comp, key)
			copied++
		}
	}
	return copied
}

func (c *Configuration) markLocked(component, key string) {
	marks, ok := c.inherited[component]
	if !ok {
		marks = make(map[string]struct{})
		c.inherited[component] = marks
	}
	marks[key] = struct{}{}
}

func (c *Configuration) unmarkLocked(component, key string) {
	marks, ok := c.inherited[component]
	if !ok {
		return
	}
	delete(marks, key)
	if len(marks) == 0 {
		delete(c.inherited, component)
	}
}
