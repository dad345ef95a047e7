// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package instance

import (
	"fmt"
	"sync"
)

// Manager owns the set of open instances keyed by normalized root.
//
// Description:
//
//	Instances keep insertion order. Structural changes (Add, Remove) are
//	expected to be serialized by the owner; the Manager also locks so
//	lookups and resolution stay safe while they happen.
//
// Thread Safety:
//
//	Safe for concurrent use.
type Manager struct {
	mu    sync.RWMutex
	list  []*Instance
	byKey map[string]*Instance
}

// NewManager creates an empty manager.
func NewManager() *Manager {
	return &Manager{byKey: make(map[string]*Instance)}
}

// Add registers inst.
//
// Returns an error wrapping ErrAlreadyExists when an instance with the same
// normalized root is present.
func (m *Manager) Add(inst *Instance) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.byKey[inst.key]; ok {
		return fmt.Errorf("%s: %w", inst.root, ErrAlreadyExists)
	}
	m.byKey[inst.key] = inst
	m.list = append(m.list, inst)
	return nil
}

// Remove unregisters the instance for path and returns it. It does not
// shut the instance down.
func (m *Manager) Remove(path string) (*Instance, bool) {
	key, ok := lookupKey(path)
	if !ok {
		return nil, false
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	inst, ok := m.byKey[key]
	if !ok {
		return nil, false
	}
	delete(m.byKey, key)
	for idx, candidate := range m.list {
		if candidate == inst {
			m.list = append(m.list[:idx], m.list[idx+1:]...)
			break
		}
	}
	return inst, true
}

// Get returns the instance whose root is exactly path after normalization.
func (m *Manager) Get(path string) (*Instance, bool) {
	key, ok := lookupKey(path)
	if !ok {
		return nil, false
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	inst, ok := m.byKey[key]
	return inst, ok
}

// List returns the instances in insertion order.
func (m *Manager) List() []*Instance {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]*Instance(nil), m.list...)
}

// Len returns the number of instances.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.list)
}

func lookupKey(path string) (string, bool) {
	norm, err := NormalizePath(path)
	if err != nil {
		return "", false
	}
	return pathKey(norm), true
}
