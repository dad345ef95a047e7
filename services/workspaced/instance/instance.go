// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package instance tracks open workspace instances and routes file paths to
// them.
//
// An Instance is one workspace root with its own configuration and the
// component wrappers bound to it. The Manager holds at most one Instance
// per normalized root. Resolve picks the instance that should serve an
// arbitrary file:
//
//  1. The instance whose root is the longest path prefix of the file.
//  2. Otherwise the instance owning the longest dependency root (import
//     paths, string-import paths and import files reported by its
//     components) that prefixes the file.
//  3. Otherwise, when fallback is requested, the first instance.
//
// Resolution never fails; absence is a normal result.
package instance

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/AleutianAI/workspaced/services/workspaced/component"
	"github.com/AleutianAI/workspaced/services/workspaced/config"
)

// Instance is one open workspace.
//
// Thread Safety:
//
//	Safe for concurrent use.
type Instance struct {
	root    string
	key     string
	config  *config.Configuration
	created time.Time

	mu       sync.RWMutex
	wrappers []*component.Wrapper
}

// New creates an instance for path with the given configuration.
//
// Inputs:
//
//	path - Workspace root; normalized with NormalizePath.
//	cfg - Instance configuration. nil creates an empty one.
func New(path string, cfg *config.Configuration) (*Instance, error) {
	root, err := NormalizePath(path)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		cfg = config.New()
	}
	return &Instance{
		root:    root,
		key:     pathKey(root),
		config:  cfg,
		created: time.Now(),
	}, nil
}

// Root implements component.Scope.
func (i *Instance) Root() string {
	return i.root
}

// Config implements component.Scope.
func (i *Instance) Config() *config.Configuration {
	return i.config
}

// Created returns when the instance was created.
func (i *Instance) Created() time.Time {
	return i.created
}

// Attach appends a bound wrapper. Wrappers keep attach order.
//
// Returns ErrAlreadyBound when a wrapper with the same name exists.
func (i *Instance) Attach(w *component.Wrapper) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	for _, existing := range i.wrappers {
		if existing.Name() == w.Name() {
			return fmt.Errorf("%s in %s: %w", w.Name(), i.root, ErrAlreadyBound)
		}
	}
	i.wrappers = append(i.wrappers, w)
	return nil
}

// Wrapper returns the wrapper bound under name.
func (i *Instance) Wrapper(name string) (*component.Wrapper, bool) {
	i.mu.RLock()
	defer i.mu.RUnlock()

	for _, w := range i.wrappers {
		if w.Name() == name {
			return w, true
		}
	}
	return nil, false
}

// Has reports whether a component named name is bound.
func (i *Instance) Has(name string) bool {
	_, ok := i.Wrapper(name)
	return ok
}

// Wrappers returns the bound wrappers in attach order.
func (i *Instance) Wrappers() []*component.Wrapper {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return append([]*component.Wrapper(nil), i.wrappers...)
}

// Components returns the bound component names in attach order.
func (i *Instance) Components() []string {
	i.mu.RLock()
	defer i.mu.RUnlock()

	names := make([]string, len(i.wrappers))
	for idx, w := range i.wrappers {
		names[idx] = w.Name()
	}
	return names
}

// ImportPaths returns the import roots of every bound component.
func (i *Instance) ImportPaths() []string {
	return i.collect((*component.Wrapper).ImportPaths)
}

// StringImportPaths returns the string-import roots of every bound component.
func (i *Instance) StringImportPaths() []string {
	return i.collect((*component.Wrapper).StringImportPaths)
}

// ImportFilePaths returns the imported files of every bound component.
func (i *Instance) ImportFilePaths() []string {
	return i.collect((*component.Wrapper).ImportFilePaths)
}

// DependencyRoots returns the union of import paths, string-import paths
// and import files, normalized, without duplicates, in provider order.
func (i *Instance) DependencyRoots() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, group := range [][]string{i.ImportPaths(), i.StringImportPaths(), i.ImportFilePaths()} {
		for _, p := range group {
			norm, err := NormalizePath(p)
			if err != nil {
				continue
			}
			if _, dup := seen[norm]; dup {
				continue
			}
			seen[norm] = struct{}{}
			out = append(out, norm)
		}
	}
	return out
}

func (i *Instance) collect(fn func(*component.Wrapper) []string) []string {
	var out []string
	for _, w := range i.Wrappers() {
		out = append(out, fn(w)...)
	}
	return out
}

// Shutdown shuts down every wrapper in attach order and detaches them.
// Each wrapper releases its resources before the next one starts.
func (i *Instance) Shutdown(final bool) {
	i.mu.Lock()
	wrappers := i.wrappers
	i.wrappers = nil
	i.mu.Unlock()

	for _, w := range wrappers {
		w.Shutdown(final)
	}
	slog.Debug("Instance shut down",
		slog.String("root", i.root),
		slog.Int("components", len(wrappers)),
		slog.Bool("final", final),
	)
}
