// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package component

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/AleutianAI/workspaced/services/workspaced/dispatch"
	"github.com/AleutianAI/workspaced/services/workspaced/future"
)

// ErrWrapperStopped indicates a call on a wrapper after Shutdown.
var ErrWrapperStopped = errors.New("component wrapper stopped")

// =============================================================================
// WRAPPER STATE
// =============================================================================

// State is the lifecycle state of a Wrapper.
type State int

const (
	// StateBound means Bind succeeded and the wrapper serves calls.
	StateBound State = iota

	// StateStopping means Shutdown is in progress.
	StateStopping

	// StateStopped means the component has released its resources.
	StateStopped
)

// String returns a human-readable state name.
func (s State) String() string {
	names := []string{"bound", "stopping", "stopped"}
	if int(s) < len(names) {
		return names[s]
	}
	return "unknown"
}

// =============================================================================
// WRAPPER
// =============================================================================

// Wrapper is one bound component in one scope.
//
// Description:
//
//	Owned by the scope that created it: the host for global wrappers, an
//	instance for instance wrappers. The owner calls Shutdown exactly once.
//
// Thread Safety:
//
//	Safe for concurrent use.
type Wrapper struct {
	info  Info
	comp  Component
	scope Scope
	table *dispatch.Table

	mu    sync.RWMutex
	state State
}

// NewWrapper creates a component from desc and binds it.
//
// Description:
//
//	Calls the factory, then Bind. A factory returning nil, a Bind error,
//	or a panic in either is returned as an error and no wrapper exists.
//
// Inputs:
//
//	desc - Registered descriptor.
//	host - Host handed to Bind.
//	scope - Instance to bind to, or nil for global scope.
//
// Outputs:
//
//	*Wrapper - The bound wrapper.
//	error - The factory or Bind failure.
func NewWrapper(desc Descriptor, host Host, scope Scope) (w *Wrapper, err error) {
	defer func() {
		if r := recover(); r != nil {
			if future.IsProgrammingError(r) {
				panic(r)
			}
			w = nil
			err = fmt.Errorf("%s: bind panicked: %v", desc.Name, r)
		}
	}()

	comp := desc.New()
	if comp == nil {
		return nil, fmt.Errorf("%s: %w", desc.Name, ErrNilComponent)
	}
	if err := comp.Bind(host, scope); err != nil {
		return nil, err
	}

	table := comp.Operations()
	if table == nil {
		table = dispatch.NewTable()
	}
	return &Wrapper{
		info:  desc.Info,
		comp:  comp,
		scope: scope,
		table: table,
		state: StateBound,
	}, nil
}

// Name returns the component name.
func (w *Wrapper) Name() string {
	return w.info.Name
}

// Info returns the component's registration info.
func (w *Wrapper) Info() Info {
	return w.info
}

// Component returns the wrapped component.
func (w *Wrapper) Component() Component {
	return w.comp
}

// Scope returns the bound instance, or nil for a global wrapper.
func (w *Wrapper) Scope() Scope {
	return w.scope
}

// Global reports whether the wrapper is bound to global scope.
func (w *Wrapper) Global() bool {
	return w.scope == nil
}

// Operations returns the component's dispatch table.
func (w *Wrapper) Operations() *dispatch.Table {
	return w.table
}

// State returns the lifecycle state.
func (w *Wrapper) State() State {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.state
}

// Dispatch resolves method against args and invokes it.
//
// Description:
//
//	Runs synchronously on the calling goroutine unless the operation
//	itself schedules work. Every failure is a rejected future. After
//	Shutdown the future is rejected with ErrWrapperStopped.
func (w *Wrapper) Dispatch(ctx context.Context, method string, args []any) *future.Future[any] {
	if w.State() != StateBound {
		return future.Rejected[any](fmt.Errorf("%s.%s: %w", w.info.Name, method, ErrWrapperStopped))
	}
	return w.table.Call(ctx, method, args)
}

// Shutdown shuts the component down.
//
// Description:
//
//	The component releases its resources before Shutdown returns. A second
//	call is logged and ignored.
//
// Inputs:
//
//	final - True when the whole host is shutting down.
func (w *Wrapper) Shutdown(final bool) {
	w.mu.Lock()
	if w.state != StateBound {
		w.mu.Unlock()
		slog.Warn("Component shutdown called twice",
			slog.String("component", w.info.Name),
		)
		return
	}
	w.state = StateStopping
	w.mu.Unlock()

	defer func() {
		w.mu.Lock()
		w.state = StateStopped
		w.mu.Unlock()
	}()
	w.comp.Shutdown(final)
}

// =============================================================================
// PROVIDERS
// =============================================================================

// ImportPaths returns the component's import roots, or nil when it is not
// an ImportPathProvider.
func (w *Wrapper) ImportPaths() []string {
	if p, ok := w.comp.(ImportPathProvider); ok {
		return p.ImportPaths()
	}
	return nil
}

// StringImportPaths returns the component's string-import roots, or nil.
func (w *Wrapper) StringImportPaths() []string {
	if p, ok := w.comp.(StringImportPathProvider); ok {
		return p.StringImportPaths()
	}
	return nil
}

// ImportFilePaths returns the component's imported files, or nil.
func (w *Wrapper) ImportFilePaths() []string {
	if p, ok := w.comp.(ImportFilePathProvider); ok {
		return p.ImportFilePaths()
	}
	return nil
}
