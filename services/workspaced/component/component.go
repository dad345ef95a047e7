// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package component defines the contract between the workspace host and the
// pluggable components it manages.
//
// A component is registered as a Descriptor. The host calls the
// descriptor's factory once per scope, global or one workspace instance,
// and wraps the result in a Wrapper that owns its lifecycle:
//
//	factory ──New──► Component ──Bind(host, scope)──► Wrapper ──Shutdown──► released
//
// Components reach the host only through the Host interface defined here,
// so this package sits below both the instance manager and the host.
package component

import (
	"errors"
	"log/slog"

	"github.com/AleutianAI/workspaced/services/workspaced/config"
	"github.com/AleutianAI/workspaced/services/workspaced/dispatch"
	"github.com/AleutianAI/workspaced/services/workspaced/future"
)

// ErrNilComponent indicates a factory returned nil.
var ErrNilComponent = errors.New("factory returned nil component")

// =============================================================================
// CONTRACT
// =============================================================================

// Component is a pluggable capability bound to one scope.
type Component interface {
	// Bind is called once after construction. scope is nil for the
	// global-scope instance. A non-nil error discards the component.
	Bind(host Host, scope Scope) error

	// Operations returns the component's dispatch table. Called once,
	// after a successful Bind.
	Operations() *dispatch.Table

	// Shutdown releases owned resources, private pools included, before
	// returning. final is true when the whole host is shutting down.
	// Called at most once.
	Shutdown(final bool)
}

// ImportPathProvider reports the import roots a workspace depends on.
type ImportPathProvider interface {
	ImportPaths() []string
}

// StringImportPathProvider reports the string-import roots a workspace
// depends on.
type StringImportPathProvider interface {
	StringImportPaths() []string
}

// ImportFilePathProvider reports individual files a workspace imports.
type ImportFilePathProvider interface {
	ImportFilePaths() []string
}

// Host is the view of the workspace host given to components.
type Host interface {
	// GlobalConfig returns the process-wide configuration base.
	GlobalConfig() *config.Configuration

	// SharedPool returns the process-wide pool for light async work.
	SharedPool() (*future.Pool, error)

	// Broadcast delivers payload to the host's broadcast handler. scope is
	// nil for process-wide messages.
	Broadcast(scope Scope, payload any)

	// Logger returns the host logger.
	Logger() *slog.Logger
}

// Scope is the workspace instance a component is bound to.
type Scope interface {
	// Root returns the normalized workspace root.
	Root() string

	// Config returns the instance configuration.
	Config() *config.Configuration
}

// =============================================================================
// DESCRIPTOR
// =============================================================================

// Factory creates an unbound component.
type Factory func() Component

// Info describes a registered component.
type Info struct {
	Name        string `json:"name"`
	Version     string `json:"version,omitempty"`
	Description string `json:"description,omitempty"`

	// AutoRegister is set by the host when the component is attached to
	// every workspace instance automatically.
	AutoRegister bool `json:"autoRegister"`
}

// Descriptor is a component's registration: its identity and factory.
// Immutable once registered.
type Descriptor struct {
	Info
	New Factory
}
