// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package workspaced

import (
	"errors"
	"fmt"

	"github.com/AleutianAI/workspaced/services/workspaced/instance"
)

// Sentinel errors for host operations.
var (
	// ErrComponentNotFound indicates no component is registered, or bound
	// in the selected scope, under the requested name.
	ErrComponentNotFound = errors.New("component not found")

	// ErrInstanceNotFound indicates no workspace instance serves the path.
	ErrInstanceNotFound = errors.New("instance not found")

	// ErrInstanceExists indicates an instance for the normalized path exists.
	ErrInstanceExists = instance.ErrAlreadyExists

	// ErrAlreadyRegistered indicates a component name is already registered.
	ErrAlreadyRegistered = errors.New("component already registered")

	// ErrInvalidDescriptor indicates a descriptor has no name, no factory,
	// or an invalid semantic version.
	ErrInvalidDescriptor = errors.New("invalid component descriptor")

	// ErrBindFailure indicates a component's Bind failed for one scope.
	ErrBindFailure = errors.New("component bind failed")

	// ErrHostClosed indicates the host has been shut down.
	ErrHostClosed = errors.New("host closed")

	// ErrInvalidHostConfig indicates a HostConfig failed validation.
	ErrInvalidHostConfig = errors.New("invalid host config")
)

// BindFailure records one failed (scope, component) bind attempt.
//
// errors.Is(f, ErrBindFailure) holds, and errors.Is/As reach the
// component's own error through Unwrap.
type BindFailure struct {
	// Instance is the workspace root, or "" for global scope.
	Instance string

	// Component is the component name.
	Component string

	// Err is the error returned by the factory or Bind.
	Err error
}

// Error implements the error interface.
func (f *BindFailure) Error() string {
	scope := f.Instance
	if scope == "" {
		scope = "global"
	}
	return fmt.Sprintf("%v: %s in %s: %v", ErrBindFailure, f.Component, scope, f.Err)
}

// Unwrap returns ErrBindFailure and the underlying error.
func (f *BindFailure) Unwrap() []error {
	return []error{ErrBindFailure, f.Err}
}

// Global reports whether the failure was for the global-scope wrapper.
func (f *BindFailure) Global() bool {
	return f.Instance == ""
}
