// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package lint

import (
	"errors"
	"fmt"
)

var (
	// ErrToolNotInstalled indicates the lint binary was not found.
	ErrToolNotInstalled = errors.New("lint tool not installed")

	// ErrToolTimeout indicates the tool exceeded its timeout.
	ErrToolTimeout = errors.New("lint tool timeout")

	// ErrToolFailed indicates the tool exited with an error and no report.
	ErrToolFailed = errors.New("lint tool failed")

	// ErrInvalidPattern indicates the report pattern does not compile or
	// lacks a required named group.
	ErrInvalidPattern = errors.New("invalid report pattern")

	// ErrInvalidInput indicates an empty file name or similar bad argument.
	ErrInvalidInput = errors.New("invalid input")
)

// ToolError carries the tool name and its stderr with the failure.
type ToolError struct {
	// Tool is the command that failed.
	Tool string

	// Err is ErrToolTimeout, ErrToolFailed, or ErrToolNotInstalled.
	Err error

	// Output is the tool's stderr, if any.
	Output string
}

// Error implements the error interface.
func (e *ToolError) Error() string {
	if e.Output != "" {
		return fmt.Sprintf("%s: %v: %s", e.Tool, e.Err, e.Output)
	}
	return fmt.Sprintf("%s: %v", e.Tool, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *ToolError) Unwrap() error {
	return e.Err
}
