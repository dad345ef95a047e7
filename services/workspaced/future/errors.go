// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package future

import (
	"errors"
	"fmt"
)

// Sentinel errors for futures and pools.
var (
	// ErrAsyncFailure wraps any error or panic escaping work scheduled by Async.
	ErrAsyncFailure = errors.New("async operation failed")

	// ErrPoolClosed indicates work was submitted to a pool after Close.
	ErrPoolClosed = errors.New("worker pool closed")

	// ErrInvalidPoolConfig indicates a PoolConfig failed validation.
	ErrInvalidPoolConfig = errors.New("invalid pool config")
)

// ProgrammingError reports a violated Future contract: resolving twice or
// attaching a second continuation.
//
// It is raised with panic and is not meant to be recovered and retried.
type ProgrammingError struct {
	// Op is the method that detected the violation (e.g. "Finish").
	Op string

	// Reason describes the violation.
	Reason string
}

// Error implements the error interface.
func (e *ProgrammingError) Error() string {
	return fmt.Sprintf("future: %s: %s", e.Op, e.Reason)
}

// IsProgrammingError reports whether a recovered panic value is a
// *ProgrammingError.
func IsProgrammingError(r any) bool {
	_, ok := r.(*ProgrammingError)
	return ok
}
