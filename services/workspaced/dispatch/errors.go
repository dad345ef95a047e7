// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package dispatch

import (
	"errors"
	"fmt"
	"strings"

	"github.com/AleutianAI/workspaced/pkg/jsonvalue"
)

// Sentinel errors for overload resolution and invocation.
var (
	// ErrDispatchNotFound indicates no overload matches the call, or the
	// method does not exist.
	ErrDispatchNotFound = errors.New("no matching overload")

	// ErrDispatchAmbiguous indicates more than one overload matches the call.
	ErrDispatchAmbiguous = errors.New("ambiguous overload")

	// ErrOperationPanic indicates an operation panicked. The panic is
	// delivered as a rejected future.
	ErrOperationPanic = errors.New("operation panicked")
)

// ResolveError describes a failed overload resolution.
type ResolveError struct {
	// Method is the requested method name.
	Method string

	// Args are the structural kinds of the supplied arguments.
	Args []jsonvalue.Kind

	// Candidates are the signatures considered: every overload of Method
	// for ErrDispatchNotFound, the matching ones for ErrDispatchAmbiguous.
	Candidates []string

	// Err is ErrDispatchNotFound or ErrDispatchAmbiguous.
	Err error
}

// Error implements the error interface.
func (e *ResolveError) Error() string {
	kinds := make([]string, len(e.Args))
	for i, k := range e.Args {
		kinds[i] = k.String()
	}
	msg := fmt.Sprintf("dispatch: %s(%s): %v", e.Method, strings.Join(kinds, ", "), e.Err)
	if len(e.Candidates) > 0 {
		msg += " [candidates: " + strings.Join(e.Candidates, "; ") + "]"
	}
	return msg
}

// Unwrap returns the sentinel.
func (e *ResolveError) Unwrap() error {
	return e.Err
}
