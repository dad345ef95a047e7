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
	"context"
	"fmt"
)

// Async runs fn on pool and returns a future for its outcome.
//
// Description:
//
//	An error returned by fn, or a panic escaping it, rejects the future
//	with an error wrapping ErrAsyncFailure. Nothing escapes to the worker.
//	If the pool is closed the future is rejected with ErrPoolClosed.
//
// Inputs:
//
//	pool - Pool to run on. Must not be nil.
//	fn - Work to run.
//
// Outputs:
//
//	*Future[T] - Settled when fn returns.
func Async[T any](pool *Pool, fn func() (T, error)) *Future[T] {
	f := New[T]()
	err := pool.Submit(func() {
		v, err := capture(fn)
		if err != nil {
			f.Fail(err)
			return
		}
		f.Finish(v)
	})
	if err != nil {
		f.Fail(err)
	}
	return f
}

// AsyncContext is Async for context-aware work. If ctx is done before fn
// starts, the future is rejected with ctx.Err() and fn never runs.
func AsyncContext[T any](ctx context.Context, pool *Pool, fn func(context.Context) (T, error)) *Future[T] {
	return Async(pool, func() (T, error) {
		if err := ctx.Err(); err != nil {
			var zero T
			return zero, err
		}
		return fn(ctx)
	})
}

// capture calls fn, converting returned errors and panics into
// ErrAsyncFailure. *ProgrammingError panics propagate.
func capture[T any](fn func() (T, error)) (v T, err error) {
	defer func() {
		if r := recover(); r != nil {
			if IsProgrammingError(r) {
				panic(r)
			}
			var zero T
			v = zero
			err = fmt.Errorf("%w: panic: %v", ErrAsyncFailure, r)
		}
	}()

	v, err = fn()
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrAsyncFailure, err)
	}
	return v, err
}
