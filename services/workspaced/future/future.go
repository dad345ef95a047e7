// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package future provides a single-assignment asynchronous result cell and
// the worker pools that produce results for it.
//
// # Lifecycle
//
//	Pending ──Finish(v)──► Resolved(v)
//	        └──Fail(err)──► Rejected(err)
//
// A Future is terminal once settled. Settling twice, or attaching a second
// continuation with OnDone, panics with *ProgrammingError.
//
// # Waiting
//
// OnDone attaches the single continuation. Await blocks the calling
// goroutine until the future settles or the context is done; any number of
// goroutines may Await the same future.
//
// # Thread Safety
//
// All methods are safe for concurrent use. The terminal transition and the
// continuation store share one mutex, so a continuation attached
// concurrently with settlement fires exactly once.
package future

import (
	"context"
	"sync"
)

type state int

const (
	statePending state = iota
	stateResolved
	stateRejected
)

// Future is a single-assignment cell holding a value of type T or an error.
//
// The zero value is not usable; create futures with New, Resolved, or
// Rejected.
type Future[T any] struct {
	mu       sync.Mutex
	state    state
	value    T
	err      error
	done     chan struct{}
	callback func(T, error)
	attached bool
}

// AnyFuture is implemented by every *Future[T]. It lets untyped code adapt
// a future of unknown element type.
type AnyFuture interface {
	Any() *Future[any]
}

// New creates a pending future.
func New[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

// Resolved creates a future already resolved with v.
func Resolved[T any](v T) *Future[T] {
	f := New[T]()
	f.Finish(v)
	return f
}

// Rejected creates a future already rejected with err.
func Rejected[T any](err error) *Future[T] {
	f := New[T]()
	f.Fail(err)
	return f
}

// Finish resolves the future with v.
//
// Panics with *ProgrammingError if the future is already settled.
func (f *Future[T]) Finish(v T) {
	f.settle("Finish", v, nil)
}

// Fail rejects the future with err.
//
// Panics with *ProgrammingError if err is nil or the future is already
// settled.
func (f *Future[T]) Fail(err error) {
	if err == nil {
		panic(&ProgrammingError{Op: "Fail", Reason: "nil error"})
	}
	var zero T
	f.settle("Fail", zero, err)
}

func (f *Future[T]) settle(op string, v T, err error) {
	f.mu.Lock()
	if f.state != statePending {
		f.mu.Unlock()
		panic(&ProgrammingError{Op: op, Reason: "future already settled"})
	}
	f.value, f.err = v, err
	if err != nil {
		f.state = stateRejected
	} else {
		f.state = stateResolved
	}
	cb := f.callback
	f.callback = nil
	close(f.done)
	f.mu.Unlock()

	if cb != nil {
		cb(v, err)
	}
}

// OnDone attaches the future's only continuation.
//
// Description:
//
//	If the future is already settled, fn runs immediately on the calling
//	goroutine. Otherwise fn runs exactly once on the goroutine that settles
//	the future.
//
// Inputs:
//
//	fn - Continuation receiving the value or the error. Must not be nil.
//
// Thread Safety:
//
//	Safe to call concurrently with Finish/Fail. Panics with
//	*ProgrammingError if a continuation was already attached.
func (f *Future[T]) OnDone(fn func(T, error)) {
	if fn == nil {
		panic(&ProgrammingError{Op: "OnDone", Reason: "nil continuation"})
	}

	f.mu.Lock()
	if f.attached {
		f.mu.Unlock()
		panic(&ProgrammingError{Op: "OnDone", Reason: "continuation already attached"})
	}
	f.attached = true
	if f.state == statePending {
		f.callback = fn
		f.mu.Unlock()
		return
	}
	v, err := f.value, f.err
	f.mu.Unlock()

	fn(v, err)
}

// Done reports whether the future has settled.
func (f *Future[T]) Done() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// DoneChan returns a channel closed when the future settles.
func (f *Future[T]) DoneChan() <-chan struct{} {
	return f.done
}

// Result returns the settled value and error without blocking. ok is
// false while the future is pending.
func (f *Future[T]) Result() (v T, err error, ok bool) {
	if !f.Done() {
		return v, nil, false
	}
	return f.value, f.err, true
}

// Await blocks until the future settles or ctx is done.
//
// Description:
//
//	Returns the resolved value, or the rejection error. If ctx ends first,
//	returns ctx.Err() and leaves the future untouched.
//
// Thread Safety:
//
//	Any number of goroutines may Await the same future.
func (f *Future[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Get blocks until the future settles.
func (f *Future[T]) Get() (T, error) {
	<-f.done
	return f.value, f.err
}

// Any adapts the future to a *Future[any].
//
// Uses the future's continuation unless f is already a *Future[any].
func (f *Future[T]) Any() *Future[any] {
	if a, ok := any(f).(*Future[any]); ok {
		return a
	}
	return Then(f, func(v T) (any, error) { return v, nil })
}

// Then returns a future settled with fn applied to f's value.
//
// A rejection of f, or an error from fn, rejects the returned future.
// Uses f's continuation.
func Then[T, U any](f *Future[T], fn func(T) (U, error)) *Future[U] {
	out := New[U]()
	f.OnDone(func(v T, err error) {
		if err != nil {
			out.Fail(err)
			return
		}
		u, err := fn(v)
		if err != nil {
			out.Fail(err)
			return
		}
		out.Finish(u)
	})
	return out
}

// Forward settles dst with the outcome of src. Uses src's continuation.
func Forward[T any](src, dst *Future[T]) {
	src.OnDone(func(v T, err error) {
		if err != nil {
			dst.Fail(err)
			return
		}
		dst.Finish(v)
	})
}
