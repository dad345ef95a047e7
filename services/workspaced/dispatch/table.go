// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package dispatch resolves a method name and loosely typed arguments to
// one concrete operation and adapts its result into a future.
//
// Each component builds a Table once, declaring its operations as
// overloads with typed parameters:
//
//	table := dispatch.NewTable().
//	    Add("lint", []dispatch.Param{dispatch.P("file", dispatch.String)}, lintFile).
//	    Add("lint", []dispatch.Param{
//	        dispatch.P("file", dispatch.String),
//	        dispatch.P("content", dispatch.String),
//	    }, lintContent)
//
// # Resolution
//
// An overload with N parameters qualifies for M arguments when M <= N,
// every parameter past M has a default, and every supplied argument
// structurally matches its parameter type. Exactly one overload must
// qualify: none is ErrDispatchNotFound, several is ErrDispatchAmbiguous.
//
// # Invocation
//
// Call invokes the operation on the calling goroutine. An operation that
// returns a future has that future's outcome forwarded; any other result is
// wrapped in a resolved future. Every failure, including resolution errors
// and panics, is delivered as a rejected future.
package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/AleutianAI/workspaced/pkg/jsonvalue"
	"github.com/AleutianAI/workspaced/services/workspaced/future"
)

// Func implements one overload. args holds one value per declared
// parameter, defaults filled in. The result is a JSON-like value, a
// future (any *future.Future[T]), or nil for no result.
type Func func(ctx context.Context, args Args) (any, error)

// Overload is one typed signature of a method.
type Overload struct {
	Method string
	Params []Param
	Fn     Func
}

// Signature renders the overload, e.g. "lint(file string, content string)".
func (o *Overload) Signature() string {
	parts := make([]string, len(o.Params))
	for i, p := range o.Params {
		parts[i] = p.String()
	}
	return o.Method + "(" + strings.Join(parts, ", ") + ")"
}

// accepts reports whether the overload qualifies for args.
func (o *Overload) accepts(args []any) bool {
	if len(args) > len(o.Params) {
		return false
	}
	for i, p := range o.Params {
		if i >= len(args) {
			if !p.HasDefault {
				return false
			}
			continue
		}
		if !p.Type.Matches(args[i]) {
			return false
		}
	}
	return true
}

// bind returns args extended with defaults for omitted parameters.
func (o *Overload) bind(args []any) Args {
	values := make([]any, len(o.Params))
	copy(values, args)
	for i := len(args); i < len(o.Params); i++ {
		values[i] = jsonvalue.DeepCopy(o.Params[i].Default)
	}
	return Args{values: values, params: o.Params}
}

// =============================================================================
// TABLE
// =============================================================================

// Table maps method names to overloads.
//
// Thread Safety:
//
//	Build a Table with Add before sharing it. Resolve, Call and Methods are
//	safe for concurrent use once building is done.
type Table struct {
	methods map[string][]*Overload
	order   []string
}

// NewTable creates an empty table.
func NewTable() *Table {
	return &Table{methods: make(map[string][]*Overload)}
}

// Add declares an overload of name and returns the table for chaining.
//
// Panics if name is empty, fn is nil, or a parameter without a default
// follows one with a default. These are construction bugs, not runtime
// conditions.
func (t *Table) Add(name string, params []Param, fn Func) *Table {
	if name == "" {
		panic("dispatch: Add with empty method name")
	}
	if fn == nil {
		panic(fmt.Sprintf("dispatch: Add %q with nil func", name))
	}
	seenDefault := false
	for _, p := range params {
		if p.HasDefault {
			seenDefault = true
			continue
		}
		if seenDefault {
			panic(fmt.Sprintf("dispatch: %s: required parameter %q after optional", name, p.Name))
		}
	}

	if _, ok := t.methods[name]; !ok {
		t.order = append(t.order, name)
	}
	t.methods[name] = append(t.methods[name], &Overload{
		Method: name,
		Params: append([]Param(nil), params...),
		Fn:     fn,
	})
	return t
}

// Has reports whether the table declares name.
func (t *Table) Has(name string) bool {
	_, ok := t.methods[name]
	return ok
}

// Resolve selects the single overload of name that accepts args.
//
// Outputs:
//
//	*Overload - The match.
//	error - *ResolveError wrapping ErrDispatchNotFound or ErrDispatchAmbiguous.
func (t *Table) Resolve(name string, args []any) (*Overload, error) {
	overloads := t.methods[name]

	var matches []*Overload
	for _, o := range overloads {
		if o.accepts(args) {
			matches = append(matches, o)
		}
	}

	switch len(matches) {
	case 1:
		return matches[0], nil
	case 0:
		return nil, &ResolveError{
			Method:     name,
			Args:       jsonvalue.KindsOf(args),
			Candidates: signatures(overloads),
			Err:        ErrDispatchNotFound,
		}
	default:
		return nil, &ResolveError{
			Method:     name,
			Args:       jsonvalue.KindsOf(args),
			Candidates: signatures(matches),
			Err:        ErrDispatchAmbiguous,
		}
	}
}

// Call resolves name against args and invokes the match.
//
// Description:
//
//	The operation runs on the calling goroutine. A future result is
//	forwarded into the returned future, so an inner rejection becomes the
//	outer rejection. Any other result resolves the returned future
//	immediately. Resolution errors, returned errors and panics reject it.
//	A *future.ProgrammingError panic propagates.
//
// Inputs:
//
//	ctx - Passed to the operation.
//	name - Method name.
//	args - Positional JSON-like arguments.
//
// Outputs:
//
//	*future.Future[any] - Settles with the operation's result.
func (t *Table) Call(ctx context.Context, name string, args []any) *future.Future[any] {
	o, err := t.Resolve(name, args)
	if err != nil {
		return future.Rejected[any](err)
	}

	result, err := invoke(ctx, o, o.bind(args))
	if err != nil {
		return future.Rejected[any](err)
	}

	if f, ok := result.(future.AnyFuture); ok {
		out := future.New[any]()
		future.Forward(f.Any(), out)
		return out
	}
	return future.Resolved(result)
}

func invoke(ctx context.Context, o *Overload, args Args) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			if future.IsProgrammingError(r) {
				panic(r)
			}
			result = nil
			err = fmt.Errorf("%w: %s: %v", ErrOperationPanic, o.Method, r)
		}
	}()
	return o.Fn(ctx, args)
}

// MethodInfo lists one method and its overload signatures.
type MethodInfo struct {
	Name       string   `json:"name"`
	Signatures []string `json:"signatures"`
}

// Methods returns every method sorted by name.
func (t *Table) Methods() []MethodInfo {
	names := append([]string(nil), t.order...)
	sort.Strings(names)

	out := make([]MethodInfo, 0, len(names))
	for _, name := range names {
		out = append(out, MethodInfo{Name: name, Signatures: signatures(t.methods[name])})
	}
	return out
}

func signatures(overloads []*Overload) []string {
	out := make([]string, len(overloads))
	for i, o := range overloads {
		out[i] = o.Signature()
	}
	return out
}

func formatDefault(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}
