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
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/workspaced/services/workspaced/component"
	"github.com/AleutianAI/workspaced/services/workspaced/future"
	"github.com/AleutianAI/workspaced/services/workspaced/instance"
)

// =============================================================================
// RUN
// =============================================================================

// Run calls method on the component serving path.
//
// Description:
//
//	The instance is the one rooted exactly at path, or else the one
//	Resolve selects for path among instances with the component bound,
//	dependency roots included. The operation is dispatched on the calling
//	goroutine. Every failure, routing included, is a rejected future.
//
// Inputs:
//
//	ctx - Passed to the operation.
//	path - Workspace root or a file inside (or imported by) a workspace.
//	comp - Component name.
//	method - Operation name.
//	args - Positional JSON-like arguments.
//
// Outputs:
//
//	*future.Future[any] - Settles with the result. Rejections wrap
//	ErrInstanceNotFound, ErrComponentNotFound, ErrHostClosed, or the
//	dispatch and operation errors.
func (h *Host) Run(ctx context.Context, path, comp, method string, args []any) *future.Future[any] {
	start := time.Now()
	ctx, span := startRunSpan(ctx, path, comp, method)

	w, err := h.routeInstance(path, comp)
	if err != nil {
		return h.finishRun(ctx, span, comp, method, start, future.Rejected[any](err))
	}
	span.SetAttributes(attribute.String("workspaced.root", w.Scope().Root()))
	return h.finishRun(ctx, span, comp, method, start, w.Dispatch(ctx, method, args))
}

// RunGlobal calls method on the global-scope wrapper of comp.
func (h *Host) RunGlobal(ctx context.Context, comp, method string, args []any) *future.Future[any] {
	start := time.Now()
	ctx, span := startRunSpan(ctx, "", comp, method)

	h.structMu.RLock()
	closed := h.closed
	reg, ok := h.byName[comp]
	h.structMu.RUnlock()

	switch {
	case closed:
		return h.finishRun(ctx, span, comp, method, start, future.Rejected[any](ErrHostClosed))
	case !ok || reg.global == nil:
		err := fmt.Errorf("%s (global): %w", comp, ErrComponentNotFound)
		return h.finishRun(ctx, span, comp, method, start, future.Rejected[any](err))
	}
	return h.finishRun(ctx, span, comp, method, start, reg.global.Dispatch(ctx, method, args))
}

func (h *Host) routeInstance(path, comp string) (*component.Wrapper, error) {
	h.structMu.RLock()
	defer h.structMu.RUnlock()

	if h.closed {
		return nil, ErrHostClosed
	}

	inst, ok := h.instances.Get(path)
	if !ok {
		inst, ok = h.instances.Best(path, instance.ResolveOptions{Component: comp})
	}
	if !ok {
		return nil, fmt.Errorf("%s: %w", path, ErrInstanceNotFound)
	}

	w, ok := inst.Wrapper(comp)
	if !ok {
		return nil, fmt.Errorf("%s in %s: %w", comp, inst.Root(), ErrComponentNotFound)
	}
	return w, nil
}

// finishRun ends the span and records metrics when f settles. It returns
// a new future so the caller still owns a free continuation slot.
func (h *Host) finishRun(ctx context.Context, span trace.Span, comp, method string, start time.Time, f *future.Future[any]) *future.Future[any] {
	out := future.New[any]()
	f.OnDone(func(v any, err error) {
		recordRun(ctx, comp, method, time.Since(start), err == nil)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "run rejected")
		}
		span.End()

		if err != nil {
			out.Fail(err)
			return
		}
		out.Finish(v)
	})
	return out
}

// =============================================================================
// BROADCAST
// =============================================================================

// Broadcast delivers payload to the broadcast handler and the event log.
// scope is nil for process-wide messages.
func (h *Host) Broadcast(scope component.Scope, payload any) {
	e := Event{
		ID:      uuid.NewString(),
		Time:    time.Now(),
		Payload: payload,
	}
	if scope != nil {
		e.Root = scope.Root()
	}
	h.events.Add(e)

	h.logger.Debug("Broadcast",
		slog.String("event_id", e.ID),
		slog.String("root", e.Root),
	)
	if h.onBroadcast != nil {
		h.notify(func() { h.onBroadcast(e) })
	}
}

// =============================================================================
// SHUTDOWN
// =============================================================================

// Shutdown tears the host down.
//
// Description:
//
//	Shuts down every instance (their wrappers in attach order), then every
//	global wrapper in registration order, then the shared pool. Instances
//	shut down in parallel, each one waiting for its own wrappers. Later
//	structural calls fail with ErrHostClosed and runs are rejected with it.
//
// Outputs:
//
//	error - ErrHostClosed when already shut down.
func (h *Host) Shutdown(ctx context.Context) error {
	_, span := tracer.Start(ctx, "Host.Shutdown")
	defer span.End()

	h.structMu.Lock()
	if h.closed {
		h.structMu.Unlock()
		return ErrHostClosed
	}
	h.closed = true
	instances := h.instances.List()
	registry := append([]*registration(nil), h.registry...)
	for _, inst := range instances {
		h.instances.Remove(inst.Root())
		instancesOpen.Dec()
	}
	h.structMu.Unlock()

	var g errgroup.Group
	g.SetLimit(future.SharedPoolSize())
	for _, inst := range instances {
		g.Go(func() error {
			inst.Shutdown(true)
			return nil
		})
	}
	_ = g.Wait()

	for _, reg := range registry {
		if reg.global != nil {
			reg.global.Shutdown(true)
		}
	}
	h.shared.Close()
	h.events.Close()

	span.SetAttributes(
		attribute.Int("workspaced.instances", len(instances)),
		attribute.Int("workspaced.components", len(registry)),
	)
	h.logger.Info("Host shut down",
		slog.Int("instances", len(instances)),
		slog.Int("components", len(registry)),
	)
	return nil
}
