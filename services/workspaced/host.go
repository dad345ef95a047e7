// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package workspaced is the workspace host: it registers pluggable
// components, binds them to open workspace instances, routes calls to the
// right instance, and exposes every result as a future.
//
// # Lifecycle
//
//	host, err := workspaced.NewHost(workspaced.WithLogger(logger))
//	host.Register(lint.Descriptor(), false)
//	inst, err := host.AddInstance(ctx, "/src/app", overrides, []string{"lint"})
//	v, err := host.Run(ctx, "/src/app/source/main.d", "lint", "lint", args).Await(ctx)
//	host.Shutdown(ctx)
//
// # Bind Failures
//
// Binding a component into a scope can fail. Each failure is isolated to
// its (scope, component) pair: it is reported through the bind-fail
// handler and never stops other binds.
//
// # Thread Safety
//
// All methods are safe for concurrent use. Structural changes (Register,
// AddInstance, RemoveInstance, Attach, ReloadGlobal, Shutdown) are
// serialized; runs and lookups proceed concurrently with each other.
package workspaced

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/mod/semver"

	"github.com/AleutianAI/workspaced/services/workspaced/component"
	"github.com/AleutianAI/workspaced/services/workspaced/config"
	"github.com/AleutianAI/workspaced/services/workspaced/future"
	"github.com/AleutianAI/workspaced/services/workspaced/instance"
)

// registration is one registered descriptor and its global wrapper.
type registration struct {
	desc   component.Descriptor
	global *component.Wrapper
}

// BindOutcome is the result of attaching one component to one instance.
type BindOutcome struct {
	// Component is the component name.
	Component string

	// Wrapper is the bound wrapper on success.
	Wrapper *component.Wrapper

	// Err is a *BindFailure on failure.
	Err error
}

// OK reports whether the component is bound.
func (o BindOutcome) OK() bool {
	return o.Err == nil && o.Wrapper != nil
}

// Host owns the component registry, the open instances, the global
// configuration and the shared pool.
//
// Thread Safety:
//
//	Safe for concurrent use.
type Host struct {
	cfg         HostConfig
	logger      *slog.Logger
	onBindFail  func(*BindFailure)
	onBroadcast func(Event)

	structMu  sync.RWMutex
	closed    bool

	// Callbacks raised while structMu is write-held wait in pending and
	// run after it is released.
	notifyMu  sync.Mutex
	deferring bool
	pending   []func()

	registry  []*registration
	byName    map[string]*registration
	instances *instance.Manager

	global atomic.Pointer[config.Configuration]
	shared *future.LazyPool
	events *EventLog
	jobs   *JobStore
}

// Host implements component.Host.
var _ component.Host = (*Host)(nil)

// NewHost creates a host.
//
// Outputs:
//
//	*Host - The host. Caller must call Shutdown.
//	error - Wraps ErrInvalidHostConfig when the configuration is invalid.
func NewHost(opts ...Option) (*Host, error) {
	h := &Host{
		cfg:       DefaultHostConfig(),
		logger:    slog.Default(),
		byName:    make(map[string]*registration),
		instances: instance.NewManager(),
	}
	h.global.Store(config.New())
	for _, opt := range opts {
		opt(h)
	}
	if err := h.cfg.Validate(); err != nil {
		return nil, err
	}

	h.shared = future.NewLazyPool(h.cfg.sharedPoolConfig)
	h.events = NewEventLog(h.cfg.EventBufferSize)
	h.jobs = NewJobStore(h.cfg.JobRetention, h.cfg.MaxJobs)
	return h, nil
}

// =============================================================================
// COMPONENT HOST
// =============================================================================

// GlobalConfig returns the global configuration base.
func (h *Host) GlobalConfig() *config.Configuration {
	return h.global.Load()
}

// SharedPool returns the process-wide pool, creating it on first use.
func (h *Host) SharedPool() (*future.Pool, error) {
	return h.shared.Get()
}

// Logger returns the host logger.
func (h *Host) Logger() *slog.Logger {
	return h.logger
}

// Events returns the broadcast event log.
func (h *Host) Events() *EventLog {
	return h.events
}

// Jobs returns the async job store.
func (h *Host) Jobs() *JobStore {
	return h.jobs
}

// =============================================================================
// REGISTRY
// =============================================================================

// Register adds a component descriptor.
//
// Description:
//
//	Immediately attempts one global-scope wrapper. When autoRegister is
//	set, also attempts a wrapper in every existing instance and in every
//	instance added later. Each failed attempt is reported to the
//	bind-fail handler and does not affect the others; Register still
//	succeeds.
//
// Inputs:
//
//	desc - Descriptor with a unique name, a factory, and an optional
//	       semantic version.
//	autoRegister - Attach to every instance automatically.
//
// Outputs:
//
//	error - ErrInvalidDescriptor, ErrAlreadyRegistered or ErrHostClosed.
func (h *Host) Register(desc component.Descriptor, autoRegister bool) error {
	if err := validateDescriptor(desc); err != nil {
		return err
	}

	h.lockStruct()
	defer h.unlockStruct()

	if h.closed {
		return ErrHostClosed
	}
	if _, ok := h.byName[desc.Name]; ok {
		return fmt.Errorf("%s: %w", desc.Name, ErrAlreadyRegistered)
	}

	desc.AutoRegister = autoRegister
	reg := &registration{desc: desc}
	h.registry = append(h.registry, reg)
	h.byName[desc.Name] = reg

	if w, err := h.bind(reg, nil); err == nil {
		reg.global = w
	}

	attached := 0
	if autoRegister {
		for _, inst := range h.instances.List() {
			if h.attachLocked(inst, reg).OK() {
				attached++
			}
		}
	}

	h.logger.Info("Component registered",
		slog.String("component", desc.Name),
		slog.String("version", desc.Version),
		slog.Bool("auto_register", autoRegister),
		slog.Bool("global_bound", reg.global != nil),
		slog.Int("instances_attached", attached),
	)
	return nil
}

func validateDescriptor(desc component.Descriptor) error {
	if desc.Name == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidDescriptor)
	}
	if desc.New == nil {
		return fmt.Errorf("%w: %s: nil factory", ErrInvalidDescriptor, desc.Name)
	}
	if desc.Version != "" && !semver.IsValid(desc.Version) {
		return fmt.Errorf("%w: %s: invalid version %q", ErrInvalidDescriptor, desc.Name, desc.Version)
	}
	return nil
}

// Components returns the registered components in registration order.
func (h *Host) Components() []component.Info {
	h.structMu.RLock()
	defer h.structMu.RUnlock()

	out := make([]component.Info, len(h.registry))
	for i, reg := range h.registry {
		out[i] = reg.desc.Info
	}
	return out
}

// Global returns the global-scope wrapper of a component.
func (h *Host) Global(name string) (*component.Wrapper, bool) {
	h.structMu.RLock()
	defer h.structMu.RUnlock()

	reg, ok := h.byName[name]
	if !ok || reg.global == nil {
		return nil, false
	}
	return reg.global, true
}

// Attach binds the component name into inst.
//
// Description:
//
//	Returns the existing wrapper when the component is already bound.
//	A bind failure is not an error: it is returned in the outcome and
//	reported to the bind-fail handler.
//
// Outputs:
//
//	BindOutcome - Success or failure of the bind.
//	error - ErrComponentNotFound, ErrInstanceNotFound or ErrHostClosed.
func (h *Host) Attach(inst *instance.Instance, name string) (BindOutcome, error) {
	h.lockStruct()
	defer h.unlockStruct()

	if h.closed {
		return BindOutcome{}, ErrHostClosed
	}
	reg, ok := h.byName[name]
	if !ok {
		return BindOutcome{}, fmt.Errorf("%s: %w", name, ErrComponentNotFound)
	}
	if inst == nil {
		return BindOutcome{}, ErrInstanceNotFound
	}
	if managed, ok := h.instances.Get(inst.Root()); !ok || managed != inst {
		return BindOutcome{}, fmt.Errorf("%s: %w", inst.Root(), ErrInstanceNotFound)
	}
	return h.attachLocked(inst, reg), nil
}

// AttachSilent is Attach reduced to whether the component is now bound.
func (h *Host) AttachSilent(inst *instance.Instance, name string) bool {
	outcome, err := h.Attach(inst, name)
	return err == nil && outcome.OK()
}

func (h *Host) attachLocked(inst *instance.Instance, reg *registration) BindOutcome {
	name := reg.desc.Name
	if w, ok := inst.Wrapper(name); ok {
		return BindOutcome{Component: name, Wrapper: w}
	}

	w, err := h.bind(reg, inst)
	if err != nil {
		return BindOutcome{Component: name, Err: err}
	}
	if err := inst.Attach(w); err != nil {
		w.Shutdown(false)
		return BindOutcome{Component: name, Err: err}
	}
	return BindOutcome{Component: name, Wrapper: w}
}

// bind creates one wrapper. Failures are reported and returned as
// *BindFailure.
func (h *Host) bind(reg *registration, inst *instance.Instance) (*component.Wrapper, error) {
	_, span := tracer.Start(context.Background(), "Host.bind",
		trace.WithAttributes(attribute.String("workspaced.component", reg.desc.Name)),
	)
	defer span.End()

	var scope component.Scope
	root := ""
	if inst != nil {
		scope = inst
		root = inst.Root()
		span.SetAttributes(attribute.String("workspaced.root", root))
	}

	w, err := component.NewWrapper(reg.desc, h, scope)
	recordBind(reg.desc.Name, err == nil)
	if err == nil {
		return w, nil
	}

	failure := &BindFailure{Instance: root, Component: reg.desc.Name, Err: err}
	span.RecordError(failure)
	h.logger.Warn("Component bind failed",
		slog.String("component", reg.desc.Name),
		slog.String("root", root),
		slog.String("error", err.Error()),
	)
	if h.onBindFail != nil {
		h.notify(func() { h.onBindFail(failure) })
	}
	return nil, failure
}

// lockStruct takes structMu for writing. Callbacks raised until
// unlockStruct are queued.
func (h *Host) lockStruct() {
	h.structMu.Lock()
	h.notifyMu.Lock()
	h.deferring = true
	h.notifyMu.Unlock()
}

// unlockStruct releases structMu, then runs the queued callbacks in the
// order they were raised.
func (h *Host) unlockStruct() {
	h.notifyMu.Lock()
	h.deferring = false
	queued := h.pending
	h.pending = nil
	h.notifyMu.Unlock()
	h.structMu.Unlock()

	for _, fn := range queued {
		fn()
	}
}

// notify runs fn now, or after the current structural operation when one
// is in progress, so handlers may call back into the host.
func (h *Host) notify(fn func()) {
	h.notifyMu.Lock()
	if h.deferring {
		h.pending = append(h.pending, fn)
		h.notifyMu.Unlock()
		return
	}
	h.notifyMu.Unlock()
	fn()
}

// =============================================================================
// INSTANCES
// =============================================================================

// AddInstance opens a workspace instance.
//
// Description:
//
//	Normalizes path and fails if an instance for it exists. The instance
//	configuration is overrides merged over the global base, overrides
//	winning. Then attaches, in registration order, every
//	non-auto-register component named in preload, followed by every
//	auto-register component. Bind failures are isolated and reported.
//	Unknown preload names are logged and skipped.
//
// Inputs:
//
//	ctx - Context for tracing.
//	path - Workspace root.
//	overrides - Instance configuration. May be nil.
//	preload - Non-auto-register components to attach.
//
// Outputs:
//
//	*instance.Instance - The new instance.
//	error - ErrInstanceExists, instance.ErrEmptyPath or ErrHostClosed.
func (h *Host) AddInstance(ctx context.Context, path string, overrides config.Document, preload []string) (*instance.Instance, error) {
	_, span := tracer.Start(ctx, "Host.AddInstance",
		trace.WithAttributes(attribute.String("workspaced.path", path)),
	)
	defer span.End()

	h.lockStruct()
	defer h.unlockStruct()

	if h.closed {
		return nil, ErrHostClosed
	}

	cfg := config.FromDocument(overrides)
	cfg.LoadBase(h.GlobalConfig())
	inst, err := instance.New(path, cfg)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if err := h.instances.Add(inst); err != nil {
		span.RecordError(err)
		return nil, err
	}
	instancesOpen.Inc()

	wanted := make(map[string]bool, len(preload))
	for _, name := range preload {
		wanted[name] = true
		if _, ok := h.byName[name]; !ok {
			h.logger.Warn("Unknown component in preload list",
				slog.String("component", name),
				slog.String("root", inst.Root()),
			)
		}
	}

	for _, reg := range h.registry {
		if !reg.desc.AutoRegister && wanted[reg.desc.Name] {
			h.attachLocked(inst, reg)
		}
	}
	for _, reg := range h.registry {
		if reg.desc.AutoRegister {
			h.attachLocked(inst, reg)
		}
	}

	span.SetAttributes(attribute.Int("workspaced.components", len(inst.Components())))
	h.logger.Info("Instance added",
		slog.String("root", inst.Root()),
		slog.Any("components", inst.Components()),
	)
	return inst, nil
}

// RemoveInstance closes the instance for path.
//
// Description:
//
//	Shuts down every bound wrapper in attach order, each releasing its
//	resources before returning, then forgets the instance. Returns false
//	when no instance has that path.
func (h *Host) RemoveInstance(ctx context.Context, path string) bool {
	_, span := tracer.Start(ctx, "Host.RemoveInstance",
		trace.WithAttributes(attribute.String("workspaced.path", path)),
	)
	defer span.End()

	h.lockStruct()
	defer h.unlockStruct()

	inst, ok := h.instances.Remove(path)
	if !ok {
		return false
	}
	instancesOpen.Dec()
	inst.Shutdown(false)

	h.logger.Info("Instance removed", slog.String("root", inst.Root()))
	return true
}

// Instance returns the instance whose root is exactly path after
// normalization.
func (h *Host) Instance(path string) (*instance.Instance, bool) {
	return h.instances.Get(path)
}

// Instances returns the open instances in insertion order.
func (h *Host) Instances() []*instance.Instance {
	return h.instances.List()
}

// BestInstance selects the instance that should serve path, falling back
// to the first instance with component bound (any instance when component
// is empty).
func (h *Host) BestInstance(path, component string) (*instance.Instance, bool) {
	return h.instances.Best(path, instance.ResolveOptions{Component: component, Fallback: true})
}

// ReloadGlobal replaces the global configuration base.
//
// Description:
//
//	Every instance refreshes the keys it inherited from the previous base
//	and has not overridden since; overrides stay untouched. Global
//	wrappers read the new base through GlobalConfig.
//
// Outputs:
//
//	int - Number of instance keys added, changed or removed.
//	error - ErrHostClosed.
func (h *Host) ReloadGlobal(doc config.Document) (int, error) {
	h.lockStruct()
	defer h.unlockStruct()

	if h.closed {
		return 0, ErrHostClosed
	}

	next := config.FromDocument(doc)
	h.global.Store(next)

	changed := 0
	for _, inst := range h.instances.List() {
		changed += inst.Config().RefreshInherited(next)
	}
	h.logger.Info("Global configuration reloaded",
		slog.Int("components", len(doc)),
		slog.Int("instance_keys_changed", changed),
	)
	return changed, nil
}
