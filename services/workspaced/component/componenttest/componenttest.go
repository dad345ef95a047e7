// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package componenttest provides a fake host, scope and component for tests
// of code built on package component.
package componenttest

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/AleutianAI/workspaced/services/workspaced/component"
	"github.com/AleutianAI/workspaced/services/workspaced/config"
	"github.com/AleutianAI/workspaced/services/workspaced/dispatch"
	"github.com/AleutianAI/workspaced/services/workspaced/future"
)

// =============================================================================
// HOST
// =============================================================================

// Message is one recorded broadcast.
type Message struct {
	Root    string
	Payload any
}

// Host is a component.Host that records broadcasts.
type Host struct {
	Global *config.Configuration

	mu       sync.Mutex
	messages []Message
	pool     *future.LazyPool
	logger   *slog.Logger
}

// NewHost creates a host with an empty global configuration.
func NewHost() *Host {
	return &Host{
		Global: config.New(),
		pool: future.NewLazyPool(func() future.PoolConfig {
			return future.PoolConfig{Name: "test-shared", Min: 1, Max: 2}
		}),
		logger: slog.Default(),
	}
}

// GlobalConfig implements component.Host.
func (h *Host) GlobalConfig() *config.Configuration {
	return h.Global
}

// SharedPool implements component.Host.
func (h *Host) SharedPool() (*future.Pool, error) {
	return h.pool.Get()
}

// Broadcast implements component.Host.
func (h *Host) Broadcast(scope component.Scope, payload any) {
	msg := Message{Payload: payload}
	if scope != nil {
		msg.Root = scope.Root()
	}
	h.mu.Lock()
	h.messages = append(h.messages, msg)
	h.mu.Unlock()
}

// Logger implements component.Host.
func (h *Host) Logger() *slog.Logger {
	return h.logger
}

// Messages returns the broadcasts recorded so far.
func (h *Host) Messages() []Message {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]Message(nil), h.messages...)
}

// Close closes the shared pool.
func (h *Host) Close() {
	h.pool.Close()
}

// =============================================================================
// SCOPE
// =============================================================================

// Scope is a component.Scope with a fixed root and configuration.
type Scope struct {
	RootPath string
	Cfg      *config.Configuration
}

// NewScope creates a scope for root with an empty configuration.
func NewScope(root string) *Scope {
	return &Scope{RootPath: root, Cfg: config.New()}
}

// Root implements component.Scope.
func (s *Scope) Root() string {
	return s.RootPath
}

// Config implements component.Scope.
func (s *Scope) Config() *config.Configuration {
	return s.Cfg
}

// =============================================================================
// FAKE COMPONENT
// =============================================================================

// Fake is a configurable component.
//
// Operations:
//
//	echo(value any?)  returns value
//	root()            returns the bound root ("" for global scope)
//	later(value any?) returns value from the private pool after Delay,
//	                  or the call context's error once it is done
type Fake struct {
	component.Base

	// BindFunc, when set, decides whether Bind succeeds for a scope.
	BindFunc func(scope component.Scope) error

	// Providers.
	Imports       []string
	StringImports []string
	Files         []string

	// Delay is how long later waits on the pool before answering.
	Delay time.Duration

	binds     atomic.Int32
	shutdowns atomic.Int32
	final     atomic.Bool

	// OnShutdown, when set, runs inside Shutdown.
	OnShutdown func()
}

// Bind implements component.Component.
func (f *Fake) Bind(host component.Host, scope component.Scope) error {
	f.binds.Add(1)
	if f.BindFunc != nil {
		if err := f.BindFunc(scope); err != nil {
			return err
		}
	}
	f.Init("fake", host, scope)
	return nil
}

// Operations implements component.Component.
func (f *Fake) Operations() *dispatch.Table {
	return dispatch.NewTable().
		Add("echo", []dispatch.Param{dispatch.P("value", dispatch.Nullable(dispatch.Any))},
			func(_ context.Context, args dispatch.Args) (any, error) {
				return args.Value(0), nil
			}).
		Add("root", nil, func(context.Context, dispatch.Args) (any, error) {
			return f.Root(), nil
		}).
		Add("later", []dispatch.Param{dispatch.P("value", dispatch.Nullable(dispatch.Any))},
			func(ctx context.Context, args dispatch.Args) (any, error) {
				v := args.Value(0)
				return component.OnPool(&f.Base, func() (any, error) {
					if f.Delay > 0 {
						time.Sleep(f.Delay)
					}
					if err := ctx.Err(); err != nil {
						return nil, err
					}
					return v, nil
				}), nil
			})
}

// Shutdown implements component.Component.
func (f *Fake) Shutdown(final bool) {
	f.shutdowns.Add(1)
	f.final.Store(final)
	if f.OnShutdown != nil {
		f.OnShutdown()
	}
	f.ClosePool()
}

// ImportPaths implements component.ImportPathProvider.
func (f *Fake) ImportPaths() []string { return f.Imports }

// StringImportPaths implements component.StringImportPathProvider.
func (f *Fake) StringImportPaths() []string { return f.StringImports }

// ImportFilePaths implements component.ImportFilePathProvider.
func (f *Fake) ImportFilePaths() []string { return f.Files }

// Binds returns how many times Bind was called.
func (f *Fake) Binds() int { return int(f.binds.Load()) }

// Shutdowns returns how many times Shutdown was called.
func (f *Fake) Shutdowns() int { return int(f.shutdowns.Load()) }

// Final reports the final flag of the last Shutdown.
func (f *Fake) Final() bool { return f.final.Load() }

// =============================================================================
// REGISTRY HELPERS
// =============================================================================

// Recorder builds Fakes and remembers every one it built.
type Recorder struct {
	mu    sync.Mutex
	built []*Fake

	// Configure, when set, adjusts each new Fake.
	Configure func(f *Fake)
}

// Descriptor returns a descriptor named name whose factory records Fakes.
func (r *Recorder) Descriptor(name string) component.Descriptor {
	return component.Descriptor{
		Info: component.Info{Name: name, Version: "v1.0.0", Description: "fake " + name},
		New: func() component.Component {
			f := &Fake{}
			if r.Configure != nil {
				r.Configure(f)
			}
			r.mu.Lock()
			r.built = append(r.built, f)
			r.mu.Unlock()
			return f
		},
	}
}

// Built returns every Fake created so far, in creation order.
func (r *Recorder) Built() []*Fake {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*Fake(nil), r.built...)
}
