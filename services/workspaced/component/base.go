// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package component

import (
	"log/slog"

	"github.com/AleutianAI/workspaced/services/workspaced/config"
	"github.com/AleutianAI/workspaced/services/workspaced/future"
)

// Configuration keys read by Base for the private pool.
const (
	KeyPoolMin = "pool.min"
	KeyPoolMax = "pool.max"

	DefaultPoolMin = 1
	DefaultPoolMax = 4
)

// Base carries the state most components need: the host, the scope, a
// scoped logger and a lazily created private worker pool.
//
// Embed it and call Init from Bind:
//
//	type Linter struct {
//	    component.Base
//	}
//
//	func (l *Linter) Bind(host component.Host, scope component.Scope) error {
//	    l.Init("lint", host, scope)
//	    return nil
//	}
//
// The private pool is sized from the component's configuration keys
// pool.min and pool.max (defaults 1 and 4) when first used, so a slow
// component never starves the shared pool. ClosePool releases it.
type Base struct {
	name   string
	host   Host
	scope  Scope
	logger *slog.Logger
	pool   *future.LazyPool
}

// Init records the binding. Call it first in Bind.
func (b *Base) Init(name string, host Host, scope Scope) {
	b.name = name
	b.host = host
	b.scope = scope

	logger := host.Logger()
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("component", name))
	if scope != nil {
		logger = logger.With(slog.String("root", scope.Root()))
	}
	b.logger = logger
	b.pool = future.NewLazyPool(b.poolConfig)
}

// Name returns the component name given to Init.
func (b *Base) Name() string {
	return b.name
}

// Host returns the host given to Init.
func (b *Base) Host() Host {
	return b.host
}

// Scope returns the bound instance, or nil for global scope.
func (b *Base) Scope() Scope {
	return b.scope
}

// Root returns the workspace root, or "" for global scope.
func (b *Base) Root() string {
	if b.scope == nil {
		return ""
	}
	return b.scope.Root()
}

// Logger returns a logger tagged with the component name and root.
func (b *Base) Logger() *slog.Logger {
	if b.logger == nil {
		return slog.Default()
	}
	return b.logger
}

// Config returns the instance configuration, or the host's global
// configuration for global scope.
func (b *Base) Config() *config.Configuration {
	if b.scope != nil {
		return b.scope.Config()
	}
	return b.host.GlobalConfig()
}

// Pool returns the component's private pool, creating it on first use.
func (b *Base) Pool() (*future.Pool, error) {
	if b.pool == nil {
		return nil, future.ErrPoolClosed
	}
	return b.pool.Get()
}

// PoolStarted reports whether the private pool exists.
func (b *Base) PoolStarted() bool {
	return b.pool != nil && b.pool.Started()
}

// ClosePool drains and stops the private pool if it was created. Call it
// from Shutdown.
func (b *Base) ClosePool() {
	if b.pool != nil {
		b.pool.Close()
	}
}

// Broadcast sends payload through the host tagged with this scope.
func (b *Base) Broadcast(payload any) {
	b.host.Broadcast(b.scope, payload)
}

func (b *Base) poolConfig() future.PoolConfig {
	cfg := b.Config()
	lo, err := cfg.GetInt(b.name, KeyPoolMin, DefaultPoolMin)
	if err != nil {
		b.Logger().Warn("Invalid pool size, using default",
			slog.String("key", KeyPoolMin),
			slog.String("error", err.Error()),
		)
		lo = DefaultPoolMin
	}
	hi, err := cfg.GetInt(b.name, KeyPoolMax, DefaultPoolMax)
	if err != nil {
		b.Logger().Warn("Invalid pool size, using default",
			slog.String("key", KeyPoolMax),
			slog.String("error", err.Error()),
		)
		hi = DefaultPoolMax
	}
	if hi < 1 {
		hi = 1
	}
	if lo > hi {
		lo = hi
	}
	if lo < 0 {
		lo = 0
	}
	return future.PoolConfig{Name: b.name, Min: lo, Max: hi}
}

// OnPool runs fn on b's private pool. When the pool cannot be obtained the
// returned future is rejected with that error.
func OnPool[T any](b *Base, fn func() (T, error)) *future.Future[T] {
	pool, err := b.Pool()
	if err != nil {
		return future.Rejected[T](err)
	}
	return future.Async(pool, fn)
}
