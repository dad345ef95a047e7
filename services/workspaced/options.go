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
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/AleutianAI/workspaced/services/workspaced/config"
	"github.com/AleutianAI/workspaced/services/workspaced/future"
)

// =============================================================================
// HOST CONFIG
// =============================================================================

// HostConfig sizes the host's shared resources.
type HostConfig struct {
	// SharedPoolSize is the number of shared workers. Zero uses
	// future.SharedPoolSize().
	SharedPoolSize int `validate:"gte=0,lte=64"`

	// EventBufferSize is how many broadcast events are kept for inspection.
	EventBufferSize int `validate:"gte=1"`

	// JobRetention is how long finished async jobs stay queryable.
	JobRetention time.Duration `validate:"gt=0"`

	// MaxJobs bounds the number of tracked async jobs.
	MaxJobs int `validate:"gte=1"`
}

// DefaultHostConfig returns the default configuration.
func DefaultHostConfig() HostConfig {
	return HostConfig{
		SharedPoolSize:  0,
		EventBufferSize: 100,
		JobRetention:    10 * time.Minute,
		MaxJobs:         1000,
	}
}

var hostValidate = validator.New()

// Validate checks the configuration.
func (c HostConfig) Validate() error {
	if err := hostValidate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidHostConfig, err)
	}
	return nil
}

func (c HostConfig) sharedPoolConfig() future.PoolConfig {
	pc := future.SharedPoolConfig()
	if c.SharedPoolSize > 0 {
		pc.Min, pc.Max = c.SharedPoolSize, c.SharedPoolSize
	}
	return pc
}

// =============================================================================
// OPTIONS
// =============================================================================

// Option configures a Host.
type Option func(*Host)

// WithConfig sets the host configuration.
func WithConfig(cfg HostConfig) Option {
	return func(h *Host) {
		h.cfg = cfg
	}
}

// WithLogger sets the host logger. Components receive it through
// component.Host.Logger.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Host) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// WithBindFailHandler sets the callback receiving every failed bind
// attempt. It runs on the goroutine performing the bind, after the
// structural operation has released its lock, so it may call the host.
func WithBindFailHandler(fn func(*BindFailure)) Option {
	return func(h *Host) {
		h.onBindFail = fn
	}
}

// WithBroadcastHandler sets the callback receiving every broadcast. It runs
// on the broadcasting goroutine; a broadcast raised during a structural
// operation is delivered once that operation releases its lock.
func WithBroadcastHandler(fn func(Event)) Option {
	return func(h *Host) {
		h.onBroadcast = fn
	}
}

// WithGlobalConfig sets the initial global configuration base.
func WithGlobalConfig(doc config.Document) Option {
	return func(h *Host) {
		h.global.Store(config.FromDocument(doc))
	}
}
