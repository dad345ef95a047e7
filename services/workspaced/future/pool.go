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
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/go-playground/validator/v10"
)

// =============================================================================
// POOL CONFIG
// =============================================================================

const (
	// MinSharedWorkers is the lower bound of the shared pool size.
	MinSharedWorkers = 2

	// MaxSharedWorkers is the upper bound of the shared pool size.
	MaxSharedWorkers = 6
)

var validate = validator.New()

// PoolConfig sizes a worker pool.
type PoolConfig struct {
	// Name identifies the pool in logs.
	Name string `validate:"required"`

	// Min is the number of workers started with the pool.
	Min int `validate:"gte=0"`

	// Max bounds the number of workers; extra workers start on demand.
	Max int `validate:"gte=1,gtefield=Min"`
}

// SharedPoolSize returns the hardware concurrency clamped to
// [MinSharedWorkers, MaxSharedWorkers].
func SharedPoolSize() int {
	n := runtime.NumCPU()
	if n < MinSharedWorkers {
		return MinSharedWorkers
	}
	if n > MaxSharedWorkers {
		return MaxSharedWorkers
	}
	return n
}

// SharedPoolConfig returns the configuration of the process-wide pool.
func SharedPoolConfig() PoolConfig {
	n := SharedPoolSize()
	return PoolConfig{Name: "shared", Min: n, Max: n}
}

// =============================================================================
// POOL
// =============================================================================

// Pool runs submitted tasks on a bounded set of goroutines.
//
// Description:
//
//	Min workers start with the pool. When a task arrives and no worker is
//	idle, another worker starts, up to Max. Tasks run in FIFO order.
//	Workers never exit before Close.
//
// Thread Safety:
//
//	Safe for concurrent use.
type Pool struct {
	name string
	max  int

	mu      sync.Mutex
	cond    *sync.Cond
	queue   []func()
	workers int
	idle    int
	closed  bool

	wg        sync.WaitGroup
	completed atomic.Int64
}

// PoolStats is a point-in-time snapshot of a pool.
type PoolStats struct {
	Name      string `json:"name"`
	Workers   int    `json:"workers"`
	Idle      int    `json:"idle"`
	Queued    int    `json:"queued"`
	Completed int64  `json:"completed"`
}

// NewPool creates a pool and starts its minimum workers.
//
// Inputs:
//
//	cfg - Pool sizing. Max must be at least 1 and at least Min.
//
// Outputs:
//
//	*Pool - The running pool. Caller must Close it.
//	error - Wraps ErrInvalidPoolConfig when cfg fails validation.
func NewPool(cfg PoolConfig) (*Pool, error) {
	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPoolConfig, err)
	}

	p := &Pool{name: cfg.Name, max: cfg.Max}
	p.cond = sync.NewCond(&p.mu)

	p.mu.Lock()
	for i := 0; i < cfg.Min; i++ {
		p.spawnLocked()
	}
	p.mu.Unlock()

	slog.Debug("Worker pool started",
		slog.String("pool", cfg.Name),
		slog.Int("min", cfg.Min),
		slog.Int("max", cfg.Max),
	)
	return p, nil
}

// Submit queues task for execution.
//
// Returns ErrPoolClosed once Close has been called.
func (p *Pool) Submit(task func()) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrPoolClosed
	}
	p.queue = append(p.queue, task)
	if p.idle == 0 && p.workers < p.max {
		p.spawnLocked()
		return nil
	}
	p.cond.Signal()
	return nil
}

// Close stops accepting tasks, runs everything already queued, and waits
// for all workers to exit. Calling Close more than once is a no-op.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.cond.Broadcast()
	p.mu.Unlock()

	p.wg.Wait()

	slog.Debug("Worker pool closed",
		slog.String("pool", p.name),
		slog.Int64("completed", p.completed.Load()),
	)
}

// Name returns the pool's name.
func (p *Pool) Name() string {
	return p.name
}

// Stats returns a snapshot of the pool.
func (p *Pool) Stats() PoolStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return PoolStats{
		Name:      p.name,
		Workers:   p.workers,
		Idle:      p.idle,
		Queued:    len(p.queue),
		Completed: p.completed.Load(),
	}
}

func (p *Pool) spawnLocked() {
	p.workers++
	p.wg.Add(1)
	go p.work()
}

func (p *Pool) work() {
	defer p.wg.Done()

	p.mu.Lock()
	for {
		for len(p.queue) == 0 && !p.closed {
			p.idle++
			p.cond.Wait()
			p.idle--
		}
		if len(p.queue) == 0 {
			p.workers--
			p.mu.Unlock()
			return
		}
		task := p.queue[0]
		p.queue[0] = nil
		p.queue = p.queue[1:]
		p.mu.Unlock()

		p.run(task)

		p.mu.Lock()
	}
}

// run executes one task. Panics other than *ProgrammingError are logged
// so one bad task cannot take the worker down.
func (p *Pool) run(task func()) {
	defer func() {
		if r := recover(); r != nil {
			if IsProgrammingError(r) {
				panic(r)
			}
			slog.Error("Worker pool task panicked",
				slog.String("pool", p.name),
				slog.Any("panic", r),
			)
		}
		p.completed.Add(1)
	}()
	task()
}

// =============================================================================
// LAZY POOL
// =============================================================================

// LazyPool constructs a Pool on first use.
//
// Description:
//
//	Get uses double-checked locking so concurrent first callers construct
//	exactly one pool. After Close, Get returns the closed pool if one was
//	constructed and ErrPoolClosed otherwise.
//
// Thread Safety:
//
//	Safe for concurrent use.
type LazyPool struct {
	config func() PoolConfig

	mu     sync.Mutex
	pool   atomic.Pointer[Pool]
	closed bool
}

// NewLazyPool creates a lazy pool whose configuration is computed by
// config at construction time.
func NewLazyPool(config func() PoolConfig) *LazyPool {
	return &LazyPool{config: config}
}

// Get returns the pool, constructing it on first use.
func (l *LazyPool) Get() (*Pool, error) {
	if p := l.pool.Load(); p != nil {
		return p, nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if p := l.pool.Load(); p != nil {
		return p, nil
	}
	if l.closed {
		return nil, ErrPoolClosed
	}
	p, err := NewPool(l.config())
	if err != nil {
		return nil, err
	}
	l.pool.Store(p)
	return p, nil
}

// Started reports whether the pool has been constructed.
func (l *LazyPool) Started() bool {
	return l.pool.Load() != nil
}

// Close closes the pool if it was constructed and prevents construction
// afterwards.
func (l *LazyPool) Close() {
	l.mu.Lock()
	l.closed = true
	p := l.pool.Load()
	l.mu.Unlock()

	if p != nil {
		p.Close()
	}
}
