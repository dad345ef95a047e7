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
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSharedPoolSize_Bounds(t *testing.T) {
	n := SharedPoolSize()
	assert.GreaterOrEqual(t, n, MinSharedWorkers)
	assert.LessOrEqual(t, n, MaxSharedWorkers)
}

func TestNewPool_InvalidConfig(t *testing.T) {
	_, err := NewPool(PoolConfig{Name: "bad", Min: 3, Max: 2})
	assert.ErrorIs(t, err, ErrInvalidPoolConfig)

	_, err = NewPool(PoolConfig{Min: 1, Max: 1})
	assert.ErrorIs(t, err, ErrInvalidPoolConfig)
}

func TestPool_RunsAllTasksAndDrainsOnClose(t *testing.T) {
	p, err := NewPool(PoolConfig{Name: "test", Min: 1, Max: 3})
	require.NoError(t, err)

	var ran atomic.Int32
	for i := 0; i < 50; i++ {
		require.NoError(t, p.Submit(func() {
			time.Sleep(time.Millisecond)
			ran.Add(1)
		}))
	}
	p.Close()

	assert.Equal(t, int32(50), ran.Load())
	assert.Equal(t, int64(50), p.Stats().Completed)
	assert.ErrorIs(t, p.Submit(func() {}), ErrPoolClosed)
}

func TestPool_NeverExceedsMax(t *testing.T) {
	p, err := NewPool(PoolConfig{Name: "bounded", Min: 0, Max: 2})
	require.NoError(t, err)
	defer p.Close()

	var current, peak atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		require.NoError(t, p.Submit(func() {
			defer wg.Done()
			n := current.Add(1)
			for {
				old := peak.Load()
				if n <= old || peak.CompareAndSwap(old, n) {
					break
				}
			}
			time.Sleep(2 * time.Millisecond)
			current.Add(-1)
		}))
	}
	wg.Wait()

	assert.LessOrEqual(t, peak.Load(), int32(2))
	assert.LessOrEqual(t, p.Stats().Workers, 2)
}

func TestPool_SurvivesPanickingTask(t *testing.T) {
	p, err := NewPool(PoolConfig{Name: "panics", Min: 1, Max: 1})
	require.NoError(t, err)
	defer p.Close()

	require.NoError(t, p.Submit(func() { panic("bad task") }))

	done := make(chan struct{})
	require.NoError(t, p.Submit(func() { close(done) }))
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("pool stopped after a panicking task")
	}
}

func TestLazyPool_ConstructsOnce(t *testing.T) {
	var built atomic.Int32
	lazy := NewLazyPool(func() PoolConfig {
		built.Add(1)
		return PoolConfig{Name: "lazy", Min: 1, Max: 2}
	})
	assert.False(t, lazy.Started())

	var wg sync.WaitGroup
	pools := make([]*Pool, 16)
	for i := range pools {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			p, err := lazy.Get()
			assert.NoError(t, err)
			pools[idx] = p
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), built.Load())
	for _, p := range pools {
		assert.Same(t, pools[0], p)
	}

	lazy.Close()
	p, err := lazy.Get()
	require.NoError(t, err, "a constructed pool is still returned after Close")
	assert.ErrorIs(t, p.Submit(func() {}), ErrPoolClosed)

	never := NewLazyPool(SharedPoolConfig)
	never.Close()
	_, err = never.Get()
	assert.ErrorIs(t, err, ErrPoolClosed)
}

func TestAsync_Outcomes(t *testing.T) {
	p, err := NewPool(PoolConfig{Name: "async", Min: 1, Max: 2})
	require.NoError(t, err)
	defer p.Close()

	v, err := Async(p, func() (int, error) { return 7, nil }).Get()
	require.NoError(t, err)
	assert.Equal(t, 7, v)

	boom := errors.New("boom")
	_, err = Async(p, func() (int, error) { return 0, boom }).Get()
	assert.ErrorIs(t, err, ErrAsyncFailure)
	assert.ErrorIs(t, err, boom)

	_, err = Async(p, func() (int, error) { panic("exploded") }).Get()
	assert.ErrorIs(t, err, ErrAsyncFailure)
	assert.Contains(t, err.Error(), "exploded")
}

func TestAsync_ClosedPoolRejects(t *testing.T) {
	p, err := NewPool(PoolConfig{Name: "closed", Min: 0, Max: 1})
	require.NoError(t, err)
	p.Close()

	_, err = Async(p, func() (int, error) { return 1, nil }).Get()
	assert.ErrorIs(t, err, ErrPoolClosed)
}

func TestAsyncContext_SkipsCancelledWork(t *testing.T) {
	p, err := NewPool(PoolConfig{Name: "ctx", Min: 1, Max: 1})
	require.NoError(t, err)
	defer p.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var ran atomic.Bool
	_, err = AsyncContext(ctx, p, func(context.Context) (int, error) {
		ran.Store(true)
		return 1, nil
	}).Get()
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, ran.Load())
}
