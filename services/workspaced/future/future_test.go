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

// requireProgrammingError asserts fn panics with *ProgrammingError.
func requireProgrammingError(t *testing.T, fn func()) {
	t.Helper()
	defer func() {
		r := recover()
		require.NotNil(t, r, "expected panic")
		assert.True(t, IsProgrammingError(r), "expected *ProgrammingError, got %T", r)
	}()
	fn()
}

func TestFuture_FinishThenOnDone(t *testing.T) {
	f := New[int]()
	f.Finish(42)

	var got int
	f.OnDone(func(v int, err error) {
		require.NoError(t, err)
		got = v
	})
	assert.Equal(t, 42, got, "continuation fires at attach time when already settled")
}

func TestFuture_OnDoneThenFail(t *testing.T) {
	f := New[string]()
	boom := errors.New("boom")

	var gotErr error
	f.OnDone(func(_ string, err error) { gotErr = err })
	assert.Nil(t, gotErr)

	f.Fail(boom)
	assert.ErrorIs(t, gotErr, boom)
}

func TestFuture_SecondSettleIsProgrammingError(t *testing.T) {
	f := New[int]()
	f.Finish(1)

	requireProgrammingError(t, func() { f.Finish(2) })
	requireProgrammingError(t, func() { f.Fail(errors.New("late")) })

	v, err := f.Get()
	require.NoError(t, err)
	assert.Equal(t, 1, v, "first value wins")
}

func TestFuture_SecondContinuationIsProgrammingError(t *testing.T) {
	f := New[int]()
	f.OnDone(func(int, error) {})
	requireProgrammingError(t, func() { f.OnDone(func(int, error) {}) })
}

func TestFuture_FailNilIsProgrammingError(t *testing.T) {
	requireProgrammingError(t, func() { New[int]().Fail(nil) })
}

// TestFuture_ConcurrentAttachAndResolve races OnDone against Finish and
// Fail and checks the continuation fires exactly once with the right
// outcome regardless of ordering.
func TestFuture_ConcurrentAttachAndResolve(t *testing.T) {
	const iterations = 2000
	boom := errors.New("boom")

	for i := 0; i < iterations; i++ {
		f := New[int]()
		var calls atomic.Int32
		var gotV atomic.Int64
		var gotErr atomic.Value
		reject := i%2 == 1

		var wg sync.WaitGroup
		start := make(chan struct{})
		wg.Add(2)
		go func() {
			defer wg.Done()
			<-start
			f.OnDone(func(v int, err error) {
				calls.Add(1)
				gotV.Store(int64(v))
				if err != nil {
					gotErr.Store(err)
				}
			})
		}()
		go func() {
			defer wg.Done()
			<-start
			if reject {
				f.Fail(boom)
			} else {
				f.Finish(i)
			}
		}()
		close(start)
		wg.Wait()

		require.Equal(t, int32(1), calls.Load(), "iteration %d", i)
		if reject {
			require.Equal(t, boom, gotErr.Load(), "iteration %d", i)
		} else {
			require.Equal(t, int64(i), gotV.Load(), "iteration %d", i)
		}
	}
}

func TestFuture_AwaitManyObservers(t *testing.T) {
	f := New[string]()

	var wg sync.WaitGroup
	results := make([]string, 8)
	for i := range results {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			v, err := f.Await(context.Background())
			assert.NoError(t, err)
			results[idx] = v
		}(i)
	}

	time.Sleep(10 * time.Millisecond)
	f.Finish("ok")
	wg.Wait()

	for _, r := range results {
		assert.Equal(t, "ok", r)
	}
}

func TestFuture_AwaitContextCancelled(t *testing.T) {
	f := New[int]()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := f.Await(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, f.Done(), "cancelled wait leaves the future pending")

	f.Finish(3)
	v, err := f.Get()
	require.NoError(t, err)
	assert.Equal(t, 3, v)
}

func TestFuture_Result(t *testing.T) {
	f := New[int]()
	_, _, ok := f.Result()
	assert.False(t, ok)

	f.Finish(9)
	v, err, ok := f.Result()
	assert.True(t, ok)
	assert.NoError(t, err)
	assert.Equal(t, 9, v)
}

func TestThen(t *testing.T) {
	f := New[int]()
	g := Then(f, func(v int) (string, error) {
		if v < 0 {
			return "", errors.New("negative")
		}
		return "n", nil
	})
	f.Finish(1)
	v, err := g.Get()
	require.NoError(t, err)
	assert.Equal(t, "n", v)

	h := Then(Resolved(-1), func(v int) (string, error) {
		return "", errors.New("negative")
	})
	_, err = h.Get()
	assert.EqualError(t, err, "negative")

	boom := errors.New("boom")
	k := Then(Rejected[int](boom), func(int) (int, error) { return 0, nil })
	_, err = k.Get()
	assert.ErrorIs(t, err, boom)
}

func TestAny(t *testing.T) {
	typed := Resolved([]string{"a"})
	v, err := typed.Any().Get()
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, v)

	untyped := New[any]()
	assert.Same(t, untyped, untyped.Any())
}

func TestForward(t *testing.T) {
	src := New[int]()
	dst := New[int]()
	Forward(src, dst)
	src.Finish(5)
	v, err := dst.Get()
	require.NoError(t, err)
	assert.Equal(t, 5, v)
}
