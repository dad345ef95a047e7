// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package component_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/workspaced/services/workspaced/component"
	"github.com/AleutianAI/workspaced/services/workspaced/component/componenttest"
)

func TestNewWrapper_BindsAndDispatches(t *testing.T) {
	host := componenttest.NewHost()
	defer host.Close()
	rec := &componenttest.Recorder{}
	scope := componenttest.NewScope("/proj")

	w, err := component.NewWrapper(rec.Descriptor("fake"), host, scope)
	require.NoError(t, err)
	assert.Equal(t, "fake", w.Name())
	assert.False(t, w.Global())
	assert.Equal(t, component.StateBound, w.State())

	v, err := w.Dispatch(context.Background(), "root", nil).Get()
	require.NoError(t, err)
	assert.Equal(t, "/proj", v)

	v, err = w.Dispatch(context.Background(), "later", []any{"queued"}).Get()
	require.NoError(t, err)
	assert.Equal(t, "queued", v)

	fake := rec.Built()[0]
	assert.True(t, fake.PoolStarted())

	w.Shutdown(true)
	assert.Equal(t, component.StateStopped, w.State())
	assert.Equal(t, 1, fake.Shutdowns())
	assert.True(t, fake.Final())

	_, err = w.Dispatch(context.Background(), "root", nil).Get()
	assert.ErrorIs(t, err, component.ErrWrapperStopped)

	w.Shutdown(true)
	assert.Equal(t, 1, fake.Shutdowns(), "second shutdown is ignored")
}

func TestNewWrapper_BindFailure(t *testing.T) {
	host := componenttest.NewHost()
	boom := errors.New("no compiler")
	rec := &componenttest.Recorder{Configure: func(f *componenttest.Fake) {
		f.BindFunc = func(component.Scope) error { return boom }
	}}

	w, err := component.NewWrapper(rec.Descriptor("fake"), host, nil)
	assert.Nil(t, w)
	assert.ErrorIs(t, err, boom)
}

func TestNewWrapper_NilAndPanickingFactory(t *testing.T) {
	host := componenttest.NewHost()

	_, err := component.NewWrapper(component.Descriptor{
		Info: component.Info{Name: "nil"},
		New:  func() component.Component { return nil },
	}, host, nil)
	assert.ErrorIs(t, err, component.ErrNilComponent)

	_, err = component.NewWrapper(component.Descriptor{
		Info: component.Info{Name: "panics"},
		New:  func() component.Component { panic("factory exploded") },
	}, host, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "factory exploded")
}

func TestWrapper_Providers(t *testing.T) {
	host := componenttest.NewHost()
	rec := &componenttest.Recorder{Configure: func(f *componenttest.Fake) {
		f.Imports = []string{"/deps/a"}
		f.StringImports = []string{"/deps/views"}
		f.Files = []string{"/deps/one.di"}
	}}

	w, err := component.NewWrapper(rec.Descriptor("fake"), host, componenttest.NewScope("/p"))
	require.NoError(t, err)
	assert.Equal(t, []string{"/deps/a"}, w.ImportPaths())
	assert.Equal(t, []string{"/deps/views"}, w.StringImportPaths())
	assert.Equal(t, []string{"/deps/one.di"}, w.ImportFilePaths())
}

func TestBase_PoolSizeFromConfig(t *testing.T) {
	host := componenttest.NewHost()
	scope := componenttest.NewScope("/p")
	scope.Cfg.Set("fake", component.KeyPoolMin, 2)
	scope.Cfg.Set("fake", component.KeyPoolMax, 3)

	f := &componenttest.Fake{}
	require.NoError(t, f.Bind(host, scope))

	pool, err := f.Pool()
	require.NoError(t, err)
	defer f.ClosePool()

	stats := pool.Stats()
	assert.Equal(t, "fake", stats.Name)
	assert.Equal(t, 2, stats.Workers)
}

func TestBase_InvalidPoolConfigFallsBack(t *testing.T) {
	host := componenttest.NewHost()
	scope := componenttest.NewScope("/p")
	scope.Cfg.Set("fake", component.KeyPoolMin, "lots")

	f := &componenttest.Fake{}
	require.NoError(t, f.Bind(host, scope))

	pool, err := f.Pool()
	require.NoError(t, err)
	defer f.ClosePool()
	assert.Equal(t, component.DefaultPoolMin, pool.Stats().Workers)
}

func TestBase_GlobalScopeUsesHostConfig(t *testing.T) {
	host := componenttest.NewHost()
	host.Global.Set("fake", "k", "v")

	f := &componenttest.Fake{}
	require.NoError(t, f.Bind(host, nil))

	assert.Equal(t, "", f.Root())
	v, ok := f.Config().Get("fake", "k")
	require.True(t, ok)
	assert.Equal(t, "v", v)

	f.Broadcast(map[string]any{"type": "ping"})
	msgs := host.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "", msgs[0].Root)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "bound", component.StateBound.String())
	assert.Equal(t, "stopped", component.StateStopped.String())
	assert.Equal(t, "unknown", component.State(42).String())
}
