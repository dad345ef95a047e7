// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/AleutianAI/workspaced/pkg/logging"
	"github.com/AleutianAI/workspaced/services/workspaced"
	"github.com/AleutianAI/workspaced/services/workspaced/component"
	"github.com/AleutianAI/workspaced/services/workspaced/components/ccdb"
	"github.com/AleutianAI/workspaced/services/workspaced/components/lint"
	"github.com/AleutianAI/workspaced/services/workspaced/config"
	"github.com/AleutianAI/workspaced/services/workspaced/storage/badger"
)

const serviceName = "workspaced"

// app is the process wiring shared by the commands.
type app struct {
	logger *logging.Logger
	host   *workspaced.Host
	store  *badger.Store
}

// newLogger builds the process logger. defaultLevel applies when
// --log-level is empty.
func newLogger(opts *options, console io.Writer, defaultLevel logging.Level) (*logging.Logger, error) {
	level := defaultLevel
	if opts.logLevel != "" {
		var err error
		level, err = logging.ParseLevel(opts.logLevel)
		if err != nil {
			return nil, err
		}
	}
	format := logging.FormatAuto
	if opts.jsonLogs {
		format = logging.FormatJSON
	}
	return logging.New(logging.Config{
		Level:   level,
		Format:  format,
		LogDir:  opts.logDir,
		Service: serviceName,
		Output:  console,
	})
}

// newApp builds the logger, the optional result store and the host with
// every bundled component registered.
//
// Inputs:
//
//	ctx - Context for loading the configuration document.
//	opts - Parsed flags.
//	console - Console log destination.
//	defaultLevel - Level used when --log-level is not given.
//
// Outputs:
//
//	*app - The wiring. Call close when done.
//	error - Non-nil when any piece fails to start.
func newApp(ctx context.Context, opts *options, console io.Writer, defaultLevel logging.Level) (*app, error) {
	logger, err := newLogger(opts, console, defaultLevel)
	if err != nil {
		return nil, err
	}
	a := &app{logger: logger}

	var doc config.Document
	if opts.configPath != "" {
		doc, err = config.LoadDocument(ctx, opts.configPath)
		if err != nil {
			a.close(ctx)
			return nil, fmt.Errorf("load %s: %w", opts.configPath, err)
		}
	}

	if opts.cacheDir != "" {
		cfg := badger.DefaultConfig(opts.cacheDir)
		cfg.Logger = logger.Slog()
		a.store, err = badger.Open(cfg)
		if err != nil {
			a.close(ctx)
			return nil, fmt.Errorf("open cache: %w", err)
		}
	}

	a.host, err = workspaced.NewHost(
		workspaced.WithLogger(logger.Slog()),
		workspaced.WithGlobalConfig(doc),
		workspaced.WithBindFailHandler(func(f *workspaced.BindFailure) {
			logger.Slog().Warn("Component failed to bind",
				slog.String("component", f.Component),
				slog.String("root", f.Instance),
				slog.String("error", f.Err.Error()),
			)
		}),
	)
	if err != nil {
		a.close(ctx)
		return nil, err
	}

	auto := make(map[string]bool, len(opts.auto))
	for _, name := range opts.auto {
		auto[name] = true
	}
	for _, desc := range descriptors(a.store) {
		if err := a.host.Register(desc, auto[desc.Name]); err != nil {
			a.close(ctx)
			return nil, fmt.Errorf("register %s: %w", desc.Name, err)
		}
	}
	return a, nil
}

// descriptors lists the bundled components. A nil store gives each
// linter a private in-memory cache.
func descriptors(store *badger.Store) []component.Descriptor {
	return []component.Descriptor{
		lint.DescriptorWithStore(store),
		ccdb.Descriptor(),
	}
}

// close tears everything down in reverse order of construction. Safe on a
// partially built app.
func (a *app) close(ctx context.Context) {
	if a.host != nil {
		if err := a.host.Shutdown(ctx); err != nil && !errors.Is(err, workspaced.ErrHostClosed) {
			a.logger.Slog().Warn("Host shutdown failed", slog.String("error", err.Error()))
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Slog().Warn("Closing cache failed", slog.String("error", err.Error()))
		}
	}
	_ = a.logger.Close()
}
