// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package lint is a workspace component that runs an external
// static-analysis tool and reports its findings.
//
// # Configuration
//
// Keys under the "lint" component:
//
//	command      tool binary (default "dscanner")
//	args         arguments before the file name
//	pattern      report line regexp with named groups
//	timeout      seconds per tool run (default 30)
//	cacheTTL     seconds a cached result stays valid (default 300, 0 disables)
//	rate         tool starts per second (default 0, unthrottled)
//	importPaths  extra import roots contributed to the workspace
//
// # Operations
//
//	lint(file string)                 issues for a file on disk
//	lint(file string, content string) issues for unsaved content
//	lintFiles(files array<string>)    issues for several files
//	isAvailable()                     whether the tool is installed
//	clearCache()                      drop cached results
//
// Lint operations run on the component's private pool and return issues
// as arrays of {file, line, column, category, message} objects.
package lint

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/workspaced/services/workspaced/component"
	"github.com/AleutianAI/workspaced/services/workspaced/dispatch"
	"github.com/AleutianAI/workspaced/services/workspaced/storage/badger"
)

// Name is the registered component name.
const Name = "lint"

// Configuration keys.
const (
	KeyCommand     = "command"
	KeyArgs        = "args"
	KeyPattern     = "pattern"
	KeyTimeout     = "timeout"
	KeyCacheTTL    = "cacheTTL"
	KeyRate        = "rate"
	KeyImportPaths = "importPaths"
)

// DefaultCacheTTL is how long a cached result stays valid.
const DefaultCacheTTL = 5 * time.Minute

// Descriptor returns the lint component descriptor. Each bound wrapper
// opens a private in-memory result cache.
func Descriptor() component.Descriptor {
	return DescriptorWithStore(nil)
}

// DescriptorWithStore returns a descriptor whose wrappers cache results in
// store, one bucket per workspace root. The caller owns store.
func DescriptorWithStore(store *badger.Store) component.Descriptor {
	return component.Descriptor{
		Info: component.Info{
			Name:        Name,
			Version:     "v1.0.0",
			Description: "Runs an external static-analysis tool and reports issues",
		},
		New: func() component.Component {
			return &Linter{store: store}
		},
	}
}

// Linter is the lint component.
type Linter struct {
	component.Base

	runner      *Runner
	store       *badger.Store
	ownStore    bool
	cache       *badger.Bucket
	ttl         time.Duration
	importPaths []string
}

var (
	_ component.Component          = (*Linter)(nil)
	_ component.ImportPathProvider = (*Linter)(nil)
)

// Bind implements component.Component.
func (l *Linter) Bind(host component.Host, scope component.Scope) error {
	l.Init(Name, host, scope)
	cfg := l.Config()

	command, err := cfg.GetString(Name, KeyCommand, DefaultCommand)
	if err != nil {
		return err
	}
	args, err := cfg.GetStrings(Name, KeyArgs, DefaultArgs)
	if err != nil {
		return err
	}
	pattern, err := cfg.GetString(Name, KeyPattern, DefaultPattern)
	if err != nil {
		return err
	}
	timeout, err := cfg.GetFloat(Name, KeyTimeout, DefaultTimeout.Seconds())
	if err != nil {
		return err
	}
	ttl, err := cfg.GetFloat(Name, KeyCacheTTL, DefaultCacheTTL.Seconds())
	if err != nil {
		return err
	}
	perSecond, err := cfg.GetFloat(Name, KeyRate, 0)
	if err != nil {
		return err
	}
	l.importPaths, err = cfg.GetStrings(Name, KeyImportPaths, nil)
	if err != nil {
		return err
	}

	opts := []Option{
		WithArgs(args...),
		WithTimeout(time.Duration(timeout * float64(time.Second))),
		WithRateLimit(perSecond, 1),
	}
	if root := l.Root(); root != "" {
		opts = append(opts, WithWorkingDir(root))
	}
	l.runner, err = NewRunner(command, pattern, opts...)
	if err != nil {
		return err
	}
	l.ttl = time.Duration(ttl * float64(time.Second))

	if l.store == nil {
		l.store, err = badger.OpenInMemory()
		if err != nil {
			return fmt.Errorf("open lint cache: %w", err)
		}
		l.ownStore = true
	}
	l.cache = l.store.Bucket(Name + ":" + l.Root())

	l.Logger().Debug("Linter bound",
		slog.String("command", command),
		slog.Duration("cache_ttl", l.ttl),
		slog.Bool("available", l.runner.Available()),
	)
	return nil
}

// Operations implements component.Component.
func (l *Linter) Operations() *dispatch.Table {
	return dispatch.NewTable().
		Add("lint", []dispatch.Param{dispatch.P("file", dispatch.String)}, l.opLintFile).
		Add("lint", []dispatch.Param{
			dispatch.P("file", dispatch.String),
			dispatch.P("content", dispatch.String),
		}, l.opLintContent).
		Add("lintFiles", []dispatch.Param{dispatch.P("files", dispatch.Strings)}, l.opLintFiles).
		Add("isAvailable", nil, func(context.Context, dispatch.Args) (any, error) {
			return l.runner.Available(), nil
		}).
		Add("clearCache", nil, func(context.Context, dispatch.Args) (any, error) {
			return nil, l.ClearCache()
		})
}

// Shutdown implements component.Component.
func (l *Linter) Shutdown(final bool) {
	l.ClosePool()
	if l.ownStore && l.store != nil {
		if err := l.store.Close(); err != nil {
			l.Logger().Warn("Closing lint cache failed", slog.String("error", err.Error()))
		}
	}
}

// ImportPaths implements component.ImportPathProvider.
func (l *Linter) ImportPaths() []string {
	out := make([]string, 0, len(l.importPaths))
	for _, p := range l.importPaths {
		if !filepath.IsAbs(p) && l.Root() != "" {
			p = filepath.Join(l.Root(), p)
		}
		out = append(out, p)
	}
	return out
}

// ClearCache drops every cached result for this scope.
func (l *Linter) ClearCache() error {
	return l.cache.Clear()
}

// =============================================================================
// OPERATIONS
// =============================================================================

func (l *Linter) opLintFile(ctx context.Context, args dispatch.Args) (any, error) {
	file := l.resolve(args.String(0))
	return component.OnPool(&l.Base, func() ([]any, error) {
		content, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", file, err)
		}
		return l.lint(ctx, file, content, false)
	}), nil
}

func (l *Linter) opLintContent(ctx context.Context, args dispatch.Args) (any, error) {
	file := l.resolve(args.String(0))
	content := []byte(args.String(1))
	return component.OnPool(&l.Base, func() ([]any, error) {
		return l.lint(ctx, file, content, true)
	}), nil
}

func (l *Linter) opLintFiles(ctx context.Context, args dispatch.Args) (any, error) {
	files := args.Strings(0)
	return component.OnPool(&l.Base, func() ([]any, error) {
		results := make([][]any, len(files))
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(4)
		for i, f := range files {
			file := l.resolve(f)
			g.Go(func() error {
				content, err := os.ReadFile(file)
				if err != nil {
					return fmt.Errorf("read %s: %w", file, err)
				}
				issues, err := l.lint(gctx, file, content, false)
				results[i] = issues
				return err
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
		out := make([]any, 0)
		for _, r := range results {
			out = append(out, r...)
		}
		return out, nil
	}), nil
}

// lint returns issues for file, consulting the cache first. content is
// what gets hashed; fromMemory selects RunContent over Run.
func (l *Linter) lint(ctx context.Context, file string, content []byte, fromMemory bool) ([]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ctx, span := startLintSpan(ctx, l.runner.Command(), file)
	defer span.End()
	start := time.Now()

	key := l.cacheKey(file, content)
	if l.ttl > 0 {
		cached, ok, err := badger.GetJSON[[]Issue](l.cache, key)
		if err != nil {
			l.Logger().Warn("Lint cache read failed", slog.String("error", err.Error()))
		}
		if ok {
			recordLint(ctx, l.runner.Command(), time.Since(start), len(cached), true, true)
			return issueValues(cached), nil
		}
	}

	var (
		issues []Issue
		err    error
	)
	if fromMemory {
		issues, err = l.runner.RunContent(ctx, file, content)
	} else {
		issues, err = l.runner.Run(ctx, file)
	}
	recordLint(ctx, l.runner.Command(), time.Since(start), len(issues), false, err == nil)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	if l.ttl > 0 {
		if err := badger.PutJSON(l.cache, key, issues, l.ttl); err != nil {
			l.Logger().Warn("Lint cache write failed", slog.String("error", err.Error()))
		}
	}
	l.Logger().Debug("Lint completed",
		slog.String("file", file),
		slog.Int("issues", len(issues)),
		slog.Duration("duration", time.Since(start)),
	)
	return issueValues(issues), nil
}

// cacheKey hashes the tool invocation together with the file and its
// content.
func (l *Linter) cacheKey(file string, content []byte) string {
	h := sha256.New()
	h.Write([]byte(l.runner.Command()))
	for _, a := range l.runner.Args() {
		h.Write([]byte{0})
		h.Write([]byte(a))
	}
	h.Write([]byte{0})
	h.Write([]byte(file))
	h.Write([]byte{0})
	h.Write(content)
	return hex.EncodeToString(h.Sum(nil))
}

func (l *Linter) resolve(file string) string {
	if file == "" || filepath.IsAbs(file) || l.Root() == "" {
		return file
	}
	return filepath.Join(l.Root(), file)
}

func issueValues(issues []Issue) []any {
	out := make([]any, len(issues))
	for i, issue := range issues {
		out[i] = issue.Value()
	}
	return out
}
