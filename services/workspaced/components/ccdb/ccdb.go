// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package ccdb is a workspace component that reads a JSON compilation
// database (compile_commands.json) and exposes the flags it aggregates.
//
// # Configuration
//
// Keys under the "ccdb" component:
//
//	path   database file, relative to the root (default "compile_commands.json")
//	watch  reload when the file changes (default true)
//
// # Operations
//
//	load()                  reload from the configured path
//	load(path string)       load another database and adopt its path
//	importPaths()           -I roots
//	stringImportPaths()     -J roots
//	importFiles()           -i= files
//	versions()              -version= identifiers
//	debugVersions()         -debug= identifiers
//	fileCommand(file string) argument vector for file, or null
//
// load returns the number of entries. A missing database is not an
// error: the component binds with an empty database and picks the file up
// when it appears. Every successful reload after Bind broadcasts
//
//	{"type": "ccdb.reloaded", "root": <root>, "entries": <n>}
package ccdb

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/AleutianAI/workspaced/services/workspaced/component"
	"github.com/AleutianAI/workspaced/services/workspaced/config"
	"github.com/AleutianAI/workspaced/services/workspaced/dispatch"
)

// Name is the registered component name.
const Name = "ccdb"

// Configuration keys.
const (
	KeyPath  = "path"
	KeyWatch = "watch"
)

// DefaultFile is the database file name looked up under the root.
const DefaultFile = "compile_commands.json"

// ReloadedEvent is the broadcast type sent after a reload.
const ReloadedEvent = "ccdb.reloaded"

// Load triggers.
const (
	triggerBind  = "bind"
	triggerOp    = "op"
	triggerWatch = "watch"
)

// Descriptor returns the ccdb component descriptor.
func Descriptor() component.Descriptor {
	return component.Descriptor{
		Info: component.Info{
			Name:        Name,
			Version:     "v1.0.0",
			Description: "Reads compile_commands.json and reports import paths and versions",
		},
		New: func() component.Component {
			return &CompilationDatabase{}
		},
	}
}

// CompilationDatabase is the ccdb component.
//
// Thread Safety:
//
//	The loaded database is swapped under mu; readers see either the old
//	or the new database, never a partial one. Concurrent reloads of the
//	same path share one load.
type CompilationDatabase struct {
	component.Base

	mu      sync.RWMutex
	path    string
	db      *Database
	watcher *config.FileWatcher

	watch  bool
	loads  singleflight.Group
	ctx    context.Context
	cancel context.CancelFunc
}

var (
	_ component.Component                = (*CompilationDatabase)(nil)
	_ component.ImportPathProvider       = (*CompilationDatabase)(nil)
	_ component.StringImportPathProvider = (*CompilationDatabase)(nil)
	_ component.ImportFilePathProvider   = (*CompilationDatabase)(nil)
)

// Bind implements component.Component.
func (c *CompilationDatabase) Bind(host component.Host, scope component.Scope) error {
	c.Init(Name, host, scope)
	cfg := c.Config()

	path, err := cfg.GetString(Name, KeyPath, DefaultFile)
	if err != nil {
		return err
	}
	c.watch, err = cfg.GetBool(Name, KeyWatch, true)
	if err != nil {
		return err
	}
	c.ctx, c.cancel = context.WithCancel(context.Background())

	if c.Root() == "" && !filepath.IsAbs(path) {
		// Global scope has no root to resolve a relative path against.
		return nil
	}
	path = c.resolve(path)

	if _, err := c.reload(c.ctx, path, triggerBind); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			c.Logger().Warn("Compilation database not loaded",
				slog.String("path", path),
				slog.String("error", err.Error()),
			)
		}
		c.mu.Lock()
		c.path = path
		c.mu.Unlock()
	}
	c.startWatching(path)
	return nil
}

// Operations implements component.Component.
func (c *CompilationDatabase) Operations() *dispatch.Table {
	str := func(get func(*Database) []string) dispatch.Func {
		return func(context.Context, dispatch.Args) (any, error) {
			return stringValues(c.list(get)), nil
		}
	}
	return dispatch.NewTable().
		Add("load", nil, c.opLoad).
		Add("load", []dispatch.Param{dispatch.P("path", dispatch.String)}, c.opLoad).
		Add("importPaths", nil, str(func(d *Database) []string { return d.ImportPaths })).
		Add("stringImportPaths", nil, str(func(d *Database) []string { return d.StringImportPaths })).
		Add("importFiles", nil, str(func(d *Database) []string { return d.ImportFiles })).
		Add("versions", nil, str(func(d *Database) []string { return d.Versions })).
		Add("debugVersions", nil, str(func(d *Database) []string { return d.DebugVersions })).
		Add("fileCommand", []dispatch.Param{dispatch.P("file", dispatch.String)}, c.opFileCommand)
}

// Shutdown implements component.Component.
func (c *CompilationDatabase) Shutdown(final bool) {
	if c.cancel != nil {
		c.cancel()
	}
	c.mu.Lock()
	w := c.watcher
	c.watcher = nil
	c.mu.Unlock()
	if w != nil {
		w.Stop()
	}
	c.ClosePool()
}

// ImportPaths implements component.ImportPathProvider.
func (c *CompilationDatabase) ImportPaths() []string {
	return c.list(func(d *Database) []string { return d.ImportPaths })
}

// StringImportPaths implements component.StringImportPathProvider.
func (c *CompilationDatabase) StringImportPaths() []string {
	return c.list(func(d *Database) []string { return d.StringImportPaths })
}

// ImportFilePaths implements component.ImportFilePathProvider.
func (c *CompilationDatabase) ImportFilePaths() []string {
	return c.list(func(d *Database) []string { return d.ImportFiles })
}

// Path returns the database path currently in use.
func (c *CompilationDatabase) Path() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.path
}

// =============================================================================
// OPERATIONS
// =============================================================================

func (c *CompilationDatabase) opLoad(ctx context.Context, args dispatch.Args) (any, error) {
	path := c.Path()
	if args.Len() > 0 {
		path = c.resolve(args.String(0))
	}
	if path == "" {
		return nil, fmt.Errorf("%w: no database path configured", ErrInvalidDatabase)
	}
	db, err := c.reload(ctx, path, triggerOp)
	if err != nil {
		return nil, err
	}
	c.startWatching(path)
	return len(db.Entries), nil
}

func (c *CompilationDatabase) opFileCommand(_ context.Context, args dispatch.Args) (any, error) {
	c.mu.RLock()
	db := c.db
	c.mu.RUnlock()
	if db == nil {
		return nil, nil
	}
	file := args.String(0)
	if !filepath.IsAbs(file) && c.Root() != "" {
		file = filepath.Join(c.Root(), file)
	}
	argv, ok := db.Command(file)
	if !ok {
		return nil, nil
	}
	return stringValues(argv), nil
}

// =============================================================================
// LOADING
// =============================================================================

// reload loads path and swaps it in. Concurrent reloads of one path share
// a single read and a single broadcast.
func (c *CompilationDatabase) reload(ctx context.Context, path, trigger string) (*Database, error) {
	v, err, _ := c.loads.Do(path, func() (any, error) {
		db, err := Load(ctx, path)
		if err != nil {
			recordReload(ctx, trigger, 0, false)
			return nil, err
		}
		c.mu.Lock()
		c.db = db
		c.path = path
		c.mu.Unlock()
		recordReload(ctx, trigger, len(db.Entries), true)

		c.Logger().Info("Compilation database loaded",
			slog.String("path", path),
			slog.String("trigger", trigger),
			slog.Int("entries", len(db.Entries)),
		)
		if trigger != triggerBind {
			c.Broadcast(map[string]any{
				"type":    ReloadedEvent,
				"root":    c.Root(),
				"entries": len(db.Entries),
			})
		}
		return db, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Database), nil
}

// startWatching watches path, replacing any watcher on another path.
func (c *CompilationDatabase) startWatching(path string) {
	if !c.watch || c.ctx.Err() != nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.watcher != nil {
		if c.watcher.Path() == path {
			return
		}
		c.watcher.Stop()
		c.watcher = nil
	}

	w, err := config.NewFileWatcher(path, 0, func() {
		if _, err := os.Stat(path); err != nil {
			return
		}
		if _, err := c.reload(c.ctx, path, triggerWatch); err != nil {
			c.Logger().Warn("Compilation database reload failed",
				slog.String("path", path),
				slog.String("error", err.Error()),
			)
		}
	})
	if err != nil {
		c.Logger().Warn("Cannot watch compilation database",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		return
	}
	w.Start(c.ctx)
	c.watcher = w
}

func (c *CompilationDatabase) list(get func(*Database) []string) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.db == nil {
		return []string{}
	}
	return append([]string{}, get(c.db)...)
}

func (c *CompilationDatabase) resolve(path string) string {
	if path == "" || filepath.IsAbs(path) || c.Root() == "" {
		return path
	}
	return filepath.Join(c.Root(), path)
}

func stringValues(in []string) []any {
	out := make([]any, len(in))
	for i, s := range in {
		out[i] = s
	}
	return out
}
