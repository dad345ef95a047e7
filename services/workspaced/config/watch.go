// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// =============================================================================
// FILE WATCHER
// =============================================================================

// DefaultDebounce is how long a FileWatcher waits for further events before
// calling its handler.
const DefaultDebounce = 150 * time.Millisecond

// FileWatcher calls a handler when one file changes.
//
// Description:
//
//	Watches the file's parent directory so editors that replace files by
//	rename are still observed. Events for other files are ignored. Bursts
//	of events are collapsed by a debounce window.
//
// Thread Safety:
//
//	Safe for concurrent use. The handler is called from a single goroutine.
type FileWatcher struct {
	path     string
	watcher  *fsnotify.Watcher
	handler  func()
	debounce time.Duration

	done     chan struct{}
	stopOnce sync.Once
}

// NewFileWatcher creates a watcher for path. Call Start to begin watching.
//
// Inputs:
//
//	path - File to watch. Its directory must exist.
//	debounce - Debounce window; zero uses DefaultDebounce.
//	handler - Called after changes settle.
func NewFileWatcher(path string, debounce time.Duration, handler func()) (*FileWatcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving watch path: %w", err)
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watching %s: %w", filepath.Dir(abs), err)
	}

	return &FileWatcher{
		path:     abs,
		watcher:  watcher,
		handler:  handler,
		debounce: debounce,
		done:     make(chan struct{}),
	}, nil
}

// Start runs the event loop until ctx is done or Stop is called.
func (w *FileWatcher) Start(ctx context.Context) {
	go w.loop(ctx)
}

// Stop stops the watcher. Safe to call more than once.
func (w *FileWatcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		w.watcher.Close()
	})
}

// Path returns the absolute path being watched.
func (w *FileWatcher) Path() string {
	return w.path
}

func (w *FileWatcher) loop(ctx context.Context) {
	var timer *time.Timer
	var fire <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			w.Stop()
			return
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C
		case <-fire:
			fire = nil
			w.handler()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			slog.Warn("File watcher error",
				slog.String("path", w.path),
				slog.String("error", err.Error()),
			)
		}
	}
}

// Watch reloads the document at path whenever it changes and passes it to
// fn. Documents that fail to load are logged and skipped. The returned
// watcher is already started; Stop it or cancel ctx to end watching.
func Watch(ctx context.Context, path string, fn func(Document)) (*FileWatcher, error) {
	var w *FileWatcher
	w, err := NewFileWatcher(path, 0, func() {
		doc, err := LoadDocument(ctx, w.path)
		if err != nil {
			slog.Warn("Config reload failed",
				slog.String("path", w.path),
				slog.String("error", err.Error()),
			)
			return
		}
		slog.Info("Config reloaded",
			slog.String("path", w.path),
			slog.Int("components", len(doc)),
		)
		fn(doc)
	})
	if err != nil {
		return nil, err
	}
	w.Start(ctx)
	return w, nil
}
