// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package badger provides the embedded key-value cache used by workspace
// components.
//
// A Store wraps one BadgerDB. Components do not share keys directly; each
// takes a Bucket, a key prefix of its own, so clearing one component's
// cache never touches another's. Entries may carry a TTL, after which
// BadgerDB stops returning them.
//
// License: BadgerDB is Apache 2.0 licensed (github.com/dgraph-io/badger).
package badger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
)

var (
	// ErrPathRequired is returned when a persistent store has no path.
	ErrPathRequired = errors.New("path is required for persistent store")

	// ErrStoreClosed is returned by operations on a closed store.
	ErrStoreClosed = errors.New("store closed")

	// ErrEmptyKey is returned for an empty key or bucket name.
	ErrEmptyKey = errors.New("empty key")
)

// Config holds configuration for a Store.
type Config struct {
	// Path is the database directory. Ignored when InMemory is true.
	Path string

	// InMemory keeps everything in RAM.
	InMemory bool

	// SyncWrites fsyncs every write.
	SyncWrites bool

	// Logger receives BadgerDB's internal log lines. Nil silences them.
	Logger *slog.Logger

	// GCInterval is how often value log GC runs. Zero disables it.
	GCInterval time.Duration

	// GCDiscardRatio is the garbage ratio that triggers a rewrite.
	GCDiscardRatio float64

	// MemTableSize overrides BadgerDB's memtable size when positive.
	MemTableSize int64
}

// DefaultConfig returns the configuration for an on-disk cache at path.
//
// Cache contents can be rebuilt, so writes are not synced.
func DefaultConfig(path string) Config {
	return Config{
		Path:           path,
		GCInterval:     5 * time.Minute,
		GCDiscardRatio: 0.5,
	}
}

// InMemoryConfig returns the configuration used by tests and by a daemon
// started without a cache directory.
func InMemoryConfig() Config {
	return Config{InMemory: true, MemTableSize: 8 << 20}
}

// badgerLogger adapts slog.Logger to BadgerDB's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// =============================================================================
// STORE
// =============================================================================

// Store is an open BadgerDB with optional background value log GC.
//
// Thread Safety:
//
//	Safe for concurrent use.
type Store struct {
	db     *badger.DB
	cancel context.CancelFunc
	gcDone chan struct{}

	closeOnce sync.Once
	closeErr  error
}

// Open opens a store.
//
// Description:
//
//	Creates the directory for persistent stores. Starts value log GC when
//	GCInterval is positive and the store is on disk.
//
// Inputs:
//
//	cfg - Store configuration. Path is required unless InMemory is set.
//
// Outputs:
//
//	*Store - The open store. Caller must Close it.
//	error - ErrPathRequired, or a wrapped BadgerDB error.
func Open(cfg Config) (*Store, error) {
	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if cfg.Path == "" {
			return nil, ErrPathRequired
		}
		if err := os.MkdirAll(cfg.Path, 0o750); err != nil {
			return nil, fmt.Errorf("create cache directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites).WithNumVersionsToKeep(1)
	if cfg.MemTableSize > 0 {
		opts = opts.WithMemTableSize(cfg.MemTableSize)
	}
	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}

	s := &Store{db: db}
	if cfg.GCInterval > 0 && !cfg.InMemory {
		ctx, cancel := context.WithCancel(context.Background())
		s.cancel = cancel
		s.gcDone = make(chan struct{})
		go s.runGC(ctx, cfg.GCInterval, cfg.GCDiscardRatio, cfg.Logger)
	}
	return s, nil
}

// OpenInMemory opens an in-memory store.
func OpenInMemory() (*Store, error) {
	return Open(InMemoryConfig())
}

// Close stops GC and closes the database. Later calls return the first
// result.
func (s *Store) Close() error {
	s.closeOnce.Do(func() {
		if s.cancel != nil {
			s.cancel()
			<-s.gcDone
		}
		s.closeErr = s.db.Close()
	})
	return s.closeErr
}

// Bucket returns the key space named name.
func (s *Store) Bucket(name string) *Bucket {
	return &Bucket{store: s, prefix: []byte(name + "/")}
}

func (s *Store) runGC(ctx context.Context, interval time.Duration, ratio float64, logger *slog.Logger) {
	defer close(s.gcDone)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			err := s.db.RunValueLogGC(ratio)
			if err != nil && !errors.Is(err, badger.ErrNoRewrite) && logger != nil {
				logger.Warn("badger value log GC error", slog.String("error", err.Error()))
			}
		}
	}
}

func (s *Store) closedErr(err error) error {
	if errors.Is(err, badger.ErrDBClosed) {
		return ErrStoreClosed
	}
	return err
}

// =============================================================================
// BUCKET
// =============================================================================

// Bucket is a prefixed key space within a Store.
type Bucket struct {
	store  *Store
	prefix []byte
}

func (b *Bucket) key(k string) ([]byte, error) {
	if k == "" || len(b.prefix) <= 1 {
		return nil, ErrEmptyKey
	}
	out := make([]byte, 0, len(b.prefix)+len(k))
	out = append(out, b.prefix...)
	return append(out, k...), nil
}

// Get returns the value for key. ok is false for a missing or expired key.
func (b *Bucket) Get(key string) (value []byte, ok bool, err error) {
	k, err := b.key(key)
	if err != nil {
		return nil, false, err
	}
	err = b.store.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(k)
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	switch {
	case errors.Is(err, badger.ErrKeyNotFound):
		return nil, false, nil
	case err != nil:
		return nil, false, b.store.closedErr(err)
	}
	return value, true, nil
}

// Put stores value under key. A positive ttl expires the entry.
func (b *Bucket) Put(key string, value []byte, ttl time.Duration) error {
	k, err := b.key(key)
	if err != nil {
		return err
	}
	err = b.store.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry(k, value)
		if ttl > 0 {
			e = e.WithTTL(ttl)
		}
		return txn.SetEntry(e)
	})
	return b.store.closedErr(err)
}

// Delete removes key. Deleting a missing key is not an error.
func (b *Bucket) Delete(key string) error {
	k, err := b.key(key)
	if err != nil {
		return err
	}
	return b.store.closedErr(b.store.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(k)
	}))
}

// Clear removes every key in the bucket.
func (b *Bucket) Clear() error {
	return b.store.closedErr(b.store.db.DropPrefix(b.prefix))
}

// Len counts the live keys in the bucket.
func (b *Bucket) Len() (int, error) {
	n := 0
	err := b.store.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = b.prefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			n++
		}
		return nil
	})
	return n, b.store.closedErr(err)
}

// GetJSON decodes the JSON value stored under key into a T.
func GetJSON[T any](b *Bucket, key string) (T, bool, error) {
	var out T
	raw, ok, err := b.Get(key)
	if err != nil || !ok {
		return out, ok, err
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, false, fmt.Errorf("decode %s: %w", key, err)
	}
	return out, true, nil
}

// PutJSON stores v as JSON under key.
func PutJSON(b *Bucket, key string, v any, ttl time.Duration) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return b.Put(key, raw, ttl)
}
