// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package badger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTest(t *testing.T) *Store {
	t.Helper()
	s, err := OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// TestBucket_PutGetDelete verifies the basic key lifecycle.
func TestBucket_PutGetDelete(t *testing.T) {
	b := openTest(t).Bucket("lint")

	_, ok, err := b.Get("missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, b.Put("k", []byte("v"), 0))
	v, ok, err := b.Get("k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("v"), v)

	require.NoError(t, b.Delete("k"))
	_, ok, err = b.Get("k")
	require.NoError(t, err)
	assert.False(t, ok)

	assert.NoError(t, b.Delete("k"), "deleting twice is fine")
}

// TestBucket_Isolation verifies buckets do not see each other's keys.
func TestBucket_Isolation(t *testing.T) {
	s := openTest(t)
	lint, ccdb := s.Bucket("lint"), s.Bucket("ccdb")

	require.NoError(t, lint.Put("k", []byte("lint"), 0))
	require.NoError(t, ccdb.Put("k", []byte("ccdb"), 0))
	require.NoError(t, ccdb.Put("j", []byte("ccdb"), 0))

	require.NoError(t, ccdb.Clear())

	n, err := ccdb.Len()
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	v, ok, err := lint.Get("k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("lint"), v)
}

func TestBucket_TTL(t *testing.T) {
	b := openTest(t).Bucket("ttl")
	require.NoError(t, b.Put("short", []byte("x"), time.Second))
	require.NoError(t, b.Put("forever", []byte("y"), 0))

	require.Eventually(t, func() bool {
		_, ok, err := b.Get("short")
		return err == nil && !ok
	}, 3*time.Second, 50*time.Millisecond)

	_, ok, err := b.Get("forever")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestBucket_EmptyKey(t *testing.T) {
	s := openTest(t)
	_, _, err := s.Bucket("lint").Get("")
	assert.ErrorIs(t, err, ErrEmptyKey)
	assert.ErrorIs(t, s.Bucket("").Put("k", nil, 0), ErrEmptyKey)
}

func TestJSON_RoundTrip(t *testing.T) {
	type issue struct {
		File string `json:"file"`
		Line int    `json:"line"`
	}
	b := openTest(t).Bucket("json")

	require.NoError(t, PutJSON(b, "issues", []issue{{File: "a.d", Line: 3}}, 0))
	got, ok, err := GetJSON[[]issue](b, "issues")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []issue{{File: "a.d", Line: 3}}, got)

	require.NoError(t, b.Put("bad", []byte("{"), 0))
	_, ok, err = GetJSON[[]issue](b, "bad")
	assert.Error(t, err)
	assert.False(t, ok)
}

// TestOpen_Persistent verifies data survives reopening.
func TestOpen_Persistent(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig(dir)
	cfg.GCInterval = 10 * time.Millisecond

	s, err := Open(cfg)
	require.NoError(t, err)
	require.NoError(t, s.Bucket("b").Put("k", []byte("v"), 0))
	require.NoError(t, s.Close())
	require.NoError(t, s.Close(), "close twice returns the first result")

	s2, err := Open(cfg)
	require.NoError(t, err)
	defer s2.Close()

	v, ok, err := s2.Bucket("b").Get("k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("v"), v)
}

func TestOpen_PathRequired(t *testing.T) {
	_, err := Open(Config{})
	assert.ErrorIs(t, err, ErrPathRequired)
}

func TestStore_ClosedOperations(t *testing.T) {
	s, err := OpenInMemory()
	require.NoError(t, err)
	require.NoError(t, s.Close())

	_, _, err = s.Bucket("b").Get("k")
	assert.ErrorIs(t, err, ErrStoreClosed)
}
