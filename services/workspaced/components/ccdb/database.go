// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ccdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mattn/go-shellwords"
)

var (
	// ErrInvalidDatabase indicates the file is not a compilation database.
	ErrInvalidDatabase = errors.New("invalid compilation database")

	// ErrInvalidCommand indicates a command string that cannot be split
	// into arguments.
	ErrInvalidCommand = errors.New("invalid command string")
)

// Entry is one compile_commands.json record. Either Command or Arguments
// is set.
type Entry struct {
	Directory string   `json:"directory"`
	File      string   `json:"file"`
	Command   string   `json:"command,omitempty"`
	Arguments []string `json:"arguments,omitempty"`
	Output    string   `json:"output,omitempty"`
}

// Argv returns the entry's command line as arguments.
func (e Entry) Argv() ([]string, error) {
	if len(e.Arguments) > 0 {
		return e.Arguments, nil
	}
	return SplitCommand(e.Command)
}

// Database is a parsed compilation database with its flags aggregated
// across every entry, in first-seen order without duplicates.
type Database struct {
	Path    string
	Entries []Entry

	ImportPaths       []string
	StringImportPaths []string
	ImportFiles       []string
	Versions          []string
	DebugVersions     []string

	byFile map[string]int
}

// Load reads and parses the database at path.
func Load(ctx context.Context, path string) (*Database, error) {
	_, span := tracer.Start(ctx, "ccdb.Load")
	defer span.End()

	data, err := os.ReadFile(path)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	db, err := Parse(data, path)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return db, nil
}

// Parse parses database contents. path is recorded and used to resolve
// entries with an empty directory.
func Parse(data []byte, path string) (*Database, error) {
	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDatabase, err)
	}

	db := &Database{
		Path:    path,
		Entries: entries,
		byFile:  make(map[string]int, len(entries)),
	}
	agg := newAggregator()
	for i := range entries {
		e := &entries[i]
		if e.Directory == "" {
			e.Directory = filepath.Dir(path)
		}
		if e.File == "" {
			return nil, fmt.Errorf("%w: entry %d has no file", ErrInvalidDatabase, i)
		}
		argv, err := e.Argv()
		if err != nil {
			return nil, fmt.Errorf("%w: entry %d: %v", ErrInvalidDatabase, i, err)
		}
		agg.add(e.Directory, argv)
		db.byFile[cleanKey(resolve(e.Directory, e.File))] = i
	}
	db.ImportPaths = agg.imports.list
	db.StringImportPaths = agg.stringImports.list
	db.ImportFiles = agg.files.list
	db.Versions = agg.versions.list
	db.DebugVersions = agg.debugs.list
	return db, nil
}

// Command returns the argument vector used to compile file, resolved
// against the database directory when relative.
func (d *Database) Command(file string) ([]string, bool) {
	if !filepath.IsAbs(file) {
		file = filepath.Join(filepath.Dir(d.Path), file)
	}
	i, ok := d.byFile[cleanKey(file)]
	if !ok {
		return nil, false
	}
	argv, err := d.Entries[i].Argv()
	if err != nil {
		return nil, false
	}
	return append([]string(nil), argv...), true
}

// =============================================================================
// FLAG AGGREGATION
// =============================================================================

type orderedSet struct {
	seen map[string]struct{}
	list []string
}

func (s *orderedSet) add(v string) {
	if v == "" {
		return
	}
	if s.seen == nil {
		s.seen = make(map[string]struct{})
	}
	if _, ok := s.seen[v]; ok {
		return
	}
	s.seen[v] = struct{}{}
	s.list = append(s.list, v)
}

type aggregator struct {
	imports, stringImports, files, versions, debugs orderedSet
}

func newAggregator() *aggregator {
	return &aggregator{}
}

// flag kinds
const (
	flagImport = iota
	flagStringImport
	flagFile
	flagVersion
	flagDebug
)

// flagPrefixes lists joined forms, longest first where prefixes overlap.
var flagPrefixes = []struct {
	prefix string
	kind   int
}{
	{"--d-version=", flagVersion},
	{"-d-version=", flagVersion},
	{"-version=", flagVersion},
	{"--d-debug=", flagDebug},
	{"-d-debug=", flagDebug},
	{"-debug=", flagDebug},
	{"-I=", flagImport},
	{"-J=", flagStringImport},
	{"-i=", flagFile},
	{"-I", flagImport},
	{"-J", flagStringImport},
}

// add folds one command line into the sets. Paths resolve against dir.
func (a *aggregator) add(dir string, argv []string) {
	for i := 0; i < len(argv); i++ {
		arg := argv[i]
		// Separated form: -I path, -J path.
		if (arg == "-I" || arg == "-J") && i+1 < len(argv) {
			i++
			if arg == "-I" {
				a.imports.add(resolve(dir, argv[i]))
			} else {
				a.stringImports.add(resolve(dir, argv[i]))
			}
			continue
		}
		for _, fp := range flagPrefixes {
			if !strings.HasPrefix(arg, fp.prefix) {
				continue
			}
			v := arg[len(fp.prefix):]
			switch fp.kind {
			case flagImport:
				a.imports.add(resolve(dir, v))
			case flagStringImport:
				a.stringImports.add(resolve(dir, v))
			case flagFile:
				a.files.add(resolve(dir, v))
			case flagVersion:
				a.versions.add(v)
			case flagDebug:
				a.debugs.add(v)
			}
			break
		}
	}
}

func resolve(dir, p string) string {
	if p == "" {
		return ""
	}
	if !filepath.IsAbs(p) {
		p = filepath.Join(dir, p)
	}
	return filepath.Clean(p)
}

func cleanKey(p string) string {
	return filepath.Clean(p)
}

// =============================================================================
// COMMAND SPLITTING
// =============================================================================

// SplitCommand splits a shell-style command string into arguments.
// Quoting and backslash escapes follow the shell; variables and command
// substitutions are left as literal text. An open quote, a trailing
// backslash or an unquoted shell operator (; & | < >) is an error.
func SplitCommand(s string) ([]string, error) {
	p := shellwords.NewParser()
	p.ParseEnv = false
	p.ParseBacktick = false

	args, err := p.Parse(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCommand, err)
	}
	if p.Position >= 0 {
		return nil, fmt.Errorf("%w: shell operator at offset %d", ErrInvalidCommand, p.Position)
	}
	if len(args) == 0 {
		return nil, nil
	}
	return args, nil
}
