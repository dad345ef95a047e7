// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package lint

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// =============================================================================
// DEFAULTS
// =============================================================================

const (
	// DefaultCommand is the static-analysis tool run by default.
	DefaultCommand = "dscanner"

	// DefaultPattern matches one line of the tool's text report.
	DefaultPattern = `^(?P<file>.+?)\((?P<line>\d+):(?P<column>\d+)\)\[(?P<category>\w+)\]: (?P<message>.*)$`

	// DefaultTimeout bounds one tool run.
	DefaultTimeout = 30 * time.Second
)

// DefaultArgs precede the file name on the tool's command line.
var DefaultArgs = []string{"--styleCheck", "--errorFormat", "{filepath}({line}:{column})[{type}]: {message}"}

// Issue is one reported problem.
type Issue struct {
	File     string `json:"file"`
	Line     int    `json:"line"`
	Column   int    `json:"column"`
	Category string `json:"category"`
	Message  string `json:"message"`
}

// Value returns the issue as a JSON-like map.
func (i Issue) Value() map[string]any {
	return map[string]any{
		"file":     i.File,
		"line":     i.Line,
		"column":   i.Column,
		"category": i.Category,
		"message":  i.Message,
	}
}

// =============================================================================
// RUNNER
// =============================================================================

// Runner executes the lint tool and parses its report.
//
// Thread Safety:
//
//	Immutable after NewRunner; safe for concurrent use.
type Runner struct {
	command    string
	args       []string
	pattern    *regexp.Regexp
	timeout    time.Duration
	workingDir string
	limiter    *rate.Limiter
}

// Option configures a Runner.
type Option func(*Runner)

// WithArgs replaces the arguments placed before the file name.
func WithArgs(args ...string) Option {
	return func(r *Runner) {
		r.args = append([]string(nil), args...)
	}
}

// WithTimeout bounds each tool run. Non-positive values keep the default.
func WithTimeout(d time.Duration) Option {
	return func(r *Runner) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithWorkingDir sets the tool's working directory.
func WithWorkingDir(dir string) Option {
	return func(r *Runner) {
		r.workingDir = dir
	}
}

// WithRateLimit caps tool starts at perSecond with the given burst.
// Non-positive perSecond leaves runs unthrottled.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(r *Runner) {
		if perSecond <= 0 {
			r.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		r.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// withPattern is applied by NewRunner after compilation.
func withPattern(re *regexp.Regexp) Option {
	return func(r *Runner) {
		r.pattern = re
	}
}

// NewRunner creates a runner for command.
//
// Inputs:
//
//	command - Tool binary name or path. Empty means DefaultCommand.
//	pattern - Report line pattern. Empty means DefaultPattern. Must have
//	          the named groups file, line and message; column and
//	          category are optional.
//	opts - Runner options.
//
// Outputs:
//
//	*Runner - The runner.
//	error - Wraps ErrInvalidPattern.
func NewRunner(command, pattern string, opts ...Option) (*Runner, error) {
	if command == "" {
		command = DefaultCommand
	}
	if pattern == "" {
		pattern = DefaultPattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPattern, err)
	}
	for _, group := range []string{"file", "line", "message"} {
		if re.SubexpIndex(group) < 0 {
			return nil, fmt.Errorf("%w: missing group %q", ErrInvalidPattern, group)
		}
	}

	r := &Runner{
		command: command,
		args:    append([]string(nil), DefaultArgs...),
		timeout: DefaultTimeout,
	}
	for _, opt := range append(opts, withPattern(re)) {
		opt(r)
	}
	return r, nil
}

// Command returns the tool name.
func (r *Runner) Command() string {
	return r.command
}

// Args returns a copy of the tool arguments.
func (r *Runner) Args() []string {
	return append([]string(nil), r.args...)
}

// Available reports whether the tool can be found.
func (r *Runner) Available() bool {
	_, err := exec.LookPath(r.command)
	return err == nil
}

// Run lints file and returns its issues.
//
// Description:
//
//	A non-zero exit with a report on stdout is a normal result: most
//	linters exit non-zero when they find problems. A non-zero exit with
//	empty stdout is a ToolError wrapping ErrToolFailed.
func (r *Runner) Run(ctx context.Context, file string) ([]Issue, error) {
	if file == "" {
		return nil, fmt.Errorf("%w: empty file name", ErrInvalidInput)
	}
	out, err := r.execute(ctx, file)
	if err != nil {
		return nil, err
	}
	return r.Parse(out), nil
}

// RunContent lints content as if it were the file name, by writing it to
// a temporary file with the same extension. Reported paths are rewritten
// to name.
func (r *Runner) RunContent(ctx context.Context, name string, content []byte) ([]Issue, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: empty file name", ErrInvalidInput)
	}
	tmp, err := os.CreateTemp("", "workspaced-lint-*"+filepath.Ext(name))
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("close temp file: %w", err)
	}

	issues, err := r.Run(ctx, tmpPath)
	if err != nil {
		return nil, err
	}
	for i := range issues {
		if issues[i].File == tmpPath {
			issues[i].File = name
		}
	}
	return issues, nil
}

func (r *Runner) execute(ctx context.Context, file string) ([]byte, error) {
	if r.limiter != nil {
		if err := r.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}
	cmdCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	args := append(r.Args(), file)
	cmd := exec.CommandContext(cmdCtx, r.command, args...)
	if r.workingDir != "" {
		cmd.Dir = r.workingDir
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	switch {
	case errors.Is(err, exec.ErrNotFound):
		return nil, &ToolError{Tool: r.command, Err: ErrToolNotInstalled}
	case ctx.Err() != nil:
		return nil, ctx.Err()
	case errors.Is(cmdCtx.Err(), context.DeadlineExceeded):
		return nil, &ToolError{Tool: r.command, Err: ErrToolTimeout, Output: stderr.String()}
	case err != nil && stdout.Len() == 0:
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return nil, &ToolError{Tool: r.command, Err: fmt.Errorf("%w: %v", ErrToolFailed, err)}
		}
		return nil, &ToolError{Tool: r.command, Err: ErrToolFailed, Output: strings.TrimSpace(stderr.String())}
	}
	return stdout.Bytes(), nil
}

// Parse extracts issues from a text report. Lines that do not match the
// pattern are skipped.
func (r *Runner) Parse(report []byte) []Issue {
	var (
		fileIdx = r.pattern.SubexpIndex("file")
		lineIdx = r.pattern.SubexpIndex("line")
		colIdx  = r.pattern.SubexpIndex("column")
		catIdx  = r.pattern.SubexpIndex("category")
		msgIdx  = r.pattern.SubexpIndex("message")
	)

	issues := make([]Issue, 0)
	sc := bufio.NewScanner(bytes.NewReader(report))
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		m := r.pattern.FindStringSubmatch(strings.TrimRight(sc.Text(), "\r"))
		if m == nil {
			continue
		}
		issue := Issue{File: m[fileIdx], Message: m[msgIdx]}
		issue.Line, _ = strconv.Atoi(m[lineIdx])
		if colIdx >= 0 {
			issue.Column, _ = strconv.Atoi(m[colIdx])
		}
		if catIdx >= 0 {
			issue.Category = m[catIdx]
		}
		issues = append(issues, issue)
	}
	return issues
}
