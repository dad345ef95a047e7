// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package instance

import (
	"errors"
	"fmt"
	"path/filepath"
	"runtime"
	"strings"
)

// Sentinel errors for instance management.
var (
	// ErrAlreadyExists indicates an instance for the normalized path exists.
	ErrAlreadyExists = errors.New("instance already exists")

	// ErrEmptyPath indicates an empty workspace path.
	ErrEmptyPath = errors.New("empty workspace path")

	// ErrAlreadyBound indicates a component is already bound in the instance.
	ErrAlreadyBound = errors.New("component already bound")
)

// =============================================================================
// PATH NORMALIZATION
// =============================================================================

// NormalizePath returns the canonical form of a workspace or file path:
// absolute, cleaned, with no trailing separator except for a filesystem
// root.
func NormalizePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", ErrEmptyPath
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("normalizing %q: %w", path, err)
	}
	return abs, nil
}

// caseInsensitive reports whether paths on this platform compare without
// regard to case.
var caseInsensitive = runtime.GOOS == "windows" || runtime.GOOS == "darwin"

// pathKey returns the comparison key for a normalized path.
func pathKey(normalized string) string {
	if caseInsensitive {
		return strings.ToLower(normalized)
	}
	return normalized
}

// hasPathPrefix reports whether the normalized root contains the
// normalized target: equal, or target continues with a separator after
// root. Both arguments must be comparison keys.
func hasPathPrefix(target, root string) bool {
	if !strings.HasPrefix(target, root) {
		return false
	}
	if len(target) == len(root) {
		return true
	}
	if strings.HasSuffix(root, string(filepath.Separator)) {
		return true
	}
	return target[len(root)] == filepath.Separator
}
