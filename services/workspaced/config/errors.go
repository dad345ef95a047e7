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
	"errors"
	"fmt"
)

// Sentinel errors for the configuration store.
var (
	// ErrTypeMismatch indicates a stored value does not structurally match
	// the type requested by a typed getter.
	ErrTypeMismatch = errors.New("configuration type mismatch")

	// ErrInvalidDocument indicates a configuration document is not a
	// two-level object of component name to key/value pairs.
	ErrInvalidDocument = errors.New("invalid configuration document")

	// ErrDocumentTooLarge indicates a configuration file exceeds MaxDocumentSize.
	ErrDocumentTooLarge = errors.New("configuration document too large")

	// ErrUnsupportedFormat indicates a configuration file extension is not
	// one of .yaml, .yml or .json.
	ErrUnsupportedFormat = errors.New("unsupported configuration format")
)

// mismatch builds an ErrTypeMismatch naming the offending entry.
func mismatch(component, key, want string, got any) error {
	return fmt.Errorf("%w: %s.%s: want %s, got %T", ErrTypeMismatch, component, key, want, got)
}
