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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/workspaced/pkg/jsonvalue"
)

// MaxDocumentSize bounds configuration files read by LoadDocument.
const MaxDocumentSize = 1 << 20

var configTracer = otel.Tracer("aleutian.workspaced.config")

// =============================================================================
// DOCUMENT LOADING
// =============================================================================

// LoadDocument reads a configuration document from path.
//
// Description:
//
//	The format follows the extension: .yaml and .yml are decoded with
//	yaml.v3, .json with encoding/json (numbers kept as json.Number so
//	integers stay integers). The top level must map component names to
//	objects.
//
// Inputs:
//
//	ctx - Context for tracing.
//	path - File to read. Must be at most MaxDocumentSize bytes.
//
// Outputs:
//
//	Document - The decoded document.
//	error - ErrUnsupportedFormat, ErrDocumentTooLarge, ErrInvalidDocument,
//	        or an I/O error.
func LoadDocument(ctx context.Context, path string) (Document, error) {
	_, span := configTracer.Start(ctx, "config.LoadDocument",
		trace.WithAttributes(attribute.String("path", path)),
	)
	defer span.End()

	format := strings.ToLower(filepath.Ext(path))
	if format != ".yaml" && format != ".yml" && format != ".json" {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}

	info, err := os.Stat(path)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "stat failed")
		return nil, fmt.Errorf("stat config: %w", err)
	}
	if info.Size() > MaxDocumentSize {
		return nil, fmt.Errorf("%w: %d bytes (max %d)", ErrDocumentTooLarge, info.Size(), MaxDocumentSize)
	}
	span.SetAttributes(attribute.Int64("file_size", info.Size()))

	data, err := os.ReadFile(path)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "read failed")
		return nil, fmt.Errorf("reading config: %w", err)
	}

	doc, err := ParseDocument(data, strings.TrimPrefix(format, "."))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "parse failed")
		return nil, err
	}
	span.SetAttributes(attribute.Int("components", len(doc)))
	return doc, nil
}

// ParseDocument decodes data in the given format ("yaml", "yml" or "json").
// Empty input yields an empty document.
func ParseDocument(data []byte, format string) (Document, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return Document{}, nil
	}

	var raw any
	switch format {
	case "yaml", "yml":
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
		}
	case "json":
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.UseNumber()
		if err := dec.Decode(&raw); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	return DocumentFrom(raw)
}

// DocumentFrom converts a decoded JSON-like value into a Document.
//
// A nil value yields an empty document. A component mapped to null is
// treated as an empty component.
func DocumentFrom(raw any) (Document, error) {
	if raw == nil {
		return Document{}, nil
	}
	top, ok := jsonvalue.AsObject(raw)
	if !ok {
		return nil, fmt.Errorf("%w: top level is %s, want object", ErrInvalidDocument, jsonvalue.KindOf(raw))
	}

	doc := make(Document, len(top))
	for comp, v := range top {
		if v == nil {
			doc[comp] = map[string]any{}
			continue
		}
		keys, ok := jsonvalue.AsObject(v)
		if !ok {
			return nil, fmt.Errorf("%w: component %q is %s, want object", ErrInvalidDocument, comp, jsonvalue.KindOf(v))
		}
		doc[comp] = jsonvalue.CopyObject(keys)
	}
	return doc, nil
}
