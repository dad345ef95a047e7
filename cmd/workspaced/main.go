// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command workspaced hosts workspace components behind an HTTP API.
//
// Usage:
//
//	workspaced serve --port 8080 --config workspaced.yaml --watch
//	workspaced run --workspace /path/to/project ccdb importPaths
//	workspaced run lint isAvailable
//	workspaced components
//	workspaced version
//
// Example requests against a running server:
//
//	# Health check
//	curl http://localhost:8080/v1/workspaced/health
//
//	# Open a workspace and attach the compilation database reader
//	curl -X POST http://localhost:8080/v1/workspaced/instances \
//	  -H "Content-Type: application/json" \
//	  -d '{"path": "/path/to/project", "preload": ["ccdb"]}'
//
//	# Call an operation
//	curl -X POST http://localhost:8080/v1/workspaced/run \
//	  -H "Content-Type: application/json" \
//	  -d '{"path": "/path/to/project/src/app.d", "component": "ccdb", "method": "importPaths"}'
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
