// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package workspaced

import (
	"time"

	"github.com/AleutianAI/workspaced/services/workspaced/component"
	"github.com/AleutianAI/workspaced/services/workspaced/config"
	"github.com/AleutianAI/workspaced/services/workspaced/dispatch"
)

// ServiceVersion is the workspaced service version.
const ServiceVersion = "0.1.0"

// =============================================================================
// REQUESTS
// =============================================================================

// AddInstanceRequest is the request for POST /v1/workspaced/instances.
type AddInstanceRequest struct {
	// Path is the workspace root. Required.
	Path string `json:"path" binding:"required"`

	// Config overrides the global configuration for this instance.
	Config config.Document `json:"config"`

	// Preload lists non-auto-register components to attach.
	Preload []string `json:"preload" binding:"omitempty,dive,required"`
}

// AttachRequest is the request for POST /v1/workspaced/instances/attach.
type AttachRequest struct {
	// Path is the workspace root of an open instance. Required.
	Path string `json:"path" binding:"required"`

	// Component is the registered component name. Required.
	Component string `json:"component" binding:"required"`
}

// RunRequest is the request for POST /v1/workspaced/run.
type RunRequest struct {
	// Path selects the instance. Empty runs the global-scope component.
	Path string `json:"path"`

	// Component is the component name. Required.
	Component string `json:"component" binding:"required"`

	// Method is the operation name. Required.
	Method string `json:"method" binding:"required"`

	// Args are positional JSON arguments.
	Args []any `json:"args"`

	// Async returns a job ID immediately instead of waiting.
	Async bool `json:"async"`
}

// ConfigRequest is the request for PUT /v1/workspaced/config.
type ConfigRequest struct {
	// Config is the new global configuration document. Required.
	Config config.Document `json:"config" binding:"required"`
}

// =============================================================================
// RESPONSES
// =============================================================================

// HealthResponse is the response for GET /v1/workspaced/health.
type HealthResponse struct {
	// Status is "healthy" or "closed".
	Status string `json:"status"`

	// Version is the service version.
	Version string `json:"version"`

	// Instances is the number of open instances.
	Instances int `json:"instances"`

	// Components is the number of registered components.
	Components int `json:"components"`
}

// ComponentInfo describes a registered component and its operations.
type ComponentInfo struct {
	component.Info

	// GlobalBound reports whether the global-scope wrapper exists.
	GlobalBound bool `json:"globalBound"`

	// Methods lists operations, when the global wrapper exists.
	Methods []dispatch.MethodInfo `json:"methods,omitempty"`
}

// ComponentsResponse is the response for GET /v1/workspaced/components.
type ComponentsResponse struct {
	Components []ComponentInfo `json:"components"`
}

// InstanceInfo describes an open instance.
type InstanceInfo struct {
	Root       string    `json:"root"`
	Components []string  `json:"components"`
	Created    time.Time `json:"created"`
}

// InstancesResponse is the response for GET /v1/workspaced/instances.
type InstancesResponse struct {
	Instances []InstanceInfo `json:"instances"`
}

// AttachResponse is the response for POST /v1/workspaced/instances/attach.
type AttachResponse struct {
	Component string `json:"component"`
	Bound     bool   `json:"bound"`
	Error     string `json:"error,omitempty"`
}

// RunResponse is the synchronous response for POST /v1/workspaced/run.
type RunResponse struct {
	Result any `json:"result"`
}

// JobResponse is the asynchronous response for POST /v1/workspaced/run.
type JobResponse struct {
	JobID string `json:"job_id"`
}

// ConfigResponse is the response for GET and PUT /v1/workspaced/config.
type ConfigResponse struct {
	Config config.Document `json:"config"`

	// Changed is the number of instance keys refreshed by a PUT.
	Changed int `json:"changed,omitempty"`
}

// EventsResponse is the response for GET /v1/workspaced/events.
type EventsResponse struct {
	Events []Event `json:"events"`
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	// Error is the error message.
	Error string `json:"error"`

	// Code is the error code (optional).
	Code string `json:"code,omitempty"`

	// Details provides additional error context (optional).
	Details string `json:"details,omitempty"`
}
