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
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/google/uuid"

	"github.com/AleutianAI/workspaced/services/workspaced/config"
	"github.com/AleutianAI/workspaced/services/workspaced/dispatch"
	"github.com/AleutianAI/workspaced/services/workspaced/future"
	"github.com/AleutianAI/workspaced/services/workspaced/instance"
)

// maxRequestBody bounds JSON request bodies.
const maxRequestBody = 4 << 20

// Handlers contains the HTTP handlers for the workspace host.
type Handlers struct {
	host *Host
}

// NewHandlers creates handlers for host.
func NewHandlers(host *Host) *Handlers {
	return &Handlers{host: host}
}

// HandleHealth handles GET /v1/workspaced/health.
func (h *Handlers) HandleHealth(c *gin.Context) {
	getOrCreateRequestID(c)

	h.host.structMu.RLock()
	status := "healthy"
	if h.host.closed {
		status = "closed"
	}
	components := len(h.host.registry)
	h.host.structMu.RUnlock()

	c.JSON(http.StatusOK, HealthResponse{
		Status:     status,
		Version:    ServiceVersion,
		Instances:  len(h.host.Instances()),
		Components: components,
	})
}

// HandleComponents handles GET /v1/workspaced/components.
//
// Response:
//
//	200 OK: ComponentsResponse
func (h *Handlers) HandleComponents(c *gin.Context) {
	getOrCreateRequestID(c)

	infos := h.host.Components()
	out := make([]ComponentInfo, 0, len(infos))
	for _, info := range infos {
		ci := ComponentInfo{Info: info}
		if w, ok := h.host.Global(info.Name); ok {
			ci.GlobalBound = true
			ci.Methods = w.Operations().Methods()
		}
		out = append(out, ci)
	}
	c.JSON(http.StatusOK, ComponentsResponse{Components: out})
}

// HandleListInstances handles GET /v1/workspaced/instances.
func (h *Handlers) HandleListInstances(c *gin.Context) {
	getOrCreateRequestID(c)

	instances := h.host.Instances()
	out := make([]InstanceInfo, 0, len(instances))
	for _, inst := range instances {
		out = append(out, InstanceInfo{
			Root:       inst.Root(),
			Components: inst.Components(),
			Created:    inst.Created(),
		})
	}
	c.JSON(http.StatusOK, InstancesResponse{Instances: out})
}

// HandleAddInstance handles POST /v1/workspaced/instances.
//
// Request Body:
//
//	AddInstanceRequest
//
// Response:
//
//	201 Created: InstanceInfo
//	400 Bad Request: Validation error
//	409 Conflict: Instance already exists
func (h *Handlers) HandleAddInstance(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleAddInstance")

	var req AddInstanceRequest
	if err := bindJSON(c, &req); err != nil {
		logger.Warn("Invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "Invalid request body",
			Code:    "INVALID_REQUEST",
			Details: err.Error(),
		})
		return
	}

	inst, err := h.host.AddInstance(c.Request.Context(), req.Path, req.Config, req.Preload)
	if err != nil {
		logger.Warn("Add instance failed", "path", req.Path, "error", err)
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, InstanceInfo{
		Root:       inst.Root(),
		Components: inst.Components(),
		Created:    inst.Created(),
	})
}

// HandleRemoveInstance handles DELETE /v1/workspaced/instances?path=.
func (h *Handlers) HandleRemoveInstance(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleRemoveInstance")

	path := c.Query("path")
	if path == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "path query parameter is required",
			Code:  "INVALID_REQUEST",
		})
		return
	}

	if !h.host.RemoveInstance(c.Request.Context(), path) {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error: fmt.Sprintf("%s: %v", path, ErrInstanceNotFound),
			Code:  "NOT_FOUND",
		})
		return
	}
	logger.Info("Instance removed", "path", path)
	c.JSON(http.StatusOK, gin.H{"removed": true})
}

// HandleAttach handles POST /v1/workspaced/instances/attach.
//
// Response:
//
//	200 OK: AttachResponse (Bound false when the bind failed)
//	404 Not Found: Unknown instance or component
func (h *Handlers) HandleAttach(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleAttach")

	var req AttachRequest
	if err := bindJSON(c, &req); err != nil {
		logger.Warn("Invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "Invalid request body",
			Code:    "INVALID_REQUEST",
			Details: err.Error(),
		})
		return
	}

	inst, ok := h.host.Instance(req.Path)
	if !ok {
		writeError(c, fmt.Errorf("%s: %w", req.Path, ErrInstanceNotFound))
		return
	}
	outcome, err := h.host.Attach(inst, req.Component)
	if err != nil {
		writeError(c, err)
		return
	}

	resp := AttachResponse{Component: outcome.Component, Bound: outcome.OK()}
	if outcome.Err != nil {
		resp.Error = outcome.Err.Error()
	}
	c.JSON(http.StatusOK, resp)
}

// HandleRun handles POST /v1/workspaced/run.
//
// Description:
//
//	Runs a component operation. Synchronous requests wait for the result
//	within the request context; async requests return a job ID to poll at
//	GET /v1/workspaced/jobs/:id.
//
// Response:
//
//	200 OK: RunResponse
//	202 Accepted: JobResponse
//	400 Bad Request: Validation or dispatch error
//	404 Not Found: No instance or component
func (h *Handlers) HandleRun(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleRun")

	var req RunRequest
	if err := bindJSON(c, &req); err != nil {
		logger.Warn("Invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "Invalid request body",
			Code:    "INVALID_REQUEST",
			Details: err.Error(),
		})
		return
	}

	// Async jobs outlive the request, so they keep its values but not its
	// cancellation.
	ctx := c.Request.Context()
	if req.Async {
		ctx = context.WithoutCancel(ctx)
	}

	var f *future.Future[any]
	if req.Path == "" {
		f = h.host.RunGlobal(ctx, req.Component, req.Method, req.Args)
	} else {
		f = h.host.Run(ctx, req.Path, req.Component, req.Method, req.Args)
	}

	if req.Async {
		id, err := h.host.Jobs().Track(req.Component, req.Method, f)
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: err.Error(), Code: "TOO_MANY_JOBS"})
			return
		}
		logger.Info("Run queued", "job_id", id, "component", req.Component, "method", req.Method)
		c.JSON(http.StatusAccepted, JobResponse{JobID: id})
		return
	}

	v, err := f.Await(c.Request.Context())
	if err != nil {
		logger.Warn("Run failed",
			"component", req.Component,
			"method", req.Method,
			"error", err,
		)
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, RunResponse{Result: v})
}

// HandleJob handles GET /v1/workspaced/jobs/:id.
func (h *Handlers) HandleJob(c *gin.Context) {
	getOrCreateRequestID(c)

	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid job id", Code: "INVALID_REQUEST"})
		return
	}
	job, ok := h.host.Jobs().Get(id)
	if !ok {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "job not found", Code: "NOT_FOUND"})
		return
	}
	if job.Status == JobRejected {
		_, code := errorStatus(job.Err())
		job.Error = code + ": " + job.Error
	}
	c.JSON(http.StatusOK, job)
}

// HandleGetConfig handles GET /v1/workspaced/config.
func (h *Handlers) HandleGetConfig(c *gin.Context) {
	getOrCreateRequestID(c)
	c.JSON(http.StatusOK, ConfigResponse{Config: h.host.GlobalConfig().Document()})
}

// HandlePutConfig handles PUT /v1/workspaced/config.
func (h *Handlers) HandlePutConfig(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandlePutConfig")

	var req ConfigRequest
	if err := bindJSON(c, &req); err != nil {
		logger.Warn("Invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "Invalid request body",
			Code:    "INVALID_REQUEST",
			Details: err.Error(),
		})
		return
	}

	changed, err := h.host.ReloadGlobal(req.Config)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, ConfigResponse{Config: h.host.GlobalConfig().Document(), Changed: changed})
}

// HandleEvents handles GET /v1/workspaced/events?limit=.
func (h *Handlers) HandleEvents(c *gin.Context) {
	getOrCreateRequestID(c)

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid limit", Code: "INVALID_REQUEST"})
			return
		}
		limit = n
	}
	c.JSON(http.StatusOK, EventsResponse{Events: h.host.Events().Recent(limit)})
}

// =============================================================================
// HELPERS
// =============================================================================

// getOrCreateRequestID returns the request's X-Request-ID, generating one
// when absent, and echoes it in the response.
func getOrCreateRequestID(c *gin.Context) string {
	requestID := c.GetHeader("X-Request-ID")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Header("X-Request-ID", requestID)
	return requestID
}

// bindJSON decodes the body keeping numbers as json.Number, so integers
// stay distinguishable from floats for dispatch, then validates binding
// tags.
func bindJSON(c *gin.Context, obj any) error {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxRequestBody+1))
	if err != nil {
		return err
	}
	if len(body) > maxRequestBody {
		return fmt.Errorf("request body exceeds %d bytes", maxRequestBody)
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(obj); err != nil {
		return err
	}
	return binding.Validator.ValidateStruct(obj)
}

// errorStatus maps an error to an HTTP status and error code.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, ErrInstanceNotFound), errors.Is(err, ErrComponentNotFound):
		return http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, ErrInstanceExists), errors.Is(err, ErrAlreadyRegistered):
		return http.StatusConflict, "ALREADY_EXISTS"
	case errors.Is(err, instance.ErrEmptyPath):
		return http.StatusBadRequest, "INVALID_PATH"
	case errors.Is(err, dispatch.ErrDispatchNotFound):
		return http.StatusBadRequest, "DISPATCH_NOT_FOUND"
	case errors.Is(err, dispatch.ErrDispatchAmbiguous):
		return http.StatusBadRequest, "DISPATCH_AMBIGUOUS"
	case errors.Is(err, config.ErrTypeMismatch):
		return http.StatusBadRequest, "TYPE_MISMATCH"
	case errors.Is(err, ErrBindFailure):
		return http.StatusInternalServerError, "BIND_FAILURE"
	case errors.Is(err, future.ErrAsyncFailure):
		return http.StatusInternalServerError, "ASYNC_FAILURE"
	case errors.Is(err, ErrHostClosed), errors.Is(err, future.ErrPoolClosed):
		return http.StatusServiceUnavailable, "HOST_CLOSED"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "TIMEOUT"
	case errors.Is(err, context.Canceled):
		return http.StatusRequestTimeout, "CANCELLED"
	default:
		return http.StatusInternalServerError, "INTERNAL"
	}
}

func writeError(c *gin.Context, err error) {
	status, code := errorStatus(err)
	c.JSON(status, ErrorResponse{Error: err.Error(), Code: code})
}
