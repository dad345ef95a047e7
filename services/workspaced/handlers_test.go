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
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/workspaced/services/workspaced/component/componenttest"
)

func init() {
	// Set Gin to test mode to reduce noise
	gin.SetMode(gin.TestMode)
}

func setupTestRouter(t *testing.T) (*gin.Engine, *Host) {
	t.Helper()
	h := newTestHost(t)
	rec := &componenttest.Recorder{}
	require.NoError(t, h.Register(rec.Descriptor("fake"), true))

	router := gin.New()
	v1 := router.Group("/v1")
	RegisterRoutes(v1, NewHandlers(h))
	return router, h
}

func doJSON(router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else {
			_ = json.NewEncoder(&buf).Encode(body)
		}
	}
	req, _ := http.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestHandlers_HandleHealth(t *testing.T) {
	router, _ := setupTestRouter(t)

	w := doJSON(router, "GET", "/v1/workspaced/health", nil)
	if w.Code != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, w.Code)
	}

	var resp HealthResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if resp.Status != "healthy" {
		t.Errorf("expected status 'healthy', got %q", resp.Status)
	}
	if resp.Version != ServiceVersion {
		t.Errorf("expected version %q, got %q", ServiceVersion, resp.Version)
	}
	if resp.Components != 1 {
		t.Errorf("expected 1 component, got %d", resp.Components)
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID header")
	}
}

func TestHandlers_RequestIDEchoed(t *testing.T) {
	router, _ := setupTestRouter(t)

	req, _ := http.NewRequest("GET", "/v1/workspaced/health", nil)
	req.Header.Set("X-Request-ID", "req-123")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, "req-123", w.Header().Get("X-Request-ID"))
}

func TestHandlers_HandleComponents(t *testing.T) {
	router, _ := setupTestRouter(t)

	w := doJSON(router, "GET", "/v1/workspaced/components", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp ComponentsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Components, 1)
	c := resp.Components[0]
	assert.Equal(t, "fake", c.Name)
	assert.True(t, c.GlobalBound)
	assert.True(t, c.AutoRegister)

	var names []string
	for _, m := range c.Methods {
		names = append(names, m.Name)
	}
	assert.Equal(t, []string{"echo", "later", "root"}, names)
}

func TestHandlers_InstanceLifecycle(t *testing.T) {
	router, _ := setupTestRouter(t)
	dir := t.TempDir()

	w := doJSON(router, "POST", "/v1/workspaced/instances", AddInstanceRequest{Path: dir})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var info InstanceInfo
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &info))
	assert.Equal(t, []string{"fake"}, info.Components)

	w = doJSON(router, "POST", "/v1/workspaced/instances", AddInstanceRequest{Path: dir})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = doJSON(router, "GET", "/v1/workspaced/instances", nil)
	var list InstancesResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list.Instances, 1)
	assert.Equal(t, info.Root, list.Instances[0].Root)

	w = doJSON(router, "DELETE", "/v1/workspaced/instances?path="+info.Root, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(router, "DELETE", "/v1/workspaced/instances?path="+info.Root, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(router, "DELETE", "/v1/workspaced/instances", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandlers_HandleAddInstance_InvalidRequest(t *testing.T) {
	router, _ := setupTestRouter(t)

	tests := []struct {
		name string
		body string
	}{
		{"malformed", `{"path":`},
		{"missing path", `{"config":{}}`},
		{"empty preload entry", `{"path":"/tmp/x","preload":[""]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doJSON(router, "POST", "/v1/workspaced/instances", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)

			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, "INVALID_REQUEST", resp.Code)
		})
	}
}

func TestHandlers_HandleAttach(t *testing.T) {
	router, h := setupTestRouter(t)
	rec := &componenttest.Recorder{}
	require.NoError(t, h.Register(rec.Descriptor("manual"), false))

	dir := t.TempDir()
	w := doJSON(router, "POST", "/v1/workspaced/instances", AddInstanceRequest{Path: dir})
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(router, "POST", "/v1/workspaced/instances/attach", AttachRequest{Path: dir, Component: "manual"})
	require.Equal(t, http.StatusOK, w.Code)
	var resp AttachResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Bound)

	w = doJSON(router, "POST", "/v1/workspaced/instances/attach", AttachRequest{Path: dir, Component: "ghost"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(router, "POST", "/v1/workspaced/instances/attach", AttachRequest{Path: t.TempDir(), Component: "manual"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandlers_HandleRun(t *testing.T) {
	router, _ := setupTestRouter(t)
	dir := t.TempDir()
	w := doJSON(router, "POST", "/v1/workspaced/instances", AddInstanceRequest{Path: dir})
	require.Equal(t, http.StatusCreated, w.Code)

	tests := []struct {
		name     string
		body     string
		status   int
		code     string
		contains string
	}{
		{"echo integer", `{"path":"` + dir + `","component":"fake","method":"echo","args":[2]}`, http.StatusOK, "", `"result":2`},
		{"echo object", `{"path":"` + dir + `","component":"fake","method":"echo","args":[{"k":"v"}]}`, http.StatusOK, "", `"k":"v"`},
		{"pool operation", `{"path":"` + dir + `","component":"fake","method":"later","args":["x"]}`, http.StatusOK, "", `"result":"x"`},
		{"global scope", `{"component":"fake","method":"root"}`, http.StatusOK, "", `"result":""`},
		{"unknown method", `{"path":"` + dir + `","component":"fake","method":"nope"}`, http.StatusBadRequest, "DISPATCH_NOT_FOUND", ""},
		{"wrong arity", `{"path":"` + dir + `","component":"fake","method":"root","args":[1]}`, http.StatusBadRequest, "DISPATCH_NOT_FOUND", ""},
		{"unknown component", `{"path":"` + dir + `","component":"ghost","method":"echo"}`, http.StatusNotFound, "NOT_FOUND", ""},
		{"missing method", `{"component":"fake"}`, http.StatusBadRequest, "INVALID_REQUEST", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doJSON(router, "POST", "/v1/workspaced/run", tt.body)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
			if tt.code != "" {
				var resp ErrorResponse
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
				assert.Equal(t, tt.code, resp.Code)
			}
			if tt.contains != "" {
				assert.Contains(t, w.Body.String(), tt.contains)
			}
		})
	}
}

func TestHandlers_HandleRun_Async(t *testing.T) {
	router, _ := setupTestRouter(t)
	dir := t.TempDir()
	w := doJSON(router, "POST", "/v1/workspaced/instances", AddInstanceRequest{Path: dir})
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(router, "POST", "/v1/workspaced/run", RunRequest{
		Path: dir, Component: "fake", Method: "later", Args: []any{"queued"}, Async: true,
	})
	require.Equal(t, http.StatusAccepted, w.Code)
	var job JobResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &job))
	require.NotEmpty(t, job.JobID)

	require.Eventually(t, func() bool {
		w := doJSON(router, "GET", "/v1/workspaced/jobs/"+job.JobID, nil)
		return w.Code == http.StatusOK && strings.Contains(w.Body.String(), `"status":"resolved"`)
	}, time.Second, 5*time.Millisecond)

	w = doJSON(router, "GET", "/v1/workspaced/jobs/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(router, "GET", "/v1/workspaced/jobs/00000000-0000-0000-0000-000000000000", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

// TestHandlers_HandleRun_AsyncOutlivesRequest serves over a real listener,
// where the request context ends as soon as the 202 is written.
func TestHandlers_HandleRun_AsyncOutlivesRequest(t *testing.T) {
	h := newTestHost(t)
	rec := &componenttest.Recorder{Configure: func(f *componenttest.Fake) {
		f.Delay = 100 * time.Millisecond
	}}
	require.NoError(t, h.Register(rec.Descriptor("fake"), true))
	dir := t.TempDir()
	_, err := h.AddInstance(context.Background(), dir, nil, nil)
	require.NoError(t, err)

	router := gin.New()
	RegisterRoutes(router.Group("/v1"), NewHandlers(h))
	srv := httptest.NewServer(router)
	defer srv.Close()

	body, err := json.Marshal(RunRequest{
		Path: dir, Component: "fake", Method: "later", Args: []any{"kept"}, Async: true,
	})
	require.NoError(t, err)
	resp, err := http.Post(srv.URL+"/v1/workspaced/run", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	var job JobResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&job))
	resp.Body.Close()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	var got Job
	require.Eventually(t, func() bool {
		j, ok := h.Jobs().Get(job.JobID)
		got = j
		return ok && j.Status != JobPending
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, JobResolved, got.Status, "job error: %s", got.Error)
	assert.Equal(t, "kept", got.Result)
}

func TestHandlers_Config(t *testing.T) {
	router, h := setupTestRouter(t)
	dir := t.TempDir()
	w := doJSON(router, "POST", "/v1/workspaced/instances", `{"path":"`+dir+`","config":{"lint":{"strict":true}}}`)
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(router, "PUT", "/v1/workspaced/config", `{"config":{"lint":{"timeout":15,"strict":false}}}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp ConfigResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Changed)

	inst, ok := h.Instance(dir)
	require.True(t, ok)
	timeout, err := inst.Config().GetInt("lint", "timeout", 0)
	require.NoError(t, err)
	assert.Equal(t, 15, timeout)
	strict, err := inst.Config().GetBool("lint", "strict", false)
	require.NoError(t, err)
	assert.True(t, strict)

	w = doJSON(router, "GET", "/v1/workspaced/config", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"timeout":15`)

	w = doJSON(router, "PUT", "/v1/workspaced/config", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandlers_HandleEvents(t *testing.T) {
	router, h := setupTestRouter(t)
	h.Broadcast(componenttest.NewScope("/ws"), "one")
	h.Broadcast(componenttest.NewScope("/ws"), "two")

	w := doJSON(router, "GET", "/v1/workspaced/events?limit=1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var resp EventsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Events, 1)
	assert.Equal(t, "two", resp.Events[0].Payload)

	w = doJSON(router, "GET", "/v1/workspaced/events?limit=-1", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
