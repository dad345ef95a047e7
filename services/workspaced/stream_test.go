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
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/workspaced/services/workspaced/component/componenttest"
)

func TestEventLog_Subscribe(t *testing.T) {
	log := NewEventLog(4)
	events, cancel := log.Subscribe(1)
	assert.Equal(t, 1, log.Subscribers())

	log.Add(Event{ID: "a"})
	log.Add(Event{ID: "b"})
	assert.Equal(t, uint64(1), log.Dropped(), "a full subscriber drops instead of blocking")

	e := <-events
	assert.Equal(t, "a", e.ID)

	cancel()
	cancel()
	_, ok := <-events
	assert.False(t, ok)
	assert.Zero(t, log.Subscribers())
}

func TestEventLog_CloseEndsSubscriptions(t *testing.T) {
	log := NewEventLog(4)
	events, cancel := log.Subscribe(4)
	log.Close()
	cancel()

	_, ok := <-events
	assert.False(t, ok)

	late, _ := log.Subscribe(4)
	_, ok = <-late
	assert.False(t, ok, "subscriptions after Close are already closed")

	log.Add(Event{ID: "kept"})
	assert.Equal(t, 1, log.Len())
}

func dialStream(t *testing.T, router *gin.Engine, query string) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/workspaced/events/stream" + query
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
	return conn
}

func TestHandlers_HandleEventStream(t *testing.T) {
	router, h := setupTestRouter(t)
	conn := dialStream(t, router, "?root=/ws")

	require.Eventually(t, func() bool {
		return h.Events().Subscribers() == 1
	}, 2*time.Second, 10*time.Millisecond)

	h.Broadcast(componenttest.NewScope("/other"), "skipped")
	h.Broadcast(componenttest.NewScope("/ws"), "delivered")

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var e Event
	require.NoError(t, conn.ReadJSON(&e))
	assert.Equal(t, "/ws", e.Root)
	assert.Equal(t, "delivered", e.Payload)
	assert.NotEmpty(t, e.ID)
}

func TestHandlers_HandleEventStream_ClosedOnShutdown(t *testing.T) {
	router, h := setupTestRouter(t)
	conn := dialStream(t, router, "")

	require.Eventually(t, func() bool {
		return h.Events().Subscribers() == 1
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, h.Shutdown(t.Context()))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "got %v", err)
}

func TestHandlers_HandleEventStream_ClientDisconnect(t *testing.T) {
	router, h := setupTestRouter(t)
	conn := dialStream(t, router, "")

	require.Eventually(t, func() bool {
		return h.Events().Subscribers() == 1
	}, 2*time.Second, 10*time.Millisecond)

	conn.Close()
	require.Eventually(t, func() bool {
		return h.Events().Subscribers() == 0
	}, 2*time.Second, 10*time.Millisecond)
}
