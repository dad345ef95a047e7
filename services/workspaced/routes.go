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
	"github.com/gin-gonic/gin"
)

// RegisterRoutes registers the workspace host routes with the router.
//
// Description:
//
//	Registers all /v1/workspaced/* endpoints with the given Gin router
//	group. The router group should already have any required middleware
//	applied.
//
// Inputs:
//
//	rg - Gin router group (typically /v1)
//	handlers - The handlers instance
//
// Endpoints:
//
//	GET    /v1/workspaced/health - Health check
//	GET    /v1/workspaced/components - List registered components
//	GET    /v1/workspaced/instances - List open instances
//	POST   /v1/workspaced/instances - Open an instance
//	DELETE /v1/workspaced/instances?path= - Close an instance
//	POST   /v1/workspaced/instances/attach - Attach a component to an instance
//	POST   /v1/workspaced/run - Run a component operation
//	GET    /v1/workspaced/jobs/:id - Poll an async run
//	GET    /v1/workspaced/config - Read the global configuration
//	PUT    /v1/workspaced/config - Replace the global configuration
//	GET    /v1/workspaced/events - Recent broadcast events
//	GET    /v1/workspaced/events/stream?root= - Live broadcast events (WebSocket)
//
// Example:
//
//	host, _ := workspaced.NewHost()
//	handlers := workspaced.NewHandlers(host)
//
//	v1 := router.Group("/v1")
//	workspaced.RegisterRoutes(v1, handlers)
func RegisterRoutes(rg *gin.RouterGroup, handlers *Handlers) {
	ws := rg.Group("/workspaced")
	{
		ws.GET("/health", handlers.HandleHealth)
		ws.GET("/components", handlers.HandleComponents)

		// Instance lifecycle
		ws.GET("/instances", handlers.HandleListInstances)
		ws.POST("/instances", handlers.HandleAddInstance)
		ws.DELETE("/instances", handlers.HandleRemoveInstance)
		ws.POST("/instances/attach", handlers.HandleAttach)

		// Operations
		ws.POST("/run", handlers.HandleRun)
		ws.GET("/jobs/:id", handlers.HandleJob)

		// Configuration and events
		ws.GET("/config", handlers.HandleGetConfig)
		ws.PUT("/config", handlers.HandlePutConfig)
		ws.GET("/events", handlers.HandleEvents)
		ws.GET("/events/stream", handlers.HandleEventStream)
	}
}
