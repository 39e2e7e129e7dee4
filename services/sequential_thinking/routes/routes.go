// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/AleutianAI/ThoughtStream/services/sequential_thinking/handlers"
)

// SetupRoutes wires the streaming surface and the operational endpoints.
func SetupRoutes(router *gin.Engine, stream *handlers.StreamHandler) {
	router.GET("/health", handlers.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Streaming surface: SSE stream plus its companion inbound endpoint,
	// and the full-duplex websocket variant.
	router.GET("/sse", stream.HandleSSE())
	router.POST("/messages/:connectionId", stream.HandleMessages())
	router.GET("/ws", stream.HandleWebSocket())

	// API version 1 group
	v1 := router.Group("/v1")
	{
		v1.POST("/tools/call", stream.HandleToolCall())
	}
}
