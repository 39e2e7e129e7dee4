// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/ThoughtStream/pkg/validation"
	"github.com/AleutianAI/ThoughtStream/services/sequential_thinking/datatypes"
)

// HandleMessages serves POST /messages/:connectionId, the companion inbound
// endpoint for SSE streams: the transport is message-based, so tool calls
// arrive here and are queued onto the connection's primary loop.
//
// Responses flow back over the SSE stream, not this endpoint; a 202 only
// acknowledges that the frame was queued.
func (h *StreamHandler) HandleMessages() gin.HandlerFunc {
	return func(c *gin.Context) {
		connID := c.Param("connectionId")
		if err := validation.ValidateConnectionID(connID); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid connection id"})
			return
		}

		conn, ok := h.lookup(connID)
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown connection"})
			return
		}

		var frame datatypes.ToolCallFrame
		if err := c.ShouldBindJSON(&frame); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "malformed tool call frame"})
			return
		}

		select {
		case conn.inbox <- frame:
			c.JSON(http.StatusAccepted, gin.H{"status": "accepted"})
		default:
			slog.Warn("Connection inbox full, rejecting frame",
				"connectionId", connID,
				"tool", frame.Tool,
			)
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "connection busy"})
		}
	}
}

// HandleToolCall serves POST /v1/tools/call, a synchronous convenience
// surface for clients that do not hold a stream open. The session hint in
// the body is resolved through the same store as streaming connections.
func (h *StreamHandler) HandleToolCall() gin.HandlerFunc {
	type request struct {
		SessionHint string                  `json:"sessionId"`
		Frame       datatypes.ToolCallFrame `json:"call"`
	}

	return func(c *gin.Context) {
		var req request
		if err := c.ShouldBindJSON(&req); err != nil || req.Frame.Tool == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "malformed request"})
			return
		}

		sessionID, sess := h.store.GetOrCreate(req.SessionHint)
		result, err := h.dispatcher.Dispatch(c.Request.Context(), sess, req.Frame)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"sessionId": sessionID,
				"error":     err.Error(),
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"sessionId": sessionID,
			"result":    result,
		})
	}
}
