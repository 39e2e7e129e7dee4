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
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/AleutianAI/ThoughtStream/services/sequential_thinking/datatypes"
	"github.com/AleutianAI/ThoughtStream/services/sequential_thinking/observability"
)

const transportWebSocket = "websocket"

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  1024 * 1024,
	WriteBufferSize: 1024 * 1024,
}

// wsStreamWriter adapts a websocket connection to the StreamWriter contract.
// gorilla connections allow only one concurrent writer, so every frame goes
// through the mutex.
type wsStreamWriter struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (w *wsStreamWriter) WriteEvent(event datatypes.StreamEvent) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	event.Id = uuid.New().String()
	event.CreatedAt = time.Now().UnixMilli()
	return w.conn.WriteJSON(event)
}

func (w *wsStreamWriter) WriteEndpoint(sessionID int64, endpoint string) error {
	return w.WriteEvent(datatypes.StreamEvent{
		Type:      datatypes.EventEndpoint,
		SessionId: strconv.FormatInt(sessionID, 10),
		Endpoint:  endpoint,
	})
}

func (w *wsStreamWriter) WriteResult(callID string, result any) error {
	return w.WriteEvent(datatypes.StreamEvent{
		Type:   datatypes.EventResult,
		CallId: callID,
		Result: result,
	})
}

func (w *wsStreamWriter) WriteError(callID, errMsg string) error {
	return w.WriteEvent(datatypes.StreamEvent{
		Type:   datatypes.EventError,
		CallId: callID,
		Error:  errMsg,
	})
}

func (w *wsStreamWriter) WritePing() error {
	return w.WriteEvent(datatypes.StreamEvent{Type: datatypes.EventPing})
}

var _ StreamWriter = (*wsStreamWriter)(nil)

// HandleWebSocket serves GET /ws, the full-duplex transport: tool call
// frames arrive inline on the socket instead of a companion POST endpoint.
// Session binding, heartbeat cadence, and teardown ordering match the SSE
// handler.
func (h *StreamHandler) HandleWebSocket() gin.HandlerFunc {
	return func(c *gin.Context) {
		ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			slog.Error("failed to upgrade the websocket", "error", err)
			return
		}
		defer ws.Close()

		connID := uuid.New().String()
		sessionID, sess := h.store.GetOrCreate(c.Query("sessionId"))
		writer := &wsStreamWriter{conn: ws}

		if err := writer.WriteEndpoint(sessionID, ""); err != nil {
			slog.Error("Failed to write session frame", "error", err, "connectionId", connID)
			return
		}

		slog.Info("Websocket stream established", "connectionId", connID, "sessionId", sessionID)
		if m := observability.DefaultMetrics; m != nil {
			m.ActiveConnections.WithLabelValues(transportWebSocket).Inc()
			defer m.ActiveConnections.WithLabelValues(transportWebSocket).Dec()
		}

		ctx := c.Request.Context()
		heartbeatDone := make(chan struct{})
		heartbeatStopped := make(chan struct{})
		go h.runHeartbeat(ctx, writer, transportWebSocket, heartbeatDone, heartbeatStopped)

		for {
			var frame datatypes.ToolCallFrame
			if err := ws.ReadJSON(&frame); err != nil {
				slog.Info("Websocket client disconnected", "connectionId", connID, "error", err.Error())
				if m := observability.DefaultMetrics; m != nil {
					m.RecordClientDisconnect(transportWebSocket)
				}
				break
			}

			h.store.Touch(sessionID)
			result, dispatchErr := h.dispatcher.Dispatch(ctx, sess, frame)

			var writeErr error
			if dispatchErr != nil {
				writeErr = writer.WriteError(frame.ID, dispatchErr.Error())
			} else {
				writeErr = writer.WriteResult(frame.ID, result)
			}
			if writeErr != nil {
				slog.Error("Failed to write websocket response", "error", writeErr, "connectionId", connID)
				break
			}
		}

		// Heartbeat must not outlive the connection: cancel and await exit.
		close(heartbeatDone)
		<-heartbeatStopped
		slog.Info("Websocket stream closed", "connectionId", connID, "sessionId", sessionID)
	}
}
