// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package handlers binds streaming connections to thinking sessions: the SSE
// and WebSocket transports, the shared outbound stream writer, the heartbeat
// loop, and the tool dispatcher.
package handlers

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/AleutianAI/ThoughtStream/services/sequential_thinking/datatypes"
	"github.com/AleutianAI/ThoughtStream/services/sequential_thinking/observability"
	"github.com/AleutianAI/ThoughtStream/services/sequential_thinking/session"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// DefaultHeartbeatInterval is the ping cadence for established streams.
	// 15s stays well under typical LB idle timeouts (60s for ALB/Nginx).
	DefaultHeartbeatInterval = 15 * time.Second

	// inboxDepth bounds how many inbound frames may queue per connection
	// before the messages endpoint pushes back.
	inboxDepth = 16
)

// Connection lifecycle states.
const (
	StateConnecting int32 = iota
	StateEstablished
	StateClosing
	StateClosed
)

const transportSSE = "sse"

// =============================================================================
// Connection Registry
// =============================================================================

// streamConn is one live connection: the bound session, the inbound frame
// queue fed by the messages endpoint, and the lifecycle state.
type streamConn struct {
	id        string
	sessionID int64
	session   *session.ThinkingSession
	inbox     chan datatypes.ToolCallFrame
	state     atomic.Int32
}

// State returns the connection's current lifecycle state.
func (c *streamConn) State() int32 { return c.state.Load() }

// StreamHandler owns every live streaming connection.
//
// # Description
//
// Each connection runs two goroutines: the primary loop (read inbox,
// dispatch, write response) and the heartbeat loop. Both write through one
// mutex-guarded StreamWriter. Teardown is ordered: the heartbeat loop is
// cancelled and its exit acknowledged before the handler returns, so no
// heartbeat frame can outlive its connection. The bound session stays in
// the store after disconnect — reconnect-and-resume uses the same id, and
// only capacity eviction removes it.
//
// The session store is injected at construction; the handler never reaches
// for process-wide state.
type StreamHandler struct {
	store      *session.Store
	dispatcher *Dispatcher
	interval   time.Duration

	mu    sync.RWMutex
	conns map[string]*streamConn
}

// NewStreamHandler wires a handler to its store and tool registry.
// A non-positive interval falls back to DefaultHeartbeatInterval.
func NewStreamHandler(store *session.Store, dispatcher *Dispatcher, interval time.Duration) *StreamHandler {
	if interval <= 0 {
		interval = DefaultHeartbeatInterval
	}
	return &StreamHandler{
		store:      store,
		dispatcher: dispatcher,
		interval:   interval,
		conns:      make(map[string]*streamConn),
	}
}

// lookup returns a registered connection by id.
func (h *StreamHandler) lookup(connID string) (*streamConn, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	conn, ok := h.conns[connID]
	return conn, ok
}

func (h *StreamHandler) register(conn *streamConn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[conn.id] = conn
}

func (h *StreamHandler) unregister(connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.conns, connID)
}

// ConnectionCount returns the number of live connections.
func (h *StreamHandler) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// =============================================================================
// SSE Handler
// =============================================================================

// HandleSSE serves GET /sse: binds the connection to a session (existing or
// new, from the sessionId query hint), announces the companion messages
// endpoint, then runs the primary loop with a concurrent heartbeat until the
// client disconnects.
func (h *StreamHandler) HandleSSE() gin.HandlerFunc {
	return func(c *gin.Context) {
		conn := &streamConn{
			id:    uuid.New().String(),
			inbox: make(chan datatypes.ToolCallFrame, inboxDepth),
		}
		conn.state.Store(StateConnecting)

		conn.sessionID, conn.session = h.store.GetOrCreate(c.Query("sessionId"))

		SetSSEHeaders(c.Writer)
		writer, err := NewSSEStreamWriter(c.Writer)
		if err != nil {
			slog.Error("Failed to create SSE stream writer", "error", err)
			c.String(500, "Streaming not supported")
			return
		}

		h.register(conn)
		defer h.unregister(conn.id)

		if err := writer.WriteEndpoint(conn.sessionID, "/messages/"+conn.id); err != nil {
			slog.Error("Failed to write endpoint frame", "error", err, "connectionId", conn.id)
			return
		}

		conn.state.Store(StateEstablished)
		slog.Info("Stream established",
			"connectionId", conn.id,
			"sessionId", conn.sessionID,
			"transport", transportSSE,
		)
		if m := observability.DefaultMetrics; m != nil {
			m.ActiveConnections.WithLabelValues(transportSSE).Inc()
			defer m.ActiveConnections.WithLabelValues(transportSSE).Dec()
		}

		h.runConnection(c.Request.Context(), conn, writer, transportSSE)
	}
}

// runConnection executes the primary loop and the heartbeat loop for one
// established connection, then tears both down in order.
func (h *StreamHandler) runConnection(ctx context.Context, conn *streamConn, writer StreamWriter, transport string) {
	heartbeatDone := make(chan struct{})
	heartbeatStopped := make(chan struct{})
	go h.runHeartbeat(ctx, writer, transport, heartbeatDone, heartbeatStopped)

	h.primaryLoop(ctx, conn, writer, transport)

	// Ordered teardown: cancel the heartbeat and wait for its exit before
	// returning, so no ping can race the connection close.
	conn.state.Store(StateClosing)
	close(heartbeatDone)
	<-heartbeatStopped
	conn.state.Store(StateClosed)
	slog.Info("Stream closed", "connectionId", conn.id, "sessionId", conn.sessionID)
}

// primaryLoop reads inbound frames one at a time and dispatches them against
// the bound session. Returns on client disconnect or when a response frame
// cannot be written.
func (h *StreamHandler) primaryLoop(ctx context.Context, conn *streamConn, writer StreamWriter, transport string) {
	for {
		select {
		case <-ctx.Done():
			slog.Info("Stream client disconnected", "connectionId", conn.id)
			if m := observability.DefaultMetrics; m != nil {
				m.RecordClientDisconnect(transport)
			}
			return
		case frame := <-conn.inbox:
			h.store.Touch(conn.sessionID)
			result, err := h.dispatcher.Dispatch(ctx, conn.session, frame)

			var writeErr error
			if err != nil {
				writeErr = writer.WriteError(frame.ID, err.Error())
			} else {
				writeErr = writer.WriteResult(frame.ID, result)
			}
			// A response frame that cannot be sent ends the connection;
			// unlike heartbeat failures it is not survivable.
			if writeErr != nil {
				slog.Error("Failed to write response frame",
					"error", writeErr,
					"connectionId", conn.id,
					"callId", frame.ID,
				)
				return
			}
		}
	}
}

// runHeartbeat sends periodic ping frames to prevent idle-timeout
// disconnection by intermediaries.
//
// # Description
//
// Runs for the connection's entire ESTABLISHED duration, writing a ping
// frame with a unique identifier every interval on the same writer the
// primary loop uses. A failed write is logged and the loop continues to the
// next interval; only cancellation (done channel or context) terminates the
// loop. Closes stopped on exit so teardown can await the acknowledgment.
func (h *StreamHandler) runHeartbeat(
	ctx context.Context,
	writer StreamWriter,
	transport string,
	done <-chan struct{},
	stopped chan<- struct{},
) {
	defer close(stopped)

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := writer.WritePing(); err != nil {
				slog.Debug("Failed to write heartbeat ping", "error", err)
				continue
			}
			if m := observability.DefaultMetrics; m != nil {
				m.RecordKeepAlive(transport)
			}
		}
	}
}
