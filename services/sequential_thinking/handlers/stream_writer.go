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
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/AleutianAI/ThoughtStream/services/sequential_thinking/datatypes"
)

// =============================================================================
// Interface Definition
// =============================================================================

// StreamWriter is the single outbound channel of a streaming connection.
//
// # Description
//
// Both the primary dispatch loop and the heartbeat loop write through one
// StreamWriter; implementations serialize writes internally so concurrent
// frames cannot corrupt frame boundaries. Every transport (SSE, WebSocket)
// satisfies this one contract — there is no runtime capability probing.
//
// Each event is automatically assigned:
//   - Id: UUID v4 for ordering and deduplication
//   - CreatedAt: Unix timestamp in milliseconds
//
// # Thread Safety
//
// Implementations must be safe for concurrent use by multiple goroutines.
type StreamWriter interface {
	// WriteEvent writes a single protocol frame. Id and CreatedAt are
	// populated by the writer.
	WriteEvent(event datatypes.StreamEvent) error

	// WriteEndpoint announces the bound session id and the companion POST
	// endpoint for inbound frames. Sent once, immediately after connect.
	WriteEndpoint(sessionID int64, endpoint string) error

	// WriteResult writes a tool result frame echoing the call id.
	WriteResult(callID string, result any) error

	// WriteError writes a structured tool failure frame.
	WriteError(callID, errMsg string) error

	// WritePing writes a heartbeat frame. The ping expects no reply and
	// carries no session payload; its identifier comes from the envelope Id.
	WritePing() error
}

// =============================================================================
// SSE Implementation
// =============================================================================

// sseStreamWriter emits StreamEvents in SSE wire format
// (event: {type}\ndata: {json}\n\n), flushing after every frame.
//
// Thread-safe via mutex; cannot be reused across requests.
type sseStreamWriter struct {
	writer  http.ResponseWriter
	flusher http.Flusher
	mu      sync.Mutex
}

// NewSSEStreamWriter creates a StreamWriter over an HTTP response.
//
// The caller must set SSE headers via SetSSEHeaders before the first write.
// Returns an error when the ResponseWriter does not support http.Flusher.
func NewSSEStreamWriter(w http.ResponseWriter) (StreamWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("ResponseWriter does not support http.Flusher")
	}
	return &sseStreamWriter{writer: w, flusher: flusher}, nil
}

func (w *sseStreamWriter) WriteEvent(event datatypes.StreamEvent) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	event.Id = uuid.New().String()
	event.CreatedAt = time.Now().UnixMilli()

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	if _, err := fmt.Fprintf(w.writer, "event: %s\ndata: %s\n\n", event.Type, data); err != nil {
		return fmt.Errorf("write event: %w", err)
	}

	w.flusher.Flush()
	return nil
}

func (w *sseStreamWriter) WriteEndpoint(sessionID int64, endpoint string) error {
	return w.WriteEvent(datatypes.StreamEvent{
		Type:      datatypes.EventEndpoint,
		SessionId: strconv.FormatInt(sessionID, 10),
		Endpoint:  endpoint,
	})
}

func (w *sseStreamWriter) WriteResult(callID string, result any) error {
	return w.WriteEvent(datatypes.StreamEvent{
		Type:   datatypes.EventResult,
		CallId: callID,
		Result: result,
	})
}

func (w *sseStreamWriter) WriteError(callID, errMsg string) error {
	return w.WriteEvent(datatypes.StreamEvent{
		Type:   datatypes.EventError,
		CallId: callID,
		Error:  errMsg,
	})
}

func (w *sseStreamWriter) WritePing() error {
	return w.WriteEvent(datatypes.StreamEvent{Type: datatypes.EventPing})
}

// =============================================================================
// Helper Functions
// =============================================================================

// SetSSEHeaders configures HTTP response headers for SSE streaming.
//
// Must be called before writing any response body. X-Accel-Buffering
// disables nginx response buffering, which would hold back frames.
func SetSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
}

var _ StreamWriter = (*sseStreamWriter)(nil)
