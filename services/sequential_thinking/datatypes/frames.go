// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package datatypes

import "encoding/json"

// ToolCallFrame is one inbound protocol frame: a structured tool invocation
// posted to the companion messages endpoint and dispatched on the stream's
// primary loop.
type ToolCallFrame struct {
	ID        string          `json:"id"`
	Tool      string          `json:"tool" binding:"required"`
	Arguments json.RawMessage `json:"arguments"`
}

// StreamEvent is the outbound frame envelope shared by tool responses,
// errors, and heartbeat pings.
//
// # Fields
//
//   - Id: UUID v4, assigned by the stream writer.
//   - Type: "endpoint", "result", "error", or "ping".
//   - CreatedAt: Unix milliseconds, assigned by the stream writer.
//   - CallId: Echoes ToolCallFrame.ID on result/error frames.
//   - SessionId: Bound session id, set on the endpoint frame.
//   - Endpoint: Companion POST path, set on the endpoint frame.
//   - Result: Tool result payload on result frames.
//   - Error: Message on error frames.
type StreamEvent struct {
	Id        string `json:"id"`
	Type      string `json:"type"`
	CreatedAt int64  `json:"createdAt"`
	CallId    string `json:"callId,omitempty"`
	SessionId string `json:"sessionId,omitempty"`
	Endpoint  string `json:"endpoint,omitempty"`
	Result    any    `json:"result,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Stream event types.
const (
	EventEndpoint = "endpoint"
	EventResult   = "result"
	EventError    = "error"
	EventPing     = "ping"
)
