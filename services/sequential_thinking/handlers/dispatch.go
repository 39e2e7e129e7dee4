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
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/AleutianAI/ThoughtStream/services/sequential_thinking/datatypes"
	"github.com/AleutianAI/ThoughtStream/services/sequential_thinking/observability"
	"github.com/AleutianAI/ThoughtStream/services/sequential_thinking/session"
)

// ToolFunc executes one tool call against the connection's bound session.
// Tools that have no session affinity ignore the session argument.
type ToolFunc func(ctx context.Context, sess *session.ThinkingSession, args json.RawMessage) (any, error)

// ErrUnknownTool is returned for calls naming an unregistered tool.
var ErrUnknownTool = errors.New("unknown tool")

// Dispatcher routes structured tool calls to registered tools.
//
// The registry is populated at startup and read concurrently by every
// connection's primary loop.
type Dispatcher struct {
	mu    sync.RWMutex
	tools map[string]ToolFunc
}

// NewDispatcher returns an empty tool registry.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{tools: make(map[string]ToolFunc)}
}

// Register adds a tool under a name, replacing any previous registration.
func (d *Dispatcher) Register(name string, fn ToolFunc) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.tools[name] = fn
}

// Dispatch executes the tool named by a frame against the bound session.
//
// Unknown tools and tool failures come back as errors; the caller maps them
// to structured error frames. Validation failures inside a tool leave the
// session unmodified.
func (d *Dispatcher) Dispatch(ctx context.Context, sess *session.ThinkingSession, frame datatypes.ToolCallFrame) (any, error) {
	d.mu.RLock()
	fn, ok := d.tools[frame.Tool]
	d.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTool, frame.Tool)
	}

	result, err := fn(ctx, sess, frame.Arguments)
	if m := observability.DefaultMetrics; m != nil {
		status := "success"
		if err != nil {
			status = "error"
		}
		m.RecordToolCall(frame.Tool, status)
	}
	return result, err
}

// SequentialThinkingTool builds the core tool: validate one thought
// submission and apply it to the bound session.
//
// Validation failures surface as a structured error and never touch the
// session log (no partial append). Processing itself cannot fail.
func SequentialThinkingTool() ToolFunc {
	return func(ctx context.Context, sess *session.ThinkingSession, args json.RawMessage) (any, error) {
		rec, err := datatypes.ValidateThoughtJSON(args)
		if err != nil {
			if m := observability.DefaultMetrics; m != nil {
				m.ThoughtsTotal.WithLabelValues("invalid").Inc()
			}
			return nil, err
		}

		result := sess.Process(rec)
		if m := observability.DefaultMetrics; m != nil {
			m.ThoughtsTotal.WithLabelValues("ok").Inc()
		}
		slog.Debug("thought accepted",
			"thoughtNumber", result.ThoughtNumber,
			"totalThoughts", result.TotalThoughts,
			"historyLength", result.ThoughtHistoryLength,
		)
		return result, nil
	}
}
