// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package session owns the in-memory thinking state: one append-only thought
// log per session, and a bounded store that evicts the least-recently-touched
// session at capacity.
package session

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/AleutianAI/ThoughtStream/services/sequential_thinking/datatypes"
)

// ThinkingSession is one isolated reasoning conversation.
//
// # Description
//
// Holds the append-only thought history and the branch index, a filtered
// view mapping branch id to the records that declared it, built
// incrementally as records arrive. Sessions are created empty by the store
// and are never deleted by clients; only capacity eviction removes them.
//
// # Thread Safety
//
// Process is serialized by an internal mutex. A session id can be picked up
// by a second connection on reconnect, so concurrent Process calls must not
// interleave their repair-and-append steps.
type ThinkingSession struct {
	mu       sync.Mutex
	history  []datatypes.ThoughtRecord
	branches map[string][]datatypes.ThoughtRecord
}

// NewThinkingSession returns an empty session.
func NewThinkingSession() *ThinkingSession {
	return &ThinkingSession{
		branches: make(map[string][]datatypes.ThoughtRecord),
	}
}

// Process applies one validated thought record to the session.
//
// # Description
//
// Steps, applied atomically under the session lock:
//  1. Repair: totalThoughts is raised to thoughtNumber when the caller
//     under-counted. Silent, never a failure.
//  2. Append the record to the history unconditionally. Revisions and branch
//     continuations are appended, never merged into the records they
//     reference.
//  3. When both branchFromThought and branchId are set, append the record to
//     that branch's slice, creating it on first use.
//
// Process cannot fail; rejection happens only in validation, before the
// session is touched.
//
// # Inputs
//
//   - rec: A record that passed datatypes.ValidateThought.
//
// # Outputs
//
//   - ProcessResult: Post-repair totals, known branch ids, history length.
func (s *ThinkingSession) Process(rec datatypes.ThoughtRecord) datatypes.ProcessResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec.ThoughtNumber > rec.TotalThoughts {
		rec.TotalThoughts = rec.ThoughtNumber
	}

	s.history = append(s.history, rec)

	if rec.BranchFromThought > 0 && rec.BranchID != "" {
		s.branches[rec.BranchID] = append(s.branches[rec.BranchID], rec)
	}

	slog.Debug("processed thought", "rendering", formatThought(rec))

	branches := make([]string, 0, len(s.branches))
	for id := range s.branches {
		branches = append(branches, id)
	}

	return datatypes.ProcessResult{
		ThoughtNumber:        rec.ThoughtNumber,
		TotalThoughts:        rec.TotalThoughts,
		NextThoughtNeeded:    rec.NextThoughtNeeded,
		Branches:             branches,
		ThoughtHistoryLength: len(s.history),
	}
}

// HistoryLength returns the number of accepted records.
func (s *ThinkingSession) HistoryLength() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.history)
}

// BranchLength returns the number of records filed under a branch id.
func (s *ThinkingSession) BranchLength(branchID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.branches[branchID])
}

// formatThought renders the boxed diagnostic view of a record.
//
// Observability output only; not part of the tool contract.
func formatThought(rec datatypes.ThoughtRecord) string {
	var prefix, context string
	switch {
	case rec.IsRevision:
		prefix = "🔄 Revision"
		context = fmt.Sprintf(" (revising thought %d)", rec.RevisesThought)
	case rec.BranchFromThought > 0:
		prefix = "🌿 Branch"
		context = fmt.Sprintf(" (from thought %d, ID: %s)", rec.BranchFromThought, rec.BranchID)
	default:
		prefix = "💭 Thought"
	}

	header := fmt.Sprintf("%s %d/%d%s", prefix, rec.ThoughtNumber, rec.TotalThoughts, context)
	width := len([]rune(header))
	if w := len([]rune(rec.Thought)); w > width {
		width = w
	}
	border := strings.Repeat("─", width+4)

	var b strings.Builder
	b.WriteString("\n┌" + border + "┐\n")
	b.WriteString("│ " + pad(header, width+2) + " │\n")
	b.WriteString("├" + border + "┤\n")
	b.WriteString("│ " + pad(rec.Thought, width+2) + " │\n")
	b.WriteString("└" + border + "┘")
	return b.String()
}

func pad(s string, width int) string {
	if n := width - len([]rune(s)); n > 0 {
		return s + strings.Repeat(" ", n)
	}
	return s
}
