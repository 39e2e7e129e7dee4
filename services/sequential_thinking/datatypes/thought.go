// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package datatypes defines the wire-level types for the sequential
// thinking service: thought records, validation, tool frames, and the
// SSE stream event envelope.
package datatypes

import (
	"encoding/json"
	"fmt"
	"math"
)

// =============================================================================
// Thought Record
// =============================================================================

// ThoughtRecord is one accepted reasoning step in a thinking session.
//
// # Description
//
// A record is immutable once accepted: revisions and branch continuations
// are recorded as new entries that reference earlier thought numbers, the
// referenced entries are never rewritten or removed.
//
// # Fields
//
//   - Thought: The reasoning text. Never empty after validation.
//   - ThoughtNumber: Caller-claimed position in the chain (>= 1).
//   - TotalThoughts: Caller's current estimate of total chain length (>= 1).
//     Repaired up to ThoughtNumber before storage when the caller under-counts.
//   - NextThoughtNeeded: True when the caller expects to continue.
//   - IsRevision / RevisesThought: Marks this record as superseding an
//     earlier thought number.
//   - BranchFromThought / BranchID: Marks this record as starting or
//     continuing an alternate line of reasoning.
//   - NeedsMoreThoughts: Informational hint only.
type ThoughtRecord struct {
	Thought           string `json:"thought"`
	ThoughtNumber     int    `json:"thoughtNumber"`
	TotalThoughts     int    `json:"totalThoughts"`
	NextThoughtNeeded bool   `json:"nextThoughtNeeded"`
	IsRevision        bool   `json:"isRevision,omitempty"`
	RevisesThought    int    `json:"revisesThought,omitempty"`
	BranchFromThought int    `json:"branchFromThought,omitempty"`
	BranchID          string `json:"branchId,omitempty"`
	NeedsMoreThoughts bool   `json:"needsMoreThoughts,omitempty"`
}

// ProcessResult is the tool response for one processed thought.
//
// TotalThoughts reflects the post-repair value. Branches holds the session's
// currently known branch ids; the order is not guaranteed.
type ProcessResult struct {
	ThoughtNumber        int      `json:"thoughtNumber"`
	TotalThoughts        int      `json:"totalThoughts"`
	NextThoughtNeeded    bool     `json:"nextThoughtNeeded"`
	Branches             []string `json:"branches"`
	ThoughtHistoryLength int      `json:"thoughtHistoryLength"`
}

// =============================================================================
// Validation
// =============================================================================

// ValidationError reports a malformed thought submission.
//
// Validation failures never modify session state; the caller receives the
// message verbatim in the tool error frame.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("Invalid %s: %s", e.Field, e.Reason)
}

// ValidateThought parses raw tool arguments into a ThoughtRecord.
//
// # Description
//
// Required fields (thought, thoughtNumber, totalThoughts, nextThoughtNeeded)
// fail validation when absent or mistyped. Optional fields are accepted only
// when well-typed and are otherwise treated as absent, matching the lenient
// handling of the tool schema. The thoughtNumber > totalThoughts repair is
// NOT applied here; it belongs to session processing so the stored record
// and the response agree.
//
// # Inputs
//
//   - raw: Decoded JSON arguments of the sequentialthinking tool call.
//
// # Outputs
//
//   - ThoughtRecord: Populated record, zero-valued on error.
//   - error: *ValidationError describing the first failing field.
func ValidateThought(raw map[string]any) (ThoughtRecord, error) {
	var rec ThoughtRecord

	thought, ok := raw["thought"].(string)
	if !ok || thought == "" {
		return rec, &ValidationError{Field: "thought", Reason: "must be a string"}
	}

	number, ok := positiveInt(raw["thoughtNumber"])
	if !ok {
		return rec, &ValidationError{Field: "thoughtNumber", Reason: "must be a number"}
	}

	total, ok := positiveInt(raw["totalThoughts"])
	if !ok {
		return rec, &ValidationError{Field: "totalThoughts", Reason: "must be a number"}
	}

	next, ok := raw["nextThoughtNeeded"].(bool)
	if !ok {
		return rec, &ValidationError{Field: "nextThoughtNeeded", Reason: "must be a boolean"}
	}

	rec = ThoughtRecord{
		Thought:           thought,
		ThoughtNumber:     number,
		TotalThoughts:     total,
		NextThoughtNeeded: next,
	}

	// Optional fields: well-typed or ignored.
	if v, ok := raw["isRevision"].(bool); ok {
		rec.IsRevision = v
	}
	if v, ok := positiveInt(raw["revisesThought"]); ok {
		rec.RevisesThought = v
	}
	if v, ok := positiveInt(raw["branchFromThought"]); ok {
		rec.BranchFromThought = v
	}
	if v, ok := raw["branchId"].(string); ok {
		rec.BranchID = v
	}
	if v, ok := raw["needsMoreThoughts"].(bool); ok {
		rec.NeedsMoreThoughts = v
	}

	return rec, nil
}

// ValidateThoughtJSON decodes JSON arguments and validates them.
func ValidateThoughtJSON(args json.RawMessage) (ThoughtRecord, error) {
	var raw map[string]any
	if err := json.Unmarshal(args, &raw); err != nil {
		return ThoughtRecord{}, &ValidationError{Field: "arguments", Reason: "must be a JSON object"}
	}
	return ValidateThought(raw)
}

// positiveInt accepts JSON numbers that are whole and >= 1.
func positiveInt(v any) (int, bool) {
	f, ok := v.(float64)
	if !ok || f < 1 || f != math.Trunc(f) {
		// Direct int covers callers constructing raw maps in-process.
		if n, isInt := v.(int); isInt && n >= 1 {
			return n, true
		}
		return 0, false
	}
	return int(f), true
}
