// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datatypes

import (
	"encoding/json"
	"errors"
	"testing"
)

// =============================================================================
// Thought Validation Tests
// =============================================================================

func validRaw() map[string]any {
	return map[string]any{
		"thought":           "step one",
		"thoughtNumber":     float64(1),
		"totalThoughts":     float64(3),
		"nextThoughtNeeded": true,
	}
}

func TestValidateThought_Accepts_MinimalRecord(t *testing.T) {
	rec, err := ValidateThought(validRaw())
	if err != nil {
		t.Fatalf("minimal valid record should pass, got: %v", err)
	}
	if rec.Thought != "step one" || rec.ThoughtNumber != 1 || rec.TotalThoughts != 3 {
		t.Errorf("record fields not populated: %+v", rec)
	}
	if !rec.NextThoughtNeeded {
		t.Error("nextThoughtNeeded should be true")
	}
}

func TestValidateThought_RejectsMissingOrEmptyThought(t *testing.T) {
	for name, mutate := range map[string]func(map[string]any){
		"absent":   func(m map[string]any) { delete(m, "thought") },
		"empty":    func(m map[string]any) { m["thought"] = "" },
		"non-text": func(m map[string]any) { m["thought"] = 42 },
	} {
		raw := validRaw()
		mutate(raw)
		_, err := ValidateThought(raw)
		if err == nil {
			t.Errorf("%s thought should fail validation", name)
			continue
		}
		var verr *ValidationError
		if !errors.As(err, &verr) {
			t.Errorf("%s thought: expected *ValidationError, got %T", name, err)
		} else if verr.Field != "thought" {
			t.Errorf("%s thought: expected field 'thought', got %q", name, verr.Field)
		}
	}
}

func TestValidateThought_RejectsBadNumbers(t *testing.T) {
	for name, mutate := range map[string]func(map[string]any){
		"thoughtNumber absent":     func(m map[string]any) { delete(m, "thoughtNumber") },
		"thoughtNumber zero":       func(m map[string]any) { m["thoughtNumber"] = float64(0) },
		"thoughtNumber negative":   func(m map[string]any) { m["thoughtNumber"] = float64(-2) },
		"thoughtNumber fractional": func(m map[string]any) { m["thoughtNumber"] = 1.5 },
		"thoughtNumber string":     func(m map[string]any) { m["thoughtNumber"] = "1" },
		"totalThoughts absent":     func(m map[string]any) { delete(m, "totalThoughts") },
		"totalThoughts zero":       func(m map[string]any) { m["totalThoughts"] = float64(0) },
	} {
		raw := validRaw()
		mutate(raw)
		if _, err := ValidateThought(raw); err == nil {
			t.Errorf("%s should fail validation", name)
		}
	}
}

func TestValidateThought_RejectsNonBooleanContinuation(t *testing.T) {
	raw := validRaw()
	raw["nextThoughtNeeded"] = "yes"
	if _, err := ValidateThought(raw); err == nil {
		t.Error("non-boolean nextThoughtNeeded should fail validation")
	}

	delete(raw, "nextThoughtNeeded")
	if _, err := ValidateThought(raw); err == nil {
		t.Error("absent nextThoughtNeeded should fail validation")
	}
}

func TestValidateThought_OptionalFields_WellTyped(t *testing.T) {
	raw := validRaw()
	raw["isRevision"] = true
	raw["revisesThought"] = float64(1)
	raw["branchFromThought"] = float64(2)
	raw["branchId"] = "alt-path"
	raw["needsMoreThoughts"] = true

	rec, err := ValidateThought(raw)
	if err != nil {
		t.Fatalf("well-typed optional fields should pass, got: %v", err)
	}
	if !rec.IsRevision || rec.RevisesThought != 1 {
		t.Errorf("revision fields not carried: %+v", rec)
	}
	if rec.BranchFromThought != 2 || rec.BranchID != "alt-path" {
		t.Errorf("branch fields not carried: %+v", rec)
	}
	if !rec.NeedsMoreThoughts {
		t.Error("needsMoreThoughts not carried")
	}
}

func TestValidateThought_OptionalFields_MistypedAreIgnored(t *testing.T) {
	raw := validRaw()
	raw["isRevision"] = "true"
	raw["revisesThought"] = "one"
	raw["branchId"] = 7

	rec, err := ValidateThought(raw)
	if err != nil {
		t.Fatalf("mistyped optional fields should not fail validation, got: %v", err)
	}
	if rec.IsRevision || rec.RevisesThought != 0 || rec.BranchID != "" {
		t.Errorf("mistyped optional fields should be treated as absent: %+v", rec)
	}
}

func TestValidateThought_NoRepairDuringValidation(t *testing.T) {
	raw := validRaw()
	raw["thoughtNumber"] = float64(5)
	raw["totalThoughts"] = float64(3)

	rec, err := ValidateThought(raw)
	if err != nil {
		t.Fatalf("under-counted totalThoughts is not a validation failure: %v", err)
	}
	// The upward repair happens in session processing, not here.
	if rec.TotalThoughts != 3 {
		t.Errorf("validation must not repair totalThoughts: got %d", rec.TotalThoughts)
	}
}

func TestValidateThoughtJSON_RejectsNonObject(t *testing.T) {
	if _, err := ValidateThoughtJSON(json.RawMessage(`[1,2]`)); err == nil {
		t.Error("non-object arguments should fail validation")
	}
}

func TestValidateThoughtJSON_RoundTrip(t *testing.T) {
	args := json.RawMessage(`{"thought":"check assumptions","thoughtNumber":2,"totalThoughts":4,"nextThoughtNeeded":false}`)
	rec, err := ValidateThoughtJSON(args)
	if err != nil {
		t.Fatalf("valid JSON arguments should pass, got: %v", err)
	}
	if rec.ThoughtNumber != 2 || rec.TotalThoughts != 4 || rec.NextThoughtNeeded {
		t.Errorf("unexpected record: %+v", rec)
	}
}
