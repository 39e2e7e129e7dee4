// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package session

import (
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/AleutianAI/ThoughtStream/services/sequential_thinking/datatypes"
)

func record(n, total int) datatypes.ThoughtRecord {
	return datatypes.ThoughtRecord{
		Thought:           fmt.Sprintf("step %d", n),
		ThoughtNumber:     n,
		TotalThoughts:     total,
		NextThoughtNeeded: true,
	}
}

func TestProcess_AppendsEveryRecord(t *testing.T) {
	sess := NewThinkingSession()

	const n = 25
	for i := 1; i <= n; i++ {
		result := sess.Process(record(i, n))
		if result.ThoughtHistoryLength != i {
			t.Fatalf("after %d records, history length = %d", i, result.ThoughtHistoryLength)
		}
	}
	if sess.HistoryLength() != n {
		t.Errorf("final history length = %d, want %d", sess.HistoryLength(), n)
	}
}

func TestProcess_RepairsTotalThoughtsUpward(t *testing.T) {
	sess := NewThinkingSession()

	result := sess.Process(record(5, 3))
	if result.TotalThoughts != 5 {
		t.Errorf("totalThoughts should be repaired to 5, got %d", result.TotalThoughts)
	}

	result = sess.Process(record(6, 10))
	if result.TotalThoughts != 10 {
		t.Errorf("totalThoughts within estimate must pass through, got %d", result.TotalThoughts)
	}
}

func TestProcess_RevisionsAppendWithoutReplacing(t *testing.T) {
	sess := NewThinkingSession()
	sess.Process(record(1, 2))

	rev := record(2, 2)
	rev.IsRevision = true
	rev.RevisesThought = 1
	result := sess.Process(rev)

	// History is immutable: the revised record stays, the revision appends.
	if result.ThoughtHistoryLength != 2 {
		t.Errorf("revision must append, history length = %d", result.ThoughtHistoryLength)
	}
}

func TestProcess_BranchIndexAccumulates(t *testing.T) {
	sess := NewThinkingSession()
	sess.Process(record(1, 3))

	b1 := record(2, 3)
	b1.BranchFromThought = 1
	b1.BranchID = "alt"
	result := sess.Process(b1)
	if len(result.Branches) != 1 || result.Branches[0] != "alt" {
		t.Fatalf("branch id should be known after first branch record: %v", result.Branches)
	}

	b2 := record(3, 3)
	b2.BranchFromThought = 1
	b2.BranchID = "alt"
	sess.Process(b2)
	if sess.BranchLength("alt") != 2 {
		t.Errorf("branch records should accumulate in submission order, got %d", sess.BranchLength("alt"))
	}

	// Once known, a branch id appears in every subsequent response.
	result = sess.Process(record(4, 4))
	found := false
	for _, id := range result.Branches {
		if id == "alt" {
			found = true
		}
	}
	if !found {
		t.Errorf("known branch id missing from response: %v", result.Branches)
	}
}

func TestProcess_BranchRequiresBothFields(t *testing.T) {
	sess := NewThinkingSession()

	half := record(1, 1)
	half.BranchID = "only-id"
	result := sess.Process(half)
	if len(result.Branches) != 0 {
		t.Errorf("branchId without branchFromThought must not index: %v", result.Branches)
	}

	half = record(2, 2)
	half.BranchFromThought = 1
	result = sess.Process(half)
	if len(result.Branches) != 0 {
		t.Errorf("branchFromThought without branchId must not index: %v", result.Branches)
	}
}

func TestProcess_ConcurrentCallsDoNotInterleave(t *testing.T) {
	sess := NewThinkingSession()

	const workers = 8
	const perWorker = 50
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 1; i <= perWorker; i++ {
				sess.Process(record(i, perWorker))
			}
		}()
	}
	wg.Wait()

	if sess.HistoryLength() != workers*perWorker {
		t.Errorf("history length = %d, want %d", sess.HistoryLength(), workers*perWorker)
	}
}

// =============================================================================
// Rendering Tests
// =============================================================================

func TestFormatThought_PlainThought(t *testing.T) {
	out := formatThought(record(1, 3))
	if !strings.Contains(out, "💭 Thought 1/3") {
		t.Errorf("plain rendering missing header: %s", out)
	}
}

func TestFormatThought_RevisionAndBranchContext(t *testing.T) {
	rev := record(2, 3)
	rev.IsRevision = true
	rev.RevisesThought = 1
	if out := formatThought(rev); !strings.Contains(out, "🔄 Revision 2/3 (revising thought 1)") {
		t.Errorf("revision rendering wrong: %s", out)
	}

	br := record(3, 3)
	br.BranchFromThought = 1
	br.BranchID = "alt"
	if out := formatThought(br); !strings.Contains(out, "🌿 Branch 3/3 (from thought 1, ID: alt)") {
		t.Errorf("branch rendering wrong: %s", out)
	}
}
