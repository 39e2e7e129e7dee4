// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package session

import (
	"log/slog"
	"strconv"
	"sync"
	"time"
)

// DefaultMaxSessions bounds the store when no explicit capacity is given.
const DefaultMaxSessions = 1000

// Clock returns the current time. Injectable for deterministic tests.
type Clock func() time.Time

// Store is the bounded registry of thinking sessions.
//
// # Description
//
// Maps integer session ids to ThinkingSessions, tracking last access for
// least-recently-used eviction. Ids come from a monotonically increasing
// counter and are never reused, even after eviction: an evicted id becomes
// permanently absent. The store is constructed explicitly and passed to the
// connection handlers; there is no package-level singleton.
//
// # Invariants
//
//   - len(sessions) <= maxSessions after every operation.
//   - sessions and lastAccess always hold the same key set.
//
// # Thread Safety
//
// One coarse mutex covers GetOrCreate, Touch, and EvictOldest as indivisible
// operations; connection handlers call into the store concurrently.
type Store struct {
	mu          sync.Mutex
	sessions    map[int64]*ThinkingSession
	lastAccess  map[int64]time.Time
	nextID      int64
	maxSessions int
	now         Clock

	// onEvict and onCreate are invoked (under the lock) per eviction and
	// mint; used to record metrics without importing the observability
	// package.
	onEvict  func(id int64)
	onCreate func(id int64)
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithMaxSessions overrides the capacity bound.
func WithMaxSessions(n int) StoreOption {
	return func(s *Store) {
		if n > 0 {
			s.maxSessions = n
		}
	}
}

// WithClock injects a time source for tests.
func WithClock(now Clock) StoreOption {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithEvictionHook registers a callback invoked for each evicted session id.
func WithEvictionHook(fn func(id int64)) StoreOption {
	return func(s *Store) {
		s.onEvict = fn
	}
}

// WithCreationHook registers a callback invoked for each minted session id.
func WithCreationHook(fn func(id int64)) StoreOption {
	return func(s *Store) {
		s.onCreate = fn
	}
}

// NewStore creates an empty session store.
func NewStore(opts ...StoreOption) *Store {
	s := &Store{
		sessions:    make(map[int64]*ThinkingSession),
		lastAccess:  make(map[int64]time.Time),
		nextID:      1,
		maxSessions: DefaultMaxSessions,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetOrCreate resolves a client-supplied session hint to a live session.
//
// # Description
//
// A hint that parses to an id currently in the store is touched and
// returned. Any other hint — empty, malformed, or a well-formed id that is
// unknown (stale or evicted) — silently mints a new session under a fresh
// id, evicting the least-recently-touched session first when at capacity.
// The stale-hint fallback is logged at Warn so client bugs stay visible
// server-side, but it is not an error: ids are never recycled, so a stale
// hint is indistinguishable from a fresh-start request.
//
// # Inputs
//
//   - hint: Client-supplied session id, usually from a query parameter.
//     Empty means "start fresh".
//
// # Outputs
//
//   - int64: The bound session id.
//   - *ThinkingSession: The live session, never nil.
func (s *Store) GetOrCreate(hint string) (int64, *ThinkingSession) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if hint != "" {
		if id, err := strconv.ParseInt(hint, 10, 64); err == nil {
			if sess, ok := s.sessions[id]; ok {
				s.lastAccess[id] = s.now()
				return id, sess
			}
			slog.Warn("unknown session hint, minting a new session", "hint", hint)
		} else {
			slog.Warn("malformed session hint, minting a new session", "hint", hint)
		}
	}

	if len(s.sessions) >= s.maxSessions {
		s.evictOldestLocked()
	}

	id := s.nextID
	s.nextID++
	sess := NewThinkingSession()
	s.sessions[id] = sess
	s.lastAccess[id] = s.now()
	if s.onCreate != nil {
		s.onCreate(id)
	}
	return id, sess
}

// Touch updates a session's last access time. No-op when the id is absent.
func (s *Store) Touch(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; ok {
		s.lastAccess[id] = s.now()
	}
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Get returns a live session without touching it, for read-only inspection.
func (s *Store) Get(id int64) (*ThinkingSession, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	return sess, ok
}

// EvictOldest removes exactly one session: the one with the minimum last
// access time, ties broken by smallest id. No-op on an empty store.
func (s *Store) EvictOldest() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.evictOldestLocked()
}

func (s *Store) evictOldestLocked() {
	if len(s.sessions) == 0 {
		return
	}

	var victim int64
	var oldest time.Time
	first := true
	for id, at := range s.lastAccess {
		switch {
		case first:
			victim, oldest = id, at
			first = false
		case at.Before(oldest):
			victim, oldest = id, at
		case at.Equal(oldest) && id < victim:
			victim = id
		}
	}

	delete(s.sessions, victim)
	delete(s.lastAccess, victim)
	slog.Info("evicted least-recently-used session", "sessionId", victim, "lastAccess", oldest)
	if s.onEvict != nil {
		s.onEvict(victim)
	}
}
