// Package session holds per-conversation state: identity, the cached
// reduced clinical context, the bounded history window, and the one-way
// emergency latch. Every session owns its state outright; nothing here is
// shared across sessions or keyed by patient id.
package session

import (
	"sync"

	"health-companion/internal/fhir"
	"health-companion/pkg"
)

// Session is one live conversation. A session allows at most one in-flight
// turn at a time: callers must hold the session lock for the whole turn.
type Session struct {
	ID         string
	PatientRef string

	mu       sync.Mutex
	reduced  *fhir.ReducedContext
	history  []pkg.Turn
	latched  bool
	maxTurns int
	maxChars int
}

// Lock serializes turn processing for this session. Other sessions are
// unaffected.
func (s *Session) Lock() { s.mu.Lock() }

// Unlock releases the turn lock.
func (s *Session) Unlock() { s.mu.Unlock() }

// Reduced returns the session's reduced clinical context. Computed once at
// creation; never mutated in place.
func (s *Session) Reduced() *fhir.ReducedContext { return s.reduced }

// Latched reports whether the emergency latch is set.
func (s *Session) Latched() bool { return s.latched }

// Latch sets the emergency latch. The transition is one-way: once latched,
// the session accepts no further orchestrated turns.
func (s *Session) Latch() { s.latched = true }

// History returns a copy of the current window.
func (s *Session) History() []pkg.Turn {
	out := make([]pkg.Turn, len(s.history))
	copy(out, s.history)
	return out
}

// Append adds turns to the history and applies the sliding-window eviction
// policy: oldest whole turns are dropped until both the turn count and the
// character budget hold. The retained turns are always a suffix of the full
// sequence, and the newest turn is never evicted.
func (s *Session) Append(turns ...pkg.Turn) {
	s.history = append(s.history, turns...)
	s.evict()
}

func (s *Session) evict() {
	for len(s.history) > 1 && (len(s.history) > s.maxTurns || s.chars() > s.maxChars) {
		s.history = s.history[1:]
	}
}

func (s *Session) chars() int {
	total := 0
	for _, t := range s.history {
		total += t.Chars()
	}
	return total
}
