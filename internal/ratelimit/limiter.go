// Package ratelimit tracks the per-session budget of AI calls.
package ratelimit

import "sync"

// DefaultLimit is the per-session AI call ceiling used when none is configured.
const DefaultLimit = 20

// Decision is the outcome of a budget check.
type Decision struct {
	Allowed   bool
	Remaining int
}

// Limiter counts AI calls per session against a fixed ceiling. Counters only
// grow and live for the lifetime of the process.
type Limiter struct {
	limit int

	mu     sync.Mutex
	counts map[string]int
}

// New returns a Limiter allowing limit AI calls per session.
func New(limit int) *Limiter {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Limiter{limit: limit, counts: make(map[string]int)}
}

// Check reports whether sessionID may make another AI call.
func (l *Limiter) Check(sessionID string) Decision {
	l.mu.Lock()
	defer l.mu.Unlock()
	remaining := l.limit - l.counts[sessionID]
	if remaining < 0 {
		remaining = 0
	}
	return Decision{Allowed: remaining > 0, Remaining: remaining}
}

// Increment records one accepted AI call for sessionID.
func (l *Limiter) Increment(sessionID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.counts[sessionID]++
}

// Limit returns the configured ceiling.
func (l *Limiter) Limit() int {
	return l.limit
}
