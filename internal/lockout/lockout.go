// Package lockout tracks failed authentication attempts and imposes
// escalating lock windows on repeated failures.
package lockout

import (
	"sync"
	"time"
)

// state holds the per-scope failure counter and lock window.
type state struct {
	failed      int
	escalations int
	lockedUntil time.Time
	lastFailure time.Time
}

// Guard serializes failure counting per scope so concurrent attempts cannot
// slip past the threshold. A scope is typically one protected endpoint.
type Guard struct {
	maxFailures int
	step        time.Duration
	maxLock     time.Duration

	mu     sync.Mutex
	scopes map[string]*state

	now func() time.Time // injectable clock for tests
}

// New creates a Guard that locks a scope after maxFailures consecutive
// failures. The first lock lasts step; each further failure doubles the
// window, capped at maxLock.
func New(maxFailures int, step, maxLock time.Duration) *Guard {
	if maxFailures < 1 {
		maxFailures = 1
	}
	if maxLock < step {
		maxLock = step
	}
	return &Guard{
		maxFailures: maxFailures,
		step:        step,
		maxLock:     maxLock,
		scopes:      make(map[string]*state),
		now:         time.Now,
	}
}

// CheckLocked reports whether the scope is currently locked and, if so, how
// long until attempts are accepted again.
func (g *Guard) CheckLocked(scope string) (bool, time.Duration) {
	now := g.now()

	g.mu.Lock()
	defer g.mu.Unlock()

	s, ok := g.scopes[scope]
	if !ok || !now.Before(s.lockedUntil) {
		return false, 0
	}
	return true, s.lockedUntil.Sub(now)
}

// RecordFailure registers a failed attempt. Reaching the threshold locks the
// scope; failures during or after a lock extend it exponentially. The window
// is only ever extended, never shortened.
func (g *Guard) RecordFailure(scope string) {
	now := g.now()

	g.mu.Lock()
	defer g.mu.Unlock()

	s, ok := g.scopes[scope]
	if !ok {
		s = &state{}
		g.scopes[scope] = s
	}

	s.failed++
	s.lastFailure = now

	if s.failed < g.maxFailures {
		return
	}

	d := g.step << uint(s.escalations)
	if d > g.maxLock || d < g.step { // d < step guards shift overflow
		d = g.maxLock
	} else {
		s.escalations++
	}

	if until := now.Add(d); until.After(s.lockedUntil) {
		s.lockedUntil = until
	}
}

// RecordSuccess resets the scope after a successful authentication. A success
// reported while the scope is still locked is ignored: callers must gate
// authentication on CheckLocked first.
func (g *Guard) RecordSuccess(scope string) {
	now := g.now()

	g.mu.Lock()
	defer g.mu.Unlock()

	s, ok := g.scopes[scope]
	if !ok {
		return
	}
	if now.Before(s.lockedUntil) {
		return
	}
	delete(g.scopes, scope)
}

// Sweep drops scopes whose locks expired and whose last failure is older
// than the maximum lock window. Keeps the table bounded under key churn.
func (g *Guard) Sweep() int {
	now := g.now()
	cutoff := now.Add(-g.maxLock)

	g.mu.Lock()
	defer g.mu.Unlock()

	removed := 0
	for scope, s := range g.scopes {
		if now.Before(s.lockedUntil) {
			continue
		}
		if s.lastFailure.Before(cutoff) {
			delete(g.scopes, scope)
			removed++
		}
	}
	return removed
}
