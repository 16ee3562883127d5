// Package ratelimit implements a fixed-window, in-memory request limiter.
//
// Counting is per discrete window, not a sliding interval: a client that
// exhausts its budget right before a window boundary can burst up to twice
// the limit across the edge. That is an accepted property of the fixed-window
// algorithm, traded for O(1) state per client.
package ratelimit

import (
	"sync"
	"time"
)

// window tracks one client's request count inside the current window.
type window struct {
	count int
	start time.Time
}

// Limiter is a fixed-window rate limiter keyed by client identifier.
// All state is process-local and lost on restart.
type Limiter struct {
	limit    int
	interval time.Duration

	mu      sync.Mutex
	windows map[string]*window

	now  func() time.Time // injectable clock for tests
	stop chan struct{}
}

// New creates a Limiter allowing limit requests per interval for each key.
func New(limit int, interval time.Duration) *Limiter {
	if limit < 1 {
		limit = 1
	}
	l := &Limiter{
		limit:    limit,
		interval: interval,
		windows:  make(map[string]*window),
		now:      time.Now,
		stop:     make(chan struct{}),
	}
	return l
}

// NewPerMinute creates a Limiter with the conventional one-minute window.
func NewPerMinute(limit int) *Limiter {
	return New(limit, time.Minute)
}

// Allow registers a request for the key. It returns whether the request is
// admitted and, when it is not, how long the client should wait before
// retrying. The check-and-increment is a single atomic unit under the lock.
func (l *Limiter) Allow(key string) (bool, time.Duration) {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.windows[key]
	if !ok || now.Sub(w.start) >= l.interval {
		// New key, or the boundary has passed: the window starts fresh.
		w = &window{start: now}
		l.windows[key] = w
	}

	w.count++
	if w.count > l.limit {
		retryAfter := w.start.Add(l.interval).Sub(now)
		if retryAfter <= 0 {
			retryAfter = time.Second
		}
		return false, retryAfter
	}

	return true, 0
}

// Sweep removes windows that have been stale for several interval lengths,
// bounding memory under a churn of distinct clients.
func (l *Limiter) Sweep() int {
	cutoff := l.now().Add(-3 * l.interval)

	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for key, w := range l.windows {
		if w.start.Before(cutoff) {
			delete(l.windows, key)
			removed++
		}
	}
	return removed
}

// StartSweeper runs Sweep periodically until Stop is called.
func (l *Limiter) StartSweeper() {
	ticker := time.NewTicker(l.interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-l.stop:
				return
			case <-ticker.C:
				l.Sweep()
			}
		}
	}()
}

// Stop terminates the sweeper goroutine.
func (l *Limiter) Stop() {
	close(l.stop)
}

// size returns the number of tracked keys. Test helper.
func (l *Limiter) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.windows)
}
