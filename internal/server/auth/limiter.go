package auth

import (
	"sync"
	"time"

	"github.com/dmitrijs2005/salesdash/internal/timex"
)

// AttemptLimiter counts failed credential checks per identifier inside a
// sliding window. Once an identifier reaches max failures it is refused until
// the oldest failure leaves the window. Checks still in progress hold a slot
// taken with Reserve, so concurrent guesses cannot overrun max. A limiter with
// max <= 0 allows everything.
type AttemptLimiter struct {
	mu       sync.Mutex
	max      int
	window   time.Duration
	now      timex.Clock
	failures map[string][]time.Time
	inflight map[string]int
}

func NewAttemptLimiter(max int, window time.Duration, clock timex.Clock) *AttemptLimiter {
	if clock == nil {
		clock = timex.RealClock
	}
	return &AttemptLimiter{
		max:      max,
		window:   window,
		now:      clock,
		failures: make(map[string][]time.Time),
		inflight: make(map[string]int),
	}
}

// Allow reports whether identifier may attempt another login without taking a
// slot. Use Reserve when the attempt is about to run.
func (l *AttemptLimiter) Allow(identifier string) bool {
	if l == nil || l.max <= 0 {
		return true
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	return len(l.recent(identifier, l.now()))+l.inflight[identifier] < l.max
}

// Reserve checks identifier against the limit and, when allowed, takes a slot
// for one attempt in the same step. Every successful Reserve must be paired
// with Release once the attempt has finished; a failure is recorded with Fail
// before releasing.
func (l *AttemptLimiter) Reserve(identifier string) bool {
	if l == nil || l.max <= 0 {
		return true
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.recent(identifier, l.now()))+l.inflight[identifier] >= l.max {
		return false
	}
	l.inflight[identifier]++
	return true
}

// Release gives back a slot taken with Reserve.
func (l *AttemptLimiter) Release(identifier string) {
	if l == nil || l.max <= 0 {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if n := l.inflight[identifier]; n > 1 {
		l.inflight[identifier] = n - 1
	} else {
		delete(l.inflight, identifier)
	}
}

// Fail records a failed attempt for identifier.
func (l *AttemptLimiter) Fail(identifier string) {
	if l == nil || l.max <= 0 {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.failures[identifier] = append(l.recent(identifier, now), now)
}

// Reset forgets all failures for identifier, typically after a successful login.
func (l *AttemptLimiter) Reset(identifier string) {
	if l == nil || l.max <= 0 {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	delete(l.failures, identifier)
}

// Prune drops identifiers whose failures have all left the window and returns
// how many were dropped.
func (l *AttemptLimiter) Prune() int {
	if l == nil || l.max <= 0 {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	dropped := 0
	for id := range l.failures {
		if len(l.recent(id, now)) == 0 {
			delete(l.failures, id)
			dropped++
		}
	}
	return dropped
}

// recent trims and returns the failures of identifier still inside the
// window. Callers hold l.mu.
func (l *AttemptLimiter) recent(identifier string, now time.Time) []time.Time {
	all := l.failures[identifier]
	cutoff := now.Add(-l.window)
	i := 0
	for i < len(all) && !all[i].After(cutoff) {
		i++
	}
	kept := all[i:]
	if len(kept) == 0 {
		delete(l.failures, identifier)
		return nil
	}
	l.failures[identifier] = kept
	return kept
}
