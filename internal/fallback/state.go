package fallback

import (
	"sync"
	"time"
)

// DefaultResetWindow is how long exhaustion persists before the service is
// considered available again.
const DefaultResetWindow = 5 * time.Minute

// ExhaustionState records whether the full hierarchy was rate-limited in a
// single orchestration pass. It is an explicit, constructed object rather
// than package state so tests can build isolated instances.
//
// The reset is lazy: the flag clears on the first availability check after
// the window elapses, not on a background timer. Between polls an expired
// exhaustion can therefore linger, which is acceptable for a status endpoint
// polled every minute.
type ExhaustionState struct {
	// mu protects the fields below.
	mu sync.Mutex
	// exhausted is true while every model in the hierarchy is rate-limited.
	exhausted bool
	// exhaustedAt is when exhaustion was last marked.
	exhaustedAt time.Time
	// resetWindow is how long exhaustion persists.
	resetWindow time.Duration
}

// NewExhaustionState constructs an ExhaustionState with the given reset
// window (DefaultResetWindow if zero).
func NewExhaustionState(window time.Duration) *ExhaustionState {
	if window <= 0 {
		window = DefaultResetWindow
	}
	return &ExhaustionState{resetWindow: window}
}

// Mark records that the full hierarchy was exhausted at now.
func (s *ExhaustionState) Mark(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.exhausted = true
	s.exhaustedAt = now
}

// Check reports whether the service is available at now, clearing the
// exhausted flag as a side effect once the reset window has elapsed.
// When unavailable, remaining is how long until the window elapses.
func (s *ExhaustionState) Check(now time.Time) (available bool, remaining time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.exhausted {
		return true, 0
	}

	elapsed := now.Sub(s.exhaustedAt)
	if elapsed > s.resetWindow {
		s.exhausted = false
		s.exhaustedAt = time.Time{}
		return true, 0
	}
	return false, s.resetWindow - elapsed
}
