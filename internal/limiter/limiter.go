// Package limiter implements three-tier admission control for generation
// requests sharing one API credential: a per-user-per-minute ceiling, a
// per-user-per-hour ceiling, and a global in-flight ceiling across all users.
// A request must clear all three tiers before any external model call is made;
// rejection is a flow-control signal, not an error, and is never retried here.
package limiter

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Default ceilings, sized for a small free-tier deployment: 10-20 users with
// 5-10 active in parallel.
const (
	// DefaultPerMinute is the per-user requests-per-minute ceiling.
	DefaultPerMinute = 10
	// DefaultPerHour is the per-user requests-per-hour ceiling.
	DefaultPerHour = 100
	// DefaultGlobalInFlight is the cross-user concurrent request ceiling. This
	// is the system's backpressure valve: once saturated, new requests are
	// rejected immediately rather than queued.
	DefaultGlobalInFlight = 50

	// globalRetryHint is the retry-after hint returned on global-tier
	// rejection. In-flight slots free as soon as requests complete, so a
	// short hint is appropriate.
	globalRetryHint = 5 * time.Second
)

// Tier identifies which admission ceiling rejected a request.
type Tier string

const (
	// TierGlobal is the cross-user concurrent in-flight ceiling.
	TierGlobal Tier = "global"
	// TierPerMinute is the per-user requests-per-minute ceiling.
	TierPerMinute Tier = "per_minute"
	// TierPerHour is the per-user requests-per-hour ceiling.
	TierPerHour Tier = "per_hour"
)

// RejectionError reports an admission rejection. It is the expected outcome
// under load, carries a retry hint, and must be surfaced to the caller
// unmodified, never retried on their behalf.
type RejectionError struct {
	// Tier is the ceiling that rejected the request.
	Tier Tier
	// RetryAfter is the suggested wait before the next attempt.
	RetryAfter time.Duration
	// Message is a user-presentable explanation.
	Message string
}

// Error implements the error interface.
func (e *RejectionError) Error() string {
	return fmt.Sprintf("limiter: %s ceiling reached, retry after %s", e.Tier, e.RetryAfter)
}

// Config holds the three ceilings. Zero values fall back to the defaults.
type Config struct {
	// PerMinute is the per-user requests-per-minute ceiling.
	PerMinute int
	// PerHour is the per-user requests-per-hour ceiling.
	PerHour int
	// GlobalInFlight is the cross-user concurrent request ceiling.
	GlobalInFlight int
}

// userLimits holds one user's token buckets and the last time the user was
// seen, used to evict idle entries from the limiter map.
type userLimits struct {
	// minute enforces the per-minute ceiling.
	minute *rate.Limiter
	// hour enforces the per-hour ceiling.
	hour *rate.Limiter
	// lastSeen is updated on every admission attempt by this user.
	lastSeen time.Time
}

// Limiter is the three-tier admission controller. It owns all counter state;
// no other component reads or writes it. Safe for concurrent use.
type Limiter struct {
	// mu protects the users map.
	mu sync.Mutex
	// users maps userID to its per-user token buckets.
	users map[string]*userLimits
	// perMinute and perHour are the per-user ceilings.
	perMinute int
	perHour   int
	// slots is the global in-flight semaphore; its capacity is the ceiling.
	slots chan struct{}
	// log is the structured logger for admission events.
	log *slog.Logger
}

// New constructs a Limiter and starts the background eviction goroutine for
// idle per-user entries. The goroutine exits when the returned stop function
// is called.
func New(cfg Config, log *slog.Logger) (*Limiter, func()) {
	if cfg.PerMinute <= 0 {
		cfg.PerMinute = DefaultPerMinute
	}
	if cfg.PerHour <= 0 {
		cfg.PerHour = DefaultPerHour
	}
	if cfg.GlobalInFlight <= 0 {
		cfg.GlobalInFlight = DefaultGlobalInFlight
	}
	if log == nil {
		log = slog.Default()
	}

	l := &Limiter{
		users:     make(map[string]*userLimits),
		perMinute: cfg.PerMinute,
		perHour:   cfg.PerHour,
		slots:     make(chan struct{}, cfg.GlobalInFlight),
		log:       log,
	}

	stopCh := make(chan struct{})
	go l.evictLoop(stopCh)

	return l, func() { close(stopCh) }
}

// Token is a unit of global in-flight capacity. It must be released exactly
// once on every exit path of the guarded operation, including failure and
// cancellation. A leaked token permanently shrinks global capacity.
type Token struct {
	l    *Limiter
	once sync.Once
}

// Release returns the global in-flight slot. Safe to call more than once;
// only the first call has an effect.
func (t *Token) Release() {
	t.once.Do(func() { <-t.l.slots })
}

// TryAdmit admits or rejects one generation attempt for userID. Tiers are
// checked in order global, per-minute, per-hour; the first rejecting tier
// short-circuits the rest and is reported as a *RejectionError. On admission
// the returned Token holds a global in-flight slot until released.
// TryAdmit never blocks and never calls an external service.
func (l *Limiter) TryAdmit(userID string) (*Token, error) {
	// Global tier first: it protects the shared backend quota no matter
	// which users are active.
	select {
	case l.slots <- struct{}{}:
	default:
		l.log.Warn("admission rejected", slog.String("tier", string(TierGlobal)))
		return nil, &RejectionError{
			Tier:       TierGlobal,
			RetryAfter: globalRetryHint,
			Message:    "System is at capacity. Please try again in a moment.",
		}
	}
	tok := &Token{l: l}

	u := l.userEntry(userID)
	now := time.Now()

	// Per-minute and per-hour tiers use reservations so a later rejection can
	// hand back tokens already taken, leaving all counters untouched.
	minRes := u.minute.ReserveN(now, 1)
	if d := minRes.DelayFrom(now); d > 0 {
		minRes.CancelAt(now)
		tok.Release()
		l.log.Warn("admission rejected",
			slog.String("tier", string(TierPerMinute)),
			slog.String("user_id", userID),
			slog.Duration("retry_after", d),
		)
		return nil, &RejectionError{
			Tier:       TierPerMinute,
			RetryAfter: d,
			Message:    "Too many requests. Please wait a moment before sending another message.",
		}
	}

	hourRes := u.hour.ReserveN(now, 1)
	if d := hourRes.DelayFrom(now); d > 0 {
		hourRes.CancelAt(now)
		minRes.CancelAt(now)
		tok.Release()
		l.log.Warn("admission rejected",
			slog.String("tier", string(TierPerHour)),
			slog.String("user_id", userID),
			slog.Duration("retry_after", d),
		)
		return nil, &RejectionError{
			Tier:       TierPerHour,
			RetryAfter: d,
			Message:    "Hourly limit reached. Please try again later.",
		}
	}

	return tok, nil
}

// InFlight returns the number of global slots currently held.
func (l *Limiter) InFlight() int {
	return len(l.slots)
}

// userEntry returns the per-user bucket pair for userID, creating it if it
// does not already exist.
func (l *Limiter) userEntry(userID string) *userLimits {
	l.mu.Lock()
	defer l.mu.Unlock()

	u, ok := l.users[userID]
	if !ok {
		u = &userLimits{
			minute: rate.NewLimiter(rate.Every(time.Minute/time.Duration(l.perMinute)), l.perMinute),
			hour:   rate.NewLimiter(rate.Every(time.Hour/time.Duration(l.perHour)), l.perHour),
		}
		l.users[userID] = u
	}
	u.lastSeen = time.Now()
	return u
}

// evictLoop removes user entries idle for more than two hours. The retention
// window must exceed the hour bucket's refill period or eviction would grant
// a fresh hourly quota. Runs in a background goroutine until stopCh closes.
func (l *Limiter) evictLoop(stopCh <-chan struct{}) {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			l.evict()
		}
	}
}

// evict removes user entries not seen for more than two hours.
func (l *Limiter) evict() {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := time.Now().Add(-2 * time.Hour)
	for id, u := range l.users {
		if u.lastSeen.Before(cutoff) {
			delete(l.users, id)
		}
	}
}
