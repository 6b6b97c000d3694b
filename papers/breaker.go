// Circuit breaker for the external paper-search dependency.
//
// Information Hiding:
// - State transition rules hidden behind ShouldAllow/RecordSuccess/RecordFailure
// - Clock source injectable for tests

package papers

import (
	"sync"
	"time"
)

// BreakerState is the circuit breaker's current mode.
type BreakerState string

const (
	// StateClosed allows all calls.
	StateClosed BreakerState = "closed"
	// StateOpen rejects calls without attempting them.
	StateOpen BreakerState = "open"
	// StateHalfOpen allows a single probe call.
	StateHalfOpen BreakerState = "half-open"
)

const (
	// DefaultFailureThreshold is the consecutive failure count that
	// trips the breaker from closed to open.
	DefaultFailureThreshold = 3

	// DefaultResetTimeout is how long the breaker stays open before a
	// probe call is allowed.
	DefaultResetTimeout = 5 * time.Minute
)

// Breaker tracks failures against one external dependency.
// Legal transitions: closed->open, open->half-open, half-open->closed,
// half-open->open. Safe for concurrent use.
type Breaker struct {
	mu               sync.Mutex
	state            BreakerState
	failureCount     int
	lastFailureTime  time.Time
	failureThreshold int
	resetTimeout     time.Duration
	now              func() time.Time
}

// NewBreaker creates a closed breaker. Non-positive threshold or
// timeout values fall back to defaults.
func NewBreaker(failureThreshold int, resetTimeout time.Duration) *Breaker {
	if failureThreshold <= 0 {
		failureThreshold = DefaultFailureThreshold
	}
	if resetTimeout <= 0 {
		resetTimeout = DefaultResetTimeout
	}
	return &Breaker{
		state:            StateClosed,
		failureThreshold: failureThreshold,
		resetTimeout:     resetTimeout,
		now:              time.Now,
	}
}

// ShouldAllow reports whether a call may proceed. When the breaker is
// open and the reset timeout has elapsed, it flips to half-open and
// allows one probe.
func (b *Breaker) ShouldAllow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return true
	case StateOpen:
		if b.now().Sub(b.lastFailureTime) > b.resetTimeout {
			b.state = StateHalfOpen
			return true
		}
		return false
	case StateHalfOpen:
		return true
	}
	return false
}

// RecordSuccess closes a half-open breaker and resets the failure
// count. In any other state it is a no-op.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateHalfOpen {
		b.state = StateClosed
		b.failureCount = 0
	}
}

// RecordFailure increments the failure count. A half-open breaker
// reopens immediately; a closed breaker opens once the threshold is
// reached.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failureCount++
	b.lastFailureTime = b.now()

	switch b.state {
	case StateHalfOpen:
		b.state = StateOpen
	case StateClosed:
		if b.failureCount >= b.failureThreshold {
			b.state = StateOpen
		}
	}
}

// State returns the current breaker state.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// RetryAfter returns how long until an open breaker allows a probe,
// rounded up to whole minutes for user-facing messages. Returns 0 when
// calls are already allowed.
func (b *Breaker) RetryAfter() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state != StateOpen {
		return 0
	}
	remaining := b.resetTimeout - b.now().Sub(b.lastFailureTime)
	if remaining < 0 {
		return 0
	}
	return remaining
}
