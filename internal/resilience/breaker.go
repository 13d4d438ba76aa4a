package resilience

import (
	"sync"
	"time"
)

// BreakerState is one of the three canonical circuit-breaker states.
type BreakerState string

const (
	StateClosed   BreakerState = "closed"
	StateOpen     BreakerState = "open"
	StateHalfOpen BreakerState = "half-open"
)

// Breaker is a hand-rolled circuit breaker: no breaker library appears
// anywhere in the reference corpus, so this follows the same
// mutex-guarded explicit-state-machine shape the corpus uses for its
// rate limiter (acquire/release bracketed by a lock, state transitions
// as plain fields).
type Breaker struct {
	mu sync.Mutex

	failureThreshold int
	openDuration     time.Duration

	state          BreakerState
	consecutiveFails int
	openedAt        time.Time
}

// NewBreaker builds a breaker that opens after failureThreshold
// consecutive failures and stays open for openDuration before allowing
// a half-open probe.
func NewBreaker(failureThreshold int, openDuration time.Duration) *Breaker {
	return &Breaker{
		failureThreshold: failureThreshold,
		openDuration:     openDuration,
		state:            StateClosed,
	}
}

// Allow reports whether a call may proceed, transitioning Open ->
// HalfOpen once openDuration has elapsed.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateOpen:
		if time.Since(b.openedAt) >= b.openDuration {
			b.state = StateHalfOpen
			return true
		}
		return false
	default:
		return true
	}
}

// RecordSuccess closes the breaker and resets the failure count.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.consecutiveFails = 0
	b.state = StateClosed
}

// RecordFailure increments the failure count and opens the breaker once
// the threshold is reached (including a failed half-open probe, which
// reopens immediately).
func (b *Breaker) RecordFailure(now time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateHalfOpen {
		b.state = StateOpen
		b.openedAt = now
		return
	}

	b.consecutiveFails++
	if b.consecutiveFails >= b.failureThreshold {
		b.state = StateOpen
		b.openedAt = now
	}
}

// State returns the breaker's current state, for metrics export.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}
