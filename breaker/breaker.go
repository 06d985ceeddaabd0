// Package breaker implements the three-state circuit breaker that gates the
// anchor control loop (spec §4.D). It is intentionally the only stdlib-only
// business-logic package in this module — see DESIGN.md for why no
// third-party circuit-breaker library fits the caller-supplied-count design
// this follows.
package breaker

import (
	"sync"
	"time"
)

// State is one of the breaker's three states.
type State int

const (
	Closed State = iota
	Open
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// CircuitBreaker gates outbound work after a run of consecutive failures and
// resumes only after a cooling period plus a run of probe successes.
//
// Unlike most circuit breakers, this one does not track consecutive
// failures itself — the caller (the anchor control loop, via the stats
// record) hands in the current consecutive-failure count each time it
// records a failure. This mirrors the source implementation exactly (see
// DESIGN.md Open Question 2) and keeps the breaker and the statistics
// record from needing to agree on a second, redundant failure counter.
type CircuitBreaker struct {
	mu sync.Mutex

	state State

	failureThreshold         uint64
	resetTimeout             time.Duration
	halfOpenSuccessThreshold uint64

	lastFailure        time.Time
	halfOpenSuccesses  uint64
}

// New constructs a closed breaker with the given thresholds.
func New(failureThreshold uint64, resetTimeout time.Duration, halfOpenSuccessThreshold uint64) *CircuitBreaker {
	return &CircuitBreaker{
		state:                    Closed,
		failureThreshold:         failureThreshold,
		resetTimeout:             resetTimeout,
		halfOpenSuccessThreshold: halfOpenSuccessThreshold,
	}
}

// AllowRequest is the single entrypoint the control loop calls before each
// cycle. It may itself transition open->half-open as a side effect of being
// called after the reset timeout has elapsed; in that case the probing
// request is allowed and counts as one half-open probe slot.
func (b *CircuitBreaker) AllowRequest(now time.Time) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Closed:
		return true
	case HalfOpen:
		return true
	case Open:
		if now.Sub(b.lastFailure) >= b.resetTimeout {
			b.state = HalfOpen
			b.halfOpenSuccesses = 0
			return true
		}
		return false
	default:
		return false
	}
}

// RecordSuccess reports a successful operation. In half-open state, once
// halfOpenSuccessThreshold consecutive successes have been observed the
// breaker closes; closed state is a no-op.
func (b *CircuitBreaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case HalfOpen:
		b.halfOpenSuccesses++
		if b.halfOpenSuccesses >= b.halfOpenSuccessThreshold {
			b.state = Closed
			b.halfOpenSuccesses = 0
		}
	case Closed:
		// no-op
	}
}

// RecordFailure reports a failed operation, with consecutiveFailures being
// the caller's current running count (see the caller-supplied-count note on
// CircuitBreaker). From half-open, any failure reopens the breaker
// immediately. From closed, the breaker trips once consecutiveFailures
// reaches the configured threshold.
func (b *CircuitBreaker) RecordFailure(consecutiveFailures uint64, now time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case HalfOpen:
		b.state = Open
		b.lastFailure = now
		b.halfOpenSuccesses = 0
	case Closed:
		if consecutiveFailures >= b.failureThreshold {
			b.state = Open
			b.lastFailure = now
		}
	case Open:
		b.lastFailure = now
	}
}

// State returns the breaker's current state.
func (b *CircuitBreaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}
