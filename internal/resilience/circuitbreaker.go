// Package resilience provides failure isolation for the persistence
// backends: a three-state circuit breaker (closed, open, half-open) and a
// failover group that routes around an unhealthy backend.
//
// The drill and quiz engines write records fire-and-forget; a database
// outage must neither block them nor silently drop every record. The
// breaker trips the database backend out of rotation after repeated
// failures so writes land on the local file store instead, and probes the
// database periodically to move back once it recovers.
//
// All types are safe for concurrent use.
package resilience

import (
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrBreakerOpen is returned by [Breaker.Do] while the breaker is open and
// the retry interval has not yet elapsed.
var ErrBreakerOpen = errors.New("resilience: breaker open")

// State is a breaker's operating mode.
type State int

const (
	// StateClosed forwards every call.
	StateClosed State = iota

	// StateOpen rejects calls with [ErrBreakerOpen] until the retry
	// interval elapses.
	StateOpen

	// StateHalfOpen lets a bounded number of probe calls through. Probes
	// all succeeding closes the breaker; any probe failing re-opens it.
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// BreakerConfig tunes a [Breaker]. Zero fields take defaults.
type BreakerConfig struct {
	// Name labels the breaker in logs, usually the backend name.
	Name string

	// TripAfter is the consecutive-failure count that opens the breaker.
	// Default 3.
	TripAfter int

	// RetryAfter is how long the breaker stays open before probing.
	// Default 15s.
	RetryAfter time.Duration

	// Probes is the half-open probe budget. Default 2.
	Probes int
}

// Breaker is a three-state circuit breaker.
type Breaker struct {
	name       string
	tripAfter  int
	retryAfter time.Duration
	probes     int

	mu         sync.Mutex
	state      State
	failures   int
	openedAt   time.Time
	probeCalls int
	probeFails int
}

// NewBreaker creates a [Breaker] from cfg, filling in defaults.
func NewBreaker(cfg BreakerConfig) *Breaker {
	if cfg.TripAfter <= 0 {
		cfg.TripAfter = 3
	}
	if cfg.RetryAfter <= 0 {
		cfg.RetryAfter = 15 * time.Second
	}
	if cfg.Probes <= 0 {
		cfg.Probes = 2
	}
	return &Breaker{
		name:       cfg.Name,
		tripAfter:  cfg.TripAfter,
		retryAfter: cfg.RetryAfter,
		probes:     cfg.Probes,
	}
}

// Do runs fn unless the breaker rejects the call, and feeds the outcome
// back into the breaker's state.
func (b *Breaker) Do(fn func() error) error {
	probing, err := b.allow()
	if err != nil {
		return err
	}

	callErr := fn()
	b.observe(callErr, probing)
	return callErr
}

// allow decides whether a call may proceed, handling the open→half-open
// transition. It reports whether the call counts as a half-open probe.
func (b *Breaker) allow() (probing bool, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateOpen:
		if time.Since(b.openedAt) < b.retryAfter {
			return false, ErrBreakerOpen
		}
		b.state = StateHalfOpen
		b.probeCalls = 0
		b.probeFails = 0
		slog.Info("breaker probing backend", "name", b.name)

	case StateHalfOpen:
		if b.probeCalls >= b.probes {
			return false, ErrBreakerOpen
		}
	}

	if b.state == StateHalfOpen {
		b.probeCalls++
		return true, nil
	}
	return false, nil
}

// observe records a call outcome.
func (b *Breaker) observe(callErr error, probing bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if callErr != nil {
		b.openedAt = time.Now()
		if probing {
			b.probeFails++
			b.state = StateOpen
			b.failures = b.tripAfter
			slog.Warn("breaker re-opened, probe failed", "name", b.name, "err", callErr)
			return
		}
		b.failures++
		if b.failures >= b.tripAfter {
			b.state = StateOpen
			slog.Warn("breaker opened", "name", b.name, "failures", b.failures)
		}
		return
	}

	if probing {
		if b.probeCalls-b.probeFails >= b.probes {
			b.state = StateClosed
			b.failures = 0
			b.probeCalls = 0
			b.probeFails = 0
			slog.Info("breaker closed, backend recovered", "name", b.name)
		}
		return
	}
	b.failures = 0
}

// State returns the breaker's effective state: an open breaker whose retry
// interval has elapsed reads as half-open (the transition itself happens on
// the next [Breaker.Do]).
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == StateOpen && time.Since(b.openedAt) >= b.retryAfter {
		return StateHalfOpen
	}
	return b.state
}

// Reset forces the breaker closed and clears all counters.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = StateClosed
	b.failures = 0
	b.probeCalls = 0
	b.probeFails = 0
	slog.Info("breaker reset", "name", b.name)
}
