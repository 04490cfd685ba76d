package resilience

import (
	"errors"
	"fmt"
	"log/slog"
)

// ErrAllBackendsFailed is returned when every entry in a [FallbackGroup]
// fails or sits behind an open breaker.
var ErrAllBackendsFailed = errors.New("resilience: all backends failed")

// fallbackEntry pairs a backend with its dedicated breaker.
type fallbackEntry[T any] struct {
	name    string
	value   T
	breaker *Breaker
}

// FallbackGroup routes calls to the first healthy backend in registration
// order: the preferred backend first, then each fallback. Every backend
// gets its own [Breaker] built from the shared config (the name is taken
// from the backend itself). Safe for concurrent use once assembled;
// register all backends before the first call.
type FallbackGroup[T any] struct {
	entries []fallbackEntry[T]
	cfg     BreakerConfig
}

// NewFallbackGroup creates a group with preferred as the first backend.
func NewFallbackGroup[T any](preferred T, name string, cfg BreakerConfig) *FallbackGroup[T] {
	g := &FallbackGroup[T]{cfg: cfg}
	g.Add(name, preferred)
	return g
}

// Add registers a further backend, tried after all earlier ones.
func (g *FallbackGroup[T]) Add(name string, backend T) {
	cfg := g.cfg
	cfg.Name = name
	g.entries = append(g.entries, fallbackEntry[T]{
		name:    name,
		value:   backend,
		breaker: NewBreaker(cfg),
	})
}

// Do tries fn against each backend in order until one succeeds. Backends
// behind an open breaker are skipped without being called.
func (g *FallbackGroup[T]) Do(fn func(T) error) error {
	var lastErr error
	for i := range g.entries {
		e := &g.entries[i]
		err := e.breaker.Do(func() error { return fn(e.value) })
		if err == nil {
			return nil
		}
		lastErr = err
		if errors.Is(err, ErrBreakerOpen) {
			slog.Debug("skipping backend, breaker open", "backend", e.name)
		} else {
			slog.Warn("backend failed, trying next", "backend", e.name, "err", err)
		}
	}
	return fmt.Errorf("%w: %v", ErrAllBackendsFailed, lastErr)
}

// DoWithResult is [FallbackGroup.Do] for calls that produce a value. It is
// a package-level function because Go methods cannot take type parameters.
func DoWithResult[T, R any](g *FallbackGroup[T], fn func(T) (R, error)) (R, error) {
	var (
		lastErr error
		zero    R
	)
	for i := range g.entries {
		e := &g.entries[i]
		var result R
		err := e.breaker.Do(func() error {
			var callErr error
			result, callErr = fn(e.value)
			return callErr
		})
		if err == nil {
			return result, nil
		}
		lastErr = err
		if errors.Is(err, ErrBreakerOpen) {
			slog.Debug("skipping backend, breaker open", "backend", e.name)
		} else {
			slog.Warn("backend failed, trying next", "backend", e.name, "err", err)
		}
	}
	return zero, fmt.Errorf("%w: %v", ErrAllBackendsFailed, lastErr)
}
