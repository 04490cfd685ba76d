package resilience

import (
	"context"
	"fmt"

	"github.com/coldsoak/readback/internal/record"
)

// StoreFallback implements [record.Store] with automatic failover across
// persistence backends, typically PostgreSQL preferred with the local file
// store behind it. Each backend has its own breaker, so a database outage
// redirects writes to the file store until the database recovers.
//
// Reads follow the same order as writes: the preferred backend answers
// unless its breaker is open or the read fails.
type StoreFallback struct {
	group *FallbackGroup[record.Store]
}

// Compile-time interface check.
var _ record.Store = (*StoreFallback)(nil)

// NewStoreFallback creates a [StoreFallback] with preferred as the first
// backend.
func NewStoreFallback(preferred record.Store, name string, cfg BreakerConfig) *StoreFallback {
	return &StoreFallback{group: NewFallbackGroup(preferred, name, cfg)}
}

// Add registers a further backend, tried after all earlier ones.
func (f *StoreFallback) Add(name string, store record.Store) {
	f.group.Add(name, store)
}

// SaveSession implements [record.Store].
func (f *StoreFallback) SaveSession(ctx context.Context, rec record.SessionRecord) error {
	return f.group.Do(func(s record.Store) error {
		return s.SaveSession(ctx, rec)
	})
}

// SaveQuizBest implements [record.Store].
func (f *StoreFallback) SaveQuizBest(ctx context.Context, candidate record.QuizBest) error {
	return f.group.Do(func(s record.Store) error {
		return s.SaveQuizBest(ctx, candidate)
	})
}

// QuizBest implements [record.Store].
func (f *StoreFallback) QuizBest(ctx context.Context, mode string) (record.QuizBest, bool, error) {
	type hit struct {
		best record.QuizBest
		ok   bool
	}
	h, err := DoWithResult(f.group, func(s record.Store) (hit, error) {
		best, ok, err := s.QuizBest(ctx, mode)
		return hit{best: best, ok: ok}, err
	})
	if err != nil {
		return record.QuizBest{}, false, err
	}
	return h.best, h.ok, nil
}

// RecentSessions lists finished sessions from the first healthy backend
// that supports listing.
func (f *StoreFallback) RecentSessions(ctx context.Context, limit int) ([]record.SessionRecord, error) {
	return DoWithResult(f.group, func(s record.Store) ([]record.SessionRecord, error) {
		lister, ok := s.(record.SessionLister)
		if !ok {
			return nil, fmt.Errorf("resilience: backend %T cannot list sessions", s)
		}
		return lister.RecentSessions(ctx, limit)
	})
}
