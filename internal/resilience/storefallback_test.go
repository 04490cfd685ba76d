package resilience

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/coldsoak/readback/internal/record"
)

// flakyStore is a record.Store that fails while failing is set.
type flakyStore struct {
	mu       sync.Mutex
	failing  bool
	sessions []record.SessionRecord
	bests    map[string]record.QuizBest
}

func newFlakyStore() *flakyStore {
	return &flakyStore{bests: make(map[string]record.QuizBest)}
}

func (s *flakyStore) setFailing(v bool) {
	s.mu.Lock()
	s.failing = v
	s.mu.Unlock()
}

func (s *flakyStore) SaveSession(_ context.Context, rec record.SessionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing {
		return errBackend
	}
	s.sessions = append(s.sessions, rec)
	return nil
}

func (s *flakyStore) SaveQuizBest(_ context.Context, candidate record.QuizBest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing {
		return errBackend
	}
	merged, _ := s.bests[candidate.Mode].Merge(candidate)
	merged.Mode = candidate.Mode
	s.bests[candidate.Mode] = merged
	return nil
}

func (s *flakyStore) QuizBest(_ context.Context, mode string) (record.QuizBest, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing {
		return record.QuizBest{}, false, errBackend
	}
	b, ok := s.bests[mode]
	return b, ok, nil
}

func (s *flakyStore) RecentSessions(_ context.Context, limit int) ([]record.SessionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing {
		return nil, errBackend
	}
	out := s.sessions
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (s *flakyStore) sessionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func TestStoreFallbackPrefersPrimary(t *testing.T) {
	ctx := context.Background()
	primary := newFlakyStore()
	secondary := newFlakyStore()

	sf := NewStoreFallback(primary, "postgres", BreakerConfig{TripAfter: 3})
	sf.Add("file", secondary)

	if err := sf.SaveSession(ctx, record.SessionRecord{ScenarioID: "s1"}); err != nil {
		t.Fatalf("SaveSession: %v", err)
	}
	if primary.sessionCount() != 1 || secondary.sessionCount() != 0 {
		t.Fatalf("sessions primary/secondary = %d/%d, want 1/0",
			primary.sessionCount(), secondary.sessionCount())
	}
}

func TestStoreFallbackFailsOver(t *testing.T) {
	ctx := context.Background()
	primary := newFlakyStore()
	primary.setFailing(true)
	secondary := newFlakyStore()

	sf := NewStoreFallback(primary, "postgres", BreakerConfig{TripAfter: 2, RetryAfter: time.Hour})
	sf.Add("file", secondary)

	for i := 0; i < 3; i++ {
		if err := sf.SaveSession(ctx, record.SessionRecord{ScenarioID: "s1"}); err != nil {
			t.Fatalf("SaveSession %d: %v", i, err)
		}
	}
	if secondary.sessionCount() != 3 {
		t.Fatalf("secondary sessions = %d, want 3", secondary.sessionCount())
	}

	// After the breaker tripped, the primary is no longer even attempted.
	before := primary.sessionCount()
	primary.setFailing(false)
	if err := sf.SaveSession(ctx, record.SessionRecord{ScenarioID: "s2"}); err != nil {
		t.Fatalf("SaveSession after recovery: %v", err)
	}
	if primary.sessionCount() != before {
		t.Fatal("open breaker still let calls through to the primary")
	}
}

func TestStoreFallbackReadFollowsWritePath(t *testing.T) {
	ctx := context.Background()
	primary := newFlakyStore()
	secondary := newFlakyStore()

	sf := NewStoreFallback(primary, "postgres", BreakerConfig{TripAfter: 1, RetryAfter: time.Hour})
	sf.Add("file", secondary)

	best := record.QuizBest{Mode: "letters", Accuracy: 0.9, Streak: 4}
	if err := sf.SaveQuizBest(ctx, best); err != nil {
		t.Fatalf("SaveQuizBest: %v", err)
	}

	got, ok, err := sf.QuizBest(ctx, "letters")
	if err != nil || !ok {
		t.Fatalf("QuizBest = ok=%v err=%v", ok, err)
	}
	if got.Accuracy != 0.9 {
		t.Fatalf("best accuracy = %v, want 0.9", got.Accuracy)
	}

	// With the primary down, reads come from the fallback.
	if err := secondary.SaveQuizBest(ctx, best); err != nil {
		t.Fatalf("seed secondary: %v", err)
	}
	primary.setFailing(true)
	got, ok, err = sf.QuizBest(ctx, "letters")
	if err != nil || !ok {
		t.Fatalf("QuizBest via fallback = ok=%v err=%v", ok, err)
	}
	if got.Streak != 4 {
		t.Fatalf("fallback best streak = %d, want 4", got.Streak)
	}
}

func TestStoreFallbackAllBackendsFailed(t *testing.T) {
	ctx := context.Background()
	primary := newFlakyStore()
	primary.setFailing(true)
	secondary := newFlakyStore()
	secondary.setFailing(true)

	sf := NewStoreFallback(primary, "postgres", BreakerConfig{TripAfter: 5})
	sf.Add("file", secondary)

	err := sf.SaveSession(ctx, record.SessionRecord{ScenarioID: "s1"})
	if !errors.Is(err, ErrAllBackendsFailed) {
		t.Fatalf("err = %v, want ErrAllBackendsFailed", err)
	}
}

func TestStoreFallbackRecentSessions(t *testing.T) {
	ctx := context.Background()
	primary := newFlakyStore()
	secondary := newFlakyStore()

	sf := NewStoreFallback(primary, "postgres", BreakerConfig{TripAfter: 1, RetryAfter: time.Hour})
	sf.Add("file", secondary)

	for _, id := range []string{"a", "b", "c"} {
		if err := sf.SaveSession(ctx, record.SessionRecord{ScenarioID: id}); err != nil {
			t.Fatalf("SaveSession %s: %v", id, err)
		}
	}

	got, err := sf.RecentSessions(ctx, 2)
	if err != nil {
		t.Fatalf("RecentSessions: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("RecentSessions = %d records, want 2", len(got))
	}
}
