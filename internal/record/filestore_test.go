package record

import (
	"context"
	"testing"
	"time"
)

func sessionRec(scenarioID string, score float64) SessionRecord {
	return SessionRecord{
		ScenarioID:      scenarioID,
		ScenarioLabel:   "Basic pushback",
		EmployeeID:      "emp-7",
		Outcome:         OutcomeComplete,
		ScorePct:        score,
		DurationSeconds: 42.5,
		Turns: []TurnRecord{
			{Index: 1, Heard: "holding short brakes set", Pct: 1, Pass: true},
			{Index: 3, Heard: "taxi alpha", Pct: 0.4, Pass: false, Misses: []string{"cleared", "spot", "two"}},
		},
		RecordedAt: time.Date(2026, 2, 3, 10, 30, 0, 0, time.UTC),
	}
}

func TestFileStoreSessionsRoundTrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}

	if got, err := store.RecentSessions(ctx, 10); err != nil || len(got) != 0 {
		t.Fatalf("RecentSessions on empty store = %v, %v", got, err)
	}

	for i, rec := range []SessionRecord{
		sessionRec("pushback-basic", 100),
		sessionRec("pushback-basic", 50),
		sessionRec("gate-departure", 75),
	} {
		if err := store.SaveSession(ctx, rec); err != nil {
			t.Fatalf("SaveSession %d: %v", i, err)
		}
	}

	got, err := store.RecentSessions(ctx, 2)
	if err != nil {
		t.Fatalf("RecentSessions: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("RecentSessions returned %d records, want 2", len(got))
	}
	// Newest first.
	if got[0].ScenarioID != "gate-departure" || got[1].ScorePct != 50 {
		t.Fatalf("RecentSessions order wrong: %+v", got)
	}
	if len(got[1].Turns) != 2 || got[1].Turns[1].Misses[0] != "cleared" {
		t.Fatalf("turn detail lost in round trip: %+v", got[1].Turns)
	}
}

func TestFileStoreQuizBestMonotonic(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}

	if _, ok, err := store.QuizBest(ctx, "letters"); err != nil || ok {
		t.Fatalf("QuizBest on empty store = ok=%v err=%v, want miss", ok, err)
	}

	first := QuizBest{Mode: "letters", Accuracy: 0.9, WPM: 24, Streak: 7,
		UpdatedAt: time.Date(2026, 2, 3, 10, 0, 0, 0, time.UTC)}
	if err := store.SaveQuizBest(ctx, first); err != nil {
		t.Fatalf("SaveQuizBest: %v", err)
	}

	// A worse round must not regress anything.
	worse := QuizBest{Mode: "letters", Accuracy: 0.5, WPM: 10, Streak: 2,
		UpdatedAt: first.UpdatedAt.Add(time.Hour)}
	if err := store.SaveQuizBest(ctx, worse); err != nil {
		t.Fatalf("SaveQuizBest worse: %v", err)
	}
	got, ok, err := store.QuizBest(ctx, "letters")
	if err != nil || !ok {
		t.Fatalf("QuizBest = ok=%v err=%v", ok, err)
	}
	if got != first {
		t.Fatalf("best regressed: %+v, want %+v", got, first)
	}

	// A partial improvement merges field-wise.
	faster := QuizBest{Mode: "letters", Accuracy: 0.4, WPM: 30, Streak: 1,
		UpdatedAt: first.UpdatedAt.Add(2 * time.Hour)}
	if err := store.SaveQuizBest(ctx, faster); err != nil {
		t.Fatalf("SaveQuizBest faster: %v", err)
	}
	got, _, err = store.QuizBest(ctx, "letters")
	if err != nil {
		t.Fatalf("QuizBest: %v", err)
	}
	if got.Accuracy != 0.9 || got.WPM != 30 || got.Streak != 7 {
		t.Fatalf("merged best = %+v, want accuracy 0.9 wpm 30 streak 7", got)
	}

	// Bests survive a store reopen.
	reopened, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	again, ok, err := reopened.QuizBest(ctx, "letters")
	if err != nil || !ok {
		t.Fatalf("QuizBest after reopen = ok=%v err=%v", ok, err)
	}
	if !again.UpdatedAt.Equal(got.UpdatedAt) || again.WPM != 30 {
		t.Fatalf("reopened best = %+v, want %+v", again, got)
	}
}

func TestQuizBestMerge(t *testing.T) {
	t.Parallel()

	base := QuizBest{Mode: "mixed", Accuracy: 0.8, WPM: 20, Streak: 5,
		UpdatedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}

	for _, tc := range []struct {
		name     string
		other    QuizBest
		improved bool
		want     QuizBest
	}{
		{
			name:     "all worse",
			other:    QuizBest{Accuracy: 0.1, WPM: 1, Streak: 1, UpdatedAt: base.UpdatedAt.Add(time.Hour)},
			improved: false,
			want:     base,
		},
		{
			name:     "streak only",
			other:    QuizBest{Streak: 9, UpdatedAt: base.UpdatedAt.Add(time.Hour)},
			improved: true,
			want: QuizBest{Mode: "mixed", Accuracy: 0.8, WPM: 20, Streak: 9,
				UpdatedAt: base.UpdatedAt.Add(time.Hour)},
		},
		{
			name:     "equal values do not improve",
			other:    QuizBest{Accuracy: 0.8, WPM: 20, Streak: 5, UpdatedAt: base.UpdatedAt.Add(time.Hour)},
			improved: false,
			want:     base,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			got, improved := base.Merge(tc.other)
			if improved != tc.improved {
				t.Fatalf("improved = %v, want %v", improved, tc.improved)
			}
			if got != tc.want {
				t.Fatalf("merged = %+v, want %+v", got, tc.want)
			}
		})
	}
}
