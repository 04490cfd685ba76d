// Package record defines the persisted outcome types for finished drill
// sessions and quiz personal bests, together with the Store contract and its
// file- and PostgreSQL-backed implementations.
//
// Persistence is fire-and-forget from the engines' perspective: a drill
// emits its summary once on completion and never blocks on the write.
package record

import (
	"context"
	"time"
)

// Outcome classifies how a drill session ended.
type Outcome string

const (
	// OutcomeComplete means every turn was processed.
	OutcomeComplete Outcome = "complete"

	// OutcomeHalted means a listen failure ended the attempt early.
	OutcomeHalted Outcome = "halted"
)

// TurnRecord is the persisted result of one graded turn.
type TurnRecord struct {
	// Index is the turn's position in the scenario script.
	Index int `json:"index"`

	// Heard is the text the trainee's response was graded from.
	Heard string `json:"heard"`

	// Pct is the token match score in [0, 1].
	Pct float64 `json:"pct"`

	// Pass reports whether Pct met the session's pass threshold.
	Pass bool `json:"pass"`

	// Misses lists the expected tokens the response lacked.
	Misses []string `json:"misses,omitempty"`
}

// SessionRecord is the finished-session summary persisted when a drill run
// completes.
type SessionRecord struct {
	// ScenarioID identifies the scenario that was run.
	ScenarioID string `json:"scenario_id"`

	// ScenarioLabel is the scenario's display name at run time.
	ScenarioLabel string `json:"scenario_label"`

	// EmployeeID identifies the trainee. Supplied by the caller; the engine
	// treats it as opaque.
	EmployeeID string `json:"employee_id,omitempty"`

	// Outcome classifies how the session ended.
	Outcome Outcome `json:"outcome"`

	// ScorePct is the aggregate score: passing graded turns over total
	// graded turns, in [0, 100].
	ScorePct float64 `json:"score_pct"`

	// DurationSeconds is the wall-clock length of the run.
	DurationSeconds float64 `json:"duration_seconds"`

	// Turns holds the per-turn results, in scenario order.
	Turns []TurnRecord `json:"turns,omitempty"`

	// RecordedAt is when the record was created, UTC.
	RecordedAt time.Time `json:"recorded_at"`
}

// QuizBest is the per-mode personal-best high-water mark for the timed quiz.
// All fields are monotonic non-decreasing across a mode's history; Merge
// enforces that.
type QuizBest struct {
	// Mode is the quiz mode this best belongs to.
	Mode string `json:"mode"`

	// Accuracy is the best round accuracy in [0, 1].
	Accuracy float64 `json:"accuracy"`

	// WPM is the best tokens-per-minute rate.
	WPM float64 `json:"wpm"`

	// Streak is the longest correct-answer streak.
	Streak int `json:"streak"`

	// UpdatedAt is when any field last improved, UTC.
	UpdatedAt time.Time `json:"updated_at"`
}

// Merge returns the field-wise maximum of b and other. The receiver's Mode
// is kept. Improved reports whether any field of other exceeded b.
func (b QuizBest) Merge(other QuizBest) (merged QuizBest, improved bool) {
	merged = b
	if other.Accuracy > merged.Accuracy {
		merged.Accuracy = other.Accuracy
		improved = true
	}
	if other.WPM > merged.WPM {
		merged.WPM = other.WPM
		improved = true
	}
	if other.Streak > merged.Streak {
		merged.Streak = other.Streak
		improved = true
	}
	if improved {
		merged.UpdatedAt = other.UpdatedAt
	}
	return merged, improved
}

// Store persists finished-session records and quiz bests.
//
// Implementations must be safe for concurrent use. SaveQuizBest performs the
// monotonic merge internally: callers hand it the round's metrics and the
// store only ever moves stored values upward.
type Store interface {
	// SaveSession appends a finished-session record.
	SaveSession(ctx context.Context, rec SessionRecord) error

	// SaveQuizBest merges candidate into the stored best for its mode.
	SaveQuizBest(ctx context.Context, candidate QuizBest) error

	// QuizBest returns the stored best for mode. The second return value is
	// false when no best has been recorded for the mode yet.
	QuizBest(ctx context.Context, mode string) (QuizBest, bool, error)
}

// SessionLister is the optional read side of a [Store], used by the HTTP
// API to show recent training history.
type SessionLister interface {
	// RecentSessions returns up to limit finished sessions, newest first.
	RecentSessions(ctx context.Context, limit int) ([]SessionRecord, error)
}
