// Package quiz implements the timed phonetic-alphabet drill: a countdown
// round that draws random prompts, grades spoken or typed answers against
// their phonetic expansion, tracks streak and speed counters, and persists
// per-mode personal bests.
//
// A Round is the quiz counterpart of the drill session engine, with a much
// smaller state machine: Idle, Running and Paused, time-boxed by a fixed
// countdown. Pausing freezes the clock without resetting elapsed time;
// starting a different mode, or starting after the countdown elapsed,
// begins a fresh round.
package quiz

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/coldsoak/readback/internal/observe"
	"github.com/coldsoak/readback/internal/record"
	"github.com/coldsoak/readback/internal/score"
)

// Status is the lifecycle state of a quiz round.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusRunning Status = "running"
	StatusPaused  Status = "paused"
)

var (
	// ErrRoundRunning is returned by Start while a round is active.
	ErrRoundRunning = errors.New("quiz: round already running")

	// ErrRoundNotRunning is returned by Answer and Pause outside a run.
	ErrRoundNotRunning = errors.New("quiz: round not running")

	// ErrTimeUp is returned by Answer once the countdown has elapsed.
	ErrTimeUp = errors.New("quiz: time is up")
)

const (
	defaultDuration = 60 * time.Second

	// queueLow and queueBatch tune the lazy prompt buffer: when fewer than
	// queueLow prompts remain, queueBatch fresh ones are generated.
	queueLow   = 4
	queueBatch = 8

	bestSaveTimeout = 5 * time.Second
)

// Config holds the collaborators and tuning for a [Round].
type Config struct {
	// Scorer grades answers. When nil a default scorer (0.8 threshold) is
	// used.
	Scorer *score.Scorer

	// Store persists per-mode personal bests. When nil, bests live only in
	// memory for the process lifetime.
	Store record.Store

	// Metrics receives quiz telemetry. When nil, nothing is recorded.
	Metrics *observe.Metrics

	// Duration is the countdown length. Default 60s.
	Duration time.Duration

	// Rand seeds prompt generation. When nil a time-seeded source is used.
	Rand *rand.Rand

	// Now is the clock, overridable in tests. Default time.Now.
	Now func() time.Time
}

// AnswerResult reports the grading of one submitted answer.
type AnswerResult struct {
	// Prompt is the item that was answered.
	Prompt Prompt `json:"prompt"`

	// Correct reports whether the answer was accepted, by direct match or
	// by token score.
	Correct bool `json:"correct"`

	// Pct is the token match score in [0, 1].
	Pct float64 `json:"pct"`

	// Misses lists expected tokens absent from the answer.
	Misses []string `json:"misses,omitempty"`

	// Next is the prompt now at the front of the queue.
	Next Prompt `json:"next"`
}

// Stats is a point-in-time snapshot of a round's counters and derived
// metrics.
type Stats struct {
	Mode        Mode          `json:"mode"`
	Status      Status        `json:"status"`
	Attempts    int           `json:"attempts"`
	Correct     int           `json:"correct"`
	Accuracy    float64       `json:"accuracy"` // correct/attempts, [0, 1]
	TokensHit   int           `json:"tokens_hit"`
	TokensTotal int           `json:"tokens_total"`
	TokenAcc    float64       `json:"token_accuracy"` // tokensHit/tokensTotal
	WPM         float64       `json:"wpm"`            // tokensHit per elapsed minute
	Streak      int           `json:"streak"`
	BestStreak  int           `json:"best_streak"`
	Remaining   time.Duration `json:"remaining_ns"`
}

// Round runs one timed quiz at a time. Safe for concurrent use.
type Round struct {
	cfg Config
	now func() time.Time

	mu          sync.Mutex
	status      Status
	mode        Mode
	gen         *generator
	queue       []Prompt
	attempts    int
	correct     int
	streak      int
	bestStreak  int
	tokensHit   int
	tokensTotal int
	startedAt   time.Time     // start of the active segment
	elapsed     time.Duration // accumulated across prior segments
	expired     bool
	expiry      *time.Timer
}

// NewRound creates a Round with the given configuration.
func NewRound(cfg Config) *Round {
	if cfg.Scorer == nil {
		cfg.Scorer = score.New()
	}
	if cfg.Duration <= 0 {
		cfg.Duration = defaultDuration
	}
	if cfg.Rand == nil {
		cfg.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Round{cfg: cfg, now: now, status: StatusIdle}
}

// Start begins a round in the given mode, or resumes a paused round of the
// same mode. Switching modes, or starting after the countdown elapsed,
// resets all counters and reseeds the prompt queue.
func (r *Round) Start(mode Mode) error {
	if err := validateMode(mode); err != nil {
		return err
	}

	r.mu.Lock()
	if r.status == StatusRunning {
		r.mu.Unlock()
		return ErrRoundRunning
	}

	resume := r.status == StatusPaused && r.mode == mode && !r.expired
	if !resume {
		r.resetLocked()
		r.mode = mode
		r.gen = newGenerator(mode, r.cfg.Rand)
		r.topUpLocked()
	}
	r.startedAt = r.now()
	r.status = StatusRunning
	r.armExpiryLocked()
	r.mu.Unlock()

	if m := r.cfg.Metrics; m != nil {
		m.ActiveQuizRounds.Add(context.Background(), 1)
	}
	slog.Info("quiz round started", "mode", mode, "resumed", resume)
	return nil
}

// Pause freezes the countdown without resetting elapsed time.
func (r *Round) Pause() error {
	r.mu.Lock()
	if r.status != StatusRunning {
		r.mu.Unlock()
		return ErrRoundNotRunning
	}
	r.elapsed += r.now().Sub(r.startedAt)
	r.status = StatusPaused
	r.stopExpiryLocked()
	r.mu.Unlock()

	if m := r.cfg.Metrics; m != nil {
		m.ActiveQuizRounds.Add(context.Background(), -1)
	}
	slog.Info("quiz round paused", "mode", r.Mode())
	return nil
}

// Answer grades text against the current prompt, updates the counters, and
// advances the queue. An answer is correct when the squashed text equals
// the prompt verbatim, or when the token score meets the pass threshold.
func (r *Round) Answer(text string) (AnswerResult, error) {
	r.mu.Lock()
	if r.status != StatusRunning {
		r.mu.Unlock()
		return AnswerResult{}, ErrRoundNotRunning
	}
	if r.remainingLocked() <= 0 {
		r.finalizeLocked()
		r.mu.Unlock()
		return AnswerResult{}, ErrTimeUp
	}

	prompt := r.queue[0]
	direct := score.DirectMatch(prompt.Display, text)
	sres := r.cfg.Scorer.ScoreTokens(prompt.Expected, text)
	correct := direct || r.cfg.Scorer.Passes(sres)

	hit := sres.Hit
	if direct && hit < sres.Total {
		// Spelled-out form not required when the raw prompt was echoed.
		hit = sres.Total
	}

	r.attempts++
	r.tokensHit += hit
	r.tokensTotal += sres.Total
	if correct {
		r.correct++
		r.streak++
		if r.streak > r.bestStreak {
			r.bestStreak = r.streak
		}
	} else {
		r.streak = 0
	}

	r.queue = r.queue[1:]
	r.topUpLocked()
	next := r.queue[0]
	mode := r.mode
	r.mu.Unlock()

	if m := r.cfg.Metrics; m != nil {
		m.RecordQuizAnswer(context.Background(), string(mode), correct)
	}
	return AnswerResult{
		Prompt:  prompt,
		Correct: correct,
		Pct:     sres.Pct,
		Misses:  sres.Misses,
		Next:    next,
	}, nil
}

// Finish ends the round early, as if the countdown had elapsed, and
// persists the personal best.
func (r *Round) Finish() error {
	r.mu.Lock()
	if r.status != StatusRunning && r.status != StatusPaused {
		r.mu.Unlock()
		return ErrRoundNotRunning
	}
	r.finalizeLocked()
	r.mu.Unlock()
	return nil
}

// Reset discards all round state and returns to StatusIdle.
func (r *Round) Reset() {
	r.mu.Lock()
	wasRunning := r.status == StatusRunning
	r.stopExpiryLocked()
	r.resetLocked()
	r.mu.Unlock()

	if wasRunning {
		if m := r.cfg.Metrics; m != nil {
			m.ActiveQuizRounds.Add(context.Background(), -1)
		}
	}
}

// Current returns the prompt at the front of the queue.
func (r *Round) Current() (Prompt, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.queue) == 0 {
		return Prompt{}, false
	}
	return r.queue[0], true
}

// Mode returns the active round's mode.
func (r *Round) Mode() Mode {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.mode
}

// Status returns the round's lifecycle state.
func (r *Round) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// Remaining returns the countdown time left.
func (r *Round) Remaining() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.remainingLocked()
}

// Stats returns a snapshot of the round's counters and derived metrics.
func (r *Round) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := Stats{
		Mode:        r.mode,
		Status:      r.status,
		Attempts:    r.attempts,
		Correct:     r.correct,
		TokensHit:   r.tokensHit,
		TokensTotal: r.tokensTotal,
		Streak:      r.streak,
		BestStreak:  r.bestStreak,
		Remaining:   r.remainingLocked(),
	}
	if r.attempts > 0 {
		s.Accuracy = float64(r.correct) / float64(r.attempts)
	}
	if r.tokensTotal > 0 {
		s.TokenAcc = float64(r.tokensHit) / float64(r.tokensTotal)
	}
	if mins := r.elapsedLocked().Minutes(); mins > 0 {
		s.WPM = float64(r.tokensHit) / mins
	}
	return s
}

// Best returns the stored personal best for a mode.
func (r *Round) Best(ctx context.Context, mode Mode) (record.QuizBest, bool, error) {
	if r.cfg.Store == nil {
		return record.QuizBest{}, false, nil
	}
	return r.cfg.Store.QuizBest(ctx, string(mode))
}

// remainingLocked returns countdown time left. Caller holds r.mu.
func (r *Round) remainingLocked() time.Duration {
	left := r.cfg.Duration - r.elapsedLocked()
	if left < 0 {
		return 0
	}
	return left
}

// elapsedLocked returns total active time so far. Caller holds r.mu.
func (r *Round) elapsedLocked() time.Duration {
	e := r.elapsed
	if r.status == StatusRunning {
		e += r.now().Sub(r.startedAt)
	}
	return e
}

// topUpLocked refills the prompt queue when the buffer runs low. Caller
// holds r.mu.
func (r *Round) topUpLocked() {
	if len(r.queue) >= queueLow {
		return
	}
	for i := 0; i < queueBatch; i++ {
		r.queue = append(r.queue, r.gen.next())
	}
}

// armExpiryLocked schedules the countdown-elapsed callback. Caller holds
// r.mu.
func (r *Round) armExpiryLocked() {
	r.stopExpiryLocked()
	r.expiry = time.AfterFunc(r.remainingLocked(), r.timeUp)
}

func (r *Round) stopExpiryLocked() {
	if r.expiry != nil {
		r.expiry.Stop()
		r.expiry = nil
	}
}

// timeUp fires when the countdown elapses while running.
func (r *Round) timeUp() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status != StatusRunning {
		return
	}
	r.finalizeLocked()
}

// finalizeLocked ends the round: the clock stops, no further answers are
// accepted, and the personal best is persisted. Caller holds r.mu.
func (r *Round) finalizeLocked() {
	wasRunning := r.status == StatusRunning
	if wasRunning {
		r.elapsed += r.now().Sub(r.startedAt)
	}
	if r.elapsed > r.cfg.Duration {
		r.elapsed = r.cfg.Duration
	}
	r.status = StatusIdle
	r.expired = true
	r.stopExpiryLocked()

	stats := Stats{
		Attempts:   r.attempts,
		Correct:    r.correct,
		TokensHit:  r.tokensHit,
		BestStreak: r.bestStreak,
	}
	if r.attempts > 0 {
		stats.Accuracy = float64(r.correct) / float64(r.attempts)
	}
	if mins := r.elapsed.Minutes(); mins > 0 {
		stats.WPM = float64(r.tokensHit) / mins
	}
	mode := r.mode

	if m := r.cfg.Metrics; m != nil && wasRunning {
		m.ActiveQuizRounds.Add(context.Background(), -1)
	}
	slog.Info("quiz round finished",
		"mode", mode, "attempts", stats.Attempts, "correct", stats.Correct,
		"accuracy", stats.Accuracy, "wpm", stats.WPM, "best_streak", stats.BestStreak,
	)

	r.persistBest(mode, stats)
}

// persistBest merges the round's metrics into the stored per-mode best,
// fire-and-forget. Rounds with no attempts record nothing.
func (r *Round) persistBest(mode Mode, stats Stats) {
	if r.cfg.Store == nil || stats.Attempts == 0 {
		return
	}

	candidate := record.QuizBest{
		Mode:      string(mode),
		Accuracy:  stats.Accuracy,
		WPM:       stats.WPM,
		Streak:    stats.BestStreak,
		UpdatedAt: r.now().UTC(),
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), bestSaveTimeout)
		defer cancel()
		if err := r.cfg.Store.SaveQuizBest(ctx, candidate); err != nil {
			slog.Error("failed to persist quiz best", "mode", mode, "err", err)
			if m := r.cfg.Metrics; m != nil {
				m.RecordWriteErrors.Add(context.Background(), 1)
			}
		}
	}()
}

// resetLocked clears all round state. Caller holds r.mu.
func (r *Round) resetLocked() {
	r.status = StatusIdle
	r.mode = ""
	r.gen = nil
	r.queue = nil
	r.attempts = 0
	r.correct = 0
	r.streak = 0
	r.bestStreak = 0
	r.tokensHit = 0
	r.tokensTotal = 0
	r.startedAt = time.Time{}
	r.elapsed = 0
	r.expired = false
}
