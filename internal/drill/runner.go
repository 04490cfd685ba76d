// Package drill implements the de-icing communication drill session engine:
// a state machine that walks a scenario script turn by turn, plays Captain
// cues through the audio collaborator, captures and grades Iceman responses
// through the listen collaborator, and emits a finished-session summary.
//
// A Runner is event-driven and internally sequential: one worker goroutine
// per active run processes turns strictly in scenario order, suspending on
// cue playback, speech capture, typed entry, advance confirmation, and the
// settle delay — never more than one suspension at a time. Every run gets a
// fresh run identifier; in-flight waits capture it and re-check it before
// committing any state, so a late callback from a paused or superseded run
// can never corrupt a newer one.
package drill

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/metric"

	"github.com/coldsoak/readback/internal/observe"
	"github.com/coldsoak/readback/internal/record"
	"github.com/coldsoak/readback/internal/scenario"
	"github.com/coldsoak/readback/internal/score"
	"github.com/coldsoak/readback/pkg/provider/audio"
	"github.com/coldsoak/readback/pkg/provider/listen"
)

// Status is the lifecycle state of a session run.
type Status string

const (
	// StatusIdle means no run is in progress. The turn pointer may still be
	// mid-scenario after a halt; Start continues from it.
	StatusIdle Status = "idle"

	// StatusRunning means the worker goroutine is processing turns.
	StatusRunning Status = "running"

	// StatusPaused means a run was suspended; Start resumes it.
	StatusPaused Status = "paused"

	// StatusComplete means every turn was processed and the summary was
	// emitted. Reset returns to StatusIdle.
	StatusComplete Status = "complete"
)

// Sentinel errors returned by Runner operations.
var (
	// ErrNoScenario is returned when an operation requires a loaded scenario.
	ErrNoScenario = errors.New("drill: no scenario loaded")

	// ErrAlreadyRunning is returned by Start while a run is active.
	ErrAlreadyRunning = errors.New("drill: session already running")

	// ErrCompleted is returned by Start after completion; Reset first.
	ErrCompleted = errors.New("drill: session complete — reset to run again")

	// ErrNotRunning is returned by Pause when no run is active.
	ErrNotRunning = errors.New("drill: session not running")

	// ErrNotAwaiting is returned by Submit or Proceed when the session is
	// not waiting for that input.
	ErrNotAwaiting = errors.New("drill: session is not awaiting this input")
)

// TurnResult is the recorded outcome of one graded turn. Immutable once
// created; results persist until Reset.
type TurnResult struct {
	// TurnIndex is the turn's position in the scenario script.
	TurnIndex int `json:"turn_index"`

	// Heard is the text the response was graded from.
	Heard string `json:"heard"`

	// Pct is the token match score in [0, 1].
	Pct float64 `json:"pct"`

	// Pass reports whether Pct met the pass threshold.
	Pass bool `json:"pass"`

	// Misses lists expected tokens absent from the response.
	Misses []string `json:"misses,omitempty"`

	// Manual reports whether the response arrived via typed entry.
	Manual bool `json:"manual"`

	// Latency is the time from turn start to answer obtained.
	Latency time.Duration `json:"latency_ns"`
}

// Summary is the aggregate outcome of a completed run.
type Summary struct {
	ScenarioID    string        `json:"scenario_id"`
	ScenarioLabel string        `json:"scenario_label"`
	Results       []TurnResult  `json:"results"`
	GradedTurns   int           `json:"graded_turns"`
	PassedTurns   int           `json:"passed_turns"`
	ScorePct      float64       `json:"score_pct"` // [0, 100]
	Duration      time.Duration `json:"duration_ns"`
}

// Config holds the collaborators and tuning for a [Runner].
type Config struct {
	// Scorer grades responses. When nil a default scorer (0.8 threshold,
	// exact token matching) is used.
	Scorer *score.Scorer

	// Player plays Captain audio cues. When nil, Captain turns complete
	// immediately.
	Player audio.Player

	// Listener captures spoken responses. When nil, every graded turn uses
	// manual text entry.
	Listener listen.Listener

	// Store receives the finished-session record, fire-and-forget.
	// When nil, summaries are only emitted as events.
	Store record.Store

	// Metrics receives drill telemetry. When nil, nothing is recorded.
	Metrics *observe.Metrics

	// AutoAdvance moves to the next turn automatically after grading. When
	// false the run waits for Proceed between graded turns.
	AutoAdvance bool

	// ManualEntry forces typed entry for every graded turn, even when a
	// Listener is configured.
	ManualEntry bool

	// SettleDelay is the pause after each processed turn. Default 1s.
	SettleDelay time.Duration

	// Listen tunes each capture operation.
	Listen listen.Options

	// EmployeeID identifies the trainee in persisted records. Opaque.
	EmployeeID string

	// Preflight, when set, is awaited once per Start before the first turn
	// — the audio-unlock and microphone-permission gate, owned by the
	// client. A Preflight error halts the run before any turn is processed.
	Preflight func(ctx context.Context) error
}

const (
	defaultSettleDelay = time.Second

	// listenGrace pads the listener's own MaxDuration before the runner
	// force-times-out a capture that never resolved.
	listenGrace = 2 * time.Second

	// saveTimeout bounds the fire-and-forget persistence write.
	saveTimeout = 5 * time.Second

	eventBuffer = 128
)

// awaitKind tracks which external input, if any, the run is suspended on.
type awaitKind int

const (
	awaitNone awaitKind = iota
	awaitEntry
	awaitAdvance
)

// Runner drives one scenario attempt at a time. All exported methods are
// safe for concurrent use; turn progression itself is sequential.
type Runner struct {
	cfg    Config
	events chan Event

	mu             sync.Mutex
	scn            *scenario.Scenario
	status         Status
	runID          string
	cancel         context.CancelFunc
	idx            int
	results        map[int]TurnResult
	retries        int
	latencySum     time.Duration
	latencyN       int
	manualFallback bool
	startedAt      time.Time

	awaiting  awaitKind
	entryCh   chan string
	proceedCh chan struct{}
}

// NewRunner creates a Runner with the given configuration. Load a scenario
// and call Start to begin a run.
func NewRunner(cfg Config) *Runner {
	if cfg.Scorer == nil {
		cfg.Scorer = score.New()
	}
	if cfg.SettleDelay <= 0 {
		cfg.SettleDelay = defaultSettleDelay
	}
	return &Runner{
		cfg:     cfg,
		events:  make(chan Event, eventBuffer),
		status:  StatusIdle,
		idx:     -1,
		results: make(map[int]TurnResult),
	}
}

// Events returns the session event stream. The channel is never closed;
// it is owned by the Runner for its whole lifetime. Slow consumers lose
// events rather than stalling the run.
func (r *Runner) Events() <-chan Event { return r.events }

// Load attaches a scenario and clears all per-run state. It fails while a
// run is active.
func (r *Runner) Load(scn *scenario.Scenario) error {
	if scn == nil || len(scn.Turns) == 0 {
		return ErrNoScenario
	}

	r.mu.Lock()
	if r.status == StatusRunning {
		r.mu.Unlock()
		return ErrAlreadyRunning
	}
	r.scn = scn
	r.resetLocked()
	r.mu.Unlock()

	slog.Info("scenario loaded", "scenario_id", scn.ID, "turns", len(scn.Turns))
	return nil
}

// Start begins or resumes a run. Valid from StatusIdle and StatusPaused; a
// completed session must be Reset first. The turn pointer moves to 0 only
// when no attempt is in progress.
func (r *Runner) Start() error {
	r.mu.Lock()

	if r.scn == nil {
		r.mu.Unlock()
		return ErrNoScenario
	}
	switch r.status {
	case StatusRunning:
		r.mu.Unlock()
		return ErrAlreadyRunning
	case StatusComplete:
		r.mu.Unlock()
		return ErrCompleted
	}

	if r.idx < 0 {
		r.idx = 0
	}
	if r.startedAt.IsZero() {
		r.startedAt = time.Now()
	}

	runID := uuid.NewString()
	ctx, cancel := context.WithCancel(context.Background())
	r.runID = runID
	r.cancel = cancel
	r.status = StatusRunning
	idx := r.idx
	r.mu.Unlock()

	if m := r.cfg.Metrics; m != nil {
		m.ActiveSessions.Add(ctx, 1)
	}
	r.emit(Event{Kind: EventStatus, RunID: runID, Status: StatusRunning, TurnIndex: idx})
	slog.Info("session started", "run_id", runID, "scenario_id", r.scenarioID(), "turn", idx)

	go r.run(ctx, runID)
	return nil
}

// Pause suspends the active run. Any in-flight suspension resolves
// silently: no result is recorded, no retry is counted, and the interrupted
// turn is re-attempted on resume.
func (r *Runner) Pause() error {
	r.mu.Lock()
	if r.status != StatusRunning {
		r.mu.Unlock()
		return ErrNotRunning
	}
	runID := r.runID
	r.status = StatusPaused
	// The run identifier goes stale immediately. A capture that resolves
	// concurrently with the pause must not commit a result or a retry for
	// the interrupted turn; the commit re-checks the identifier.
	r.runID = ""
	r.awaiting = awaitNone
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
	r.mu.Unlock()

	if r.cfg.Player != nil {
		r.cfg.Player.Stop()
	}
	if m := r.cfg.Metrics; m != nil {
		m.ActiveSessions.Add(context.Background(), -1)
	}
	r.emit(Event{Kind: EventStatus, RunID: runID, Status: StatusPaused, TurnIndex: r.CurrentIndex()})
	slog.Info("session paused", "run_id", runID)
	return nil
}

// Submit delivers typed text to a graded turn waiting in manual-entry mode.
func (r *Runner) Submit(text string) error {
	r.mu.Lock()
	if r.status != StatusRunning || r.awaiting != awaitEntry {
		r.mu.Unlock()
		return ErrNotAwaiting
	}
	r.awaiting = awaitNone
	ch := r.entryCh
	r.mu.Unlock()

	ch <- text // buffered; the waiter owns the other end
	return nil
}

// Proceed resolves an awaiting-advance suspension, moving the run to the
// next turn when auto-advance is disabled.
func (r *Runner) Proceed() error {
	r.mu.Lock()
	if r.status != StatusRunning || r.awaiting != awaitAdvance {
		r.mu.Unlock()
		return ErrNotAwaiting
	}
	r.awaiting = awaitNone
	ch := r.proceedCh
	r.mu.Unlock()

	ch <- struct{}{}
	return nil
}

// Jump repositions the turn pointer without altering recorded results.
// While running, the current suspension is cancelled and processing restarts
// at the target turn — a Captain target replays its cue naturally.
func (r *Runner) Jump(index int) error {
	r.mu.Lock()
	if r.scn == nil {
		r.mu.Unlock()
		return ErrNoScenario
	}
	if index < 0 || index >= len(r.scn.Turns) {
		r.mu.Unlock()
		return fmt.Errorf("drill: jump index %d out of range [0, %d)", index, len(r.scn.Turns))
	}

	r.idx = index
	wasRunning := r.status == StatusRunning
	var runID string
	var ctx context.Context
	if wasRunning {
		// Supersede the current worker; its run identifier goes stale.
		r.awaiting = awaitNone
		if r.cancel != nil {
			r.cancel()
		}
		runID = uuid.NewString()
		var cancel context.CancelFunc
		ctx, cancel = context.WithCancel(context.Background())
		r.runID = runID
		r.cancel = cancel
	}
	r.mu.Unlock()

	if wasRunning {
		r.emit(Event{Kind: EventStatus, RunID: runID, Status: StatusRunning, TurnIndex: index})
		go r.run(ctx, runID)
	}
	slog.Info("session jump", "turn", index, "running", wasRunning)
	return nil
}

// Reset discards all per-run state and returns to StatusIdle. The loaded
// scenario is kept.
func (r *Runner) Reset() {
	r.mu.Lock()
	wasRunning := r.status == StatusRunning
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
	r.resetLocked()
	r.mu.Unlock()

	if wasRunning {
		if r.cfg.Player != nil {
			r.cfg.Player.Stop()
		}
		if m := r.cfg.Metrics; m != nil {
			m.ActiveSessions.Add(context.Background(), -1)
		}
	}
	r.emit(Event{Kind: EventStatus, Status: StatusIdle, TurnIndex: -1})
	slog.Info("session reset")
}

// resetLocked clears per-run state. Caller holds r.mu.
func (r *Runner) resetLocked() {
	r.status = StatusIdle
	r.runID = ""
	r.idx = -1
	r.results = make(map[int]TurnResult)
	r.retries = 0
	r.latencySum = 0
	r.latencyN = 0
	r.manualFallback = false
	r.startedAt = time.Time{}
	r.awaiting = awaitNone
}

// Status returns the current lifecycle state.
func (r *Runner) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// CurrentIndex returns the turn pointer: -1 before the first start, the
// scenario length after completion.
func (r *Runner) CurrentIndex() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.idx
}

// RetryCount returns the number of failed graded turns this attempt.
func (r *Runner) RetryCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.retries
}

// AvgLatency returns the rolling average response latency across graded
// turns, zero when none have been graded.
func (r *Runner) AvgLatency() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.latencyN == 0 {
		return 0
	}
	return r.latencySum / time.Duration(r.latencyN)
}

// Results returns the recorded turn results in scenario order.
func (r *Runner) Results() []TurnResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sortedResultsLocked()
}

// run is the per-run worker. It owns turn progression; every state commit
// re-checks runID so a superseded worker silently bows out.
func (r *Runner) run(ctx context.Context, runID string) {
	if r.cfg.Preflight != nil {
		if err := r.cfg.Preflight(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			r.halt(runID, fmt.Sprintf("audio setup failed: %v", err))
			return
		}
	}

	for {
		r.mu.Lock()
		if r.runID != runID || r.status != StatusRunning {
			r.mu.Unlock()
			return
		}
		if r.idx >= len(r.scn.Turns) {
			r.mu.Unlock()
			r.finish(ctx, runID)
			return
		}
		idx := r.idx
		turn := &r.scn.Turns[idx]
		r.mu.Unlock()

		r.emit(Event{
			Kind: EventTurnStarted, RunID: runID, Status: StatusRunning,
			TurnIndex: idx, Turn: turnView(turn),
		})

		if !r.processTurn(ctx, runID, idx, turn) {
			return
		}

		if !sleepCtx(ctx, r.cfg.SettleDelay) {
			return
		}

		if turn.Graded() && !r.cfg.AutoAdvance && idx+1 < len(r.scn.Turns) {
			if !r.awaitAdvance(ctx, runID, idx) {
				return
			}
		}

		r.mu.Lock()
		if r.runID == runID && r.idx == idx {
			r.idx++
		}
		r.mu.Unlock()
	}
}

// processTurn handles one turn. It returns false when the run should stop
// (cancelled, superseded, or halted by a fatal capture failure).
func (r *Runner) processTurn(ctx context.Context, runID string, idx int, turn *scenario.Turn) bool {
	start := time.Now()
	defer func() {
		if m := r.cfg.Metrics; m != nil {
			m.TurnDuration.Record(context.Background(), time.Since(start).Seconds(),
				metric.WithAttributes(observe.Attr("role", string(turn.Role))))
		}
	}()

	switch {
	case turn.Graded():
		return r.processGraded(ctx, runID, idx, turn, start)

	case turn.Role == scenario.RoleCaptain:
		if r.cfg.Player != nil && turn.Cue != "" {
			r.emit(Event{
				Kind: EventPlaying, RunID: runID, Status: StatusRunning,
				TurnIndex: idx, Turn: turnView(turn),
			})
			if err := r.cfg.Player.Play(ctx, turn.Cue); err != nil {
				if ctx.Err() != nil {
					return false
				}
				// Playback failures never block the drill.
				slog.Warn("cue playback failed, treating turn as complete",
					"run_id", runID, "turn", idx, "cue", turn.Cue, "err", err)
			}
		}
		return true

	default:
		// Narrator and other ungraded roles pass through.
		return true
	}
}

// processGraded captures and grades one Iceman turn.
func (r *Runner) processGraded(ctx context.Context, runID string, idx int, turn *scenario.Turn, start time.Time) bool {
	r.mu.Lock()
	useManual := r.cfg.ManualEntry || r.manualFallback || r.cfg.Listener == nil
	r.mu.Unlock()

	var heard string
	var manual bool

	if !useManual {
		r.emit(Event{
			Kind: EventListening, RunID: runID, Status: StatusRunning,
			TurnIndex: idx, Turn: turnView(turn),
		})

		res, err := r.listenOnce(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return false // paused or superseded: silent, no score
			}
			r.halt(runID, fmt.Sprintf("speech capture failed: %v", err))
			return false
		}

		switch res.Ended {
		case listen.EndUnsupported:
			// No recognizer on this client; fall back to typed entry for
			// this and all remaining graded turns.
			r.mu.Lock()
			r.manualFallback = true
			r.mu.Unlock()
			useManual = true
			slog.Info("speech recognition unavailable, switching to manual entry", "run_id", runID)

		case listen.EndError:
			if m := r.cfg.Metrics; m != nil {
				m.ListenFailures.Add(context.Background(), 1)
			}
			r.halt(runID, "speech capture failed — restart the session to try again")
			return false

		default:
			heard = res.Text()
		}
	}

	if useManual {
		manual = true
		text, ok := r.awaitEntry(ctx, runID, idx, turn)
		if !ok {
			return false
		}
		heard = text
	}

	latency := time.Since(start)
	sres := r.cfg.Scorer.ScoreTokens(turn.GradingTokens(), heard)
	pass := r.cfg.Scorer.Passes(sres)

	result := TurnResult{
		TurnIndex: idx,
		Heard:     heard,
		Pct:       sres.Pct,
		Pass:      pass,
		Misses:    sres.Misses,
		Manual:    manual,
		Latency:   latency,
	}

	r.mu.Lock()
	if r.runID != runID {
		r.mu.Unlock()
		return false // superseded between capture and commit
	}
	r.results[idx] = result
	if !pass {
		r.retries++
	}
	r.latencySum += latency
	r.latencyN++
	r.mu.Unlock()

	if m := r.cfg.Metrics; m != nil {
		m.ResponseLatency.Record(context.Background(), latency.Seconds())
		m.RecordGradedTurn(context.Background(), r.scenarioID(), sres.Pct, pass)
	}
	r.emit(Event{
		Kind: EventTurnResult, RunID: runID, Status: StatusRunning,
		TurnIndex: idx, Turn: turnView(turn), Result: &result,
	})
	slog.Info("turn graded",
		"run_id", runID, "turn", idx, "pct", sres.Pct, "pass", pass,
		"manual", manual, "latency", latency,
	)
	return true
}

// listenOnce runs one capture with the safety-net timeout applied on top of
// the listener's own MaxDuration.
func (r *Runner) listenOnce(ctx context.Context) (listen.Result, error) {
	lctx := ctx
	if max := r.cfg.Listen.MaxDuration; max > 0 {
		var cancel context.CancelFunc
		lctx, cancel = context.WithTimeout(ctx, max+listenGrace)
		defer cancel()
	}

	res, err := r.cfg.Listener.ListenOnce(lctx, r.cfg.Listen)
	if err != nil && ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
		// The listener never resolved inside its window; grade what we have.
		return listen.Result{Ended: listen.EndTimeout}, nil
	}
	return res, err
}

// awaitEntry suspends until typed text arrives via Submit. Returns ok=false
// when the wait was cancelled.
func (r *Runner) awaitEntry(ctx context.Context, runID string, idx int, turn *scenario.Turn) (string, bool) {
	r.mu.Lock()
	if r.runID != runID {
		r.mu.Unlock()
		return "", false
	}
	ch := make(chan string, 1) // fresh buffer: the answer slate is clean
	r.entryCh = ch
	r.awaiting = awaitEntry
	r.mu.Unlock()

	r.emit(Event{
		Kind: EventAwaitingEntry, RunID: runID, Status: StatusRunning,
		TurnIndex: idx, Turn: turnView(turn),
	})

	select {
	case text := <-ch:
		return text, true
	case <-ctx.Done():
		r.clearAwait(runID)
		return "", false
	}
}

// awaitAdvance suspends until Proceed arrives. Returns false when cancelled.
func (r *Runner) awaitAdvance(ctx context.Context, runID string, idx int) bool {
	r.mu.Lock()
	if r.runID != runID {
		r.mu.Unlock()
		return false
	}
	ch := make(chan struct{}, 1)
	r.proceedCh = ch
	r.awaiting = awaitAdvance
	r.mu.Unlock()

	r.emit(Event{
		Kind: EventAwaitingAdvance, RunID: runID, Status: StatusRunning,
		TurnIndex: idx,
	})

	select {
	case <-ch:
		return true
	case <-ctx.Done():
		r.clearAwait(runID)
		return false
	}
}

// clearAwait drops a pending await registration if this run still owns it.
func (r *Runner) clearAwait(runID string) {
	r.mu.Lock()
	if r.runID == runID {
		r.awaiting = awaitNone
	}
	r.mu.Unlock()
}

// halt ends the current attempt after a fatal failure. The turn pointer is
// preserved so Start can retry from the same turn.
func (r *Runner) halt(runID string, message string) {
	r.mu.Lock()
	if r.runID != runID {
		r.mu.Unlock()
		return
	}
	r.status = StatusIdle
	r.runID = ""
	r.awaiting = awaitNone
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
	idx := r.idx
	r.mu.Unlock()

	if m := r.cfg.Metrics; m != nil {
		m.ActiveSessions.Add(context.Background(), -1)
		m.SessionsFinished.Add(context.Background(), 1,
			metric.WithAttributes(observe.Attr("outcome", string(record.OutcomeHalted))))
	}
	r.emit(Event{Kind: EventMessage, RunID: runID, Status: StatusIdle, TurnIndex: idx, Message: message})
	r.emit(Event{Kind: EventStatus, RunID: runID, Status: StatusIdle, TurnIndex: idx})
	slog.Warn("session halted", "run_id", runID, "turn", idx, "message", message)
}

// finish completes the run: aggregate score, summary event, persistence.
func (r *Runner) finish(ctx context.Context, runID string) {
	r.mu.Lock()
	if r.runID != runID {
		r.mu.Unlock()
		return
	}

	graded := r.scn.GradedTurnCount()
	passed := 0
	for _, res := range r.results {
		if res.Pass {
			passed++
		}
	}
	scorePct := 100.0
	if graded > 0 {
		scorePct = 100 * float64(passed) / float64(graded)
	}

	summary := &Summary{
		ScenarioID:    r.scn.ID,
		ScenarioLabel: r.scn.Label,
		Results:       r.sortedResultsLocked(),
		GradedTurns:   graded,
		PassedTurns:   passed,
		ScorePct:      scorePct,
		Duration:      time.Since(r.startedAt),
	}

	r.status = StatusComplete
	r.cancel = nil
	r.mu.Unlock()

	if m := r.cfg.Metrics; m != nil {
		m.ActiveSessions.Add(context.Background(), -1)
		m.SessionsFinished.Add(context.Background(), 1,
			metric.WithAttributes(observe.Attr("outcome", string(record.OutcomeComplete))))
	}
	r.emit(Event{
		Kind: EventComplete, RunID: runID, Status: StatusComplete,
		TurnIndex: len(r.scn.Turns), Summary: summary,
	})
	slog.Info("session complete",
		"run_id", runID, "scenario_id", summary.ScenarioID,
		"score_pct", summary.ScorePct, "graded", graded, "passed", passed,
		"duration", summary.Duration,
	)

	r.persist(summary)
}

// persist writes the finished-session record without blocking the caller.
func (r *Runner) persist(summary *Summary) {
	if r.cfg.Store == nil {
		return
	}

	rec := record.SessionRecord{
		ScenarioID:      summary.ScenarioID,
		ScenarioLabel:   summary.ScenarioLabel,
		EmployeeID:      r.cfg.EmployeeID,
		Outcome:         record.OutcomeComplete,
		ScorePct:        summary.ScorePct,
		DurationSeconds: summary.Duration.Seconds(),
		RecordedAt:      time.Now().UTC(),
	}
	for _, tr := range summary.Results {
		rec.Turns = append(rec.Turns, record.TurnRecord{
			Index:  tr.TurnIndex,
			Heard:  tr.Heard,
			Pct:    tr.Pct,
			Pass:   tr.Pass,
			Misses: tr.Misses,
		})
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
		defer cancel()
		if err := r.cfg.Store.SaveSession(ctx, rec); err != nil {
			slog.Error("failed to persist session record",
				"scenario_id", rec.ScenarioID, "err", err)
			if m := r.cfg.Metrics; m != nil {
				m.RecordWriteErrors.Add(context.Background(), 1)
			}
		}
	}()
}

// sortedResultsLocked returns results in scenario order. Caller holds r.mu.
func (r *Runner) sortedResultsLocked() []TurnResult {
	if r.scn == nil {
		return nil
	}
	out := make([]TurnResult, 0, len(r.results))
	for i := range r.scn.Turns {
		if res, ok := r.results[i]; ok {
			out = append(out, res)
		}
	}
	return out
}

// emit delivers an event without blocking the worker. Full buffers drop.
func (r *Runner) emit(ev Event) {
	select {
	case r.events <- ev:
	default:
		slog.Debug("event dropped, consumer too slow", "kind", ev.Kind)
	}
}

func (r *Runner) scenarioID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.scn == nil {
		return ""
	}
	return r.scn.ID
}

// sleepCtx waits for d or until ctx is done; it returns false on
// cancellation.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
