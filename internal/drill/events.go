package drill

import "github.com/coldsoak/readback/internal/scenario"

// EventKind identifies what a session [Event] reports.
type EventKind string

const (
	// EventStatus reports a state transition (started, paused, reset…).
	EventStatus EventKind = "status"

	// EventTurnStarted reports that processing of a turn began.
	EventTurnStarted EventKind = "turn_started"

	// EventPlaying reports that a Captain cue playback was requested.
	EventPlaying EventKind = "playing"

	// EventListening reports that speech capture began for a graded turn.
	EventListening EventKind = "listening"

	// EventAwaitingEntry reports that the session is waiting for typed text
	// (manual-entry fallback).
	EventAwaitingEntry EventKind = "awaiting_entry"

	// EventTurnResult carries the graded result of a turn.
	EventTurnResult EventKind = "turn_result"

	// EventAwaitingAdvance reports that the session is waiting for an
	// explicit proceed signal before the next turn.
	EventAwaitingAdvance EventKind = "awaiting_advance"

	// EventComplete carries the finished-session summary.
	EventComplete EventKind = "complete"

	// EventMessage carries a human-readable status message, including the
	// fatal-listen-failure notice.
	EventMessage EventKind = "message"
)

// Event is one item on a session's event stream. Fields beyond Kind, RunID,
// and Status are populated per kind; unset pointers mean "not applicable".
type Event struct {
	Kind   EventKind `json:"kind"`
	RunID  string    `json:"run_id"`
	Status Status    `json:"status"`

	// TurnIndex is the turn this event concerns, -1 when not turn-scoped.
	TurnIndex int `json:"turn_index"`

	// Turn describes the current turn for turn-scoped events.
	Turn *TurnView `json:"turn,omitempty"`

	// Result carries the graded outcome for EventTurnResult.
	Result *TurnResult `json:"result,omitempty"`

	// Summary carries the aggregate outcome for EventComplete.
	Summary *Summary `json:"summary,omitempty"`

	// Message carries free text for EventMessage.
	Message string `json:"message,omitempty"`
}

// TurnView is the UI-facing description of a turn: the display line and
// presentation hints, never the grading form.
type TurnView struct {
	Role   scenario.Role `json:"role"`
	Text   string        `json:"text"`
	Cue    string        `json:"cue,omitempty"`
	Prompt string        `json:"prompt,omitempty"`
}

func turnView(t *scenario.Turn) *TurnView {
	return &TurnView{
		Role:   t.Role,
		Text:   t.DisplayLine(),
		Cue:    t.Cue,
		Prompt: t.Prompt,
	}
}
