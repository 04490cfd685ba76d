// Package scenario defines the drill scenario model: an ordered script of
// Captain/Iceman turns with the derived grading forms the scoring engine
// needs, plus loaders and a cached file-backed source.
package scenario

import (
	"errors"
	"fmt"

	"github.com/coldsoak/readback/internal/phonetic"
	"github.com/coldsoak/readback/internal/text"
)

// Role identifies which side of the de-icing exchange speaks a turn.
type Role string

const (
	// RoleCaptain turns are played back to the trainee and never graded.
	RoleCaptain Role = "captain"

	// RoleIceman turns are the trainee's lines; responses are graded.
	RoleIceman Role = "iceman"
)

// IsValid reports whether r is a recognised role. Unknown roles load fine —
// the session treats them as ungraded pass-through turns — but the loader
// warns about them, so validation is exposed.
func (r Role) IsValid() bool {
	return r == RoleCaptain || r == RoleIceman
}

// Turn is one scripted line in a scenario. The display line is the authored
// text, verbatim; the grading line is derived once at load time by expanding
// tail designators phonetically, and never mutates afterwards.
type Turn struct {
	// Role attributes the line to a speaker.
	Role Role

	// Text is the display line, shown to the trainee unmodified.
	Text string

	// Cue optionally names a pre-recorded audio cue for this line.
	Cue string

	// Prompt is an optional free-text hint shown before the trainee answers.
	Prompt string

	// gradingLine is the phonetically-expanded form of Text for Iceman
	// turns; identical to Text otherwise.
	gradingLine string

	// gradingTokens is the unique normalized token set of gradingLine.
	gradingTokens []string
}

// DisplayLine returns the verbatim scripted text.
func (t *Turn) DisplayLine() string { return t.Text }

// GradingLine returns the derived grading form of the line. For Captain
// turns it equals the display line.
func (t *Turn) GradingLine() string { return t.gradingLine }

// GradingTokens returns the unique normalized tokens of the grading line,
// in first-occurrence order. The returned slice must not be modified.
func (t *Turn) GradingTokens() []string { return t.gradingTokens }

// Graded reports whether responses to this turn are scored.
// Only Iceman turns are graded.
func (t *Turn) Graded() bool { return t.Role == RoleIceman }

// Scenario is an immutable drill script. Construct one with [New]; the
// derived turn forms are computed there and cached for the scenario's
// lifetime.
type Scenario struct {
	// ID uniquely identifies the scenario within its source.
	ID string

	// Label is the display name.
	Label string

	// Description is an optional free-text summary.
	Description string

	// Turns is the ordered script. Never empty for a valid scenario.
	Turns []Turn
}

// New builds a validated Scenario and derives each turn's grading form.
// It returns an error when id is empty, turns is empty, or any turn has no
// text — a scenario that cannot be run should fail at load, not at start.
func New(id, label, description string, turns []Turn) (*Scenario, error) {
	var errs []error
	if id == "" {
		errs = append(errs, errors.New("scenario: id is required"))
	}
	if len(turns) == 0 {
		errs = append(errs, fmt.Errorf("scenario %q: at least one turn is required", id))
	}
	for i := range turns {
		if turns[i].Text == "" {
			errs = append(errs, fmt.Errorf("scenario %q: turns[%d].text is required", id, i))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	s := &Scenario{
		ID:          id,
		Label:       label,
		Description: description,
		Turns:       make([]Turn, len(turns)),
	}
	copy(s.Turns, turns)

	for i := range s.Turns {
		t := &s.Turns[i]
		if t.Role == RoleIceman {
			t.gradingLine = phonetic.ExpandLine(t.Text)
		} else {
			t.gradingLine = t.Text
		}
		t.gradingTokens = text.UniqueTokens(t.gradingLine)
	}

	return s, nil
}

// GradedTurnCount returns the number of turns that produce a score.
func (s *Scenario) GradedTurnCount() int {
	n := 0
	for i := range s.Turns {
		if s.Turns[i].Graded() {
			n++
		}
	}
	return n
}

// Summary is the catalog listing form of a scenario.
type Summary struct {
	ID          string `json:"id"`
	Label       string `json:"label"`
	Description string `json:"description,omitempty"`
	TurnCount   int    `json:"turn_count"`
}

// Summarize returns the catalog listing form of s.
func (s *Scenario) Summarize() Summary {
	return Summary{
		ID:          s.ID,
		Label:       s.Label,
		Description: s.Description,
		TurnCount:   len(s.Turns),
	}
}
