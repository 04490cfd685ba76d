package scenario

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"
)

// File is the top-level structure of a scenario YAML file.
//
// Example:
//
//	scenario:
//	  id: "gate-deice-basic"
//	  label: "Gate De-ice, Type I"
//	turns:
//	  - role: captain
//	    text: "Iceman, Captain. N443DF ready for de-ice, brakes set."
//	    cue: "capt-ready"
//	  - role: iceman
//	    text: "Captain, Iceman. N443DF, de-ice crew standing by."
//	    prompt: "Acknowledge with the tail number."
type File struct {
	Scenario Meta       `yaml:"scenario"`
	Turns    []TurnSpec `yaml:"turns"`
}

// Meta holds top-level scenario metadata.
type Meta struct {
	// ID uniquely identifies the scenario.
	ID string `yaml:"id"`

	// Label is the scenario's display name.
	Label string `yaml:"label"`

	// Description is a free-text summary.
	Description string `yaml:"description"`
}

// TurnSpec is the YAML form of a single scripted turn.
type TurnSpec struct {
	Role   Role   `yaml:"role"`
	Text   string `yaml:"text"`
	Cue    string `yaml:"cue"`
	Prompt string `yaml:"prompt"`
}

// LoadFile reads and parses a scenario YAML file from disk.
// Returns a descriptive error if the file cannot be opened or parsed.
func LoadFile(path string) (*Scenario, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("scenario: open %q: %w", path, err)
	}
	defer f.Close()

	s, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("scenario: parse %q: %w", path, err)
	}
	return s, nil
}

// LoadFromReader parses scenario YAML from r and returns a validated
// [Scenario] with derived grading forms.
func LoadFromReader(r io.Reader) (*Scenario, error) {
	var file File
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true) // reject unknown keys to catch typos
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("scenario: decode yaml: %w", err)
	}

	turns := make([]Turn, len(file.Turns))
	for i, ts := range file.Turns {
		if ts.Role != "" && !ts.Role.IsValid() {
			slog.Warn("scenario: unrecognised turn role, turn will not be graded",
				"scenario_id", file.Scenario.ID,
				"turn", i,
				"role", ts.Role,
			)
		}
		turns[i] = Turn{
			Role:   ts.Role,
			Text:   ts.Text,
			Cue:    ts.Cue,
			Prompt: ts.Prompt,
		}
	}

	return New(file.Scenario.ID, file.Scenario.Label, file.Scenario.Description, turns)
}
