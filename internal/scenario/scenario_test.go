package scenario_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/coldsoak/readback/internal/scenario"
)

func TestNew_DerivesGradingForms(t *testing.T) {
	t.Parallel()

	s, err := scenario.New("pad-one", "Pad One", "", []scenario.Turn{
		{Role: scenario.RoleCaptain, Text: "N443DF, cleared to the pad.", Cue: "capt-cleared"},
		{Role: scenario.RoleIceman, Text: "N443DF cleared to the pad, brakes set."},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	capt := &s.Turns[0]
	if capt.GradingLine() != capt.DisplayLine() {
		t.Errorf("captain grading line = %q, want display line %q", capt.GradingLine(), capt.DisplayLine())
	}

	ice := &s.Turns[1]
	if ice.DisplayLine() != "N443DF cleared to the pad, brakes set." {
		t.Errorf("iceman display line mutated: %q", ice.DisplayLine())
	}
	wantGrading := "November Four Four Three Delta Foxtrot cleared to the pad, brakes set."
	if ice.GradingLine() != wantGrading {
		t.Errorf("iceman grading line = %q, want %q", ice.GradingLine(), wantGrading)
	}

	tokens := ice.GradingTokens()
	// "four" appears twice in the expansion but once in the unique set.
	count := 0
	for _, tok := range tokens {
		if tok == "four" {
			count++
		}
	}
	if count != 1 {
		t.Errorf("grading tokens contain %d %q entries, want 1 (%v)", count, "four", tokens)
	}
}

func TestNew_Validation(t *testing.T) {
	t.Parallel()

	if _, err := scenario.New("", "x", "", nil); err == nil {
		t.Error("New with no id and no turns succeeded")
	}
	if _, err := scenario.New("id", "x", "", []scenario.Turn{{Role: scenario.RoleIceman}}); err == nil {
		t.Error("New with empty turn text succeeded")
	}
}

func TestGradedTurnCount(t *testing.T) {
	t.Parallel()

	s, err := scenario.New("s", "s", "", []scenario.Turn{
		{Role: scenario.RoleCaptain, Text: "a"},
		{Role: scenario.RoleIceman, Text: "b"},
		{Role: "narrator", Text: "c"},
		{Role: scenario.RoleIceman, Text: "d"},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if got := s.GradedTurnCount(); got != 2 {
		t.Errorf("GradedTurnCount = %d, want 2", got)
	}
}

const scenarioYAML = `scenario:
  id: "gate-deice-basic"
  label: "Gate De-ice, Type I"
  description: "Standard gate de-ice call and response."
turns:
  - role: captain
    text: "Iceman, Captain. N443DF ready for de-ice, brakes set."
    cue: "capt-ready"
  - role: iceman
    text: "Captain, Iceman. N443DF, de-ice crew standing by."
    prompt: "Acknowledge with the tail number."
`

func TestLoadFromReader(t *testing.T) {
	t.Parallel()

	s, err := scenario.LoadFromReader(strings.NewReader(scenarioYAML))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}
	if s.ID != "gate-deice-basic" || s.Label != "Gate De-ice, Type I" {
		t.Errorf("metadata = %q / %q", s.ID, s.Label)
	}
	if len(s.Turns) != 2 {
		t.Fatalf("turns = %d, want 2", len(s.Turns))
	}
	if s.Turns[0].Cue != "capt-ready" {
		t.Errorf("cue = %q", s.Turns[0].Cue)
	}
	if !strings.Contains(s.Turns[1].GradingLine(), "November Four Four Three Delta Foxtrot") {
		t.Errorf("grading line not expanded: %q", s.Turns[1].GradingLine())
	}
}

func TestLoadFromReader_UnknownKey(t *testing.T) {
	t.Parallel()

	bad := strings.ReplaceAll(scenarioYAML, "description:", "descriptionn:")
	if _, err := scenario.LoadFromReader(strings.NewReader(bad)); err == nil {
		t.Error("LoadFromReader accepted an unknown key")
	}
}

func TestFileSource(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "gate.yaml"), []byte(scenarioYAML), 0o644); err != nil {
		t.Fatal(err)
	}
	// Non-YAML files are ignored.
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignore me"), 0o644); err != nil {
		t.Fatal(err)
	}

	src, err := scenario.NewFileSource(dir)
	if err != nil {
		t.Fatalf("NewFileSource: %v", err)
	}
	ctx := context.Background()

	summaries, err := src.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(summaries) != 1 || summaries[0].ID != "gate-deice-basic" || summaries[0].TurnCount != 2 {
		t.Errorf("List = %+v", summaries)
	}

	s, err := src.Get(ctx, "gate-deice-basic")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if s.Label != "Gate De-ice, Type I" {
		t.Errorf("Get label = %q", s.Label)
	}

	// Cached access returns the same parsed scenario.
	again, err := src.Get(ctx, "gate-deice-basic")
	if err != nil {
		t.Fatalf("Get (cached): %v", err)
	}
	if again != s {
		t.Error("cached Get returned a different instance")
	}

	if _, err := src.Get(ctx, "no-such"); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Get(no-such) err = %v, want ErrNotExist", err)
	}
}

func TestNewFileSource_MissingDir(t *testing.T) {
	t.Parallel()

	if _, err := scenario.NewFileSource(filepath.Join(t.TempDir(), "absent")); err == nil {
		t.Error("NewFileSource accepted a missing directory")
	}
}
