package config

// ChangeSet describes what changed between two configs. Only fields that
// can be applied without a server restart are tracked; everything else
// requires a restart to take effect.
type ChangeSet struct {
	// LogLevelChanged is set when the log verbosity changed.
	LogLevelChanged bool

	// NewLogLevel is the new verbosity when LogLevelChanged is set.
	NewLogLevel LogLevel

	// DrillChanged is set when any drill tuning knob changed. New drill
	// sessions pick the values up; a running session keeps its own.
	DrillChanged bool

	// QuizChanged is set when any quiz tuning knob changed. Applies to the
	// next round.
	QuizChanged bool

	// ScenarioDirChanged is set when the scenario catalog moved.
	ScenarioDirChanged bool
}

// Any reports whether the change set contains anything at all.
func (c ChangeSet) Any() bool {
	return c.LogLevelChanged || c.DrillChanged || c.QuizChanged || c.ScenarioDirChanged
}

// Diff compares old and new configs and returns the hot-applicable changes.
func Diff(old, new *Config) ChangeSet {
	var c ChangeSet

	if old.Server.LogLevel != new.Server.LogLevel {
		c.LogLevelChanged = true
		c.NewLogLevel = new.Server.LogLevel
	}
	if old.Drill != new.Drill {
		c.DrillChanged = true
	}
	if old.Quiz != new.Quiz {
		c.QuizChanged = true
	}
	if old.Scenarios.Dir != new.Scenarios.Dir {
		c.ScenarioDirChanged = true
	}
	return c
}
