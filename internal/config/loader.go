package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads the YAML configuration file at path and returns a validated
// [Config] with defaults applied. It is a convenience wrapper around
// [LoadFromReader].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies defaults, and
// validates the result. Useful in tests where configs are constructed from
// string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values. It returns a
// joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if tls := cfg.Server.TLS; tls != nil {
		if tls.CertFile == "" || tls.KeyFile == "" {
			errs = append(errs, errors.New("server.tls requires both cert_file and key_file"))
		}
	}

	if cfg.Drill.PassThreshold <= 0 || cfg.Drill.PassThreshold > 1 {
		errs = append(errs, fmt.Errorf("drill.pass_threshold %.2f is out of range (0, 1]", cfg.Drill.PassThreshold))
	}
	if cfg.Drill.SettleDelay < 0 {
		errs = append(errs, fmt.Errorf("drill.settle_delay %v must not be negative", cfg.Drill.SettleDelay))
	}
	if l := cfg.Drill.Listen; l.MaxDuration < l.MinDuration {
		errs = append(errs, fmt.Errorf("drill.listen.max_duration %v is shorter than min_duration %v", l.MaxDuration, l.MinDuration))
	}

	if cfg.Quiz.PassThreshold <= 0 || cfg.Quiz.PassThreshold > 1 {
		errs = append(errs, fmt.Errorf("quiz.pass_threshold %.2f is out of range (0, 1]", cfg.Quiz.PassThreshold))
	}
	if cfg.Quiz.Duration <= 0 {
		errs = append(errs, fmt.Errorf("quiz.duration %v must be positive", cfg.Quiz.Duration))
	}

	if cfg.Scenarios.Dir == "" {
		errs = append(errs, errors.New("scenarios.dir is required"))
	}

	if cfg.Storage.PostgresDSN == "" {
		slog.Warn("storage.postgres_dsn is empty; records persist to the file store only")
	}
	if cfg.Whisper.ModelPath == "" {
		slog.Info("whisper.model_path is empty; clip transcription disabled, clients without speech recognition use typed entry")
	}

	return errors.Join(errs...)
}
