package config

import (
	"strings"
	"testing"
	"time"
)

const validYAML = `
server:
  listen_addr: ":8443"
  log_level: debug
scenarios:
  dir: ./scenarios
drill:
  pass_threshold: 0.6
  auto_advance: true
  settle_delay: 500ms
  lenient_matching: true
  listen:
    min_duration: 1s
    max_duration: 8s
    silence_cutoff: 2s
quiz:
  duration: 90s
storage:
  postgres_dsn: "postgres://rb:rb@localhost:5432/readback?sslmode=disable"
  file_dir: /var/lib/readback
whisper:
  model_path: /models/ggml-base.en.bin
  language: en
`

func TestLoadFromReaderValid(t *testing.T) {
	t.Parallel()

	cfg, err := LoadFromReader(strings.NewReader(validYAML))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}

	if cfg.Server.ListenAddr != ":8443" || cfg.Server.LogLevel != LogDebug {
		t.Errorf("server = %+v", cfg.Server)
	}
	if cfg.Drill.PassThreshold != 0.6 || !cfg.Drill.AutoAdvance {
		t.Errorf("drill = %+v", cfg.Drill)
	}
	if cfg.Drill.SettleDelay.Std() != 500*time.Millisecond {
		t.Errorf("settle_delay = %v, want 500ms", cfg.Drill.SettleDelay)
	}
	if cfg.Drill.Listen.MaxDuration.Std() != 8*time.Second {
		t.Errorf("listen.max_duration = %v, want 8s", cfg.Drill.Listen.MaxDuration)
	}
	if cfg.Quiz.Duration.Std() != 90*time.Second {
		t.Errorf("quiz.duration = %v, want 90s", cfg.Quiz.Duration)
	}
	// Defaults fill the unset quiz threshold.
	if cfg.Quiz.PassThreshold != DefaultPassThreshold {
		t.Errorf("quiz.pass_threshold = %v, want default %v", cfg.Quiz.PassThreshold, DefaultPassThreshold)
	}
	if cfg.Storage.BreakerTripAfter != DefaultBreakerTrip {
		t.Errorf("storage.breaker_trip_after = %d, want default %d", cfg.Storage.BreakerTripAfter, DefaultBreakerTrip)
	}
}

func TestLoadFromReaderDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := LoadFromReader(strings.NewReader("scenarios:\n  dir: ./scenarios\n"))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}
	if cfg.Server.ListenAddr != DefaultListenAddr {
		t.Errorf("listen_addr = %q, want %q", cfg.Server.ListenAddr, DefaultListenAddr)
	}
	if cfg.Server.LogLevel != LogInfo {
		t.Errorf("log_level = %q, want info", cfg.Server.LogLevel)
	}
	if cfg.Drill.PassThreshold != DefaultPassThreshold {
		t.Errorf("pass_threshold = %v, want %v", cfg.Drill.PassThreshold, DefaultPassThreshold)
	}
	if cfg.Drill.SettleDelay.Std() != DefaultSettleDelay {
		t.Errorf("settle_delay = %v, want %v", cfg.Drill.SettleDelay, DefaultSettleDelay)
	}
	if cfg.Quiz.Duration.Std() != DefaultQuizDuration {
		t.Errorf("quiz.duration = %v, want %v", cfg.Quiz.Duration, DefaultQuizDuration)
	}
	if cfg.Storage.FileDir != DefaultFileDir {
		t.Errorf("file_dir = %q, want %q", cfg.Storage.FileDir, DefaultFileDir)
	}
}

func TestLoadFromReaderRejectsUnknownKeys(t *testing.T) {
	t.Parallel()

	_, err := LoadFromReader(strings.NewReader("scenarios:\n  dir: x\n  glob: '*.yaml'\n"))
	if err == nil {
		t.Fatal("unknown key accepted, want decode error")
	}
}

func TestValidateFailures(t *testing.T) {
	t.Parallel()

	for _, tc := range []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "bad log level",
			yaml: "server:\n  log_level: verbose\nscenarios:\n  dir: x\n",
			want: "log_level",
		},
		{
			name: "threshold out of range",
			yaml: "scenarios:\n  dir: x\ndrill:\n  pass_threshold: 1.5\n",
			want: "pass_threshold",
		},
		{
			name: "listen window inverted",
			yaml: "scenarios:\n  dir: x\ndrill:\n  listen:\n    min_duration: 10s\n    max_duration: 2s\n",
			want: "max_duration",
		},
		{
			name: "missing scenario dir",
			yaml: "server:\n  listen_addr: ':1'\n",
			want: "scenarios.dir",
		},
		{
			name: "tls missing key",
			yaml: "scenarios:\n  dir: x\nserver:\n  tls:\n    cert_file: a.pem\n",
			want: "server.tls",
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LoadFromReader(strings.NewReader(tc.yaml))
			if err == nil {
				t.Fatal("invalid config accepted")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("err = %v, want mention of %q", err, tc.want)
			}
		})
	}
}

func TestValidateCollectsAllErrors(t *testing.T) {
	t.Parallel()

	_, err := LoadFromReader(strings.NewReader(
		"server:\n  log_level: loud\ndrill:\n  pass_threshold: 2\n"))
	if err == nil {
		t.Fatal("invalid config accepted")
	}
	msg := err.Error()
	for _, want := range []string{"log_level", "pass_threshold", "scenarios.dir"} {
		if !strings.Contains(msg, want) {
			t.Errorf("joined error %q is missing %q", msg, want)
		}
	}
}
