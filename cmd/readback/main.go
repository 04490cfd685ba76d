// Command readback is the de-icing crew communication trainer server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/coldsoak/readback/internal/config"
	"github.com/coldsoak/readback/internal/drill"
	"github.com/coldsoak/readback/internal/health"
	"github.com/coldsoak/readback/internal/httpapi"
	"github.com/coldsoak/readback/internal/observe"
	"github.com/coldsoak/readback/internal/phonetic"
	"github.com/coldsoak/readback/internal/quiz"
	"github.com/coldsoak/readback/internal/record"
	recordpg "github.com/coldsoak/readback/internal/record/postgres"
	"github.com/coldsoak/readback/internal/resilience"
	"github.com/coldsoak/readback/internal/scenario"
	"github.com/coldsoak/readback/internal/score"
	"github.com/coldsoak/readback/pkg/provider/listen"
	"github.com/coldsoak/readback/pkg/provider/listen/whisper"
)

// version is injected at build time via -ldflags.
var version = "dev"

const shutdownTimeout = 15 * time.Second

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// The leveler is shared with the config watcher so log_level edits
	// apply without a restart.
	leveler := new(slog.LevelVar)

	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "readback: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "readback: %v\n", err)
		}
		return 1
	}

	logger := newLogger(cfg.Server, leveler)
	slog.SetDefault(logger)
	leveler.Set(slogLevel(cfg.Server.LogLevel))

	slog.Info("readback starting",
		"version", version,
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName:    "readback",
		ServiceVersion: version,
	})
	if err != nil {
		slog.Error("telemetry init failed", "err", err)
		return 1
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := otelShutdown(sctx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	metrics, err := observe.NewMetrics(otel.GetMeterProvider())
	if err != nil {
		slog.Error("metrics init failed", "err", err)
		return 1
	}

	// ── Storage ───────────────────────────────────────────────────────────
	store, pgStore, err := buildStore(ctx, cfg)
	if err != nil {
		slog.Error("storage init failed", "err", err)
		return 1
	}
	if pgStore != nil {
		defer pgStore.Close()
	}

	// ── Scenario catalog ──────────────────────────────────────────────────
	catalog, err := scenario.NewFileSource(cfg.Scenarios.Dir)
	if err != nil {
		slog.Error("scenario catalog init failed", "dir", cfg.Scenarios.Dir, "err", err)
		return 1
	}

	// ── Server-side transcriber (optional) ────────────────────────────────
	var transcriber *whisper.Transcriber
	if cfg.Whisper.ModelPath != "" {
		transcriber, err = whisper.New(cfg.Whisper.ModelPath, whisper.WithLanguage(cfg.Whisper.Language))
		if err != nil {
			slog.Error("whisper model load failed", "model", cfg.Whisper.ModelPath, "err", err)
			return 1
		}
		defer transcriber.Close()
		slog.Info("clip transcription enabled", "model", cfg.Whisper.ModelPath)
	} else {
		slog.Info("no whisper model configured, clip uploads fall back to typed entry")
	}

	// ── Health checks ─────────────────────────────────────────────────────
	checks := []health.Check{health.Dir("scenarios", cfg.Scenarios.Dir)}
	if pgStore != nil {
		checks = append(checks, health.Store("postgres", pgStore))
	}
	if cfg.Whisper.ModelPath != "" {
		checks = append(checks, health.File("whisper_model", cfg.Whisper.ModelPath))
	}

	// Both store implementations carry the optional read side.
	lister, _ := store.(record.SessionLister)

	// ── HTTP surface ──────────────────────────────────────────────────────
	api := httpapi.New(httpapi.Config{
		Scenarios:   catalog,
		Sessions:    lister,
		Health:      health.New(checks...),
		Metrics:     metrics,
		Drill:       drillConfig(cfg, store, metrics),
		Quiz:        quizConfig(cfg, store, metrics),
		Transcriber: transcriber,
	})

	srv := &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           api.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// ── Config hot reload ─────────────────────────────────────────────────
	watcher, err := config.NewWatcher(*configPath, func(old, next *config.Config) {
		c := config.Diff(old, next)
		if c.LogLevelChanged {
			leveler.Set(slogLevel(c.NewLogLevel))
			slog.Info("log level changed", "level", c.NewLogLevel)
		}
		if c.DrillChanged {
			api.UpdateDrill(drillConfig(next, store, metrics))
			slog.Info("drill tuning changed, applies to new sessions")
		}
		if c.QuizChanged {
			api.UpdateQuiz(quizConfig(next, store, metrics))
			slog.Info("quiz tuning changed, applies to new rounds")
		}
		if c.ScenarioDirChanged {
			slog.Warn("scenarios.dir changed, restart required to take effect")
		}
	})
	if err != nil {
		slog.Error("config watcher init failed", "err", err)
		return 1
	}
	defer watcher.Stop()

	// ── Serve ─────────────────────────────────────────────────────────────
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("server ready", "addr", cfg.Server.ListenAddr, "tls", cfg.Server.TLS != nil)
		var err error
		if tls := cfg.Server.TLS; tls != nil {
			err = srv.ListenAndServeTLS(tls.CertFile, tls.KeyFile)
		} else {
			err = srv.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(sctx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("server error", "err", err)
		return 1
	}

	slog.Info("goodbye")
	return 0
}

// buildStore assembles the persistence stack: the file store always exists,
// PostgreSQL is preferred when a DSN is configured, and a breaker-guarded
// fallback chain fronts both.
func buildStore(ctx context.Context, cfg *config.Config) (record.Store, *recordpg.Store, error) {
	fileStore, err := record.NewFileStore(cfg.Storage.FileDir)
	if err != nil {
		return nil, nil, err
	}

	if cfg.Storage.PostgresDSN == "" {
		slog.Info("using file storage", "dir", cfg.Storage.FileDir)
		return fileStore, nil, nil
	}

	pgStore, err := recordpg.NewStore(ctx, cfg.Storage.PostgresDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("connect postgres: %w", err)
	}

	fallback := resilience.NewStoreFallback(pgStore, "postgres", resilience.BreakerConfig{
		TripAfter:  cfg.Storage.BreakerTripAfter,
		RetryAfter: cfg.Storage.BreakerRetryAfter.Std(),
	})
	fallback.Add("file", fileStore)

	slog.Info("using postgres storage with file fallback", "dir", cfg.Storage.FileDir)
	return fallback, pgStore, nil
}

// drillConfig builds the per-connection session template. Player and
// Listener stay nil; the drill socket installs its own bridge.
func drillConfig(cfg *config.Config, store record.Store, metrics *observe.Metrics) drill.Config {
	opts := []score.Option{score.WithThreshold(cfg.Drill.PassThreshold)}
	if cfg.Drill.LenientMatching {
		opts = append(opts, score.WithTokenMatcher(phonetic.NewLenientMatcher()))
	}

	return drill.Config{
		Scorer:      score.New(opts...),
		Store:       store,
		Metrics:     metrics,
		AutoAdvance: cfg.Drill.AutoAdvance,
		SettleDelay: cfg.Drill.SettleDelay.Std(),
		Listen: listen.Options{
			MinDuration:   cfg.Drill.Listen.MinDuration.Std(),
			MaxDuration:   cfg.Drill.Listen.MaxDuration.Std(),
			SilenceCutoff: cfg.Drill.Listen.SilenceCutoff.Std(),
		},
	}
}

// quizConfig builds the per-connection round template.
func quizConfig(cfg *config.Config, store record.Store, metrics *observe.Metrics) quiz.Config {
	return quiz.Config{
		Scorer:   score.New(score.WithThreshold(cfg.Quiz.PassThreshold)),
		Store:    store,
		Metrics:  metrics,
		Duration: cfg.Quiz.Duration.Std(),
	}
}

// newLogger builds the process logger. With server.log_file set, output
// rotates via lumberjack; otherwise it goes to stderr.
func newLogger(server config.ServerConfig, leveler slog.Leveler) *slog.Logger {
	var out io.Writer = os.Stderr
	if server.LogFile != "" {
		out = &lumberjack.Logger{
			Filename:   server.LogFile,
			MaxSize:    server.LogMaxSizeMB,
			MaxBackups: server.LogMaxBackups,
			Compress:   true,
		}
	}
	return slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: leveler}))
}

func slogLevel(level config.LogLevel) slog.Level {
	switch level {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
