// Package observe provides application-wide observability primitives for
// the readback training server: OpenTelemetry metrics, distributed tracing,
// structured logging helpers, and HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can still
// be scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use; the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms ---

	// TurnDuration tracks wall-clock time per processed drill turn. Use with
	// attribute.String("role", ...).
	TurnDuration metric.Float64Histogram

	// ResponseLatency tracks the time between a graded turn starting and the
	// trainee's answer being obtained.
	ResponseLatency metric.Float64Histogram

	// --- Score histogram ---

	// TurnScore tracks per-turn match scores in [0, 1].
	TurnScore metric.Float64Histogram

	// --- Counters ---

	// TurnsGraded counts graded turns. Use with attributes:
	//   attribute.String("scenario", ...), attribute.String("result", "pass"|"fail")
	TurnsGraded metric.Int64Counter

	// SessionsFinished counts drill sessions that reached an end state. Use
	// with attribute.String("outcome", ...).
	SessionsFinished metric.Int64Counter

	// QuizAnswers counts quiz answer submissions. Use with attributes:
	//   attribute.String("mode", ...), attribute.String("result", "correct"|"wrong")
	QuizAnswers metric.Int64Counter

	// ListenFailures counts listen operations that ended in error.
	ListenFailures metric.Int64Counter

	// RecordWriteErrors counts failed persistence writes.
	RecordWriteErrors metric.Int64Counter

	// --- Gauges ---

	// ActiveSessions tracks the number of live drill sessions.
	ActiveSessions metric.Int64UpDownCounter

	// ActiveQuizRounds tracks the number of quiz rounds currently running.
	ActiveQuizRounds metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) sized for
// interactive drill turns: sub-second listen setup through multi-second
// spoken responses.
var latencyBuckets = []float64{
	0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 30,
}

// scoreBuckets defines histogram bucket boundaries for match scores.
var scoreBuckets = []float64{
	0, 0.2, 0.4, 0.6, 0.7, 0.8, 0.9, 1,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(scopeName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.TurnDuration, err = m.Float64Histogram("readback.turn.duration",
		metric.WithDescription("Wall-clock time per processed drill turn."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ResponseLatency, err = m.Float64Histogram("readback.response.latency",
		metric.WithDescription("Time from graded turn start to answer obtained."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.TurnScore, err = m.Float64Histogram("readback.turn.score",
		metric.WithDescription("Per-turn match score."),
		metric.WithUnit("1"),
		metric.WithExplicitBucketBoundaries(scoreBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.TurnsGraded, err = m.Int64Counter("readback.turns.graded",
		metric.WithDescription("Total graded turns by scenario and result."),
	); err != nil {
		return nil, err
	}
	if met.SessionsFinished, err = m.Int64Counter("readback.sessions.finished",
		metric.WithDescription("Total drill sessions reaching an end state, by outcome."),
	); err != nil {
		return nil, err
	}
	if met.QuizAnswers, err = m.Int64Counter("readback.quiz.answers",
		metric.WithDescription("Total quiz answers by mode and result."),
	); err != nil {
		return nil, err
	}
	if met.ListenFailures, err = m.Int64Counter("readback.listen.failures",
		metric.WithDescription("Total listen operations that ended in error."),
	); err != nil {
		return nil, err
	}
	if met.RecordWriteErrors, err = m.Int64Counter("readback.record.write_errors",
		metric.WithDescription("Total failed persistence writes."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveSessions, err = m.Int64UpDownCounter("readback.active_sessions",
		metric.WithDescription("Number of live drill sessions."),
	); err != nil {
		return nil, err
	}
	if met.ActiveQuizRounds, err = m.Int64UpDownCounter("readback.active_quiz_rounds",
		metric.WithDescription("Number of quiz rounds currently running."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("readback.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordGradedTurn records the score histogram and graded-turn counter for
// one turn in a single call.
func (m *Metrics) RecordGradedTurn(ctx context.Context, scenarioID string, pct float64, pass bool) {
	result := "fail"
	if pass {
		result = "pass"
	}
	m.TurnScore.Record(ctx, pct)
	m.TurnsGraded.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("scenario", scenarioID),
			attribute.String("result", result),
		),
	)
}

// RecordQuizAnswer records a quiz answer counter increment with the standard
// attribute set.
func (m *Metrics) RecordQuizAnswer(ctx context.Context, mode string, correct bool) {
	result := "wrong"
	if correct {
		result = "correct"
	}
	m.QuizAnswers.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("mode", mode),
			attribute.String("result", result),
		),
	)
}
