// Package observe provides observability primitives for kouyu:
// OpenTelemetry metrics with a Prometheus exporter bridge so the standard
// /metrics endpoint keeps working.
//
// A package-level default [Metrics] instance ([Default]) is provided for
// convenience; tests should use [NewMetrics] with a custom
// [metric.MeterProvider] to avoid cross-test pollution.
package observe

import (
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all kouyu metrics.
const meterName = "github.com/kouyulab/kouyu"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// TranscriptionDuration tracks end-to-end transcription latency. Use
	// with attribute.String("status", "ok"|"error"|"timeout").
	TranscriptionDuration metric.Float64Histogram

	// ResampleDuration tracks audio decode + resample latency.
	ResampleDuration metric.Float64Histogram

	// Attempts counts scored practice attempts. Use with
	// attribute.String("tier", ...) and attribute.Bool("passed", ...).
	Attempts metric.Int64Counter

	// TranscriptionErrors counts degraded transcriptions (failure or
	// timeout collapsed to an empty transcript). Use with
	// attribute.String("reason", ...).
	TranscriptionErrors metric.Int64Counter

	// ScoreDistribution is a histogram of final scores (0–100).
	ScoreDistribution metric.Float64Histogram

	// ActiveSessions tracks the number of live practice capture sessions.
	ActiveSessions metric.Int64UpDownCounter

	// HTTPRequestDuration tracks HTTP request processing time. Use with
	// attribute.String("method", ...), attribute.String("path", ...).
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) sized for
// capture-and-recognition latencies: resampling is milliseconds, whisper
// inference can take tens of seconds on CPU.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60,
}

// scoreBuckets covers the 0–100 score range in tier-aligned steps.
var scoreBuckets = []float64{0, 10, 20, 30, 40, 50, 60, 70, 80, 90, 100}

// NewMetrics creates a fully initialised [Metrics] using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.TranscriptionDuration, err = m.Float64Histogram("kouyu.transcription.duration",
		metric.WithDescription("Latency of speech-to-text transcription."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ResampleDuration, err = m.Float64Histogram("kouyu.resample.duration",
		metric.WithDescription("Latency of audio decode and resampling."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.Attempts, err = m.Int64Counter("kouyu.attempts",
		metric.WithDescription("Scored practice attempts."),
	); err != nil {
		return nil, err
	}
	if met.TranscriptionErrors, err = m.Int64Counter("kouyu.transcription.errors",
		metric.WithDescription("Transcriptions degraded to an empty transcript."),
	); err != nil {
		return nil, err
	}
	if met.ScoreDistribution, err = m.Float64Histogram("kouyu.score",
		metric.WithDescription("Distribution of final attempt scores."),
		metric.WithExplicitBucketBoundaries(scoreBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ActiveSessions, err = m.Int64UpDownCounter("kouyu.sessions.active",
		metric.WithDescription("Live practice capture sessions."),
	); err != nil {
		return nil, err
	}
	if met.HTTPRequestDuration, err = m.Float64Histogram("kouyu.http.request.duration",
		metric.WithDescription("HTTP request processing time."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	return met, nil
}

var (
	defaultOnce    sync.Once
	defaultMetrics *Metrics
)

// Default returns the process-wide Metrics instance backed by the global
// meter provider. Instruments are created on first use; creation errors are
// impossible with valid instrument names, so Default panics if one occurs.
func Default() *Metrics {
	defaultOnce.Do(func() {
		m, err := NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: default metrics init: " + err.Error())
		}
		defaultMetrics = m
	})
	return defaultMetrics
}
