package observe_test

import (
	"context"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/kouyulab/kouyu/internal/observe"
)

func TestNewMetrics(t *testing.T) {
	t.Parallel()

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	m, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}

	ctx := context.Background()
	m.Attempts.Add(ctx, 1)
	m.ScoreDistribution.Record(ctx, 80)
	m.TranscriptionDuration.Record(ctx, 1.25)
	m.ActiveSessions.Add(ctx, 1)
	m.ActiveSessions.Add(ctx, -1)

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}

	recorded := map[string]bool{}
	for _, sm := range rm.ScopeMetrics {
		for _, inst := range sm.Metrics {
			recorded[inst.Name] = true
		}
	}
	for _, name := range []string{
		"kouyu.attempts",
		"kouyu.score",
		"kouyu.transcription.duration",
		"kouyu.sessions.active",
	} {
		if !recorded[name] {
			t.Errorf("instrument %q recorded no data", name)
		}
	}
}

func TestDefaultIsSingleton(t *testing.T) {
	t.Parallel()

	if observe.Default() != observe.Default() {
		t.Error("Default() returned distinct instances")
	}
}
