package telemetry

import (
	"testing"
	"time"

	"centrist/config"
)

func TestRecordRunOutcomes(t *testing.T) {
	tele := NewTelemetry(config.TelemetryConfig{Enabled: true})

	tele.RecordRun(RunCompleted, time.Second)
	tele.RecordRun(RunNoData, time.Second)
	tele.RecordRun(RunFailed, time.Second)

	m := tele.Snapshot()
	if m.TotalRuns != 3 {
		t.Fatalf("expected 3 runs, got %d", m.TotalRuns)
	}
	if m.NoDataRuns != 1 || m.FailedRuns != 1 {
		t.Fatalf("unexpected outcome counters: %+v", m)
	}
}

func TestRecordSourceOutcomes(t *testing.T) {
	tele := NewTelemetry(config.TelemetryConfig{Enabled: true})

	tele.RecordSource("BBC", SourceOK, 3)
	tele.RecordSource("CNN", SourceTimeout, 0)
	tele.RecordSource("Reuters", SourceError, 0)
	tele.RecordSource("Fox News", SourceEmpty, 0)

	m := tele.Snapshot()
	if m.SourceSearches != 4 {
		t.Fatalf("expected 4 searches, got %d", m.SourceSearches)
	}
	if m.TotalArticles != 3 {
		t.Fatalf("expected 3 articles, got %d", m.TotalArticles)
	}
	if m.SourceTimeouts != 1 || m.SourceErrors != 1 || m.SourceEmpties != 1 {
		t.Fatalf("unexpected source counters: %+v", m)
	}
}

func TestRecordSynthesisCostTracking(t *testing.T) {
	tele := NewTelemetry(config.TelemetryConfig{Enabled: true, CostTracking: true})
	tele.RecordSynthesis(150, 0.02)

	m := tele.Snapshot()
	if m.SynthesisTokens != 150 {
		t.Fatalf("expected 150 tokens, got %d", m.SynthesisTokens)
	}
	if m.SynthesisCost != 0.02 {
		t.Fatalf("expected cost 0.02, got %f", m.SynthesisCost)
	}
}

func TestRecordSynthesisCostTrackingDisabled(t *testing.T) {
	tele := NewTelemetry(config.TelemetryConfig{Enabled: true})
	tele.RecordSynthesis(150, 0.02)

	if m := tele.Snapshot(); m.SynthesisCost != 0 {
		t.Fatalf("cost must not accumulate when tracking is off, got %f", m.SynthesisCost)
	}
}
