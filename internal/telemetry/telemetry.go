package telemetry

import (
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"centrist/config"
)

// Run outcomes recorded against RunsTotal.
const (
	RunCompleted = "completed"
	RunNoData    = "no_data"
	RunFailed    = "failed"
)

// Per-source outcomes recorded against SourceResults.
const (
	SourceOK      = "ok"
	SourceEmpty   = "empty"
	SourceTimeout = "timeout"
	SourceError   = "error"
)

// Telemetry tracks pipeline metrics, both as an in-process snapshot and
// as prometheus collectors on a private registry.
type Telemetry struct {
	config config.TelemetryConfig
	logger *log.Logger

	mu      sync.RWMutex
	metrics Metrics

	registry      *prometheus.Registry
	runsTotal     *prometheus.CounterVec
	runDuration   prometheus.Histogram
	sourceResults *prometheus.CounterVec
	articlesTotal prometheus.Counter
	synthTokens   prometheus.Counter
	synthCost     prometheus.Counter
}

// Metrics holds cumulative counters for the process lifetime.
type Metrics struct {
	TotalRuns     int64
	NoDataRuns    int64
	FailedRuns    int64
	TotalArticles int64

	SourceSearches int64
	SourceEmpties  int64
	SourceTimeouts int64
	SourceErrors   int64

	SynthesisTokens int64
	SynthesisCost   float64
}

func NewTelemetry(cfg config.TelemetryConfig) *Telemetry {
	reg := prometheus.NewRegistry()
	t := &Telemetry{
		config:   cfg,
		logger:   log.New(log.Writer(), "[TELEMETRY] ", log.LstdFlags),
		registry: reg,
		runsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "centrist_runs_total",
			Help: "Pipeline runs by terminal outcome.",
		}, []string{"outcome"}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "centrist_run_duration_seconds",
			Help:    "Wall-clock duration of pipeline runs.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		}),
		sourceResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "centrist_source_results_total",
			Help: "Per-source acquisition outcomes.",
		}, []string{"source", "outcome"}),
		articlesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "centrist_articles_fetched_total",
			Help: "Articles extracted across all sources.",
		}),
		synthTokens: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "centrist_synthesis_tokens_total",
			Help: "Tokens consumed by synthesis calls.",
		}),
		synthCost: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "centrist_synthesis_cost_usd_total",
			Help: "Estimated USD cost of synthesis calls.",
		}),
	}
	reg.MustRegister(t.runsTotal, t.runDuration, t.sourceResults, t.articlesTotal, t.synthTokens, t.synthCost)
	return t
}

// Handler serves the prometheus registry.
func (t *Telemetry) Handler() http.Handler {
	return promhttp.HandlerFor(t.registry, promhttp.HandlerOpts{})
}

// RecordRun records a terminal pipeline outcome.
func (t *Telemetry) RecordRun(outcome string, duration time.Duration) {
	t.runsTotal.WithLabelValues(outcome).Inc()
	t.runDuration.Observe(duration.Seconds())

	t.mu.Lock()
	t.metrics.TotalRuns++
	switch outcome {
	case RunNoData:
		t.metrics.NoDataRuns++
	case RunFailed:
		t.metrics.FailedRuns++
	}
	t.mu.Unlock()
}

// RecordSource records one acquisition task's outcome.
func (t *Telemetry) RecordSource(source, outcome string, articles int) {
	t.sourceResults.WithLabelValues(source, outcome).Inc()
	if articles > 0 {
		t.articlesTotal.Add(float64(articles))
	}

	t.mu.Lock()
	t.metrics.SourceSearches++
	t.metrics.TotalArticles += int64(articles)
	switch outcome {
	case SourceEmpty:
		t.metrics.SourceEmpties++
	case SourceTimeout:
		t.metrics.SourceTimeouts++
	case SourceError:
		t.metrics.SourceErrors++
	}
	t.mu.Unlock()
}

// RecordSynthesis records token usage and estimated cost of one
// synthesis call.
func (t *Telemetry) RecordSynthesis(tokens int64, cost float64) {
	t.synthTokens.Add(float64(tokens))
	t.synthCost.Add(cost)

	t.mu.Lock()
	t.metrics.SynthesisTokens += tokens
	if t.config.CostTracking {
		t.metrics.SynthesisCost += cost
	}
	t.mu.Unlock()

	if t.config.CostTracking {
		t.logger.Printf("synthesis used %d tokens (est. $%.4f)", tokens, cost)
	}
}

// Snapshot returns a copy of the cumulative counters.
func (t *Telemetry) Snapshot() Metrics {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.metrics
}
