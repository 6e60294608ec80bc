package pipeline

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"centrist/config"
	"centrist/internal/telemetry"
)

// FallbackArtifact is the terminal artifact of a run that gathered no
// articles from any source. Such a run never reaches synthesis.
func FallbackArtifact(query string) string {
	return fmt.Sprintf("No articles found for '%s' from any news source.", query)
}

// Pipeline drives one query end to end: fan the source list out through
// the scheduler, tally the per-source outcomes, and either synthesize a
// summary or emit the fallback artifact. Every run ends in exactly one
// terminal artifact.
type Pipeline struct {
	scheduler   *Scheduler
	synthesizer *Synthesizer
	sources     []config.SourceConfig
	sinks       []Sink
	telemetry   *telemetry.Telemetry
	logger      *log.Logger
}

func NewPipeline(scheduler *Scheduler, synthesizer *Synthesizer, sources []config.SourceConfig, sinks []Sink, tele *telemetry.Telemetry, logger *log.Logger) *Pipeline {
	if logger == nil {
		logger = log.New(log.Writer(), "[PIPELINE] ", log.LstdFlags)
	}
	return &Pipeline{
		scheduler:   scheduler,
		synthesizer: synthesizer,
		sources:     sources,
		sinks:       sinks,
		telemetry:   tele,
		logger:      logger,
	}
}

// Execute runs the full pipeline for one query. The returned Run is
// complete even on error paths that produced results; a synthesis
// failure is the only error this method surfaces besides sink failures.
func (p *Pipeline) Execute(ctx context.Context, query string) (Run, error) {
	return p.ExecuteAs(ctx, uuid.NewString(), query)
}

// ExecuteAs runs the pipeline under a caller-chosen run ID, letting
// callers hand out the ID before the run finishes.
func (p *Pipeline) ExecuteAs(ctx context.Context, id, query string) (Run, error) {
	run := Run{
		ID:        id,
		Query:     query,
		StartedAt: time.Now().UTC(),
	}

	p.logger.Printf("run %s: searching %d sources for %q", run.ID, len(p.sources), query)
	run.Results = p.scheduler.RunAll(ctx, p.sources, query)
	p.tally(run.Results)
	run.Outcome = Aggregate(run.Results)

	if !run.Outcome.Ready() {
		p.logger.Printf("run %s: no articles from any source", run.ID)
		run.Summary = FallbackArtifact(query)
		run.FinishedAt = time.Now().UTC()
		p.recordRun(telemetry.RunNoData, run)
		return run, p.save(ctx, run)
	}

	p.logger.Printf("run %s: synthesizing summary from %d article(s) across %d source(s)",
		run.ID, run.Outcome.TotalArticles, run.Outcome.ContributingSources)

	summary, err := p.synthesizer.Synthesize(ctx, run.Results, query)
	if err != nil {
		run.FinishedAt = time.Now().UTC()
		p.recordRun(telemetry.RunFailed, run)
		return run, err
	}
	run.Summary = summary
	run.FinishedAt = time.Now().UTC()
	p.recordRun(telemetry.RunCompleted, run)
	return run, p.save(ctx, run)
}

// tally logs a one-line verdict per source and feeds the per-source
// metrics. The symbols mirror the operator-facing report format.
func (p *Pipeline) tally(results []SourceResult) {
	for _, res := range results {
		switch {
		case len(res.Articles) > 0:
			p.logger.Printf("✓ Found %d article(s) from %s", len(res.Articles), res.Source)
			p.recordSource(res.Source, telemetry.SourceOK, len(res.Articles))
		case res.Error == TimeoutErrorMessage:
			p.logger.Printf("✗ No articles found from %s: %s", res.Source, res.Error)
			p.recordSource(res.Source, telemetry.SourceTimeout, 0)
		case res.Error != "":
			p.logger.Printf("✗ No articles found from %s: %s", res.Source, res.Error)
			p.recordSource(res.Source, telemetry.SourceError, 0)
		default:
			p.logger.Printf("✗ No articles found from %s", res.Source)
			p.recordSource(res.Source, telemetry.SourceEmpty, 0)
		}
	}
}

func (p *Pipeline) save(ctx context.Context, run Run) error {
	for _, sink := range p.sinks {
		if err := sink.Save(ctx, run); err != nil {
			return fmt.Errorf("saving run %s: %w", run.ID, err)
		}
	}
	return nil
}

func (p *Pipeline) recordRun(outcome string, run Run) {
	if p.telemetry == nil {
		return
	}
	p.telemetry.RecordRun(outcome, run.FinishedAt.Sub(run.StartedAt))
}

func (p *Pipeline) recordSource(source, outcome string, articles int) {
	if p.telemetry == nil {
		return
	}
	p.telemetry.RecordSource(source, outcome, articles)
}
