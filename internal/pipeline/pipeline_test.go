package pipeline

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"centrist/config"
)

type captureSink struct {
	runs []Run
	err  error
}

func (s *captureSink) Save(ctx context.Context, run Run) error {
	if s.err != nil {
		return s.err
	}
	s.runs = append(s.runs, run)
	return nil
}

func newTestPipeline(runner Runner, llm *stubLLM, sink Sink) *Pipeline {
	sched := NewScheduler(runner, 2, 0, quietLogger())
	synth := NewSynthesizer(llm, "gpt-4o", 5000, nil, quietLogger())
	return NewPipeline(sched, synth, config.DefaultSources(), []Sink{sink}, nil, quietLogger())
}

func TestPipelineHappyPath(t *testing.T) {
	runner := &stubRunner{run: func(ctx context.Context, source config.SourceConfig, query string) SourceResult {
		return SourceResult{Source: source.Name, Articles: []Article{{Source: source.Name, Title: "t", Content: "c", URL: "u"}}}
	}}
	llm := &stubLLM{response: "balanced summary"}
	sink := &captureSink{}
	p := newTestPipeline(runner, llm, sink)

	run, err := p.Execute(context.Background(), "elections")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if run.Summary != "balanced summary" {
		t.Fatalf("unexpected summary: %q", run.Summary)
	}
	if run.Outcome.ContributingSources != 6 || run.Outcome.TotalArticles != 6 {
		t.Fatalf("unexpected outcome: %+v", run.Outcome)
	}
	if len(sink.runs) != 1 || sink.runs[0].ID != run.ID {
		t.Fatalf("expected the finished run to be persisted")
	}
	if run.ID == "" || run.FinishedAt.Before(run.StartedAt) {
		t.Fatalf("run envelope incomplete: %+v", run)
	}
}

func TestPipelineFallbackSkipsSynthesis(t *testing.T) {
	runner := &stubRunner{run: func(ctx context.Context, source config.SourceConfig, query string) SourceResult {
		return SourceResult{Source: source.Name, Error: "nothing found"}
	}}
	llm := &stubLLM{response: "should not be called"}
	sink := &captureSink{}
	p := newTestPipeline(runner, llm, sink)

	run, err := p.Execute(context.Background(), "obscure topic")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "No articles found for 'obscure topic' from any news source."
	if run.Summary != want {
		t.Fatalf("expected fallback artifact %q, got %q", want, run.Summary)
	}
	if llm.calls != 0 {
		t.Fatalf("generator must not run with zero contributors, got %d calls", llm.calls)
	}
	if len(sink.runs) != 1 {
		t.Fatalf("fallback runs must still be persisted")
	}
}

func TestPipelineSynthesisFailureSurfaces(t *testing.T) {
	runner := &stubRunner{run: func(ctx context.Context, source config.SourceConfig, query string) SourceResult {
		return SourceResult{Source: source.Name, Articles: []Article{{Source: source.Name, Title: "t", Content: "c", URL: "u"}}}
	}}
	llm := &stubLLM{err: errors.New("rate limited")}
	sink := &captureSink{}
	p := newTestPipeline(runner, llm, sink)

	_, err := p.Execute(context.Background(), "elections")
	if err == nil {
		t.Fatalf("expected synthesis failure to surface")
	}
	if !strings.Contains(err.Error(), "rate limited") {
		t.Fatalf("expected cause preserved, got %v", err)
	}
	if len(sink.runs) != 0 {
		t.Fatalf("a failed run must not be persisted as finished")
	}
}

func TestPipelineSinkErrorSurfaces(t *testing.T) {
	runner := &stubRunner{run: func(ctx context.Context, source config.SourceConfig, query string) SourceResult {
		return SourceResult{Source: source.Name, Articles: []Article{{Source: source.Name, Title: "t", Content: "c", URL: "u"}}}
	}}
	llm := &stubLLM{response: "summary"}
	sink := &captureSink{err: errors.New("disk full")}
	p := newTestPipeline(runner, llm, sink)

	if _, err := p.Execute(context.Background(), "elections"); err == nil {
		t.Fatalf("expected sink failure to surface")
	}
}

func TestPipelineDeterministicCollaboratorsGiveIdenticalRuns(t *testing.T) {
	runner := &stubRunner{run: func(ctx context.Context, source config.SourceConfig, query string) SourceResult {
		if source.Name == "CNN" {
			return SourceResult{Source: source.Name, Error: "boom"}
		}
		return SourceResult{Source: source.Name, Articles: []Article{{Source: source.Name, Title: "t", Content: "c", URL: "u"}}}
	}}
	llm := &stubLLM{response: "balanced summary"}
	p := newTestPipeline(runner, llm, &captureSink{})

	first, err := p.ExecuteAs(context.Background(), "run-a", "elections")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := p.ExecuteAs(context.Background(), "run-a", "elections")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !reflect.DeepEqual(first.Results, second.Results) {
		t.Fatalf("result lists diverged:\n%+v\n%+v", first.Results, second.Results)
	}
	if first.Summary != second.Summary {
		t.Fatalf("summaries diverged: %q vs %q", first.Summary, second.Summary)
	}
	if !reflect.DeepEqual(first.Outcome, second.Outcome) {
		t.Fatalf("outcomes diverged: %+v vs %+v", first.Outcome, second.Outcome)
	}
}

func TestPipelineExecuteAsUsesGivenID(t *testing.T) {
	runner := &stubRunner{run: func(ctx context.Context, source config.SourceConfig, query string) SourceResult {
		return SourceResult{Source: source.Name, Error: "nothing"}
	}}
	p := newTestPipeline(runner, &stubLLM{}, &captureSink{})

	run, err := p.ExecuteAs(context.Background(), "run-123", "q")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if run.ID != "run-123" {
		t.Fatalf("expected caller-chosen run ID, got %q", run.ID)
	}
}
