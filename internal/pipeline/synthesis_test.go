package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"
)

type stubLLM struct {
	response string
	err      error
	prompt   string
	calls    int
}

func (s *stubLLM) GenerateWithTokens(ctx context.Context, prompt string, model string, options map[string]interface{}) (string, int64, int64, error) {
	s.calls++
	s.prompt = prompt
	if s.err != nil {
		return "", 0, 0, s.err
	}
	return s.response, 100, 50, nil
}

func (s *stubLLM) CalculateCost(inputTokens, outputTokens int64, model string) float64 {
	return 0.01
}

func TestSynthesizePromptStructure(t *testing.T) {
	llm := &stubLLM{response: "# Centrist Summary: budget\n..."}
	s := NewSynthesizer(llm, "gpt-4o", 5000, nil, quietLogger())

	results := []SourceResult{
		{Source: "BBC", Articles: []Article{{Source: "BBC", Title: "Budget passes", Content: "body text", URL: "https://bbc.com/a"}}},
		{Source: "CNN", Articles: nil, Error: "boom"},
	}
	if _, err := s.Synthesize(context.Background(), results, "budget"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, want := range []string{
		"### BBC ARTICLES ###",
		"--- Article 1 ---",
		"Title: Budget passes",
		"URL: https://bbc.com/a",
		`news articles about "budget"`,
		"# Centrist Summary: budget",
		"## Overview",
		"## Key Facts",
		"## Analysis",
		"## Different Perspectives",
		"## Sources",
		"500-1000 words",
	} {
		if !strings.Contains(llm.prompt, want) {
			t.Fatalf("prompt missing %q", want)
		}
	}
	if strings.Contains(llm.prompt, "### CNN ARTICLES ###") {
		t.Fatalf("non-contributing source leaked into prompt")
	}
}

func TestSynthesizeTruncatesLongContent(t *testing.T) {
	llm := &stubLLM{response: "summary"}
	s := NewSynthesizer(llm, "gpt-4o", 10, nil, quietLogger())

	long := strings.Repeat("x", 50)
	results := []SourceResult{{Source: "BBC", Articles: []Article{{Source: "BBC", Title: "T", Content: long, URL: "u"}}}}
	if _, err := s.Synthesize(context.Background(), results, "q"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(llm.prompt, strings.Repeat("x", 10)+"...") {
		t.Fatalf("expected content capped at 10 chars with ellipsis")
	}
	if strings.Contains(llm.prompt, strings.Repeat("x", 11)) {
		t.Fatalf("content exceeded the cap")
	}
}

func TestTruncatePreservesRuneBoundaries(t *testing.T) {
	llm := &stubLLM{response: "summary"}
	s := NewSynthesizer(llm, "gpt-4o", 4, nil, quietLogger())

	results := []SourceResult{{Source: "BBC", Articles: []Article{{Source: "BBC", Title: "T", Content: "héllo wörld", URL: "u"}}}}
	if _, err := s.Synthesize(context.Background(), results, "q"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !utf8.ValidString(llm.prompt) {
		t.Fatalf("truncation produced invalid UTF-8")
	}
	if !strings.Contains(llm.prompt, "héll...") {
		t.Fatalf("expected a 4-character cap counted in runes, prompt:\n%s", llm.prompt)
	}
}

func TestSynthesizeShortContentUntouched(t *testing.T) {
	llm := &stubLLM{response: "summary"}
	s := NewSynthesizer(llm, "gpt-4o", 5000, nil, quietLogger())

	results := []SourceResult{{Source: "BBC", Articles: []Article{{Source: "BBC", Title: "T", Content: "short body", URL: "u"}}}}
	if _, err := s.Synthesize(context.Background(), results, "q"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Contains(llm.prompt, "short body...") {
		t.Fatalf("content under the cap must not gain an ellipsis")
	}
}

func TestSynthesizeEmptyOutputFallsBack(t *testing.T) {
	llm := &stubLLM{response: "   \n"}
	s := NewSynthesizer(llm, "gpt-4o", 5000, nil, quietLogger())

	results := []SourceResult{{Source: "BBC", Articles: []Article{{Source: "BBC", Title: "T", Content: "C", URL: "u"}}}}
	out, err := s.Synthesize(context.Background(), results, "q")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != FallbackSummary {
		t.Fatalf("expected %q, got %q", FallbackSummary, out)
	}
}

func TestSynthesizeErrorIsTerminal(t *testing.T) {
	llm := &stubLLM{err: errors.New("rate limited")}
	s := NewSynthesizer(llm, "gpt-4o", 5000, nil, quietLogger())

	results := []SourceResult{{Source: "BBC", Articles: []Article{{Source: "BBC", Title: "T", Content: "C", URL: "u"}}}}
	if _, err := s.Synthesize(context.Background(), results, "q"); err == nil {
		t.Fatalf("expected generator error to surface")
	}
	if llm.calls != 1 {
		t.Fatalf("expected exactly one generation attempt, got %d", llm.calls)
	}
}
