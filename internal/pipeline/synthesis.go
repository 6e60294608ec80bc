package pipeline

import (
	"context"
	"fmt"
	"log"
	"strings"

	"centrist/internal/telemetry"
)

// FallbackSummary is returned when the generator yields empty output.
const FallbackSummary = "No summary could be generated."

// Synthesizer collapses all contributing sources' articles into one
// balanced summary via a single text-generation call. The call has no
// retry: a generator failure is terminal for the run.
type Synthesizer struct {
	generator       TextGenerator
	model           string
	maxArticleChars int
	telemetry       *telemetry.Telemetry
	logger          *log.Logger
}

func NewSynthesizer(generator TextGenerator, model string, maxArticleChars int, tele *telemetry.Telemetry, logger *log.Logger) *Synthesizer {
	if maxArticleChars <= 0 {
		maxArticleChars = 5000
	}
	if logger == nil {
		logger = log.New(log.Writer(), "[SYNTH] ", log.LstdFlags)
	}
	return &Synthesizer{generator: generator, model: model, maxArticleChars: maxArticleChars, telemetry: tele, logger: logger}
}

// Synthesize builds one request from every contributing source's articles
// and returns the generator's output verbatim, or FallbackSummary when
// the generator produces nothing.
func (s *Synthesizer) Synthesize(ctx context.Context, results []SourceResult, query string) (string, error) {
	prompt := s.BuildPrompt(results, query)
	out, inTok, outTok, err := s.generator.GenerateWithTokens(ctx, prompt, s.model, map[string]interface{}{"temperature": 0.2})
	if err != nil {
		return "", fmt.Errorf("synthesis failed: %w", err)
	}
	if s.telemetry != nil {
		s.telemetry.RecordSynthesis(inTok+outTok, s.generator.CalculateCost(inTok, outTok, s.model))
	}
	if strings.TrimSpace(out) == "" {
		return FallbackSummary, nil
	}
	return out, nil
}

// BuildPrompt composes the synthesis request: per contributing source,
// each article's title, URL and body capped at maxArticleChars, followed
// by the fixed structural and neutrality instructions.
func (s *Synthesizer) BuildPrompt(results []SourceResult, query string) string {
	var articles strings.Builder
	for _, res := range results {
		if len(res.Articles) == 0 {
			continue
		}
		fmt.Fprintf(&articles, "\n\n### %s ARTICLES ###\n", res.Source)
		for i, a := range res.Articles {
			fmt.Fprintf(&articles, "\n--- Article %d ---\n", i+1)
			fmt.Fprintf(&articles, "Title: %s\n", a.Title)
			fmt.Fprintf(&articles, "URL: %s\n", a.URL)
			fmt.Fprintf(&articles, "Content:\n%s\n", truncate(a.Content, s.maxArticleChars))
		}
	}

	return fmt.Sprintf(`You are an objective news analyst. Your task is to create a centrist, balanced summary of news articles about "%s" from various sources.

Here are the articles from different news organizations (which may have different political biases or perspectives):
%s

Please analyze these articles and create a comprehensive but concise summary (500-1000 words) that:

1. Presents the key facts that appear across multiple sources
2. Identifies any significant differences in how the story is reported by different outlets
3. Avoids adopting any particular political slant or bias
4. Focuses on verifiable information rather than opinion or commentary
5. Presents a balanced view that readers of any political leaning would find fair

Format your summary as follows:

# Centrist Summary: %s

## Overview
[1-2 paragraphs providing a high-level overview of the story]

## Key Facts
[The main facts of the story that appear across multiple sources]

## Analysis
[Deeper analysis of the situation, including context and implications]

## Different Perspectives
[Brief notes on how different sources covered the story differently, if applicable]

## Sources
[List of sources used for this summary]
`, query, articles.String(), query)
}

// truncate applies a hard character cap, not sentence-aware. The cap
// counts runes, never splitting a multibyte character.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}
