package pipeline

import (
	"context"
	"time"

	"centrist/config"
)

// Article is one unit of extracted content attributed to an outlet.
// Immutable once constructed.
type Article struct {
	Source  string `json:"source"`
	Title   string `json:"title"`
	Content string `json:"content"`
	URL     string `json:"url"`
}

// RawArticle is a payload as yielded by the acquisition collaborator,
// before validation and attribution normalization.
type RawArticle struct {
	Source  string `json:"source"`
	Title   string `json:"title"`
	Content string `json:"content"`
	URL     string `json:"url"`
}

// SourceResult is the terminal outcome of one acquisition task. A task
// that errors or times out returns empty Articles and a non-empty Error;
// it never distinguishes partial success from full failure.
type SourceResult struct {
	Source   string    `json:"source"`
	Articles []Article `json:"articles"`
	Error    string    `json:"error,omitempty"`
}

// AggregateOutcome is derived from a result list, computed fresh each run.
type AggregateOutcome struct {
	TotalArticles       int      `json:"total_articles"`
	ContributingSources int      `json:"contributing_sources"`
	ContributorNames    []string `json:"contributor_names"`
}

// Run is the persistence envelope for one pipeline execution.
type Run struct {
	ID         string           `json:"id"`
	Query      string           `json:"query"`
	Results    []SourceResult   `json:"results"`
	Outcome    AggregateOutcome `json:"outcome"`
	Summary    string           `json:"summary"`
	StartedAt  time.Time        `json:"started_at"`
	FinishedAt time.Time        `json:"finished_at"`
}

// FinderSession holds whatever per-attempt resources the acquisition
// collaborator needs (typically a browser). Close releases them; it is
// called on every task exit path.
type FinderSession interface {
	Find(ctx context.Context, source config.SourceConfig, query string) ([]RawArticle, error)
	Close() error
}

// Finder is the acquisition collaborator for one outlet. The pipeline's
// only contract with it is the attribution correction and per-item
// validation applied in the task.
type Finder interface {
	Open(ctx context.Context) (FinderSession, error)
}

// TextGenerator is the synthesis collaborator. The call is single-shot:
// failures are not retried here.
type TextGenerator interface {
	GenerateWithTokens(ctx context.Context, prompt string, model string, options map[string]interface{}) (string, int64, int64, error)
	CalculateCost(inputTokens, outputTokens int64, model string) float64
}

// Sink persists the terminal artifact of a run.
type Sink interface {
	Save(ctx context.Context, run Run) error
}
