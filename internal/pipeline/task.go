package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"centrist/config"
)

// TimeoutErrorMessage is the error recorded when a task exceeds its
// wall-clock budget.
const TimeoutErrorMessage = "Timeout occurred while searching"

// TaskRunner executes one acquisition attempt against one outlet. Run
// always returns a SourceResult; collaborator failures, timeouts and
// panics are converted to data, never propagated.
type TaskRunner struct {
	finder  Finder
	timeout time.Duration
	logger  *log.Logger
}

func NewTaskRunner(finder Finder, timeout time.Duration, logger *log.Logger) *TaskRunner {
	if logger == nil {
		logger = log.New(log.Writer(), "[TASK] ", log.LstdFlags)
	}
	return &TaskRunner{finder: finder, timeout: timeout, logger: logger}
}

type findOutcome struct {
	raw []RawArticle
	err error
}

// Run searches one outlet for the query, bounded by the runner's timeout.
func (r *TaskRunner) Run(ctx context.Context, source config.SourceConfig, query string) SourceResult {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	sess, err := r.finder.Open(ctx)
	if err != nil {
		r.logger.Printf("error searching %s: %v", source.Name, err)
		return SourceResult{Source: source.Name, Articles: []Article{}, Error: err.Error()}
	}
	defer func() {
		if cerr := sess.Close(); cerr != nil {
			// A failed release must not mask the task's primary result.
			r.logger.Printf("error closing session for %s: %v", source.Name, cerr)
		}
	}()

	// The collaborator runs in its own goroutine so a hung session cannot
	// hold the task past its deadline; on timeout the in-flight work is
	// abandoned and the deferred Close reclaims its resources.
	done := make(chan findOutcome, 1)
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				done <- findOutcome{err: fmt.Errorf("acquisition panicked: %v", rec)}
			}
		}()
		raw, ferr := sess.Find(ctx, source, query)
		done <- findOutcome{raw: raw, err: ferr}
	}()

	select {
	case <-ctx.Done():
		return r.expired(ctx, source.Name)
	case out := <-done:
		if out.err != nil {
			if ctx.Err() != nil {
				return r.expired(ctx, source.Name)
			}
			r.logger.Printf("error searching %s: %v", source.Name, out.err)
			return SourceResult{Source: source.Name, Articles: []Article{}, Error: out.err.Error()}
		}
		return SourceResult{Source: source.Name, Articles: r.validate(source.Name, out.raw)}
	}
}

// expired classifies a dead context: only the task's own deadline is a
// timeout; cancellation from above (shutdown, Ctrl-C) is reported as
// what it is.
func (r *TaskRunner) expired(ctx context.Context, sourceName string) SourceResult {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		r.logger.Printf("timeout searching %s", sourceName)
		return SourceResult{Source: sourceName, Articles: []Article{}, Error: TimeoutErrorMessage}
	}
	r.logger.Printf("search cancelled for %s: %v", sourceName, ctx.Err())
	return SourceResult{Source: sourceName, Articles: []Article{}, Error: ctx.Err().Error()}
}

// validate turns raw payloads into Articles. Malformed payloads are
// dropped individually; attribution is corrected to the task's outlet,
// which is the single point of truth for it.
func (r *TaskRunner) validate(sourceName string, raw []RawArticle) []Article {
	articles := make([]Article, 0, len(raw))
	for _, a := range raw {
		if err := validateRaw(a); err != nil {
			r.logger.Printf("error parsing article from %s: %v", sourceName, err)
			continue
		}
		articles = append(articles, Article{
			Source:  sourceName,
			Title:   a.Title,
			Content: a.Content,
			URL:     a.URL,
		})
	}
	return articles
}

func validateRaw(a RawArticle) error {
	if strings.TrimSpace(a.Title) == "" {
		return fmt.Errorf("missing title")
	}
	if strings.TrimSpace(a.URL) == "" {
		return fmt.Errorf("missing url")
	}
	if strings.TrimSpace(a.Content) == "" {
		return fmt.Errorf("missing content")
	}
	return nil
}
