package pipeline

import (
	"context"
	"log"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"centrist/config"
)

// Runner executes one acquisition attempt. It always returns a result;
// it never returns an error to the scheduler.
type Runner interface {
	Run(ctx context.Context, source config.SourceConfig, query string) SourceResult
}

// Scheduler fans the source list out in fixed-size batches so that at
// most BatchSize acquisition tasks (and therefore browser sessions) are
// in flight at any instant, with a pause between batches to throttle the
// request rate against upstream anti-automation defenses.
type Scheduler struct {
	runner    Runner
	batchSize int
	delay     time.Duration
	logger    *log.Logger
}

func NewScheduler(runner Runner, batchSize int, delay time.Duration, logger *log.Logger) *Scheduler {
	if batchSize < 1 {
		batchSize = 1
	}
	if logger == nil {
		logger = log.New(log.Writer(), "[SCHED] ", log.LstdFlags)
	}
	return &Scheduler{runner: runner, batchSize: batchSize, delay: delay, logger: logger}
}

// RunAll runs one task per source and returns exactly one SourceResult
// per input source, in input order. A task's failure never cancels its
// siblings or any later batch; fan-in reassociates results by original
// index, not completion order.
func (s *Scheduler) RunAll(ctx context.Context, sources []config.SourceConfig, query string) []SourceResult {
	results := make([]SourceResult, len(sources))

	batchNum := 0
	for start := 0; start < len(sources); start += s.batchSize {
		end := start + s.batchSize
		if end > len(sources) {
			end = len(sources)
		}
		batch := sources[start:end]
		batchNum++

		names := make([]string, len(batch))
		for i, src := range batch {
			names[i] = src.Name
		}
		s.logger.Printf("processing batch %d: %s", batchNum, strings.Join(names, ", "))

		var g errgroup.Group
		g.SetLimit(s.batchSize)
		for i, src := range batch {
			idx := start + i
			src := src
			g.Go(func() error {
				s.logger.Printf("searching for %q articles from %s...", query, src.Name)
				results[idx] = s.runner.Run(ctx, src, query)
				return nil
			})
		}
		// Tasks convert every failure to data, so Wait only synchronizes.
		_ = g.Wait()

		s.logger.Printf("completed batch %d", batchNum)

		if end < len(sources) {
			s.pause(ctx)
		}
	}

	return results
}

// pause blocks the scheduler's progression to the next batch. It is a
// plain scheduling delay, cut short only by context cancellation.
func (s *Scheduler) pause(ctx context.Context) {
	if s.delay <= 0 {
		return
	}
	t := time.NewTimer(s.delay)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}
