package server

import (
	"context"
	"log"
	"time"

	"github.com/gorhill/cronexpr"
	"github.com/redis/go-redis/v9"

	"centrist/internal/pipeline"
	"centrist/internal/store"
)

// runLockTTL bounds how long a standing-query lock can be held. A full
// run may take tens of minutes (every source can run to its timeout),
// so the lock must outlive the slowest possible run; it is released
// early the moment the run finishes.
const runLockTTL = time.Hour

type standingQuerySource interface {
	ListStandingQueries(ctx context.Context) ([]store.StandingQuery, error)
	LatestRunTime(ctx context.Context, query string) (*time.Time, error)
}

type queryRunner interface {
	Execute(ctx context.Context, query string) (pipeline.Run, error)
}

// runLocker serializes standing-query runs across instances.
type runLocker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) bool
	Release(ctx context.Context, key string)
}

// Scheduler re-runs standing queries on their cron schedules. A lock
// keeps multiple instances from firing the same query at once and is
// held until the run completes.
type Scheduler struct {
	Store    standingQuerySource
	Pipeline queryRunner
	Locker   runLocker
	Stop     chan struct{}
}

func (s *Scheduler) Start() {
	ticker := time.NewTicker(1 * time.Hour)
	go func() {
		for {
			select {
			case <-s.Stop:
				ticker.Stop()
				return
			case <-ticker.C:
				s.tick()
			}
		}
	}()
}

func (s *Scheduler) tick() {
	ctx := context.Background()
	queries, err := s.Store.ListStandingQueries(ctx)
	if err != nil {
		log.Printf("scheduler: listing standing queries: %v", err)
		return
	}
	for _, sq := range queries {
		last, err := s.Store.LatestRunTime(ctx, sq.Query)
		if err != nil {
			continue
		}
		if !isDue(sq.ScheduleCron, last) {
			continue
		}

		lockKey := "sched:lock:" + sq.ID
		if s.Locker != nil && !s.Locker.Acquire(ctx, lockKey, runLockTTL) {
			continue
		}

		go func(sq store.StandingQuery) {
			runCtx := context.Background()
			defer func() {
				if s.Locker != nil {
					s.Locker.Release(runCtx, lockKey)
				}
			}()
			if _, err := s.Pipeline.Execute(runCtx, sq.Query); err != nil {
				log.Printf("scheduler: run for %q failed: %v", sq.Query, err)
			}
		}(sq)
	}
}

// redisLocker implements runLocker with SetNX plus explicit delete.
type redisLocker struct {
	rdb *redis.Client
}

func (l *redisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) bool {
	ok, _ := l.rdb.SetNX(ctx, key, "1", ttl).Result()
	return ok
}

func (l *redisLocker) Release(ctx context.Context, key string) {
	l.rdb.Del(ctx, key)
}

// isDue determines whether a query with cronSpec should run now given
// its last run time. Supports "@daily", "@hourly", and standard cron
// expressions; an unparseable spec falls back to @daily.
func isDue(cronSpec string, last *time.Time) bool {
	now := time.Now()
	switch cronSpec {
	case "@daily":
		if last == nil {
			return true
		}
		return now.Sub(*last) >= 24*time.Hour
	case "@hourly":
		if last == nil {
			return true
		}
		return now.Sub(*last) >= time.Hour
	default:
		expr, err := cronexpr.Parse(cronSpec)
		if err != nil {
			if last == nil {
				return true
			}
			return now.Sub(*last) >= 24*time.Hour
		}
		if last == nil {
			return true
		}
		next := expr.Next(*last)
		return !next.After(now)
	}
}
