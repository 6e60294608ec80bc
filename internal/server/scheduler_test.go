package server

import (
	"context"
	"sync"
	"testing"
	"time"

	"centrist/internal/pipeline"
	"centrist/internal/store"
)

type stubQuerySource struct {
	queries []store.StandingQuery
}

func (s *stubQuerySource) ListStandingQueries(ctx context.Context) ([]store.StandingQuery, error) {
	return s.queries, nil
}

func (s *stubQuerySource) LatestRunTime(ctx context.Context, query string) (*time.Time, error) {
	return nil, nil
}

type stubQueryRunner struct {
	mu      sync.Mutex
	queries []string
	done    chan struct{}
}

func (r *stubQueryRunner) Execute(ctx context.Context, query string) (pipeline.Run, error) {
	r.mu.Lock()
	r.queries = append(r.queries, query)
	r.mu.Unlock()
	if r.done != nil {
		r.done <- struct{}{}
	}
	return pipeline.Run{Query: query}, nil
}

type stubLocker struct {
	mu       sync.Mutex
	held     map[string]bool
	ttls     []time.Duration
	released []string
}

func newStubLocker() *stubLocker { return &stubLocker{held: map[string]bool{}} }

func (l *stubLocker) Acquire(ctx context.Context, key string, ttl time.Duration) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] {
		return false
	}
	l.held[key] = true
	l.ttls = append(l.ttls, ttl)
	return true
}

func (l *stubLocker) Release(ctx context.Context, key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.held, key)
	l.released = append(l.released, key)
}

func TestTickHoldsLockUntilRunFinishes(t *testing.T) {
	locker := newStubLocker()
	runner := &stubQueryRunner{done: make(chan struct{}, 1)}
	sched := &Scheduler{
		Store:    &stubQuerySource{queries: []store.StandingQuery{{ID: "q1", Query: "elections", ScheduleCron: "@daily"}}},
		Pipeline: runner,
		Locker:   locker,
	}

	sched.tick()
	select {
	case <-runner.done:
	case <-time.After(2 * time.Second):
		t.Fatalf("run never fired")
	}

	locker.mu.Lock()
	ttl := locker.ttls[0]
	locker.mu.Unlock()
	if ttl < 30*time.Minute {
		t.Fatalf("lock TTL %s cannot outlive a full run", ttl)
	}

	deadline := time.After(2 * time.Second)
	for {
		locker.mu.Lock()
		released := len(locker.released)
		locker.mu.Unlock()
		if released == 1 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("lock never released after the run finished")
		default:
			time.Sleep(5 * time.Millisecond)
		}
	}
}

func TestTickSkipsLockedQuery(t *testing.T) {
	locker := newStubLocker()
	locker.held["sched:lock:q1"] = true
	runner := &stubQueryRunner{}
	sched := &Scheduler{
		Store:    &stubQuerySource{queries: []store.StandingQuery{{ID: "q1", Query: "elections", ScheduleCron: "@daily"}}},
		Pipeline: runner,
		Locker:   locker,
	}

	sched.tick()
	time.Sleep(50 * time.Millisecond)

	runner.mu.Lock()
	fired := len(runner.queries)
	runner.mu.Unlock()
	if fired != 0 {
		t.Fatalf("a locked query must not fire, got %d runs", fired)
	}
}

func TestIsDueNeverRan(t *testing.T) {
	for _, spec := range []string{"@daily", "@hourly", "0 9 * * *", "garbage"} {
		if !isDue(spec, nil) {
			t.Fatalf("query with no prior run must be due (spec %q)", spec)
		}
	}
}

func TestIsDueDaily(t *testing.T) {
	recent := time.Now().Add(-1 * time.Hour)
	old := time.Now().Add(-25 * time.Hour)
	if isDue("@daily", &recent) {
		t.Fatalf("daily query ran an hour ago, must not be due")
	}
	if !isDue("@daily", &old) {
		t.Fatalf("daily query ran 25h ago, must be due")
	}
}

func TestIsDueHourly(t *testing.T) {
	recent := time.Now().Add(-10 * time.Minute)
	old := time.Now().Add(-2 * time.Hour)
	if isDue("@hourly", &recent) {
		t.Fatalf("hourly query ran 10m ago, must not be due")
	}
	if !isDue("@hourly", &old) {
		t.Fatalf("hourly query ran 2h ago, must be due")
	}
}

func TestIsDueCronExpression(t *testing.T) {
	old := time.Now().Add(-48 * time.Hour)
	if !isDue("0 9 * * *", &old) {
		t.Fatalf("cron query two days stale must be due")
	}
}

func TestIsDueInvalidCronFallsBackToDaily(t *testing.T) {
	recent := time.Now().Add(-1 * time.Hour)
	if isDue("not a cron", &recent) {
		t.Fatalf("invalid cron must degrade to @daily behaviour")
	}
}
