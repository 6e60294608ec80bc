package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"centrist/config"
	"centrist/internal/pipeline"
)

// ErrRunNotFound is returned when a run ID has no row.
var ErrRunNotFound = errors.New("run not found")

// Store persists runs in Postgres. It satisfies the pipeline's Sink
// contract, so a run is archived the moment the pipeline finishes it.
type Store struct {
	DB *sql.DB
}

func New(ctx context.Context, cfg config.PostgresConfig) (*Store, error) {
	return NewWithDSN(ctx, cfg.DSN())
}

// NewWithDSN constructs the Store using an explicit Postgres DSN.
func NewWithDSN(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}
	return &Store{DB: db}, nil
}

// RunRecord is the stored shape of one pipeline run.
type RunRecord struct {
	ID                  string                  `json:"id"`
	Query               string                  `json:"query"`
	Summary             string                  `json:"summary"`
	TotalArticles       int                     `json:"total_articles"`
	ContributingSources int                     `json:"contributing_sources"`
	Results             []pipeline.SourceResult `json:"results"`
	StartedAt           time.Time               `json:"started_at"`
	FinishedAt          time.Time               `json:"finished_at"`
}

// Save archives a finished run. Saving the same run ID again replaces
// the stored row, so retried persistence is harmless.
func (s *Store) Save(ctx context.Context, run pipeline.Run) error {
	results, err := json.Marshal(run.Results)
	if err != nil {
		return fmt.Errorf("marshal results: %w", err)
	}
	_, err = s.DB.ExecContext(ctx, `
INSERT INTO runs (id, query, summary, total_articles, contributing_sources, results, started_at, finished_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
ON CONFLICT (id) DO UPDATE SET
  summary = EXCLUDED.summary,
  total_articles = EXCLUDED.total_articles,
  contributing_sources = EXCLUDED.contributing_sources,
  results = EXCLUDED.results,
  finished_at = EXCLUDED.finished_at
`, run.ID, run.Query, run.Summary, run.Outcome.TotalArticles, run.Outcome.ContributingSources, results, run.StartedAt, run.FinishedAt)
	return err
}

func (s *Store) GetRun(ctx context.Context, id string) (RunRecord, error) {
	var rec RunRecord
	var results []byte
	err := s.DB.QueryRowContext(ctx, `
SELECT id, query, summary, total_articles, contributing_sources, results, started_at, finished_at
FROM runs WHERE id=$1`, id).Scan(
		&rec.ID, &rec.Query, &rec.Summary, &rec.TotalArticles, &rec.ContributingSources, &results, &rec.StartedAt, &rec.FinishedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return RunRecord{}, ErrRunNotFound
	}
	if err != nil {
		return RunRecord{}, err
	}
	if err := json.Unmarshal(results, &rec.Results); err != nil {
		return RunRecord{}, fmt.Errorf("unmarshal results: %w", err)
	}
	return rec, nil
}

// ListRecent returns the newest runs, summaries omitted, newest first.
func (s *Store) ListRecent(ctx context.Context, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.DB.QueryContext(ctx, `
SELECT id, query, total_articles, contributing_sources, started_at, finished_at
FROM runs ORDER BY started_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []RunRecord
	for rows.Next() {
		var rec RunRecord
		if err := rows.Scan(&rec.ID, &rec.Query, &rec.TotalArticles, &rec.ContributingSources, &rec.StartedAt, &rec.FinishedAt); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// LatestRunTime returns the start time of the newest run for a query,
// or nil when the query has never run.
func (s *Store) LatestRunTime(ctx context.Context, query string) (*time.Time, error) {
	var t time.Time
	err := s.DB.QueryRowContext(ctx, `SELECT started_at FROM runs WHERE query=$1 ORDER BY started_at DESC LIMIT 1`, query).Scan(&t)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}
