package redis_repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"centrist/internal/pipeline"
)

const (
	summaryKeyPrefix = "summary:run:"
	latestKeyPrefix  = "summary:latest:"
)

// ErrSummaryNotFound is returned on cache misses.
var ErrSummaryNotFound = errors.New("summary not found")

// CachedSummary is the cache entry served to readers while the
// Postgres archive holds the authoritative record.
type CachedSummary struct {
	RunID      string    `json:"run_id"`
	Query      string    `json:"query"`
	Summary    string    `json:"summary"`
	FinishedAt time.Time `json:"finished_at"`
}

// SummaryCache keeps recent summaries in Redis keyed both by run ID and
// by query (latest wins). It satisfies the pipeline's Sink contract so
// caching rides the same save path as durable storage.
type SummaryCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewSummaryCache(client *redis.Client, ttl time.Duration) *SummaryCache {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &SummaryCache{client: client, ttl: ttl}
}

func (c *SummaryCache) Save(ctx context.Context, run pipeline.Run) error {
	entry := CachedSummary{
		RunID:      run.ID,
		Query:      run.Query,
		Summary:    run.Summary,
		FinishedAt: run.FinishedAt,
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	if err := c.client.Set(ctx, summaryKeyPrefix+run.ID, data, c.ttl).Err(); err != nil {
		return err
	}
	return c.client.Set(ctx, latestKeyPrefix+run.Query, data, c.ttl).Err()
}

func (c *SummaryCache) GetByRunID(ctx context.Context, runID string) (CachedSummary, error) {
	return c.get(ctx, summaryKeyPrefix+runID)
}

func (c *SummaryCache) GetLatest(ctx context.Context, query string) (CachedSummary, error) {
	return c.get(ctx, latestKeyPrefix+query)
}

func (c *SummaryCache) get(ctx context.Context, key string) (CachedSummary, error) {
	val, err := c.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return CachedSummary{}, ErrSummaryNotFound
		}
		return CachedSummary{}, err
	}
	var entry CachedSummary
	if err := json.Unmarshal([]byte(val), &entry); err != nil {
		return CachedSummary{}, err
	}
	return entry, nil
}
