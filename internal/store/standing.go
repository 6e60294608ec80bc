package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// StandingQuery is a query the scheduler re-runs on a cron schedule.
type StandingQuery struct {
	ID           string    `json:"id"`
	Query        string    `json:"query"`
	ScheduleCron string    `json:"schedule_cron"`
	CreatedAt    time.Time `json:"created_at"`
}

// IsUniqueViolation reports whether err is a Postgres unique constraint
// failure, which for standing queries means the query already exists.
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

func (s *Store) CreateStandingQuery(ctx context.Context, query, cron string) (StandingQuery, error) {
	sq := StandingQuery{
		ID:           uuid.NewString(),
		Query:        query,
		ScheduleCron: cron,
		CreatedAt:    time.Now().UTC(),
	}
	if sq.ScheduleCron == "" {
		sq.ScheduleCron = "@daily"
	}
	_, err := s.DB.ExecContext(ctx, `
INSERT INTO standing_queries (id, query, schedule_cron, created_at) VALUES ($1,$2,$3,$4)
`, sq.ID, sq.Query, sq.ScheduleCron, sq.CreatedAt)
	return sq, err
}

func (s *Store) ListStandingQueries(ctx context.Context) ([]StandingQuery, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT id, query, schedule_cron, created_at FROM standing_queries ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []StandingQuery
	for rows.Next() {
		var sq StandingQuery
		if err := rows.Scan(&sq.ID, &sq.Query, &sq.ScheduleCron, &sq.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, sq)
	}
	return out, rows.Err()
}

func (s *Store) DeleteStandingQuery(ctx context.Context, id string) error {
	_, err := s.DB.ExecContext(ctx, `DELETE FROM standing_queries WHERE id=$1`, id)
	return err
}
