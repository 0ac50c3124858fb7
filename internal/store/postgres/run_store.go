package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shikwambipolly/how-is-bloomberg/internal/domain"
)

// RunStore implements domain.RunStore using PostgreSQL.
type RunStore struct {
	pool *pgxpool.Pool
}

// NewRunStore creates a new RunStore.
func NewRunStore(pool *pgxpool.Pool) *RunStore {
	return &RunStore{pool: pool}
}

// Create inserts one run-history row.
func (s *RunStore) Create(ctx context.Context, rec domain.RunRecord) error {
	const query = `
		INSERT INTO runs (id, run_date, source, succeeded, record_count, attempts_used, dropped, error, started_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err := s.pool.Exec(ctx, query,
		rec.ID, rec.RunDate, string(rec.Source), rec.Succeeded, rec.RecordCount,
		rec.AttemptsUsed, rec.Dropped, rec.Error, rec.StartedAt, rec.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: create run %s: %w", rec.ID, err)
	}
	return nil
}

// ListRecent returns the most recent runs, newest first.
func (s *RunStore) ListRecent(ctx context.Context, limit int) ([]domain.RunRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	const query = `
		SELECT id, run_date, source, succeeded, record_count, attempts_used, dropped, error, started_at, finished_at
		FROM runs ORDER BY started_at DESC LIMIT $1`
	return s.queryRuns(ctx, query, limit)
}

// LastSuccess returns the most recent successful run for the given source.
func (s *RunStore) LastSuccess(ctx context.Context, source domain.Source) (domain.RunRecord, error) {
	const query = `
		SELECT id, run_date, source, succeeded, record_count, attempts_used, dropped, error, started_at, finished_at
		FROM runs WHERE source = $1 AND succeeded ORDER BY started_at DESC LIMIT 1`
	recs, err := s.queryRuns(ctx, query, string(source))
	if err != nil {
		return domain.RunRecord{}, err
	}
	if len(recs) == 0 {
		return domain.RunRecord{}, fmt.Errorf("postgres: last success for %s: %w", source, domain.ErrNotFound)
	}
	return recs[0], nil
}

func (s *RunStore) queryRuns(ctx context.Context, query string, args ...any) ([]domain.RunRecord, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("postgres: query runs: %w", err)
	}
	defer rows.Close()

	var list []domain.RunRecord
	for rows.Next() {
		var rec domain.RunRecord
		var source string
		if err := rows.Scan(
			&rec.ID, &rec.RunDate, &source, &rec.Succeeded, &rec.RecordCount,
			&rec.AttemptsUsed, &rec.Dropped, &rec.Error, &rec.StartedAt, &rec.FinishedAt,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan run: %w", err)
		}
		rec.Source = domain.Source(source)
		list = append(list, rec)
	}
	return list, rows.Err()
}

var _ domain.RunStore = (*RunStore)(nil)
