package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shikwambipolly/how-is-bloomberg/internal/domain"
)

// ObservationStore implements domain.ObservationStore using PostgreSQL.
type ObservationStore struct {
	pool *pgxpool.Pool
}

// NewObservationStore creates a new ObservationStore.
func NewObservationStore(pool *pgxpool.Pool) *ObservationStore {
	return &ObservationStore{pool: pool}
}

// InsertBatch archives a run's observations in a single round trip.
func (s *ObservationStore) InsertBatch(ctx context.Context, runID string, obs []domain.Observation) error {
	if len(obs) == 0 {
		return nil
	}

	const query = `
		INSERT INTO observations (run_id, bond_id, instrument_code, bid_yield, ask_yield, source, observed_at, sheet_origin)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	batch := &pgx.Batch{}
	for _, o := range obs {
		batch.Queue(query,
			runID, o.BondID, o.InstrumentCode, o.BidYield, o.AskYield,
			string(o.Source), o.ObservedAt, o.SheetOrigin,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range obs {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("postgres: insert observations for run %s: %w", runID, err)
		}
	}
	return nil
}

// ListByDate returns the observations recorded for one source on the given
// calendar day (UTC), oldest first.
func (s *ObservationStore) ListByDate(ctx context.Context, day time.Time, source domain.Source) ([]domain.Observation, error) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 1)

	const query = `
		SELECT bond_id, instrument_code, bid_yield, ask_yield, source, observed_at, sheet_origin
		FROM observations
		WHERE source = $1 AND observed_at >= $2 AND observed_at < $3
		ORDER BY observed_at, bond_id`

	rows, err := s.pool.Query(ctx, query, string(source), start, end)
	if err != nil {
		return nil, fmt.Errorf("postgres: query observations: %w", err)
	}
	defer rows.Close()

	var list []domain.Observation
	for rows.Next() {
		var o domain.Observation
		var src string
		if err := rows.Scan(
			&o.BondID, &o.InstrumentCode, &o.BidYield, &o.AskYield,
			&src, &o.ObservedAt, &o.SheetOrigin,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan observation: %w", err)
		}
		o.Source = domain.Source(src)
		list = append(list, o)
	}
	return list, rows.Err()
}

var _ domain.ObservationStore = (*ObservationStore)(nil)
