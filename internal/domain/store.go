package domain

import (
	"context"
	"time"
)

// RunStore persists workflow run history.
type RunStore interface {
	Create(ctx context.Context, rec RunRecord) error
	ListRecent(ctx context.Context, limit int) ([]RunRecord, error)
	LastSuccess(ctx context.Context, source Source) (RunRecord, error)
}

// ObservationStore archives the validated observations of each run.
type ObservationStore interface {
	InsertBatch(ctx context.Context, runID string, obs []Observation) error
	ListByDate(ctx context.Context, day time.Time, source Source) ([]Observation, error)
}
