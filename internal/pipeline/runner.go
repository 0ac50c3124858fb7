// Package pipeline composes the daily collection workflows: each source
// adapter runs under the retry executor, its observations are validated
// against the configured bond list and written as the day's CSV, and the
// per-source results feed the closing-yields merge at the end of the run.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/shikwambipolly/how-is-bloomberg/internal/domain"
	"github.com/shikwambipolly/how-is-bloomberg/internal/executor"
)

// ObservationWriter persists one source's validated observations for a day.
type ObservationWriter interface {
	WriteObservations(source domain.Source, day time.Time, bonds domain.BondList, obs []domain.Observation) (string, error)
}

// Runner executes the collection workflow for one source: fetch under retry,
// validate, write. It is source-agnostic; the fetcher passed to Run decides
// which external system is collected.
type Runner struct {
	exec     *executor.Executor
	writer   ObservationWriter
	bonds    domain.BondList
	policy   domain.RetryPolicy
	runs     domain.RunStore         // nil when run history is disabled
	obsStore domain.ObservationStore // nil when run history is disabled
	logger   *slog.Logger
}

// NewRunner creates a Runner. runs and obsStore may be nil, in which case no
// run history is recorded.
func NewRunner(
	exec *executor.Executor,
	writer ObservationWriter,
	bonds domain.BondList,
	policy domain.RetryPolicy,
	runs domain.RunStore,
	obsStore domain.ObservationStore,
	logger *slog.Logger,
) *Runner {
	return &Runner{
		exec:     exec,
		writer:   writer,
		bonds:    bonds,
		policy:   policy,
		runs:     runs,
		obsStore: obsStore,
		logger:   logger.With(slog.String("component", "runner")),
	}
}

// Run collects one source for the given day. The fetch runs under the retry
// policy; on terminal failure the executor has already sent the notification,
// so Run only records the outcome and returns. On success the observations
// are validated (unconfigured bonds and records without any yield are
// dropped) and the survivors written. An empty validated set skips the writer
// so no zero-row file appears.
//
// The returned path is the written CSV file, empty when nothing was written.
// A failed workflow never panics or exits; the caller decides whether the
// failure is fatal.
func (r *Runner) Run(ctx context.Context, day time.Time, fetcher domain.Fetcher) (domain.WorkflowSummary, []domain.Observation, string) {
	source := fetcher.Source()
	started := time.Now().UTC()
	log := r.logger.With(slog.String("source", string(source)))

	log.InfoContext(ctx, "workflow starting",
		slog.Int("max_attempts", r.policy.MaxAttempts),
		slog.Duration("retry_delay", r.policy.Delay),
	)

	obs, attempts, err := r.exec.Execute(ctx, operationName(source), r.policy, fetcher.Fetch)
	if err != nil {
		summary := domain.WorkflowSummary{
			Source:       source,
			Succeeded:    false,
			AttemptsUsed: attempts,
			Err:          err.Error(),
		}
		if !errors.Is(err, context.Canceled) {
			log.ErrorContext(ctx, "workflow failed",
				slog.Int("attempts", attempts),
				slog.String("error", err.Error()),
			)
		}
		r.recordHistory(ctx, day, started, summary, nil)
		return summary, nil, ""
	}

	valid, dropped := validateObservations(r.bonds, obs, log)

	var path string
	if len(valid) > 0 {
		path, err = r.writer.WriteObservations(source, day, r.bonds, valid)
		if err != nil {
			summary := domain.WorkflowSummary{
				Source:       source,
				Succeeded:    false,
				RecordCount:  len(valid),
				AttemptsUsed: attempts,
				Dropped:      dropped,
				Err:          err.Error(),
			}
			log.ErrorContext(ctx, "workflow write failed",
				slog.String("error", err.Error()),
			)
			r.recordHistory(ctx, day, started, summary, nil)
			return summary, nil, ""
		}
	} else {
		log.WarnContext(ctx, "no valid observations, skipping write",
			slog.Int("fetched", len(obs)),
			slog.Int("dropped", dropped),
		)
	}

	summary := domain.WorkflowSummary{
		Source:       source,
		Succeeded:    true,
		RecordCount:  len(valid),
		AttemptsUsed: attempts,
		Dropped:      dropped,
	}
	log.InfoContext(ctx, "workflow succeeded",
		slog.Int("records", summary.RecordCount),
		slog.Int("dropped", summary.Dropped),
		slog.Int("attempts", summary.AttemptsUsed),
	)
	r.recordHistory(ctx, day, started, summary, valid)
	return summary, valid, path
}

// recordHistory persists the run record and its observations when the stores
// are wired. History is best-effort: a down database must not fail a
// collection that already succeeded.
func (r *Runner) recordHistory(ctx context.Context, day, started time.Time, summary domain.WorkflowSummary, obs []domain.Observation) {
	if r.runs == nil {
		return
	}

	rec := domain.RunRecord{
		ID:           uuid.New().String(),
		RunDate:      day,
		Source:       summary.Source,
		Succeeded:    summary.Succeeded,
		RecordCount:  summary.RecordCount,
		AttemptsUsed: summary.AttemptsUsed,
		Dropped:      summary.Dropped,
		Error:        summary.Err,
		StartedAt:    started,
		FinishedAt:   time.Now().UTC(),
	}
	if err := r.runs.Create(ctx, rec); err != nil {
		r.logger.WarnContext(ctx, "run history not recorded",
			slog.String("source", string(summary.Source)),
			slog.String("error", err.Error()),
		)
		return
	}

	if r.obsStore == nil || len(obs) == 0 {
		return
	}
	if err := r.obsStore.InsertBatch(ctx, rec.ID, obs); err != nil {
		r.logger.WarnContext(ctx, "observation archive not recorded",
			slog.String("run_id", rec.ID),
			slog.String("error", err.Error()),
		)
	}
}

// validateObservations applies the record invariants: the bond must be
// configured and at least one yield side present. Dropped records are counted
// and logged, never retried.
func validateObservations(bonds domain.BondList, obs []domain.Observation, log *slog.Logger) ([]domain.Observation, int) {
	valid := make([]domain.Observation, 0, len(obs))
	dropped := 0
	for _, o := range obs {
		if _, ok := bonds.ByID(o.BondID); !ok {
			log.Warn("observation dropped",
				slog.String("bond_id", o.BondID),
				slog.String("reason", domain.ErrUnknownBond.Error()),
			)
			dropped++
			continue
		}
		if !o.HasYield() {
			log.Warn("observation dropped",
				slog.String("bond_id", o.BondID),
				slog.String("reason", domain.ErrNoYields.Error()),
			)
			dropped++
			continue
		}
		valid = append(valid, o)
	}
	return valid, dropped
}

// operationName is the human name a source's job carries in logs and failure
// notifications.
func operationName(s domain.Source) string {
	switch s {
	case domain.SourceTerminal:
		return "terminal yields"
	case domain.SourceEmailReport:
		return "NSX report"
	case domain.SourceSpreadsheet:
		return "IJG daily"
	default:
		return string(s)
	}
}
