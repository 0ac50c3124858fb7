// Package executor implements the retry loop shared by every collection job.
// A job is retried on failure with a fixed delay between attempts; when all
// attempts are exhausted a single error notification is dispatched and the
// last error is returned to the caller.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shikwambipolly/how-is-bloomberg/internal/domain"
	"github.com/shikwambipolly/how-is-bloomberg/internal/notify"
)

// FetchFunc is one attempt of a collection job. It returns the observations
// gathered on success.
type FetchFunc func(ctx context.Context) ([]domain.Observation, error)

// Executor runs collection jobs under a retry policy. It is safe for
// concurrent use; each Execute call is independent.
type Executor struct {
	notifier *notify.Notifier
	logger   *slog.Logger
}

// NewExecutor creates an Executor that reports exhausted retries through the
// given notifier.
func NewExecutor(notifier *notify.Notifier, logger *slog.Logger) *Executor {
	return &Executor{
		notifier: notifier,
		logger:   logger.With(slog.String("component", "executor")),
	}
}

// Execute runs fn up to policy.MaxAttempts times, waiting policy.Delay
// between attempts. It returns the observations from the first successful
// attempt together with the number of attempts used.
//
// Every failure is retried identically; the transient/permanent class on a
// domain.SourceError shows up in the logs but does not change the loop.
// Context cancellation stops the loop without sending a notification; every
// other exhaustion dispatches exactly one retry_exhausted event. A failure to
// deliver that notification is logged and otherwise ignored so it never
// masks the job's own error.
func (e *Executor) Execute(ctx context.Context, op string, policy domain.RetryPolicy, fn FetchFunc) ([]domain.Observation, int, error) {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}

	log := e.logger.With(slog.String("job", op))

	var lastErr error
	attempt := 0
	for attempt < policy.MaxAttempts {
		attempt++

		obs, err := fn(ctx)
		if err == nil {
			log.InfoContext(ctx, "job succeeded",
				slog.Int("attempt", attempt),
				slog.Int("records", len(obs)),
			)
			return obs, attempt, nil
		}
		lastErr = err

		// A cancelled run is not a job failure; bail out quietly.
		if ctx.Err() != nil {
			log.WarnContext(ctx, "job cancelled",
				slog.Int("attempt", attempt),
			)
			return nil, attempt, ctx.Err()
		}

		log.WarnContext(ctx, "attempt failed",
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", policy.MaxAttempts),
			slog.Bool("retryable", domain.IsRetryable(err)),
			slog.String("error", err.Error()),
		)

		if attempt >= policy.MaxAttempts {
			break
		}

		if policy.Delay > 0 {
			log.InfoContext(ctx, "waiting before next attempt",
				slog.Duration("delay", policy.Delay),
			)
			select {
			case <-ctx.Done():
				return nil, attempt, ctx.Err()
			case <-time.After(policy.Delay):
			}
		}
	}

	e.notifyExhausted(ctx, op, attempt, policy.Delay, lastErr)

	return nil, attempt, fmt.Errorf("executor: %s failed after %d attempt(s): %w", op, attempt, lastErr)
}

// notifyExhausted dispatches the single failure notification for a job whose
// retries ran out.
func (e *Executor) notifyExhausted(ctx context.Context, op string, attempts int, delay time.Duration, lastErr error) {
	title := fmt.Sprintf("Error in %s job", op)

	body := fmt.Sprintf("The %s job failed after %d attempt(s).\n\nLast error:\n%v\n", op, attempts, lastErr)
	if attempts > 1 && delay > 0 {
		body += fmt.Sprintf("\nThis notification was sent after %d failed attempts with %s intervals.\n", attempts, formatDelay(delay))
	}

	if err := e.notifier.Notify(ctx, notify.EventRetryExhausted, title, body); err != nil {
		e.logger.ErrorContext(ctx, "failure notification not delivered",
			slog.String("job", op),
			slog.String("error", err.Error()),
		)
	}
}

// formatDelay renders a retry delay the way it reads in an email subject
// line, e.g. "15-minute".
func formatDelay(d time.Duration) string {
	if d%time.Minute == 0 {
		return fmt.Sprintf("%d-minute", int(d/time.Minute))
	}
	return d.String()
}
