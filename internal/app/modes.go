package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shikwambipolly/how-is-bloomberg/internal/crypto"
	"github.com/shikwambipolly/how-is-bloomberg/internal/domain"
	"github.com/shikwambipolly/how-is-bloomberg/internal/executor"
	"github.com/shikwambipolly/how-is-bloomberg/internal/pipeline"
	"github.com/shikwambipolly/how-is-bloomberg/internal/platform/ijg"
	"github.com/shikwambipolly/how-is-bloomberg/internal/platform/nsx"
	"github.com/shikwambipolly/how-is-bloomberg/internal/platform/terminal"
	"github.com/shikwambipolly/how-is-bloomberg/internal/report"
)

// AllMode runs the full daily sequence: the three collection workflows in
// fixed order, the closing-yields merge when all of them succeed, the
// end-of-run report, and output archival. Individual workflow failures are
// notified inside the run and never surface as a process error.
func (a *App) AllMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full collection run")

	a.logRunHistory(ctx, deps)

	orch := a.newOrchestrator(deps)
	if err := orch.Run(ctx); err != nil {
		return fmt.Errorf("all mode: %w", err)
	}
	return nil
}

// TerminalMode collects only the terminal yields. The process exits non-zero
// when the workflow terminally fails, so a scheduler can re-fire just this
// source.
func (a *App) TerminalMode(ctx context.Context, deps *Dependencies) error {
	return a.runSingle(ctx, deps, a.terminalSource(deps))
}

// NSXMode collects only the emailed exchange report.
func (a *App) NSXMode(ctx context.Context, deps *Dependencies) error {
	return a.runSingle(ctx, deps, a.nsxSource(deps))
}

// IJGMode collects only the broker daily workbook.
func (a *App) IJGMode(ctx context.Context, deps *Dependencies) error {
	return a.runSingle(ctx, deps, a.ijgSource(deps))
}

// ClosingMode redoes the closing-yields merge and calculator update for
// today without the retry loop. It is the recovery path for an afternoon
// where the collections landed but the merge did not.
func (a *App) ClosingMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting closing-yields recovery run")

	orch := a.newOrchestrator(deps)
	if err := orch.RunClosing(ctx); err != nil {
		return fmt.Errorf("closing mode: %w", err)
	}
	return nil
}

// runSingle executes one collection workflow and maps its terminal failure
// to a process error. The failure notification has already been sent inside
// the retry executor.
func (a *App) runSingle(ctx context.Context, deps *Dependencies, fetcher domain.Fetcher) error {
	source := fetcher.Source()
	a.logger.InfoContext(ctx, "starting single collection",
		slog.String("source", string(source)),
	)

	a.logLastSuccess(ctx, deps, source)

	summary, _, path := a.newRunner(deps).Run(ctx, time.Now(), fetcher)
	if !summary.Succeeded {
		return fmt.Errorf("app: %s collection failed: %s", source, summary.Err)
	}

	if deps.Archiver != nil && path != "" {
		if _, err := deps.Archiver.ArchiveRun(ctx, time.Now(), []string{path}); err != nil {
			a.logger.WarnContext(ctx, "output not archived",
				slog.String("path", path),
				slog.String("error", err.Error()),
			)
		}
	}

	a.logger.InfoContext(ctx, "single collection finished",
		slog.String("source", string(source)),
		slog.Int("records", summary.RecordCount),
		slog.Int("attempts", summary.AttemptsUsed),
	)
	return nil
}

// newRunner builds the workflow runner from configuration: the retry
// executor wired to the notifier, the CSV writer, and optional run history.
func (a *App) newRunner(deps *Dependencies) *pipeline.Runner {
	exec := executor.NewExecutor(deps.Notifier, a.logger)
	writer := report.NewWriter(a.cfg.Output.Dir, a.logger)
	policy := domain.RetryPolicy{
		MaxAttempts: a.cfg.Collect.MaxAttempts,
		Delay:       a.cfg.Collect.RetryDelay.Duration,
	}
	return pipeline.NewRunner(exec, writer, deps.Bonds, policy,
		deps.RunStore, deps.ObservationStore, a.logger)
}

// newOrchestrator assembles the full daily pipeline.
func (a *App) newOrchestrator(deps *Dependencies) *pipeline.Orchestrator {
	writer := report.NewWriter(a.cfg.Output.Dir, a.logger)

	return pipeline.NewOrchestrator(pipeline.OrchestratorConfig{
		Runner:              a.newRunner(deps),
		Terminal:            a.terminalSource(deps),
		NSX:                 a.nsxSource(deps),
		IJG:                 a.ijgSource(deps),
		Merger:              pipeline.NewClosingMerger(a.logger),
		Writer:              writer,
		Calculator:          report.NewCalculator(a.cfg.Sources.CalculatorPath, a.logger),
		Notifier:            deps.Notifier,
		Bonds:               deps.Bonds,
		Locks:               deps.LockManager,
		LockTTL:             a.cfg.Redis.LockTTL.Duration,
		Archiver:            deps.Archiver,
		Observations:        deps.ObservationStore,
		SkipNonBusinessDays: a.cfg.Collect.SkipNonBusinessDays,
	}, a.logger)
}

// terminalSource builds the terminal gateway adapter. The handshake is
// HMAC-signed only when an API key pair is configured.
func (a *App) terminalSource(deps *Dependencies) *terminal.Source {
	var auth *crypto.HMACAuth
	if a.cfg.Terminal.ApiKey != "" && a.cfg.Terminal.ApiSecret != "" {
		auth = &crypto.HMACAuth{
			Key:    a.cfg.Terminal.ApiKey,
			Secret: a.cfg.Terminal.ApiSecret,
		}
	}
	client := terminal.NewClient(a.cfg.Terminal.Addr(), auth, a.cfg.Terminal.RequestTimeout.Duration)
	return terminal.NewSource(client, deps.Bonds, a.logger)
}

// nsxSource builds the mailbox adapter for the exchange's daily report.
func (a *App) nsxSource(deps *Dependencies) *nsx.Source {
	client := nsx.NewClient(a.cfg.Mail.ApiBase, a.cfg.Mail.ApiToken)
	lookback := time.Duration(a.cfg.Sources.LookbackHours) * time.Hour
	return nsx.NewSource(client, deps.Bonds,
		a.cfg.Sources.ReportSender, a.cfg.Sources.ReportAttachment, lookback, a.logger)
}

// ijgSource builds the local workbook adapter.
func (a *App) ijgSource(deps *Dependencies) *ijg.Source {
	return ijg.NewSource(a.cfg.Sources.IJGDailyPath, deps.Bonds, a.logger)
}

// logRunHistory logs the most recent recorded runs so a restarted scheduler
// shows its continuity in one place. History is informational only.
func (a *App) logRunHistory(ctx context.Context, deps *Dependencies) {
	if deps.RunStore == nil {
		return
	}
	recent, err := deps.RunStore.ListRecent(ctx, 3)
	if err != nil {
		a.logger.WarnContext(ctx, "run history unavailable",
			slog.String("error", err.Error()),
		)
		return
	}
	for _, rec := range recent {
		a.logger.InfoContext(ctx, "previous run",
			slog.String("run_date", rec.RunDate.Format("2006-01-02")),
			slog.String("source", string(rec.Source)),
			slog.Bool("succeeded", rec.Succeeded),
			slog.Int("records", rec.RecordCount),
		)
	}
}

// logLastSuccess logs when this source last produced data, which is the
// first thing an operator wants to know when re-firing a failed workflow.
func (a *App) logLastSuccess(ctx context.Context, deps *Dependencies, source domain.Source) {
	if deps.RunStore == nil {
		return
	}
	rec, err := deps.RunStore.LastSuccess(ctx, source)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.logger.InfoContext(ctx, "no prior successful run recorded",
				slog.String("source", string(source)),
			)
		} else {
			a.logger.WarnContext(ctx, "run history unavailable",
				slog.String("error", err.Error()),
			)
		}
		return
	}
	a.logger.InfoContext(ctx, "last successful run",
		slog.String("source", string(source)),
		slog.String("run_date", rec.RunDate.Format("2006-01-02")),
		slog.Int("records", rec.RecordCount),
	)
}
