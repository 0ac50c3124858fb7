package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shikwambipolly/how-is-bloomberg/internal/calendar"
	"github.com/shikwambipolly/how-is-bloomberg/internal/domain"
	"github.com/shikwambipolly/how-is-bloomberg/internal/notify"
)

// ReportSource is a fetcher that retains the exchange trading rows of its
// last successful fetch for the closing merge.
type ReportSource interface {
	domain.Fetcher
	Report() []domain.TradingRow
}

// DailySource is a fetcher that retains the broker GI and GC rows of its
// last successful fetch.
type DailySource interface {
	domain.Fetcher
	GIRows() []domain.YieldRow
	GCRows() []domain.SpreadRow
}

// ClosingWriter persists the merged closing-yield rows.
type ClosingWriter interface {
	WriteClosingYields(day time.Time, rows []domain.ClosingYield) (string, error)
}

// CalculatorUpdater appends the day's closing yields to the downstream
// pricing workbook.
type CalculatorUpdater interface {
	Enabled() bool
	Path() string
	AppendClosingYields(day time.Time, rows []domain.ClosingYield) error
}

// OrchestratorConfig bundles the components of a full collection run. Locks,
// Archiver, and Observations may be nil, disabling run locking, output
// archival, and the archive-backed closing recovery respectively.
type OrchestratorConfig struct {
	Runner       *Runner
	Terminal     domain.Fetcher
	NSX          ReportSource
	IJG          DailySource
	Merger       *ClosingMerger
	Writer       ClosingWriter
	Calculator   CalculatorUpdater
	Notifier     *notify.Notifier
	Bonds        domain.BondList
	Locks        domain.LockManager
	LockTTL      time.Duration
	Archiver     domain.Archiver
	Observations domain.ObservationStore

	// SkipNonBusinessDays makes Run a no-op on weekends and public holidays.
	SkipNonBusinessDays bool
}

// Orchestrator sequences the three collection workflows and the closing
// steps of a daily run. Workflows run strictly one after another: the
// terminal gateway is a single stateful connection, and sequential execution
// keeps log and notification order deterministic. A failed workflow never
// stops the run; its failure has already been notified by the executor.
type Orchestrator struct {
	cfg    OrchestratorConfig
	logger *slog.Logger
	now    func() time.Time
}

// NewOrchestrator creates an Orchestrator.
func NewOrchestrator(cfg OrchestratorConfig, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "orchestrator")),
		now:    time.Now,
	}
}

// closingStatus tracks the closing-yields step for the run report.
type closingStatus struct {
	ok      bool
	skipped bool
	count   int
	err     string
}

// Run executes one full collection day: terminal, then the exchange report,
// then the broker workbook, each under the retry policy. When all three
// succeed the closing yields are merged, written, and pushed into the
// calculator workbook. The run always ends with one report notification and,
// when an archiver is wired, an upload of the day's output files.
//
// Run returns an error only when the run itself could not proceed (held run
// lock, cancellation); individual workflow failures are reported, not
// returned.
func (o *Orchestrator) Run(ctx context.Context) error {
	day := o.now()

	if o.cfg.SkipNonBusinessDays && !calendar.IsBusinessDay(day) {
		o.logger.Info("not a business day, skipping run",
			slog.String("date", day.Format("2006-01-02")),
		)
		return nil
	}

	if o.cfg.Locks != nil {
		unlock, err := o.cfg.Locks.Acquire(ctx, runLockKey(day), o.cfg.LockTTL)
		if err != nil {
			if errors.Is(err, domain.ErrLockHeld) {
				return fmt.Errorf("pipeline: run for %s already in progress: %w", day.Format("2006-01-02"), err)
			}
			return fmt.Errorf("pipeline: acquire run lock: %w", err)
		}
		defer unlock()
	}

	o.logger.InfoContext(ctx, "collection run starting",
		slog.String("date", day.Format("2006-01-02")),
	)

	var (
		summaries   []domain.WorkflowSummary
		files       []string
		terminalObs []domain.Observation
	)
	for _, fetcher := range []domain.Fetcher{o.cfg.Terminal, o.cfg.NSX, o.cfg.IJG} {
		summary, obs, path := o.cfg.Runner.Run(ctx, day, fetcher)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		summaries = append(summaries, summary)
		if path != "" {
			files = append(files, path)
		}
		if summary.Source == domain.SourceTerminal {
			terminalObs = obs
		}
	}

	allOK := true
	for _, s := range summaries {
		allOK = allOK && s.Succeeded
	}

	closing := closingStatus{skipped: !allOK}
	if allOK {
		rows := o.cfg.Merger.Merge(day, o.cfg.Bonds, terminalObs,
			o.cfg.NSX.Report(), o.cfg.IJG.GIRows(), o.cfg.IJG.GCRows())

		path, err := o.cfg.Writer.WriteClosingYields(day, rows)
		if err != nil {
			o.logger.ErrorContext(ctx, "closing yields not written",
				slog.String("error", err.Error()),
			)
			closing.err = err.Error()
		} else {
			closing.ok = true
			closing.count = len(rows)
			if path != "" {
				files = append(files, path)
			}
			if o.updateCalculator(ctx, day, rows) == nil && o.cfg.Calculator != nil && o.cfg.Calculator.Enabled() {
				files = append(files, o.cfg.Calculator.Path())
			}
		}
	} else {
		o.logger.WarnContext(ctx, "skipping closing yields, not all collections succeeded")
	}

	subject, body := buildRunReport(day, summaries, closing)
	if err := o.cfg.Notifier.Notify(ctx, notify.EventRunReport, subject, body); err != nil {
		o.logger.ErrorContext(ctx, "run report not delivered",
			slog.String("error", err.Error()),
		)
	}

	o.archive(ctx, day, files)

	o.logger.InfoContext(ctx, "collection run finished",
		slog.Bool("all_succeeded", allOK && closing.ok),
	)
	return nil
}

// RunClosing redoes the closing steps for today from fresh single-attempt
// fetches of the three sources. It is the recovery path when the collection
// CSVs exist but the merge or the calculator update failed, so any fetch
// failure is returned to the caller instead of being retried and notified.
// When the observation archive is wired, today's archived terminal yields
// are used instead of redialing the gateway, which by the afternoon is often
// shut down.
func (o *Orchestrator) RunClosing(ctx context.Context) error {
	day := o.now()

	terminalObs, err := o.terminalYields(ctx, day)
	if err != nil {
		return err
	}

	if _, err := o.cfg.NSX.Fetch(ctx); err != nil {
		return fmt.Errorf("pipeline: exchange report fetch: %w", err)
	}
	if _, err := o.cfg.IJG.Fetch(ctx); err != nil {
		return fmt.Errorf("pipeline: broker workbook fetch: %w", err)
	}

	rows := o.cfg.Merger.Merge(day, o.cfg.Bonds, terminalObs,
		o.cfg.NSX.Report(), o.cfg.IJG.GIRows(), o.cfg.IJG.GCRows())

	path, err := o.cfg.Writer.WriteClosingYields(day, rows)
	if err != nil {
		return fmt.Errorf("pipeline: write closing yields: %w", err)
	}
	if err := o.updateCalculator(ctx, day, rows); err != nil {
		return err
	}

	var files []string
	if path != "" {
		files = append(files, path)
	}
	o.archive(ctx, day, files)
	return nil
}

// terminalYields returns today's terminal observations for the closing
// merge: the archived ones when the store has them, otherwise a fresh
// single-attempt fetch.
func (o *Orchestrator) terminalYields(ctx context.Context, day time.Time) ([]domain.Observation, error) {
	if o.cfg.Observations != nil {
		archived, err := o.cfg.Observations.ListByDate(ctx, day, domain.SourceTerminal)
		if err != nil {
			o.logger.WarnContext(ctx, "observation archive unavailable, fetching fresh yields",
				slog.String("error", err.Error()),
			)
		} else if len(archived) > 0 {
			o.logger.InfoContext(ctx, "using archived terminal yields",
				slog.Int("records", len(archived)),
			)
			return archived, nil
		}
	}

	obs, err := o.cfg.Terminal.Fetch(ctx)
	if err != nil {
		return nil, fmt.Errorf("pipeline: terminal fetch: %w", err)
	}
	valid, _ := validateObservations(o.cfg.Bonds, obs, o.logger)
	return valid, nil
}

// updateCalculator pushes the day's closing yields into the calculator
// workbook when one is configured. Failures are logged; the caller decides
// whether they are fatal.
func (o *Orchestrator) updateCalculator(ctx context.Context, day time.Time, rows []domain.ClosingYield) error {
	if o.cfg.Calculator == nil || !o.cfg.Calculator.Enabled() {
		return nil
	}
	if err := o.cfg.Calculator.AppendClosingYields(day, rows); err != nil {
		o.logger.ErrorContext(ctx, "calculator not updated",
			slog.String("error", err.Error()),
		)
		return err
	}
	return nil
}

// archive uploads the day's output files when an archiver is wired. Upload
// failures never fail the run.
func (o *Orchestrator) archive(ctx context.Context, day time.Time, files []string) {
	if o.cfg.Archiver == nil || len(files) == 0 {
		return
	}
	uploaded, err := o.cfg.Archiver.ArchiveRun(ctx, day, files)
	if err != nil {
		o.logger.ErrorContext(ctx, "archive incomplete",
			slog.Int("uploaded", uploaded),
			slog.Int("total", len(files)),
			slog.String("error", err.Error()),
		)
		return
	}
	o.logger.InfoContext(ctx, "outputs archived",
		slog.Int("uploaded", uploaded),
	)
}

// runLockKey is the per-day key guarding a collection run.
func runLockKey(day time.Time) string {
	return "yieldbot:run:" + day.Format("2006-01-02")
}

// displayName renders a source for the run report.
func displayName(s domain.Source) string {
	switch s {
	case domain.SourceTerminal:
		return "Terminal Yields"
	case domain.SourceEmailReport:
		return "NSX Daily Report"
	case domain.SourceSpreadsheet:
		return "IJG Daily Report"
	default:
		return string(s)
	}
}

// buildRunReport renders the end-of-run notification. The subject carries
// the overall outcome so operators can triage from the inbox list alone; the
// body details every workflow including the closing-yields step.
func buildRunReport(day time.Time, summaries []domain.WorkflowSummary, closing closingStatus) (subject, body string) {
	succeeded := 0
	for _, s := range summaries {
		if s.Succeeded {
			succeeded++
		}
	}
	total := len(summaries) + 1 // the closing step counts as a workflow
	if closing.ok {
		succeeded++
	}
	failed := total - succeeded

	switch {
	case failed == 0:
		subject = "✓ Bond Data Collections: All Successful"
	case succeeded == 0:
		subject = "✗ Bond Data Collections: All Failed"
	default:
		subject = fmt.Sprintf("⚠ Bond Data Collections: %d Successful, %d Failed", succeeded, failed)
	}

	var b strings.Builder
	b.WriteString("DAILY BOND DATA COLLECTION REPORT\n")
	b.WriteString("===================================\n\n")
	fmt.Fprintf(&b, "Date: %s\n", day.Format("2006-01-02"))
	fmt.Fprintf(&b, "Time: %s\n\n", time.Now().Format("15:04:05"))
	b.WriteString("WORKFLOW STATUS\n")
	b.WriteString("===============\n\n")

	if succeeded > 0 {
		b.WriteString("Successful Collections:\n")
		for _, s := range summaries {
			if !s.Succeeded {
				continue
			}
			fmt.Fprintf(&b, "  ✓ %s\n", displayName(s.Source))
			fmt.Fprintf(&b, "     • %d records in %d attempt(s)", s.RecordCount, s.AttemptsUsed)
			if s.Dropped > 0 {
				fmt.Fprintf(&b, ", %d dropped", s.Dropped)
			}
			b.WriteString("\n")
		}
		if closing.ok {
			b.WriteString("  ✓ Closing Yields\n")
			fmt.Fprintf(&b, "     • %d securities\n", closing.count)
		}
		b.WriteString("\n")
	}

	if failed > 0 {
		b.WriteString("Failed Collections:\n")
		for _, s := range summaries {
			if s.Succeeded {
				continue
			}
			fmt.Fprintf(&b, "  ✗ %s\n", displayName(s.Source))
			if s.Err != "" {
				fmt.Fprintf(&b, "     • Error: %s\n", s.Err)
			}
		}
		if !closing.ok {
			b.WriteString("  ✗ Closing Yields\n")
			switch {
			case closing.skipped:
				b.WriteString("     • Skipped: collection workflows failed\n")
			case closing.err != "":
				fmt.Fprintf(&b, "     • Error: %s\n", closing.err)
			}
		}
		b.WriteString("\n")
	}

	b.WriteString("SUMMARY\n")
	b.WriteString("=======\n")
	fmt.Fprintf(&b, "Total workflows: %d\n", total)
	fmt.Fprintf(&b, "Successful: %d\n", succeeded)
	fmt.Fprintf(&b, "Failed: %d", failed)

	return subject, b.String()
}
