// Package report renders the day's collected yields as dated CSV files and
// keeps the downstream price-calculator workbook current.
package report

import (
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/shikwambipolly/how-is-bloomberg/internal/domain"
)

// dateLayout is the filename date suffix. Files sort lexicographically by
// date within a source.
const dateLayout = "20060102"

// outputLayout maps each source to its subdirectory and filename prefix
// under the output directory.
var outputLayout = map[domain.Source]struct {
	subdir string
	prefix string
}{
	domain.SourceTerminal:    {"terminal", "bond_yields_terminal"},
	domain.SourceEmailReport: {"nsx", "nsx_bonds"},
	domain.SourceSpreadsheet: {"ijg", "ijg_bonds"},
}

// Writer persists observations and closing yields under a single output
// directory. Files for the same source and day are overwritten, so re-running
// a day is idempotent.
type Writer struct {
	dir    string
	logger *slog.Logger
}

// NewWriter creates a Writer rooted at dir. The directory is created on first
// write.
func NewWriter(dir string, logger *slog.Logger) *Writer {
	return &Writer{
		dir:    dir,
		logger: logger.With(slog.String("component", "report")),
	}
}

// WriteObservations writes the day's observations for one source and returns
// the file path. An empty batch produces no file and no error. The bond list
// supplies the human-readable label for each configured bond ID.
func (w *Writer) WriteObservations(source domain.Source, day time.Time, bonds domain.BondList, obs []domain.Observation) (string, error) {
	if len(obs) == 0 {
		return "", nil
	}

	layout, ok := outputLayout[source]
	if !ok {
		return "", fmt.Errorf("report: no output layout for source %q", source)
	}

	header := []string{"bond", "instrument_code", "bid_yield", "ask_yield", "source", "observed_at"}
	rows := make([][]string, 0, len(obs))
	for _, o := range obs {
		label := o.BondID
		if b, ok := bonds.ByID(o.BondID); ok {
			label = b.Label
		}
		code := o.InstrumentCode
		if code == "" {
			code = o.BondID
		}
		rows = append(rows, []string{
			label,
			code,
			formatYield(o.BidYield),
			formatYield(o.AskYield),
			string(o.Source),
			o.ObservedAt.Format(time.RFC3339),
		})
	}

	path := filepath.Join(w.dir, layout.subdir, fmt.Sprintf("%s_%s.csv", layout.prefix, day.Format(dateLayout)))
	if err := w.writeFile(path, header, rows); err != nil {
		return "", err
	}

	w.logger.Info("observations written",
		slog.String("source", string(source)),
		slog.String("path", path),
		slog.Int("records", len(rows)),
	)
	return path, nil
}

// WriteClosingYields writes the merged closing-yield rows for the day and
// returns the file path. An empty set produces no file and no error.
func (w *Writer) WriteClosingYields(day time.Time, closing []domain.ClosingYield) (string, error) {
	if len(closing) == 0 {
		return "", nil
	}

	header := []string{"security", "benchmark", "benchmark_yield", "closing_yield", "spread_bps", "basis"}
	rows := make([][]string, 0, len(closing))
	for _, c := range closing {
		rows = append(rows, []string{
			c.Security,
			c.Benchmark,
			formatYield(c.BenchmarkYield),
			formatYield(c.ClosingYield),
			formatYield(c.SpreadBps),
			c.Basis,
		})
	}

	path := filepath.Join(w.dir, "closing", fmt.Sprintf("closing_yields_%s.csv", day.Format(dateLayout)))
	if err := w.writeFile(path, header, rows); err != nil {
		return "", err
	}

	w.logger.Info("closing yields written",
		slog.String("path", path),
		slog.Int("records", len(rows)),
	)
	return path, nil
}

// writeFile creates (or truncates) path and writes a header plus rows.
func (w *Writer) writeFile(path string, header []string, rows [][]string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("report: creating output dir: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("report: creating %s: %w", path, err)
	}

	cw := csv.NewWriter(f)
	if err := cw.Write(header); err != nil {
		f.Close()
		return fmt.Errorf("report: writing header: %w", err)
	}
	for _, row := range rows {
		if err := cw.Write(row); err != nil {
			f.Close()
			return fmt.Errorf("report: writing row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		f.Close()
		return fmt.Errorf("report: flushing %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("report: closing %s: %w", path, err)
	}
	return nil
}

// formatYield renders an optional yield with the fewest digits that round-trip
// (7.85 stays "7.85"). A nil yield becomes an empty field.
func formatYield(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}
