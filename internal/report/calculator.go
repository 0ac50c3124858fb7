package report

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/shikwambipolly/how-is-bloomberg/internal/domain"
)

const (
	// inputSheet is the calculator sheet that receives one row per trading day.
	inputSheet = "Input"
	// headerRow is the 1-based row holding the security codes, starting at
	// column B. Column A of the data rows carries the date.
	headerRow = 2
)

// Calculator appends closing yields to the pricing team's calculator
// workbook. A Calculator with an empty path is a no-op, which is how
// deployments without the workbook opt out.
type Calculator struct {
	path   string
	logger *slog.Logger
}

// NewCalculator creates a Calculator for the workbook at path.
func NewCalculator(path string, logger *slog.Logger) *Calculator {
	return &Calculator{
		path:   path,
		logger: logger.With(slog.String("component", "calculator")),
	}
}

// Enabled reports whether a workbook path is configured.
func (c *Calculator) Enabled() bool {
	return c.path != ""
}

// Path returns the configured workbook path.
func (c *Calculator) Path() string {
	return c.path
}

// AppendClosingYields adds one dated row to the Input sheet: the date in
// column A and each security's closing yield under its header column.
// Securities missing from the header row are logged and skipped; securities
// without a closing yield leave their cell empty.
func (c *Calculator) AppendClosingYields(day time.Time, closing []domain.ClosingYield) error {
	if !c.Enabled() {
		c.logger.Debug("no calculator path configured, skipping")
		return nil
	}

	f, err := excelize.OpenFile(c.path)
	if err != nil {
		return fmt.Errorf("report: opening calculator %s: %w", c.path, err)
	}
	defer f.Close()

	rows, err := f.GetRows(inputSheet)
	if err != nil {
		return fmt.Errorf("report: reading sheet %q: %w", inputSheet, err)
	}
	if len(rows) < headerRow {
		return fmt.Errorf("report: calculator sheet %q has no header row", inputSheet)
	}

	// Map security code to its 1-based column number. Headers start at
	// column B; column A belongs to the date.
	headers := rows[headerRow-1]
	colFor := make(map[string]int, len(headers))
	for i := 1; i < len(headers); i++ {
		if headers[i] != "" {
			colFor[headers[i]] = i + 1
		}
	}

	targetRow := len(rows) + 1

	dateCell, err := excelize.CoordinatesToCellName(1, targetRow)
	if err != nil {
		return fmt.Errorf("report: resolving date cell: %w", err)
	}
	if err := f.SetCellValue(inputSheet, dateCell, day.Format("2006-01-02")); err != nil {
		return fmt.Errorf("report: writing date: %w", err)
	}

	written := 0
	for _, cy := range closing {
		if cy.ClosingYield == nil {
			continue
		}
		col, ok := colFor[cy.Security]
		if !ok {
			c.logger.Warn("security not in calculator header, skipping",
				slog.String("security", cy.Security),
			)
			continue
		}
		cell, err := excelize.CoordinatesToCellName(col, targetRow)
		if err != nil {
			return fmt.Errorf("report: resolving cell for %s: %w", cy.Security, err)
		}
		if err := f.SetCellValue(inputSheet, cell, *cy.ClosingYield); err != nil {
			return fmt.Errorf("report: writing yield for %s: %w", cy.Security, err)
		}
		written++
	}

	if err := f.Save(); err != nil {
		return fmt.Errorf("report: saving calculator: %w", err)
	}

	c.logger.Info("calculator updated",
		slog.String("path", c.path),
		slog.Int("row", targetRow),
		slog.Int("securities", written),
	)
	return nil
}
