// Package ijg extracts government-bond yields and spreads from the broker's
// daily workbook on local disk.
package ijg

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/shikwambipolly/how-is-bloomberg/internal/domain"
)

const (
	// yieldsSheet lists every instrument the broker quotes; only the GI
	// government rows are ours.
	yieldsSheet = "Yields"
	// spreadSheet carries the GC spread table. The securities of interest
	// occupy the 2nd through 19th data rows.
	spreadSheet = "Spread calc"
)

// Column headers on the two sheets. The Yields sheet identifies the security
// in its first column, which has no stable header.
const (
	colYield      = "PX_Last"
	colYieldDate  = "Date"
	colGovernment = "Government"
	colSpread     = "Spread"
	colLastEvent  = "Date of last event"
)

// giCode matches the broker's naming for GI government bonds.
var giCode = regexp.MustCompile(`^GI\d{2}$`)

// spreadRowStart and spreadRowEnd bound the GC slice of the spread sheet,
// 0-based over the data rows (header excluded), end exclusive.
const (
	spreadRowStart = 1
	spreadRowEnd   = 19
)

// Daily holds the two row sets extracted from the broker's workbook.
type Daily struct {
	GI []domain.YieldRow
	GC []domain.SpreadRow
}

// ParseDaily reads the workbook at path and extracts the GI yield rows and
// the GC spread rows.
func ParseDaily(path string) (Daily, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return Daily{}, fmt.Errorf("ijg: open workbook %s: %w", path, err)
	}
	defer f.Close()

	gi, err := parseYields(f)
	if err != nil {
		return Daily{}, err
	}
	gc, err := parseSpreads(f)
	if err != nil {
		return Daily{}, err
	}

	return Daily{GI: gi, GC: gc}, nil
}

// parseYields keeps the Yields rows whose first column is a GI code.
func parseYields(f *excelize.File) ([]domain.YieldRow, error) {
	rows, err := f.GetRows(yieldsSheet)
	if err != nil {
		return nil, fmt.Errorf("ijg: read sheet %q: %w", yieldsSheet, err)
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("ijg: sheet %q has no data rows", yieldsSheet)
	}

	idx := headerIndex(rows[0])

	var out []domain.YieldRow
	for _, row := range rows[1:] {
		security := cellAt(row, 0)
		if !giCode.MatchString(security) {
			continue
		}
		out = append(out, domain.YieldRow{
			Security: security,
			Yield:    parseOptionalFloat(cellAt(row, colOf(idx, colYield))),
			Date:     parseOptionalDate(cellAt(row, colOf(idx, colYieldDate))),
		})
	}

	if len(out) == 0 {
		return nil, fmt.Errorf("ijg: no GI codes found in sheet %q", yieldsSheet)
	}
	return out, nil
}

// parseSpreads takes the fixed GC slice of the spread sheet.
func parseSpreads(f *excelize.File) ([]domain.SpreadRow, error) {
	rows, err := f.GetRows(spreadSheet)
	if err != nil {
		return nil, fmt.Errorf("ijg: read sheet %q: %w", spreadSheet, err)
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("ijg: sheet %q has no data rows", spreadSheet)
	}

	idx := headerIndex(rows[0])
	data := rows[1:]

	start, end := spreadRowStart, spreadRowEnd
	if end > len(data) {
		end = len(data)
	}
	if start >= end {
		return nil, fmt.Errorf("ijg: sheet %q has no rows in the GC range", spreadSheet)
	}

	var out []domain.SpreadRow
	for _, row := range data[start:end] {
		security := cellAt(row, colOf(idx, colGovernment))
		if security == "" {
			continue
		}
		out = append(out, domain.SpreadRow{
			Security:  security,
			SpreadBps: parseOptionalFloat(cellAt(row, colOf(idx, colSpread))),
			LastEvent: parseOptionalDate(cellAt(row, colOf(idx, colLastEvent))),
		})
	}

	if len(out) == 0 {
		return nil, fmt.Errorf("ijg: no GC securities found in sheet %q", spreadSheet)
	}
	return out, nil
}

// headerIndex maps trimmed header names to their column position.
func headerIndex(header []string) map[string]int {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.TrimSpace(h)
		if h != "" {
			idx[h] = i
		}
	}
	return idx
}

// colOf returns the position of name or -1 when the column is absent.
func colOf(idx map[string]int, name string) int {
	if i, ok := idx[name]; ok {
		return i
	}
	return -1
}

// cellAt returns the trimmed cell at position i; sheet rows are ragged, so
// out-of-range reads yield an empty cell.
func cellAt(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// parseOptionalFloat reads a numeric cell, tolerating thousands separators
// and a trailing percent sign. Empty, dash, and non-numeric cells are
// missing values.
func parseOptionalFloat(s string) *float64 {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	s = strings.TrimSpace(strings.TrimSuffix(s, "%"))
	if s == "" || s == "-" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}

// dateLayouts covers the formats the broker's workbook has shipped dates in,
// plus the sheet reader's default short date.
var dateLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02",
	"02/01/2006",
	"2-Jan-06",
	"02-Jan-2006",
	"01-02-06",
	"1-2-06",
	time.RFC3339,
}

// parseOptionalDate reads a date cell; unparseable cells are missing values.
func parseOptionalDate(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" || s == "-" {
		return nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}
