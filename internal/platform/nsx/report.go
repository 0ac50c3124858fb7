package nsx

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/shikwambipolly/how-is-bloomberg/internal/domain"
)

// tradingSheet is the bond board inside the daily report workbook.
const tradingSheet = "Bonds-Trading ATS"

// Column headers on the trading sheet.
const (
	colSecurity  = "Security"
	colBenchmark = "Benchmark"
	colDeals     = "Deals"
	colNominal   = "Nominal"
	colMarkYield = "Mark To (Yield)"
	colSpread    = "Spread"
)

// ParseReport extracts the bond trading rows from a daily report workbook.
// Deals and Nominal default to zero when their columns are missing, matching
// how a quiet board is published; yield and spread stay nil when absent.
func ParseReport(data []byte) ([]domain.TradingRow, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("nsx: open report workbook: %w", err)
	}
	defer f.Close()

	rows, err := f.GetRows(tradingSheet)
	if err != nil {
		return nil, fmt.Errorf("nsx: read sheet %q: %w", tradingSheet, err)
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("nsx: sheet %q has no data rows", tradingSheet)
	}

	idx := headerIndex(rows[0])
	if _, ok := idx[colSecurity]; !ok {
		return nil, fmt.Errorf("nsx: sheet %q missing %q column", tradingSheet, colSecurity)
	}

	out := make([]domain.TradingRow, 0, len(rows)-1)
	for _, row := range rows[1:] {
		security := cellAt(row, colOf(idx, colSecurity))
		if security == "" {
			continue
		}
		out = append(out, domain.TradingRow{
			Security:  security,
			Benchmark: cellAt(row, colOf(idx, colBenchmark)),
			Deals:     parseFloatOr(cellAt(row, colOf(idx, colDeals)), 0),
			Nominal:   parseFloatOr(cellAt(row, colOf(idx, colNominal)), 0),
			MarkYield: parseOptionalFloat(cellAt(row, colOf(idx, colMarkYield))),
			SpreadBps: parseOptionalFloat(cellAt(row, colOf(idx, colSpread))),
		})
	}

	if len(out) == 0 {
		return nil, fmt.Errorf("nsx: sheet %q has no security rows", tradingSheet)
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

// cellAt returns the trimmed cell at position i; rows from the sheet reader
// are ragged, so out-of-range reads yield an empty cell.
func cellAt(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// parseOptionalFloat reads a numeric cell. Thousands separators and a
// trailing percent sign are tolerated; empty, dash, and non-numeric cells
// are treated as missing.
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

// parseFloatOr is parseOptionalFloat with a default for missing cells.
func parseFloatOr(s string, def float64) float64 {
	if v := parseOptionalFloat(s); v != nil {
		return *v
	}
	return def
}
