package domain

import "time"

// TradingRow is one security row of the exchange daily report. GC securities
// carry a benchmark label; GI securities do not.
type TradingRow struct {
	Security  string
	Benchmark string // empty for GI securities
	Deals     float64
	Nominal   float64
	MarkYield *float64 // mark-to yield, when the sheet provides one
	SpreadBps *float64 // spread over benchmark in basis points, when provided
}

// ActivelyTraded reports whether the row shows enough turnover for its
// exchange marks to be trusted: at least one deal and a nominal of one
// million or more.
func (r TradingRow) ActivelyTraded() bool {
	return r.Deals >= 1 && r.Nominal >= 1_000_000
}

// YieldRow is one GI row of the broker daily sheet.
type YieldRow struct {
	Security string
	Yield    *float64
	Date     *time.Time // date the sheet stamps on the row, when present
}

// SpreadRow is one GC row of the broker spread sheet.
type SpreadRow struct {
	Security  string
	SpreadBps *float64
	LastEvent *time.Time // "date of last event" column, when present
}

// ClosingYield is one merged end-of-day row. Basis records which input
// produced the number so the output is auditable.
type ClosingYield struct {
	Security       string
	Benchmark      string
	BenchmarkYield *float64
	ClosingYield   *float64
	SpreadBps      *float64
	Basis          string
}
