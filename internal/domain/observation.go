package domain

import "time"

// Source identifies which external system produced an observation. It is
// always set and drives per-source output files and downstream prioritization
// when several sources report the same bond.
type Source string

const (
	SourceTerminal    Source = "terminal"
	SourceEmailReport Source = "email_report"
	SourceSpreadsheet Source = "spreadsheet_report"
)

// Observation is one normalized bond yield record with provenance. Instances
// are created by a source adapter, filtered once against the configured bond
// list, written once, and never mutated.
type Observation struct {
	BondID         string
	InstrumentCode string
	BidYield       *float64 // nil when the source reports no bid side
	AskYield       *float64 // nil when the source reports no ask side
	Source         Source
	ObservedAt     time.Time
	SheetOrigin    string // free-text provenance for audit, e.g. worksheet and row
}

// HasYield reports whether at least one side of the quote is present. Records
// with neither side are invalid and excluded before writing.
func (o Observation) HasYield() bool {
	return o.BidYield != nil || o.AskYield != nil
}

// Float is a convenience for building optional yield fields.
func Float(v float64) *float64 { return &v }
