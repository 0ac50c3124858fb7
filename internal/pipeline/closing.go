package pipeline

import (
	"log/slog"
	"time"

	"github.com/shikwambipolly/how-is-bloomberg/internal/domain"
)

// Basis values recorded on merged closing-yield rows. They name which input
// produced the number so the output file is auditable.
const (
	BasisBrokerToday      = "broker today"
	BasisExchangeSpread   = "exchange spread"
	BasisExchangeYield    = "exchange yield"
	BasisBroker           = "broker"
	BasisMissingBenchmark = "missing benchmark"
	BasisNoData           = "no data"
)

// ClosingMerger derives one end-of-day yield per exchange security from the
// three collected inputs. The universe is the exchange trading board; per
// security the inputs are tried in priority order:
//
//  1. broker data stamped with the run day (GI yield, or GC spread over the
//     terminal benchmark yield),
//  2. exchange marks when the security traded actively (at least one deal
//     and a nominal of one million or more),
//  3. broker data regardless of its date.
//
// GI securities carry no benchmark and take yields directly; GC securities
// price as benchmark yield plus spread/100.
type ClosingMerger struct {
	logger *slog.Logger
}

// NewClosingMerger creates a ClosingMerger.
func NewClosingMerger(logger *slog.Logger) *ClosingMerger {
	return &ClosingMerger{
		logger: logger.With(slog.String("component", "closing")),
	}
}

// Merge produces one row per trading-board security, in board order. Rows
// that no rule can price are kept with an empty closing yield so the output
// still shows the full board.
func (m *ClosingMerger) Merge(
	day time.Time,
	bonds domain.BondList,
	terminalObs []domain.Observation,
	trading []domain.TradingRow,
	gi []domain.YieldRow,
	gc []domain.SpreadRow,
) []domain.ClosingYield {
	benchmarks := benchmarkYields(bonds, terminalObs)
	giAll, giToday := giYields(gi, day)
	gcAll, gcToday := gcSpreads(gc, day)

	m.logger.Info("merging closing yields",
		slog.Int("board", len(trading)),
		slog.Int("benchmarks", len(benchmarks)),
		slog.Int("gi_today", len(giToday)),
		slog.Int("gc_today", len(gcToday)),
	)

	out := make([]domain.ClosingYield, 0, len(trading))
	for _, row := range trading {
		var cy domain.ClosingYield
		if row.Benchmark == "" {
			cy = m.mergeGI(row, giAll, giToday)
		} else {
			cy = m.mergeGC(row, benchmarks, gcAll, gcToday)
		}
		out = append(out, cy)
	}

	priced := 0
	for _, cy := range out {
		if cy.ClosingYield != nil {
			priced++
		}
	}
	m.logger.Info("closing yields merged",
		slog.Int("securities", len(out)),
		slog.Int("priced", priced),
	)
	return out
}

// mergeGI prices a security without a benchmark: yields are taken directly.
func (m *ClosingMerger) mergeGI(row domain.TradingRow, all, today map[string]float64) domain.ClosingYield {
	cy := domain.ClosingYield{Security: row.Security}

	if y, ok := today[row.Security]; ok {
		cy.ClosingYield = domain.Float(y)
		cy.Basis = BasisBrokerToday
		return cy
	}
	if row.ActivelyTraded() && row.MarkYield != nil {
		cy.ClosingYield = domain.Float(*row.MarkYield)
		cy.Basis = BasisExchangeYield
		return cy
	}
	if y, ok := all[row.Security]; ok {
		cy.ClosingYield = domain.Float(y)
		cy.Basis = BasisBroker
		return cy
	}

	m.logger.Warn("no yield found for security",
		slog.String("security", row.Security),
	)
	cy.Basis = BasisNoData
	return cy
}

// mergeGC prices a security quoted as a spread over its benchmark. Without a
// benchmark yield from the terminal the row cannot be priced at all.
func (m *ClosingMerger) mergeGC(row domain.TradingRow, benchmarks, all, today map[string]float64) domain.ClosingYield {
	cy := domain.ClosingYield{
		Security:  row.Security,
		Benchmark: row.Benchmark,
	}

	bench, ok := benchmarks[row.Benchmark]
	if !ok {
		m.logger.Warn("missing benchmark yield, cannot price security",
			slog.String("security", row.Security),
			slog.String("benchmark", row.Benchmark),
		)
		cy.Basis = BasisMissingBenchmark
		return cy
	}
	cy.BenchmarkYield = domain.Float(bench)

	if spread, ok := today[row.Security]; ok {
		cy.ClosingYield = domain.Float(bench + spread/100)
		cy.SpreadBps = domain.Float(spread)
		cy.Basis = BasisBrokerToday
		return cy
	}
	if row.ActivelyTraded() {
		if row.SpreadBps != nil {
			cy.ClosingYield = domain.Float(bench + *row.SpreadBps/100)
			cy.SpreadBps = domain.Float(*row.SpreadBps)
			cy.Basis = BasisExchangeSpread
			return cy
		}
		if row.MarkYield != nil {
			cy.ClosingYield = domain.Float(*row.MarkYield)
			cy.SpreadBps = domain.Float((*row.MarkYield - bench) * 100)
			cy.Basis = BasisExchangeYield
			return cy
		}
		// Active trading with no usable exchange number; fall through to the
		// broker spread.
	}
	if spread, ok := all[row.Security]; ok {
		cy.ClosingYield = domain.Float(bench + spread/100)
		cy.SpreadBps = domain.Float(spread)
		cy.Basis = BasisBroker
		return cy
	}

	m.logger.Warn("no spread found for security",
		slog.String("security", row.Security),
	)
	cy.Basis = BasisNoData
	return cy
}

// benchmarkYields maps report labels to the terminal yield used as the GC
// pricing base: the bid side, falling back to ask when the bid is absent.
func benchmarkYields(bonds domain.BondList, obs []domain.Observation) map[string]float64 {
	out := make(map[string]float64, len(obs))
	for _, o := range obs {
		b, ok := bonds.ByID(o.BondID)
		if !ok {
			continue
		}
		switch {
		case o.BidYield != nil:
			out[b.Label] = *o.BidYield
		case o.AskYield != nil:
			out[b.Label] = *o.AskYield
		}
	}
	return out
}

// giYields splits the broker GI rows into the full map and the subset whose
// date stamp matches the run day.
func giYields(rows []domain.YieldRow, day time.Time) (all, today map[string]float64) {
	all = make(map[string]float64, len(rows))
	today = make(map[string]float64)
	for _, r := range rows {
		if r.Yield == nil {
			continue
		}
		all[r.Security] = *r.Yield
		if r.Date != nil && sameDay(*r.Date, day) {
			today[r.Security] = *r.Yield
		}
	}
	return all, today
}

// gcSpreads splits the broker GC rows into the full map and the subset whose
// last-event date matches the run day.
func gcSpreads(rows []domain.SpreadRow, day time.Time) (all, today map[string]float64) {
	all = make(map[string]float64, len(rows))
	today = make(map[string]float64)
	for _, r := range rows {
		if r.SpreadBps == nil {
			continue
		}
		all[r.Security] = *r.SpreadBps
		if r.LastEvent != nil && sameDay(*r.LastEvent, day) {
			today[r.Security] = *r.SpreadBps
		}
	}
	return all, today
}

// sameDay reports whether a and b fall on the same calendar date.
func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
