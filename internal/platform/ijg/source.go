package ijg

import (
	"context"
	"log/slog"
	"time"

	"github.com/shikwambipolly/how-is-bloomberg/internal/domain"
)

// Source reads the broker's daily workbook and turns the GI yield rows into
// observations. Both extracted row sets are retained after a successful
// fetch for the closing-yields merge.
type Source struct {
	path   string
	bonds  domain.BondList
	logger *slog.Logger

	daily Daily
}

// NewSource creates a Source for the workbook at path.
func NewSource(path string, bonds domain.BondList, logger *slog.Logger) *Source {
	return &Source{
		path:   path,
		bonds:  bonds,
		logger: logger.With(slog.String("component", "ijg")),
	}
}

// Source returns the tag recorded on every observation from this adapter.
func (s *Source) Source() domain.Source {
	return domain.SourceSpreadsheet
}

// GIRows returns the GI yield rows from the last successful Fetch.
func (s *Source) GIRows() []domain.YieldRow {
	return s.daily.GI
}

// GCRows returns the GC spread rows from the last successful Fetch.
func (s *Source) GCRows() []domain.SpreadRow {
	return s.daily.GC
}

// Fetch parses the workbook and maps configured GI securities onto
// observations. The sheet publishes one yield per security, so the ask side
// stays nil. The workbook lands on a shared drive some time during the
// morning, so every failure here is worth retrying, a missing file included.
func (s *Source) Fetch(ctx context.Context) ([]domain.Observation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	daily, err := ParseDaily(s.path)
	if err != nil {
		return nil, domain.NewTransient("ijg parse workbook", err)
	}
	s.daily = daily

	now := time.Now().UTC()
	obs := make([]domain.Observation, 0, len(daily.GI))
	for _, row := range daily.GI {
		b, ok := s.bonds.ByLabel(row.Security)
		if !ok {
			b, ok = s.bonds.ByID(row.Security)
		}
		if !ok {
			continue
		}
		obs = append(obs, domain.Observation{
			BondID:         b.ID,
			InstrumentCode: row.Security,
			BidYield:       row.Yield,
			Source:         domain.SourceSpreadsheet,
			ObservedAt:     now,
			SheetOrigin:    yieldsSheet,
		})
	}

	s.logger.Info("workbook parsed",
		slog.Int("gi_rows", len(daily.GI)),
		slog.Int("gc_rows", len(daily.GC)),
		slog.Int("configured_matches", len(obs)),
	)
	return obs, nil
}

var _ domain.Fetcher = (*Source)(nil)
