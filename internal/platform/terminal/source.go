package terminal

import (
	"context"
	"log/slog"
	"time"

	"github.com/shikwambipolly/how-is-bloomberg/internal/domain"
)

// Yield fields requested for every bond.
const (
	fieldBidYield = "YLD_YTM_BID"
	fieldAskYield = "YLD_YTM_ASK"
)

// Source collects bid and ask yields for the configured bonds from the
// terminal gateway. Each Fetch dials a fresh connection so a retried attempt
// never inherits a broken socket.
type Source struct {
	client *Client
	bonds  domain.BondList
	logger *slog.Logger
}

// NewSource creates a Source that requests yields for every bond in bonds.
func NewSource(client *Client, bonds domain.BondList, logger *slog.Logger) *Source {
	return &Source{
		client: client,
		bonds:  bonds,
		logger: logger.With(slog.String("component", "terminal")),
	}
}

// Source returns the tag recorded on every observation from this adapter.
func (s *Source) Source() domain.Source {
	return domain.SourceTerminal
}

// Fetch requests the yield fields for all configured bonds and maps each
// returned security row onto an Observation. Securities the gateway reports
// an error for are logged and skipped; both yields on an observation may be
// nil when the gateway had no value.
func (s *Source) Fetch(ctx context.Context) ([]domain.Observation, error) {
	if err := s.client.Connect(ctx); err != nil {
		return nil, domain.NewTransient("terminal", err)
	}
	defer s.client.Close()

	rows, err := s.client.Request(ctx, s.bonds.IDs(), []string{fieldBidYield, fieldAskYield})
	if err != nil {
		return nil, domain.NewTransient("terminal", err)
	}

	now := time.Now().UTC()
	obs := make([]domain.Observation, 0, len(rows))
	for _, row := range rows {
		if row.Error != "" {
			s.logger.Warn("security rejected by gateway",
				slog.String("security", row.Security),
				slog.String("error", row.Error),
			)
			continue
		}
		obs = append(obs, domain.Observation{
			BondID:         row.Security,
			InstrumentCode: row.Security,
			BidYield:       row.Fields[fieldBidYield],
			AskYield:       row.Fields[fieldAskYield],
			Source:         domain.SourceTerminal,
			ObservedAt:     now,
		})
	}

	s.logger.Info("terminal refdata received",
		slog.Int("requested", s.bonds.Len()),
		slog.Int("returned", len(obs)),
	)
	return obs, nil
}

var _ domain.Fetcher = (*Source)(nil)
