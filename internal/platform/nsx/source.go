package nsx

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shikwambipolly/how-is-bloomberg/internal/domain"
)

// Source fetches the newest daily report from the mailbox and turns its
// trading rows into observations. The raw trading rows are retained after a
// successful fetch for the closing-yields merge.
type Source struct {
	client         *Client
	bonds          domain.BondList
	sender         string
	attachmentName string
	lookback       time.Duration
	logger         *slog.Logger

	report []domain.TradingRow
}

// NewSource creates a Source that looks for mail from sender within the
// lookback window and reads the attachment whose name contains
// attachmentName.
func NewSource(client *Client, bonds domain.BondList, sender, attachmentName string, lookback time.Duration, logger *slog.Logger) *Source {
	return &Source{
		client:         client,
		bonds:          bonds,
		sender:         sender,
		attachmentName: attachmentName,
		lookback:       lookback,
		logger:         logger.With(slog.String("component", "nsx")),
	}
}

// Source returns the tag recorded on every observation from this adapter.
func (s *Source) Source() domain.Source {
	return domain.SourceEmailReport
}

// Report returns the trading rows from the last successful Fetch.
func (s *Source) Report() []domain.TradingRow {
	return s.report
}

// Fetch locates the newest report mail, downloads and parses the attachment,
// and maps configured securities onto observations. The report carries a
// single mark-to yield per security, so the ask side stays nil. A missing
// mail or attachment is retryable; the report may simply not have been sent
// yet. A workbook that cannot be parsed is permanent.
func (s *Source) Fetch(ctx context.Context) ([]domain.Observation, error) {
	since := time.Now().Add(-s.lookback)

	msgs, err := s.client.ListMessages(ctx, s.sender, since)
	if err != nil {
		return nil, classifyMailErr("nsx list messages", err)
	}
	if len(msgs) == 0 {
		return nil, domain.NewTransient("nsx list messages", fmt.Errorf(
			"%w: no mail from %s since %s",
			domain.ErrNoReport, s.sender, since.Format(time.RFC3339),
		))
	}

	// The API orders newest first, but do not depend on it.
	latest := msgs[0]
	for _, m := range msgs[1:] {
		if m.ReceivedAt.After(latest.ReceivedAt) {
			latest = m
		}
	}

	name, data, err := s.client.DownloadAttachment(ctx, latest.ID, s.attachmentName)
	if err != nil {
		return nil, classifyMailErr("nsx download report", err)
	}

	s.logger.Info("report downloaded",
		slog.String("attachment", name),
		slog.Time("received_at", latest.ReceivedAt),
	)

	rows, err := ParseReport(data)
	if err != nil {
		return nil, domain.NewPermanent("nsx parse report", err)
	}
	s.report = rows

	now := time.Now().UTC()
	obs := make([]domain.Observation, 0, len(rows))
	for _, row := range rows {
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
			BidYield:       row.MarkYield,
			Source:         domain.SourceEmailReport,
			ObservedAt:     now,
			SheetOrigin:    tradingSheet,
		})
	}

	s.logger.Info("report parsed",
		slog.Int("trading_rows", len(rows)),
		slog.Int("configured_matches", len(obs)),
	)
	return obs, nil
}

// classifyMailErr wraps a mail API failure with its retry class. Expired or
// rejected credentials will not heal within a retry window; everything else
// (network, throttling, missing report) is worth another attempt.
func classifyMailErr(op string, err error) error {
	if errors.Is(err, domain.ErrUnauthorized) {
		return domain.NewPermanent(op, err)
	}
	return domain.NewTransient(op, err)
}

var _ domain.Fetcher = (*Source)(nil)
