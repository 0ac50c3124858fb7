package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shikwambipolly/how-is-bloomberg/internal/domain"
	"github.com/shikwambipolly/how-is-bloomberg/internal/executor"
	"github.com/shikwambipolly/how-is-bloomberg/internal/notify"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testBonds() domain.BondList {
	return domain.NewBondList([]domain.Bond{
		{ID: "CP507394", Label: "R186"},
		{ID: "CP885211", Label: "R2030"},
	})
}

// capturingSender records notification titles for assertions.
type capturingSender struct {
	mu     sync.Mutex
	titles []string
}

func (s *capturingSender) Send(ctx context.Context, title, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.titles = append(s.titles, title)
	return nil
}

func (s *capturingSender) Name() string { return "capturing" }

func (s *capturingSender) all() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.titles...)
}

func newTestExecutor(sender notify.Sender) *executor.Executor {
	var senders []notify.Sender
	if sender != nil {
		senders = []notify.Sender{sender}
	}
	return executor.NewExecutor(notify.NewNotifier(senders, nil, testLogger()), testLogger())
}

// stubFetcher is a scriptable source adapter.
type stubFetcher struct {
	source domain.Source
	obs    []domain.Observation
	errs   []error // consumed one per call; nil entries succeed
	calls  int
}

func (s *stubFetcher) Fetch(ctx context.Context) ([]domain.Observation, error) {
	s.calls++
	if len(s.errs) > 0 {
		err := s.errs[0]
		s.errs = s.errs[1:]
		if err != nil {
			return nil, err
		}
	}
	return s.obs, nil
}

func (s *stubFetcher) Source() domain.Source { return s.source }

// captureWriter records what the runner asked it to persist.
type captureWriter struct {
	path  string
	err   error
	got   []domain.Observation
	calls int
}

func (w *captureWriter) WriteObservations(source domain.Source, day time.Time, bonds domain.BondList, obs []domain.Observation) (string, error) {
	w.calls++
	w.got = obs
	if w.err != nil {
		return "", w.err
	}
	return w.path, nil
}

// memRunStore is an in-memory RunStore.
type memRunStore struct {
	created   []domain.RunRecord
	createErr error
}

func (m *memRunStore) Create(ctx context.Context, rec domain.RunRecord) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.created = append(m.created, rec)
	return nil
}

func (m *memRunStore) ListRecent(ctx context.Context, limit int) ([]domain.RunRecord, error) {
	if limit > len(m.created) {
		limit = len(m.created)
	}
	return m.created[:limit], nil
}

func (m *memRunStore) LastSuccess(ctx context.Context, source domain.Source) (domain.RunRecord, error) {
	for i := len(m.created) - 1; i >= 0; i-- {
		if m.created[i].Source == source && m.created[i].Succeeded {
			return m.created[i], nil
		}
	}
	return domain.RunRecord{}, domain.ErrNotFound
}

// memObsStore is an in-memory ObservationStore.
type memObsStore struct {
	batches  map[string][]domain.Observation
	archived []domain.Observation
	listErr  error
}

func (m *memObsStore) InsertBatch(ctx context.Context, runID string, obs []domain.Observation) error {
	if m.batches == nil {
		m.batches = make(map[string][]domain.Observation)
	}
	m.batches[runID] = obs
	return nil
}

func (m *memObsStore) ListByDate(ctx context.Context, day time.Time, source domain.Source) ([]domain.Observation, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	return m.archived, nil
}

func day() time.Time {
	return time.Date(2024, 3, 15, 8, 0, 0, 0, time.UTC)
}

func TestRunnerValidatesAndWrites(t *testing.T) {
	t.Parallel()

	writer := &captureWriter{path: "/out/terminal/bond_yields_terminal_20240315.csv"}
	runner := NewRunner(newTestExecutor(nil), writer, testBonds(),
		domain.RetryPolicy{MaxAttempts: 1}, nil, nil, testLogger())

	fetcher := &stubFetcher{
		source: domain.SourceTerminal,
		obs: []domain.Observation{
			{BondID: "CP507394", BidYield: domain.Float(9.0), Source: domain.SourceTerminal, ObservedAt: day()},
			{BondID: "UNKNOWN", BidYield: domain.Float(5.0), Source: domain.SourceTerminal, ObservedAt: day()},
			{BondID: "CP885211", Source: domain.SourceTerminal, ObservedAt: day()},
		},
	}

	summary, obs, path := runner.Run(context.Background(), day(), fetcher)

	assert.True(t, summary.Succeeded)
	assert.Equal(t, domain.SourceTerminal, summary.Source)
	assert.Equal(t, 1, summary.RecordCount)
	assert.Equal(t, 2, summary.Dropped, "unknown bond and yield-less record are dropped")
	assert.Equal(t, 1, summary.AttemptsUsed)
	assert.Empty(t, summary.Err)

	require.Len(t, obs, 1)
	assert.Equal(t, "CP507394", obs[0].BondID)
	assert.Equal(t, writer.path, path)
	require.Len(t, writer.got, 1)
	assert.Equal(t, "CP507394", writer.got[0].BondID)
}

func TestRunnerRecoversWithinPolicy(t *testing.T) {
	t.Parallel()

	sender := &capturingSender{}
	writer := &captureWriter{path: "/out/x.csv"}
	runner := NewRunner(newTestExecutor(sender), writer, testBonds(),
		domain.RetryPolicy{MaxAttempts: 3, Delay: 0}, nil, nil, testLogger())

	fetcher := &stubFetcher{
		source: domain.SourceEmailReport,
		errs:   []error{errors.New("mailbox busy"), nil},
		obs: []domain.Observation{
			{BondID: "CP507394", BidYield: domain.Float(9.0), Source: domain.SourceEmailReport, ObservedAt: day()},
		},
	}

	summary, _, _ := runner.Run(context.Background(), day(), fetcher)

	assert.True(t, summary.Succeeded)
	assert.Equal(t, 2, summary.AttemptsUsed)
	assert.Empty(t, sender.all(), "a recovered workflow must not notify")
}

func TestRunnerFetchFailureNotifiesOnce(t *testing.T) {
	t.Parallel()

	sender := &capturingSender{}
	writer := &captureWriter{path: "/out/x.csv"}
	runner := NewRunner(newTestExecutor(sender), writer, testBonds(),
		domain.RetryPolicy{MaxAttempts: 2, Delay: 0}, nil, nil, testLogger())

	fetcher := &stubFetcher{
		source: domain.SourceEmailReport,
		errs:   []error{errors.New("pop3 down"), errors.New("pop3 down")},
	}

	summary, obs, path := runner.Run(context.Background(), day(), fetcher)

	assert.False(t, summary.Succeeded)
	assert.Equal(t, 2, summary.AttemptsUsed)
	assert.Contains(t, summary.Err, "pop3 down")
	assert.Nil(t, obs)
	assert.Empty(t, path)
	assert.Equal(t, 0, writer.calls, "nothing is written on fetch failure")

	titles := sender.all()
	require.Len(t, titles, 1)
	assert.Contains(t, titles[0], "NSX report")
}

func TestRunnerEmptyValidSetSkipsWriter(t *testing.T) {
	t.Parallel()

	writer := &captureWriter{path: "/out/x.csv"}
	runner := NewRunner(newTestExecutor(nil), writer, testBonds(),
		domain.RetryPolicy{MaxAttempts: 1}, nil, nil, testLogger())

	fetcher := &stubFetcher{
		source: domain.SourceSpreadsheet,
		obs: []domain.Observation{
			{BondID: "NOBODY", BidYield: domain.Float(1.0)},
		},
	}

	summary, obs, path := runner.Run(context.Background(), day(), fetcher)

	assert.True(t, summary.Succeeded, "an empty day is not a failure")
	assert.Equal(t, 0, summary.RecordCount)
	assert.Equal(t, 1, summary.Dropped)
	assert.Empty(t, obs)
	assert.Empty(t, path)
	assert.Equal(t, 0, writer.calls)
}

func TestRunnerWriteFailure(t *testing.T) {
	t.Parallel()

	writer := &captureWriter{err: errors.New("disk full")}
	runner := NewRunner(newTestExecutor(nil), writer, testBonds(),
		domain.RetryPolicy{MaxAttempts: 1}, nil, nil, testLogger())

	fetcher := &stubFetcher{
		source: domain.SourceTerminal,
		obs: []domain.Observation{
			{BondID: "CP507394", BidYield: domain.Float(9.0)},
		},
	}

	summary, obs, path := runner.Run(context.Background(), day(), fetcher)

	assert.False(t, summary.Succeeded)
	assert.Contains(t, summary.Err, "disk full")
	assert.Nil(t, obs)
	assert.Empty(t, path)
}

func TestRunnerRecordsHistory(t *testing.T) {
	t.Parallel()

	runs := &memRunStore{}
	obsStore := &memObsStore{}
	writer := &captureWriter{path: "/out/x.csv"}
	runner := NewRunner(newTestExecutor(nil), writer, testBonds(),
		domain.RetryPolicy{MaxAttempts: 1}, runs, obsStore, testLogger())

	fetcher := &stubFetcher{
		source: domain.SourceTerminal,
		obs: []domain.Observation{
			{BondID: "CP507394", BidYield: domain.Float(9.0), Source: domain.SourceTerminal, ObservedAt: day()},
		},
	}

	summary, _, _ := runner.Run(context.Background(), day(), fetcher)
	require.True(t, summary.Succeeded)

	require.Len(t, runs.created, 1)
	rec := runs.created[0]
	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, domain.SourceTerminal, rec.Source)
	assert.True(t, rec.Succeeded)
	assert.Equal(t, 1, rec.RecordCount)
	assert.False(t, rec.FinishedAt.Before(rec.StartedAt))

	require.Len(t, obsStore.batches[rec.ID], 1)
	assert.Equal(t, "CP507394", obsStore.batches[rec.ID][0].BondID)
}

func TestRunnerRecordsFailedRun(t *testing.T) {
	t.Parallel()

	runs := &memRunStore{}
	runner := NewRunner(newTestExecutor(nil), &captureWriter{}, testBonds(),
		domain.RetryPolicy{MaxAttempts: 1}, runs, nil, testLogger())

	fetcher := &stubFetcher{
		source: domain.SourceEmailReport,
		errs:   []error{errors.New("mailbox empty")},
	}

	summary, _, _ := runner.Run(context.Background(), day(), fetcher)
	require.False(t, summary.Succeeded)

	require.Len(t, runs.created, 1)
	assert.False(t, runs.created[0].Succeeded)
	assert.Contains(t, runs.created[0].Error, "mailbox empty")
}

func TestRunnerHistoryFailureIsNotFatal(t *testing.T) {
	t.Parallel()

	runs := &memRunStore{createErr: errors.New("db down")}
	writer := &captureWriter{path: "/out/x.csv"}
	runner := NewRunner(newTestExecutor(nil), writer, testBonds(),
		domain.RetryPolicy{MaxAttempts: 1}, runs, &memObsStore{}, testLogger())

	fetcher := &stubFetcher{
		source: domain.SourceTerminal,
		obs: []domain.Observation{
			{BondID: "CP507394", BidYield: domain.Float(9.0)},
		},
	}

	summary, _, path := runner.Run(context.Background(), day(), fetcher)

	assert.True(t, summary.Succeeded, "a down history store must not fail the collection")
	assert.Equal(t, writer.path, path)
}

func TestOperationName(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "terminal yields", operationName(domain.SourceTerminal))
	assert.Equal(t, "NSX report", operationName(domain.SourceEmailReport))
	assert.Equal(t, "IJG daily", operationName(domain.SourceSpreadsheet))
	assert.Equal(t, "fax", operationName(domain.Source("fax")))
}
