package terminal

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shikwambipolly/how-is-bloomberg/internal/crypto"
	"github.com/shikwambipolly/how-is-bloomberg/internal/domain"
)

var upgrader = websocket.Upgrader{}

// gatewayHandler scripts the fake gateway's reaction to one refdata request.
type gatewayHandler func(conn *websocket.Conn, req refdataRequest)

// newGateway starts a fake refdata gateway and returns its host:port. The
// handshake headers of every connection are recorded into headers when it is
// non-nil.
func newGateway(t *testing.T, headers *http.Header, handle gatewayHandler) string {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != refdataPath {
			http.NotFound(w, r)
			return
		}
		if headers != nil {
			*headers = r.Header.Clone()
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade failed: %v", err)
			return
		}
		defer conn.Close()
		for {
			var req refdataRequest
			if err := conn.ReadJSON(&req); err != nil {
				return
			}
			handle(conn, req)
		}
	}))
	t.Cleanup(srv.Close)
	return strings.TrimPrefix(srv.URL, "http://")
}

func respond(conn *websocket.Conn, id int64, rows ...SecurityData) {
	_ = conn.WriteJSON(refdataResponse{
		Type:       msgTypeResponse,
		RequestID:  id,
		Securities: rows,
	})
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestClientRequestRoundTrip(t *testing.T) {
	t.Parallel()

	addr := newGateway(t, nil, func(conn *websocket.Conn, req refdataRequest) {
		respond(conn, req.RequestID,
			SecurityData{Security: "CP507394", Fields: map[string]*float64{
				fieldBidYield: domain.Float(9.0),
				fieldAskYield: domain.Float(9.05),
			}},
		)
	})

	c := NewClient(addr, nil, 5*time.Second)
	require.NoError(t, c.Connect(context.Background()))
	defer c.Close()

	rows, err := c.Request(context.Background(), []string{"CP507394"}, []string{fieldBidYield, fieldAskYield})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "CP507394", rows[0].Security)
	assert.InDelta(t, 9.0, *rows[0].Fields[fieldBidYield], 1e-9)
	assert.InDelta(t, 9.05, *rows[0].Fields[fieldAskYield], 1e-9)
}

func TestClientSkipsUnrelatedFrames(t *testing.T) {
	t.Parallel()

	addr := newGateway(t, nil, func(conn *websocket.Conn, req refdataRequest) {
		_ = conn.WriteJSON(map[string]string{"type": "heartbeat"})
		_ = conn.WriteJSON(refdataResponse{Type: msgTypeResponse, RequestID: req.RequestID - 1})
		respond(conn, req.RequestID, SecurityData{Security: "CP507394"})
	})

	c := NewClient(addr, nil, 5*time.Second)
	require.NoError(t, c.Connect(context.Background()))
	defer c.Close()

	rows, err := c.Request(context.Background(), []string{"CP507394"}, []string{fieldBidYield})
	require.NoError(t, err)
	require.Len(t, rows, 1, "heartbeats and stale responses must be skipped")
}

func TestClientGatewayError(t *testing.T) {
	t.Parallel()

	addr := newGateway(t, nil, func(conn *websocket.Conn, req refdataRequest) {
		_ = conn.WriteJSON(refdataResponse{
			Type:      msgTypeResponse,
			RequestID: req.RequestID,
			Error:     "unknown field FOO",
		})
	})

	c := NewClient(addr, nil, 5*time.Second)
	require.NoError(t, c.Connect(context.Background()))
	defer c.Close()

	_, err := c.Request(context.Background(), []string{"CP507394"}, []string{"FOO"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown field FOO")
}

func TestClientRequestWithoutConnect(t *testing.T) {
	t.Parallel()

	c := NewClient("localhost:0", nil, time.Second)
	_, err := c.Request(context.Background(), []string{"CP507394"}, []string{fieldBidYield})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrWSDisconnect)
}

func TestClientSignsHandshake(t *testing.T) {
	t.Parallel()

	var got http.Header
	addr := newGateway(t, &got, func(conn *websocket.Conn, req refdataRequest) {
		respond(conn, req.RequestID)
	})

	auth := &crypto.HMACAuth{Key: "key-123", Secret: "secret"}
	c := NewClient(addr, auth, 5*time.Second)
	require.NoError(t, c.Connect(context.Background()))
	defer c.Close()

	assert.Equal(t, "key-123", got.Get("X-Api-Key"))
	assert.NotEmpty(t, got.Get("X-Timestamp"))
	assert.NotEmpty(t, got.Get("X-Signature"))
}

func TestClientReconnectAfterClose(t *testing.T) {
	t.Parallel()

	addr := newGateway(t, nil, func(conn *websocket.Conn, req refdataRequest) {
		respond(conn, req.RequestID, SecurityData{Security: "CP507394"})
	})

	c := NewClient(addr, nil, 5*time.Second)
	require.NoError(t, c.Connect(context.Background()))
	require.NoError(t, c.Close())

	require.NoError(t, c.Connect(context.Background()))
	defer c.Close()
	rows, err := c.Request(context.Background(), []string{"CP507394"}, []string{fieldBidYield})
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestSourceFetch(t *testing.T) {
	t.Parallel()

	addr := newGateway(t, nil, func(conn *websocket.Conn, req refdataRequest) {
		if len(req.Securities) != 2 || req.Securities[0] != "CP507394" {
			conn.WriteJSON(refdataResponse{Type: msgTypeResponse, RequestID: req.RequestID, Error: "bad request"})
			return
		}
		respond(conn, req.RequestID,
			SecurityData{Security: "CP507394", Fields: map[string]*float64{
				fieldBidYield: domain.Float(9.0),
			}},
			SecurityData{Security: "CP885211", Error: "not entitled"},
		)
	})

	bonds := domain.NewBondList([]domain.Bond{
		{ID: "CP507394", Label: "R186"},
		{ID: "CP885211", Label: "R2030"},
	})
	src := NewSource(NewClient(addr, nil, 5*time.Second), bonds, testLogger())

	assert.Equal(t, domain.SourceTerminal, src.Source())

	obs, err := src.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, obs, 1, "rejected securities are skipped")

	o := obs[0]
	assert.Equal(t, "CP507394", o.BondID)
	assert.Equal(t, domain.SourceTerminal, o.Source)
	require.NotNil(t, o.BidYield)
	assert.InDelta(t, 9.0, *o.BidYield, 1e-9)
	assert.Nil(t, o.AskYield, "a field the gateway omits stays nil")
	assert.False(t, o.ObservedAt.IsZero())
}

func TestSourceFetchConnectFailure(t *testing.T) {
	t.Parallel()

	// A server that is immediately closed leaves a refused port behind.
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := strings.TrimPrefix(srv.URL, "http://")
	srv.Close()

	bonds := domain.NewBondList([]domain.Bond{{ID: "CP507394", Label: "R186"}})
	src := NewSource(NewClient(addr, nil, time.Second), bonds, testLogger())

	_, err := src.Fetch(context.Background())
	require.Error(t, err)
	assert.True(t, domain.IsRetryable(err), "a connect failure is transient")
}
