// Package terminal speaks to the local market-data terminal gateway over its
// WebSocket reference-data API. The protocol is strict request/response: one
// refdata request goes out, one matching response comes back.
package terminal

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/shikwambipolly/how-is-bloomberg/internal/crypto"
	"github.com/shikwambipolly/how-is-bloomberg/internal/domain"
)

const (
	// writeWait is the time allowed to write a message to the gateway.
	writeWait = 10 * time.Second

	// handshakeTimeout bounds the WebSocket dial.
	handshakeTimeout = 15 * time.Second

	// defaultRequestTimeout bounds the wait for a refdata response when the
	// caller's context carries no deadline.
	defaultRequestTimeout = 30 * time.Second

	// refdataPath is the gateway's reference-data endpoint.
	refdataPath = "/refdata"
)

// Client is a WebSocket client for the gateway's reference-data service.
// Connect, issue requests, Close. Requests are serialized over the single
// connection.
type Client struct {
	addr    string
	auth    *crypto.HMACAuth // nil when the gateway runs unauthenticated
	timeout time.Duration

	mu   sync.Mutex
	conn *websocket.Conn
	seq  int64
}

// NewClient creates a Client for the gateway at addr ("host:port"). auth may
// be nil when the gateway does not require signed handshakes.
func NewClient(addr string, auth *crypto.HMACAuth, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	return &Client{
		addr:    addr,
		auth:    auth,
		timeout: timeout,
	}
}

// Connect establishes the WebSocket connection. Calling Connect on a
// connected client is a no-op.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		return nil
	}

	u := url.URL{Scheme: "ws", Host: c.addr, Path: refdataPath}

	var header http.Header
	if c.auth != nil {
		header = make(http.Header)
		for k, v := range c.auth.Headers(http.MethodGet, refdataPath, "") {
			header.Set(k, v)
		}
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: handshakeTimeout,
	}

	conn, _, err := dialer.DialContext(ctx, u.String(), header)
	if err != nil {
		return fmt.Errorf("terminal: connect %s: %w", u.String(), err)
	}

	c.conn = conn
	return nil
}

// Request asks the gateway for the given fields on the given securities and
// waits for the matching response. Frames that are not the matching refdata
// response (heartbeats, stale responses) are skipped.
func (c *Client) Request(ctx context.Context, securities, fields []string) ([]SecurityData, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return nil, fmt.Errorf("terminal: request: %w", domain.ErrWSDisconnect)
	}

	c.seq++
	req := refdataRequest{
		Type:       msgTypeRequest,
		RequestID:  c.seq,
		Securities: securities,
		Fields:     fields,
	}

	data, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("terminal: marshal request: %w", err)
	}

	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return nil, fmt.Errorf("terminal: send request: %w", err)
	}

	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	c.conn.SetReadDeadline(deadline)

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			return nil, fmt.Errorf("terminal: read response: %w", err)
		}

		var resp refdataResponse
		if err := json.Unmarshal(raw, &resp); err != nil {
			continue
		}
		if resp.Type != msgTypeResponse || resp.RequestID != req.RequestID {
			continue
		}
		if resp.Error != "" {
			return nil, fmt.Errorf("terminal: gateway error: %s", resp.Error)
		}
		return resp.Securities, nil
	}
}

// Close shuts down the connection. The client can Connect again afterwards.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return nil
	}

	_ = c.conn.WriteMessage(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
	)
	err := c.conn.Close()
	c.conn = nil
	return err
}
