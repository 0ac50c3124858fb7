// Package nsx retrieves the exchange's daily report from the operations
// mailbox and parses its bond trading sheet.
package nsx

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shikwambipolly/how-is-bloomberg/internal/domain"
)

// Message is one mailbox message summary as returned by the mail API.
type Message struct {
	ID             string    `json:"id"`
	Subject        string    `json:"subject"`
	ReceivedAt     time.Time `json:"receivedDateTime"`
	HasAttachments bool      `json:"hasAttachments"`
}

// attachment is the mail API's attachment envelope. Content travels inline,
// base64 encoded.
type attachment struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	ContentBytes string `json:"contentBytes"`
}

// Client is a minimal mail-API client for the report mailbox. It lists recent
// messages from one sender and downloads report attachments.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewClient creates a mail client for the API rooted at baseURL,
// authenticating with the given bearer token.
func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// ListMessages returns messages from sender received at or after since,
// newest first.
func (c *Client) ListMessages(ctx context.Context, sender string, since time.Time) ([]Message, error) {
	params := url.Values{}
	params.Set("$filter", fmt.Sprintf(
		"from/emailAddress/address eq '%s' and receivedDateTime ge %s",
		sender, since.UTC().Format(time.RFC3339),
	))
	params.Set("$orderby", "receivedDateTime desc")
	params.Set("$top", "25")

	path := "/me/messages?" + params.Encode()

	body, err := c.doGet(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("nsx: list messages: %w", err)
	}

	var out struct {
		Value []Message `json:"value"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("nsx: decode message list: %w", err)
	}

	return out.Value, nil
}

// DownloadAttachment returns the name and content of the first attachment on
// the given message whose filename contains nameContains.
func (c *Client) DownloadAttachment(ctx context.Context, messageID, nameContains string) (string, []byte, error) {
	path := fmt.Sprintf("/me/messages/%s/attachments", url.PathEscape(messageID))

	body, err := c.doGet(ctx, path)
	if err != nil {
		return "", nil, fmt.Errorf("nsx: list attachments: %w", err)
	}

	var out struct {
		Value []attachment `json:"value"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return "", nil, fmt.Errorf("nsx: decode attachment list: %w", err)
	}

	for _, a := range out.Value {
		if !strings.Contains(a.Name, nameContains) {
			continue
		}
		data, err := base64.StdEncoding.DecodeString(a.ContentBytes)
		if err != nil {
			return "", nil, fmt.Errorf("nsx: decode attachment %s: %w", a.Name, err)
		}
		return a.Name, data, nil
	}

	return "", nil, fmt.Errorf("nsx: %w: no attachment matching %q", domain.ErrNoReport, nameContains)
}

func (c *Client) doGet(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if err := checkHTTPStatus(resp.StatusCode, body); err != nil {
		return nil, err
	}

	return body, nil
}

// checkHTTPStatus maps non-2xx responses to domain sentinels where one fits.
func checkHTTPStatus(statusCode int, body []byte) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}

	bodyStr := string(body)
	switch statusCode {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", domain.ErrNotFound, bodyStr)
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: %s", domain.ErrUnauthorized, bodyStr)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", domain.ErrRateLimited, bodyStr)
	default:
		return fmt.Errorf("HTTP %d: %s", statusCode, bodyStr)
	}
}
