package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Client talks to a running daemon's admin API over HTTP.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewClient builds an API client against the given bind address. The address
// may be a bare host:port or a full http URL. Token may be empty when the
// daemon runs without authentication.
func NewClient(address, token string) *Client {
	base := strings.TrimSpace(address)
	if base != "" && !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}
	return &Client{
		baseURL: strings.TrimRight(base, "/"),
		token:   token,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// Status fetches daemon runtime information.
func (c *Client) Status(ctx context.Context) (*DaemonStatus, error) {
	var status DaemonStatus
	if err := c.get(ctx, "/api/status", &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// Health fetches the trailing-window scrape health report.
func (c *Client) Health(ctx context.Context) (*HealthView, error) {
	var health HealthView
	if err := c.get(ctx, "/api/health", &health); err != nil {
		return nil, err
	}
	return &health, nil
}

// Titles fetches every tracked title overview.
func (c *Client) Titles(ctx context.Context) ([]TitleView, error) {
	var resp TitleListResponse
	if err := c.get(ctx, "/api/titles", &resp); err != nil {
		return nil, err
	}
	return resp.Titles, nil
}

// AddTitle registers a new collection entry.
func (c *Client) AddTitle(ctx context.Context, req AddTitleRequest) (*TitleView, error) {
	var resp TitleResponse
	if err := c.post(ctx, "/api/titles", req, &resp); err != nil {
		return nil, err
	}
	return &resp.Title, nil
}

// TriggerScrape runs the scrape pipeline for one title immediately.
func (c *Client) TriggerScrape(ctx context.Context, titleID int64) (*ScrapeResult, error) {
	var result ScrapeResult
	if err := c.post(ctx, fmt.Sprintf("/api/scrape/%d", titleID), nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Notifications fetches stored notifications, pending ones only when asked.
func (c *Client) Notifications(ctx context.Context, limit int, pendingOnly bool) ([]NotificationView, error) {
	path := fmt.Sprintf("/api/notifications?limit=%d", limit)
	if pendingOnly {
		path += "&pending=1"
	}
	var resp NotificationListResponse
	if err := c.get(ctx, path, &resp); err != nil {
		return nil, err
	}
	return resp.Notifications, nil
}

// MarkNotificationRead flags a notification as seen.
func (c *Client) MarkNotificationRead(ctx context.Context, id int64) error {
	return c.post(ctx, fmt.Sprintf("/api/notifications/%d/read", id), nil, nil)
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPost, path, body, out)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	if c.baseURL == "" {
		return fmt.Errorf("daemon api address is not configured")
	}

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("daemon api request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var apiErr ErrorResponse
		if decodeErr := json.NewDecoder(resp.Body).Decode(&apiErr); decodeErr == nil && apiErr.Error != "" {
			return fmt.Errorf("daemon api: %s", apiErr.Error)
		}
		return fmt.Errorf("daemon api: unexpected status %d", resp.StatusCode)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
