package logapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Fetcher defines the read side of the log server API.
// This interface is implemented by *Client and can be used for testing.
type Fetcher interface {
	FetchLogs(ctx context.Context, filter Filter) (LogResponse, error)
	FetchStatus(ctx context.Context) (*StatusResponse, error)
}

// Ensure Client implements Fetcher at compile time.
var _ Fetcher = (*Client)(nil)

// Client talks to the log server HTTP API.
type Client struct {
	baseURL   *url.URL
	http      *http.Client
	userAgent string
}

const (
	defaultServer    = "127.0.0.1:8080"
	defaultUserAgent = "perch/0.1"
	requestTimeout   = 10 * time.Second
	streamPath       = "/ws/logs"
)

// NewClient builds a Client using the provided host:port or URL value.
func NewClient(server string) (*Client, error) {
	base, err := parseBaseURL(server)
	if err != nil {
		return nil, err
	}
	return &Client{
		baseURL: base,
		http: &http.Client{
			Timeout: requestTimeout,
		},
		userAgent: defaultUserAgent,
	}, nil
}

// FetchLogs retrieves a snapshot of retained log entries matching filter.
func (c *Client) FetchLogs(ctx context.Context, filter Filter) (LogResponse, error) {
	if c == nil {
		return LogResponse{}, fmt.Errorf("client is nil")
	}
	rel := &url.URL{Path: "/api/logs", RawQuery: filter.Values().Encode()}
	var payload LogResponse
	if err := c.doURL(ctx, http.MethodGet, rel, &payload); err != nil {
		return LogResponse{}, err
	}
	if payload.Logs == nil {
		payload.Logs = []LogEntry{}
	}
	return payload, nil
}

// ClearLogs empties the server-side buffer. Repeating it is harmless.
func (c *Client) ClearLogs(ctx context.Context) error {
	if c == nil {
		return fmt.Errorf("client is nil")
	}
	return c.do(ctx, http.MethodDelete, "/api/logs", nil)
}

// FetchStatus retrieves buffer and upstream information.
func (c *Client) FetchStatus(ctx context.Context) (*StatusResponse, error) {
	if c == nil {
		return nil, fmt.Errorf("client is nil")
	}
	var payload StatusResponse
	if err := c.do(ctx, http.MethodGet, "/api/status", &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

// StreamURL returns the WebSocket endpoint for the live feed.
func (c *Client) StreamURL() string {
	u := *c.baseURL
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = streamPath
	return u.String()
}

// BaseURL returns the normalized server address.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// Values encodes the filter as /api/logs query parameters. Zero values are omitted.
func (f Filter) Values() url.Values {
	values := url.Values{}
	if search := f.Search; search != "" {
		values.Set("search", search)
	}
	if levels := joinLevels(f.Levels); levels != "" {
		values.Set("levels", levels)
	}
	if f.Regex {
		values.Set("regex", "true")
	}
	if f.AfterID > 0 {
		values.Set("afterId", strconv.FormatUint(f.AfterID, 10))
	}
	if f.Limit > 0 {
		values.Set("limit", strconv.Itoa(f.Limit))
	}
	return values
}

func joinLevels(levels []string) string {
	parts := make([]string, 0, len(levels))
	for _, level := range levels {
		if trimmed := strings.TrimSpace(level); trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return strings.Join(parts, ",")
}

func (c *Client) do(ctx context.Context, method, path string, dest any) error {
	rel := &url.URL{Path: path}
	return c.doURL(ctx, method, rel, dest)
}

func (c *Client) doURL(ctx context.Context, method string, rel *url.URL, dest any) error {
	reqURL := c.baseURL.ResolveReference(rel)
	req, err := http.NewRequestWithContext(ctx, method, reqURL.String(), nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("api %s %s returned status %d", method, rel.Path, resp.StatusCode)
	}
	if dest == nil {
		return nil
	}
	decoder := json.NewDecoder(resp.Body)
	if err := decoder.Decode(dest); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func parseBaseURL(server string) (*url.URL, error) {
	trimmed := strings.TrimSpace(server)
	if trimmed == "" {
		trimmed = defaultServer
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "http://" + trimmed
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parse server %q: %w", server, err)
	}
	switch u.Scheme {
	case "ws":
		u.Scheme = "http"
	case "wss":
		u.Scheme = "https"
	}
	u.Path = ""
	u.RawQuery = ""
	u.Fragment = ""
	return u, nil
}
