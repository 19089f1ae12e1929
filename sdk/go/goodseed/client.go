// Package goodseed provides a Go client for the goodseed query API.
package goodseed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/carlmjohnson/requests"
)

// Config holds the settings needed to construct a Client.
type Config struct {
	// BaseURL is the root URL of the goodseed server
	// (e.g. "http://localhost:8765").
	BaseURL string

	// HTTPClient is an optional custom HTTP client. If nil, a default
	// client with a 30-second timeout is used.
	HTTPClient *http.Client

	// Timeout applies to individual API requests. Defaults to 30 seconds.
	Timeout time.Duration
}

// Client is an HTTP client for the goodseed query API.
// All methods are safe for concurrent use.
type Client struct {
	baseURL string
	client  *http.Client
}

// APIError is a non-2xx response decoded from the server's error body.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("goodseed: api error %d: %s", e.StatusCode, e.Message)
}

// NewClient creates a Client from the given configuration.
// Returns an error if BaseURL is empty.
func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("goodseed: BaseURL is required")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		client:  httpClient,
	}, nil
}

// ListRuns returns summaries for every run the server knows about,
// most recently created first.
func (c *Client) ListRuns(ctx context.Context) ([]RunSummary, error) {
	var resp runsResponse
	if err := c.get(ctx, "/api/runs", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Runs, nil
}

// Configs returns a run's configuration decoded to native JSON types.
func (c *Client) Configs(ctx context.Context, project, run string) (map[string]any, error) {
	var resp configsResponse
	if err := c.get(ctx, c.runPath(project, run, "configs"), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Configs, nil
}

// Metrics returns a run's metric points ordered by path then step.
// A non-empty path restricts the result to one series.
func (c *Client) Metrics(ctx context.Context, project, run, path string) ([]MetricPoint, error) {
	var params map[string]string
	if path != "" {
		params = map[string]string{"path": path}
	}
	var resp metricsResponse
	if err := c.get(ctx, c.runPath(project, run, "metrics"), params, &resp); err != nil {
		return nil, err
	}
	return resp.Metrics, nil
}

// MetricPaths returns the distinct metric series of a run, sorted.
func (c *Client) MetricPaths(ctx context.Context, project, run string) ([]string, error) {
	var resp metricPathsResponse
	if err := c.get(ctx, c.runPath(project, run, "metric-paths"), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Paths, nil
}

func (c *Client) runPath(project, run, leaf string) string {
	return "/api/runs/" + project + "/" + run + "/" + leaf
}

// get performs a GET request and decodes the body into out. Non-2xx
// responses become *APIError carrying the server's error message.
func (c *Client) get(ctx context.Context, path string, params map[string]string, out any) error {
	rb := requests.
		URL(c.baseURL + path).
		Client(c.client)
	for k, v := range params {
		rb = rb.Param(k, v)
	}

	// Disable the default 2xx validator so the handler sees error
	// responses and can decode the server's message.
	err := rb.
		AddValidator(nil).
		Handle(func(res *http.Response) error {
			defer res.Body.Close()
			body, err := io.ReadAll(res.Body)
			if err != nil {
				return fmt.Errorf("goodseed: read response: %w", err)
			}
			if res.StatusCode != http.StatusOK {
				var e errorResponse
				_ = json.Unmarshal(body, &e)
				msg := e.Error
				if msg == "" {
					msg = http.StatusText(res.StatusCode)
				}
				return &APIError{StatusCode: res.StatusCode, Message: msg}
			}
			if err := json.Unmarshal(body, out); err != nil {
				return fmt.Errorf("goodseed: decode response: %w", err)
			}
			return nil
		}).
		Fetch(ctx)
	return err
}
