// Package client talks to the txlog HTTP API.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sajjad-MoBe/txlog/internal/api"
	txErr "github.com/sajjad-MoBe/txlog/internal/errors"
	"github.com/sajjad-MoBe/txlog/internal/logfile"
)

// Client represents a client for a txlog server
type Client struct {
	baseURL     string
	httpClient  *http.Client
	retryConfig RetryConfig
}

// RetryConfig defines retry behavior
type RetryConfig struct {
	MaxRetries int
	RetryDelay time.Duration
	Timeout    time.Duration
}

// DefaultRetryConfig returns default retry configuration
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries: 3,
		RetryDelay: 100 * time.Millisecond,
		Timeout:    5 * time.Second,
	}
}

// NewClient creates a client for the server at addr. A missing scheme
// defaults to http.
func NewClient(addr string, retryConfig RetryConfig) *Client {
	if !strings.Contains(addr, "://") {
		addr = "http://" + addr
	}
	if retryConfig.MaxRetries < 1 {
		retryConfig.MaxRetries = 1
	}
	return &Client{
		baseURL: strings.TrimRight(addr, "/"),
		httpClient: &http.Client{
			Timeout: retryConfig.Timeout,
		},
		retryConfig: retryConfig,
	}
}

// Healthy reports whether every server health check passes.
func (c *Client) Healthy(ctx context.Context) (bool, error) {
	var body struct {
		Status string `json:"status"`
	}
	err := c.do(ctx, http.MethodGet, "/health", &body)
	if err != nil && !isStatus(err, http.StatusServiceUnavailable) {
		return false, err
	}
	return body.Status == "ok", nil
}

// Logs lists the log files of the server, oldest first.
func (c *Client) Logs(ctx context.Context) ([]logfile.FileInfo, error) {
	var body struct {
		Files []logfile.FileInfo `json:"files"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v1/logs", &body); err != nil {
		return nil, err
	}
	return body.Files, nil
}

// Entries returns up to limit entries of log version v. A limit of zero uses
// the server default.
func (c *Client) Entries(ctx context.Context, v int64, limit int) ([]api.EntryView, error) {
	path := fmt.Sprintf("/api/v1/logs/%d/entries", v)
	if limit > 0 {
		path = fmt.Sprintf("%s?limit=%d", path, limit)
	}

	var body struct {
		Entries []api.EntryView `json:"entries"`
	}
	if err := c.do(ctx, http.MethodGet, path, &body); err != nil {
		return nil, err
	}
	return body.Entries, nil
}

// Recover asks the server to replay its log into a fresh store.
func (c *Client) Recover(ctx context.Context) (api.RecoveryReport, error) {
	var report api.RecoveryReport
	err := c.do(ctx, http.MethodPost, "/api/v1/recovery", &report)
	return report, err
}

// LastRecovery returns the report of the last recovery the server ran.
func (c *Client) LastRecovery(ctx context.Context) (api.RecoveryReport, error) {
	var report api.RecoveryReport
	err := c.do(ctx, http.MethodGet, "/api/v1/recovery", &report)
	return report, err
}

// statusError is a non-2xx response.
type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected status code: %d", e.code)
}

func isStatus(err error, code int) bool {
	var se *statusError
	if errors.As(err, &se) {
		return se.code == code
	}
	return false
}

// do sends a request and decodes the JSON body into out. Transport errors and
// 503 responses are retried; API errors come back as typed errors.
func (c *Client) do(ctx context.Context, method, path string, out interface{}) error {
	var lastErr error
	for i := 0; i < c.retryConfig.MaxRetries; i++ {
		if i > 0 {
			select {
			case <-time.After(c.retryConfig.RetryDelay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
		if err != nil {
			return fmt.Errorf("failed to create request: %v", err)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		retry, err := c.decode(resp, out)
		if !retry {
			return err
		}
		lastErr = err
	}
	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

func (c *Client) decode(resp *http.Response, out interface{}) (retry bool, err error) {
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return true, err
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if err := json.Unmarshal(data, out); err != nil {
			return false, fmt.Errorf("failed to decode response: %v", err)
		}
		return false, nil
	}

	if resp.StatusCode == http.StatusServiceUnavailable {
		// Health reports carry a body worth keeping.
		json.Unmarshal(data, out)
		return true, &statusError{code: resp.StatusCode}
	}

	var apiErr api.ErrorResponse
	if json.Unmarshal(data, &apiErr) == nil && apiErr.Error.Type != "" {
		return false, txErr.New(txErr.ErrorType(apiErr.Error.Type), apiErr.Error.Message, &statusError{code: resp.StatusCode})
	}
	return false, &statusError{code: resp.StatusCode}
}
