// Package rest provides the shared HTTP layer for the course-operations
// service clients: JSON request helpers plus a lazy pager that normalizes
// the three pagination idioms the upstream APIs use.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

// maxResponseSize limits response bodies to prevent memory exhaustion.
const maxResponseSize = 10 * 1024 * 1024 // 10MB

// APIError carries a non-2xx response back to the caller unchanged.
// The core does no status-code interpretation; remediation is the
// caller's decision.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	body := e.Body
	if len(body) > 200 {
		body = body[:200] + "..."
	}
	return fmt.Sprintf("API error (status %d): %s", e.StatusCode, body)
}

// Client wraps an HTTP client with JSON helpers shared by the service
// clients. It holds no per-service state.
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(client *Client) {
		client.httpClient = c
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(client *Client) {
		client.logger = logger
	}
}

// NewClient creates a Client with a 60s request timeout by default.
func NewClient(opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Do executes one HTTP request and returns the response status, headers,
// and fully-read body. A non-2xx status is returned as *APIError.
func (c *Client) Do(ctx context.Context, method, rawURL string, header http.Header, body []byte) (http.Header, []byte, error) {
	reqID := uuid.New().String()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		return nil, nil, fmt.Errorf("create HTTP request: %w", err)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	c.logger.Debug("Sending request",
		"request_id", reqID,
		"method", method,
		"url", rawURL)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, nil, fmt.Errorf("read response body: %w", err)
	}

	c.logger.Debug("Received response",
		"request_id", reqID,
		"status", resp.StatusCode,
		"bytes", len(respBody))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return resp.Header, respBody, &APIError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	return resp.Header, respBody, nil
}

// GetJSON issues a GET and decodes the JSON response into out.
// Unknown response fields are ignored.
func (c *Client) GetJSON(ctx context.Context, rawURL string, header http.Header, out any) error {
	_, body, err := c.Do(ctx, http.MethodGet, rawURL, header, nil)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// SendJSON issues a request with a JSON body and decodes the JSON
// response into out. A nil in sends no body; a nil out discards the
// response.
func (c *Client) SendJSON(ctx context.Context, method, rawURL string, header http.Header, in, out any) error {
	var payload []byte
	if in != nil {
		var err error
		payload, err = json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		if header == nil {
			header = http.Header{}
		} else {
			header = header.Clone()
		}
		header.Set("Content-Type", "application/json")
	}

	_, body, err := c.Do(ctx, method, rawURL, header, payload)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// PostForm issues a POST with a URL-encoded form body and decodes the
// JSON response into out.
func (c *Client) PostForm(ctx context.Context, rawURL string, header http.Header, form url.Values, out any) error {
	if header == nil {
		header = http.Header{}
	} else {
		header = header.Clone()
	}
	header.Set("Content-Type", "application/x-www-form-urlencoded")

	_, body, err := c.Do(ctx, http.MethodPost, rawURL, header, []byte(form.Encode()))
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// NormalizeBaseURL turns a server address into a base URL. A bare
// "host:port" is reached over HTTPS; an explicit scheme is kept. Any
// trailing slash is trimmed.
func NormalizeBaseURL(addr string) string {
	if !strings.Contains(addr, "://") {
		addr = "https://" + addr
	}
	return strings.TrimSuffix(addr, "/")
}
