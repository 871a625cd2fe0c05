// Package api provides the HTTP client for the reporting dashboard API.
//
// This package handles all REST communication with the dashboard backend,
// including credential forwarding, retries, response parsing and error
// management. The generation stream itself is read by package sse, using the
// transport exposed by StreamingHTTPClient.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"

	"github.com/reportdash/reportctl/internal/config"
)

const (
	// DefaultTimeout is the default HTTP request timeout.
	DefaultTimeout = 30 * time.Second

	// SessionCookieName is the cookie the dashboard backend keeps its session in.
	SessionCookieName = "session_id"

	userAgent = "reportctl/1.0"
)

// Client is the dashboard API client.
type Client struct {
	baseURL       string
	token         string
	sessionCookie string
	rest          *resty.Client
	logger        *log.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithSessionCookie forwards cookie as the dashboard session cookie.
func WithSessionCookie(cookie string) ClientOption {
	return func(c *Client) { c.sessionCookie = cookie }
}

// WithTimeout sets the timeout of non-streaming requests.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.rest.SetTimeout(d)
		}
	}
}

// WithRetry sets how many times idempotent requests are retried.
func WithRetry(count int, wait time.Duration) ClientOption {
	return func(c *Client) {
		c.rest.SetRetryCount(count).SetRetryWaitTime(wait)
	}
}

// WithLogger sets the logger used for request tracing.
func WithLogger(l *log.Logger) ClientOption {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewClient creates a new API client using the production URL.
//
// Parameters:
//   - token: Bearer token (may be empty)
//
// Returns:
//   - *Client: A new client instance
func NewClient(token string, opts ...ClientOption) *Client {
	return NewClientWithBaseURL(token, config.ProdBackendURL, opts...)
}

// NewClientWithDevMode creates a new API client with dev mode support.
// When devMode is true, the client uses an auto-detected localhost URL.
//
// Parameters:
//   - token: Bearer token (may be empty)
//   - devMode: If true, use the local development server URL
//
// Returns:
//   - *Client: A new client instance
func NewClientWithDevMode(token string, devMode bool, opts ...ClientOption) *Client {
	return NewClientWithBaseURL(token, config.GetBackendURL(devMode), opts...)
}

// NewClientWithBaseURL creates a new API client with a custom base URL.
//
// Parameters:
//   - token: Bearer token (may be empty)
//   - baseURL: The dashboard root URL, without the /api suffix
//
// Returns:
//   - *Client: A new client instance
func NewClientWithBaseURL(token, baseURL string, opts ...ClientOption) *Client {
	baseURL = strings.TrimRight(baseURL, "/")
	c := &Client{
		baseURL: baseURL,
		token:   token,
		logger:  log.Default(),
		rest: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(DefaultTimeout).
			SetHeader("Accept", "application/json").
			SetHeader("User-Agent", userAgent).
			SetRetryCount(3).
			SetRetryWaitTime(100 * time.Millisecond).
			SetRetryMaxWaitTime(2 * time.Second),
	}
	c.rest.AddRetryCondition(retryCondition)

	for _, opt := range opts {
		opt(c)
	}

	if c.token != "" {
		c.rest.SetAuthToken(c.token)
	}
	if c.sessionCookie != "" {
		c.rest.SetCookie(&http.Cookie{Name: SessionCookieName, Value: c.sessionCookie})
	}
	return c
}

// NewClientFromConfig builds a client from resolved settings.
func NewClientFromConfig(cfg *config.Config, opts ...ClientOption) *Client {
	base := []ClientOption{
		WithSessionCookie(cfg.SessionCookie),
		WithTimeout(cfg.RequestTimeout.Std()),
	}
	return NewClientWithBaseURL(cfg.Token, cfg.BaseURL, append(base, opts...)...)
}

// BaseURL returns the dashboard root URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// GenerateURL returns the generation stream endpoint for a report.
func (c *Client) GenerateURL(reportID string) string {
	return c.baseURL + reportPath(reportID) + "/generate"
}

// StreamingHTTPClient returns a copy of the REST transport without an overall
// timeout, for long-lived event streams.
func (c *Client) StreamingHTTPClient() *http.Client {
	hc := *c.rest.GetClient()
	// Use a client with no timeout for streaming connections
	hc.Timeout = 0
	return &hc
}

// AuthHeaders returns the credential headers to send on stream requests.
func (c *Client) AuthHeaders() http.Header {
	h := make(http.Header)
	h.Set("User-Agent", userAgent)
	if c.token != "" {
		h.Set("Authorization", "Bearer "+c.token)
	}
	if c.sessionCookie != "" {
		h.Set("Cookie", (&http.Cookie{Name: SessionCookieName, Value: c.sessionCookie}).String())
	}
	return h
}

// APIError represents an error response from the API.
type APIError struct {
	StatusCode int
	Message    string
	Detail     string
}

// Error returns a human-readable error message.
//
// Returns:
//   - string: The error message, with fallback to HTTP status if no message available
func (e *APIError) Error() string {
	if e.Message != "" && e.Detail != "" {
		return fmt.Sprintf("%s: %s", e.Message, e.Detail)
	}
	if e.Message != "" {
		return e.Message
	}
	if e.Detail != "" {
		return e.Detail
	}
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, http.StatusText(e.StatusCode))
}

// IsNotFound reports whether err is a 404 from the API.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// retryCondition retries idempotent requests on network errors and 5xx/429.
func retryCondition(r *resty.Response, err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if r == nil || r.Request == nil {
		return err != nil
	}
	if r.Request.Method != http.MethodGet {
		return false
	}
	if err != nil {
		return true
	}
	code := r.StatusCode()
	return code >= 500 || code == http.StatusTooManyRequests || code == http.StatusRequestTimeout
}

// doRequest performs a request and returns the raw body of a successful response.
func (c *Client) doRequest(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	req := c.rest.R().SetContext(ctx)
	if body != nil {
		req.SetHeader("Content-Type", "application/json").SetBody(body)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	c.logger.Debug("API request completed", "method", method, "path", path, "status", resp.StatusCode())
	if resp.StatusCode() >= 400 {
		return nil, parseError(resp.StatusCode(), resp.Body())
	}
	return resp.Body(), nil
}

// parseError builds an APIError from an {"error", "details"} envelope.
// Supports multiple common error field names.
func parseError(status int, body []byte) error {
	apiErr := &APIError{StatusCode: status}
	if gjson.ValidBytes(body) {
		r := gjson.ParseBytes(body)
		apiErr.Message = firstString(r, "error", "message")
		apiErr.Detail = firstString(r, "details", "detail")
	}

	// Fallback to raw body if no structured error found
	if apiErr.Message == "" && apiErr.Detail == "" {
		bodyStr := strings.TrimSpace(string(body))
		if len(bodyStr) > 200 {
			bodyStr = bodyStr[:200] + "..."
		}
		apiErr.Detail = bodyStr
	}
	return apiErr
}

func reportPath(reportID string) string {
	return "/api/dynamic-queries/" + url.PathEscape(reportID)
}
