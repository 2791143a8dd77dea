// Package httpclient is a small JSON-over-HTTP client with optional Bearer
// auth and retry on rate limiting and server errors.
package httpclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const (
	maxRetries     = 3
	maxErrorBody   = 512
	defaultTimeout = 30 * time.Second
	defaultBackoff = time.Second
)

// Client sends JSON requests relative to a base URL.
type Client struct {
	baseURL string
	token   string
	headers map[string]string
	backoff time.Duration
	logger  *zap.Logger
	rc      *retryablehttp.Client
}

// APIError represents a non-2xx HTTP response.
type APIError struct {
	StatusCode int
	Body       string // first 512 bytes
}

func (e *APIError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Body)
}

// Option configures Client behavior.
type Option func(*Client)

// WithTimeout sets the per-attempt HTTP timeout. Default: 30s.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.rc.HTTPClient.Timeout = d }
}

// WithHeaders sets extra headers sent on every request.
func WithHeaders(h map[string]string) Option {
	return func(c *Client) { c.headers = h }
}

// WithBackoff sets the base retry delay, doubled on each attempt. Default: 1s.
func WithBackoff(d time.Duration) Option {
	return func(c *Client) { c.backoff = d }
}

// WithLogger logs retry attempts at debug level.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New creates a Client. An empty token sends no Authorization header.
func New(baseURL, token string, opts ...Option) *Client {
	rc := retryablehttp.NewClient()
	rc.HTTPClient.Timeout = defaultTimeout
	rc.Logger = nil

	c := &Client{
		baseURL: baseURL,
		token:   token,
		backoff: defaultBackoff,
		rc:      rc,
	}
	for _, opt := range opts {
		opt(c)
	}

	rc.RetryMax = maxRetries
	rc.RetryWaitMin = c.backoff
	rc.RetryWaitMax = c.backoff << maxRetries
	rc.CheckRetry = checkRetry
	// The last response is returned once retries run out.
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler
	if c.logger != nil {
		rc.Logger = leveledLogger{c.logger.Sugar()}
	}
	return c
}

// checkRetry retries 429 and 5xx responses and transport failures, and
// stops as soon as ctx is done.
func checkRetry(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return false, ctxErr
	}
	// DefaultRetryPolicy treats 501 as permanent.
	if resp != nil && resp.StatusCode == http.StatusNotImplemented {
		return true, nil
	}
	return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
}

// PostJSON marshals body, POSTs it to path, and unmarshals a 2xx response
// into dest when dest is non-nil. Non-2xx responses return *APIError.
// 429 and 503 honour Retry-After; 429 and 5xx are retried up to 3 times with
// exponential backoff.
func (c *Client) PostJSON(ctx context.Context, path string, body, dest any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return errors.Wrap(err, "httpclient: marshal")
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, payload)
	if err != nil {
		return errors.Wrap(err, "httpclient: new request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	resp, err := c.rc.Do(req)
	if err != nil {
		if resp != nil {
			resp.Body.Close()
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return err
	}
	respBody, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return errors.Wrap(err, "httpclient: read response")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if len(respBody) > maxErrorBody {
			respBody = respBody[:maxErrorBody]
		}
		return &APIError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}
	if dest == nil || len(respBody) == 0 {
		return nil
	}
	return errors.Wrap(json.Unmarshal(respBody, dest), "httpclient: decode response")
}

// leveledLogger adapts zap to retryablehttp.LeveledLogger.
type leveledLogger struct {
	s *zap.SugaredLogger
}

func (l leveledLogger) Error(msg string, kv ...any) { l.s.Errorw(msg, kv...) }
func (l leveledLogger) Info(msg string, kv ...any)  { l.s.Debugw(msg, kv...) }
func (l leveledLogger) Debug(msg string, kv ...any) { l.s.Debugw(msg, kv...) }
func (l leveledLogger) Warn(msg string, kv ...any)  { l.s.Warnw(msg, kv...) }
