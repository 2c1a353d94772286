// Package httpapi is the JSON-over-HTTP transport shared by the platform clients.
// It applies bearer auth and the workspace's rate limit, and maps status codes
// onto the error kinds the pipeline understands.
package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/codeGROOVE-dev/retry"
	"github.com/mikey/reply-intel/internal/core"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	defaultTimeout   = 30 * time.Second
	defaultUserAgent = "reply-intel/1.0"
	maxErrorBody     = 2048
)

// Options configures a Client
type Options struct {
	BaseURL     string
	APIKey      string
	Timeout     time.Duration
	UserAgent   string
	Limiter     *rate.Limiter
	MaxAttempts uint
	Backoff     time.Duration
	HTTPClient  *http.Client
}

// StatusError is a non-success HTTP response
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: HTTP %d: %s", e.Method, e.Path, e.StatusCode, e.Body)
}

// IsStatus reports whether err is a StatusError with the given code
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == code
}

// Client issues authenticated JSON requests against one base URL
type Client struct {
	http   *http.Client
	opts   Options
	logger *zap.Logger
}

// New creates a client with defaults filled in
func New(opts Options, logger *zap.Logger) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.UserAgent == "" {
		opts.UserAgent = defaultUserAgent
	}
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 1
	}
	if opts.Backoff <= 0 {
		opts.Backoff = 500 * time.Millisecond
	}
	if opts.Limiter == nil {
		opts.Limiter = rate.NewLimiter(rate.Inf, 0)
	}
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: opts.Timeout}
	}
	return &Client{http: hc, opts: opts, logger: logger}
}

// Do performs one request. body, when non-nil, is sent as JSON; out, when
// non-nil, receives the decoded response.
func (c *Client) Do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	if err := c.opts.Limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	u := c.opts.BaseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.opts.APIKey)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.opts.UserAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &core.TransientError{Err: err}
	}
	defer resp.Body.Close()

	c.logger.Debug("http response",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("latency", time.Since(start)))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		tail, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return statusError(&StatusError{
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(tail)),
		})
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

// DoRetry is Do with retries on transient failures
func (c *Client) DoRetry(ctx context.Context, method, path string, query url.Values, body, out any) error {
	var lastErr error
	err := retry.Do(
		func() error {
			lastErr = c.Do(ctx, method, path, query, body, out)
			return lastErr
		},
		retry.Attempts(c.opts.MaxAttempts),
		retry.Delay(c.opts.Backoff),
		retry.MaxJitter(c.opts.Backoff/2+time.Millisecond),
		retry.Context(ctx),
		retry.MaxDelay(30 * time.Second),
		retry.RetryIf(core.IsTransient),
		retry.OnRetry(func(n uint, err error) {
			c.logger.Info("Retrying request after error",
				zap.String("path", path),
				zap.Uint("attempt", n+1),
				zap.Error(err))
		}),
	)
	if err != nil && lastErr != nil {
		return lastErr
	}
	return err
}

// statusError maps a response status onto the pipeline's error kinds
func statusError(se *StatusError) error {
	switch {
	case se.StatusCode == http.StatusUnauthorized, se.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: %w", core.ErrInvalidCredential, se)
	case se.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %w", core.ErrNotFound, se)
	case se.StatusCode == http.StatusTooManyRequests:
		return &core.TransientError{Err: fmt.Errorf("%w: %w", core.ErrRateLimited, se), StatusCode: se.StatusCode}
	case core.IsTransientHTTPStatus(se.StatusCode):
		return &core.TransientError{Err: se, StatusCode: se.StatusCode}
	}
	return se
}
