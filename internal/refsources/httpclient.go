package refsources

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

// HTTPClientConfig configures a per-source HTTP client.
type HTTPClientConfig struct {
	Timeout      time.Duration
	RateLimit    float64 // requests per second
	BurstSize    int
	MaxRetries   int
	RetryDelay   time.Duration // base delay when the server names none
	UserAgent    string
	APIKey       string
	APIKeyHeader string // header carrying APIKey, e.g. "X-API-Key"
}

// HTTPClient is the shared transport for source adapters: every request
// passes the source's token bucket first, and 429/5xx responses are
// retried with the server's Retry-After when it sends one. Safe for
// concurrent use.
type HTTPClient struct {
	client      *http.Client
	rateLimiter *RateLimiter
	config      HTTPClientConfig
}

func NewHTTPClient(cfg HTTPClientConfig) *HTTPClient {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = 10
	}
	if cfg.BurstSize == 0 {
		cfg.BurstSize = 10
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "Theke-CitationGraph/1.0"
	}

	return &HTTPClient{
		client:      &http.Client{Timeout: cfg.Timeout},
		rateLimiter: NewRateLimiter(cfg.RateLimit, cfg.BurstSize),
		config:      cfg,
	}
}

// Do executes the request under the rate limit, retrying transport
// errors and retryable statuses up to MaxRetries times.
//
// A request body survives retries only when GetBody is set, which is
// the case for all requests the adapters build.
func (c *HTTPClient) Do(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.config.UserAgent)
	}
	if c.config.APIKey != "" && c.config.APIKeyHeader != "" {
		req.Header.Set(c.config.APIKeyHeader, c.config.APIKey)
	}

	attempts := c.config.MaxRetries + 1
	var lastStatus int
	var lastErr error

	for attempt := 0; attempt < attempts; attempt++ {
		if err := c.rateLimiter.Wait(req.Context()); err != nil {
			return nil, fmt.Errorf("rate limiter wait: %w", err)
		}

		resp, err := c.client.Do(req)
		delay := c.config.RetryDelay
		switch {
		case err != nil:
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, err
			}
			lastErr = fmt.Errorf("request failed: %w", err)
			lastStatus = 0
		case c.shouldRetry(resp.StatusCode):
			lastErr = fmt.Errorf("server returned status %d", resp.StatusCode)
			lastStatus = resp.StatusCode
			delay = c.getRetryDelay(resp)
			drain(resp)
		default:
			return resp, nil
		}

		if attempt == attempts-1 {
			break
		}
		if err := c.pause(req.Context(), delay); err != nil {
			return nil, err
		}
		if err := rewindBody(req); err != nil {
			return nil, fmt.Errorf("cannot retry request: %w", err)
		}
	}

	if lastStatus != 0 {
		return nil, fmt.Errorf("max retries exhausted after %d attempts, last status: %d", attempts, lastStatus)
	}
	return nil, lastErr
}

// shouldRetry reports whether the status is worth another attempt.
func (c *HTTPClient) shouldRetry(statusCode int) bool {
	return statusCode == http.StatusTooManyRequests ||
		(statusCode >= 500 && statusCode < 600)
}

// getRetryDelay honors Retry-After (seconds or HTTP date) and falls
// back to the configured base delay.
func (c *HTTPClient) getRetryDelay(resp *http.Response) time.Duration {
	header := resp.Header.Get("Retry-After")
	if header == "" {
		return c.config.RetryDelay
	}

	if seconds, err := strconv.ParseInt(header, 10, 64); err == nil {
		if seconds > 0 {
			return time.Duration(seconds) * time.Second
		}
		return c.config.RetryDelay
	}

	if at, err := http.ParseTime(header); err == nil {
		if until := time.Until(at); until > 0 {
			return until
		}
	}
	return c.config.RetryDelay
}

func (c *HTTPClient) pause(ctx context.Context, delay time.Duration) error {
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// drain consumes and closes the body so the connection can be reused
// for the retry.
func drain(resp *http.Response) {
	if resp.Body != nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}
}

// rewindBody restores the request body before a retry. Bodyless
// requests pass through untouched.
func rewindBody(req *http.Request) error {
	if req.Body == nil || req.GetBody == nil {
		return nil
	}
	body, err := req.GetBody()
	if err != nil {
		return fmt.Errorf("get request body for retry: %w", err)
	}
	req.Body = body
	return nil
}
