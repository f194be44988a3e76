// Package reddit scrapes Reddit via public RSS feeds and JSON pages,
// no API credentials required.
package reddit

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/fairyhunter13/pain-radar/internal/config"
	"github.com/fairyhunter13/pain-radar/internal/domain"
	"github.com/fairyhunter13/pain-radar/internal/observability"
)

// ErrEmpty marks a 403/404 response. Callers swallow it and return an
// empty result; the community or post is private, banned, or gone.
var ErrEmpty = fmt.Errorf("resource unavailable: %w", domain.ErrNotFound)

// RateLimitError is a 429 response with an optional Retry-After duration.
type RateLimitError struct {
	RetryAfter    time.Duration
	HasRetryAfter bool
}

func (e *RateLimitError) Error() string {
	if e.HasRetryAfter {
		return fmt.Sprintf("rate limited (429), retry after %s", e.RetryAfter)
	}
	return "rate limited (429)"
}

func (e *RateLimitError) Unwrap() error { return domain.ErrRateLimited }

// TransientError is a 5xx response.
type TransientError struct {
	StatusCode int
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("server error (%d)", e.StatusCode)
}

// Client is the shared HTTP transport for all Reddit requests in a run.
type Client struct {
	http          *http.Client
	baseURL       string
	userAgent     string
	initial       time.Duration
	maxInterval   time.Duration
	maxAttempts   int
	retryAfterCap time.Duration
}

// NewClient builds the transport with browser-like headers and pool limits.
func NewClient(cfg config.Config) *Client {
	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout: 10 * time.Second,
		}).DialContext,
		MaxIdleConns:        20,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     30 * time.Second,
	}
	initial, maxInterval, attempts := cfg.GetHTTPBackoffConfig()
	return &Client{
		http: &http.Client{
			Timeout:   30 * time.Second,
			Transport: otelhttp.NewTransport(transport),
		},
		baseURL:       cfg.RedditBaseURL,
		userAgent:     cfg.UserAgent,
		initial:       initial,
		maxInterval:   maxInterval,
		maxAttempts:   attempts,
		retryAfterCap: cfg.RetryAfterCap,
	}
}

// BaseURL returns the configured Reddit base URL.
func (c *Client) BaseURL() string { return c.baseURL }

// ParseRetryAfter reads a Retry-After header in either integer-seconds or
// RFC-1123 date form. Dates in the past yield zero.
func ParseRetryAfter(h http.Header) (time.Duration, bool) {
	v := h.Get("Retry-After")
	if v == "" {
		return 0, false
	}
	if secs, err := strconv.ParseFloat(v, 64); err == nil {
		if secs < 0 {
			secs = 0
		}
		return time.Duration(secs * float64(time.Second)), true
	}
	if t, err := http.ParseTime(v); err == nil {
		d := time.Until(t)
		if d < 0 {
			d = 0
		}
		return d, true
	}
	return 0, false
}

// Get fetches a URL, retrying transport failures, 429s, and 5xx responses
// up to the configured attempt budget. 403/404 return ErrEmpty without
// retry. The endpoint label is for metrics only.
func (c *Client) Get(ctx context.Context, url, endpoint string) ([]byte, error) {
	var body []byte
	start := time.Now()
	outcome := "ok"

	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("op=reddit.Get: %w", err))
		}
		c.setHeaders(req)

		resp, err := c.http.Do(req)
		if err != nil {
			// Transport-level failure: retryable.
			return fmt.Errorf("op=reddit.Get: %w", err)
		}
		defer func() { _ = resp.Body.Close() }()

		switch {
		case resp.StatusCode == http.StatusOK:
			b, err := io.ReadAll(resp.Body)
			if err != nil {
				return fmt.Errorf("op=reddit.Get: read body: %w", err)
			}
			body = b
			return nil
		case resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusNotFound:
			outcome = "empty"
			return backoff.Permanent(ErrEmpty)
		case resp.StatusCode == http.StatusTooManyRequests:
			outcome = "rate_limited"
			rlErr := &RateLimitError{}
			if d, ok := ParseRetryAfter(resp.Header); ok {
				rlErr.RetryAfter = d
				rlErr.HasRetryAfter = true
			}
			c.adaptiveSleep(ctx, rlErr)
			return rlErr
		case resp.StatusCode >= 500:
			outcome = "transient"
			return &TransientError{StatusCode: resp.StatusCode}
		default:
			outcome = "permanent"
			return backoff.Permanent(fmt.Errorf("op=reddit.Get: status %d", resp.StatusCode))
		}
	}

	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = c.initial
	expo.MaxInterval = c.maxInterval
	bo := backoff.WithContext(backoff.WithMaxRetries(expo, uint64(c.maxAttempts-1)), ctx)

	attempt := 0
	notify := func(err error, wait time.Duration) {
		attempt++
		slog.Warn("reddit request retry",
			slog.String("url", url),
			slog.Int("attempt", attempt),
			slog.Duration("wait", wait),
			slog.Any("error", err))
	}

	err := backoff.RetryNotify(op, bo, notify)
	if err != nil && outcome == "ok" {
		outcome = "transient"
	}
	observability.RedditRequestsTotal.WithLabelValues(endpoint, outcome).Inc()
	observability.RedditRequestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, err
	}
	return body, nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Pragma", "no-cache")
	req.Header.Set("DNT", "1")
}

// adaptiveSleep honors a parsed Retry-After before the next backoff attempt,
// capped so a hostile header cannot stall the pipeline.
func (c *Client) adaptiveSleep(ctx context.Context, rl *RateLimitError) {
	if !rl.HasRetryAfter || rl.RetryAfter <= 0 {
		return
	}
	wait := rl.RetryAfter
	if wait > c.retryAfterCap {
		wait = c.retryAfterCap
	}
	slog.Debug("honoring retry-after", slog.Duration("wait", wait))
	select {
	case <-ctx.Done():
	case <-time.After(wait):
	}
}

// IsEmpty reports whether the error means the resource should be treated
// as absent rather than failed.
func IsEmpty(err error) bool { return errors.Is(err, ErrEmpty) }
