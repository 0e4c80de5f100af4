// Package feed fetches raw provider payloads over HTTP.
package feed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/couchcryptid/firesync/internal/domain"
)

// maxPayloadBytes bounds a single feed response.
const maxPayloadBytes = 64 << 20

// Client downloads feed payloads, retrying transport failures and server errors.
type Client struct {
	httpClient  *http.Client
	retries     int
	baseBackoff time.Duration
	maxBackoff  time.Duration
	logger      *slog.Logger
}

// NewClient creates a feed client. retries is the number of attempts made
// after the first one fails.
func NewClient(timeout time.Duration, retries int, logger *slog.Logger) *Client {
	return &Client{
		httpClient:  &http.Client{Timeout: timeout},
		retries:     max(retries, 0),
		baseBackoff: 200 * time.Millisecond,
		maxBackoff:  5 * time.Second,
		logger:      logger,
	}
}

// Fetch downloads the payload at url. Every failure is a domain.FeedError of
// kind ErrFeedUnreachable.
func (c *Client) Fetch(ctx context.Context, feed, url string) ([]byte, error) {
	backoff := c.baseBackoff
	var lastErr error

	for attempt := 0; attempt <= c.retries; attempt++ {
		if attempt > 0 {
			c.logger.Warn("retrying feed fetch", "feed", feed, "attempt", attempt, "backoff", backoff, "error", lastErr)
			if !sleepWithContext(ctx, backoff) {
				return nil, domain.NewFeedUnreachable(feed, ctx.Err())
			}
			backoff = nextBackoff(backoff, c.maxBackoff)
		}

		body, retry, err := c.do(ctx, url)
		if err == nil {
			return body, nil
		}
		lastErr = err
		if !retry || ctx.Err() != nil {
			break
		}
	}
	return nil, domain.NewFeedUnreachable(feed, lastErr)
}

// do performs one request and reports whether a failure is worth retrying.
func (c *Client) do(ctx context.Context, url string) ([]byte, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, false, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/geo+json, application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, true, fmt.Errorf("feed request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		retry := resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests
		return nil, retry, &StatusError{Code: resp.StatusCode, Body: string(body)}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPayloadBytes+1))
	if err != nil {
		return nil, true, fmt.Errorf("read body: %w", err)
	}
	if len(body) > maxPayloadBytes {
		return nil, false, errors.New("payload exceeds size limit")
	}
	return body, false, nil
}

// StatusError is a non-200 feed response.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.Code, e.Body)
}

func nextBackoff(current, maxBackoff time.Duration) time.Duration {
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
