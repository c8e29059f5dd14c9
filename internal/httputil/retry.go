// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package httputil provides the HTTP transport shared by network
// collaborators: fixed spacing between requests to one upstream and
// backoff on HTTP 429.
package httputil

import (
	"context"
	"io"
	"math"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// RetryBaseDelay controls the base duration for exponential backoff on
// HTTP 429 responses. Tests override this to avoid real sleeps.
var RetryBaseDelay = 2 * time.Second

// Client issues requests to a single upstream no faster than one per
// interval. It is safe for concurrent use; concurrent callers queue on the
// shared limiter.
type Client struct {
	http       *http.Client
	limiter    *rate.Limiter
	maxRetries int
	log        *zap.Logger
}

// NewClient wraps hc. An interval of zero or less disables spacing.
// maxRetries bounds the extra attempts made after an HTTP 429; zero means
// a 429 is returned to the caller as-is.
func NewClient(hc *http.Client, interval time.Duration, maxRetries int, logger *zap.Logger) *Client {
	if hc == nil {
		hc = http.DefaultClient
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	return &Client{
		http:       hc,
		limiter:    rate.NewLimiter(limit, 1),
		maxRetries: max(0, maxRetries),
		log:        logger,
	}
}

// Do waits for the limiter and sends req. Each retry after a 429 waits for
// the backoff and then for the limiter again.
func (c *Client) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	return DoWithRetry(ctx, c.http, req, c.maxRetries, c.wait, c.log)
}

func (c *Client) wait(ctx context.Context) error {
	return c.limiter.Wait(ctx)
}

// DoWithRetry executes an HTTP request and retries on HTTP 429 (Too Many
// Requests) with exponential backoff starting at RetryBaseDelay. before,
// when non-nil, runs ahead of every attempt.
//
// On each 429 the response body is drained and closed before sleeping. If
// the context is cancelled during a wait the function returns ctx.Err().
// After exhausting retries the last 429 response is returned so the caller
// can inspect it.
func DoWithRetry(ctx context.Context, client *http.Client, req *http.Request, maxRetries int, before func(context.Context) error, logger *zap.Logger) (*http.Response, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	for attempt := 0; ; attempt++ {
		if before != nil {
			if err := before(ctx); err != nil {
				return nil, err
			}
		}

		resp, err := client.Do(req.Clone(ctx))
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != http.StatusTooManyRequests || attempt >= maxRetries {
			return resp, nil
		}

		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()

		backoff := time.Duration(math.Pow(2, float64(attempt))) * RetryBaseDelay
		logger.Warn("http: rate limited, backing off",
			zap.String("host", req.URL.Host),
			zap.Duration("backoff", backoff),
			zap.Int("attempt", attempt+1),
			zap.Int("max_retries", maxRetries))

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
	}
}
