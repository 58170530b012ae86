// Package retry provides bounded exponential backoff for requests that
// hit Instagram's rate limiting. Only rate-limit-looking responses
// (HTTP 429 and 401) are retried; everything else fails immediately so
// the next strategy can take over.
package retry

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"
)

type Config struct {
	// MaxAttempts caps the total number of calls, first try included.
	MaxAttempts int
	// InitialDelay is the wait before the first retry.
	InitialDelay time.Duration
	// MaxDelay caps the exponentially growing delay.
	MaxDelay time.Duration
}

// PageFetchConfig is tuned for fetching Instagram HTML pages, where a
// 429 usually clears within a few seconds.
func PageFetchConfig() Config {
	return Config{
		MaxAttempts:  3,
		InitialDelay: 2 * time.Second,
		MaxDelay:     10 * time.Second,
	}
}

// HTTPError carries a non-200 response status through the retry layer
// so retryability can be decided from the status code.
type HTTPError struct {
	StatusCode int
	URL        string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("unexpected status %d fetching %s", e.StatusCode, e.URL)
}

// IsRetryable reports whether an error looks like rate limiting.
func IsRetryable(err error) bool {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode == http.StatusTooManyRequests || httpErr.StatusCode == http.StatusUnauthorized
	}
	return false
}

// WithBackoff runs fn until it succeeds, returns a non-retryable error,
// or the attempt cap is reached. The delay doubles between attempts.
// Context cancellation aborts the wait.
func WithBackoff(ctx context.Context, cfg Config, fn func() error) error {
	var lastErr error
	delay := cfg.InitialDelay

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			if attempt > 1 {
				log.WithField("attempt", attempt).Debug("succeeded after retry")
			}
			return nil
		}

		if !IsRetryable(lastErr) {
			return lastErr
		}

		if attempt == cfg.MaxAttempts {
			break
		}

		log.WithField("attempt", attempt).WithField("delay", delay).Warnf("rate limited, backing off: %v", lastErr)

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return fmt.Errorf("retry aborted: %w", ctx.Err())
		}

		delay *= 2
		if delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}
	}
	return lastErr
}
