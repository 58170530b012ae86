// Package fetcher owns every HTTP request made against Instagram: HTML
// page fetches for the scraping strategies and raw media downloads.
// Transport failures are returned as errors, never panics; strategies
// fold them into their own results.
package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/gramrelay/gramrelay/instagram"
	"github.com/gramrelay/gramrelay/retry"
)

// MinValidSize is the smallest body, in bytes, accepted as real media.
// Instagram serves error pages and placeholder images below this size.
const MinValidSize = 1000

// maxPageBytes caps HTML page reads so a hostile response can't exhaust
// memory.
const maxPageBytes = 5 << 20

const (
	imageTimeout = 15 * time.Second
	videoTimeout = 30 * time.Second
	pageTimeout  = 15 * time.Second
)

type Client struct {
	HTTPClient *http.Client

	breaker  *gobreaker.CircuitBreaker
	retryCfg retry.Config
}

func NewClient() *Client {
	return &Client{
		HTTPClient: &http.Client{},
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:     "instagram-pages",
			Interval: time.Minute,
			Timeout:  2 * time.Minute,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
		}),
		retryCfg: retry.PageFetchConfig(),
	}
}

// FetchPage performs one GET of an Instagram HTML page with the given
// user agent and returns the body. Rate-limit responses are retried
// with backoff; repeated failures trip a circuit breaker shared by all
// page fetches so the bot backs off Instagram as a whole.
func (c *Client) FetchPage(ctx context.Context, pageURL string, userAgent string) (string, error) {
	var body string
	err := retry.WithBackoff(ctx, c.retryCfg, func() error {
		result, err := c.breaker.Execute(func() (interface{}, error) {
			return c.fetchPageOnce(ctx, pageURL, userAgent)
		})
		if err != nil {
			return err
		}
		body = result.(string)
		return nil
	})
	if err != nil {
		return "", err
	}
	return body, nil
}

func (c *Client) fetchPageOnce(ctx context.Context, pageURL string, userAgent string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, pageTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", err
	}
	setBrowserHeaders(req, userAgent)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", &retry.HTTPError{StatusCode: resp.StatusCode, URL: pageURL}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", pageURL, err)
	}
	return string(body), nil
}

// Download fetches one media URL and writes the body verbatim to dest.
// Protocol-relative URLs are normalized first. The response is accepted
// only when the status is 200 and the body exceeds MinValidSize;
// otherwise nothing is written and the size of the rejected body is
// reported in the error. Videos get a longer timeout than images.
func (c *Client) Download(ctx context.Context, rawURL string, dest string, userAgent string) (int64, error) {
	mediaURL := instagram.NormalizeMediaURL(rawURL)

	timeout := imageTimeout
	if strings.HasSuffix(dest, ".mp4") || strings.HasSuffix(dest, ".mov") {
		timeout = videoTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, mediaURL, nil)
	if err != nil {
		return 0, err
	}
	setBrowserHeaders(req, userAgent)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, &retry.HTTPError{StatusCode: resp.StatusCode, URL: mediaURL}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("reading media body: %w", err)
	}
	if len(body) <= MinValidSize {
		return 0, fmt.Errorf("body too small to be media (%d bytes)", len(body))
	}

	if err := os.WriteFile(dest, body, 0o644); err != nil {
		return 0, fmt.Errorf("writing %s: %w", dest, err)
	}
	return int64(len(body)), nil
}

func setBrowserHeaders(req *http.Request, userAgent string) {
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")
	req.Header.Set("Connection", "keep-alive")
}
