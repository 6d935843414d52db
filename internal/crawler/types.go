// Package crawler implements a bounded, polite, breadth-first crawl of a
// single site.
package crawler

import (
	"context"
	"net/http"
	"time"
)

// Target is a URL queued for fetching at a known depth from the seed.
type Target struct {
	URL   string
	Depth int
}

// Result is one fetch outcome, emitted on the crawl channel in completion
// order. A failed fetch carries Err and an empty body; its links are never
// explored.
type Result struct {
	URL        string        `json:"url"`
	Depth      int           `json:"depth"`
	StatusCode int           `json:"status_code"`
	Body       []byte        `json:"-"`
	Headers    http.Header   `json:"-"`
	FetchedAt  time.Time     `json:"fetched_at"`
	Duration   time.Duration `json:"duration_ms"`
	FromCache  bool          `json:"from_cache"`
	Err        error         `json:"-"`
}

// FetchRequest captures everything a Fetcher needs for one URL.
type FetchRequest struct {
	URL       string
	Depth     int
	UserAgent string
}

// Fetcher retrieves a single page. Implementations decide caching and
// retry behavior.
type Fetcher interface {
	Fetch(ctx context.Context, req FetchRequest) (Result, error)
}

// RobotsPolicy answers whether a URL may be fetched and what minimum
// delay its host requests.
type RobotsPolicy interface {
	Allowed(ctx context.Context, rawURL string) bool
	CrawlDelay(ctx context.Context, rawURL string) time.Duration
}

// RetryPolicy decides whether a failed fetch is retried and how long to
// wait before the next attempt.
type RetryPolicy interface {
	ShouldRetry(err error, attempt int) bool
	Backoff(attempt int) time.Duration
}

// Clock returns the current time, injectable for tests.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }
