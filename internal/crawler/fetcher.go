package crawler

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/attuario-ai/attuario/internal/cache"
	"github.com/attuario-ai/attuario/internal/telemetry"
)

// StatusError reports a non-2xx HTTP response.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("fetch %s: status %d", e.URL, e.Code)
}

// HTTPFetcher fetches pages over HTTP with retries and an optional
// response cache. Only 2xx responses enter the cache.
type HTTPFetcher struct {
	client   *http.Client
	store    cache.Store
	retry    RetryPolicy
	pause    pauseController
	clock    Clock
	maxBody  int64
	cacheTTL time.Duration
	logger   *zap.Logger
}

// FetcherOption configures an HTTPFetcher.
type FetcherOption func(*HTTPFetcher)

// WithCache enables response caching with the given TTL. A nil store
// disables caching.
func WithCache(store cache.Store, ttl time.Duration) FetcherOption {
	return func(f *HTTPFetcher) {
		f.store = store
		f.cacheTTL = ttl
	}
}

// WithRetryPolicy overrides the default retry policy.
func WithRetryPolicy(p RetryPolicy) FetcherOption {
	return func(f *HTTPFetcher) { f.retry = p }
}

// WithClock overrides the wall clock.
func WithClock(c Clock) FetcherOption {
	return func(f *HTTPFetcher) { f.clock = c }
}

// WithMaxBodyBytes caps how much of a response body is read.
func WithMaxBodyBytes(n int64) FetcherOption {
	return func(f *HTTPFetcher) {
		if n > 0 {
			f.maxBody = n
		}
	}
}

// NewHTTPFetcher builds a fetcher around the given client. A nil client
// gets a default with a 15 second timeout.
func NewHTTPFetcher(client *http.Client, logger *zap.Logger, opts ...FetcherOption) *HTTPFetcher {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	f := &HTTPFetcher{
		client:  client,
		retry:   NewExponentialRetryPolicy(0, 0, 0),
		pause:   &timerPauseController{},
		clock:   systemClock{},
		maxBody: 5 << 20,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch implements Fetcher. Cached responses are returned without touching
// the network and carry FromCache.
func (f *HTTPFetcher) Fetch(ctx context.Context, req FetchRequest) (Result, error) {
	if f.store != nil {
		if entry, ok := f.store.Get(req.URL); ok {
			telemetry.ObserveCacheLookup(true)
			return Result{
				URL:        req.URL,
				Depth:      req.Depth,
				StatusCode: entry.StatusCode,
				Body:       entry.Body,
				FetchedAt:  entry.FetchedAt,
				FromCache:  true,
			}, nil
		}
		telemetry.ObserveCacheLookup(false)
	}

	var lastErr error
	for attempt := 0; ; attempt++ {
		if attempt > 0 {
			telemetry.ObserveRetry()
			f.pause.Pause(ctx, f.retry.Backoff(attempt-1))
		}

		result, err := f.fetchOnce(ctx, req)
		if err == nil {
			if f.store != nil {
				f.cachePut(req.URL, result)
			}
			return result, nil
		}

		lastErr = err
		if !f.retry.ShouldRetry(err, attempt+1) {
			break
		}
		f.logger.Debug("retrying fetch",
			zap.String("url", req.URL), zap.Int("attempt", attempt+1), zap.Error(err))
	}
	return Result{}, lastErr
}

func (f *HTTPFetcher) fetchOnce(ctx context.Context, req FetchRequest) (Result, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, req.URL, nil)
	if err != nil {
		return Result{}, fmt.Errorf("new request: %w", err)
	}
	httpReq.Header.Set("User-Agent", req.UserAgent)
	httpReq.Header.Set("Accept", "text/html,application/xhtml+xml")

	start := f.clock.Now()
	resp, err := f.client.Do(httpReq)
	if err != nil {
		return Result{}, fmt.Errorf("do request: %w", err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			f.logger.Debug("failed to close response body", zap.Error(cerr))
		}
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBody))
	duration := f.clock.Now().Sub(start)
	if err != nil {
		telemetry.ObservePage("error", resp.StatusCode, duration)
		return Result{}, fmt.Errorf("read body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		telemetry.ObservePage("error", resp.StatusCode, duration)
		return Result{}, &StatusError{URL: req.URL, Code: resp.StatusCode}
	}

	telemetry.ObservePage("success", resp.StatusCode, duration)
	return Result{
		URL:        req.URL,
		Depth:      req.Depth,
		StatusCode: resp.StatusCode,
		Body:       body,
		Headers:    resp.Header,
		FetchedAt:  start,
		Duration:   duration,
	}, nil
}

func (f *HTTPFetcher) cachePut(key string, result Result) {
	entry := cache.Entry{
		StatusCode: result.StatusCode,
		Body:       result.Body,
		FetchedAt:  result.FetchedAt,
		ExpiresAt:  result.FetchedAt.Add(f.cacheTTL),
	}
	if err := f.store.Put(key, entry); err != nil {
		f.logger.Warn("cache write failed", zap.String("url", key), zap.Error(err))
	}
}
