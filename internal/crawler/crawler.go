package crawler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/attuario-ai/attuario/internal/telemetry"
)

// Config bounds a single crawl.
type Config struct {
	Seed         string
	MaxPages     int
	MaxDepth     int
	Workers      int
	Delay        time.Duration
	UserAgent    string
	IgnoreRobots bool
}

// Validate rejects configurations the engine cannot honor.
func (c Config) Validate() error {
	if c.Seed == "" {
		return errors.New("seed URL is required")
	}
	if c.MaxPages < 1 {
		return fmt.Errorf("max pages must be >= 1, got %d", c.MaxPages)
	}
	if c.MaxDepth < 0 {
		return fmt.Errorf("max depth must be >= 0, got %d", c.MaxDepth)
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be >= 1, got %d", c.Workers)
	}
	if c.Delay < 0 {
		return fmt.Errorf("delay must be >= 0, got %s", c.Delay)
	}
	return nil
}

// Engine runs a breadth-first crawl of the seed's host. Depth levels are
// processed one at a time: every page at depth d completes before any page
// at depth d+1 starts, so with a single worker the visit order is fully
// deterministic.
type Engine struct {
	cfg     Config
	fetcher Fetcher
	robots  RobotsPolicy
	visited visitTracker
	budget  atomic.Int64
	logger  *zap.Logger
}

// NewEngine validates the config and assembles an engine.
func NewEngine(cfg Config, fetcher Fetcher, robots RobotsPolicy, logger *zap.Logger) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("crawl config: %w", err)
	}
	if fetcher == nil {
		return nil, errors.New("fetcher is required")
	}
	if robots == nil {
		robots = allowAllPolicy{}
	}
	return &Engine{
		cfg:     cfg,
		fetcher: fetcher,
		robots:  robots,
		visited: newConcurrentVisitTracker(),
		logger:  logger,
	}, nil
}

// Crawl starts the crawl and returns the results channel. The channel is
// closed when the frontier empties, the page budget runs out, or the
// context is canceled. An Engine is single-use.
func (e *Engine) Crawl(ctx context.Context) (<-chan Result, error) {
	seed, err := NormalizeURL(e.cfg.Seed)
	if err != nil {
		return nil, fmt.Errorf("seed: %w", err)
	}
	out := make(chan Result)
	go e.run(ctx, seed, out)
	return out, nil
}

func (e *Engine) run(ctx context.Context, seed string, out chan<- Result) {
	defer close(out)

	e.budget.Store(int64(e.cfg.MaxPages))
	e.visited.MarkIfNew(seed)

	delay := e.cfg.Delay
	if crawlDelay := e.robots.CrawlDelay(ctx, seed); crawlDelay > delay {
		e.logger.Info("robots.txt requests a longer crawl delay",
			zap.Duration("configured", delay), zap.Duration("robots", crawlDelay))
		delay = crawlDelay
	}

	// One limiter per worker, shared across depth levels, so the delay
	// holds between a worker's consecutive fetches for the whole crawl.
	limiters := make([]*rate.Limiter, e.cfg.Workers)
	for i := range limiters {
		limiters[i] = rate.NewLimiter(rate.Every(delay), 1)
	}

	frontier := []Target{{URL: seed, Depth: 0}}
	for len(frontier) > 0 && ctx.Err() == nil && e.budget.Load() > 0 {
		frontier = e.crawlLevel(ctx, frontier, limiters, out)
	}
}

// crawlLevel fetches every target in the current depth level and returns
// the next level's frontier. Discovered links keep frontier order first,
// document order second, so the next level is reproducible.
func (e *Engine) crawlLevel(ctx context.Context, frontier []Target, limiters []*rate.Limiter, out chan<- Result) []Target {
	discovered := make([][]Target, len(frontier))

	jobs := make(chan int)
	var wg sync.WaitGroup
	workers := e.cfg.Workers
	if workers > len(frontier) {
		workers = len(frontier)
	}
	for w := 0; w < workers; w++ {
		wg.Add(1)
		limiter := limiters[w]
		go func() {
			defer wg.Done()
			for i := range jobs {
				discovered[i] = e.processTarget(ctx, frontier[i], limiter, out)
			}
		}()
	}

dispatch:
	for i := range frontier {
		select {
		case jobs <- i:
		case <-ctx.Done():
			break dispatch
		}
	}
	close(jobs)
	wg.Wait()

	var next []Target
	for _, batch := range discovered {
		next = append(next, batch...)
	}
	return next
}

// processTarget reserves a page slot, fetches one URL and returns the
// in-scope links it discovered. Skipped URLs (robots denial, cancellation)
// return their reservation; a failed fetch keeps it, since it still emits
// a Result.
func (e *Engine) processTarget(ctx context.Context, t Target, limiter *rate.Limiter, out chan<- Result) []Target {
	if e.budget.Add(-1) < 0 {
		e.budget.Add(1)
		return nil
	}

	if !e.robots.Allowed(ctx, t.URL) {
		e.budget.Add(1)
		e.logger.Debug("skipping url denied by robots.txt", zap.String("url", t.URL))
		return nil
	}

	if err := limiter.Wait(ctx); err != nil {
		e.budget.Add(1)
		return nil
	}

	telemetry.IncActiveWorkers()
	result, err := e.fetcher.Fetch(ctx, FetchRequest{
		URL:       t.URL,
		Depth:     t.Depth,
		UserAgent: e.cfg.UserAgent,
	})
	telemetry.DecActiveWorkers()
	if err != nil {
		if ctx.Err() != nil {
			e.budget.Add(1)
			return nil
		}
		e.logger.Warn("fetch failed", zap.String("url", t.URL), zap.Int("depth", t.Depth), zap.Error(err))
		result = Result{URL: t.URL, Depth: t.Depth, Err: err}
		var statusErr *StatusError
		if errors.As(err, &statusErr) {
			result.StatusCode = statusErr.Code
		}
	}

	select {
	case out <- result:
	case <-ctx.Done():
		return nil
	}

	if result.Err != nil || t.Depth >= e.cfg.MaxDepth {
		return nil
	}
	return e.discoverLinks(t, result.Body)
}

// discoverLinks extracts same-host anchors in document order, normalizing
// and deduplicating against the visit tracker.
func (e *Engine) discoverLinks(t Target, body []byte) []Target {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		e.logger.Debug("link extraction failed", zap.String("url", t.URL), zap.Error(err))
		return nil
	}
	pageURL, err := url.Parse(t.URL)
	if err != nil {
		return nil
	}

	var found []Target
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		abs := resolveLink(pageURL, href)
		if abs == "" {
			return
		}
		normalized, err := NormalizeURL(abs)
		if err != nil {
			return
		}
		if !SameHost(t.URL, normalized) {
			return
		}
		if !e.visited.MarkIfNew(normalized) {
			return
		}
		found = append(found, Target{URL: normalized, Depth: t.Depth + 1})
	})
	return found
}
