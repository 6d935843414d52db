package crawler

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/temoto/robotstxt"
	"go.uber.org/zap"

	"github.com/attuario-ai/attuario/internal/telemetry"
)

const robotsBodyLimit = 1 << 20

// RobotsEnforcer enforces robots.txt directives per host. Robots data is
// fetched once per host and cached for the crawl's lifetime.
type RobotsEnforcer struct {
	client    *http.Client
	cache     sync.Map
	userAgent string
	logger    *zap.Logger
}

// NewRobotsEnforcer builds a RobotsPolicy respecting the config toggle.
// With ignore set it returns a policy that admits everything.
func NewRobotsEnforcer(ignore bool, userAgent string, logger *zap.Logger) RobotsPolicy {
	if ignore {
		return allowAllPolicy{}
	}
	return &RobotsEnforcer{
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		userAgent: userAgent,
		logger:    logger,
	}
}

// Allowed implements RobotsPolicy. An unreachable or unparseable
// robots.txt fails open.
func (r *RobotsEnforcer) Allowed(ctx context.Context, rawURL string) bool {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	group := r.group(ctx, parsed)
	if group == nil {
		return true
	}
	allowed := group.Test(parsed.Path)
	if !allowed {
		telemetry.ObserveRobotsDenied()
	}
	return allowed
}

// CrawlDelay returns the host's requested Crawl-delay, or zero when the
// directive is absent.
func (r *RobotsEnforcer) CrawlDelay(ctx context.Context, rawURL string) time.Duration {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return 0
	}
	group := r.group(ctx, parsed)
	if group == nil {
		return 0
	}
	return group.CrawlDelay
}

func (r *RobotsEnforcer) group(ctx context.Context, parsed *url.URL) *robotstxt.Group {
	data, err := r.load(ctx, parsed)
	if err != nil {
		r.logger.Warn("robots fetch failed, allowing access",
			zap.String("host", parsed.Host), zap.Error(err))
		return nil
	}
	return data.FindGroup(r.userAgent)
}

func (r *RobotsEnforcer) load(ctx context.Context, parsed *url.URL) (*robotstxt.RobotsData, error) {
	hostKey := strings.ToLower(parsed.Host)
	if data, ok := r.cache.Load(hostKey); ok {
		cached, assertOK := data.(*robotstxt.RobotsData)
		if !assertOK {
			return nil, fmt.Errorf("robots cache type mismatch: %T", data)
		}
		return cached, nil
	}

	robotsURL := *parsed
	robotsURL.Path = path.Join("/", "robots.txt")
	robotsURL.RawQuery = ""
	robotsURL.Fragment = ""
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("new robots request: %w", err)
	}
	req.Header.Set("User-Agent", r.userAgent)
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch robots: %w", err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			r.logger.Debug("failed to close robots response body", zap.Error(cerr))
		}
	}()
	body, err := io.ReadAll(io.LimitReader(resp.Body, robotsBodyLimit))
	if err != nil {
		return nil, fmt.Errorf("read robots body: %w", err)
	}
	data, err := robotstxt.FromStatusAndBytes(resp.StatusCode, body)
	if err != nil {
		return nil, fmt.Errorf("parse robots: %w", err)
	}
	r.cache.Store(hostKey, data)
	return data, nil
}

type allowAllPolicy struct{}

func (allowAllPolicy) Allowed(context.Context, string) bool { return true }

func (allowAllPolicy) CrawlDelay(context.Context, string) time.Duration { return 0 }
