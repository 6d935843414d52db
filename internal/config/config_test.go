package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Crawler.Workers != 4 {
		t.Fatalf("expected 4 workers, got %d", cfg.Crawler.Workers)
	}
	if cfg.Crawler.MaxPages != 25 || cfg.Crawler.MaxDepth != 1 {
		t.Fatalf("unexpected crawl budget defaults: %+v", cfg.Crawler)
	}
	if !cfg.Cache.Enabled {
		t.Fatal("expected cache enabled by default")
	}
	if got := cfg.Scoring.Accuracy + cfg.Scoring.Transparency + cfg.Scoring.Completeness +
		cfg.Scoring.Freshness + cfg.Scoring.Clarity; got != 1.0 {
		t.Fatalf("expected default weights to sum to 1.0, got %v", got)
	}
	if got := cfg.HTTPTimeout(); got != 10*time.Second {
		t.Fatalf("expected 10s timeout, got %v", got)
	}
}

func TestLoadWithFileOverrides(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	configYAML := `
crawler:
  max_pages: 50
  max_depth: 3
  workers: 8
  delay_ms: 500
  user_agent: attuario-test
  ignore_robots: true
http:
  timeout_seconds: 45
  max_retries: 4
cache:
  enabled: false
scoring:
  accuracy: 0.5
  transparency: 0.3
  completeness: 0.1
  freshness: 0.05
  clarity: 0.05
logging:
  development: false
  level: debug
output:
  dir: reports
`
	if err := os.WriteFile(path, []byte(configYAML), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Crawler.Workers != 8 || !cfg.Crawler.IgnoreRobots {
		t.Fatalf("expected crawler overrides to apply: %+v", cfg.Crawler)
	}
	if cfg.Cache.Enabled {
		t.Fatal("expected cache disabled")
	}
	if cfg.Scoring.Accuracy != 0.5 {
		t.Fatalf("expected accuracy weight 0.5, got %v", cfg.Scoring.Accuracy)
	}
	if got := cfg.Delay(); got != 500*time.Millisecond {
		t.Fatalf("expected 500ms delay, got %v", got)
	}
	if cfg.Output.Dir != "reports" {
		t.Fatalf("expected output dir override, got %q", cfg.Output.Dir)
	}
}

func TestConfigValidateErrors(t *testing.T) {
	t.Parallel()

	base, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero workers", func(c *Config) { c.Crawler.Workers = 0 }},
		{"zero pages", func(c *Config) { c.Crawler.MaxPages = 0 }},
		{"negative depth", func(c *Config) { c.Crawler.MaxDepth = -1 }},
		{"negative delay", func(c *Config) { c.Crawler.DelayMs = -5 }},
		{"empty user agent", func(c *Config) { c.Crawler.UserAgent = "" }},
		{"zero timeout", func(c *Config) { c.HTTP.TimeoutSeconds = 0 }},
		{"negative weight", func(c *Config) { c.Scoring.Freshness = -0.1 }},
		{"all-zero weights", func(c *Config) {
			c.Scoring = ScoringConfig{}
		}},
		{"cache ttl", func(c *Config) { c.Cache.TTLSeconds = 0 }},
		{"empty output dir", func(c *Config) { c.Output.Dir = "" }},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cfg := base
			tc.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatalf("expected validation error for %s", tc.name)
			}
		})
	}
}
