// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all configuration knobs loaded via Viper.
type Config struct {
	Crawler   CrawlerConfig   `mapstructure:"crawler"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Scoring   ScoringConfig   `mapstructure:"scoring"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Output    OutputConfig    `mapstructure:"output"`
}

// CrawlerConfig governs frontier and politeness behavior.
type CrawlerConfig struct {
	MaxPages     int    `mapstructure:"max_pages"`
	MaxDepth     int    `mapstructure:"max_depth"`
	Workers      int    `mapstructure:"workers"`
	DelayMs      int    `mapstructure:"delay_ms"`
	UserAgent    string `mapstructure:"user_agent"`
	IgnoreRobots bool   `mapstructure:"ignore_robots"`
}

// HTTPConfig configures HTTP client retry behavior.
type HTTPConfig struct {
	TimeoutSeconds   int   `mapstructure:"timeout_seconds"`
	MaxRetries       int   `mapstructure:"max_retries"`
	BackoffInitialMs int   `mapstructure:"backoff_initial_ms"`
	BackoffMaxMs     int   `mapstructure:"backoff_max_ms"`
	MaxBodyBytes     int64 `mapstructure:"max_body_bytes"`
}

// CacheConfig controls the response cache.
type CacheConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	Path       string `mapstructure:"path"`
	TTLSeconds int    `mapstructure:"ttl_seconds"`
}

// ScoringConfig holds the composite score weights.
type ScoringConfig struct {
	Accuracy     float64 `mapstructure:"accuracy"`
	Transparency float64 `mapstructure:"transparency"`
	Completeness float64 `mapstructure:"completeness"`
	Freshness    float64 `mapstructure:"freshness"`
	Clarity      float64 `mapstructure:"clarity"`
}

// TelemetryConfig controls the optional Prometheus listener.
type TelemetryConfig struct {
	Addr string `mapstructure:"addr"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// OutputConfig sets paths for generated reports.
type OutputConfig struct {
	Dir string `mapstructure:"dir"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("ATTUARIO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("crawler.max_pages", 25)
	v.SetDefault("crawler.max_depth", 1)
	v.SetDefault("crawler.workers", 4)
	v.SetDefault("crawler.delay_ms", 200)
	v.SetDefault("crawler.user_agent", "AttuarioBot/0.1 (+https://github.com/attuario-ai/attuario)")
	v.SetDefault("crawler.ignore_robots", false)
	v.SetDefault("http.timeout_seconds", 10)
	v.SetDefault("http.max_retries", 3)
	v.SetDefault("http.backoff_initial_ms", 250)
	v.SetDefault("http.backoff_max_ms", 5000)
	v.SetDefault("http.max_body_bytes", 4<<20)
	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.path", ".attuario_cache.db")
	v.SetDefault("cache.ttl_seconds", 3600)
	v.SetDefault("scoring.accuracy", 0.4)
	v.SetDefault("scoring.transparency", 0.2)
	v.SetDefault("scoring.completeness", 0.2)
	v.SetDefault("scoring.freshness", 0.1)
	v.SetDefault("scoring.clarity", 0.1)
	v.SetDefault("telemetry.addr", "")
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "info")
	v.SetDefault("output.dir", "outputs")
}

// Validate enforces required values and reasonable limits before any
// network activity begins; a misconfigured crawl wastes remote resources.
func (c Config) Validate() error {
	if c.Crawler.MaxPages <= 0 {
		return fmt.Errorf("crawler.max_pages must be > 0")
	}
	if c.Crawler.MaxDepth < 0 {
		return fmt.Errorf("crawler.max_depth must be >= 0")
	}
	if c.Crawler.Workers <= 0 {
		return fmt.Errorf("crawler.workers must be > 0")
	}
	if c.Crawler.DelayMs < 0 {
		return fmt.Errorf("crawler.delay_ms must be >= 0")
	}
	if c.Crawler.UserAgent == "" {
		return fmt.Errorf("crawler.user_agent must be set")
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	if c.HTTP.MaxRetries < 0 {
		return fmt.Errorf("http.max_retries must be >= 0")
	}
	if c.HTTP.MaxBodyBytes <= 0 {
		return fmt.Errorf("http.max_body_bytes must be > 0")
	}
	if c.Cache.Enabled && c.Cache.TTLSeconds <= 0 {
		return fmt.Errorf("cache.ttl_seconds must be > 0 when cache is enabled")
	}
	for name, w := range map[string]float64{
		"scoring.accuracy":     c.Scoring.Accuracy,
		"scoring.transparency": c.Scoring.Transparency,
		"scoring.completeness": c.Scoring.Completeness,
		"scoring.freshness":    c.Scoring.Freshness,
		"scoring.clarity":      c.Scoring.Clarity,
	} {
		if w < 0 {
			return fmt.Errorf("%s must be >= 0", name)
		}
	}
	if c.Scoring.Accuracy+c.Scoring.Transparency+c.Scoring.Completeness+
		c.Scoring.Freshness+c.Scoring.Clarity == 0 {
		return fmt.Errorf("scoring weights must not all be zero")
	}
	if c.Output.Dir == "" {
		return fmt.Errorf("output.dir must be set")
	}
	return nil
}

// Delay converts the configured per-worker delay into a duration.
func (c Config) Delay() time.Duration {
	return time.Duration(c.Crawler.DelayMs) * time.Millisecond
}

// HTTPTimeout converts the request timeout into a duration.
func (c Config) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}

// CacheTTL converts the cache expiry into a duration.
func (c Config) CacheTTL() time.Duration {
	return time.Duration(c.Cache.TTLSeconds) * time.Second
}
