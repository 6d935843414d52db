package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/attuario-ai/attuario/internal/cache"
	"github.com/attuario-ai/attuario/internal/config"
	"github.com/attuario-ai/attuario/internal/crawler"
	"github.com/attuario-ai/attuario/internal/extract"
	"github.com/attuario-ai/attuario/internal/parse"
	"github.com/attuario-ai/attuario/internal/pipeline"
	"github.com/attuario-ai/attuario/internal/report"
	"github.com/attuario-ai/attuario/internal/scoring"
	"github.com/attuario-ai/attuario/internal/telemetry"
)

type crawlFlags struct {
	maxPages    int
	maxDepth    int
	workers     int
	delayMs     int
	noCache     bool
	outputDir   string
	weightsFile string
}

func newCrawlCmd() *cobra.Command {
	var flags crawlFlags

	cmd := &cobra.Command{
		Use:   "crawl <seed-url>",
		Short: "Crawl a site and score every page",
		Long: `Runs a breadth-first crawl starting from the seed URL, staying on the
seed's host, and scores each fetched page. Flags override the
corresponding config file settings for this run only.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCrawl(cmd, args[0], flags)
		},
	}

	cmd.Flags().IntVar(&flags.maxPages, "max-pages", 0, "maximum pages to fetch")
	cmd.Flags().IntVar(&flags.maxDepth, "max-depth", -1, "maximum link depth from the seed")
	cmd.Flags().IntVar(&flags.workers, "workers", 0, "concurrent fetch workers")
	cmd.Flags().IntVar(&flags.delayMs, "delay", -1, "per-worker delay between requests in milliseconds")
	cmd.Flags().BoolVar(&flags.noCache, "no-cache", false, "bypass the response cache")
	cmd.Flags().StringVar(&flags.outputDir, "output-dir", "", "directory for generated reports")
	cmd.Flags().StringVar(&flags.weightsFile, "weights", "", "JSON file with score weights (e.g. a calibrate result)")

	return cmd
}

func runCrawl(cmd *cobra.Command, seed string, flags crawlFlags) error {
	rt, err := resolveRuntime(cmd.Context())
	if err != nil {
		return err
	}
	cfg := applyCrawlFlags(rt.cfg, flags)

	weights := scoring.Weights(cfg.Scoring)
	if flags.weightsFile != "" {
		weights, err = loadWeights(flags.weightsFile)
		if err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Telemetry.Addr != "" {
		metricsSrv := telemetry.NewServer(cfg.Telemetry.Addr, rt.logger)
		metricsSrv.Start()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if serr := metricsSrv.Shutdown(shutdownCtx); serr != nil {
				rt.logger.Warn("metrics listener shutdown failed", zap.Error(serr))
			}
		}()
	}

	p, cleanup, err := buildPipeline(cfg, seed, weights, rt.logger)
	if err != nil {
		return err
	}
	defer cleanup()

	reports, summary, err := p.Run(ctx)
	if err != nil {
		return fmt.Errorf("run crawl: %w", err)
	}

	writer, err := report.NewWriter(cfg.Output.Dir, rt.logger)
	if err != nil {
		return err
	}
	paths, err := writer.WriteAll(reports, summary)
	if err != nil {
		return err
	}

	cmd.Printf("Scored %d pages (mean composite %.2f)\n", summary.Pages, summary.MeanComposite)
	for _, path := range paths {
		cmd.Printf("  wrote %s\n", path)
	}
	return nil
}

// buildPipeline assembles the crawl engine and analysis stages. The
// returned cleanup closes the cache store.
func buildPipeline(cfg config.Config, seed string, weights scoring.Weights, logger *zap.Logger) (*pipeline.Pipeline, func(), error) {
	cleanup := func() {}

	var fetcherOpts []crawler.FetcherOption
	if cfg.Cache.Enabled {
		store, err := cache.NewBoltStore(cfg.Cache.Path, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("open cache: %w", err)
		}
		cleanup = func() {
			if cerr := store.Close(); cerr != nil {
				logger.Warn("close cache", zap.Error(cerr))
			}
		}
		fetcherOpts = append(fetcherOpts, crawler.WithCache(store, cfg.CacheTTL()))
	}
	fetcherOpts = append(fetcherOpts,
		crawler.WithMaxBodyBytes(cfg.HTTP.MaxBodyBytes),
		crawler.WithRetryPolicy(crawler.NewExponentialRetryPolicy(
			cfg.HTTP.MaxRetries,
			time.Duration(cfg.HTTP.BackoffInitialMs)*time.Millisecond,
			time.Duration(cfg.HTTP.BackoffMaxMs)*time.Millisecond,
		)),
	)

	client := &http.Client{Timeout: cfg.HTTPTimeout()}
	fetcher := crawler.NewHTTPFetcher(client, logger, fetcherOpts...)
	robots := crawler.NewRobotsEnforcer(cfg.Crawler.IgnoreRobots, cfg.Crawler.UserAgent, logger)

	engine, err := crawler.NewEngine(crawler.Config{
		Seed:         seed,
		MaxPages:     cfg.Crawler.MaxPages,
		MaxDepth:     cfg.Crawler.MaxDepth,
		Workers:      cfg.Crawler.Workers,
		Delay:        cfg.Delay(),
		UserAgent:    cfg.Crawler.UserAgent,
		IgnoreRobots: cfg.Crawler.IgnoreRobots,
	}, fetcher, robots, logger)
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	p, err := pipeline.New(
		engine,
		parse.NewParser("it"),
		extract.NewRuleExtractor(),
		scoring.NewEngine(),
		weights,
		seed,
		logger,
	)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return p, cleanup, nil
}

func applyCrawlFlags(cfg config.Config, flags crawlFlags) config.Config {
	if flags.maxPages > 0 {
		cfg.Crawler.MaxPages = flags.maxPages
	}
	if flags.maxDepth >= 0 {
		cfg.Crawler.MaxDepth = flags.maxDepth
	}
	if flags.workers > 0 {
		cfg.Crawler.Workers = flags.workers
	}
	if flags.delayMs >= 0 {
		cfg.Crawler.DelayMs = flags.delayMs
	}
	if flags.noCache {
		cfg.Cache.Enabled = false
	}
	if flags.outputDir != "" {
		cfg.Output.Dir = flags.outputDir
	}
	return cfg
}

func loadWeights(path string) (scoring.Weights, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return scoring.Weights{}, fmt.Errorf("read weights file: %w", err)
	}
	var w scoring.Weights
	if err := json.Unmarshal(data, &w); err != nil {
		return scoring.Weights{}, fmt.Errorf("parse weights file %s: %w", path, err)
	}
	if err := w.Validate(); err != nil {
		return scoring.Weights{}, fmt.Errorf("weights file %s: %w", path, err)
	}
	return w, nil
}
