// Package pipeline drives a crawl run end to end: fetched pages are
// parsed, measured, scored and collected into a run report.
package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/attuario-ai/attuario/internal/crawler"
	"github.com/attuario-ai/attuario/internal/extract"
	"github.com/attuario-ai/attuario/internal/parse"
	"github.com/attuario-ai/attuario/internal/scoring"
	"github.com/attuario-ai/attuario/internal/telemetry"
)

// Crawler produces fetched pages on a channel. Satisfied by
// crawler.Engine.
type Crawler interface {
	Crawl(ctx context.Context) (<-chan crawler.Result, error)
}

// Scorer turns extracted metrics into a page score. Satisfied by
// scoring.Engine.
type Scorer interface {
	Score(metrics *extract.PageMetrics, meta parse.Metadata, url string, w scoring.Weights) (scoring.PageScore, error)
}

// PageReport is the full record produced for one crawled page.
type PageReport struct {
	RunID       string              `json:"run_id"`
	URL         string              `json:"url"`
	Depth       int                 `json:"depth"`
	StatusCode  int                 `json:"status_code"`
	FetchedAt   time.Time           `json:"fetched_at"`
	FromCache   bool                `json:"from_cache"`
	ContentHash string              `json:"content_hash"`
	Title       string              `json:"title"`
	Metrics     extract.PageMetrics `json:"metrics"`
	Score       scoring.PageScore   `json:"score"`
}

// Summary aggregates a finished run.
type Summary struct {
	RunID         string          `json:"run_id"`
	Seed          string          `json:"seed"`
	StartedAt     time.Time       `json:"started_at"`
	FinishedAt    time.Time       `json:"finished_at"`
	Pages         int             `json:"pages"`
	Failed        int             `json:"pages_failed"`
	FromCache     int             `json:"pages_from_cache"`
	ByClass       map[string]int  `json:"by_classification"`
	MeanComposite float64         `json:"mean_composite"`
	Weights       scoring.Weights `json:"weights"`
}

// Pipeline wires the crawl engine to the analysis stages.
type Pipeline struct {
	crawler   Crawler
	parser    *parse.Parser
	extractor extract.Extractor
	scorer    Scorer
	weights   scoring.Weights
	seed      string
	logger    *zap.Logger
	now       func() time.Time
}

// New assembles a pipeline. The weights are validated up front so a bad
// weight file fails before any network traffic.
func New(c Crawler, parser *parse.Parser, extractor extract.Extractor, scorer Scorer, weights scoring.Weights, seed string, logger *zap.Logger) (*Pipeline, error) {
	if err := weights.Validate(); err != nil {
		return nil, fmt.Errorf("pipeline weights: %w", err)
	}
	return &Pipeline{
		crawler:   c,
		parser:    parser,
		extractor: extractor,
		scorer:    scorer,
		weights:   weights,
		seed:      seed,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}, nil
}

// Run executes the crawl and scores every page it yields. Pages that fail
// to score are logged and skipped; the run itself only fails when the
// crawl cannot start.
func (p *Pipeline) Run(ctx context.Context) ([]PageReport, Summary, error) {
	runID, err := newRunID()
	if err != nil {
		return nil, Summary{}, err
	}

	started := p.now()
	results, err := p.crawler.Crawl(ctx)
	if err != nil {
		return nil, Summary{}, fmt.Errorf("start crawl: %w", err)
	}

	p.logger.Info("crawl started", zap.String("run_id", runID), zap.String("seed", p.seed))

	var reports []PageReport
	var failed int
	for result := range results {
		if result.Err != nil {
			failed++
			p.logger.Warn("skipping failed page",
				zap.String("url", result.URL), zap.Error(result.Err))
			continue
		}
		report, err := p.analyze(runID, result)
		if err != nil {
			p.logger.Warn("page analysis failed", zap.String("url", result.URL), zap.Error(err))
			continue
		}
		telemetry.ObserveScore(report.Score.Classification)
		p.logger.Debug("page scored",
			zap.String("url", report.URL),
			zap.Float64("composite", report.Score.Composite),
			zap.String("class", report.Score.Classification))
		reports = append(reports, report)
	}

	summary := p.summarize(runID, reports, started)
	summary.Failed = failed
	p.logger.Info("crawl finished",
		zap.String("run_id", runID),
		zap.Int("pages", summary.Pages),
		zap.Int("failed", summary.Failed),
		zap.Float64("mean_composite", summary.MeanComposite))
	return reports, summary, nil
}

func (p *Pipeline) analyze(runID string, result crawler.Result) (PageReport, error) {
	page, err := p.parser.Parse(result.URL, string(result.Body), result.FetchedAt)
	if err != nil {
		return PageReport{}, fmt.Errorf("parse: %w", err)
	}

	metrics := p.extractor.Extract(page.Text, page.HTML)

	score, err := p.scorer.Score(&metrics, page.Meta, result.URL, p.weights)
	if err != nil {
		return PageReport{}, fmt.Errorf("score: %w", err)
	}

	sum := sha256.Sum256(result.Body)
	return PageReport{
		RunID:       runID,
		URL:         result.URL,
		Depth:       result.Depth,
		StatusCode:  result.StatusCode,
		FetchedAt:   result.FetchedAt,
		FromCache:   result.FromCache,
		ContentHash: hex.EncodeToString(sum[:]),
		Title:       page.Title,
		Metrics:     metrics,
		Score:       score,
	}, nil
}

func (p *Pipeline) summarize(runID string, reports []PageReport, started time.Time) Summary {
	summary := Summary{
		RunID:      runID,
		Seed:       p.seed,
		StartedAt:  started,
		FinishedAt: p.now(),
		Pages:      len(reports),
		ByClass:    make(map[string]int),
		Weights:    p.weights,
	}
	var total float64
	for _, r := range reports {
		summary.ByClass[r.Score.Classification]++
		total += r.Score.Composite
		if r.FromCache {
			summary.FromCache++
		}
	}
	if len(reports) > 0 {
		summary.MeanComposite = total / float64(len(reports))
	}
	return summary
}

func newRunID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate run id: %w", err)
	}
	return id.String(), nil
}
