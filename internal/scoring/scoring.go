// Package scoring converts a page's metric bundle into component scores,
// a weighted composite and a quality classification.
package scoring

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/attuario-ai/attuario/internal/extract"
	"github.com/attuario-ai/attuario/internal/parse"
)

// Classification labels. The thresholds are fixed constants so comparisons
// stay stable across calibration runs.
const (
	ClassExcellent = "excellent"
	ClassGood      = "good"
	ClassFair      = "fair"
	ClassPoor      = "poor"
)

const (
	thresholdExcellent = 85.0
	thresholdGood      = 70.0
	thresholdFair      = 50.0

	freshnessDecayDays = 365
)

// ErrZeroWeights is returned when the caller-supplied weights sum to zero.
var ErrZeroWeights = errors.New("score weights sum to zero")

// Weights are the five composite coefficients. They should sum to 1.0 but
// the engine never assumes that: they are normalized defensively before use.
type Weights struct {
	Accuracy     float64 `json:"accuracy"`
	Transparency float64 `json:"transparency"`
	Completeness float64 `json:"completeness"`
	Freshness    float64 `json:"freshness"`
	Clarity      float64 `json:"clarity"`
}

// DefaultWeights returns the hand-tuned starting weights.
func DefaultWeights() Weights {
	return Weights{
		Accuracy:     0.4,
		Transparency: 0.2,
		Completeness: 0.2,
		Freshness:    0.1,
		Clarity:      0.1,
	}
}

// Sum returns the raw coefficient total.
func (w Weights) Sum() float64 {
	return w.Accuracy + w.Transparency + w.Completeness + w.Freshness + w.Clarity
}

// Validate rejects negative coefficients and an all-zero weight set.
func (w Weights) Validate() error {
	for name, v := range map[string]float64{
		"accuracy":     w.Accuracy,
		"transparency": w.Transparency,
		"completeness": w.Completeness,
		"freshness":    w.Freshness,
		"clarity":      w.Clarity,
	} {
		if v < 0 {
			return fmt.Errorf("weight %s must be >= 0, got %v", name, v)
		}
	}
	if w.Sum() == 0 {
		return ErrZeroWeights
	}
	return nil
}

// Normalize scales the weights to sum to 1.0.
func (w Weights) Normalize() (Weights, error) {
	total := w.Sum()
	if total == 0 {
		return Weights{}, ErrZeroWeights
	}
	return Weights{
		Accuracy:     w.Accuracy / total,
		Transparency: w.Transparency / total,
		Completeness: w.Completeness / total,
		Freshness:    w.Freshness / total,
		Clarity:      w.Clarity / total,
	}, nil
}

// ClampNonNegative zeroes any negative coefficient. Calibration may produce
// negative solutions; whether to clamp is the caller's policy decision.
func (w Weights) ClampNonNegative() Weights {
	return Weights{
		Accuracy:     math.Max(w.Accuracy, 0),
		Transparency: math.Max(w.Transparency, 0),
		Completeness: math.Max(w.Completeness, 0),
		Freshness:    math.Max(w.Freshness, 0),
		Clarity:      math.Max(w.Clarity, 0),
	}
}

// Components holds the five per-dimension scores, each bounded to [0, 100].
type Components struct {
	Accuracy     float64 `json:"accuracy"`
	Transparency float64 `json:"transparency"`
	Completeness float64 `json:"completeness"`
	Freshness    float64 `json:"freshness"`
	Clarity      float64 `json:"clarity"`
}

// Vector returns the components in canonical order, matching
// Weights.Vector, for use as calibration regressors.
func (c Components) Vector() []float64 {
	return []float64{c.Accuracy, c.Transparency, c.Completeness, c.Freshness, c.Clarity}
}

// Vector returns the weights in the same canonical order as
// Components.Vector.
func (w Weights) Vector() []float64 {
	return []float64{w.Accuracy, w.Transparency, w.Completeness, w.Freshness, w.Clarity}
}

// WeightsFromVector rebuilds Weights from the canonical component order.
func WeightsFromVector(v []float64) (Weights, error) {
	if len(v) != 5 {
		return Weights{}, fmt.Errorf("expected 5 coefficients, got %d", len(v))
	}
	return Weights{
		Accuracy:     v[0],
		Transparency: v[1],
		Completeness: v[2],
		Freshness:    v[3],
		Clarity:      v[4],
	}, nil
}

// Defaulted records which components fell back to a neutral default because
// their inputs were missing or malformed. The flags are diagnostics, not a
// score-accuracy guarantee.
type Defaulted struct {
	Accuracy     bool `json:"accuracy,omitempty"`
	Transparency bool `json:"transparency,omitempty"`
	Completeness bool `json:"completeness,omitempty"`
	Freshness    bool `json:"freshness,omitempty"`
	Clarity      bool `json:"clarity,omitempty"`
}

// PageScore is the scoring result for a single page. Derived, never mutated
// after creation.
type PageScore struct {
	URL            string     `json:"url"`
	Components     Components `json:"components"`
	Composite      float64    `json:"composite"`
	Classification string     `json:"classification"`
	Defaulted      Defaulted  `json:"defaulted,omitempty"`
}

// Engine scores metric bundles. The clock is injectable so freshness decay
// is deterministic in tests.
type Engine struct {
	now func() time.Time
}

// NewEngine builds an Engine using the wall clock.
func NewEngine() *Engine {
	return &Engine{now: func() time.Time { return time.Now().UTC() }}
}

// NewEngineAt builds an Engine with a fixed notion of now.
func NewEngineAt(now func() time.Time) *Engine {
	return &Engine{now: now}
}

// Score combines the metric bundle and page metadata into a PageScore.
// A nil metrics bundle never panics: every component takes its neutral
// default and is flagged. The only error conditions are invalid weights.
func (e *Engine) Score(metrics *extract.PageMetrics, meta parse.Metadata, url string, w Weights) (PageScore, error) {
	if err := w.Validate(); err != nil {
		return PageScore{}, fmt.Errorf("invalid weights: %w", err)
	}
	normalized, err := w.Normalize()
	if err != nil {
		return PageScore{}, fmt.Errorf("normalize weights: %w", err)
	}

	components, defaulted := e.computeComponents(metrics, meta)

	composite := components.Accuracy*normalized.Accuracy +
		components.Transparency*normalized.Transparency +
		components.Completeness*normalized.Completeness +
		components.Freshness*normalized.Freshness +
		components.Clarity*normalized.Clarity

	return PageScore{
		URL: url,
		Components: Components{
			Accuracy:     round2(components.Accuracy),
			Transparency: round2(components.Transparency),
			Completeness: round2(components.Completeness),
			Freshness:    round2(components.Freshness),
			Clarity:      round2(components.Clarity),
		},
		Composite:      round2(composite),
		Classification: Classify(composite),
		Defaulted:      defaulted,
	}, nil
}

func (e *Engine) computeComponents(metrics *extract.PageMetrics, meta parse.Metadata) (Components, Defaulted) {
	if metrics == nil {
		return Components{
				Accuracy:     40,
				Transparency: 30,
				Completeness: 40,
				Freshness:    50,
				Clarity:      40,
			}, Defaulted{
				Accuracy:     true,
				Transparency: true,
				Completeness: true,
				Freshness:    true,
				Clarity:      true,
			}
	}

	var defaulted Defaulted

	timestamp := meta.Modified
	if timestamp == "" {
		timestamp = meta.Published
	}
	freshness, freshDefault := e.scoreFreshness(timestamp)
	defaulted.Freshness = freshDefault

	clarity, clarityDefault := scoreClarity(metrics)
	defaulted.Clarity = clarityDefault

	return Components{
		Accuracy:     scoreAccuracy(metrics),
		Transparency: scoreTransparency(metrics),
		Completeness: scoreCompleteness(metrics),
		Freshness:    freshness,
		Clarity:      clarity,
	}, defaulted
}

// scoreAccuracy rewards numeric density and formula presence.
func scoreAccuracy(m *extract.PageMetrics) float64 {
	if m.NumericTokens == 0 {
		return 40
	}
	ratio := math.Min(float64(m.NumericTokens)/math.Max(float64(m.WordCount), 1), 0.2)
	base := 60 + ratio*200
	if m.HasFormula {
		base += 10
	}
	return math.Min(base, 100)
}

// scoreTransparency saturates with citation count: each citation adds 15
// points up to the cap, so the marginal value diminishes to zero.
func scoreTransparency(m *extract.PageMetrics) float64 {
	if m.CitationMatches == 0 {
		return 30
	}
	return math.Min(30+float64(m.CitationMatches)*15, 100)
}

// scoreCompleteness combines term diversity with structural richness.
func scoreCompleteness(m *extract.PageMetrics) float64 {
	bonus := 0.0
	if m.HasTable {
		bonus += 20
	}
	if m.HasList {
		bonus += 10
	}
	if len(m.Terms) > 0 {
		bonus += math.Min(float64(len(m.Terms))*5, 30)
	}
	return math.Min(40+bonus, 100)
}

// scoreFreshness decays from 100 toward a floor of 20 over a year. A
// missing or malformed date yields a conservative default, flagged for the
// caller.
func (e *Engine) scoreFreshness(timestamp string) (score float64, defaulted bool) {
	if timestamp == "" {
		return 50, true
	}
	parsed, err := parseTimestamp(timestamp)
	if err != nil {
		return 60, true
	}
	age := e.now().Sub(parsed)
	if age < 0 {
		return 80, false
	}
	days := age.Hours() / 24
	decay := math.Min(days/freshnessDecayDays, 1)
	return math.Max(20, 100*(1-decay)), false
}

// scoreClarity is deliberately peaked: skeletal pages and number-dense
// pages both read worse than balanced prose.
func scoreClarity(m *extract.PageMetrics) (score float64, defaulted bool) {
	if m.WordCount == 0 {
		return 40, true
	}
	if float64(m.NumericTokens)/float64(m.WordCount) > 0.15 {
		return 65, false
	}
	return 80, false
}

// Classify maps a composite score onto the fixed threshold ladder.
func Classify(composite float64) string {
	switch {
	case composite >= thresholdExcellent:
		return ClassExcellent
	case composite >= thresholdGood:
		return ClassGood
	case composite >= thresholdFair:
		return ClassFair
	default:
		return ClassPoor
	}
}

func parseTimestamp(ts string) (time.Time, error) {
	for _, layout := range []string{
		time.RFC3339,
		"2006-01-02T15:04:05",
		"2006-01-02",
	} {
		if t, err := time.Parse(layout, ts); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", ts)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
