package scoring

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/attuario-ai/attuario/internal/extract"
	"github.com/attuario-ai/attuario/internal/parse"
)

func fixedEngine(t *testing.T) *Engine {
	t.Helper()
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	return NewEngineAt(func() time.Time { return now })
}

func richMetrics() *extract.PageMetrics {
	return &extract.PageMetrics{
		WordCount:       500,
		Terms:           map[string]int{"riserva": 3, "premio": 2, "solvency": 1},
		NumericTokens:   60,
		HasFormula:      true,
		HasTable:        true,
		HasList:         true,
		CitationMatches: 4,
	}
}

func TestScoreRichPage(t *testing.T) {
	t.Parallel()

	engine := fixedEngine(t)
	meta := parse.Metadata{Modified: "2026-05-01"}

	got, err := engine.Score(richMetrics(), meta, "https://example.it/riserve", DefaultWeights())
	require.NoError(t, err)

	// density 60/500 = 0.12 -> accuracy 60 + 24 + 10 = 94
	require.InDelta(t, 94, got.Components.Accuracy, 0.01)
	// 4 citations -> 30 + 60 = 90
	require.InDelta(t, 90, got.Components.Transparency, 0.01)
	// table 20 + list 10 + 3 terms * 5 = 15 -> 40 + 45 = 85
	require.InDelta(t, 85, got.Components.Completeness, 0.01)
	// numeric ratio 0.12 <= 0.15 -> clarity 80
	require.InDelta(t, 80, got.Components.Clarity, 0.01)
	require.Greater(t, got.Components.Freshness, 80.0)

	require.Equal(t, ClassExcellent, got.Classification)
	require.Equal(t, Defaulted{}, got.Defaulted)
}

func TestScoreSparsePageIsPoor(t *testing.T) {
	t.Parallel()

	engine := fixedEngine(t)
	metrics := &extract.PageMetrics{WordCount: 120}

	got, err := engine.Score(metrics, parse.Metadata{}, "https://example.it/chi-siamo", DefaultWeights())
	require.NoError(t, err)

	// 0.4*40 + 0.2*30 + 0.2*40 + 0.1*50 + 0.1*80 = 48
	require.InDelta(t, 48, got.Composite, 0.01)
	require.Equal(t, ClassPoor, got.Classification)
	require.True(t, got.Defaulted.Freshness)
	require.False(t, got.Defaulted.Clarity)
}

func TestScoreNilMetricsUsesNeutralDefaults(t *testing.T) {
	t.Parallel()

	engine := fixedEngine(t)

	got, err := engine.Score(nil, parse.Metadata{}, "https://example.it/vuota", DefaultWeights())
	require.NoError(t, err)

	require.Equal(t, Defaulted{
		Accuracy:     true,
		Transparency: true,
		Completeness: true,
		Freshness:    true,
		Clarity:      true,
	}, got.Defaulted)
	require.Equal(t, ClassPoor, got.Classification)
}

func TestScoreScalingInvariance(t *testing.T) {
	t.Parallel()

	engine := fixedEngine(t)
	meta := parse.Metadata{Modified: "2026-04-15"}

	base := DefaultWeights()
	scaled := Weights{
		Accuracy:     base.Accuracy * 7,
		Transparency: base.Transparency * 7,
		Completeness: base.Completeness * 7,
		Freshness:    base.Freshness * 7,
		Clarity:      base.Clarity * 7,
	}

	a, err := engine.Score(richMetrics(), meta, "https://example.it/p", base)
	require.NoError(t, err)
	b, err := engine.Score(richMetrics(), meta, "https://example.it/p", scaled)
	require.NoError(t, err)

	require.InDelta(t, a.Composite, b.Composite, 1e-9)
	require.Equal(t, a.Classification, b.Classification)
}

func TestScoreRejectsBadWeights(t *testing.T) {
	t.Parallel()

	engine := fixedEngine(t)

	_, err := engine.Score(richMetrics(), parse.Metadata{}, "https://example.it/p", Weights{})
	require.ErrorIs(t, err, ErrZeroWeights)

	_, err = engine.Score(richMetrics(), parse.Metadata{}, "https://example.it/p", Weights{Accuracy: -0.1, Clarity: 1.1})
	require.Error(t, err)
	require.Contains(t, err.Error(), "accuracy")
}

func TestClassifyBoundaries(t *testing.T) {
	t.Parallel()

	cases := []struct {
		composite float64
		want      string
	}{
		{100, ClassExcellent},
		{85, ClassExcellent},
		{84.999, ClassGood},
		{70, ClassGood},
		{69.999, ClassFair},
		{50, ClassFair},
		{49.999, ClassPoor},
		{0, ClassPoor},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, Classify(tc.composite), "composite %v", tc.composite)
	}
}

func TestFreshnessDecay(t *testing.T) {
	t.Parallel()

	engine := fixedEngine(t)

	cases := []struct {
		name      string
		timestamp string
		want      float64
		defaulted bool
	}{
		{"missing", "", 50, true},
		{"malformed", "last tuesday", 60, true},
		{"future", "2027-01-01", 80, false},
		{"two years old", "2024-06-01", 20, false},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, defaulted := engine.scoreFreshness(tc.timestamp)
			require.InDelta(t, tc.want, got, 0.01)
			require.Equal(t, tc.defaulted, defaulted)
		})
	}

	t.Run("recent date scores near 100", func(t *testing.T) {
		t.Parallel()
		got, defaulted := engine.scoreFreshness("2026-05-25")
		require.False(t, defaulted)
		require.Greater(t, got, 95.0)
		require.LessOrEqual(t, got, 100.0)
	})
}

func TestClarityPenalizesNumberDensity(t *testing.T) {
	t.Parallel()

	dense := &extract.PageMetrics{WordCount: 100, NumericTokens: 20}
	got, defaulted := scoreClarity(dense)
	require.False(t, defaulted)
	require.InDelta(t, 65, got, 0.01)

	empty := &extract.PageMetrics{}
	got, defaulted = scoreClarity(empty)
	require.True(t, defaulted)
	require.InDelta(t, 40, got, 0.01)
}

func TestWeightsNormalizeAndClamp(t *testing.T) {
	t.Parallel()

	w := Weights{Accuracy: 2, Transparency: 1, Completeness: 1, Freshness: 0.5, Clarity: 0.5}
	n, err := w.Normalize()
	require.NoError(t, err)
	require.InDelta(t, 1.0, n.Sum(), 1e-9)
	require.InDelta(t, 0.4, n.Accuracy, 1e-9)

	_, err = Weights{}.Normalize()
	require.ErrorIs(t, err, ErrZeroWeights)

	clamped := Weights{Accuracy: -0.3, Transparency: 0.6, Completeness: 0.4, Freshness: -0.1, Clarity: 0.4}.ClampNonNegative()
	require.Zero(t, clamped.Accuracy)
	require.Zero(t, clamped.Freshness)
	require.InDelta(t, 0.6, clamped.Transparency, 1e-9)
}

func TestWeightsVectorRoundTrip(t *testing.T) {
	t.Parallel()

	w := DefaultWeights()
	back, err := WeightsFromVector(w.Vector())
	require.NoError(t, err)
	require.Equal(t, w, back)

	_, err = WeightsFromVector([]float64{1, 2, 3})
	require.Error(t, err)
}
