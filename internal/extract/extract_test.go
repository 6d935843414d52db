package extract

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExtract_BasicCounts(t *testing.T) {
	t.Parallel()

	text := "This is a simple test with ten words in it."
	html := "<html><body><p>" + text + "</p></body></html>"

	m := NewRuleExtractor().Extract(text, html)

	require.Equal(t, 10, m.WordCount)
	require.Zero(t, m.NumericTokens)
	require.False(t, m.HasFormula)
	require.False(t, m.HasTable)
	require.False(t, m.HasList)
	require.Empty(t, m.Terms)
}

func TestExtract_ActuarialTerms(t *testing.T) {
	t.Parallel()

	text := `The solvency ratio is important. The best estimate must be calculated.
IVASS requires risk margin calculations. The SCR and BSCR are key metrics.
We analyze mortalità and longevità trends.`

	m := NewRuleExtractor().Extract(text, "<html><body></body></html>")

	for _, term := range []string{
		"solvency", "best estimate", "ivass", "risk margin",
		"scr", "bscr", "mortalità", "longevità",
	} {
		require.Contains(t, m.Terms, term)
	}
	require.GreaterOrEqual(t, len(m.Terms), 6)
}

func TestExtract_NumericTokens(t *testing.T) {
	t.Parallel()

	text := "The premium is 1000 EUR and the reserve is 25000.50 EUR. Risk is 3.14%."
	m := NewRuleExtractor().Extract(text, "")

	require.Equal(t, 3, m.NumericTokens)
	require.Contains(t, m.ExampleValues, 1000.0)
	require.Contains(t, m.ExampleValues, 25000.50)
	require.Contains(t, m.ExampleValues, 3.14)
}

func TestExtract_CommaDecimalSeparator(t *testing.T) {
	t.Parallel()

	text := "Il premio è 1500,75 EUR e la riserva è 30000,25 EUR."
	m := NewRuleExtractor().Extract(text, "")

	require.Equal(t, 2, m.NumericTokens)
	require.Contains(t, m.ExampleValues, 1500.75)
	require.Contains(t, m.ExampleValues, 30000.25)
}

func TestExtract_FormulaDetection(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		text string
	}{
		{"equation environment", `The formula is \begin{equation} E = mc^2 \end{equation}`},
		{"latex display math", `The equation is \[ \int_0^1 f(x) dx = 1 \]`},
		{"math symbols", "The inequality a ≤ b ≥ c ≠ d holds."},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			m := NewRuleExtractor().Extract(tc.text, "")
			require.True(t, m.HasFormula)
		})
	}
}

func TestExtract_StructureFlags(t *testing.T) {
	t.Parallel()

	htmlTable := `<html><body><table><tr><td>2023</td></tr></table></body></html>`
	htmlUL := `<html><body><ul><li>Solvency II compliance</li></ul></body></html>`
	htmlOL := `<html><body><ol><li>First step</li></ol></body></html>`

	require.True(t, NewRuleExtractor().Extract("x", htmlTable).HasTable)
	require.True(t, NewRuleExtractor().Extract("x", htmlUL).HasList)
	require.True(t, NewRuleExtractor().Extract("x", htmlOL).HasList)
}

func TestExtract_Citations(t *testing.T) {
	t.Parallel()

	text := `According to IVASS regulations and EIOPA guidelines,
the Solvency II framework requires specific calculations.
The normativa and regolamento must be followed.`

	m := NewRuleExtractor().Extract(text, "")
	require.Positive(t, m.CitationMatches)
}

func TestExtract_EmptyContent(t *testing.T) {
	t.Parallel()

	m := NewRuleExtractor().Extract("", "<html><body></body></html>")

	require.Zero(t, m.WordCount)
	require.Zero(t, m.NumericTokens)
	require.Empty(t, m.Terms)
	require.Zero(t, m.CitationMatches)
}

func TestExtract_ExampleValuesCapped(t *testing.T) {
	t.Parallel()

	var sb strings.Builder
	for i := 0; i < 50; i++ {
		fmt.Fprintf(&sb, "%d ", i)
	}
	m := NewRuleExtractor().Extract(sb.String(), "")

	require.Equal(t, 50, m.NumericTokens)
	require.Len(t, m.ExampleValues, 20)
}

func TestExtract_ComprehensiveDocument(t *testing.T) {
	t.Parallel()

	text := `Analisi Solvency II per IVASS

Il Best Estimate della riserva matematica è calcolato utilizzando il tasso tecnico.
Il premio puro è 5000 EUR con un risk margin di 500 EUR.

Calcolo SCR:
- BSCR base: 10000
- Stress test applicato: 1.5
- Value at Risk (VaR) al 99.5%

Riferimenti normativi: EIOPA guidelines, circolare IVASS n. 23/2020.`
	html := `<html><body><article>
<table><tr><td>BSCR</td><td>10000</td></tr></table>
<ul><li>Stress test applicato: 1.5</li></ul>
</article></body></html>`

	m := NewRuleExtractor().Extract(text, html)

	require.GreaterOrEqual(t, len(m.Terms), 8)
	require.Contains(t, m.Terms, "riserva matematica")
	require.Contains(t, m.Terms, "premio puro")
	require.GreaterOrEqual(t, m.NumericTokens, 4)
	require.Greater(t, m.WordCount, 30)
	require.True(t, m.HasTable)
	require.True(t, m.HasList)
	require.GreaterOrEqual(t, m.CitationMatches, 2)
}
