// Package extract turns parsed page text and markup into the structured
// metric bundle consumed by the scoring engine.
package extract

import (
	"regexp"
	"strconv"
	"strings"
)

// actuarialTerms is the domain vocabulary counted per page. Mixed Italian and
// English because the target corpus is Italian actuarial content that quotes
// EU regulation verbatim.
var actuarialTerms = []string{
	"solvency",
	"solvency ii",
	"ivass",
	"eiopa",
	"riserva",
	"best estimate",
	"premio",
	"longevità",
	"mortalità",
	"stress test",
	"discount rate",
	"risk margin",
	"scr",
	"bscr",
	"premio puro",
	"var",
	"value at risk",
	"tasso tecnico",
	"attuario",
	"riserva matematica",
}

var (
	wordPattern    = regexp.MustCompile(`[\p{L}\p{N}_]+`)
	numericPattern = regexp.MustCompile(`\b\d+(?:[.,]\d+)?\b`)

	formulaPatterns = []*regexp.Regexp{
		regexp.MustCompile(`\\begin\{equation\}`),
		regexp.MustCompile(`(?s)\\\[(.*?)\\\]`),
		regexp.MustCompile("[=≠≤≥]"),
	}

	citationPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b(?:ivass|eiopa|isvap|solvency\s*ii|european insurance)\b`),
		regexp.MustCompile(`(?i)\bregolament[oi]|circolare|normativa\b`),
	}
)

const maxExampleValues = 20

// PageMetrics is the metric bundle extracted from a single page.
// Produced once per page, immutable thereafter.
type PageMetrics struct {
	WordCount       int            `json:"word_count"`
	Terms           map[string]int `json:"actuarial_terms"`
	NumericTokens   int            `json:"numeric_tokens"`
	HasFormula      bool           `json:"has_formula"`
	HasTable        bool           `json:"has_table"`
	HasList         bool           `json:"has_list"`
	CitationMatches int            `json:"citation_matches"`
	ExampleValues   []float64      `json:"example_values"`
}

// Extractor is the capability interface the pipeline depends on, so that
// rule-based and model-based extractors are interchangeable.
type Extractor interface {
	Extract(text, html string) PageMetrics
}

// RuleExtractor implements Extractor with fixed term lists and patterns.
// It is pure: no state, no side effects, never fails on well-formed input.
type RuleExtractor struct{}

// NewRuleExtractor returns the default rule-based extractor.
func NewRuleExtractor() *RuleExtractor {
	return &RuleExtractor{}
}

// Extract computes the metric bundle from plain text and raw markup.
func (RuleExtractor) Extract(text, html string) PageMetrics {
	lower := strings.ToLower(text)
	lowerHTML := strings.ToLower(html)

	terms := make(map[string]int)
	for _, term := range actuarialTerms {
		if n := strings.Count(lower, term); n > 0 {
			terms[term] = n
		}
	}

	numeric := numericPattern.FindAllString(text, -1)
	values := make([]float64, 0, maxExampleValues)
	for _, token := range numeric {
		if len(values) == maxExampleValues {
			break
		}
		v, err := strconv.ParseFloat(strings.ReplaceAll(token, ",", "."), 64)
		if err != nil {
			continue
		}
		values = append(values, v)
	}

	hasFormula := false
	for _, p := range formulaPatterns {
		if p.MatchString(text) {
			hasFormula = true
			break
		}
	}

	citations := 0
	for _, p := range citationPatterns {
		citations += len(p.FindAllString(text, -1))
	}

	return PageMetrics{
		WordCount:       len(wordPattern.FindAllString(lower, -1)),
		Terms:           terms,
		NumericTokens:   len(numeric),
		HasFormula:      hasFormula,
		HasTable:        strings.Contains(lowerHTML, "<table"),
		HasList:         strings.Contains(lowerHTML, "<ul") || strings.Contains(lowerHTML, "<ol"),
		CitationMatches: citations,
		ExampleValues:   values,
	}
}
