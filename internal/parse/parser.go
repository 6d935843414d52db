// Package parse converts raw HTML into structured text and metadata.
package parse

import (
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// Metadata is the best-effort page metadata pulled from meta tags.
// Missing fields stay empty; malformed markup never causes a hard failure.
type Metadata struct {
	Language    string `json:"language"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Published   string `json:"published"`
	Modified    string `json:"modified"`
	Author      string `json:"author"`
}

// ParsedPage is the structured representation of an HTML page.
type ParsedPage struct {
	URL       string    `json:"url"`
	Title     string    `json:"title"`
	Text      string    `json:"-"`
	HTML      string    `json:"-"`
	FetchedAt time.Time `json:"fetched_at"`
	Meta      Metadata  `json:"metadata"`
}

// Parser extracts text and metadata from raw markup.
type Parser struct {
	language string
}

// NewParser builds a Parser expecting content in the given language code.
func NewParser(language string) *Parser {
	if language == "" {
		language = "it"
	}
	return &Parser{language: language}
}

// Parse builds a ParsedPage from raw markup. Malformed markup yields a
// best-effort partial result rather than an error; the only hard failure is
// markup the tokenizer cannot read at all.
func (p *Parser) Parse(rawURL, html string, fetchedAt time.Time) (ParsedPage, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ParsedPage{
			URL:       rawURL,
			HTML:      html,
			FetchedAt: fetchedAt,
			Meta:      Metadata{Language: p.language},
		}, nil
	}

	title := strings.TrimSpace(doc.Find("title").First().Text())

	return ParsedPage{
		URL:       rawURL,
		Title:     title,
		Text:      extractText(doc),
		HTML:      html,
		FetchedAt: fetchedAt,
		Meta: Metadata{
			Language:    p.language,
			Title:       title,
			Description: metaContent(doc, "description"),
			Published:   findDatetime(doc, "article:published_time"),
			Modified:    findDatetime(doc, "article:modified_time"),
			Author:      metaContent(doc, "author"),
		},
	}, nil
}

// extractText returns the text of the densest content container, falling
// back to the whole document when no candidate matches.
func extractText(doc *goquery.Document) string {
	var best *goquery.Selection
	bestLen := -1
	for _, selector := range []string{"article", "main", "div", "body"} {
		node := doc.Find(selector).First()
		if node.Length() == 0 {
			continue
		}
		if l := len(node.Text()); l > bestLen {
			best = node
			bestLen = l
		}
	}
	if best == nil {
		return normalizeText(doc.Text())
	}
	return normalizeText(best.Text())
}

// normalizeText collapses the whitespace goquery leaves behind into
// newline-separated trimmed lines.
func normalizeText(raw string) string {
	lines := strings.FieldsFunc(raw, func(r rune) bool { return r == '\n' || r == '\r' })
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return strings.Join(out, "\n")
}

func metaContent(doc *goquery.Document, name string) string {
	content, ok := doc.Find(`meta[name="` + name + `"]`).First().Attr("content")
	if !ok {
		return ""
	}
	return strings.TrimSpace(content)
}

func findDatetime(doc *goquery.Document, property string) string {
	if content, ok := doc.Find(`meta[property="` + property + `"]`).First().Attr("content"); ok {
		return strings.TrimSpace(content)
	}
	if dt, ok := doc.Find("time[datetime]").First().Attr("datetime"); ok {
		return strings.TrimSpace(dt)
	}
	return ""
}
