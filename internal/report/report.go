// Package report renders finished runs as CSV, JSON and XLSX files.
package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/attuario-ai/attuario/internal/pipeline"
)

var csvHeader = []string{
	"url", "depth", "status", "from_cache", "classification", "composite",
	"accuracy", "transparency", "completeness", "freshness", "clarity",
	"word_count", "numeric_tokens", "citations", "content_hash",
}

// Writer saves run artifacts under a single output directory.
type Writer struct {
	dir    string
	logger *zap.Logger
}

// NewWriter creates the output directory if needed.
func NewWriter(dir string, logger *zap.Logger) (*Writer, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create output dir %s: %w", dir, err)
	}
	return &Writer{dir: dir, logger: logger}, nil
}

// WriteAll renders every artifact for a run: pages.csv, pages.json,
// pages.xlsx and summary.json. It returns the paths written.
func (w *Writer) WriteAll(reports []pipeline.PageReport, summary pipeline.Summary) ([]string, error) {
	writers := []struct {
		name string
		fn   func(string, []pipeline.PageReport, pipeline.Summary) error
	}{
		{"pages.csv", w.writeCSV},
		{"pages.json", w.writeJSON},
		{"pages.xlsx", w.writeXLSX},
		{"summary.json", w.writeSummary},
	}

	paths := make([]string, 0, len(writers))
	for _, out := range writers {
		target := filepath.Join(w.dir, out.name)
		if err := out.fn(target, reports, summary); err != nil {
			return nil, fmt.Errorf("write %s: %w", out.name, err)
		}
		w.logger.Info("report written", zap.String("path", target))
		paths = append(paths, target)
	}
	return paths, nil
}

func (w *Writer) writeCSV(path string, reports []pipeline.PageReport, _ pipeline.Summary) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := file.Close(); cerr != nil {
			w.logger.Warn("close report file", zap.String("path", path), zap.Error(cerr))
		}
	}()

	cw := csv.NewWriter(file)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, r := range reports {
		if err := cw.Write(csvRow(r)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func csvRow(r pipeline.PageReport) []string {
	return []string{
		r.URL,
		strconv.Itoa(r.Depth),
		strconv.Itoa(r.StatusCode),
		strconv.FormatBool(r.FromCache),
		r.Score.Classification,
		formatScore(r.Score.Composite),
		formatScore(r.Score.Components.Accuracy),
		formatScore(r.Score.Components.Transparency),
		formatScore(r.Score.Components.Completeness),
		formatScore(r.Score.Components.Freshness),
		formatScore(r.Score.Components.Clarity),
		strconv.Itoa(r.Metrics.WordCount),
		strconv.Itoa(r.Metrics.NumericTokens),
		strconv.Itoa(r.Metrics.CitationMatches),
		r.ContentHash,
	}
}

func formatScore(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func (w *Writer) writeJSON(path string, reports []pipeline.PageReport, _ pipeline.Summary) error {
	return writeJSONFile(path, reports)
}

func (w *Writer) writeSummary(path string, _ []pipeline.PageReport, summary pipeline.Summary) error {
	return writeJSONFile(path, summary)
}

func writeJSONFile(path string, payload any) error {
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	return os.WriteFile(path, data, 0o600)
}

func (w *Writer) writeXLSX(path string, reports []pipeline.PageReport, summary pipeline.Summary) error {
	book := excelize.NewFile()
	defer func() {
		if cerr := book.Close(); cerr != nil {
			w.logger.Warn("close workbook", zap.Error(cerr))
		}
	}()

	const pagesSheet = "Pagine"
	index, err := book.NewSheet(pagesSheet)
	if err != nil {
		return err
	}
	book.SetActiveSheet(index)
	if err := book.DeleteSheet("Sheet1"); err != nil {
		return err
	}

	header := make([]any, len(csvHeader))
	for i, h := range csvHeader {
		header[i] = h
	}
	if err := book.SetSheetRow(pagesSheet, "A1", &header); err != nil {
		return err
	}
	for i, r := range reports {
		row := []any{
			r.URL, r.Depth, r.StatusCode, r.FromCache,
			r.Score.Classification, r.Score.Composite,
			r.Score.Components.Accuracy, r.Score.Components.Transparency,
			r.Score.Components.Completeness, r.Score.Components.Freshness,
			r.Score.Components.Clarity,
			r.Metrics.WordCount, r.Metrics.NumericTokens, r.Metrics.CitationMatches,
			r.ContentHash,
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := book.SetSheetRow(pagesSheet, cell, &row); err != nil {
			return err
		}
	}

	const summarySheet = "Riepilogo"
	if _, err := book.NewSheet(summarySheet); err != nil {
		return err
	}
	summaryRows := [][]any{
		{"run_id", summary.RunID},
		{"seed", summary.Seed},
		{"pages", summary.Pages},
		{"pages_from_cache", summary.FromCache},
		{"mean_composite", summary.MeanComposite},
		{"started_at", summary.StartedAt.Format("2006-01-02 15:04:05")},
		{"finished_at", summary.FinishedAt.Format("2006-01-02 15:04:05")},
	}
	classes := make([]string, 0, len(summary.ByClass))
	for class := range summary.ByClass {
		classes = append(classes, class)
	}
	sort.Strings(classes)
	for _, class := range classes {
		summaryRows = append(summaryRows, []any{"class_" + class, summary.ByClass[class]})
	}
	for i := range summaryRows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := book.SetSheetRow(summarySheet, cell, &summaryRows[i]); err != nil {
			return err
		}
	}

	return book.SaveAs(path)
}
