package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/attuario-ai/attuario/internal/calibrate"
	"github.com/attuario-ai/attuario/internal/scoring"
)

func newCalibrateCmd() *cobra.Command {
	var (
		labelsFile string
		outFile    string
		rawOutput  bool
	)

	cmd := &cobra.Command{
		Use:   "calibrate <seed-url>",
		Short: "Fit score weights against human-labeled pages",
		Long: `Crawls the site, computes component scores for every page that appears
in the labels file, and fits composite weights to the human targets with
least squares. The fitted weights are clamped to non-negative values and
normalized before being written, unless --raw is given.

The labels file is a JSON object mapping page URLs to target composite
scores in [0, 100]:

  {"https://example.it/riserve": 85, "https://example.it/premi": 70}`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCalibrate(cmd, args[0], labelsFile, outFile, rawOutput)
		},
	}

	cmd.Flags().StringVar(&labelsFile, "labels", "", "JSON file mapping URLs to target scores (required)")
	cmd.Flags().StringVar(&outFile, "out", "", "where to write the fitted weights (default <output dir>/weights.json)")
	cmd.Flags().BoolVar(&rawOutput, "raw", false, "write the raw least-squares solution without clamping or normalizing")
	_ = cmd.MarkFlagRequired("labels")

	return cmd
}

func runCalibrate(cmd *cobra.Command, seed, labelsFile, outFile string, raw bool) error {
	rt, err := resolveRuntime(cmd.Context())
	if err != nil {
		return err
	}

	labels, err := loadLabels(labelsFile)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p, cleanup, err := buildPipeline(rt.cfg, seed, scoring.Weights(rt.cfg.Scoring), rt.logger)
	if err != nil {
		return err
	}
	defer cleanup()

	reports, _, err := p.Run(ctx)
	if err != nil {
		return fmt.Errorf("run crawl: %w", err)
	}

	var examples []calibrate.Example
	for _, r := range reports {
		target, ok := labels[r.URL]
		if !ok {
			continue
		}
		examples = append(examples, calibrate.Example{
			URL:        r.URL,
			Components: r.Score.Components,
			Target:     target,
		})
	}
	if len(examples) < len(labels) {
		cmd.Printf("Warning: %d labeled URLs were not reached by the crawl\n", len(labels)-len(examples))
	}

	result, err := calibrate.Fit(examples)
	if err != nil {
		return fmt.Errorf("calibrate: %w", err)
	}

	weights := result.Weights
	if !raw {
		weights, err = weights.ClampNonNegative().Normalize()
		if err != nil {
			return fmt.Errorf("normalize fitted weights: %w", err)
		}
	}

	if outFile == "" {
		outFile = filepath.Join(rt.cfg.Output.Dir, "weights.json")
	}
	if err := os.MkdirAll(filepath.Dir(outFile), 0o750); err != nil {
		return fmt.Errorf("create weights dir: %w", err)
	}
	payload, err := json.MarshalIndent(weights, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal weights: %w", err)
	}
	if err := os.WriteFile(outFile, payload, 0o600); err != nil {
		return fmt.Errorf("write weights: %w", err)
	}

	cmd.Printf("Fitted weights on %d examples (holdout %d): MAE %.3f, MSE %.3f\n",
		result.Train, result.Holdout, result.MAE, result.MSE)
	cmd.Printf("  wrote %s\n", outFile)
	return nil
}

func loadLabels(path string) (map[string]float64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read labels file: %w", err)
	}
	var labels map[string]float64
	if err := json.Unmarshal(data, &labels); err != nil {
		return nil, fmt.Errorf("parse labels file %s: %w", path, err)
	}
	if len(labels) == 0 {
		return nil, fmt.Errorf("labels file %s is empty", path)
	}
	for url, target := range labels {
		if target < 0 || target > 100 {
			return nil, fmt.Errorf("label for %s must be in [0, 100], got %v", url, target)
		}
	}
	return labels, nil
}
