// Package cmd defines and implements the CLI commands for the attuario
// executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/attuario-ai/attuario/internal/config"
	"github.com/attuario-ai/attuario/internal/logging"
)

var cfgFile string

// runtimeKeyType is the key for storing the runtime in the context.
type runtimeKeyType string

const runtimeKey runtimeKeyType = "runtime"

// runtime bundles the services every subcommand needs. It is built once in
// PersistentPreRunE and injected through the command context so tests can
// swap in their own.
type runtime struct {
	cfg    config.Config
	logger *zap.Logger
}

// newRuntime is the runtime factory, replaceable in tests.
var newRuntime = func() (*runtime, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	level, err := zapcore.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return nil, fmt.Errorf("parse log level %q: %w", cfg.Logging.Level, err)
	}
	logger, err := logging.New(cfg.Logging.Development, level)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	return &runtime{cfg: cfg, logger: logger}, nil
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "attuario",
		Short: "Crawl and score actuarial content on a single site",
		Long: `attuario crawls a bounded portion of one web site, measures each page's
actuarial content and scores it for accuracy, transparency, completeness,
freshness and clarity. Results are written as CSV, JSON and XLSX reports.`,

		SilenceUsage: true,

		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := newRuntime()
			if err != nil {
				return err
			}
			cmd.SetContext(context.WithValue(cmd.Context(), runtimeKey, rt))
			return nil
		},

		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if rt, ok := cmd.Context().Value(runtimeKey).(*runtime); ok && rt != nil {
				_ = rt.logger.Sync()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is built-in defaults plus ATTUARIO_* env vars)")

	cmd.AddCommand(newCrawlCmd())
	cmd.AddCommand(newCalibrateCmd())

	return cmd
}

func resolveRuntime(ctx context.Context) (*runtime, error) {
	rt, ok := ctx.Value(runtimeKey).(*runtime)
	if !ok || rt == nil {
		return nil, errors.New("application services not initialized")
	}
	return rt, nil
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "attuario: %v\n", err)
		os.Exit(1)
	}
}
