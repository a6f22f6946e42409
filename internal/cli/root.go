// Package cli implements the armanet command line.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/born-ml/armanet/internal/backend/cpu"
	"github.com/born-ml/armanet/internal/logger"
	"github.com/born-ml/armanet/internal/parallel"
)

// Build information, set with -ldflags "-X".
var (
	Version = "dev"
	Commit  = "none"
)

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

type rootOptions struct {
	debug  bool
	logDir string
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}
	var cleanup func() error

	cmd := &cobra.Command{
		Use:           "armanet",
		Short:         "ResNet classifiers with ARMA2D layers",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			c, err := logger.Setup(logger.Config{Dir: opts.logDir, Debug: opts.debug})
			if err != nil {
				return fmt.Errorf("logger: %w", err)
			}
			cleanup = c
			return nil
		},
		PersistentPostRunE: func(_ *cobra.Command, _ []string) error {
			if cleanup == nil {
				return nil
			}
			return cleanup()
		},
	}

	cmd.PersistentFlags().BoolVar(&opts.debug, "debug", false, "enable debug logging")
	cmd.PersistentFlags().StringVar(&opts.logDir, "log-dir", "", "log directory (default .armanet/logs)")

	cmd.AddCommand(
		newSummaryCmd(),
		newTrainCmd(),
		newEvalCmd(),
		newInfoCmd(),
	)
	return cmd
}

// newBackend returns a CPU backend limited to workers goroutines, or every
// core when workers is 0.
func newBackend(workers int) *cpu.CPUBackend {
	if workers <= 0 {
		return cpu.New()
	}
	cfg := parallel.PlaneConfig()
	cfg.NumWorkers = workers
	cfg.Enabled = workers > 1
	return cpu.NewWithConfig(cfg)
}
