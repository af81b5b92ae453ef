// SPDX-License-Identifier: Apache-2.0

// Command docsync runs the code examples in markdown documentation and
// keeps their recorded output current.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gemaraproj/docsync/internal/config"
	"github.com/gemaraproj/docsync/internal/logging"
)

var version = "dev"

var (
	// Global flags
	configPath string
	verbose    bool
	jobs       int
	timeout    time.Duration
	root       string

	logger *zap.Logger
	cfg    *config.Config
)

// errFailed reports a completed run with failures; the summary has
// already been printed.
var errFailed = errors.New("run failed")

var rootCmd = &cobra.Command{
	Use:   "docsync",
	Short: "Run documentation examples and keep their output in sync",
	Long: `docsync extracts bash and python code blocks from markdown documents, runs
them in a throwaway sandbox against generated test data, and writes their
output into the AUTO-GENERATED regions that follow them.

Use "render" to update documents and "verify" to check them without writing.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		logger, err = logging.New(verbose)
		if err != nil {
			return err
		}

		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("jobs") {
			cfg.Jobs = jobs
		}
		if cmd.Flags().Changed("timeout") {
			cfg.Timeout = timeout.String()
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultFile, "configuration file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().IntVarP(&jobs, "jobs", "j", 0, "documents processed in parallel (overrides config)")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 0, "per-snippet timeout (overrides config)")
	rootCmd.PersistentFlags().StringVar(&root, "root", ".", "directory searched for documents when none are given")

	renderCmd.Flags().BoolVar(&dryRun, "dry-run", false, "report changes without writing")
	cliDocsCmd.Flags().StringVar(&cliBinary, "binary", "nanalogue", "program whose --help is documented")
	cliDocsCmd.Flags().StringVarP(&cliOutput, "output", "o", "src/all_cli_commands.md", "markdown file to write, - for stdout")

	rootCmd.AddCommand(renderCmd, verifyCmd, watchCmd, cliDocsCmd, mcpCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if !errors.Is(err, errFailed) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		stop()
		os.Exit(1)
	}
}
