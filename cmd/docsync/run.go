// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gemaraproj/docsync/internal/discover"
	"github.com/gemaraproj/docsync/internal/example"
	"github.com/gemaraproj/docsync/internal/orchestrator"
	"github.com/gemaraproj/docsync/internal/watch"
)

var dryRun bool

var renderCmd = &cobra.Command{
	Use:   "render [documents...]",
	Short: "Run examples and rewrite their output regions",
	Long: `Runs every example of the given documents (or of all documents matched by the
configured globs) and replaces the content of each AUTO-GENERATED region with
the output of the code block before it. A document is only rewritten when all
of its examples succeed and its content changes.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runOnce(cmd.Context(), orchestrator.Render, args)
	},
}

var verifyCmd = &cobra.Command{
	Use:   "verify [documents...]",
	Short: "Run examples without writing",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runOnce(cmd.Context(), orchestrator.Verify, args)
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch [documents...]",
	Short: "Render documents again whenever they change",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		paths, err := documents(ctx, args)
		if err != nil {
			return err
		}
		orch := orchestrator.New(options(orchestrator.Render), logger.Named("orchestrator"))
		w, err := watch.New(paths, func(ctx context.Context, changed []string) error {
			report, err := orch.Run(ctx, changed)
			if err != nil {
				return err
			}
			report.Print(os.Stdout)
			return nil
		}, watch.WithLogger(logger.Named("watch")))
		if err != nil {
			return err
		}
		logger.Info("watching documents", zap.Int("count", len(paths)))
		return w.Run(ctx)
	},
}

func runOnce(ctx context.Context, mode orchestrator.Mode, args []string) error {
	paths, err := documents(ctx, args)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		logger.Warn("no documents found", zap.String("root", root))
	}

	report, err := orchestrator.New(options(mode), logger.Named("orchestrator")).Run(ctx, paths)
	if err != nil {
		return err
	}
	report.Print(os.Stdout)
	if !report.OK() {
		return errFailed
	}
	return nil
}

// documents returns args when given, otherwise the configured document set
// under root.
func documents(ctx context.Context, args []string) ([]string, error) {
	if len(args) > 0 {
		return args, nil
	}
	paths, err := discover.Find(root, cfg.Docs.Include, cfg.Docs.Exclude)
	if err != nil {
		return nil, err
	}
	if cfg.Docs.SkipGitignored {
		paths, err = discover.FilterIgnored(ctx, root, paths)
		if err != nil {
			return nil, fmt.Errorf("failed to filter ignored documents: %w", err)
		}
	}
	logger.Debug("documents discovered", zap.Strings("paths", paths))
	return paths, nil
}

func options(mode orchestrator.Mode) orchestrator.Options {
	// Validate has already accepted the timeout.
	d, _ := cfg.TimeoutDuration()
	return orchestrator.Options{
		Mode:           mode,
		DryRun:         dryRun,
		Jobs:           cfg.Jobs,
		TruncateLines:  cfg.TruncateLines,
		Runtimes:       cfg.RuntimeList(),
		Timeout:        d,
		MaxOutputBytes: cfg.MaxOutputBytes,
		WorkDir:        cfg.WorkDir,
		Resolve: example.ResolveOptions{
			OutputFiles:      cfg.Resolver.OutputFiles,
			Coordinate:       cfg.Resolver.Coordinate,
			RedirectSuffixes: cfg.Resolver.RedirectSuffixes,
		},
		Skip:            cfg.Skip,
		Fixtures:        cfg.Fixtures.Sets,
		FixtureLanguage: cfg.Fixtures.Language,
		FixtureScript:   cfg.Fixtures.Script,
	}
}
