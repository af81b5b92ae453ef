// SPDX-License-Identifier: Apache-2.0

// Package orchestrator runs the documentation examples of a set of
// documents in one sandbox and, in render mode, writes their output back.
package orchestrator

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/gemaraproj/docsync/internal/example"
	"github.com/gemaraproj/docsync/internal/fixture"
	"github.com/gemaraproj/docsync/internal/sandbox"
)

// Mode selects whether documents are rewritten.
type Mode int

const (
	Render Mode = iota
	Verify
)

func (m Mode) String() string {
	if m == Verify {
		return "verify"
	}
	return "render"
}

// Options configures a run.
type Options struct {
	Mode   Mode
	DryRun bool
	// Jobs bounds how many documents are processed at once.
	Jobs          int
	TruncateLines int

	Runtimes       []sandbox.Runtime
	Timeout        time.Duration
	MaxOutputBytes int64
	// WorkDir overrides the per-document work directory as the snippet
	// cwd. Documents then share it, so setting it limits Jobs to 1.
	WorkDir string
	// SandboxParent is where the sandbox directory is created; empty means
	// the system temp dir.
	SandboxParent string

	// Resolve.OutputDir defaults to the work directory of each document.
	// Resolve.RedirectSuffixes only apply in render mode.
	Resolve example.ResolveOptions
	Skip    example.SkipRules

	Fixtures        []fixture.Spec
	FixtureLanguage string
	FixtureScript   string
	// Generator replaces the script generator.
	Generator fixture.Generator
}

// Orchestrator runs documents through extraction, execution and rendering.
type Orchestrator struct {
	opts   Options
	logger *zap.Logger
}

// New returns an Orchestrator. A nil logger discards logs.
func New(opts Options, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Jobs < 1 {
		opts.Jobs = 1
	}
	if opts.WorkDir != "" && opts.Jobs > 1 {
		logger.Warn("work directory override runs documents one at a time",
			zap.String("dir", opts.WorkDir), zap.Int("jobs", opts.Jobs))
		opts.Jobs = 1
	}
	if opts.Runtimes == nil {
		opts.Runtimes = sandbox.DefaultRuntimes()
	}
	return &Orchestrator{opts: opts, logger: logger}
}

// run holds what every document of one invocation shares. Each document
// gets its own sandbox scope, so only the fixtures are shared on disk.
type run struct {
	sandbox    *sandbox.Sandbox
	exec       *sandbox.Executor
	locator    *example.Locator
	classifier *example.Classifier
	fixtures   *fixture.Set
	resolve    example.ResolveOptions
	logger     *zap.Logger
}

// Run processes paths and returns the report. The error is non-nil only
// when the sandbox or fixtures could not be set up; document and snippet
// failures are recorded in the report.
func (o *Orchestrator) Run(ctx context.Context, paths []string) (*Report, error) {
	report := &Report{
		RunID:   uuid.New().String(),
		Mode:    o.opts.Mode,
		DryRun:  o.opts.DryRun,
		Started: time.Now(),
	}
	logger := o.logger.With(zap.String("run", report.RunID), zap.Stringer("mode", o.opts.Mode))

	sb, err := sandbox.New(o.opts.SandboxParent)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := sb.Close(); err != nil {
			logger.Warn("failed to remove sandbox", zap.String("dir", sb.Root), zap.Error(err))
		}
	}()
	logger.Debug("sandbox created", zap.String("dir", sb.Root))

	exec := sandbox.NewExecutor(sb, o.opts.Runtimes,
		sandbox.WithLogger(logger.Named("sandbox")),
		sandbox.WithWorkDir(o.opts.WorkDir),
		sandbox.WithTimeout(o.opts.Timeout),
		sandbox.WithMaxOutput(o.opts.MaxOutputBytes),
	)

	fixtures, err := o.buildFixtures(ctx, exec)
	if err != nil {
		return nil, err
	}

	resolveOpts := o.opts.Resolve
	if o.opts.Mode != Render {
		resolveOpts.RedirectSuffixes = nil
	}

	r := &run{
		sandbox:    sb,
		exec:       exec,
		locator:    example.NewLocator(example.Markers(o.opts.TruncateLines)),
		classifier: example.NewClassifier(o.opts.Skip),
		fixtures:   fixtures,
		resolve:    resolveOpts,
		logger:     logger,
	}

	report.Documents = make([]DocumentReport, len(paths))
	var g errgroup.Group
	g.SetLimit(o.opts.Jobs)
	for i, path := range paths {
		g.Go(func() error {
			report.Documents[i] = o.processDocument(ctx, r, i, path)
			return nil
		})
	}
	_ = g.Wait()

	report.Duration = time.Since(report.Started)
	return report, nil
}

func (o *Orchestrator) buildFixtures(ctx context.Context, exec *sandbox.Executor) (*fixture.Set, error) {
	sb := exec.Sandbox()
	if len(o.opts.Fixtures) == 0 {
		return fixture.NewSet(sb.Root, nil), nil
	}
	gen := o.opts.Generator
	if gen == nil {
		sg, err := fixture.NewScriptGenerator(exec, o.opts.FixtureLanguage, o.opts.FixtureScript)
		if err != nil {
			return nil, err
		}
		gen = sg
	}
	start := time.Now()
	set, err := fixture.Build(ctx, sb.Root, o.opts.Fixtures, gen)
	if err != nil {
		return nil, fmt.Errorf("failed to build fixtures: %w", err)
	}
	o.logger.Debug("fixtures ready",
		zap.Strings("aliases", set.Aliases()),
		zap.Duration("elapsed", time.Since(start)))
	return set, nil
}

// processDocument runs one document strictly in order, inside the sandbox
// scope named after its index.
func (o *Orchestrator) processDocument(ctx context.Context, r *run, index int, path string) DocumentReport {
	dr := DocumentReport{Path: path}
	logger := r.logger.With(zap.String("doc", path))

	info, err := os.Stat(path)
	if err != nil {
		dr.Errors = append(dr.Errors, fmt.Errorf("failed to stat document: %w", err))
		return dr
	}
	data, err := os.ReadFile(path)
	if err != nil {
		dr.Errors = append(dr.Errors, fmt.Errorf("failed to read document: %w", err))
		return dr
	}
	doc := &example.Document{Path: path, Content: string(data)}

	analysis, errs := r.locator.Analyze(doc, r.exec.Supports)
	if len(errs) > 0 {
		for _, err := range errs {
			logger.Error("document is malformed", zap.Error(err))
		}
		dr.Errors = errs
		return dr
	}

	scope, err := r.sandbox.Scope(strconv.Itoa(index))
	if err != nil {
		dr.Errors = append(dr.Errors, err)
		return dr
	}
	exec := r.exec.In(scope)
	resolveOpts := r.resolve
	if resolveOpts.OutputDir == "" {
		resolveOpts.OutputDir = scope.Work
	}
	resolver := example.NewResolver(r.fixtures, resolveOpts)
	logger.Debug("document scope ready", zap.String("dir", exec.Dir()))

	results := make(map[int]sandbox.Result)
	for i, s := range analysis.Snippets {
		if !r.exec.Supports(s.Language) || analysis.Regions.InsideOutput(s.Offset) {
			continue
		}
		sr := SnippetReport{Location: s.String(), Line: s.Line, Language: s.Language, Section: s.Section}

		if d := r.classifier.Classify(s); d.Skip {
			sr.Status, sr.Reason = StatusSkipped, d.Reason
			logger.Debug("snippet skipped", zap.Int("line", s.Line), zap.String("reason", d.Reason))
			dr.Snippets = append(dr.Snippets, sr)
			continue
		}

		if unresolved := resolver.Unresolved(s); len(unresolved) > 0 {
			logger.Warn("possible unresolved placeholders",
				zap.Int("line", s.Line), zap.Strings("tokens", unresolved))
		}
		command := resolver.Resolve(s, analysis.Regions.ActiveAt(s.Offset))
		logger.Debug("running snippet", zap.Int("line", s.Line), zap.String("command", command))

		res := exec.Execute(ctx, s.Language, command)
		results[i] = res
		sr.Result = res
		sr.Status = StatusPassed
		if !res.OK {
			sr.Status = StatusFailed
			logger.Warn("snippet failed",
				zap.Int("line", s.Line),
				zap.Int("exit_code", res.ExitCode),
				zap.Bool("timed_out", res.TimedOut))
		}
		dr.Snippets = append(dr.Snippets, sr)
	}

	if o.opts.Mode != Render {
		return dr
	}
	if dr.failedSnippets() > 0 {
		logger.Info("document left unchanged after failures")
		return dr
	}

	var reps []example.Replacement
	for _, b := range analysis.Bindings {
		res, ok := results[b.Snippet]
		if !ok {
			logger.Warn("output region left unchanged: its snippet was skipped",
				zap.Int("line", b.Region.Line),
				zap.Int("snippet_line", analysis.Snippets[b.Snippet].Line))
			continue
		}
		display := example.DisplayText(res, b.Region.Marker.Limit)
		reps = append(reps, example.Replacement{
			Start: b.Region.Start,
			End:   b.Region.End,
			Text:  example.RenderRegion(b.Region, display),
		})
	}
	rendered, err := example.Rewrite(doc.Content, reps)
	if err != nil {
		dr.Errors = append(dr.Errors, err)
		return dr
	}
	if rendered == doc.Content {
		return dr
	}
	dr.Changed = true
	if o.opts.DryRun {
		logger.Info("document would change")
		return dr
	}
	if err := os.WriteFile(path, []byte(rendered), info.Mode().Perm()); err != nil {
		dr.Errors = append(dr.Errors, fmt.Errorf("failed to write document: %w", err))
		return dr
	}
	dr.Written = true
	logger.Info("document updated", zap.Int("regions", len(reps)))
	return dr
}
