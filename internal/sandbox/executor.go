// SPDX-License-Identifier: Apache-2.0

package sandbox

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultTimeout        = 60 * time.Second
	DefaultMaxOutputBytes = 1 << 20

	// waitDelay bounds how long Wait blocks on inherited pipes after the
	// process group has been killed.
	waitDelay = 2 * time.Second
)

// Runtime is an interpreter a snippet can be executed under. The prepared
// command string is appended as the final argument.
type Runtime struct {
	Language string
	Argv     []string
}

// DefaultRuntimes returns the bash and python runtimes.
func DefaultRuntimes() []Runtime {
	return []Runtime{
		{Language: "bash", Argv: []string{"bash", "-e", "-c"}},
		{Language: "python", Argv: []string{"python3", "-c"}},
	}
}

// Result is the outcome of one snippet execution.
type Result struct {
	OK       bool
	ExitCode int
	Stdout   string
	Stderr   string
	TimedOut bool
	Duration time.Duration
}

// Option configures an Executor.
type Option func(*Executor)

// WithTimeout sets the wall-clock limit per execution.
func WithTimeout(d time.Duration) Option {
	return func(e *Executor) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// WithWorkDir runs snippets in dir instead of the sandbox work directory.
// The override survives In.
func WithWorkDir(dir string) Option {
	return func(e *Executor) {
		e.workDir = dir
	}
}

// WithMaxOutput caps captured stdout and stderr, each.
func WithMaxOutput(n int64) Option {
	return func(e *Executor) {
		if n > 0 {
			e.maxOutput = n
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Executor) {
		if l != nil {
			e.log = l
		}
	}
}

// Executor runs prepared commands inside a Sandbox. It holds no per-call
// state and is safe for concurrent use.
type Executor struct {
	sandbox   *Sandbox
	runtimes  []Runtime
	timeout   time.Duration
	workDir   string
	maxOutput int64
	log       *zap.Logger
}

// NewExecutor creates an Executor over sb. Runtimes are matched by
// language tag in registration order.
func NewExecutor(sb *Sandbox, runtimes []Runtime, opts ...Option) *Executor {
	e := &Executor{
		sandbox:   sb,
		runtimes:  runtimes,
		timeout:   DefaultTimeout,
		maxOutput: DefaultMaxOutputBytes,
		log:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Sandbox returns the sandbox the executor runs in.
func (e *Executor) Sandbox() *Sandbox {
	return e.sandbox
}

// In returns a copy of e that runs in scope. Runtimes, limits and the
// logger are shared.
func (e *Executor) In(scope *Sandbox) *Executor {
	c := *e
	c.sandbox = scope
	return &c
}

// Dir returns the working directory snippets run in.
func (e *Executor) Dir() string {
	if e.workDir != "" {
		return e.workDir
	}
	return e.sandbox.Work
}

// Timeout returns the per-execution limit.
func (e *Executor) Timeout() time.Duration {
	return e.timeout
}

// Supports reports whether a runtime is registered for language.
func (e *Executor) Supports(language string) bool {
	_, err := e.selectRuntime(language)
	return err == nil
}

// RegisteredLanguages returns the language tags of all runtimes, sorted.
func (e *Executor) RegisteredLanguages() []string {
	names := make([]string, len(e.runtimes))
	for i, rt := range e.runtimes {
		names[i] = rt.Language
	}
	sort.Strings(names)
	return names
}

// selectRuntime returns the first registered runtime for language.
func (e *Executor) selectRuntime(language string) (Runtime, error) {
	for _, rt := range e.runtimes {
		if rt.Language == language {
			return rt, nil
		}
	}
	return Runtime{}, fmt.Errorf("unsupported snippet language %q", language)
}

// Execute runs command under the runtime registered for language. Launch
// failures and timeouts are reported through the Result, never as errors.
func (e *Executor) Execute(ctx context.Context, language, command string) Result {
	rt, err := e.selectRuntime(language)
	if err != nil {
		return Result{ExitCode: -1, Stderr: err.Error()}
	}
	if len(rt.Argv) == 0 {
		return Result{ExitCode: -1, Stderr: fmt.Sprintf("runtime %q has no command", language)}
	}
	bin, err := exec.LookPath(rt.Argv[0])
	if err != nil {
		return Result{ExitCode: -1, Stderr: fmt.Sprintf("runtime %q unavailable: %v", language, err)}
	}

	execCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	args := append(append([]string{}, rt.Argv[1:]...), command)
	cmd := exec.CommandContext(execCtx, bin, args...)
	cmd.Dir = e.Dir()
	cmd.Env = homeEnv(os.Environ(), e.sandbox.Home)
	setupProcessGroup(cmd)
	cmd.Cancel = func() error { return killProcessGroup(cmd) }
	cmd.WaitDelay = waitDelay

	var stdoutBuf, stderrBuf bytes.Buffer
	stdout := &limitedWriter{w: &stdoutBuf, max: e.maxOutput}
	stderr := &limitedWriter{w: &stderrBuf, max: e.maxOutput}
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	e.log.Debug("executing snippet", zap.String("language", language), zap.String("dir", cmd.Dir))

	start := time.Now()
	runErr := cmd.Run()
	res := Result{
		ExitCode: -1,
		Duration: time.Since(start),
		Stdout:   stdoutBuf.String(),
		Stderr:   stderrBuf.String(),
	}
	if stdout.truncated {
		res.Stdout += fmt.Sprintf("\n[stdout truncated: %d bytes discarded]", stdout.discarded)
	}
	if stderr.truncated {
		res.Stderr += fmt.Sprintf("\n[stderr truncated: %d bytes discarded]", stderr.discarded)
	}

	switch {
	case errors.Is(execCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil:
		res.TimedOut = true
		res.Stderr = fmt.Sprintf("command timed out after %s", e.timeout)
		e.log.Warn("snippet timed out", zap.String("language", language), zap.Duration("timeout", e.timeout))
	case ctx.Err() != nil:
		res.Stderr = fmt.Sprintf("command canceled: %v", ctx.Err())
	case runErr == nil:
		res.OK = true
		res.ExitCode = 0
	default:
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
		} else if res.Stderr == "" {
			res.Stderr = runErr.Error()
		} else {
			res.Stderr += "\n" + runErr.Error()
		}
	}

	e.log.Debug("snippet finished",
		zap.Bool("ok", res.OK),
		zap.Int("exit_code", res.ExitCode),
		zap.Duration("duration", res.Duration))
	return res
}

// homeEnv returns env with the home variable pointed at home. Nothing else
// is changed.
func homeEnv(env []string, home string) []string {
	prefix := homeVar + "="
	out := make([]string, 0, len(env)+1)
	for _, kv := range env {
		if strings.HasPrefix(kv, prefix) {
			continue
		}
		out = append(out, kv)
	}
	return append(out, prefix+home)
}

// limitedWriter is an io.Writer that keeps at most max bytes and silently
// discards the rest.
type limitedWriter struct {
	w         io.Writer
	max       int64
	written   int64
	truncated bool
	discarded int64
}

func (lw *limitedWriter) Write(p []byte) (int, error) {
	n := len(p)
	if lw.written >= lw.max {
		lw.truncated = true
		lw.discarded += int64(n)
		return n, nil
	}
	remaining := lw.max - lw.written
	if int64(n) > remaining {
		lw.truncated = true
		lw.discarded += int64(n) - remaining
		written, err := lw.w.Write(p[:remaining])
		lw.written += int64(written)
		return n, err
	}
	written, err := lw.w.Write(p)
	lw.written += int64(written)
	return written, err
}
