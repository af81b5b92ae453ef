// SPDX-License-Identifier: Apache-2.0

package sandbox_test

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gemaraproj/docsync/internal/sandbox"
)

func requireBash(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("bash"); err != nil {
		t.Skip("bash not available")
	}
}

func newExecutor(t *testing.T, opts ...sandbox.Option) (*sandbox.Sandbox, *sandbox.Executor) {
	t.Helper()
	sb, err := sandbox.New(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = sb.Close() })
	return sb, sandbox.NewExecutor(sb, sandbox.DefaultRuntimes(), opts...)
}

// ---------------------------------------------------------------------------
// Sandbox
// ---------------------------------------------------------------------------

func TestSandbox_Lifecycle(t *testing.T) {
	sb, err := sandbox.New(t.TempDir())
	require.NoError(t, err)

	assert.DirExists(t, sb.Home)
	assert.DirExists(t, sb.Work)
	assert.Equal(t, filepath.Join(sb.Root, "fixture.bam"), sb.Path("fixture.bam"))

	require.NoError(t, os.WriteFile(filepath.Join(sb.Work, "side-effect.txt"), []byte("x"), 0o644))
	require.NoError(t, sb.Close())
	assert.NoDirExists(t, sb.Root)
}

func TestSandbox_CloseNil(t *testing.T) {
	var sb *sandbox.Sandbox
	assert.NoError(t, sb.Close())
}

// ---------------------------------------------------------------------------
// Executor
// ---------------------------------------------------------------------------

func TestExecutor_RegisteredLanguages(t *testing.T) {
	_, e := newExecutor(t)
	assert.Equal(t, []string{"bash", "python"}, e.RegisteredLanguages())
	assert.True(t, e.Supports("bash"))
	assert.False(t, e.Supports("rust"))
}

func TestExecutor_Execute(t *testing.T) {
	requireBash(t)
	sb, e := newExecutor(t)

	tests := []struct {
		name       string
		command    string
		wantOK     bool
		wantExit   int
		wantStdout string
		wantStderr string
	}{
		{
			name:       "stdout is captured",
			command:    "echo hello",
			wantOK:     true,
			wantStdout: "hello\n",
		},
		{
			name:       "stderr is captured separately",
			command:    "echo oops >&2",
			wantOK:     true,
			wantStderr: "oops\n",
		},
		{
			name:     "non-zero exit fails",
			command:  "exit 3",
			wantExit: 3,
		},
		{
			name:     "errexit stops at first failing command",
			command:  "false\necho unreachable",
			wantExit: 1,
		},
		{
			name:       "home is overridden",
			command:    `printf '%s' "$HOME"`,
			wantOK:     true,
			wantStdout: sb.Home,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := e.Execute(context.Background(), "bash", tt.command)
			assert.Equal(t, tt.wantOK, res.OK, "stderr: %s", res.Stderr)
			if !tt.wantOK {
				assert.Equal(t, tt.wantExit, res.ExitCode)
			}
			if tt.wantStdout != "" {
				assert.Equal(t, tt.wantStdout, res.Stdout)
			}
			if tt.wantStderr != "" {
				assert.Equal(t, tt.wantStderr, res.Stderr)
			}
		})
	}
}

func TestSandbox_Scope(t *testing.T) {
	sb, err := sandbox.New(t.TempDir())
	require.NoError(t, err)

	a, err := sb.Scope("0")
	require.NoError(t, err)
	b, err := sb.Scope("1")
	require.NoError(t, err)

	assert.DirExists(t, a.Home)
	assert.DirExists(t, a.Work)
	assert.NotEqual(t, a.Work, b.Work)
	assert.NotEqual(t, a.Home, b.Home)
	assert.True(t, strings.HasPrefix(a.Root, sb.Root+string(filepath.Separator)))

	require.NoError(t, sb.Close())
	assert.NoDirExists(t, a.Root)
}

func TestExecutor_In(t *testing.T) {
	requireBash(t)
	sb, e := newExecutor(t)
	a, err := sb.Scope("a")
	require.NoError(t, err)
	b, err := sb.Scope("b")
	require.NoError(t, err)
	inA, inB := e.In(a), e.In(b)

	assert.Equal(t, a.Work, inA.Dir())
	assert.Equal(t, sb.Work, e.Dir(), "the original executor is unchanged")

	first := inA.Execute(context.Background(), "bash", "echo data > state.txt")
	require.True(t, first.OK, first.Stderr)

	second := inA.Execute(context.Background(), "bash", "cat state.txt")
	require.True(t, second.OK, second.Stderr)
	assert.Equal(t, "data\n", second.Stdout, "calls in one scope share the work directory")

	other := inB.Execute(context.Background(), "bash", "cat state.txt")
	assert.False(t, other.OK, "another scope must not see the file")
	assert.NoFileExists(t, filepath.Join(sb.Work, "state.txt"))

	home := inB.Execute(context.Background(), "bash", `printf '%s' "$HOME"`)
	require.True(t, home.OK, home.Stderr)
	assert.Equal(t, b.Home, home.Stdout)
}

func TestExecutor_InKeepsWorkDirOverride(t *testing.T) {
	dir := t.TempDir()
	sb, e := newExecutor(t, sandbox.WithWorkDir(dir))
	scope, err := sb.Scope("0")
	require.NoError(t, err)

	assert.Equal(t, dir, e.Dir())
	assert.Equal(t, dir, e.In(scope).Dir())
}

func TestExecutor_Timeout(t *testing.T) {
	requireBash(t)
	_, e := newExecutor(t, sandbox.WithTimeout(200*time.Millisecond))

	start := time.Now()
	res := e.Execute(context.Background(), "bash", "sleep 30 & sleep 30")
	assert.Less(t, time.Since(start), 10*time.Second, "process tree should be killed")
	assert.False(t, res.OK)
	assert.True(t, res.TimedOut)
	assert.Contains(t, res.Stderr, "timed out after 200ms")
}

func TestExecutor_LaunchFailures(t *testing.T) {
	sb, err := sandbox.New(t.TempDir())
	require.NoError(t, err)
	defer sb.Close()

	e := sandbox.NewExecutor(sb, []sandbox.Runtime{
		{Language: "bash", Argv: []string{"definitely-not-an-interpreter-7f3a"}},
		{Language: "empty"},
	})

	res := e.Execute(context.Background(), "bash", "echo hi")
	assert.False(t, res.OK)
	assert.Contains(t, res.Stderr, `runtime "bash" unavailable`)

	res = e.Execute(context.Background(), "empty", "echo hi")
	assert.False(t, res.OK)
	assert.Contains(t, res.Stderr, "has no command")

	res = e.Execute(context.Background(), "rust", "fn main() {}")
	assert.False(t, res.OK)
	assert.Contains(t, res.Stderr, "unsupported snippet language")
}

func TestExecutor_OutputCap(t *testing.T) {
	requireBash(t)
	_, e := newExecutor(t, sandbox.WithMaxOutput(16))

	res := e.Execute(context.Background(), "bash", "printf '%0100d' 0")
	require.True(t, res.OK, res.Stderr)
	assert.True(t, strings.HasPrefix(res.Stdout, strings.Repeat("0", 16)))
	assert.Contains(t, res.Stdout, "[stdout truncated: 84 bytes discarded]")
}

func TestExecutor_Canceled(t *testing.T) {
	requireBash(t)
	_, e := newExecutor(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res := e.Execute(ctx, "bash", "echo never")
	assert.False(t, res.OK)
	assert.False(t, res.TimedOut)
	assert.Contains(t, res.Stderr, "canceled")
}
