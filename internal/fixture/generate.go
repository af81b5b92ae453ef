// SPDX-License-Identifier: Apache-2.0

package fixture

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/gemaraproj/docsync/internal/sandbox"
)

// DefaultScript simulates a modified-base BAM file and its reference with
// pynanalogue.
const DefaultScript = `import pynanalogue
with open({{quote .Config}}) as fh:
    json_config = fh.read()
pynanalogue.simulate_mod_bam(
    json_config=json_config,
    bam_path={{quote .File}},
    fasta_path={{quote .Companion}},
)
`

// ScriptGenerator renders a script template for each fixture and runs it
// through the sandbox executor. The simulation config is written next to
// the output as canonical JSON so the same config always yields the same
// script input.
type ScriptGenerator struct {
	Executor *sandbox.Executor
	Language string
	tmpl     *template.Template
}

// scriptData is what the script template sees. All paths are absolute.
type scriptData struct {
	Name      string
	Config    string
	File      string
	Companion string
}

// NewScriptGenerator parses script as a text/template. The template has a
// quote function that renders a string as a double-quoted literal.
func NewScriptGenerator(exec *sandbox.Executor, language, script string) (*ScriptGenerator, error) {
	if strings.TrimSpace(script) == "" {
		script = DefaultScript
	}
	tmpl, err := template.New("fixture").Funcs(template.FuncMap{"quote": quote}).Parse(script)
	if err != nil {
		return nil, fmt.Errorf("failed to parse fixture script: %w", err)
	}
	return &ScriptGenerator{Executor: exec, Language: language, tmpl: tmpl}, nil
}

func (g *ScriptGenerator) Generate(ctx context.Context, dir string, spec Spec) error {
	data := scriptData{
		Name:   spec.Name,
		Config: filepath.Join(dir, spec.Name+".simulation.json"),
		File:   filepath.Join(dir, spec.File),
	}
	if spec.Companion != "" {
		data.Companion = filepath.Join(dir, spec.Companion)
	}

	cfg, err := json.MarshalIndent(spec.Simulation, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode simulation config: %w", err)
	}
	if err := os.WriteFile(data.Config, cfg, 0o644); err != nil {
		return fmt.Errorf("failed to write simulation config: %w", err)
	}

	var script bytes.Buffer
	if err := g.tmpl.Execute(&script, data); err != nil {
		return fmt.Errorf("failed to render fixture script: %w", err)
	}

	res := g.Executor.Execute(ctx, g.Language, script.String())
	if !res.OK {
		return fmt.Errorf("fixture script failed (exit %d): %s", res.ExitCode, strings.TrimSpace(res.Stderr))
	}
	if _, err := os.Stat(data.File); err != nil {
		return fmt.Errorf("fixture script did not produce %s: %w", spec.File, err)
	}
	return nil
}

// quote renders s as a JSON string literal, which Python reads verbatim.
func quote(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}
