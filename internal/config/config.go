// SPDX-License-Identifier: Apache-2.0

// Package config loads docsync.yaml on top of the embedded defaults.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/goccy/go-yaml"

	"github.com/gemaraproj/docsync/internal/example"
	"github.com/gemaraproj/docsync/internal/fixture"
	"github.com/gemaraproj/docsync/internal/sandbox"
)

// DefaultFile is looked up in the working directory when no --config is
// given.
const DefaultFile = "docsync.yaml"

//go:embed defaults.yaml
var defaultsYAML []byte

// Config is the full run configuration.
type Config struct {
	Docs     Docs                `yaml:"docs"`
	Runtimes map[string][]string `yaml:"runtimes"`
	// Timeout is a Go duration string applied to each snippet.
	Timeout        string            `yaml:"timeout"`
	Jobs           int               `yaml:"jobs"`
	TruncateLines  int               `yaml:"truncate_lines"`
	MaxOutputBytes int64             `yaml:"max_output_bytes"`
	// WorkDir runs every document in one directory and limits jobs to 1.
	WorkDir        string            `yaml:"workdir"`
	Resolver       Resolver          `yaml:"resolver"`
	Skip           example.SkipRules `yaml:"skip"`
	Fixtures       Fixtures          `yaml:"fixtures"`
}

// Docs selects the documents processed when no paths are given.
type Docs struct {
	Include        []string `yaml:"include"`
	Exclude        []string `yaml:"exclude"`
	SkipGitignored bool     `yaml:"skip_gitignored"`
}

type Resolver struct {
	Coordinate       string   `yaml:"coordinate"`
	OutputFiles      []string `yaml:"output_files"`
	RedirectSuffixes []string `yaml:"redirect_suffixes"`
}

// Fixtures configures test data generation. An empty Script selects the
// built-in generator script.
type Fixtures struct {
	Language string         `yaml:"language"`
	Script   string         `yaml:"script"`
	Sets     []fixture.Spec `yaml:"sets"`
}

// Default returns the embedded defaults.
func Default() (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(defaultsYAML, &cfg); err != nil {
		return nil, fmt.Errorf("failed to decode embedded defaults: %w", err)
	}
	return &cfg, nil
}

// Load reads path over the defaults. Keys present in the file replace the
// default value for that key. An empty path returns the defaults, and so
// does a missing DefaultFile.
func Load(path string) (*Config, error) {
	cfg, err := Default()
	if err != nil {
		return nil, err
	}
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && path == DefaultFile {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err := Decode(data, cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Decode applies YAML data on top of cfg. Unknown keys are rejected.
func Decode(data []byte, cfg *Config) error {
	if err := yaml.UnmarshalWithOptions(data, cfg, yaml.DisallowUnknownField()); err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return nil
}

// TimeoutDuration parses Timeout.
func (c *Config) TimeoutDuration() (time.Duration, error) {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 0, fmt.Errorf("invalid timeout %q: %w", c.Timeout, err)
	}
	return d, nil
}

// RuntimeList returns the runtimes sorted by language.
func (c *Config) RuntimeList() []sandbox.Runtime {
	langs := make([]string, 0, len(c.Runtimes))
	for lang := range c.Runtimes {
		langs = append(langs, lang)
	}
	sort.Strings(langs)
	out := make([]sandbox.Runtime, 0, len(langs))
	for _, lang := range langs {
		out = append(out, sandbox.Runtime{Language: lang, Argv: c.Runtimes[lang]})
	}
	return out
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	if c.Jobs < 1 {
		errs = append(errs, fmt.Errorf("jobs must be at least 1, got %d", c.Jobs))
	}
	if d, err := c.TimeoutDuration(); err != nil {
		errs = append(errs, err)
	} else if d <= 0 {
		errs = append(errs, fmt.Errorf("timeout must be positive, got %s", d))
	}
	if c.TruncateLines < 0 {
		errs = append(errs, fmt.Errorf("truncate_lines must not be negative, got %d", c.TruncateLines))
	}
	if c.MaxOutputBytes < 0 {
		errs = append(errs, fmt.Errorf("max_output_bytes must not be negative, got %d", c.MaxOutputBytes))
	}
	if len(c.Runtimes) == 0 {
		errs = append(errs, errors.New("no runtimes configured"))
	}
	for _, rt := range c.RuntimeList() {
		if len(rt.Argv) == 0 || strings.TrimSpace(rt.Argv[0]) == "" {
			errs = append(errs, fmt.Errorf("runtime %q has an empty command", rt.Language))
		}
	}
	if len(c.Fixtures.Sets) > 0 {
		if _, ok := c.Runtimes[c.Fixtures.Language]; !ok {
			errs = append(errs, fmt.Errorf("fixture language %q has no runtime", c.Fixtures.Language))
		}
	}
	if err := fixture.CheckAliases(c.Fixtures.Sets); err != nil {
		errs = append(errs, err)
	}
	for _, spec := range c.Fixtures.Sets {
		if err := fixture.Validate(spec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
