// SPDX-License-Identifier: Apache-2.0

// Package fixture builds the shared sample data that documentation snippets
// run against, and the alias table that points placeholder names at it.
package fixture

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
)

// Spec describes one generated fixture file.
type Spec struct {
	Name string `yaml:"name"`
	// File is the generated file name, relative to the sandbox root.
	File string `yaml:"file"`
	// Companion is an optional second output of the generator (a reference
	// sequence, an index) written next to File.
	Companion string `yaml:"companion"`
	// Aliases are the placeholder names documents use for File.
	Aliases    []string       `yaml:"aliases"`
	Simulation map[string]any `yaml:"simulation"`
}

// Generator produces the files for a Spec inside dir.
type Generator interface {
	Generate(ctx context.Context, dir string, spec Spec) error
}

// Set maps placeholder aliases to concrete sandbox paths. It is read-only
// once Build returns.
type Set struct {
	dir   string
	paths map[string]string
}

// NewSet builds a Set directly from an alias table.
func NewSet(dir string, paths map[string]string) *Set {
	cp := make(map[string]string, len(paths))
	for k, v := range paths {
		cp[k] = v
	}
	return &Set{dir: dir, paths: cp}
}

// Build validates every spec, runs gen for each one in order and returns
// the resulting alias table.
func Build(ctx context.Context, dir string, specs []Spec, gen Generator) (*Set, error) {
	if err := CheckAliases(specs); err != nil {
		return nil, err
	}
	set := &Set{dir: dir, paths: make(map[string]string)}
	for _, spec := range specs {
		if err := Validate(spec); err != nil {
			return nil, err
		}
		if err := gen.Generate(ctx, dir, spec); err != nil {
			return nil, fmt.Errorf("failed to generate fixture %q: %w", spec.Name, err)
		}
		path := filepath.Join(dir, spec.File)
		for _, alias := range spec.Aliases {
			set.paths[alias] = path
		}
	}
	return set, nil
}

// CheckAliases rejects specs whose aliases or file names collide.
func CheckAliases(specs []Spec) error {
	owner := make(map[string]string)
	files := make(map[string]string)
	for _, spec := range specs {
		if spec.Name == "" {
			return fmt.Errorf("fixture with file %q has no name", spec.File)
		}
		if spec.File == "" {
			return fmt.Errorf("fixture %q has no file", spec.Name)
		}
		if prev, ok := files[spec.File]; ok {
			return fmt.Errorf("fixtures %q and %q both write %q", prev, spec.Name, spec.File)
		}
		files[spec.File] = spec.Name
		for _, alias := range spec.Aliases {
			if strings.TrimSpace(alias) == "" {
				return fmt.Errorf("fixture %q has an empty alias", spec.Name)
			}
			if prev, ok := owner[alias]; ok {
				return fmt.Errorf("alias %q is claimed by fixtures %q and %q", alias, prev, spec.Name)
			}
			owner[alias] = spec.Name
		}
	}
	return nil
}

// Dir returns the directory fixtures were generated into.
func (s *Set) Dir() string {
	return s.dir
}

// Path returns the concrete path for alias.
func (s *Set) Path(alias string) (string, bool) {
	if s == nil {
		return "", false
	}
	p, ok := s.paths[alias]
	return p, ok
}

// Aliases returns every alias, longest first and then lexically, which is
// the order replacements must be attempted in.
func (s *Set) Aliases() []string {
	if s == nil {
		return nil
	}
	aliases := make([]string, 0, len(s.paths))
	for a := range s.paths {
		aliases = append(aliases, a)
	}
	sort.Slice(aliases, func(i, j int) bool {
		if len(aliases[i]) != len(aliases[j]) {
			return len(aliases[i]) > len(aliases[j])
		}
		return aliases[i] < aliases[j]
	})
	return aliases
}

// Extensions returns the distinct file extensions used by aliases.
func (s *Set) Extensions() []string {
	seen := make(map[string]bool)
	var exts []string
	for _, a := range s.Aliases() {
		ext := filepath.Ext(a)
		if ext == "" || seen[ext] {
			continue
		}
		seen[ext] = true
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}
