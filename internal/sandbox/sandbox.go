// SPDX-License-Identifier: Apache-2.0

// Package sandbox runs documentation snippets as subprocesses under an
// isolated home and working directory.
package sandbox

import (
	"fmt"
	"os"
	"path/filepath"
)

// Sandbox is a temporary directory tree owned by a single run.
// It holds a home directory, a working directory and generated fixture data.
type Sandbox struct {
	Root string
	Home string
	Work string
}

// New creates a fresh sandbox below parent. An empty parent uses the
// system temporary directory.
func New(parent string) (*Sandbox, error) {
	root, err := os.MkdirTemp(parent, "docsync-")
	if err != nil {
		return nil, fmt.Errorf("failed to create sandbox: %w", err)
	}
	sb := &Sandbox{
		Root: root,
		Home: filepath.Join(root, "home"),
		Work: filepath.Join(root, "work"),
	}
	for _, dir := range []string{sb.Home, sb.Work} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			_ = os.RemoveAll(root)
			return nil, fmt.Errorf("failed to create sandbox directory %s: %w", dir, err)
		}
	}
	return sb, nil
}

// Scope creates a sandbox nested under s/scopes/name with its own home and
// working directory. Closing s removes every scope.
func (s *Sandbox) Scope(name string) (*Sandbox, error) {
	root := filepath.Join(s.Root, "scopes", name)
	scope := &Sandbox{
		Root: root,
		Home: filepath.Join(root, "home"),
		Work: filepath.Join(root, "work"),
	}
	for _, dir := range []string{scope.Home, scope.Work} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create sandbox directory %s: %w", dir, err)
		}
	}
	return scope, nil
}

// Path returns name joined onto the sandbox root.
func (s *Sandbox) Path(name string) string {
	return filepath.Join(s.Root, name)
}

// Close removes the sandbox and everything snippets wrote into it.
func (s *Sandbox) Close() error {
	if s == nil || s.Root == "" {
		return nil
	}
	return os.RemoveAll(s.Root)
}
