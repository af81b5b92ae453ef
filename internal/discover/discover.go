// SPDX-License-Identifier: Apache-2.0

// Package discover selects the documents a run processes.
package discover

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Find returns the files under root matching any include pattern and no
// exclude pattern. Patterns use doublestar syntax against slash-separated
// paths relative to root. The result is sorted and joined with root.
func Find(root string, include, exclude []string) ([]string, error) {
	for _, pattern := range exclude {
		if !doublestar.ValidatePattern(pattern) {
			return nil, fmt.Errorf("invalid exclude pattern %q", pattern)
		}
	}
	fsys := os.DirFS(root)
	seen := make(map[string]bool)
	var rels []string
	for _, pattern := range include {
		if !doublestar.ValidatePattern(pattern) {
			return nil, fmt.Errorf("invalid include pattern %q", pattern)
		}
		matches, err := doublestar.Glob(fsys, pattern, doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("failed to glob %q: %w", pattern, err)
		}
		for _, m := range matches {
			if seen[m] {
				continue
			}
			seen[m] = true
			if !matchAny(exclude, m) {
				rels = append(rels, m)
			}
		}
	}
	slices.Sort(rels)

	paths := make([]string, len(rels))
	for i, rel := range rels {
		paths[i] = filepath.Join(root, filepath.FromSlash(rel))
	}
	return paths, nil
}

func matchAny(patterns []string, name string) bool {
	for _, pattern := range patterns {
		if doublestar.MatchUnvalidated(pattern, name) {
			return true
		}
	}
	return false
}

// FilterIgnored drops paths git ignores in the repository at root. When git
// is not installed or root is not inside a work tree, paths are returned
// unchanged.
func FilterIgnored(ctx context.Context, root string, paths []string) ([]string, error) {
	if len(paths) == 0 {
		return paths, nil
	}
	git, err := exec.LookPath("git")
	if err != nil {
		return paths, nil
	}

	// git resolves relative input against -C, so send absolute paths.
	abs := make([]string, len(paths))
	var stdin bytes.Buffer
	for i, p := range paths {
		if abs[i], err = filepath.Abs(p); err != nil {
			return nil, err
		}
		stdin.WriteString(abs[i])
		stdin.WriteByte(0)
	}
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, git, "-C", root, "check-ignore", "--stdin", "-z")
	cmd.Stdin = &stdin
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return nil, fmt.Errorf("failed to run git check-ignore: %w", err)
		}
		// 1 means nothing is ignored; anything else means root is not a
		// work tree.
		return paths, nil
	}

	ignored := make(map[string]bool)
	for _, p := range strings.Split(stdout.String(), "\x00") {
		if p != "" {
			ignored[p] = true
		}
	}
	kept := make([]string, 0, len(paths))
	for i, p := range paths {
		if !ignored[abs[i]] {
			kept = append(kept, p)
		}
	}
	return kept, nil
}
