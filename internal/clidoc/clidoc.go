// SPDX-License-Identifier: Apache-2.0

// Package clidoc builds a markdown reference from a program's --help
// output.
package clidoc

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"regexp"
	"strings"
	"time"
)

// DefaultTimeout bounds each help invocation.
const DefaultTimeout = 30 * time.Second

// HelpSource returns the help text of binary with the given arguments
// prepended to --help.
type HelpSource interface {
	Help(ctx context.Context, args ...string) (string, error)
}

// ExecSource runs the binary.
type ExecSource struct {
	Binary  string
	Timeout time.Duration
}

// Help returns stdout on success and stderr when the command exits
// non-zero. Launch failures and timeouts are errors.
func (s ExecSource) Help(ctx context.Context, args ...string) (string, error) {
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	argv := append(append([]string(nil), args...), "--help")
	cmd := exec.CommandContext(ctx, s.Binary, argv...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = time.Second

	err := cmd.Run()
	if ctx.Err() == context.DeadlineExceeded {
		return "", fmt.Errorf("%s %s timed out after %s", s.Binary, strings.Join(argv, " "), timeout)
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return stderr.String(), nil
		}
		return "", fmt.Errorf("failed to run %s: %w", s.Binary, err)
	}
	return stdout.String(), nil
}

var (
	sectionHeader = regexp.MustCompile(`(?i)^commands?:`)
	otherSection  = regexp.MustCompile(`^[A-Z][a-z]+:`)
	commandLine   = regexp.MustCompile(`^\s+([a-z][a-z0-9_-]*)\s+`)
)

// ParseSubcommands lists the names in the "Commands:" section of help.
func ParseSubcommands(help string) []string {
	var (
		names []string
		in    bool
	)
	for _, line := range strings.Split(help, "\n") {
		line = strings.TrimRight(line, "\r")
		if !in {
			in = sectionHeader.MatchString(line)
			continue
		}
		if otherSection.MatchString(line) {
			break
		}
		if m := commandLine.FindStringSubmatch(line); m != nil {
			names = append(names, m[1])
		}
	}
	return names
}

// Section is the help text of one subcommand.
type Section struct {
	Name string
	Help string
}

// Format renders the reference document.
func Format(binary, mainHelp string, sections []Section) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s CLI Commands Reference\n\n", binary)
	b.WriteString("> **Note**: This file is auto-generated. Do not edit manually.\n\n")
	b.WriteString("## Main Command\n\n")
	writeBlock(&b, mainHelp)
	if len(sections) > 0 {
		b.WriteString("\n# Subcommands\n")
		for _, s := range sections {
			fmt.Fprintf(&b, "\n## `%s`\n\n", s.Name)
			writeBlock(&b, s.Help)
		}
	}
	return b.String()
}

func writeBlock(b *strings.Builder, text string) {
	b.WriteString("```\n")
	b.WriteString(strings.TrimSpace(text))
	b.WriteString("\n```\n")
}

// Generate collects the main and subcommand help of binary from src.
func Generate(ctx context.Context, src HelpSource, binary string) (string, error) {
	mainHelp, err := src.Help(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to get main help: %w", err)
	}
	var sections []Section
	for _, name := range ParseSubcommands(mainHelp) {
		help, err := src.Help(ctx, name)
		if err != nil {
			help = "Error: " + err.Error()
		}
		sections = append(sections, Section{Name: name, Help: help})
	}
	return Format(binary, mainHelp, sections), nil
}
