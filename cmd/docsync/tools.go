// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gemaraproj/docsync/internal/clidoc"
	"github.com/gemaraproj/docsync/internal/tool"
)

var (
	cliBinary string
	cliOutput string
)

var cliDocsCmd = &cobra.Command{
	Use:   "cli-docs",
	Short: "Generate a markdown reference from a program's --help output",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		src := clidoc.ExecSource{Binary: cliBinary, Timeout: clidoc.DefaultTimeout}
		doc, err := clidoc.Generate(cmd.Context(), src, cliBinary)
		if err != nil {
			return err
		}
		if cliOutput == "-" {
			_, err := fmt.Fprint(os.Stdout, doc)
			return err
		}
		if err := os.MkdirAll(filepath.Dir(cliOutput), 0o755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
		if err := os.WriteFile(cliOutput, []byte(doc), 0o644); err != nil {
			return fmt.Errorf("failed to write CLI reference: %w", err)
		}
		logger.Info("CLI reference written", zap.String("path", cliOutput))
		return nil
	},
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the document inspection tool over MCP on stdio",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var languages []string
		for _, rt := range cfg.RuntimeList() {
			languages = append(languages, rt.Language)
		}
		inspector := tool.NewInspector(cfg.TruncateLines, cfg.Skip, languages)
		return tool.ServeStdio(cmd.Context(), tool.NewServer(version, inspector))
	},
}
