// SPDX-License-Identifier: Apache-2.0

// Package tool exposes document inspection as an MCP tool.
package tool

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// NewServer returns an MCP server with the docsync tools registered.
func NewServer(version string, inspector *Inspector) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{Name: "docsync", Version: version}, nil)
	mcp.AddTool(server, MetadataInspectDocumentExamples, inspector.InspectDocumentExamples)
	return server
}

// ServeStdio runs server over stdin and stdout until the client
// disconnects or ctx is done.
func ServeStdio(ctx context.Context, server *mcp.Server) error {
	return server.Run(ctx, &mcp.StdioTransport{})
}
