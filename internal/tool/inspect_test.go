// SPDX-License-Identifier: Apache-2.0

package tool

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gemaraproj/docsync/internal/example"
)

func newTestInspector() *Inspector {
	return NewInspector(example.DefaultTruncateLines, example.DefaultSkipRules(), []string{"bash", "python"})
}

const sampleDoc = `# Usage

<!--REPLACE_CHR1_WITH_contig_00000:START-->
` + "```bash" + `
nanalogue read-info --region chr1:1-100 input.bam
` + "```" + `

<!-- AUTO-GENERATED:START -->
<!-- AUTO-GENERATED:END -->
<!--REPLACE_CHR1_WITH_contig_00000:END-->

## Install

` + "```bash" + `
cargo install nanalogue
` + "```" + `

` + "```text" + `
plain
` + "```" + `
`

func TestInspectDocumentExamples(t *testing.T) {
	ctx := context.Background()
	req := &mcp.CallToolRequest{}
	inspector := newTestInspector()

	tests := []struct {
		name           string
		input          InputInspectDocumentExamples
		wantErr        bool
		errContains    string
		validateOutput func(t *testing.T, output OutputInspectDocumentExamples)
	}{
		{
			name:        "empty content returns error",
			input:       InputInspectDocumentExamples{Content: ""},
			wantErr:     true,
			errContains: "content is required",
		},
		{
			name:  "snippets regions and bindings are reported",
			input: InputInspectDocumentExamples{Content: sampleDoc, SourceID: "README.md"},
			validateOutput: func(t *testing.T, output OutputInspectDocumentExamples) {
				assert.Empty(t, output.Errors)
				require.Len(t, output.Snippets, 3)

				run := output.Snippets[0]
				assert.Equal(t, 4, run.Line)
				assert.Equal(t, "Usage", run.Section)
				assert.True(t, run.Runnable)
				assert.False(t, run.Skipped)
				assert.Equal(t, []string{"CHR1->contig_00000"}, run.Substitutions)

				install := output.Snippets[1]
				assert.Equal(t, "Install", install.Section)
				assert.True(t, install.Skipped)
				assert.Equal(t, "installation command", install.SkipReason)

				assert.False(t, output.Snippets[2].Runnable)

				require.Len(t, output.Regions, 2)
				assert.Equal(t, RegionInfo{Kind: "substitution", Line: 3, Marker: "CHR1->contig_00000"}, output.Regions[0])
				assert.Equal(t, RegionInfo{Kind: "output", Line: 8, Marker: "AUTO-GENERATED", LineLimit: 5}, output.Regions[1])

				assert.Equal(t, []BindingInfo{{RegionLine: 8, SnippetLine: 4}}, output.Bindings)
			},
		},
		{
			name: "structural errors are reported",
			input: InputInspectDocumentExamples{
				Content:  "intro\n<!-- AUTO-GENERATED:START -->\n<!-- AUTO-GENERATED:END -->\n",
				SourceID: "docs/guide.md",
			},
			validateOutput: func(t *testing.T, output OutputInspectDocumentExamples) {
				require.Len(t, output.Errors, 1)
				assert.Contains(t, output.Errors[0], "docs/guide.md:2")
				assert.Contains(t, output.Errors[0], "no code block before output marker")
				assert.Empty(t, output.Bindings)
			},
		},
		{
			name:  "unknown source id",
			input: InputInspectDocumentExamples{Content: "```bash\necho\n"},
			validateOutput: func(t *testing.T, output OutputInspectDocumentExamples) {
				require.Len(t, output.Errors, 1)
				assert.True(t, strings.HasPrefix(output.Errors[0], "unknown:1: unterminated code fence"))
				assert.Empty(t, output.Snippets)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, output, err := inspector.InspectDocumentExamples(ctx, req, tt.input)

			if tt.wantErr {
				require.Error(t, err)
				if tt.errContains != "" {
					assert.Contains(t, err.Error(), tt.errContains)
				}
				return
			}

			require.NoError(t, err)
			assert.Nil(t, result)
			if tt.validateOutput != nil {
				tt.validateOutput(t, output)
			}
		})
	}
}

func TestServer_CallTool(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	server := NewServer("test", newTestInspector())
	serverTransport, clientTransport := mcp.NewInMemoryTransports()
	serverSession, err := server.Connect(ctx, serverTransport, nil)
	require.NoError(t, err)
	defer serverSession.Close()

	client := mcp.NewClient(&mcp.Implementation{Name: "client", Version: "test"}, nil)
	session, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)
	defer session.Close()

	res, err := session.CallTool(ctx, &mcp.CallToolParams{
		Name:      "inspect_document_examples",
		Arguments: map[string]any{"content": sampleDoc, "source_id": "README.md"},
	})
	require.NoError(t, err)
	require.False(t, res.IsError)

	raw, err := json.Marshal(res.StructuredContent)
	require.NoError(t, err)
	var output OutputInspectDocumentExamples
	require.NoError(t, json.Unmarshal(raw, &output))
	assert.Len(t, output.Snippets, 3)
	assert.Equal(t, []BindingInfo{{RegionLine: 8, SnippetLine: 4}}, output.Bindings)

	res, err = session.CallTool(ctx, &mcp.CallToolParams{
		Name:      "inspect_document_examples",
		Arguments: map[string]any{"content": ""},
	})
	require.NoError(t, err)
	assert.True(t, res.IsError)
}
