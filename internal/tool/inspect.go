// SPDX-License-Identifier: Apache-2.0

package tool

import (
	"context"
	"fmt"
	"slices"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/gemaraproj/docsync/internal/example"
)

// MetadataInspectDocumentExamples describes the inspect_document_examples tool.
var MetadataInspectDocumentExamples = &mcp.Tool{
	Name: "inspect_document_examples",
	Description: "Inspect the code examples of a markdown document without running them. " +
		"Returns every fenced code block with its line, language, section and whether it would be " +
		"executed or skipped, the output and substitution regions, which code block fills each output " +
		"region, and any structural errors (unterminated fences, unmatched region tags, output regions " +
		"with no preceding code block) that would stop the document from being rendered.",
	InputSchema: map[string]interface{}{
		"type":     "object",
		"required": []string{"content"},
		"properties": map[string]interface{}{
			"content": map[string]interface{}{
				"type":        "string",
				"description": "Raw markdown content of the document",
			},
			"source_id": map[string]interface{}{
				"type":        "string",
				"description": "Optional identifier for the document (file path, URL, etc.) used in error messages.",
			},
		},
	},
}

// InputInspectDocumentExamples is the input for the InspectDocumentExamples tool.
type InputInspectDocumentExamples struct {
	Content  string `json:"content"`
	SourceID string `json:"source_id"`
}

// SnippetInfo describes one fenced code block.
type SnippetInfo struct {
	Line     int    `json:"line"`
	Language string `json:"language"`
	Section  string `json:"section,omitempty"`
	// Runnable is set when a runtime exists for Language and the block is
	// not rendered output.
	Runnable   bool   `json:"runnable"`
	Skipped    bool   `json:"skipped"`
	SkipReason string `json:"skip_reason,omitempty"`
	// Substitutions lists the FROM->TO rules applied to the block.
	Substitutions []string `json:"substitutions,omitempty"`
}

// RegionInfo describes an output or substitution region.
type RegionInfo struct {
	Kind string `json:"kind"`
	Line int    `json:"line"`
	// Marker is the output marker key or the substitution rule.
	Marker string `json:"marker"`
	// LineLimit is the output budget; -1 means unbounded.
	LineLimit int `json:"line_limit,omitempty"`
}

// BindingInfo pairs an output region with the block that fills it.
type BindingInfo struct {
	RegionLine  int `json:"region_line"`
	SnippetLine int `json:"snippet_line"`
}

// OutputInspectDocumentExamples is the output for the InspectDocumentExamples tool.
type OutputInspectDocumentExamples struct {
	Snippets []SnippetInfo `json:"snippets"`
	Regions  []RegionInfo  `json:"regions"`
	Bindings []BindingInfo `json:"bindings"`
	// Errors are structural errors; a document with errors is not rendered.
	Errors []string `json:"errors"`
}

// Inspector answers inspect_document_examples with the rules of one
// configuration.
type Inspector struct {
	locator    *example.Locator
	classifier *example.Classifier
	languages  []string
}

// NewInspector returns an Inspector. languages are the runnable language
// tags.
func NewInspector(truncateLines int, skip example.SkipRules, languages []string) *Inspector {
	return &Inspector{
		locator:    example.NewLocator(example.Markers(truncateLines)),
		classifier: example.NewClassifier(skip),
		languages:  slices.Clone(languages),
	}
}

func (i *Inspector) runnable(language string) bool {
	return slices.Contains(i.languages, language)
}

// InspectDocumentExamples analyzes the document in input.
func (i *Inspector) InspectDocumentExamples(_ context.Context, _ *mcp.CallToolRequest, input InputInspectDocumentExamples) (*mcp.CallToolResult, OutputInspectDocumentExamples, error) {
	if input.Content == "" {
		return nil, OutputInspectDocumentExamples{}, fmt.Errorf("content is required")
	}

	sourceID := input.SourceID
	if sourceID == "" {
		sourceID = "unknown"
	}
	doc := &example.Document{Path: sourceID, Content: input.Content}

	out := OutputInspectDocumentExamples{
		Snippets: []SnippetInfo{},
		Regions:  []RegionInfo{},
		Bindings: []BindingInfo{},
		Errors:   []string{},
	}
	analysis, errs := i.locator.Analyze(doc, i.runnable)
	for _, err := range errs {
		out.Errors = append(out.Errors, err.Error())
	}

	for _, s := range analysis.Snippets {
		info := SnippetInfo{
			Line:     s.Line,
			Language: s.Language,
			Section:  s.Section,
			Runnable: i.runnable(s.Language) && !analysis.Regions.InsideOutput(s.Offset),
		}
		if info.Runnable {
			d := i.classifier.Classify(s)
			info.Skipped, info.SkipReason = d.Skip, d.Reason
			for _, sub := range analysis.Regions.ActiveAt(s.Offset) {
				info.Substitutions = append(info.Substitutions, sub.From+"->"+sub.To)
			}
		}
		out.Snippets = append(out.Snippets, info)
	}

	for _, r := range analysis.Regions.Output {
		out.Regions = append(out.Regions, RegionInfo{
			Kind:      "output",
			Line:      r.Line,
			Marker:    r.Marker.Key,
			LineLimit: r.Marker.Limit,
		})
	}
	for _, r := range analysis.Regions.Substitution {
		out.Regions = append(out.Regions, RegionInfo{
			Kind:   "substitution",
			Line:   r.Line,
			Marker: r.From + "->" + r.To,
		})
	}
	slices.SortStableFunc(out.Regions, func(a, b RegionInfo) int { return a.Line - b.Line })

	for _, b := range analysis.Bindings {
		out.Bindings = append(out.Bindings, BindingInfo{
			RegionLine:  b.Region.Line,
			SnippetLine: analysis.Snippets[b.Snippet].Line,
		})
	}

	return nil, out, nil
}
