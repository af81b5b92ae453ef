// SPDX-License-Identifier: Apache-2.0

package example_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gemaraproj/docsync/internal/example"
)

func runnable(language string) bool {
	return language == "bash" || language == "python"
}

func doc(content string) *example.Document {
	return &example.Document{Path: "README.md", Content: content}
}

// ---------------------------------------------------------------------------
// Extraction
// ---------------------------------------------------------------------------

func TestExtract(t *testing.T) {
	content := strings.Join([]string{
		"# Title",
		"",
		"Intro.",
		"",
		"```bash",
		"echo hi",
		"```",
		"",
		"## Usage",
		"",
		"  ```python",
		"  print(1)",
		"  ```",
		"",
	}, "\n")
	d := doc(content)

	snippets, err := example.Extract(d)
	require.NoError(t, err)
	require.Len(t, snippets, 2)

	first := snippets[0]
	assert.Equal(t, "bash", first.Language)
	assert.Equal(t, "echo hi\n", first.Body)
	assert.Equal(t, 5, first.Line)
	assert.Equal(t, "Title", first.Section)
	assert.Equal(t, strings.Index(content, "```bash"), first.Offset)
	assert.Equal(t, "```", content[first.End-3:first.End])
	assert.Same(t, d, first.Doc)
	assert.Equal(t, "README.md:5 (bash)", first.String())

	second := snippets[1]
	assert.Equal(t, "python", second.Language)
	assert.Equal(t, "  print(1)\n", second.Body, "indentation is preserved")
	assert.Equal(t, 11, second.Line)
	assert.Equal(t, "Usage", second.Section)
	assert.Less(t, first.End, second.Offset)
}

func TestExtract_FenceVariants(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		wantLang []string
		wantBody []string
	}{
		{
			name:     "tilde fence holds backticks",
			content:  "~~~sh\n```\n~~~\n",
			wantLang: []string{"sh"},
			wantBody: []string{"```\n"},
		},
		{
			name:     "info string attributes are dropped",
			content:  "```{.python} title=x\nx = 1\n```\n",
			wantLang: []string{"python"},
			wantBody: []string{"x = 1\n"},
		},
		{
			name:     "fence without language",
			content:  "```\nplain\n```\n",
			wantLang: []string{""},
			wantBody: []string{"plain\n"},
		},
		{
			name:     "longer closing fence",
			content:  "````bash\necho a\n``````\n",
			wantLang: []string{"bash"},
			wantBody: []string{"echo a\n"},
		},
		{
			name:     "carriage returns",
			content:  "```bash\r\necho a\r\n```\r\n",
			wantLang: []string{"bash"},
			wantBody: []string{"echo a\r\n"},
		},
		{
			name:    "no fences",
			content: "just prose\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snippets, err := example.Extract(doc(tt.content))
			require.NoError(t, err)
			var langs, bodies []string
			for _, s := range snippets {
				langs = append(langs, s.Language)
				bodies = append(bodies, s.Body)
			}
			assert.Equal(t, tt.wantLang, langs)
			assert.Equal(t, tt.wantBody, bodies)
		})
	}
}

func TestExtract_Errors(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		wantKind error
		wantLine int
	}{
		{
			name:     "unterminated fence",
			content:  "text\n```bash\necho\n",
			wantKind: example.ErrUnterminatedFence,
			wantLine: 2,
		},
		{
			name:     "nested fence",
			content:  "```bash\necho\n```python\n```\n",
			wantKind: example.ErrNestedFence,
			wantLine: 3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := example.Extract(doc(tt.content))
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantKind)

			var serr *example.StructuralError
			require.True(t, errors.As(err, &serr))
			assert.Equal(t, "README.md", serr.Path)
			assert.Equal(t, tt.wantLine, serr.Line)
		})
	}
}

func TestSnippets_Restartable(t *testing.T) {
	seq := example.Snippets(doc("```bash\na\n```\n```bash\nb\n```\n"))

	count := func() int {
		n := 0
		for _, err := range seq {
			require.NoError(t, err)
			n++
		}
		return n
	}
	assert.Equal(t, 2, count())
	assert.Equal(t, 2, count())

	for s := range seq {
		assert.Equal(t, "a\n", s.Body)
		break
	}
}

// ---------------------------------------------------------------------------
// Regions
// ---------------------------------------------------------------------------

func locate(t *testing.T, content string) (*example.Document, []example.Snippet, example.Regions, error) {
	t.Helper()
	d := doc(content)
	snippets, err := example.Extract(d)
	require.NoError(t, err)
	regions, err := example.NewLocator(example.Markers(example.DefaultTruncateLines)).Locate(d, snippets)
	return d, snippets, regions, err
}

func TestLocate(t *testing.T) {
	content := strings.Join([]string{
		"<!--REPLACE_CHR1_WITH_contig_00000:START-->",
		"```bash",
		"echo chr1",
		"```",
		"",
		"  <!-- AUTO-GENERATED:START -->",
		"  old",
		"  <!-- AUTO-GENERATED:END -->",
		"<!--REPLACE_CHR1_WITH_contig_00000:END-->",
		"",
		"<!-- AUTO-GENERATED-FULL:START -->",
		"<!-- AUTO-GENERATED-FULL:END -->",
	}, "\n")

	_, snippets, regions, err := locate(t, content)
	require.NoError(t, err)
	require.Len(t, snippets, 1)

	require.Len(t, regions.Output, 2)
	out := regions.Output[0]
	assert.Equal(t, "AUTO-GENERATED", out.Marker.Key)
	assert.Equal(t, example.DefaultTruncateLines, out.Marker.Limit)
	assert.Equal(t, 6, out.Line)
	assert.Equal(t, "  ", out.Indent)
	assert.Equal(t, "  <!-- AUTO-GENERATED:START -->\n  old\n  <!-- AUTO-GENERATED:END -->", content[out.Start:out.End])

	full := regions.Output[1]
	assert.Equal(t, "AUTO-GENERATED-FULL", full.Marker.Key)
	assert.Equal(t, example.Unbounded, full.Marker.Limit)
	assert.Equal(t, 11, full.Line)

	require.Len(t, regions.Substitution, 1)
	sub := regions.Substitution[0]
	assert.Equal(t, "CHR1", sub.From)
	assert.Equal(t, "contig_00000", sub.To)
	assert.Equal(t, 1, sub.Line)

	active := regions.ActiveAt(snippets[0].Offset)
	assert.Equal(t, []example.SubstitutionRegion{sub}, active)
	assert.Empty(t, regions.ActiveAt(sub.Start), "region start is not inside the region")
	assert.Empty(t, regions.ActiveAt(full.Start))
}

func TestLocate_IgnoresTagsInFences(t *testing.T) {
	content := "````markdown\n<!-- AUTO-GENERATED:START -->\n````\n\n~~~\n<!-- AUTO-GENERATED:END -->\n~~~\n"
	_, _, regions, err := locate(t, content)
	require.NoError(t, err)
	assert.Empty(t, regions.Output)
	assert.Empty(t, regions.Substitution)
}

func TestLocate_NotATag(t *testing.T) {
	content := strings.Join([]string{
		"<!-- AUTO-GENERATED -->",
		"<!-- REPLACE_A_B_WITH_c:START -->",
		"text <!-- AUTO-GENERATED:START -->",
		"<!-- SOMETHING:END -->",
	}, "\n")
	_, _, regions, err := locate(t, content)
	require.NoError(t, err)
	assert.Empty(t, regions.Output)
	assert.Empty(t, regions.Substitution)
}

func TestLocate_Errors(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		wantKind error
		wantLine int
	}{
		{
			name:     "end without start",
			content:  "text\n<!-- AUTO-GENERATED:END -->\n",
			wantKind: example.ErrUnmatchedEnd,
			wantLine: 2,
		},
		{
			name:     "mismatched output markers",
			content:  "<!-- AUTO-GENERATED:START -->\n<!-- AUTO-GENERATED-FULL:END -->\n",
			wantKind: example.ErrMismatchedRegion,
			wantLine: 2,
		},
		{
			name:     "mismatched substitution tags",
			content:  "<!--REPLACE_CHR1_WITH_a:START-->\n<!--REPLACE_CHR2_WITH_a:END-->\n",
			wantKind: example.ErrMismatchedRegion,
			wantLine: 2,
		},
		{
			name:     "unterminated output region",
			content:  "a\nb\n<!-- AUTO-GENERATED:START -->\nold\n",
			wantKind: example.ErrUnterminatedRegion,
			wantLine: 3,
		},
		{
			name:     "unterminated substitution region",
			content:  "<!--REPLACE_CHR1_WITH_a:START-->\n",
			wantKind: example.ErrUnterminatedRegion,
			wantLine: 1,
		},
		{
			name:     "tag inside output region",
			content:  "<!-- AUTO-GENERATED:START -->\n<!--REPLACE_CHR1_WITH_a:START-->\n",
			wantKind: example.ErrNestedOutput,
			wantLine: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, _, err := locate(t, tt.content)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantKind)

			var serr *example.StructuralError
			require.True(t, errors.As(err, &serr))
			assert.Equal(t, tt.wantLine, serr.Line)
			assert.Contains(t, err.Error(), "README.md:")
		})
	}
}

func TestLocate_NestedSubstitutions(t *testing.T) {
	content := strings.Join([]string{
		"<!--REPLACE_CHR1_WITH_a:START-->",
		"<!--REPLACE_CHR2_WITH_b:START-->",
		"```bash",
		"echo chr1 chr2",
		"```",
		"<!--REPLACE_CHR2_WITH_b:END-->",
		"```bash",
		"echo chr1 chr2",
		"```",
		"<!--REPLACE_CHR1_WITH_a:END-->",
	}, "\n")

	_, snippets, regions, err := locate(t, content)
	require.NoError(t, err)
	require.Len(t, snippets, 2)
	require.Len(t, regions.Substitution, 2)

	assert.Len(t, regions.ActiveAt(snippets[0].Offset), 2)
	active := regions.ActiveAt(snippets[1].Offset)
	require.Len(t, active, 1)
	assert.Equal(t, "CHR1", active[0].From)
}

// ---------------------------------------------------------------------------
// Binding
// ---------------------------------------------------------------------------

func TestBind(t *testing.T) {
	content := strings.Join([]string{
		"```bash",
		"echo first",
		"```",
		"```text",
		"not runnable",
		"```",
		"<!-- AUTO-GENERATED:START -->",
		"```bash",
		"rendered",
		"```",
		"<!-- AUTO-GENERATED:END -->",
		"<!-- AUTO-GENERATED-FULL:START -->",
		"<!-- AUTO-GENERATED-FULL:END -->",
		"```python",
		"print(2)",
		"```",
		"<!-- AUTO-GENERATED:START -->",
		"<!-- AUTO-GENERATED:END -->",
	}, "\n")

	d, snippets, regions, err := locate(t, content)
	require.NoError(t, err)
	require.Len(t, snippets, 4)
	require.Len(t, regions.Output, 3)

	bindings, errs := example.Bind(d, snippets, regions, runnable)
	require.Empty(t, errs)
	require.Len(t, bindings, 3)

	assert.Equal(t, 0, bindings[0].Snippet, "non-runnable blocks are skipped")
	assert.Equal(t, 0, bindings[1].Snippet, "blocks inside output regions are skipped")
	assert.Equal(t, 3, bindings[2].Snippet)
	assert.Equal(t, "AUTO-GENERATED-FULL", bindings[1].Region.Marker.Key)
}

func TestBind_Unbound(t *testing.T) {
	content := "intro\n<!-- AUTO-GENERATED:START -->\n<!-- AUTO-GENERATED:END -->\n```bash\necho late\n```\n"
	d, snippets, regions, err := locate(t, content)
	require.NoError(t, err)

	bindings, errs := example.Bind(d, snippets, regions, runnable)
	assert.Empty(t, bindings)
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], example.ErrUnbound)
	assert.Contains(t, errs[0].Error(), "README.md:2")
}

func TestAnalyze(t *testing.T) {
	loc := example.NewLocator(example.Markers(example.DefaultTruncateLines))

	t.Run("collects snippets regions and bindings", func(t *testing.T) {
		a, errs := loc.Analyze(doc("```bash\necho hi\n```\n<!-- AUTO-GENERATED:START -->\n<!-- AUTO-GENERATED:END -->\n"), runnable)
		require.Empty(t, errs)
		assert.Len(t, a.Snippets, 1)
		assert.Len(t, a.Regions.Output, 1)
		assert.Len(t, a.Bindings, 1)
	})

	t.Run("stops at extraction errors", func(t *testing.T) {
		a, errs := loc.Analyze(doc("```bash\n"), runnable)
		require.Len(t, errs, 1)
		assert.ErrorIs(t, errs[0], example.ErrUnterminatedFence)
		assert.Empty(t, a.Snippets)
	})

	t.Run("stops at region errors", func(t *testing.T) {
		a, errs := loc.Analyze(doc("```bash\necho\n```\n<!-- AUTO-GENERATED:END -->\n"), runnable)
		require.Len(t, errs, 1)
		assert.ErrorIs(t, errs[0], example.ErrUnmatchedEnd)
		assert.Len(t, a.Snippets, 1)
		assert.Empty(t, a.Bindings)
	})
}
