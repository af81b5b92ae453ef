// SPDX-License-Identifier: Apache-2.0

package example

import (
	"fmt"
	"sort"
	"strings"

	"github.com/gemaraproj/docsync/internal/sandbox"
)

// Ellipsis marks truncated output.
const Ellipsis = "..."

// DisplayText returns the trimmed stdout of res, cut to limit lines with a
// trailing ellipsis line when longer. Stderr is never shown.
func DisplayText(res sandbox.Result, limit int) string {
	ls := strings.Split(strings.TrimSpace(res.Stdout), "\n")
	if limit >= 0 && len(ls) > limit {
		ls = append(ls[:limit:limit], Ellipsis)
	}
	return strings.Join(ls, "\n")
}

// RenderRegion returns the full replacement text for region: start tag,
// a fenced block holding display, end tag. Every line carries the start
// tag's indentation.
func RenderRegion(region OutputRegion, display string) string {
	body := []string{region.Marker.Start, "```"}
	body = append(body, strings.Split(display, "\n")...)
	body = append(body, "```", region.Marker.End)
	for i, l := range body {
		if l != "" {
			body[i] = region.Indent + l
		}
	}
	return strings.Join(body, "\n")
}

// Replacement swaps content[Start:End] for Text.
type Replacement struct {
	Start int
	End   int
	Text  string
}

// Rewrite applies replacements to content. Replacements must not overlap.
func Rewrite(content string, reps []Replacement) (string, error) {
	sorted := append([]Replacement(nil), reps...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })

	var b strings.Builder
	pos := 0
	for _, r := range sorted {
		if r.Start < pos || r.End < r.Start || r.End > len(content) {
			return "", fmt.Errorf("invalid replacement span [%d,%d)", r.Start, r.End)
		}
		b.WriteString(content[pos:r.Start])
		b.WriteString(r.Text)
		pos = r.End
	}
	b.WriteString(content[pos:])
	return b.String(), nil
}
