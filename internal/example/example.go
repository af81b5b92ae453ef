// SPDX-License-Identifier: Apache-2.0

// Package example finds runnable snippets and annotated regions in
// markdown documents, prepares snippets for execution and renders their
// captured output back into the document.
package example

import (
	"errors"
	"fmt"
	"strings"
)

// Document is a markdown file read once per run.
type Document struct {
	Path    string
	Content string
}

// Snippet is a fenced code block.
type Snippet struct {
	Language string
	// Body is the text between the fences, indentation included.
	Body string
	// Offset is the byte offset of the opening fence line.
	Offset int
	// End is the byte offset just past the closing fence characters.
	End int
	// Line is the 1-based line of the opening fence.
	Line int
	// Section is the nearest preceding heading.
	Section string
	Doc     *Document
}

func (s Snippet) String() string {
	path := ""
	if s.Doc != nil {
		path = s.Doc.Path
	}
	return fmt.Sprintf("%s:%d (%s)", path, s.Line, s.Language)
}

// Unbounded disables output truncation.
const Unbounded = -1

// Marker is an output tag pair.
type Marker struct {
	Key   string
	Start string
	End   string
	Limit int
}

// DefaultTruncateLines is the line budget of the truncated marker.
const DefaultTruncateLines = 5

// Markers returns the truncated and full output markers. limit is the
// budget of the truncated marker.
func Markers(limit int) []Marker {
	return []Marker{
		{
			Key:   "AUTO-GENERATED",
			Start: "<!-- AUTO-GENERATED:START -->",
			End:   "<!-- AUTO-GENERATED:END -->",
			Limit: limit,
		},
		{
			Key:   "AUTO-GENERATED-FULL",
			Start: "<!-- AUTO-GENERATED-FULL:START -->",
			End:   "<!-- AUTO-GENERATED-FULL:END -->",
			Limit: Unbounded,
		},
	}
}

// OutputRegion is a marker pair whose interior is regenerated from the
// output of the nearest preceding runnable snippet.
type OutputRegion struct {
	Marker Marker
	// Start is the offset of the start tag line.
	Start int
	// End is the offset just past the end tag text.
	End  int
	Line int
	// Indent is the whitespace before the start tag; rendering repeats it
	// on every line.
	Indent string
}

// SubstitutionRegion applies a case-insensitive From -> lower(To) rule to
// snippets whose offset lies inside it.
type SubstitutionRegion struct {
	From  string
	To    string
	Start int
	End   int
	Line  int
}

// Contains reports whether offset lies strictly inside the region.
func (r SubstitutionRegion) Contains(offset int) bool {
	return r.Start < offset && offset < r.End
}

// Regions are the annotated spans of one document, in document order.
type Regions struct {
	Output       []OutputRegion
	Substitution []SubstitutionRegion
}

// ActiveAt returns the substitution regions that contain offset.
func (r Regions) ActiveAt(offset int) []SubstitutionRegion {
	var active []SubstitutionRegion
	for _, sub := range r.Substitution {
		if sub.Contains(offset) {
			active = append(active, sub)
		}
	}
	return active
}

// InsideOutput reports whether offset lies within an output region's span.
func (r Regions) InsideOutput(offset int) bool {
	for _, out := range r.Output {
		if out.Start < offset && offset < out.End {
			return true
		}
	}
	return false
}

// Binding ties an output region to the snippet whose output fills it.
type Binding struct {
	Region OutputRegion
	// Snippet indexes the snippet slice passed to Bind.
	Snippet int
}

var (
	ErrUnterminatedFence  = errors.New("unterminated code fence")
	ErrNestedFence        = errors.New("nested code fence")
	ErrUnmatchedEnd       = errors.New("end tag without start tag")
	ErrMismatchedRegion   = errors.New("mismatched region tags")
	ErrUnterminatedRegion = errors.New("unterminated region")
	ErrNestedOutput       = errors.New("tag inside output region")
	ErrUnbound            = errors.New("no code block before output marker")
)

// StructuralError is a document defect that stops processing of that
// document. Kind is one of the Err* sentinels.
type StructuralError struct {
	Path string
	Line int
	Kind error
	Msg  string
}

func (e *StructuralError) Error() string {
	var b strings.Builder
	b.WriteString(e.Path)
	if e.Line > 0 {
		fmt.Fprintf(&b, ":%d", e.Line)
	}
	b.WriteString(": ")
	b.WriteString(e.Kind.Error())
	if e.Msg != "" {
		b.WriteString(": ")
		b.WriteString(e.Msg)
	}
	return b.String()
}

func (e *StructuralError) Unwrap() error {
	return e.Kind
}

func structural(doc *Document, offset int, kind error, format string, args ...any) *StructuralError {
	return &StructuralError{
		Path: doc.Path,
		Line: lineAt(doc.Content, offset),
		Kind: kind,
		Msg:  fmt.Sprintf(format, args...),
	}
}

// lineAt returns the 1-based line containing offset.
func lineAt(content string, offset int) int {
	if offset > len(content) {
		offset = len(content)
	}
	return strings.Count(content[:offset], "\n") + 1
}
