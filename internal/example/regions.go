// SPDX-License-Identifier: Apache-2.0

package example

import (
	"strings"
)

const (
	replacePrefix = "REPLACE_"
	replaceWith   = "_WITH_"
	tagStart      = ":START"
	tagEnd        = ":END"
)

// tag is a parsed marker line.
type tag struct {
	key    string
	start  bool
	marker *Marker
	from   string
	to     string
}

// Locator finds output and substitution regions.
type Locator struct {
	markers []Marker
}

// NewLocator returns a Locator for the given output markers.
func NewLocator(markers []Marker) *Locator {
	return &Locator{markers: markers}
}

// parseTag recognizes a line holding exactly one region tag.
func (l *Locator) parseTag(text string) (tag, bool) {
	s := strings.TrimSpace(text)
	if !strings.HasPrefix(s, "<!--") || !strings.HasSuffix(s, "-->") {
		return tag{}, false
	}
	inner := strings.TrimSpace(s[len("<!--") : len(s)-len("-->")])

	var t tag
	switch {
	case strings.HasSuffix(inner, tagStart):
		t.start = true
		t.key = strings.TrimSuffix(inner, tagStart)
	case strings.HasSuffix(inner, tagEnd):
		t.key = strings.TrimSuffix(inner, tagEnd)
	default:
		return tag{}, false
	}

	for i := range l.markers {
		if l.markers[i].Key == t.key {
			t.marker = &l.markers[i]
			return t, true
		}
	}

	rest, ok := strings.CutPrefix(t.key, replacePrefix)
	if !ok {
		return tag{}, false
	}
	from, to, ok := strings.Cut(rest, replaceWith)
	if !ok || from == "" || to == "" || strings.Contains(from, "_") || strings.ContainsAny(to, ": \t") {
		return tag{}, false
	}
	t.from, t.to = from, to
	return t, true
}

// openTag is a start tag waiting for its end tag.
type openTag struct {
	tag
	ln line
}

// Locate returns every region of doc. Tag lines inside fenced blocks are
// ignored. Regions must nest properly: an end tag closes the most recently
// opened region and must carry the same key, and nothing may be opened
// inside an output region.
func (l *Locator) Locate(doc *Document, snippets []Snippet) (Regions, error) {
	var (
		regions Regions
		stack   []openTag
		next    int
	)
	for ln := range lines(doc.Content) {
		for next < len(snippets) && snippets[next].End < ln.start {
			next++
		}
		if next < len(snippets) && snippets[next].Offset <= ln.start {
			continue
		}

		t, ok := l.parseTag(ln.text)
		if !ok {
			continue
		}

		if t.start {
			if n := len(stack); n > 0 && stack[n-1].marker != nil {
				return Regions{}, structural(doc, ln.start, ErrNestedOutput,
					"%s opened inside %s from line %d", t.key, stack[n-1].key, stack[n-1].ln.num)
			}
			stack = append(stack, openTag{tag: t, ln: ln})
			continue
		}

		n := len(stack)
		if n == 0 {
			return Regions{}, structural(doc, ln.start, ErrUnmatchedEnd, "%s", t.key)
		}
		top := stack[n-1]
		if top.key != t.key {
			return Regions{}, structural(doc, ln.start, ErrMismatchedRegion,
				"expected end of %s from line %d, found end of %s", top.key, top.ln.num, t.key)
		}
		stack = stack[:n-1]

		end := ln.start + len(strings.TrimRight(ln.text, " \t"))
		if top.marker != nil {
			regions.Output = append(regions.Output, OutputRegion{
				Marker: *top.marker,
				Start:  top.ln.start,
				End:    end,
				Line:   top.ln.num,
				Indent: top.ln.text[:len(top.ln.text)-len(strings.TrimLeft(top.ln.text, " \t"))],
			})
			continue
		}
		regions.Substitution = append(regions.Substitution, SubstitutionRegion{
			From:  top.from,
			To:    top.to,
			Start: top.ln.start,
			End:   end,
			Line:  top.ln.num,
		})
	}
	if n := len(stack); n > 0 {
		top := stack[n-1]
		return Regions{}, structural(doc, top.ln.start, ErrUnterminatedRegion, "%s has no end tag", top.key)
	}
	return regions, nil
}

// Bind pairs each output region with the runnable snippet that ends
// closest before it. Snippets inside output regions are rendered output,
// not candidates. Regions without a candidate produce ErrUnbound and are
// left out of the result.
func Bind(doc *Document, snippets []Snippet, regions Regions, runnable func(language string) bool) ([]Binding, []error) {
	var (
		bindings []Binding
		errs     []error
	)
	for _, region := range regions.Output {
		best := -1
		for i, s := range snippets {
			if !runnable(s.Language) || regions.InsideOutput(s.Offset) {
				continue
			}
			if s.End < region.Start && (best < 0 || s.End > snippets[best].End) {
				best = i
			}
		}
		if best < 0 {
			errs = append(errs, structural(doc, region.Start, ErrUnbound, "%s", region.Marker.Key))
			continue
		}
		bindings = append(bindings, Binding{Region: region, Snippet: best})
	}
	return bindings, errs
}

// Analysis is the static view of a document: its snippets, regions and
// output bindings.
type Analysis struct {
	Snippets []Snippet
	Regions  Regions
	Bindings []Binding
}

// Analyze extracts, locates and binds in one pass. Extraction and region
// errors stop the analysis; binding errors are all collected.
func (l *Locator) Analyze(doc *Document, runnable func(language string) bool) (Analysis, []error) {
	snippets, err := Extract(doc)
	if err != nil {
		return Analysis{}, []error{err}
	}
	regions, err := l.Locate(doc, snippets)
	if err != nil {
		return Analysis{Snippets: snippets}, []error{err}
	}
	bindings, errs := Bind(doc, snippets, regions, runnable)
	return Analysis{Snippets: snippets, Regions: regions, Bindings: bindings}, errs
}
