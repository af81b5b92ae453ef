// SPDX-License-Identifier: Apache-2.0

package example

import (
	"iter"
	"strings"
)

// line is one line of a document. end excludes the newline; next is the
// offset of the following line.
type line struct {
	num   int
	start int
	end   int
	next  int
	text  string
}

// lines yields every line of content with its offsets. A trailing carriage
// return is dropped from text.
func lines(content string) iter.Seq[line] {
	return func(yield func(line) bool) {
		start, num := 0, 1
		for start < len(content) {
			end := strings.IndexByte(content[start:], '\n')
			next := 0
			if end < 0 {
				end = len(content)
				next = end
			} else {
				end += start
				next = end + 1
			}
			text := strings.TrimSuffix(content[start:end], "\r")
			if !yield(line{num: num, start: start, end: end, next: next, text: text}) {
				return
			}
			start, num = next, num+1
		}
	}
}

type fence struct {
	char   byte
	length int
	lang   string
}

// parseFence recognizes an opening fence: optional indentation, three or
// more backticks or tildes, then an optional info string whose first word
// is the language.
func parseFence(text string) (fence, bool) {
	s := strings.TrimLeft(text, " \t")
	if len(s) < 3 || (s[0] != '`' && s[0] != '~') {
		return fence{}, false
	}
	c := s[0]
	n := 0
	for n < len(s) && s[n] == c {
		n++
	}
	if n < 3 {
		return fence{}, false
	}
	info := strings.TrimSpace(s[n:])
	if c == '`' && strings.ContainsRune(info, '`') {
		return fence{}, false
	}
	f := fence{char: c, length: n}
	if fields := strings.Fields(info); len(fields) > 0 {
		f.lang = strings.Trim(fields[0], "{}.")
	}
	return f, true
}

// closes reports whether text is a closing fence for f.
func (f fence) closes(text string) bool {
	s := strings.TrimLeft(text, " \t")
	n := 0
	for n < len(s) && s[n] == f.char {
		n++
	}
	return n >= f.length && strings.TrimSpace(s[n:]) == ""
}

// heading returns the text of a markdown ATX heading.
func heading(text string) (string, bool) {
	if !strings.HasPrefix(text, "#") {
		return "", false
	}
	h := strings.TrimSpace(strings.TrimLeft(text, "#"))
	return h, h != ""
}

// Snippets yields every top-level fenced block of doc in document order.
// A nested or unterminated fence is yielded as a *StructuralError and ends
// the sequence. The sequence can be ranged over any number of times.
func Snippets(doc *Document) iter.Seq2[Snippet, error] {
	return func(yield func(Snippet, error) bool) {
		var (
			open      *fence
			openLine  line
			bodyStart int
			section   string
		)
		for ln := range lines(doc.Content) {
			if open == nil {
				if f, ok := parseFence(ln.text); ok {
					open, openLine, bodyStart = &f, ln, ln.next
					continue
				}
				if h, ok := heading(ln.text); ok {
					section = h
				}
				continue
			}

			if open.closes(ln.text) {
				s := Snippet{
					Language: open.lang,
					Body:     doc.Content[bodyStart:ln.start],
					Offset:   openLine.start,
					End:      ln.start + len(strings.TrimRight(ln.text, " \t")),
					Line:     openLine.num,
					Section:  section,
					Doc:      doc,
				}
				open = nil
				if !yield(s, nil) {
					return
				}
				continue
			}

			if f, ok := parseFence(ln.text); ok && f.char == open.char && f.length >= open.length && f.lang != "" {
				yield(Snippet{}, structural(doc, ln.start, ErrNestedFence,
					"fence opened at line %d is still open", openLine.num))
				return
			}
		}
		if open != nil {
			yield(Snippet{}, structural(doc, openLine.start, ErrUnterminatedFence,
				"no closing %s", strings.Repeat(string(open.char), open.length)))
		}
	}
}

// Extract collects Snippets into a slice.
func Extract(doc *Document) ([]Snippet, error) {
	var out []Snippet
	for s, err := range Snippets(doc) {
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}
