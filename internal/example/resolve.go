// SPDX-License-Identifier: Apache-2.0

package example

import (
	"path/filepath"
	"regexp"
	"slices"
	"sort"
	"strings"

	"github.com/gemaraproj/docsync/internal/fixture"
)

// DefaultCoordinate is a region inside the first simulated contig.
const DefaultCoordinate = "contig_00000:0-500"

// DefaultOutputFiles are the file names documentation examples write to.
var DefaultOutputFiles = []string{
	"hypermethylated_reads.txt",
	"hypermethylated.bam",
	"high_meth_reads.txt",
	"detailed_densities.tsv",
	"densities.tsv",
}

var coordinatePattern = regexp.MustCompile(`chr\d+:\d+-\d+`)

// ResolveOptions configures a Resolver.
type ResolveOptions struct {
	// OutputDir receives files named by OutputFiles.
	OutputDir   string
	OutputFiles []string
	Coordinate  string
	// RedirectSuffixes, when set, strips trailing shell redirections into
	// files with these suffixes so the output reaches stdout.
	RedirectSuffixes []string
}

// Resolver turns a snippet body into the command that is actually run.
// Resolve is pure: the same snippet and regions always give the same text.
type Resolver struct {
	fixtures   *fixture.Set
	outputDir  string
	outputs    []string
	coordinate string
	redirects  *regexp.Regexp
}

// NewResolver builds a Resolver over a fixture set.
func NewResolver(fixtures *fixture.Set, opts ResolveOptions) *Resolver {
	r := &Resolver{
		fixtures:   fixtures,
		outputDir:  opts.OutputDir,
		outputs:    append([]string(nil), opts.OutputFiles...),
		coordinate: opts.Coordinate,
	}
	if r.coordinate == "" {
		r.coordinate = DefaultCoordinate
	}
	sort.Slice(r.outputs, func(i, j int) bool {
		if len(r.outputs[i]) != len(r.outputs[j]) {
			return len(r.outputs[i]) > len(r.outputs[j])
		}
		return r.outputs[i] < r.outputs[j]
	})
	if len(opts.RedirectSuffixes) > 0 {
		alts := make([]string, len(opts.RedirectSuffixes))
		for i, suffix := range opts.RedirectSuffixes {
			alts[i] = regexp.QuoteMeta(suffix)
		}
		r.redirects = regexp.MustCompile(`(?m)[ \t]*>[ \t]*\S+(?:` + strings.Join(alts, "|") + `)[ \t]*$`)
	}
	return r
}

// Resolve prepares s for execution. Steps run in a fixed order, each on the
// previous step's output: fixture aliases, output file names, example
// coordinates, then substitution rules.
func (r *Resolver) Resolve(s Snippet, active []SubstitutionRegion) string {
	text := dedent(s.Body)
	text = r.replaceFixtures(text, s.Language)
	text = r.replaceOutputs(text)
	text = coordinatePattern.ReplaceAllLiteralString(text, r.coordinate)
	for _, sub := range active {
		text = substitute(text, sub)
	}
	if r.redirects != nil {
		text = r.redirects.ReplaceAllLiteralString(text, "")
	}
	return text
}

// replaceFixtures swaps fixture aliases for their paths in one pass, so a
// path that happens to contain an alias is never rewritten again. Python
// snippets only have quoted aliases replaced.
func (r *Resolver) replaceFixtures(text, language string) string {
	aliases := r.fixtures.Aliases()
	if len(aliases) == 0 {
		return text
	}
	var pairs []string
	for _, alias := range aliases {
		path, _ := r.fixtures.Path(alias)
		if language == "python" {
			for _, q := range []string{`"`, `'`} {
				pairs = append(pairs, q+alias+q, q+path+q)
			}
			continue
		}
		pairs = append(pairs, alias, path)
	}
	return strings.NewReplacer(pairs...).Replace(text)
}

// replaceOutputs rewrites output file names that stand alone as a token:
// not preceded or followed by a path separator or word character.
func (r *Resolver) replaceOutputs(text string) string {
	if len(r.outputs) == 0 {
		return text
	}
	var b strings.Builder
	i := 0
	for i < len(text) {
		matched := ""
		if i == 0 || !isPathByte(text[i-1]) {
			for _, name := range r.outputs {
				j := i + len(name)
				if strings.HasPrefix(text[i:], name) && (j == len(text) || !isPathByte(text[j])) {
					matched = name
					break
				}
			}
		}
		if matched == "" {
			b.WriteByte(text[i])
			i++
			continue
		}
		b.WriteString(filepath.Join(r.outputDir, matched))
		i += len(matched)
	}
	return b.String()
}

func isPathByte(c byte) bool {
	return c == '/' || c == '_' ||
		(c >= '0' && c <= '9') ||
		(c >= 'a' && c <= 'z') ||
		(c >= 'A' && c <= 'Z')
}

// substitute replaces sub.From case-insensitively with lower(sub.To).
// Fixture data uses lower-case identifiers.
func substitute(text string, sub SubstitutionRegion) string {
	re := regexp.MustCompile(`(?i)` + regexp.QuoteMeta(sub.From))
	return re.ReplaceAllLiteralString(text, strings.ToLower(sub.To))
}

// dedent removes the whitespace prefix shared by every non-blank line.
func dedent(text string) string {
	ls := strings.Split(text, "\n")
	prefix := ""
	first := true
	for _, l := range ls {
		if strings.TrimSpace(l) == "" {
			continue
		}
		indent := l[:len(l)-len(strings.TrimLeft(l, " \t"))]
		if first {
			prefix, first = indent, false
			continue
		}
		for !strings.HasPrefix(indent, prefix) {
			prefix = prefix[:len(prefix)-1]
		}
	}
	if prefix == "" {
		return text
	}
	for i, l := range ls {
		ls[i] = strings.TrimPrefix(l, prefix)
	}
	return strings.Join(ls, "\n")
}

// Unresolved lists tokens in s that look like fixture placeholders (they
// share an extension with a fixture alias) but match no alias and are not
// already absolute paths. It does not affect resolution.
func (r *Resolver) Unresolved(s Snippet) []string {
	exts := r.fixtures.Extensions()
	if len(exts) == 0 {
		return nil
	}
	seen := make(map[string]bool)
	var out []string
	for _, tok := range strings.FieldsFunc(s.Body, isTokenSeparator) {
		if seen[tok] || filepath.IsAbs(tok) {
			continue
		}
		if _, ok := r.fixtures.Path(tok); ok || slices.Contains(r.outputs, tok) {
			continue
		}
		for _, ext := range exts {
			if strings.HasSuffix(tok, ext) && len(tok) > len(ext) {
				seen[tok] = true
				out = append(out, tok)
				break
			}
		}
	}
	return out
}

func isTokenSeparator(r rune) bool {
	switch r {
	case ' ', '\t', '\n', '\r', '"', '\'', '(', ')', ',', '=', ';', '|', '<', '>', '`':
		return true
	}
	return false
}
