// SPDX-License-Identifier: Apache-2.0

package example

import (
	"strings"
)

// SkipRules configures which runnable snippets are left unexecuted.
type SkipRules struct {
	// InstallPrefixes match the first non-comment line of commands that
	// install packages or fetch from the network.
	InstallPrefixes []string `yaml:"install_prefixes"`
	// PlaceholderDomains are reserved example hosts; any mention skips.
	PlaceholderDomains []string `yaml:"placeholder_domains"`
	// OutputShapes match, case-insensitively, the first line of blocks that
	// show captured output rather than a command.
	OutputShapes []string `yaml:"output_shapes"`
}

// DefaultSkipRules returns the built-in skip rules.
func DefaultSkipRules() SkipRules {
	return SkipRules{
		InstallPrefixes: []string{
			"cargo install", "pip install", "pip3 install", "conda install",
			"docker pull", "curl ", "wget ",
		},
		PlaceholderDomains: []string{"example.com"},
		OutputShapes:       []string{"# output", "# expected output", "# example output", "output:", ">>> "},
	}
}

// Decision is the outcome of classifying a snippet.
type Decision struct {
	Skip   bool
	Reason string
}

// view is the part of a snippet the skip rules look at.
type view struct {
	body  string
	first string
	code  []string
}

// skipRule pairs a predicate with the reason reported when it matches.
type skipRule struct {
	reason string
	match  func(v view) bool
}

// Classifier decides whether a runnable snippet is executed. Rules are
// evaluated in order; the first match wins.
type Classifier struct {
	rules []skipRule
}

// NewClassifier builds the rule table for cfg.
func NewClassifier(cfg SkipRules) *Classifier {
	return &Classifier{rules: []skipRule{
		{
			reason: "comment-only block",
			match:  func(v view) bool { return len(v.code) == 0 },
		},
		{
			reason: "installation command",
			match: func(v view) bool {
				return hasAnyPrefix(v.code[0], cfg.InstallPrefixes, false)
			},
		},
		{
			reason: "placeholder domain",
			match: func(v view) bool {
				for _, d := range cfg.PlaceholderDomains {
					if d != "" && strings.Contains(v.body, d) {
						return true
					}
				}
				return false
			},
		},
		{
			reason: "captured example output",
			match: func(v view) bool {
				return hasAnyPrefix(v.first, cfg.OutputShapes, true)
			},
		},
	}}
}

// Classify applies the rule table to s.
func (c *Classifier) Classify(s Snippet) Decision {
	v := view{body: s.Body}
	for _, l := range strings.Split(s.Body, "\n") {
		trimmed := strings.TrimSpace(l)
		if trimmed == "" {
			continue
		}
		if v.first == "" {
			v.first = trimmed
		}
		if !strings.HasPrefix(trimmed, "#") {
			v.code = append(v.code, trimmed)
		}
	}
	for _, rule := range c.rules {
		if rule.match(v) {
			return Decision{Skip: true, Reason: rule.reason}
		}
	}
	return Decision{}
}

func hasAnyPrefix(s string, prefixes []string, fold bool) bool {
	if fold {
		s = strings.ToLower(s)
	}
	for _, p := range prefixes {
		if fold {
			p = strings.ToLower(p)
		}
		if p != "" && strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}
