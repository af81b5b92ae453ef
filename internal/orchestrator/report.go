// SPDX-License-Identifier: Apache-2.0

package orchestrator

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/gemaraproj/docsync/internal/sandbox"
)

// StderrExcerpt is how much stderr the summary shows per failure.
const StderrExcerpt = 200

type Status string

const (
	StatusPassed  Status = "passed"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// SnippetReport is the outcome of one runnable snippet.
type SnippetReport struct {
	// Location is "path:line (language)".
	Location string
	Line     int
	Language string
	Section  string
	Status   Status
	// Reason is set for skipped snippets.
	Reason string
	Result sandbox.Result
}

// DocumentReport is the outcome of one document. Errors holds structural
// and I/O errors; snippet failures live in Snippets.
type DocumentReport struct {
	Path     string
	Errors   []error
	Snippets []SnippetReport
	// Changed is set when rendering produced different text, Written when
	// that text reached disk.
	Changed bool
	Written bool
}

func (d DocumentReport) failedSnippets() int {
	n := 0
	for _, s := range d.Snippets {
		if s.Status == StatusFailed {
			n++
		}
	}
	return n
}

// Failed reports whether the document had errors or failing snippets.
func (d DocumentReport) Failed() bool {
	return len(d.Errors) > 0 || d.failedSnippets() > 0
}

// Totals are the counts printed in the summary.
type Totals struct {
	Documents int
	Failed    int
	Updated   int
	Passed    int
	Errored   int
	Skipped   int
}

// Report is the result of one run.
type Report struct {
	RunID     string
	Mode      Mode
	DryRun    bool
	Started   time.Time
	Duration  time.Duration
	Documents []DocumentReport
}

// Totals counts documents and snippets.
func (r *Report) Totals() Totals {
	var t Totals
	for _, d := range r.Documents {
		t.Documents++
		if d.Failed() {
			t.Failed++
		}
		if d.Changed {
			t.Updated++
		}
		for _, s := range d.Snippets {
			switch s.Status {
			case StatusPassed:
				t.Passed++
			case StatusFailed:
				t.Errored++
			case StatusSkipped:
				t.Skipped++
			}
		}
	}
	return t
}

// OK reports whether every document succeeded.
func (r *Report) OK() bool {
	for _, d := range r.Documents {
		if d.Failed() {
			return false
		}
	}
	return true
}

// Print writes the human-readable summary to w.
func (r *Report) Print(w io.Writer) {
	re := lipgloss.NewRenderer(w)
	var (
		bold   = re.NewStyle().Bold(true)
		passed = re.NewStyle().Foreground(lipgloss.Color("2"))
		failed = re.NewStyle().Foreground(lipgloss.Color("1"))
		faint  = re.NewStyle().Faint(true)
	)

	t := r.Totals()
	updated := "updated"
	if r.DryRun {
		updated = "would update"
	}
	fmt.Fprintln(w, bold.Render(fmt.Sprintf("docsync %s", r.Mode)), faint.Render(fmt.Sprintf("run %s, %s", r.RunID, r.Duration.Round(time.Millisecond))))
	fmt.Fprintf(w, "Documents: %d processed, %d failed, %d %s\n", t.Documents, t.Failed, t.Updated, updated)

	result := fmt.Sprintf("Results: %d passed, %d failed, %d skipped", t.Passed, t.Errored, t.Skipped)
	if r.OK() {
		fmt.Fprintln(w, passed.Render(result))
	} else {
		fmt.Fprintln(w, failed.Render(result))
	}

	if r.OK() {
		return
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, bold.Render("Failures:"))
	for _, d := range r.Documents {
		for _, err := range d.Errors {
			fmt.Fprintf(w, "  %s\n", err)
		}
		for _, s := range d.Snippets {
			if s.Status != StatusFailed {
				continue
			}
			fmt.Fprintf(w, "  %s\n", failed.Render(s.Location))
			if excerpt := stderrExcerpt(s.Result.Stderr); excerpt != "" {
				for _, l := range strings.Split(excerpt, "\n") {
					fmt.Fprintf(w, "    %s\n", faint.Render(l))
				}
			}
		}
	}
}

func stderrExcerpt(stderr string) string {
	s := strings.TrimSpace(stderr)
	if len(s) > StderrExcerpt {
		s = strings.ToValidUTF8(s[:StderrExcerpt], "")
	}
	return s
}
