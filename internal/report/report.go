// Package report holds the outcome of one clustering run in a form that can
// be printed, stored and sent to chat webhooks.
package report

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"
)

// Group is one cluster of texts. Label names it; Members are the texts in
// input order.
type Group struct {
	Label   string
	Members []string
}

// Report is the result of clustering a set of texts.
type Report struct {
	ID        int64
	Source    string
	Features  string
	Linkage   string
	Threshold float64
	Groups    []Group
	// Skipped lists texts with no usable features (empty after tokenizing).
	Skipped   []string
	Merges    int
	CreatedAt time.Time
}

// Texts returns the number of clustered texts, excluding skipped ones.
func (r *Report) Texts() int {
	n := 0
	for _, g := range r.Groups {
		n += len(g.Members)
	}
	return n
}

// Clusters returns the number of groups with more than one member.
func (r *Report) Clusters() int {
	n := 0
	for _, g := range r.Groups {
		if len(g.Members) > 1 {
			n++
		}
	}
	return n
}

// Sorted returns the groups largest first. Groups of equal size keep their
// original order.
func (r *Report) Sorted() []Group {
	out := make([]Group, len(r.Groups))
	copy(out, r.Groups)
	sort.SliceStable(out, func(i, j int) bool {
		return len(out[i].Members) > len(out[j].Members)
	})
	return out
}

// Summary is a one-line description used in headers and notifications.
func (r *Report) Summary() string {
	return fmt.Sprintf("%d texts in %d groups (%d clusters, %d singletons), %s linkage, threshold %.2f",
		r.Texts(), len(r.Groups), r.Clusters(), len(r.Groups)-r.Clusters(), r.Linkage, r.Threshold)
}

// Write prints the report as plain text. At most maxMembers members are
// listed per group; zero or less lists all of them.
func (r *Report) Write(w io.Writer, maxMembers int) error {
	var b strings.Builder

	if r.ID != 0 {
		fmt.Fprintf(&b, "Run #%d", r.ID)
		if r.Source != "" {
			fmt.Fprintf(&b, " (%s)", r.Source)
		}
		b.WriteString("\n")
	} else if r.Source != "" {
		fmt.Fprintf(&b, "Source: %s\n", r.Source)
	}
	fmt.Fprintf(&b, "%s\n", r.Summary())

	for i, g := range r.Sorted() {
		fmt.Fprintf(&b, "\n[%d] %s (%d)\n", i+1, g.Label, len(g.Members))
		shown := g.Members
		if maxMembers > 0 && len(shown) > maxMembers {
			shown = shown[:maxMembers]
		}
		for _, m := range shown {
			fmt.Fprintf(&b, "  - %s\n", m)
		}
		if rest := len(g.Members) - len(shown); rest > 0 {
			fmt.Fprintf(&b, "  ... and %d more\n", rest)
		}
	}

	if len(r.Skipped) > 0 {
		fmt.Fprintf(&b, "\nSkipped (%d, no features):\n", len(r.Skipped))
		for _, s := range r.Skipped {
			fmt.Fprintf(&b, "  - %q\n", s)
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}
