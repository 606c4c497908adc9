package notify

import (
	"fmt"
	"strings"
	"time"

	"github.com/jacklau/clusterkit/internal/report"
)

const (
	maxGroupsShown  = 10
	maxMembersShown = 3
)

// FormatGroup formats one group as a heading with a few sample members.
// Example: "*Login failures* (3)\n> login fails\n> cannot login\n> _+1 more_"
func FormatGroup(g report.Group, maxMembers int) string {
	return fmt.Sprintf("*%s* (%d)\n%s", g.Label, len(g.Members), formatMembers(g.Members, maxMembers))
}

// formatMembers quotes up to maxMembers members, one per line.
func formatMembers(members []string, maxMembers int) string {
	shown := members
	if maxMembers > 0 && len(shown) > maxMembers {
		shown = shown[:maxMembers]
	}
	lines := make([]string, 0, len(shown)+1)
	for _, m := range shown {
		lines = append(lines, "> "+m)
	}
	if rest := len(members) - len(shown); rest > 0 {
		lines = append(lines, fmt.Sprintf("> _+%d more_", rest))
	}
	return strings.Join(lines, "\n")
}

// truncate cuts s to at most n bytes without splitting a rune, marking the cut.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := 0
	for i := range s {
		if i > n-3 {
			break
		}
		cut = i
	}
	return s[:cut] + "..."
}

// topClusters returns the largest groups with more than one member, at most n.
func topClusters(r *report.Report, n int) []report.Group {
	var out []report.Group
	for _, g := range r.Sorted() {
		if len(g.Members) < 2 || len(out) == n {
			break
		}
		out = append(out, g)
	}
	return out
}

// TimeAgo returns a human-readable relative time string.
func TimeAgo(t time.Time) string {
	d := time.Since(t)

	switch {
	case d < time.Minute:
		secs := int(d.Seconds())
		if secs <= 1 {
			return "just now"
		}
		return fmt.Sprintf("%d sec ago", secs)
	case d < time.Hour:
		mins := int(d.Minutes())
		if mins == 1 {
			return "1 min ago"
		}
		return fmt.Sprintf("%d min ago", mins)
	case d < 24*time.Hour:
		hours := int(d.Hours())
		if hours == 1 {
			return "1 hour ago"
		}
		return fmt.Sprintf("%d hours ago", hours)
	default:
		days := int(d.Hours() / 24)
		if days == 1 {
			return "1 day ago"
		}
		return fmt.Sprintf("%d days ago", days)
	}
}
