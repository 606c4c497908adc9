package github

import (
	"fmt"
	"strings"
	"time"
)

// Issue is an open GitHub issue as clusterkit uses it.
type Issue struct {
	Number    int
	Title     string
	Body      string
	Author    string
	Labels    []string
	CreatedAt time.Time
}

// Titles returns the title of each issue, in order.
func Titles(issues []Issue) []string {
	out := make([]string, len(issues))
	for i, is := range issues {
		out[i] = is.Title
	}
	return out
}

// ParseRepo splits "owner/repo" into its parts.
func ParseRepo(s string) (owner, repo string, err error) {
	parts := strings.SplitN(s, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" || strings.Contains(parts[1], "/") {
		return "", "", fmt.Errorf("invalid repo format: expected owner/repo, got %q", s)
	}
	return parts[0], parts[1], nil
}
