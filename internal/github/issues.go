package github

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	gogithub "github.com/google/go-github/v60/github"
)

const maxPerPage = 100

type lister struct {
	logger  *slog.Logger
	backoff func(attempt int) time.Duration
}

// ListOption configures ListOpenIssues.
type ListOption func(*lister)

// WithLogger sets the logger used for rate limit and retry messages.
func WithLogger(l *slog.Logger) ListOption {
	return func(ls *lister) { ls.logger = l }
}

// WithBackoff replaces the server-error backoff schedule.
func WithBackoff(fn func(attempt int) time.Duration) ListOption {
	return func(ls *lister) { ls.backoff = fn }
}

// ListOpenIssues fetches open issues of owner/repo, newest first, following
// pagination. Pull requests are skipped. At most limit issues are returned;
// zero or less fetches all of them.
func ListOpenIssues(ctx context.Context, client *gogithub.Client, owner, repo string, limit int, opts ...ListOption) ([]Issue, error) {
	ls := &lister{
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		backoff: BackoffDuration,
	}
	for _, opt := range opts {
		opt(ls)
	}
	ls.logger = ls.logger.With("repo", owner+"/"+repo)

	listOpts := &gogithub.IssueListByRepoOptions{
		State:       "open",
		Sort:        "created",
		Direction:   "desc",
		ListOptions: gogithub.ListOptions{PerPage: maxPerPage},
	}

	var out []Issue
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		issues, resp, err := ls.fetchPage(ctx, client, owner, repo, listOpts)
		if err != nil {
			return nil, fmt.Errorf("fetching issues page %d: %w", max(listOpts.Page, 1), err)
		}

		for _, gh := range issues {
			if gh.IsPullRequest() {
				continue
			}
			out = append(out, convertIssue(gh))
			if limit > 0 && len(out) == limit {
				return out, nil
			}
		}

		if resp.NextPage == 0 {
			break
		}

		if rl := ParseRateLimit(resp.Response); rl.ShouldThrottle() {
			wait := rl.WaitDuration()
			ls.logger.Warn("rate limit low, waiting", "remaining", rl.Remaining, "wait", wait)
			if err := sleep(ctx, wait); err != nil {
				return nil, err
			}
		}
		listOpts.Page = resp.NextPage
	}

	ls.logger.Debug("fetched open issues", "count", len(out))
	return out, nil
}

// fetchPage lists one page, waiting out rate limits and retrying server
// errors with backoff.
func (ls *lister) fetchPage(ctx context.Context, client *gogithub.Client, owner, repo string, opts *gogithub.IssueListByRepoOptions) ([]*gogithub.Issue, *gogithub.Response, error) {
	for attempt := 0; attempt <= maxRetries; attempt++ {
		issues, resp, err := client.Issues.ListByRepo(ctx, owner, repo, opts)
		if err == nil {
			return issues, resp, nil
		}
		if resp == nil {
			return nil, nil, err
		}

		switch {
		case IsRateLimitError(resp.Response):
			wait, _ := HandleRateLimitError(resp.Response)
			ls.logger.Warn("rate limited, waiting", "wait", wait)
			if err := sleep(ctx, wait); err != nil {
				return nil, nil, err
			}
		case IsServerError(resp.Response):
			if attempt == maxRetries {
				return nil, resp, fmt.Errorf("server error after %d retries: %d", maxRetries, resp.StatusCode)
			}
			wait := ls.backoff(attempt)
			ls.logger.Warn("server error, retrying", "status", resp.StatusCode, "attempt", attempt+1, "wait", wait)
			if err := sleep(ctx, wait); err != nil {
				return nil, nil, err
			}
		default:
			return nil, resp, err
		}
	}
	return nil, nil, fmt.Errorf("exhausted retries")
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func convertIssue(gh *gogithub.Issue) Issue {
	issue := Issue{
		Number: gh.GetNumber(),
		Title:  gh.GetTitle(),
		Body:   gh.GetBody(),
		Author: gh.GetUser().GetLogin(),
	}
	for _, label := range gh.Labels {
		issue.Labels = append(issue.Labels, label.GetName())
	}
	if gh.CreatedAt != nil {
		issue.CreatedAt = gh.CreatedAt.Time
	}
	return issue
}
