// Package notify posts clustering reports to chat webhooks.
package notify

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/jacklau/clusterkit/internal/report"
)

// Notifier sends a clustering report somewhere.
type Notifier interface {
	Notify(ctx context.Context, r *report.Report) error
}

// MultiNotifier sends notifications to multiple notifiers.
type MultiNotifier struct {
	notifiers []Notifier
	logger    *slog.Logger
}

// NewMultiNotifier creates a MultiNotifier from the given notifiers.
func NewMultiNotifier(notifiers ...Notifier) *MultiNotifier {
	return &MultiNotifier{notifiers: notifiers, logger: slog.Default()}
}

// Notify sends the report to all configured notifiers.
// It logs errors from individual notifiers but continues to the rest.
// Returns the last error encountered, if any.
func (m *MultiNotifier) Notify(ctx context.Context, r *report.Report) error {
	var lastErr error
	for _, n := range m.notifiers {
		if err := n.Notify(ctx, r); err != nil {
			m.logger.Warn("notifier error", "error", err)
			lastErr = err
		}
	}
	return lastErr
}

// NewNotifier creates a Notifier based on the notifyType.
// Supported types: "slack", "discord", "both".
func NewNotifier(notifyType string, slackURL, discordURL string) (Notifier, error) {
	switch notifyType {
	case "slack":
		if slackURL == "" {
			return nil, fmt.Errorf("slack webhook URL is required for slack notifier")
		}
		return NewSlackNotifier(slackURL), nil
	case "discord":
		if discordURL == "" {
			return nil, fmt.Errorf("discord webhook URL is required for discord notifier")
		}
		return NewDiscordNotifier(discordURL), nil
	case "both":
		if slackURL == "" {
			return nil, fmt.Errorf("slack webhook URL is required for 'both' notifier")
		}
		if discordURL == "" {
			return nil, fmt.Errorf("discord webhook URL is required for 'both' notifier")
		}
		return NewMultiNotifier(
			NewSlackNotifier(slackURL),
			NewDiscordNotifier(discordURL),
		), nil
	default:
		return nil, fmt.Errorf("unsupported notifier type: %q", notifyType)
	}
}

// postJSON posts body to a webhook and fails on any non-2xx status.
func postJSON(ctx context.Context, client *http.Client, url, name string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("sending request: %w", err)
	}
	defer func() {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%s webhook returned %d: %s", name, resp.StatusCode, string(respBody))
	}
	return nil
}

// postWithRetry posts once and retries once on failure, unless the context is done.
func postWithRetry(ctx context.Context, client *http.Client, url, name string, body []byte) error {
	err := postJSON(ctx, client, url, name, body)
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return fmt.Errorf("%s notify failed: %w", name, err)
	}
	slog.Warn(name+" notify failed, retrying", "error", err)
	if err := postJSON(ctx, client, url, name, body); err != nil {
		return fmt.Errorf("%s notify failed after retry: %w", name, err)
	}
	return nil
}
