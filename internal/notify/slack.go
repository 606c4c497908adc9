package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/jacklau/clusterkit/internal/report"
)

// SlackNotifier sends clustering reports to a Slack webhook.
type SlackNotifier struct {
	webhookURL string
	client     *http.Client
}

// NewSlackNotifier creates a SlackNotifier with the given webhook URL.
func NewSlackNotifier(webhookURL string) *SlackNotifier {
	return &SlackNotifier{
		webhookURL: webhookURL,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// slackBlock represents a Slack Block Kit block.
type slackBlock struct {
	Type string     `json:"type"`
	Text *slackText `json:"text,omitempty"`
}

// slackText represents a text object in Slack Block Kit.
type slackText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// slackPayload is the top-level Slack message payload.
type slackPayload struct {
	Blocks []slackBlock `json:"blocks"`
}

// BuildSlackPayload creates the Slack Block Kit message payload for a report:
// a header, the summary and one section per cluster, largest first.
func BuildSlackPayload(r *report.Report) slackPayload {
	title := "Clustering Results"
	if r.Source != "" {
		title = fmt.Sprintf("Clustering Results: %s", r.Source)
	}

	blocks := []slackBlock{
		{
			Type: "header",
			Text: &slackText{Type: "plain_text", Text: title},
		},
		{
			Type: "section",
			Text: &slackText{Type: "mrkdwn", Text: r.Summary()},
		},
	}

	clusters := topClusters(r, maxGroupsShown)
	for _, g := range clusters {
		blocks = append(blocks, slackBlock{
			Type: "section",
			Text: &slackText{Type: "mrkdwn", Text: FormatGroup(g, maxMembersShown)},
		})
	}
	if len(clusters) == 0 {
		blocks = append(blocks, slackBlock{
			Type: "section",
			Text: &slackText{Type: "mrkdwn", Text: "_No clusters found: every text stands alone._"},
		})
	}

	return slackPayload{Blocks: blocks}
}

// Notify sends a Slack notification for the given report.
// Retries once on failure.
func (s *SlackNotifier) Notify(ctx context.Context, r *report.Report) error {
	body, err := json.Marshal(BuildSlackPayload(r))
	if err != nil {
		return fmt.Errorf("marshaling slack payload: %w", err)
	}
	return postWithRetry(ctx, s.client, s.webhookURL, "slack", body)
}
