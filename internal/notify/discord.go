package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/jacklau/clusterkit/internal/report"
)

// Discord limits embed field values to 1024 characters.
const discordFieldLimit = 1024

// DiscordNotifier sends clustering reports to a Discord webhook.
type DiscordNotifier struct {
	webhookURL string
	client     *http.Client
}

// NewDiscordNotifier creates a DiscordNotifier with the given webhook URL.
func NewDiscordNotifier(webhookURL string) *DiscordNotifier {
	return &DiscordNotifier{
		webhookURL: webhookURL,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// discordEmbed represents a Discord embed object.
type discordEmbed struct {
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Color       int            `json:"color"`
	Fields      []discordField `json:"fields"`
	Footer      *discordFooter `json:"footer,omitempty"`
}

// discordField represents a field in a Discord embed.
type discordField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

// discordFooter represents the footer of a Discord embed.
type discordFooter struct {
	Text string `json:"text"`
}

// discordPayload is the top-level Discord webhook payload.
type discordPayload struct {
	Embeds []discordEmbed `json:"embeds"`
}

// BuildDiscordPayload creates the Discord embed message payload for a report.
func BuildDiscordPayload(r *report.Report) discordPayload {
	title := "Clustering Results"
	if r.Source != "" {
		title = fmt.Sprintf("Clustering Results: %s", r.Source)
	}

	var fields []discordField
	for _, g := range topClusters(r, maxGroupsShown) {
		fields = append(fields, discordField{
			Name:  fmt.Sprintf("%s (%d)", g.Label, len(g.Members)),
			Value: truncate(formatMembers(g.Members, maxMembersShown), discordFieldLimit),
		})
	}

	embed := discordEmbed{
		Title:       title,
		Description: r.Summary(),
		Color:       3447003, // blue
		Fields:      fields,
		Footer: &discordFooter{
			Text: fmt.Sprintf("clusterkit - %s features", r.Features),
		},
	}

	return discordPayload{
		Embeds: []discordEmbed{embed},
	}
}

// Notify sends a Discord notification for the given report.
// Retries once on failure.
func (d *DiscordNotifier) Notify(ctx context.Context, r *report.Report) error {
	body, err := json.Marshal(BuildDiscordPayload(r))
	if err != nil {
		return fmt.Errorf("marshaling discord payload: %w", err)
	}
	return postWithRetry(ctx, d.client, d.webhookURL, "discord", body)
}
