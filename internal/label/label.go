// Package label names clusters of texts with an LLM.
package label

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/jacklau/clusterkit/internal/provider"
)

// ErrNoLabel is returned when the model gave no usable label, even after the
// stricter retry. Callers fall back to a member of the cluster.
var ErrNoLabel = errors.New("no usable label from model")

const (
	defaultTimeout    = 30 * time.Second
	defaultMaxMembers = 20
	maxLabelRunes     = 80
)

// Labeler uses an LLM completer to name clusters.
type Labeler struct {
	completer  provider.Completer
	timeout    time.Duration
	maxMembers int
}

// NewLabeler creates a Labeler. A zero timeout defaults to 30 seconds.
// At most maxMembers texts are put in a prompt; zero or less means 20.
func NewLabeler(completer provider.Completer, timeout time.Duration, maxMembers int) *Labeler {
	if timeout == 0 {
		timeout = defaultTimeout
	}
	if maxMembers <= 0 {
		maxMembers = defaultMaxMembers
	}
	return &Labeler{
		completer:  completer,
		timeout:    timeout,
		maxMembers: maxMembers,
	}
}

type llmResponse struct {
	Label string `json:"label"`
}

// codeFenceRe matches markdown code fences around JSON.
var codeFenceRe = regexp.MustCompile("(?s)```(?:json)?\\s*\n?(.*?)\\s*```")

// parseResponse parses the model's JSON response, stripping markdown fences
// if present, and returns the cleaned label.
func parseResponse(raw string) (string, error) {
	cleaned := strings.TrimSpace(raw)
	if matches := codeFenceRe.FindStringSubmatch(cleaned); len(matches) > 1 {
		cleaned = strings.TrimSpace(matches[1])
	}

	var resp llmResponse
	if err := json.Unmarshal([]byte(cleaned), &resp); err != nil {
		return "", fmt.Errorf("%w: %s", provider.ErrInvalidResponse, err)
	}

	label := strings.Join(strings.Fields(resp.Label), " ")
	label = strings.Trim(label, `"'.`)
	if label == "" {
		return "", fmt.Errorf("%w: empty label", provider.ErrInvalidResponse)
	}
	if r := []rune(label); len(r) > maxLabelRunes {
		label = strings.TrimSpace(string(r[:maxLabelRunes]))
	}
	return label, nil
}

const retryPromptSuffix = `

IMPORTANT: You MUST respond with ONLY valid JSON. No markdown, no code fences, no extra text.
Example: {"label": "Login failures after update"}`

// Label asks the model for a short name for members. source describes where
// the texts came from and may be empty.
func (l *Labeler) Label(ctx context.Context, source string, members []string) (string, error) {
	if len(members) > l.maxMembers {
		members = members[:l.maxMembers]
	}
	prompt, err := BuildPrompt(source, members)
	if err != nil {
		return "", fmt.Errorf("building prompt: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	raw, err := l.completer.Complete(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("completing prompt: %w", err)
	}

	label, err := parseResponse(raw)
	if err == nil {
		return label, nil
	}

	// Retry once with stricter prompt
	raw, err = l.completer.Complete(ctx, prompt+retryPromptSuffix)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNoLabel, err)
	}
	label, err = parseResponse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNoLabel, err)
	}
	return label, nil
}
