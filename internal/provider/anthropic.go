package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const (
	defaultAnthropicModel = "claude-sonnet-4-20250514"

	labelSystemPrompt = "You name clusters of short texts. Reply with JSON only."
)

// AnthropicCompleter is a Completer backed by the Anthropic Messages API.
// Completions run at temperature 0 so that the same cluster gets the same
// label across runs.
type AnthropicCompleter struct {
	client *anthropic.Client
	model  string
}

// NewAnthropicCompleter creates an AnthropicCompleter. An empty model means
// claude-sonnet-4-20250514.
func NewAnthropicCompleter(apiKey, model string) *AnthropicCompleter {
	return newAnthropicCompleter(model, option.WithAPIKey(apiKey))
}

func newAnthropicCompleter(model string, opts ...option.RequestOption) *AnthropicCompleter {
	if model == "" {
		model = defaultAnthropicModel
	}
	client := anthropic.NewClient(opts...)
	return &AnthropicCompleter{client: &client, model: model}
}

// classifyAnthropicError maps SDK errors to the package sentinels.
func classifyAnthropicError(ctx context.Context, err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case 429, 529:
			return fmt.Errorf("%w: %s", ErrRateLimit, err)
		case 408, 504:
			return fmt.Errorf("%w: %s", ErrTimeout, err)
		}
	}
	if ctx.Err() != nil {
		return fmt.Errorf("%w: %s", ErrTimeout, ctx.Err())
	}
	return fmt.Errorf("anthropic completion: %w", err)
}

// Complete returns the text blocks of the reply joined together.
func (a *AnthropicCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	msg, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.Model(a.model),
		MaxTokens:   labelMaxTokens,
		Temperature: anthropic.Float(0),
		System:      []anthropic.TextBlockParam{{Text: labelSystemPrompt}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", classifyAnthropicError(ctx, err)
	}

	var parts []string
	for _, block := range msg.Content {
		if block.Type == "text" && block.Text != "" {
			parts = append(parts, block.Text)
		}
	}
	if len(parts) == 0 {
		return "", fmt.Errorf("%w: no text content in response", ErrInvalidResponse)
	}
	return strings.Join(parts, ""), nil
}

var _ Completer = (*AnthropicCompleter)(nil)
