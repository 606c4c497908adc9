package provider

import (
	"context"
	"errors"
	"fmt"
)

// Sentinel errors for provider operations.
var (
	ErrRateLimit       = errors.New("rate limit exceeded")
	ErrTimeout         = errors.New("request timed out")
	ErrInvalidResponse = errors.New("invalid response from provider")
	ErrEmptyText       = errors.New("cannot embed empty text")
)

// IsTransient reports whether err is worth retrying.
func IsTransient(err error) bool {
	return errors.Is(err, ErrRateLimit) || errors.Is(err, ErrTimeout)
}

// Embedder generates vector embeddings from text.
type Embedder interface {
	// Embed returns a vector embedding for the given text.
	Embed(ctx context.Context, text string) ([]float32, error)
}

// BatchEmbedder is implemented by embedders that can embed several texts in
// one request. The result has one vector per input, in input order.
type BatchEmbedder interface {
	Embedder
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Completer generates text completions from a prompt.
type Completer interface {
	// Complete returns a text completion for the given prompt.
	Complete(ctx context.Context, prompt string) (string, error)
}

// NewEmbedder builds an Embedder for the configured provider type.
// An empty type returns (nil, nil): embeddings are optional.
func NewEmbedder(providerType, model, apiKey, url string) (Embedder, error) {
	switch providerType {
	case "openai":
		return NewOpenAIEmbedder(apiKey, model), nil
	case "ollama":
		return NewOllamaEmbedder(url, model), nil
	case "":
		return nil, nil
	default:
		return nil, fmt.Errorf("unsupported embedding provider type: %q", providerType)
	}
}

// NewCompleter builds a Completer for the configured provider type.
// An empty type returns (nil, nil).
func NewCompleter(providerType, model, apiKey, url string) (Completer, error) {
	switch providerType {
	case "openai":
		return NewOpenAICompleter(apiKey, model), nil
	case "anthropic":
		return NewAnthropicCompleter(apiKey, model), nil
	case "ollama":
		return NewOllamaCompleter(url, model), nil
	case "":
		return nil, nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider type: %q", providerType)
	}
}
