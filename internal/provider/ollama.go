package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	defaultOllamaModel          = "llama3.1:8b"
	defaultOllamaEmbeddingModel = "nomic-embed-text"
	defaultOllamaURL            = "http://localhost:11434"
	ollamaTimeout               = 60 * time.Second
)

// ollamaClient holds what the Ollama embedder and completer share.
type ollamaClient struct {
	url    string
	model  string
	client *http.Client
}

func newOllamaClient(url, model, defaultModel string) ollamaClient {
	if url == "" {
		url = defaultOllamaURL
	}
	if model == "" {
		model = defaultModel
	}
	return ollamaClient{
		url:    strings.TrimRight(url, "/"),
		model:  model,
		client: &http.Client{Timeout: ollamaTimeout},
	}
}

// post sends body as JSON to path and returns the raw response body of a
// 200 reply. Status codes are mapped to the package sentinels.
func (o *ollamaClient) post(ctx context.Context, path string, body any) ([]byte, error) {
	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshaling ollama request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.url+path, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("creating ollama request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %s", ErrTimeout, ctx.Err())
		}
		return nil, fmt.Errorf("ollama request: %w", err)
	}
	defer func() {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	switch resp.StatusCode {
	case http.StatusTooManyRequests:
		return nil, fmt.Errorf("%w: HTTP 429", ErrRateLimit)
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		return nil, fmt.Errorf("%w: HTTP %d", ErrTimeout, resp.StatusCode)
	}

	respBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading ollama response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ollama returned status %d: %s", resp.StatusCode, string(respBytes))
	}
	return respBytes, nil
}

// OllamaEmbedder implements BatchEmbedder using Ollama's /api/embed endpoint.
type OllamaEmbedder struct {
	ollamaClient
}

// NewOllamaEmbedder creates a new Ollama embedding provider.
// Supported models: "nomic-embed-text" (768 dims), "mxbai-embed-large" (1024 dims).
func NewOllamaEmbedder(url, model string) *OllamaEmbedder {
	return &OllamaEmbedder{newOllamaClient(url, model, defaultOllamaEmbeddingModel)}
}

type ollamaEmbedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type ollamaEmbedResponse struct {
	Embeddings [][]float64 `json:"embeddings"`
}

// Embed returns a vector embedding for the given text.
func (e *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch embeds all texts in a single /api/embed request.
func (e *OllamaEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	for i, text := range texts {
		if strings.TrimSpace(text) == "" {
			return nil, fmt.Errorf("text %d: %w", i, ErrEmptyText)
		}
	}

	respBytes, err := e.post(ctx, "/api/embed", ollamaEmbedRequest{Model: e.model, Input: texts})
	if err != nil {
		return nil, err
	}

	var result ollamaEmbedResponse
	if err := json.Unmarshal(respBytes, &result); err != nil {
		return nil, fmt.Errorf("%w: decoding ollama response: %v", ErrInvalidResponse, err)
	}
	if len(result.Embeddings) != len(texts) {
		return nil, fmt.Errorf("%w: got %d embeddings for %d texts", ErrInvalidResponse, len(result.Embeddings), len(texts))
	}

	out := make([][]float32, len(texts))
	for i, emb := range result.Embeddings {
		if len(emb) == 0 {
			return nil, fmt.Errorf("%w: empty embedding at index %d", ErrInvalidResponse, i)
		}
		vec := make([]float32, len(emb))
		for k, v := range emb {
			vec[k] = float32(v)
		}
		out[i] = vec
	}
	return out, nil
}

var _ BatchEmbedder = (*OllamaEmbedder)(nil)

// OllamaCompleter implements the Completer interface using a local Ollama server.
type OllamaCompleter struct {
	ollamaClient
}

// NewOllamaCompleter creates a new OllamaCompleter.
// If url is empty, it defaults to http://localhost:11434.
// If model is empty, it defaults to llama3.1:8b.
func NewOllamaCompleter(url, model string) *OllamaCompleter {
	return &OllamaCompleter{newOllamaClient(url, model, defaultOllamaModel)}
}

type ollamaCompletionRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
	Format string `json:"format,omitempty"`
}

type ollamaCompletionResponse struct {
	Response string `json:"response"`
	Error    string `json:"error,omitempty"`
}

// Complete sends a prompt to the Ollama server and returns the text completion.
// Output is constrained to JSON, which is what the labeler asks for.
func (o *OllamaCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	respBytes, err := o.post(ctx, "/api/generate", ollamaCompletionRequest{
		Model:  o.model,
		Prompt: prompt,
		Format: "json",
	})
	if err != nil {
		return "", err
	}

	var ollamaResp ollamaCompletionResponse
	if err := json.Unmarshal(respBytes, &ollamaResp); err != nil {
		return "", fmt.Errorf("%w: %s", ErrInvalidResponse, err)
	}
	if ollamaResp.Error != "" {
		return "", fmt.Errorf("ollama error: %s", ollamaResp.Error)
	}

	return ollamaResp.Response, nil
}
