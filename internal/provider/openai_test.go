package provider

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	openai "github.com/sashabaranov/go-openai"
)

// newTestClient creates an openai.Client that points at the given test server.
func newTestClient(serverURL string) *openai.Client {
	cfg := openai.DefaultConfig("test-key")
	cfg.BaseURL = serverURL
	return openai.NewClientWithConfig(cfg)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func openAIError(status int, msg string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, status, map[string]any{
			"error": map[string]any{"message": msg, "type": "server_error"},
		})
	}
}

func TestNewOpenAIEmbedder_Models(t *testing.T) {
	tests := []struct {
		model string
		want  openai.EmbeddingModel
	}{
		{"text-embedding-3-small", openai.SmallEmbedding3},
		{"text-embedding-3-large", openai.LargeEmbedding3},
		{"unknown-model", openai.SmallEmbedding3},
		{"", openai.SmallEmbedding3},
	}
	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			e := NewOpenAIEmbedder("test-api-key", tt.model)
			if e.client == nil {
				t.Fatal("expected non-nil client")
			}
			if e.model != tt.want {
				t.Errorf("model = %q, want %q", e.model, tt.want)
			}
		})
	}
}

func TestOpenAIEmbed_ValidResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/embeddings" {
			t.Errorf("expected path /embeddings, got %s", r.URL.Path)
		}
		writeJSON(w, http.StatusOK, openai.EmbeddingResponse{
			Data: []openai.Embedding{{Embedding: []float32{0.1, 0.2, 0.3}}},
		})
	}))
	defer server.Close()

	embedder := newOpenAIEmbedderWithClient(newTestClient(server.URL), "text-embedding-3-small")

	vec, err := embedder.Embed(context.Background(), "test text")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(vec) != 3 {
		t.Errorf("expected 3-element vector, got %d elements", len(vec))
	}
}

func TestOpenAIEmbedBatch_OrdersByIndex(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Input []string `json:"input"`
			Model string   `json:"model"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decoding request: %v", err)
		}
		if len(req.Input) != 2 {
			t.Errorf("expected 2 inputs, got %d", len(req.Input))
		}
		if req.Model != string(openai.SmallEmbedding3) {
			t.Errorf("unexpected model %q", req.Model)
		}
		writeJSON(w, http.StatusOK, openai.EmbeddingResponse{
			Data: []openai.Embedding{
				{Index: 1, Embedding: []float32{2}},
				{Index: 0, Embedding: []float32{1}},
			},
		})
	}))
	defer server.Close()

	embedder := newOpenAIEmbedderWithClient(newTestClient(server.URL), "")

	vecs, err := embedder.EmbedBatch(context.Background(), []string{"first", "second"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if vecs[0][0] != 1 || vecs[1][0] != 2 {
		t.Errorf("embeddings not ordered by index: %v", vecs)
	}
}

func TestOpenAIEmbed_EmptyDataResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, openai.EmbeddingResponse{Data: []openai.Embedding{}})
	}))
	defer server.Close()

	embedder := newOpenAIEmbedderWithClient(newTestClient(server.URL), "text-embedding-3-small")

	_, err := embedder.Embed(context.Background(), "test text")
	if !errors.Is(err, ErrInvalidResponse) {
		t.Errorf("expected ErrInvalidResponse, got: %v", err)
	}
}

func TestOpenAIEmbed_EmptyText(t *testing.T) {
	embedder := NewOpenAIEmbedder("test-key", "text-embedding-3-small")

	for _, text := range []string{"", "   "} {
		_, err := embedder.Embed(context.Background(), text)
		if !errors.Is(err, ErrEmptyText) {
			t.Errorf("Embed(%q): expected ErrEmptyText, got %v", text, err)
		}
	}
}

func TestOpenAIEmbedBatch_Empty(t *testing.T) {
	embedder := NewOpenAIEmbedder("test-key", "")
	vecs, err := embedder.EmbedBatch(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(vecs) != 0 {
		t.Errorf("expected no vectors, got %d", len(vecs))
	}
}

func TestOpenAIEmbed_ServerError(t *testing.T) {
	server := httptest.NewServer(openAIError(http.StatusInternalServerError, "internal server error"))
	defer server.Close()

	embedder := newOpenAIEmbedderWithClient(newTestClient(server.URL), "text-embedding-3-small")

	_, err := embedder.Embed(context.Background(), "test text")
	if err == nil {
		t.Fatal("expected error for server error response, got nil")
	}
	if IsTransient(err) {
		t.Errorf("500 should not be transient: %v", err)
	}
}

func TestOpenAIEmbed_RateLimit(t *testing.T) {
	server := httptest.NewServer(openAIError(http.StatusTooManyRequests, "slow down"))
	defer server.Close()

	embedder := newOpenAIEmbedderWithClient(newTestClient(server.URL), "text-embedding-3-small")

	_, err := embedder.Embed(context.Background(), "test text")
	if !errors.Is(err, ErrRateLimit) {
		t.Errorf("expected ErrRateLimit, got %v", err)
	}
}

func TestNewOpenAICompleter_DefaultModel(t *testing.T) {
	c := NewOpenAICompleter("test-key", "")
	if c.model != defaultOpenAIModel {
		t.Errorf("expected default model %q, got %q", defaultOpenAIModel, c.model)
	}
	if c.client == nil {
		t.Error("client should not be nil")
	}
}

func TestNewOpenAICompleter_CustomModel(t *testing.T) {
	c := NewOpenAICompleter("test-key", "gpt-4")
	if c.model != "gpt-4" {
		t.Errorf("expected custom model, got %q", c.model)
	}
}

func TestOpenAIComplete_ValidResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, openai.ChatCompletionResponse{
			Choices: []openai.ChatCompletionChoice{
				{Message: openai.ChatCompletionMessage{Content: `{"label": "Login failures"}`}},
			},
		})
	}))
	defer server.Close()

	completer := newOpenAICompleterWithClient(newTestClient(server.URL), "gpt-4o-mini")

	result, err := completer.Complete(context.Background(), "test prompt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != `{"label": "Login failures"}` {
		t.Errorf("unexpected completion %q", result)
	}
}

func TestOpenAIComplete_EmptyChoicesResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, openai.ChatCompletionResponse{Choices: []openai.ChatCompletionChoice{}})
	}))
	defer server.Close()

	completer := newOpenAICompleterWithClient(newTestClient(server.URL), "gpt-4o-mini")

	_, err := completer.Complete(context.Background(), "test prompt")
	if !errors.Is(err, ErrInvalidResponse) {
		t.Errorf("expected ErrInvalidResponse, got: %v", err)
	}
}

func TestOpenAIComplete_ServerError(t *testing.T) {
	server := httptest.NewServer(openAIError(http.StatusInternalServerError, "internal server error"))
	defer server.Close()

	completer := newOpenAICompleterWithClient(newTestClient(server.URL), "gpt-4o-mini")

	if _, err := completer.Complete(context.Background(), "test prompt"); err == nil {
		t.Fatal("expected error for server error response, got nil")
	}
}

func TestOpenAIComplete_GatewayTimeout(t *testing.T) {
	server := httptest.NewServer(openAIError(http.StatusGatewayTimeout, "upstream timeout"))
	defer server.Close()

	completer := newOpenAICompleterWithClient(newTestClient(server.URL), "gpt-4o-mini")

	_, err := completer.Complete(context.Background(), "test prompt")
	if !errors.Is(err, ErrTimeout) {
		t.Errorf("expected ErrTimeout, got %v", err)
	}
}
