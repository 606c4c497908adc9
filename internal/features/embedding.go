package features

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jacklau/clusterkit/internal/provider"
	"github.com/jacklau/clusterkit/internal/retry"
	"github.com/jacklau/clusterkit/internal/store"
	"github.com/jacklau/clusterkit/internal/vecmath"
)

const (
	defaultEmbedWorkers = 4
	defaultBatchSize    = 64
	defaultMaxChars     = 8000
)

// EmbeddingSource embeds texts with a provider. Vectors are cached by content
// hash and model when a cache is set; blank texts get an empty vector and are
// never sent to the provider.
type EmbeddingSource struct {
	embedder  provider.Embedder
	model     string
	cache     store.EmbeddingCache
	workers   int
	batchSize int
	maxChars  int
	policy    retry.Policy
	logger    *slog.Logger
	progress  func(done, total int)
}

// EmbeddingOption configures an EmbeddingSource.
type EmbeddingOption func(*EmbeddingSource)

// WithCache stores and reuses embeddings.
func WithCache(c store.EmbeddingCache) EmbeddingOption {
	return func(s *EmbeddingSource) { s.cache = c }
}

// WithWorkers sets how many provider requests run at once.
func WithWorkers(n int) EmbeddingOption {
	return func(s *EmbeddingSource) { s.workers = n }
}

// WithBatchSize sets the number of texts per request for batch embedders.
func WithBatchSize(n int) EmbeddingOption {
	return func(s *EmbeddingSource) { s.batchSize = n }
}

// WithMaxChars truncates texts to n runes before embedding.
func WithMaxChars(n int) EmbeddingOption {
	return func(s *EmbeddingSource) { s.maxChars = n }
}

// WithRetry sets the retry policy for provider calls. Only transient provider
// errors are retried unless the policy has its own predicate.
func WithRetry(p retry.Policy) EmbeddingOption {
	return func(s *EmbeddingSource) { s.policy = p }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) EmbeddingOption {
	return func(s *EmbeddingSource) { s.logger = l }
}

// WithProgress registers a callback run after each text is embedded or found
// in the cache. Calls are serialized.
func WithProgress(fn func(done, total int)) EmbeddingOption {
	return func(s *EmbeddingSource) { s.progress = fn }
}

// NewEmbeddingSource creates an EmbeddingSource. model names the embedding
// model and is part of the cache key.
func NewEmbeddingSource(embedder provider.Embedder, model string, opts ...EmbeddingOption) *EmbeddingSource {
	s := &EmbeddingSource{
		embedder:  embedder,
		model:     model,
		workers:   defaultEmbedWorkers,
		batchSize: defaultBatchSize,
		maxChars:  defaultMaxChars,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.workers < 1 {
		s.workers = 1
	}
	if s.batchSize < 1 {
		s.batchSize = 1
	}
	if s.policy.Retryable == nil {
		s.policy.Retryable = provider.IsTransient
	}
	if s.logger == nil {
		s.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if s.policy.OnRetry == nil {
		s.policy.OnRetry = func(attempt int, err error, delay time.Duration) {
			s.logger.Warn("embedding request failed, retrying",
				"attempt", attempt, "delay", delay, "model", s.model, "error", err)
		}
	}
	return s
}

// Name implements Source.
func (s *EmbeddingSource) Name() string {
	if s.model == "" {
		return "embedding"
	}
	return "embedding:" + s.model
}

// Vectors implements Source.
func (s *EmbeddingSource) Vectors(ctx context.Context, texts []string) ([][]float64, error) {
	vectors := make([][]float64, len(texts))
	hashes := make([]string, len(texts))

	var (
		mu   sync.Mutex
		done int
	)
	advance := func(n int) {
		if s.progress == nil {
			return
		}
		mu.Lock()
		done += n
		s.progress(done, len(texts))
		mu.Unlock()
	}

	var pending []int
	for i, text := range texts {
		if strings.TrimSpace(text) == "" {
			advance(1)
			continue
		}
		hashes[i] = ContentHash(text)
		if s.cache != nil {
			vec, ok, err := s.cache.GetEmbedding(hashes[i], s.model)
			if err != nil {
				s.logger.Warn("embedding cache read failed", "error", err)
			} else if ok {
				vectors[i] = vec
				advance(1)
				continue
			}
		}
		pending = append(pending, i)
	}

	s.logger.Debug("embedding texts",
		"total", len(texts), "cached", len(texts)-len(pending), "model", s.model)
	if len(pending) == 0 {
		return vectors, nil
	}

	// Each chunk is a set of indices into texts embedded by one request.
	size := 1
	if _, ok := s.embedder.(provider.BatchEmbedder); ok {
		size = s.batchSize
	}
	var chunks [][]int
	for start := 0; start < len(pending); start += size {
		end := min(start+size, len(pending))
		chunks = append(chunks, pending[start:end])
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for _, chunk := range chunks {
		chunk := chunk
		g.Go(func() error {
			vecs, err := s.embed(gctx, texts, chunk)
			if err != nil {
				return err
			}
			for k, idx := range chunk {
				vectors[idx] = vecs[k]
				if s.cache != nil {
					if err := s.cache.PutEmbedding(hashes[idx], s.model, vecs[k]); err != nil {
						s.logger.Warn("embedding cache write failed", "error", err)
					}
				}
			}
			advance(len(chunk))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return vectors, nil
}

// embed sends the texts at idx to the provider with retries.
func (s *EmbeddingSource) embed(ctx context.Context, texts []string, idx []int) ([][]float64, error) {
	batch := make([]string, len(idx))
	for k, i := range idx {
		batch[k] = truncate(texts[i], s.maxChars)
	}

	var raw [][]float32
	err := s.policy.Do(ctx, func() error {
		var err error
		if be, ok := s.embedder.(provider.BatchEmbedder); ok {
			raw, err = be.EmbedBatch(ctx, batch)
			return err
		}
		var v []float32
		v, err = s.embedder.Embed(ctx, batch[0])
		raw = [][]float32{v}
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("embedding text %d: %w", idx[0], err)
	}
	if len(raw) != len(batch) {
		return nil, fmt.Errorf("%w: got %d embeddings for %d texts", provider.ErrInvalidResponse, len(raw), len(batch))
	}

	out := make([][]float64, len(raw))
	for k, v := range raw {
		out[k] = vecmath.FromFloat32(v)
	}
	return out, nil
}

func truncate(text string, maxChars int) string {
	if maxChars <= 0 {
		return text
	}
	runes := []rune(text)
	if len(runes) <= maxChars {
		return text
	}
	return string(runes[:maxChars])
}
