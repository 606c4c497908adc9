// Package features turns raw texts into the vectors the clustering core works
// on, either from character n-grams or from a provider's embeddings.
package features

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/jacklau/clusterkit/internal/ngram"
	"github.com/jacklau/clusterkit/internal/vecmath"
)

// Source produces one vector per text, in input order. All vectors returned
// by one call share a dimension, except that a text with no usable content
// may get an empty or all-zero vector.
type Source interface {
	Vectors(ctx context.Context, texts []string) ([][]float64, error)
	// Name identifies the source in reports and logs.
	Name() string
}

// NGramSource builds term-frequency vectors over character n-grams with a
// vocabulary shared by all texts of one call.
type NGramSource struct {
	Size      int
	Padding   ngram.Padding
	StopWords bool
	IDF       bool
}

// Name implements Source.
func (s NGramSource) Name() string {
	if s.IDF {
		return "ngram-tfidf"
	}
	return "ngram"
}

// Vectors implements Source.
func (s NGramSource) Vectors(ctx context.Context, texts []string) ([][]float64, error) {
	var stop []string
	if s.StopWords {
		stop = ngram.StopWordsEnglish
	}

	docs := make([]ngram.Tokens, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		tokens, err := ngram.Tokenize(ngram.Words(text, stop), s.Size, s.Padding)
		if err != nil {
			return nil, fmt.Errorf("tokenizing text %d: %w", i, err)
		}
		docs[i] = tokens
	}

	vocab := ngram.NewVocabulary(docs)
	var idf []float64
	if s.IDF {
		idf = vocab.IDF(docs)
	}

	vectors := make([][]float64, len(docs))
	for i, doc := range docs {
		tf := vocab.Frequencies(doc)
		if s.IDF {
			var err error
			if tf, err = ngram.Weight(tf, idf); err != nil {
				return nil, fmt.Errorf("weighting text %d: %w", i, err)
			}
		}
		vectors[i] = tf
	}
	return vectors, nil
}

// ContentHash returns a stable hex digest of text, used as the embedding
// cache key. Surrounding whitespace is ignored.
func ContentHash(text string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(text)))
	return hex.EncodeToString(sum[:])
}

// SplitEmpty separates texts whose vector is empty or all zero. The core
// rejects zero vectors, so these are reported as skipped instead.
// kept holds the indices of usable vectors in input order.
func SplitEmpty(texts []string, vectors [][]float64) (kept []int, skipped []string) {
	for i, v := range vectors {
		if len(v) == 0 || vecmath.Norm(v) == 0 {
			if i < len(texts) {
				skipped = append(skipped, texts[i])
			}
			continue
		}
		kept = append(kept, i)
	}
	return kept, skipped
}
