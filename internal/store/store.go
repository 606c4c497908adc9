package store

import "github.com/jacklau/clusterkit/internal/report"

// RunStore persists clustering reports. It is satisfied by *DB and can be
// replaced with a mock for testing.
type RunStore interface {
	// SaveRun stores a report and returns its new run ID.
	SaveRun(r *report.Report) (int64, error)
}

// EmbeddingCache stores embedding vectors keyed by content hash and model.
type EmbeddingCache interface {
	// GetEmbedding returns the cached vector and whether it was found.
	GetEmbedding(hash, model string) ([]float64, bool, error)

	// PutEmbedding stores or replaces a cached vector.
	PutEmbedding(hash, model string, vector []float64) error
}

// Compile-time checks that *DB satisfies the store interfaces.
var (
	_ RunStore       = (*DB)(nil)
	_ EmbeddingCache = (*DB)(nil)
)
