package store

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/jacklau/clusterkit/internal/vecmath"
)

// GetEmbedding returns the cached vector for a content hash and model.
func (d *DB) GetEmbedding(hash, model string) ([]float64, bool, error) {
	var blob []byte
	err := d.db.QueryRow(`
		SELECT vector FROM embeddings WHERE content_hash = ? AND model = ?`,
		hash, model,
	).Scan(&blob)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("getting embedding: %w", err)
	}

	vec, err := vecmath.DecodeVector(blob)
	if err != nil {
		return nil, false, fmt.Errorf("decoding embedding: %w", err)
	}
	return vec, true, nil
}

// PutEmbedding stores or replaces the cached vector for a content hash and model.
func (d *DB) PutEmbedding(hash, model string, vector []float64) error {
	if len(vector) == 0 {
		return fmt.Errorf("refusing to cache empty embedding for %s", hash)
	}
	_, err := d.db.Exec(`
		INSERT INTO embeddings (content_hash, model, vector)
		VALUES (?, ?, ?)
		ON CONFLICT(content_hash, model) DO UPDATE SET
			vector = excluded.vector,
			created_at = datetime('now')`,
		hash, model, vecmath.EncodeVector(vector),
	)
	if err != nil {
		return fmt.Errorf("putting embedding: %w", err)
	}
	return nil
}
