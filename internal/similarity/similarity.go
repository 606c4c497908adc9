// Package similarity measures cosine similarity between opaque elements
// through a caller-supplied feature extractor.
package similarity

import (
	"fmt"

	"github.com/jacklau/clusterkit/internal/vecmath"
)

// FeaturesFunc returns the feature vector of an element.
type FeaturesFunc[E any] func(el E) ([]float64, error)

// CosineSimilarity returns the cosine similarity of the feature vectors of a and b.
func CosineSimilarity[E any](a, b E, features FeaturesFunc[E]) (float64, error) {
	fa, err := features(a)
	if err != nil {
		return 0, fmt.Errorf("features: %w", err)
	}
	fb, err := features(b)
	if err != nil {
		return 0, fmt.Errorf("features: %w", err)
	}
	return vecmath.Cosine(fa, fb)
}

// Distance returns 1 - CosineSimilarity(a, b).
func Distance[E any](a, b E, features FeaturesFunc[E]) (float64, error) {
	sim, err := CosineSimilarity(a, b, features)
	if err != nil {
		return 0, err
	}
	return 1 - sim, nil
}
