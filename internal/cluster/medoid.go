package cluster

import (
	"github.com/jacklau/clusterkit/internal/similarity"
)

// Medoid returns the index of the element with the highest mean cosine
// similarity to the other elements. The first one wins ties. A single
// element is its own medoid.
func Medoid[E any](elements []E, features similarity.FeaturesFunc[E]) (int, error) {
	if len(elements) == 0 {
		return -1, ErrEmptyCluster
	}
	if len(elements) == 1 {
		return 0, nil
	}

	best, bestScore := 0, 0.0
	for i, a := range elements {
		var sum float64
		for j, b := range elements {
			if i == j {
				continue
			}
			sim, err := similarity.CosineSimilarity(a, b, features)
			if err != nil {
				return -1, err
			}
			sum += sim
		}
		score := sum / float64(len(elements)-1)
		if i == 0 || score > bestScore {
			best, bestScore = i, score
		}
	}
	return best, nil
}
