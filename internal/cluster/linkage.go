package cluster

import (
	"fmt"
	"sort"
	"strings"

	"gonum.org/v1/gonum/floats"

	"github.com/jacklau/clusterkit/internal/similarity"
)

// Linkage computes a non-negative distance between two clusters from the
// cosine distances of their members.
type Linkage[C, E any] func(a, b C, elements ElementsFunc[C, E], features similarity.FeaturesFunc[E]) (float64, error)

// crossDistances returns 1 - cos(ea, eb) for every ea in a and eb in b.
func crossDistances[C, E any](a, b C, elements ElementsFunc[C, E], features similarity.FeaturesFunc[E]) ([]float64, error) {
	elemsA := elements(a)
	elemsB := elements(b)
	if len(elemsA) == 0 || len(elemsB) == 0 {
		return nil, ErrEmptyCluster
	}

	distances := make([]float64, 0, len(elemsA)*len(elemsB))
	for _, ea := range elemsA {
		for _, eb := range elemsB {
			d, err := similarity.Distance(ea, eb, features)
			if err != nil {
				return nil, err
			}
			distances = append(distances, d)
		}
	}
	return distances, nil
}

// Single is nearest-neighbour linkage: the smallest member distance. It
// favours chaining.
// https://en.wikipedia.org/wiki/Single-linkage_clustering
func Single[C, E any](a, b C, elements ElementsFunc[C, E], features similarity.FeaturesFunc[E]) (float64, error) {
	distances, err := crossDistances(a, b, elements, features)
	if err != nil {
		return 0, err
	}
	return floats.Min(distances), nil
}

// Complete is farthest-neighbour linkage: the largest member distance. It
// favours compact clusters.
// https://en.wikipedia.org/wiki/Complete-linkage_clustering
func Complete[C, E any](a, b C, elements ElementsFunc[C, E], features similarity.FeaturesFunc[E]) (float64, error) {
	distances, err := crossDistances(a, b, elements, features)
	if err != nil {
		return 0, err
	}
	return floats.Max(distances), nil
}

// Average is unweighted average linkage (UPGMA): the mean member distance.
// https://en.wikipedia.org/wiki/UPGMA
func Average[C, E any](a, b C, elements ElementsFunc[C, E], features similarity.FeaturesFunc[E]) (float64, error) {
	distances, err := crossDistances(a, b, elements, features)
	if err != nil {
		return 0, err
	}
	return floats.Sum(distances) / float64(len(distances)), nil
}

// LinkageNames lists the names accepted by LinkageByName.
func LinkageNames() []string {
	names := []string{"single", "complete", "average"}
	sort.Strings(names)
	return names
}

// LinkageByName resolves "single", "complete" or "average" ("upgma").
func LinkageByName[C, E any](name string) (Linkage[C, E], error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "single":
		return Single[C, E], nil
	case "complete":
		return Complete[C, E], nil
	case "average", "upgma":
		return Average[C, E], nil
	default:
		return nil, fmt.Errorf("%w: %q (want one of %s)", ErrUnknownLinkage, name, strings.Join(LinkageNames(), ", "))
	}
}
