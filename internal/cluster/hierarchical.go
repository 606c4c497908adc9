// Package cluster implements agglomerative hierarchical clustering over
// caller-defined clusters and elements.
//
// The package never looks inside a cluster or an element. It reaches members
// through an ElementsFunc, feature vectors through a similarity.FeaturesFunc
// and combines clusters through a MergeFunc, so callers may use any
// representation (indices, structs, annotated values).
//
// Merging is greedy and incremental: at each step the two nearest clusters
// are merged if their linkage distance is within the threshold. With single
// linkage a borderline element can pull two otherwise dissimilar groups
// together by chaining. That is a property of the linkage, and the merge
// order is kept as is.
package cluster

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"

	"golang.org/x/sync/errgroup"

	"github.com/jacklau/clusterkit/internal/similarity"
)

var (
	ErrEmptyCluster      = errors.New("cluster has no elements")
	ErrUndefinedDistance = errors.New("linkage distance is NaN")
	ErrUnknownLinkage    = errors.New("unknown linkage")
	ErrInvalidThreshold  = errors.New("distance threshold is NaN")
)

// ElementsFunc returns the members of a cluster.
type ElementsFunc[C, E any] func(c C) []E

// MergeFunc combines two clusters into one.
type MergeFunc[C any] func(a, b C) (C, error)

// Step records one merge. Left and Right index the cluster list as it was
// before the merge; Left < Right.
type Step struct {
	Left      int
	Right     int
	Distance  float64
	Remaining int
}

// Result is the outcome of a clustering run.
type Result[C any] struct {
	Clusters []C
	Steps    []Step
}

type settings struct {
	workers  int
	logger   *slog.Logger
	observer func(Step)
}

// Option configures an Engine.
type Option func(*settings)

// WithWorkers evaluates pairwise linkages on up to n goroutines. The nearest
// pair is still chosen sequentially, so results do not depend on n.
func WithWorkers(n int) Option {
	return func(s *settings) { s.workers = n }
}

// WithLogger sets the logger used for per-merge debug output.
func WithLogger(l *slog.Logger) Option {
	return func(s *settings) { s.logger = l }
}

// WithObserver registers a callback invoked after every merge.
func WithObserver(fn func(Step)) Option {
	return func(s *settings) { s.observer = fn }
}

// Engine merges clusters bottom-up until no pair is within the threshold.
type Engine[C, E any] struct {
	elements  ElementsFunc[C, E]
	features  similarity.FeaturesFunc[E]
	merge     MergeFunc[C]
	linkage   Linkage[C, E]
	threshold float64
	settings
}

// New creates an Engine.
func New[C, E any](elements ElementsFunc[C, E], features similarity.FeaturesFunc[E], merge MergeFunc[C], linkage Linkage[C, E], threshold float64, opts ...Option) *Engine[C, E] {
	e := &Engine[C, E]{
		elements:  elements,
		features:  features,
		merge:     merge,
		linkage:   linkage,
		threshold: threshold,
		settings:  settings{workers: 1},
	}
	for _, opt := range opts {
		opt(&e.settings)
	}
	if e.logger == nil {
		e.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if e.workers < 1 {
		e.workers = 1
	}
	return e
}

// Hierarchical clusters with default settings and returns the final clusters.
func Hierarchical[C, E any](clusters []C, elements ElementsFunc[C, E], features similarity.FeaturesFunc[E], linkage Linkage[C, E], distanceThreshold float64, merge MergeFunc[C]) ([]C, error) {
	res, err := New(elements, features, merge, linkage, distanceThreshold).Run(context.Background(), clusters)
	if err != nil {
		return nil, err
	}
	return res.Clusters, nil
}

// Run repeatedly merges the nearest pair of clusters while their distance
// does not exceed the threshold. The merged cluster goes first in the next
// list, followed by the untouched clusters in their previous order.
// Any error aborts the run; there is no partial result. A NaN threshold is
// rejected with ErrInvalidThreshold.
func (e *Engine[C, E]) Run(ctx context.Context, clusters []C) (*Result[C], error) {
	if math.IsNaN(e.threshold) {
		return nil, ErrInvalidThreshold
	}
	res := &Result[C]{Clusters: clusters}

	for len(res.Clusters) > 1 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		i, j, dist, err := e.nearest(ctx, res.Clusters)
		if err != nil {
			return nil, err
		}

		if dist > e.threshold {
			e.logger.Debug("nearest clusters beyond threshold",
				"clusters", len(res.Clusters), "distance", dist, "threshold", e.threshold)
			break
		}

		merged, err := e.merge(res.Clusters[i], res.Clusters[j])
		if err != nil {
			return nil, fmt.Errorf("merging clusters %d and %d: %w", i, j, err)
		}

		next := make([]C, 0, len(res.Clusters)-1)
		next = append(next, merged)
		for k, c := range res.Clusters {
			if k != i && k != j {
				next = append(next, c)
			}
		}
		res.Clusters = next

		step := Step{Left: i, Right: j, Distance: dist, Remaining: len(next)}
		res.Steps = append(res.Steps, step)
		e.logger.Debug("merged nearest clusters",
			"left", i, "right", j, "distance", dist, "similarity", 1-dist, "remaining", len(next))
		if e.observer != nil {
			e.observer(step)
		}
	}

	return res, nil
}

// nearest returns the pair with the smallest linkage distance. Pairs are
// visited in row-major order over i < j and only a strictly smaller distance
// replaces the current best, so ties go to the lowest i, then the lowest j.
func (e *Engine[C, E]) nearest(ctx context.Context, clusters []C) (int, int, float64, error) {
	n := len(clusters)
	type pair struct{ i, j int }
	pairs := make([]pair, 0, n*(n-1)/2)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			pairs = append(pairs, pair{i, j})
		}
	}

	distances := make([]float64, len(pairs))
	eval := func(k int) error {
		p := pairs[k]
		d, err := e.linkage(clusters[p.i], clusters[p.j], e.elements, e.features)
		if err != nil {
			return fmt.Errorf("linkage of clusters %d and %d: %w", p.i, p.j, err)
		}
		if math.IsNaN(d) {
			return fmt.Errorf("linkage of clusters %d and %d: %w", p.i, p.j, ErrUndefinedDistance)
		}
		distances[k] = d
		return nil
	}

	if e.workers > 1 && len(pairs) > 1 {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(e.workers)
		for k := range pairs {
			k := k
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				return eval(k)
			})
		}
		if err := g.Wait(); err != nil {
			return 0, 0, 0, err
		}
	} else {
		for k := range pairs {
			if err := eval(k); err != nil {
				return 0, 0, 0, err
			}
		}
	}

	best := 0
	for k := 1; k < len(distances); k++ {
		if distances[k] < distances[best] {
			best = k
		}
	}
	return pairs[best].i, pairs[best].j, distances[best], nil
}
