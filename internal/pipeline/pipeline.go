// Package pipeline runs one clustering job end to end: feature extraction,
// hierarchical clustering, labeling, and the optional save and notify steps.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jacklau/clusterkit/internal/cluster"
	"github.com/jacklau/clusterkit/internal/features"
	"github.com/jacklau/clusterkit/internal/notify"
	"github.com/jacklau/clusterkit/internal/report"
	"github.com/jacklau/clusterkit/internal/store"
)

// Labeler names a cluster from its member texts. It is satisfied by
// *label.Labeler.
type Labeler interface {
	Label(ctx context.Context, source string, members []string) (string, error)
}

// PipelineDeps holds the dependencies for the Pipeline. Labeler, Store and
// Notifier are optional.
type PipelineDeps struct {
	Features  features.Source
	Linkage   string
	Threshold float64
	Workers   int
	Labeler   Labeler
	Store     store.RunStore
	Notifier  notify.Notifier
	Logger    *slog.Logger
	// OnMerge is called after every merge.
	OnMerge func(cluster.Step)
}

// Pipeline clusters texts into a report.
type Pipeline struct {
	deps    PipelineDeps
	linkage cluster.Linkage[*group, int]
}

// New creates a new Pipeline with the given dependencies.
func New(deps PipelineDeps) (*Pipeline, error) {
	if deps.Features == nil {
		return nil, errors.New("pipeline requires a feature source")
	}
	linkage, err := cluster.LinkageByName[*group, int](deps.Linkage)
	if err != nil {
		return nil, err
	}
	if math.IsNaN(deps.Threshold) {
		return nil, fmt.Errorf("distance threshold: %w", cluster.ErrInvalidThreshold)
	}
	if deps.Threshold < 0 || deps.Threshold > 2 {
		return nil, fmt.Errorf("distance threshold %v outside [0, 2]", deps.Threshold)
	}
	if deps.Workers < 1 {
		deps.Workers = 1
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Pipeline{deps: deps, linkage: linkage}, nil
}

// Request is one clustering job. Source describes where the texts came from
// and is shown in reports; it may be empty.
type Request struct {
	Source string
	Texts  []string
	Save   bool
	Notify bool

	// OnFeatures, if set, receives the texts that have features and their
	// vectors, in input order, before clustering starts.
	OnFeatures func(texts []string, vectors [][]float64)
}

// group is a cluster of indices into the clustered texts.
type group struct {
	members []int
}

func groupMembers(g *group) []int { return g.members }

func mergeGroups(a, b *group) (*group, error) {
	members := make([]int, 0, len(a.members)+len(b.members))
	members = append(members, a.members...)
	members = append(members, b.members...)
	slices.Sort(members)
	return &group{members: members}, nil
}

// Run clusters the request's texts. Texts without features are reported as
// skipped. A failed notification is logged and does not fail the run.
func (p *Pipeline) Run(ctx context.Context, req Request) (*report.Report, error) {
	logger := p.deps.Logger.With("source", req.Source, "features", p.deps.Features.Name())
	start := time.Now()

	vectors, err := p.deps.Features.Vectors(ctx, req.Texts)
	if err != nil {
		return nil, fmt.Errorf("extracting features: %w", err)
	}
	kept, skipped := features.SplitEmpty(req.Texts, vectors)
	if len(skipped) > 0 {
		logger.Info("skipping texts without features", "count", len(skipped))
	}

	texts := make([]string, len(kept))
	keptVectors := make([][]float64, len(kept))
	initial := make([]*group, len(kept))
	for k, idx := range kept {
		texts[k] = req.Texts[idx]
		keptVectors[k] = vectors[idx]
		initial[k] = &group{members: []int{k}}
	}
	featuresOf := func(i int) ([]float64, error) { return keptVectors[i], nil }
	if req.OnFeatures != nil {
		req.OnFeatures(texts, keptVectors)
	}

	opts := []cluster.Option{
		cluster.WithWorkers(p.deps.Workers),
		cluster.WithLogger(logger),
	}
	if p.deps.OnMerge != nil {
		opts = append(opts, cluster.WithObserver(p.deps.OnMerge))
	}
	engine := cluster.New[*group, int](groupMembers, featuresOf, mergeGroups, p.linkage, p.deps.Threshold, opts...)

	result, err := engine.Run(ctx, initial)
	if err != nil {
		return nil, fmt.Errorf("clustering: %w", err)
	}

	groups, err := p.label(ctx, logger, req.Source, result.Clusters, texts, featuresOf)
	if err != nil {
		return nil, err
	}

	r := &report.Report{
		Source:    req.Source,
		Features:  p.deps.Features.Name(),
		Linkage:   p.deps.Linkage,
		Threshold: p.deps.Threshold,
		Groups:    groups,
		Skipped:   skipped,
		Merges:    len(result.Steps),
		CreatedAt: time.Now().UTC(),
	}
	logger.Info("clustering complete",
		"texts", r.Texts(), "groups", len(r.Groups), "clusters", r.Clusters(),
		"merges", r.Merges, "duration", time.Since(start))

	if req.Save && p.deps.Store != nil {
		id, err := p.deps.Store.SaveRun(r)
		if err != nil {
			return nil, fmt.Errorf("saving run: %w", err)
		}
		r.ID = id
		logger.Debug("run saved", "id", id)
	}

	if req.Notify && p.deps.Notifier != nil {
		if err := p.deps.Notifier.Notify(ctx, r); err != nil {
			logger.Error("notification failed", "error", err)
		}
	}

	return r, nil
}

// label names every group. Singletons are named by their only text; larger
// groups by the labeler when set, otherwise (or when it gives up) by their
// medoid text.
func (p *Pipeline) label(ctx context.Context, logger *slog.Logger, source string, clusters []*group, texts []string, featuresOf func(int) ([]float64, error)) ([]report.Group, error) {
	groups := make([]report.Group, len(clusters))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.deps.Workers)
	for i, c := range clusters {
		i, c := i, c
		members := make([]string, len(c.members))
		for k, idx := range c.members {
			members[k] = texts[idx]
		}
		groups[i].Members = members

		if len(members) == 1 {
			groups[i].Label = members[0]
			continue
		}

		g.Go(func() error {
			m, err := cluster.Medoid(c.members, featuresOf)
			if err != nil {
				return fmt.Errorf("finding medoid of group %d: %w", i, err)
			}
			groups[i].Label = members[m]

			if p.deps.Labeler == nil {
				return nil
			}
			name, err := p.deps.Labeler.Label(gctx, source, members)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				logger.Warn("labeling failed, using medoid", "group", i, "error", err)
				return nil
			}
			groups[i].Label = name
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return groups, nil
}
