package graph

import (
	"context"
	"errors"
	"fmt"

	"github.com/readwell/tomes/pkg/types"
)

// DefaultMaxDepth is how many relationship hops expansion walks when the
// caller does not say otherwise.
const DefaultMaxDepth = 1

// Visit is one concept reached during traversal, with the provenance
// needed for scoring and tracing.
type Visit struct {
	Concept *types.Concept
	// Depth is the hop count from the seed; seeds themselves are depth 0.
	Depth int
	// Path is the chain of relationship kinds walked from the seed.
	Path []types.RelationshipKind
	// Seed is the seed concept this visit was reached from.
	Seed string
	// SeedIndex is the position of that seed in the traversal input.
	SeedIndex int
}

// Result is the output of one traversal: visits in deterministic order
// plus warnings for seeds that were skipped.
type Result struct {
	Visits   []Visit
	Warnings []string
}

// Traverser runs bounded breadth-first expansion over a Store.
type Traverser struct {
	store    Store
	maxDepth int
}

// NewTraverser returns a traverser bounded at maxDepth hops. A
// non-positive depth falls back to the default.
func NewTraverser(store Store, maxDepth int) *Traverser {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	return &Traverser{store: store, maxDepth: maxDepth}
}

// Traverse expands breadth-first from each seed in order, optionally
// restricted to the given relationship kinds. A concept is visited at
// most once across all seeds, at its minimum depth; ties go to the
// earlier seed and then the lexically smaller relationship path. Seeds
// not present in the graph produce a warning, not an error. Cycles
// terminate through the visited set.
func (t *Traverser) Traverse(ctx context.Context, seeds []string, kinds []types.RelationshipKind) (*Result, error) {
	result := &Result{}
	visited := make(map[string]struct{})

	type frontierItem struct {
		id        string
		depth     int
		path      []types.RelationshipKind
		seed      string
		seedIndex int
	}

	var frontier []frontierItem
	for i, seed := range seeds {
		if _, ok := visited[seed]; ok {
			continue
		}
		concept, err := t.store.Concept(ctx, seed)
		if err != nil {
			if errors.Is(err, types.ErrConceptNotFound) {
				result.Warnings = append(result.Warnings, fmt.Sprintf("seed concept %q not found in graph", seed))
				continue
			}
			return nil, err
		}
		visited[seed] = struct{}{}
		result.Visits = append(result.Visits, Visit{Concept: concept, Depth: 0, Seed: seed, SeedIndex: i})
		frontier = append(frontier, frontierItem{id: seed, seed: seed, seedIndex: i})
	}

	for depth := 1; depth <= t.maxDepth && len(frontier) > 0; depth++ {
		var next []frontierItem
		for _, item := range frontier {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			edges, err := t.store.Neighbors(ctx, item.id, kinds)
			if err != nil {
				return nil, err
			}
			// Stores are not trusted to order their neighbor sets; the
			// traversal order invariant is imposed here.
			SortEdges(edges)
			for _, edge := range edges {
				if _, ok := visited[edge.To]; ok {
					continue
				}
				concept, err := t.store.Concept(ctx, edge.To)
				if err != nil {
					return nil, err
				}
				visited[edge.To] = struct{}{}

				path := make([]types.RelationshipKind, len(item.path)+1)
				copy(path, item.path)
				path[len(item.path)] = edge.Kind

				result.Visits = append(result.Visits, Visit{
					Concept:   concept,
					Depth:     depth,
					Path:      path,
					Seed:      item.seed,
					SeedIndex: item.seedIndex,
				})
				next = append(next, frontierItem{
					id:        edge.To,
					depth:     depth,
					path:      path,
					seed:      item.seed,
					seedIndex: item.seedIndex,
				})
			}
		}
		frontier = next
	}

	return result, nil
}
