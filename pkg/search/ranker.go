// Package search implements the hybrid retrieval engine: merging and
// ranking of vector and graph candidates, budgeted rendering, and the
// orchestrator that coordinates both retrieval paths per request.
package search

import (
	"fmt"
	"sort"

	"github.com/readwell/tomes/pkg/graph"
	"github.com/readwell/tomes/pkg/textutil"
	"github.com/readwell/tomes/pkg/types"
	"github.com/readwell/tomes/pkg/vector"
)

const (
	// DefaultDedupThreshold is the text-similarity level above which two
	// candidates collapse into one.
	DefaultDedupThreshold = 0.9
	// DefaultSeedScore anchors graph-only candidates when no vector hit
	// lands inside the seed concept's chunks.
	DefaultSeedScore = 0.5
)

// ChunkResolver maps a chunk ID to its record. Used to pull graph
// concepts forward into concrete candidate chunks.
type ChunkResolver func(id string) (*types.Chunk, error)

// Ranker merges vector hits and graph-expanded concepts into one
// deduplicated, deterministically ranked candidate list.
type Ranker struct {
	// DedupThreshold is the similarity at or above which two candidates merge.
	DedupThreshold float64
	// SeedScore is the fallback semantic anchor for graph-only candidates.
	SeedScore float64
	// Similarity measures normalized text similarity in [0, 1]. Defaults
	// to token-overlap so ranking stays offline and deterministic.
	Similarity func(a, b string) float64
}

// NewRanker returns a Ranker with the default policy.
func NewRanker() *Ranker {
	return &Ranker{
		DedupThreshold: DefaultDedupThreshold,
		SeedScore:      DefaultSeedScore,
		Similarity:     textutil.JaccardSimilarity,
	}
}

// decay discounts graph proximity by hop count.
func decay(depth int) float64 {
	return 1.0 / float64(1+depth)
}

// Merge combines both retrieval paths into a ranked candidate list.
// Chunks reachable by both paths score the maximum of the two, never the
// sum. Near-duplicates collapse into the higher-scored candidate, which
// absorbs the union of citations. Graph-pulled chunks outside scope are
// dropped silently; a nil scope admits everything. The returned list is
// fully ranked and NOT truncated; the caller applies its limit
// afterwards.
func (r *Ranker) Merge(hits []vector.Hit, visits []graph.Visit, resolve ChunkResolver, titleOf func(slug string) string, scope map[string]struct{}) ([]types.ScoredCandidate, []string) {
	var warnings []string
	byChunk := make(map[string]*types.ScoredCandidate)
	var order []string

	for _, hit := range hits {
		if _, ok := byChunk[hit.Chunk.ID]; ok {
			continue
		}
		byChunk[hit.Chunk.ID] = &types.ScoredCandidate{
			Chunk:          hit.Chunk,
			SemanticScore:  hit.Score,
			CompositeScore: hit.Score,
			Origin:         types.OriginPath{Direct: true},
			Citations:      []types.Citation{types.CitationForChunk(hit.Chunk, titleOf(hit.Chunk.SourceSlug))},
		}
		order = append(order, hit.Chunk.ID)
	}

	// Each seed's semantic anchor is the best vector score among its own
	// chunks; seeds with no scored chunk fall back to the default.
	seedScore := make(map[string]float64)
	for _, v := range visits {
		if v.Depth != 0 {
			continue
		}
		best := r.SeedScore
		for _, id := range v.Concept.ChunkIDs {
			if c, ok := byChunk[id]; ok && c.SemanticScore > best {
				best = c.SemanticScore
			}
		}
		seedScore[v.Concept.ID] = best
	}

	for _, v := range visits {
		anchor, ok := seedScore[v.Seed]
		if !ok {
			anchor = r.SeedScore
		}
		proximity := decay(v.Depth)
		score := anchor * proximity

		for _, id := range v.Concept.ChunkIDs {
			if existing, ok := byChunk[id]; ok {
				if proximity > existing.GraphProximity {
					existing.GraphProximity = proximity
				}
				if score > existing.CompositeScore {
					existing.CompositeScore = score
				}
				continue
			}
			chunk, err := resolve(id)
			if err != nil {
				warnings = append(warnings, fmt.Sprintf("concept %q references unknown chunk %q", v.Concept.ID, id))
				continue
			}
			if scope != nil {
				if _, ok := scope[chunk.SourceSlug]; !ok {
					continue
				}
			}
			byChunk[id] = &types.ScoredCandidate{
				Chunk:          chunk,
				GraphProximity: proximity,
				CompositeScore: score,
				Origin: types.OriginPath{
					SeedConcept:   v.Seed,
					Depth:         v.Depth,
					Relationships: v.Path,
				},
				Citations: []types.Citation{types.CitationForChunk(chunk, titleOf(chunk.SourceSlug))},
			}
			order = append(order, id)
		}
	}

	candidates := make([]types.ScoredCandidate, 0, len(order))
	for _, id := range order {
		candidates = append(candidates, *byChunk[id])
	}

	rankCandidates(candidates)
	candidates = r.collapse(candidates)
	// Citation counts change during collapse, so rank again.
	rankCandidates(candidates)
	return candidates, warnings
}

// collapse merges near-duplicate candidates in rank order: the first
// (higher-scored) of a similar pair survives and absorbs the other's
// citations.
func (r *Ranker) collapse(ranked []types.ScoredCandidate) []types.ScoredCandidate {
	kept := make([]types.ScoredCandidate, 0, len(ranked))
	for _, cand := range ranked {
		merged := false
		for i := range kept {
			if r.Similarity(kept[i].Chunk.Text, cand.Chunk.Text) >= r.DedupThreshold {
				kept[i].Citations = unionCitations(kept[i].Citations, cand.Citations)
				merged = true
				break
			}
		}
		if !merged {
			kept = append(kept, cand)
		}
	}
	return kept
}

func unionCitations(a, b []types.Citation) []types.Citation {
	seen := make(map[types.Citation]struct{}, len(a))
	for _, c := range a {
		seen[c] = struct{}{}
	}
	for _, c := range b {
		if _, ok := seen[c]; !ok {
			seen[c] = struct{}{}
			a = append(a, c)
		}
	}
	return a
}

// rankCandidates sorts by descending composite score; ties go to the
// candidate with more citations, then the lexically earlier source, then
// the earlier chunk location.
func rankCandidates(candidates []types.ScoredCandidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.CompositeScore != b.CompositeScore {
			return a.CompositeScore > b.CompositeScore
		}
		if len(a.Citations) != len(b.Citations) {
			return len(a.Citations) > len(b.Citations)
		}
		if a.Chunk.SourceSlug != b.Chunk.SourceSlug {
			return a.Chunk.SourceSlug < b.Chunk.SourceSlug
		}
		if a.Chunk.Start != b.Chunk.Start {
			return a.Chunk.Start < b.Chunk.Start
		}
		return a.Chunk.ID < b.Chunk.ID
	})
}
