// Package vector provides the semantic retrieval path: an index that
// maps a query embedding to the most similar chunks, with optional
// scope filtering by source.
package vector

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/readwell/tomes/pkg/types"
)

// Hit is one scored result from a similarity search. Scores are cosine
// similarity normalized to [0, 1].
type Hit struct {
	Chunk *types.Chunk
	Score float64
}

// Index is the semantic search port. Implementations must be safe for
// concurrent searches and must return hits in descending score order
// with a deterministic tie-break.
type Index interface {
	// SimilaritySearch returns up to topK hits for the query vector,
	// restricted to the given source slugs when sourceSet is non-nil.
	SimilaritySearch(ctx context.Context, query []float32, sourceSet map[string]struct{}, topK int) ([]Hit, error)
}

// CosineSimilarity computes the cosine of the angle between two vectors.
// Mismatched lengths or a zero vector yield 0.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

type entry struct {
	chunk *types.Chunk
	vec   []float32
	seq   int
}

// MemoryIndex is a brute-force in-memory index. Insertion order is the
// final tie-break, which keeps repeated searches over the same corpus
// byte-identical.
type MemoryIndex struct {
	mu      sync.RWMutex
	entries []entry
}

// NewMemoryIndex returns an empty index.
func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{}
}

// Add indexes a chunk under its embedding vector.
func (m *MemoryIndex) Add(chunk *types.Chunk, vec []float32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, entry{chunk: chunk, vec: vec, seq: len(m.entries)})
}

// Remove drops every entry belonging to a source.
func (m *MemoryIndex) Remove(sourceSlug string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.entries[:0]
	for _, e := range m.entries {
		if e.chunk.SourceSlug != sourceSlug {
			kept = append(kept, e)
		}
	}
	m.entries = kept
}

// Len returns the number of indexed chunks.
func (m *MemoryIndex) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// SimilaritySearch implements Index.
func (m *MemoryIndex) SimilaritySearch(ctx context.Context, query []float32, sourceSet map[string]struct{}, topK int) ([]Hit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if topK <= 0 {
		return nil, types.ErrInvalidLimit
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	type scored struct {
		entry
		score float64
	}
	results := make([]scored, 0, len(m.entries))
	for _, e := range m.entries {
		if sourceSet != nil {
			if _, ok := sourceSet[e.chunk.SourceSlug]; !ok {
				continue
			}
		}
		// Map cosine from [-1, 1] into [0, 1] so scores compose with
		// graph proximity on a common scale.
		score := (CosineSimilarity(query, e.vec) + 1) / 2
		results = append(results, scored{entry: e, score: score})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].score != results[j].score {
			return results[i].score > results[j].score
		}
		return results[i].seq < results[j].seq
	})

	if len(results) > topK {
		results = results[:topK]
	}
	hits := make([]Hit, len(results))
	for i, r := range results {
		hits[i] = Hit{Chunk: r.chunk, Score: r.score}
	}
	return hits, nil
}
