// Package graph provides the concept-graph retrieval path: a typed
// graph store port, an in-memory implementation, and a deterministic
// breadth-first traverser used for graph expansion and concept tracing.
package graph

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/readwell/tomes/pkg/types"
)

// Edge is one typed step out of a concept, in either direction.
type Edge struct {
	// Kind is the relationship type of the edge.
	Kind types.RelationshipKind
	// To is the concept on the other end.
	To string
	// Outgoing is true when the edge points away from the queried concept.
	Outgoing bool
}

// Store is the graph port. Implementations must return neighbors in a
// stable order: (kind, other-id) lexical, outgoing before incoming on a
// full tie.
type Store interface {
	// Concept returns a concept by ID, or types.ErrConceptNotFound.
	Concept(ctx context.Context, id string) (*types.Concept, error)
	// Neighbors returns every edge touching the concept, both directions,
	// optionally restricted to the given kinds.
	Neighbors(ctx context.Context, id string, kinds []types.RelationshipKind) ([]Edge, error)
}

// Memory is an in-process Store backed by adjacency maps.
type Memory struct {
	mu       sync.RWMutex
	concepts map[string]*types.Concept
	out      map[string][]types.Relationship
	in       map[string][]types.Relationship
}

// NewMemory returns an empty in-memory graph.
func NewMemory() *Memory {
	return &Memory{
		concepts: make(map[string]*types.Concept),
		out:      make(map[string][]types.Relationship),
		in:       make(map[string][]types.Relationship),
	}
}

// AddConcept inserts or replaces a concept node.
func (m *Memory) AddConcept(c *types.Concept) error {
	if err := c.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.concepts[c.ID] = c
	return nil
}

// AddRelationship inserts a typed edge. Both endpoints must exist.
func (m *Memory) AddRelationship(rel types.Relationship) error {
	if err := rel.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.concepts[rel.From]; !ok {
		return fmt.Errorf("%w: %s", types.ErrConceptNotFound, rel.From)
	}
	if _, ok := m.concepts[rel.To]; !ok {
		return fmt.Errorf("%w: %s", types.ErrConceptNotFound, rel.To)
	}
	m.out[rel.From] = append(m.out[rel.From], rel)
	m.in[rel.To] = append(m.in[rel.To], rel)
	return nil
}

// Concept implements Store.
func (m *Memory) Concept(_ context.Context, id string) (*types.Concept, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.concepts[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", types.ErrConceptNotFound, id)
	}
	return c, nil
}

// Concepts returns every concept in ID order.
func (m *Memory) Concepts(_ context.Context) ([]*types.Concept, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*types.Concept, 0, len(m.concepts))
	for _, c := range m.concepts {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Neighbors implements Store.
func (m *Memory) Neighbors(_ context.Context, id string, kinds []types.RelationshipKind) ([]Edge, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.concepts[id]; !ok {
		return nil, fmt.Errorf("%w: %s", types.ErrConceptNotFound, id)
	}

	var kindSet map[types.RelationshipKind]struct{}
	if len(kinds) > 0 {
		kindSet = make(map[types.RelationshipKind]struct{}, len(kinds))
		for _, k := range kinds {
			kindSet[k] = struct{}{}
		}
	}
	allowed := func(k types.RelationshipKind) bool {
		if kindSet == nil {
			return true
		}
		_, ok := kindSet[k]
		return ok
	}

	var edges []Edge
	for _, rel := range m.out[id] {
		if allowed(rel.Kind) {
			edges = append(edges, Edge{Kind: rel.Kind, To: rel.To, Outgoing: true})
		}
	}
	for _, rel := range m.in[id] {
		if allowed(rel.Kind) {
			edges = append(edges, Edge{Kind: rel.Kind, To: rel.From, Outgoing: false})
		}
	}

	SortEdges(edges)
	return edges, nil
}

// SortEdges orders edges by (kind, other-id), outgoing first on a full
// tie. Every Store implementation returns edges in this order so that
// traversal is deterministic regardless of backend.
func SortEdges(edges []Edge) {
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].Kind != edges[j].Kind {
			return edges[i].Kind < edges[j].Kind
		}
		if edges[i].To != edges[j].To {
			return edges[i].To < edges[j].To
		}
		return edges[i].Outgoing && !edges[j].Outgoing
	})
}
