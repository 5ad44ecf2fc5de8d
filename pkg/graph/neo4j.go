package graph

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/readwell/tomes/pkg/types"
)

// Neo4j is a Store backed by a Neo4j database. Concepts are (:Concept)
// nodes keyed by id; relationships carry their kind as a property on a
// single :RELATES edge type so the closed kind set stays a data concern.
type Neo4j struct {
	driver   neo4j.DriverWithContext
	database string
}

// NewNeo4j connects to a Neo4j instance and verifies connectivity.
func NewNeo4j(ctx context.Context, uri, username, password, database string) (*Neo4j, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, fmt.Errorf("create neo4j driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		driver.Close(ctx)
		return nil, fmt.Errorf("verify neo4j connectivity: %w", err)
	}
	return &Neo4j{driver: driver, database: database}, nil
}

// Close releases the underlying driver.
func (n *Neo4j) Close(ctx context.Context) error {
	return n.driver.Close(ctx)
}

func (n *Neo4j) session(ctx context.Context) neo4j.SessionWithContext {
	return n.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: n.database})
}

// UpsertConcept merges a concept node by ID.
func (n *Neo4j) UpsertConcept(ctx context.Context, c *types.Concept) error {
	if err := c.Validate(); err != nil {
		return err
	}
	session := n.session(ctx)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		return tx.Run(ctx, `
			MERGE (c:Concept {id: $id})
			SET c.display_name = $display_name,
			    c.description = $description,
			    c.source_slug = $source_slug,
			    c.chunk_ids = $chunk_ids`,
			map[string]any{
				"id":           c.ID,
				"display_name": c.DisplayName,
				"description":  c.Description,
				"source_slug":  c.SourceSlug,
				"chunk_ids":    c.ChunkIDs,
			})
	})
	if err != nil {
		return fmt.Errorf("upsert concept %s: %w", c.ID, err)
	}
	return nil
}

// UpsertRelationship merges a typed edge between two existing concepts.
func (n *Neo4j) UpsertRelationship(ctx context.Context, rel types.Relationship) error {
	if err := rel.Validate(); err != nil {
		return err
	}
	session := n.session(ctx)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		return tx.Run(ctx, `
			MATCH (a:Concept {id: $from}), (b:Concept {id: $to})
			MERGE (a)-[r:RELATES {kind: $kind}]->(b)
			SET r.source_slug = $source_slug`,
			map[string]any{
				"from":        rel.From,
				"to":          rel.To,
				"kind":        string(rel.Kind),
				"source_slug": rel.SourceSlug,
			})
	})
	if err != nil {
		return fmt.Errorf("upsert relationship %s-[%s]->%s: %w", rel.From, rel.Kind, rel.To, err)
	}
	return nil
}

// Concept implements Store.
func (n *Neo4j) Concept(ctx context.Context, id string) (*types.Concept, error) {
	session := n.session(ctx)
	defer session.Close(ctx)

	record, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
			MATCH (c:Concept {id: $id})
			RETURN c.id AS id, c.display_name AS display_name,
			       c.description AS description, c.source_slug AS source_slug,
			       c.chunk_ids AS chunk_ids`,
			map[string]any{"id": id})
		if err != nil {
			return nil, err
		}
		return res.Single(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s", types.ErrConceptNotFound, id)
	}

	rec := record.(*neo4j.Record)
	concept := &types.Concept{ID: id}
	if v, ok := rec.Get("display_name"); ok && v != nil {
		concept.DisplayName = v.(string)
	}
	if v, ok := rec.Get("description"); ok && v != nil {
		concept.Description = v.(string)
	}
	if v, ok := rec.Get("source_slug"); ok && v != nil {
		concept.SourceSlug = v.(string)
	}
	if v, ok := rec.Get("chunk_ids"); ok && v != nil {
		for _, raw := range v.([]any) {
			concept.ChunkIDs = append(concept.ChunkIDs, raw.(string))
		}
	}
	return concept, nil
}

// Concepts returns every concept node in ID order.
func (n *Neo4j) Concepts(ctx context.Context) ([]*types.Concept, error) {
	session := n.session(ctx)
	defer session.Close(ctx)

	records, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
			MATCH (c:Concept)
			RETURN c.id AS id, c.display_name AS display_name,
			       c.description AS description, c.source_slug AS source_slug,
			       c.chunk_ids AS chunk_ids
			ORDER BY c.id`, nil)
		if err != nil {
			return nil, err
		}
		return res.Collect(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("list concepts: %w", err)
	}

	var concepts []*types.Concept
	for _, rec := range records.([]*neo4j.Record) {
		concept := &types.Concept{}
		if v, ok := rec.Get("id"); ok && v != nil {
			concept.ID = v.(string)
		}
		if v, ok := rec.Get("display_name"); ok && v != nil {
			concept.DisplayName = v.(string)
		}
		if v, ok := rec.Get("description"); ok && v != nil {
			concept.Description = v.(string)
		}
		if v, ok := rec.Get("source_slug"); ok && v != nil {
			concept.SourceSlug = v.(string)
		}
		if v, ok := rec.Get("chunk_ids"); ok && v != nil {
			for _, raw := range v.([]any) {
				concept.ChunkIDs = append(concept.ChunkIDs, raw.(string))
			}
		}
		concepts = append(concepts, concept)
	}
	return concepts, nil
}

// Neighbors implements Store. Edges come back unordered from Cypher and
// are sorted here so traversal sees the canonical order.
func (n *Neo4j) Neighbors(ctx context.Context, id string, kinds []types.RelationshipKind) ([]Edge, error) {
	kindStrings := make([]string, 0, len(kinds))
	for _, k := range kinds {
		kindStrings = append(kindStrings, string(k))
	}

	session := n.session(ctx)
	defer session.Close(ctx)

	records, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
			MATCH (c:Concept {id: $id})-[r:RELATES]-(other:Concept)
			WHERE size($kinds) = 0 OR r.kind IN $kinds
			RETURN r.kind AS kind, other.id AS other_id,
			       startNode(r).id = $id AS outgoing`,
			map[string]any{"id": id, "kinds": kindStrings})
		if err != nil {
			return nil, err
		}
		return res.Collect(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("neighbors of %s: %w", id, err)
	}

	var edges []Edge
	for _, rec := range records.([]*neo4j.Record) {
		kind, _ := rec.Get("kind")
		other, _ := rec.Get("other_id")
		outgoing, _ := rec.Get("outgoing")
		edges = append(edges, Edge{
			Kind:     types.RelationshipKind(kind.(string)),
			To:       other.(string),
			Outgoing: outgoing.(bool),
		})
	}
	SortEdges(edges)
	return edges, nil
}
