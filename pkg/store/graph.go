package store

import (
	"encoding/json"
	"sort"

	"github.com/dgraph-io/badger/v4"

	"github.com/readwell/tomes/pkg/types"
)

// PutConcept inserts or replaces a concept node.
func (s *Store) PutConcept(concept *types.Concept) error {
	if concept.ID == "" {
		return types.ErrEmptyID
	}
	return s.db.Update(func(tx *badger.Txn) error {
		return putJSON(tx, conceptKey(concept.ID), concept)
	})
}

// GetConcept retrieves a concept by ID.
func (s *Store) GetConcept(id string) (*types.Concept, error) {
	var concept types.Concept
	err := s.db.View(func(tx *badger.Txn) error {
		return getJSON(tx, conceptKey(id), &concept)
	})
	if err != nil {
		return nil, err
	}
	return &concept, nil
}

// Concepts returns every concept in ID order.
func (s *Store) Concepts() ([]*types.Concept, error) {
	var concepts []*types.Concept
	err := s.iteratePrefix(conceptPrefix(), func(val []byte) error {
		var c types.Concept
		if err := json.Unmarshal(val, &c); err != nil {
			return err
		}
		concepts = append(concepts, &c)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(concepts, func(i, j int) bool { return concepts[i].ID < concepts[j].ID })
	return concepts, nil
}

// PutRelationship inserts or replaces a typed edge and its incoming-edge
// index entry.
func (s *Store) PutRelationship(rel *types.Relationship) error {
	if err := rel.Validate(); err != nil {
		return err
	}
	return s.db.Update(func(tx *badger.Txn) error {
		if err := putJSON(tx, relKey(rel.From, string(rel.Kind), rel.To), rel); err != nil {
			return err
		}
		return tx.Set(relInKey(rel.To, string(rel.Kind), rel.From), nil)
	})
}

// Relationships returns every edge in key order (from, kind, to).
func (s *Store) Relationships() ([]*types.Relationship, error) {
	var rels []*types.Relationship
	err := s.iteratePrefix(relPrefix(), func(val []byte) error {
		var r types.Relationship
		if err := json.Unmarshal(val, &r); err != nil {
			return err
		}
		rels = append(rels, &r)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rels, nil
}

// RelationshipsFrom returns the outgoing edges of a concept in key order.
func (s *Store) RelationshipsFrom(conceptID string) ([]*types.Relationship, error) {
	var rels []*types.Relationship
	err := s.iteratePrefix(relFromPrefix(conceptID), func(val []byte) error {
		var r types.Relationship
		if err := json.Unmarshal(val, &r); err != nil {
			return err
		}
		rels = append(rels, &r)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rels, nil
}
