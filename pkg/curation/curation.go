// Package curation loads hand-written YAML files that describe a book's
// concepts and the typed relationships between them, validates them, and
// imports them into the store and graph. Curation is the only write path
// into the concept graph.
package curation

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/readwell/tomes/pkg/store"
	"github.com/readwell/tomes/pkg/types"
)

// File is the YAML document shape:
//
//	source: whole-brain-child
//	concepts:
//	  - id: emotion-coaching
//	    name: Emotion Coaching
//	    description: Acknowledge the feeling before correcting.
//	    chunks: [whole-brain-child-ch1-0003]
//	relationships:
//	  - from: emotion-coaching
//	    to: name-it-to-tame-it
//	    kind: elaborates
//	topics:
//	  - slug: emotional-regulation
//	    name: Emotional Regulation
//	    subject: parenting
type File struct {
	Source        string              `yaml:"source"`
	Concepts      []ConceptEntry      `yaml:"concepts"`
	Relationships []RelationshipEntry `yaml:"relationships"`
	Topics        []TopicEntry        `yaml:"topics"`
}

// ConceptEntry is one curated concept.
type ConceptEntry struct {
	ID          string   `yaml:"id"`
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	Chunks      []string `yaml:"chunks"`
}

// RelationshipEntry is one curated edge.
type RelationshipEntry struct {
	From string `yaml:"from"`
	To   string `yaml:"to"`
	Kind string `yaml:"kind"`
}

// TopicEntry is one curated cross-book topic. Occurrences are not
// curated by hand; they are indexed by phrase matching after import.
type TopicEntry struct {
	Slug        string   `yaml:"slug"`
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	Subject     string   `yaml:"subject"`
	Related     []string `yaml:"related"`
}

// ValidationResult separates hard errors (file unusable) from warnings
// (imported anyway, worth fixing).
type ValidationResult struct {
	Errors   []string
	Warnings []string
}

// Valid reports whether the file can be imported.
func (v *ValidationResult) Valid() bool {
	return len(v.Errors) == 0
}

// Parse reads and decodes one curation file.
func Parse(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read curation file: %w", err)
	}
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode curation file %s: %w", path, err)
	}
	return &f, nil
}

// Validate checks structural consistency: non-empty IDs, valid
// relationship kinds, no duplicate concepts, no dangling edge endpoints.
// Edges may point at concepts defined in other curation files, so an
// endpoint missing from this file is a warning, not an error, unless
// known is non-nil and does not contain it either.
func Validate(f *File, known map[string]struct{}) *ValidationResult {
	result := &ValidationResult{}

	if f.Source == "" {
		result.Errors = append(result.Errors, "source is required")
	}
	if len(f.Concepts) == 0 {
		result.Warnings = append(result.Warnings, "file defines no concepts")
	}

	local := make(map[string]struct{}, len(f.Concepts))
	for i, c := range f.Concepts {
		if c.ID == "" {
			result.Errors = append(result.Errors, fmt.Sprintf("concept %d: id is required", i))
			continue
		}
		if _, dup := local[c.ID]; dup {
			result.Errors = append(result.Errors, fmt.Sprintf("duplicate concept id %q", c.ID))
			continue
		}
		local[c.ID] = struct{}{}
		if c.Name == "" {
			result.Warnings = append(result.Warnings, fmt.Sprintf("concept %q has no display name", c.ID))
		}
		if len(c.Chunks) == 0 {
			result.Warnings = append(result.Warnings, fmt.Sprintf("concept %q references no chunks", c.ID))
		}
	}

	defined := func(id string) bool {
		if _, ok := local[id]; ok {
			return true
		}
		if known != nil {
			_, ok := known[id]
			return ok
		}
		return false
	}

	seenEdges := make(map[string]struct{})
	for i, r := range f.Relationships {
		if r.From == "" || r.To == "" {
			result.Errors = append(result.Errors, fmt.Sprintf("relationship %d: from and to are required", i))
			continue
		}
		if !types.ValidRelationshipKind(types.RelationshipKind(r.Kind)) {
			result.Errors = append(result.Errors, fmt.Sprintf("relationship %s -> %s: invalid kind %q", r.From, r.To, r.Kind))
			continue
		}
		key := r.From + "|" + r.Kind + "|" + r.To
		if _, dup := seenEdges[key]; dup {
			result.Warnings = append(result.Warnings, fmt.Sprintf("duplicate relationship %s -[%s]-> %s", r.From, r.Kind, r.To))
			continue
		}
		seenEdges[key] = struct{}{}

		for _, endpoint := range []string{r.From, r.To} {
			if !defined(endpoint) {
				if known != nil {
					result.Errors = append(result.Errors, fmt.Sprintf("relationship endpoint %q is not a known concept", endpoint))
				} else {
					result.Warnings = append(result.Warnings, fmt.Sprintf("relationship endpoint %q is not defined in this file", endpoint))
				}
			}
		}
	}

	localTopics := make(map[string]struct{}, len(f.Topics))
	for i, topic := range f.Topics {
		if topic.Slug == "" {
			result.Errors = append(result.Errors, fmt.Sprintf("topic %d: slug is required", i))
			continue
		}
		if _, dup := localTopics[topic.Slug]; dup {
			result.Errors = append(result.Errors, fmt.Sprintf("duplicate topic slug %q", topic.Slug))
			continue
		}
		localTopics[topic.Slug] = struct{}{}
		if topic.Name == "" {
			result.Warnings = append(result.Warnings, fmt.Sprintf("topic %q has no display name", topic.Slug))
		}
	}
	for _, topic := range f.Topics {
		for _, related := range topic.Related {
			if _, ok := localTopics[related]; !ok {
				result.Warnings = append(result.Warnings, fmt.Sprintf("topic %q links to %q, which is not defined in this file", topic.Slug, related))
			}
		}
	}

	return result
}

// GraphWriter is the graph side of an import.
type GraphWriter interface {
	AddConcept(c *types.Concept) error
	AddRelationship(rel types.Relationship) error
}

// Import writes a validated file into the store and graph. Concepts land
// in both; relationships land in both as well so the graph can be
// rebuilt from the store on startup. Topics land in the store only;
// their occurrences are indexed separately.
func Import(f *File, s *store.Store, g GraphWriter) error {
	for _, c := range f.Concepts {
		concept := &types.Concept{
			ID:          c.ID,
			DisplayName: c.Name,
			Description: c.Description,
			SourceSlug:  f.Source,
			ChunkIDs:    c.Chunks,
		}
		if err := s.PutConcept(concept); err != nil {
			return fmt.Errorf("store concept %s: %w", c.ID, err)
		}
		if err := g.AddConcept(concept); err != nil {
			return fmt.Errorf("graph concept %s: %w", c.ID, err)
		}
	}
	for _, r := range f.Relationships {
		rel := types.Relationship{
			From:       r.From,
			To:         r.To,
			Kind:       types.RelationshipKind(r.Kind),
			SourceSlug: f.Source,
		}
		if err := s.PutRelationship(&rel); err != nil {
			return fmt.Errorf("store relationship %s->%s: %w", r.From, r.To, err)
		}
		if err := g.AddRelationship(rel); err != nil {
			return fmt.Errorf("graph relationship %s->%s: %w", r.From, r.To, err)
		}
	}
	for _, topic := range f.Topics {
		t := &types.Topic{
			Slug:        topic.Slug,
			DisplayName: topic.Name,
			Description: topic.Description,
			Subject:     topic.Subject,
			Related:     topic.Related,
		}
		if err := s.PutTopic(t); err != nil {
			return fmt.Errorf("store topic %s: %w", topic.Slug, err)
		}
	}
	return nil
}
