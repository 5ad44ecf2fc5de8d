package types

import (
	"errors"
	"fmt"
	"time"
)

// Validation errors
var (
	ErrEmptyQuery   = errors.New("query cannot be empty")
	ErrEmptySlug    = errors.New("slug cannot be empty")
	ErrEmptyID      = errors.New("id cannot be empty")
	ErrEmptyText    = errors.New("text cannot be empty")
	ErrInvalidLimit = errors.New("limit must be positive")
)

// Book is the metadata record for one indexed source.
type Book struct {
	Slug       string    `json:"slug"`
	Title      string    `json:"title"`
	Author     string    `json:"author"`
	Subject    string    `json:"subject"`
	FilePath   string    `json:"file_path,omitempty"`
	ChunkCount int       `json:"chunk_count"`
	AddedAt    time.Time `json:"added_at"`
}

// Validate checks if the Book has all required fields set.
func (b *Book) Validate() error {
	if b.Slug == "" {
		return ErrEmptySlug
	}
	if b.Title == "" {
		return errors.New("title cannot be empty")
	}
	return nil
}

// Chapter is a positional record inside a book, used for citations.
type Chapter struct {
	BookSlug string `json:"book_slug"`
	Number   int    `json:"number"`
	Title    string `json:"title"`
	Start    int    `json:"start"`
	End      int    `json:"end"`
}

// Chunk is an immutable passage of text produced by ingestion. Retrieval
// results reference chunks by ID and never copy or mutate them.
type Chunk struct {
	ID           string `json:"id"`
	SourceSlug   string `json:"source_slug"`
	ChapterNum   int    `json:"chapter_num"`
	ChapterTitle string `json:"chapter_title"`
	Start        int    `json:"start"`
	End          int    `json:"end"`
	Text         string `json:"text"`
	EmbeddingID  string `json:"embedding_id,omitempty"`
}

// Validate checks if the Chunk has all required fields set.
func (c *Chunk) Validate() error {
	if c.ID == "" {
		return ErrEmptyID
	}
	if c.SourceSlug == "" {
		return ErrEmptySlug
	}
	if c.Text == "" {
		return ErrEmptyText
	}
	return nil
}

// Citation points a reader back to the exact passage a result came from.
type Citation struct {
	SourceSlug   string `json:"source_slug"`
	SourceTitle  string `json:"source_title,omitempty"`
	ChapterNum   int    `json:"chapter_num"`
	ChapterTitle string `json:"chapter_title"`
	Start        int    `json:"start"`
	End          int    `json:"end"`
}

// String renders the citation in the bracketed form used across all
// detail levels.
func (c Citation) String() string {
	title := c.SourceTitle
	if title == "" {
		title = c.SourceSlug
	}
	return fmt.Sprintf("[%s, Ch. %d: %q, loc %d-%d]", title, c.ChapterNum, c.ChapterTitle, c.Start, c.End)
}

// CitationForChunk builds the citation for a chunk, optionally enriched
// with the book title.
func CitationForChunk(chunk *Chunk, sourceTitle string) Citation {
	return Citation{
		SourceSlug:   chunk.SourceSlug,
		SourceTitle:  sourceTitle,
		ChapterNum:   chunk.ChapterNum,
		ChapterTitle: chunk.ChapterTitle,
		Start:        chunk.Start,
		End:          chunk.End,
	}
}

// Concept is a node in the concept graph.
type Concept struct {
	ID          string   `json:"id"`
	DisplayName string   `json:"display_name"`
	Description string   `json:"description,omitempty"`
	SourceSlug  string   `json:"source_slug,omitempty"`
	ChunkIDs    []string `json:"chunk_ids,omitempty"`
}

// Validate checks if the Concept has all required fields set.
func (c *Concept) Validate() error {
	if c.ID == "" {
		return ErrEmptyID
	}
	return nil
}

// Topic is a cross-book theme readers browse and scope retrieval by.
// Unlike a Concept it is not a graph node; topics group chunks across
// the whole library rather than within one book's curated graph.
type Topic struct {
	Slug        string   `json:"slug"`
	DisplayName string   `json:"display_name"`
	Description string   `json:"description,omitempty"`
	Subject     string   `json:"subject,omitempty"`
	Related     []string `json:"related,omitempty"`
}

// Validate checks if the Topic has all required fields set.
func (t *Topic) Validate() error {
	if t.Slug == "" {
		return ErrEmptySlug
	}
	return nil
}

// TopicOccurrence links a topic to one chunk that discusses it. There
// is at most one occurrence per (topic, chunk) pair; re-indexing a book
// replaces its occurrences.
type TopicOccurrence struct {
	TopicSlug string  `json:"topic_slug"`
	ChunkID   string  `json:"chunk_id"`
	BookSlug  string  `json:"book_slug"`
	Relevance float64 `json:"relevance"`
}

// Validate checks if the TopicOccurrence has all required fields set.
func (o *TopicOccurrence) Validate() error {
	if o.TopicSlug == "" {
		return ErrEmptySlug
	}
	if o.ChunkID == "" {
		return ErrEmptyID
	}
	return nil
}

// RelationshipKind is the closed set of typed edges between concepts.
type RelationshipKind string

const (
	KindSupports    RelationshipKind = "supports"
	KindElaborates  RelationshipKind = "elaborates"
	KindContradicts RelationshipKind = "contradicts"
	KindRelated     RelationshipKind = "related"
	KindImplements  RelationshipKind = "implements"
	KindSimilar     RelationshipKind = "similar"
)

// RelationshipKinds lists every valid kind in lexical order.
func RelationshipKinds() []RelationshipKind {
	return []RelationshipKind{
		KindContradicts,
		KindElaborates,
		KindImplements,
		KindRelated,
		KindSimilar,
		KindSupports,
	}
}

// ValidRelationshipKind reports whether kind is a member of the closed set.
func ValidRelationshipKind(kind RelationshipKind) bool {
	switch kind {
	case KindSupports, KindElaborates, KindContradicts, KindRelated, KindImplements, KindSimilar:
		return true
	}
	return false
}

// Relationship is a directed, typed edge in the concept graph. The graph
// may contain cycles; traversal is responsible for termination.
type Relationship struct {
	From       string           `json:"from"`
	To         string           `json:"to"`
	Kind       RelationshipKind `json:"kind"`
	SourceSlug string           `json:"source_slug,omitempty"`
}

// Validate checks if the Relationship has all required fields set.
func (r *Relationship) Validate() error {
	if r.From == "" || r.To == "" {
		return ErrEmptyID
	}
	if !ValidRelationshipKind(r.Kind) {
		return fmt.Errorf("invalid relationship kind %q", r.Kind)
	}
	return nil
}
