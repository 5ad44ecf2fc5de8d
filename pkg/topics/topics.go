// Package topics maintains the cross-book topic registry: named themes
// that span sources, indexed down to the chunks that discuss them.
// Topics come in through curation files; occurrences are computed by
// matching topic phrases against a book's chunks. Retrieval uses the
// registry to resolve topic slugs into source scopes.
package topics

import (
	"fmt"
	"log/slog"

	"github.com/readwell/tomes/pkg/store"
	"github.com/readwell/tomes/pkg/types"
)

// Registry exposes the topic catalog over the store.
type Registry struct {
	store     *store.Store
	extractor *Extractor
	logger    *slog.Logger
}

// NewRegistry builds a registry over the store.
func NewRegistry(s *store.Store, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{store: s, extractor: NewExtractor(), logger: logger}
}

// Register inserts or replaces a topic.
func (r *Registry) Register(topic *types.Topic) error {
	if err := r.store.PutTopic(topic); err != nil {
		return fmt.Errorf("store topic %s: %w", topic.Slug, err)
	}
	return nil
}

// Get retrieves a topic by slug.
func (r *Registry) Get(slug string) (*types.Topic, error) {
	return r.store.GetTopic(slug)
}

// List returns all topics in slug order, optionally filtered by subject.
func (r *Registry) List(subject string) ([]*types.Topic, error) {
	return r.store.Topics(subject)
}

// Occurrences returns every indexed occurrence of a topic in chunk-ID
// order.
func (r *Registry) Occurrences(topicSlug string) ([]types.TopicOccurrence, error) {
	return r.store.Occurrences(topicSlug)
}

// SourcesFor returns the distinct book slugs that discuss a topic.
func (r *Registry) SourcesFor(topicSlug string) ([]string, error) {
	return r.store.SourcesForTopic(topicSlug)
}

// ForBook returns the topics with occurrences in a book.
func (r *Registry) ForBook(slug string) ([]*types.Topic, error) {
	return r.store.TopicsForBook(slug)
}

// IndexBook matches every registered topic against the book's chunks
// and stores the resulting occurrences. Returns how many occurrences
// were indexed. Books whose chunks mention no topic index cleanly to
// zero.
func (r *Registry) IndexBook(slug string) (int, error) {
	topics, err := r.store.Topics("")
	if err != nil {
		return 0, err
	}
	if len(topics) == 0 {
		return 0, nil
	}
	chunks, err := r.store.ChunksByBook(slug)
	if err != nil {
		return 0, err
	}

	occs := r.extractor.Extract(topics, chunks)
	if len(occs) == 0 {
		return 0, nil
	}
	if err := r.store.PutOccurrences(occs); err != nil {
		return 0, fmt.Errorf("index topics for %s: %w", slug, err)
	}
	r.logger.Debug("indexed topic occurrences",
		slog.String("book", slug),
		slog.Int("occurrences", len(occs)))
	return len(occs), nil
}
