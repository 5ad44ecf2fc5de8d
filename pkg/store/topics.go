package store

import (
	"encoding/json"
	"sort"

	"github.com/dgraph-io/badger/v4"

	"github.com/readwell/tomes/pkg/types"
)

// PutTopic inserts or replaces a topic record.
func (s *Store) PutTopic(topic *types.Topic) error {
	if err := topic.Validate(); err != nil {
		return err
	}
	return s.db.Update(func(tx *badger.Txn) error {
		return putJSON(tx, topicKey(topic.Slug), topic)
	})
}

// GetTopic retrieves a topic by slug.
func (s *Store) GetTopic(slug string) (*types.Topic, error) {
	var topic types.Topic
	err := s.db.View(func(tx *badger.Txn) error {
		return getJSON(tx, topicKey(slug), &topic)
	})
	if err != nil {
		return nil, err
	}
	return &topic, nil
}

// Topics returns all topics, optionally filtered by subject, in slug
// order.
func (s *Store) Topics(subject string) ([]*types.Topic, error) {
	var topics []*types.Topic
	err := s.iteratePrefix(topicPrefix(), func(val []byte) error {
		var topic types.Topic
		if err := json.Unmarshal(val, &topic); err != nil {
			return err
		}
		if subject == "" || topic.Subject == subject {
			topics = append(topics, &topic)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return topics, nil
}

// PutOccurrences stores a batch of topic occurrences. The key carries
// the (topic, chunk) pair, so writing the same pair twice replaces it.
func (s *Store) PutOccurrences(occs []types.TopicOccurrence) error {
	return s.db.Update(func(tx *badger.Txn) error {
		for i := range occs {
			if err := occs[i].Validate(); err != nil {
				return err
			}
			if err := putJSON(tx, topicOccKey(occs[i].TopicSlug, occs[i].ChunkID), &occs[i]); err != nil {
				return err
			}
		}
		return nil
	})
}

// Occurrences returns every occurrence of a topic in chunk-ID order.
func (s *Store) Occurrences(topicSlug string) ([]types.TopicOccurrence, error) {
	var occs []types.TopicOccurrence
	err := s.iteratePrefix(topicOccPrefix(topicSlug), func(val []byte) error {
		var occ types.TopicOccurrence
		if err := json.Unmarshal(val, &occ); err != nil {
			return err
		}
		occs = append(occs, occ)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return occs, nil
}

// SourcesForTopic returns the distinct book slugs with an indexed
// occurrence of the topic, in lexical order. Unknown topics yield an
// empty list, mirroring ListBooks on an unknown subject.
func (s *Store) SourcesForTopic(topicSlug string) ([]string, error) {
	occs, err := s.Occurrences(topicSlug)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{})
	var slugs []string
	for _, occ := range occs {
		if _, ok := seen[occ.BookSlug]; !ok {
			seen[occ.BookSlug] = struct{}{}
			slugs = append(slugs, occ.BookSlug)
		}
	}
	sort.Strings(slugs)
	return slugs, nil
}

// TopicsForBook returns the topics with at least one occurrence in the
// book, in slug order.
func (s *Store) TopicsForBook(slug string) ([]*types.Topic, error) {
	slugSet := make(map[string]struct{})
	err := s.iteratePrefix(topicOccAllPrefix(), func(val []byte) error {
		var occ types.TopicOccurrence
		if err := json.Unmarshal(val, &occ); err != nil {
			return err
		}
		if occ.BookSlug == slug {
			slugSet[occ.TopicSlug] = struct{}{}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	topicSlugs := make([]string, 0, len(slugSet))
	for ts := range slugSet {
		topicSlugs = append(topicSlugs, ts)
	}
	sort.Strings(topicSlugs)

	topics := make([]*types.Topic, 0, len(topicSlugs))
	for _, ts := range topicSlugs {
		topic, err := s.GetTopic(ts)
		if err != nil {
			return nil, err
		}
		topics = append(topics, topic)
	}
	return topics, nil
}

// deleteOccurrencesForBook removes every topic occurrence pointing into
// the book. Called from DeleteBook.
func (s *Store) deleteOccurrencesForBook(slug string) error {
	var keys [][]byte
	err := s.db.View(func(tx *badger.Txn) error {
		it := tx.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		prefix := topicOccAllPrefix()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			err := item.Value(func(val []byte) error {
				var occ types.TopicOccurrence
				if err := json.Unmarshal(val, &occ); err != nil {
					return err
				}
				if occ.BookSlug == slug {
					keys = append(keys, item.KeyCopy(nil))
				}
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *badger.Txn) error {
		for _, key := range keys {
			if err := tx.Delete(key); err != nil {
				return err
			}
		}
		return nil
	})
}
