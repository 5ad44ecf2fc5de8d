// Package store persists the library catalog on BadgerDB: books,
// chapters, chunks, chunk embeddings, and the curated concept graph.
// Retrieval treats the store as read-mostly; writes happen during ingest
// and curation import, which the CLI serializes.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"

	"github.com/readwell/tomes/pkg/types"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// Store wraps a BadgerDB instance holding all persistent library state.
type Store struct {
	db     *badger.DB
	logger *slog.Logger
}

// badgerLoggerAdapter adapts slog.Logger to the badger.Logger interface.
type badgerLoggerAdapter struct {
	logger *slog.Logger
}

var _ badger.Logger = (*badgerLoggerAdapter)(nil)

func (bl *badgerLoggerAdapter) Errorf(msg string, items ...any)   { bl.logger.Error(fmt.Sprintf(msg, items...)) }
func (bl *badgerLoggerAdapter) Warningf(msg string, items ...any) { bl.logger.Warn(fmt.Sprintf(msg, items...)) }
func (bl *badgerLoggerAdapter) Infof(msg string, items ...any)    { bl.logger.Debug(fmt.Sprintf(msg, items...)) }
func (bl *badgerLoggerAdapter) Debugf(msg string, items ...any)   { bl.logger.Debug(fmt.Sprintf(msg, items...)) }

// Open opens (or creates) a store at path. An empty path with inMemory
// set runs entirely in memory, which is what the tests use.
func Open(path string, inMemory bool, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var opts badger.Options
	if inMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(path, 0o755); err != nil {
			return nil, fmt.Errorf("create store directory: %w", err)
		}
		opts = badger.DefaultOptions(path)
	}
	opts.Logger = &badgerLoggerAdapter{logger: logger}
	opts.Compression = options.None

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger store: %w", err)
	}

	return &Store{db: db, logger: logger}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func putJSON(tx *badger.Txn, key []byte, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return tx.Set(key, data)
}

func getJSON(tx *badger.Txn, key []byte, v any) error {
	item, err := tx.Get(key)
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		return err
	}
	return item.Value(func(val []byte) error {
		return json.Unmarshal(val, v)
	})
}

// iteratePrefix walks every value under prefix in key order.
func (s *Store) iteratePrefix(prefix []byte, fn func(val []byte) error) error {
	return s.db.View(func(tx *badger.Txn) error {
		it := tx.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				return fn(append([]byte(nil), val...))
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// PutBook inserts or replaces a book record.
func (s *Store) PutBook(book *types.Book) error {
	if err := book.Validate(); err != nil {
		return err
	}
	return s.db.Update(func(tx *badger.Txn) error {
		return putJSON(tx, bookKey(book.Slug), book)
	})
}

// GetBook retrieves a book by slug.
func (s *Store) GetBook(slug string) (*types.Book, error) {
	var book types.Book
	err := s.db.View(func(tx *badger.Txn) error {
		return getJSON(tx, bookKey(slug), &book)
	})
	if err != nil {
		return nil, err
	}
	return &book, nil
}

// ListBooks returns all books, optionally filtered by subject, ordered by
// slug for deterministic output.
func (s *Store) ListBooks(subject string) ([]*types.Book, error) {
	var books []*types.Book
	err := s.iteratePrefix(bookPrefix(), func(val []byte) error {
		var book types.Book
		if err := json.Unmarshal(val, &book); err != nil {
			return err
		}
		if subject == "" || book.Subject == subject {
			books = append(books, &book)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(books, func(i, j int) bool { return books[i].Slug < books[j].Slug })
	return books, nil
}

// Subjects returns all distinct subjects in lexical order.
func (s *Store) Subjects() ([]string, error) {
	books, err := s.ListBooks("")
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{})
	var subjects []string
	for _, b := range books {
		if _, ok := seen[b.Subject]; !ok {
			seen[b.Subject] = struct{}{}
			subjects = append(subjects, b.Subject)
		}
	}
	sort.Strings(subjects)
	return subjects, nil
}

// UpdateChunkCount rewrites the chunk count on a book record.
func (s *Store) UpdateChunkCount(slug string, count int) error {
	book, err := s.GetBook(slug)
	if err != nil {
		return err
	}
	book.ChunkCount = count
	return s.PutBook(book)
}

// PutChapters replaces the chapter list for a book.
func (s *Store) PutChapters(slug string, chapters []types.Chapter) error {
	return s.db.Update(func(tx *badger.Txn) error {
		for i := range chapters {
			chapters[i].BookSlug = slug
			if err := putJSON(tx, chapterKey(slug, chapters[i].Number), &chapters[i]); err != nil {
				return err
			}
		}
		return nil
	})
}

// GetChapters returns the chapters of a book in chapter order.
func (s *Store) GetChapters(slug string) ([]types.Chapter, error) {
	var chapters []types.Chapter
	err := s.iteratePrefix(chapterPrefix(slug), func(val []byte) error {
		var ch types.Chapter
		if err := json.Unmarshal(val, &ch); err != nil {
			return err
		}
		chapters = append(chapters, ch)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(chapters, func(i, j int) bool { return chapters[i].Number < chapters[j].Number })
	return chapters, nil
}

// PutChunks stores a batch of chunks with their book index entries.
func (s *Store) PutChunks(chunks []*types.Chunk) error {
	return s.db.Update(func(tx *badger.Txn) error {
		for _, chunk := range chunks {
			if err := chunk.Validate(); err != nil {
				return err
			}
			if err := putJSON(tx, chunkKey(chunk.ID), chunk); err != nil {
				return err
			}
			if err := tx.Set(chunkIndexKey(chunk.SourceSlug, chunk.ID), nil); err != nil {
				return err
			}
		}
		return nil
	})
}

// GetChunk retrieves a chunk by ID.
func (s *Store) GetChunk(id string) (*types.Chunk, error) {
	var chunk types.Chunk
	err := s.db.View(func(tx *badger.Txn) error {
		return getJSON(tx, chunkKey(id), &chunk)
	})
	if err != nil {
		return nil, err
	}
	return &chunk, nil
}

// ChunksByBook returns every chunk of a book in chunk-ID order.
func (s *Store) ChunksByBook(slug string) ([]*types.Chunk, error) {
	var ids []string
	err := s.db.View(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := tx.NewIterator(opts)
		defer it.Close()
		prefix := chunkIndexPrefix(slug)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			ids = append(ids, string(it.Item().Key()[len(prefix):]))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	chunks := make([]*types.Chunk, 0, len(ids))
	for _, id := range ids {
		chunk, err := s.GetChunk(id)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, chunk)
	}
	return chunks, nil
}

// AllChunks walks every chunk in the store in key order.
func (s *Store) AllChunks(fn func(*types.Chunk) error) error {
	return s.iteratePrefix(chunkPrefix(), func(val []byte) error {
		var chunk types.Chunk
		if err := json.Unmarshal(val, &chunk); err != nil {
			return err
		}
		return fn(&chunk)
	})
}

// DeleteBook removes a book with its chapters, chunks, embeddings,
// topic occurrences, and index entries. Returns the number of chunks
// deleted.
func (s *Store) DeleteBook(slug string) (int, error) {
	chunks, err := s.ChunksByBook(slug)
	if err != nil {
		return 0, err
	}
	if err := s.deleteOccurrencesForBook(slug); err != nil {
		return 0, err
	}
	err = s.db.Update(func(tx *badger.Txn) error {
		for _, chunk := range chunks {
			if err := tx.Delete(chunkKey(chunk.ID)); err != nil {
				return err
			}
			if err := tx.Delete(embeddingKey(chunk.ID)); err != nil {
				return err
			}
			if err := tx.Delete(chunkIndexKey(slug, chunk.ID)); err != nil {
				return err
			}
		}
		chapters, err := s.GetChapters(slug)
		if err != nil {
			return err
		}
		for _, ch := range chapters {
			if err := tx.Delete(chapterKey(slug, ch.Number)); err != nil {
				return err
			}
		}
		return tx.Delete(bookKey(slug))
	})
	if err != nil {
		return 0, err
	}
	return len(chunks), nil
}
