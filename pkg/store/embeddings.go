package store

import (
	"encoding/binary"
	"math"

	"github.com/dgraph-io/badger/v4"
)

// encodeVector packs a float32 vector as little-endian bytes.
func encodeVector(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, f := range vec {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(data []byte) []float32 {
	vec := make([]float32, len(data)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[4*i:]))
	}
	return vec
}

// PutEmbedding stores the embedding vector for a chunk.
func (s *Store) PutEmbedding(chunkID string, vec []float32) error {
	return s.db.Update(func(tx *badger.Txn) error {
		return tx.Set(embeddingKey(chunkID), encodeVector(vec))
	})
}

// GetEmbedding retrieves the embedding vector for a chunk.
func (s *Store) GetEmbedding(chunkID string) ([]float32, error) {
	var vec []float32
	err := s.db.View(func(tx *badger.Txn) error {
		item, err := tx.Get(embeddingKey(chunkID))
		if err != nil {
			if err == badger.ErrKeyNotFound {
				return ErrNotFound
			}
			return err
		}
		return item.Value(func(val []byte) error {
			vec = decodeVector(val)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return vec, nil
}

// Embeddings walks every stored embedding in chunk-ID order.
func (s *Store) Embeddings(fn func(chunkID string, vec []float32) error) error {
	return s.db.View(func(tx *badger.Txn) error {
		it := tx.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		prefix := embeddingPrefix()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			chunkID := string(item.Key()[len(prefix):])
			err := item.Value(func(val []byte) error {
				return fn(chunkID, decodeVector(val))
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
}
