// Package embedder provides text embedding clients for vector
// representations. Ingestion uses them to index chunks; the retrieval
// engine uses them to encode queries into the same space.
package embedder

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
)

// Client is the embedding port. Implementations handle batching
// internally based on provider limits.
type Client interface {
	// Embed maps each text to a vector, in input order.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	// Dimensions reports the vector width this client produces.
	Dimensions() int
}

// Config is shared by all embedding providers.
type Config struct {
	Model      string
	APIKey     string
	BaseURL    string
	Dimensions int
	BatchSize  int
}

// HashEmbedder is a deterministic, offline Client: each token hashes to
// a dimension bucket and the vector is L2-normalized. It has no semantic
// power and exists for local smoke-testing and development without a
// provider key.
type HashEmbedder struct {
	dims int
}

// NewHashEmbedder returns a hash embedder of the given width.
func NewHashEmbedder(dims int) *HashEmbedder {
	if dims <= 0 {
		dims = 64
	}
	return &HashEmbedder{dims: dims}
}

// Dimensions implements Client.
func (h *HashEmbedder) Dimensions() int { return h.dims }

// Embed implements Client.
func (h *HashEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec := make([]float32, h.dims)
		hasher := fnv.New32a()
		word := make([]byte, 0, 16)
		flush := func() {
			if len(word) == 0 {
				return
			}
			hasher.Reset()
			hasher.Write(word)
			vec[hasher.Sum32()%uint32(h.dims)]++
			word = word[:0]
		}
		for _, b := range []byte(text) {
			if b == ' ' || b == '\n' || b == '\t' {
				flush()
				continue
			}
			word = append(word, b|0x20)
		}
		flush()

		var norm float64
		for _, v := range vec {
			norm += float64(v) * float64(v)
		}
		if norm > 0 {
			scale := float32(1 / math.Sqrt(norm))
			for j := range vec {
				vec[j] *= scale
			}
		}
		out[i] = vec
	}
	if len(out) != len(texts) {
		return nil, fmt.Errorf("embedded %d of %d texts", len(out), len(texts))
	}
	return out, nil
}
