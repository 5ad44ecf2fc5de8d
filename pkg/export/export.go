// Package export writes Parquet snapshots of the library: chunks with
// their embeddings, and the concept graph. Snapshots feed offline
// analysis and let a library be rebuilt elsewhere without re-embedding.
package export

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/parquet-go/parquet-go"

	"github.com/readwell/tomes/pkg/store"
	"github.com/readwell/tomes/pkg/types"
)

// SnapshotWriter writes one snapshot directory per export run.
type SnapshotWriter struct {
	baseDir string
}

// NewSnapshotWriter ensures the export directory exists.
func NewSnapshotWriter(baseDir string) (*SnapshotWriter, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create export directory: %w", err)
	}
	return &SnapshotWriter{baseDir: baseDir}, nil
}

// ParquetChunk is the chunk row schema.
type ParquetChunk struct {
	ID           string    `parquet:"id"`
	SourceSlug   string    `parquet:"source_slug"`
	ChapterNum   int32     `parquet:"chapter_num"`
	ChapterTitle string    `parquet:"chapter_title"`
	Start        int32     `parquet:"start"`
	End          int32     `parquet:"end"`
	Text         string    `parquet:"text"`
	Embedding    []float32 `parquet:"embedding"`
}

// ParquetConcept is the concept node row schema. ChunkIDs is a JSON-free
// pipe-joined list to keep the schema flat.
type ParquetConcept struct {
	ID          string `parquet:"id"`
	DisplayName string `parquet:"display_name"`
	Description string `parquet:"description"`
	SourceSlug  string `parquet:"source_slug"`
	ChunkCount  int32  `parquet:"chunk_count"`
}

// ParquetRelationship is the edge row schema.
type ParquetRelationship struct {
	From       string `parquet:"from"`
	To         string `parquet:"to"`
	Kind       string `parquet:"kind"`
	SourceSlug string `parquet:"source_slug"`
}

// Snapshot writes chunks.parquet, concepts.parquet, and
// relationships.parquet under a timestamped directory and returns its
// path.
func (w *SnapshotWriter) Snapshot(s *store.Store) (string, error) {
	dir := filepath.Join(w.baseDir, time.Now().UTC().Format("20060102T150405Z"))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create snapshot directory: %w", err)
	}

	var chunkRows []ParquetChunk
	err := s.AllChunks(func(chunk *types.Chunk) error {
		row := ParquetChunk{
			ID:           chunk.ID,
			SourceSlug:   chunk.SourceSlug,
			ChapterNum:   int32(chunk.ChapterNum),
			ChapterTitle: chunk.ChapterTitle,
			Start:        int32(chunk.Start),
			End:          int32(chunk.End),
			Text:         chunk.Text,
		}
		if vec, err := s.GetEmbedding(chunk.ID); err == nil {
			row.Embedding = vec
		}
		chunkRows = append(chunkRows, row)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("collect chunks: %w", err)
	}
	if err := parquet.WriteFile(filepath.Join(dir, "chunks.parquet"), chunkRows); err != nil {
		return "", fmt.Errorf("write chunks snapshot: %w", err)
	}

	concepts, err := s.Concepts()
	if err != nil {
		return "", fmt.Errorf("collect concepts: %w", err)
	}
	conceptRows := make([]ParquetConcept, len(concepts))
	for i, c := range concepts {
		conceptRows[i] = ParquetConcept{
			ID:          c.ID,
			DisplayName: c.DisplayName,
			Description: c.Description,
			SourceSlug:  c.SourceSlug,
			ChunkCount:  int32(len(c.ChunkIDs)),
		}
	}
	if err := parquet.WriteFile(filepath.Join(dir, "concepts.parquet"), conceptRows); err != nil {
		return "", fmt.Errorf("write concepts snapshot: %w", err)
	}

	rels, err := s.Relationships()
	if err != nil {
		return "", fmt.Errorf("collect relationships: %w", err)
	}
	relRows := make([]ParquetRelationship, len(rels))
	for i, r := range rels {
		relRows[i] = ParquetRelationship{
			From:       r.From,
			To:         r.To,
			Kind:       string(r.Kind),
			SourceSlug: r.SourceSlug,
		}
	}
	if err := parquet.WriteFile(filepath.Join(dir, "relationships.parquet"), relRows); err != nil {
		return "", fmt.Errorf("write relationships snapshot: %w", err)
	}

	return dir, nil
}
