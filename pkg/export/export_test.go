package export

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/parquet-go/parquet-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/readwell/tomes/pkg/store"
	"github.com/readwell/tomes/pkg/types"
)

func TestSnapshotWritesAllFiles(t *testing.T) {
	s, err := store.Open("", true, nil)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.PutChunks([]*types.Chunk{
		{ID: "wbc-ch1-0001", SourceSlug: "wbc", ChapterNum: 1, ChapterTitle: "One", Text: "Name it to tame it."},
	}))
	require.NoError(t, s.PutEmbedding("wbc-ch1-0001", []float32{0.5, 0.25}))
	require.NoError(t, s.PutConcept(&types.Concept{
		ID: "emotion-coaching", DisplayName: "Emotion Coaching", ChunkIDs: []string{"wbc-ch1-0001"},
	}))
	require.NoError(t, s.PutConcept(&types.Concept{ID: "name-it-to-tame-it", DisplayName: "Name It"}))
	require.NoError(t, s.PutRelationship(&types.Relationship{
		From: "emotion-coaching", To: "name-it-to-tame-it", Kind: types.KindElaborates,
	}))

	w, err := NewSnapshotWriter(t.TempDir())
	require.NoError(t, err)
	dir, err := w.Snapshot(s)
	require.NoError(t, err)

	for _, name := range []string{"chunks.parquet", "concepts.parquet", "relationships.parquet"} {
		info, err := os.Stat(filepath.Join(dir, name))
		require.NoError(t, err, name)
		assert.Greater(t, info.Size(), int64(0), name)
	}

	// Round-trip the chunk rows.
	rows, err := parquet.ReadFile[ParquetChunk](filepath.Join(dir, "chunks.parquet"))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "wbc-ch1-0001", rows[0].ID)
	assert.Equal(t, []float32{0.5, 0.25}, rows[0].Embedding)

	concepts, err := parquet.ReadFile[ParquetConcept](filepath.Join(dir, "concepts.parquet"))
	require.NoError(t, err)
	require.Len(t, concepts, 2)
	assert.Equal(t, int32(1), concepts[0].ChunkCount)

	rels, err := parquet.ReadFile[ParquetRelationship](filepath.Join(dir, "relationships.parquet"))
	require.NoError(t, err)
	require.Len(t, rels, 1)
	assert.Equal(t, "elaborates", rels[0].Kind)
}
