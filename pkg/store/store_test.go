package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/readwell/tomes/pkg/types"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open("", true, nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestBookRoundTrip(t *testing.T) {
	s := openTestStore(t)

	book := &types.Book{
		Slug:    "whole-brain-child",
		Title:   "The Whole-Brain Child",
		Author:  "Daniel J. Siegel",
		Subject: "parenting",
	}
	require.NoError(t, s.PutBook(book))

	got, err := s.GetBook("whole-brain-child")
	require.NoError(t, err)
	assert.Equal(t, book.Title, got.Title)
	assert.Equal(t, "parenting", got.Subject)

	_, err = s.GetBook("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListBooksFiltersAndSorts(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.PutBook(&types.Book{Slug: "zen-mind", Title: "Zen Mind", Subject: "meditation"}))
	require.NoError(t, s.PutBook(&types.Book{Slug: "whole-brain-child", Title: "The Whole-Brain Child", Subject: "parenting"}))
	require.NoError(t, s.PutBook(&types.Book{Slug: "no-drama", Title: "No-Drama Discipline", Subject: "parenting"}))

	all, err := s.ListBooks("")
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "no-drama", all[0].Slug)
	assert.Equal(t, "zen-mind", all[2].Slug)

	parenting, err := s.ListBooks("parenting")
	require.NoError(t, err)
	assert.Len(t, parenting, 2)

	subjects, err := s.Subjects()
	require.NoError(t, err)
	assert.Equal(t, []string{"meditation", "parenting"}, subjects)
}

func TestChaptersOrdered(t *testing.T) {
	s := openTestStore(t)

	chapters := []types.Chapter{
		{Number: 2, Title: "Two Brains Are Better Than One"},
		{Number: 1, Title: "Parenting with the Brain in Mind"},
		{Number: 12, Title: "Conclusion"},
	}
	require.NoError(t, s.PutChapters("whole-brain-child", chapters))

	got, err := s.GetChapters("whole-brain-child")
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, 1, got[0].Number)
	assert.Equal(t, 2, got[1].Number)
	assert.Equal(t, 12, got[2].Number)
	assert.Equal(t, "whole-brain-child", got[0].BookSlug)
}

func TestChunksByBook(t *testing.T) {
	s := openTestStore(t)

	chunks := []*types.Chunk{
		{ID: "wbc-ch1-0002", SourceSlug: "wbc", Text: "second"},
		{ID: "wbc-ch1-0001", SourceSlug: "wbc", Text: "first"},
		{ID: "other-ch1-0001", SourceSlug: "other", Text: "elsewhere"},
	}
	require.NoError(t, s.PutChunks(chunks))

	got, err := s.ChunksByBook("wbc")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "wbc-ch1-0001", got[0].ID)
	assert.Equal(t, "wbc-ch1-0002", got[1].ID)
}

func TestDeleteBookRemovesEverything(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.PutBook(&types.Book{Slug: "wbc", Title: "The Whole-Brain Child"}))
	require.NoError(t, s.PutChapters("wbc", []types.Chapter{{Number: 1, Title: "One"}}))
	require.NoError(t, s.PutChunks([]*types.Chunk{
		{ID: "wbc-ch1-0001", SourceSlug: "wbc", Text: "hello"},
	}))
	require.NoError(t, s.PutEmbedding("wbc-ch1-0001", []float32{0.1, 0.2}))

	n, err := s.DeleteBook("wbc")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = s.GetBook("wbc")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.GetChunk("wbc-ch1-0001")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.GetEmbedding("wbc-ch1-0001")
	assert.ErrorIs(t, err, ErrNotFound)

	chunks, err := s.ChunksByBook("wbc")
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestConceptAndRelationshipRoundTrip(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.PutConcept(&types.Concept{
		ID:          "emotion-coaching",
		DisplayName: "Emotion Coaching",
		SourceSlug:  "wbc",
		ChunkIDs:    []string{"wbc-ch1-0001"},
	}))
	require.NoError(t, s.PutConcept(&types.Concept{ID: "name-it-to-tame-it", DisplayName: "Name It to Tame It"}))

	got, err := s.GetConcept("emotion-coaching")
	require.NoError(t, err)
	assert.Equal(t, "Emotion Coaching", got.DisplayName)

	_, err = s.GetConcept("missing")
	assert.ErrorIs(t, err, ErrNotFound)

	concepts, err := s.Concepts()
	require.NoError(t, err)
	require.Len(t, concepts, 2)
	assert.Equal(t, "emotion-coaching", concepts[0].ID)

	rel := &types.Relationship{From: "emotion-coaching", To: "name-it-to-tame-it", Kind: types.KindElaborates}
	require.NoError(t, s.PutRelationship(rel))

	rels, err := s.Relationships()
	require.NoError(t, err)
	require.Len(t, rels, 1)
	assert.Equal(t, types.KindElaborates, rels[0].Kind)

	out, err := s.RelationshipsFrom("emotion-coaching")
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "name-it-to-tame-it", out[0].To)
}

func TestEmbeddingRoundTrip(t *testing.T) {
	s := openTestStore(t)

	vec := []float32{0.25, -1.5, 3.75}
	require.NoError(t, s.PutEmbedding("c1", vec))
	require.NoError(t, s.PutEmbedding("c2", []float32{1, 0, 0}))

	got, err := s.GetEmbedding("c1")
	require.NoError(t, err)
	assert.Equal(t, vec, got)

	var ids []string
	err = s.Embeddings(func(chunkID string, v []float32) error {
		ids = append(ids, chunkID)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"c1", "c2"}, ids)
}

func TestUpdateChunkCount(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.PutBook(&types.Book{Slug: "wbc", Title: "The Whole-Brain Child"}))
	require.NoError(t, s.UpdateChunkCount("wbc", 42))

	got, err := s.GetBook("wbc")
	require.NoError(t, err)
	assert.Equal(t, 42, got.ChunkCount)
}
