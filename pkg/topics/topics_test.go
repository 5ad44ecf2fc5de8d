package topics

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/readwell/tomes/pkg/store"
	"github.com/readwell/tomes/pkg/types"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open("", true, nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func seedBook(t *testing.T, s *store.Store, slug string, texts ...string) {
	t.Helper()
	require.NoError(t, s.PutBook(&types.Book{Slug: slug, Title: slug}))
	chunks := make([]*types.Chunk, len(texts))
	for i, text := range texts {
		chunks[i] = &types.Chunk{
			ID:         fmt.Sprintf("%s-%02d", slug, i),
			SourceSlug: slug,
			Text:       text,
		}
	}
	require.NoError(t, s.PutChunks(chunks))
}

func TestRegisterAndList(t *testing.T) {
	s := newTestStore(t)
	r := NewRegistry(s, nil)

	require.NoError(t, r.Register(&types.Topic{Slug: "sleep-training", DisplayName: "Sleep Training", Subject: "parenting"}))
	require.NoError(t, r.Register(&types.Topic{Slug: "breath-awareness", DisplayName: "Breath Awareness", Subject: "meditation"}))

	all, err := r.List("")
	require.NoError(t, err)
	require.Len(t, all, 2)
	// Slug order.
	assert.Equal(t, "breath-awareness", all[0].Slug)
	assert.Equal(t, "sleep-training", all[1].Slug)

	parenting, err := r.List("parenting")
	require.NoError(t, err)
	require.Len(t, parenting, 1)
	assert.Equal(t, "sleep-training", parenting[0].Slug)

	got, err := r.Get("sleep-training")
	require.NoError(t, err)
	assert.Equal(t, "Sleep Training", got.DisplayName)
}

func TestRegisterRejectsEmptySlug(t *testing.T) {
	r := NewRegistry(newTestStore(t), nil)
	assert.ErrorIs(t, r.Register(&types.Topic{DisplayName: "Nameless"}), types.ErrEmptySlug)
}

func TestIndexBookMatchesPhrases(t *testing.T) {
	s := newTestStore(t)
	r := NewRegistry(s, nil)
	require.NoError(t, r.Register(&types.Topic{Slug: "emotional-regulation", DisplayName: "Emotional Regulation"}))
	seedBook(t, s, "whole-brain-child",
		"Emotional regulation grows when a parent models emotional regulation out loud.",
		"Emotional regulation is a skill, not a trait.",
		"A chapter about bedtime routines and nothing else.",
	)

	indexed, err := r.IndexBook("whole-brain-child")
	require.NoError(t, err)
	assert.Equal(t, 2, indexed)

	occs, err := r.Occurrences("emotional-regulation")
	require.NoError(t, err)
	require.Len(t, occs, 2)
	// Chunk-ID order; relevance normalized against the strongest chunk.
	assert.Equal(t, "whole-brain-child-00", occs[0].ChunkID)
	assert.Equal(t, 1.0, occs[0].Relevance)
	assert.Equal(t, "whole-brain-child-01", occs[1].ChunkID)
	assert.Equal(t, 0.5, occs[1].Relevance)
	assert.Equal(t, "whole-brain-child", occs[0].BookSlug)
}

func TestIndexBookWithoutTopicsIsNoop(t *testing.T) {
	s := newTestStore(t)
	r := NewRegistry(s, nil)
	seedBook(t, s, "zen-mind", "Practice means returning to the breath.")

	indexed, err := r.IndexBook("zen-mind")
	require.NoError(t, err)
	assert.Zero(t, indexed)
}

func TestSourcesForSpansBooks(t *testing.T) {
	s := newTestStore(t)
	r := NewRegistry(s, nil)
	require.NoError(t, r.Register(&types.Topic{Slug: "daily-practice", DisplayName: "Daily Practice"}))
	seedBook(t, s, "zen-mind", "Daily practice means sitting whether or not you feel like it.")
	seedBook(t, s, "art-of-living", "Equanimity is the fruit of daily practice.")

	for _, slug := range []string{"zen-mind", "art-of-living"} {
		_, err := r.IndexBook(slug)
		require.NoError(t, err)
	}

	sources, err := r.SourcesFor("daily-practice")
	require.NoError(t, err)
	assert.Equal(t, []string{"art-of-living", "zen-mind"}, sources)

	forBook, err := r.ForBook("zen-mind")
	require.NoError(t, err)
	require.Len(t, forBook, 1)
	assert.Equal(t, "daily-practice", forBook[0].Slug)
}

func TestDeleteBookPurgesOccurrences(t *testing.T) {
	s := newTestStore(t)
	r := NewRegistry(s, nil)
	require.NoError(t, r.Register(&types.Topic{Slug: "daily-practice", DisplayName: "Daily Practice"}))
	seedBook(t, s, "zen-mind", "Daily practice means sitting every morning.")
	seedBook(t, s, "art-of-living", "Equanimity is the fruit of daily practice.")
	for _, slug := range []string{"zen-mind", "art-of-living"} {
		_, err := r.IndexBook(slug)
		require.NoError(t, err)
	}

	_, err := s.DeleteBook("zen-mind")
	require.NoError(t, err)

	sources, err := r.SourcesFor("daily-practice")
	require.NoError(t, err)
	assert.Equal(t, []string{"art-of-living"}, sources)
	// The topic itself survives its sources.
	_, err = r.Get("daily-practice")
	assert.NoError(t, err)
}

func TestExtractorMatchesSlugWithoutDisplayName(t *testing.T) {
	e := NewExtractor()
	topic := &types.Topic{Slug: "name-it-to-tame-it"}
	chunks := []*types.Chunk{
		{ID: "c1", SourceSlug: "wbc", Text: "The phrase name it to tame it captures the whole method."},
	}

	occs := e.Extract([]*types.Topic{topic}, chunks)
	require.Len(t, occs, 1)
	assert.Equal(t, "name-it-to-tame-it", occs[0].TopicSlug)
	assert.Equal(t, 1.0, occs[0].Relevance)
}

func TestExtractorMinMentions(t *testing.T) {
	e := &Extractor{MinMentions: 2}
	topic := &types.Topic{Slug: "discipline", DisplayName: "Discipline"}
	chunks := []*types.Chunk{
		{ID: "c1", SourceSlug: "wbc", Text: "Discipline is teaching. Discipline is not punishment."},
		{ID: "c2", SourceSlug: "wbc", Text: "Discipline appears once here."},
	}

	occs := e.Extract([]*types.Topic{topic}, chunks)
	require.Len(t, occs, 1)
	assert.Equal(t, "c1", occs[0].ChunkID)
}
