package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/readwell/tomes/pkg/types"
)

func formatterCandidates() []types.ScoredCandidate {
	long := "When a child is flooded by big feelings, logic alone rarely lands. " +
		"Connecting with the right brain first opens the door for redirection. " +
		"Only once the child feels felt can the lesson actually be heard."
	chunkA := &types.Chunk{
		ID: "a", SourceSlug: "whole-brain-child", ChapterNum: 2,
		ChapterTitle: "Two Brains Are Better Than One", Start: 1024, End: 1536, Text: long,
	}
	chunkB := &types.Chunk{
		ID: "b", SourceSlug: "no-drama", ChapterNum: 1,
		ChapterTitle: "ReTHINKING Discipline", Start: 10, End: 90,
		Text: "Discipline means to teach, not to punish. The word itself comes from discipulus, a student.",
	}
	return []types.ScoredCandidate{
		{Chunk: chunkA, CompositeScore: 0.9, Origin: types.OriginPath{Direct: true},
			Citations: []types.Citation{types.CitationForChunk(chunkA, "The Whole-Brain Child")}},
		{Chunk: chunkB, CompositeScore: 0.7, Origin: types.OriginPath{Direct: true},
			Citations: []types.Citation{types.CitationForChunk(chunkB, "No-Drama Discipline")}},
	}
}

func totalSize(resp *types.RetrievalResponse) int {
	n := 0
	for _, e := range resp.Entries {
		n += len(e.Text)
	}
	return n
}

func TestRenderDetailLevels(t *testing.T) {
	f := NewFormatter()
	cands := formatterCandidates()

	citations := f.Render(cands, types.DetailCitations, 0)
	summaries := f.Render(cands, types.DetailSummaries, 0)
	passages := f.Render(cands, types.DetailPassages, 0)

	require.Len(t, citations.Entries, 2)
	require.Len(t, summaries.Entries, 2)
	require.Len(t, passages.Entries, 2)

	// Citations level carries no passage text.
	assert.NotContains(t, citations.Entries[0].Text, "flooded")
	assert.Contains(t, citations.Entries[0].Text, "[The Whole-Brain Child, Ch. 2:")

	// Summaries quote the leading sentences, not the whole passage.
	assert.Contains(t, summaries.Entries[0].Text, "logic alone rarely lands.")
	assert.NotContains(t, summaries.Entries[0].Text, "actually be heard")

	// Passages carry the full text plus the citation.
	assert.Contains(t, passages.Entries[0].Text, "actually be heard")
	assert.Contains(t, passages.Entries[0].Text, "[The Whole-Brain Child, Ch. 2:")
}

func TestRenderDetailCostMonotonic(t *testing.T) {
	f := NewFormatter()
	cands := formatterCandidates()

	citations := totalSize(f.Render(cands, types.DetailCitations, 0))
	summaries := totalSize(f.Render(cands, types.DetailSummaries, 0))
	passages := totalSize(f.Render(cands, types.DetailPassages, 0))

	assert.Less(t, citations, summaries)
	assert.Less(t, summaries, passages)
}

func TestRenderBudgetStopsAtFirstOverflow(t *testing.T) {
	f := NewFormatter()
	cands := formatterCandidates()

	// Generous enough for the first passage entry, not the second.
	full := f.Render(cands[:1], types.DetailPassages, 0)
	firstCost := (len([]rune(full.Entries[0].Text)) + 3) / 4

	resp := f.Render(cands, types.DetailPassages, firstCost)
	require.Len(t, resp.Entries, 1)
	assert.True(t, resp.Truncated)
	// Rank order preserved: the survivor is the top-ranked entry.
	assert.Equal(t, 0.9, resp.Entries[0].Score)
}

func TestRenderBudgetTooSmallForAnything(t *testing.T) {
	f := NewFormatter()
	cands := formatterCandidates()

	resp := f.Render(cands, types.DetailPassages, 1)
	assert.Empty(t, resp.Entries)
	assert.True(t, resp.Truncated)
	require.Len(t, resp.Warnings, 1)
	assert.Contains(t, resp.Warnings[0], "budget")
}

func TestRenderZeroBudgetMeansUnlimited(t *testing.T) {
	f := NewFormatter()
	resp := f.Render(formatterCandidates(), types.DetailPassages, 0)
	assert.Len(t, resp.Entries, 2)
	assert.False(t, resp.Truncated)
}

func TestRenderEmptyCandidates(t *testing.T) {
	f := NewFormatter()
	resp := f.Render(nil, types.DetailSummaries, 100)
	assert.Empty(t, resp.Entries)
	assert.False(t, resp.Truncated)
	assert.Empty(t, resp.Warnings)
}

func TestRenderDeterministic(t *testing.T) {
	f := NewFormatter()
	cands := formatterCandidates()
	first := f.Render(cands, types.DetailSummaries, 200)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, f.Render(cands, types.DetailSummaries, 200))
	}
}

func TestRenderOriginAndCitationsCarried(t *testing.T) {
	f := NewFormatter()
	resp := f.Render(formatterCandidates(), types.DetailCitations, 0)
	assert.Equal(t, "direct-vector", resp.Entries[0].Origin)
	require.NotEmpty(t, resp.Entries[0].Citations)
	assert.Equal(t, "whole-brain-child", resp.Entries[0].Citations[0].SourceSlug)
}
