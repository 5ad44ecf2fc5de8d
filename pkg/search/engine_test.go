package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/readwell/tomes/pkg/graph"
	"github.com/readwell/tomes/pkg/synthesis"
	"github.com/readwell/tomes/pkg/types"
	"github.com/readwell/tomes/pkg/vector"
)

type fakeEmbedder struct {
	vec   []float32
	err   error
	calls int
}

func (f *fakeEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = f.vec
	}
	return out, nil
}

type fakeCatalog struct {
	books  map[string]*types.Book
	chunks map[string]*types.Chunk
	topics map[string][]string
}

func (f *fakeCatalog) GetBook(slug string) (*types.Book, error) {
	if b, ok := f.books[slug]; ok {
		return b, nil
	}
	return nil, fmt.Errorf("book %s not found", slug)
}

func (f *fakeCatalog) ListBooks(subject string) ([]*types.Book, error) {
	var out []*types.Book
	for _, b := range f.books {
		if subject == "" || b.Subject == subject {
			out = append(out, b)
		}
	}
	return out, nil
}

func (f *fakeCatalog) GetChunk(id string) (*types.Chunk, error) {
	if c, ok := f.chunks[id]; ok {
		return c, nil
	}
	return nil, fmt.Errorf("chunk %s not found", id)
}

func (f *fakeCatalog) SourcesForTopic(slug string) ([]string, error) {
	return f.topics[slug], nil
}

func (f *fakeCatalog) Subjects() ([]string, error) {
	seen := make(map[string]struct{})
	var out []string
	for _, b := range f.books {
		if _, ok := seen[b.Subject]; !ok {
			seen[b.Subject] = struct{}{}
			out = append(out, b.Subject)
		}
	}
	return out, nil
}

type failingGraph struct{}

func (failingGraph) Concept(context.Context, string) (*types.Concept, error) {
	return nil, errors.New("graph backend unavailable")
}
func (failingGraph) Neighbors(context.Context, string, []types.RelationshipKind) ([]graph.Edge, error) {
	return nil, errors.New("graph backend unavailable")
}
func (failingGraph) Concepts(context.Context) ([]*types.Concept, error) {
	return nil, errors.New("graph backend unavailable")
}

// fixture wires a two-book library: a parenting book with an
// emotion-coaching concept chain, and a meditation book sharing a
// discipline concept with it.
type fixture struct {
	catalog  *fakeCatalog
	index    *vector.MemoryIndex
	graph    *graph.Memory
	embedder *fakeEmbedder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	catalog := &fakeCatalog{
		books: map[string]*types.Book{
			"whole-brain-child": {Slug: "whole-brain-child", Title: "The Whole-Brain Child", Subject: "parenting"},
			"zen-mind":          {Slug: "zen-mind", Title: "Zen Mind, Beginner's Mind", Subject: "meditation"},
		},
		chunks: map[string]*types.Chunk{},
		topics: map[string][]string{"mindful-discipline": {"zen-mind"}},
	}
	index := vector.NewMemoryIndex()
	g := graph.NewMemory()
	f := &fixture{catalog: catalog, index: index, graph: g, embedder: &fakeEmbedder{vec: []float32{1, 0, 0}}}

	f.addChunk("wbc-1", "whole-brain-child", 1, "The Whole Child", 0,
		"Emotion coaching starts with acknowledging the feeling before correcting the behavior.",
		[]float32{1, 0, 0})
	f.addChunk("wbc-2", "whole-brain-child", 2, "Name It", 500,
		"Telling the story of a scary moment helps the child name the feeling and tame it.",
		[]float32{0.2, 1, 0})
	f.addChunk("zen-1", "zen-mind", 3, "Right Effort", 200,
		"Discipline in practice means returning to the cushion without self-judgment.",
		[]float32{0.9, 0.1, 0})

	require.NoError(t, g.AddConcept(&types.Concept{
		ID: "emotion-coaching", DisplayName: "Emotion Coaching",
		SourceSlug: "whole-brain-child", ChunkIDs: []string{"wbc-1"},
	}))
	require.NoError(t, g.AddConcept(&types.Concept{
		ID: "name-it-to-tame-it", DisplayName: "Name It to Tame It",
		SourceSlug: "whole-brain-child", ChunkIDs: []string{"wbc-2"},
	}))
	require.NoError(t, g.AddConcept(&types.Concept{
		ID: "discipline", DisplayName: "Discipline",
		ChunkIDs: []string{"wbc-1", "zen-1"},
	}))
	require.NoError(t, g.AddConcept(&types.Concept{ID: "punishment", DisplayName: "Punishment"}))
	require.NoError(t, g.AddRelationship(types.Relationship{
		From: "emotion-coaching", To: "name-it-to-tame-it", Kind: types.KindElaborates,
		SourceSlug: "whole-brain-child",
	}))
	require.NoError(t, g.AddRelationship(types.Relationship{
		From: "punishment", To: "discipline", Kind: types.KindContradicts,
	}))
	return f
}

func (f *fixture) addChunk(id, slug string, chapter int, chapterTitle string, start int, text string, vec []float32) {
	chunk := &types.Chunk{
		ID: id, SourceSlug: slug, ChapterNum: chapter, ChapterTitle: chapterTitle,
		Start: start, End: start + len(text), Text: text,
	}
	f.catalog.chunks[id] = chunk
	f.index.Add(chunk, vec)
}

func (f *fixture) engine(t *testing.T) *Engine {
	t.Helper()
	return NewEngine(f.index, f.graph, f.embedder, f.catalog, nil, Options{}, nil)
}

func TestSearchHybridEndToEnd(t *testing.T) {
	f := newFixture(t)
	e := f.engine(t)

	resp, err := e.Search(context.Background(), types.RetrievalRequest{
		Query:  "how does emotion coaching help a child",
		Detail: types.DetailSummaries,
		Limit:  10,
	})
	require.NoError(t, err)
	assert.Equal(t, types.StateCompleted, resp.State)
	assert.False(t, resp.Truncated)
	require.NotEmpty(t, resp.Entries)

	// The direct vector hit ranks first; the graph expansion pulled the
	// elaborating chunk in as well.
	assert.Contains(t, resp.Entries[0].Text, "[The Whole-Brain Child, Ch. 1:")
	var origins []string
	var texts []string
	for _, entry := range resp.Entries {
		origins = append(origins, entry.Origin)
		texts = append(texts, entry.Text)
	}
	assert.Contains(t, origins, "direct-vector")
	joined := fmt.Sprint(texts)
	assert.Contains(t, joined, "name the feeling")
}

func TestSearchScoresNonIncreasing(t *testing.T) {
	f := newFixture(t)
	e := f.engine(t)

	resp, err := e.Search(context.Background(), types.RetrievalRequest{
		Query: "emotion coaching and discipline", Detail: types.DetailCitations, Limit: 10,
	})
	require.NoError(t, err)
	for i := 1; i < len(resp.Entries); i++ {
		assert.GreaterOrEqual(t, resp.Entries[i-1].Score, resp.Entries[i].Score)
	}
}

func TestSearchEmptyQueryRejected(t *testing.T) {
	f := newFixture(t)
	e := f.engine(t)

	_, err := e.Search(context.Background(), types.RetrievalRequest{Query: "   "})
	assert.ErrorIs(t, err, types.ErrEmptyQuery)
	assert.Zero(t, f.embedder.calls, "no backend work before validation")
}

func TestSearchInvalidScopeRejectedBeforeDispatch(t *testing.T) {
	f := newFixture(t)
	e := f.engine(t)

	_, err := e.Search(context.Background(), types.RetrievalRequest{
		Query: "anything",
		Scope: types.Scope{Sources: []string{"no-such-book"}},
	})
	assert.ErrorIs(t, err, types.ErrInvalidScope)
	assert.Zero(t, f.embedder.calls)

	_, err = e.Search(context.Background(), types.RetrievalRequest{
		Query: "anything",
		Scope: types.Scope{Subjects: []string{"astrology"}},
	})
	assert.ErrorIs(t, err, types.ErrInvalidScope)
}

func TestSearchScopeBySubject(t *testing.T) {
	f := newFixture(t)
	e := f.engine(t)

	resp, err := e.Search(context.Background(), types.RetrievalRequest{
		Query:  "discipline during practice",
		Scope:  types.Scope{Subjects: []string{"meditation"}},
		Detail: types.DetailCitations,
	})
	require.NoError(t, err)
	for _, entry := range resp.Entries {
		for _, c := range entry.Citations {
			assert.Equal(t, "zen-mind", c.SourceSlug)
		}
	}
}

func TestSearchScopeByTopic(t *testing.T) {
	f := newFixture(t)
	e := f.engine(t)

	resp, err := e.Search(context.Background(), types.RetrievalRequest{
		Query:  "discipline during practice",
		Scope:  types.Scope{Topics: []string{"mindful-discipline"}},
		Detail: types.DetailCitations,
	})
	require.NoError(t, err)
	require.NotEmpty(t, resp.Entries)
	for _, entry := range resp.Entries {
		for _, c := range entry.Citations {
			assert.Equal(t, "zen-mind", c.SourceSlug)
		}
	}

	// A topic nothing discusses is a caller error, like an unknown
	// subject.
	_, err = e.Search(context.Background(), types.RetrievalRequest{
		Query: "anything",
		Scope: types.Scope{Topics: []string{"numerology"}},
	})
	assert.ErrorIs(t, err, types.ErrInvalidScope)
}

func TestSearchVectorFailureDegrades(t *testing.T) {
	f := newFixture(t)
	f.embedder.err = errors.New("embedding service timeout")
	e := f.engine(t)

	resp, err := e.Search(context.Background(), types.RetrievalRequest{
		Query:  "how does emotion coaching help",
		Detail: types.DetailCitations,
	})
	require.NoError(t, err)
	assert.Equal(t, types.StateDegraded, resp.State)

	// Graph-derived candidates only.
	require.NotEmpty(t, resp.Entries)
	for _, entry := range resp.Entries {
		assert.NotEqual(t, "direct-vector", entry.Origin)
	}
	require.NotEmpty(t, resp.Warnings)
	assert.Contains(t, resp.Warnings[0], "backend unavailable")
}

func TestSearchAllBackendsFailing(t *testing.T) {
	f := newFixture(t)
	f.embedder.err = errors.New("embedding service down")
	e := NewEngine(f.index, failingGraph{}, f.embedder, f.catalog, nil, Options{}, nil)

	_, err := e.Search(context.Background(), types.RetrievalRequest{Query: "anything at all"})
	assert.ErrorIs(t, err, types.ErrAllBackendsUnavailable)
}

func TestSearchDeterministic(t *testing.T) {
	f := newFixture(t)
	e := f.engine(t)
	req := types.RetrievalRequest{
		Query: "emotion coaching for a child", Detail: types.DetailSummaries,
		Limit: 5, TokenBudget: 300,
	}

	first, err := e.Search(context.Background(), req)
	require.NoError(t, err)
	firstJSON, err := json.Marshal(first)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		again, err := e.Search(context.Background(), req)
		require.NoError(t, err)
		againJSON, err := json.Marshal(again)
		require.NoError(t, err)
		assert.Equal(t, string(firstJSON), string(againJSON))
	}
}

func TestSearchLimitAppliedAfterRanking(t *testing.T) {
	f := newFixture(t)
	e := f.engine(t)

	resp, err := e.Search(context.Background(), types.RetrievalRequest{
		Query: "emotion coaching and discipline", Detail: types.DetailCitations, Limit: 1,
	})
	require.NoError(t, err)
	require.Len(t, resp.Entries, 1)
	// The single survivor is the best-scored candidate overall.
	assert.Contains(t, resp.Entries[0].Text, "Ch. 1")
}

func TestAdviseProducesNarrativeWithCitations(t *testing.T) {
	f := newFixture(t)
	e := f.engine(t)

	advice, err := e.Advise(context.Background(), "how does emotion coaching help the feeling",
		types.Scope{}, synthesis.PerspectiveUnified, true)
	require.NoError(t, err)
	assert.NotEmpty(t, advice.Narrative)
	assert.Contains(t, advice.Narrative, "[The Whole-Brain Child")
	assert.NotEmpty(t, advice.Citations)
	assert.Equal(t, types.StateCompleted, advice.State)
}

func TestCompareContradictedConceptListedAsDifference(t *testing.T) {
	f := newFixture(t)
	e := f.engine(t)

	result, err := e.Compare(context.Background(), "discipline",
		[]string{"whole-brain-child", "zen-mind"})
	require.NoError(t, err)

	// Both sources share the discipline concept, which carries a
	// contradicts edge from punishment.
	assert.Contains(t, result.Differences, "Discipline")
	assert.NotContains(t, result.Agreements, "Discipline")
}

func TestTraceConceptDepthOneElaborates(t *testing.T) {
	f := newFixture(t)
	e := f.engine(t)

	trace, err := e.TraceConcept(context.Background(), "emotion-coaching",
		[]types.RelationshipKind{types.KindElaborates}, 1, true)
	require.NoError(t, err)
	require.Len(t, trace.Entries, 2)

	assert.Equal(t, "emotion-coaching", trace.Entries[0].ConceptID)
	assert.Equal(t, 0, trace.Entries[0].Depth)

	assert.Equal(t, "name-it-to-tame-it", trace.Entries[1].ConceptID)
	assert.Equal(t, 1, trace.Entries[1].Depth)
	assert.Equal(t, []types.RelationshipKind{types.KindElaborates}, trace.Entries[1].Path)
	assert.Equal(t, []string{"whole-brain-child"}, trace.Entries[1].Sources)
}

func TestTraceConceptUnknownRoot(t *testing.T) {
	f := newFixture(t)
	e := f.engine(t)

	_, err := e.TraceConcept(context.Background(), "no-such-concept", nil, 1, false)
	assert.ErrorIs(t, err, types.ErrConceptNotFound)
}
