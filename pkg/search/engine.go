package search

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/readwell/tomes/pkg/graph"
	"github.com/readwell/tomes/pkg/synthesis"
	"github.com/readwell/tomes/pkg/types"
	"github.com/readwell/tomes/pkg/vector"
)

// Embedder encodes query text into the same vector space as the indexed
// chunks.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Catalog is the slice of the metadata store the engine needs: scope
// validation, chunk resolution, and citation titles.
type Catalog interface {
	GetBook(slug string) (*types.Book, error)
	ListBooks(subject string) ([]*types.Book, error)
	GetChunk(id string) (*types.Chunk, error)
	Subjects() ([]string, error)
	// SourcesForTopic resolves a topic slug to the books that discuss
	// it; empty for topics with no indexed occurrence.
	SourcesForTopic(slug string) ([]string, error)
}

// GraphSource is a graph store that can also enumerate its concepts,
// which seed selection and comparison need.
type GraphSource interface {
	graph.Store
	Concepts(ctx context.Context) ([]*types.Concept, error)
}

// Options tunes the retrieval policy. Zero values fall back to defaults.
type Options struct {
	// Limit is the default result cap when a request does not set one.
	Limit int
	// MaxDepth bounds graph expansion.
	MaxDepth int
	// MaxSeeds caps how many concepts seed the graph path per query.
	MaxSeeds int
	// DedupThreshold is the near-duplicate collapse similarity.
	DedupThreshold float64
	// SeedScore anchors graph-only candidates with no scored seed chunk.
	SeedScore float64
	// TokenCostDivisor tunes the rune-based token estimate.
	TokenCostDivisor int
	// BackendTimeout bounds each retrieval path independently.
	BackendTimeout time.Duration
}

const (
	defaultLimit          = 10
	defaultMaxSeeds       = 5
	defaultBackendTimeout = 3 * time.Second
)

func (o Options) withDefaults() Options {
	if o.Limit <= 0 {
		o.Limit = defaultLimit
	}
	if o.MaxDepth <= 0 {
		o.MaxDepth = graph.DefaultMaxDepth
	}
	if o.MaxSeeds <= 0 {
		o.MaxSeeds = defaultMaxSeeds
	}
	if o.DedupThreshold <= 0 {
		o.DedupThreshold = DefaultDedupThreshold
	}
	if o.SeedScore <= 0 {
		o.SeedScore = DefaultSeedScore
	}
	if o.BackendTimeout <= 0 {
		o.BackendTimeout = defaultBackendTimeout
	}
	return o
}

// Engine orchestrates hybrid retrieval: it fans a request out to the
// vector and graph paths in parallel, merges and ranks what comes back,
// optionally synthesizes, and renders inside the token budget. Engines
// hold only read handles and are safe for concurrent requests.
type Engine struct {
	index     vector.Index
	graph     GraphSource
	embedder  Embedder
	catalog   Catalog
	selector  *synthesis.Selector
	ranker    *Ranker
	formatter *Formatter
	opts      Options
	logger    *slog.Logger
}

// NewEngine wires an Engine from its ports.
func NewEngine(index vector.Index, graphSource GraphSource, embedder Embedder, catalog Catalog, selector *synthesis.Selector, opts Options, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	opts = opts.withDefaults()
	ranker := NewRanker()
	ranker.DedupThreshold = opts.DedupThreshold
	ranker.SeedScore = opts.SeedScore
	formatter := NewFormatter()
	if opts.TokenCostDivisor > 0 {
		formatter.TokenCostDivisor = opts.TokenCostDivisor
	}
	if selector == nil {
		selector = synthesis.NewSelector(nil, logger)
	}
	return &Engine{
		index:     index,
		graph:     graphSource,
		embedder:  embedder,
		catalog:   catalog,
		selector:  selector,
		ranker:    ranker,
		formatter: formatter,
		opts:      opts,
		logger:    logger,
	}
}

// resolveScope validates the request scope against the catalog and
// flattens it to a source-slug set. Unknown sources, subjects, or
// topics are a caller error, rejected before any backend work. An
// empty scope returns a nil set meaning unrestricted.
func (e *Engine) resolveScope(scope types.Scope) (map[string]struct{}, error) {
	if scope.Empty() {
		return nil, nil
	}
	set := make(map[string]struct{})
	for _, slug := range scope.Sources {
		if _, err := e.catalog.GetBook(slug); err != nil {
			return nil, fmt.Errorf("%w: unknown source %q", types.ErrInvalidScope, slug)
		}
		set[slug] = struct{}{}
	}
	for _, subject := range scope.Subjects {
		books, err := e.catalog.ListBooks(subject)
		if err != nil {
			return nil, err
		}
		if len(books) == 0 {
			return nil, fmt.Errorf("%w: unknown subject %q", types.ErrInvalidScope, subject)
		}
		for _, b := range books {
			set[b.Slug] = struct{}{}
		}
	}
	for _, topic := range scope.Topics {
		slugs, err := e.catalog.SourcesForTopic(topic)
		if err != nil {
			return nil, err
		}
		if len(slugs) == 0 {
			return nil, fmt.Errorf("%w: unknown topic %q", types.ErrInvalidScope, topic)
		}
		for _, slug := range slugs {
			set[slug] = struct{}{}
		}
	}
	return set, nil
}

// selectSeeds picks graph seeds by matching concept names against the
// query. A concept seeds the expansion when its display name (or its ID
// with hyphens as spaces) occurs in the query. Matches are capped and
// ordered by concept ID for determinism.
func (e *Engine) selectSeeds(ctx context.Context, query string) ([]string, error) {
	concepts, err := e.graph.Concepts(ctx)
	if err != nil {
		return nil, err
	}
	loweredQuery := strings.ToLower(query)

	var seeds []string
	for _, c := range concepts {
		name := strings.ToLower(c.DisplayName)
		idName := strings.ReplaceAll(c.ID, "-", " ")
		if (name != "" && strings.Contains(loweredQuery, name)) || strings.Contains(loweredQuery, idName) {
			seeds = append(seeds, c.ID)
		}
	}
	sort.Strings(seeds)
	if len(seeds) > e.opts.MaxSeeds {
		seeds = seeds[:e.opts.MaxSeeds]
	}
	return seeds, nil
}

// pathResults carries one retrieval path's outcome across the dispatch
// barrier.
type vectorResult struct {
	hits []vector.Hit
	err  error
}

type graphResult struct {
	result *graph.Result
	err    error
}

// retrieve runs the shared pipeline up to the ranked, limit-trimmed
// candidate list. It returns the candidates, accumulated warnings, and
// the terminal state of the retrieval phase.
func (e *Engine) retrieve(ctx context.Context, query string, scope types.Scope, limit int) ([]types.ScoredCandidate, []string, types.RequestState, error) {
	state := types.StateReceived
	if strings.TrimSpace(query) == "" {
		return nil, nil, types.StateFailed, types.ErrEmptyQuery
	}
	if limit <= 0 {
		limit = e.opts.Limit
	}

	scopeSet, err := e.resolveScope(scope)
	if err != nil {
		return nil, nil, types.StateFailed, err
	}

	state = types.StateDispatching
	e.logger.Debug("dispatching retrieval paths", slog.String("query", query), slog.String("state", string(state)))

	vecCh := make(chan vectorResult, 1)
	graphCh := make(chan graphResult, 1)

	go func() {
		pathCtx, cancel := context.WithTimeout(ctx, e.opts.BackendTimeout)
		defer cancel()
		hits, err := e.vectorPath(pathCtx, query, scopeSet, limit)
		vecCh <- vectorResult{hits: hits, err: err}
	}()
	go func() {
		pathCtx, cancel := context.WithTimeout(ctx, e.opts.BackendTimeout)
		defer cancel()
		result, err := e.graphPath(pathCtx, query)
		graphCh <- graphResult{result: result, err: err}
	}()

	vec := <-vecCh
	gr := <-graphCh
	if err := ctx.Err(); err != nil {
		return nil, nil, types.StateFailed, err
	}

	var warnings []string
	if vec.err != nil {
		e.logger.Warn("vector path failed", slog.String("error", vec.err.Error()))
		warnings = append(warnings, fmt.Sprintf("%s: vector search: %s", types.ErrBackendUnavailable, vec.err))
	}
	if gr.err != nil {
		e.logger.Warn("graph path failed", slog.String("error", gr.err.Error()))
		warnings = append(warnings, fmt.Sprintf("%s: graph traversal: %s", types.ErrBackendUnavailable, gr.err))
	}
	if vec.err != nil && gr.err != nil {
		return nil, warnings, types.StateFailed, types.ErrAllBackendsUnavailable
	}

	state = types.StateMerging
	var visits []graph.Visit
	if gr.result != nil {
		visits = gr.result.Visits
		warnings = append(warnings, gr.result.Warnings...)
	}

	candidates, mergeWarnings := e.ranker.Merge(vec.hits, visits, e.catalog.GetChunk, e.titleOf, scopeSet)
	warnings = append(warnings, mergeWarnings...)
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}

	terminal := types.StateCompleted
	if vec.err != nil || gr.err != nil {
		terminal = types.StateDegraded
	}
	return candidates, warnings, terminal, nil
}

func (e *Engine) vectorPath(ctx context.Context, query string, scopeSet map[string]struct{}, limit int) ([]vector.Hit, error) {
	vecs, err := e.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vecs) == 0 {
		return nil, fmt.Errorf("embedder returned no vector")
	}
	// Over-fetch so dedup and graph merging still leave enough to fill
	// the limit.
	topK := limit * 3
	if topK < defaultLimit {
		topK = defaultLimit
	}
	return e.index.SimilaritySearch(ctx, vecs[0], scopeSet, topK)
}

func (e *Engine) graphPath(ctx context.Context, query string) (*graph.Result, error) {
	seeds, err := e.selectSeeds(ctx, query)
	if err != nil {
		return nil, err
	}
	if len(seeds) == 0 {
		return &graph.Result{}, nil
	}
	traverser := graph.NewTraverser(e.graph, e.opts.MaxDepth)
	return traverser.Traverse(ctx, seeds, nil)
}

// titleOf resolves a book title for citations; a missing book falls back
// to the slug inside Citation.String.
func (e *Engine) titleOf(slug string) string {
	book, err := e.catalog.GetBook(slug)
	if err != nil {
		return ""
	}
	return book.Title
}

// Search runs hybrid retrieval and renders the ranked results at the
// requested detail level inside the token budget.
func (e *Engine) Search(ctx context.Context, req types.RetrievalRequest) (*types.RetrievalResponse, error) {
	candidates, warnings, state, err := e.retrieve(ctx, req.Query, req.Scope, req.Limit)
	if err != nil {
		return nil, err
	}

	e.logger.Debug("formatting results",
		slog.Int("candidates", len(candidates)),
		slog.String("detail", req.Detail.String()),
		slog.String("state", string(types.StateFormatting)))

	resp := e.formatter.Render(candidates, req.Detail, req.TokenBudget)
	resp.Warnings = append(warnings, resp.Warnings...)
	resp.State = state
	return resp, nil
}

// Advice is the output of one Advise call.
type Advice struct {
	Narrative string             `json:"narrative"`
	Citations []types.Citation   `json:"citations,omitempty"`
	Warnings  []string           `json:"warnings,omitempty"`
	State     types.RequestState `json:"state"`
}

// Advise retrieves candidates for a question and condenses them into a
// narrative answer with inline citations.
func (e *Engine) Advise(ctx context.Context, question string, scope types.Scope, perspective synthesis.Perspective, includeCitations bool) (*Advice, error) {
	candidates, warnings, state, err := e.retrieve(ctx, question, scope, 0)
	if err != nil {
		return nil, err
	}

	e.logger.Debug("synthesizing answer",
		slog.Int("candidates", len(candidates)),
		slog.String("perspective", string(perspective)),
		slog.String("state", string(types.StateSynthesizing)))

	narrative, synthWarnings := e.selector.Synthesize(ctx, candidates, question, perspective)
	warnings = append(warnings, synthWarnings...)

	advice := &Advice{Narrative: narrative, Warnings: warnings, State: state}
	if includeCitations {
		seen := make(map[types.Citation]struct{})
		for _, cand := range candidates {
			for _, c := range cand.Citations {
				if _, ok := seen[c]; !ok {
					seen[c] = struct{}{}
					advice.Citations = append(advice.Citations, c)
				}
			}
		}
	}
	return advice, nil
}

// ComparisonResult pairs the cross-source signal with a narrative.
type ComparisonResult struct {
	synthesis.Comparison
	Narrative string             `json:"narrative"`
	Warnings  []string           `json:"warnings,omitempty"`
	State     types.RequestState `json:"state"`
}

// Compare retrieves a topic across the given sources and reports where
// they agree, diverge, and what each covers alone. With no explicit
// sources the whole library is compared.
func (e *Engine) Compare(ctx context.Context, topic string, sources []string) (*ComparisonResult, error) {
	scope := types.Scope{Sources: sources}
	candidates, warnings, state, err := e.retrieve(ctx, topic, scope, 0)
	if err != nil {
		return nil, err
	}

	conceptsBySource, err := e.conceptsBySource(ctx, candidates)
	if err != nil {
		return nil, err
	}
	cmp, err := synthesis.CompareSources(ctx, e.graph, conceptsBySource)
	if err != nil {
		return nil, err
	}

	narrative, synthWarnings := e.selector.Synthesize(ctx, candidates, topic, synthesis.PerspectiveCompare)
	warnings = append(warnings, synthWarnings...)

	return &ComparisonResult{
		Comparison: *cmp,
		Narrative:  narrative,
		Warnings:   warnings,
		State:      state,
	}, nil
}

// conceptsBySource maps each source in the candidate set to the concepts
// whose chunks that source contributed.
func (e *Engine) conceptsBySource(ctx context.Context, candidates []types.ScoredCandidate) (map[string][]*types.Concept, error) {
	chunkSource := make(map[string]string)
	for _, cand := range candidates {
		chunkSource[cand.Chunk.ID] = cand.Chunk.SourceSlug
	}

	concepts, err := e.graph.Concepts(ctx)
	if err != nil {
		return nil, err
	}

	out := make(map[string][]*types.Concept)
	for _, concept := range concepts {
		seen := make(map[string]struct{})
		for _, id := range concept.ChunkIDs {
			slug, ok := chunkSource[id]
			if !ok {
				continue
			}
			if _, dup := seen[slug]; dup {
				continue
			}
			seen[slug] = struct{}{}
			out[slug] = append(out[slug], concept)
		}
	}
	return out, nil
}

// TraceEntry is one concept in a trace expansion.
type TraceEntry struct {
	ConceptID   string                   `json:"concept_id"`
	DisplayName string                   `json:"display_name"`
	Depth       int                      `json:"depth"`
	Path        []types.RelationshipKind `json:"path,omitempty"`
	Sources     []string                 `json:"sources,omitempty"`
}

// TraceResult is the output of TraceConcept.
type TraceResult struct {
	Root     string       `json:"root"`
	Entries  []TraceEntry `json:"entries"`
	Warnings []string     `json:"warnings,omitempty"`
}

// TraceConcept expands the graph from one concept, optionally filtered
// by relationship kinds and bounded by depth. The root not existing is a
// caller error, unlike missing seeds during search.
func (e *Engine) TraceConcept(ctx context.Context, conceptID string, kinds []types.RelationshipKind, depth int, includeSources bool) (*TraceResult, error) {
	if _, err := e.graph.Concept(ctx, conceptID); err != nil {
		return nil, err
	}
	if depth <= 0 {
		depth = e.opts.MaxDepth
	}

	traverser := graph.NewTraverser(e.graph, depth)
	result, err := traverser.Traverse(ctx, []string{conceptID}, kinds)
	if err != nil {
		return nil, err
	}

	trace := &TraceResult{Root: conceptID, Warnings: result.Warnings}
	for _, v := range result.Visits {
		entry := TraceEntry{
			ConceptID:   v.Concept.ID,
			DisplayName: v.Concept.DisplayName,
			Depth:       v.Depth,
			Path:        v.Path,
		}
		if includeSources {
			entry.Sources = e.conceptSources(v.Concept)
		}
		trace.Entries = append(trace.Entries, entry)
	}
	return trace, nil
}

// conceptSources lists the distinct sources behind a concept's chunks in
// lexical order.
func (e *Engine) conceptSources(concept *types.Concept) []string {
	seen := make(map[string]struct{})
	var sources []string
	if concept.SourceSlug != "" {
		seen[concept.SourceSlug] = struct{}{}
		sources = append(sources, concept.SourceSlug)
	}
	for _, id := range concept.ChunkIDs {
		chunk, err := e.catalog.GetChunk(id)
		if err != nil {
			continue
		}
		if _, ok := seen[chunk.SourceSlug]; !ok {
			seen[chunk.SourceSlug] = struct{}{}
			sources = append(sources, chunk.SourceSlug)
		}
	}
	sort.Strings(sources)
	return sources
}
