package tomes

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/readwell/tomes/pkg/config"
	"github.com/readwell/tomes/pkg/curation"
	"github.com/readwell/tomes/pkg/embedder"
	"github.com/readwell/tomes/pkg/export"
	"github.com/readwell/tomes/pkg/graph"
	"github.com/readwell/tomes/pkg/ingest"
	"github.com/readwell/tomes/pkg/search"
	"github.com/readwell/tomes/pkg/store"
	"github.com/readwell/tomes/pkg/synthesis"
	"github.com/readwell/tomes/pkg/topics"
	"github.com/readwell/tomes/pkg/types"
	"github.com/readwell/tomes/pkg/vector"
)

// Library is the top-level handle: it owns the store, the vector index,
// the concept graph, and the retrieval engine, and exposes every
// operation the CLI and HTTP server forward to.
type Library struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *store.Store
	index    *vector.MemoryIndex
	memGraph *graph.Memory
	neoGraph *graph.Neo4j
	embedder embedder.Client
	engine   *search.Engine
	pipeline *ingest.Pipeline
	topicReg *topics.Registry
}

// Option customizes Library construction.
type Option func(*Library)

// WithEmbedder overrides the configured embedding client. Tests use it
// to stay offline.
func WithEmbedder(client embedder.Client) Option {
	return func(l *Library) { l.embedder = client }
}

// Open builds a Library from configuration: opens the store, loads the
// vector index and concept graph from it, and wires the retrieval
// engine.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts ...Option) (*Library, error) {
	if logger == nil {
		logger = slog.Default()
	}
	l := &Library{cfg: cfg, logger: logger}
	for _, opt := range opts {
		opt(l)
	}

	s, err := store.Open(cfg.Storage.Path, cfg.Storage.InMemory, logger)
	if err != nil {
		return nil, err
	}
	l.store = s
	l.topicReg = topics.NewRegistry(s, logger)

	if l.embedder == nil {
		l.embedder, err = buildEmbedder(cfg.Embedding)
		if err != nil {
			s.Close()
			return nil, err
		}
	}

	if err := l.loadIndex(); err != nil {
		s.Close()
		return nil, err
	}

	graphSource, err := l.buildGraph(ctx)
	if err != nil {
		s.Close()
		return nil, err
	}

	selector, err := buildSelector(cfg.Synthesis, logger)
	if err != nil {
		s.Close()
		return nil, err
	}

	l.engine = search.NewEngine(l.index, graphSource, l.embedder, s, selector, search.Options{
		Limit:            cfg.Retrieval.Limit,
		MaxDepth:         cfg.Retrieval.MaxDepth,
		MaxSeeds:         cfg.Retrieval.MaxSeeds,
		DedupThreshold:   cfg.Retrieval.DedupThreshold,
		SeedScore:        cfg.Retrieval.SeedScore,
		TokenCostDivisor: cfg.Retrieval.TokenCostDivisor,
		BackendTimeout:   time.Duration(cfg.Retrieval.BackendTimeoutMS) * time.Millisecond,
	}, logger)

	chunker := ingest.NewChunker(cfg.Ingest.ChunkSize, cfg.Ingest.ChunkOverlap)
	l.pipeline = ingest.NewPipeline(s, l.index, l.embedder, chunker, cfg.Ingest.Workers, logger)

	logger.Info("library opened",
		slog.Int("indexed_chunks", l.index.Len()),
		slog.String("graph_backend", cfg.Graph.Backend))
	return l, nil
}

func buildEmbedder(cfg config.EmbeddingConfig) (embedder.Client, error) {
	switch cfg.Provider {
	case "openai":
		return embedder.NewOpenAIEmbedder(embedder.Config{
			Model:      cfg.Model,
			APIKey:     cfg.APIKey,
			BaseURL:    cfg.BaseURL,
			Dimensions: cfg.Dimensions,
			BatchSize:  cfg.BatchSize,
		})
	case "hash", "":
		return embedder.NewHashEmbedder(cfg.Dimensions), nil
	}
	return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
}

func buildSelector(cfg config.SynthesisConfig, logger *slog.Logger) (*synthesis.Selector, error) {
	switch cfg.Provider {
	case "openai":
		backend, err := synthesis.NewOpenAIBackend(synthesis.OpenAIConfig{
			APIKey:      cfg.APIKey,
			BaseURL:     cfg.BaseURL,
			Model:       cfg.Model,
			MaxTokens:   cfg.MaxTokens,
			Temperature: cfg.Temperature,
		})
		if err != nil {
			return nil, err
		}
		return synthesis.NewSelector(backend, logger), nil
	case "none", "":
		return synthesis.NewSelector(nil, logger), nil
	}
	return nil, fmt.Errorf("unknown synthesis provider %q", cfg.Provider)
}

// loadIndex rebuilds the in-memory vector index from the persisted
// embeddings.
func (l *Library) loadIndex() error {
	l.index = vector.NewMemoryIndex()
	return l.store.Embeddings(func(chunkID string, vec []float32) error {
		chunk, err := l.store.GetChunk(chunkID)
		if err != nil {
			l.logger.Warn("embedding without chunk, skipping", slog.String("chunk_id", chunkID))
			return nil
		}
		l.index.Add(chunk, vec)
		return nil
	})
}

// buildGraph loads the concept graph. The memory backend is rebuilt
// from the store on every open; the neo4j backend is authoritative on
// its own.
func (l *Library) buildGraph(ctx context.Context) (search.GraphSource, error) {
	if l.cfg.Graph.Backend == "neo4j" {
		neo, err := graph.NewNeo4j(ctx, l.cfg.Graph.URI, l.cfg.Graph.Username, l.cfg.Graph.Password, l.cfg.Graph.Database)
		if err != nil {
			return nil, err
		}
		l.neoGraph = neo
		return neo, nil
	}

	l.memGraph = graph.NewMemory()
	concepts, err := l.store.Concepts()
	if err != nil {
		return nil, err
	}
	for _, c := range concepts {
		if err := l.memGraph.AddConcept(c); err != nil {
			return nil, err
		}
	}
	rels, err := l.store.Relationships()
	if err != nil {
		return nil, err
	}
	for _, r := range rels {
		if err := l.memGraph.AddRelationship(*r); err != nil {
			l.logger.Warn("skipping unloadable relationship",
				slog.String("from", r.From), slog.String("to", r.To), slog.String("error", err.Error()))
		}
	}
	return l.memGraph, nil
}

// Close releases the store and graph connections.
func (l *Library) Close(ctx context.Context) error {
	if l.neoGraph != nil {
		if err := l.neoGraph.Close(ctx); err != nil {
			l.logger.Warn("closing graph connection", slog.String("error", err.Error()))
		}
	}
	return l.store.Close()
}

// Config returns the configuration the library was opened with.
func (l *Library) Config() *config.Config {
	return l.cfg
}

// Logger returns the library's logger.
func (l *Library) Logger() *slog.Logger {
	return l.logger
}

// AddBook ingests a book from pre-extracted chapter text and indexes
// it against the registered topics.
func (l *Library) AddBook(ctx context.Context, book *types.Book, chapters []ingest.ChapterText) (int, error) {
	count, err := l.pipeline.AddBook(ctx, book, chapters)
	if err != nil {
		return count, err
	}
	if _, err := l.topicReg.IndexBook(book.Slug); err != nil {
		return count, fmt.Errorf("index topics for %s: %w", book.Slug, err)
	}
	return count, nil
}

// Topics exposes the topic registry.
func (l *Library) Topics() *topics.Registry {
	return l.topicReg
}

// RemoveBook deletes a book and its index entries.
func (l *Library) RemoveBook(slug string) (int, error) {
	return l.pipeline.RemoveBook(slug)
}

// ListBooks lists the catalog, optionally filtered by subject.
func (l *Library) ListBooks(subject string) ([]*types.Book, error) {
	return l.store.ListBooks(subject)
}

// Search runs hybrid retrieval for a query.
func (l *Library) Search(ctx context.Context, req types.RetrievalRequest) (*types.RetrievalResponse, error) {
	return l.engine.Search(ctx, req)
}

// Advise answers a question with a synthesized, cited narrative.
func (l *Library) Advise(ctx context.Context, question string, scope types.Scope, perspective synthesis.Perspective, includeCitations bool) (*search.Advice, error) {
	return l.engine.Advise(ctx, question, scope, perspective, includeCitations)
}

// Compare reports agreements, differences, and unique insights across
// sources on a topic.
func (l *Library) Compare(ctx context.Context, topic string, sources []string) (*search.ComparisonResult, error) {
	return l.engine.Compare(ctx, topic, sources)
}

// TraceConcept expands the concept graph from one concept.
func (l *Library) TraceConcept(ctx context.Context, conceptID string, kinds []types.RelationshipKind, depth int, includeSources bool) (*search.TraceResult, error) {
	return l.engine.TraceConcept(ctx, conceptID, kinds, depth, includeSources)
}

// Curate validates a curation file and imports it into the store and
// graph. Validation errors abort the import.
func (l *Library) Curate(ctx context.Context, path string) (*curation.ValidationResult, error) {
	f, err := curation.Parse(path)
	if err != nil {
		return nil, err
	}

	known := make(map[string]struct{})
	existing, err := l.store.Concepts()
	if err != nil {
		return nil, err
	}
	for _, c := range existing {
		known[c.ID] = struct{}{}
	}

	result := curation.Validate(f, known)
	if !result.Valid() {
		return result, fmt.Errorf("curation file %s failed validation", path)
	}

	var writer curation.GraphWriter
	if l.neoGraph != nil {
		writer = &neo4jWriter{ctx: ctx, graph: l.neoGraph}
	} else {
		writer = l.memGraph
	}
	if err := curation.Import(f, l.store, writer); err != nil {
		return result, err
	}

	// Newly curated topics may occur in any book, not just the curated
	// one, so the whole catalog is re-indexed.
	if len(f.Topics) > 0 {
		books, err := l.store.ListBooks("")
		if err != nil {
			return result, err
		}
		for _, b := range books {
			if _, err := l.topicReg.IndexBook(b.Slug); err != nil {
				return result, err
			}
		}
	}

	l.logger.Info("imported curation file",
		slog.String("path", path),
		slog.Int("concepts", len(f.Concepts)),
		slog.Int("relationships", len(f.Relationships)),
		slog.Int("topics", len(f.Topics)))
	return result, nil
}

// CheckCuration validates a curation file against the known concepts
// without importing anything.
func (l *Library) CheckCuration(path string) (*curation.ValidationResult, error) {
	f, err := curation.Parse(path)
	if err != nil {
		return nil, err
	}
	known := make(map[string]struct{})
	existing, err := l.store.Concepts()
	if err != nil {
		return nil, err
	}
	for _, c := range existing {
		known[c.ID] = struct{}{}
	}
	return curation.Validate(f, known), nil
}

// neo4jWriter adapts the Neo4j upsert API to the curation import
// contract.
type neo4jWriter struct {
	ctx   context.Context
	graph *graph.Neo4j
}

func (w *neo4jWriter) AddConcept(c *types.Concept) error {
	return w.graph.UpsertConcept(w.ctx, c)
}

func (w *neo4jWriter) AddRelationship(rel types.Relationship) error {
	return w.graph.UpsertRelationship(w.ctx, rel)
}

// Export writes a Parquet snapshot of the library under dir and returns
// the snapshot path.
func (l *Library) Export(dir string) (string, error) {
	w, err := export.NewSnapshotWriter(dir)
	if err != nil {
		return "", err
	}
	return w.Snapshot(l.store)
}

// ExploreEntry is one row of a structural listing.
type ExploreEntry struct {
	Name   string `json:"name"`
	Detail string `json:"detail,omitempty"`
}

// ExploreResult is the output of Explore.
type ExploreResult struct {
	Kind    string         `json:"kind"` // subjects, books, chapters
	Entries []ExploreEntry `json:"entries"`
}

// Explore lists the library structurally: an empty path lists subjects,
// a subject lists its books, and "subject/slug" (or just a known slug)
// lists a book's chapters. The detail level widens what each row shows.
func (l *Library) Explore(path string, detail types.DetailLevel) (*ExploreResult, error) {
	path = strings.Trim(path, "/")
	if path == "" {
		subjects, err := l.store.Subjects()
		if err != nil {
			return nil, err
		}
		result := &ExploreResult{Kind: "subjects"}
		for _, subject := range subjects {
			entry := ExploreEntry{Name: subject}
			if detail >= types.DetailSummaries {
				books, err := l.store.ListBooks(subject)
				if err != nil {
					return nil, err
				}
				entry.Detail = fmt.Sprintf("%d books", len(books))
			}
			result.Entries = append(result.Entries, entry)
		}
		return result, nil
	}

	parts := strings.SplitN(path, "/", 2)
	if len(parts) == 2 {
		return l.exploreBook(parts[1], detail)
	}

	// A bare segment is a book slug if one matches, otherwise a subject.
	if _, err := l.store.GetBook(parts[0]); err == nil {
		return l.exploreBook(parts[0], detail)
	}

	books, err := l.store.ListBooks(parts[0])
	if err != nil {
		return nil, err
	}
	if len(books) == 0 {
		return nil, fmt.Errorf("%w: nothing at path %q", types.ErrInvalidScope, path)
	}
	result := &ExploreResult{Kind: "books"}
	for _, b := range books {
		entry := ExploreEntry{Name: b.Slug}
		switch {
		case detail >= types.DetailPassages:
			entry.Detail = fmt.Sprintf("%s by %s, %d chunks", b.Title, b.Author, b.ChunkCount)
		case detail >= types.DetailSummaries:
			entry.Detail = b.Title
		}
		result.Entries = append(result.Entries, entry)
	}
	return result, nil
}

func (l *Library) exploreBook(slug string, detail types.DetailLevel) (*ExploreResult, error) {
	if _, err := l.store.GetBook(slug); err != nil {
		return nil, fmt.Errorf("%w: unknown source %q", types.ErrInvalidScope, slug)
	}
	chapters, err := l.store.GetChapters(slug)
	if err != nil {
		return nil, err
	}
	result := &ExploreResult{Kind: "chapters"}
	for _, ch := range chapters {
		entry := ExploreEntry{Name: fmt.Sprintf("ch%d", ch.Number)}
		if detail >= types.DetailSummaries {
			entry.Detail = ch.Title
		}
		result.Entries = append(result.Entries, entry)
	}
	return result, nil
}
