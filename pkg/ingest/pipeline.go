package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/readwell/tomes/pkg/embedder"
	"github.com/readwell/tomes/pkg/store"
	"github.com/readwell/tomes/pkg/types"
	"github.com/readwell/tomes/pkg/vector"
)

const (
	defaultWorkers   = 4
	defaultBatchSize = 32
)

// Pipeline chunks, embeds, stores, and indexes a book. Embedding batches
// run on a worker pool; store writes are serialized by the pipeline so
// ingestion of one book is atomic from retrieval's point of view only in
// the sense that the book record lands last.
type Pipeline struct {
	store    *store.Store
	index    *vector.MemoryIndex
	embedder embedder.Client
	chunker  *Chunker
	workers  int
	logger   *slog.Logger
}

// NewPipeline wires an ingestion pipeline.
func NewPipeline(s *store.Store, index *vector.MemoryIndex, client embedder.Client, chunker *Chunker, workers int, logger *slog.Logger) *Pipeline {
	if chunker == nil {
		chunker = NewChunker(0, -1)
	}
	if workers <= 0 {
		workers = defaultWorkers
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		store:    s,
		index:    index,
		embedder: client,
		chunker:  chunker,
		workers:  workers,
		logger:   logger,
	}
}

// AddBook ingests one book: chapters are chunked, chunks embedded in
// parallel batches, then everything is persisted and indexed. Returns
// the number of chunks created.
func (p *Pipeline) AddBook(ctx context.Context, book *types.Book, chapters []ChapterText) (int, error) {
	if err := book.Validate(); err != nil {
		return 0, err
	}

	var chunks []*types.Chunk
	var chapterRecords []types.Chapter
	for _, chapter := range chapters {
		chapterRecords = append(chapterRecords, types.Chapter{
			Number: chapter.Number,
			Title:  chapter.Title,
		})
		for _, piece := range p.chunker.Chunk(book.Slug, chapter) {
			chunks = append(chunks, &types.Chunk{
				ID:           piece.ID,
				SourceSlug:   book.Slug,
				ChapterNum:   piece.ChapterNum,
				ChapterTitle: piece.ChapterTitle,
				Start:        piece.Start,
				End:          piece.End,
				Text:         piece.Text,
			})
		}
	}
	if len(chunks) == 0 {
		return 0, fmt.Errorf("book %s produced no chunks", book.Slug)
	}

	p.logger.Info("ingesting book",
		slog.String("slug", book.Slug),
		slog.Int("chapters", len(chapters)),
		slog.Int("chunks", len(chunks)))

	vectors, err := p.embedAll(ctx, chunks)
	if err != nil {
		return 0, err
	}

	if err := p.store.PutChunks(chunks); err != nil {
		return 0, err
	}
	for i, chunk := range chunks {
		if err := p.store.PutEmbedding(chunk.ID, vectors[i]); err != nil {
			return 0, err
		}
		p.index.Add(chunk, vectors[i])
	}
	if err := p.store.PutChapters(book.Slug, chapterRecords); err != nil {
		return 0, err
	}

	book.ChunkCount = len(chunks)
	if book.AddedAt.IsZero() {
		book.AddedAt = time.Now().UTC()
	}
	if err := p.store.PutBook(book); err != nil {
		return 0, err
	}
	return len(chunks), nil
}

// embedAll embeds chunk texts in fixed-size batches on a worker pool.
// Results keep chunk order regardless of batch completion order.
func (p *Pipeline) embedAll(ctx context.Context, chunks []*types.Chunk) ([][]float32, error) {
	pool, err := ants.NewPool(p.workers)
	if err != nil {
		return nil, fmt.Errorf("create worker pool: %w", err)
	}
	defer pool.Release()

	vectors := make([][]float32, len(chunks))
	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error

	for start := 0; start < len(chunks); start += defaultBatchSize {
		start := start
		end := start + defaultBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}

		wg.Add(1)
		submitErr := pool.Submit(func() {
			defer wg.Done()
			texts := make([]string, end-start)
			for i := start; i < end; i++ {
				texts[i-start] = chunks[i].Text
			}
			vecs, err := p.embedder.Embed(ctx, texts)
			if err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = fmt.Errorf("embed batch %d-%d: %w", start, end, err)
				}
				mu.Unlock()
				return
			}
			for i, vec := range vecs {
				vectors[start+i] = vec
			}
		})
		if submitErr != nil {
			wg.Done()
			return nil, fmt.Errorf("submit embed batch: %w", submitErr)
		}
	}
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	return vectors, nil
}

// RemoveBook deletes a book from the store and drops its index entries.
func (p *Pipeline) RemoveBook(slug string) (int, error) {
	n, err := p.store.DeleteBook(slug)
	if err != nil {
		return 0, err
	}
	p.index.Remove(slug)
	p.logger.Info("removed book", slog.String("slug", slug), slog.Int("chunks", n))
	return n, nil
}
