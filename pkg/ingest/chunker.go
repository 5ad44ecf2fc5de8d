// Package ingest turns pre-extracted chapter text into stored, indexed
// chunks. Parsing source formats (epub, pdf) happens upstream; this
// package starts from plain chapter text.
package ingest

import (
	"fmt"
	"strings"
)

const (
	// DefaultChunkSize is the target chunk length in runes.
	DefaultChunkSize = 1200
	// DefaultChunkOverlap is how many runes consecutive chunks share.
	DefaultChunkOverlap = 200
)

// ChapterText is the input unit of ingestion: one chapter's plain text.
type ChapterText struct {
	Number int
	Title  string
	Text   string
}

// Piece is one chunk of a chapter before it becomes a stored record.
type Piece struct {
	ID           string
	ChapterNum   int
	ChapterTitle string
	// Start and End are rune offsets into the chapter text.
	Start int
	End   int
	Text  string
}

// Chunker splits chapter text into overlapping pieces with stable IDs,
// preferring to break at sentence boundaries near the target size.
type Chunker struct {
	Size    int
	Overlap int
}

// NewChunker returns a Chunker; non-positive parameters fall back to
// defaults, and overlap is clamped below size.
func NewChunker(size, overlap int) *Chunker {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 {
		overlap = DefaultChunkOverlap
	}
	if overlap >= size {
		overlap = size / 4
	}
	return &Chunker{Size: size, Overlap: overlap}
}

// Chunk splits one chapter. IDs follow "<slug>-ch<N>-<seq>" with a
// zero-padded sequence, so re-ingesting the same text yields the same
// IDs and curation files stay valid.
func (c *Chunker) Chunk(slug string, chapter ChapterText) []Piece {
	runes := []rune(strings.TrimSpace(chapter.Text))
	if len(runes) == 0 {
		return nil
	}

	var pieces []Piece
	seq := 1
	start := 0
	for start < len(runes) {
		end := start + c.Size
		if end >= len(runes) {
			end = len(runes)
		} else {
			end = breakPoint(runes, start, end)
		}

		text := strings.TrimSpace(string(runes[start:end]))
		if text != "" {
			pieces = append(pieces, Piece{
				ID:           fmt.Sprintf("%s-ch%d-%04d", slug, chapter.Number, seq),
				ChapterNum:   chapter.Number,
				ChapterTitle: chapter.Title,
				Start:        start,
				End:          end,
				Text:         text,
			})
			seq++
		}
		if end == len(runes) {
			break
		}
		next := end - c.Overlap
		if next <= start {
			next = start + 1
		}
		start = next
	}
	return pieces
}

// breakPoint walks back from the size boundary looking for a sentence
// end, settling for a space, so chunks do not cut words in half. The
// search window is a quarter of the chunk to keep sizes predictable.
func breakPoint(runes []rune, start, end int) int {
	limit := end - (end-start)/4
	for i := end - 1; i > limit; i-- {
		if runes[i] == '.' || runes[i] == '!' || runes[i] == '?' {
			return i + 1
		}
	}
	for i := end - 1; i > limit; i-- {
		if runes[i] == ' ' || runes[i] == '\n' {
			return i
		}
	}
	return end
}
