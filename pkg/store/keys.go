package store

import "fmt"

// Key layout. Every record class gets its own prefix so prefix scans
// stay cheap; chapter numbers are zero-padded so key order matches
// chapter order.
//
//	book:<slug>                  -> Book JSON
//	chapter:<slug>:<nnnn>        -> Chapter JSON
//	chunk:<id>                   -> Chunk JSON
//	chunkb:<slug>:<id>           -> nil (book -> chunk index)
//	concept:<id>                 -> Concept JSON
//	rel:<from>:<kind>:<to>       -> Relationship JSON
//	relin:<to>:<kind>:<from>     -> nil (incoming-edge index)
//	embed:<chunk-id>             -> little-endian float32 vector
//	topic:<slug>                 -> Topic JSON
//	topocc:<slug>:<chunk-id>     -> TopicOccurrence JSON
const (
	prefixBook       = "book:"
	prefixChapter    = "chapter:"
	prefixChunk      = "chunk:"
	prefixChunkIndex = "chunkb:"
	prefixConcept    = "concept:"
	prefixRel        = "rel:"
	prefixRelIn      = "relin:"
	prefixEmbedding  = "embed:"
	prefixTopic      = "topic:"
	prefixTopicOcc   = "topocc:"
)

func bookKey(slug string) []byte { return []byte(prefixBook + slug) }
func bookPrefix() []byte         { return []byte(prefixBook) }

func chapterKey(slug string, num int) []byte {
	return []byte(fmt.Sprintf("%s%s:%04d", prefixChapter, slug, num))
}
func chapterPrefix(slug string) []byte { return []byte(prefixChapter + slug + ":") }

func chunkKey(id string) []byte { return []byte(prefixChunk + id) }
func chunkPrefix() []byte       { return []byte(prefixChunk) }

func chunkIndexKey(slug, id string) []byte { return []byte(prefixChunkIndex + slug + ":" + id) }
func chunkIndexPrefix(slug string) []byte  { return []byte(prefixChunkIndex + slug + ":") }

func conceptKey(id string) []byte { return []byte(prefixConcept + id) }
func conceptPrefix() []byte       { return []byte(prefixConcept) }

func relKey(from, kind, to string) []byte {
	return []byte(prefixRel + from + ":" + kind + ":" + to)
}
func relPrefix() []byte               { return []byte(prefixRel) }
func relFromPrefix(from string) []byte { return []byte(prefixRel + from + ":") }

func relInKey(to, kind, from string) []byte {
	return []byte(prefixRelIn + to + ":" + kind + ":" + from)
}

func embeddingKey(chunkID string) []byte { return []byte(prefixEmbedding + chunkID) }
func embeddingPrefix() []byte            { return []byte(prefixEmbedding) }

func topicKey(slug string) []byte { return []byte(prefixTopic + slug) }
func topicPrefix() []byte         { return []byte(prefixTopic) }

func topicOccKey(topicSlug, chunkID string) []byte {
	return []byte(prefixTopicOcc + topicSlug + ":" + chunkID)
}
func topicOccPrefix(topicSlug string) []byte { return []byte(prefixTopicOcc + topicSlug + ":") }
func topicOccAllPrefix() []byte              { return []byte(prefixTopicOcc) }
