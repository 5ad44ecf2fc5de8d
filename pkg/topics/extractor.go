package topics

import (
	"sort"
	"strings"

	"github.com/readwell/tomes/pkg/types"
)

// Extractor finds topic occurrences by phrase matching: a chunk that
// mentions a topic's display name (or its slug with hyphens read as
// spaces) carries an occurrence, weighted by how often the phrase
// appears relative to the topic's most relevant chunk.
type Extractor struct {
	// MinMentions is how many times the phrase must appear in a chunk
	// to count as an occurrence.
	MinMentions int
}

// NewExtractor returns an extractor with the default threshold of one
// mention per chunk.
func NewExtractor() *Extractor {
	return &Extractor{MinMentions: 1}
}

// phrases lists the match strings for a topic, lowercased and deduped.
func phrases(topic *types.Topic) []string {
	set := make(map[string]struct{}, 2)
	if name := strings.ToLower(strings.TrimSpace(topic.DisplayName)); name != "" {
		set[name] = struct{}{}
	}
	if slug := strings.ReplaceAll(topic.Slug, "-", " "); slug != "" {
		set[slug] = struct{}{}
	}
	out := make([]string, 0, len(set))
	for p := range set {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Extract matches every topic against every chunk and returns the
// occurrences in (topic slug, chunk ID) order. Relevance is the chunk's
// mention count normalized by the topic's highest-mention chunk, so the
// strongest chunk per topic always scores 1.
func (e *Extractor) Extract(topics []*types.Topic, chunks []*types.Chunk) []types.TopicOccurrence {
	minMentions := e.MinMentions
	if minMentions <= 0 {
		minMentions = 1
	}

	sourceOf := make(map[string]string, len(chunks))
	for _, chunk := range chunks {
		sourceOf[chunk.ID] = chunk.SourceSlug
	}

	var occs []types.TopicOccurrence
	for _, topic := range topics {
		topicPhrases := phrases(topic)
		if len(topicPhrases) == 0 {
			continue
		}

		counts := make(map[string]int)
		maxCount := 0
		for _, chunk := range chunks {
			text := strings.ToLower(chunk.Text)
			count := 0
			for _, phrase := range topicPhrases {
				count += strings.Count(text, phrase)
			}
			if count >= minMentions {
				counts[chunk.ID] = count
				if count > maxCount {
					maxCount = count
				}
			}
		}
		if maxCount == 0 {
			continue
		}

		ids := make([]string, 0, len(counts))
		for id := range counts {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			occs = append(occs, types.TopicOccurrence{
				TopicSlug: topic.Slug,
				ChunkID:   id,
				BookSlug:  sourceOf[id],
				Relevance: float64(counts[id]) / float64(maxCount),
			})
		}
	}
	return occs
}
