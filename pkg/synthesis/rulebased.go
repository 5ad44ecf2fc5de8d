package synthesis

import (
	"sort"
	"strings"

	"github.com/readwell/tomes/pkg/textutil"
	"github.com/readwell/tomes/pkg/types"
)

const (
	// sentenceDedupThreshold collapses near-identical extracted sentences.
	sentenceDedupThreshold = 0.7
	maxPointsPerSource     = 3
	maxPointsTotal         = 10
)

// RuleBased is the deterministic, offline synthesis mode: it extracts
// the sentences most relevant to the question from the candidate
// passages and concatenates them with their citations. No generative
// rewriting ever happens here.
type RuleBased struct{}

// NewRuleBased returns the rule-based synthesizer.
func NewRuleBased() *RuleBased {
	return &RuleBased{}
}

type keyPoint struct {
	sentence string
	citation types.Citation
	overlap  float64
}

// extractPoints pulls the sentences of each candidate that overlap the
// question, deduplicates them, and caps them per source.
func extractPoints(candidates []types.ScoredCandidate, question string) map[string][]keyPoint {
	questionTokens := textutil.TokenSet(question)
	bySource := make(map[string][]keyPoint)

	for _, cand := range candidates {
		slug := cand.Chunk.SourceSlug
		if len(bySource[slug]) >= maxPointsPerSource {
			continue
		}
		var citation types.Citation
		if len(cand.Citations) > 0 {
			citation = cand.Citations[0]
		}
		for _, sentence := range textutil.SplitSentences(cand.Chunk.Text) {
			overlap := overlapScore(sentence, questionTokens)
			if overlap == 0 {
				continue
			}
			if isDuplicatePoint(bySource[slug], sentence) {
				continue
			}
			bySource[slug] = append(bySource[slug], keyPoint{sentence: sentence, citation: citation, overlap: overlap})
			if len(bySource[slug]) >= maxPointsPerSource {
				break
			}
		}
	}
	return bySource
}

func overlapScore(sentence string, questionTokens map[string]struct{}) float64 {
	if len(questionTokens) == 0 {
		return 0
	}
	matched := 0
	for _, tok := range textutil.Tokenize(sentence) {
		if _, ok := questionTokens[tok]; ok {
			matched++
		}
	}
	return float64(matched) / float64(len(questionTokens))
}

func isDuplicatePoint(points []keyPoint, sentence string) bool {
	for _, p := range points {
		if textutil.JaccardSimilarity(p.sentence, sentence) >= sentenceDedupThreshold {
			return true
		}
	}
	return false
}

// Synthesize produces one unified narrative: the strongest points across
// all sources, each followed by its citation.
func (r *RuleBased) Synthesize(candidates []types.ScoredCandidate, question string) string {
	bySource := extractPoints(candidates, question)

	var points []keyPoint
	for _, slug := range sortedKeys(bySource) {
		points = append(points, bySource[slug]...)
	}
	sort.SliceStable(points, func(i, j int) bool { return points[i].overlap > points[j].overlap })
	if len(points) > maxPointsTotal {
		points = points[:maxPointsTotal]
	}

	if len(points) == 0 {
		return fallbackNarrative(candidates)
	}

	var b strings.Builder
	for i, p := range points {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(p.sentence)
		b.WriteString(" ")
		b.WriteString(p.citation.String())
	}
	return b.String()
}

// SynthesizeBySource produces one section per source, in slug order.
func (r *RuleBased) SynthesizeBySource(candidates []types.ScoredCandidate, question string) string {
	bySource := extractPoints(candidates, question)
	titles := make(map[string]string)
	for _, cand := range candidates {
		if len(cand.Citations) > 0 && cand.Citations[0].SourceTitle != "" {
			titles[cand.Chunk.SourceSlug] = cand.Citations[0].SourceTitle
		}
	}

	var b strings.Builder
	for i, slug := range sortedKeys(bySource) {
		if i > 0 {
			b.WriteString("\n\n")
		}
		title := titles[slug]
		if title == "" {
			title = slug
		}
		b.WriteString("From ")
		b.WriteString(title)
		b.WriteString(":\n")
		for j, p := range bySource[slug] {
			if j > 0 {
				b.WriteString("\n")
			}
			b.WriteString(p.sentence)
			b.WriteString(" ")
			b.WriteString(p.citation.String())
		}
	}
	if b.Len() == 0 {
		return fallbackNarrative(candidates)
	}
	return b.String()
}

// fallbackNarrative covers the case where no sentence overlaps the
// question at all: quote the top candidate rather than return nothing.
func fallbackNarrative(candidates []types.ScoredCandidate) string {
	if len(candidates) == 0 {
		return ""
	}
	top := candidates[0]
	var citation string
	if len(top.Citations) > 0 {
		citation = " " + top.Citations[0].String()
	}
	return textutil.Truncate(strings.TrimSpace(top.Chunk.Text), 400) + citation
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
