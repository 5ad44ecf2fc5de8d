package search

import (
	"strings"

	"github.com/readwell/tomes/pkg/textutil"
	"github.com/readwell/tomes/pkg/types"
)

// summaryMaxSentences bounds how much of a chunk a summary quotes.
const summaryMaxSentences = 2

// Formatter renders a ranked candidate list at a detail level inside a
// token budget. Rendering is deterministic: identical candidates and
// parameters always produce identical bytes.
type Formatter struct {
	// TokenCostDivisor tunes the rune-based token estimate.
	TokenCostDivisor int
}

// NewFormatter returns a Formatter with the default cost policy.
func NewFormatter() *Formatter {
	return &Formatter{TokenCostDivisor: textutil.DefaultTokenCostDivisor}
}

// Render appends candidates in rank order until the budget would be
// exceeded. The first entry that does not fit stops rendering and sets
// Truncated; entries are never reordered to pack the budget. A budget of
// zero or less means unlimited. A budget too small for even the first
// entry yields an empty response with a warning.
func (f *Formatter) Render(candidates []types.ScoredCandidate, detail types.DetailLevel, budget int) *types.RetrievalResponse {
	resp := &types.RetrievalResponse{}
	remaining := budget

	for _, cand := range candidates {
		entry := f.renderEntry(&cand, detail)
		if budget > 0 {
			cost := textutil.EstimateTokens(entry.Text, f.TokenCostDivisor)
			if cost > remaining {
				resp.Truncated = true
				break
			}
			remaining -= cost
		}
		resp.Entries = append(resp.Entries, entry)
	}

	if len(candidates) > 0 && len(resp.Entries) == 0 {
		resp.Warnings = append(resp.Warnings, "token budget too small for any entry")
	}
	return resp
}

// renderEntry produces the textual form of one candidate. Citations are
// part of every detail level so source traceability is never dropped.
func (f *Formatter) renderEntry(cand *types.ScoredCandidate, detail types.DetailLevel) types.RenderedEntry {
	var b strings.Builder

	switch detail {
	case types.DetailCitations:
		// Citation line only.
	case types.DetailSummaries:
		b.WriteString(summarize(cand.Chunk.Text))
		b.WriteString("\n")
	default: // DetailPassages
		b.WriteString(cand.Chunk.Text)
		b.WriteString("\n")
	}

	for i, c := range cand.Citations {
		if i > 0 {
			b.WriteString("; ")
		}
		b.WriteString(c.String())
	}

	return types.RenderedEntry{
		Text:      b.String(),
		Score:     cand.CompositeScore,
		Citations: cand.Citations,
		Origin:    cand.Origin.String(),
	}
}

// summarize extracts the leading sentences of a passage. No generative
// rewriting happens here; a summary is always a verbatim prefix.
func summarize(text string) string {
	sentences := textutil.SplitSentences(text)
	if len(sentences) == 0 {
		return textutil.Truncate(strings.TrimSpace(text), 200)
	}
	if len(sentences) > summaryMaxSentences {
		sentences = sentences[:summaryMaxSentences]
	}
	return strings.Join(sentences, " ")
}
