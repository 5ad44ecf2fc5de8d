package types

import "fmt"

// DetailLevel is the closed, ordered set of rendering depths. The ordering
// matters: rendered size is monotonically non-decreasing from Citations to
// Passages, which is what lets the formatter reason about budgets.
type DetailLevel int

const (
	// DetailCitations renders source + chapter + location only.
	DetailCitations DetailLevel = iota
	// DetailSummaries renders a short synthesized description per entry.
	DetailSummaries
	// DetailPassages renders the full chunk text.
	DetailPassages
)

// String implements fmt.Stringer.
func (d DetailLevel) String() string {
	switch d {
	case DetailCitations:
		return "citations"
	case DetailSummaries:
		return "summaries"
	case DetailPassages:
		return "passages"
	}
	return fmt.Sprintf("detail(%d)", int(d))
}

// ParseDetailLevel converts the wire form of a detail level. An empty
// string maps to the summaries default.
func ParseDetailLevel(s string) (DetailLevel, error) {
	switch s {
	case "citations":
		return DetailCitations, nil
	case "summaries", "":
		return DetailSummaries, nil
	case "passages", "full":
		return DetailPassages, nil
	}
	return DetailSummaries, fmt.Errorf("unknown detail level %q", s)
}

// OriginPath records how a candidate was reached: directly by vector
// similarity, or through graph expansion from a seed concept.
type OriginPath struct {
	// Direct is true when the chunk was a vector-search hit.
	Direct bool `json:"direct"`
	// SeedConcept is the concept the expansion started from, when not direct.
	SeedConcept string `json:"seed_concept,omitempty"`
	// Depth is the number of relationship hops from the seed.
	Depth int `json:"depth,omitempty"`
	// Relationships is the chain of edge kinds walked from the seed.
	Relationships []RelationshipKind `json:"relationships,omitempty"`
}

// String renders the path for logs and trace output.
func (o OriginPath) String() string {
	if o.Direct {
		return "direct-vector"
	}
	return fmt.Sprintf("graph-expansion(%s, depth=%d, via=%v)", o.SeedConcept, o.Depth, o.Relationships)
}

// ScoredCandidate is the shared value type produced by every retrieval
// path. Candidates are ephemeral: created per query, never persisted.
type ScoredCandidate struct {
	Chunk          *Chunk     `json:"chunk"`
	SemanticScore  float64    `json:"semantic_score"`
	GraphProximity float64    `json:"graph_proximity"`
	CompositeScore float64    `json:"composite_score"`
	Origin         OriginPath `json:"origin"`
	// Citations accumulates the union of source citations when
	// near-duplicate candidates are collapsed. Always non-empty for any
	// candidate surfaced in a response.
	Citations []Citation `json:"citations"`
}

// Scope restricts retrieval to a subset of the library.
type Scope struct {
	// Sources filters by book slug.
	Sources []string `json:"sources,omitempty"`
	// Subjects filters by subject/collection slug.
	Subjects []string `json:"subjects,omitempty"`
	// Topics filters by topic slug: only books with an indexed
	// occurrence of the topic are searched.
	Topics []string `json:"topics,omitempty"`
}

// Empty reports whether the scope places no restriction.
func (s Scope) Empty() bool {
	return len(s.Sources) == 0 && len(s.Subjects) == 0 && len(s.Topics) == 0
}

// RetrievalRequest is the immutable input to one orchestration call.
type RetrievalRequest struct {
	Query       string      `json:"query"`
	Scope       Scope       `json:"scope"`
	Detail      DetailLevel `json:"detail"`
	Limit       int         `json:"limit"`
	TokenBudget int         `json:"token_budget"`
}

// RequestState tracks the per-request lifecycle of an orchestration call.
type RequestState string

const (
	StateReceived     RequestState = "received"
	StateDispatching  RequestState = "dispatching"
	StateMerging      RequestState = "merging"
	StateSynthesizing RequestState = "synthesizing"
	StateFormatting   RequestState = "formatting"
	// StateCompleted means every retrieval path succeeded.
	StateCompleted RequestState = "completed"
	// StateDegraded means at least one path failed but a best-effort
	// response was still produced; warnings say which.
	StateDegraded RequestState = "degraded"
	// StateFailed means every retrieval path errored.
	StateFailed RequestState = "failed"
)

// RenderedEntry is one formatted result in a response.
type RenderedEntry struct {
	Text      string     `json:"text"`
	Score     float64    `json:"score"`
	Citations []Citation `json:"citations"`
	Origin    string     `json:"origin"`
}

// RetrievalResponse is the rendered output of one orchestration call.
type RetrievalResponse struct {
	Entries   []RenderedEntry `json:"entries"`
	Truncated bool            `json:"truncated"`
	Warnings  []string        `json:"warnings,omitempty"`
	State     RequestState    `json:"state"`
}
