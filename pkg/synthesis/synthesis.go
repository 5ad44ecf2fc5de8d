// Package synthesis condenses ranked retrieval candidates into a
// narrative answer. Two modes share one contract: a deterministic
// rule-based extractor that works offline, and a delegated mode that
// forwards an assembled prompt to an external backend. The delegated
// path always falls back to rule-based on failure, so synthesis never
// makes a request fail.
package synthesis

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/readwell/tomes/pkg/types"
)

// Perspective selects how multi-source answers are assembled.
type Perspective string

const (
	// PerspectiveUnified produces one narrative across all sources.
	PerspectiveUnified Perspective = "unified"
	// PerspectiveBySource produces one narrative per source, concatenated.
	PerspectiveBySource Perspective = "by_source"
	// PerspectiveCompare adds a cross-source agreement/divergence section.
	PerspectiveCompare Perspective = "compare"
)

// ParsePerspective converts the wire form; empty maps to unified and
// hyphens are accepted in place of underscores.
func ParsePerspective(s string) (Perspective, error) {
	switch Perspective(strings.ReplaceAll(s, "-", "_")) {
	case PerspectiveUnified, "":
		return PerspectiveUnified, nil
	case PerspectiveBySource:
		return PerspectiveBySource, nil
	case PerspectiveCompare:
		return PerspectiveCompare, nil
	}
	return PerspectiveUnified, fmt.Errorf("unknown perspective %q", s)
}

// Backend is the external synthesis port. The engine only ever sends
// prompts built from already deduplicated, budget-trimmed candidates.
type Backend interface {
	Synthesize(ctx context.Context, prompt string) (string, error)
}

// Selector chooses between rule-based and delegated synthesis. A nil
// backend means rule-based only.
type Selector struct {
	backend Backend
	breaker *gobreaker.CircuitBreaker
	rule    *RuleBased
	logger  *slog.Logger
}

// NewSelector builds a Selector. The circuit breaker opens after
// repeated backend failures so a dead backend stops costing a timeout
// per request.
func NewSelector(backend Backend, logger *slog.Logger) *Selector {
	if logger == nil {
		logger = slog.Default()
	}
	var breaker *gobreaker.CircuitBreaker
	if backend != nil {
		breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "synthesis-backend",
			Timeout: 30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
				return counts.Requests >= 3 && failureRatio >= 0.6
			},
		})
	}
	return &Selector{
		backend: backend,
		breaker: breaker,
		rule:    NewRuleBased(),
		logger:  logger,
	}
}

// Delegated reports whether an external backend is configured.
func (s *Selector) Delegated() bool {
	return s.backend != nil
}

// Synthesize produces a narrative with inline citations from the ranked
// candidates. Delegated mode failures degrade to rule-based output with
// a warning; they are never surfaced as errors.
func (s *Selector) Synthesize(ctx context.Context, candidates []types.ScoredCandidate, question string, perspective Perspective) (string, []string) {
	if len(candidates) == 0 {
		return "", nil
	}

	if s.backend != nil {
		text, err := s.delegate(ctx, candidates, question, perspective)
		if err == nil {
			return text, nil
		}
		s.logger.Warn("synthesis backend failed, falling back to rule-based",
			slog.String("error", err.Error()))
		warning := fmt.Sprintf("%s: %s; used rule-based synthesis", types.ErrSynthesisBackend, err)
		return s.ruleBased(candidates, question, perspective), []string{warning}
	}

	return s.ruleBased(candidates, question, perspective), nil
}

func (s *Selector) ruleBased(candidates []types.ScoredCandidate, question string, perspective Perspective) string {
	if perspective == PerspectiveBySource || perspective == PerspectiveCompare {
		return s.rule.SynthesizeBySource(candidates, question)
	}
	return s.rule.Synthesize(candidates, question)
}

func (s *Selector) delegate(ctx context.Context, candidates []types.ScoredCandidate, question string, perspective Perspective) (string, error) {
	if perspective == PerspectiveBySource {
		return s.delegateBySource(ctx, candidates, question)
	}
	return s.callBackend(ctx, BuildPrompt(candidates, question, perspective))
}

// delegateBySource keeps the per-source structure in the engine rather
// than the model: the backend is called once per source subset and the
// sections are concatenated in slug order, mirroring the rule-based
// layout. Any section failing fails the whole delegation so the caller
// falls back to one coherent rule-based answer instead of a mixed one.
func (s *Selector) delegateBySource(ctx context.Context, candidates []types.ScoredCandidate, question string) (string, error) {
	bySource := make(map[string][]types.ScoredCandidate)
	titles := make(map[string]string)
	for _, cand := range candidates {
		slug := cand.Chunk.SourceSlug
		bySource[slug] = append(bySource[slug], cand)
		if titles[slug] == "" && len(cand.Citations) > 0 {
			titles[slug] = cand.Citations[0].SourceTitle
		}
	}

	var b strings.Builder
	for i, slug := range sortedKeys(bySource) {
		text, err := s.callBackend(ctx, BuildPrompt(bySource[slug], question, PerspectiveUnified))
		if err != nil {
			return "", err
		}
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
		b.WriteString(text)
	}
	return b.String(), nil
}

func (s *Selector) callBackend(ctx context.Context, prompt string) (string, error) {
	out, err := s.breaker.Execute(func() (any, error) {
		return s.backend.Synthesize(ctx, prompt)
	})
	if err != nil {
		return "", err
	}
	text := strings.TrimSpace(out.(string))
	if text == "" {
		return "", fmt.Errorf("backend returned empty synthesis")
	}
	return text, nil
}

// BuildPrompt assembles the delegated-mode prompt. Only the trimmed
// candidate set goes in; the backend never sees the raw corpus.
func BuildPrompt(candidates []types.ScoredCandidate, question string, perspective Perspective) string {
	var b strings.Builder
	b.WriteString("Answer the question using only the excerpts below. ")
	b.WriteString("Cite each claim with the bracketed citation of its excerpt.\n")
	if perspective == PerspectiveCompare {
		b.WriteString("Contrast how the sources agree and differ.\n")
	}
	b.WriteString("\nQuestion: ")
	b.WriteString(question)
	b.WriteString("\n\nExcerpts:\n")
	for i, cand := range candidates {
		fmt.Fprintf(&b, "%d. %s\n", i+1, cand.Chunk.Text)
		for _, c := range cand.Citations {
			b.WriteString("   ")
			b.WriteString(c.String())
			b.WriteString("\n")
		}
	}
	return b.String()
}
