// Package textutil provides the deterministic text primitives shared by
// the ranker, formatter, and synthesizer: tokenization, overlap
// similarity, sentence extraction, and token-cost estimation. Everything
// here is pure and offline so that identical inputs always produce
// identical outputs.
package textutil

import (
	"strings"
	"unicode"
)

// DefaultTokenCostDivisor approximates tokens as runes/4, which tracks
// common BPE tokenizers closely enough for budgeting without pulling a
// network-fetched vocabulary into the hot path.
const DefaultTokenCostDivisor = 4

// Tokenize lowercases text and splits it on any non-letter, non-digit
// rune. Empty tokens are dropped.
func Tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	return fields
}

// TokenSet returns the set of distinct tokens in text.
func TokenSet(text string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, tok := range Tokenize(text) {
		set[tok] = struct{}{}
	}
	return set
}

// JaccardSimilarity computes token-overlap similarity between two texts:
// |A ∩ B| / |A ∪ B| over their distinct token sets. Returns 1 for two
// empty texts and 0 when exactly one is empty.
func JaccardSimilarity(a, b string) float64 {
	setA := TokenSet(a)
	setB := TokenSet(b)

	if len(setA) == 0 && len(setB) == 0 {
		return 1
	}
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}

	intersection := 0
	for tok := range setA {
		if _, ok := setB[tok]; ok {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	return float64(intersection) / float64(union)
}

// minSentenceLen filters out fragments like "Dr." or list markers.
const minSentenceLen = 20

// SplitSentences extracts sentences from text by terminal punctuation.
// Fragments shorter than a minimum length are folded into the next
// sentence, which keeps abbreviations from producing noise.
func SplitSentences(text string) []string {
	var sentences []string
	var current strings.Builder

	for _, r := range text {
		current.WriteRune(r)
		if (r == '.' || r == '!' || r == '?') && current.Len() > minSentenceLen {
			s := strings.TrimSpace(current.String())
			if s != "" {
				sentences = append(sentences, s)
			}
			current.Reset()
		}
	}

	if tail := strings.TrimSpace(current.String()); len(tail) > minSentenceLen {
		sentences = append(sentences, tail)
	}

	return sentences
}

// EstimateTokens returns the deterministic token cost of text:
// ceil(runes/divisor). A non-positive divisor falls back to the default.
func EstimateTokens(text string, divisor int) int {
	if divisor <= 0 {
		divisor = DefaultTokenCostDivisor
	}
	runes := len([]rune(text))
	if runes == 0 {
		return 0
	}
	return (runes + divisor - 1) / divisor
}

// Truncate shortens text to at most max runes, appending an ellipsis when
// anything was cut.
func Truncate(text string, max int) string {
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	if max <= 3 {
		return string(runes[:max])
	}
	return string(runes[:max-3]) + "..."
}
