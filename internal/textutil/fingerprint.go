package textutil

import (
	"math"
	"strings"
)

// minTokenLength drops the one- and two-letter tokens ("a", "of", "is")
// that carry no discriminating signal between transcripts.
const minTokenLength = 3

// Fingerprint is a term-weight vector over a piece of text with its
// Euclidean norm precomputed, so cosine comparisons are a single pass over
// the smaller vector. Weights start as raw term frequencies; WithIDF
// produces a reweighted copy.
type Fingerprint struct {
	tokens map[string]float64
	norm   float64
}

// NewFingerprint builds a term-frequency fingerprint from text. Returns nil
// if the text produces no usable tokens.
func NewFingerprint(text string) *Fingerprint {
	tokens := Tokenize(text)
	if len(tokens) == 0 {
		return nil
	}
	counts := make(map[string]float64, len(tokens))
	for _, token := range tokens {
		counts[token]++
	}
	return newWeighted(counts)
}

// newWeighted wraps an already-built weight map into a Fingerprint,
// computing the norm. Shared by NewFingerprint and WithIDF so both paths
// produce identically-shaped vectors.
func newWeighted(weights map[string]float64) *Fingerprint {
	if len(weights) == 0 {
		return nil
	}
	var norm float64
	for _, w := range weights {
		norm += w * w
	}
	return &Fingerprint{tokens: weights, norm: math.Sqrt(norm)}
}

func isTokenRune(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')
}

// Tokenize lowercases text and splits it on every non-alphanumeric run,
// dropping tokens shorter than minTokenLength.
func Tokenize(text string) []string {
	raw := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !isTokenRune(r)
	})
	terms := make([]string, 0, len(raw))
	for _, token := range raw {
		if len(token) < minTokenLength {
			continue
		}
		terms = append(terms, token)
	}
	return terms
}

// TokenCount returns the number of distinct terms in the fingerprint.
func (f *Fingerprint) TokenCount() int {
	if f == nil {
		return 0
	}
	return len(f.tokens)
}

// CosineSimilarity computes the cosine of the angle between two
// fingerprints. Returns 0 if either is nil or has zero norm.
func CosineSimilarity(a, b *Fingerprint) float64 {
	if a == nil || b == nil || a.norm == 0 || b.norm == 0 {
		return 0
	}
	// Iterate the smaller vector; the dot product only needs shared terms.
	small, large := a, b
	if len(b.tokens) < len(a.tokens) {
		small, large = b, a
	}
	var dot float64
	for token, weight := range small.tokens {
		if other, ok := large.tokens[token]; ok {
			dot += weight * other
		}
	}
	if dot == 0 {
		return 0
	}
	return dot / (a.norm * b.norm)
}
