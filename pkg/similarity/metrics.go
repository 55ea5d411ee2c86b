package similarity

import (
	"math"
	"sort"
	"strings"
)

// DefaultNGramSize is the word n-gram length used by NGramOverlap when the
// caller passes n <= 0.
const DefaultNGramSize = 3

const maxFeatureGram = 3

// Jaccard returns |a ∩ b| / |a ∪ b|. An empty set on either side is no
// evidence and scores 0, including the empty/empty case.
func Jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	if len(b) < len(a) {
		a, b = b, a
	}

	intersection := 0
	for k := range a {
		if _, ok := b[k]; ok {
			intersection++
		}
	}

	union := len(a) + len(b) - intersection
	return float64(intersection) / float64(union)
}

// EditSimilarity is 1 - levenshtein(a, b) / max(len(a), len(b)) measured in
// runes. Two empty strings are identical and score 1.
func EditSimilarity(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	longest := len(ra)
	if len(rb) > longest {
		longest = len(rb)
	}
	if longest == 0 {
		return 1
	}

	sim := 1 - float64(levenshtein(ra, rb))/float64(longest)
	if sim < 0 {
		return 0
	}
	return sim
}

func levenshtein(a, b []rune) int {
	if len(a) < len(b) {
		a, b = b, a
	}
	if len(b) == 0 {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}

	return prev[len(b)]
}

// NGramOverlap is the Jaccard similarity of the word n-gram sets of a and b,
// built from the same tokens as TokenSet. Texts shorter than n words score 0.
func NGramOverlap(a, b string, n int) float64 {
	if n <= 0 {
		n = DefaultNGramSize
	}
	return Jaccard(wordNGrams(Tokens(a), n), wordNGrams(Tokens(b), n))
}

func wordNGrams(words []string, n int) map[string]struct{} {
	grams := make(map[string]struct{})
	for i := 0; i+n <= len(words); i++ {
		grams[strings.Join(words[i:i+n], " ")] = struct{}{}
	}
	return grams
}

// CosineTFIDF fits a TF-IDF model on the two-document corpus {a, b} and
// returns the cosine of the two document vectors. Features are case-folded,
// stopword-filtered 1..3 word n-grams. The model is fitted per call and never
// shared between pairs.
func CosineTFIDF(a, b string) float64 {
	na, nb := Normalize(a), Normalize(b)
	if na == "" || nb == "" {
		return 0
	}
	if na == nb {
		return 1
	}

	fa, fb := termCounts(na), termCounts(nb)
	if len(fa) == 0 || len(fb) == 0 {
		return 0
	}

	vocab := make([]string, 0, len(fa)+len(fb))
	for term := range fa {
		vocab = append(vocab, term)
	}
	for term := range fb {
		if _, ok := fa[term]; !ok {
			vocab = append(vocab, term)
		}
	}
	// Fixed summation order keeps the result bit-identical for (a, b) and (b, a).
	sort.Strings(vocab)

	const docs = 2.0
	var dot, normA, normB float64
	for _, term := range vocab {
		ca, cb := fa[term], fb[term]
		df := 0.0
		if ca > 0 {
			df++
		}
		if cb > 0 {
			df++
		}
		idf := math.Log((1+docs)/(1+df)) + 1

		wa := float64(ca) * idf
		wb := float64(cb) * idf
		dot += wa * wb
		normA += wa * wa
		normB += wb * wb
	}

	if normA == 0 || normB == 0 {
		return 0
	}
	return clamp01(dot / math.Sqrt(normA*normB))
}

func termCounts(normalized string) map[string]int {
	tokens := contentTokens(normalized)
	counts := make(map[string]int)
	for n := 1; n <= maxFeatureGram; n++ {
		for i := 0; i+n <= len(tokens); i++ {
			counts[strings.Join(tokens[i:i+n], " ")]++
		}
	}
	return counts
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
