package similarity

import (
	"math"
	"testing"
)

var sampleTexts = []string{
	"",
	"a",
	"The mitochondria is the powerhouse of the cell.",
	"Mitochondria produce ATP through oxidative phosphorylation in the inner membrane.",
	"the and of",
	"Photosynthesis converts light energy into chemical energy stored in glucose.",
	"Привет, как дела? Всё хорошо.",
}

func TestJaccardEmptySetsScoreZero(t *testing.T) {
	empty := map[string]struct{}{}
	if got := Jaccard(empty, empty); got != 0 {
		t.Fatalf("expected jaccard(∅, ∅) = 0, got %f", got)
	}
	if got := Jaccard(nil, TokenSet("some words")); got != 0 {
		t.Fatalf("expected jaccard(∅, b) = 0, got %f", got)
	}
}

func TestJaccardSelfIsOne(t *testing.T) {
	set := TokenSet("the quick brown fox jumps")
	if got := Jaccard(set, set); got != 1 {
		t.Fatalf("expected 1, got %f", got)
	}
}

func TestJaccardPartialOverlap(t *testing.T) {
	a := TokenSet("red green blue")
	b := TokenSet("green blue yellow")
	// {green, blue} / {red, green, blue, yellow}
	if got := Jaccard(a, b); math.Abs(got-0.5) > 1e-12 {
		t.Fatalf("expected 0.5, got %f", got)
	}
}

func TestEditSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want float64
	}{
		{name: "both empty", a: "", b: "", want: 1},
		{name: "one empty", a: "abc", b: "", want: 0},
		{name: "identical", a: "kitten", b: "kitten", want: 1},
		{name: "kitten sitting", a: "kitten", b: "sitting", want: 1 - 3.0/7.0},
		{name: "runes not bytes", a: "héllo", b: "hello", want: 0.8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EditSimilarity(tt.a, tt.b)
			if math.Abs(got-tt.want) > 1e-12 {
				t.Fatalf("expected %f, got %f", tt.want, got)
			}
		})
	}
}

func TestNGramOverlap(t *testing.T) {
	if got := NGramOverlap("one two", "one two", 3); got != 0 {
		t.Fatalf("expected 0 for texts shorter than n, got %f", got)
	}
	if got := NGramOverlap("one two three four", "one two three four", 3); got != 1 {
		t.Fatalf("expected 1 for identical texts, got %f", got)
	}
	// grams: {one two three, two three four} vs {one two three, two three five}
	got := NGramOverlap("one two three four", "one two three five", 3)
	if math.Abs(got-1.0/3.0) > 1e-12 {
		t.Fatalf("expected 1/3, got %f", got)
	}
	if got := NGramOverlap("one two three four", "one two three four", 0); got != 1 {
		t.Fatalf("expected default n to apply, got %f", got)
	}
}

func TestNGramOverlapIgnoresEdgePunctuation(t *testing.T) {
	a := "the quick brown fox jumps over the lazy dog."
	b := "The quick, brown fox jumps over the lazy dog"
	if got := NGramOverlap(a, b, 3); got != 1 {
		t.Fatalf("expected punctuation-only differences to score 1, got %f", got)
	}
	if got := Jaccard(TokenSet(a), TokenSet(b)); got != 1 {
		t.Fatalf("expected jaccard to agree, got %f", got)
	}
}

func TestCosineTFIDFSelfSimilarity(t *testing.T) {
	for _, text := range sampleTexts {
		got := CosineTFIDF(text, text)
		if text == "" {
			if got != 0 {
				t.Fatalf("expected empty text to carry no evidence, got %f", got)
			}
			continue
		}
		if got != 1 {
			t.Fatalf("expected cosine(%q, itself) = 1, got %.17f", text, got)
		}
		if edit := EditSimilarity(text, text); edit != 1 {
			t.Fatalf("expected edit(%q, itself) = 1, got %f", text, edit)
		}
	}
}

func TestCosineTFIDFCaseAndWhitespaceInsensitive(t *testing.T) {
	got := CosineTFIDF("Photosynthesis   converts LIGHT", "photosynthesis converts light")
	if got != 1 {
		t.Fatalf("expected 1, got %f", got)
	}
}

func TestCosineTFIDFDisjointTexts(t *testing.T) {
	got := CosineTFIDF("glucose chloroplast sunlight", "tectonic plates subduction")
	if got != 0 {
		t.Fatalf("expected 0 for disjoint vocabularies, got %f", got)
	}
}

func TestCosineTFIDFRewardsSharedPhrases(t *testing.T) {
	base := "the cell membrane regulates transport of ions"
	close := "the cell membrane regulates transport of nutrients"
	far := "membrane proteins can be observed with microscopes"

	if CosineTFIDF(base, close) <= CosineTFIDF(base, far) {
		t.Fatalf("expected shared phrase to score higher: close=%f far=%f",
			CosineTFIDF(base, close), CosineTFIDF(base, far))
	}
}

func TestMetricsAreSymmetric(t *testing.T) {
	for _, a := range sampleTexts {
		for _, b := range sampleTexts {
			if x, y := CosineTFIDF(a, b), CosineTFIDF(b, a); x != y {
				t.Fatalf("cosine not symmetric for %q/%q: %v vs %v", a, b, x, y)
			}
			if x, y := EditSimilarity(a, b), EditSimilarity(b, a); x != y {
				t.Fatalf("edit not symmetric for %q/%q: %v vs %v", a, b, x, y)
			}
			if x, y := NGramOverlap(a, b, 3), NGramOverlap(b, a, 3); x != y {
				t.Fatalf("ngram not symmetric for %q/%q: %v vs %v", a, b, x, y)
			}
			if x, y := Jaccard(TokenSet(a), TokenSet(b)), Jaccard(TokenSet(b), TokenSet(a)); x != y {
				t.Fatalf("jaccard not symmetric for %q/%q: %v vs %v", a, b, x, y)
			}
		}
	}
}

func TestMetricsStayInUnitInterval(t *testing.T) {
	for _, a := range sampleTexts {
		for _, b := range sampleTexts {
			for name, v := range map[string]float64{
				"cosine":  CosineTFIDF(a, b),
				"edit":    EditSimilarity(a, b),
				"ngram":   NGramOverlap(a, b, 3),
				"jaccard": Jaccard(TokenSet(a), TokenSet(b)),
			} {
				if v < 0 || v > 1 || math.IsNaN(v) {
					t.Fatalf("%s(%q, %q) = %f outside [0,1]", name, a, b, v)
				}
			}
		}
	}
}
