// Package similarity holds the text similarity metrics shared by the
// plagiarism analyzer and the collaboration detector. Every function is pure
// and safe for concurrent use.
package similarity

import (
	"strings"
	"unicode"
)

const basicPunctuation = ".,;:!?'\"-()"

// Normalize lowercases text, replaces everything except letters, digits,
// whitespace and basic punctuation with spaces, and collapses whitespace.
func Normalize(text string) string {
	if text == "" {
		return ""
	}

	mapped := strings.Map(func(r rune) rune {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r):
			return unicode.ToLower(r)
		case unicode.IsSpace(r):
			return ' '
		case strings.ContainsRune(basicPunctuation, r):
			return r
		default:
			return ' '
		}
	}, text)

	return strings.Join(strings.Fields(mapped), " ")
}

// Tokens returns the normalized words of text with edge punctuation removed.
func Tokens(text string) []string {
	fields := strings.Fields(Normalize(text))
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.Trim(f, basicPunctuation)
		if f != "" {
			tokens = append(tokens, f)
		}
	}
	return tokens
}

func TokenSet(text string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, t := range Tokens(text) {
		set[t] = struct{}{}
	}
	return set
}

// Span is one sentence of a text. Start and End are byte offsets into the
// original, unnormalized text.
type Span struct {
	Start int    `json:"start"`
	End   int    `json:"end"`
	Text  string `json:"text"`
}

// Sentences splits text on sentence terminators and line breaks.
func Sentences(text string) []Span {
	var spans []Span
	start := 0

	flush := func(end int) {
		s, e := start, end
		for s < e && isSpace(text[s]) {
			s++
		}
		for e > s && isSpace(text[e-1]) {
			e--
		}
		if e > s {
			spans = append(spans, Span{Start: s, End: e, Text: text[s:e]})
		}
	}

	for i := 0; i < len(text); i++ {
		switch text[i] {
		case '.', '!', '?', '\n':
			flush(i)
			start = i + 1
		}
	}
	flush(len(text))

	return spans
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\r' || b == '\n'
}

func contentTokens(text string) []string {
	tokens := Tokens(text)
	out := tokens[:0]
	for _, t := range tokens {
		if _, stop := stopwords[t]; !stop {
			out = append(out, t)
		}
	}
	return out
}

var stopwords = func() map[string]struct{} {
	words := strings.Fields(`
		a about above after again against all am an and any are as at be because been before
		being below between both but by can could did do does doing down during each few for
		from further had has have having he her here hers herself him himself his how i if in
		into is it its itself just me more most my myself no nor not now of off on once only or
		other our ours ourselves out over own same she should so some such than that the their
		theirs them themselves then there these they this those through to too under until up
		very was we were what when where which while who whom why will with would you your
		yours yourself yourselves`)
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}()
