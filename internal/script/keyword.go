package script

import (
	"strings"

	"github.com/antzucaro/matchr"
)

// fuzzyThreshold is the minimum Jaro-Winkler similarity a phonetically
// overlapping keyword must reach before it is accepted. Tuned loose enough to
// catch ASR misspellings ("helo", "tiket") without claiming unrelated words.
const fuzzyThreshold = 0.80

// keywordMatcher resolves noisy input against the keyword set using Double
// Metaphone codes for candidate filtering and Jaro-Winkler similarity for
// ranking. It is read-only after construction.
type keywordMatcher struct {
	codes map[string]map[string]struct{} // keyword → metaphone code set
}

// newKeywordMatcher precomputes phonetic codes for every keyword.
func newKeywordMatcher(keywords map[string][]string) *keywordMatcher {
	m := &keywordMatcher{codes: make(map[string]map[string]struct{}, len(keywords))}
	for keyword := range keywords {
		m.codes[keyword] = codesFor(keyword)
	}
	return m
}

// match returns the keyword that best matches input, if any candidate shares
// a phonetic code with it and scores above [fuzzyThreshold].
func (m *keywordMatcher) match(input string) (keyword string, ok bool) {
	inputCodes := codesFor(input)

	var best string
	var bestScore float64
	for candidate, codes := range m.codes {
		if !overlap(inputCodes, codes) {
			continue
		}
		if score := matchr.JaroWinkler(input, candidate, false); score >= fuzzyThreshold && score > bestScore {
			best, bestScore = candidate, score
		}
	}
	return best, best != ""
}

// codesFor returns the union of Double Metaphone codes for every token in s.
// Empty codes (short or vowel-only tokens) are excluded.
func codesFor(s string) map[string]struct{} {
	codes := make(map[string]struct{}, 4)
	for _, token := range strings.Fields(s) {
		p, sec := matchr.DoubleMetaphone(token)
		if p != "" {
			codes[p] = struct{}{}
		}
		if sec != "" {
			codes[sec] = struct{}{}
		}
	}
	return codes
}

// overlap reports whether the two code sets share at least one code.
func overlap(a, b map[string]struct{}) bool {
	if len(a) > len(b) {
		a, b = b, a
	}
	for code := range a {
		if _, ok := b[code]; ok {
			return true
		}
	}
	return false
}
