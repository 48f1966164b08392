package selection

import (
	"strings"

	"github.com/agnivade/levenshtein"
)

// maxResolveDistance bounds how different a token may be from the clicked
// word before we refuse to match it and the caller falls back to a
// synthetic key.
const maxResolveDistance = 2

// Tokenize splits subtitle text into clickable word tokens. Punctuation
// attached to words is trimmed so a click on "word," matches "word".
func Tokenize(text string) []string {
	fields := strings.Fields(text)
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.Trim(f, ".,!?;:\"'()[]«»¿¡")
		if f == "" {
			continue
		}
		out = append(out, f)
	}
	return out
}

// ResolveToken finds the token index of word within containerText.
// Exact (case-folded) matches win; when the word appears more than once
// the occurrence nearest hint is chosen, which is how repeated words in a
// sentence stay distinguishable. If nothing matches exactly (the rendered
// text can drift between render and click), the nearest token by
// levenshtein distance is accepted up to maxResolveDistance. Returns (-1, false) when
// the word cannot be placed; the caller should then use a fallback key.
func ResolveToken(containerText, word string, hint int) (int, bool) {
	tokens := Tokenize(containerText)
	if len(tokens) == 0 || word == "" {
		return -1, false
	}
	folded := strings.ToLower(word)

	best := -1
	for i, tok := range tokens {
		if strings.ToLower(tok) != folded {
			continue
		}
		if best == -1 || abs(i-hint) < abs(best-hint) {
			best = i
		}
	}
	if best >= 0 {
		return best, true
	}

	bestDist := maxResolveDistance + 1
	for i, tok := range tokens {
		d := levenshtein.ComputeDistance(strings.ToLower(tok), folded)
		if d < bestDist || (d == bestDist && best >= 0 && abs(i-hint) < abs(best-hint)) {
			bestDist = d
			best = i
		}
	}
	if bestDist <= maxResolveDistance && bestDist < len(folded) {
		return best, true
	}
	return -1, false
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
