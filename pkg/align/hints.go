package align

import (
	"github.com/antzucaro/matchr"

	"github.com/tackung/re-say/pkg/provider/assess"
)

const (
	// phoneticThreshold is the minimum Jaro-Winkler score a Double
	// Metaphone candidate must reach to be offered as a hint.
	phoneticThreshold = 0.70

	// fuzzyThreshold applies when no candidate sounds alike and the hint
	// falls back to pure string similarity.
	fuzzyThreshold = 0.85
)

// NearestWord finds the scored word that most plausibly corresponds to an
// unmatched reference token: what the provider likely heard instead. It is
// advisory only and never influences alignment.
//
// Candidates are filtered by Double Metaphone code overlap and ranked by
// Jaro-Winkler similarity; without any sound-alike candidate a stricter
// pure-similarity pass runs instead. ok is false when nothing clears the
// thresholds.
func NearestWord(token string, scoredWords []assess.Word) (word assess.Word, ok bool) {
	norm := normalizeToken(token)
	if norm == "" || len(scoredWords) == 0 {
		return assess.Word{}, false
	}
	primary, secondary := matchr.DoubleMetaphone(norm)

	var (
		best         assess.Word
		bestScore    float64
		bestPhonetic bool
	)
	for _, w := range scoredWords {
		wNorm := normalizeToken(w.Word)
		if wNorm == "" || wNorm == norm {
			continue
		}
		score := matchr.JaroWinkler(norm, wNorm, false)

		wp, ws := matchr.DoubleMetaphone(wNorm)
		phonetic := codesOverlap(primary, secondary, wp, ws)

		switch {
		case phonetic && score >= phoneticThreshold:
			if !bestPhonetic || score > bestScore {
				best, bestScore, bestPhonetic = w, score, true
			}
		case !phonetic && !bestPhonetic && score >= fuzzyThreshold && score > bestScore:
			best, bestScore = w, score
		}
	}

	if bestScore == 0 {
		return assess.Word{}, false
	}
	return best, true
}

// codesOverlap reports whether any non-empty code of one word matches any
// non-empty code of the other.
func codesOverlap(p1, s1, p2, s2 string) bool {
	for _, a := range [...]string{p1, s1} {
		if a == "" {
			continue
		}
		if a == p2 || (s2 != "" && a == s2) {
			return true
		}
	}
	return false
}
