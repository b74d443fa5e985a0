// Package align reconstructs a sentence-shaped view of an assessment by
// pairing each token of the reference sentence with its scored word from
// the provider. The provider's word list may be shorter than the reference
// (omissions) or offset (insertions), so pairing is a greedy forward scan
// with a bounded lookahead rather than a strict zip.
package align

import (
	"strings"

	"github.com/tackung/re-say/pkg/provider/assess"
)

// lookahead is the number of scored words inspected per reference token.
// Three slots tolerate one or two dropped reference words without losing
// synchronization while bounding rescans. The scan is greedy and never
// backtracks, so a spurious inserted word can still mis-align the rest of
// the sentence; that limitation is accepted for stable results.
const lookahead = 3

// SentenceToken is one whitespace-delimited unit of the reference sentence
// with its display form preserved. Assessment is nil when no scored word
// matched the token.
type SentenceToken struct {
	// Text is the token as written, casing and punctuation intact.
	Text string `json:"text"`

	// Assessment is the scored word paired with this token, if any.
	Assessment *assess.Word `json:"assessment,omitempty"`
}

// Matched reports whether the token has a paired scored word.
func (t SentenceToken) Matched() bool { return t.Assessment != nil }

// Align pairs the tokens of referenceText with scoredWords. It is a pure
// total function: unmatched tokens simply carry no assessment.
//
// A single cursor moves forward through scoredWords. For each token the
// cursor's next three words are scanned for a normalized match; the first
// hit is attached and the cursor advances past it. On a miss the cursor
// stays put so the next token rescans from the same position.
func Align(referenceText string, scoredWords []assess.Word) []SentenceToken {
	fields := strings.Fields(referenceText)
	tokens := make([]SentenceToken, 0, len(fields))

	cursor := 0
	for _, field := range fields {
		token := SentenceToken{Text: field}

		// Punctuation-only tokens normalize to empty and stay unmatched.
		if norm := normalizeToken(field); norm != "" {
			for k := 0; k < lookahead && cursor+k < len(scoredWords); k++ {
				if normalizeToken(scoredWords[cursor+k].Word) == norm {
					token.Assessment = &scoredWords[cursor+k]
					cursor += k + 1
					break
				}
			}
		}
		tokens = append(tokens, token)
	}
	return tokens
}

// normalizeToken lower-cases s and strips every character outside
// [a-z0-9'].
func normalizeToken(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '\'' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
