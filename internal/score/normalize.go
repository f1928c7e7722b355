// Package score grades a speech transcript against an expected phrase using
// tolerant character-level matching: a character-set overlap component and a
// longest-common-subsequence ordering component, combined into a 0–100 score
// with a discrete feedback tier.
//
// Everything in this package is pure and total — no function here returns an
// error or panics on any string input. That property is what lets the
// recognition orchestrator degrade transcription failures to an empty
// transcript and still hand the learner a score.
package score

import (
	"strings"
	"unicode"
)

// strippedPunctuation is the fixed set of CJK and Latin punctuation removed
// before comparison. Whitespace is removed separately via unicode.IsSpace.
const strippedPunctuation = "。，？！、；：“”‘’（）【】.,?!;:\"'()[]"

// Normalize strips punctuation and whitespace from s and case-folds the
// remainder. It is deterministic, total, and idempotent; empty input yields
// empty output.
func Normalize(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) || strings.ContainsRune(strippedPunctuation, r) {
			return -1
		}
		return unicode.ToLower(r)
	}, s)
}
