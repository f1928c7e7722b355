package score

import (
	"math"
	"slices"

	"github.com/antzucaro/matchr"
)

// Tier is a discrete feedback classification derived from the numeric score
// and the pass verdict. The values are stable identifiers; user-facing
// strings are a presentation concern and are localised elsewhere.
type Tier string

const (
	TierPerfect        Tier = "perfect"
	TierAlmost         Tier = "almost"
	TierKeepPracticing Tier = "keep-practicing"
	TierTryAgain       Tier = "try-again"
)

// Score-combination weights: character presence dominates, ordering refines.
const (
	presenceWeight = 0.6
	orderWeight    = 0.4
)

// Result is the immutable outcome of grading one transcript against one
// expected phrase.
type Result struct {
	// Score is the combined presence+order score, 0–100.
	Score int

	// Passed is true only when every expected character was present AND the
	// score is exactly 100. Reordered answers with full character coverage
	// therefore fail: 100 requires perfect order as well as perfect
	// coverage. This strict rule is intentional, if sharp-edged for
	// languages with flexible word order.
	Passed bool

	// Feedback is the tier selected from Score and Passed.
	Feedback Tier

	// Matched, Missed and Extra are the character-set comparison results
	// over normalised code points, sorted ascending for determinism.
	Matched []rune
	Missed  []rune
	Extra   []rune

	// Similarity is a Jaro-Winkler similarity diagnostic over the normalised
	// strings. It does not feed into Score; it exists for logging and for
	// tuning the feedback copy.
	Similarity float64
}

// Score grades transcript against expected. It is a pure total function over
// two strings and never fails: empty or garbage input produces a zero score,
// not an error.
func Score(transcript, expected string) Result {
	normT := Normalize(transcript)
	normE := Normalize(expected)

	tSet := runeSet(normT)
	eSet := runeSet(normE)

	var matched, missed, extra []rune
	for r := range eSet {
		if _, ok := tSet[r]; ok {
			matched = append(matched, r)
		} else {
			missed = append(missed, r)
		}
	}
	for r := range tSet {
		if _, ok := eSet[r]; !ok {
			extra = append(extra, r)
		}
	}
	slices.Sort(matched)
	slices.Sort(missed)
	slices.Sort(extra)

	var presence, order float64
	if len(eSet) > 0 {
		presence = float64(len(matched)) / float64(len(eSet))
	}
	if expectedLen := len([]rune(normE)); expectedLen > 0 {
		order = float64(LCSLength(normT, normE)) / float64(expectedLen)
	}

	raw := (presence*presenceWeight + order*orderWeight) * 100
	// Round half-up to the nearest integer.
	final := int(math.Floor(raw + 0.5))

	passed := len(missed) == 0 && final == 100

	var similarity float64
	if normT != "" && normE != "" {
		similarity = matchr.JaroWinkler(normT, normE, false)
	}

	return Result{
		Score:      final,
		Passed:     passed,
		Feedback:   tierFor(final, passed),
		Matched:    matched,
		Missed:     missed,
		Extra:      extra,
		Similarity: similarity,
	}
}

// tierFor selects the feedback tier. Evaluation order matters: a pass always
// maps to the perfect tier before the numeric thresholds are consulted.
func tierFor(score int, passed bool) Tier {
	switch {
	case passed:
		return TierPerfect
	case score >= 80:
		return TierAlmost
	case score >= 50:
		return TierKeepPracticing
	default:
		return TierTryAgain
	}
}

func runeSet(s string) map[rune]struct{} {
	set := make(map[rune]struct{}, len(s))
	for _, r := range s {
		set[r] = struct{}{}
	}
	return set
}
