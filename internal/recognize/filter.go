package recognize

// Offline speech models occasionally hallucinate on silence or noise,
// emitting one character repeated dozens of times or a short phrase cycling
// endlessly. CleanTranscript blanks those degenerate outputs before scoring
// so the learner sees "nothing detected" instead of a nonsense grade. It
// sits at the orchestrator boundary — it is corrective filtering of an
// external model's output, not part of scoring or capture.

const (
	// minFilterLength is the transcript length (in code points) below which
	// no heuristic applies; short legitimate answers like 好好 must survive.
	minFilterLength = 6

	// dominantRatio is the fraction of the transcript a single code point
	// must exceed for the output to be considered degenerate.
	dominantRatio = 0.7

	// maxCycleLength is the longest repeating phrase the cycle check looks
	// for, and minCycleRepeats the minimum number of repetitions.
	maxCycleLength  = 4
	minCycleRepeats = 3
)

// CleanTranscript returns transcript unchanged unless it matches a known
// hallucination shape, in which case it returns the empty string.
func CleanTranscript(transcript string) string {
	runes := []rune(transcript)
	if len(runes) < minFilterLength {
		return transcript
	}

	if dominated(runes) || cycles(runes) {
		return ""
	}
	return transcript
}

// dominated reports whether one code point makes up more than dominantRatio
// of the transcript.
func dominated(runes []rune) bool {
	counts := make(map[rune]int, len(runes))
	max := 0
	for _, r := range runes {
		counts[r]++
		if counts[r] > max {
			max = counts[r]
		}
	}
	return float64(max) > dominantRatio*float64(len(runes))
}

// cycles reports whether the transcript is an exact repetition (at least
// minCycleRepeats times) of a prefix no longer than maxCycleLength.
func cycles(runes []rune) bool {
	for period := 1; period <= maxCycleLength && period*minCycleRepeats <= len(runes); period++ {
		if len(runes)%period != 0 {
			continue
		}
		repeats := len(runes) / period
		if repeats < minCycleRepeats {
			continue
		}
		match := true
		for i := period; i < len(runes) && match; i++ {
			match = runes[i] == runes[i-period]
		}
		if match {
			return true
		}
	}
	return false
}
