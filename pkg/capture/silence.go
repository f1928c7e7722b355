package capture

import (
	"context"
	"time"
)

// Silence detection defaults. Volume is on the 0–255 scale reported by
// [Stream.Level].
const (
	DefaultSilenceThreshold = 15
	DefaultSilenceDuration  = 1500 * time.Millisecond
	DefaultPollInterval     = 100 * time.Millisecond
)

// SilenceConfig tunes end-of-speech detection for one recording session.
// Zero values select the documented defaults.
type SilenceConfig struct {
	// Threshold is the volume level (0–255) at or below which a poll counts
	// as silence. Default 15.
	Threshold int

	// Duration is how long silence must persist after detected speech
	// before the session is considered finished. Default 1500 ms.
	Duration time.Duration

	// PollInterval is the volume sampling cadence. Default 100 ms.
	PollInterval time.Duration
}

func (c SilenceConfig) withDefaults() SilenceConfig {
	if c.Threshold <= 0 {
		c.Threshold = DefaultSilenceThreshold
	}
	if c.Duration <= 0 {
		c.Duration = DefaultSilenceDuration
	}
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	return c
}

type silenceState int

const (
	stateWaitingForSpeech silenceState = iota
	stateSpeaking
	stateSilenceAfterSpeech
)

// SilenceDetector is the speech-then-silence state machine embedded in a
// recording session. It is not safe for concurrent use; all observations
// happen on the session's single polling goroutine (or directly in tests).
//
// Lifecycle: created fresh for every session, fires at most once, never
// resets after firing — the session is expected to end in response.
type SilenceDetector struct {
	cfg          SilenceConfig
	state        silenceState
	hasSpoken    bool
	silenceStart time.Time
	fired        bool
}

func NewSilenceDetector(cfg SilenceConfig) *SilenceDetector {
	return &SilenceDetector{cfg: cfg.withDefaults()}
}

// Observe feeds one volume poll into the state machine and reports whether
// the end-of-speech condition was reached on this tick. It returns true at
// most once per detector.
func (d *SilenceDetector) Observe(level int, now time.Time) bool {
	if d.fired {
		return false
	}

	if level > d.cfg.Threshold {
		d.state = stateSpeaking
		d.hasSpoken = true
		d.silenceStart = time.Time{}
		return false
	}

	// At or below threshold. Silence before any speech never triggers —
	// otherwise a quiet start would stop the recording immediately.
	if !d.hasSpoken {
		return false
	}

	if d.silenceStart.IsZero() {
		d.state = stateSilenceAfterSpeech
		d.silenceStart = now
		return false
	}

	if now.Sub(d.silenceStart) > d.cfg.Duration {
		d.fired = true
		return true
	}
	return false
}

// watch polls level at the configured interval until the detector fires
// (returning true) or ctx is cancelled (returning false). Cancellation is
// how Stop and ForceStop guarantee that no end-of-speech notification is
// produced after teardown.
func (d *SilenceDetector) watch(ctx context.Context, level func() int) bool {
	ticker := time.NewTicker(d.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return false
		case now := <-ticker.C:
			if d.Observe(level(), now) {
				return true
			}
		}
	}
}
