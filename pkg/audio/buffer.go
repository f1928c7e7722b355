// Package audio provides the sample-buffer type and WAV codec used by the
// kouyu capture and recognition pipeline.
//
// All audio handed to a transcription provider is mono float32 at
// [TargetSampleRate]. The [Resample] function converts an encoded WAV clip of
// any rate and channel layout into that canonical form.
package audio

import "time"

// TargetSampleRate is the sample rate (Hz) expected by the offline speech
// model. Every SampleBuffer produced by Resample uses this rate.
const TargetSampleRate = 16000

// SampleBuffer is a mono sequence of float32 samples at a declared sample
// rate, normalised to the range [-1.0, 1.0].
//
// An empty buffer is a valid terminal state meaning "no speech captured" —
// it is not an error, but it must never be passed to a transcription
// provider. Callers check [SampleBuffer.Empty] before transcribing.
type SampleBuffer struct {
	// Samples holds the mono PCM samples.
	Samples []float32

	// SampleRate is the rate in Hz at which Samples were produced.
	SampleRate int
}

// Empty reports whether the buffer contains no samples.
func (b SampleBuffer) Empty() bool {
	return len(b.Samples) == 0
}

// Duration returns the playback length of the buffer. Returns 0 when the
// sample rate is unset.
func (b SampleBuffer) Duration() time.Duration {
	if b.SampleRate <= 0 {
		return 0
	}
	return time.Duration(float64(len(b.Samples)) / float64(b.SampleRate) * float64(time.Second))
}
