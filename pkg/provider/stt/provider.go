// Package stt defines the Transcriber interface for speech-to-text backends.
//
// A transcriber is an opaque external capability: it accepts a mono
// 16 kHz sample buffer plus an optional expected-phrase hint (used as a
// decoding bias/prompt) and returns the recognised text. Any implementation
// satisfying the contract is acceptable — a local whisper.cpp server
// (stt/whisper), a cloud API (stt/openai), or a test double (stt/mock).
//
// Implementations must be safe for concurrent use.
package stt

import (
	"context"

	"github.com/kouyulab/kouyu/pkg/audio"
)

// Result is a committed transcription outcome. Text is never "null": an
// empty string means nothing was detected.
type Result struct {
	// Text is the transcribed speech content, whitespace-trimmed.
	Text string
}

// Transcriber converts captured audio into text.
type Transcriber interface {
	// Transcribe recognises speech in buf. hint, when non-empty, is the
	// phrase the speaker was expected to say and may be used by the backend
	// as a decoding prompt; backends without prompt support ignore it.
	//
	// buf must be non-empty — callers are responsible for short-circuiting
	// the empty "no speech" buffer before reaching a backend. Transcribe
	// must respect ctx cancellation; the orchestrator wraps calls in a
	// deadline and treats expiry as a failed transcription.
	Transcribe(ctx context.Context, buf audio.SampleBuffer, hint string) (Result, error)
}

// Progress describes one model/asset loading event reported during backend
// warm-up.
type Progress struct {
	// Status is "downloading" while an asset is being fetched or loaded and
	// "done" when warm-up completes.
	Status string

	// File names the asset being loaded, when known.
	File string

	// Percent is the completion percentage for the current file, 0–100.
	// Negative when the backend cannot estimate progress.
	Percent float64
}

// Warmer is implemented by transcribers that load models or other assets
// before their first inference. Callers may invoke Warm at startup to avoid
// paying the load cost on the first user interaction.
type Warmer interface {
	// Warm blocks until the backend is ready to serve inferences, invoking
	// onProgress (when non-nil) as loading advances. It must respect ctx.
	Warm(ctx context.Context, onProgress func(Progress)) error
}
