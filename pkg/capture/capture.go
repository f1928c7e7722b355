// Package capture provides the microphone-capture state machine for kouyu:
// device acquisition, chunked recording with a guaranteed-release lifecycle,
// and silence-based auto-stop.
//
// The two primary abstractions are:
//
//   - [Device] — acquires exclusive access to an audio source and returns a
//     [Stream].
//   - [Stream] — an active capture handle delivering ordered encoded chunks
//     and an instantaneous volume level.
//
// Implementations of these interfaces are provided by adapter packages (a
// WebSocket-fed device lives in the server; tests use capture/mock). The
// [Recorder] composes a Device with the silence detector and owns every
// resource for exactly one session at a time.
//
// This package lives under pkg/ because external code is expected to
// implement [Device] and [Stream] for new capture transports.
package capture

import (
	"context"
	"errors"
	"time"
)

// Acquisition failures are distinguishable error kinds: the UI surfaces each
// differently and none is retried automatically.
var (
	// ErrPermissionDenied indicates the user (or platform policy) refused
	// microphone access.
	ErrPermissionDenied = errors.New("capture: microphone permission denied")

	// ErrDeviceUnavailable indicates no usable capture device exists or the
	// device is held by another process.
	ErrDeviceUnavailable = errors.New("capture: capture device unavailable")

	// ErrSecureContextRequired indicates the capture transport is not
	// available in the current context (e.g. a non-HTTPS mobile origin).
	ErrSecureContextRequired = errors.New("capture: capture requires a secure context")

	// ErrAlreadyRecording is returned by [Recorder.Start] while a session is
	// live. Starting is an explicit rejection, not a silent no-op, so the
	// caller always knows whether its config took effect.
	ErrAlreadyRecording = errors.New("capture: a recording session is already active")
)

// DefaultFlushInterval is the cadence at which conforming Stream
// implementations flush encoded chunks. A short interval guarantees that even
// very brief recordings yield at least one chunk.
const DefaultFlushInterval = 250 * time.Millisecond

// Device acquires exclusive access to an audio capture source.
//
// Implementations must be safe for concurrent use; each Acquire call returns
// an independent Stream.
type Device interface {
	// Acquire opens the capture source and starts chunked encoding. The
	// returned Stream is live immediately. Acquisition failures are reported
	// as one of [ErrPermissionDenied], [ErrDeviceUnavailable] or
	// [ErrSecureContextRequired] (possibly wrapped).
	Acquire(ctx context.Context) (Stream, error)
}

// Stream is an active capture handle. A Stream is owned by exactly one
// [Recorder] session; no other component may read from it or hold a
// reference to its underlying tracks.
type Stream interface {
	// Chunks returns the ordered sequence of encoded byte segments produced
	// by the source. Chunk order on the channel is the concatenation order
	// required to reconstruct valid encoded audio. The channel is closed
	// after the final flush triggered by Close.
	Chunks() <-chan []byte

	// Level reports the current average volume of the live signal on a
	// 0–255 scale. It must be cheap (sub-millisecond) — the silence
	// detector polls it every 100 ms.
	Level() int

	// Close finalizes the stream: it flushes the final pending chunk,
	// closes the Chunks channel, and releases the underlying source and any
	// analysis resources. Calling Close more than once is safe and returns
	// nil on subsequent calls.
	Close() error
}
