package capture

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// SessionConfig describes one recording session.
type SessionConfig struct {
	// OnSilence, when non-nil, enables silence-based auto-stop: the callback
	// is invoked at most once per session after speech followed by sustained
	// silence. The callback must arrange for Stop (or ForceStop) to be
	// called; the recorder does not stop itself. When nil, no polling timer
	// or analysis work runs at all.
	OnSilence func()

	// Silence tunes the detector when OnSilence is set. Ignored otherwise.
	Silence SilenceConfig
}

// Recorder owns the capture lifecycle for a single audio source. At most one
// session is live per Recorder; every acquired stream is released by exactly
// one of Stop or ForceStop on every code path. Multiple independent Recorder
// instances may coexist — there is no package-level state.
//
// All methods are safe for concurrent use.
type Recorder struct {
	device Device

	mu   sync.Mutex
	sess *session
}

// session bundles everything a live recording owns: the stream handle, the
// ordered chunk accumulator, and the optional silence-detection goroutine.
// It is created on Start and fully torn down by Stop or ForceStop.
type session struct {
	id     string
	stream Stream

	chunkMu sync.Mutex
	chunks  [][]byte

	pumpDone chan struct{}

	// cancelWatch stops the silence goroutine; watchDone is closed when it
	// has fully exited, guaranteeing no callback fires after teardown.
	cancelWatch context.CancelFunc
	watchDone   chan struct{}
}

// NewRecorder creates a Recorder that captures from device.
func NewRecorder(device Device) *Recorder {
	return &Recorder{device: device}
}

// Start acquires the capture source and begins accumulating encoded chunks.
// When cfg.OnSilence is set it also starts the silence detector sharing the
// same stream.
//
// Returns [ErrAlreadyRecording] while a session is live, or the device's
// acquisition error ([ErrPermissionDenied], [ErrDeviceUnavailable],
// [ErrSecureContextRequired]) when the source cannot be opened.
func (r *Recorder) Start(ctx context.Context, cfg SessionConfig) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sess != nil {
		return ErrAlreadyRecording
	}

	stream, err := r.device.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("capture: acquire: %w", err)
	}

	s := &session{
		id:       uuid.NewString(),
		stream:   stream,
		pumpDone: make(chan struct{}),
	}

	go s.pump()

	if cfg.OnSilence != nil {
		det := NewSilenceDetector(cfg.Silence)
		watchCtx, cancel := context.WithCancel(context.Background())
		s.cancelWatch = cancel
		s.watchDone = make(chan struct{})
		go func() {
			fired := det.watch(watchCtx, stream.Level)
			// Signal completion before invoking the callback: the callback
			// conventionally calls Stop, which waits on watchDone.
			close(s.watchDone)
			if fired {
				cfg.OnSilence()
			}
		}()
	}

	r.sess = s
	slog.Debug("recording session started", "session_id", s.id, "silence_detection", cfg.OnSilence != nil)
	return nil
}

// pump drains the stream's chunk channel into the accumulator, preserving
// arrival order. It exits when the channel closes (after the final flush).
func (s *session) pump() {
	defer close(s.pumpDone)
	for chunk := range s.stream.Chunks() {
		s.chunkMu.Lock()
		s.chunks = append(s.chunks, chunk)
		s.chunkMu.Unlock()
	}
}

// Stop finalizes the live session and returns the concatenated encoded
// audio. It waits for the final chunk flush before assembling the result,
// and it releases the stream and stops the silence detector on every exit
// path, including errors.
//
// Calling Stop with no live session is a no-op: it returns an empty result
// and nil error, and releases nothing (there is nothing to release).
func (r *Recorder) Stop(ctx context.Context) ([]byte, error) {
	r.mu.Lock()
	s := r.sess
	r.sess = nil
	r.mu.Unlock()

	if s == nil {
		return nil, nil
	}

	// Silence watcher first, so its callback cannot observe a half-closed
	// session.
	if s.cancelWatch != nil {
		s.cancelWatch()
		<-s.watchDone
	}

	// Close triggers the final flush, closes the chunk channel, and
	// releases the source — this is the unconditional release point.
	closeErr := s.stream.Close()

	select {
	case <-s.pumpDone:
	case <-ctx.Done():
		// The stream is already released; only the final drain was cut short.
		slog.Warn("recording stop interrupted before final flush", "session_id", s.id, "err", ctx.Err())
		return nil, fmt.Errorf("capture: stop session %s: %w", s.id, ctx.Err())
	}

	s.chunkMu.Lock()
	defer s.chunkMu.Unlock()

	var total int
	for _, c := range s.chunks {
		total += len(c)
	}
	encoded := make([]byte, 0, total)
	for _, c := range s.chunks {
		encoded = append(encoded, c...)
	}

	if closeErr != nil {
		slog.Warn("stream close reported error", "session_id", s.id, "err", closeErr)
	}
	slog.Debug("recording session stopped", "session_id", s.id, "chunks", len(s.chunks), "bytes", len(encoded))
	return encoded, nil
}

// ForceStop synchronously tears down every session resource without waiting
// for a graceful final flush. Each teardown step swallows its own error so a
// failing release never blocks the others. Idempotent; safe to call with no
// live session. Use it when Stop cannot be awaited (process shutdown, page
// hidden).
func (r *Recorder) ForceStop() {
	r.mu.Lock()
	s := r.sess
	r.sess = nil
	r.mu.Unlock()

	if s == nil {
		return
	}

	if s.cancelWatch != nil {
		s.cancelWatch()
		<-s.watchDone
	}

	if err := s.stream.Close(); err != nil {
		slog.Warn("force stop: stream close failed", "session_id", s.id, "err", err)
	}

	slog.Debug("recording session force-stopped", "session_id", s.id)
}

// IsRecording reports whether a session is currently live.
func (r *Recorder) IsRecording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sess != nil
}
