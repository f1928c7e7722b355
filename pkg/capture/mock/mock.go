// Package mock provides test doubles for the capture package interfaces.
//
// Use Device to verify acquisition behaviour and inject failures. Use Stream
// to feed chunks and volume levels into a Recorder under test and to count
// releases.
//
// Example:
//
//	stream := mock.NewStream()
//	dev := &mock.Device{Stream: stream}
//	rec := capture.NewRecorder(dev)
package mock

import (
	"context"
	"sync"

	"github.com/kouyulab/kouyu/pkg/capture"
)

// Device is a mock implementation of capture.Device.
type Device struct {
	mu sync.Mutex

	// Stream is returned by Acquire. If nil, Acquire returns a fresh
	// default Stream (recorded in Streams).
	Stream capture.Stream

	// AcquireErr, if non-nil, is returned as the error from Acquire.
	AcquireErr error

	// AcquireCallCount is the number of times Acquire was called.
	AcquireCallCount int

	// Streams records every Stream handed out by Acquire, in order.
	Streams []capture.Stream
}

// Acquire records the call and returns Stream (or a fresh default Stream)
// and AcquireErr.
func (d *Device) Acquire(_ context.Context) (capture.Stream, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.AcquireCallCount++
	if d.AcquireErr != nil {
		return nil, d.AcquireErr
	}
	s := d.Stream
	if s == nil {
		s = NewStream()
	}
	d.Streams = append(d.Streams, s)
	return s, nil
}

// Ensure Device implements capture.Device at compile time.
var _ capture.Device = (*Device)(nil)

// Stream is a mock implementation of capture.Stream. Feed it data with Push
// and SetLevel; it closes its chunk channel on the first Close call.
type Stream struct {
	mu sync.Mutex

	chunks chan []byte
	level  int
	closed bool

	// CloseErr, if non-nil, is returned by the first Close call.
	CloseErr error

	// CloseCallCount is the number of times Close was called.
	CloseCallCount int

	// FinalChunk, if non-nil, is flushed onto the chunk channel by Close
	// before the channel closes, mimicking a real recorder's final flush.
	FinalChunk []byte
}

// NewStream creates a mock Stream with a generously buffered chunk channel.
func NewStream() *Stream {
	return &Stream{chunks: make(chan []byte, 256)}
}

// Push places a chunk on the channel as if the source had flushed it.
// Pushing after Close panics, like any send on a closed channel would —
// tests should not do that.
func (s *Stream) Push(chunk []byte) {
	s.chunks <- chunk
}

// SetLevel sets the volume level returned by Level.
func (s *Stream) SetLevel(level int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.level = level
}

// Chunks returns the chunk channel.
func (s *Stream) Chunks() <-chan []byte { return s.chunks }

// Level returns the value most recently passed to SetLevel.
func (s *Stream) Level() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.level
}

// Close flushes FinalChunk (if set), closes the chunk channel once, and
// returns CloseErr on the first call only.
func (s *Stream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CloseCallCount++
	if s.closed {
		return nil
	}
	s.closed = true
	if s.FinalChunk != nil {
		s.chunks <- s.FinalChunk
	}
	close(s.chunks)
	return s.CloseErr
}

// Closed reports whether Close has been called at least once.
func (s *Stream) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Ensure Stream implements capture.Stream at compile time.
var _ capture.Stream = (*Stream)(nil)
