// Package mock provides a test double for the stt.Transcriber interface.
//
// Program the Result and Err fields, then inspect Calls to verify what was
// transcribed and which hint was supplied.
package mock

import (
	"context"
	"sync"
	"time"

	"github.com/kouyulab/kouyu/pkg/audio"
	"github.com/kouyulab/kouyu/pkg/provider/stt"
)

// TranscribeCall records a single invocation of Transcriber.Transcribe.
type TranscribeCall struct {
	// SampleCount is the number of samples in the submitted buffer.
	SampleCount int

	// SampleRate is the rate of the submitted buffer.
	SampleRate int

	// Hint is the expected-phrase hint passed to Transcribe.
	Hint string
}

// Transcriber is a mock implementation of stt.Transcriber.
type Transcriber struct {
	mu sync.Mutex

	// Result is returned by every Transcribe call.
	Result stt.Result

	// Err, if non-nil, is returned by every Transcribe call.
	Err error

	// Delay, when positive, makes Transcribe block for that long (or until
	// ctx expires). Use it to exercise timeout handling.
	Delay time.Duration

	// Calls records every Transcribe invocation in order.
	Calls []TranscribeCall
}

// Transcribe records the call, waits out Delay (respecting ctx), and returns
// Result, Err. A ctx expiry during the delay is returned as ctx.Err().
func (t *Transcriber) Transcribe(ctx context.Context, buf audio.SampleBuffer, hint string) (stt.Result, error) {
	t.mu.Lock()
	t.Calls = append(t.Calls, TranscribeCall{
		SampleCount: len(buf.Samples),
		SampleRate:  buf.SampleRate,
		Hint:        hint,
	})
	delay := t.Delay
	t.mu.Unlock()

	if delay > 0 {
		select {
		case <-ctx.Done():
			return stt.Result{}, ctx.Err()
		case <-time.After(delay):
		}
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.Err != nil {
		return stt.Result{}, t.Err
	}
	return t.Result, nil
}

// CallCount returns the number of recorded Transcribe calls. Thread-safe.
func (t *Transcriber) CallCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.Calls)
}

// Reset clears all recorded calls. Thread-safe.
func (t *Transcriber) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Calls = nil
}

// Ensure Transcriber implements stt.Transcriber at compile time.
var _ stt.Transcriber = (*Transcriber)(nil)
