package capture_test

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/kouyulab/kouyu/pkg/capture"
	"github.com/kouyulab/kouyu/pkg/capture/mock"
)

func TestRecorder_StartStopCollectsChunksInOrder(t *testing.T) {
	t.Parallel()

	stream := mock.NewStream()
	stream.FinalChunk = []byte("-final")
	dev := &mock.Device{Stream: stream}
	rec := capture.NewRecorder(dev)

	if err := rec.Start(context.Background(), capture.SessionConfig{}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !rec.IsRecording() {
		t.Error("IsRecording=false after Start")
	}

	stream.Push([]byte("chunk1-"))
	stream.Push([]byte("chunk2-"))
	stream.Push([]byte("chunk3"))

	encoded, err := rec.Stop(context.Background())
	if err != nil {
		t.Fatalf("Stop: %v", err)
	}
	want := []byte("chunk1-chunk2-chunk3-final")
	if !bytes.Equal(encoded, want) {
		t.Errorf("encoded=%q, want %q (arrival order, final flush last)", encoded, want)
	}
	if rec.IsRecording() {
		t.Error("IsRecording=true after Stop")
	}
	if stream.CloseCallCount != 1 {
		t.Errorf("stream closed %d times, want 1", stream.CloseCallCount)
	}
}

func TestRecorder_StopWithoutStart(t *testing.T) {
	t.Parallel()

	dev := &mock.Device{}
	rec := capture.NewRecorder(dev)

	encoded, err := rec.Stop(context.Background())
	if err != nil {
		t.Fatalf("Stop without Start: err=%v, want nil", err)
	}
	if len(encoded) != 0 {
		t.Errorf("encoded length=%d, want 0", len(encoded))
	}
	if dev.AcquireCallCount != 0 {
		t.Error("Stop without Start must not touch the device")
	}
}

func TestRecorder_StartWhileRecordingRejected(t *testing.T) {
	t.Parallel()

	dev := &mock.Device{Stream: mock.NewStream()}
	rec := capture.NewRecorder(dev)

	if err := rec.Start(context.Background(), capture.SessionConfig{}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	err := rec.Start(context.Background(), capture.SessionConfig{})
	if !errors.Is(err, capture.ErrAlreadyRecording) {
		t.Errorf("second Start err=%v, want ErrAlreadyRecording", err)
	}
	if dev.AcquireCallCount != 1 {
		t.Errorf("AcquireCallCount=%d, want 1 — rejected Start must not acquire", dev.AcquireCallCount)
	}
	rec.ForceStop()
}

func TestRecorder_AcquisitionErrorsPassThrough(t *testing.T) {
	t.Parallel()

	kinds := []error{
		capture.ErrPermissionDenied,
		capture.ErrDeviceUnavailable,
		capture.ErrSecureContextRequired,
	}
	for _, kind := range kinds {
		dev := &mock.Device{AcquireErr: kind}
		rec := capture.NewRecorder(dev)
		err := rec.Start(context.Background(), capture.SessionConfig{})
		if !errors.Is(err, kind) {
			t.Errorf("Start err=%v, want %v", err, kind)
		}
		if rec.IsRecording() {
			t.Error("IsRecording=true after failed Start")
		}
	}
}

// Every acquired stream is released exactly once across repeated cycles —
// the core resource-leak property of the recorder.
func TestRecorder_NoLeaksAcrossRepeatedCycles(t *testing.T) {
	t.Parallel()

	dev := &mock.Device{} // fresh default stream per Acquire
	rec := capture.NewRecorder(dev)

	const cycles = 25
	for i := 0; i < cycles; i++ {
		if err := rec.Start(context.Background(), capture.SessionConfig{}); err != nil {
			t.Fatalf("cycle %d Start: %v", i, err)
		}
		if i%3 == 0 {
			rec.ForceStop()
		} else {
			if _, err := rec.Stop(context.Background()); err != nil {
				t.Fatalf("cycle %d Stop: %v", i, err)
			}
		}
	}

	if len(dev.Streams) != cycles {
		t.Fatalf("acquired %d streams, want %d", len(dev.Streams), cycles)
	}
	for i, s := range dev.Streams {
		ms := s.(*mock.Stream)
		if ms.CloseCallCount != 1 {
			t.Errorf("stream %d closed %d times, want exactly 1", i, ms.CloseCallCount)
		}
	}
}

func TestRecorder_ForceStopIdempotent(t *testing.T) {
	t.Parallel()

	stream := mock.NewStream()
	stream.CloseErr = errors.New("device wedged")
	dev := &mock.Device{Stream: stream}
	rec := capture.NewRecorder(dev)

	if err := rec.Start(context.Background(), capture.SessionConfig{}); err != nil {
		t.Fatalf("Start: %v", err)
	}

	// ForceStop swallows the close error and can be called repeatedly.
	rec.ForceStop()
	rec.ForceStop()
	rec.ForceStop()

	if stream.CloseCallCount != 1 {
		t.Errorf("CloseCallCount=%d, want 1", stream.CloseCallCount)
	}
	if rec.IsRecording() {
		t.Error("IsRecording=true after ForceStop")
	}
}

func TestRecorder_SilenceAutoStop(t *testing.T) {
	t.Parallel()

	stream := mock.NewStream()
	dev := &mock.Device{Stream: stream}
	rec := capture.NewRecorder(dev)

	fired := make(chan struct{})
	var once sync.Once
	cfg := capture.SessionConfig{
		OnSilence: func() { once.Do(func() { close(fired) }) },
		Silence: capture.SilenceConfig{
			Threshold:    15,
			Duration:     50 * time.Millisecond,
			PollInterval: 5 * time.Millisecond,
		},
	}
	if err := rec.Start(context.Background(), cfg); err != nil {
		t.Fatalf("Start: %v", err)
	}

	// Simulate speech, then sustained silence.
	stream.SetLevel(120)
	time.Sleep(25 * time.Millisecond)
	stream.SetLevel(0)

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("silence callback never fired")
	}

	// The callback conventionally stops the recording; doing so from the
	// test goroutine must not deadlock either.
	if _, err := rec.Stop(context.Background()); err != nil {
		t.Fatalf("Stop after silence: %v", err)
	}
	if stream.CloseCallCount != 1 {
		t.Errorf("CloseCallCount=%d, want 1", stream.CloseCallCount)
	}
}

func TestRecorder_SilenceCallbackMayCallStop(t *testing.T) {
	t.Parallel()

	stream := mock.NewStream()
	dev := &mock.Device{Stream: stream}
	rec := capture.NewRecorder(dev)

	done := make(chan []byte, 1)
	cfg := capture.SessionConfig{
		Silence: capture.SilenceConfig{
			Threshold:    15,
			Duration:     30 * time.Millisecond,
			PollInterval: 5 * time.Millisecond,
		},
	}
	cfg.OnSilence = func() {
		encoded, err := rec.Stop(context.Background())
		if err != nil {
			t.Errorf("Stop from silence callback: %v", err)
		}
		done <- encoded
	}

	if err := rec.Start(context.Background(), cfg); err != nil {
		t.Fatalf("Start: %v", err)
	}
	stream.Push([]byte("speech"))
	stream.SetLevel(200)
	time.Sleep(20 * time.Millisecond)
	stream.SetLevel(0)

	select {
	case encoded := <-done:
		if !bytes.Equal(encoded, []byte("speech")) {
			t.Errorf("encoded=%q, want %q", encoded, "speech")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("auto-stop via callback deadlocked or never fired")
	}
}

func TestRecorder_NoDetectorWithoutCallback(t *testing.T) {
	t.Parallel()

	stream := mock.NewStream()
	dev := &mock.Device{Stream: stream}
	rec := capture.NewRecorder(dev)

	// Silence config without a callback must not start any polling.
	cfg := capture.SessionConfig{
		Silence: capture.SilenceConfig{Duration: time.Millisecond, PollInterval: time.Millisecond},
	}
	if err := rec.Start(context.Background(), cfg); err != nil {
		t.Fatalf("Start: %v", err)
	}
	time.Sleep(20 * time.Millisecond)
	if _, err := rec.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}
