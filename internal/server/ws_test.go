package server

import (
	"encoding/binary"
	"testing"
)

func pcmFrame(value int16, n int) []byte {
	frame := make([]byte, n*2)
	for i := 0; i < n; i++ {
		binary.LittleEndian.PutUint16(frame[i*2:], uint16(value))
	}
	return frame
}

func TestPCMLevel(t *testing.T) {
	t.Parallel()

	if got := pcmLevel(nil); got != 0 {
		t.Errorf("pcmLevel(nil)=%d, want 0", got)
	}
	if got := pcmLevel(pcmFrame(0, 160)); got != 0 {
		t.Errorf("silent frame level=%d, want 0", got)
	}

	// Full-scale constant signal: RMS ≈ 1.0, level ≈ 255.
	if got := pcmLevel(pcmFrame(32767, 160)); got < 254 {
		t.Errorf("full-scale frame level=%d, want ~255", got)
	}

	// Half-scale signal sits near the middle of the range.
	got := pcmLevel(pcmFrame(16384, 160))
	if got < 126 || got > 129 {
		t.Errorf("half-scale frame level=%d, want ~128", got)
	}

	// A truncated trailing byte is ignored, not misread.
	frame := append(pcmFrame(16384, 4), 0x7f)
	if got, want := pcmLevel(frame), pcmLevel(pcmFrame(16384, 4)); got != want {
		t.Errorf("truncated frame level=%d, want %d", got, want)
	}
}

func TestWSStream_PushAfterCloseDropped(t *testing.T) {
	t.Parallel()

	s := newWSStream()
	s.push([]byte{1, 2})
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// Network frames can race the silence auto-stop; late pushes must be
	// dropped, never panic.
	s.push([]byte{3, 4})

	var got [][]byte
	for chunk := range s.Chunks() {
		got = append(got, chunk)
	}
	if len(got) != 1 {
		t.Errorf("drained %d chunks, want 1", len(got))
	}
	if err := s.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}

func TestWSStream_LevelTracksLatestFrame(t *testing.T) {
	t.Parallel()

	s := newWSStream()
	s.push(pcmFrame(32767, 160))
	loud := s.Level()
	s.push(pcmFrame(0, 160))
	if s.Level() >= loud {
		t.Errorf("level did not drop after silent frame: loud=%d now=%d", loud, s.Level())
	}
}
