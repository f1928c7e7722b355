package audio_test

import (
	"encoding/binary"
	"errors"
	"testing"

	"github.com/kouyulab/kouyu/pkg/audio"
)

// sine-ish PCM fixture: a ramp is enough to verify byte-level round trips.
func rampPCM(samples int) []byte {
	pcm := make([]byte, samples*2)
	for i := 0; i < samples; i++ {
		binary.LittleEndian.PutUint16(pcm[i*2:i*2+2], uint16(int16(i%2000-1000)))
	}
	return pcm
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	t.Parallel()

	pcm := rampPCM(800)
	wav := audio.EncodeWAV(pcm, 16000, 1)

	got, rate, channels, err := audio.DecodeWAV(wav)
	if err != nil {
		t.Fatalf("DecodeWAV: %v", err)
	}
	if rate != 16000 || channels != 1 {
		t.Errorf("rate=%d channels=%d, want 16000/1", rate, channels)
	}
	if len(got) != len(pcm) {
		t.Fatalf("payload length %d, want %d", len(got), len(pcm))
	}
	for i := range got {
		if got[i] != pcm[i] {
			t.Fatalf("payload byte %d differs", i)
		}
	}
}

func TestDecodeWAV_EmptyInput(t *testing.T) {
	t.Parallel()

	_, _, _, err := audio.DecodeWAV(nil)
	if !errors.Is(err, audio.ErrEmptyBuffer) {
		t.Errorf("DecodeWAV(nil) err=%v, want ErrEmptyBuffer", err)
	}
}

func TestDecodeWAV_Garbage(t *testing.T) {
	t.Parallel()

	cases := map[string][]byte{
		"not riff":     []byte("this is definitely not audio data"),
		"short":        []byte("RIFF"),
		"no data":      audio.EncodeWAV(nil, 16000, 1)[:44-8],
		"bad magic":    append([]byte("RIFX"), audio.EncodeWAV(rampPCM(10), 16000, 1)[4:]...),
	}
	for name, data := range cases {
		_, _, _, err := audio.DecodeWAV(data)
		if !errors.Is(err, audio.ErrDecodeFailure) {
			t.Errorf("%s: err=%v, want ErrDecodeFailure", name, err)
		}
		if errors.Is(err, audio.ErrEmptyBuffer) {
			t.Errorf("%s: decode failure must not alias ErrEmptyBuffer", name)
		}
	}
}

func TestDecodeWAV_EmptyDataChunk(t *testing.T) {
	t.Parallel()

	wav := audio.EncodeWAV(nil, 16000, 1)
	_, _, _, err := audio.DecodeWAV(wav)
	if !errors.Is(err, audio.ErrDecodeFailure) {
		t.Errorf("empty data chunk: err=%v, want ErrDecodeFailure", err)
	}
}

func TestDecodeWAV_NonPCMFormat(t *testing.T) {
	t.Parallel()

	wav := audio.EncodeWAV(rampPCM(10), 16000, 1)
	// Overwrite the audio format field with 3 (IEEE float).
	binary.LittleEndian.PutUint16(wav[20:22], 3)

	_, _, _, err := audio.DecodeWAV(wav)
	if !errors.Is(err, audio.ErrDecodeFailure) {
		t.Errorf("non-PCM format: err=%v, want ErrDecodeFailure", err)
	}
}

func TestFloat32PCM16RoundTrip(t *testing.T) {
	t.Parallel()

	in := []float32{0, 0.5, -0.5, 0.999, -0.999, 2.0, -2.0}
	pcm := audio.Float32ToPCM16(in)
	out := audio.PCM16ToFloat32Mono(pcm, 1)

	if len(out) != len(in) {
		t.Fatalf("length %d, want %d", len(out), len(in))
	}
	for i, want := range []float32{0, 0.5, -0.5, 0.999, -0.999, 1.0, -1.0} {
		diff := out[i] - want
		if diff < 0 {
			diff = -diff
		}
		if diff > 0.001 {
			t.Errorf("sample %d: got %f, want ~%f", i, out[i], want)
		}
	}
}

func TestPCM16ToFloat32Mono_StereoDownmix(t *testing.T) {
	t.Parallel()

	// One stereo frame: L=16384 (0.5), R=-16384 (-0.5). Average is 0.
	pcm := make([]byte, 4)
	left, right := int16(16384), int16(-16384)
	binary.LittleEndian.PutUint16(pcm[0:2], uint16(left))
	binary.LittleEndian.PutUint16(pcm[2:4], uint16(right))

	mono := audio.PCM16ToFloat32Mono(pcm, 2)
	if len(mono) != 1 {
		t.Fatalf("frames=%d, want 1", len(mono))
	}
	if mono[0] != 0 {
		t.Errorf("downmixed sample=%f, want 0", mono[0])
	}
}
