package audio_test

import (
	"errors"
	"math"
	"testing"

	"github.com/kouyulab/kouyu/pkg/audio"
)

// sinePCM builds len 16-bit mono PCM samples of a sine at freq Hz.
func sinePCM(samples, rate int, freq float64) []byte {
	f := make([]float32, samples)
	for i := 0; i < samples; i++ {
		f[i] = float32(0.5 * math.Sin(2*math.Pi*freq*float64(i)/float64(rate)))
	}
	return audio.Float32ToPCM16(f)
}

func TestResample_EmptyInput(t *testing.T) {
	t.Parallel()

	_, err := audio.Resample(nil)
	if !errors.Is(err, audio.ErrEmptyBuffer) {
		t.Errorf("Resample(nil) err=%v, want ErrEmptyBuffer", err)
	}
}

func TestResample_DecodeFailure(t *testing.T) {
	t.Parallel()

	_, err := audio.Resample([]byte("OggS corrupted or unsupported codec"))
	if !errors.Is(err, audio.ErrDecodeFailure) {
		t.Errorf("err=%v, want ErrDecodeFailure", err)
	}
}

func TestResample_AlreadyAtTargetRate(t *testing.T) {
	t.Parallel()

	const samples = 1600 // 100 ms at 16 kHz
	wav := audio.EncodeWAV(sinePCM(samples, 16000, 440), 16000, 1)

	buf, err := audio.Resample(wav)
	if err != nil {
		t.Fatalf("Resample: %v", err)
	}
	// Fast path: sample count equals the decoded channel data length.
	if len(buf.Samples) != samples {
		t.Errorf("samples=%d, want %d (no intermediate render step)", len(buf.Samples), samples)
	}
	if buf.SampleRate != audio.TargetSampleRate {
		t.Errorf("rate=%d, want %d", buf.SampleRate, audio.TargetSampleRate)
	}
}

func TestResample_Upsample8kTo16k(t *testing.T) {
	t.Parallel()

	const srcSamples = 800 // 100 ms at 8 kHz
	wav := audio.EncodeWAV(sinePCM(srcSamples, 8000, 200), 8000, 1)

	buf, err := audio.Resample(wav)
	if err != nil {
		t.Fatalf("Resample: %v", err)
	}
	want := 1600 // ceil(0.1 s * 16000)
	if len(buf.Samples) != want {
		t.Errorf("samples=%d, want %d", len(buf.Samples), want)
	}
	if buf.SampleRate != audio.TargetSampleRate {
		t.Errorf("rate=%d, want %d", buf.SampleRate, audio.TargetSampleRate)
	}
}

func TestResample_Downsample48kStereo(t *testing.T) {
	t.Parallel()

	// 10 ms of 48 kHz stereo: 480 frames, L==R so the downmix is lossless.
	const frames = 480
	monoF := make([]float32, frames)
	for i := range monoF {
		monoF[i] = float32(0.25 * math.Sin(2*math.Pi*300*float64(i)/48000))
	}
	mono := audio.Float32ToPCM16(monoF)
	stereo := make([]byte, len(mono)*2)
	for i := 0; i < frames; i++ {
		copy(stereo[i*4:i*4+2], mono[i*2:i*2+2])
		copy(stereo[i*4+2:i*4+4], mono[i*2:i*2+2])
	}
	wav := audio.EncodeWAV(stereo, 48000, 2)

	buf, err := audio.Resample(wav)
	if err != nil {
		t.Fatalf("Resample: %v", err)
	}
	want := 160 // ceil(0.01 s * 16000)
	if len(buf.Samples) != want {
		t.Errorf("samples=%d, want %d", len(buf.Samples), want)
	}
}

func TestResample_RoundsLengthUp(t *testing.T) {
	t.Parallel()

	// 3 samples at 44100 Hz: ceil(3*16000/44100) = ceil(1.088) = 2.
	wav := audio.EncodeWAV(audio.Float32ToPCM16([]float32{0.1, 0.2, 0.3}), 44100, 1)

	buf, err := audio.Resample(wav)
	if err != nil {
		t.Fatalf("Resample: %v", err)
	}
	if len(buf.Samples) != 2 {
		t.Errorf("samples=%d, want 2", len(buf.Samples))
	}
}

func TestSampleBuffer_Duration(t *testing.T) {
	t.Parallel()

	buf := audio.SampleBuffer{Samples: make([]float32, 16000), SampleRate: 16000}
	if got := buf.Duration().Seconds(); got != 1.0 {
		t.Errorf("Duration=%fs, want 1s", got)
	}
	if !(audio.SampleBuffer{}).Empty() {
		t.Error("zero SampleBuffer should be Empty")
	}
}
