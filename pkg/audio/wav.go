package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
)

var (
	// ErrEmptyBuffer is returned when a zero-byte clip is handed to the
	// decoder. Callers treat this as "no speech captured" rather than a
	// hard failure.
	ErrEmptyBuffer = errors.New("audio: empty input buffer")

	// ErrDecodeFailure is returned when the input cannot be decoded as a
	// RIFF/WAV container with 16-bit PCM payload. Unlike ErrEmptyBuffer this
	// is surfaced to the user.
	ErrDecodeFailure = errors.New("audio: undecodable input")
)

const (
	riffHeaderSize = 44
	wavFormatPCM   = 1
)

// EncodeWAV wraps raw 16-bit signed little-endian PCM data in a minimal
// RIFF/WAV header. sampleRate and channels describe the PCM payload.
func EncodeWAV(pcm []byte, sampleRate, channels int) []byte {
	dataLen := len(pcm)
	byteRate := sampleRate * channels * 2
	blockAlign := channels * 2

	out := make([]byte, riffHeaderSize+dataLen)
	copy(out[0:4], "RIFF")
	binary.LittleEndian.PutUint32(out[4:8], uint32(36+dataLen))
	copy(out[8:12], "WAVE")
	copy(out[12:16], "fmt ")
	binary.LittleEndian.PutUint32(out[16:20], 16)
	binary.LittleEndian.PutUint16(out[20:22], wavFormatPCM)
	binary.LittleEndian.PutUint16(out[22:24], uint16(channels))
	binary.LittleEndian.PutUint32(out[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(out[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(out[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(out[34:36], 16)
	copy(out[36:40], "data")
	binary.LittleEndian.PutUint32(out[40:44], uint32(dataLen))
	copy(out[riffHeaderSize:], pcm)
	return out
}

// DecodeWAV parses a RIFF/WAV container holding 16-bit PCM and returns the
// raw PCM payload together with its sample rate and channel count.
//
// A zero-byte input yields [ErrEmptyBuffer]. Any malformed or unsupported
// container (bad magic, missing chunks, non-PCM codec, zero-length data)
// yields an error wrapping [ErrDecodeFailure] so the two failure modes stay
// distinguishable for callers.
func DecodeWAV(data []byte) (pcm []byte, sampleRate, channels int, err error) {
	if len(data) == 0 {
		return nil, 0, 0, ErrEmptyBuffer
	}
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, 0, 0, fmt.Errorf("%w: not a RIFF/WAVE container", ErrDecodeFailure)
	}

	var (
		haveFmt    bool
		bitsPerSmp int
	)

	// Walk the chunk list. fmt must precede data per the RIFF spec, but
	// tolerate any ordering of unrelated chunks (LIST, fact, ...).
	off := 12
	for off+8 <= len(data) {
		id := string(data[off : off+4])
		size := int(binary.LittleEndian.Uint32(data[off+4 : off+8]))
		body := off + 8
		if size < 0 || body+size > len(data) {
			return nil, 0, 0, fmt.Errorf("%w: truncated %q chunk", ErrDecodeFailure, id)
		}

		switch id {
		case "fmt ":
			if size < 16 {
				return nil, 0, 0, fmt.Errorf("%w: fmt chunk too short", ErrDecodeFailure)
			}
			format := int(binary.LittleEndian.Uint16(data[body : body+2]))
			if format != wavFormatPCM {
				return nil, 0, 0, fmt.Errorf("%w: unsupported wav format %d (want PCM)", ErrDecodeFailure, format)
			}
			channels = int(binary.LittleEndian.Uint16(data[body+2 : body+4]))
			sampleRate = int(binary.LittleEndian.Uint32(data[body+4 : body+8]))
			bitsPerSmp = int(binary.LittleEndian.Uint16(data[body+14 : body+16]))
			haveFmt = true

		case "data":
			if !haveFmt {
				return nil, 0, 0, fmt.Errorf("%w: data chunk before fmt chunk", ErrDecodeFailure)
			}
			if bitsPerSmp != 16 {
				return nil, 0, 0, fmt.Errorf("%w: unsupported bit depth %d (want 16)", ErrDecodeFailure, bitsPerSmp)
			}
			if channels <= 0 || sampleRate <= 0 {
				return nil, 0, 0, fmt.Errorf("%w: invalid fmt chunk (rate=%d channels=%d)", ErrDecodeFailure, sampleRate, channels)
			}
			if size == 0 {
				return nil, 0, 0, fmt.Errorf("%w: empty data chunk", ErrDecodeFailure)
			}
			return data[body : body+size], sampleRate, channels, nil
		}

		// Chunks are word-aligned; odd sizes carry a pad byte.
		off = body + size
		if size%2 == 1 {
			off++
		}
	}

	return nil, 0, 0, fmt.Errorf("%w: no data chunk found", ErrDecodeFailure)
}

// Float32ToPCM16 converts normalised float32 samples to 16-bit signed
// little-endian PCM bytes, clamping values outside [-1.0, 1.0].
func Float32ToPCM16(samples []float32) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		if s > 1.0 {
			s = 1.0
		} else if s < -1.0 {
			s = -1.0
		}
		v := int16(s * 32767.0)
		binary.LittleEndian.PutUint16(out[i*2:i*2+2], uint16(v))
	}
	return out
}

// PCM16ToFloat32Mono converts 16-bit signed little-endian PCM to mono float32
// samples normalised to [-1.0, 1.0], averaging all channels per frame. If
// channels is 1 the samples are converted directly. A trailing partial frame
// is silently ignored.
func PCM16ToFloat32Mono(pcm []byte, channels int) []float32 {
	if channels <= 1 {
		n := len(pcm) / 2
		samples := make([]float32, n)
		for i := 0; i < n; i++ {
			samples[i] = float32(int16(binary.LittleEndian.Uint16(pcm[i*2:i*2+2]))) / 32768.0
		}
		return samples
	}
	frames := len(pcm) / (2 * channels)
	mono := make([]float32, frames)
	for i := 0; i < frames; i++ {
		var sum float32
		for ch := 0; ch < channels; ch++ {
			idx := (i*channels + ch) * 2
			sum += float32(int16(binary.LittleEndian.Uint16(pcm[idx:idx+2]))) / 32768.0
		}
		mono[i] = sum / float32(channels)
	}
	return mono
}
