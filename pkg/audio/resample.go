package audio

import "fmt"

// Resample decodes an encoded WAV clip and converts it to a mono
// [SampleBuffer] at [TargetSampleRate].
//
// When the clip's native rate already matches the target, the decoded channel
// data is returned directly with no interpolation step. Otherwise the mono
// samples are resampled by linear interpolation to
// ceil(duration * TargetSampleRate) output samples.
//
// Failure modes: [ErrEmptyBuffer] for zero-byte input and [ErrDecodeFailure]
// (wrapped) for undecodable input. Both pass through from [DecodeWAV]
// unchanged so callers can branch on them.
func Resample(encoded []byte) (SampleBuffer, error) {
	pcm, rate, channels, err := DecodeWAV(encoded)
	if err != nil {
		return SampleBuffer{}, err
	}

	mono := PCM16ToFloat32Mono(pcm, channels)
	if len(mono) == 0 {
		return SampleBuffer{}, fmt.Errorf("%w: data chunk holds no complete frame", ErrDecodeFailure)
	}

	if rate == TargetSampleRate {
		return SampleBuffer{Samples: mono, SampleRate: rate}, nil
	}

	return SampleBuffer{
		Samples:    resampleLinear(mono, rate, TargetSampleRate),
		SampleRate: TargetSampleRate,
	}, nil
}

// resampleLinear resamples mono float32 samples from srcRate to dstRate using
// linear interpolation. The output length is ceil(len(src) * dstRate / srcRate)
// so that the clip duration is preserved to within one output sample.
func resampleLinear(src []float32, srcRate, dstRate int) []float32 {
	if srcRate <= 0 || dstRate <= 0 || len(src) == 0 {
		return nil
	}
	if srcRate == dstRate {
		return src
	}

	dstSamples := int((int64(len(src))*int64(dstRate) + int64(srcRate) - 1) / int64(srcRate))
	out := make([]float32, dstSamples)
	ratio := float64(srcRate) / float64(dstRate)

	for i := 0; i < dstSamples; i++ {
		srcPos := float64(i) * ratio
		srcIdx := int(srcPos)
		if srcIdx >= len(src)-1 {
			out[i] = src[len(src)-1]
			continue
		}
		frac := float32(srcPos - float64(srcIdx))
		out[i] = src[srcIdx]*(1-frac) + src[srcIdx+1]*frac
	}
	return out
}
