package audio

import "math"

// Normalizer converts captured recordings into the provider's target PCM
// format. The zero value is not usable; construct one with [NewNormalizer].
// A Normalizer is stateless and safe for concurrent use.
type Normalizer struct {
	targetRate int
}

// NewNormalizer returns a Normalizer targeting the fixed provider format
// (mono, 16 kHz, 16-bit).
func NewNormalizer() *Normalizer {
	return &Normalizer{targetRate: TargetSampleRate}
}

// Normalize decodes captured, verifies it carries an audible signal,
// resamples the first channel to the target rate, and serializes the
// quantized samples into a RIFF/WAVE container.
//
// It returns [ErrSilentAudio] when no decoded sample exceeds the audible
// threshold and a [*DecodeError] when the input cannot be decoded. The
// transformation allocates but has no other side effects.
func (n *Normalizer) Normalize(captured CapturedAudio) (NormalizedAudio, error) {
	decoded, err := decode(captured.Data)
	if err != nil {
		return NormalizedAudio{}, err
	}

	if !hasAudibleSignal(decoded.samples) {
		return NormalizedAudio{}, ErrSilentAudio
	}

	resampled := resampleLinear(decoded.samples, decoded.sampleRate, n.targetRate)

	quantized := make([]int16, len(resampled))
	for i, s := range resampled {
		quantized[i] = floatToInt16(s)
	}

	return NormalizedAudio{
		WAV:         writeWAV(quantized),
		SampleCount: len(quantized),
	}, nil
}

// decode sniffs the container from the leading magic bytes and dispatches
// to the matching decoder. The declared MIME type is deliberately ignored:
// browsers disagree on codec strings while the container magic is reliable.
func decode(data []byte) (decodedAudio, error) {
	switch {
	case len(data) >= 4 && string(data[0:4]) == "RIFF":
		return decodeWAV(data)
	case len(data) >= 4 && string(data[0:4]) == "OggS":
		return decodeOggOpus(data)
	default:
		return decodedAudio{}, &DecodeError{Detail: "unsupported container"}
	}
}

// hasAudibleSignal reports whether any sample exceeds the silence threshold.
func hasAudibleSignal(samples []float32) bool {
	for _, s := range samples {
		if math.Abs(float64(s)) > silenceThreshold {
			return true
		}
	}
	return false
}

// resampleLinear resamples mono float samples from srcRate to dstRate using
// linear interpolation. The output length is ceil(duration × dstRate) so a
// partial trailing source interval still produces a sample. When the rates
// match the input is returned unchanged, which keeps re-normalization of
// already-normalized audio free of interpolation drift.
func resampleLinear(samples []float32, srcRate, dstRate int) []float32 {
	if srcRate == dstRate || len(samples) == 0 {
		return samples
	}

	srcSamples := len(samples)
	dstSamples := int((int64(srcSamples)*int64(dstRate) + int64(srcRate) - 1) / int64(srcRate))
	if dstSamples == 0 {
		return nil
	}

	out := make([]float32, dstSamples)
	ratio := float64(srcRate) / float64(dstRate)

	for i := 0; i < dstSamples; i++ {
		srcPos := float64(i) * ratio
		srcIdx := int(srcPos)
		if srcIdx >= srcSamples-1 {
			out[i] = samples[srcSamples-1]
			continue
		}
		frac := float32(srcPos - float64(srcIdx))
		out[i] = samples[srcIdx]*(1-frac) + samples[srcIdx+1]*frac
	}
	return out
}
