// Package audio converts captured microphone recordings into the fixed PCM
// format the pronunciation scorer requires: mono, 16 kHz, 16-bit signed
// little-endian samples inside a minimal 44-byte RIFF/WAVE container.
//
// Supported input containers are RIFF/WAVE (any sample rate and channel
// count, 16-bit PCM or 32-bit IEEE float) and Ogg Opus. Decoding other
// containers fails with a [DecodeError].
//
// Normalization is a pure transformation: decode → silence check → resample
// the first channel → quantize → serialize. Recordings in which no decoded
// sample exceeds the audible threshold are rejected with [ErrSilentAudio]
// before any provider quota is spent.
package audio

import (
	"errors"
	"fmt"
	"math"
)

// Target output format. The scoring provider accepts exactly this shape;
// both values are fixed regardless of the source recording.
const (
	TargetSampleRate = 16000
	TargetChannels   = 1
)

// silenceThreshold is the minimum absolute amplitude (on a [-1, 1] scale)
// any decoded sample must exceed for the recording to count as audible.
const silenceThreshold = 0.001

// ErrSilentAudio reports a recording with no audible signal. This is a
// user-correctable condition (microphone muted, spoke too quietly).
var ErrSilentAudio = errors.New("audio: no audible signal detected in recording")

// DecodeError reports that a captured recording could not be decoded.
type DecodeError struct {
	// Detail describes what failed (e.g. "unsupported container").
	Detail string

	// Err is the underlying decoder error, if any.
	Err error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("audio: decode: %s: %v", e.Detail, e.Err)
	}
	return "audio: decode: " + e.Detail
}

func (e *DecodeError) Unwrap() error { return e.Err }

// CapturedAudio is one raw microphone recording as uploaded by a client.
// It is ephemeral: created per recording and discarded after normalization.
type CapturedAudio struct {
	// Data is the compressed (or container-wrapped) audio bytes.
	Data []byte

	// MIME is the declared content type (e.g. "audio/ogg;codecs=opus").
	// Informational only — the decoder sniffs the container from Data.
	MIME string
}

// NormalizedAudio is a complete RIFF/WAVE file holding mono 16 kHz 16-bit
// PCM. The WAV field is ready to send to the scoring provider as-is.
type NormalizedAudio struct {
	// WAV is the full container: 44-byte header followed by PCM samples.
	WAV []byte

	// SampleCount is the number of 16-bit samples in the data chunk.
	SampleCount int
}

// Duration returns the length of the normalized audio in seconds.
func (n NormalizedAudio) Duration() float64 {
	return float64(n.SampleCount) / float64(TargetSampleRate)
}

// decodedAudio is the intermediate floating-point form of a recording:
// the first channel only, at the source's native sample rate, with samples
// normalized to [-1, 1].
type decodedAudio struct {
	samples    []float32
	sampleRate int
}

// int16ToFloat maps a signed 16-bit sample to [-1, 1]. It is the exact
// inverse of [floatToInt16]: negative samples divide by 32768 and
// non-negative by 32767, so a quantize→decode→quantize round trip is
// lossless.
func int16ToFloat(v int16) float32 {
	if v < 0 {
		return float32(v) / 32768.0
	}
	return float32(v) / 32767.0
}

// floatToInt16 quantizes a [-1, 1] sample to signed 16-bit. Values outside
// the range are clamped first. The negative/non-negative scale split
// (32768 vs 32767) is a wire-compatibility requirement of the scoring
// pipeline and must not be symmetrized.
func floatToInt16(s float32) int16 {
	f := float64(s)
	if f < -1 {
		f = -1
	} else if f > 1 {
		f = 1
	}
	// Round to nearest rather than truncate: the inverse scale division is
	// not exactly representable for the non-negative branch, and truncation
	// would drop such samples by one step on re-normalization.
	if f < 0 {
		return int16(math.Round(f * 32768))
	}
	return int16(math.Round(f * 32767))
}
