package audio_test

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/tackung/re-say/pkg/audio"
)

// makeWAV builds a minimal RIFF/WAVE container with interleaved 16-bit PCM
// samples at the given rate and channel count.
func makeWAV(samples []int16, rate, channels int) []byte {
	dataLen := len(samples) * 2
	buf := make([]byte, 44+dataLen)

	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(36+dataLen))
	copy(buf[8:12], "WAVE")
	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)
	binary.LittleEndian.PutUint16(buf[20:22], 1)
	binary.LittleEndian.PutUint16(buf[22:24], uint16(channels))
	binary.LittleEndian.PutUint32(buf[24:28], uint32(rate))
	binary.LittleEndian.PutUint32(buf[28:32], uint32(rate*channels*2))
	binary.LittleEndian.PutUint16(buf[32:34], uint16(channels*2))
	binary.LittleEndian.PutUint16(buf[34:36], 16)
	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataLen))

	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[44+i*2:], uint16(s))
	}
	return buf
}

// rampSamples returns n clearly audible samples.
func rampSamples(n int) []int16 {
	out := make([]int16, n)
	for i := 0; i < n; i++ {
		out[i] = int16(1000 + i%2000)
	}
	return out
}

func TestNormalize_OutputFormat(t *testing.T) {
	norm := audio.NewNormalizer()

	cases := []struct {
		name     string
		rate     int
		channels int
	}{
		{"48k stereo", 48000, 2},
		{"44.1k mono", 44100, 1},
		{"16k mono", 16000, 1},
		{"8k mono", 8000, 1},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			n := tc.rate / 2 // half a second
			wav := makeWAV(rampSamples(n*tc.channels), tc.rate, tc.channels)

			got, err := norm.Normalize(audio.CapturedAudio{Data: wav, MIME: "audio/wav"})
			if err != nil {
				t.Fatalf("Normalize: %v", err)
			}

			if len(got.WAV) < 44 {
				t.Fatalf("output shorter than header: %d bytes", len(got.WAV))
			}
			if ch := binary.LittleEndian.Uint16(got.WAV[22:24]); ch != 1 {
				t.Errorf("channels = %d, want 1", ch)
			}
			if rate := binary.LittleEndian.Uint32(got.WAV[24:28]); rate != 16000 {
				t.Errorf("sample rate = %d, want 16000", rate)
			}
			if bits := binary.LittleEndian.Uint16(got.WAV[34:36]); bits != 16 {
				t.Errorf("bit depth = %d, want 16", bits)
			}
			dataLen := binary.LittleEndian.Uint32(got.WAV[40:44])
			if int(dataLen) != 2*got.SampleCount {
				t.Errorf("data chunk length = %d, want %d", dataLen, 2*got.SampleCount)
			}
			if len(got.WAV) != 44+int(dataLen) {
				t.Errorf("container length = %d, want %d", len(got.WAV), 44+int(dataLen))
			}

			// Output length is ceil(duration × 16000).
			wantSamples := (n*16000 + tc.rate - 1) / tc.rate
			if got.SampleCount != wantSamples {
				t.Errorf("sample count = %d, want %d", got.SampleCount, wantSamples)
			}
		})
	}
}

func TestNormalize_SilentRecording(t *testing.T) {
	// Every sample below the 0.001 amplitude threshold (|32| / 32767 ≈ 0.00098).
	quiet := make([]int16, 16000)
	for i := range quiet {
		quiet[i] = int16(i%65 - 32)
	}
	wav := makeWAV(quiet, 16000, 1)

	_, err := audio.NewNormalizer().Normalize(audio.CapturedAudio{Data: wav})
	if !errors.Is(err, audio.ErrSilentAudio) {
		t.Fatalf("err = %v, want ErrSilentAudio", err)
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	samples := []int16{0, 1, -1, 100, -100, 12345, -12345, 32767, -32768, 7}
	wav := makeWAV(samples, 16000, 1)
	norm := audio.NewNormalizer()

	first, err := norm.Normalize(audio.CapturedAudio{Data: wav})
	if err != nil {
		t.Fatalf("first Normalize: %v", err)
	}
	second, err := norm.Normalize(audio.CapturedAudio{Data: first.WAV})
	if err != nil {
		t.Fatalf("second Normalize: %v", err)
	}

	if !bytes.Equal(first.WAV, second.WAV) {
		t.Error("re-normalizing normalized audio changed bytes")
	}
	if !bytes.Equal(first.WAV[44:], wav[44:]) {
		t.Error("normalizing already-conformant audio changed sample data")
	}
}

func TestNormalize_UnsupportedContainer(t *testing.T) {
	var decodeErr *audio.DecodeError
	_, err := audio.NewNormalizer().Normalize(audio.CapturedAudio{
		Data: []byte("ID3\x04this is an mp3, not a supported container"),
	})
	if !errors.As(err, &decodeErr) {
		t.Fatalf("err = %v, want *DecodeError", err)
	}
}

func TestNormalize_TruncatedWAV(t *testing.T) {
	wav := makeWAV(rampSamples(100), 16000, 1)
	var decodeErr *audio.DecodeError
	_, err := audio.NewNormalizer().Normalize(audio.CapturedAudio{Data: wav[:20]})
	if !errors.As(err, &decodeErr) {
		t.Fatalf("err = %v, want *DecodeError", err)
	}
}

func TestNormalize_ExtraChunkBeforeData(t *testing.T) {
	// Some encoders insert a LIST chunk between fmt and data; the parser
	// must skip it rather than assume a fixed 44-byte layout.
	base := makeWAV(rampSamples(200), 16000, 1)
	list := make([]byte, 8+10)
	copy(list[0:4], "LIST")
	binary.LittleEndian.PutUint32(list[4:8], 10)

	wav := make([]byte, 0, len(base)+len(list))
	wav = append(wav, base[:36]...) // RIFF + fmt
	wav = append(wav, list...)
	wav = append(wav, base[36:]...) // data chunk onward
	binary.LittleEndian.PutUint32(wav[4:8], uint32(len(wav)-8))

	got, err := audio.NewNormalizer().Normalize(audio.CapturedAudio{Data: wav})
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if got.SampleCount != 200 {
		t.Errorf("sample count = %d, want 200", got.SampleCount)
	}
}

func TestNormalize_StereoUsesFirstChannel(t *testing.T) {
	// Left channel audible, right channel silent: the recording must pass
	// the silence check and the output must match the left channel.
	interleaved := make([]int16, 0, 400)
	for i := 0; i < 200; i++ {
		interleaved = append(interleaved, 5000, 0)
	}
	wav := makeWAV(interleaved, 16000, 2)

	got, err := audio.NewNormalizer().Normalize(audio.CapturedAudio{Data: wav})
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if got.SampleCount != 200 {
		t.Fatalf("sample count = %d, want 200", got.SampleCount)
	}
	first := int16(binary.LittleEndian.Uint16(got.WAV[44:46]))
	if first != 5000 {
		t.Errorf("first sample = %d, want 5000", first)
	}
}

func TestNormalizedAudio_Duration(t *testing.T) {
	n := audio.NormalizedAudio{SampleCount: 8000}
	if d := n.Duration(); d != 0.5 {
		t.Errorf("Duration() = %v, want 0.5", d)
	}
}
