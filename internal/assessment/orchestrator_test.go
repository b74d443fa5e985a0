package assessment_test

import (
	"context"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/tackung/re-say/internal/assessment"
	"github.com/tackung/re-say/pkg/audio"
	"github.com/tackung/re-say/pkg/provider/assess"
)

// stubProvider returns a canned result or error and records the request.
type stubProvider struct {
	result *assess.Result
	err    error

	gotWAV  []byte
	gotText string
	calls   int
}

func (s *stubProvider) Assess(_ context.Context, wav []byte, referenceText string) (*assess.Result, error) {
	s.calls++
	s.gotWAV = wav
	s.gotText = referenceText
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

// speechWAV builds a mono 16 kHz WAV with an audible signal.
func speechWAV(samples int) []byte {
	dataLen := samples * 2
	buf := make([]byte, 44+dataLen)
	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(36+dataLen))
	copy(buf[8:12], "WAVE")
	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)
	binary.LittleEndian.PutUint16(buf[20:22], 1)
	binary.LittleEndian.PutUint16(buf[22:24], 1)
	binary.LittleEndian.PutUint32(buf[24:28], 16000)
	binary.LittleEndian.PutUint32(buf[28:32], 32000)
	binary.LittleEndian.PutUint16(buf[32:34], 2)
	binary.LittleEndian.PutUint16(buf[34:36], 16)
	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataLen))
	for i := 0; i < samples; i++ {
		binary.LittleEndian.PutUint16(buf[44+i*2:], uint16(int16(3000+i%1000)))
	}
	return buf
}

func goodMorningResult() *assess.Result {
	return &assess.Result{
		RecognizedText: "Good morning",
		Scores: assess.Scores{
			Accuracy: 90, Fluency: 95, Completeness: 100, Prosody: 85, Overall: 91.2,
		},
		Words: []assess.Word{
			{Word: "Good", Accuracy: 92, ErrorType: assess.ErrorTypeNone},
			{Word: "morning", Accuracy: 88, ErrorType: assess.ErrorTypeNone},
		},
	}
}

func TestAssess(t *testing.T) {
	provider := &stubProvider{result: goodMorningResult()}
	o := assessment.New(provider)

	got, err := o.Assess(context.Background(),
		audio.CapturedAudio{Data: speechWAV(16000)}, "Good morning.")
	if err != nil {
		t.Fatalf("Assess: %v", err)
	}

	if provider.gotText != "Good morning." {
		t.Errorf("provider got reference %q", provider.gotText)
	}
	if len(provider.gotWAV) != 44+32000 {
		t.Errorf("provider got %d WAV bytes, want normalized recording", len(provider.gotWAV))
	}
	if got.RecognizedText != "Good morning" {
		t.Errorf("RecognizedText = %q", got.RecognizedText)
	}
	if !got.Passed {
		t.Error("overall 91.2 should pass the default threshold")
	}
	if got.AudioSeconds != 1.0 {
		t.Errorf("AudioSeconds = %v, want 1.0", got.AudioSeconds)
	}
	if len(got.Sentence) != 2 || !got.Sentence[0].Matched() || !got.Sentence[1].Matched() {
		t.Errorf("Sentence = %+v, want both tokens matched", got.Sentence)
	}
	if len(got.ProblemWords) != 0 {
		t.Errorf("ProblemWords = %v, want none", got.ProblemWords)
	}
}

func TestAssess_MissingReference(t *testing.T) {
	provider := &stubProvider{result: goodMorningResult()}
	o := assessment.New(provider)

	for _, ref := range []string{"", "   "} {
		_, err := o.Assess(context.Background(), audio.CapturedAudio{Data: speechWAV(100)}, ref)
		if !errors.Is(err, assessment.ErrMissingReference) {
			t.Errorf("Assess(ref=%q) err = %v, want ErrMissingReference", ref, err)
		}
	}
	if provider.calls != 0 {
		t.Errorf("provider called %d times for empty reference, want 0", provider.calls)
	}
}

func TestAssess_SilentAudioSkipsProvider(t *testing.T) {
	provider := &stubProvider{result: goodMorningResult()}
	o := assessment.New(provider)

	silent := speechWAV(100)
	for i := 44; i < len(silent); i++ {
		silent[i] = 0
	}

	_, err := o.Assess(context.Background(), audio.CapturedAudio{Data: silent}, "hello")
	if !errors.Is(err, audio.ErrSilentAudio) {
		t.Fatalf("err = %v, want ErrSilentAudio", err)
	}
	if provider.calls != 0 {
		t.Error("provider must not be called for silent audio")
	}
}

func TestAssess_ProviderErrorPassesThrough(t *testing.T) {
	wantErr := &assess.RecognitionFailedError{Status: "InitialSilenceTimeout"}
	o := assessment.New(&stubProvider{err: wantErr})

	_, err := o.Assess(context.Background(), audio.CapturedAudio{Data: speechWAV(100)}, "hello")
	var rf *assess.RecognitionFailedError
	if !errors.As(err, &rf) {
		t.Fatalf("err = %v, want *RecognitionFailedError", err)
	}
}

func TestAssess_ProblemWords(t *testing.T) {
	provider := &stubProvider{result: &assess.Result{
		RecognizedText: "the brown fox",
		Scores:         assess.Scores{Overall: 55},
		Words: []assess.Word{
			{Word: "the", Accuracy: 95, ErrorType: assess.ErrorTypeNone},
			{Word: "brown", Accuracy: 40, ErrorType: assess.ErrorTypeMispronunciation},
			{Word: "fox", Accuracy: 91, ErrorType: assess.ErrorTypeNone},
		},
	}}
	o := assessment.New(provider)

	got, err := o.Assess(context.Background(),
		audio.CapturedAudio{Data: speechWAV(100)}, "the quick brown fox")
	if err != nil {
		t.Fatalf("Assess: %v", err)
	}

	if got.Passed {
		t.Error("overall 55 should not pass")
	}
	// "quick" was dropped by recognition, "brown" was flagged.
	want := []string{"quick", "brown"}
	if len(got.ProblemWords) != len(want) {
		t.Fatalf("ProblemWords = %v, want %v", got.ProblemWords, want)
	}
	for i, w := range want {
		if got.ProblemWords[i] != w {
			t.Errorf("ProblemWords[%d] = %q, want %q", i, got.ProblemWords[i], w)
		}
	}
}

func TestAssess_HintsForUnmatchedWords(t *testing.T) {
	provider := &stubProvider{result: &assess.Result{
		RecognizedText: "the wether is nice",
		Scores:         assess.Scores{Overall: 60},
		Words: []assess.Word{
			{Word: "the", Accuracy: 95, ErrorType: assess.ErrorTypeNone},
			{Word: "wether", Accuracy: 72, ErrorType: assess.ErrorTypeNone},
			{Word: "is", Accuracy: 90, ErrorType: assess.ErrorTypeNone},
			{Word: "nice", Accuracy: 88, ErrorType: assess.ErrorTypeNone},
		},
	}}
	o := assessment.New(provider)

	got, err := o.Assess(context.Background(),
		audio.CapturedAudio{Data: speechWAV(100)}, "the weather is nice")
	if err != nil {
		t.Fatalf("Assess: %v", err)
	}

	if hint, ok := got.Hints["weather"]; !ok || hint != "wether" {
		t.Errorf("Hints = %v, want weather → wether", got.Hints)
	}
}

func TestAssess_CustomThreshold(t *testing.T) {
	provider := &stubProvider{result: goodMorningResult()}
	o := assessment.New(provider, assessment.WithPassThreshold(95))

	got, err := o.Assess(context.Background(),
		audio.CapturedAudio{Data: speechWAV(100)}, "Good morning.")
	if err != nil {
		t.Fatalf("Assess: %v", err)
	}
	if got.Passed {
		t.Error("overall 91.2 should not pass a threshold of 95")
	}
}
