// Package assess defines the provider-agnostic interface for scoring a
// spoken recording against a reference text, together with the normalized
// result types every backend must map its wire format onto.
package assess

import (
	"context"
	"errors"
	"fmt"
)

// ErrNoResult reports that the provider answered successfully but returned
// no recognition candidates, so there is nothing to score.
var ErrNoResult = errors.New("assess: provider returned no recognition result")

// RecognitionFailedError reports that the provider rejected or could not
// recognize the recording. Status carries the provider's own status string.
type RecognitionFailedError struct {
	Status string
}

func (e *RecognitionFailedError) Error() string {
	return "assess: recognition failed with status " + e.Status
}

// HTTPError reports a non-2xx response from the provider. Body holds the
// response payload (possibly truncated) for diagnostics.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("assess: provider returned HTTP %d: %s", e.StatusCode, e.Body)
}

// ErrorType classifies a per-word pronunciation problem. The set is closed;
// values a provider emits outside it are mapped to [ErrorTypeNone].
type ErrorType string

const (
	ErrorTypeNone             ErrorType = "None"
	ErrorTypeMispronunciation ErrorType = "Mispronunciation"
	ErrorTypeOmission         ErrorType = "Omission"
	ErrorTypeInsertion        ErrorType = "Insertion"
	ErrorTypeUnexpectedBreak  ErrorType = "UnexpectedBreak"
	ErrorTypeMissingBreak     ErrorType = "MissingBreak"
	ErrorTypeMonotone         ErrorType = "Monotone"
)

// ParseErrorType maps a provider error-type string onto the closed set.
// Unknown or empty values become [ErrorTypeNone] so downstream consumers
// never see an unlisted value.
func ParseErrorType(s string) ErrorType {
	switch ErrorType(s) {
	case ErrorTypeMispronunciation, ErrorTypeOmission, ErrorTypeInsertion,
		ErrorTypeUnexpectedBreak, ErrorTypeMissingBreak, ErrorTypeMonotone:
		return ErrorType(s)
	default:
		return ErrorTypeNone
	}
}

// Scores holds the five utterance-level scores on a 0–100 scale. Scores the
// provider omits stay at zero.
type Scores struct {
	Accuracy     float64 `json:"accuracyScore"`
	Fluency      float64 `json:"fluencyScore"`
	Completeness float64 `json:"completenessScore"`
	Prosody      float64 `json:"prosodyScore"`
	Overall      float64 `json:"pronunciationScore"`
}

// Phoneme is one scored phoneme within a word.
type Phoneme struct {
	Phoneme  string  `json:"phoneme"`
	Accuracy float64 `json:"accuracyScore"`
}

// Word is one scored word of the utterance in spoken order. Phonemes is
// always serialized, as an empty list when the provider sent none.
type Word struct {
	Word      string    `json:"word"`
	Accuracy  float64   `json:"accuracyScore"`
	ErrorType ErrorType `json:"errorType"`
	Phonemes  []Phoneme `json:"phonemes"`
}

// Result is a normalized pronunciation assessment. RecognizedText is the
// provider's display form of what it heard, which may differ from the
// reference text when words were dropped or inserted.
type Result struct {
	RecognizedText string `json:"recognizedText"`
	Scores         Scores `json:"scores"`
	Words          []Word `json:"words"`
}

// Provider scores a normalized recording against a reference text.
type Provider interface {
	// Assess submits wav (a complete mono 16 kHz 16-bit RIFF/WAVE file)
	// for scoring against referenceText. It returns a
	// [*RecognitionFailedError] when the provider could not recognize
	// speech, [ErrNoResult] when recognition succeeded without candidates,
	// and a [*HTTPError] for non-2xx provider responses.
	Assess(ctx context.Context, wav []byte, referenceText string) (*Result, error)
}
