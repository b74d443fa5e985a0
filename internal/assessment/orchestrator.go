// Package assessment composes the full scoring pipeline: normalize a
// captured recording, submit it for pronunciation scoring, and shape the
// result for display. It owns no transport concerns; the HTTP layer calls
// [Orchestrator.Assess] and maps errors to status codes.
package assessment

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/tackung/re-say/internal/observe"
	"github.com/tackung/re-say/pkg/align"
	"github.com/tackung/re-say/pkg/audio"
	"github.com/tackung/re-say/pkg/provider/assess"
)

// DefaultPassThreshold is the overall score at or above which an attempt
// counts as passed.
const DefaultPassThreshold = 70.0

// ErrMissingReference reports an assessment request without a reference
// text to score against.
var ErrMissingReference = errors.New("assessment: reference text must not be empty")

// Result is the orchestrated assessment handed to the API layer: the
// provider result plus display-side derivations.
type Result struct {
	assess.Result

	// Passed reports whether the overall score reached the pass threshold.
	Passed bool `json:"passed"`

	// AudioSeconds is the duration of the normalized recording.
	AudioSeconds float64 `json:"audioSeconds"`

	// Sentence pairs each token of the reference text with its scored
	// word, in display order.
	Sentence []align.SentenceToken `json:"sentence"`

	// ProblemWords lists the reference tokens that need work: unmatched
	// tokens and words the provider flagged or scored below the pass
	// threshold. Tokens are listed as written in the reference text.
	ProblemWords []string `json:"problemWords,omitempty"`

	// Hints maps unmatched problem words to what the provider likely
	// heard instead, when a sound-alike scored word exists.
	Hints map[string]string `json:"hints,omitempty"`
}

// Option is a functional option for configuring an [Orchestrator].
type Option func(*Orchestrator)

// WithPassThreshold sets the pass threshold on the 0–100 score scale.
func WithPassThreshold(threshold float64) Option {
	return func(o *Orchestrator) {
		o.passThreshold = threshold
	}
}

// WithMetrics sets the metrics instance. Defaults to
// [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(o *Orchestrator) {
		o.metrics = m
	}
}

// Orchestrator runs the normalize → score → shape pipeline. It is
// stateless across requests and safe for concurrent use.
type Orchestrator struct {
	normalizer    *audio.Normalizer
	provider      assess.Provider
	metrics       *observe.Metrics
	passThreshold float64
}

// New creates an Orchestrator scoring with provider.
func New(provider assess.Provider, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		normalizer:    audio.NewNormalizer(),
		provider:      provider,
		passThreshold: DefaultPassThreshold,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.metrics == nil {
		o.metrics = observe.DefaultMetrics()
	}
	return o
}

// Assess runs the full pipeline for one recording. The typed errors of the
// underlying stages pass through unwrapped so the caller can map them:
// [audio.ErrSilentAudio], [*audio.DecodeError], [ErrMissingReference], and
// the assess package's provider errors.
func (o *Orchestrator) Assess(ctx context.Context, captured audio.CapturedAudio, referenceText string) (*Result, error) {
	referenceText = strings.TrimSpace(referenceText)
	if referenceText == "" {
		return nil, ErrMissingReference
	}

	o.metrics.InFlightAssessments.Add(ctx, 1)
	defer o.metrics.InFlightAssessments.Add(ctx, -1)

	start := time.Now()
	normalized, err := o.normalizer.Normalize(captured)
	o.metrics.NormalizeDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		o.metrics.RecordAssessment(ctx, normalizeFailureStatus(err))
		return nil, err
	}

	start = time.Now()
	scored, err := o.provider.Assess(ctx, normalized.WAV, referenceText)
	o.metrics.AssessDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		o.metrics.RecordProviderRequest(ctx, "assess", "error")
		o.metrics.RecordProviderError(ctx, "assess")
		o.metrics.RecordAssessment(ctx, "provider_error")
		return nil, err
	}
	o.metrics.RecordProviderRequest(ctx, "assess", "ok")
	o.metrics.RecordAssessment(ctx, "success")

	sentence := align.Align(referenceText, scored.Words)

	return &Result{
		Result:       *scored,
		Passed:       scored.Scores.Overall >= o.passThreshold,
		AudioSeconds: normalized.Duration(),
		Sentence:     sentence,
		ProblemWords: o.problemWords(sentence),
		Hints:        hints(sentence, scored.Words),
	}, nil
}

// hints pairs each unmatched pronounceable token with the scored word the
// provider most likely heard in its place.
func hints(sentence []align.SentenceToken, scoredWords []assess.Word) map[string]string {
	var m map[string]string
	for _, tok := range sentence {
		if tok.Matched() || !pronounceable(tok.Text) {
			continue
		}
		if heard, ok := align.NearestWord(tok.Text, scoredWords); ok {
			if m == nil {
				m = make(map[string]string)
			}
			m[tok.Text] = heard.Word
		}
	}
	return m
}

// problemWords collects the reference tokens a learner should retry.
// Punctuation-only tokens are never problems; there is nothing to
// pronounce.
func (o *Orchestrator) problemWords(sentence []align.SentenceToken) []string {
	var words []string
	for _, tok := range sentence {
		switch {
		case !tok.Matched():
			if pronounceable(tok.Text) {
				words = append(words, tok.Text)
			}
		case tok.Assessment.ErrorType != assess.ErrorTypeNone:
			words = append(words, tok.Text)
		case tok.Assessment.Accuracy < o.passThreshold:
			words = append(words, tok.Text)
		}
	}
	return words
}

// pronounceable reports whether the token contains anything to pronounce.
func pronounceable(token string) bool {
	return strings.ContainsFunc(token, func(r rune) bool {
		return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
	})
}

// normalizeFailureStatus maps a normalization error onto a metrics status
// label.
func normalizeFailureStatus(err error) string {
	if errors.Is(err, audio.ErrSilentAudio) {
		return "silent"
	}
	return "decode_error"
}
