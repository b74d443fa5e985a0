// Package azure provides an Azure Speech-backed pronunciation assessment
// provider using the short-audio REST API with the detailed output format.
// It implements the assess.Provider interface.
package azure

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/tackung/re-say/pkg/provider/assess"
)

const (
	endpointFmt     = "https://%s.stt.speech.microsoft.com/speech/recognition/conversation/cognitiveservices/v1"
	defaultLanguage = "en-US"

	// wavContentType declares the exact PCM shape the audio pipeline emits.
	wavContentType = "audio/wav; codecs=audio/pcm; samplerate=16000"

	// maxErrorBody caps how much of a provider error response is kept for
	// diagnostics.
	maxErrorBody = 2048
)

// Option is a functional option for configuring the Azure Provider.
type Option func(*Provider)

// WithLanguage sets the BCP-47 recognition language (e.g., "en-US").
func WithLanguage(language string) Option {
	return func(p *Provider) {
		p.language = language
	}
}

// WithHTTPClient sets the HTTP client used for provider requests.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) {
		p.httpClient = c
	}
}

// WithEndpoint overrides the regional endpoint URL. Intended for tests.
func WithEndpoint(endpoint string) Option {
	return func(p *Provider) {
		p.endpoint = endpoint
	}
}

// Provider implements assess.Provider backed by the Azure Speech REST API.
type Provider struct {
	apiKey     string
	language   string
	endpoint   string
	httpClient *http.Client
}

// New creates a new Azure Provider. apiKey and region must be non-empty.
func New(apiKey, region string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("azure: apiKey must not be empty")
	}
	if region == "" {
		return nil, errors.New("azure: region must not be empty")
	}
	p := &Provider{
		apiKey:     apiKey,
		language:   defaultLanguage,
		endpoint:   fmt.Sprintf(endpointFmt, region),
		httpClient: &http.Client{},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// assessmentParams is the configuration object carried base64-encoded in the
// Pronunciation-Assessment request header.
type assessmentParams struct {
	ReferenceText           string `json:"ReferenceText"`
	GradingSystem           string `json:"GradingSystem"`
	Granularity             string `json:"Granularity"`
	Dimension               string `json:"Dimension"`
	EnableProsodyAssessment string `json:"EnableProsodyAssessment"`
}

// buildAssessmentHeader encodes the assessment configuration for the given
// reference text.
func buildAssessmentHeader(referenceText string) string {
	params := assessmentParams{
		ReferenceText:           referenceText,
		GradingSystem:           "HundredMark",
		Granularity:             "Phoneme",
		Dimension:               "Comprehensive",
		EnableProsodyAssessment: "True",
	}
	raw, _ := json.Marshal(params)
	return base64.StdEncoding.EncodeToString(raw)
}

// Assess submits the WAV recording for scoring against referenceText and
// normalizes the detailed-format response.
func (p *Provider) Assess(ctx context.Context, wav []byte, referenceText string) (*assess.Result, error) {
	q := url.Values{}
	q.Set("language", p.language)
	q.Set("format", "detailed")
	reqURL := p.endpoint + "?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(wav))
	if err != nil {
		return nil, fmt.Errorf("azure: build request: %w", err)
	}
	req.Header.Set("Ocp-Apim-Subscription-Key", p.apiKey)
	req.Header.Set("Content-Type", wavContentType)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Pronunciation-Assessment", buildAssessmentHeader(referenceText))

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("azure: assess request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &assess.HTTPError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("azure: read response: %w", err)
	}
	return normalizeResponse(raw)
}

// ---- wire format ----

// azureResponse mirrors the detailed-format recognition response. The
// utterance, word, and phoneme scores sit directly on each candidate
// object; every score field is optional and defaults to zero.
type azureResponse struct {
	RecognitionStatus string `json:"RecognitionStatus"`
	DisplayText       string `json:"DisplayText"`
	NBest             []struct {
		Display           string  `json:"Display"`
		AccuracyScore     float64 `json:"AccuracyScore"`
		FluencyScore      float64 `json:"FluencyScore"`
		CompletenessScore float64 `json:"CompletenessScore"`
		ProsodyScore      float64 `json:"ProsodyScore"`
		PronScore         float64 `json:"PronScore"`
		Words             []struct {
			Word          string  `json:"Word"`
			AccuracyScore float64 `json:"AccuracyScore"`
			ErrorType     string  `json:"ErrorType"`
			Phonemes      []struct {
				Phoneme       string  `json:"Phoneme"`
				AccuracyScore float64 `json:"AccuracyScore"`
			} `json:"Phonemes"`
		} `json:"Words"`
	} `json:"NBest"`
}

// normalizeResponse maps a raw detailed-format response body onto the
// provider-agnostic result shape. Recognition failures and empty candidate
// lists become typed errors rather than zero-filled results.
func normalizeResponse(raw []byte) (*assess.Result, error) {
	var ar azureResponse
	if err := json.Unmarshal(raw, &ar); err != nil {
		return nil, fmt.Errorf("azure: decode response: %w", err)
	}

	if ar.RecognitionStatus != "Success" {
		return nil, &assess.RecognitionFailedError{Status: ar.RecognitionStatus}
	}
	if len(ar.NBest) == 0 {
		return nil, assess.ErrNoResult
	}

	best := ar.NBest[0]

	// The top-level DisplayText wins; some responses only populate the
	// per-candidate Display field.
	recognized := ar.DisplayText
	if recognized == "" {
		recognized = best.Display
	}

	words := make([]assess.Word, 0, len(best.Words))
	for _, w := range best.Words {
		phonemes := make([]assess.Phoneme, 0, len(w.Phonemes))
		for _, ph := range w.Phonemes {
			phonemes = append(phonemes, assess.Phoneme{
				Phoneme:  ph.Phoneme,
				Accuracy: ph.AccuracyScore,
			})
		}
		words = append(words, assess.Word{
			Word:      w.Word,
			Accuracy:  w.AccuracyScore,
			ErrorType: assess.ParseErrorType(w.ErrorType),
			Phonemes:  phonemes,
		})
	}

	return &assess.Result{
		RecognizedText: recognized,
		Scores: assess.Scores{
			Accuracy:     best.AccuracyScore,
			Fluency:      best.FluencyScore,
			Completeness: best.CompletenessScore,
			Prosody:      best.ProsodyScore,
			Overall:      best.PronScore,
		},
		Words: words,
	}, nil
}
