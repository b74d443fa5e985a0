// Package azure provides an Azure Speech-backed synthesis provider using
// the text-to-speech REST API. It implements the synth.Provider interface.
//
// Synthesis runs against an ordered chain of neural voices: when a voice
// fails (missing from the region, transient provider error) the next voice
// in the chain is tried, and only the final voice's error surfaces.
package azure

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/tackung/re-say/internal/resilience"
	"github.com/tackung/re-say/pkg/provider/synth"
)

const (
	endpointFmt = "https://%s.tts.speech.microsoft.com/cognitiveservices/v1"

	defaultOutputFormat = "audio-24khz-96kbitrate-mono-mp3"
	userAgent           = "re-say"

	maxErrorBody = 2048
)

// defaultVoices is the built-in voice chain, tried in order.
var defaultVoices = []string{"en-US-GuyNeural", "en-US-BrandonNeural"}

// Option is a functional option for configuring the Azure Provider.
type Option func(*Provider)

// WithVoices replaces the voice chain. voices are tried in the given order
// and must be non-empty.
func WithVoices(voices []string) Option {
	return func(p *Provider) {
		p.voices = voices
	}
}

// WithOutputFormat sets the X-Microsoft-OutputFormat value.
func WithOutputFormat(format string) Option {
	return func(p *Provider) {
		p.outputFormat = format
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

// Provider implements synth.Provider backed by the Azure Speech TTS REST
// API.
type Provider struct {
	apiKey       string
	endpoint     string
	outputFormat string
	voices       []string
	chain        *resilience.FallbackGroup[string]
	httpClient   *http.Client
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
		apiKey:       apiKey,
		endpoint:     fmt.Sprintf(endpointFmt, region),
		outputFormat: defaultOutputFormat,
		voices:       defaultVoices,
		httpClient:   &http.Client{},
	}
	for _, o := range opts {
		o(p)
	}
	if len(p.voices) == 0 {
		return nil, errors.New("azure: voice chain must not be empty")
	}
	p.chain = buildVoiceChain(p.voices)
	return p, nil
}

// buildVoiceChain turns an ordered voice list into a fallback group.
func buildVoiceChain(voices []string) *resilience.FallbackGroup[string] {
	fg := resilience.NewFallbackGroup(voices[0], voices[0])
	for _, v := range voices[1:] {
		fg.AddFallback(v, v)
	}
	return fg
}

// Synthesize renders text with the first voice in the chain that succeeds.
func (p *Provider) Synthesize(ctx context.Context, text string) ([]byte, error) {
	if strings.TrimSpace(text) == "" {
		return nil, synth.ErrEmptyText
	}
	return resilience.ExecuteWithResult(p.chain, func(voice string) ([]byte, error) {
		return p.synthesizeWithVoice(ctx, text, voice)
	})
}

// synthesizeWithVoice performs one synthesis request against a single voice.
func (p *Provider) synthesizeWithVoice(ctx context.Context, text, voice string) ([]byte, error) {
	ssml := buildSSML(text, voice)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, strings.NewReader(ssml))
	if err != nil {
		return nil, fmt.Errorf("azure: build request: %w", err)
	}
	req.Header.Set("Ocp-Apim-Subscription-Key", p.apiKey)
	req.Header.Set("Content-Type", "application/ssml+xml")
	req.Header.Set("X-Microsoft-OutputFormat", p.outputFormat)
	req.Header.Set("User-Agent", userAgent)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("azure: synthesize request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &synth.HTTPError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("azure: read response: %w", err)
	}
	return audio, nil
}

// buildSSML wraps text in the minimal SSML document the TTS endpoint
// expects, with the text XML-escaped.
func buildSSML(text, voice string) string {
	return fmt.Sprintf(
		`<speak version="1.0" xml:lang="en-US"><voice name="%s">%s</voice></speak>`,
		voice, escapeXML(text))
}

// escapeXML escapes the five XML special characters in s. The ampersand is
// replaced first so the other entities are not double-escaped.
func escapeXML(s string) string {
	r := strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
		`"`, "&quot;",
		"'", "&apos;",
	)
	return r.Replace(s)
}
