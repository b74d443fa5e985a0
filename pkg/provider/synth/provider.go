// Package synth defines the provider-agnostic interface for synthesizing
// reference pronunciations from text.
package synth

import (
	"context"
	"errors"
	"fmt"
)

// MIMEType is the content type of synthesized audio.
const MIMEType = "audio/mpeg"

// ErrEmptyText reports a synthesis request whose text is empty or all
// whitespace.
var ErrEmptyText = errors.New("synth: text must not be empty")

// HTTPError reports a non-2xx response from the provider. Body holds the
// response payload (possibly truncated) for diagnostics.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("synth: provider returned HTTP %d: %s", e.StatusCode, e.Body)
}

// Provider converts text into spoken audio.
type Provider interface {
	// Synthesize renders text as compressed audio of [MIMEType]. It
	// returns [ErrEmptyText] for blank input and a [*HTTPError] when the
	// provider rejects the request.
	Synthesize(ctx context.Context, text string) ([]byte, error)
}
