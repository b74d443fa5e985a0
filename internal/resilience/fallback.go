// Package resilience provides sequential fallback across interchangeable
// alternatives, such as the synthesis voice chain.
package resilience

import "log/slog"

// fallbackEntry pairs an alternative with its log name.
type fallbackEntry[T any] struct {
	name  string
	value T
}

// FallbackGroup holds an ordered chain of interchangeable alternatives.
// Each attempt runs against the next entry until one succeeds; the error of
// the final attempt is returned when all fail, so callers see the most
// recent failure rather than an aggregate.
//
// A FallbackGroup is immutable after construction and safe for concurrent
// use.
type FallbackGroup[T any] struct {
	entries []fallbackEntry[T]
}

// NewFallbackGroup creates a group with primary as the first entry.
// Additional alternatives are registered via [FallbackGroup.AddFallback]
// before first use.
func NewFallbackGroup[T any](primary T, primaryName string) *FallbackGroup[T] {
	return &FallbackGroup[T]{
		entries: []fallbackEntry[T]{{name: primaryName, value: primary}},
	}
}

// AddFallback appends an alternative. Alternatives are tried in the order
// they are added, after the primary.
func (fg *FallbackGroup[T]) AddFallback(name string, fallback T) {
	fg.entries = append(fg.entries, fallbackEntry[T]{name: name, value: fallback})
}

// Len returns the number of entries in the chain.
func (fg *FallbackGroup[T]) Len() int { return len(fg.entries) }

// ExecuteWithResult tries fn against each entry in order until one succeeds,
// returning that result. When every entry fails the last error is returned
// as-is. This is a package-level function because Go does not support
// method-level type parameters.
func ExecuteWithResult[T any, R any](fg *FallbackGroup[T], fn func(T) (R, error)) (R, error) {
	var (
		lastErr error
		zero    R
	)
	for i := range fg.entries {
		entry := &fg.entries[i]
		result, err := fn(entry.value)
		if err == nil {
			return result, nil
		}
		lastErr = err
		if i < len(fg.entries)-1 {
			slog.Warn("fallback entry failed, trying next",
				"entry", entry.name, "error", err)
		}
	}
	return zero, lastErr
}
