package resilience

import (
	"errors"
	"fmt"
	"log/slog"
)

// ErrAllFailed is returned when every entry in a [Chain] fails or has an open
// breaker.
var ErrAllFailed = errors.New("resilience: all providers failed")

// entry pairs a provider value with its dedicated breaker.
type entry[T any] struct {
	name    string
	value   T
	breaker *Breaker
}

// Chain wraps a primary and zero or more fallback instances of the same
// provider type. When the primary fails or its breaker is open, the next
// healthy fallback is tried in registration order.
//
// Entries must be registered before first use; Try is then safe for
// concurrent use.
type Chain[T any] struct {
	entries  []entry[T]
	settings Settings
}

// NewChain creates a [Chain] with primary as the first entry. settings seeds
// the per-entry breakers; the Name field is overwritten per entry.
func NewChain[T any](primary T, primaryName string, settings Settings) *Chain[T] {
	c := &Chain[T]{settings: settings}
	c.add(primaryName, primary)
	return c
}

// AddFallback appends a fallback provider, tried after all earlier entries.
func (c *Chain[T]) AddFallback(name string, fallback T) {
	c.add(name, fallback)
}

func (c *Chain[T]) add(name string, value T) {
	s := c.settings
	s.Name = name
	c.entries = append(c.entries, entry[T]{
		name:    name,
		value:   value,
		breaker: NewBreaker(s),
	})
}

// Try runs fn against each entry in order until one succeeds, returning the
// first success. Entries with open breakers are skipped. When every entry
// fails, the last error is returned wrapped in [ErrAllFailed].
//
// Try is a package-level function because Go does not support method-level
// type parameters.
func Try[T, R any](c *Chain[T], fn func(T) (R, error)) (R, error) {
	var (
		lastErr error
		zero    R
	)
	for i := range c.entries {
		e := &c.entries[i]
		var result R
		err := e.breaker.Do(func() error {
			var innerErr error
			result, innerErr = fn(e.value)
			return innerErr
		})
		if err == nil {
			return result, nil
		}
		lastErr = err
		if errors.Is(err, ErrBreakerOpen) {
			slog.Debug("skipping provider, breaker open", "provider", e.name)
		} else {
			slog.Warn("provider failed, trying next", "provider", e.name, "error", err)
		}
	}
	return zero, fmt.Errorf("%w: %v", ErrAllFailed, lastErr)
}
