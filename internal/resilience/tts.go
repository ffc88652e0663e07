package resilience

import (
	"context"

	"github.com/listener-ai/listener/pkg/provider/tts"
)

// TTSChain implements [tts.Provider] with automatic failover across multiple
// synthesis backends. Each backend has its own breaker.
type TTSChain struct {
	chain *Chain[tts.Provider]
}

// Compile-time interface assertion.
var _ tts.Provider = (*TTSChain)(nil)

// NewTTSChain creates a [TTSChain] with primary as the preferred backend.
func NewTTSChain(primary tts.Provider, primaryName string, settings Settings) *TTSChain {
	return &TTSChain{chain: NewChain(primary, primaryName, settings)}
}

// AddFallback registers an additional synthesis backend.
func (c *TTSChain) AddFallback(name string, provider tts.Provider) {
	c.chain.AddFallback(name, provider)
}

// Synthesize renders text using the first healthy backend.
func (c *TTSChain) Synthesize(ctx context.Context, text string) ([]byte, error) {
	return Try(c.chain, func(p tts.Provider) ([]byte, error) {
		return p.Synthesize(ctx, text)
	})
}
