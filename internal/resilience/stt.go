package resilience

import (
	"context"

	"github.com/listener-ai/listener/pkg/provider/stt"
)

// STTChain implements [stt.Provider] with automatic failover across multiple
// transcription backends. Each backend has its own breaker.
type STTChain struct {
	chain *Chain[stt.Provider]
}

// Compile-time interface assertion.
var _ stt.Provider = (*STTChain)(nil)

// NewSTTChain creates an [STTChain] with primary as the preferred backend.
func NewSTTChain(primary stt.Provider, primaryName string, settings Settings) *STTChain {
	return &STTChain{chain: NewChain(primary, primaryName, settings)}
}

// AddFallback registers an additional transcription backend.
func (c *STTChain) AddFallback(name string, provider stt.Provider) {
	c.chain.AddFallback(name, provider)
}

// Transcribe transcribes audio using the first healthy backend.
func (c *STTChain) Transcribe(ctx context.Context, audio []byte, hint stt.Hint) (string, error) {
	return Try(c.chain, func(p stt.Provider) (string, error) {
		return p.Transcribe(ctx, audio, hint)
	})
}
