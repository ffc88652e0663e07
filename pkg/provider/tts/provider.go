// Package tts defines the Provider interface for Text-to-Speech backends.
//
// A TTS provider wraps a speech synthesis service behind a single batch
// call: given one reply text, produce playable audio bytes. Listener's
// replies are a sentence or two, so streaming synthesis buys nothing here.
//
// Implementations must be safe for concurrent use.
package tts

import "context"

// Provider is the abstraction over any text-to-speech backend.
type Provider interface {
	// Synthesize renders text as playable audio bytes. Errors indicate the
	// backend could not produce audio; callers must surface them rather
	// than fabricate a reply.
	//
	// Implementations must bound the call with a timeout and respect ctx
	// cancellation.
	Synthesize(ctx context.Context, text string) ([]byte, error)
}
