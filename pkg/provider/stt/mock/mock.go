// Package mock provides a test double for the stt package interfaces.
//
// Use Provider to feed a controlled transcript into the pipeline and verify
// which audio payloads were delivered — or that no call happened at all,
// e.g. on the cooldown short-circuit path.
package mock

import (
	"context"
	"sync"

	"github.com/listener-ai/listener/pkg/provider/stt"
)

// TranscribeCall records a single invocation of Provider.Transcribe.
type TranscribeCall struct {
	// Audio is a copy of the payload passed to Transcribe.
	Audio []byte
	// Hint is the metadata passed to Transcribe.
	Hint stt.Hint
}

// Provider is a mock implementation of stt.Provider.
type Provider struct {
	mu sync.Mutex

	// Transcript is returned from Transcribe when Err is nil.
	Transcript string

	// Err, if non-nil, is returned as the error from Transcribe.
	Err error

	// TranscribeCalls records every call to Transcribe.
	TranscribeCalls []TranscribeCall
}

// Ensure Provider implements stt.Provider at compile time.
var _ stt.Provider = (*Provider)(nil)

// Transcribe records the call and returns Transcript, Err.
func (p *Provider) Transcribe(_ context.Context, audio []byte, hint stt.Hint) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.TranscribeCalls = append(p.TranscribeCalls, TranscribeCall{
		Audio: append([]byte(nil), audio...),
		Hint:  hint,
	})
	if p.Err != nil {
		return "", p.Err
	}
	return p.Transcript, nil
}

// Calls returns the number of recorded Transcribe calls. Thread-safe.
func (p *Provider) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.TranscribeCalls)
}

// Reset clears all recorded calls. Thread-safe.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.TranscribeCalls = nil
}
