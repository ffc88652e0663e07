// Package stt defines the Provider interface for Speech-to-Text backends.
//
// An STT provider wraps a transcription service (e.g., the OpenAI audio API
// or a local whisper.cpp server) behind a single batch call: given the full
// audio payload of one voice note, produce the transcript text. Voice notes
// are short, complete recordings, so no streaming session management is
// needed — the provider is handed the bytes and returns a string.
//
// Implementations must be safe for concurrent use; multiple voice notes may
// be transcribed simultaneously.
package stt

import "context"

// Hint carries optional metadata about the uploaded audio that a provider
// may forward to its backend. All fields may be empty.
type Hint struct {
	// Filename is the original upload filename (e.g., "voice_note.wav").
	// Providers that need an extension to sniff the container format can
	// use it; others ignore it.
	Filename string

	// ContentType is the MIME type declared by the uploader.
	ContentType string
}

// Provider is the abstraction over any speech-to-text backend.
type Provider interface {
	// Transcribe converts the complete audio payload of one voice note into
	// transcript text. An empty transcript is a valid result (silence, or
	// speech the backend could not recognise) and must not be reported as
	// an error. Errors indicate the backend could not be consulted at all —
	// the caller must not treat the note as evaluated.
	//
	// Implementations must bound the call with a timeout and respect ctx
	// cancellation.
	Transcribe(ctx context.Context, audio []byte, hint Hint) (string, error)
}
