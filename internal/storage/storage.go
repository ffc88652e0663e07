// Package storage persists raw voice-note uploads in object storage.
//
// Persistence is strictly opt-in and best-effort: a failed or unconfigured
// store never aborts the voice-note pipeline, the outcome simply carries no
// stored-audio reference.
package storage

import "context"

// Store writes raw audio payloads and returns an opaque location reference.
type Store interface {
	// Put persists payload for the given user and returns a reference such
	// as "s3://bucket/key". contentType may be empty.
	Put(ctx context.Context, userID int64, payload []byte, contentType string) (string, error)
}
