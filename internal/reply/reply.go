// Package reply selects what Listener says back for a processed voice note.
//
// There are exactly three response branches: the calming pause message while
// a cooldown is active, the safety-redirect message for blocked transcripts,
// and a conversational reply for everything else. The fixed copy lives here
// as named constants so the pipeline's state machine stays readable and the
// texts are testable independent of it.
package reply

import (
	"context"
	"log/slog"

	"github.com/listener-ai/listener/internal/safety"
)

// Fixed response texts.
const (
	// CooldownText is spoken when an active cooldown short-circuits the
	// pipeline before transcription.
	CooldownText = "We're taking a short pause to keep things safe. Let's breathe together, then you can try again."

	// BlockedText is the safety redirect spoken for a blocked transcript.
	BlockedText = "I hear you're struggling. For safety, let's pause and reach out to someone you trust or a local helpline."

	// CompanionText is the static normal-branch reply, used directly by
	// [StaticResponder] and as the fallback when a conversational responder
	// fails.
	CompanionText = "I hear you. I'm here with you."
)

// Responder produces the normal-branch reply text from a transcript.
type Responder interface {
	Reply(ctx context.Context, transcript string) (string, error)
}

// StaticResponder always answers with [CompanionText]. It is the default
// when no LLM responder is configured.
type StaticResponder struct{}

// Compile-time assertion that StaticResponder implements Responder.
var _ Responder = StaticResponder{}

// Reply implements [Responder].
func (StaticResponder) Reply(_ context.Context, _ string) (string, error) {
	return CompanionText, nil
}

// Selector maps a classification level and transcript to the text to be
// spoken. It is stateless and safe for concurrent use.
type Selector struct {
	responder Responder
}

// NewSelector constructs a Selector. A nil responder falls back to
// [StaticResponder].
func NewSelector(responder Responder) *Selector {
	if responder == nil {
		responder = StaticResponder{}
	}
	return &Selector{responder: responder}
}

// Select returns the reply text for a classified transcript: the fixed
// safety redirect for blocked, otherwise the responder's conversational
// reply. A responder failure degrades to [CompanionText] — reply wording is
// never worth failing a note that has already been safety-evaluated.
func (s *Selector) Select(ctx context.Context, level safety.Level, transcript string) string {
	if level == safety.LevelBlocked {
		return BlockedText
	}

	text, err := s.responder.Reply(ctx, transcript)
	if err != nil {
		slog.Warn("responder failed, using static reply", "err", err)
		return CompanionText
	}
	return text
}
