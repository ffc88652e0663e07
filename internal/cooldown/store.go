// Package cooldown tracks per-user cooldown windows.
//
// After a risky utterance (elevated or blocked classification) a user enters
// a cooldown window during which voice-note submissions are short-circuited
// to a calming reply without re-running transcription or classification.
// The store answers "is this user cooling down, and for how much longer".
//
// Cooldown state is ephemeral, best-effort throttling — not an audit log.
// Two implementations are provided: [MemStore] for single-process
// deployments and tests, and [RedisStore] for multi-replica deployments.
package cooldown

import (
	"context"
	"time"

	"github.com/listener-ai/listener/internal/safety"
)

// DefaultWindow is the cooldown span applied after a qualifying
// classification when the config does not override it.
const DefaultWindow = 60 * time.Second

// Store is the per-user cooldown state machine.
//
// Implementations must be safe for concurrent use and linearizable per key:
// a later Apply must not be clobbered by a concurrently-read stale
// Remaining. Operations on distinct keys are independent.
type Store interface {
	// Remaining returns the whole seconds left on userKey's cooldown, or 0
	// when no entry exists or the entry has lapsed. Lapsed entries are
	// removed lazily on read; there is no background sweeper.
	Remaining(ctx context.Context, userKey string) int

	// Apply records a classification outcome. For elevated or blocked it
	// sets the expiry to now + window — overwriting, never stacking, any
	// prior entry — and returns the window length in seconds. For ok it
	// mutates nothing and returns 0. An ok apply never clears an active
	// cooldown early; entries only lapse by time.
	Apply(ctx context.Context, userKey string, level safety.Level) int
}

// qualifies reports whether level starts or refreshes a cooldown.
func qualifies(level safety.Level) bool {
	return level == safety.LevelElevated || level == safety.LevelBlocked
}

// wholeSeconds converts a remaining duration to the non-negative whole
// seconds reported to callers. Sub-second remainders round down, matching
// the lazy-expiry rule: a window with less than a second left reads as 0.
func wholeSeconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(d / time.Second)
}
