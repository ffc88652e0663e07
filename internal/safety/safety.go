// Package safety implements the hybrid transcript risk classifier for
// Listener.
//
// Classification combines two layers:
//
//   - A deterministic, case-insensitive keyword scan that always runs and
//     acts as the safety floor. It cannot be disabled by a remote outage,
//     so blocked/elevated detection works with zero external dependencies.
//   - An optional remote [Grader] (typically an LLM) whose result replaces
//     the keyword result — but only when the response is structurally valid
//     and its level is one of the three recognised values. Anything else is
//     swallowed and the keyword result stands.
//
// [Classifier.Classify] never returns an error; degradation of the remote
// layer is invisible to callers.
package safety

import "context"

// Level describes the assessed risk of a transcript. The total order of
// severity is ok < elevated < blocked.
type Level string

const (
	LevelOK       Level = "ok"
	LevelElevated Level = "elevated"
	LevelBlocked  Level = "blocked"
)

// IsValid reports whether l is one of the three recognised levels. Remote
// grader responses with any other level are rejected.
func (l Level) IsValid() bool {
	switch l {
	case LevelOK, LevelElevated, LevelBlocked:
		return true
	}
	return false
}

// Severity returns the position of l in the ok < elevated < blocked order.
// Unrecognised levels sort below ok.
func (l Level) Severity() int {
	switch l {
	case LevelOK:
		return 1
	case LevelElevated:
		return 2
	case LevelBlocked:
		return 3
	}
	return 0
}

// ReasonNoFlags is the sentinel reason reported when no keyword vocabulary
// matched. A [Result] never carries an empty reason list.
const ReasonNoFlags = "no-flags"

// Result is the outcome of classifying one transcript.
type Result struct {
	// Level is the assessed risk level.
	Level Level

	// Reasons lists the tags that drove the level, in evaluation order.
	// Never empty; holds [ReasonNoFlags] when nothing fired.
	Reasons []string
}

// Grader is an optional remote classification backend. Implementations
// should return an error for anything they cannot vouch for — a network
// failure, a malformed response body, a missing field. The [Classifier]
// treats every error as "use the keyword result instead".
type Grader interface {
	Grade(ctx context.Context, transcript string) (Result, error)
}
