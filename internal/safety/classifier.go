package safety

import (
	"context"
	"log/slog"
	"time"
)

// defaultGraderTimeout bounds a single remote grading call. The keyword
// result must never wait on a hung upstream for longer than this.
const defaultGraderTimeout = 10 * time.Second

// Option is a functional option for configuring a [Classifier].
type Option func(*Classifier)

// WithGrader attaches a remote grading backend. Without one the classifier
// is purely keyword-based.
func WithGrader(g Grader) Option {
	return func(c *Classifier) {
		c.grader = g
	}
}

// WithGraderTimeout overrides the remote grading timeout. Values <= 0 keep
// the default of 10 s.
func WithGraderTimeout(d time.Duration) Option {
	return func(c *Classifier) {
		if d > 0 {
			c.graderTimeout = d
		}
	}
}

// Classifier classifies transcripts using the keyword scan plus an optional
// remote [Grader]. The zero configuration (no options) is valid and fully
// local. Classifier is stateless and safe for concurrent use.
type Classifier struct {
	grader        Grader
	graderTimeout time.Duration
}

// NewClassifier constructs a Classifier with the given options applied.
func NewClassifier(opts ...Option) *Classifier {
	c := &Classifier{graderTimeout: defaultGraderTimeout}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Classify assesses one transcript. The keyword scan always runs; when a
// remote grader is configured its result replaces the local one entirely —
// level and reasons both — provided the call succeeds and the returned
// level is in-vocabulary. Every remote failure mode (error, timeout,
// unrecognised level) leaves the keyword result authoritative.
//
// Classify never fails the caller.
func (c *Classifier) Classify(ctx context.Context, transcript string) Result {
	local := scanKeywords(transcript)
	if c.grader == nil {
		return local
	}

	gradeCtx, cancel := context.WithTimeout(ctx, c.graderTimeout)
	defer cancel()

	remote, err := c.grader.Grade(gradeCtx, transcript)
	if err != nil {
		slog.Debug("remote grader unavailable, keyword result stands", "err", err)
		return local
	}
	if !remote.Level.IsValid() {
		slog.Warn("remote grader returned unrecognised level, keyword result stands",
			"level", string(remote.Level))
		return local
	}

	if len(remote.Reasons) == 0 {
		remote.Reasons = []string{ReasonNoFlags}
	}
	return remote
}
