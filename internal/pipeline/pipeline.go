// Package pipeline orchestrates the processing of a single voice note:
// cooldown gate → transcription → safety classification → cooldown update →
// reply selection → speech synthesis, with optional raw-audio archival.
//
// The cooldown gate runs before transcription so that a paused user costs no
// provider calls beyond synthesising the pause message. Classification and
// archival failures degrade gracefully; transcription and synthesis failures
// abort the note with [ErrUpstream].
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/listener-ai/listener/internal/cooldown"
	"github.com/listener-ai/listener/internal/observe"
	"github.com/listener-ai/listener/internal/reply"
	"github.com/listener-ai/listener/internal/safety"
	"github.com/listener-ai/listener/internal/storage"
	"github.com/listener-ai/listener/pkg/provider/stt"
	"github.com/listener-ai/listener/pkg/provider/tts"
)

// ErrUpstream marks failures of a provider the note cannot be processed
// without (transcription or synthesis). HTTP handlers translate it to a 502.
var ErrUpstream = errors.New("pipeline: upstream provider failure")

// Request carries one submitted voice note through the pipeline.
type Request struct {
	// UserKey identifies the submitting user for cooldown tracking.
	UserKey string

	// UserID identifies the user for storage keys.
	UserID int64

	// Audio is the raw voice-note payload. May be empty.
	Audio []byte

	// Filename and ContentType describe the uploaded audio for providers
	// that sniff format from metadata.
	Filename    string
	ContentType string

	// StoreRaw requests archival of the raw payload before transcription.
	// Ignored when the pipeline has no store configured.
	StoreRaw bool
}

// Outcome is the result of processing one voice note.
type Outcome struct {
	// SessionID uniquely identifies this processing run.
	SessionID string

	// ReplyText is the spoken reply's text form.
	ReplyText string

	// ReplyAudio is the synthesised spoken reply.
	ReplyAudio []byte

	// SafetyLevel is the level reported for this note. During an active
	// cooldown this is [safety.LevelElevated] even though no classification
	// ran.
	SafetyLevel safety.Level

	// Reasons lists classification reasons. Empty when the note
	// short-circuited on an active cooldown.
	Reasons []string

	// CooldownSeconds is the whole seconds of cooldown in effect after
	// processing. Zero when the user may submit again immediately.
	CooldownSeconds int

	// StoredAudioRef locates the archived raw audio, if archival was
	// requested and succeeded (e.g., "s3://bucket/key").
	StoredAudioRef string
}

// Pipeline processes voice notes. Construct with [New]; the zero value is not
// usable.
type Pipeline struct {
	cooldowns  cooldown.Store
	classifier *safety.Classifier
	selector   *reply.Selector
	stt        stt.Provider
	tts        tts.Provider
	store      storage.Store
	metrics    *observe.Metrics
}

// Option configures a [Pipeline].
type Option func(*Pipeline)

// WithStore enables raw-audio archival through s.
func WithStore(s storage.Store) Option {
	return func(p *Pipeline) { p.store = s }
}

// WithMetrics enables metric recording.
func WithMetrics(m *observe.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// New creates a [Pipeline] from its required collaborators.
func New(cd cooldown.Store, cl *safety.Classifier, sel *reply.Selector, sttp stt.Provider, ttsp tts.Provider, opts ...Option) *Pipeline {
	p := &Pipeline{
		cooldowns:  cd,
		classifier: cl,
		selector:   sel,
		stt:        sttp,
		tts:        ttsp,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run processes one voice note end to end. It returns [ErrUpstream]-wrapped
// errors when transcription or synthesis fails; all other collaborator
// failures are absorbed and logged.
func (p *Pipeline) Run(ctx context.Context, req Request) (*Outcome, error) {
	ctx, span := observe.StartSpan(ctx, "pipeline.Run")
	defer span.End()

	out := &Outcome{SessionID: uuid.NewString()}
	log := observe.Logger(ctx).With("session_id", out.SessionID)

	// Cooldown gate. Checked before any provider call so a paused user
	// costs nothing but the pause message.
	if remaining := p.cooldowns.Remaining(ctx, req.UserKey); remaining > 0 {
		log.Info("cooldown active, short-circuiting",
			"user", req.UserKey, "remaining_seconds", remaining)
		p.count(ctx, "cooldown")
		if p.metrics != nil {
			p.metrics.CooldownHits.Add(ctx, 1)
		}

		out.SafetyLevel = safety.LevelElevated
		out.CooldownSeconds = remaining
		out.ReplyText = reply.CooldownText

		audio, err := p.synthesize(ctx, reply.CooldownText)
		if err != nil {
			return nil, err
		}
		out.ReplyAudio = audio
		return out, nil
	}

	// Archival is best effort: a storage failure never blocks the note.
	if req.StoreRaw && p.store != nil && len(req.Audio) > 0 {
		ref, err := p.store.Put(ctx, req.UserID, req.Audio, req.ContentType)
		if err != nil {
			log.Warn("raw audio archival failed", "error", err)
			p.providerError(ctx, "storage")
		} else {
			out.StoredAudioRef = ref
		}
	}

	transcript, err := p.transcribe(ctx, req)
	if err != nil {
		return nil, err
	}

	result := p.classify(ctx, transcript)
	out.SafetyLevel = result.Level
	out.Reasons = result.Reasons

	// Always applied: qualifying levels start or refresh the window, ok is
	// a no-op that never shortens an existing one.
	out.CooldownSeconds = p.cooldowns.Apply(ctx, req.UserKey, result.Level)

	branch := "normal"
	if result.Level == safety.LevelBlocked {
		branch = "blocked"
	}
	p.count(ctx, branch)

	out.ReplyText = p.selector.Select(ctx, result.Level, transcript)

	audio, err := p.synthesize(ctx, out.ReplyText)
	if err != nil {
		return nil, err
	}
	out.ReplyAudio = audio

	log.Info("voice note processed",
		"level", string(out.SafetyLevel),
		"branch", branch,
		"cooldown_seconds", out.CooldownSeconds,
	)
	return out, nil
}

func (p *Pipeline) transcribe(ctx context.Context, req Request) (string, error) {
	ctx, span := observe.StartSpan(ctx, "pipeline.transcribe")
	defer span.End()

	start := time.Now()
	transcript, err := p.stt.Transcribe(ctx, req.Audio, stt.Hint{
		Filename:    req.Filename,
		ContentType: req.ContentType,
	})
	if p.metrics != nil {
		p.metrics.STTDuration.Record(ctx, time.Since(start).Seconds())
	}
	if err != nil {
		p.providerError(ctx, "stt")
		return "", fmt.Errorf("transcribe: %w: %w", ErrUpstream, err)
	}
	return transcript, nil
}

func (p *Pipeline) classify(ctx context.Context, transcript string) safety.Result {
	ctx, span := observe.StartSpan(ctx, "pipeline.classify")
	defer span.End()

	start := time.Now()
	result := p.classifier.Classify(ctx, transcript)
	if p.metrics != nil {
		p.metrics.ClassifyDuration.Record(ctx, time.Since(start).Seconds())
		p.metrics.Classifications.Add(ctx, 1,
			metric.WithAttributes(attribute.String("level", string(result.Level))))
	}
	return result
}

func (p *Pipeline) synthesize(ctx context.Context, text string) ([]byte, error) {
	ctx, span := observe.StartSpan(ctx, "pipeline.synthesize")
	defer span.End()

	start := time.Now()
	audio, err := p.tts.Synthesize(ctx, text)
	if p.metrics != nil {
		p.metrics.TTSDuration.Record(ctx, time.Since(start).Seconds())
	}
	if err != nil {
		p.providerError(ctx, "tts")
		return nil, fmt.Errorf("synthesize: %w: %w", ErrUpstream, err)
	}
	return audio, nil
}

func (p *Pipeline) count(ctx context.Context, branch string) {
	if p.metrics == nil {
		return
	}
	p.metrics.VoiceNotes.Add(ctx, 1,
		metric.WithAttributes(attribute.String("branch", branch)))
}

func (p *Pipeline) providerError(ctx context.Context, kind string) {
	if p.metrics == nil {
		slog.Debug("provider error recorded without metrics", "kind", kind)
		return
	}
	p.metrics.ProviderErrors.Add(ctx, 1,
		metric.WithAttributes(attribute.String("kind", kind)))
}
