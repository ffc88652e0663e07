// Package observe provides application-wide observability primitives for
// Listener: OpenTelemetry metrics, tracing, structured logging, and HTTP
// middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can be
// scraped via the standard /metrics endpoint. Tests should use [NewMetrics]
// with a custom [metric.MeterProvider] to avoid cross-test pollution.
package observe

import (
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all Listener metrics.
const meterName = "github.com/listener-ai/listener"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms per pipeline stage ---

	// STTDuration tracks speech-to-text transcription latency.
	STTDuration metric.Float64Histogram

	// ClassifyDuration tracks safety classification latency, including any
	// remote grading attempt.
	ClassifyDuration metric.Float64Histogram

	// TTSDuration tracks text-to-speech synthesis latency.
	TTSDuration metric.Float64Histogram

	// --- Counters ---

	// VoiceNotes counts processed voice notes. Use with attribute:
	//   attribute.String("branch", "cooldown"|"blocked"|"normal")
	VoiceNotes metric.Int64Counter

	// Classifications counts classifier outcomes. Use with attribute:
	//   attribute.String("level", ...)
	Classifications metric.Int64Counter

	// CooldownHits counts submissions short-circuited by an active cooldown.
	CooldownHits metric.Int64Counter

	// ProviderErrors counts collaborator failures. Use with attribute:
	//   attribute.String("kind", "stt"|"tts"|"storage"|"grader")
	ProviderErrors metric.Int64Counter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with
	// attributes: attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) optimised
// for voice-pipeline latencies.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.STTDuration, err = m.Float64Histogram("listener.stt.duration",
		metric.WithDescription("Latency of speech-to-text transcription."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ClassifyDuration, err = m.Float64Histogram("listener.classify.duration",
		metric.WithDescription("Latency of transcript safety classification."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.TTSDuration, err = m.Float64Histogram("listener.tts.duration",
		metric.WithDescription("Latency of text-to-speech synthesis."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.HTTPRequestDuration, err = m.Float64Histogram("listener.http.request.duration",
		metric.WithDescription("HTTP request processing time."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.VoiceNotes, err = m.Int64Counter("listener.voice_notes",
		metric.WithDescription("Processed voice notes by response branch."),
	); err != nil {
		return nil, err
	}
	if met.Classifications, err = m.Int64Counter("listener.classifications",
		metric.WithDescription("Classifier outcomes by safety level."),
	); err != nil {
		return nil, err
	}
	if met.CooldownHits, err = m.Int64Counter("listener.cooldown.hits",
		metric.WithDescription("Submissions short-circuited by an active cooldown."),
	); err != nil {
		return nil, err
	}
	if met.ProviderErrors, err = m.Int64Counter("listener.provider.errors",
		metric.WithDescription("Collaborator failures by kind."),
	); err != nil {
		return nil, err
	}

	return met, nil
}
