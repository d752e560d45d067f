// Package observe provides application-wide observability primitives for
// Ekivoice: OpenTelemetry metrics, tracing, and the HTTP middleware used by
// the debug listener.
//
// Metrics are recorded through the OpenTelemetry Metrics API. [Setup]
// attaches a Prometheus exporter bridge when the debug listener is
// configured so they can be scraped via /metrics. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all Ekivoice metrics.
const meterName = "github.com/MrWong99/ekivoice"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms per conversation stage ---

	// TranscribeDuration tracks ASR request latency.
	TranscribeDuration metric.Float64Histogram

	// DialogueDuration tracks NPC dialogue request latency.
	DialogueDuration metric.Float64Histogram

	// SynthesizeDuration tracks TTS request latency.
	SynthesizeDuration metric.Float64Histogram

	// TurnDuration tracks end-to-end conversation turn latency. Use with
	// attribute: attribute.String("mode", "text"|"voice")
	TurnDuration metric.Float64Histogram

	// --- Counters ---

	// ServiceRequests counts remote service calls. Use with attributes:
	//   attribute.String("service", ...), attribute.String("status", ...)
	ServiceRequests metric.Int64Counter

	// ServiceErrors counts remote service failures. Use with attribute:
	//   attribute.String("service", ...)
	ServiceErrors metric.Int64Counter

	// Probes counts availability probe outcomes. Use with attributes:
	//   attribute.String("service", ...), attribute.String("outcome", "up"|"down")
	Probes metric.Int64Counter

	// ScriptedReplies counts turns answered by the scripted fallback rather
	// than the dialogue service. Use with attribute:
	//   attribute.String("npc", ...)
	ScriptedReplies metric.Int64Counter

	// --- Gauges ---

	// ActiveRecordings tracks live microphone capture sessions (0 or 1 by
	// design, useful to spot leaks).
	ActiveRecordings metric.Int64UpDownCounter

	// ActiveVoiceTurns tracks voice-turn workers currently in flight.
	ActiveVoiceTurns metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks debug-listener request processing time. Use
	// with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) sized for
// the conversation pipeline, whose slowest leg is a 30 s synthesis call.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.TranscribeDuration, err = m.Float64Histogram("ekivoice.transcribe.duration",
		metric.WithDescription("Latency of ASR transcription requests."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.DialogueDuration, err = m.Float64Histogram("ekivoice.dialogue.duration",
		metric.WithDescription("Latency of NPC dialogue requests."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.SynthesizeDuration, err = m.Float64Histogram("ekivoice.synthesize.duration",
		metric.WithDescription("Latency of TTS synthesis requests."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.TurnDuration, err = m.Float64Histogram("ekivoice.turn.duration",
		metric.WithDescription("End-to-end conversation turn latency by mode."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.ServiceRequests, err = m.Int64Counter("ekivoice.service.requests",
		metric.WithDescription("Total remote service requests by service and status."),
	); err != nil {
		return nil, err
	}
	if met.ServiceErrors, err = m.Int64Counter("ekivoice.service.errors",
		metric.WithDescription("Total remote service failures by service."),
	); err != nil {
		return nil, err
	}
	if met.Probes, err = m.Int64Counter("ekivoice.probe.results",
		metric.WithDescription("Availability probe outcomes by service."),
	); err != nil {
		return nil, err
	}
	if met.ScriptedReplies, err = m.Int64Counter("ekivoice.scripted.replies",
		metric.WithDescription("Turns answered by the scripted fallback by NPC."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveRecordings, err = m.Int64UpDownCounter("ekivoice.active_recordings",
		metric.WithDescription("Live microphone capture sessions."),
	); err != nil {
		return nil, err
	}
	if met.ActiveVoiceTurns, err = m.Int64UpDownCounter("ekivoice.active_voice_turns",
		metric.WithDescription("Voice-turn workers currently in flight."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("ekivoice.http.request.duration",
		metric.WithDescription("Debug-listener HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordServiceRequest records a remote service request with the standard
// attribute set.
func (m *Metrics) RecordServiceRequest(ctx context.Context, service, status string) {
	m.ServiceRequests.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("service", service),
			attribute.String("status", status),
		),
	)
}

// RecordServiceError records a remote service failure.
func (m *Metrics) RecordServiceError(ctx context.Context, service string) {
	m.ServiceErrors.Add(ctx, 1,
		metric.WithAttributes(attribute.String("service", service)),
	)
}

// RecordProbe records one availability probe outcome.
func (m *Metrics) RecordProbe(ctx context.Context, service string, up bool) {
	outcome := "down"
	if up {
		outcome = "up"
	}
	m.Probes.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("service", service),
			attribute.String("outcome", outcome),
		),
	)
}

// RecordScriptedReply records a turn answered by the scripted fallback.
func (m *Metrics) RecordScriptedReply(ctx context.Context, npc string) {
	m.ScriptedReplies.Add(ctx, 1,
		metric.WithAttributes(attribute.String("npc", npc)),
	)
}
