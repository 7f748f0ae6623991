// Package observe provides application-wide observability primitives for
// talentlens: OpenTelemetry metrics and HTTP middleware.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can be
// scraped via the standard /metrics endpoint. A package-level default
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

// meterName is the instrumentation scope name used for all talentlens metrics.
const meterName = "github.com/talentlens/talentlens"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use; the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms per pipeline stage ---

	// TranscriptionDuration tracks batch speech-to-text latency.
	TranscriptionDuration metric.Float64Histogram

	// EmbeddingDuration tracks embedding-call latency during scoring.
	EmbeddingDuration metric.Float64Histogram

	// PipelineDuration tracks end-to-end batch pipeline latency.
	PipelineDuration metric.Float64Histogram

	// --- Counters ---

	// VideoFrames counts received video frames. Use with attribute:
	//   attribute.String("status", "analyzed"|"skipped"|"error")
	VideoFrames metric.Int64Counter

	// AudioChunks counts received audio chunks.
	AudioChunks metric.Int64Counter

	// DroppedEvents counts live events dropped on error or unknown type.
	// Use with attribute: attribute.String("reason", ...)
	DroppedEvents metric.Int64Counter

	// BatchRuns counts batch pipeline runs. Use with attribute:
	//   attribute.String("status", "completed"|"failed"|"rejected")
	BatchRuns metric.Int64Counter

	// --- Gauges ---

	// ActiveSessions tracks the number of live interview sessions.
	ActiveSessions metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) sized for
// ML-call and batch-pipeline latencies.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.TranscriptionDuration, err = m.Float64Histogram("talentlens.transcription.duration",
		metric.WithDescription("Latency of batch audio transcription."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.EmbeddingDuration, err = m.Float64Histogram("talentlens.embedding.duration",
		metric.WithDescription("Latency of embedding calls during indicator scoring."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.PipelineDuration, err = m.Float64Histogram("talentlens.pipeline.duration",
		metric.WithDescription("End-to-end batch pipeline latency."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.VideoFrames, err = m.Int64Counter("talentlens.session.video_frames",
		metric.WithDescription("Total video frames received by status."),
	); err != nil {
		return nil, err
	}
	if met.AudioChunks, err = m.Int64Counter("talentlens.session.audio_chunks",
		metric.WithDescription("Total audio chunks received."),
	); err != nil {
		return nil, err
	}
	if met.DroppedEvents, err = m.Int64Counter("talentlens.session.dropped_events",
		metric.WithDescription("Total live events dropped by reason."),
	); err != nil {
		return nil, err
	}
	if met.BatchRuns, err = m.Int64Counter("talentlens.batch.runs",
		metric.WithDescription("Total batch pipeline runs by status."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveSessions, err = m.Int64UpDownCounter("talentlens.active_sessions",
		metric.WithDescription("Number of live interview sessions."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("talentlens.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
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

// RecordDroppedEvent records a dropped live event with its reason.
func (m *Metrics) RecordDroppedEvent(ctx context.Context, reason string) {
	m.DroppedEvents.Add(ctx, 1,
		metric.WithAttributes(attribute.String("reason", reason)),
	)
}

// RecordBatchRun records one batch pipeline run with its terminal status.
func (m *Metrics) RecordBatchRun(ctx context.Context, status string) {
	m.BatchRuns.Add(ctx, 1,
		metric.WithAttributes(attribute.String("status", status)),
	)
}

// RecordVideoFrame records one received video frame with its handling status.
func (m *Metrics) RecordVideoFrame(ctx context.Context, status string) {
	m.VideoFrames.Add(ctx, 1,
		metric.WithAttributes(attribute.String("status", status)),
	)
}
